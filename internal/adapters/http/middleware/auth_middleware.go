package middleware

import (
	"errors"
	"strings"

	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/jwt"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// TokenValidator checks an access token and returns its claims
type TokenValidator interface {
	ValidateAccessToken(accessToken string) (*jwt.Claims, error)
}

// AuthMiddleware requires a valid access token from the access_token cookie or
// the Authorization header
func AuthMiddleware(validator TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		accessToken := bearerToken(c)
		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := validator.ValidateAccessToken(accessToken)
		if err != nil {
			if errors.Is(err, domain.ErrTokenExpired) {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		c.Locals("userID", claims.UserID)
		c.Locals("username", claims.Username)
		c.Locals("role", claims.Role)
		return c.Next()
	}
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowed := range allowedRoles {
			if role == string(allowed) {
				return c.Next()
			}
		}
		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only ADMIN role
func AdminOnly() fiber.Handler {
	return RoleMiddleware(domain.RoleAdmin)
}

// UserID returns the authenticated user's id
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals("userID").(uint)
	return id, ok && id != 0
}

func bearerToken(c *fiber.Ctx) string {
	if token := c.Cookies("access_token"); token != "" {
		return token
	}
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
