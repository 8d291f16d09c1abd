package handlers

import (
	"errors"
	"time"

	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cfg:         cfg,
	}
}

// RefreshRequest carries a refresh token for clients that do not use cookies
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Register handles user registration
// @Summary Register new user
// @Description Create a member account and sign it in
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "Registration data"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req services.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.authService.Register(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return response.Created(c, "User registered successfully", result)
}

// Login handles user login
// @Summary Login user
// @Description Authenticate by username or email and return tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.LoginInput true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req services.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.authService.Login(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err)
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return response.Success(c, "Login successful", result)
}

// RefreshToken handles token refresh
// @Summary Refresh access token
// @Description Rotate the refresh token from the cookie or body
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest false "Refresh token"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := h.refreshTokenOf(c)
	if refreshToken == "" {
		return response.Unauthorized(c, "Refresh token not found")
	}

	result, err := h.authService.Refresh(c.UserContext(), refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrForbidden) {
			h.clearAuthCookies(c)
		}
		return response.FromError(c, err)
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)
	return response.Success(c, "Token refreshed successfully", result)
}

// Logout handles user logout
// @Summary Logout user
// @Description Revoke the refresh token and clear cookies
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Response
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.UserContext(), h.refreshTokenOf(c)); err != nil {
		return response.FromError(c, err)
	}
	h.clearAuthCookies(c)
	return response.Success(c, "Logged out successfully", nil)
}

// LogoutAll handles logout from all devices
// @Summary Logout from all devices
// @Description Revoke all refresh tokens for the user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	if err := h.authService.LogoutAll(c.UserContext(), userID); err != nil {
		return response.FromError(c, err)
	}

	h.clearAuthCookies(c)
	return response.Success(c, "Logged out from all devices", nil)
}

// Me returns the current user info
// @Summary Get current user
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	user, err := h.authService.Me(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User retrieved successfully", fiber.Map{"user": user})
}

func (h *AuthHandler) refreshTokenOf(c *fiber.Ctx) string {
	if token := c.Cookies("refresh_token"); token != "" {
		return token
	}
	var req RefreshRequest
	if len(c.Body()) > 0 && c.BodyParser(&req) == nil {
		return req.RefreshToken
	}
	return ""
}

// setAuthCookies sets access and refresh token cookies
func (h *AuthHandler) setAuthCookies(c *fiber.Ctx, accessToken, refreshToken string) {
	h.cookie(c, "access_token", accessToken, h.cfg.JWT.AccessTokenMins*60)
	h.cookie(c, "refresh_token", refreshToken, h.cfg.JWT.RefreshTokenDays*24*60*60)
}

// clearAuthCookies clears auth cookies
func (h *AuthHandler) clearAuthCookies(c *fiber.Ctx) {
	h.cookie(c, "access_token", "", -1)
	h.cookie(c, "refresh_token", "", -1)
}

func (h *AuthHandler) cookie(c *fiber.Ctx, name, value string, maxAge int) {
	cookie := &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   h.cfg.Cookie.Secure,
		HTTPOnly: true,
		SameSite: h.cfg.Cookie.SameSite,
		Domain:   h.cfg.Cookie.Domain,
	}
	if maxAge < 0 {
		cookie.Expires = time.Now().Add(-1 * time.Hour)
	}
	c.Cookie(cookie)
}
