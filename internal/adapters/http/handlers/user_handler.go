package handlers

import (
	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles listing all users (Admin only)
// @Summary List all users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	params, page := pageOf(c)
	users, total, err := h.userService.ListUsers(c.UserContext(), page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Users retrieved successfully", pagination.NewResponse(users, params, total))
}

// GetUser handles getting a user by ID (Admin only)
// @Summary Get user by ID
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid user ID")
	}

	user, err := h.userService.GetUserByID(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User retrieved successfully", fiber.Map{"user": user})
}

// UpdateUser handles updating a user (Admin only)
// @Summary Update user
// @Description Change name, email, role or active flag. Admins cannot change their own role.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body services.UpdateUserByAdminInput true "Update data"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/users/{id} [put]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid user ID")
	}
	adminID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req services.UpdateUserByAdminInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.UpdateUserByAdmin(c.UserContext(), id, adminID, &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User updated successfully", fiber.Map{"user": user})
}

// DeleteUser handles deactivating a user (Admin only)
// @Summary Delete user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/users/{id} [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid user ID")
	}
	adminID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	if err := h.userService.DeleteUser(c.UserContext(), id, adminID); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "User deleted successfully", nil)
}

// ChangePassword handles a user changing their own password
// @Summary Change password
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ChangePasswordInput true "Passwords"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /profile/password [put]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req services.ChangePasswordInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.userService.ChangePassword(c.UserContext(), userID, &req); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Password changed successfully", nil)
}
