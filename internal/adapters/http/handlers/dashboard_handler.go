package handlers

import (
	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	dashboardService *services.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GetAdminDashboard returns admin dashboard data
// @Summary Admin Dashboard
// @Description Stock, loan, request, donation and fine counts (Admin only)
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /admin/dashboard [get]
func (h *DashboardHandler) GetAdminDashboard(c *fiber.Ctx) error {
	data, err := h.dashboardService.GetAdminDashboard(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Admin dashboard retrieved successfully", data)
}

// GetMemberDashboard returns the caller's loans and fines at a glance
// @Summary Member Dashboard
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /dashboard [get]
func (h *DashboardHandler) GetMemberDashboard(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	data, err := h.dashboardService.GetMemberDashboard(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dashboard retrieved successfully", data)
}
