package handlers

import (
	"context"
	"strconv"

	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// FineHandler handles fine ledger and sweep endpoints
type FineHandler struct {
	fines  *services.FineService
	sweeps *services.SweepService
}

// NewFineHandler creates a new fine handler
func NewFineHandler(fines *services.FineService, sweeps *services.SweepService) *FineHandler {
	return &FineHandler{fines: fines, sweeps: sweeps}
}

// SettleBody is an admin collecting or waiving a fine
type SettleBody struct {
	PaymentMethod string `json:"payment_method"`
	Notes         string `json:"notes"`
}

// CalculateOverdue runs the overdue sweep now (Admin only)
// @Summary Run overdue sweep
// @Tags Fines
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.SweepResult
// @Failure 500 {object} response.Response
// @Router /admin/fines/calculate-overdue [post]
func (h *FineHandler) CalculateOverdue(c *fiber.Ctx) error {
	result, err := h.sweeps.SweepOverdue(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to calculate overdue fines")
	}
	return response.Success(c, "Overdue fines calculated", result)
}

// SendReminders runs the due-soon reminder sweep now (Admin only)
// @Summary Send due-soon reminders
// @Tags Fines
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.ReminderResult
// @Failure 500 {object} response.Response
// @Router /admin/fines/send-reminders [post]
func (h *FineHandler) SendReminders(c *fiber.Ctx) error {
	result, err := h.sweeps.SendDueSoonReminders(c.UserContext())
	if err != nil {
		return response.InternalServerError(c, "Failed to send reminders")
	}
	return response.Success(c, "Reminders queued", result)
}

// List lists ledger entries (Admin only)
// @Summary List fines
// @Tags Fines
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, paid or waived"
// @Param fine_type query string false "overdue, damage or both"
// @Param user_id query int false "Borrower"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /admin/fines [get]
func (h *FineHandler) List(c *fiber.Ctx) error {
	params, page := pageOf(c)
	userID, _ := strconv.ParseUint(c.Query("user_id"), 10, 32)
	filter := repositories.FineFilter{
		UserID:   uint(userID),
		Status:   c.Query("status"),
		FineType: c.Query("fine_type"),
	}

	list, err := h.fines.List(c.UserContext(), filter, page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Fines retrieved successfully", fiber.Map{
		"fines":        list.Fines,
		"total_amount": list.TotalAmount,
		"meta":         pagination.GetMeta(params, list.Total),
	})
}

// ListMine lists the caller's ledger entries
// @Summary My fines
// @Tags Fines
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, paid or waived"
// @Success 200 {object} response.Response
// @Router /fines/my [get]
func (h *FineHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	params, page := pageOf(c)

	list, err := h.fines.ListByUser(c.UserContext(), userID, c.Query("status"), page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Fines retrieved successfully", fiber.Map{
		"fines":        list.Fines,
		"total_amount": list.TotalAmount,
		"meta":         pagination.GetMeta(params, list.Total),
	})
}

// Statistics returns the fine overview (Admin only)
// @Summary Fine statistics
// @Tags Fines
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/fines/statistics [get]
func (h *FineHandler) Statistics(c *fiber.Ctx) error {
	stats, err := h.fines.Statistics(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Fine statistics retrieved successfully", stats)
}

// Pay records a fine as paid (Admin only)
// @Summary Mark fine paid
// @Tags Fines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fine ID"
// @Param body body SettleBody false "Payment"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/fines/{id}/pay [put]
func (h *FineHandler) Pay(c *fiber.Ctx) error {
	return h.settle(c, h.fines.MarkPaid, "Fine marked as paid")
}

// Waive forgives a fine (Admin only)
// @Summary Waive fine
// @Tags Fines
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Fine ID"
// @Param body body SettleBody false "Notes"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/fines/{id}/waive [put]
func (h *FineHandler) Waive(c *fiber.Ctx) error {
	return h.settle(c, h.fines.Waive, "Fine waived")
}

type settleFunc = func(ctx context.Context, input *services.SettleInput) (*models.FineHistory, error)

func (h *FineHandler) settle(c *fiber.Ctx, settle settleFunc, message string) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid fine ID")
	}
	adminID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req SettleBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	fine, err := settle(c.UserContext(), &services.SettleInput{
		FineID:        id,
		AdminID:       adminID,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
	})
	if err != nil {
		// a fine that is no longer pending is reported as a bad request here
		return response.FromError(c, err,
			response.Override{Err: domain.ErrFineAlreadyResolved, Status: fiber.StatusBadRequest})
	}
	return response.Success(c, message, fine)
}
