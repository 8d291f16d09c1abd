package handlers

import (
	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// IssueHandler handles loan endpoints
type IssueHandler struct {
	loans *services.LoanService
	fines *services.FineService
}

// NewIssueHandler creates a new issue handler
func NewIssueHandler(loans *services.LoanService, fines *services.FineService) *IssueHandler {
	return &IssueHandler{loans: loans, fines: fines}
}

// ReturnBody describes the condition a book came back in
type ReturnBody struct {
	DamageType        string           `json:"damage_type"`
	DamageFine        *decimal.Decimal `json:"damage_fine" swaggertype:"number"`
	DamageDescription string           `json:"damage_description"`
}

func (h *IssueHandler) responses(issues []*models.Issue) []*models.IssueResponse {
	now := h.loans.Now()
	out := make([]*models.IssueResponse, len(issues))
	for i, issue := range issues {
		out[i] = issue.ToResponse(now)
	}
	return out
}

// Issue lends a book without a request (Admin only, when enabled)
// @Summary Issue a book directly
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.DirectIssueInput true "Borrower and book"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/issues [post]
func (h *IssueHandler) Issue(c *fiber.Ctx) error {
	adminID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req services.DirectIssueInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.AdminID = adminID

	issue, err := h.loans.Issue(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Book issued successfully", issue.ToResponse(h.loans.Now()))
}

// List lists loans by derived state (Admin only)
// @Summary List loans
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param state query string false "active, overdue or returned"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /admin/issues [get]
func (h *IssueHandler) List(c *fiber.Ctx) error {
	params, page := pageOf(c)
	state := domain.LoanState(c.Query("state"))
	switch state {
	case "", domain.LoanActive, domain.LoanOverdue, domain.LoanReturned:
	default:
		return response.BadRequest(c, "state must be active, overdue or returned")
	}

	issues, total, err := h.loans.List(c.UserContext(), state, page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Issues retrieved successfully", pagination.NewResponse(h.responses(issues), params, total))
}

// ListOverdue lists overdue loans (Admin only)
// @Summary Overdue loans
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/issues/overdue [get]
func (h *IssueHandler) ListOverdue(c *fiber.Ctx) error {
	issues, err := h.loans.ListOverdue(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Overdue issues retrieved successfully", h.responses(issues))
}

// ListDueSoon lists loans due within the reminder window (Admin only)
// @Summary Loans due soon
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/issues/due-soon [get]
func (h *IssueHandler) ListDueSoon(c *fiber.Ctx) error {
	issues, err := h.loans.ListDueSoon(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Due soon issues retrieved successfully", h.responses(issues))
}

// ListMine lists the caller's loans
// @Summary My loans
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /issues/my [get]
func (h *IssueHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	params, page := pageOf(c)
	issues, total, err := h.loans.ListByUser(c.UserContext(), userID, page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Issues retrieved successfully", pagination.NewResponse(h.responses(issues), params, total))
}

// Return closes a loan and settles its fine breakdown (Admin only)
// @Summary Return a book
// @Tags Issues
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID"
// @Param body body ReturnBody false "Damage"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/issues/{id}/return [put]
func (h *IssueHandler) Return(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid issue ID")
	}

	var req ReturnBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	result, err := h.loans.Return(c.UserContext(), &services.ReturnInput{
		IssueID:           id,
		DamageType:        domain.DamageType(req.DamageType),
		DamageFine:        req.DamageFine,
		DamageDescription: req.DamageDescription,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Book returned successfully", result)
}

// Delete hides a returned loan record (Admin only)
// @Summary Delete loan record
// @Description Open loans are refused with 409 until the book is returned
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/issues/{id} [delete]
func (h *IssueHandler) Delete(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid issue ID")
	}
	if err := h.loans.Deactivate(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Issue deleted successfully", nil)
}

// Fine computes the current fine of a loan
// @Summary Current fine of a loan
// @Description Open loans are recomputed unless a fresh figure is stored, returned loans report the frozen amount
// @Tags Issues
// @Produce json
// @Security BearerAuth
// @Param id path int true "Issue ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /issues/{id}/fine [get]
func (h *IssueHandler) Fine(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid issue ID")
	}
	fine, err := h.fines.ComputeFine(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Fine calculated successfully", fine)
}
