package handlers

import (
	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RequestHandler handles borrow request endpoints
type RequestHandler struct {
	requests *services.RequestService
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(requests *services.RequestService) *RequestHandler {
	return &RequestHandler{requests: requests}
}

// SubmitRequestBody is the book a member asks for
type SubmitRequestBody struct {
	BookID uint `json:"book_id"`
}

// ResolveRequestBody is an admin decision on a request
type ResolveRequestBody struct {
	Status   string `json:"status"`
	Comments string `json:"comments"`
}

// Submit files a borrow request
// @Summary Request a book
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SubmitRequestBody true "Book"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /requests [post]
func (h *RequestHandler) Submit(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req SubmitRequestBody
	if err := c.BodyParser(&req); err != nil || req.BookID == 0 {
		return response.BadRequest(c, "book_id is required")
	}

	request, err := h.requests.Submit(c.UserContext(), userID, req.BookID)
	if err != nil {
		return response.FromError(c, err,
			response.Override{Err: domain.ErrNoCopiesAvailable, Status: fiber.StatusBadRequest},
			response.Override{Err: domain.ErrDuplicatePendingRequest, Status: fiber.StatusBadRequest})
	}
	return response.Created(c, "Book request submitted successfully", request)
}

// ListMine lists the caller's requests
// @Summary My requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /requests/my [get]
func (h *RequestHandler) ListMine(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}
	requests, err := h.requests.ListByUser(c.UserContext(), userID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Requests retrieved successfully", requests)
}

// List lists requests (Admin only)
// @Summary List requests
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /admin/requests [get]
func (h *RequestHandler) List(c *fiber.Ctx) error {
	params, page := pageOf(c)
	requests, total, err := h.requests.List(c.UserContext(), c.Query("status"), page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Requests retrieved successfully", pagination.NewResponse(requests, params, total))
}

// PendingCount counts requests waiting for a decision (Admin only)
// @Summary Pending request count
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/requests/pending/count [get]
func (h *RequestHandler) PendingCount(c *fiber.Ctx) error {
	count, err := h.requests.PendingCount(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Pending requests counted", fiber.Map{"count": count})
}

// Resolve approves or rejects a pending request (Admin only)
// @Summary Resolve request
// @Description Approval reserves a copy and opens the loan in one transaction
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Request ID"
// @Param body body ResolveRequestBody true "Decision"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /admin/requests/{id}/status [put]
func (h *RequestHandler) Resolve(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid request ID")
	}
	adminID, ok := middleware.UserID(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req ResolveRequestBody
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	request, err := h.requests.Resolve(c.UserContext(), &services.ResolveInput{
		RequestID: id,
		Status:    domain.RequestStatus(req.Status),
		AdminID:   adminID,
		Comments:  req.Comments,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Request updated successfully", request)
}
