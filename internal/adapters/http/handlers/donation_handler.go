package handlers

import (
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DonationHandler handles book donation endpoints
type DonationHandler struct {
	donations *services.DonationService
}

// NewDonationHandler creates a new donation handler
func NewDonationHandler(donations *services.DonationService) *DonationHandler {
	return &DonationHandler{donations: donations}
}

// DonationStatusBody is an admin status change
type DonationStatusBody struct {
	Status   string `json:"status"`
	Comments string `json:"comments"`
}

// Submit records a donation offer
// @Summary Offer a donation
// @Tags Donations
// @Accept json
// @Produce json
// @Param body body services.DonationInput true "Donation"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /donations [post]
func (h *DonationHandler) Submit(c *fiber.Ctx) error {
	var req services.DonationInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	donation, err := h.donations.Submit(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Thank you, your donation has been recorded", donation)
}

// List lists donations (Admin only)
// @Summary List donations
// @Tags Donations
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved, rejected or collected"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /admin/donations [get]
func (h *DonationHandler) List(c *fiber.Ctx) error {
	params, page := pageOf(c)
	donations, total, err := h.donations.List(c.UserContext(), c.Query("status"), page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Donations retrieved successfully", pagination.NewResponse(donations, params, total))
}

// Search finds donations by donor or book (Admin only)
// @Summary Search donations
// @Tags Donations
// @Produce json
// @Security BearerAuth
// @Param q query string true "Donor name, email, title or author"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /admin/donations/search [get]
func (h *DonationHandler) Search(c *fiber.Ctx) error {
	donations, err := h.donations.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Donations retrieved successfully", donations)
}

// Get gets one donation (Admin only)
// @Summary Get donation
// @Tags Donations
// @Produce json
// @Security BearerAuth
// @Param id path int true "Donation ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/donations/{id} [get]
func (h *DonationHandler) Get(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid donation ID")
	}
	donation, err := h.donations.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Donation retrieved successfully", donation)
}

// UpdateStatus moves a donation through its workflow (Admin only)
// @Summary Update donation status
// @Description Collecting a donation adds its copies to the catalog
// @Tags Donations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Donation ID"
// @Param body body DonationStatusBody true "Status"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /admin/donations/{id}/status [put]
func (h *DonationHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid donation ID")
	}

	var req DonationStatusBody
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	donation, err := h.donations.UpdateStatus(c.UserContext(), &services.DonationStatusInput{
		DonationID: id,
		Status:     domain.DonationStatus(req.Status),
		Comments:   req.Comments,
	})
	if err != nil {
		return response.FromError(c, err,
			response.Override{Err: domain.ErrDonationCollected, Status: fiber.StatusBadRequest})
	}
	return response.Success(c, "Donation status updated successfully", donation)
}
