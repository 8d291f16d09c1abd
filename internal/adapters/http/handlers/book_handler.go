package handlers

import (
	"strconv"

	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles catalog endpoints
type BookHandler struct {
	inventory *services.InventoryService
}

// NewBookHandler creates a new book handler
func NewBookHandler(inventory *services.InventoryService) *BookHandler {
	return &BookHandler{inventory: inventory}
}

// ListBooks lists the catalog
// @Summary List books
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param search query string false "Title, author or ISBN"
// @Param category_id query int false "Category"
// @Param available query bool false "Only books with a free copy"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Router /books [get]
func (h *BookHandler) ListBooks(c *fiber.Ctx) error {
	params, page := pageOf(c)
	categoryID, _ := strconv.ParseUint(c.Query("category_id"), 10, 32)
	filter := repositories.BookFilter{
		Search:     c.Query("search"),
		CategoryID: uint(categoryID),
		Available:  c.QueryBool("available"),
	}

	books, total, err := h.inventory.ListBooks(c.UserContext(), filter, page)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Books retrieved successfully", pagination.NewResponse(books, params, total))
}

// GetBook gets one book
// @Summary Get book
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [get]
func (h *BookHandler) GetBook(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid book ID")
	}
	book, err := h.inventory.GetBook(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Book retrieved successfully", book)
}

// CreateBook adds a catalog entry (Admin only)
// @Summary Create book
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateBookInput true "Book"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /books [post]
func (h *BookHandler) CreateBook(c *fiber.Ctx) error {
	var req services.CreateBookInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	book, err := h.inventory.CreateBook(c.UserContext(), &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "Book created successfully", book)
}

// DeleteBook deactivates a book (Admin only)
// @Summary Delete book
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id} [delete]
func (h *BookHandler) DeleteBook(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return response.BadRequest(c, "Invalid book ID")
	}
	if err := h.inventory.DeactivateBook(c.UserContext(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Book deleted successfully", nil)
}

// ListCategories lists active categories
// @Summary List categories
// @Tags Books
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /categories [get]
func (h *BookHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.inventory.ListCategories(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Categories retrieved successfully", categories)
}
