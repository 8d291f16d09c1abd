package services

import (
	"context"
	"strings"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// InventoryService handles the catalog and stock counts
type InventoryService struct {
	db *gorm.DB
}

// NewInventoryService creates a new inventory service
func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{db: db}
}

// CreateBookInput represents a new catalog entry
type CreateBookInput struct {
	ISBN          string `json:"isbn"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	Publisher     string `json:"publisher"`
	PublishedYear int    `json:"published_year"`
	Description   string `json:"description"`
	CategoryID    uint   `json:"category_id"`
	TotalCopies   int    `json:"total_copies"`
}

// CreateBook adds a book with every copy available
func (s *InventoryService) CreateBook(ctx context.Context, input *CreateBookInput) (*models.Book, error) {
	switch {
	case strings.TrimSpace(input.Title) == "":
		return nil, domain.NewValidationError("title", "is required")
	case strings.TrimSpace(input.Author) == "":
		return nil, domain.NewValidationError("author", "is required")
	case strings.TrimSpace(input.ISBN) == "":
		return nil, domain.NewValidationError("isbn", "is required")
	case input.TotalCopies < 1:
		return nil, domain.NewValidationError("total_copies", "must be at least 1")
	}

	if _, err := repositories.NewCategoryRepository(s.db).GetByID(ctx, input.CategoryID); err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}

	book := &models.Book{
		ISBN:            strings.TrimSpace(input.ISBN),
		Title:           strings.TrimSpace(input.Title),
		Author:          strings.TrimSpace(input.Author),
		Publisher:       input.Publisher,
		PublishedYear:   input.PublishedYear,
		Description:     input.Description,
		CategoryID:      input.CategoryID,
		TotalCopies:     input.TotalCopies,
		AvailableCopies: input.TotalCopies,
		IsActive:        true,
	}
	if err := repositories.NewBookRepository(s.db).Create(ctx, book); err != nil {
		if repositories.IsDuplicate(err) {
			return nil, domain.ErrDuplicateISBN
		}
		return nil, err
	}

	logger.Info("book created", zap.Uint("book_id", book.ID), zap.String("isbn", book.ISBN))
	return book, nil
}

// GetBook gets an active book
func (s *InventoryService) GetBook(ctx context.Context, id uint) (*models.Book, error) {
	book, err := repositories.NewBookRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// ListBooks lists the catalog
func (s *InventoryService) ListBooks(ctx context.Context, filter repositories.BookFilter, page repositories.Page) ([]*models.Book, int64, error) {
	return repositories.NewBookRepository(s.db).List(ctx, filter, page)
}

// DeactivateBook hides a book. Books are never physically deleted.
func (s *InventoryService) DeactivateBook(ctx context.Context, id uint) error {
	ok, err := repositories.NewBookRepository(s.db).Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrBookNotFound
	}
	return nil
}

// ListCategories lists active categories
func (s *InventoryService) ListCategories(ctx context.Context) ([]*models.Category, error) {
	return repositories.NewCategoryRepository(s.db).List(ctx)
}

// MergeOrCreateFromDonation credits donated copies inside tx. It matches an existing
// book by ISBN, then by title and author, and otherwise creates one.
func MergeOrCreateFromDonation(ctx context.Context, tx *gorm.DB, donation *models.BookDonation, year int) (*models.Book, bool, error) {
	books := repositories.NewBookRepository(tx)

	existing, err := findDonatedBook(ctx, books, donation)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		if _, err := books.AddCopies(ctx, existing.ID, donation.Quantity); err != nil {
			return nil, false, err
		}
		logger.Info("donation merged into existing book",
			zap.Uint("book_id", existing.ID),
			zap.Int("copies", donation.Quantity))
		existing.TotalCopies += donation.Quantity
		existing.AvailableCopies += donation.Quantity
		return existing, false, nil
	}

	categoryName := domain.ResolveCategoryName(donation.CategoryName)
	description := ""
	if categoryName == domain.FallbackCategory {
		description = "Miscellaneous donated books"
	}
	category, err := repositories.NewCategoryRepository(tx).FirstOrCreate(ctx, categoryName, description)
	if err != nil {
		return nil, false, err
	}

	isbn := strings.TrimSpace(donation.ISBN)
	if isbn == "" {
		isbn = "DONATED-" + uuid.NewString()
	}
	publisher := donation.Publisher
	if publisher == "" {
		publisher = "Donated"
	}
	published := donation.PublicationYear
	if published == 0 {
		published = year
	}
	bookDescription := donation.Description
	if bookDescription == "" {
		bookDescription = "Donated by " + donation.DonorName
	}

	book := &models.Book{
		ISBN:            isbn,
		Title:           donation.BookTitle,
		Author:          donation.Author,
		Publisher:       publisher,
		PublishedYear:   published,
		Description:     bookDescription,
		CategoryID:      category.ID,
		TotalCopies:     donation.Quantity,
		AvailableCopies: donation.Quantity,
		IsActive:        true,
	}
	if err := books.Create(ctx, book); err != nil {
		return nil, false, err
	}

	logger.Info("donation created new book",
		zap.Uint("book_id", book.ID),
		zap.String("category", category.Name),
		zap.Int("copies", donation.Quantity))
	return book, true, nil
}

func findDonatedBook(ctx context.Context, books *repositories.BookRepository, donation *models.BookDonation) (*models.Book, error) {
	if isbn := strings.TrimSpace(donation.ISBN); isbn != "" {
		book, err := books.GetByISBN(ctx, isbn)
		if err == nil {
			return book, nil
		}
		if !repositories.IsNotFound(err) {
			return nil, err
		}
	}

	book, err := books.FindByTitleAuthor(ctx, donation.BookTitle, donation.Author)
	if err == nil {
		return book, nil
	}
	if repositories.IsNotFound(err) {
		return nil, nil
	}
	return nil, err
}
