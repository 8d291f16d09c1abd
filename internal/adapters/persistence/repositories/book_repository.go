package repositories

import (
	"context"

	"libraryhub/internal/adapters/persistence/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// BookFilter narrows catalog listings
type BookFilter struct {
	Search     string
	CategoryID uint
	Available  bool
}

// BookStats summarizes inventory
type BookStats struct {
	TotalTitles     int64 `json:"total_titles"`
	TotalCopies     int64 `json:"total_copies"`
	AvailableCopies int64 `json:"available_copies"`
	IssuedCopies    int64 `json:"issued_copies"`
}

// BookRepository handles inventory ledger access
type BookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository
func NewBookRepository(db *gorm.DB) *BookRepository {
	return &BookRepository{db: db}
}

// Create creates a new book
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(book).Error, "create book")
}

// GetByID gets an active book by ID with its category
func (r *BookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).
		Preload("Category").
		Where("id = ? AND is_active = ?", id, true).
		First(&book).Error
	if err != nil {
		return nil, errors.Wrap(err, "get book")
	}
	return &book, nil
}

// GetByISBN gets a book by ISBN
func (r *BookRepository) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, errors.Wrap(err, "get book by isbn")
	}
	return &book, nil
}

// FindByTitleAuthor matches a book by exact title and author
func (r *BookRepository) FindByTitleAuthor(ctx context.Context, title, author string) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).
		Where("title = ? AND author = ?", title, author).
		Order("id").
		First(&book).Error
	if err != nil {
		return nil, errors.Wrap(err, "get book by title and author")
	}
	return &book, nil
}

// List lists active books with pagination
func (r *BookRepository) List(ctx context.Context, filter BookFilter, page Page) ([]*models.Book, int64, error) {
	var books []*models.Book
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Book{}).Where("is_active = ?", true)
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("title LIKE ? OR author LIKE ? OR isbn LIKE ?", like, like, like)
	}
	if filter.CategoryID != 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Available {
		query = query.Where("available_copies > 0")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count books")
	}

	err := page.apply(query.Preload("Category").Order("title")).Find(&books).Error
	return books, total, errors.Wrap(err, "list books")
}

// DecrementAvailable takes n copies out of stock only if they are available
func (r *BookRepository) DecrementAvailable(ctx context.Context, id uint, n int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND is_active = ? AND available_copies >= ?", id, true, n).
		UpdateColumn("available_copies", gorm.Expr("available_copies - ?", n))
	return applied(result, "decrement available copies")
}

// IncrementAvailable puts n copies back, saturating at total_copies
func (r *BookRepository) IncrementAvailable(ctx context.Context, id uint, n int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		UpdateColumn("available_copies", gorm.Expr(
			"CASE WHEN available_copies + ? > total_copies THEN total_copies ELSE available_copies + ? END", n, n))
	return applied(result, "increment available copies")
}

// AddCopies grows both the total and the available count
func (r *BookRepository) AddCopies(ctx context.Context, id uint, n int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"total_copies":     gorm.Expr("total_copies + ?", n),
			"available_copies": gorm.Expr("available_copies + ?", n),
			"is_active":        true,
		})
	return applied(result, "add copies")
}

// Deactivate hides a book from the catalog
func (r *BookRepository) Deactivate(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	return applied(result, "deactivate book")
}

// Exists reports whether a book row exists regardless of stock
func (r *BookRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Book{}).Where("id = ? AND is_active = ?", id, true).Count(&count).Error
	return count > 0, errors.Wrap(err, "check book")
}

// Stats sums inventory across active books
func (r *BookRepository) Stats(ctx context.Context) (*BookStats, error) {
	var stats BookStats
	err := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Select("COUNT(*) AS total_titles, COALESCE(SUM(total_copies), 0) AS total_copies, COALESCE(SUM(available_copies), 0) AS available_copies").
		Where("is_active = ?", true).
		Scan(&stats).Error
	if err != nil {
		return nil, errors.Wrap(err, "book stats")
	}
	stats.IssuedCopies = stats.TotalCopies - stats.AvailableCopies
	return &stats, nil
}
