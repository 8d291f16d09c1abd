package repositories

import (
	"context"

	"libraryhub/internal/adapters/persistence/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CategoryRepository handles category data access
type CategoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository creates a new category repository
func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List lists active categories
func (r *CategoryRepository) List(ctx context.Context) ([]*models.Category, error) {
	var categories []*models.Category
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name").Find(&categories).Error
	return categories, errors.Wrap(err, "list categories")
}

// GetByID gets a category by ID
func (r *CategoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, errors.Wrap(err, "get category")
	}
	return &category, nil
}

// FirstOrCreate returns the category called name, creating it when missing
func (r *CategoryRepository) FirstOrCreate(ctx context.Context, name, description string) (*models.Category, error) {
	category := models.Category{Name: name}
	err := r.db.WithContext(ctx).
		Where(models.Category{Name: name}).
		Attrs(models.Category{Description: description, IsActive: true}).
		FirstOrCreate(&category).Error
	if err != nil {
		return nil, errors.Wrap(err, "first or create category")
	}
	return &category, nil
}
