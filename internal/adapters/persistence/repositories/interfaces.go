package repositories

import (
	"context"

	"libraryhub/internal/adapters/persistence/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, offset, limit int) ([]*models.User, int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// IsNotFound reports whether err came from a lookup that matched no row
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicate reports whether err is a unique constraint violation
func IsDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// Page is an offset/limit window. Limit <= 0 means no limit.
type Page struct {
	Offset int
	Limit  int
}

func (p Page) apply(db *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		db = db.Limit(p.Limit)
	}
	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	return db
}

// applied turns a conditional update result into (matched, error)
func applied(result *gorm.DB, op string) (bool, error) {
	if result.Error != nil {
		return false, errors.Wrap(result.Error, op)
	}
	return result.RowsAffected > 0, nil
}
