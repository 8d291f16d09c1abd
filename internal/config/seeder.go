package config

import (
	"context"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"
	"libraryhub/internal/pkg/password"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seeder handles database seeding
type Seeder struct {
	db    *gorm.DB
	admin AdminSeed
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, admin AdminSeed) *Seeder {
	return &Seeder{db: db, admin: admin}
}

// Run executes all seeders. Each seeder is idempotent.
func (s *Seeder) Run(ctx context.Context) error {
	logger.Info("running database seeders")

	if err := s.seedCategories(ctx); err != nil {
		return err
	}
	if err := s.seedAdminUser(ctx); err != nil {
		return err
	}

	logger.Info("database seeding completed")
	return nil
}

// seedCategories inserts the known categories that are missing
func (s *Seeder) seedCategories(ctx context.Context) error {
	categories := make([]models.Category, len(domain.KnownCategories))
	for i, name := range domain.KnownCategories {
		categories[i] = models.Category{Name: name, IsActive: true}
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&categories)
	if result.Error != nil {
		return errors.Wrap(result.Error, "seed categories")
	}
	if result.RowsAffected > 0 {
		logger.Info("categories seeded", zap.Int64("count", result.RowsAffected))
	}
	return nil
}

// seedAdminUser creates the bootstrap admin when no admin exists yet
func (s *Seeder) seedAdminUser(ctx context.Context) error {
	if s.admin.Username == "" || s.admin.Password == "" {
		logger.Warn("admin seed skipped, ADMIN_USERNAME or ADMIN_PASSWORD not set")
		return nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", string(domain.RoleAdmin)).Count(&count).Error; err != nil {
		return errors.Wrap(err, "count admins")
	}
	if count > 0 {
		return nil
	}

	hashed, err := password.Hash(s.admin.Password)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username: s.admin.Username,
		Email:    s.admin.Email,
		Name:     "Administrator",
		Password: hashed,
		Role:     string(domain.RoleAdmin),
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(admin).Error; err != nil {
		return errors.Wrap(err, "create admin")
	}

	logger.Info("admin user created", zap.String("username", admin.Username))
	return nil
}
