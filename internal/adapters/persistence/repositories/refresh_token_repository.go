package repositories

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// RefreshTokenRepository handles stored refresh tokens
type RefreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *gorm.DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new refresh token
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(token).Error, "create refresh token")
}

// GetByTokenHash gets a refresh token by its hash, revoked or not
func (r *RefreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
		return nil, errors.Wrap(err, "get refresh token")
	}
	return &token, nil
}

// Revoke revokes a token once. It matches nothing if the token was already revoked.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at)
	return applied(result, "revoke refresh token")
}

// RevokeByTokenHash revokes a token by its hash
func (r *RefreshTokenRepository) RevokeByTokenHash(ctx context.Context, tokenHash string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", tokenHash).
		Update("revoked_at", at).Error
	return errors.Wrap(err, "revoke refresh token")
}

// RevokeAllByUserID revokes every live token of a user
func (r *RefreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID uint, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at)
	return result.RowsAffected, errors.Wrap(result.Error, "revoke user refresh tokens")
}

// DeleteExpired removes tokens that expired before now
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.RefreshToken{})
	return result.RowsAffected, errors.Wrap(result.Error, "delete expired refresh tokens")
}
