package repositories

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/core/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// OutboxRepository handles notification outbox access
type OutboxRepository struct {
	db *gorm.DB
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create appends an event
func (r *OutboxRepository) Create(ctx context.Context, event *models.NotificationOutbox) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(event).Error, "create outbox event")
}

// ListDue lists pending events whose next attempt is due
func (r *OutboxRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.NotificationOutbox, error) {
	var events []*models.NotificationOutbox
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_attempt_at <= ?", string(domain.OutboxPending), now).
		Order("next_attempt_at ASC, id ASC")
	err := Page{Limit: limit}.apply(query).Find(&events).Error
	return events, errors.Wrap(err, "list due outbox events")
}

// Claim moves a pending event to sending so only one dispatcher delivers it
func (r *OutboxRepository) Claim(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationOutbox{}).
		Where("id = ? AND status = ?", id, string(domain.OutboxPending)).
		Update("status", string(domain.OutboxSending))
	return applied(result, "claim outbox event")
}

// MarkSent records a successful delivery
func (r *OutboxRepository) MarkSent(ctx context.Context, id uint, attempts int, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(domain.OutboxSent),
			"attempts":   attempts,
			"sent_at":    at,
			"last_error": "",
		}).Error
	return errors.Wrap(err, "mark outbox event sent")
}

// Reschedule returns a failed event to pending with a later attempt time
func (r *OutboxRepository) Reschedule(ctx context.Context, id uint, attempts int, next time.Time, lastErr string) error {
	err := r.db.WithContext(ctx).
		Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          string(domain.OutboxPending),
			"attempts":        attempts,
			"next_attempt_at": next,
			"last_error":      lastErr,
		}).Error
	return errors.Wrap(err, "reschedule outbox event")
}

// MarkFailed gives up on an event
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint, attempts int, lastErr string) error {
	err := r.db.WithContext(ctx).
		Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     string(domain.OutboxFailed),
			"attempts":   attempts,
			"last_error": lastErr,
		}).Error
	return errors.Wrap(err, "mark outbox event failed")
}

// ReleaseStale returns events stuck in sending since before cutoff to pending
func (r *OutboxRepository) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.NotificationOutbox{}).
		Where("status = ? AND updated_at < ?", string(domain.OutboxSending), cutoff).
		Update("status", string(domain.OutboxPending))
	return result.RowsAffected, errors.Wrap(result.Error, "release stale outbox events")
}

// CountByStatus counts events in status
func (r *OutboxRepository) CountByStatus(ctx context.Context, status domain.OutboxStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NotificationOutbox{}).Where("status = ?", string(status)).Count(&count).Error
	return count, errors.Wrap(err, "count outbox events")
}
