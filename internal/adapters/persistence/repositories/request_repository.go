package repositories

import (
	"context"
	"fmt"
	"time"

	"libraryhub/internal/adapters/persistence/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PendingRequestKey is the unique key held by a pending request
func PendingRequestKey(userID, bookID uint) string {
	return fmt.Sprintf("%d:%d", userID, bookID)
}

// RequestRepository handles borrow request data access
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create creates a new request
func (r *RequestRepository) Create(ctx context.Context, req *models.BookRequest) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(req).Error, "create request")
}

// GetByID gets a request with its user and book
func (r *RequestRepository) GetByID(ctx context.Context, id uint) (*models.BookRequest, error) {
	var req models.BookRequest
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Book").
		First(&req, id).Error
	if err != nil {
		return nil, errors.Wrap(err, "get request")
	}
	return &req, nil
}

// ExistsPending checks for a pending request by the same user for the same book
func (r *RequestRepository) ExistsPending(ctx context.Context, userID, bookID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.BookRequest{}).
		Where("user_id = ? AND book_id = ? AND status = ?", userID, bookID, "pending").
		Count(&count).Error
	return count > 0, errors.Wrap(err, "check pending request")
}

// Resolve flips a pending request to status. It matches nothing if the request is no longer pending.
func (r *RequestRepository) Resolve(ctx context.Context, id uint, status string, adminID uint, comments string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BookRequest{}).
		Where("id = ? AND status = ?", id, "pending").
		Updates(map[string]interface{}{
			"status":              status,
			"pending_key":         nil,
			"admin_id":            adminID,
			"admin_response_date": at,
			"admin_comments":      comments,
		})
	return applied(result, "resolve request")
}

// LinkIssue records the loan created by an approval
func (r *RequestRepository) LinkIssue(ctx context.Context, id, issueID uint) error {
	err := r.db.WithContext(ctx).
		Model(&models.BookRequest{}).
		Where("id = ?", id).
		Update("issue_id", issueID).Error
	return errors.Wrap(err, "link issue")
}

// List lists requests, newest first, optionally by status
func (r *RequestRepository) List(ctx context.Context, status string, page Page) ([]*models.BookRequest, int64, error) {
	var requests []*models.BookRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.BookRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count requests")
	}

	err := page.apply(query.Preload("User").Preload("Book").Order("request_date DESC")).Find(&requests).Error
	return requests, total, errors.Wrap(err, "list requests")
}

// ListByUser lists a user's requests
func (r *RequestRepository) ListByUser(ctx context.Context, userID uint) ([]*models.BookRequest, error) {
	var requests []*models.BookRequest
	err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("request_date DESC").
		Find(&requests).Error
	return requests, errors.Wrap(err, "list user requests")
}

// CountByStatus counts requests in status
func (r *RequestRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BookRequest{}).Where("status = ?", status).Count(&count).Error
	return count, errors.Wrap(err, "count requests")
}
