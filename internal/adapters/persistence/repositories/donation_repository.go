package repositories

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DonationRepository handles donation data access
type DonationRepository struct {
	db *gorm.DB
}

// NewDonationRepository creates a new donation repository
func NewDonationRepository(db *gorm.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// Create creates a new donation
func (r *DonationRepository) Create(ctx context.Context, donation *models.BookDonation) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(donation).Error, "create donation")
}

// GetByID gets an active donation
func (r *DonationRepository) GetByID(ctx context.Context, id uint) (*models.BookDonation, error) {
	var donation models.BookDonation
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&donation).Error; err != nil {
		return nil, errors.Wrap(err, "get donation")
	}
	return &donation, nil
}

// List lists donations, newest first, optionally by status
func (r *DonationRepository) List(ctx context.Context, status string, page Page) ([]*models.BookDonation, int64, error) {
	var donations []*models.BookDonation
	var total int64

	query := r.db.WithContext(ctx).Model(&models.BookDonation{}).Where("is_active = ?", true)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count donations")
	}

	err := page.apply(query.Order("donation_date DESC")).Find(&donations).Error
	return donations, total, errors.Wrap(err, "list donations")
}

// Search matches title, author, donor name, donor email or ISBN
func (r *DonationRepository) Search(ctx context.Context, q string, limit int) ([]*models.BookDonation, error) {
	var donations []*models.BookDonation
	like := "%" + q + "%"
	query := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("book_title LIKE ? OR author LIKE ? OR donor_name LIKE ? OR donor_email LIKE ? OR isbn LIKE ?", like, like, like, like, like).
		Order("donation_date DESC")
	err := Page{Limit: limit}.apply(query).Find(&donations).Error
	return donations, errors.Wrap(err, "search donations")
}

// TransitionStatus moves a donation out of fromStatus. It matches nothing if the status changed meanwhile.
func (r *DonationRepository) TransitionStatus(ctx context.Context, id uint, fromStatus, toStatus, comments string) (bool, error) {
	updates := map[string]interface{}{"status": toStatus}
	if comments != "" {
		updates["admin_comments"] = comments
	}
	result := r.db.WithContext(ctx).
		Model(&models.BookDonation{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	return applied(result, "update donation status")
}

// MarkCollected links the credited book
func (r *DonationRepository) MarkCollected(ctx context.Context, id, bookID uint, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.BookDonation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"book_id": bookID, "collected_at": at}).Error
	return errors.Wrap(err, "mark donation collected")
}

// CountByStatus counts donations in status
func (r *DonationRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BookDonation{}).Where("status = ? AND is_active = ?", status, true).Count(&count).Error
	return count, errors.Wrap(err, "count donations")
}
