package repositories

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/core/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// IssueFilter narrows loan listings. State is evaluated against Now.
type IssueFilter struct {
	UserID uint
	State  domain.LoanState
	Now    time.Time
}

// IssueStats summarizes loans
type IssueStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Overdue  int64 `json:"overdue"`
	Returned int64 `json:"returned"`
}

// IssueRepository handles loan record data access
type IssueRepository struct {
	db *gorm.DB
}

// NewIssueRepository creates a new issue repository
func NewIssueRepository(db *gorm.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// Create creates a new loan
func (r *IssueRepository) Create(ctx context.Context, issue *models.Issue) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(issue).Error, "create issue")
}

// GetByID gets an active loan with its user and book
func (r *IssueRepository) GetByID(ctx context.Context, id uint) (*models.Issue, error) {
	var issue models.Issue
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Book").
		Where("id = ? AND is_active = ?", id, true).
		First(&issue).Error
	if err != nil {
		return nil, errors.Wrap(err, "get issue")
	}
	return &issue, nil
}

func (r *IssueRepository) open(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Issue{}).Where("is_active = ? AND is_returned = ?", true, false)
}

func scopeState(db *gorm.DB, state domain.LoanState, now time.Time) *gorm.DB {
	switch state {
	case domain.LoanActive:
		return db.Where("is_returned = ? AND return_date >= ?", false, now)
	case domain.LoanOverdue:
		return db.Where("is_returned = ? AND return_date < ?", false, now)
	case domain.LoanReturned:
		return db.Where("is_returned = ?", true)
	}
	return db
}

// List lists active loans, newest first
func (r *IssueRepository) List(ctx context.Context, filter IssueFilter, page Page) ([]*models.Issue, int64, error) {
	var issues []*models.Issue
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Issue{}).Where("is_active = ?", true)
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	query = scopeState(query, filter.State, filter.Now)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, errors.Wrap(err, "count issues")
	}

	err := page.apply(query.Preload("User").Preload("Book").Order("issue_date DESC")).Find(&issues).Error
	return issues, total, errors.Wrap(err, "list issues")
}

// ListOverdue lists open loans past due, oldest due date first
func (r *IssueRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.Issue, error) {
	var issues []*models.Issue
	query := r.open(ctx).
		Preload("User").
		Preload("Book").
		Where("return_date < ?", now).
		Order("return_date ASC")
	err := Page{Limit: limit}.apply(query).Find(&issues).Error
	return issues, errors.Wrap(err, "list overdue issues")
}

// ListDueBetween lists open loans due in [from, to)
func (r *IssueRepository) ListDueBetween(ctx context.Context, from, to time.Time, onlyUnreminded bool, limit int) ([]*models.Issue, error) {
	var issues []*models.Issue
	query := r.open(ctx).
		Preload("User").
		Preload("Book").
		Where("return_date >= ? AND return_date < ?", from, to)
	if onlyUnreminded {
		query = query.Where("reminder_sent = ?", false)
	}
	err := Page{Limit: limit}.apply(query.Order("return_date ASC")).Find(&issues).Error
	return issues, errors.Wrap(err, "list issues due soon")
}

// MarkReturned closes an open loan. It matches nothing if the loan was already returned.
func (r *IssueRepository) MarkReturned(ctx context.Context, id uint, returnedAt time.Time, fine domain.FineBreakdown, damage domain.DamageType, description string) (bool, error) {
	result := r.open(ctx).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_returned":           true,
			"actual_return_date":    returnedAt,
			"overdue_fine":          fine.OverdueFine,
			"damage_fine":           fine.DamageFine,
			"fine_amount":           fine.TotalFine,
			"damage_type":           string(damage),
			"damage_description":    description,
			"last_fine_calculation": returnedAt,
		})
	return applied(result, "mark issue returned")
}

// UpdateOpenFine writes a recomputed fine only while the loan is still open
func (r *IssueRepository) UpdateOpenFine(ctx context.Context, id uint, fine domain.FineBreakdown, at time.Time) (bool, error) {
	result := r.open(ctx).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"overdue_fine":          fine.OverdueFine,
			"fine_amount":           fine.TotalFine,
			"last_fine_calculation": at,
		})
	return applied(result, "update issue fine")
}

// MarkOverdueNotified sets the overdue notice flag once
func (r *IssueRepository) MarkOverdueNotified(ctx context.Context, id uint) (bool, error) {
	result := r.open(ctx).
		Where("id = ? AND overdue_notification_sent = ?", id, false).
		Update("overdue_notification_sent", true)
	return applied(result, "mark overdue notified")
}

// MarkReminded sets the due-soon reminder flag once
func (r *IssueRepository) MarkReminded(ctx context.Context, id uint) (bool, error) {
	result := r.open(ctx).
		Where("id = ? AND reminder_sent = ?", id, false).
		Update("reminder_sent", true)
	return applied(result, "mark reminded")
}

// SettleFine mirrors a ledger settlement onto the loan
func (r *IssueRepository) SettleFine(ctx context.Context, id uint, status domain.FineStatus, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Issue{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"fine_status":  string(status),
			"fine_paid":    true,
			"fine_paid_at": at,
		}).Error
	return errors.Wrap(err, "settle issue fine")
}

// ReopenFine marks the loan as owing again after a new pending ledger entry
func (r *IssueRepository) ReopenFine(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).
		Model(&models.Issue{}).
		Where("id = ? AND fine_status <> ?", id, string(domain.FinePending)).
		Updates(map[string]interface{}{
			"fine_status":  string(domain.FinePending),
			"fine_paid":    false,
			"fine_paid_at": nil,
		}).Error
	return errors.Wrap(err, "reopen issue fine")
}

// Deactivate hides a returned loan from listings. Open loans are never matched.
func (r *IssueRepository) Deactivate(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Issue{}).
		Where("id = ? AND is_active = ? AND is_returned = ?", id, true, true).
		Update("is_active", false)
	return applied(result, "deactivate issue")
}

// Stats counts loans by derived state
func (r *IssueRepository) Stats(ctx context.Context, now time.Time) (*IssueStats, error) {
	var stats IssueStats
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Issue{}).Where("is_active = ?", true)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, errors.Wrap(err, "count issues")
	}
	if err := scopeState(base(), domain.LoanActive, now).Count(&stats.Active).Error; err != nil {
		return nil, errors.Wrap(err, "count active issues")
	}
	if err := scopeState(base(), domain.LoanOverdue, now).Count(&stats.Overdue).Error; err != nil {
		return nil, errors.Wrap(err, "count overdue issues")
	}
	if err := scopeState(base(), domain.LoanReturned, now).Count(&stats.Returned).Error; err != nil {
		return nil, errors.Wrap(err, "count returned issues")
	}
	return &stats, nil
}
