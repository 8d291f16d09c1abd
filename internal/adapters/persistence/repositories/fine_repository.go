package repositories

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/core/domain"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FineFilter narrows ledger listings
type FineFilter struct {
	UserID   uint
	Status   string
	FineType string
}

// FineTypeTotal aggregates ledger entries of one type
type FineTypeTotal struct {
	FineType string          `json:"fine_type"`
	Count    int64           `json:"count"`
	Amount   decimal.Decimal `json:"amount"`
}

// FineSummary is a count and total of ledger entries
type FineSummary struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// FineRepository handles fine ledger data access
type FineRepository struct {
	db *gorm.DB
}

// NewFineRepository creates a new fine repository
func NewFineRepository(db *gorm.DB) *FineRepository {
	return &FineRepository{db: db}
}

// Create creates a new ledger entry
func (r *FineRepository) Create(ctx context.Context, fine *models.FineHistory) error {
	return errors.Wrap(r.db.WithContext(ctx).Create(fine).Error, "create fine")
}

// GetByID gets a ledger entry with its user and loan
func (r *FineRepository) GetByID(ctx context.Context, id uint) (*models.FineHistory, error) {
	var fine models.FineHistory
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Issue.Book").
		Where("id = ? AND is_active = ?", id, true).
		First(&fine).Error
	if err != nil {
		return nil, errors.Wrap(err, "get fine")
	}
	return &fine, nil
}

// GetPendingByIssue gets the pending entry for a loan
func (r *FineRepository) GetPendingByIssue(ctx context.Context, issueID uint) (*models.FineHistory, error) {
	var fine models.FineHistory
	err := r.db.WithContext(ctx).
		Where("issue_id = ? AND status = ?", issueID, string(domain.FinePending)).
		First(&fine).Error
	if err != nil {
		return nil, errors.Wrap(err, "get pending fine")
	}
	return &fine, nil
}

// SettledParts returns the overdue and damage amounts already paid or waived for a loan
func (r *FineRepository) SettledParts(ctx context.Context, issueID uint) (overdue, damage decimal.Decimal, err error) {
	var settled []*models.FineHistory
	err = r.db.WithContext(ctx).
		Select("overdue_amount", "damage_amount").
		Where("issue_id = ? AND status IN ?", issueID, []string{string(domain.FinePaid), string(domain.FineWaived)}).
		Find(&settled).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "sum settled fines")
	}

	overdue, damage = decimal.Zero, decimal.Zero
	for _, entry := range settled {
		overdue = overdue.Add(entry.OverdueAmount)
		damage = damage.Add(entry.DamageAmount)
	}
	return overdue, damage, nil
}

// UpdatePending overwrites the amounts of a pending entry
func (r *FineRepository) UpdatePending(ctx context.Context, id uint, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FineHistory{}).
		Where("id = ? AND status = ?", id, string(domain.FinePending)).
		Updates(updates)
	return applied(result, "update pending fine")
}

// Settle moves a pending entry to paid or waived. It matches nothing if the entry is already settled.
func (r *FineRepository) Settle(ctx context.Context, id uint, status domain.FineStatus, method domain.PaymentMethod, collectedBy uint, notes string, at time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":         string(status),
		"pending_key":    nil,
		"paid_at":        at,
		"collected_by":   collectedBy,
		"payment_method": string(method),
	}
	if notes != "" {
		updates["notes"] = notes
	}
	result := r.db.WithContext(ctx).
		Model(&models.FineHistory{}).
		Where("id = ? AND status = ?", id, string(domain.FinePending)).
		Updates(updates)
	return applied(result, "settle fine")
}

func (r *FineRepository) filtered(ctx context.Context, filter FineFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.FineHistory{}).Where("is_active = ?", true)
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FineType != "" {
		query = query.Where("fine_type = ?", filter.FineType)
	}
	return query
}

// List lists ledger entries with pagination and the total amount of the matching set
func (r *FineRepository) List(ctx context.Context, filter FineFilter, page Page) ([]*models.FineHistory, int64, decimal.Decimal, error) {
	var fines []*models.FineHistory
	var total int64

	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, decimal.Zero, errors.Wrap(err, "count fines")
	}

	amount, err := r.sum(r.filtered(ctx, filter))
	if err != nil {
		return nil, 0, decimal.Zero, err
	}

	query := r.filtered(ctx, filter).
		Preload("User").
		Preload("Issue.Book").
		Order("created_at DESC")
	err = page.apply(query).Find(&fines).Error
	return fines, total, amount, errors.Wrap(err, "list fines")
}

// SumAmount totals amounts matching filter
func (r *FineRepository) SumAmount(ctx context.Context, filter FineFilter) (decimal.Decimal, error) {
	return r.sum(r.filtered(ctx, filter))
}

// Summarize counts and totals entries matching filter created at or after since
func (r *FineRepository) Summarize(ctx context.Context, filter FineFilter, since time.Time) (*FineSummary, error) {
	var summary FineSummary
	query := r.filtered(ctx, filter)
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	err := query.Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").Scan(&summary).Error
	if err != nil {
		return nil, errors.Wrap(err, "summarize fines")
	}
	return &summary, nil
}

func (r *FineRepository) sum(query *gorm.DB) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := query.Select("COALESCE(SUM(amount), 0) AS total").Scan(&result).Error; err != nil {
		return decimal.Zero, errors.Wrap(err, "sum fines")
	}
	return result.Total, nil
}

// TotalsByType groups entries by fine type. An empty status means every status.
func (r *FineRepository) TotalsByType(ctx context.Context, status string) ([]FineTypeTotal, error) {
	var rows []FineTypeTotal
	err := r.filtered(ctx, FineFilter{Status: status}).
		Select("fine_type, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("fine_type").
		Order("fine_type").
		Scan(&rows).Error
	return rows, errors.Wrap(err, "fine totals by type")
}
