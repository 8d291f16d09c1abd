package services

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultFineCacheTTL = time.Hour

// FineService handles fine computation and the fine ledger
type FineService struct {
	db      *gorm.DB
	lending config.LendingConfig
	outbox  *Outbox
	now     func() time.Time
}

// NewFineService creates a new fine service
func NewFineService(db *gorm.DB, lending config.LendingConfig, outbox *Outbox, now func() time.Time) *FineService {
	return &FineService{db: db, lending: lending, outbox: outbox, now: now}
}

// SettleInput represents an admin collecting or waiving a fine
type SettleInput struct {
	FineID        uint
	AdminID       uint
	PaymentMethod domain.PaymentMethod
	Notes         string
}

// FineList is a page of ledger entries with the total of the whole matching set
type FineList struct {
	Fines       []*models.FineHistory `json:"fines"`
	Total       int64                 `json:"total"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
}

// FineStatistics is the admin fine overview
type FineStatistics struct {
	Pending      repositories.FineSummary     `json:"pending"`
	Monthly      repositories.FineSummary     `json:"monthly"`
	Yearly       repositories.FineSummary     `json:"yearly"`
	ByType       []repositories.FineTypeTotal `json:"by_type"`
	OverdueBooks int64                        `json:"overdue_books"`
}

// ComputeFine returns the current fine of a loan. A returned loan reports its frozen values.
// An open loan with a recent calculation is served from the stored values.
func (s *FineService) ComputeFine(ctx context.Context, issueID uint) (*domain.FineBreakdown, error) {
	issues := repositories.NewIssueRepository(s.db)
	issue, err := issues.GetByID(ctx, issueID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrIssueNotFound
		}
		return nil, err
	}

	if issue.IsReturned {
		return frozenFine(issue), nil
	}

	now := s.now()
	ttl := s.lending.FineCacheTTL
	if ttl <= 0 {
		ttl = defaultFineCacheTTL
	}
	if issue.OverdueFine.IsPositive() && issue.LastFineCalculation != nil && now.Sub(*issue.LastFineCalculation) < ttl {
		return &domain.FineBreakdown{
			OverdueDays: domain.OverdueDays(now, issue.ReturnDate),
			OverdueFine: issue.OverdueFine,
			DamageFine:  issue.DamageFine,
			TotalFine:   issue.FineAmount,
		}, nil
	}

	fine := domain.ComputeOverdue(now, issue.ReturnDate, issue.DamageFine, s.lending.FineRatePerDay)
	ok, err := issues.UpdateOpenFine(ctx, issue.ID, fine, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// returned between the read and the write
		closed, err := issues.GetByID(ctx, issue.ID)
		if err != nil {
			return nil, err
		}
		return frozenFine(closed), nil
	}

	logger.Debug("fine recalculated",
		zap.Uint("issue_id", issue.ID),
		zap.Int("overdue_days", fine.OverdueDays),
		zap.String("fine", fine.TotalFine.StringFixed(2)))
	return &fine, nil
}

func frozenFine(issue *models.Issue) *domain.FineBreakdown {
	return &domain.FineBreakdown{
		OverdueDays: 0,
		OverdueFine: issue.OverdueFine,
		DamageFine:  issue.DamageFine,
		TotalFine:   issue.FineAmount,
	}
}

// MarkPaid records a collected fine. Cash is assumed when no method is given.
func (s *FineService) MarkPaid(ctx context.Context, input *SettleInput) (*models.FineHistory, error) {
	method := input.PaymentMethod
	if method == "" {
		method = domain.PaymentCash
	}
	if !method.IsCollectable() {
		return nil, domain.ErrInvalidPaymentMethod
	}
	return s.settle(ctx, input, domain.FinePaid, method, domain.EventFinePaid)
}

// Waive forgives a pending fine
func (s *FineService) Waive(ctx context.Context, input *SettleInput) (*models.FineHistory, error) {
	return s.settle(ctx, input, domain.FineWaived, domain.PaymentWaived, domain.EventFineWaived)
}

func (s *FineService) settle(ctx context.Context, input *SettleInput, status domain.FineStatus, method domain.PaymentMethod, event string) (*models.FineHistory, error) {
	if input.AdminID == 0 {
		return nil, domain.ErrAdminRequired
	}

	fines := repositories.NewFineRepository(s.db)
	fine, err := fines.GetByID(ctx, input.FineID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrFineNotFound
		}
		return nil, err
	}
	if fine.Status != string(domain.FinePending) {
		return nil, domain.ErrFineAlreadyResolved
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repositories.NewFineRepository(tx).Settle(ctx, fine.ID, status, method, input.AdminID, input.Notes, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrFineAlreadyResolved
		}
		if err := repositories.NewIssueRepository(tx).SettleFine(ctx, fine.IssueID, status, now); err != nil {
			return err
		}

		payload := map[string]interface{}{
			"fine_id":        fine.ID,
			"issue_id":       fine.IssueID,
			"amount":         fine.Amount.StringFixed(2),
			"payment_method": string(method),
			"user_name":      nameOf(fine.User),
		}
		if fine.Issue != nil {
			payload["book_title"] = titleOf(fine.Issue.Book)
		}
		return s.outbox.Enqueue(ctx, tx, event, userEmail(fine.User), payload)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("fine settled",
		zap.Uint("fine_id", fine.ID),
		zap.String("status", string(status)),
		zap.String("method", string(method)),
		zap.Uint("admin_id", input.AdminID))

	return fines.GetByID(ctx, fine.ID)
}

// Get gets a ledger entry
func (s *FineService) Get(ctx context.Context, id uint) (*models.FineHistory, error) {
	fine, err := repositories.NewFineRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrFineNotFound
		}
		return nil, err
	}
	return fine, nil
}

// List lists ledger entries for admins
func (s *FineService) List(ctx context.Context, filter repositories.FineFilter, page repositories.Page) (*FineList, error) {
	fines, total, amount, err := repositories.NewFineRepository(s.db).List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	return &FineList{Fines: fines, Total: total, TotalAmount: amount}, nil
}

// ListByUser lists a user's ledger entries
func (s *FineService) ListByUser(ctx context.Context, userID uint, status string, page repositories.Page) (*FineList, error) {
	return s.List(ctx, repositories.FineFilter{UserID: userID, Status: status}, page)
}

// Statistics summarizes the ledger. Monthly and yearly figures count entries created
// since the start of the current month and year.
func (s *FineService) Statistics(ctx context.Context) (*FineStatistics, error) {
	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	fines := repositories.NewFineRepository(s.db)

	pending, err := fines.Summarize(ctx, repositories.FineFilter{Status: string(domain.FinePending)}, time.Time{})
	if err != nil {
		return nil, err
	}
	monthly, err := fines.Summarize(ctx, repositories.FineFilter{}, monthStart)
	if err != nil {
		return nil, err
	}
	yearly, err := fines.Summarize(ctx, repositories.FineFilter{}, yearStart)
	if err != nil {
		return nil, err
	}
	byType, err := fines.TotalsByType(ctx, "")
	if err != nil {
		return nil, err
	}
	issueStats, err := repositories.NewIssueRepository(s.db).Stats(ctx, now)
	if err != nil {
		return nil, err
	}

	return &FineStatistics{
		Pending:      *pending,
		Monthly:      *monthly,
		Yearly:       *yearly,
		ByType:       byType,
		OverdueBooks: issueStats.Overdue,
	}, nil
}
