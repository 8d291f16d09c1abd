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

const (
	overdueListLimit    = 100
	overdueListTimeout  = 10 * time.Second
	dueSoonListLimit    = 50
	defaultDueSoonRange = 24 * time.Hour
)

// LoanService handles loan records
type LoanService struct {
	db      *gorm.DB
	lending config.LendingConfig
	outbox  *Outbox
	now     func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(db *gorm.DB, lending config.LendingConfig, outbox *Outbox, now func() time.Time) *LoanService {
	return &LoanService{db: db, lending: lending, outbox: outbox, now: now}
}

// DirectIssueInput represents an admin issuing a book without a request
type DirectIssueInput struct {
	UserID  uint `json:"user_id"`
	BookID  uint `json:"book_id"`
	AdminID uint `json:"-"`
}

// ReturnInput represents a book coming back
type ReturnInput struct {
	IssueID           uint
	DamageType        domain.DamageType
	DamageFine        *decimal.Decimal
	DamageDescription string
}

// ReturnResult is the closed loan and its fine breakdown
type ReturnResult struct {
	Issue *models.IssueResponse `json:"issue"`
	Fine  domain.FineBreakdown  `json:"fine"`
	Entry *models.FineHistory   `json:"fine_entry,omitempty"`
}

// Issue lends a book directly. Disabled unless DIRECT_ISSUE_ENABLED is set.
func (s *LoanService) Issue(ctx context.Context, input *DirectIssueInput) (*models.Issue, error) {
	if !s.lending.DirectIssueEnabled {
		return nil, domain.ErrDirectIssueDisabled
	}

	user, err := repositories.NewUserRepository(s.db).GetByID(ctx, input.UserID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	now := s.now()
	issue := newIssue(input.UserID, input.BookID, nil, now, s.lending.LoanPeriodDays)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := takeCopy(ctx, tx, input.BookID); err != nil {
			return err
		}
		if err := repositories.NewIssueRepository(tx).Create(ctx, issue); err != nil {
			return err
		}
		book, err := repositories.NewBookRepository(tx).GetByID(ctx, input.BookID)
		if err != nil {
			return err
		}
		issue.User = user
		issue.Book = book
		return s.outbox.Enqueue(ctx, tx, domain.EventBookIssued, user.Email, loanPayload(issue))
	})
	if err != nil {
		return nil, err
	}

	logger.Info("book issued directly",
		zap.Uint("issue_id", issue.ID),
		zap.Uint("admin_id", input.AdminID),
		zap.Uint("book_id", input.BookID))
	return issue, nil
}

// Return closes a loan, freezes its fine and puts the copy back
func (s *LoanService) Return(ctx context.Context, input *ReturnInput) (*ReturnResult, error) {
	damage := input.DamageType
	if damage == "" {
		damage = domain.DamageNone
	}
	if !damage.IsValid() {
		return nil, domain.ErrInvalidDamageType
	}

	damageFine := domain.DefaultDamageFine(damage)
	if input.DamageFine != nil {
		if input.DamageFine.IsNegative() {
			return nil, domain.ErrNegativeFine
		}
		damageFine = *input.DamageFine
	}

	issues := repositories.NewIssueRepository(s.db)
	issue, err := issues.GetByID(ctx, input.IssueID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrIssueNotFound
		}
		return nil, err
	}
	if issue.IsReturned {
		return nil, domain.ErrAlreadyReturned
	}

	now := s.now()
	fine := domain.ComputeOverdue(now, issue.ReturnDate, damageFine, s.lending.FineRatePerDay)

	var entry *models.FineHistory
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := repositories.NewIssueRepository(tx).MarkReturned(ctx, issue.ID, now, fine, damage, input.DamageDescription)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyReturned
		}

		if err := putBackCopy(ctx, tx, issue.BookID); err != nil {
			return err
		}

		if fine.TotalFine.IsPositive() {
			entry, err = upsertPendingFine(ctx, tx, issue, fine, damage, input.DamageDescription)
			if err != nil {
				return err
			}
		}

		issue.FineAmount = fine.TotalFine
		return s.outbox.Enqueue(ctx, tx, domain.EventBookReturned, userEmail(issue.User), loanPayload(issue))
	})
	if err != nil {
		return nil, err
	}

	logger.Info("book returned",
		zap.Uint("issue_id", issue.ID),
		zap.Int("overdue_days", fine.OverdueDays),
		zap.String("fine", fine.TotalFine.StringFixed(2)))

	closed, err := issues.GetByID(ctx, issue.ID)
	if err != nil {
		return nil, err
	}

	return &ReturnResult{
		Issue: closed.ToResponse(now),
		Fine:  fine,
		Entry: entry,
	}, nil
}

// Get gets a loan
func (s *LoanService) Get(ctx context.Context, id uint) (*models.Issue, error) {
	issue, err := repositories.NewIssueRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrIssueNotFound
		}
		return nil, err
	}
	return issue, nil
}

// List lists loans filtered by derived state
func (s *LoanService) List(ctx context.Context, state domain.LoanState, page repositories.Page) ([]*models.Issue, int64, error) {
	return repositories.NewIssueRepository(s.db).List(ctx, repositories.IssueFilter{State: state, Now: s.now()}, page)
}

// ListByUser lists a user's loans
func (s *LoanService) ListByUser(ctx context.Context, userID uint, page repositories.Page) ([]*models.Issue, int64, error) {
	return repositories.NewIssueRepository(s.db).List(ctx, repositories.IssueFilter{UserID: userID, Now: s.now()}, page)
}

// ListOverdue lists overdue loans, bounded in size and time
func (s *LoanService) ListOverdue(ctx context.Context) ([]*models.Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, overdueListTimeout)
	defer cancel()
	return repositories.NewIssueRepository(s.db).ListOverdue(ctx, s.now(), overdueListLimit)
}

// ListDueSoon lists open loans due within the reminder window
func (s *LoanService) ListDueSoon(ctx context.Context) ([]*models.Issue, error) {
	window := s.lending.DueSoonWindow
	if window <= 0 {
		window = defaultDueSoonRange
	}
	now := s.now()
	return repositories.NewIssueRepository(s.db).ListDueBetween(ctx, now, now.Add(window), false, dueSoonListLimit)
}

// Deactivate hides a returned loan record. An open loan still holds a copy and must be returned first.
func (s *LoanService) Deactivate(ctx context.Context, id uint) error {
	issues := repositories.NewIssueRepository(s.db)
	ok, err := issues.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		issue, err := issues.GetByID(ctx, id)
		if err != nil {
			if repositories.IsNotFound(err) {
				return domain.ErrIssueNotFound
			}
			return err
		}
		if !issue.IsReturned {
			return domain.ErrLoanStillOpen
		}
		return domain.ErrIssueNotFound
	}
	logger.Info("issue deactivated", zap.Uint("issue_id", id))
	return nil
}

// Now exposes the service clock to callers rendering loan state
func (s *LoanService) Now() time.Time {
	return s.now()
}
