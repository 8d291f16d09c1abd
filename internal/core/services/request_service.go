package services

import (
	"context"
	"errors"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RequestService handles the borrow request workflow
type RequestService struct {
	db      *gorm.DB
	lending config.LendingConfig
	outbox  *Outbox
	now     func() time.Time
}

// NewRequestService creates a new request service
func NewRequestService(db *gorm.DB, lending config.LendingConfig, outbox *Outbox, now func() time.Time) *RequestService {
	return &RequestService{db: db, lending: lending, outbox: outbox, now: now}
}

// ResolveInput represents an admin decision on a request
type ResolveInput struct {
	RequestID uint
	Status    domain.RequestStatus
	AdminID   uint
	Comments  string
}

// Submit files a pending request. Stock is checked here but only reserved on approval.
func (s *RequestService) Submit(ctx context.Context, userID, bookID uint) (*models.BookRequest, error) {
	user, err := repositories.NewUserRepository(s.db).GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	book, err := repositories.NewBookRepository(s.db).GetByID(ctx, bookID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	if book.AvailableCopies <= 0 {
		return nil, domain.ErrNoCopiesAvailable
	}

	requests := repositories.NewRequestRepository(s.db)
	pending, err := requests.ExistsPending(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, domain.ErrDuplicatePendingRequest
	}

	key := repositories.PendingRequestKey(userID, bookID)
	req := &models.BookRequest{
		UserID:      userID,
		BookID:      bookID,
		Status:      string(domain.RequestPending),
		PendingKey:  &key,
		RequestDate: s.now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repositories.NewRequestRepository(tx).Create(ctx, req); err != nil {
			if repositories.IsDuplicate(err) {
				return domain.ErrDuplicatePendingRequest
			}
			return err
		}
		return s.outbox.Enqueue(ctx, tx, domain.EventRequestSubmitted, user.Email, map[string]interface{}{
			"request_id": req.ID,
			"user_name":  user.Name,
			"book_title": book.Title,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("book request submitted",
		zap.Uint("request_id", req.ID),
		zap.Uint("user_id", userID),
		zap.Uint("book_id", bookID))

	req.User = user
	req.Book = book
	return req, nil
}

// Resolve approves or rejects a pending request. Approval creates the loan and takes a
// copy in the same transaction; if no copy is left nothing changes and the request stays pending.
func (s *RequestService) Resolve(ctx context.Context, input *ResolveInput) (*models.BookRequest, error) {
	if input.AdminID == 0 {
		return nil, domain.ErrAdminRequired
	}
	if !input.Status.IsResolution() {
		return nil, domain.ErrInvalidResolution
	}

	req, err := repositories.NewRequestRepository(s.db).GetByID(ctx, input.RequestID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	if req.Status != string(domain.RequestPending) {
		return nil, domain.ErrRequestNotPending
	}

	now := s.now()
	var issue *models.Issue

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		requests := repositories.NewRequestRepository(tx)

		ok, err := requests.Resolve(ctx, req.ID, string(input.Status), input.AdminID, input.Comments, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrRequestNotPending
		}

		if input.Status == domain.RequestRejected {
			return s.outbox.Enqueue(ctx, tx, domain.EventRequestRejected, userEmail(req.User), map[string]interface{}{
				"request_id": req.ID,
				"user_name":  nameOf(req.User),
				"book_title": titleOf(req.Book),
				"comments":   input.Comments,
			})
		}

		if err := takeCopy(ctx, tx, req.BookID); err != nil {
			return err
		}

		requestID := req.ID
		issue = newIssue(req.UserID, req.BookID, &requestID, now, s.lending.LoanPeriodDays)
		if err := repositories.NewIssueRepository(tx).Create(ctx, issue); err != nil {
			return err
		}
		if err := requests.LinkIssue(ctx, req.ID, issue.ID); err != nil {
			return err
		}

		issue.User = req.User
		issue.Book = req.Book
		return s.outbox.Enqueue(ctx, tx, domain.EventRequestApproved, userEmail(req.User), loanPayload(issue))
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoCopiesAvailable) {
			logger.Warn("approval failed, no copies left",
				zap.Uint("request_id", req.ID),
				zap.Uint("book_id", req.BookID))
		}
		return nil, err
	}

	if issue != nil {
		logger.Info("book request approved",
			zap.Uint("request_id", req.ID),
			zap.Uint("issue_id", issue.ID),
			zap.Time("due", issue.ReturnDate))
	} else {
		logger.Info("book request rejected", zap.Uint("request_id", req.ID))
	}

	return repositories.NewRequestRepository(s.db).GetByID(ctx, req.ID)
}

// List lists requests for admins
func (s *RequestService) List(ctx context.Context, status string, page repositories.Page) ([]*models.BookRequest, int64, error) {
	return repositories.NewRequestRepository(s.db).List(ctx, status, page)
}

// ListByUser lists a user's requests
func (s *RequestService) ListByUser(ctx context.Context, userID uint) ([]*models.BookRequest, error) {
	return repositories.NewRequestRepository(s.db).ListByUser(ctx, userID)
}

// PendingCount counts requests awaiting a decision
func (s *RequestService) PendingCount(ctx context.Context) (int64, error) {
	return repositories.NewRequestRepository(s.db).CountByStatus(ctx, string(domain.RequestPending))
}

func newIssue(userID, bookID uint, requestID *uint, issuedAt time.Time, loanPeriodDays int) *models.Issue {
	return &models.Issue{
		UserID:      userID,
		BookID:      bookID,
		RequestID:   requestID,
		IssueDate:   issuedAt,
		ReturnDate:  domain.DueDate(issuedAt, loanPeriodDays),
		IsReturned:  false,
		FineStatus:  string(domain.FinePending),
		DamageType:  string(domain.DamageNone),
		MaxReissues: 2,
		IsActive:    true,
	}
}

func nameOf(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Name
}

func titleOf(b *models.Book) string {
	if b == nil {
		return ""
	}
	return b.Title
}
