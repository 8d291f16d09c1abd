package services

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSweepTimeout = 2 * time.Minute

// SweepResult is the outcome of an overdue sweep
type SweepResult struct {
	UpdatedCount   int `json:"updated_count"`
	EmailSentCount int `json:"email_sent_count"`
}

// ReminderResult is the outcome of a due-soon sweep
type ReminderResult struct {
	EmailsSent int `json:"emails_sent"`
}

// SweepService runs the periodic overdue and due-soon passes
type SweepService struct {
	db      *gorm.DB
	lending config.LendingConfig
	timeout time.Duration
	outbox  *Outbox
	now     func() time.Time
}

// NewSweepService creates a new sweep service
func NewSweepService(db *gorm.DB, lending config.LendingConfig, scheduler config.SchedulerConfig, outbox *Outbox, now func() time.Time) *SweepService {
	timeout := scheduler.SweepTimeout
	if timeout <= 0 {
		timeout = defaultSweepTimeout
	}
	return &SweepService{db: db, lending: lending, timeout: timeout, outbox: outbox, now: now}
}

// SweepOverdue recomputes the fine of every open overdue loan. Running it twice at the
// same instant leaves the same figures, and each loan is notified at most once.
func (s *SweepService) SweepOverdue(ctx context.Context) (*SweepResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now()
	issues, err := repositories.NewIssueRepository(s.db).ListOverdue(ctx, now, 0)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for i, issue := range issues {
		if err := ctx.Err(); err != nil {
			logger.Warn("overdue sweep interrupted",
				zap.Int("updated", result.UpdatedCount),
				zap.Int("remaining", len(issues)-i))
			return result, err
		}

		updated, notified, err := s.sweepIssue(ctx, issue, now)
		if err != nil {
			logger.Error("overdue sweep failed for issue", zap.Uint("issue_id", issue.ID), zap.Error(err))
			continue
		}
		if updated {
			result.UpdatedCount++
		}
		if notified {
			result.EmailSentCount++
		}
	}

	logger.Info("overdue sweep finished",
		zap.Int("candidates", len(issues)),
		zap.Int("updated_count", result.UpdatedCount),
		zap.Int("email_sent_count", result.EmailSentCount))
	return result, nil
}

func (s *SweepService) sweepIssue(ctx context.Context, issue *models.Issue, now time.Time) (updated, notified bool, err error) {
	fine := domain.ComputeOverdue(now, issue.ReturnDate, issue.DamageFine, s.lending.FineRatePerDay)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issues := repositories.NewIssueRepository(tx)

		ok, err := issues.UpdateOpenFine(ctx, issue.ID, fine, now)
		if err != nil {
			return err
		}
		if !ok {
			// returned since it was listed
			return nil
		}
		updated = true

		if fine.TotalFine.IsPositive() {
			if _, err := upsertPendingFine(ctx, tx, issue, fine, "", ""); err != nil {
				return err
			}
		}

		if issue.OverdueNotificationSent {
			return nil
		}
		first, err := issues.MarkOverdueNotified(ctx, issue.ID)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
		notified = true

		issue.FineAmount = fine.TotalFine
		payload := loanPayload(issue)
		payload["overdue_days"] = fine.OverdueDays
		return s.outbox.Enqueue(ctx, tx, domain.EventOverdueFine, userEmail(issue.User), payload)
	})
	if err != nil {
		return false, false, err
	}
	return updated, notified, nil
}

// SendDueSoonReminders notifies borrowers whose loans fall due within the window, once per loan
func (s *SweepService) SendDueSoonReminders(ctx context.Context) (*ReminderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	window := s.lending.DueSoonWindow
	if window <= 0 {
		window = defaultDueSoonRange
	}
	now := s.now()

	issues, err := repositories.NewIssueRepository(s.db).ListDueBetween(ctx, now, now.Add(window), true, 0)
	if err != nil {
		return nil, err
	}

	result := &ReminderResult{}
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		sent := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := repositories.NewIssueRepository(tx).MarkReminded(ctx, issue.ID)
			if err != nil || !ok {
				return err
			}
			sent = true
			return s.outbox.Enqueue(ctx, tx, domain.EventDueSoonReminder, userEmail(issue.User), loanPayload(issue))
		})
		if err != nil {
			logger.Error("due-soon reminder failed", zap.Uint("issue_id", issue.ID), zap.Error(err))
			continue
		}
		if sent {
			result.EmailsSent++
		}
	}

	logger.Info("due-soon sweep finished",
		zap.Int("candidates", len(issues)),
		zap.Int("emails_sent", result.EmailsSent))
	return result, nil
}
