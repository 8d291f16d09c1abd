package services

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultJitterFactor = 0.3
	staleSendingAfter   = 10 * time.Minute
)

// Outbox writes notification events inside the caller's transaction
type Outbox struct {
	now func() time.Time
}

// NewOutbox creates an outbox writer
func NewOutbox(now func() time.Time) *Outbox {
	return &Outbox{now: now}
}

// Enqueue appends an event using tx. A blank recipient is skipped.
func (o *Outbox) Enqueue(ctx context.Context, tx *gorm.DB, eventType, recipient string, payload map[string]interface{}) error {
	if recipient == "" {
		logger.Warn("notification skipped, no recipient", zap.String("event", eventType))
		return nil
	}

	body, err := json.MarshalToString(payload)
	if err != nil {
		return err
	}

	return repositories.NewOutboxRepository(tx).Create(ctx, &models.NotificationOutbox{
		EventKey:      uuid.NewString(),
		EventType:     eventType,
		Recipient:     recipient,
		Payload:       body,
		Status:        string(domain.OutboxPending),
		NextAttemptAt: o.now(),
	})
}

// DispatchResult summarizes one dispatcher run
type DispatchResult struct {
	Claimed int `json:"claimed"`
	Sent    int `json:"sent"`
	Retried int `json:"retried"`
	Failed  int `json:"failed"`
}

// NotificationService delivers outbox events through a Notifier
type NotificationService struct {
	db          *gorm.DB
	notifier    Notifier
	now         func() time.Time
	batchSize   int
	workers     int
	maxAttempts int
	baseDelay   time.Duration
	jitter      func() float64
}

// NewNotificationService creates a new notification dispatcher
func NewNotificationService(db *gorm.DB, notifier Notifier, cfg config.SchedulerConfig, now func() time.Time) *NotificationService {
	s := &NotificationService{
		db:          db,
		notifier:    notifier,
		now:         now,
		batchSize:   cfg.OutboxBatchSize,
		workers:     cfg.OutboxWorkers,
		maxAttempts: cfg.OutboxMaxAttempts,
		baseDelay:   cfg.OutboxBaseDelay,
		jitter:      rand.Float64, //nolint:gosec // jitter only
	}
	if s.batchSize <= 0 {
		s.batchSize = 50
	}
	if s.workers <= 0 {
		s.workers = 1
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 6
	}
	return s
}

// DispatchPending delivers due events with a bounded worker pool
func (s *NotificationService) DispatchPending(ctx context.Context) (*DispatchResult, error) {
	repo := repositories.NewOutboxRepository(s.db)
	now := s.now()

	if released, err := repo.ReleaseStale(ctx, now.Add(-staleSendingAfter)); err != nil {
		return nil, err
	} else if released > 0 {
		logger.Warn("released stale outbox events", zap.Int64("count", released))
	}

	events, err := repo.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{}
	if len(events) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	jobs := make(chan *models.NotificationOutbox)

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for event := range jobs {
				outcome := s.deliver(ctx, repo, event)
				mu.Lock()
				switch outcome {
				case domain.OutboxSent:
					result.Sent++
				case domain.OutboxPending:
					result.Retried++
				case domain.OutboxFailed:
					result.Failed++
				}
				mu.Unlock()
			}
		}()
	}

	for _, event := range events {
		claimed, err := repo.Claim(ctx, event.ID)
		if err != nil {
			logger.Error("claim outbox event", zap.Uint("event_id", event.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		result.Claimed++
		select {
		case jobs <- event:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if result.Claimed > 0 {
		logger.Info("outbox dispatched",
			zap.Int("claimed", result.Claimed),
			zap.Int("sent", result.Sent),
			zap.Int("retried", result.Retried),
			zap.Int("failed", result.Failed))
	}
	return result, ctx.Err()
}

// deliver sends one claimed event and records the outcome
func (s *NotificationService) deliver(ctx context.Context, repo *repositories.OutboxRepository, event *models.NotificationOutbox) domain.OutboxStatus {
	attempts := event.Attempts + 1

	var payload map[string]interface{}
	if event.Payload != "" {
		if err := json.UnmarshalFromString(event.Payload, &payload); err != nil {
			logger.Error("outbox payload unreadable", zap.Uint("event_id", event.ID), zap.Error(err))
			if err := repo.MarkFailed(context.WithoutCancel(ctx), event.ID, attempts, err.Error()); err != nil {
				logger.Error("mark outbox event failed", zap.Error(err))
			}
			return domain.OutboxFailed
		}
	}

	sendErr := s.notifier.Send(ctx, renderMessage(event.EventType, event.Recipient, payload))

	// record the outcome even if the run was cancelled mid-send
	recordCtx := context.WithoutCancel(ctx)

	if sendErr == nil {
		if err := repo.MarkSent(recordCtx, event.ID, attempts, s.now()); err != nil {
			logger.Error("mark outbox event sent", zap.Uint("event_id", event.ID), zap.Error(err))
		}
		return domain.OutboxSent
	}

	if attempts >= s.maxAttempts {
		logger.Error("notification failed permanently",
			zap.Uint("event_id", event.ID),
			zap.String("event", event.EventType),
			zap.Int("attempts", attempts),
			zap.Error(sendErr))
		if err := repo.MarkFailed(recordCtx, event.ID, attempts, sendErr.Error()); err != nil {
			logger.Error("mark outbox event failed", zap.Error(err))
		}
		return domain.OutboxFailed
	}

	next := s.now().Add(s.backoff(attempts))
	logger.Warn("notification failed, will retry",
		zap.Uint("event_id", event.ID),
		zap.Int("attempts", attempts),
		zap.Time("next_attempt_at", next),
		zap.Error(sendErr))
	if err := repo.Reschedule(recordCtx, event.ID, attempts, next, sendErr.Error()); err != nil {
		logger.Error("reschedule outbox event", zap.Error(err))
	}
	return domain.OutboxPending
}

// backoff is baseDelay * 2^(attempt-1) plus up to 30% jitter
func (s *NotificationService) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.baseDelay * time.Duration(1<<(attempt-1))
	jitter := s.jitter() * float64(delay) * defaultJitterFactor
	return delay + time.Duration(jitter)
}

// PendingCount counts events still waiting for delivery
func (s *NotificationService) PendingCount(ctx context.Context) (int64, error) {
	return repositories.NewOutboxRepository(s.db).CountByStatus(ctx, domain.OutboxPending)
}
