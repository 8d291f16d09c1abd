package services

import (
	"context"
	"time"

	"libraryhub/internal/config"
	"libraryhub/internal/pkg/logger"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	tokenPurgeSpec       = "30 3 * * *"
	defaultOutboxTimeout = 2 * time.Minute
)

// CronService schedules the overdue sweep, due-soon reminders, outbox delivery and token cleanup
type CronService struct {
	cron    *cron.Cron
	cfg     config.SchedulerConfig
	sweeps  *SweepService
	notify  *NotificationService
	auth    *AuthService
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

// NewCronService creates the scheduler. Jobs run in UTC and never overlap themselves.
func NewCronService(cfg config.SchedulerConfig, sweeps *SweepService, notify *NotificationService, auth *AuthService) *CronService {
	log := cronLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	return &CronService{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(log),
			cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
		),
		cfg:     cfg,
		sweeps:  sweeps,
		notify:  notify,
		auth:    auth,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds every job. An invalid spec is reported before anything starts.
func (s *CronService) Register() error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"overdue_sweep", s.cfg.OverdueSweepSpec, s.runOverdueSweep},
		{"due_soon", s.cfg.DueSoonSpec, s.runDueSoon},
		{"outbox", s.cfg.OutboxSpec, s.runOutbox},
		{"token_purge", tokenPurgeSpec, s.runTokenPurge},
	}

	for _, job := range jobs {
		if job.spec == "" {
			logger.Warn("cron job disabled", zap.String("job", job.name))
			continue
		}
		run := job.run
		id, err := s.cron.AddFunc(job.spec, func() { run(s.ctx) })
		if err != nil {
			return errors.Wrapf(err, "schedule %s (%q)", job.name, job.spec)
		}
		s.entries[job.name] = id
	}
	return nil
}

// Start launches the scheduler goroutine
func (s *CronService) Start() {
	s.cron.Start()
	logger.Info("cron service started", zap.Int("jobs", len(s.entries)))
}

// Stop cancels running jobs and waits for them to return
func (s *CronService) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.Info("cron service stopped")
}

// Entries names the scheduled jobs
func (s *CronService) Entries() map[string]cron.EntryID {
	return s.entries
}

func (s *CronService) runOverdueSweep(ctx context.Context) {
	result, err := s.sweeps.SweepOverdue(ctx)
	if err != nil {
		logger.Error("scheduled overdue sweep failed", zap.Error(err))
		return
	}
	logger.Info("scheduled overdue sweep",
		zap.Int("updated_count", result.UpdatedCount),
		zap.Int("email_sent_count", result.EmailSentCount))
}

func (s *CronService) runDueSoon(ctx context.Context) {
	result, err := s.sweeps.SendDueSoonReminders(ctx)
	if err != nil {
		logger.Error("scheduled due-soon sweep failed", zap.Error(err))
		return
	}
	logger.Info("scheduled due-soon sweep", zap.Int("emails_sent", result.EmailsSent))
}

func (s *CronService) runOutbox(ctx context.Context) {
	timeout := s.cfg.OutboxTimeout
	if timeout <= 0 {
		timeout = defaultOutboxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.notify.DispatchPending(ctx); err != nil {
		logger.Error("outbox dispatch failed", zap.Error(err))
	}
}

func (s *CronService) runTokenPurge(ctx context.Context) {
	n, err := s.auth.PurgeExpiredTokens(ctx)
	if err != nil {
		logger.Error("refresh token purge failed", zap.Error(err))
		return
	}
	logger.Debug("expired refresh tokens purged", zap.Int64("count", n))
}

// cronLogger routes scheduler diagnostics through zap
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Logger.Sugar().Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
