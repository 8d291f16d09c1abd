package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errSMTPDown = errors.New("smtp down")

func newDispatcher(f *fixture, notifier Notifier, maxAttempts int) *NotificationService {
	s := NewNotificationService(f.db, notifier, config.SchedulerConfig{
		OutboxBatchSize:   10,
		OutboxWorkers:     3,
		OutboxMaxAttempts: maxAttempts,
		OutboxBaseDelay:   time.Minute,
	}, f.clock.Func())
	s.jitter = func() float64 { return 0 }
	return s
}

func enqueue(t *testing.T, f *fixture, eventType string, payload map[string]interface{}) {
	t.Helper()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.outbox.Enqueue(context.Background(), tx, eventType, "reader@library.test", payload)
	})
	require.NoError(t, err)
}

func TestDispatchDeliversPendingEvents(t *testing.T) {
	f := newFixture(t)
	notifier := &fakeNotifier{}
	dispatcher := newDispatcher(f, notifier, 3)

	enqueue(t, f, domain.EventRequestApproved, map[string]interface{}{"user_name": "Ann", "book_title": "Dune", "due_date": "2024-03-16"})
	enqueue(t, f, domain.EventFinePaid, map[string]interface{}{"user_name": "Ann", "amount": "25"})

	result, err := dispatcher.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Claimed)
	assert.Equal(t, 2, result.Sent)

	require.Len(t, notifier.sent, 2)
	subjects := []string{notifier.sent[0].Subject, notifier.sent[1].Subject}
	assert.ElementsMatch(t, []string{"Book request approved", "Fine payment received"}, subjects)

	for _, event := range append(f.events(t, domain.EventRequestApproved), f.events(t, domain.EventFinePaid)...) {
		assert.Equal(t, string(domain.OutboxSent), event.Status)
		assert.Equal(t, 1, event.Attempts)
		require.NotNil(t, event.SentAt)
	}

	again, err := dispatcher.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Claimed, "sent events are delivered once")

	count, err := dispatcher.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDispatchRetriesWithBackoffThenFails(t *testing.T) {
	f := newFixture(t)
	notifier := &fakeNotifier{failures: 100}
	dispatcher := newDispatcher(f, notifier, 3)
	ctx := context.Background()

	enqueue(t, f, domain.EventOverdueFine, map[string]interface{}{"book_title": "Dune"})

	result, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Retried)

	event := f.events(t, domain.EventOverdueFine)[0]
	assert.Equal(t, string(domain.OutboxPending), event.Status)
	assert.Equal(t, 1, event.Attempts)
	assert.Equal(t, errSMTPDown.Error(), event.LastError)
	assert.Equal(t, testutil.T0.Add(time.Minute), event.NextAttemptAt.UTC())

	// not yet due
	result, err = dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Claimed)

	f.clock.Advance(time.Minute)
	result, err = dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Retried)
	event = f.events(t, domain.EventOverdueFine)[0]
	assert.Equal(t, f.clock.Now.Add(2*time.Minute), event.NextAttemptAt.UTC())

	f.clock.Advance(2 * time.Minute)
	result, err = dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	event = f.events(t, domain.EventOverdueFine)[0]
	assert.Equal(t, string(domain.OutboxFailed), event.Status)
	assert.Equal(t, 3, event.Attempts)
	assert.Equal(t, 3, notifier.calls)

	f.clock.Advance(time.Hour)
	result, err = dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Claimed, "failed events are not retried")
}

func TestDispatchRecoversAfterTransientFailure(t *testing.T) {
	f := newFixture(t)
	notifier := &fakeNotifier{failures: 1}
	dispatcher := newDispatcher(f, notifier, 5)
	ctx := context.Background()

	enqueue(t, f, domain.EventDueSoonReminder, map[string]interface{}{"book_title": "Dune"})

	_, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	result, err := dispatcher.DispatchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	event := f.events(t, domain.EventDueSoonReminder)[0]
	assert.Equal(t, string(domain.OutboxSent), event.Status)
	assert.Equal(t, 2, event.Attempts)
	assert.Empty(t, event.LastError)
}

func TestDispatchReleasesStaleSendingEvents(t *testing.T) {
	f := newFixture(t)
	notifier := &fakeNotifier{}
	dispatcher := newDispatcher(f, notifier, 3)

	enqueue(t, f, domain.EventBookReturned, map[string]interface{}{"book_title": "Dune"})
	stale := f.clock.Now.Add(-time.Hour)
	require.NoError(t, f.db.Model(&models.NotificationOutbox{}).
		Where("event_type = ?", domain.EventBookReturned).
		UpdateColumns(map[string]interface{}{"status": string(domain.OutboxSending), "updated_at": stale}).Error)

	result, err := dispatcher.DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Len(t, notifier.sent, 1)
}

func TestBlankRecipientIsSkipped(t *testing.T) {
	f := newFixture(t)
	err := f.db.Transaction(func(tx *gorm.DB) error {
		return f.outbox.Enqueue(context.Background(), tx, domain.EventFinePaid, "", nil)
	})
	require.NoError(t, err)
	assert.Empty(t, f.events(t, domain.EventFinePaid))
}

func TestBackoffDoublesWithJitterCap(t *testing.T) {
	s := &NotificationService{baseDelay: 30 * time.Second, jitter: func() float64 { return 0 }}
	assert.Equal(t, 30*time.Second, s.backoff(1))
	assert.Equal(t, time.Minute, s.backoff(2))
	assert.Equal(t, 4*time.Minute, s.backoff(4))
	assert.Equal(t, 30*time.Second, s.backoff(0))

	s.jitter = func() float64 { return 1 }
	assert.Equal(t, 39*time.Second, s.backoff(1))
}

func TestRenderMessage(t *testing.T) {
	msg := renderMessage(domain.EventOverdueFine, "ann@library.test", map[string]interface{}{
		"user_name":    "Ann",
		"book_title":   "Dune",
		"overdue_days": 5,
		"fine_amount":  "25",
	})
	assert.Equal(t, "ann@library.test", msg.To)
	assert.Equal(t, "Overdue book fine", msg.Subject)
	assert.Contains(t, msg.Body, "\"Dune\" is 5 day(s) overdue")
	assert.Contains(t, msg.Body, "25")

	unknown := renderMessage("mystery", "x@library.test", nil)
	assert.Equal(t, "mystery", unknown.Body)
}
