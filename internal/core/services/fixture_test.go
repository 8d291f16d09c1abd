package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	clock *testutil.Clock
	cfg   config.LendingConfig

	outbox    *Outbox
	inventory *InventoryService
	requests  *RequestService
	loans     *LoanService
	fines     *FineService
	sweeps    *SweepService
	donations *DonationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewDB(t))
}

func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	clock := &testutil.Clock{Now: testutil.T0}
	now := clock.Func()

	lending := config.LendingConfig{
		LoanPeriodDays: 15,
		FineRatePerDay: decimal.NewFromInt(5),
		FineCacheTTL:   time.Hour,
		DueSoonWindow:  24 * time.Hour,
	}
	scheduler := config.SchedulerConfig{SweepTimeout: time.Minute}
	outbox := NewOutbox(now)

	return &fixture{
		db:        db,
		clock:     clock,
		cfg:       lending,
		outbox:    outbox,
		inventory: NewInventoryService(db),
		requests:  NewRequestService(db, lending, outbox, now),
		loans:     NewLoanService(db, lending, outbox, now),
		fines:     NewFineService(db, lending, outbox, now),
		sweeps:    NewSweepService(db, lending, scheduler, outbox, now),
		donations: NewDonationService(db, outbox, now),
	}
}

// issueLoan lends book to user through the request workflow at the current clock
func (f *fixture) issueLoan(t *testing.T, user *models.User, book *models.Book) *models.Issue {
	t.Helper()
	ctx := context.Background()
	admin := f.admin(t)

	req, err := f.requests.Submit(ctx, user.ID, book.ID)
	require.NoError(t, err)
	resolved, err := f.requests.Resolve(ctx, &ResolveInput{RequestID: req.ID, Status: domain.RequestApproved, AdminID: admin.ID})
	require.NoError(t, err)
	require.NotNil(t, resolved.IssueID)
	return testutil.ReloadIssue(t, f.db, *resolved.IssueID)
}

func (f *fixture) admin(t *testing.T) *models.User {
	t.Helper()
	var admin models.User
	err := f.db.Where("username = ?", "admin").First(&admin).Error
	if err == nil {
		return &admin
	}
	return testutil.CreateAdmin(t, f.db)
}

func (f *fixture) events(t *testing.T, eventType string) []models.NotificationOutbox {
	t.Helper()
	var events []models.NotificationOutbox
	require.NoError(t, f.db.Where("event_type = ?", eventType).Order("id").Find(&events).Error)
	return events
}

func (f *fixture) ledger(t *testing.T, issueID uint) []models.FineHistory {
	t.Helper()
	var entries []models.FineHistory
	require.NoError(t, f.db.Where("issue_id = ?", issueID).Order("id").Find(&entries).Error)
	return entries
}

func days(n int) time.Duration {
	return time.Duration(n) * domain.Day
}

// fakeNotifier records messages and fails the first failures sends
type fakeNotifier struct {
	mu       sync.Mutex
	failures int
	sent     []Message
	calls    int
}

func (n *fakeNotifier) Send(_ context.Context, msg Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	if n.calls <= n.failures {
		return errSMTPDown
	}
	n.sent = append(n.sent, msg)
	return nil
}
