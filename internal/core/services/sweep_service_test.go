package services

import (
	"context"
	"testing"

	"libraryhub/internal/core/domain"
	"libraryhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Nana", 1))

	f.clock.Now = testutil.T0.Add(days(20))
	first, err := f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	second, err := f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, first.EmailSentCount)
	assert.Equal(t, 1, second.UpdatedCount)
	assert.Equal(t, 0, second.EmailSentCount, "overdue notice is sent once")

	loan := testutil.ReloadIssue(t, f.db, issue.ID)
	testutil.RequireDecimal(t, 25, loan.FineAmount, "recomputed, never accumulated")
	assert.True(t, loan.OverdueNotificationSent)

	entries := f.ledger(t, issue.ID)
	require.Len(t, entries, 1)
	testutil.RequireDecimal(t, 25, entries[0].Amount)
	assert.Len(t, f.events(t, domain.EventOverdueFine), 1)

	// a day later the same entry grows
	f.clock.Now = testutil.T0.Add(days(21))
	_, err = f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	entries = f.ledger(t, issue.ID)
	require.Len(t, entries, 1)
	testutil.RequireDecimal(t, 30, entries[0].Amount)
}

func TestSweepSkipsReturnedLoans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Shirley", 1))

	f.clock.Now = testutil.T0.Add(days(16))
	_, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)

	f.clock.Now = testutil.T0.Add(days(40))
	result, err := f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.UpdatedCount)

	loan := testutil.ReloadIssue(t, f.db, issue.ID)
	testutil.RequireDecimal(t, 5, loan.FineAmount, "fine frozen at return")
	require.Len(t, f.ledger(t, issue.ID), 1)
}

func TestSweepBillsOnlyAccrualAfterSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Vathek", 1))

	f.clock.Now = testutil.T0.Add(days(17))
	_, err := f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	entries := f.ledger(t, issue.ID)
	require.Len(t, entries, 1)
	_, err = f.fines.Waive(ctx, &SettleInput{FineID: entries[0].ID, AdminID: admin.ID})
	require.NoError(t, err)

	// same instant: nothing new to bill
	_, err = f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, f.ledger(t, issue.ID), 1)

	f.clock.Now = testutil.T0.Add(days(19))
	_, err = f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)

	entries = f.ledger(t, issue.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, string(domain.FineWaived), entries[0].Status)
	testutil.RequireDecimal(t, 10, entries[0].Amount, "waived entry is never reopened")
	assert.Equal(t, string(domain.FinePending), entries[1].Status)
	testutil.RequireDecimal(t, 10, entries[1].Amount)
	assert.Equal(t, string(domain.FinePending), testutil.ReloadIssue(t, f.db, issue.ID).FineStatus)

	// a later sweep grows the new pending entry instead of adding another
	f.clock.Now = testutil.T0.Add(days(21))
	_, err = f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	entries = f.ledger(t, issue.ID)
	require.Len(t, entries, 2)
	testutil.RequireDecimal(t, 20, entries[1].Amount)
}

func TestDueSoonRemindersSentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	issue := f.issueLoan(t, alice, testutil.CreateBook(t, f.db, "Lolita", 1))
	f.issueLoan(t, alice, testutil.CreateBook(t, f.db, "Pnin", 1))

	f.clock.Now = testutil.T0.Add(days(14) + domain.Day/2)
	first, err := f.sweeps.SendDueSoonReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.EmailsSent)

	second, err := f.sweeps.SendDueSoonReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.EmailsSent)

	assert.True(t, testutil.ReloadIssue(t, f.db, issue.ID).ReminderSent)
	assert.Len(t, f.events(t, domain.EventDueSoonReminder), 2)

	f.clock.Now = testutil.T0.Add(days(5))
	early, err := f.sweeps.SendDueSoonReminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, early.EmailsSent, "outside the window")
}
