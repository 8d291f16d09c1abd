package services

import (
	"context"
	"testing"

	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepThenReturnWithDamage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Middlemarch", 1)
	alice := testutil.CreateUser(t, f.db, "alice")
	issue := f.issueLoan(t, alice, book)

	// day 20: five days past a fifteen day loan
	f.clock.Now = testutil.T0.Add(days(20))
	swept, err := f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept.UpdatedCount)
	assert.Equal(t, 1, swept.EmailSentCount)

	loan := testutil.ReloadIssue(t, f.db, issue.ID)
	testutil.RequireDecimal(t, 25, loan.OverdueFine)
	testutil.RequireDecimal(t, 25, loan.FineAmount)

	entries := f.ledger(t, issue.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.FineTypeOverdue), entries[0].FineType)
	testutil.RequireDecimal(t, 25, entries[0].Amount)

	// day 22 with minor damage
	f.clock.Now = testutil.T0.Add(days(22))
	result, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID, DamageType: domain.DamageMinor})
	require.NoError(t, err)

	assert.Equal(t, 7, result.Fine.OverdueDays)
	testutil.RequireDecimal(t, 35, result.Fine.OverdueFine)
	testutil.RequireDecimal(t, 50, result.Fine.DamageFine)
	testutil.RequireDecimal(t, 85, result.Fine.TotalFine)
	assert.Equal(t, domain.LoanReturned, result.Issue.State)

	loan = testutil.ReloadIssue(t, f.db, issue.ID)
	assert.True(t, loan.IsReturned)
	require.NotNil(t, loan.ActualReturnDate)
	testutil.RequireDecimal(t, 85, loan.FineAmount)
	assert.Equal(t, string(domain.DamageMinor), loan.DamageType)

	entries = f.ledger(t, issue.ID)
	require.Len(t, entries, 1, "the pending entry is updated, not duplicated")
	assert.Equal(t, string(domain.FineTypeBoth), entries[0].FineType)
	testutil.RequireDecimal(t, 85, entries[0].Amount)
	testutil.RequireDecimal(t, 35, entries[0].OverdueAmount)
	testutil.RequireDecimal(t, 50, entries[0].DamageAmount)

	assert.Equal(t, 1, testutil.ReloadBook(t, f.db, book.ID).AvailableCopies)
	assert.Len(t, f.events(t, domain.EventBookReturned), 1)
}

func TestReturnOnTimeCreatesNoFine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Persuasion", 1)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), book)

	f.clock.Advance(days(10))
	result, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)

	assert.True(t, result.Fine.TotalFine.IsZero())
	assert.Nil(t, result.Entry)
	assert.Empty(t, f.ledger(t, issue.ID))
	assert.Equal(t, 1, testutil.ReloadBook(t, f.db, book.ID).AvailableCopies)
}

func TestReturnTwiceIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Hamlet", 2)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), book)

	_, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)

	_, err = f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	assert.ErrorIs(t, err, domain.ErrAlreadyReturned)
	assert.Equal(t, 2, testutil.ReloadBook(t, f.db, book.ID).AvailableCopies, "copy returned once")

	_, err = f.loans.Return(ctx, &ReturnInput{IssueID: 999})
	assert.ErrorIs(t, err, domain.ErrIssueNotFound)
}

func TestReturnValidatesDamage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Odyssey", 1)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), book)

	_, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID, DamageType: "shredded"})
	assert.ErrorIs(t, err, domain.ErrInvalidDamageType)

	negative := decimal.NewFromInt(-1)
	_, err = f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID, DamageType: domain.DamageSevere, DamageFine: &negative})
	assert.ErrorIs(t, err, domain.ErrNegativeFine)

	custom := decimal.NewFromInt(120)
	result, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID, DamageType: domain.DamageSevere, DamageFine: &custom})
	require.NoError(t, err)
	testutil.RequireDecimal(t, 120, result.Fine.DamageFine)
	require.NotNil(t, result.Entry)
	assert.Equal(t, string(domain.FineTypeDamage), result.Entry.FineType)
}

func TestDirectIssueDisabledByDefault(t *testing.T) {
	f := newFixture(t)
	book := testutil.CreateBook(t, f.db, "Candide", 1)
	alice := testutil.CreateUser(t, f.db, "alice")

	_, err := f.loans.Issue(context.Background(), &DirectIssueInput{UserID: alice.ID, BookID: book.ID, AdminID: 1})
	assert.ErrorIs(t, err, domain.ErrDirectIssueDisabled)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDirectIssueTakesCopy(t *testing.T) {
	f := newFixture(t)
	f.cfg.DirectIssueEnabled = true
	loans := NewLoanService(f.db, f.cfg, f.outbox, f.clock.Func())
	book := testutil.CreateBook(t, f.db, "Walden", 1)
	alice := testutil.CreateUser(t, f.db, "alice")
	ctx := context.Background()

	issue, err := loans.Issue(ctx, &DirectIssueInput{UserID: alice.ID, BookID: book.ID, AdminID: 1})
	require.NoError(t, err)
	assert.Nil(t, issue.RequestID)
	assert.Equal(t, 0, testutil.ReloadBook(t, f.db, book.ID).AvailableCopies)
	assert.Len(t, f.events(t, domain.EventBookIssued), 1)

	_, err = loans.Issue(ctx, &DirectIssueInput{UserID: alice.ID, BookID: book.ID, AdminID: 1})
	assert.ErrorIs(t, err, domain.ErrNoCopiesAvailable)
}

func TestLoanStateListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	first := f.issueLoan(t, alice, testutil.CreateBook(t, f.db, "One", 1))

	f.clock.Advance(days(10))
	f.issueLoan(t, alice, testutil.CreateBook(t, f.db, "Two", 1))

	// first is due at day 15, second at day 25
	f.clock.Now = testutil.T0.Add(days(16))
	overdue, err := f.loans.ListOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, first.ID, overdue[0].ID)

	f.clock.Now = testutil.T0.Add(days(24) + domain.Day/2)
	dueSoon, err := f.loans.ListDueSoon(ctx)
	require.NoError(t, err)
	require.Len(t, dueSoon, 1)
	assert.NotEqual(t, first.ID, dueSoon[0].ID)

	active, total, err := f.loans.List(ctx, domain.LoanActive, repositories.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, active, 1)
}

func TestDeactivateRequiresReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	book := testutil.CreateBook(t, f.db, "Nostromo", 1)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), book)

	assert.ErrorIs(t, f.loans.Deactivate(ctx, issue.ID), domain.ErrLoanStillOpen)
	assert.ErrorIs(t, f.loans.Deactivate(ctx, 999), domain.ErrIssueNotFound)

	// the refused loan can still be returned and its copy comes back
	_, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.ReloadBook(t, f.db, book.ID).AvailableCopies)

	require.NoError(t, f.loans.Deactivate(ctx, issue.ID))
	_, err = f.loans.Get(ctx, issue.ID)
	assert.ErrorIs(t, err, domain.ErrIssueNotFound)
	assert.ErrorIs(t, f.loans.Deactivate(ctx, issue.ID), domain.ErrIssueNotFound)
}

func TestReturnBillsAccrualAfterWaivedFine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Lord Jim", 1))

	f.clock.Now = testutil.T0.Add(days(17))
	_, err := f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	entries := f.ledger(t, issue.ID)
	require.Len(t, entries, 1)
	testutil.RequireDecimal(t, 10, entries[0].Amount)
	_, err = f.fines.Waive(ctx, &SettleInput{FineID: entries[0].ID, AdminID: admin.ID})
	require.NoError(t, err)

	f.clock.Now = testutil.T0.Add(days(25))
	result, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)
	testutil.RequireDecimal(t, 50, result.Fine.TotalFine)
	require.NotNil(t, result.Entry, "unbilled accrual gets its own pending entry")
	testutil.RequireDecimal(t, 40, result.Entry.Amount)
	testutil.RequireDecimal(t, 40, result.Entry.OverdueAmount)
	assert.Equal(t, string(domain.FineTypeOverdue), result.Entry.FineType)
	assert.Equal(t, string(domain.FinePending), testutil.ReloadIssue(t, f.db, issue.ID).FineStatus)

	_, err = f.fines.MarkPaid(ctx, &SettleInput{FineID: result.Entry.ID, AdminID: admin.ID})
	require.NoError(t, err)

	entries = f.ledger(t, issue.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, string(domain.FineWaived), entries[0].Status)
	testutil.RequireDecimal(t, 10, entries[0].Amount, "settled entry untouched")
	assert.Equal(t, string(domain.FinePaid), entries[1].Status)

	loan := testutil.ReloadIssue(t, f.db, issue.ID)
	assert.Equal(t, string(domain.FinePaid), loan.FineStatus)
	assert.True(t, loan.FinePaid)
}

func TestReturnAfterFullSettlementKeepsLoanSettled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Chance", 1))

	f.clock.Now = testutil.T0.Add(days(17))
	_, err := f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)
	_, err = f.fines.MarkPaid(ctx, &SettleInput{FineID: f.ledger(t, issue.ID)[0].ID, AdminID: admin.ID})
	require.NoError(t, err)

	result, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)
	assert.Nil(t, result.Entry)
	assert.Len(t, f.ledger(t, issue.ID), 1)
	assert.Equal(t, string(domain.FinePaid), testutil.ReloadIssue(t, f.db, issue.ID).FineStatus)
}
