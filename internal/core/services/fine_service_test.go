package services

import (
	"context"
	"testing"
	"time"

	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeFineCachesRecentCalculation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Dracula", 1))

	f.clock.Now = testutil.T0.Add(days(20))
	fine, err := f.fines.ComputeFine(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, fine.OverdueDays)
	testutil.RequireDecimal(t, 25, fine.TotalFine)

	loan := testutil.ReloadIssue(t, f.db, issue.ID)
	testutil.RequireDecimal(t, 25, loan.FineAmount)
	require.NotNil(t, loan.LastFineCalculation)

	// half an hour later a sixth day has started but the stored figure is still fresh
	f.clock.Advance(30 * time.Minute)
	fine, err = f.fines.ComputeFine(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, fine.OverdueDays)
	testutil.RequireDecimal(t, 25, fine.TotalFine)

	f.clock.Advance(2 * time.Hour)
	fine, err = f.fines.ComputeFine(ctx, issue.ID)
	require.NoError(t, err)
	testutil.RequireDecimal(t, 30, fine.TotalFine)
	testutil.RequireDecimal(t, 30, testutil.ReloadIssue(t, f.db, issue.ID).FineAmount)
}

func TestComputeFineNotOverdue(t *testing.T) {
	f := newFixture(t)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Emma", 1))

	f.clock.Advance(days(3))
	fine, err := f.fines.ComputeFine(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fine.OverdueDays)
	assert.True(t, fine.TotalFine.IsZero())

	_, err = f.fines.ComputeFine(context.Background(), 999)
	assert.ErrorIs(t, err, domain.ErrIssueNotFound)
}

func TestComputeFineFrozenAfterReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Rebecca", 1))

	f.clock.Now = testutil.T0.Add(days(17))
	_, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)

	f.clock.Advance(days(30))
	fine, err := f.fines.ComputeFine(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fine.OverdueDays)
	testutil.RequireDecimal(t, 10, fine.TotalFine)
	testutil.RequireDecimal(t, 10, testutil.ReloadIssue(t, f.db, issue.ID).FineAmount)
}

func TestMarkPaidIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Ivanhoe", 1))

	f.clock.Now = testutil.T0.Add(days(18))
	result, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)
	require.NotNil(t, result.Entry)

	paid, err := f.fines.MarkPaid(ctx, &SettleInput{FineID: result.Entry.ID, AdminID: admin.ID, Notes: "counter"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.FinePaid), paid.Status)
	assert.Equal(t, string(domain.PaymentCash), paid.PaymentMethod)
	require.NotNil(t, paid.PaidAt)
	require.NotNil(t, paid.CollectedBy)
	assert.Equal(t, admin.ID, *paid.CollectedBy)

	loan := testutil.ReloadIssue(t, f.db, issue.ID)
	assert.True(t, loan.FinePaid)
	assert.Equal(t, string(domain.FinePaid), loan.FineStatus)
	require.NotNil(t, loan.FinePaidAt)

	_, err = f.fines.MarkPaid(ctx, &SettleInput{FineID: result.Entry.ID, AdminID: admin.ID})
	assert.ErrorIs(t, err, domain.ErrFineAlreadyResolved)
	_, err = f.fines.Waive(ctx, &SettleInput{FineID: result.Entry.ID, AdminID: admin.ID})
	assert.ErrorIs(t, err, domain.ErrFineAlreadyResolved)

	assert.Len(t, f.events(t, domain.EventFinePaid), 1)
}

func TestWaiveAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	issue := f.issueLoan(t, testutil.CreateUser(t, f.db, "alice"), testutil.CreateBook(t, f.db, "Kim", 1))

	f.clock.Now = testutil.T0.Add(days(16))
	result, err := f.loans.Return(ctx, &ReturnInput{IssueID: issue.ID})
	require.NoError(t, err)
	require.NotNil(t, result.Entry)

	_, err = f.fines.MarkPaid(ctx, &SettleInput{FineID: result.Entry.ID, AdminID: admin.ID, PaymentMethod: "cheque"})
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)

	_, err = f.fines.Waive(ctx, &SettleInput{FineID: 999, AdminID: admin.ID})
	assert.ErrorIs(t, err, domain.ErrFineNotFound)

	waived, err := f.fines.Waive(ctx, &SettleInput{FineID: result.Entry.ID, AdminID: admin.ID, Notes: "first offence"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.FineWaived), waived.Status)
	assert.Equal(t, string(domain.PaymentWaived), waived.PaymentMethod)
	assert.Equal(t, string(domain.FineWaived), testutil.ReloadIssue(t, f.db, issue.ID).FineStatus)

	_, err = f.fines.MarkPaid(ctx, &SettleInput{FineID: result.Entry.ID, AdminID: admin.ID})
	assert.ErrorIs(t, err, domain.ErrFineAlreadyResolved)
}

func TestFineListingAndStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin(t)
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	first := f.issueLoan(t, alice, testutil.CreateBook(t, f.db, "A", 1))
	second := f.issueLoan(t, bob, testutil.CreateBook(t, f.db, "B", 1))
	f.issueLoan(t, bob, testutil.CreateBook(t, f.db, "C", 1))

	f.clock.Now = testutil.T0.Add(days(17))
	r1, err := f.loans.Return(ctx, &ReturnInput{IssueID: first.ID})
	require.NoError(t, err)
	_, err = f.loans.Return(ctx, &ReturnInput{IssueID: second.ID, DamageType: domain.DamageModerate})
	require.NoError(t, err)
	_, err = f.fines.MarkPaid(ctx, &SettleInput{FineID: r1.Entry.ID, AdminID: admin.ID, PaymentMethod: domain.PaymentOnline})
	require.NoError(t, err)

	all, err := f.fines.List(ctx, repositories.FineFilter{}, repositories.Page{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
	testutil.RequireDecimal(t, 170, all.TotalAmount)

	mine, err := f.fines.ListByUser(ctx, bob.ID, "", repositories.Page{})
	require.NoError(t, err)
	require.Len(t, mine.Fines, 1)
	testutil.RequireDecimal(t, 160, mine.TotalAmount)

	stats, err := f.fines.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending.Count)
	testutil.RequireDecimal(t, 160, stats.Pending.Amount)
	assert.Equal(t, int64(1), stats.OverdueBooks, "the third loan is still out")
	assert.Len(t, stats.ByType, 2)
}
