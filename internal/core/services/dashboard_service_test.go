package services

import (
	"context"
	"testing"

	"libraryhub/internal/core/domain"
	"libraryhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dashboard := NewDashboardService(f.db, f.clock.Func())

	ann := testutil.CreateUser(t, f.db, "ann")
	dune := testutil.CreateBook(t, f.db, "Dune", 2)
	emma := testutil.CreateBook(t, f.db, "Emma", 1)

	f.issueLoan(t, ann, dune)
	_, err := f.requests.Submit(ctx, ann.ID, emma.ID)
	require.NoError(t, err)
	_, err = f.donations.Submit(ctx, donationInput())
	require.NoError(t, err)

	f.clock.Advance(days(20))
	_, err = f.sweeps.SweepOverdue(ctx)
	require.NoError(t, err)

	admin, err := dashboard.GetAdminDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), admin.Books.TotalTitles)
	assert.Equal(t, int64(3), admin.Books.TotalCopies)
	assert.Equal(t, int64(2), admin.Books.AvailableCopies)
	assert.Equal(t, int64(1), admin.Issues.Total)
	assert.Equal(t, int64(1), admin.Issues.Overdue)
	assert.Zero(t, admin.Issues.Returned)
	assert.Equal(t, int64(2), admin.TotalUsers)
	assert.Equal(t, int64(1), admin.PendingRequests)
	assert.Equal(t, int64(1), admin.PendingDonations)
	assert.Equal(t, int64(1), admin.PendingFines)
	testutil.RequireDecimal(t, 25, admin.PendingFineTotal)

	require.Len(t, admin.RecentIssues, 1)
	assert.Equal(t, "ann", admin.RecentIssues[0].Username)
	assert.Equal(t, domain.LoanOverdue, admin.RecentIssues[0].State)
	require.Len(t, admin.TopBorrowers, 1)
	assert.Equal(t, int64(1), admin.TopBorrowers[0].OpenLoans)

	member, err := dashboard.GetMemberDashboard(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), member.OpenLoans)
	assert.Equal(t, int64(1), member.OverdueLoans)
	assert.Equal(t, int64(1), member.PendingRequests)
	testutil.RequireDecimal(t, 25, member.PendingFineTotal)
}
