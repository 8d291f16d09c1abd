package services

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DashboardService handles dashboard operations
type DashboardService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(db *gorm.DB, now func() time.Time) *DashboardService {
	return &DashboardService{db: db, now: now}
}

// ============================================================
// Admin Dashboard
// ============================================================

// AdminDashboardData represents admin dashboard data
type AdminDashboardData struct {
	Books  repositories.BookStats  `json:"books"`
	Issues repositories.IssueStats `json:"issues"`

	TotalUsers int64 `json:"total_users"`

	PendingRequests  int64           `json:"pending_requests"`
	PendingDonations int64           `json:"pending_donations"`
	PendingFines     int64           `json:"pending_fines"`
	PendingFineTotal decimal.Decimal `json:"pending_fine_total"`

	RecentIssues []IssueSummary    `json:"recent_issues"`
	TopBorrowers []BorrowerSummary `json:"top_borrowers"`
}

// IssueSummary is a short loan row for the dashboard
type IssueSummary struct {
	ID         uint             `json:"id"`
	Username   string           `json:"username"`
	BookTitle  string           `json:"book_title"`
	IssueDate  time.Time        `json:"issue_date"`
	ReturnDate time.Time        `json:"return_date"`
	State      domain.LoanState `json:"state"`
}

// BorrowerSummary is a member ranked by loans taken
type BorrowerSummary struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	TotalLoans int64  `json:"total_loans"`
	OpenLoans  int64  `json:"open_loans"`
}

// GetAdminDashboard returns admin dashboard data
func (s *DashboardService) GetAdminDashboard(ctx context.Context) (*AdminDashboardData, error) {
	now := s.now()
	data := &AdminDashboardData{}

	books, err := repositories.NewBookRepository(s.db).Stats(ctx)
	if err != nil {
		return nil, err
	}
	data.Books = *books

	issues, err := repositories.NewIssueRepository(s.db).Stats(ctx, now)
	if err != nil {
		return nil, err
	}
	data.Issues = *issues

	if data.TotalUsers, err = repositories.NewUserRepository(s.db).Count(ctx); err != nil {
		return nil, err
	}
	if data.PendingRequests, err = repositories.NewRequestRepository(s.db).CountByStatus(ctx, string(domain.RequestPending)); err != nil {
		return nil, err
	}
	if data.PendingDonations, err = repositories.NewDonationRepository(s.db).CountByStatus(ctx, string(domain.DonationPending)); err != nil {
		return nil, err
	}

	pending, err := repositories.NewFineRepository(s.db).Summarize(ctx, repositories.FineFilter{Status: string(domain.FinePending)}, time.Time{})
	if err != nil {
		return nil, err
	}
	data.PendingFines = pending.Count
	data.PendingFineTotal = pending.Amount

	var recent []*models.Issue
	err = s.db.WithContext(ctx).
		Preload("User").
		Preload("Book").
		Where("is_active = ?", true).
		Order("issue_date DESC").
		Limit(10).
		Find(&recent).Error
	if err != nil {
		return nil, err
	}
	data.RecentIssues = make([]IssueSummary, len(recent))
	for i, issue := range recent {
		summary := IssueSummary{
			ID:         issue.ID,
			BookTitle:  titleOf(issue.Book),
			IssueDate:  issue.IssueDate,
			ReturnDate: issue.ReturnDate,
			State:      domain.ClassifyLoan(now, issue.ReturnDate, issue.IsReturned),
		}
		if issue.User != nil {
			summary.Username = issue.User.Username
		}
		data.RecentIssues[i] = summary
	}

	data.TopBorrowers = []BorrowerSummary{}
	err = s.db.WithContext(ctx).Table("issues").
		Select(`
			issues.user_id,
			users.username,
			COUNT(*) as total_loans,
			SUM(CASE WHEN issues.is_returned = ? THEN 1 ELSE 0 END) as open_loans
		`, false).
		Joins("LEFT JOIN users ON issues.user_id = users.id").
		Where("issues.is_active = ?", true).
		Group("issues.user_id, users.username").
		Order("total_loans DESC").
		Limit(5).
		Scan(&data.TopBorrowers).Error
	if err != nil {
		return nil, err
	}

	return data, nil
}

// ============================================================
// Member Dashboard
// ============================================================

// MemberDashboardData represents a member's own summary
type MemberDashboardData struct {
	OpenLoans        int64           `json:"open_loans"`
	OverdueLoans     int64           `json:"overdue_loans"`
	PendingRequests  int64           `json:"pending_requests"`
	PendingFines     int64           `json:"pending_fines"`
	PendingFineTotal decimal.Decimal `json:"pending_fine_total"`
}

// GetMemberDashboard returns a member's summary
func (s *DashboardService) GetMemberDashboard(ctx context.Context, userID uint) (*MemberDashboardData, error) {
	now := s.now()
	data := &MemberDashboardData{}

	open := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Issue{}).
			Where("user_id = ? AND is_active = ? AND is_returned = ?", userID, true, false)
	}
	if err := open().Count(&data.OpenLoans).Error; err != nil {
		return nil, err
	}
	if err := open().Where("return_date < ?", now).Count(&data.OverdueLoans).Error; err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Model(&models.BookRequest{}).
		Where("user_id = ? AND status = ?", userID, string(domain.RequestPending)).
		Count(&data.PendingRequests).Error
	if err != nil {
		return nil, err
	}

	pending, err := repositories.NewFineRepository(s.db).Summarize(ctx,
		repositories.FineFilter{UserID: userID, Status: string(domain.FinePending)}, time.Time{})
	if err != nil {
		return nil, err
	}
	data.PendingFines = pending.Count
	data.PendingFineTotal = pending.Amount

	return data, nil
}
