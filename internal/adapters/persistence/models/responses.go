package models

import (
	"time"

	"libraryhub/internal/core/domain"

	"github.com/shopspring/decimal"
)

// BookResponse DTO
type BookResponse struct {
	ID              uint      `json:"id"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       string    `json:"publisher"`
	PublishedYear   int       `json:"published_year"`
	Description     string    `json:"description"`
	CategoryID      uint      `json:"category_id"`
	CategoryName    string    `json:"category_name,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	IsAvailable     bool      `json:"is_available"`
	CreatedAt       time.Time `json:"created_at"`
}

func (b *Book) ToResponse() *BookResponse {
	resp := &BookResponse{
		ID:              b.ID,
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		PublishedYear:   b.PublishedYear,
		Description:     b.Description,
		CategoryID:      b.CategoryID,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		IsAvailable:     b.AvailableCopies > 0,
		CreatedAt:       b.CreatedAt,
	}
	if b.Category != nil {
		resp.CategoryName = b.Category.Name
	}
	return resp
}

// IssueResponse DTO with the derived loan state
type IssueResponse struct {
	ID                uint             `json:"id"`
	UserID            uint             `json:"user_id"`
	UserName          string           `json:"user_name,omitempty"`
	UserEmail         string           `json:"user_email,omitempty"`
	BookID            uint             `json:"book_id"`
	BookTitle         string           `json:"book_title,omitempty"`
	BookAuthor        string           `json:"book_author,omitempty"`
	RequestID         *uint            `json:"request_id,omitempty"`
	IssueDate         time.Time        `json:"issue_date"`
	ReturnDate        time.Time        `json:"return_date"`
	ActualReturnDate  *time.Time       `json:"actual_return_date,omitempty"`
	IsReturned        bool             `json:"is_returned"`
	State             domain.LoanState `json:"state"`
	DaysOverdue       int              `json:"days_overdue"`
	OverdueFine       decimal.Decimal  `json:"overdue_fine"`
	DamageFine        decimal.Decimal  `json:"damage_fine"`
	FineAmount        decimal.Decimal  `json:"fine_amount"`
	FineStatus        string           `json:"fine_status"`
	FinePaid          bool             `json:"fine_paid"`
	DamageType        string           `json:"damage_type"`
	DamageDescription string           `json:"damage_description,omitempty"`
	ReissueCount      int              `json:"reissue_count"`
	CanReissue        bool             `json:"can_reissue"`
}

// ToResponse classifies the loan as of now
func (i *Issue) ToResponse(now time.Time) *IssueResponse {
	state := domain.ClassifyLoan(now, i.ReturnDate, i.IsReturned)
	resp := &IssueResponse{
		ID:                i.ID,
		UserID:            i.UserID,
		BookID:            i.BookID,
		RequestID:         i.RequestID,
		IssueDate:         i.IssueDate,
		ReturnDate:        i.ReturnDate,
		ActualReturnDate:  i.ActualReturnDate,
		IsReturned:        i.IsReturned,
		State:             state,
		OverdueFine:       i.OverdueFine,
		DamageFine:        i.DamageFine,
		FineAmount:        i.FineAmount,
		FineStatus:        i.FineStatus,
		FinePaid:          i.FinePaid,
		DamageType:        i.DamageType,
		DamageDescription: i.DamageDescription,
		ReissueCount:      i.ReissueCount,
		CanReissue:        !i.IsReturned && i.ReissueCount < i.MaxReissues,
	}
	if state == domain.LoanOverdue {
		resp.DaysOverdue = domain.OverdueDays(now, i.ReturnDate)
	}
	if i.User != nil {
		resp.UserName = i.User.Name
		resp.UserEmail = i.User.Email
	}
	if i.Book != nil {
		resp.BookTitle = i.Book.Title
		resp.BookAuthor = i.Book.Author
	}
	return resp
}

// RequestResponse DTO
type RequestResponse struct {
	ID                uint       `json:"id"`
	UserID            uint       `json:"user_id"`
	UserName          string     `json:"user_name,omitempty"`
	BookID            uint       `json:"book_id"`
	BookTitle         string     `json:"book_title,omitempty"`
	Status            string     `json:"status"`
	RequestDate       time.Time  `json:"request_date"`
	AdminID           *uint      `json:"admin_id,omitempty"`
	AdminResponseDate *time.Time `json:"admin_response_date,omitempty"`
	AdminComments     string     `json:"admin_comments,omitempty"`
	IssueID           *uint      `json:"issue_id,omitempty"`
}

func (r *BookRequest) ToResponse() *RequestResponse {
	resp := &RequestResponse{
		ID:                r.ID,
		UserID:            r.UserID,
		BookID:            r.BookID,
		Status:            r.Status,
		RequestDate:       r.RequestDate,
		AdminID:           r.AdminID,
		AdminResponseDate: r.AdminResponseDate,
		AdminComments:     r.AdminComments,
		IssueID:           r.IssueID,
	}
	if r.User != nil {
		resp.UserName = r.User.Name
	}
	if r.Book != nil {
		resp.BookTitle = r.Book.Title
	}
	return resp
}
