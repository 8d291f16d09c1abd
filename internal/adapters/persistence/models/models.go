package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Accounts & catalog
// ============================================================

// User represents users table
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Name      string         `gorm:"size:100" json:"name"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'USER'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// UserResponse DTO
type UserResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// RefreshToken is a stored refresh token hash. Rotation revokes the old row.
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

// Usable reports whether the token is neither revoked nor expired at now
func (rt *RefreshToken) Usable(now time.Time) bool {
	return rt.RevokedAt == nil && now.Before(rt.ExpiresAt)
}

// Category groups books on the shelf
type Category struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

// Book is the inventory ledger subject. 0 <= available_copies <= total_copies.
type Book struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ISBN            string    `gorm:"column:isbn;uniqueIndex;size:64;not null" json:"isbn"`
	Title           string    `gorm:"size:255;not null;index" json:"title"`
	Author          string    `gorm:"size:255;not null;index" json:"author"`
	Publisher       string    `gorm:"size:255" json:"publisher"`
	PublishedYear   int       `json:"published_year"`
	Description     string    `gorm:"type:text" json:"description"`
	CategoryID      uint      `gorm:"index;not null" json:"category_id"`
	TotalCopies     int       `gorm:"not null" json:"total_copies"`
	AvailableCopies int       `gorm:"not null" json:"available_copies"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

func (Book) TableName() string {
	return "books"
}

// ============================================================
// Lending
// ============================================================

// BookRequest is a member asking to borrow a book
// PendingKey is "<user>:<book>" while pending and NULL afterwards, so the unique
// index allows one pending request per user and book.
type BookRequest struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"index;not null" json:"user_id"`
	BookID            uint       `gorm:"index;not null" json:"book_id"`
	Status            string     `gorm:"size:20;not null;index" json:"status"`
	PendingKey        *string    `gorm:"uniqueIndex;size:64" json:"-"`
	RequestDate       time.Time  `gorm:"not null" json:"request_date"`
	AdminID           *uint      `json:"admin_id"`
	AdminResponseDate *time.Time `json:"admin_response_date"`
	AdminComments     string     `gorm:"type:text" json:"admin_comments"`
	IssueID           *uint      `gorm:"index" json:"issue_id"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (BookRequest) TableName() string {
	return "book_requests"
}

// Issue is a loan record. is_returned=false means the copy is counted out of available_copies.
type Issue struct {
	ID                      uint            `gorm:"primaryKey" json:"id"`
	UserID                  uint            `gorm:"index;not null" json:"user_id"`
	BookID                  uint            `gorm:"index;not null" json:"book_id"`
	RequestID               *uint           `gorm:"index" json:"request_id"`
	IssueDate               time.Time       `gorm:"not null" json:"issue_date"`
	ReturnDate              time.Time       `gorm:"not null;index" json:"return_date"`
	ActualReturnDate        *time.Time      `json:"actual_return_date"`
	IsReturned              bool            `gorm:"not null;index" json:"is_returned"`
	OverdueFine             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"overdue_fine"`
	DamageFine              decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"damage_fine"`
	FineAmount              decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"fine_amount"`
	FineStatus              string          `gorm:"size:20;not null" json:"fine_status"`
	FinePaid                bool            `gorm:"not null" json:"fine_paid"`
	FinePaidAt              *time.Time      `json:"fine_paid_at"`
	DamageType              string          `gorm:"size:20;not null" json:"damage_type"`
	DamageDescription       string          `gorm:"type:text" json:"damage_description"`
	ReminderSent            bool            `gorm:"not null" json:"reminder_sent"`
	OverdueNotificationSent bool            `gorm:"not null" json:"overdue_notification_sent"`
	ReissueCount            int             `gorm:"not null" json:"reissue_count"`
	MaxReissues             int             `gorm:"not null" json:"max_reissues"`
	LastFineCalculation     *time.Time      `json:"last_fine_calculation"`
	IsActive                bool            `gorm:"not null;index" json:"is_active"`
	CreatedAt               time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (Issue) TableName() string {
	return "issues"
}

// FineHistory is a fine ledger entry. PendingKey holds the issue id while pending,
// which keeps at most one pending entry per issue.
type FineHistory struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"index;not null" json:"user_id"`
	IssueID           uint            `gorm:"index;not null" json:"issue_id"`
	PendingKey        *uint           `gorm:"uniqueIndex" json:"-"`
	FineType          string          `gorm:"size:20;not null;index" json:"fine_type"`
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	OverdueAmount     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"overdue_amount"`
	DamageAmount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"damage_amount"`
	OverdueDays       int             `gorm:"not null" json:"overdue_days"`
	DamageType        string          `gorm:"size:20" json:"damage_type"`
	DamageDescription string          `gorm:"type:text" json:"damage_description"`
	Status            string          `gorm:"size:20;not null;index" json:"status"`
	PaidAt            *time.Time      `json:"paid_at"`
	CollectedBy       *uint           `json:"collected_by"`
	PaymentMethod     string          `gorm:"size:20" json:"payment_method"`
	Notes             string          `gorm:"type:text" json:"notes"`
	IsActive          bool            `gorm:"not null" json:"is_active"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`

	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Issue *Issue `gorm:"foreignKey:IssueID" json:"issue,omitempty"`
}

func (FineHistory) TableName() string {
	return "fine_histories"
}

// ============================================================
// Donations & notifications
// ============================================================

// BookDonation is a donor offering copies to the library
type BookDonation struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	DonorName       string     `gorm:"size:100;not null" json:"donor_name"`
	DonorEmail      string     `gorm:"size:100;not null;index" json:"donor_email"`
	DonorPhone      string     `gorm:"size:20;not null" json:"donor_phone"`
	BookTitle       string     `gorm:"size:255;not null" json:"book_title"`
	Author          string     `gorm:"size:255;not null" json:"author"`
	ISBN            string     `gorm:"column:isbn;size:64" json:"isbn"`
	Publisher       string     `gorm:"size:255" json:"publisher"`
	PublicationYear int        `json:"publication_year"`
	Condition       string     `gorm:"size:20;not null" json:"condition"`
	Quantity        int        `gorm:"not null" json:"quantity"`
	Description     string     `gorm:"type:text" json:"description"`
	CategoryName    string     `gorm:"size:100" json:"category_name"`
	Status          string     `gorm:"size:20;not null;index" json:"status"`
	AdminComments   string     `gorm:"type:text" json:"admin_comments"`
	DonationDate    time.Time  `gorm:"not null" json:"donation_date"`
	BookID          *uint      `gorm:"index" json:"book_id"`
	CollectedAt     *time.Time `json:"collected_at"`
	IsActive        bool       `gorm:"not null" json:"is_active"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BookDonation) TableName() string {
	return "book_donations"
}

// NotificationOutbox is written in the same transaction as the mutation it announces
type NotificationOutbox struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	EventKey      string     `gorm:"uniqueIndex;size:36;not null" json:"event_key"`
	EventType     string     `gorm:"size:50;not null;index" json:"event_type"`
	Recipient     string     `gorm:"size:255;not null" json:"recipient"`
	Payload       string     `gorm:"type:text" json:"payload"`
	Status        string     `gorm:"size:20;not null;index" json:"status"`
	Attempts      int        `gorm:"not null" json:"attempts"`
	NextAttemptAt time.Time  `gorm:"not null;index" json:"next_attempt_at"`
	LastError     string     `gorm:"type:text" json:"last_error"`
	SentAt        *time.Time `json:"sent_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (NotificationOutbox) TableName() string {
	return "notification_outbox"
}

// ============================================================
// AutoMigrate
// ============================================================

// AutoMigrate runs auto migration for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Category{},
		&Book{},
		&BookRequest{},
		&Issue{},
		&FineHistory{},
		&BookDonation{},
		&NotificationOutbox{},
	)
}
