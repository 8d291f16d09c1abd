package domain

// Role represents user role in the system
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// RequestStatus is the lifecycle of a borrow request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// IsResolution reports whether s is a valid admin decision
func (s RequestStatus) IsResolution() bool {
	return s == RequestApproved || s == RequestRejected
}

// FineStatus is shared by loans and ledger entries
type FineStatus string

const (
	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"
	FineWaived  FineStatus = "waived"
)

// FineType classifies a ledger entry
type FineType string

const (
	FineTypeOverdue FineType = "overdue"
	FineTypeDamage  FineType = "damage"
	FineTypeBoth    FineType = "both"
	FineTypeWaived  FineType = "waived"
)

// PaymentMethod records how a fine was settled
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentOnline PaymentMethod = "online"
	PaymentWaived PaymentMethod = "waived"
)

// IsCollectable reports whether m can be used to mark a fine paid
func (m PaymentMethod) IsCollectable() bool {
	return m == PaymentCash || m == PaymentOnline
}

// DamageType is the condition of a returned copy
type DamageType string

const (
	DamageNone     DamageType = "none"
	DamageMinor    DamageType = "minor"
	DamageModerate DamageType = "moderate"
	DamageSevere   DamageType = "severe"
	DamageLost     DamageType = "lost"
)

// IsValid reports whether d is a known damage type
func (d DamageType) IsValid() bool {
	switch d {
	case DamageNone, DamageMinor, DamageModerate, DamageSevere, DamageLost:
		return true
	}
	return false
}

// DonationStatus is the lifecycle of a donation
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationApproved  DonationStatus = "approved"
	DonationRejected  DonationStatus = "rejected"
	DonationCollected DonationStatus = "collected"
)

// IsValid reports whether s is a known donation status
func (s DonationStatus) IsValid() bool {
	switch s {
	case DonationPending, DonationApproved, DonationRejected, DonationCollected:
		return true
	}
	return false
}

// BookCondition is the donor-declared condition
type BookCondition string

const (
	ConditionExcellent BookCondition = "excellent"
	ConditionGood      BookCondition = "good"
	ConditionFair      BookCondition = "fair"
	ConditionPoor      BookCondition = "poor"
)

// IsValid reports whether c is a known condition
func (c BookCondition) IsValid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// OutboxStatus tracks delivery of a notification event
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSending OutboxStatus = "sending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// Notification event types
const (
	EventRequestSubmitted = "request_submitted"
	EventRequestApproved  = "request_approved"
	EventRequestRejected  = "request_rejected"
	EventBookIssued       = "book_issued"
	EventBookReturned     = "book_returned"
	EventOverdueFine      = "overdue_fine"
	EventDueSoonReminder  = "due_soon_reminder"
	EventFinePaid         = "fine_paid"
	EventFineWaived       = "fine_waived"
	EventDonationReceived = "donation_received"
	EventDonationStatus   = "donation_status"
)

// FallbackCategory receives donated books whose category is unknown
const FallbackCategory = "Other"

// KnownCategories is the catalog's category list
var KnownCategories = []string{
	"Computer Science", "Mathematics", "Physics", "Chemistry", "Biology", "Engineering",
	"Medicine", "Psychology", "Economics", "Business", "Law", "Education",
	"Fiction", "Non-Fiction", "Science Fiction", "Fantasy", "Mystery & Thriller", "Romance",
	"Historical Fiction", "Biography & Memoir", "Poetry", "Drama",
	"Programming", "Web Development", "Mobile Development", "Data Science",
	"Artificial Intelligence", "Machine Learning", "Cybersecurity", "Database", "DevOps", "Cloud Computing",
	"History", "Philosophy", "Religion", "Politics", "Sociology", "Geography", "Art & Design",
	"Music", "Sports", "Travel", "Cooking", "Self-Help", "Children", "Young Adult",
	"Reference", "Magazines", FallbackCategory,
}

// ResolveCategoryName maps a free-form name to a known category, falling back to Other
func ResolveCategoryName(name string) string {
	for _, known := range KnownCategories {
		if known == name {
			return known
		}
	}
	return FallbackCategory
}
