package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const donationSearchLimit = 100

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// DonationService handles book donations from submission to shelf
type DonationService struct {
	db     *gorm.DB
	outbox *Outbox
	now    func() time.Time
}

// NewDonationService creates a new donation service
func NewDonationService(db *gorm.DB, outbox *Outbox, now func() time.Time) *DonationService {
	return &DonationService{db: db, outbox: outbox, now: now}
}

// DonationInput represents a public donation offer
type DonationInput struct {
	DonorName       string `json:"donor_name"`
	DonorEmail      string `json:"donor_email"`
	DonorPhone      string `json:"donor_phone"`
	BookTitle       string `json:"book_title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	Publisher       string `json:"publisher"`
	PublicationYear int    `json:"publication_year"`
	Condition       string `json:"condition"`
	Quantity        int    `json:"quantity"`
	Description     string `json:"description"`
	CategoryName    string `json:"category_name"`
}

// DonationStatusInput represents an admin status change
type DonationStatusInput struct {
	DonationID uint
	Status     domain.DonationStatus
	Comments   string
}

func (in *DonationInput) validate() error {
	required := map[string]string{
		"donor_name":  in.DonorName,
		"donor_email": in.DonorEmail,
		"donor_phone": in.DonorPhone,
		"book_title":  in.BookTitle,
		"author":      in.Author,
		"condition":   in.Condition,
	}
	for _, field := range []string{"donor_name", "donor_email", "donor_phone", "book_title", "author", "condition"} {
		if strings.TrimSpace(required[field]) == "" {
			return domain.NewValidationError(field, "is required")
		}
	}

	if !phonePattern.MatchString(strings.TrimSpace(in.DonorPhone)) {
		return domain.NewValidationError("donor_phone", "must be a 10-digit number")
	}
	if !validEmail(strings.ToLower(strings.TrimSpace(in.DonorEmail))) {
		return domain.NewValidationError("donor_email", "is not a valid address")
	}
	if !domain.BookCondition(in.Condition).IsValid() {
		return domain.NewValidationError("condition", "must be excellent, good, fair or poor")
	}
	if in.Quantity < 1 {
		return domain.NewValidationError("quantity", "must be at least 1")
	}
	return nil
}

// Submit records a donation offer. Quantity defaults to one copy.
func (s *DonationService) Submit(ctx context.Context, input *DonationInput) (*models.BookDonation, error) {
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	donation := &models.BookDonation{
		DonorName:       strings.TrimSpace(input.DonorName),
		DonorEmail:      strings.ToLower(strings.TrimSpace(input.DonorEmail)),
		DonorPhone:      strings.TrimSpace(input.DonorPhone),
		BookTitle:       strings.TrimSpace(input.BookTitle),
		Author:          strings.TrimSpace(input.Author),
		ISBN:            strings.TrimSpace(input.ISBN),
		Publisher:       input.Publisher,
		PublicationYear: input.PublicationYear,
		Condition:       input.Condition,
		Quantity:        input.Quantity,
		Description:     input.Description,
		CategoryName:    strings.TrimSpace(input.CategoryName),
		Status:          string(domain.DonationPending),
		DonationDate:    s.now(),
		IsActive:        true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repositories.NewDonationRepository(tx).Create(ctx, donation); err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, tx, domain.EventDonationReceived, donation.DonorEmail, donationPayload(donation))
	})
	if err != nil {
		return nil, err
	}

	logger.Info("donation submitted",
		zap.Uint("donation_id", donation.ID),
		zap.String("title", donation.BookTitle),
		zap.Int("quantity", donation.Quantity))
	return donation, nil
}

// UpdateStatus moves a donation between states. Collected is terminal, and moving into it
// credits the copies to the catalog in the same transaction.
func (s *DonationService) UpdateStatus(ctx context.Context, input *DonationStatusInput) (*models.BookDonation, error) {
	if !input.Status.IsValid() {
		return nil, domain.ErrInvalidDonationStatus
	}

	donations := repositories.NewDonationRepository(s.db)
	donation, err := donations.GetByID(ctx, input.DonationID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, err
	}
	if donation.Status == string(domain.DonationCollected) {
		return nil, domain.ErrDonationCollected
	}

	previous := donation.Status
	now := s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repositories.NewDonationRepository(tx)
		ok, err := repo.TransitionStatus(ctx, donation.ID, previous, string(input.Status), input.Comments)
		if err != nil {
			return err
		}
		if !ok {
			// changed underneath us
			current, err := repo.GetByID(ctx, donation.ID)
			if err != nil {
				return err
			}
			if current.Status == string(domain.DonationCollected) {
				return domain.ErrDonationCollected
			}
			return domain.ErrInvalidDonationStatus
		}

		if input.Status == domain.DonationCollected {
			book, _, err := MergeOrCreateFromDonation(ctx, tx, donation, now.Year())
			if err != nil {
				return err
			}
			if err := repo.MarkCollected(ctx, donation.ID, book.ID, now); err != nil {
				return err
			}
		}

		if string(input.Status) == previous {
			return nil
		}
		donation.Status = string(input.Status)
		payload := donationPayload(donation)
		payload["comments"] = input.Comments
		return s.outbox.Enqueue(ctx, tx, domain.EventDonationStatus, donation.DonorEmail, payload)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("donation status updated",
		zap.Uint("donation_id", donation.ID),
		zap.String("from", previous),
		zap.String("to", string(input.Status)))

	return donations.GetByID(ctx, donation.ID)
}

// Get gets a donation
func (s *DonationService) Get(ctx context.Context, id uint) (*models.BookDonation, error) {
	donation, err := repositories.NewDonationRepository(s.db).GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, domain.ErrDonationNotFound
		}
		return nil, err
	}
	return donation, nil
}

// List lists donations, optionally by status
func (s *DonationService) List(ctx context.Context, status string, page repositories.Page) ([]*models.BookDonation, int64, error) {
	if status != "" && !domain.DonationStatus(status).IsValid() {
		return nil, 0, domain.ErrInvalidDonationStatus
	}
	return repositories.NewDonationRepository(s.db).List(ctx, status, page)
}

// Search finds donations by title, author, donor or ISBN
func (s *DonationService) Search(ctx context.Context, query string) ([]*models.BookDonation, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.NewValidationError("q", "search query is required")
	}
	return repositories.NewDonationRepository(s.db).Search(ctx, query, donationSearchLimit)
}

// PendingCount counts donations awaiting review
func (s *DonationService) PendingCount(ctx context.Context) (int64, error) {
	return repositories.NewDonationRepository(s.db).CountByStatus(ctx, string(domain.DonationPending))
}

func donationPayload(d *models.BookDonation) map[string]interface{} {
	return map[string]interface{}{
		"donation_id": d.ID,
		"donor_name":  d.DonorName,
		"book_title":  d.BookTitle,
		"quantity":    d.Quantity,
		"status":      d.Status,
	}
}
