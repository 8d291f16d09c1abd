package services

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SystemClock is the production time source
func SystemClock() time.Time {
	return time.Now().UTC()
}

const dateLayout = "2006-01-02"

// takeCopy decrements stock inside tx and names the reason when it cannot
func takeCopy(ctx context.Context, tx *gorm.DB, bookID uint) error {
	books := repositories.NewBookRepository(tx)
	ok, err := books.DecrementAvailable(ctx, bookID, 1)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	exists, err := books.Exists(ctx, bookID)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrBookNotFound
	}
	return domain.ErrNoCopiesAvailable
}

// putBackCopy increments stock inside tx, warning when the count is already at total
func putBackCopy(ctx context.Context, tx *gorm.DB, bookID uint) error {
	var book models.Book
	if err := tx.WithContext(ctx).Select("id", "total_copies", "available_copies").First(&book, bookID).Error; err != nil {
		if repositories.IsNotFound(err) {
			logger.Warn("returned copy belongs to a missing book", zap.Uint("book_id", bookID))
			return nil
		}
		return err
	}
	if book.AvailableCopies+1 > book.TotalCopies {
		logger.Warn("available copies already at total, clamping",
			zap.Uint("book_id", bookID),
			zap.Int("total_copies", book.TotalCopies),
			zap.Int("available_copies", book.AvailableCopies))
	}
	_, err := repositories.NewBookRepository(tx).IncrementAvailable(ctx, bookID, 1)
	return err
}

// upsertPendingFine keeps a single pending ledger entry per loan in step with the loan's fine.
// Settled entries are never reopened: the pending entry bills only what they did not cover.
// Returns nil when nothing is left to bill.
func upsertPendingFine(ctx context.Context, tx *gorm.DB, issue *models.Issue, fine domain.FineBreakdown, damage domain.DamageType, description string) (*models.FineHistory, error) {
	fines := repositories.NewFineRepository(tx)

	settledOverdue, settledDamage, err := fines.SettledParts(ctx, issue.ID)
	if err != nil {
		return nil, err
	}
	bill := unbilled(fine, settledOverdue, settledDamage)

	existing, err := fines.GetPendingByIssue(ctx, issue.ID)
	if err != nil && !repositories.IsNotFound(err) {
		return nil, err
	}

	if existing != nil {
		updates := map[string]interface{}{
			"fine_type":      string(domain.LedgerFineType(bill.OverdueFine, bill.DamageFine)),
			"amount":         bill.TotalFine,
			"overdue_amount": bill.OverdueFine,
			"damage_amount":  bill.DamageFine,
			"overdue_days":   bill.OverdueDays,
		}
		if damage != "" {
			updates["damage_type"] = string(damage)
			updates["damage_description"] = description
		}
		ok, err := fines.UpdatePending(ctx, existing.ID, updates)
		if err != nil {
			return nil, err
		}
		if ok {
			return fines.GetPendingByIssue(ctx, issue.ID)
		}
	}

	if !bill.TotalFine.IsPositive() {
		if settledOverdue.Add(settledDamage).IsPositive() {
			logger.Debug("fine fully settled, ledger unchanged", zap.Uint("issue_id", issue.ID))
		}
		return nil, nil
	}

	key := issue.ID
	entry := &models.FineHistory{
		UserID:            issue.UserID,
		IssueID:           issue.ID,
		PendingKey:        &key,
		FineType:          string(domain.LedgerFineType(bill.OverdueFine, bill.DamageFine)),
		Amount:            bill.TotalFine,
		OverdueAmount:     bill.OverdueFine,
		DamageAmount:      bill.DamageFine,
		OverdueDays:       bill.OverdueDays,
		DamageType:        string(damage),
		DamageDescription: description,
		Status:            string(domain.FinePending),
		IsActive:          true,
	}
	if entry.DamageType == "" {
		entry.DamageType = string(domain.DamageNone)
	}
	if err := fines.Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := repositories.NewIssueRepository(tx).ReopenFine(ctx, issue.ID); err != nil {
		return nil, err
	}
	return entry, nil
}

// unbilled is the part of fine not yet covered by settled entries, per component
func unbilled(fine domain.FineBreakdown, settledOverdue, settledDamage decimal.Decimal) domain.FineBreakdown {
	overdue := decimal.Max(fine.OverdueFine.Sub(settledOverdue), decimal.Zero)
	damage := decimal.Max(fine.DamageFine.Sub(settledDamage), decimal.Zero)
	return domain.FineBreakdown{
		OverdueDays: fine.OverdueDays,
		OverdueFine: overdue,
		DamageFine:  damage,
		TotalFine:   overdue.Add(damage),
	}
}

// loanPayload is the notification payload shared by loan events
func loanPayload(issue *models.Issue) map[string]interface{} {
	p := map[string]interface{}{
		"issue_id":    issue.ID,
		"due_date":    issue.ReturnDate.Format(dateLayout),
		"fine_amount": issue.FineAmount.StringFixed(2),
	}
	if issue.User != nil {
		p["user_name"] = issue.User.Name
	}
	if issue.Book != nil {
		p["book_title"] = issue.Book.Title
	}
	return p
}

func userEmail(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
