package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Day is the fine accrual unit
const Day = 24 * time.Hour

// LoanState is derived from the due date and the returned flag, never stored
type LoanState string

const (
	LoanActive   LoanState = "active"
	LoanOverdue  LoanState = "overdue"
	LoanReturned LoanState = "returned"
)

// ClassifyLoan is the single source of truth for a loan's state
func ClassifyLoan(now, due time.Time, isReturned bool) LoanState {
	if isReturned {
		return LoanReturned
	}
	if now.After(due) {
		return LoanOverdue
	}
	return LoanActive
}

// OverdueDays counts started days past due. Any fraction of a day counts as a full day.
func OverdueDays(now, due time.Time) int {
	if !now.After(due) {
		return 0
	}
	elapsed := now.Sub(due)
	days := int(elapsed / Day)
	if elapsed%Day != 0 {
		days++
	}
	return days
}

// OverdueFine is days times the daily rate
func OverdueFine(days int, rate decimal.Decimal) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(days)))
}

var damageFines = map[DamageType]int64{
	DamageNone:     0,
	DamageMinor:    50,
	DamageModerate: 150,
	DamageSevere:   300,
	DamageLost:     500,
}

// DefaultDamageFine is the charge applied when the caller does not supply one
func DefaultDamageFine(d DamageType) decimal.Decimal {
	return decimal.NewFromInt(damageFines[d])
}

// FineBreakdown is the result of a fine computation
type FineBreakdown struct {
	OverdueDays int             `json:"overdue_days"`
	OverdueFine decimal.Decimal `json:"overdue_fine"`
	DamageFine  decimal.Decimal `json:"damage_fine"`
	TotalFine   decimal.Decimal `json:"total_fine"`
}

// ComputeOverdue recomputes the overdue part from elapsed time. It never accumulates.
func ComputeOverdue(now, due time.Time, damage, rate decimal.Decimal) FineBreakdown {
	days := OverdueDays(now, due)
	overdue := OverdueFine(days, rate)
	return FineBreakdown{
		OverdueDays: days,
		OverdueFine: overdue,
		DamageFine:  damage,
		TotalFine:   overdue.Add(damage),
	}
}

// LedgerFineType classifies a ledger entry from its components
func LedgerFineType(overdue, damage decimal.Decimal) FineType {
	switch {
	case overdue.IsPositive() && damage.IsPositive():
		return FineTypeBoth
	case damage.IsPositive():
		return FineTypeDamage
	default:
		return FineTypeOverdue
	}
}

// DueDate returns the due date for a loan issued at issuedAt
func DueDate(issuedAt time.Time, loanPeriodDays int) time.Time {
	return issuedAt.Add(time.Duration(loanPeriodDays) * Day)
}
