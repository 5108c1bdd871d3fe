// Package threshold decides, from current numeric state, whether an
// alertable condition holds. Every function here is pure: the alert pipeline
// calls them after each write and relies on the notification inbox to
// suppress repeats.
package threshold

import (
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var (
	// WarningPercent is the consumption level at which a budget starts warning.
	WarningPercent = decimal.NewFromInt(80)
	// ExceededPercent is the consumption level at which a budget is exceeded.
	ExceededPercent = decimal.NewFromInt(100)
)

// DueSoonWindow is how far ahead of the due date an active loan is flagged.
const DueSoonWindow = 3 * 24 * time.Hour

// EvaluateBudget returns WARNING for 80% <= consumption < 100%, EXCEEDED at
// 100% or more, and false otherwise.
func EvaluateBudget(b core.Budget) (core.Condition, bool) {
	pct := b.Percentage()
	switch {
	case pct.GreaterThanOrEqual(ExceededPercent):
		return core.ConditionExceeded, true
	case pct.GreaterThanOrEqual(WarningPercent):
		return core.ConditionWarning, true
	default:
		return "", false
	}
}

// EvaluateBalance returns NEGATIVE when expenses exceed income.
func EvaluateBalance(totalIncome, totalExpense core.Money) (core.Condition, bool) {
	if totalIncome-totalExpense < 0 {
		return core.ConditionNegative, true
	}
	return "", false
}

// EvaluateLoanDue uses the default due-soon window.
func EvaluateLoanDue(loan core.Loan, now time.Time) (core.Condition, bool) {
	return EvaluateLoanDueWithin(loan, now, DueSoonWindow)
}

// EvaluateLoanDueWithin returns OVERDUE for a loan whose status is OVERDUE,
// and DUE_SOON for an ACTIVE loan due within (0, window].
func EvaluateLoanDueWithin(loan core.Loan, now time.Time, window time.Duration) (core.Condition, bool) {
	switch loan.Status {
	case core.StatusOverdue:
		return core.ConditionOverdue, true
	case core.StatusActive:
		if loan.DueDate.IsZero() {
			return "", false
		}
		left := loan.DueDate.Sub(now)
		if left > 0 && left <= window {
			return core.ConditionDueSoon, true
		}
	}
	return "", false
}
