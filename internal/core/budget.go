package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Budget is a monthly spending limit for one category. Spent is kept up to
	// date by expense writes.
	Budget struct {
		ID        int64
		UserID    string
		Category  string
		Amount    Money
		Spent     Money
		Month     int // 1-12
		Year      int
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	EntryKind string

	// CashEntry is a recorded income or expense.
	CashEntry struct {
		ID          int64
		UserID      string
		Kind        EntryKind
		Amount      Money
		Category    string
		Description string
		Date        time.Time
		CreatedAt   time.Time
	}

	// Totals aggregates a user's recorded cash flow.
	Totals struct {
		Income  Money
		Expense Money
	}
)

const (
	KindIncome  EntryKind = "income"
	KindExpense EntryKind = "expense"
)

var hundred = decimal.NewFromInt(100)

// Percentage is Spent/Amount*100, or zero for a budget without a limit.
func (b Budget) Percentage() decimal.Decimal {
	if b.Amount <= 0 {
		return decimal.Zero
	}
	return b.Spent.Decimal().Div(b.Amount.Decimal()).Mul(hundred)
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrEmptyUser
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.Spent < 0 {
		return ErrInvalidAmount
	}
	if b.Month < 1 || b.Month > 12 || b.Year < 1 {
		return ErrInvalidMonth
	}
	return nil
}

func (e CashEntry) Validate() error {
	if strings.TrimSpace(e.UserID) == "" {
		return ErrEmptyUser
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if e.Kind != KindIncome && e.Kind != KindExpense {
		return ErrInvalidState
	}
	if e.Date.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// Balance is income minus expense.
func (t Totals) Balance() Money {
	return t.Income - t.Expense
}
