package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	StatusActive  LoanStatus = "ACTIVE"
	StatusPaid    LoanStatus = "PAID"
	StatusOverdue LoanStatus = "OVERDUE"
)

// Legacy tokens found in older records and clients, normalized at the boundary.
var statusAliases = map[string]LoanStatus{
	"ACTIVE":        StatusActive,
	"DANG_VAY":      StatusActive,
	"ĐANG_VAY":      StatusActive,
	"CHUA_TRA":      StatusActive,
	"CHƯA_TRẢ":      StatusActive,
	"PAID":          StatusPaid,
	"DA_TRA":        StatusPaid,
	"ĐÃ_TRẢ":        StatusPaid,
	"DA_THANH_TOAN": StatusPaid,
	"ĐÃ_THANH_TOÁN": StatusPaid,
	"OVERDUE":       StatusOverdue,
	"QUA_HAN":       StatusOverdue,
	"QUÁ_HẠN":       StatusOverdue,
}

// ParseLoanStatus is case-insensitive and accepts the legacy aliases.
func ParseLoanStatus(s string) (LoanStatus, error) {
	key := strings.ToUpper(strings.Join(strings.Fields(s), "_"))
	if st, ok := statusAliases[key]; ok {
		return st, nil
	}
	return "", ErrInvalidStatus
}

func (s LoanStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

type RatePeriod string

const (
	PerDay     RatePeriod = "day"
	PerWeek    RatePeriod = "week"
	PerMonth   RatePeriod = "month"
	PerQuarter RatePeriod = "quarter"
	PerYear    RatePeriod = "year"
)

// Days is the nominal length of the period used for simple-interest accrual.
func (p RatePeriod) Days() int {
	switch p {
	case PerDay:
		return 1
	case PerWeek:
		return 7
	case PerMonth:
		return 30
	case PerQuarter:
		return 90
	case PerYear:
		return 365
	}
	return 0
}

func (p RatePeriod) Valid() bool { return p.Days() > 0 }

type (
	// Loan is a tracked obligation. AmountPaid may exceed Amount.
	Loan struct {
		ID           int64
		UserID       string
		Amount       Money
		InterestRate decimal.Decimal // percent per RatePeriod
		RatePeriod   RatePeriod
		Lender       string
		Description  string
		StartDate    time.Time
		DueDate      time.Time
		Status       LoanStatus
		AmountPaid   Money
		Version      int64
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	LoanPayment struct {
		ID          int64
		LoanID      int64
		UserID      string
		Amount      Money
		PaymentDate time.Time
		Description string
		CreatedAt   time.Time
	}

	// LoanPatch carries the fields of a partial loan edit; nil means unchanged.
	LoanPatch struct {
		Amount       *Money
		InterestRate *decimal.Decimal
		RatePeriod   *RatePeriod
		Lender       *string
		Description  *string
		StartDate    *time.Time
		DueDate      *time.Time
		Status       *LoanStatus
	}

	// StatusTransition records a loan moving between statuses.
	StatusTransition struct {
		LoanID int64
		From   LoanStatus
		To     LoanStatus
	}
)

func (l Loan) Validate() error {
	if strings.TrimSpace(l.UserID) == "" {
		return ErrEmptyUser
	}
	if err := l.Amount.Validate(); err != nil {
		return err
	}
	if l.InterestRate.IsNegative() {
		return ErrInvalidAmount
	}
	if l.RatePeriod != "" && !l.RatePeriod.Valid() {
		return ErrInvalidPeriod
	}
	if l.Status != "" && !l.Status.Valid() {
		return ErrInvalidStatus
	}
	if !l.StartDate.IsZero() && !l.DueDate.IsZero() && !l.DueDate.After(l.StartDate) {
		return ErrInvalidDates
	}
	return nil
}

// FullyPaid reports AmountPaid >= Amount.
func (l Loan) FullyPaid() bool {
	return l.AmountPaid >= l.Amount
}

// PastDue reports whether now is after the due date. Loans without a due
// date never become overdue.
func (l Loan) PastDue(now time.Time) bool {
	return !l.DueDate.IsZero() && now.After(l.DueDate)
}

// Outstanding is the remaining balance, never negative.
func (l Loan) Outstanding() Money {
	if l.AmountPaid >= l.Amount {
		return 0
	}
	return l.Amount - l.AmountPaid
}

// DeriveStatus computes the status implied by the balance and the clock.
func DeriveStatus(l Loan, now time.Time) LoanStatus {
	switch {
	case l.FullyPaid():
		return StatusPaid
	case l.PastDue(now):
		return StatusOverdue
	default:
		return StatusActive
	}
}

// AccruedInterest is the simple interest on the principal from StartDate to
// asOf, counted in whole days against the nominal period length.
func (l Loan) AccruedInterest(asOf time.Time) decimal.Decimal {
	days := l.RatePeriod.Days()
	if days == 0 || l.StartDate.IsZero() || !asOf.After(l.StartDate) || l.InterestRate.IsZero() {
		return decimal.Zero
	}
	elapsed := int64(asOf.Sub(l.StartDate).Hours() / 24)
	return l.Amount.Decimal().
		Mul(l.InterestRate).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromInt(elapsed)).
		Div(decimal.NewFromInt(int64(days))).
		Round(0)
}

// Apply returns a copy of l with the patch applied and validated.
func (p LoanPatch) Apply(l Loan) (Loan, error) {
	if p.Amount != nil {
		l.Amount = *p.Amount
	}
	if p.InterestRate != nil {
		l.InterestRate = *p.InterestRate
	}
	if p.RatePeriod != nil {
		l.RatePeriod = *p.RatePeriod
	}
	if p.Lender != nil {
		l.Lender = strings.TrimSpace(*p.Lender)
	}
	if p.Description != nil {
		l.Description = strings.TrimSpace(*p.Description)
	}
	if p.StartDate != nil {
		l.StartDate = *p.StartDate
	}
	if p.DueDate != nil {
		l.DueDate = *p.DueDate
	}
	if p.Status != nil {
		l.Status = *p.Status
	}
	if err := l.Validate(); err != nil {
		return Loan{}, err
	}
	return l, nil
}

func (p LoanPayment) Validate() error {
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if p.PaymentDate.IsZero() {
		return ErrMissingDate
	}
	return nil
}
