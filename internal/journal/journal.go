// Package journal mirrors loan payments into an append-only external log.
package journal

import (
	"context"
	"errors"
	"time"

	"fintrack/internal/core"
)

type EntryKind string

const (
	KindPayment  EntryKind = "payment"
	KindReversal EntryKind = "reversal"
)

// Entry is one journal row.
type Entry struct {
	Kind        EntryKind
	LoanID      int64
	PaymentID   int64
	UserID      string
	Lender      string
	Amount      core.Money
	Outstanding core.Money
	Status      core.LoanStatus
	PaymentDate time.Time
	RecordedAt  time.Time
}

var ErrInvalidEntry = errors.New("invalid journal entry")

func (e Entry) Validate() error {
	if e.Kind != KindPayment && e.Kind != KindReversal {
		return ErrInvalidEntry
	}
	if e.LoanID == 0 || e.PaymentID == 0 || e.Amount <= 0 {
		return ErrInvalidEntry
	}
	return nil
}

// SignedAmount is negative for reversals.
func (e Entry) SignedAmount() core.Money {
	if e.Kind == KindReversal {
		return -e.Amount
	}
	return e.Amount
}

// Writer appends entries and returns a reference to the stored row.
type Writer interface {
	Append(ctx context.Context, e Entry) (rowRef string, err error)
}
