package ledger

import (
	"context"
	"time"

	"fintrack/internal/core"
)

type EventKind string

const (
	EventPaymentRecorded EventKind = "payment.recorded"
	EventPaymentReversed EventKind = "payment.reversed"
	EventStatusChanged   EventKind = "loan.status_changed"
)

// Event describes a committed ledger change.
type Event struct {
	Kind       EventKind
	Loan       core.Loan
	Payment    *core.LoanPayment
	Transition *core.StatusTransition
	OccurredAt time.Time
}

// EventSink receives ledger events after the store write succeeded.
// Emit errors are logged and never undo the write.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event) error

func (f EventSinkFunc) Emit(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}
