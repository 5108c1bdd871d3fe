package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/session"
)

// Routing keys on the topic exchange.
const (
	RoutingLedgerPrefix     = "ledger."
	RoutingLedgerAll        = "ledger.#"
	RoutingSessionUser      = "session.user"
	RoutingSessionBroadcast = "session.broadcast"
	RoutingSessionAll       = "session.#"
)

// LedgerEventMessage is the wire form of a committed ledger change.
type LedgerEventMessage struct {
	Kind        ledger.EventKind `json:"kind"`
	LoanID      int64            `json:"loanId"`
	UserID      string           `json:"userId"`
	Lender      string           `json:"lender,omitempty"`
	Status      core.LoanStatus  `json:"status"`
	OldStatus   core.LoanStatus  `json:"oldStatus,omitempty"`
	Outstanding int64            `json:"outstanding"`
	PaymentID   int64            `json:"paymentId,omitempty"`
	Amount      int64            `json:"amount,omitempty"`
	PaymentDate time.Time        `json:"paymentDate,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt"`
}

func NewLedgerEventMessage(ev ledger.Event) *LedgerEventMessage {
	msg := &LedgerEventMessage{
		Kind:        ev.Kind,
		LoanID:      ev.Loan.ID,
		UserID:      ev.Loan.UserID,
		Lender:      ev.Loan.Lender,
		Status:      ev.Loan.Status,
		Outstanding: int64(ev.Loan.Outstanding()),
		OccurredAt:  ev.OccurredAt,
	}
	if ev.Payment != nil {
		msg.PaymentID = ev.Payment.ID
		msg.Amount = int64(ev.Payment.Amount)
		msg.PaymentDate = ev.Payment.PaymentDate
	}
	if ev.Transition != nil {
		msg.OldStatus = ev.Transition.From
	}
	return msg
}

func (m *LedgerEventMessage) RoutingKey() string {
	return RoutingLedgerPrefix + string(m.Kind)
}

// SessionEventMessage relays a session push to other server processes.
// An empty UserID means broadcast.
type SessionEventMessage struct {
	Origin string        `json:"origin"`
	UserID string        `json:"userId,omitempty"`
	Event  session.Event `json:"event"`
}

func decode[T any](data []byte) (*T, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode %T: %v: %w", msg, err, ErrPermanent)
	}
	return &msg, nil
}
