package worker

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/journal"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// JournalConsumer mirrors payment events from the ledger exchange into the
// external journal.
type JournalConsumer struct {
	writer journal.Writer
	now    func() time.Time
	logger *log.Logger
}

func NewJournalConsumer(writer journal.Writer) *JournalConsumer {
	return &JournalConsumer{
		writer: writer,
		now:    time.Now,
		logger: log.ForComponent(log.ComponentJournal),
	}
}

// HandleLedgerEvent appends recorded and reversed payments. Status-only
// events are acknowledged without a row. Returning an error requeues the
// message unless it wraps amqp.ErrPermanent.
func (c *JournalConsumer) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	entry, ok := EntryFromMessage(msg, c.now())
	if !ok {
		c.logger.DebugContext(ctx, "Skipping ledger event",
			"kind", msg.Kind, log.FieldLoanID, msg.LoanID)
		return nil
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("ledger event for loan %d: %v: %w", msg.LoanID, err, amqp.ErrPermanent)
	}

	ref, err := c.writer.Append(ctx, entry)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to append journal entry",
			log.FieldLoanID, msg.LoanID,
			log.FieldPaymentID, msg.PaymentID,
			log.FieldError, err)
		return fmt.Errorf("append journal entry: %w", err)
	}

	c.logger.InfoContext(ctx, "Journal entry appended",
		log.FieldLoanID, msg.LoanID,
		log.FieldPaymentID, msg.PaymentID,
		"kind", entry.Kind,
		"ref", ref)
	return nil
}

// EntryFromMessage converts a payment event into a journal row.
func EntryFromMessage(msg *amqp.LedgerEventMessage, recordedAt time.Time) (journal.Entry, bool) {
	var kind journal.EntryKind
	switch msg.Kind {
	case ledger.EventPaymentRecorded:
		kind = journal.KindPayment
	case ledger.EventPaymentReversed:
		kind = journal.KindReversal
	default:
		return journal.Entry{}, false
	}

	if !msg.OccurredAt.IsZero() {
		recordedAt = msg.OccurredAt
	}
	return journal.Entry{
		Kind:        kind,
		LoanID:      msg.LoanID,
		PaymentID:   msg.PaymentID,
		UserID:      msg.UserID,
		Lender:      msg.Lender,
		Amount:      core.Money(msg.Amount),
		Outstanding: core.Money(msg.Outstanding),
		Status:      msg.Status,
		PaymentDate: msg.PaymentDate,
		RecordedAt:  recordedAt,
	}, true
}
