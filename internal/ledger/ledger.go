// Package ledger applies payments to loans and keeps their status in step
// with the balance and the clock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/storage"
)

// Alerter receives the ledger's user-facing side effects.
type Alerter interface {
	NotifyOnce(ctx context.Context, a notify.Alert, build notify.Builder) *core.Notification
	PublishStatusChange(ctx context.Context, userID string, t core.StatusTransition)
}

type Ledger struct {
	store  storage.LoanStore
	alerts Alerter
	sink   EventSink
	now    func() time.Time
	logger *log.Logger
}

func New(store storage.LoanStore, alerts Alerter) *Ledger {
	return &Ledger{
		store:  store,
		alerts: alerts,
		now:    time.Now,
		logger: log.ForComponent(log.ComponentLedger),
	}
}

// SetEventSink registers where committed ledger events are emitted.
func (l *Ledger) SetEventSink(sink EventSink) {
	l.sink = sink
}

// load fetches a loan and checks the caller may touch it.
func (l *Ledger) load(ctx context.Context, caller core.Caller, loanID int64) (core.Loan, error) {
	loan, err := l.store.GetLoan(ctx, loanID)
	if err != nil {
		return core.Loan{}, err
	}
	if !caller.CanAccess(loan.UserID) {
		return core.Loan{}, fmt.Errorf("loan %d: %w", loanID, core.ErrForbidden)
	}
	return loan, nil
}

// mutate runs a read-modify-write against the loan. A version conflict
// reloads the loan and retries once; a second conflict is returned.
func (l *Ledger) mutate(ctx context.Context, loan core.Loan, write func(cur core.Loan) (core.Loan, error)) (core.Loan, error) {
	updated, err := write(loan)
	if !errors.Is(err, core.ErrConflict) {
		return updated, err
	}

	l.logger.DebugContext(ctx, "Loan version conflict, retrying", log.FieldLoanID, loan.ID)
	fresh, err := l.store.GetLoan(ctx, loan.ID)
	if err != nil {
		return core.Loan{}, err
	}
	updated, err = write(fresh)
	if errors.Is(err, core.ErrConflict) {
		return core.Loan{}, fmt.Errorf("loan %d changed concurrently: %w", loan.ID, core.ErrConflict)
	}
	return updated, err
}

// CreateLoan stores a new loan owned by loan.UserID, defaulting to the caller.
// The status is derived unless the caller sets one.
func (l *Ledger) CreateLoan(ctx context.Context, caller core.Caller, loan core.Loan) (core.Loan, error) {
	if loan.UserID == "" {
		loan.UserID = caller.UserID
	}
	if !caller.CanAccess(loan.UserID) {
		return core.Loan{}, fmt.Errorf("create loan: %w", core.ErrForbidden)
	}
	loan.Lender = strings.TrimSpace(loan.Lender)
	loan.Description = strings.TrimSpace(loan.Description)
	loan.AmountPaid = 0
	if loan.Status == "" {
		loan.Status = core.DeriveStatus(loan, l.now())
	}
	if err := loan.Validate(); err != nil {
		return core.Loan{}, err
	}

	created, err := l.store.CreateLoan(ctx, loan)
	if err != nil {
		return core.Loan{}, fmt.Errorf("create loan: %w", err)
	}
	l.logger.InfoContext(ctx, "Loan created",
		log.NewFields().WithUser(created.UserID).WithLoan(created.ID, "", string(created.Status)).ToSlice()...)
	return created, nil
}

// GetLoan returns the loan with its overdue status brought up to date.
func (l *Ledger) GetLoan(ctx context.Context, caller core.Caller, loanID int64) (core.Loan, error) {
	loan, err := l.load(ctx, caller, loanID)
	if err != nil {
		return core.Loan{}, err
	}
	return l.refresh(ctx, loan)
}

// ListLoans returns the user's loans, refreshed, optionally filtered by
// their current status.
func (l *Ledger) ListLoans(ctx context.Context, caller core.Caller, userID string, status core.LoanStatus) ([]core.Loan, error) {
	if userID == "" {
		userID = caller.UserID
	}
	if !caller.CanAccess(userID) {
		return nil, fmt.Errorf("list loans: %w", core.ErrForbidden)
	}
	loans, err := l.store.ListLoans(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	out := make([]core.Loan, 0, len(loans))
	for _, loan := range loans {
		fresh, err := l.refresh(ctx, loan)
		if err != nil {
			return nil, err
		}
		if status == "" || fresh.Status == status {
			out = append(out, fresh)
		}
	}
	return out, nil
}

// RefreshStatus recomputes the lazy overdue transition for one loan. It
// performs no ownership check and backs the periodic sweep.
func (l *Ledger) RefreshStatus(ctx context.Context, loanID int64) (core.Loan, error) {
	loan, err := l.store.GetLoan(ctx, loanID)
	if err != nil {
		return core.Loan{}, err
	}
	return l.refresh(ctx, loan)
}

// refresh persists ACTIVE -> OVERDUE once the due date has passed. It is
// the only transition the clock alone can cause.
func (l *Ledger) refresh(ctx context.Context, loan core.Loan) (core.Loan, error) {
	if !needsOverdue(loan, l.now()) {
		return loan, nil
	}

	from := loan.Status
	wrote := false
	updated, err := l.mutate(ctx, loan, func(cur core.Loan) (core.Loan, error) {
		if !needsOverdue(cur, l.now()) {
			return cur, nil
		}
		from = cur.Status
		next := cur
		next.Status = core.StatusOverdue
		written, err := l.store.UpdateLoan(ctx, next)
		wrote = err == nil
		return written, err
	})
	if errors.Is(err, core.ErrConflict) {
		// a concurrent writer owns the row; the next read settles it
		return loan, nil
	}
	if err != nil {
		return core.Loan{}, fmt.Errorf("refresh loan %d: %w", loan.ID, err)
	}
	if wrote {
		l.transitioned(ctx, updated, from, false)
	}
	return updated, nil
}

func needsOverdue(loan core.Loan, now time.Time) bool {
	return loan.Status == core.StatusActive && !loan.FullyPaid() && loan.PastDue(now)
}

// DeleteLoan removes a loan that has no payments.
func (l *Ledger) DeleteLoan(ctx context.Context, caller core.Caller, loanID int64) error {
	if _, err := l.load(ctx, caller, loanID); err != nil {
		return err
	}
	if err := l.store.DeleteLoan(ctx, loanID); err != nil {
		return fmt.Errorf("delete loan %d: %w", loanID, err)
	}
	l.logger.InfoContext(ctx, "Loan deleted", log.FieldLoanID, loanID, log.FieldUserID, caller.UserID)
	return nil
}

func (l *Ledger) ListPayments(ctx context.Context, caller core.Caller, loanID int64) ([]core.LoanPayment, error) {
	if _, err := l.load(ctx, caller, loanID); err != nil {
		return nil, err
	}
	payments, err := l.store.ListPayments(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// UpdateLoanFields applies a patch. An explicit status in the patch
// overrides the derived one and is announced to the owner.
func (l *Ledger) UpdateLoanFields(ctx context.Context, caller core.Caller, loanID int64, patch core.LoanPatch) (core.Loan, error) {
	loan, err := l.load(ctx, caller, loanID)
	if err != nil {
		return core.Loan{}, err
	}
	if _, err := patch.Apply(loan); err != nil {
		return core.Loan{}, err
	}

	from := loan.Status
	updated, err := l.mutate(ctx, loan, func(cur core.Loan) (core.Loan, error) {
		from = cur.Status
		next, err := patch.Apply(cur)
		if err != nil {
			return core.Loan{}, err
		}
		// an earlier override survives edits that leave balance and due date alone
		if patch.Status == nil && (patch.Amount != nil || patch.DueDate != nil) {
			next.Status = core.DeriveStatus(next, l.now())
		}
		return l.store.UpdateLoan(ctx, next)
	})
	if err != nil {
		return core.Loan{}, fmt.Errorf("update loan %d: %w", loanID, err)
	}

	l.logger.InfoContext(ctx, "Loan updated",
		log.NewFields().WithUser(updated.UserID).WithLoan(updated.ID, string(from), string(updated.Status)).ToSlice()...)
	l.transitioned(ctx, updated, from, patch.Status != nil)
	return updated, nil
}

// ApplyPayment records a payment against the loan. The balance update and
// the payment row are written together.
func (l *Ledger) ApplyPayment(ctx context.Context, caller core.Caller, loanID int64, amount core.Money, date time.Time, description string) (core.Loan, core.LoanPayment, error) {
	loan, err := l.load(ctx, caller, loanID)
	if err != nil {
		return core.Loan{}, core.LoanPayment{}, err
	}
	if date.IsZero() {
		date = l.now()
	}
	payment := core.LoanPayment{
		LoanID:      loanID,
		UserID:      loan.UserID,
		Amount:      amount,
		PaymentDate: date,
		Description: strings.TrimSpace(description),
	}
	if err := payment.Validate(); err != nil {
		return core.Loan{}, core.LoanPayment{}, err
	}

	var saved core.LoanPayment
	from := loan.Status
	updated, err := l.mutate(ctx, loan, func(cur core.Loan) (core.Loan, error) {
		from = cur.Status
		next := cur
		next.AmountPaid += amount
		next.Status = core.DeriveStatus(next, l.now())
		written, p, err := l.store.RecordPayment(ctx, next, payment)
		if err != nil {
			return core.Loan{}, err
		}
		saved = p
		return written, nil
	})
	if err != nil {
		return core.Loan{}, core.LoanPayment{}, fmt.Errorf("apply payment to loan %d: %w", loanID, err)
	}

	l.logger.InfoContext(ctx, "Payment applied",
		log.NewFields().
			WithOperation(log.OpPay).
			WithUser(updated.UserID).
			WithLoan(updated.ID, string(from), string(updated.Status)).
			WithPayment(saved.ID, int64(saved.Amount)).
			ToSlice()...)

	l.notifyPayment(ctx, updated, saved)
	l.transitioned(ctx, updated, from, false)
	l.emit(ctx, Event{Kind: EventPaymentRecorded, Loan: updated, Payment: &saved, OccurredAt: l.now()})
	return updated, saved, nil
}

// ReversePayment deletes a payment and takes its amount back off the loan.
func (l *Ledger) ReversePayment(ctx context.Context, caller core.Caller, paymentID int64) (core.Loan, error) {
	payment, err := l.store.GetPayment(ctx, paymentID)
	if err != nil {
		return core.Loan{}, err
	}
	loan, err := l.load(ctx, caller, payment.LoanID)
	if err != nil {
		return core.Loan{}, err
	}

	from := loan.Status
	updated, err := l.mutate(ctx, loan, func(cur core.Loan) (core.Loan, error) {
		from = cur.Status
		next := cur
		next.AmountPaid -= payment.Amount
		if next.AmountPaid < 0 {
			next.AmountPaid = 0
		}
		next.Status = core.DeriveStatus(next, l.now())
		return l.store.RemovePayment(ctx, next, payment.ID)
	})
	if err != nil {
		return core.Loan{}, fmt.Errorf("reverse payment %d: %w", paymentID, err)
	}

	l.logger.InfoContext(ctx, "Payment reversed",
		log.NewFields().
			WithOperation(log.OpReverse).
			WithUser(updated.UserID).
			WithLoan(updated.ID, string(from), string(updated.Status)).
			WithPayment(payment.ID, int64(payment.Amount)).
			ToSlice()...)

	l.transitioned(ctx, updated, from, false)
	l.emit(ctx, Event{Kind: EventPaymentReversed, Loan: updated, Payment: &payment, OccurredAt: l.now()})
	return updated, nil
}

// transitioned pushes the structural status event and the matching
// notification when the status moved.
func (l *Ledger) transitioned(ctx context.Context, loan core.Loan, from core.LoanStatus, explicit bool) {
	if from == loan.Status {
		return
	}
	t := core.StatusTransition{LoanID: loan.ID, From: from, To: loan.Status}
	l.alerts.PublishStatusChange(ctx, loan.UserID, t)
	l.emit(ctx, Event{Kind: EventStatusChanged, Loan: loan, Transition: &t, OccurredAt: l.now()})

	alert := notify.Alert{
		UserID:  loan.UserID,
		Subject: core.SubjectKey{Model: core.ModelLoan, ID: notify.SubjectID(loan.ID)},
		Type:    core.TypeLoan,
	}
	switch {
	case explicit:
		alert.Condition = core.ConditionStatus
	case loan.Status == core.StatusPaid:
		alert.Condition = core.ConditionPaid
	case from == core.StatusPaid && loan.Status == core.StatusActive:
		alert.Condition = core.ConditionReopened
	case loan.Status == core.StatusOverdue:
		alert.Type = core.TypeLoanOverdue
		alert.Condition = core.ConditionOverdue
	default:
		return
	}
	l.alerts.NotifyOnce(ctx, alert, func() notify.Content { return transitionContent(loan, t, alert.Condition) })
}

func (l *Ledger) notifyPayment(ctx context.Context, loan core.Loan, p core.LoanPayment) {
	l.alerts.NotifyOnce(ctx, notify.Alert{
		UserID:    loan.UserID,
		Subject:   core.SubjectKey{Model: core.ModelLoanPayment, ID: notify.SubjectID(p.ID)},
		Type:      core.TypeLoanPayment,
		Condition: core.ConditionPayment,
	}, func() notify.Content { return paymentContent(loan, p) })
}

func (l *Ledger) emit(ctx context.Context, ev Event) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Emit(ctx, ev); err != nil {
		l.logger.WarnContext(ctx, "Failed to emit ledger event",
			log.FieldEventType, string(ev.Kind), log.FieldLoanID, ev.Loan.ID, log.FieldError, err)
	}
}
