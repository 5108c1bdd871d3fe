package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/notify"
	"fintrack/internal/session"
	"fintrack/internal/storage"
	"fintrack/internal/threshold"
)

type captureConn struct {
	mu     sync.Mutex
	events []session.Event
}

func (c *captureConn) ID() string     { return "conn-1" }
func (c *captureConn) UserID() string { return "owner" }

func (c *captureConn) Send(ev session.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureConn) statusEvents() []session.LoanStatusPayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []session.LoanStatusPayload
	for _, ev := range c.events {
		if ev.Type == session.EventLoanStatusChanged {
			out = append(out, *ev.LoanStatus)
		}
	}
	return out
}

// conflictingStore bumps the loan version behind the ledger's back before
// the next n payment writes.
type conflictingStore struct {
	*storage.MemoryStore
	conflicts int
}

func (s *conflictingStore) RecordPayment(ctx context.Context, l core.Loan, p core.LoanPayment) (core.Loan, core.LoanPayment, error) {
	if s.conflicts > 0 {
		s.conflicts--
		cur, err := s.MemoryStore.GetLoan(ctx, l.ID)
		if err != nil {
			return core.Loan{}, core.LoanPayment{}, err
		}
		if _, err := s.MemoryStore.UpdateLoan(ctx, cur); err != nil {
			return core.Loan{}, core.LoanPayment{}, err
		}
	}
	return s.MemoryStore.RecordPayment(ctx, l, p)
}

func (s *conflictingStore) RemovePayment(ctx context.Context, l core.Loan, paymentID int64) (core.Loan, error) {
	if s.conflicts > 0 {
		s.conflicts--
		cur, err := s.MemoryStore.GetLoan(ctx, l.ID)
		if err != nil {
			return core.Loan{}, err
		}
		if _, err := s.MemoryStore.UpdateLoan(ctx, cur); err != nil {
			return core.Loan{}, err
		}
	}
	return s.MemoryStore.RemovePayment(ctx, l, paymentID)
}

// settlingStore pays the loan off in full right before the next payment
// write, as a concurrent request would.
type settlingStore struct {
	*storage.MemoryStore
	settle bool
}

func (s *settlingStore) RecordPayment(ctx context.Context, l core.Loan, p core.LoanPayment) (core.Loan, core.LoanPayment, error) {
	if s.settle {
		s.settle = false
		cur, err := s.MemoryStore.GetLoan(ctx, l.ID)
		if err != nil {
			return core.Loan{}, core.LoanPayment{}, err
		}
		cur.AmountPaid = cur.Amount
		cur.Status = core.StatusPaid
		if _, err := s.MemoryStore.UpdateLoan(ctx, cur); err != nil {
			return core.Loan{}, core.LoanPayment{}, err
		}
	}
	return s.MemoryStore.RecordPayment(ctx, l, p)
}

type fixture struct {
	ledger *Ledger
	store  *storage.MemoryStore
	conn   *captureConn
	events []Event
	now    time.Time
}

var (
	owner = core.Caller{UserID: "owner"}
	admin = core.Caller{UserID: "ops", Admin: true}
	other = core.Caller{UserID: "mallory"}
)

func newFixture(t *testing.T, loans storage.LoanStore, store *storage.MemoryStore) *fixture {
	t.Helper()
	f := &fixture{
		store: store,
		conn:  &captureConn{},
		now:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	registry := session.NewRegistry()
	registry.Register(f.conn)
	notifier := notify.New(store, session.NewDispatcher(registry), notify.DefaultConfig())

	f.ledger = New(loans, notifier)
	f.ledger.now = func() time.Time { return f.now }
	f.ledger.SetEventSink(EventSinkFunc(func(_ context.Context, ev Event) error {
		f.events = append(f.events, ev)
		return nil
	}))
	return f
}

func setup(t *testing.T) *fixture {
	store := storage.NewMemoryStore()
	return newFixture(t, store, store)
}

func (f *fixture) createLoan(t *testing.T, amount core.Money, due time.Time) core.Loan {
	t.Helper()
	loan, err := f.ledger.CreateLoan(context.Background(), owner, core.Loan{
		Amount:       amount,
		InterestRate: decimal.RequireFromString("1.5"),
		RatePeriod:   core.PerMonth,
		Lender:       "  Family  ",
		StartDate:    f.now.AddDate(0, -1, 0),
		DueDate:      due,
		Status:       core.StatusActive,
	})
	require.NoError(t, err)
	return loan
}

func (f *fixture) notifications(t *testing.T, typ core.NotificationType) []core.Notification {
	t.Helper()
	list, err := f.store.ListNotifications(context.Background(), "owner", core.NotificationFilter{Type: typ})
	require.NoError(t, err)
	return list
}

func TestPayOffThenReverseReopens(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1_000_000, f.now.AddDate(0, 0, 10))
	assert.Equal(t, "Family", loan.Lender)

	paid, payment, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 1_000_000, f.now, "final")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, paid.Status)
	assert.Equal(t, core.Money(1_000_000), paid.AmountPaid)

	loanAlerts := f.notifications(t, core.TypeLoan)
	require.Len(t, loanAlerts, 1)
	assert.Equal(t, core.ConditionPaid, loanAlerts[0].Data.Condition)
	assert.Equal(t, "Loan fully paid", loanAlerts[0].Title)
	assert.Len(t, f.notifications(t, core.TypeLoanPayment), 1)

	reopened, err := f.ledger.ReversePayment(ctx, owner, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, reopened.Status)
	assert.Equal(t, core.Money(0), reopened.AmountPaid)

	loanAlerts = f.notifications(t, core.TypeLoan)
	require.Len(t, loanAlerts, 2)
	assert.Equal(t, core.ConditionReopened, loanAlerts[0].Data.Condition)

	assert.Equal(t, []session.LoanStatusPayload{
		{LoanID: loan.ID, OldStatus: core.StatusActive, NewStatus: core.StatusPaid},
		{LoanID: loan.ID, OldStatus: core.StatusPaid, NewStatus: core.StatusActive},
	}, f.conn.statusEvents())

	_, err = f.store.GetPayment(ctx, payment.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestApplyThenReverseIsInverse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	partial, p, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 300, time.Time{}, "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, partial.Status)
	assert.Equal(t, f.now, p.PaymentDate, "zero date defaults to now")

	restored, err := f.ledger.ReversePayment(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, loan.AmountPaid, restored.AmountPaid)
	assert.Equal(t, loan.Status, restored.Status)
	assert.Empty(t, f.conn.statusEvents())
}

func TestOverdueIsDetectedLazily(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 500_000, f.now.AddDate(0, 0, -1))
	require.Equal(t, core.StatusActive, loan.Status, "stored as ACTIVE by explicit status")

	cond, ok := threshold.EvaluateLoanDue(core.Loan{Status: core.StatusOverdue, DueDate: loan.DueDate}, f.now)
	require.True(t, ok)
	assert.Equal(t, core.ConditionOverdue, cond)

	got, err := f.ledger.GetLoan(ctx, owner, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusOverdue, got.Status)

	stored, err := f.store.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusOverdue, stored.Status, "refresh is persisted")

	overdue := f.notifications(t, core.TypeLoanOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, core.ConditionOverdue, overdue[0].Data.Condition)

	// reading again is a no-op
	_, err = f.ledger.GetLoan(ctx, owner, loan.ID)
	require.NoError(t, err)
	assert.Len(t, f.conn.statusEvents(), 1)
}

func TestCreateLoanDerivesStatus(t *testing.T) {
	f := setup(t)
	loan, err := f.ledger.CreateLoan(context.Background(), owner, core.Loan{
		Amount:    100,
		StartDate: f.now.AddDate(0, -2, 0),
		DueDate:   f.now.AddDate(0, -1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, core.StatusOverdue, loan.Status)
	assert.Equal(t, "owner", loan.UserID)

	_, err = f.ledger.CreateLoan(context.Background(), owner, core.Loan{
		Amount:    100,
		StartDate: f.now,
		DueDate:   f.now.AddDate(0, 0, -1),
	})
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = f.ledger.CreateLoan(context.Background(), other, core.Loan{UserID: "owner", Amount: 100})
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestReverseAfterDueDateBecomesOverdue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 0, 10))

	_, p, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 1000, f.now, "")
	require.NoError(t, err)

	f.now = f.now.AddDate(0, 0, 20)
	reopened, err := f.ledger.ReversePayment(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusOverdue, reopened.Status)

	overdue := f.notifications(t, core.TypeLoanOverdue)
	require.Len(t, overdue, 1)
	assert.Equal(t, "Loan overdue", overdue[0].Title)
}

func TestApplyPaymentErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	_, _, err := f.ledger.ApplyPayment(ctx, owner, loan.ID+99, 10, f.now, "")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = f.ledger.ApplyPayment(ctx, other, loan.ID, 10, f.now, "")
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, _, err = f.ledger.ApplyPayment(ctx, owner, loan.ID, 0, f.now, "")
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, _, err = f.ledger.ApplyPayment(ctx, admin, loan.ID, 10, f.now, "")
	assert.NoError(t, err, "administrators may pay any loan")

	_, err = f.ledger.ReversePayment(ctx, owner, 12345)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReversePaymentForbidden(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))
	_, p, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 100, f.now, "")
	require.NoError(t, err)

	_, err = f.ledger.ReversePayment(ctx, other, p.ID)
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestOverpaymentStaysPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	_, _, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 1000, f.now, "")
	require.NoError(t, err)
	paid, _, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 500, f.now, "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, paid.Status)
	assert.Equal(t, core.Money(1500), paid.AmountPaid)
	assert.Equal(t, core.Money(0), paid.Outstanding())

	assert.Len(t, f.notifications(t, core.TypeLoan), 1, "already-paid loans are not announced again")
	assert.Len(t, f.notifications(t, core.TypeLoanPayment), 2)
}

func TestUpdateLoanFields(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	badDue := loan.StartDate
	_, err := f.ledger.UpdateLoanFields(ctx, owner, loan.ID, core.LoanPatch{DueDate: &badDue})
	assert.ErrorIs(t, err, core.ErrInvalidState)

	lender := "Bank"
	rate := decimal.RequireFromString("2")
	updated, err := f.ledger.UpdateLoanFields(ctx, owner, loan.ID, core.LoanPatch{Lender: &lender, InterestRate: &rate})
	require.NoError(t, err)
	assert.Equal(t, "Bank", updated.Lender)
	assert.Empty(t, f.notifications(t, core.TypeLoan))

	paid := core.StatusPaid
	updated, err = f.ledger.UpdateLoanFields(ctx, owner, loan.ID, core.LoanPatch{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, updated.Status, "explicit status overrides the balance")
	assert.Equal(t, core.Money(0), updated.AmountPaid)

	alerts := f.notifications(t, core.TypeLoan)
	require.Len(t, alerts, 1)
	assert.Equal(t, core.ConditionStatus, alerts[0].Data.Condition)
	assert.Equal(t, []session.LoanStatusPayload{
		{LoanID: loan.ID, OldStatus: core.StatusActive, NewStatus: core.StatusPaid},
	}, f.conn.statusEvents())

	_, err = f.ledger.UpdateLoanFields(ctx, other, loan.ID, core.LoanPatch{Lender: &lender})
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestLowerAmountDerivesPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))
	_, _, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 600, f.now, "")
	require.NoError(t, err)

	amount := core.Money(600)
	updated, err := f.ledger.UpdateLoanFields(ctx, owner, loan.ID, core.LoanPatch{Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, updated.Status)
}

func TestConcurrentWriteRetriesOnce(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := &conflictingStore{MemoryStore: mem, conflicts: 1}
	f := newFixture(t, store, mem)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	updated, _, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 100, f.now, "")
	require.NoError(t, err)
	assert.Equal(t, core.Money(100), updated.AmountPaid)
	assert.Equal(t, int64(3), updated.Version)

	store.conflicts = 2
	_, _, err = f.ledger.ApplyPayment(ctx, owner, loan.ID, 100, f.now, "")
	assert.ErrorIs(t, err, core.ErrConflict)

	payments, err := f.ledger.ListPayments(ctx, owner, loan.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "a conflicting write records nothing")
}

func TestRetryUsesStatusOfReloadedLoan(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := &settlingStore{MemoryStore: mem}
	f := newFixture(t, store, mem)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	store.settle = true
	updated, _, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 100, f.now, "")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPaid, updated.Status)
	assert.Equal(t, core.Money(1100), updated.AmountPaid)

	assert.Empty(t, f.conn.statusEvents(), "the loan was already PAID when the retry wrote it")
	assert.Empty(t, f.notifications(t, core.TypeLoan))
	for _, ev := range f.events {
		assert.NotEqual(t, EventStatusChanged, ev.Kind)
	}
}

func TestReversePaymentRetriesOnce(t *testing.T) {
	mem := storage.NewMemoryStore()
	store := &conflictingStore{MemoryStore: mem}
	f := newFixture(t, store, mem)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	_, p, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 1000, f.now, "")
	require.NoError(t, err)

	store.conflicts = 1
	updated, err := f.ledger.ReversePayment(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money(0), updated.AmountPaid)
	assert.Equal(t, core.StatusActive, updated.Status)
	assert.Equal(t, []session.LoanStatusPayload{
		{LoanID: loan.ID, OldStatus: core.StatusActive, NewStatus: core.StatusPaid},
		{LoanID: loan.ID, OldStatus: core.StatusPaid, NewStatus: core.StatusActive},
	}, f.conn.statusEvents())

	_, p, err = f.ledger.ApplyPayment(ctx, owner, loan.ID, 100, f.now, "")
	require.NoError(t, err)
	store.conflicts = 2
	_, err = f.ledger.ReversePayment(ctx, owner, p.ID)
	assert.ErrorIs(t, err, core.ErrConflict)

	payments, err := f.ledger.ListPayments(ctx, owner, loan.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "a conflicting reversal removes nothing")
}

func TestOverrideSurvivesUnrelatedEdits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	overdue := core.StatusOverdue
	_, err := f.ledger.UpdateLoanFields(ctx, owner, loan.ID, core.LoanPatch{Status: &overdue})
	require.NoError(t, err)

	lender := "Credit union"
	updated, err := f.ledger.UpdateLoanFields(ctx, owner, loan.ID, core.LoanPatch{Lender: &lender})
	require.NoError(t, err)
	assert.Equal(t, core.StatusOverdue, updated.Status)

	due := f.now.AddDate(0, 2, 0)
	updated, err = f.ledger.UpdateLoanFields(ctx, owner, loan.ID, core.LoanPatch{DueDate: &due})
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, updated.Status, "a new due date re-derives the status")
}

func TestDeleteLoan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))
	_, p, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 100, f.now, "")
	require.NoError(t, err)

	err = f.ledger.DeleteLoan(ctx, owner, loan.ID)
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = f.ledger.ReversePayment(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.ledger.DeleteLoan(ctx, other, loan.ID), core.ErrForbidden)
	require.NoError(t, f.ledger.DeleteLoan(ctx, owner, loan.ID))

	_, err = f.ledger.GetLoan(ctx, owner, loan.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestListLoansFiltersOnCurrentStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))
	f.createLoan(t, 1000, f.now.AddDate(0, 0, -3))

	overdue, err := f.ledger.ListLoans(ctx, owner, "", core.StatusOverdue)
	require.NoError(t, err)
	assert.Len(t, overdue, 1)

	all, err := f.ledger.ListLoans(ctx, owner, "owner", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.ledger.ListLoans(ctx, other, "owner", "")
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan, err := f.ledger.CreateLoan(ctx, owner, core.Loan{
		Amount:       1_000_000,
		InterestRate: decimal.RequireFromString("1.5"),
		RatePeriod:   core.PerMonth,
		StartDate:    f.now.AddDate(0, 0, -60),
		DueDate:      f.now.AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	_, _, err = f.ledger.ApplyPayment(ctx, owner, loan.ID, 400_000, f.now, "")
	require.NoError(t, err)

	s, err := f.ledger.Summary(ctx, owner, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Money(600_000), s.Outstanding)
	assert.True(t, s.AccruedInterest.Equal(decimal.NewFromInt(30_000)), "got %s", s.AccruedInterest)
	assert.True(t, s.TotalDue.Equal(decimal.NewFromInt(630_000)), "got %s", s.TotalDue)
	assert.Equal(t, 1, s.PaymentCount)
	assert.Equal(t, 30, s.DaysUntilDue)
}

func TestEventSinkSeesCommittedChanges(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	loan := f.createLoan(t, 1000, f.now.AddDate(0, 1, 0))

	_, p, err := f.ledger.ApplyPayment(ctx, owner, loan.ID, 1000, f.now, "")
	require.NoError(t, err)
	_, err = f.ledger.ReversePayment(ctx, owner, p.ID)
	require.NoError(t, err)

	var kinds []EventKind
	for _, ev := range f.events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{
		EventStatusChanged, EventPaymentRecorded,
		EventStatusChanged, EventPaymentReversed,
	}, kinds)
	assert.Equal(t, p.ID, f.events[1].Payment.ID)
}
