package storage

import (
	"context"
	"time"

	"fintrack/internal/core"
)

// Ports for the entity store. Every lookup by id returns an error wrapping
// core.ErrNotFound when the row does not exist.
type (
	// LoanStore persists loans and their payments. Loan writes are
	// compare-and-swap on Loan.Version: a stale version yields
	// core.ErrConflict and the returned loan carries the bumped version.
	LoanStore interface {
		CreateLoan(ctx context.Context, l core.Loan) (core.Loan, error)
		GetLoan(ctx context.Context, id int64) (core.Loan, error)
		ListLoans(ctx context.Context, userID string, status core.LoanStatus) ([]core.Loan, error)
		// ListOpenLoansDueBefore returns non-PAID loans with a due date before the cutoff.
		ListOpenLoansDueBefore(ctx context.Context, cutoff time.Time) ([]core.Loan, error)
		UpdateLoan(ctx context.Context, l core.Loan) (core.Loan, error)
		// DeleteLoan refuses loans with payments (core.ErrLoanHasPayments).
		DeleteLoan(ctx context.Context, id int64) error

		// RecordPayment updates the loan and inserts the payment as one unit.
		RecordPayment(ctx context.Context, l core.Loan, p core.LoanPayment) (core.Loan, core.LoanPayment, error)
		// RemovePayment updates the loan and deletes the payment as one unit.
		RemovePayment(ctx context.Context, l core.Loan, paymentID int64) (core.Loan, error)
		GetPayment(ctx context.Context, id int64) (core.LoanPayment, error)
		ListPayments(ctx context.Context, loanID int64) ([]core.LoanPayment, error)
	}

	// NotificationStore is the durable inbox. User-scoped calls treat rows of
	// other users as missing.
	NotificationStore interface {
		CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error)
		FindUnread(ctx context.Context, userID string, subject core.SubjectKey, typ core.NotificationType, cond core.Condition) (core.Notification, bool, error)
		ListNotifications(ctx context.Context, userID string, f core.NotificationFilter) ([]core.Notification, error)
		CountUnread(ctx context.Context, userID string) (int64, error)
		MarkRead(ctx context.Context, userID string, id int64) error
		MarkAllRead(ctx context.Context, userID string) (int64, error)
		DeleteNotification(ctx context.Context, userID string, id int64) error
		// DeleteReadNotifications removes read rows, optionally of one type only.
		DeleteReadNotifications(ctx context.Context, userID string, typ core.NotificationType) (int64, error)
		PurgeReadBefore(ctx context.Context, userID string, cutoff time.Time) (int64, error)
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, id int64) (core.Budget, error)
		FindBudget(ctx context.Context, userID, category string, month, year int) (core.Budget, error)
		ListBudgets(ctx context.Context, userID string, month, year int) ([]core.Budget, error)
		// AddBudgetSpent adjusts Spent atomically; the result is floored at zero.
		AddBudgetSpent(ctx context.Context, id int64, delta core.Money) (core.Budget, error)
	}

	CashFlowStore interface {
		RecordEntry(ctx context.Context, e core.CashEntry) (core.CashEntry, error)
		Totals(ctx context.Context, userID string) (core.Totals, error)
	}

	// Store is everything the engine needs from persistence.
	Store interface {
		LoanStore
		NotificationStore
		BudgetStore
		CashFlowStore
		Ping(ctx context.Context) error
		Close() error
	}
)
