package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/threshold"
)

// MonitorStore is what the monitor reads and writes besides notifications.
type MonitorStore interface {
	storage.BudgetStore
	storage.CashFlowStore
}

// Monitor runs the threshold checks after cash-flow and budget writes and
// turns the resulting conditions into notifications.
type Monitor struct {
	store    MonitorStore
	notifier *Notifier
	dueSoon  time.Duration
	now      func() time.Time
	logger   *log.Logger
}

func NewMonitor(store MonitorStore, notifier *Notifier, dueSoon time.Duration) *Monitor {
	if dueSoon <= 0 {
		dueSoon = threshold.DueSoonWindow
	}
	return &Monitor{
		store:    store,
		notifier: notifier,
		dueSoon:  dueSoon,
		now:      time.Now,
		logger:   log.ForComponent(log.ComponentMonitor),
	}
}

// CheckBudget alerts on a budget at WARNING or EXCEEDED.
func (m *Monitor) CheckBudget(ctx context.Context, b core.Budget) *core.Notification {
	cond, ok := threshold.EvaluateBudget(b)
	if !ok {
		return nil
	}
	return m.notifier.NotifyOnce(ctx, Alert{
		UserID:    b.UserID,
		Subject:   core.SubjectKey{Model: core.ModelBudget, ID: SubjectID(b.ID)},
		Type:      core.TypeBudgetAlert,
		Condition: cond,
	}, func() Content { return budgetContent(b, cond) })
}

// CheckBalance alerts when the user's expenses exceed their income.
func (m *Monitor) CheckBalance(ctx context.Context, userID string) (*core.Notification, error) {
	totals, err := m.store.Totals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load totals: %w", err)
	}
	if _, ok := threshold.EvaluateBalance(totals.Income, totals.Expense); !ok {
		return nil, nil
	}
	return m.notifier.NotifyNegativeBalance(ctx, userID, func() Content {
		return Content{
			Title:   "Negative balance",
			Message: fmt.Sprintf("Your expenses (%s) exceed your income (%s) by %s.", totals.Expense, totals.Income, -totals.Balance()),
			Link:    "/dashboard",
			Extra: map[string]any{
				"totalIncome":  int64(totals.Income),
				"totalExpense": int64(totals.Expense),
			},
		}
	}), nil
}

// CheckLoanDue alerts on a loan that is due soon or overdue. The loan's
// status is expected to be current.
func (m *Monitor) CheckLoanDue(ctx context.Context, l core.Loan) *core.Notification {
	cond, ok := threshold.EvaluateLoanDueWithin(l, m.now(), m.dueSoon)
	if !ok {
		return nil
	}
	typ := core.TypeLoanDue
	if cond == core.ConditionOverdue {
		typ = core.TypeLoanOverdue
	}
	return m.notifier.NotifyOnce(ctx, Alert{
		UserID:    l.UserID,
		Subject:   core.SubjectKey{Model: core.ModelLoan, ID: SubjectID(l.ID)},
		Type:      typ,
		Condition: cond,
	}, func() Content { return LoanDueContent(l, cond) })
}

// RecordExpense stores an expense, adds it to the matching monthly budget
// and re-evaluates the budget and the balance.
func (m *Monitor) RecordExpense(ctx context.Context, caller core.Caller, e core.CashEntry) (core.CashEntry, error) {
	e.Kind = core.KindExpense
	saved, err := m.record(ctx, caller, e)
	if err != nil {
		return core.CashEntry{}, err
	}

	b, err := m.store.FindBudget(ctx, saved.UserID, saved.Category, int(saved.Date.Month()), saved.Date.Year())
	switch {
	case errors.Is(err, core.ErrNotFound):
	case err != nil:
		m.logger.WarnContext(ctx, "Failed to find budget for expense",
			log.FieldUserID, saved.UserID, "category", saved.Category, log.FieldError, err)
	default:
		updated, err := m.store.AddBudgetSpent(ctx, b.ID, saved.Amount)
		if err != nil {
			return saved, fmt.Errorf("update budget spent: %w", err)
		}
		m.CheckBudget(ctx, updated)
	}

	m.checkBalanceLogged(ctx, saved.UserID)
	return saved, nil
}

// RecordIncome stores an income entry. A positive balance needs no alert,
// but the balance is still evaluated so stale states are reflected.
func (m *Monitor) RecordIncome(ctx context.Context, caller core.Caller, e core.CashEntry) (core.CashEntry, error) {
	e.Kind = core.KindIncome
	saved, err := m.record(ctx, caller, e)
	if err != nil {
		return core.CashEntry{}, err
	}
	m.checkBalanceLogged(ctx, saved.UserID)
	return saved, nil
}

func (m *Monitor) record(ctx context.Context, caller core.Caller, e core.CashEntry) (core.CashEntry, error) {
	if e.UserID == "" {
		e.UserID = caller.UserID
	}
	if !caller.CanAccess(e.UserID) {
		return core.CashEntry{}, fmt.Errorf("record %s: %w", e.Kind, core.ErrForbidden)
	}
	e.Category = strings.TrimSpace(e.Category)
	if e.Date.IsZero() {
		e.Date = m.now()
	}
	if err := e.Validate(); err != nil {
		return core.CashEntry{}, err
	}
	saved, err := m.store.RecordEntry(ctx, e)
	if err != nil {
		return core.CashEntry{}, fmt.Errorf("record %s: %w", e.Kind, err)
	}
	return saved, nil
}

func (m *Monitor) checkBalanceLogged(ctx context.Context, userID string) {
	if _, err := m.CheckBalance(ctx, userID); err != nil {
		m.logger.WarnContext(ctx, "Balance check failed", log.FieldUserID, userID, log.FieldError, err)
	}
}

// CreateBudget stores a monthly budget and evaluates it right away.
func (m *Monitor) CreateBudget(ctx context.Context, caller core.Caller, b core.Budget) (core.Budget, error) {
	if b.UserID == "" {
		b.UserID = caller.UserID
	}
	if !caller.CanAccess(b.UserID) {
		return core.Budget{}, fmt.Errorf("create budget: %w", core.ErrForbidden)
	}
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	created, err := m.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	m.CheckBudget(ctx, created)
	return created, nil
}

func (m *Monitor) ListBudgets(ctx context.Context, userID string, month, year int) ([]core.Budget, error) {
	budgets, err := m.store.ListBudgets(ctx, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func budgetContent(b core.Budget, cond core.Condition) Content {
	pct := b.Percentage().Round(0).String()
	extra := map[string]any{
		"category":   b.Category,
		"percentage": pct,
		"month":      b.Month,
		"year":       b.Year,
	}
	if cond == core.ConditionExceeded {
		return Content{
			Title:   "Budget exceeded",
			Message: fmt.Sprintf("You have spent %s of your %s budget for %s (%s%%).", b.Spent, b.Amount, b.Category, pct),
			Link:    "/budgets",
			Extra:   extra,
		}
	}
	return Content{
		Title:   "Budget warning",
		Message: fmt.Sprintf("You have used %s%% of your %s budget for %02d/%d.", pct, b.Category, b.Month, b.Year),
		Link:    "/budgets",
		Extra:   extra,
	}
}

// LoanDueContent describes a loan that is due soon or overdue.
func LoanDueContent(l core.Loan, cond core.Condition) Content {
	lender := l.Lender
	if lender == "" {
		lender = "your lender"
	}
	extra := map[string]any{
		"lender":      l.Lender,
		"outstanding": int64(l.Outstanding()),
		"dueDate":     l.DueDate,
	}
	if cond == core.ConditionOverdue {
		return Content{
			Title:   "Loan overdue",
			Message: fmt.Sprintf("Your loan from %s was due on %s; %s is still outstanding.", lender, l.DueDate.Format(time.DateOnly), l.Outstanding()),
			Link:    loanLink(l.ID),
			Extra:   extra,
		}
	}
	return Content{
		Title:   "Loan due soon",
		Message: fmt.Sprintf("Your loan from %s is due on %s; %s is still outstanding.", lender, l.DueDate.Format(time.DateOnly), l.Outstanding()),
		Link:    loanLink(l.ID),
		Extra:   extra,
	}
}

func loanLink(id int64) string {
	return "/loans/" + SubjectID(id)
}
