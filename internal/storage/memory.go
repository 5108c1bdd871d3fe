package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
)

// MemoryStore keeps every entity in process memory. It honours the same
// contract as SQLiteStore, version checks included, and backs the memory
// data backend and most unit tests.
type MemoryStore struct {
	mu sync.Mutex

	nextID        int64
	loans         map[int64]core.Loan
	payments      map[int64]core.LoanPayment
	budgets       map[int64]core.Budget
	notifications map[int64]core.Notification
	entries       []core.CashEntry

	now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		loans:         make(map[int64]core.Loan),
		payments:      make(map[int64]core.LoanPayment),
		budgets:       make(map[int64]core.Budget),
		notifications: make(map[int64]core.Notification),
		now:           time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) CreateLoan(_ context.Context, l core.Loan) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	l.ID = s.id()
	l.Version = 1
	l.CreatedAt, l.UpdatedAt = now, now
	s.loans[l.ID] = l
	return l, nil
}

func (s *MemoryStore) GetLoan(_ context.Context, id int64) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	if !ok {
		return core.Loan{}, fmt.Errorf("loan %d: %w", id, core.ErrNotFound)
	}
	return l, nil
}

func (s *MemoryStore) ListLoans(_ context.Context, userID string, status core.LoanStatus) ([]core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Loan
	for _, l := range s.loans {
		if l.UserID != userID || (status != "" && l.Status != status) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListOpenLoansDueBefore(_ context.Context, cutoff time.Time) ([]core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Loan
	for _, l := range s.loans {
		if l.Status == core.StatusPaid || l.DueDate.IsZero() || !l.DueDate.Before(cutoff) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

// swapLoan must be called with s.mu held.
func (s *MemoryStore) swapLoan(l core.Loan) (core.Loan, error) {
	cur, ok := s.loans[l.ID]
	if !ok {
		return core.Loan{}, fmt.Errorf("loan %d: %w", l.ID, core.ErrNotFound)
	}
	if cur.Version != l.Version {
		return core.Loan{}, fmt.Errorf("loan %d version %d: %w", l.ID, l.Version, core.ErrConflict)
	}
	l.Version++
	l.CreatedAt = cur.CreatedAt
	l.UpdatedAt = s.now()
	s.loans[l.ID] = l
	return l, nil
}

func (s *MemoryStore) UpdateLoan(_ context.Context, l core.Loan) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swapLoan(l)
}

func (s *MemoryStore) DeleteLoan(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loans[id]; !ok {
		return fmt.Errorf("loan %d: %w", id, core.ErrNotFound)
	}
	for _, p := range s.payments {
		if p.LoanID == id {
			return core.ErrLoanHasPayments
		}
	}
	delete(s.loans, id)
	return nil
}

func (s *MemoryStore) RecordPayment(_ context.Context, l core.Loan, p core.LoanPayment) (core.Loan, core.LoanPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated, err := s.swapLoan(l)
	if err != nil {
		return core.Loan{}, core.LoanPayment{}, err
	}
	p.ID = s.id()
	p.LoanID = l.ID
	p.CreatedAt = s.now()
	s.payments[p.ID] = p
	return updated, p, nil
}

func (s *MemoryStore) RemovePayment(_ context.Context, l core.Loan, paymentID int64) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok || p.LoanID != l.ID {
		return core.Loan{}, fmt.Errorf("payment %d: %w", paymentID, core.ErrNotFound)
	}
	updated, err := s.swapLoan(l)
	if err != nil {
		return core.Loan{}, err
	}
	delete(s.payments, paymentID)
	return updated, nil
}

func (s *MemoryStore) GetPayment(_ context.Context, id int64) (core.LoanPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return core.LoanPayment{}, fmt.Errorf("payment %d: %w", id, core.ErrNotFound)
	}
	return p, nil
}

func (s *MemoryStore) ListPayments(_ context.Context, loanID int64) ([]core.LoanPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.LoanPayment
	for _, p := range s.payments {
		if p.LoanID == loanID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].PaymentDate.After(out[j].PaymentDate)
	})
	return out, nil
}

func (s *MemoryStore) CreateNotification(_ context.Context, n core.Notification) (core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.Data.Model != "" && !n.Read {
		for _, existing := range s.notifications {
			if existing.UserID == n.UserID && !existing.Read && existing.Type == n.Type &&
				existing.Data.Subject() == n.Data.Subject() && existing.Data.Condition == n.Data.Condition {
				return core.Notification{}, fmt.Errorf("unread %s alert for %s/%s: %w", n.Type, n.Data.Model, n.Data.ID, core.ErrConflict)
			}
		}
	}
	n.ID = s.id()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications[n.ID] = n
	return n, nil
}

func (s *MemoryStore) FindUnread(_ context.Context, userID string, subject core.SubjectKey, typ core.NotificationType, cond core.Condition) (core.Notification, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read && n.Type == typ &&
			n.Data.Subject() == subject && n.Data.Condition == cond {
			return n, true, nil
		}
	}
	return core.Notification{}, false, nil
}

func (s *MemoryStore) ListNotifications(_ context.Context, userID string, f core.NotificationFilter) ([]core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (f.UnreadOnly && n.Read) || (f.Type != "" && n.Type != f.Type) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountUnread(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, item := range s.notifications {
		if item.UserID == userID && !item.Read {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %d: %w", id, core.ErrNotFound)
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func (s *MemoryStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) DeleteNotification(_ context.Context, userID string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("notification %d: %w", id, core.ErrNotFound)
	}
	delete(s.notifications, id)
	return nil
}

func (s *MemoryStore) DeleteReadNotifications(_ context.Context, userID string, typ core.NotificationType) (int64, error) {
	return s.deleteWhere(func(n core.Notification) bool {
		return n.UserID == userID && n.Read && (typ == "" || n.Type == typ)
	}), nil
}

func (s *MemoryStore) PurgeReadBefore(_ context.Context, userID string, cutoff time.Time) (int64, error) {
	return s.deleteWhere(func(n core.Notification) bool {
		return n.UserID == userID && n.Read && n.CreatedAt.Before(cutoff)
	}), nil
}

func (s *MemoryStore) deleteWhere(match func(core.Notification) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.notifications {
		if match(n) {
			delete(s.notifications, id)
			count++
		}
	}
	return count
}

func (s *MemoryStore) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.budgets {
		if existing.UserID == b.UserID && existing.Month == b.Month && existing.Year == b.Year &&
			strings.EqualFold(existing.Category, b.Category) {
			return core.Budget{}, fmt.Errorf("budget %s %d/%d: %w", b.Category, b.Month, b.Year, core.ErrConflict)
		}
	}
	now := s.now()
	b.ID = s.id()
	b.CreatedAt, b.UpdatedAt = now, now
	s.budgets[b.ID] = b
	return b, nil
}

func (s *MemoryStore) GetBudget(_ context.Context, id int64) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	return b, nil
}

func (s *MemoryStore) FindBudget(_ context.Context, userID, category string, month, year int) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.budgets {
		if b.UserID == userID && b.Month == month && b.Year == year && strings.EqualFold(b.Category, category) {
			return b, nil
		}
	}
	return core.Budget{}, fmt.Errorf("budget %s %d/%d: %w", category, month, year, core.ErrNotFound)
}

func (s *MemoryStore) ListBudgets(_ context.Context, userID string, month, year int) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID && b.Month == month && b.Year == year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out, nil
}

func (s *MemoryStore) AddBudgetSpent(_ context.Context, id int64, delta core.Money) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	b.Spent += delta
	if b.Spent < 0 {
		b.Spent = 0
	}
	b.UpdatedAt = s.now()
	s.budgets[id] = b
	return b, nil
}

func (s *MemoryStore) RecordEntry(_ context.Context, e core.CashEntry) (core.CashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	e.CreatedAt = s.now()
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *MemoryStore) Totals(_ context.Context, userID string) (core.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t core.Totals
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		switch e.Kind {
		case core.KindIncome:
			t.Income += e.Amount
		case core.KindExpense:
			t.Expense += e.Amount
		}
	}
	return t, nil
}
