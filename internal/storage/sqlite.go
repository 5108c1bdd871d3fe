package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"fintrack/internal/core"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers anyway; a single connection keeps
	// transactions from failing with SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const loanColumns = `id, user_id, amount, interest_rate, rate_period, lender, description,
	start_date, due_date, status, amount_paid, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (core.Loan, error) {
	var (
		l                  core.Loan
		rate, period       string
		start, due         int64
		status             string
		created, updated   int64
		amount, amountPaid int64
	)
	err := row.Scan(&l.ID, &l.UserID, &amount, &rate, &period, &l.Lender, &l.Description,
		&start, &due, &status, &amountPaid, &l.Version, &created, &updated)
	if err != nil {
		return core.Loan{}, err
	}
	l.Amount = core.Money(amount)
	l.AmountPaid = core.Money(amountPaid)
	l.InterestRate, err = decimal.NewFromString(rate)
	if err != nil {
		return core.Loan{}, fmt.Errorf("parse interest rate %q: %w", rate, err)
	}
	l.RatePeriod = core.RatePeriod(period)
	l.StartDate = fromMillis(start)
	l.DueDate = fromMillis(due)
	l.Status = core.LoanStatus(status)
	l.CreatedAt = fromMillis(created)
	l.UpdatedAt = fromMillis(updated)
	return l, nil
}

func (s *SQLiteStore) CreateLoan(ctx context.Context, l core.Loan) (core.Loan, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO loans
		(user_id, amount, interest_rate, rate_period, lender, description, start_date, due_date,
		 status, amount_paid, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		l.UserID, int64(l.Amount), l.InterestRate.String(), string(l.RatePeriod), l.Lender, l.Description,
		toMillis(l.StartDate), toMillis(l.DueDate), string(l.Status), int64(l.AmountPaid),
		toMillis(now), toMillis(now))
	if err != nil {
		return core.Loan{}, fmt.Errorf("insert loan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Loan{}, fmt.Errorf("loan id: %w", err)
	}

	slog.DebugContext(ctx, "Loan saved to SQLite", "id", id, "user_id", l.UserID, "amount", int64(l.Amount))
	return s.GetLoan(ctx, id)
}

func (s *SQLiteStore) GetLoan(ctx context.Context, id int64) (core.Loan, error) {
	return getLoan(ctx, s.db, id)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getLoan(ctx context.Context, q queryer, id int64) (core.Loan, error) {
	l, err := scanLoan(q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Loan{}, fmt.Errorf("loan %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Loan{}, fmt.Errorf("get loan %d: %w", id, err)
	}
	return l, nil
}

func (s *SQLiteStore) ListLoans(ctx context.Context, userID string, status core.LoanStatus) ([]core.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id DESC`
	return s.queryLoans(ctx, query, args...)
}

func (s *SQLiteStore) ListOpenLoansDueBefore(ctx context.Context, cutoff time.Time) ([]core.Loan, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans
		WHERE status <> 'PAID' AND due_date > 0 AND due_date < ?
		ORDER BY due_date`, toMillis(cutoff))
}

func (s *SQLiteStore) queryLoans(ctx context.Context, query string, args ...any) ([]core.Loan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query loans: %w", err)
	}
	defer rows.Close()

	var out []core.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan loan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// swapLoan writes l if the stored version still equals l.Version.
func swapLoan(ctx context.Context, q execer, l core.Loan) (core.Loan, error) {
	now := time.Now()
	res, err := q.ExecContext(ctx, `UPDATE loans SET
		amount = ?, interest_rate = ?, rate_period = ?, lender = ?, description = ?,
		start_date = ?, due_date = ?, status = ?, amount_paid = ?,
		version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		int64(l.Amount), l.InterestRate.String(), string(l.RatePeriod), l.Lender, l.Description,
		toMillis(l.StartDate), toMillis(l.DueDate), string(l.Status), int64(l.AmountPaid),
		toMillis(now), l.ID, l.Version)
	if err != nil {
		return core.Loan{}, fmt.Errorf("update loan %d: %w", l.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Loan{}, fmt.Errorf("update loan %d: %w", l.ID, err)
	}
	if n == 0 {
		if _, err := getLoan(ctx, q, l.ID); err != nil {
			return core.Loan{}, err
		}
		return core.Loan{}, fmt.Errorf("loan %d version %d: %w", l.ID, l.Version, core.ErrConflict)
	}
	return getLoan(ctx, q, l.ID)
}

func (s *SQLiteStore) UpdateLoan(ctx context.Context, l core.Loan) (core.Loan, error) {
	return swapLoan(ctx, s.db, l)
}

func (s *SQLiteStore) DeleteLoan(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getLoan(ctx, tx, id); err != nil {
			return err
		}
		var count int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM loan_payments WHERE loan_id = ?`, id).Scan(&count); err != nil {
			return fmt.Errorf("count payments: %w", err)
		}
		if count > 0 {
			return core.ErrLoanHasPayments
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete loan %d: %w", id, err)
		}
		return nil
	})
}

func (s *SQLiteStore) RecordPayment(ctx context.Context, l core.Loan, p core.LoanPayment) (core.Loan, core.LoanPayment, error) {
	var updated core.Loan
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		updated, err = swapLoan(ctx, tx, l)
		if err != nil {
			return err
		}
		now := time.Now()
		res, err := tx.ExecContext(ctx, `INSERT INTO loan_payments
			(loan_id, user_id, amount, payment_date, description, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			l.ID, p.UserID, int64(p.Amount), toMillis(p.PaymentDate), p.Description, toMillis(now))
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		p.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("payment id: %w", err)
		}
		p.LoanID = l.ID
		p.CreatedAt = fromMillis(toMillis(now))
		return nil
	})
	if err != nil {
		return core.Loan{}, core.LoanPayment{}, err
	}
	return updated, p, nil
}

func (s *SQLiteStore) RemovePayment(ctx context.Context, l core.Loan, paymentID int64) (core.Loan, error) {
	var updated core.Loan
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM loan_payments WHERE id = ? AND loan_id = ?`, paymentID, l.ID)
		if err != nil {
			return fmt.Errorf("delete payment %d: %w", paymentID, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("delete payment %d: %w", paymentID, err)
		} else if n == 0 {
			return fmt.Errorf("payment %d: %w", paymentID, core.ErrNotFound)
		}
		updated, err = swapLoan(ctx, tx, l)
		return err
	})
	if err != nil {
		return core.Loan{}, err
	}
	return updated, nil
}

const paymentColumns = `id, loan_id, user_id, amount, payment_date, description, created_at`

func scanPayment(row rowScanner) (core.LoanPayment, error) {
	var (
		p                     core.LoanPayment
		amount, date, created int64
	)
	if err := row.Scan(&p.ID, &p.LoanID, &p.UserID, &amount, &date, &p.Description, &created); err != nil {
		return core.LoanPayment{}, err
	}
	p.Amount = core.Money(amount)
	p.PaymentDate = fromMillis(date)
	p.CreatedAt = fromMillis(created)
	return p, nil
}

func (s *SQLiteStore) GetPayment(ctx context.Context, id int64) (core.LoanPayment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM loan_payments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.LoanPayment{}, fmt.Errorf("payment %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.LoanPayment{}, fmt.Errorf("get payment %d: %w", id, err)
	}
	return p, nil
}

func (s *SQLiteStore) ListPayments(ctx context.Context, loanID int64) ([]core.LoanPayment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM loan_payments
		WHERE loan_id = ? ORDER BY payment_date DESC, id DESC`, loanID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var out []core.LoanPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const notificationColumns = `id, user_id, title, message, type, is_read, link, data, created_at`

func scanNotification(row rowScanner) (core.Notification, error) {
	var (
		n       core.Notification
		typ     string
		read    bool
		data    string
		created int64
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &typ, &read, &n.Link, &data, &created); err != nil {
		return core.Notification{}, err
	}
	n.Type = core.NotificationType(typ)
	n.Read = read
	n.CreatedAt = fromMillis(created)
	if data != "" {
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return core.Notification{}, fmt.Errorf("decode notification data: %w", err)
		}
	}
	return n, nil
}

func (s *SQLiteStore) CreateNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return core.Notification{}, fmt.Errorf("encode notification data: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO notifications
		(user_id, title, message, type, is_read, link, subject_model, subject_id, alert_condition, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, string(n.Type), n.Read, n.Link,
		n.Data.Model, n.Data.ID, string(n.Data.Condition), string(data), toMillis(n.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Notification{}, fmt.Errorf("unread %s alert for %s/%s: %w", n.Type, n.Data.Model, n.Data.ID, core.ErrConflict)
		}
		return core.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	n.ID, err = res.LastInsertId()
	if err != nil {
		return core.Notification{}, fmt.Errorf("notification id: %w", err)
	}
	n.CreatedAt = fromMillis(toMillis(n.CreatedAt))
	return n, nil
}

func (s *SQLiteStore) FindUnread(ctx context.Context, userID string, subject core.SubjectKey, typ core.NotificationType, cond core.Condition) (core.Notification, bool, error) {
	n, err := scanNotification(s.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = ? AND subject_model = ? AND subject_id = ? AND type = ? AND alert_condition = ? AND is_read = 0
		LIMIT 1`,
		userID, subject.Model, subject.ID, string(typ), string(cond)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Notification{}, false, nil
	}
	if err != nil {
		return core.Notification{}, false, fmt.Errorf("find unread notification: %w", err)
	}
	return n, true, nil
}

func (s *SQLiteStore) ListNotifications(ctx context.Context, userID string, f core.NotificationFilter) ([]core.Notification, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{userID}
	)
	if f.UnreadOnly {
		where = append(where, "is_read = 0")
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []core.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountUnread(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) MarkRead(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return expectRow(res, "notification", id)
}

func (s *SQLiteStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.execCount(ctx, `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
}

func (s *SQLiteStore) DeleteNotification(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification %d: %w", id, err)
	}
	return expectRow(res, "notification", id)
}

func (s *SQLiteStore) DeleteReadNotifications(ctx context.Context, userID string, typ core.NotificationType) (int64, error) {
	if typ == "" {
		return s.execCount(ctx, `DELETE FROM notifications WHERE user_id = ? AND is_read = 1`, userID)
	}
	return s.execCount(ctx, `DELETE FROM notifications WHERE user_id = ? AND is_read = 1 AND type = ?`, userID, string(typ))
}

func (s *SQLiteStore) PurgeReadBefore(ctx context.Context, userID string, cutoff time.Time) (int64, error) {
	return s.execCount(ctx, `DELETE FROM notifications WHERE user_id = ? AND is_read = 1 AND created_at < ?`,
		userID, toMillis(cutoff))
}

const budgetColumns = `id, user_id, category, amount, spent, month, year, created_at, updated_at`

func scanBudget(row rowScanner) (core.Budget, error) {
	var (
		b                core.Budget
		amount, spent    int64
		created, updated int64
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Category, &amount, &spent, &b.Month, &b.Year, &created, &updated); err != nil {
		return core.Budget{}, err
	}
	b.Amount = core.Money(amount)
	b.Spent = core.Money(spent)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return b, nil
}

func (s *SQLiteStore) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	now := toMillis(time.Now())
	res, err := s.db.ExecContext(ctx, `INSERT INTO budgets
		(user_id, category, amount, spent, month, year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.Category, int64(b.Amount), int64(b.Spent), b.Month, b.Year, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Budget{}, fmt.Errorf("budget %s %d/%d: %w", b.Category, b.Month, b.Year, core.ErrConflict)
		}
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Budget{}, fmt.Errorf("budget id: %w", err)
	}
	return s.GetBudget(ctx, id)
}

func (s *SQLiteStore) GetBudget(ctx context.Context, id int64) (core.Budget, error) {
	b, err := scanBudget(s.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %d: %w", id, err)
	}
	return b, nil
}

func (s *SQLiteStore) FindBudget(ctx context.Context, userID, category string, month, year int) (core.Budget, error) {
	b, err := scanBudget(s.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND category = ? COLLATE NOCASE AND month = ? AND year = ?`,
		userID, category, month, year))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, fmt.Errorf("budget %s %d/%d: %w", category, month, year, core.ErrNotFound)
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("find budget: %w", err)
	}
	return b, nil
}

func (s *SQLiteStore) ListBudgets(ctx context.Context, userID string, month, year int) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? AND month = ? AND year = ? ORDER BY category`, userID, month, year)
	if err != nil {
		return nil, fmt.Errorf("query budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddBudgetSpent(ctx context.Context, id int64, delta core.Money) (core.Budget, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE budgets SET spent = MAX(spent + ?, 0), updated_at = ? WHERE id = ?`,
		int64(delta), toMillis(time.Now()), id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("update budget spent: %w", err)
	}
	if err := expectRow(res, "budget", id); err != nil {
		return core.Budget{}, err
	}
	return s.GetBudget(ctx, id)
}

func (s *SQLiteStore) RecordEntry(ctx context.Context, e core.CashEntry) (core.CashEntry, error) {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `INSERT INTO cash_entries
		(user_id, kind, amount, category, description, entry_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, string(e.Kind), int64(e.Amount), e.Category, e.Description, toMillis(e.Date), toMillis(now))
	if err != nil {
		return core.CashEntry{}, fmt.Errorf("insert %s entry: %w", e.Kind, err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return core.CashEntry{}, fmt.Errorf("entry id: %w", err)
	}
	e.CreatedAt = fromMillis(toMillis(now))
	return e, nil
}

func (s *SQLiteStore) Totals(ctx context.Context, userID string) (core.Totals, error) {
	var income, expense int64
	err := s.db.QueryRowContext(ctx, `SELECT
		COALESCE(SUM(CASE WHEN kind = 'income' THEN amount END), 0),
		COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount END), 0)
		FROM cash_entries WHERE user_id = ?`, userID).Scan(&income, &expense)
	if err != nil {
		return core.Totals{}, fmt.Errorf("sum cash flow: %w", err)
	}
	return core.Totals{Income: core.Money(income), Expense: core.Money(expense)}, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return res.RowsAffected()
}

func expectRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", entity, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, core.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// Times are stored as UTC unix milliseconds; zero time maps to 0.
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
