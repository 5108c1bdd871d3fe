package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	roleAdmin      = "admin"
)

// callerFromRequest reads the identity set by the upstream gateway.
func callerFromRequest(r *http.Request) (core.Caller, bool) {
	id := strings.TrimSpace(r.Header.Get(headerUserID))
	if id == "" {
		return core.Caller{}, false
	}
	return core.Caller{
		UserID: id,
		Admin:  strings.EqualFold(strings.TrimSpace(r.Header.Get(headerUserRole)), roleAdmin),
	}, true
}

// UserIdentity is the websocket endpoint's view of callerFromRequest.
func UserIdentity(r *http.Request) (string, bool) {
	c, ok := callerFromRequest(r)
	return c.UserID, ok
}

// bindJSON decodes the body and writes the error response itself on failure.
func bindJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		if errors.Is(err, core.ErrInvalidState) {
			writeError(w, r, err)
		} else {
			BadRequestError(err.Error()).Write(w)
		}
		return false
	}
	return true
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

type loanView struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"userId"`
	Amount       int64           `json:"amount"`
	AmountPaid   int64           `json:"amountPaid"`
	Outstanding  int64           `json:"outstanding"`
	InterestRate decimal.Decimal `json:"interestRate"`
	RatePeriod   core.RatePeriod `json:"ratePeriod,omitempty"`
	Lender       string          `json:"lender"`
	Description  string          `json:"description,omitempty"`
	StartDate    string          `json:"startDate,omitempty"`
	DueDate      string          `json:"dueDate,omitempty"`
	Status       core.LoanStatus `json:"status"`
	Version      int64           `json:"version"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func newLoanView(l core.Loan) loanView {
	return loanView{
		ID:           l.ID,
		UserID:       l.UserID,
		Amount:       int64(l.Amount),
		AmountPaid:   int64(l.AmountPaid),
		Outstanding:  int64(l.Outstanding()),
		InterestRate: l.InterestRate,
		RatePeriod:   l.RatePeriod,
		Lender:       l.Lender,
		Description:  l.Description,
		StartDate:    formatDate(l.StartDate),
		DueDate:      formatDate(l.DueDate),
		Status:       l.Status,
		Version:      l.Version,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

type paymentView struct {
	ID          int64     `json:"id"`
	LoanID      int64     `json:"loanId"`
	UserID      string    `json:"userId"`
	Amount      int64     `json:"amount"`
	PaymentDate string    `json:"paymentDate"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func newPaymentView(p core.LoanPayment) paymentView {
	return paymentView{
		ID:          p.ID,
		LoanID:      p.LoanID,
		UserID:      p.UserID,
		Amount:      int64(p.Amount),
		PaymentDate: formatDate(p.PaymentDate),
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

type summaryView struct {
	Loan            loanView        `json:"loan"`
	Outstanding     int64           `json:"outstanding"`
	AccruedInterest decimal.Decimal `json:"accruedInterest"`
	TotalDue        decimal.Decimal `json:"totalDue"`
	PaymentCount    int             `json:"paymentCount"`
	DaysUntilDue    int             `json:"daysUntilDue"`
}

func newSummaryView(s ledger.Summary) summaryView {
	return summaryView{
		Loan:            newLoanView(s.Loan),
		Outstanding:     int64(s.Outstanding),
		AccruedInterest: s.AccruedInterest,
		TotalDue:        s.TotalDue,
		PaymentCount:    s.PaymentCount,
		DaysUntilDue:    s.DaysUntilDue,
	}
}

type budgetView struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"userId"`
	Category   string          `json:"category"`
	Amount     int64           `json:"amount"`
	Spent      int64           `json:"spent"`
	Percentage decimal.Decimal `json:"percentage"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
}

func newBudgetView(b core.Budget) budgetView {
	return budgetView{
		ID:         b.ID,
		UserID:     b.UserID,
		Category:   b.Category,
		Amount:     int64(b.Amount),
		Spent:      int64(b.Spent),
		Percentage: b.Percentage().Round(2),
		Month:      b.Month,
		Year:       b.Year,
	}
}

type entryView struct {
	ID          int64          `json:"id"`
	UserID      string         `json:"userId"`
	Kind        core.EntryKind `json:"kind"`
	Amount      int64          `json:"amount"`
	Category    string         `json:"category"`
	Description string         `json:"description,omitempty"`
	Date        string         `json:"date"`
}

func newEntryView(e core.CashEntry) entryView {
	return entryView{
		ID:          e.ID,
		UserID:      e.UserID,
		Kind:        e.Kind,
		Amount:      int64(e.Amount),
		Category:    e.Category,
		Description: e.Description,
		Date:        formatDate(e.Date),
	}
}

type notificationView struct {
	ID        int64                 `json:"id"`
	Title     string                `json:"title"`
	Message   string                `json:"message"`
	Type      core.NotificationType `json:"type"`
	Read      bool                  `json:"read"`
	Link      string                `json:"link,omitempty"`
	Data      core.NotificationData `json:"data"`
	CreatedAt time.Time             `json:"createdAt"`
}

func newNotificationView(n core.Notification) notificationView {
	return notificationView{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		Link:      n.Link,
		Data:      n.Data,
		CreatedAt: n.CreatedAt,
	}
}

func mapSlice[T, V any](in []T, f func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
