package core

import "time"

type NotificationType string

const (
	TypeInfo           NotificationType = "info"
	TypeSuccess        NotificationType = "success"
	TypeWarning        NotificationType = "warning"
	TypeError          NotificationType = "error"
	TypeBudgetAlert    NotificationType = "budget-alert"
	TypeLoan           NotificationType = "loan"
	TypeLoanPayment    NotificationType = "loan-payment"
	TypeLoanDue        NotificationType = "loan-due"
	TypeLoanOverdue    NotificationType = "loan-overdue"
	TypeAccountBalance NotificationType = "account-balance"
	TypeSystem         NotificationType = "system"
)

// Condition is an alertable state. The threshold conditions come from the
// evaluator; the rest classify ledger events for deduplication.
type Condition string

const (
	ConditionWarning  Condition = "WARNING"
	ConditionExceeded Condition = "EXCEEDED"
	ConditionNegative Condition = "NEGATIVE"
	ConditionDueSoon  Condition = "DUE_SOON"
	ConditionOverdue  Condition = "OVERDUE"

	ConditionPaid     Condition = "PAID"
	ConditionReopened Condition = "REOPENED"
	ConditionPayment  Condition = "PAYMENT"
	ConditionStatus   Condition = "STATUS_CHANGED"
)

const (
	ModelLoan        = "Loan"
	ModelLoanPayment = "LoanPayment"
	ModelBudget      = "Budget"
	ModelUser        = "User"
)

// SubjectKey names the entity a notification is about.
type SubjectKey struct {
	Model string `json:"model"`
	ID    string `json:"id"`
}

// NotificationData is the structured payload stored with a notification.
type NotificationData struct {
	Model     string         `json:"model,omitempty"`
	ID        string         `json:"id,omitempty"`
	Condition Condition      `json:"condition,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

func (d NotificationData) Subject() SubjectKey {
	return SubjectKey{Model: d.Model, ID: d.ID}
}

type Notification struct {
	ID        int64
	UserID    string
	Title     string
	Message   string
	Type      NotificationType
	Read      bool
	Link      string
	Data      NotificationData
	CreatedAt time.Time
}

// NotificationFilter narrows inbox queries.
type NotificationFilter struct {
	UnreadOnly bool
	Type       NotificationType
	Limit      int
	Offset     int
}
