package session

import (
	"time"

	"fintrack/internal/core"
)

type EventType string

const (
	EventNotification      EventType = "notification"
	EventLoanStatusChanged EventType = "loan_status_changed"
)

// Event is the JSON frame pushed to live clients.
type Event struct {
	Type         EventType            `json:"type"`
	Notification *NotificationPayload `json:"notification,omitempty"`
	LoanStatus   *LoanStatusPayload   `json:"loanStatus,omitempty"`
}

type NotificationPayload struct {
	ID        int64                 `json:"id,omitempty"`
	Title     string                `json:"title"`
	Message   string                `json:"message"`
	Type      core.NotificationType `json:"type"`
	Link      string                `json:"link,omitempty"`
	Data      core.NotificationData `json:"data"`
	CreatedAt time.Time             `json:"createdAt"`
}

type LoanStatusPayload struct {
	LoanID    int64           `json:"loanId"`
	OldStatus core.LoanStatus `json:"oldStatus"`
	NewStatus core.LoanStatus `json:"newStatus"`
}

func NotificationEvent(n core.Notification) Event {
	return Event{
		Type: EventNotification,
		Notification: &NotificationPayload{
			ID:        n.ID,
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			Link:      n.Link,
			Data:      n.Data,
			CreatedAt: n.CreatedAt,
		},
	}
}

func LoanStatusEvent(t core.StatusTransition) Event {
	return Event{
		Type: EventLoanStatusChanged,
		LoanStatus: &LoanStatusPayload{
			LoanID:    t.LoanID,
			OldStatus: t.From,
			NewStatus: t.To,
		},
	}
}
