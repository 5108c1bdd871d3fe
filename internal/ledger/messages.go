package ledger

import (
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/notify"
)

func lenderName(l core.Loan) string {
	if l.Lender == "" {
		return "your lender"
	}
	return l.Lender
}

func loanLink(l core.Loan) string {
	return "/loans/" + notify.SubjectID(l.ID)
}

func transitionContent(l core.Loan, t core.StatusTransition, cond core.Condition) notify.Content {
	extra := map[string]any{
		"oldStatus":   string(t.From),
		"newStatus":   string(t.To),
		"amountPaid":  int64(l.AmountPaid),
		"outstanding": int64(l.Outstanding()),
	}
	switch cond {
	case core.ConditionPaid:
		return notify.Content{
			Title:   "Loan fully paid",
			Message: fmt.Sprintf("Your loan of %s from %s has been paid off.", l.Amount, lenderName(l)),
			Link:    loanLink(l),
			Extra:   extra,
		}
	case core.ConditionReopened:
		return notify.Content{
			Title:   "Loan reopened",
			Message: fmt.Sprintf("A payment was removed; your loan from %s has %s outstanding again.", lenderName(l), l.Outstanding()),
			Link:    loanLink(l),
			Extra:   extra,
		}
	case core.ConditionOverdue:
		return notify.LoanDueContent(l, core.ConditionOverdue)
	default:
		return notify.Content{
			Title:   "Loan status changed",
			Message: fmt.Sprintf("Your loan from %s changed from %s to %s.", lenderName(l), t.From, t.To),
			Link:    loanLink(l),
			Extra:   extra,
		}
	}
}

func paymentContent(l core.Loan, p core.LoanPayment) notify.Content {
	return notify.Content{
		Title: "Loan payment recorded",
		Message: fmt.Sprintf("A payment of %s on %s was recorded for your loan from %s; %s outstanding.",
			p.Amount, p.PaymentDate.Format(time.DateOnly), lenderName(l), l.Outstanding()),
		Link: loanLink(l),
		Extra: map[string]any{
			"loanId":      l.ID,
			"amount":      int64(p.Amount),
			"outstanding": int64(l.Outstanding()),
		},
	}
}
