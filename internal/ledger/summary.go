package ledger

import (
	"context"
	"math"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Summary is the repayment picture of one loan at a point in time.
type Summary struct {
	Loan            core.Loan
	Outstanding     core.Money
	AccruedInterest decimal.Decimal
	// TotalDue is the outstanding principal plus accrued interest.
	TotalDue     decimal.Decimal
	PaymentCount int
	// DaysUntilDue is negative once the loan is past due and zero when no
	// due date is set.
	DaysUntilDue int
}

func (l *Ledger) Summary(ctx context.Context, caller core.Caller, loanID int64) (Summary, error) {
	loan, err := l.GetLoan(ctx, caller, loanID)
	if err != nil {
		return Summary{}, err
	}
	payments, err := l.store.ListPayments(ctx, loanID)
	if err != nil {
		return Summary{}, err
	}

	now := l.now()
	interest := loan.AccruedInterest(now)
	s := Summary{
		Loan:            loan,
		Outstanding:     loan.Outstanding(),
		AccruedInterest: interest,
		TotalDue:        loan.Outstanding().Decimal().Add(interest),
		PaymentCount:    len(payments),
	}
	if !loan.DueDate.IsZero() {
		s.DaysUntilDue = int(math.Floor(loan.DueDate.Sub(now).Hours() / 24))
	}
	return s, nil
}
