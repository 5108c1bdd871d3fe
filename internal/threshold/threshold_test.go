package threshold

import (
	"testing"
	"time"

	"fintrack/internal/core"
)

func TestEvaluateBudget(t *testing.T) {
	tests := []struct {
		name   string
		budget core.Budget
		want   core.Condition
		found  bool
	}{
		{"below warning", core.Budget{Amount: 1000000, Spent: 790000}, "", false},
		{"exactly 80 percent", core.Budget{Amount: 1000000, Spent: 800000}, core.ConditionWarning, true},
		{"85 percent warns", core.Budget{Amount: 1000000, Spent: 850000}, core.ConditionWarning, true},
		{"just under 100", core.Budget{Amount: 1000000, Spent: 999999}, core.ConditionWarning, true},
		{"exactly 100 exceeds", core.Budget{Amount: 1000000, Spent: 1000000}, core.ConditionExceeded, true},
		{"105 percent exceeds", core.Budget{Amount: 1000000, Spent: 1050000}, core.ConditionExceeded, true},
		{"zero limit never alerts", core.Budget{Amount: 0, Spent: 1000}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := EvaluateBudget(tt.budget)
			if got != tt.want || found != tt.found {
				t.Errorf("EvaluateBudget() = (%q, %v), want (%q, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestEvaluateBalance(t *testing.T) {
	tests := []struct {
		name            string
		income, expense core.Money
		found           bool
	}{
		{"negative", 2000000, 2500000, true},
		{"break even", 2000000, 2000000, false},
		{"positive", 3000000, 2000000, false},
		{"no income", 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := EvaluateBalance(tt.income, tt.expense)
			if found != tt.found {
				t.Fatalf("EvaluateBalance() found = %v, want %v", found, tt.found)
			}
			if found && got != core.ConditionNegative {
				t.Errorf("EvaluateBalance() = %q, want NEGATIVE", got)
			}
		})
	}
}

func TestEvaluateLoanDue(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		loan  core.Loan
		want  core.Condition
		found bool
	}{
		{
			name:  "active due in two days",
			loan:  core.Loan{Status: core.StatusActive, DueDate: now.Add(48 * time.Hour)},
			want:  core.ConditionDueSoon,
			found: true,
		},
		{
			name:  "active due in exactly three days",
			loan:  core.Loan{Status: core.StatusActive, DueDate: now.Add(DueSoonWindow)},
			want:  core.ConditionDueSoon,
			found: true,
		},
		{
			name: "active due in ten days",
			loan: core.Loan{Status: core.StatusActive, DueDate: now.AddDate(0, 0, 10)},
		},
		{
			name: "active due right now",
			loan: core.Loan{Status: core.StatusActive, DueDate: now},
		},
		{
			name:  "overdue regardless of days past",
			loan:  core.Loan{Status: core.StatusOverdue, DueDate: now.AddDate(-1, 0, 0)},
			want:  core.ConditionOverdue,
			found: true,
		},
		{
			name: "paid loan due tomorrow",
			loan: core.Loan{Status: core.StatusPaid, DueDate: now.Add(24 * time.Hour)},
		},
		{
			name: "active without due date",
			loan: core.Loan{Status: core.StatusActive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := EvaluateLoanDue(tt.loan, now)
			if got != tt.want || found != tt.found {
				t.Errorf("EvaluateLoanDue() = (%q, %v), want (%q, %v)", got, found, tt.want, tt.found)
			}
		})
	}
}

func TestEvaluateLoanDue_OverdueScenario(t *testing.T) {
	now := time.Now()
	loan := core.Loan{Amount: 500000, DueDate: now.AddDate(0, 0, -1)}
	loan.Status = core.DeriveStatus(loan, now)

	if loan.Status != core.StatusOverdue {
		t.Fatalf("derived status = %v, want OVERDUE", loan.Status)
	}
	if got, ok := EvaluateLoanDue(loan, now); !ok || got != core.ConditionOverdue {
		t.Errorf("EvaluateLoanDue() = (%q, %v), want OVERDUE", got, ok)
	}
}
