package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBudgetPercentage(t *testing.T) {
	tests := []struct {
		name   string
		budget Budget
		want   string
	}{
		{"85 percent", Budget{Amount: 1000000, Spent: 850000}, "85"},
		{"105 percent", Budget{Amount: 1000000, Spent: 1050000}, "105"},
		{"zero limit", Budget{Amount: 0, Spent: 5000}, "0"},
		{"nothing spent", Budget{Amount: 1000, Spent: 0}, "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.budget.Percentage()
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Percentage() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTotalsBalance(t *testing.T) {
	if got := (Totals{Income: 2000000, Expense: 2500000}).Balance(); got != -500000 {
		t.Errorf("Balance() = %d, want -500000", got)
	}
}
