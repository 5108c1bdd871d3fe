package memory

import (
	"context"
	"testing"

	"fintrack/internal/journal"
)

func TestJournalAppend(t *testing.T) {
	j := New()
	ref, err := j.Append(context.Background(), journal.Entry{Kind: journal.KindPayment, LoanID: 1, PaymentID: 2, Amount: 100})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	if _, err := j.Append(context.Background(), journal.Entry{Kind: "bogus", LoanID: 1, PaymentID: 2, Amount: 100}); err == nil {
		t.Error("expected error for unknown kind")
	}
	if got := len(j.Entries()); got != 1 {
		t.Errorf("len(Entries()) = %d, want 1", got)
	}
}
