// Package memory is an in-process journal used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fintrack/internal/journal"
)

type Journal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

var _ journal.Writer = (*Journal)(nil)

func New() *Journal {
	return &Journal{}
}

// Append stores the entry and returns a synthetic row reference.
func (j *Journal) Append(_ context.Context, e journal.Entry) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return fmt.Sprintf("mem:%d", len(j.entries)), nil
}

func (j *Journal) Entries() []journal.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Entry(nil), j.entries...)
}
