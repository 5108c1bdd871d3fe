package backend

import (
	"context"

	"fintrack/internal/journal"
	"fintrack/internal/storage"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// StoreResult contains the entity store and its cleanup function
type StoreResult struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// Factory creates the persistence and journal backends from configuration
type Factory interface {
	CreateStore(ctx context.Context, config Config) (*StoreResult, error)
	CreateJournal(ctx context.Context, config Config) (journal.Writer, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Journal; an empty spreadsheet ID selects the in-memory journal
	GoogleSpreadsheetID string
	GoogleJournalSheet  string
}

// BackendType represents the type of entity store
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
