package backend

import (
	"context"
	"fmt"

	"fintrack/internal/journal"
	gjournal "fintrack/internal/journal/google"
	"fintrack/internal/journal/memory"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory() Factory {
	return &DefaultFactory{logger: log.ForComponent(log.ComponentBackend)}
}

// CreateStore opens the entity store selected by config.Type.
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*StoreResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &StoreResult{Store: store, Cleanup: store.Close}, nil
	case MemoryBackend:
		store := storage.NewMemoryStore()
		f.logger.InfoContext(ctx, "Initialized memory backend")
		return &StoreResult{Store: store, Cleanup: store.Close}, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// CreateJournal returns the Google Sheets journal when a spreadsheet is
// configured and the in-memory one otherwise.
func (f *DefaultFactory) CreateJournal(ctx context.Context, config Config) (journal.Writer, error) {
	if config.GoogleSpreadsheetID == "" {
		f.logger.WarnContext(ctx, "No spreadsheet configured, journal entries stay in memory")
		return memory.New(), nil
	}
	w, err := gjournal.New(ctx, config.GoogleSpreadsheetID, config.GoogleJournalSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets journal: %w", err)
	}
	return w, nil
}
