package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/journal/memory"
	"fintrack/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type")

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", GoogleJournalSheet: "Payments"})
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "x.db", cfg.SQLiteDBPath)
	assert.Equal(t, "Payments", cfg.GoogleJournalSheet)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{Type: MemoryBackend}.Validate())
	assert.Error(t, Config{Type: SQLiteBackend}.Validate())
	assert.Error(t, Config{Type: "redis"}.Validate())
}

func TestFactory_CreateStore(t *testing.T) {
	ctx := context.Background()
	f := NewFactory()

	res, err := f.CreateStore(ctx, Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStore{}, res.Store)
	require.NoError(t, res.Cleanup())

	res, err = f.CreateStore(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "db", "fintrack.db")})
	require.NoError(t, err)
	assert.IsType(t, &storage.SQLiteStore{}, res.Store)
	require.NoError(t, res.Cleanup())
}

func TestFactory_CreateJournalFallsBackToMemory(t *testing.T) {
	w, err := NewFactory().CreateJournal(context.Background(), Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.IsType(t, &memory.Journal{}, w)
}
