package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

func newTestApp(t *testing.T) (*app, *bool) {
	t.Helper()
	cfg := config.Load()
	cfg.Port = "0"
	closed := false
	store := &backend.StoreResult{
		Store: storage.NewMemoryStore(),
		Cleanup: func() error {
			closed = true
			return nil
		},
	}
	return newApp(cfg, store, nil, log.ForComponent(log.ComponentApp)), &closed
}

func TestShutdownBeforeServing(t *testing.T) {
	a, closed := newTestApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.shutdown(ctx))
	assert.True(t, *closed, "store released")
}

func TestRunStopsOnShutdown(t *testing.T) {
	a, _ := newTestApp(t)

	errCh := make(chan error, 1)
	go func() { errCh <- a.run(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after shutdown")
	}
}
