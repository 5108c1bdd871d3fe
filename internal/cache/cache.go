// Package cache holds small in-process caches for read-mostly counters.
package cache

import (
	"context"
	"log/slog"
	"time"

	"fintrack/internal/log"
)

// Cache is a keyed store of values that may disappear at any time.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches with expiring entries.
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically evicts expired entries from registered caches.
type Janitor struct {
	caches []Cleaner
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewJanitor(caches ...Cleaner) *Janitor {
	return &Janitor{
		caches: caches,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the sweep every interval until Stop or ctx is done.
func (j *Janitor) Start(ctx context.Context, interval time.Duration) {
	go j.run(ctx, interval)
}

func (j *Janitor) run(ctx context.Context, interval time.Duration) {
	defer close(j.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := 0
			for _, c := range j.caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				slog.DebugContext(ctx, "Evicted expired cache entries",
					log.FieldComponent, log.ComponentCache, "count", cleaned)
			}
		case <-j.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the sweep and waits for it to exit. Only call after Start.
func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.doneCh
}
