package session

import (
	"context"
	"log/slog"
	"time"
)

// DefaultJanitorInterval is how often idle sessions are swept.
const DefaultJanitorInterval = 5 * time.Minute

// EvictCallback is called for every session removed by the janitor.
type EvictCallback func(userID string)

// StartJanitor runs a background goroutine that periodically evicts sessions
// idle for longer than ttl. It stops when ctx is done.
func StartJanitor(ctx context.Context, store *Store, ttl, interval time.Duration, onEvict EvictCallback) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session janitor started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweep(store, ttl, onEvict)
			case <-ctx.Done():
				slog.Info("Session janitor shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(store *Store, ttl time.Duration, onEvict EvictCallback) {
	evicted := store.EvictIdle(ttl)
	if len(evicted) == 0 {
		return
	}
	slog.Info("Evicted idle sessions", "count", len(evicted), "remaining", store.Len())
	if onEvict == nil {
		return
	}
	for _, userID := range evicted {
		onEvict(userID)
	}
}
