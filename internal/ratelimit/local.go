package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalFallback is a process-local token-bucket store consulted only when
// the coordination store cannot serve a window check. It is weaker than the
// shared window (each instance counts alone) but keeps abusive clients
// bounded during a store outage instead of failing open.
type LocalFallback struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	idleTTL time.Duration
}

type localEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewLocalFallback() *LocalFallback {
	return &LocalFallback{
		entries: make(map[string]*localEntry),
		idleTTL: 15 * time.Minute,
	}
}

// Allow approximates limit-per-window with a token bucket of the same
// average rate and a burst of the full limit.
func (f *LocalFallback) Allow(identifier string, limit int, window time.Duration) bool {
	now := time.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	ent, ok := f.entries[identifier]
	if !ok {
		rps := float64(limit) / window.Seconds()
		ent = &localEntry{lim: rate.NewLimiter(rate.Limit(rps), limit)}
		f.entries[identifier] = ent
	}
	ent.lastSeen = now
	return ent.lim.Allow()
}

// Cleanup drops identifiers idle past the TTL.
func (f *LocalFallback) Cleanup() {
	cutoff := time.Now().Add(-f.idleTTL)

	f.mu.Lock()
	defer f.mu.Unlock()

	for k, ent := range f.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(f.entries, k)
		}
	}
}

// StartJanitor cleans idle identifiers until the context is cancelled.
func (f *LocalFallback) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				f.Cleanup()
			}
		}
	}()
}
