package shortener

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/emranffl/minifyurl/internal/coord"
	"github.com/emranffl/minifyurl/internal/metrics"
)

const (
	// maxAllocAttempts bounds candidate generation; exhausting it means the
	// code space is saturated for this length.
	maxAllocAttempts = 5
	// ReservationTTL bounds how long an uncommitted code stays unavailable.
	// A crashed allocator's reservation frees itself when it elapses.
	ReservationTTL = 60 * time.Second
)

// Allocator hands out collision-free short codes. Allocate only reserves;
// the caller must commit (persist the row and the cache entry) before the
// reservation's TTL elapses or the code silently becomes available again.
type Allocator struct {
	Coord   coord.Store
	Metrics metrics.Sink

	// newCode is swappable in tests.
	newCode func() string
}

func NewAllocator(store coord.Store, sink metrics.Sink) *Allocator {
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Allocator{Coord: store, Metrics: sink, newCode: NewCode}
}

// Allocate generates candidates until one is both unresolvable and
// conditionally reserved, or attempts run out. Any store failure during an
// attempt is treated as "assume taken" and burns the attempt: allocation
// fails safe toward conservatism, never toward handing out a code twice.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		a.Metrics.Count(metrics.AllocAttempt, 1)
		code := a.newCode()

		exists, err := a.Coord.Exists(ctx, CacheKey(code))
		if err != nil {
			slog.Warn("allocation availability check failed, assuming taken", "err", err)
			continue
		}
		if exists {
			continue
		}

		reserved, err := a.Coord.SetNX(ctx, ReservationKey(code), "1", ReservationTTL)
		if err != nil {
			slog.Warn("allocation reserve failed, assuming taken", "err", err)
			continue
		}
		if reserved {
			return code, nil
		}
	}

	a.Metrics.Count(metrics.AllocExhausted, 1)
	return "", ErrAllocationExhausted
}

// Available reports whether a code is free, checking the cache namespace
// first and falling back to the record store. This is the same fast path the
// alias validator uses for caller-chosen identifiers.
func Available(ctx context.Context, store coord.Store, links LinkStore, code string) (bool, error) {
	exists, err := store.Exists(ctx, CacheKey(code))
	if err != nil {
		// Degrade to the record store; the cache is an optimization here.
		slog.Warn("cache availability check failed, falling back to record store", "err", err)
	} else if exists {
		return false, nil
	}

	_, err = links.FindByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}
