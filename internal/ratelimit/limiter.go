// Package ratelimit bounds request rates per identifier with a sliding
// window kept in the coordination store, shared across every stateless
// handler instance.
package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/emranffl/minifyurl/internal/coord"
	"github.com/emranffl/minifyurl/internal/metrics"
)

type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter implements the sliding window. Each check trims stale markers,
// inserts a marker for now, counts survivors and refreshes the key's idle
// expiry, all as one atomic batch. The marker lands even when the decision
// is reject: the client that crosses the boundary sees remaining=0 and
// allowed=false on that request, not the one after.
type Limiter struct {
	Coord   coord.Store
	Metrics metrics.Sink

	now func() time.Time
}

func NewLimiter(store coord.Store, sink metrics.Sink) *Limiter {
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Limiter{Coord: store, Metrics: sink, now: time.Now}
}

// Check records one event for the identifier and reports whether it stays
// within limit over the trailing window. The count includes the event just
// recorded.
func (l *Limiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) (Decision, error) {
	now := l.now()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + tiebreaker()

	count, err := l.Coord.WindowAdd(ctx, "ratelimit:"+identifier, member, now, window)
	if err != nil {
		return Decision{}, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}
	if d.Allowed {
		l.Metrics.Count(metrics.RateLimitAllowed, 1)
	} else {
		l.Metrics.Count(metrics.RateLimitDenied, 1)
	}
	return d, nil
}

// tiebreaker keeps markers unique when two events share an instant.
func tiebreaker() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
