// Package coord abstracts the shared coordination store that every
// cross-process mechanism (cache entries, reservations, rate-limit windows,
// api keys) relies on. Implementations must make each call atomic on its own;
// callers never hold locks across calls.
package coord

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps any transport/store failure so callers can
// distinguish "store broken" from "key absent".
var ErrUnavailable = errors.New("coordination store unavailable")

type Store interface {
	// Get returns the value for key. The bool reports presence; a missing
	// key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetEx stores value under key with the given TTL, overwriting any
	// previous value.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if key is absent. The bool reports whether
	// the write won; a lost race is not an error.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Del removes keys. Deleting an absent key is not an error.
	Del(ctx context.Context, keys ...string) error

	// Incr atomically increments the integer at key and refreshes its TTL,
	// creating it at 1 if absent.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// WindowAdd performs the sliding-window step as one atomic batch:
	// drop members scored before at-window, add member scored at `at`,
	// count the survivors, and reset the key's idle expiry to window.
	WindowAdd(ctx context.Context, key, member string, at time.Time, window time.Duration) (int64, error)
}
