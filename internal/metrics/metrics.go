// Package metrics is the telemetry sink for core operations. Emission is
// fire-and-forget: a full buffer drops the sample instead of blocking the
// caller, and failures surface only in logs.
package metrics

// Counter names emitted by the core.
const (
	CacheHit         = "cache_hit"
	CacheMiss        = "cache_miss"
	AllocAttempt     = "alloc_attempt"
	AllocExhausted   = "alloc_exhausted"
	RateLimitAllowed = "ratelimit_allowed"
	RateLimitDenied  = "ratelimit_denied"
)

// Gauge names.
const (
	StoreConnections = "store_connections"
	PendingOps       = "pending_ops"
)

type Sink interface {
	Count(name string, delta int64)
	Gauge(name string, value float64)
}

// Noop discards everything. Useful default so components never nil-check.
type Noop struct{}

func (Noop) Count(string, int64)   {}
func (Noop) Gauge(string, float64) {}
