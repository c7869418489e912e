package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/emranffl/minifyurl/internal/clicks"
	"github.com/emranffl/minifyurl/internal/coord"
	"github.com/emranffl/minifyurl/internal/metrics"
)

// CacheTTL bounds staleness of cache entries. Independent of link expiry:
// the TTL caps how long the shadow lives, ExpiresAt decides validity.
const CacheTTL = 24 * time.Hour

const recordTimeout = 5 * time.Second

type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeExpired
	OutcomeNotFound
)

type Resolution struct {
	Outcome Outcome
	Target  string
}

// cacheEntry is the ephemeral shadow of a link. It carries the expiry so a
// hit can be judged expired without a record-store round-trip.
type cacheEntry struct {
	LongURL   string     `json:"long_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Resolver serves code->target lookups cache-aside and commits new mappings
// write-through.
type Resolver struct {
	Coord   coord.Store
	Links   LinkStore
	Clicks  clicks.Publisher // optional; nil falls back to direct record-store increments
	Metrics metrics.Sink

	now func() time.Time
}

func NewResolver(store coord.Store, links LinkStore, pub clicks.Publisher, sink metrics.Sink) *Resolver {
	if sink == nil {
		sink = metrics.Noop{}
	}
	return &Resolver{Coord: store, Links: links, Clicks: pub, Metrics: sink, now: time.Now}
}

// Resolve maps a code to its target. A cache hit past its expiry returns
// Expired without touching the record store. A cache read failure degrades
// to a record-store read; a record-store failure is fatal to the request and
// is never reported as NotFound. Access accounting is detached and may be
// lost without correctness impact.
func (r *Resolver) Resolve(ctx context.Context, code, userAgent string) (Resolution, error) {
	raw, hit, err := r.Coord.Get(ctx, CacheKey(code))
	if err != nil {
		slog.Warn("cache read failed, degrading to record store", "code", code, "err", err)
		hit = false
	}

	if hit {
		var ent cacheEntry
		if err := json.Unmarshal([]byte(raw), &ent); err == nil {
			r.Metrics.Count(metrics.CacheHit, 1)
			if ent.ExpiresAt != nil && r.now().After(*ent.ExpiresAt) {
				return Resolution{Outcome: OutcomeExpired}, nil
			}
			go r.recordAccess(code, userAgent)
			return Resolution{Outcome: OutcomeFound, Target: ent.LongURL}, nil
		}
		slog.Warn("corrupt cache entry, refetching", "code", code)
	}

	r.Metrics.Count(metrics.CacheMiss, 1)

	link, err := r.Links.FindByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return Resolution{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return Resolution{}, err
	}

	if link.Expired(r.now()) {
		// Expired rows are never cached: the slot may be reclaimed later
		// and a stale negative entry would mask the successor.
		return Resolution{Outcome: OutcomeExpired}, nil
	}

	if err := r.populateCache(ctx, code, link.LongURL, link.ExpiresAt); err != nil {
		slog.Warn("cache populate failed", "code", code, "err", err)
	}
	go r.recordAccess(code, userAgent)

	return Resolution{Outcome: OutcomeFound, Target: link.LongURL}, nil
}

// Commit persists a new mapping and write-through-populates the cache so
// resolution never does a cold read right after creation. The reservation
// for generated codes is released on success; if commit never happens the
// reservation's TTL frees the code on its own.
func (r *Resolver) Commit(ctx context.Context, code, target string, expiresAt *time.Time) (*ShortLink, error) {
	link := &ShortLink{
		ShortCode: code,
		LongURL:   target,
		ExpiresAt: expiresAt,
	}
	if err := r.Links.Create(ctx, link); err != nil {
		return nil, err
	}

	if err := r.populateCache(ctx, code, target, expiresAt); err != nil {
		return nil, err
	}

	if err := r.Coord.Del(ctx, ReservationKey(code)); err != nil {
		slog.Warn("reservation release failed, will expire on its own", "code", code, "err", err)
	}

	return link, nil
}

func (r *Resolver) populateCache(ctx context.Context, code, target string, expiresAt *time.Time) error {
	body, err := json.Marshal(cacheEntry{LongURL: target, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}
	return r.Coord.SetEx(ctx, CacheKey(code), string(body), CacheTTL)
}

// recordAccess runs detached from the request. With a publisher wired it
// bumps the pending counter in the coordination store and queues the event;
// the analytics worker later folds the event into the record store and
// retires the pending delta. Without one it increments the record store
// directly. Failures are logged and discarded.
func (r *Resolver) recordAccess(code, userAgent string) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if userAgent == "" {
		userAgent = "Unknown"
	}
	ev := clicks.Event{ShortCode: code, Timestamp: r.now(), UserAgent: userAgent}

	if r.Clicks != nil {
		if _, err := r.Coord.Incr(ctx, ClicksKey(code), CacheTTL); err != nil {
			slog.Warn("click counter increment failed", "code", code, "err", err)
		}
		if err := r.Clicks.Publish(ctx, ev); err != nil {
			slog.Warn("click event publish failed", "code", code, "err", err)
		}
		return
	}

	if err := r.Links.IncrementClicks(ctx, code, 1, ev.Timestamp); err != nil {
		slog.Warn("click persist failed", "code", code, "err", err)
	}
}
