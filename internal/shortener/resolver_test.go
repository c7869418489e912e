package shortener

import (
	"context"
	"testing"
	"time"

	"github.com/emranffl/minifyurl/internal/coord"
)

func TestResolve_CacheHitReturnsFoundAndRecordsAccess(t *testing.T) {
	store := coord.NewMemoryStore()
	links := newMemLinkStore()
	pub := newChanPublisher()
	r := NewResolver(store, links, pub, nil)
	ctx := context.Background()

	if err := r.populateCache(ctx, "abcdefg", "https://example.com/page", nil); err != nil {
		t.Fatalf("populateCache: %v", err)
	}

	res, err := r.Resolve(ctx, "abcdefg", "test-agent")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeFound || res.Target != "https://example.com/page" {
		t.Fatalf("unexpected resolution %+v", res)
	}
	if links.finds() != 0 {
		t.Fatalf("cache hit must not touch the record store, finds=%d", links.finds())
	}

	ev, ok := pub.wait(2 * time.Second)
	if !ok {
		t.Fatalf("expected a click event")
	}
	if ev.ShortCode != "abcdefg" || ev.UserAgent != "test-agent" {
		t.Fatalf("unexpected click event %+v", ev)
	}

	raw, present, err := store.Get(ctx, ClicksKey("abcdefg"))
	if err != nil || !present || raw != "1" {
		t.Fatalf("expected pending click counter of 1, got %q present=%v err=%v", raw, present, err)
	}
}

func TestResolve_NoPublisherPersistsClicksDirectly(t *testing.T) {
	store := coord.NewMemoryStore()
	links := newMemLinkStore()
	r := NewResolver(store, links, nil, nil)
	ctx := context.Background()

	if err := links.Create(ctx, &ShortLink{ShortCode: "abcdefg", LongURL: "https://example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.populateCache(ctx, "abcdefg", "https://example.com", nil); err != nil {
		t.Fatalf("populateCache: %v", err)
	}

	if _, err := r.Resolve(ctx, "abcdefg", ""); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for links.clicks("abcdefg") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected the direct increment fallback to persist a click")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestResolve_CacheHitPastExpiryIsExpiredWithoutDBRead(t *testing.T) {
	store := coord.NewMemoryStore()
	links := newMemLinkStore()
	r := NewResolver(store, links, nil, nil)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	if err := r.populateCache(ctx, "abcdefg", "https://example.com", &past); err != nil {
		t.Fatalf("populateCache: %v", err)
	}

	res, err := r.Resolve(ctx, "abcdefg", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeExpired {
		t.Fatalf("expected Expired, got %+v", res)
	}
	if links.finds() != 0 {
		t.Fatalf("expired cache hit must not touch the record store, finds=%d", links.finds())
	}
}

func TestResolve_MissRepopulatesCache(t *testing.T) {
	store := coord.NewMemoryStore()
	links := newMemLinkStore()
	pub := newChanPublisher()
	r := NewResolver(store, links, pub, nil)
	ctx := context.Background()

	if err := links.Create(ctx, &ShortLink{ShortCode: "abcdefg", LongURL: "https://example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := r.Resolve(ctx, "abcdefg", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeFound || res.Target != "https://example.com" {
		t.Fatalf("unexpected resolution %+v", res)
	}

	if _, ok := pub.wait(2 * time.Second); !ok {
		t.Fatalf("expected a click event on the miss path")
	}

	if present, _ := store.Exists(ctx, CacheKey("abcdefg")); !present {
		t.Fatalf("expected cache to be repopulated on miss")
	}
	finds := links.finds()

	// Second resolve is served from cache.
	if _, err := r.Resolve(ctx, "abcdefg", ""); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if links.finds() != finds {
		t.Fatalf("expected second resolve to hit cache, finds went %d -> %d", finds, links.finds())
	}
}

func TestResolve_ExpiredRowIsExpiredAndNotCached(t *testing.T) {
	store := coord.NewMemoryStore()
	links := newMemLinkStore()
	r := NewResolver(store, links, nil, nil)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	if err := links.Create(ctx, &ShortLink{ShortCode: "abcdefg", LongURL: "https://example.com", ExpiresAt: &past}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := r.Resolve(ctx, "abcdefg", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeExpired {
		t.Fatalf("expected Expired, got %+v", res)
	}
	if present, _ := store.Exists(ctx, CacheKey("abcdefg")); present {
		t.Fatalf("expired rows must never be cached")
	}
}

func TestResolve_UnknownCodeIsNotFound(t *testing.T) {
	r := NewResolver(coord.NewMemoryStore(), newMemLinkStore(), nil, nil)

	res, err := r.Resolve(context.Background(), "missing1", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeNotFound {
		t.Fatalf("expected NotFound, got %+v", res)
	}
}

func TestResolve_CacheFailureDegradesToRecordStore(t *testing.T) {
	store := &flakyStore{Store: coord.NewMemoryStore(), failGet: true}
	links := newMemLinkStore()
	r := NewResolver(store, links, nil, nil)
	ctx := context.Background()

	if err := links.Create(ctx, &ShortLink{ShortCode: "abcdefg", LongURL: "https://example.com"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := r.Resolve(ctx, "abcdefg", "")
	if err != nil {
		t.Fatalf("expected cache failure to degrade, got %v", err)
	}
	if res.Outcome != OutcomeFound {
		t.Fatalf("expected Found via record store, got %+v", res)
	}
}

func TestResolve_RecordStoreFailureIsAnErrorNotNotFound(t *testing.T) {
	links := newMemLinkStore()
	links.failFind = true
	r := NewResolver(coord.NewMemoryStore(), links, nil, nil)

	_, err := r.Resolve(context.Background(), "abcdefg", "")
	if err == nil {
		t.Fatalf("expected record-store failure to surface as an error")
	}
}

func TestCommit_WritesThroughAndReleasesReservation(t *testing.T) {
	store := coord.NewMemoryStore()
	links := newMemLinkStore()
	r := NewResolver(store, links, nil, nil)
	ctx := context.Background()

	if _, err := store.SetNX(ctx, ReservationKey("abcdefg"), "1", time.Minute); err != nil {
		t.Fatalf("SetNX: %v", err)
	}

	link, err := r.Commit(ctx, "abcdefg", "https://example.com", nil)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if link.ShortCode != "abcdefg" {
		t.Fatalf("unexpected link %+v", link)
	}

	if present, _ := store.Exists(ctx, CacheKey("abcdefg")); !present {
		t.Fatalf("commit must populate the cache synchronously")
	}
	if present, _ := store.Exists(ctx, ReservationKey("abcdefg")); present {
		t.Fatalf("commit must release the reservation")
	}

	// Resolution immediately after commit never does a cold read.
	res, err := r.Resolve(ctx, "abcdefg", "")
	if err != nil || res.Outcome != OutcomeFound {
		t.Fatalf("resolve after commit: %+v err=%v", res, err)
	}
	if links.finds() != 0 {
		t.Fatalf("expected zero record-store reads after write-through, finds=%d", links.finds())
	}
}

func TestCommit_DuplicateCodeIsConflict(t *testing.T) {
	r := NewResolver(coord.NewMemoryStore(), newMemLinkStore(), nil, nil)
	ctx := context.Background()

	if _, err := r.Commit(ctx, "abcdefg", "https://example.com", nil); err != nil {
		t.Fatalf("first Commit: %v", err)
	}
	if _, err := r.Commit(ctx, "abcdefg", "https://other.example", nil); err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
