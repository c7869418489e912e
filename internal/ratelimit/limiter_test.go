package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/emranffl/minifyurl/internal/coord"
)

func newTestLimiter() (*Limiter, *time.Time) {
	store := coord.NewMemoryStore()
	now := time.Unix(10000, 0)
	store.Now = func() time.Time { return now }

	l := NewLimiter(store, nil)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheck_AllowsUpToLimitThenRejects(t *testing.T) {
	l, now := newTestLimiter()
	ctx := context.Background()

	const limit = 5
	for i := 1; i <= limit; i++ {
		d, err := l.Check(ctx, "client:api", limit, time.Minute)
		if err != nil {
			t.Fatalf("Check %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d of %d should be allowed", i, limit)
		}
		if d.Remaining != limit-i {
			t.Fatalf("request %d: remaining=%d want %d", i, d.Remaining, limit-i)
		}
		*now = now.Add(time.Second)
	}

	d, err := l.Check(ctx, "client:api", limit, time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Allowed {
		t.Fatalf("request limit+1 should be rejected")
	}
	if d.Remaining != 0 {
		t.Fatalf("boundary request should see remaining=0, got %d", d.Remaining)
	}
}

func TestCheck_WindowSlidesAndResets(t *testing.T) {
	l, now := newTestLimiter()
	ctx := context.Background()

	const limit = 3
	for i := 0; i <= limit; i++ {
		if _, err := l.Check(ctx, "client:api", limit, time.Minute); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}

	*now = now.Add(time.Minute + time.Second)

	d, err := l.Check(ctx, "client:api", limit, time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected a fresh window after waiting past it")
	}
	if d.Remaining != limit-1 {
		t.Fatalf("remaining=%d want %d", d.Remaining, limit-1)
	}
	if got, want := d.ResetAt, now.Add(time.Minute); !got.Equal(want) {
		t.Fatalf("ResetAt=%v want %v", got, want)
	}
}

func TestCheck_IdentifiersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Check(ctx, "a:api", 2, time.Minute); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}

	d, err := l.Check(ctx, "b:api", 2, time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("saturating one identifier must not affect another")
	}
}

func TestCheck_RejectedRequestStillRecordsItsMarker(t *testing.T) {
	l, now := newTestLimiter()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := l.Check(ctx, "client:api", 2, time.Minute); err != nil {
			t.Fatalf("Check: %v", err)
		}
		*now = now.Add(time.Second)
	}

	// All four markers are inside the window, including the rejected ones.
	d, err := l.Check(ctx, "client:api", 4, time.Minute)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Remaining != 0 {
		t.Fatalf("expected rejected requests to have counted, remaining=%d", d.Remaining)
	}
}
