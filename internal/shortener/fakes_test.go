package shortener

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/emranffl/minifyurl/internal/clicks"
	"github.com/emranffl/minifyurl/internal/coord"
)

// memLinkStore is an in-memory LinkStore for tests.
type memLinkStore struct {
	mu        sync.Mutex
	links     map[string]*ShortLink
	findCalls int
	failFind  bool
}

func newMemLinkStore() *memLinkStore {
	return &memLinkStore{links: make(map[string]*ShortLink)}
}

func (s *memLinkStore) Create(_ context.Context, link *ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ShortCode]; ok {
		return ErrConflict
	}
	cp := *link
	cp.CreatedAt = time.Now()
	s.links[link.ShortCode] = &cp
	return nil
}

func (s *memLinkStore) FindByCode(_ context.Context, code string) (*ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	if s.failFind {
		return nil, errors.New("record store down")
	}
	link, ok := s.links[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *link
	return &cp, nil
}

func (s *memLinkStore) IncrementClicks(_ context.Context, code string, delta int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link, ok := s.links[code]; ok {
		link.Clicks += delta
		link.LastAccessAt = &at
	}
	return nil
}

func (s *memLinkStore) clicks(code string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link, ok := s.links[code]; ok {
		return link.Clicks
	}
	return 0
}

func (s *memLinkStore) finds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findCalls
}

// flakyStore wraps a coord.Store and fails selected operations.
type flakyStore struct {
	coord.Store
	failGet    bool
	failExists bool
	failSetNX  bool
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, coord.ErrUnavailable
	}
	return f.Store.Get(ctx, key)
}

func (f *flakyStore) Exists(ctx context.Context, key string) (bool, error) {
	if f.failExists {
		return false, coord.ErrUnavailable
	}
	return f.Store.Exists(ctx, key)
}

func (f *flakyStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if f.failSetNX {
		return false, coord.ErrUnavailable
	}
	return f.Store.SetNX(ctx, key, value, ttl)
}

// chanPublisher exposes published events for synchronization in tests.
type chanPublisher struct {
	ch chan clicks.Event
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{ch: make(chan clicks.Event, 16)}
}

func (p *chanPublisher) Publish(_ context.Context, ev clicks.Event) error {
	p.ch <- ev
	return nil
}

func (p *chanPublisher) wait(timeout time.Duration) (clicks.Event, bool) {
	select {
	case ev := <-p.ch:
		return ev, true
	case <-time.After(timeout):
		return clicks.Event{}, false
	}
}
