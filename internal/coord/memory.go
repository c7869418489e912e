package coord

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Now is injectable so expiry behavior can be driven without sleeping.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string]memEntry
	windows map[string]*memWindow

	Now func() time.Time
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero = no expiry
}

type memWindow struct {
	members   map[string]int64 // member -> score (unix nanos)
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string]memEntry),
		windows: make(map[string]*memWindow),
		Now:     time.Now,
	}
}

func (s *MemoryStore) live(key string, now time.Time) (memEntry, bool) {
	ent, ok := s.values[key]
	if !ok {
		return memEntry{}, false
	}
	if !ent.expiresAt.IsZero() && !now.Before(ent.expiresAt) {
		delete(s.values, key)
		return memEntry{}, false
	}
	return ent, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.live(key, s.Now())
	if !ok {
		return "", false, nil
	}
	return ent.value, true, nil
}

func (s *MemoryStore) SetEx(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = memEntry{value: value, expiresAt: s.expiry(ttl)}
	return nil
}

func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key, s.Now()); ok {
		return false, nil
	}
	s.values[key] = memEntry{value: value, expiresAt: s.expiry(ttl)}
	return true, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.live(key, s.Now())
	return ok, nil
}

func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
		delete(s.windows, k)
	}
	return nil
}

func (s *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if ent, ok := s.live(key, s.Now()); ok {
		n, _ = strconv.ParseInt(ent.value, 10, 64)
	}
	n++
	s.values[key] = memEntry{value: strconv.FormatInt(n, 10), expiresAt: s.expiry(ttl)}
	return n, nil
}

func (s *MemoryStore) WindowAdd(_ context.Context, key, member string, at time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	w, ok := s.windows[key]
	if ok && !w.expiresAt.IsZero() && !now.Before(w.expiresAt) {
		ok = false
	}
	if !ok {
		w = &memWindow{members: make(map[string]int64)}
		s.windows[key] = w
	}

	cutoff := at.Add(-window).UnixNano()
	for m, score := range w.members {
		if score <= cutoff {
			delete(w.members, m)
		}
	}
	w.members[member] = at.UnixNano()
	w.expiresAt = now.Add(window)

	return int64(len(w.members)), nil
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.Now().Add(ttl)
}
