package lockout

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int
	expiresAt time.Time
}

// InMemoryLockoutStore counts failures per key in fixed windows.
type InMemoryLockoutStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func New() *InMemoryLockoutStore {
	return &InMemoryLockoutStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Failures returns the failure count for key and the time until its window resets.
func (s *InMemoryLockoutStore) Failures(_ context.Context, key string) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.live(key)
	if w == nil {
		return 0, 0, nil
	}
	return w.count, w.expiresAt.Sub(s.now()), nil
}

// RecordFailure increments key. The window starts at the first failure and is not extended.
func (s *InMemoryLockoutStore) RecordFailure(_ context.Context, key string, span time.Duration) (int, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.live(key)
	if w == nil {
		w = &window{expiresAt: s.now().Add(span)}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.expiresAt.Sub(s.now()), nil
}

func (s *InMemoryLockoutStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Sweep drops expired windows and returns how many were removed.
func (s *InMemoryLockoutStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many keys are tracked.
func (s *InMemoryLockoutStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *InMemoryLockoutStore) live(key string) *window {
	w, ok := s.windows[key]
	if !ok {
		return nil
	}
	if !s.now().Before(w.expiresAt) {
		delete(s.windows, key)
		return nil
	}
	return w
}
