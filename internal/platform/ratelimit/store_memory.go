package ratelimit

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	stamps []time.Time
	window time.Duration
}

// MemoryStore keeps per-key timestamps in process. It is the default for a
// single instance and the fallback while Redis is unreachable.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket), now: time.Now}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{}
	}
	b.window = window
	b.stamps = prune(b.stamps, now.Add(-window))
	if len(b.stamps) >= limit {
		if len(b.stamps) == 0 {
			delete(s.buckets, key)
			return &Result{Limit: limit, ResetAt: now}, nil
		}
		s.buckets[key] = b
		reset := b.stamps[0].Add(window)
		return &Result{Limit: limit, ResetAt: reset, RetryAfter: reset.Sub(now)}, nil
	}

	b.stamps = append(b.stamps, now)
	s.buckets[key] = b
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(b.stamps),
		ResetAt:   b.stamps[0].Add(window),
	}, nil
}

// Sweep drops keys whose window holds no live requests and returns how many
// were removed.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, b := range s.buckets {
		b.stamps = prune(b.stamps, now.Add(-b.window))
		if len(b.stamps) == 0 {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many keys are tracked.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// prune drops timestamps at or before cutoff. stamps is sorted.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == len(stamps) {
		return nil
	}
	return stamps[i:]
}
