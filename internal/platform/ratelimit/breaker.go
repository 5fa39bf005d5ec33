package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	failureThreshold = 5
	successThreshold = 3
)

// FallbackStore asks primary first. After failureThreshold consecutive
// errors the circuit opens and answers come from fallback until primary
// succeeds successThreshold times in a row.
type FallbackStore struct {
	primary  Store
	fallback Store
	logger   *slog.Logger

	mu        sync.Mutex
	open      bool
	failures  int
	successes int
}

func NewFallbackStore(primary, fallback Store, logger *slog.Logger) *FallbackStore {
	return &FallbackStore{primary: primary, fallback: fallback, logger: logger}
}

func (s *FallbackStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	res, err := s.primary.Allow(ctx, key, limit, window)
	if err == nil {
		if s.recordSuccess() {
			s.logger.InfoContext(ctx, "rate limit store recovered")
		}
		return res, nil
	}
	if !s.recordFailure() {
		return nil, err
	}
	s.logger.WarnContext(ctx, "rate limit store degraded, using in-process window", "error", err)
	return s.fallback.Allow(ctx, key, limit, window)
}

// Degraded reports whether the circuit is open.
func (s *FallbackStore) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// recordFailure reports whether the circuit is open afterwards.
func (s *FallbackStore) recordFailure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
	s.successes = 0
	if s.failures >= failureThreshold {
		s.open = true
	}
	return s.open
}

// recordSuccess reports whether this success closed the circuit.
func (s *FallbackStore) recordSuccess() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		s.failures = 0
		return false
	}
	s.successes++
	if s.successes < successThreshold {
		return false
	}
	s.open = false
	s.failures = 0
	s.successes = 0
	return true
}
