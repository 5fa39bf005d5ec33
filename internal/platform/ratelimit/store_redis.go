package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "quill:ratelimit:"

// RedisStore shares windows across instances using one sorted set per key,
// scored by request time in milliseconds.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// Allow records the request first and withdraws it when the window is full,
// so concurrent callers never both squeeze into the last slot.
func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	k := keyPrefix + key
	now := s.now()
	member := uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMilli(), 10)

	var count *redis.IntCmd
	var oldest *redis.ZSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		count = pipe.ZCard(ctx, k)
		oldest = pipe.ZRangeWithScores(ctx, k, 0, 0)
		pipe.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit window: %w", err)
	}

	reset := now.Add(window)
	if z := oldest.Val(); len(z) > 0 {
		reset = time.UnixMilli(int64(z[0].Score)).Add(window)
	}
	n := int(count.Val())
	if n > limit {
		if err := s.client.ZRem(ctx, k, member).Err(); err != nil {
			return nil, fmt.Errorf("rate limit window: %w", err)
		}
		return &Result{Limit: limit, ResetAt: reset, RetryAfter: reset.Sub(now)}, nil
	}
	return &Result{Allowed: true, Limit: limit, Remaining: limit - n, ResetAt: reset}, nil
}
