package lockout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "quill:login_failures:"

// RedisLockoutStore shares failure windows across server instances.
type RedisLockoutStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func (s *RedisLockoutStore) Failures(ctx context.Context, key string) (int, time.Duration, error) {
	k := keyPrefix + key
	pipe := s.client.Pipeline()
	get := pipe.Get(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, fmt.Errorf("read lockout window: %w", err)
	}
	count, err := get.Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read lockout count: %w", err)
	}
	return count, positive(ttl.Val()), nil
}

// RecordFailure increments the counter and starts its expiry on the first failure.
func (s *RedisLockoutStore) RecordFailure(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	k := keyPrefix + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("record login failure: %w", err)
	}
	return int(incr.Val()), positive(ttl.Val()), nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("clear lockout window: %w", err)
	}
	return nil
}

// PTTL reports -1/-2 for missing expiry or key.
func positive(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
