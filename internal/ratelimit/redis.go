package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a fixed-window counter shared across replicas. INCR and
// EXPIRE run in a pipeline; the expiry is set only on the first hit so the
// window boundary stays anchored to the first attempt.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, span time.Duration) (Result, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit incr: %w", err)
	}

	count := int(incr.Val())
	if count == 1 || ttl.Val() < 0 {
		if err := s.client.Expire(ctx, key, span).Err(); err != nil {
			return Result{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl.SetVal(span)
	}

	now := time.Now()
	result := Result{
		Allowed: count <= limit,
		Limit:   limit,
		ResetAt: now.Add(ttl.Val()),
	}
	if result.Allowed {
		result.Remaining = limit - count
	}
	return result, nil
}
