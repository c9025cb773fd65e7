package taskstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ulroy-ai/ulroy-go/internal/cache"
)

const (
	lockSuffix = ":lock"
	dataSuffix = ":data"
)

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	cache *cache.RedisClient
	ttl   time.Duration
}

func NewRedisStore(c *cache.RedisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{cache: c, ttl: ttl}
}

func (s *RedisStore) Lookup(ctx context.Context, key string) (*Entry, bool, error) {
	e, found, err := cache.Get[Entry](s.cache, ctx, key+dataSuffix)
	if err != nil {
		return nil, false, fmt.Errorf("lookup task %s: %w", key, err)
	}
	return e, found, nil
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	if _, found, err := s.Lookup(ctx, key); err != nil || found {
		return false, err
	}
	ok, err := cache.SetNX(s.cache, ctx, key+lockSuffix, "1", claimTTL)
	if err != nil {
		return false, fmt.Errorf("claim task %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, e Entry) error {
	if err := cache.Set(s.cache, ctx, key+dataSuffix, e, s.ttl); err != nil {
		return fmt.Errorf("save task %s: %w", key, err)
	}
	// The record is in place; a stale lock only delays other deliveries.
	_ = cache.Del(s.cache, ctx, key+lockSuffix)
	return nil
}

func (s *RedisStore) Forget(ctx context.Context, key string) error {
	_ = cache.Del(s.cache, ctx, key+lockSuffix)
	if err := cache.Del(s.cache, ctx, key+dataSuffix); err != nil {
		return fmt.Errorf("forget task %s: %w", key, err)
	}
	return nil
}
