package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const storePrefix = "invoicing:ratelimit"

// StoreLimiter is a fixed window limiter on top of a ulule/limiter store.
type StoreLimiter struct {
	l *limiter.Limiter
}

// NewMemoryLimiter keeps counters in process memory.
func NewMemoryLimiter(window time.Duration, limit int) *StoreLimiter {
	store := memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: storePrefix, CleanUpInterval: window})
	return newStoreLimiter(store, window, limit)
}

// NewRedisLimiter shares counters between instances through Redis.
func NewRedisLimiter(rdb *redis.Client, window time.Duration, limit int) (*StoreLimiter, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: storePrefix})
	if err != nil {
		return nil, err
	}
	return newStoreLimiter(store, window, limit), nil
}

func newStoreLimiter(store limiter.Store, window time.Duration, limit int) *StoreLimiter {
	return &StoreLimiter{l: limiter.New(store, limiter.Rate{Period: window, Limit: int64(limit)})}
}

// Allow increments the counter for key.
func (s *StoreLimiter) Allow(ctx context.Context, key string) (Result, error) {
	c, err := s.l.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   !c.Reached,
		Limit:     int(c.Limit),
		Remaining: int(c.Remaining),
		Reset:     time.Unix(c.Reset, 0),
	}, nil
}
