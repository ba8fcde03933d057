package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter counts requests per (action, key) in fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

// Hit records one request and returns ErrRateLimited once the window budget
// is exceeded. An empty key is never throttled.
func (l *Limiter) Hit(ctx context.Context, action, key string) error {
	if l == nil || key == "" || l.config.MaxRequests <= 0 {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.key(action, key), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRequests) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for (action, key).
// A nil limiter or an empty key is a no-op.
func (l *Limiter) Reset(ctx context.Context, action, key string) error {
	if l == nil || key == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(action, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(action, key string) string {
	return l.prefix + ":" + action + ":" + key
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
