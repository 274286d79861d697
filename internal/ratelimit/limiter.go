// Package ratelimit caps public search calls per client and event. Selfie
// search is the cheapest way to probe who attended an event, so it is the one
// endpoint that needs a budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter counts hits in fixed windows. Should be safe for concurrent use.
type Limiter interface {
	// Allow records one hit for key and reports whether it fits the budget.
	// When it does not, retryAfter is the time until the window resets.
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}

// RedisLimiter shares the budget across API replicas.
type RedisLimiter struct {
	client    *redis.Client
	namespace string
	limit     int64
	window    time.Duration
}

func NewRedisLimiter(client *redis.Client, namespace string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, namespace: namespace, limit: int64(limit), window: window}
}

func (l *RedisLimiter) key(key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", l.namespace, key)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	k := l.key(key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		// NX keeps the window anchored at the first hit.
		pipe.ExpireNX(ctx, k, l.window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", key, err)
	}

	if incr.Val() > l.limit {
		retry := ttl.Val()
		if retry <= 0 {
			retry = l.window
		}
		return false, retry, nil
	}
	return true, 0, nil
}

// MemoryLimiter is a single-process Limiter for deployments without Redis.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	buckets map[string]*bucket
}

type bucket struct {
	count int
	reset time.Time
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || !now.Before(b.reset) {
		b = &bucket{reset: now.Add(l.window)}
		l.buckets[key] = b
		l.gc(now)
	}
	b.count++
	if b.count > l.limit {
		return false, b.reset.Sub(now), nil
	}
	return true, 0, nil
}

// gc drops expired buckets once the map grows. Caller holds mu.
func (l *MemoryLimiter) gc(now time.Time) {
	if len(l.buckets) < 10000 {
		return
	}
	for k, b := range l.buckets {
		if !now.Before(b.reset) {
			delete(l.buckets, k)
		}
	}
}
