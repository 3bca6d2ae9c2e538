package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter answers whether another attempt is allowed for a key right now.
// Credential endpoints throttle per client IP and per submitted email so a
// single source cannot grind through codes or passwords.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Default budgets per route class.
const (
	strictLimit  = 5
	strictWindow = 15 * time.Minute

	codeLimit  = 3
	codeWindow = 5 * time.Minute
)

// memoryLimiter is a sliding-window limiter for single-process deployments.
type memoryLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time

	now func() time.Time
}

func newMemoryLimiter(max int, window time.Duration) *memoryLimiter {
	return &memoryLimiter{
		window:  window,
		max:     max,
		entries: make(map[string][]time.Time),
		now:     time.Now,
	}
}

func (l *memoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	ts := l.entries[key]

	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	ts = kept
	if len(ts) >= l.max {
		l.entries[key] = ts
		return false, nil
	}

	ts = append(ts, now)
	l.entries[key] = ts
	return true, nil
}

// redisLimiter counts attempts in fixed windows via INCR, so the budget is
// shared across replicas. The TTL is set on the first hit of each window.
type redisLimiter struct {
	client redis.UniversalClient
	prefix string
	window time.Duration
	max    int
}

func newRedisLimiter(client redis.UniversalClient, prefix string, max int, window time.Duration) *redisLimiter {
	return &redisLimiter{client: client, prefix: prefix, window: window, max: max}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	full := l.prefix + ":" + key
	count, err := l.client.Incr(ctx, full).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, full, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.max), nil
}

// throttle checks every key against the limiter. Limiter errors fail open and
// are logged: an unreachable Redis must not take the auth endpoints down.
func (a *api) throttle(ctx context.Context, limiter Limiter, keys ...string) bool {
	for _, key := range keys {
		ok, err := limiter.Allow(ctx, key)
		if err != nil {
			a.logger.Warn("rate limiter unavailable", "err", err)
			return true
		}
		if !ok {
			return false
		}
	}
	return true
}
