package mail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle allows one action per key per window.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type RedisThrottle struct {
	rdb    *redis.Client
	prefix string
	window time.Duration
}

func NewRedisThrottle(rdb *redis.Client, prefix string, window time.Duration) *RedisThrottle {
	return &RedisThrottle{rdb: rdb, prefix: prefix, window: window}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	ok, err := t.rdb.SetNX(ctx, t.prefix+key, 1, t.window).Result()
	if err != nil {
		return false, fmt.Errorf("throttle setnx: %w", err)
	}
	return ok, nil
}

// MemoryThrottle is the single-process fallback used without Redis.
type MemoryThrottle struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	seen   map[string]time.Time
}

func NewMemoryThrottle(window time.Duration) *MemoryThrottle {
	return &MemoryThrottle{window: window, now: time.Now, seen: make(map[string]time.Time)}
}

func (t *MemoryThrottle) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if last, ok := t.seen[key]; ok && now.Sub(last) < t.window {
		return false, nil
	}
	for k, v := range t.seen {
		if now.Sub(v) >= t.window {
			delete(t.seen, k)
		}
	}
	t.seen[key] = now
	return true, nil
}
