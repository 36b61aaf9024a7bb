// Package throttle limits how often an organization may trigger a DNS ownership
// check.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Memory allows one call per key per interval within a single process.
type Memory struct {
	mu       sync.Mutex
	interval time.Duration
	until    map[string]time.Time
	now      func() time.Time
}

func NewMemory(interval time.Duration) *Memory {
	return &Memory{interval: interval, until: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if m.interval <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, until := range m.until {
		if !now.Before(until) {
			delete(m.until, k)
		}
	}
	if _, held := m.until[key]; held {
		return false, nil
	}
	m.until[key] = now.Add(m.interval)
	return true, nil
}

// Redis shares the throttle window across server instances. The first caller in
// a window creates the key with SET NX PX; later callers find it and are refused.
type Redis struct {
	client   redis.Cmdable
	interval time.Duration
	prefix   string
}

const defaultKeyPrefix = "zkw:verify-check:"

func NewRedis(client redis.Cmdable, interval time.Duration) *Redis {
	return &Redis{client: client, interval: interval, prefix: defaultKeyPrefix}
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if r.interval <= 0 {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, r.prefix+key, 1, r.interval).Result()
	if err != nil {
		return false, fmt.Errorf("redis throttle: %w", err)
	}
	return ok, nil
}
