package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper marks inbound email submissions so redelivered webhooks are
// processed at most once per process horizon.
type Deduper interface {
	// MarkSeen records the key and reports whether it was already present.
	MarkSeen(ctx context.Context, key string) (bool, error)
	// Forget releases a marker so the provider's next redelivery is
	// processed again.
	Forget(ctx context.Context, key string) error
}

const dedupeTTL = 7 * 24 * time.Hour

// RedisDeduper uses SETNX so concurrent deliveries of the same message race
// to a single winner.
type RedisDeduper struct {
	client *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{client: client}
}

func (d *RedisDeduper) MarkSeen(ctx context.Context, key string) (bool, error) {
	set, err := d.client.SetNX(ctx, "email-seen:"+key, 1, dedupeTTL).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, "email-seen:"+key).Err()
}

// MemoryDeduper is the in-process fallback used by tests.
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]struct{})}
}

func (d *MemoryDeduper) MarkSeen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true, nil
	}
	d.seen[key] = struct{}{}
	return false, nil
}

func (d *MemoryDeduper) Forget(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, key)
	return nil
}
