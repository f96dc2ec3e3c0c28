package company

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache memoizes resolved company ids. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, companyID string) error
	Clear(ctx context.Context) (int, error)
}

type memoryEntry struct {
	companyID string
	expiresAt time.Time
}

type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryCache returns an in-process cache. A ttl <= 0 keeps entries until
// Clear is called.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return entry.companyID, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key, companyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := memoryEntry{companyID: companyID}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Clear(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]memoryEntry)
	return n, nil
}

const DefaultRedisPrefix = "resolver:company:"

// RedisCache shares resolutions between instances. Every written key is
// tracked in an index set so Clear can remove them without SCAN.
type RedisCache struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisCache(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(key string) string {
	return c.prefix + key
}

func (c *RedisCache) indexKey() string {
	return c.prefix + "index"
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, c.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, companyID string) error {
	if err := c.rdb.Set(ctx, c.key(key), companyID, c.ttl).Err(); err != nil {
		return err
	}
	return c.rdb.SAdd(ctx, c.indexKey(), c.key(key)).Err()
}

func (c *RedisCache) Clear(ctx context.Context) (int, error) {
	keys, err := c.rdb.SMembers(ctx, c.indexKey()).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := c.rdb.Del(ctx, append(keys, c.indexKey())...).Result()
	if err != nil {
		return 0, err
	}
	// the index itself is not a cached resolution
	if removed > 0 {
		removed--
	}
	return int(removed), nil
}
