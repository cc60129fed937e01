package currency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RateCache stores recently fetched conversion rates keyed by "FROM/TO".
type RateCache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error
}

type entry struct {
	rate decimal.Decimal
	exp  time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	mu  sync.RWMutex
	m   map[string]entry
	now func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]entry), now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return decimal.Decimal{}, false, nil
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		return decimal.Decimal{}, false, nil
	}
	return e.rate, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry{rate: rate, exp: exp}
	c.mu.Unlock()
	return nil
}

// RedisOptions configure the shared rate cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisCache shares rates between replicas through Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects and pings Redis.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "quotealert"
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	raw, err := c.client.Get(ctx, c.wrapKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, false, err
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("parse cached rate: %w", err)
	}
	return rate, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	return c.client.Set(ctx, c.wrapKey(key), rate.String(), ttl).Err()
}

func (c *RedisCache) wrapKey(key string) string {
	return fmt.Sprintf("%s:rate:%s", c.prefix, key)
}

var (
	_ RateCache = (*MemoryCache)(nil)
	_ RateCache = (*RedisCache)(nil)
)
