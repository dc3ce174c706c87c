// Package cache provides an optional Redis-backed read-through cache in
// front of the store's more expensive aggregate queries. A failed or
// unconfigured connection degrades to a nil cache rather than an error.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a redis.Client. A nil *Cache is valid and every method on
// it is a safe no-op/miss, so callers never need a separate "is caching
// enabled" branch.
type Cache struct {
	client *redis.Client
}

// New connects to addr. An empty addr or a failed ping both return nil,
// not an error: caching is strictly optional, never a hard dependency
// of the query API.
func New(addr string) *Cache {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ cache: failed to connect to redis at %s: %v", addr, err)
		return nil
	}
	log.Printf("✅ cache: connected to redis at %s", addr)
	return &Cache{client: client}
}

// Get decodes the JSON value stored at key into dest. Returns
// redis.Nil-wrapped errors on cache miss, same as the underlying client.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) error {
	if c == nil {
		return redis.Nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

// Set JSON-encodes value and stores it at key with the given expiration.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c == nil {
		return fmt.Errorf("cache: not configured")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
