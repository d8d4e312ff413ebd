// Package cache stores JSON payloads in Redis with a fixed TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSON wraps Redis helpers for JSON payloads. A nil client disables caching.
type JSON struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewJSON constructs a cache helper. Keys are namespaced under prefix.
func NewJSON(client redis.Cmdable, prefix string, ttl time.Duration) *JSON {
	return &JSON{client: client, prefix: strings.TrimSuffix(prefix, ":"), ttl: ttl}
}

// Enabled reports whether reads and writes reach Redis.
func (c *JSON) Enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Key joins parts under the cache prefix.
func (c *JSON) Key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if c != nil && c.prefix != "" {
		all = append(all, c.prefix)
	}
	all = append(all, parts...)
	return strings.Join(all, ":")
}

// Get unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// Set serialises v as JSON and stores it with the configured TTL.
func (c *JSON) Set(ctx context.Context, key string, v any) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete drops a key.
func (c *JSON) Delete(ctx context.Context, key string) error {
	if !c.Enabled() || key == "" {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
