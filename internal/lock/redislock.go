// Package lock provides a Redis-backed mutual exclusion helper.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotAcquired is returned when the key is still held elsewhere once the context ends.
	ErrNotAcquired = errors.New("lock: not acquired")
	// ErrNoClient is returned by a Locker without a Redis client.
	ErrNoClient = errors.New("lock: redis client not configured")
)

const (
	defaultTTL   = 30 * time.Second
	defaultRetry = 50 * time.Millisecond
)

// compare-and-delete so an expired holder cannot drop its successor's lease.
var releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker hands out leases on keys shared by every process using the same Redis.
type Locker struct {
	R            redis.Cmdable
	Prefix       string
	RetryBackoff time.Duration
}

// Lease is a held lock. It expires on its own after the TTL it was taken with.
type Lease struct {
	r     redis.Cmdable
	key   string
	token string
}

// Key is the full Redis key of the lease.
func (l *Lease) Key() string { return l.key }

// Release drops the lease if it is still ours. It reports whether a key was deleted.
func (l *Lease) Release(ctx context.Context) (bool, error) {
	n, err := releaseScript.Run(ctx, l.r, []string{l.key}, l.token).Int()
	if err != nil {
		return false, fmt.Errorf("lock: release %s: %w", l.key, err)
	}
	return n == 1, nil
}

func (l Locker) fullKey(key string) string {
	if l.Prefix == "" {
		return key
	}
	return l.Prefix + ":" + key
}

// Acquire polls SET NX until it wins the key or ctx ends.
func (l Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	if l.R == nil {
		return nil, ErrNoClient
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = defaultRetry
	}
	lease := &Lease{r: l.R, key: l.fullKey(key), token: uuid.NewString()}

	ticker := time.NewTicker(retry)
	defer ticker.Stop()
	for {
		won, err := l.R.SetNX(ctx, lease.key, lease.token, ttl).Result()
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case err != nil:
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		case won:
			return lease, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// WithLock runs fn while holding key and releases the lease afterwards,
// whatever fn returns.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	lease, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	defer func() { _, _ = lease.Release(context.WithoutCancel(ctx)) }()
	return fn(ctx)
}
