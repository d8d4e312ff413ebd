package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Probes builds the readiness checks for the optional Redis client and the
// Shopify Admin API ping.
type Probes struct {
	Redis   redis.Cmdable
	Shopify func(ctx context.Context) error
}

// Checks returns the redis and shopify checks with their timeouts.
func (p Probes) Checks(redisTimeout, shopifyTimeout time.Duration) []Check {
	redisCheck := Check{Name: "redis", Timeout: redisTimeout}
	if p.Redis != nil {
		redisCheck.Probe = func(ctx context.Context) error { return p.Redis.Ping(ctx).Err() }
	}
	if redisTimeout <= 0 {
		redisCheck.Timeout = 300 * time.Millisecond
	}
	shopifyCheck := Check{Name: "shopify", Timeout: shopifyTimeout, Probe: p.Shopify}
	if shopifyTimeout <= 0 {
		shopifyCheck.Timeout = 2 * time.Second
	}
	return []Check{redisCheck, shopifyCheck}
}
