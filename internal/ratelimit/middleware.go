package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
)

// Limiter counts an event for key and reports whether it fits the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config describes how to derive a rate limit key and thresholds.
type Config struct {
	// Name labels rejections in metrics, e.g. "vat".
	Name   string
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler enforces rate limits before delegating to the next handler.
// Limiter failures fail open.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware answers 429 RATE_LIMITED once a key has used up its window.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Config.Key == nil || h.Limiter == nil || h.Config.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}
		h.writeHeaders(w.Header(), remaining, resetAt)
		if allowed {
			next.ServeHTTP(w, r)
			return
		}
		if obs.RateLimitedTotal != nil {
			obs.RateLimitedTotal.WithLabelValues(h.name()).Inc()
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter(resetAt, time.Now())))
		common.JSONError(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", nil)
	})
}

// CodeRateLimited is the error code of a 429 response.
const CodeRateLimited = "RATE_LIMITED"

func (h Handler) writeHeaders(headers http.Header, remaining int, resetAt time.Time) {
	headers.Set("X-RateLimit-Limit", strconv.Itoa(h.Config.Max))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func (h Handler) name() string {
	if h.Config.Name == "" {
		return "default"
	}
	return h.Config.Name
}

// retryAfter rounds up to whole seconds so clients never retry early.
func retryAfter(resetAt, now time.Time) int {
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int((wait + time.Second - 1) / time.Second)
}

// ShopOrIPKey keys requests by the authenticated shop, falling back to the client IP.
func ShopOrIPKey(prefix string) func(*http.Request) string {
	return func(r *http.Request) string {
		if shop, ok := common.Shop(r.Context()); ok {
			return prefix + "shop:" + shop
		}
		return prefix + "ip:" + common.ClientIP(r)
	}
}
