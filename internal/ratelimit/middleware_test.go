package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
)

func TestHandlerMiddlewareEnforcesLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	lim, err := NewRedisLimiter(client, "ratelimit")
	if err != nil {
		t.Fatalf("redis limiter: %v", err)
	}
	handler := Handler{
		Limiter: lim,
		Config: Config{
			Key:    func(*http.Request) string { return "static" },
			Window: time.Minute,
			Max:    1,
		},
	}

	counted := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/validate-vat", nil)
	rr1 := httptest.NewRecorder()
	counted.ServeHTTP(rr1, req.Clone(req.Context()))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	counted.ServeHTTP(rr2, req.Clone(req.Context()))
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", rr2.Code)
	}
	if rr2.Header().Get("X-RateLimit-Limit") != "1" {
		t.Fatalf("unexpected limit header: %q", rr2.Header().Get("X-RateLimit-Limit"))
	}
	if rr2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestMemoryLimiterRemaining(t *testing.T) {
	lim := NewMemoryLimiter("test")
	ctx := context.Background()
	for i := 2; i >= 0; i-- {
		allowed, remaining, _, err := lim.Allow(ctx, "k", time.Minute, 3)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed || remaining != i {
			t.Fatalf("expected allowed with %d remaining, got %v/%d", i, allowed, remaining)
		}
	}
	allowed, _, _, err := lim.Allow(ctx, "k", time.Minute, 3)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected fourth call to be limited")
	}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, time.Duration, int) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, errors.New("store unavailable")
}

func TestHandlerMiddlewareFailsOpen(t *testing.T) {
	var captured error
	handler := Handler{
		Limiter: brokenLimiter{},
		Config: Config{
			Key:    func(*http.Request) string { return "err" },
			Window: time.Second,
			Max:    1,
		},
		OnError: func(err error) { captured = err },
	}
	rr := httptest.NewRecorder()
	handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected request to pass through, got %d", rr.Code)
	}
	if captured == nil {
		t.Fatalf("expected OnError to be invoked")
	}
}

func TestShopOrIPKey(t *testing.T) {
	key := ShopOrIPKey("vat:")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	if got := key(req); got != "vat:ip:203.0.113.9" {
		t.Fatalf("unexpected ip key %q", got)
	}
	req = req.WithContext(common.WithShop(req.Context(), "demo.myshopify.com"))
	if got := key(req); got != "vat:shop:demo.myshopify.com" {
		t.Fatalf("unexpected shop key %q", got)
	}
}

func TestRetryAfterRoundsUp(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	cases := map[time.Duration]int{
		-time.Second:            0,
		0:                       0,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
	}
	for wait, want := range cases {
		if got := retryAfter(now.Add(wait), now); got != want {
			t.Fatalf("retryAfter(%v) = %d, want %d", wait, got, want)
		}
	}
}

func TestRejectionsAreCountedByName(t *testing.T) {
	obs.MustRegisterDomainMetrics("", prometheus.NewRegistry())
	before := testutil.ToFloat64(obs.RateLimitedTotal.WithLabelValues("vat"))

	handler := Handler{
		Limiter: NewMemoryLimiter("named"),
		Config: Config{
			Name:   "vat",
			Key:    func(*http.Request) string { return "shop:demo.myshopify.com" },
			Window: time.Minute,
			Max:    1,
		},
	}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/validate-vat", nil))
	}
	if got := testutil.ToFloat64(obs.RateLimitedTotal.WithLabelValues("vat")) - before; got != 2 {
		t.Fatalf("expected 2 rejections, got %v", got)
	}
}
