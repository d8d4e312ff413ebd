package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
	"github.com/felipedev418/tax-rate-adjustment/internal/resilience"
)

const (
	defaultAPIVersion = "2024-10"
	throttleRetryMax  = 5
	throttleBaseDelay = 500 * time.Millisecond
	throttleMaxDelay  = 10 * time.Second
	maxResponseBytes  = 4 << 20
)

// Config holds the Admin API connection settings.
type Config struct {
	ShopDomain string
	APIVersion string
	Token      string
	Timeout    time.Duration
	// Endpoint overrides the derived graphql.json URL. Used by tests.
	Endpoint string
}

// Client talks to the Shopify Admin GraphQL API.
type Client struct {
	cfg      Config
	http     resilience.HTTPClient
	logger   zerolog.Logger
	sleep    func(context.Context, time.Duration) error
	endpoint string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http.Client = hc
		}
	}
}

// WithBreaker shares a circuit breaker with the client.
func WithBreaker(b *resilience.Breaker) Option {
	return func(c *Client) { c.http.Breaker = b }
}

// WithLogger sets the logger used when no request logger is on the context.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a client. Requests carry otelhttp spans and a per-attempt timeout.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		domain := strings.TrimSpace(cfg.ShopDomain)
		if domain == "" {
			return nil, fmt.Errorf("%w: shop domain is empty", ErrNotConfigured)
		}
		if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
			domain = "https://" + domain
		}
		endpoint = strings.TrimRight(domain, "/") + "/admin/api/" + cfg.APIVersion + "/graphql.json"
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("%w: access token is empty", ErrNotConfigured)
	}
	c := &Client{
		cfg: cfg,
		http: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("shopify"),
			MaxAttempts: 1,
			Timeout:     cfg.Timeout,
		},
		logger:   zerolog.Nop(),
		sleep:    sleepWithContext,
		endpoint: endpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the GraphQL URL used by the client.
func (c *Client) Endpoint() string { return c.endpoint }

// Do runs a GraphQL operation and decodes data into out when out is non-nil.
// Throttled responses are retried with exponential delay; every other failure
// is returned to the caller after a single send.
func (c *Client) Do(ctx context.Context, operation, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(graphQLRequest{Query: strings.TrimSpace(query), Variables: variables})
	if err != nil {
		return fmt.Errorf("shopify: encode request: %w", err)
	}
	logger := c.loggerFor(ctx)

	for attempt := 0; ; attempt++ {
		start := time.Now()
		raw, err := c.post(ctx, payload)
		observeLatency(operation, start)
		if err != nil {
			var statusErr *HTTPStatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests && attempt < throttleRetryMax {
				if err := c.sleep(ctx, retryDelay(attempt)); err != nil {
					return err
				}
				continue
			}
			observeResult(operation, resultLabel(err))
			logger.Error().Err(err).Str("operation", operation).Msg("shopify graphql request failed")
			return err
		}

		var resp GraphQLResponse[json.RawMessage]
		if err := json.Unmarshal(raw, &resp); err != nil {
			observeResult(operation, "decode_error")
			return fmt.Errorf("shopify: decode response: %w", err)
		}
		if len(resp.Errors) > 0 {
			if isThrottled(resp.Errors) {
				if attempt < throttleRetryMax {
					logger.Debug().Str("operation", operation).Int("attempt", attempt+1).Msg("shopify graphql throttled")
					if err := c.sleep(ctx, retryDelay(attempt)); err != nil {
						return err
					}
					continue
				}
				observeResult(operation, "throttled")
				return fmt.Errorf("%w: %s", ErrThrottled, formatGraphQLErrors(resp.Errors))
			}
			observeResult(operation, "graphql_error")
			err := GraphQLErrors(resp.Errors)
			logger.Error().Err(err).Str("operation", operation).Msg("shopify graphql response errors")
			return err
		}
		if out == nil {
			observeResult(operation, "ok")
			return nil
		}
		if len(resp.Data) == 0 || string(resp.Data) == "null" {
			observeResult(operation, "decode_error")
			return ErrMissingData
		}
		if err := json.Unmarshal(resp.Data, out); err != nil {
			observeResult(operation, "decode_error")
			return fmt.Errorf("shopify: decode data: %w", err)
		}
		observeResult(operation, "ok")
		return nil
	}
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.cfg.Token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		var statusErr *resilience.StatusError
		if errors.As(err, &statusErr) {
			return nil, &HTTPStatusError{StatusCode: statusErr.Code, Status: statusErr.Status}
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("shopify: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.logger
}

func resultLabel(err error) string {
	switch {
	case resilience.IsTimeout(err):
		return "timeout"
	case errors.Is(err, resilience.ErrOpenCircuit):
		return "circuit_open"
	default:
		return "http_error"
	}
}

func observeResult(operation, result string) {
	if obs.GraphQLRequestsTotal != nil {
		obs.GraphQLRequestsTotal.WithLabelValues(operation, result).Inc()
	}
}

func observeLatency(operation string, start time.Time) {
	if obs.GraphQLLatency != nil {
		obs.GraphQLLatency.WithLabelValues(operation).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	delay := throttleBaseDelay << attempt
	if delay > throttleMaxDelay {
		delay = throttleMaxDelay
	}
	return delay
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
