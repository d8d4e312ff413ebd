package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ErrTimeout marks a call that ran out of time, either on a single attempt or overall.
var ErrTimeout = errors.New("resilience: upstream timeout")

// StatusError reports an upstream response that was retryable but never succeeded.
type StatusError struct {
	Code       int
	Status     string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded %s", e.Status)
}

// IsTimeout reports whether err represents a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// HTTPClient sends requests to an upstream with per-attempt timeouts, retries
// on 5xx and 429, and an optional breaker shared by every caller of that upstream.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	// Timeout bounds each attempt. Zero falls back to Client.Timeout.
	Timeout time.Duration
}

func (cl HTTPClient) attempts() int {
	if cl.MaxAttempts <= 0 {
		return 1
	}
	return cl.MaxAttempts
}

func (cl HTTPClient) backoff(attempt int) time.Duration {
	base := cl.BaseBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return Backoff(base, attempt, cl.Jitter)
}

// Do sends req until it gets a non-retryable response or runs out of attempts.
// The body is buffered once and replayed on every attempt. Retry-After on a
// retryable response overrides the backoff. With the breaker open Do fails
// fast with ErrOpenCircuit.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	body, err := bufferBody(req)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= cl.attempts(); attempt++ {
		if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
			return nil, ErrOpenCircuit
		}
		resp, err := cl.doOnce(ctx, withBody(req.Clone(ctx), body))
		if err == nil && !retryableStatus(resp.StatusCode) {
			cl.report(ctx, true)
			return resp, nil
		}

		var wait time.Duration
		if err != nil {
			lastErr = err
			cl.report(ctx, false)
		} else {
			statusErr := &StatusError{Code: resp.StatusCode, Status: resp.Status, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
			drain(resp)
			lastErr, wait = statusErr, statusErr.RetryAfter
			// throttling is not a dependency failure
			cl.report(ctx, resp.StatusCode == http.StatusTooManyRequests)
		}
		if ctx.Err() != nil {
			return nil, classify(ctx, ctx.Err())
		}
		if attempt == cl.attempts() {
			break
		}
		if wait <= 0 {
			wait = cl.backoff(attempt)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, classify(ctx, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, classify(ctx, lastErr)
}

func (cl HTTPClient) report(ctx context.Context, ok bool) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, ok)
	}
}

func (cl HTTPClient) doOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	if timeout <= 0 {
		return cl.Client.Do(req.WithContext(ctx))
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if err != nil {
		cancel()
		return nil, err
	}
	// the attempt context must outlive Do so the caller can read the body
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func classify(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return err
	}
	if IsTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func retryableStatus(code int) bool {
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

// bufferBody reads the request body once. A nil result means no body.
func bufferBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	src := req.Body
	if req.GetBody != nil {
		fresh, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		src = fresh
	}
	defer src.Close()
	return io.ReadAll(src)
}

func withBody(req *http.Request, body []byte) *http.Request {
	if body == nil {
		return req
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	req.ContentLength = int64(len(body))
	return req
}
