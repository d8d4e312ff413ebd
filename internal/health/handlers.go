package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
)

const (
	StatusOK       = "ok"
	StatusDisabled = "disabled"
)

// Check is one readiness dependency. A nil Probe marks it as not configured.
type Check struct {
	Name    string
	Timeout time.Duration
	Probe   func(ctx context.Context) error
}

func (c Check) run(ctx context.Context) string {
	if c.Probe == nil {
		return StatusDisabled
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Probe(ctx); err != nil {
		return err.Error()
	}
	return StatusOK
}

var draining atomic.Bool

// SetReady toggles readiness. The API clears it while draining on shutdown.
func SetReady(v bool) { draining.Store(!v) }

// Handler serves /health/live and /health/ready.
type Handler struct {
	Checks []Check
}

// Live answers as long as the process can serve HTTP.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Ready probes every check in parallel and answers 503 if any configured one fails.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting down"})
		return
	}

	results := make([]string, len(h.Checks))
	var wg sync.WaitGroup
	for i, c := range h.Checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.run(r.Context())
		}()
	}
	wg.Wait()

	status := http.StatusOK
	body := make(map[string]string, len(h.Checks))
	for i, c := range h.Checks {
		body[c.Name] = results[i]
		if results[i] != StatusOK && results[i] != StatusDisabled {
			status = http.StatusServiceUnavailable
		}
	}
	common.JSON(w, status, body)
}
