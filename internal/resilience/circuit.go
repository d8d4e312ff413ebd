package resilience

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the circuit breaker refuses a request.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

var stateNames = [...]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// gauge is the breaker_state value: 0 closed, 1 open, 2 half-open.
func (s State) gauge() float64 {
	if s < 0 || int(s) >= len(stateNames) {
		return -1
	}
	return float64(s)
}

// Settings tune when a breaker trips.
type Settings struct {
	// MinRequests is the sample size before the failure ratio is considered.
	MinRequests int
	// FailureRatio in (0, 1] opens the breaker once reached.
	FailureRatio float64
	// OpenFor is the cool-off before a half-open probe is allowed.
	OpenFor time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.MinRequests <= 0 {
		s.MinRequests = 1
	}
	switch {
	case s.FailureRatio <= 0:
		s.FailureRatio = 0.5
	case s.FailureRatio > 1:
		s.FailureRatio = 1
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 30 * time.Second
	}
	return s
}

// window holds outcomes since the last transition.
type window struct {
	ok, failed int
}

func (w window) total() int { return w.ok + w.failed }

func (w window) ratio() float64 {
	if w.total() == 0 {
		return 0
	}
	return float64(w.failed) / float64(w.total())
}

// decay halves both counts so old outcomes weigh less than recent ones.
func (w *window) decay() {
	w.ok = (w.ok + 1) / 2
	w.failed = (w.failed + 1) / 2
}

// Breaker is a failure-ratio circuit breaker for one upstream (shopify, vies).
type Breaker struct {
	mu       sync.Mutex
	settings Settings
	state    State
	window   window
	openedAt time.Time
	target   string
	logger   *zerolog.Logger
	now      func() time.Time
}

// NewBreaker opens once failureRatio of at least minRequests calls fail, and
// allows one probe after openFor.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	return NewBreakerWithSettings(Settings{MinRequests: minRequests, FailureRatio: failureRatio, OpenFor: openFor})
}

// NewBreakerWithSettings builds a breaker from s.
func NewBreakerWithSettings(s Settings) *Breaker {
	return &Breaker{settings: s.withDefaults(), now: time.Now}
}

// Allow reports whether a call may proceed. An open breaker past its cool-off
// turns half-open and lets the call through as a probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != Open {
		return true
	}
	if b.now().Sub(b.openedAt) < b.settings.OpenFor {
		return false
	}
	b.moveLocked(ctx, HalfOpen)
	return true
}

// Report records the outcome of a call allowed by Allow.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		return
	case HalfOpen:
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}

	if success {
		b.window.ok++
	} else {
		b.window.failed++
	}
	min := b.settings.MinRequests
	switch {
	case b.window.total() < min:
	case b.window.ratio() >= b.settings.FailureRatio:
		b.moveLocked(ctx, Open)
	case b.window.total() > 2*min:
		b.window.decay()
	}
}

// State returns the current breaker state without advancing it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Target returns the upstream label used in metrics and logs.
func (b *Breaker) Target() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.label()
}

// WithTarget names the upstream and publishes the current state under it.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	observeState(b.label(), b.state)
	return b
}

// WithLogger sets the logger used when no request logger is on the context.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &logger
	return b
}

// WithClock replaces time.Now. Tests use it to skip the cool-off.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if now != nil {
		b.now = now
	}
	return b
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	label := b.label()
	if prev == next {
		observeState(label, next)
		return
	}
	b.state = next
	b.window = window{}
	b.openedAt = time.Time{}
	if next == Open {
		b.openedAt = b.now()
	}
	observeState(label, next)
	observeTransition(label, prev, next)
	b.logTransition(ctx, label, prev, next)
}

func (b *Breaker) logTransition(ctx context.Context, label string, from, to State) {
	logger := b.loggerFor(ctx)
	evt := logger.Warn()
	if to == Closed {
		evt = logger.Info()
	}
	evt = evt.Str("target", label).Str("from_state", from.String()).Str("to_state", to.String())
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

// loggerFor prefers the request logger, then the configured one.
func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
			return l
		}
	}
	if b.logger != nil {
		return b.logger
	}
	nop := zerolog.Nop()
	return &nop
}

// Backoff doubles base per attempt. jitterPct spreads the result by that
// fraction in either direction.
func Backoff(base time.Duration, attempt int, jitterPct float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << uint(attempt-1)
	if jitterPct <= 0 {
		return d
	}
	spread := float64(d) * jitterPct
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
