// Package vat validates EU VAT numbers and stores the shop's VAT settings.
package vat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/felipedev418/tax-rate-adjustment/internal/cache"
	"github.com/felipedev418/tax-rate-adjustment/internal/obs"
	"github.com/felipedev418/tax-rate-adjustment/internal/resilience"
)

// Status classifies a validation outcome.
type Status string

const (
	StatusValid        Status = "valid"
	StatusInvalid      Status = "invalid"
	StatusServiceError Status = "service_error"
	StatusTimeout      Status = "timeout"
)

// Result messages.
const (
	MessageValid        = "VAT number is valid"
	MessageInvalid      = "VAT number is invalid"
	MessageServiceError = "VAT validation service error"
	MessageTimeout      = "VAT validation timed out"
)

// DefaultTimeout bounds one validation when none is configured.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of a validation. Success is true only for valid numbers.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  Status `json:"status"`
	Name    string `json:"name,omitempty"`
}

// Validator checks VAT numbers against a Checker, caching definitive answers.
type Validator struct {
	checker Checker
	cache   *cache.JSON
	timeout time.Duration
	logger  zerolog.Logger
}

// ValidatorConfig wires a Validator.
type ValidatorConfig struct {
	Checker Checker
	Cache   *cache.JSON
	Timeout time.Duration
	Logger  zerolog.Logger
}

// NewValidator constructs a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Validator{checker: cfg.Checker, cache: cfg.Cache, timeout: timeout, logger: cfg.Logger}
}

// Validate never fails; transport problems become service_error or timeout results.
func (v *Validator) Validate(ctx context.Context, countryCode, vatNumber string) Result {
	country := strings.ToUpper(strings.TrimSpace(countryCode))
	number := normalizeNumber(vatNumber)
	key := v.cache.Key(country, number)

	var cached Verdict
	if found, err := v.cache.Get(ctx, key, &cached); err != nil {
		v.logFor(ctx).Warn().Err(err).Msg("vat cache read failed")
	} else if found {
		observe("cached")
		return verdictResult(cached)
	}

	callCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	verdict, err := v.checker.Check(callCtx, country, number)
	if err != nil {
		if resilience.IsTimeout(err) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			observe(string(StatusTimeout))
			v.logFor(ctx).Warn().Err(err).Str("country", country).Msg("vat validation timed out")
			return Result{Success: false, Message: MessageTimeout, Status: StatusTimeout}
		}
		observe(string(StatusServiceError))
		v.logFor(ctx).Error().Err(err).Str("country", country).Msg("vat validation failed")
		return Result{Success: false, Message: MessageServiceError, Status: StatusServiceError}
	}

	if err := v.cache.Set(ctx, key, verdict); err != nil {
		v.logFor(ctx).Warn().Err(err).Msg("vat cache write failed")
	}
	res := verdictResult(verdict)
	observe(string(res.Status))
	return res
}

func verdictResult(v Verdict) Result {
	if v.Valid {
		return Result{Success: true, Message: MessageValid, Status: StatusValid, Name: v.Name}
	}
	return Result{Success: false, Message: MessageInvalid, Status: StatusInvalid}
}

// SplitVATNumber takes the first two characters of raw as the upper-cased
// country prefix. The number itself is returned whole, prefix included.
func SplitVATNumber(raw string) (countryCode, vatNumber string) {
	number := normalizeNumber(raw)
	if len(number) < 2 {
		return number, number
	}
	return number[:2], number
}

func normalizeNumber(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '.', '-':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(raw)))
}

func (v *Validator) logFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &v.logger
}

func observe(status string) {
	if obs.VATValidationsTotal != nil {
		obs.VATValidationsTotal.WithLabelValues(status).Inc()
	}
}
