package vat

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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felipedev418/tax-rate-adjustment/internal/resilience"
)

// DefaultVIESURL is the EU VIES REST endpoint.
const DefaultVIESURL = "https://ec.europa.eu/taxation_customs/vies/rest-api/check-vat-number"

// ErrServiceUnavailable is returned when VIES answers without a verdict.
var ErrServiceUnavailable = errors.New("vat: validation service unavailable")

// Checker asks an authority whether a VAT number is registered.
type Checker interface {
	Check(ctx context.Context, countryCode, vatNumber string) (Verdict, error)
}

// Verdict is a definitive answer from the authority.
type Verdict struct {
	Valid   bool   `json:"valid"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

type viesRequest struct {
	CountryCode string `json:"countryCode"`
	VATNumber   string `json:"vatNumber"`
}

type viesResponse struct {
	Valid         bool   `json:"valid"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	ActionSucceed *bool  `json:"actionSucceed"`
	ErrorWrappers []struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"errorWrappers"`
}

// VIESClient calls the VIES REST API.
type VIESClient struct {
	url  string
	http resilience.HTTPClient
}

// NewVIESClient builds a client with a circuit breaker and one retry on 5xx.
func NewVIESClient(url string, hc *http.Client) *VIESClient {
	if strings.TrimSpace(url) == "" {
		url = DefaultVIESURL
	}
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &VIESClient{
		url: url,
		http: resilience.HTTPClient{
			Client:      hc,
			Breaker:     resilience.NewBreaker(5, 0.6, 30*time.Second).WithTarget("vies"),
			MaxAttempts: 2,
			BaseBackoff: 200 * time.Millisecond,
			Jitter:      0.2,
		},
	}
}

// Check implements Checker.
func (c *VIESClient) Check(ctx context.Context, countryCode, vatNumber string) (Verdict, error) {
	body, err := json.Marshal(viesRequest{CountryCode: countryCode, VATNumber: vatNumber})
	if err != nil {
		return Verdict{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Verdict{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Verdict{}, fmt.Errorf("%w: %s", ErrServiceUnavailable, resp.Status)
	}
	var out viesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Verdict{}, fmt.Errorf("%w: decode response: %v", ErrServiceUnavailable, err)
	}
	if len(out.ErrorWrappers) > 0 {
		return Verdict{}, fmt.Errorf("%w: %s", ErrServiceUnavailable, out.ErrorWrappers[0].Error)
	}
	if out.ActionSucceed != nil && !*out.ActionSucceed {
		return Verdict{}, ErrServiceUnavailable
	}
	return Verdict{Valid: out.Valid, Name: strings.TrimSpace(out.Name), Address: strings.TrimSpace(out.Address)}, nil
}
