package vat_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/felipedev418/tax-rate-adjustment/internal/cache"
	"github.com/felipedev418/tax-rate-adjustment/internal/resilience"
	"github.com/felipedev418/tax-rate-adjustment/internal/vat"
)

type stubChecker struct {
	calls   int32
	verdict vat.Verdict
	err     error
	delay   time.Duration
	country string
	number  string
}

func (s *stubChecker) Check(ctx context.Context, countryCode, vatNumber string) (vat.Verdict, error) {
	atomic.AddInt32(&s.calls, 1)
	s.country, s.number = countryCode, vatNumber
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return vat.Verdict{}, ctx.Err()
		}
	}
	return s.verdict, s.err
}

func TestValidateOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		checker *stubChecker
		want    vat.Result
	}{
		{"valid", &stubChecker{verdict: vat.Verdict{Valid: true}}, vat.Result{Success: true, Message: "VAT number is valid", Status: vat.StatusValid}},
		{"invalid", &stubChecker{verdict: vat.Verdict{Valid: false}}, vat.Result{Success: false, Message: "VAT number is invalid", Status: vat.StatusInvalid}},
		{"service error", &stubChecker{err: errors.New("connection refused")}, vat.Result{Success: false, Message: "VAT validation service error", Status: vat.StatusServiceError}},
		{"upstream timeout", &stubChecker{err: resilience.ErrTimeout}, vat.Result{Success: false, Message: "VAT validation timed out", Status: vat.StatusTimeout}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := vat.NewValidator(vat.ValidatorConfig{Checker: tc.checker})
			require.Equal(t, tc.want, v.Validate(context.Background(), "at", "ATU 1234 5678"))
			require.Equal(t, "AT", tc.checker.country)
			require.Equal(t, "ATU12345678", tc.checker.number)
		})
	}
}

func TestValidateScopedTimeout(t *testing.T) {
	checker := &stubChecker{delay: time.Second, verdict: vat.Verdict{Valid: true}}
	v := vat.NewValidator(vat.ValidatorConfig{Checker: checker, Timeout: 20 * time.Millisecond})
	start := time.Now()
	res := v.Validate(context.Background(), "DE", "DE123456789")
	require.Equal(t, vat.StatusTimeout, res.Status)
	require.False(t, res.Success)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestValidateCachesDefinitiveAnswersOnly(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := cache.NewJSON(client, "vat", time.Hour)
	ctx := context.Background()

	good := &stubChecker{verdict: vat.Verdict{Valid: true, Name: "ACME GMBH"}}
	v := vat.NewValidator(vat.ValidatorConfig{Checker: good, Cache: c})
	first := v.Validate(ctx, "DE", "DE123456789")
	second := v.Validate(ctx, "DE", "de123456789")
	require.Equal(t, first, second)
	require.Equal(t, "ACME GMBH", second.Name)
	require.EqualValues(t, 1, atomic.LoadInt32(&good.calls))

	failing := &stubChecker{err: errors.New("MS_UNAVAILABLE")}
	v = vat.NewValidator(vat.ValidatorConfig{Checker: failing, Cache: c})
	v.Validate(ctx, "FR", "FR00000000000")
	v.Validate(ctx, "FR", "FR00000000000")
	require.EqualValues(t, 2, atomic.LoadInt32(&failing.calls))
	require.False(t, mr.Exists("vat:FR:FR00000000000"))
}

func TestSplitVATNumber(t *testing.T) {
	country, number := vat.SplitVATNumber(" atu12345678 ")
	require.Equal(t, "AT", country)
	require.Equal(t, "ATU12345678", number)

	country, number = vat.SplitVATNumber("x")
	require.Equal(t, "X", country)
	require.Equal(t, "X", number)
}

func TestVIESClientParsesResponses(t *testing.T) {
	var lastBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		switch lastBody["vatNumber"] {
		case "ATU12345678":
			_, _ = w.Write([]byte(`{"countryCode":"AT","vatNumber":"ATU12345678","valid":true,"name":" ACME ","address":"Wien"}`))
		case "ATU00000000":
			_, _ = w.Write([]byte(`{"countryCode":"AT","vatNumber":"ATU00000000","valid":false}`))
		case "BUSY":
			_, _ = w.Write([]byte(`{"actionSucceed":false,"errorWrappers":[{"error":"MS_MAX_CONCURRENT_REQ"}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	client := vat.NewVIESClient(srv.URL, srv.Client())
	ctx := context.Background()

	verdict, err := client.Check(ctx, "AT", "ATU12345678")
	require.NoError(t, err)
	require.Equal(t, vat.Verdict{Valid: true, Name: "ACME", Address: "Wien"}, verdict)
	require.Equal(t, "AT", lastBody["countryCode"])

	verdict, err = client.Check(ctx, "AT", "ATU00000000")
	require.NoError(t, err)
	require.False(t, verdict.Valid)

	_, err = client.Check(ctx, "AT", "BUSY")
	require.ErrorIs(t, err, vat.ErrServiceUnavailable)
	require.Contains(t, err.Error(), "MS_MAX_CONCURRENT_REQ")

	_, err = client.Check(ctx, "AT", "???")
	require.ErrorIs(t, err, vat.ErrServiceUnavailable)
}
