package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
)

const (
	testKey    = "api-key"
	testSecret = "api-secret"
)

func signToken(t *testing.T, now time.Time, mutate func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("https://demo.myshopify.com/admin").
		Audience([]string{testKey}).
		Subject("42").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Minute)).
		Claim("dest", "https://demo.myshopify.com")
	if mutate != nil {
		b = mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func testVerifier(now time.Time) Verifier {
	return Verifier{APIKey: testKey, Secret: []byte(testSecret), ClockSkew: time.Second, Now: func() time.Time { return now }}
}

func TestVerifySuccess(t *testing.T) {
	now := time.Now()
	claims, err := testVerifier(now).Verify(signToken(t, now, nil))
	require.NoError(t, err)
	require.Equal(t, "demo.myshopify.com", claims.Shop)
	require.Equal(t, "42", claims.Subject)
}

func TestVerifyFallsBackToIssuer(t *testing.T) {
	now := time.Now()
	raw := signToken(t, now, func(b *jwt.Builder) *jwt.Builder {
		return b.Claim("dest", "").Issuer("https://other.myshopify.com/admin")
	})
	claims, err := testVerifier(now).Verify(raw)
	require.NoError(t, err)
	require.Equal(t, "other.myshopify.com", claims.Shop)
}

func TestVerifyRejects(t *testing.T) {
	now := time.Now()
	cases := map[string]string{
		"expired": signToken(t, now, func(b *jwt.Builder) *jwt.Builder {
			return b.IssuedAt(now.Add(-time.Hour)).NotBefore(now.Add(-time.Hour)).Expiration(now.Add(-time.Minute))
		}),
		"audience": signToken(t, now, func(b *jwt.Builder) *jwt.Builder {
			return b.Audience([]string{"someone-else"})
		}),
		"garbage": "not-a-token",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := testVerifier(now).Verify(raw)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	wrongSecret := Verifier{APIKey: testKey, Secret: []byte("other"), Now: func() time.Time { return now }}
	_, err := wrongSecret.Verify(signToken(t, now, nil))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	now := time.Now()
	var gotShop string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotShop, _ = common.Shop(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := Middleware{Verifier: testVerifier(now)}.Require(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tax-rates", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "UNAUTHORIZED")

	req := httptest.NewRequest(http.MethodGet, "/api/tax-rates", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, now, nil))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "demo.myshopify.com", gotShop)
}

func TestMiddlewareDisabledPassesThrough(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	rec := httptest.NewRecorder()
	Middleware{}.Require(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tax-rates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}
