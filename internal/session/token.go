// Package session verifies App Bridge session tokens on embedded admin requests.
package session

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var (
	// ErrMissingToken is returned when no bearer token is present.
	ErrMissingToken = errors.New("session: token missing")
	// ErrInvalidToken covers signature, claim and shop failures.
	ErrInvalidToken = errors.New("session: invalid token")
)

// Verifier checks HS256 session tokens signed with the app secret.
// The audience must be the app's API key.
type Verifier struct {
	APIKey    string
	Secret    []byte
	ClockSkew time.Duration
	Now       func() time.Time
}

// Claims are the session token fields the API relies on.
type Claims struct {
	Shop    string
	Subject string
	Expires time.Time
}

// Enabled reports whether the verifier has a secret to check against.
func (v Verifier) Enabled() bool {
	return len(v.Secret) > 0
}

// Verify parses raw and validates signature, expiry and audience.
func (v Verifier) Verify(raw string) (Claims, error) {
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256, v.Secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(now)),
	}
	if v.ClockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.APIKey != "" {
		options = append(options, jwt.WithAudience(v.APIKey))
	}
	if err := jwt.Validate(tok, options...); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	shop := shopFromToken(tok)
	if shop == "" {
		return Claims{}, fmt.Errorf("%w: no shop in dest or iss", ErrInvalidToken)
	}
	return Claims{Shop: shop, Subject: tok.Subject(), Expires: tok.Expiration()}, nil
}

// shopFromToken reads the shop host from dest, falling back to iss
// ("https://{shop}/admin").
func shopFromToken(tok jwt.Token) string {
	if dest, ok := tok.Get("dest"); ok {
		if s, ok := dest.(string); ok {
			if host := hostOf(s); host != "" {
				return host
			}
		}
	}
	return hostOf(tok.Issuer())
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}
