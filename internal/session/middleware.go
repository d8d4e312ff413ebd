package session

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/felipedev418/tax-rate-adjustment/internal/common"
)

// Middleware attaches the verified shop to the request context.
type Middleware struct {
	Verifier Verifier
}

// Require rejects requests without a valid session token. It passes every
// request through when the verifier has no secret configured.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Verifier.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		raw := bearerToken(r)
		if raw == "" {
			common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
			return
		}
		claims, err := m.Verifier.Verify(raw)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Msg("session token rejected")
			common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
			return
		}
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("shop", claims.Shop)
		})
		next.ServeHTTP(w, r.WithContext(common.WithShop(r.Context(), claims.Shop)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
