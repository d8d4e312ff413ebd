package security

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/cors"
)

// AdminOrigin is the Shopify admin host that embeds the app.
const AdminOrigin = "https://admin.shopify.com"

var shopDomain = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// Headers configures common security headers for HTTP responses.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

// Middleware attaches standard security headers to each response. The app is
// framed by the Shopify admin, so framing is restricted with CSP frame-ancestors
// to the admin and the requesting shop instead of X-Frame-Options.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.Enable {
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Permissions-Policy", "geolocation=(), microphone=()")
		headers.Set("Content-Security-Policy", FrameAncestors(r.URL.Query().Get("shop")))
		if h.EnableHSTS && r.TLS != nil {
			maxAge := h.HSTSMaxAge
			if maxAge <= 0 {
				maxAge = 31536000
			}
			value := "max-age=" + strconv.Itoa(maxAge)
			if h.HSTSIncludeSubdomains {
				value += "; includeSubDomains"
			}
			headers.Set("Strict-Transport-Security", value)
		}
		next.ServeHTTP(w, r)
	})
}

// FrameAncestors builds the CSP directive for shop. Unknown shop values are ignored.
func FrameAncestors(shop string) string {
	shop = strings.ToLower(strings.TrimSpace(shop))
	if shopDomain.MatchString(shop) {
		return "frame-ancestors https://" + shop + " " + AdminOrigin + ";"
	}
	return "frame-ancestors " + AdminOrigin + ";"
}

// CORS returns go-chi/cors middleware for the configured origins. The checkout
// extension calls the API cross-origin with a bearer session token.
func CORS(origins []string) func(http.Handler) http.Handler {
	credentials := true
	for _, o := range origins {
		if o == "*" {
			credentials = false
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: credentials,
		MaxAge:           300,
	})
}
