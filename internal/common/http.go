package common

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller address from RemoteAddr. Forwarding headers are
// not read here; the router's RealIP middleware has already folded them into
// RemoteAddr, and reading them again would let callers pick their own
// rate-limit key.
func ClientIP(r *http.Request) string {
	if r == nil {
		return "unknown"
	}
	raw := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(raw); err == nil {
		raw = host
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return "unknown"
	}
	return addr.Unmap().String()
}
