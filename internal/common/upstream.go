package common

import (
	"errors"
	"net/http"

	"github.com/felipedev418/tax-rate-adjustment/internal/resilience"
)

// Upstream classifies an error from a remote dependency. Timeouts and open
// circuits get their own status; other failures pass through and render as 500.
func Upstream(err error) error {
	if _, ok := AsAppError(err); ok || err == nil {
		return err
	}
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		return NewAppError(CodeCircuitOpen, "upstream temporarily unavailable", http.StatusServiceUnavailable, err)
	case resilience.IsTimeout(err):
		return NewAppError(CodeUpstreamTimeout, "upstream request timed out", http.StatusGatewayTimeout, err)
	}
	return err
}
