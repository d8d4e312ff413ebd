package shopify

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotConfigured is returned when the shop domain, token or API version is missing.
	ErrNotConfigured = errors.New("shopify: client not configured")
	// ErrMissingData is returned when a response carries neither data nor errors.
	ErrMissingData = errors.New("shopify: graphql response missing data")
	// ErrThrottled is returned when throttle retries are exhausted.
	ErrThrottled = errors.New("shopify: graphql request throttled")
)

// HTTPStatusError reports a non-2xx response from the Admin API.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("shopify request failed: %s", e.Status)
	}
	return fmt.Sprintf("shopify request failed: %s: %s", e.Status, e.Body)
}

// GraphQLErrors wraps top level GraphQL errors.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	return "shopify graphql errors: " + formatGraphQLErrors(e)
}

// UserErrors wraps mutation userErrors under the action that produced them.
type UserErrors struct {
	Action string
	Errors []UserError
}

func (e *UserErrors) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		msg := strings.TrimSpace(ue.Message)
		if msg == "" {
			continue
		}
		if len(ue.Field) > 0 {
			msg = fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), msg)
		}
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("shopify %s failed with user errors", e.Action)
	}
	return fmt.Sprintf("shopify %s failed: %s", e.Action, strings.Join(parts, "; "))
}

// CheckUserErrors returns nil when errs is empty.
func CheckUserErrors(action string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return &UserErrors{Action: action, Errors: errs}
}

func formatGraphQLErrors(errs []GraphQLError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := strings.TrimSpace(e.Message)
		if msg == "" {
			continue
		}
		if len(e.Path) > 0 {
			msg = fmt.Sprintf("%s (path: %v)", msg, e.Path)
		}
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		return "unknown graphql error"
	}
	return strings.Join(parts, "; ")
}

func isThrottled(errs []GraphQLError) bool {
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e.Message), "throttled") {
			return true
		}
		if code, ok := e.Extensions["code"].(string); ok && strings.EqualFold(code, "THROTTLED") {
			return true
		}
	}
	return false
}
