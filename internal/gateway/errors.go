package gateway

import (
	"errors"
	"fmt"
	"net/http"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
)

// HTTPError is a non-2xx gateway response.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gateway returned HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error { return domainErrors.ErrTransport }

// Retryable reports whether repeating an idempotent request may succeed.
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Rejected reports whether the gateway refused the request content.
func (e *HTTPError) Rejected() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// GraphQLError is the first entry of a GraphQL errors[] array.
type GraphQLError struct {
	Message    string
	ErrorClass string
}

func (e *GraphQLError) Error() string {
	if e.ErrorClass != "" {
		return fmt.Sprintf("graphql %s error: %s", e.ErrorClass, e.Message)
	}
	return "graphql error: " + e.Message
}

func (e *GraphQLError) Unwrap() error { return domainErrors.ErrTransport }

func (e *GraphQLError) Retryable() bool { return false }

func (e *GraphQLError) Rejected() bool {
	return e.ErrorClass == "VALIDATION" || e.ErrorClass == "NOT_FOUND"
}

// IsRejection reports whether err is the gateway refusing a payload, as opposed
// to a network or server fault.
func IsRejection(err error) bool {
	var r interface{ Rejected() bool }
	return errors.As(err, &r) && r.Rejected()
}
