package octopus

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response from the upstream API.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("octopus: %s returned %d: %s", e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed on retry.
// Rate limiting and server errors are retryable; other 4xx are not.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsAuthError reports whether err is an authorization failure. Fatal for the
// affected meter this run; the run continues for other meters.
func IsAuthError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRetryable reports whether err is worth retrying: network failures,
// timeouts, 5xx and 429 responses. Decode failures are permanent.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	// Transport-level failures (connection resets, timeouts) carry no status.
	return err != nil
}

// permanentError marks a failure that a retry cannot fix, such as a body that
// does not decode.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
