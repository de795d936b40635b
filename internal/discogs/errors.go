package discogs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotConfigured signals a missing API token or username. It is raised before
	// any request is attempted and is never retried.
	ErrNotConfigured = errors.New("discogs client not configured")
	// ErrUnavailable wraps transport failures: DNS, connection, timeout, or an open
	// circuit breaker.
	ErrUnavailable = errors.New("discogs unavailable")
	// ErrAlreadyExists is returned when Discogs refuses to add a release that is
	// already in the target folder.
	ErrAlreadyExists = errors.New("release already exists in folder")
)

// APIError is a non-success HTTP response from Discogs.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("discogs api error: %d", e.StatusCode)
	}
	return fmt.Sprintf("discogs api error: %d - %s", e.StatusCode, e.Body)
}

// Retriable reports whether a later attempt may succeed. The client itself never
// retries; the next scheduled run does.
func (e *APIError) Retriable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
