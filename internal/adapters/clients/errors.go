// Package clients provides the instrumented HTTP client used to reach
// downstream services.
package clients

import (
	"errors"
	"fmt"
	"net/http"
)

// Infrastructure failures. Callers translate these to domain errors.
var (
	// ErrCircuitOpen means the breaker is blocking requests to an unhealthy
	// downstream.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last attempt's error once retries are spent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// StatusError is a retryable HTTP status that persisted through every attempt.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}
