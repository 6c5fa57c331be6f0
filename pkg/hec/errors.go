package hec

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// HeaderRetryAfter may accompany 429 and 503 responses.
const HeaderRetryAfter = "Retry-After"

// RejectedError is returned when HEC answers with a non-2xx status
type RejectedError struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       string
	RetryAfter time.Duration
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("HEC rejected request: %s: %s", e.Status, e.Body)
}

// Retryable reports whether the status is a throttling or availability
// signal rather than a problem with the request itself.
func (e *RejectedError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// TransientError wraps a transport failure: timeout, refused connection,
// DNS failure or a broken response stream.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("HEC transport failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsRetryable reports whether resending the same payload may succeed.
func IsRetryable(err error) bool {
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Retryable()
	}
	return false
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if val := resp.Header.Get(HeaderRetryAfter); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
