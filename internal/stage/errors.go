package stage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Stage errors carry a retryability classification:
//
//   - transient: network faults, timeouts, 5xx, throttling. The worker
//     schedules a bounded retry with backoff.
//   - permanent: malformed source, content policy rejection, 4xx. The
//     video fails immediately with the reason recorded.
//
// Unclassified errors default to transient; the retry budget bounds the
// damage of a misclassification, while a wrongly-permanent error would
// silently strand a recoverable video.

type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was classified non-retryable.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// IsTransient reports whether err should be retried. A stage deadline
// expiring counts as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsPermanent(err) {
		return false
	}
	return true
}

// classifyStatus wraps an unexpected HTTP status from a stage service:
// 4xx means the request itself is bad and will not improve on retry,
// anything else is assumed to be a service hiccup.
func classifyStatus(service string, status int) error {
	err := fmt.Errorf("%s returned status %d", service, status)
	if status >= http.StatusBadRequest && status < http.StatusInternalServerError &&
		status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
		return Permanent(err)
	}
	return Transient(err)
}

// classifyCallErr wraps a transport-level failure. Context expiry is the
// stage deadline firing; everything at this level is retryable.
func classifyCallErr(service string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(fmt.Errorf("%s call timed out: %w", service, err))
	}
	return Transient(fmt.Errorf("%s call failed: %w", service, err))
}
