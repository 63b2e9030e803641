package worker

import "time"

// RetryPolicy makes retry behavior an explicit, inspectable value instead
// of logic buried in the queue binding: how many attempts a payload gets,
// the backoff curve between them, and which errors are worth retrying at
// all.
type RetryPolicy struct {
	// MaxAttempts bounds retries per payload; the attempt that exhausts
	// it settles the payload (video → failed, summary → left to the sweep).
	MaxAttempts int
	// Backoff is indexed by attempt number; attempts beyond the table
	// reuse the last entry (clamped, not extrapolated).
	Backoff []time.Duration
	// Retryable decides whether an error is transient.
	Retryable func(error) bool
}

// Delay returns the backoff before the given (zero-based) retry attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if attempt >= len(p.Backoff) {
		attempt = len(p.Backoff) - 1
	}
	if attempt < 0 {
		attempt = 0
	}
	return p.Backoff[attempt]
}
