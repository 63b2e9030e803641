package domain

import "errors"

// Sentinel errors used throughout the application.
// HTTP handlers translate these to status codes via a single mapError function.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateRef      = errors.New("video with this ref already exists")
	ErrInvalidSource     = errors.New("source_id must not be empty")
	ErrInvalidRef        = errors.New("ref must not be empty")
	ErrInvalidTransition = errors.New("video is not in an eligible status for this transition")
	ErrNotRequeueable    = errors.New("only failed videos can be requeued")
	ErrQueueFull         = errors.New("queue is at capacity, try again later")
)
