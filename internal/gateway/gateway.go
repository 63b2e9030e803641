// Package gateway abstracts the external messaging channel used for
// distribution. Send failures are split into two distinguished types:
// permanent (recipient unreachable: the subscriber gets blocked and the
// fan-out continues) and transient (throttled or network: the whole
// distribution job is retried).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Gateway sends one message to one recipient and returns the channel's
// message identifier for the delivery record.
type Gateway interface {
	Send(ctx context.Context, chatID int64, text string) (messageID string, err error)
}

// PermanentError means the recipient can never be reached on this
// channel (blocked the bot, deleted their account, chat gone).
type PermanentError struct {
	Reason string
	Err    error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent delivery failure (%s): %v", e.Reason, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// TransientError means the send may succeed later (flood limit, network).
// RetryAfter is the channel's own backoff hint when it gave one.
type TransientError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient delivery failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsPermanent reports whether err is a permanent delivery failure.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
