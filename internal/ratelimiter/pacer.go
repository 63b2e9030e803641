package ratelimiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a fixed minimum delay between consecutive gateway sends.
// Burst is 1: there is no catching up after a quiet period, each send
// simply waits out the interval since the previous one. This keeps the
// fan-out safely under the messaging channel's throughput ceiling.
type Pacer struct {
	lim *rate.Limiter
}

// New creates a Pacer with the given minimum inter-send interval.
func New(minInterval time.Duration) *Pacer {
	return &Pacer{lim: rate.NewLimiter(rate.Every(minInterval), 1)}
}

// Wait blocks until the next send is allowed.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}
