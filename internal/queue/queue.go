package queue

import (
	"context"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

// JobType selects the handler a worker dispatches a job to.
type JobType string

const (
	// JobAdvance drives one video through its pipeline state machine.
	JobAdvance JobType = "advance"
	// JobDistribute fans one summary out to its subscribers.
	JobDistribute JobType = "distribute"
)

// Job is the minimal data placed on the queue. Workers fetch the full
// entity from the repository using PayloadID, keeping the queue
// lightweight and the repository authoritative. Attempt counts in-process
// redeliveries of distribute jobs; advance retries are persisted on the
// video row instead so they survive restarts.
type Job struct {
	Type      JobType
	PayloadID string
	Attempt   int
}

// Queue is an in-process buffered job queue. Delivery is at-least-once
// from the workers' perspective: the retry and sweep pollers re-enqueue
// work whose previous delivery did not reach a terminal outcome, so every
// handler must tolerate duplicates.
type Queue struct {
	jobs chan Job
}

func New(capacity int) *Queue {
	return &Queue{jobs: make(chan Job, capacity)}
}

// Enqueue places a job on the queue. It is non-blocking: when the buffer
// is full, domain.ErrQueueFull is returned immediately rather than
// stalling the caller; the pollers pick the work up again later.
func (q *Queue) Enqueue(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until a job is available or ctx is cancelled.
// Returns (Job{}, false) on cancellation (graceful shutdown signal).
func (q *Queue) Dequeue(ctx context.Context) (Job, bool) {
	select {
	case job := <-q.jobs:
		return job, true
	case <-ctx.Done():
		return Job{}, false
	}
}

// Depth returns the number of jobs currently waiting.
// Used by the metrics gauge and the queue snapshot endpoint.
func (q *Queue) Depth() int {
	return len(q.jobs)
}
