package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/gateway"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
)

// AdvanceHandler drives one video through the pipeline state machine.
type AdvanceHandler interface {
	Advance(ctx context.Context, videoID string) error
}

// Hooks carries the metric callbacks injected by main. The orchestrator
// observes completed and skipped videos itself; failed is settled here,
// so the worker owns that callback.
type Hooks struct {
	OnFailed func()
}

// DistributeHandler fans one summary out to its subscribers.
type DistributeHandler interface {
	Distribute(ctx context.Context, summaryID string) error
}

// Worker is a single goroutine that continuously pulls jobs from the
// queue, takes the per-payload exclusivity lease, and dispatches to the
// pipeline or fan-out handler. Failed jobs go through the retry policy:
// advance retries are persisted on the video row (restart-safe), while
// distribute retries are re-enqueued in process with the sweep worker as
// the durable backstop.
type Worker struct {
	id         int
	q          *queue.Queue
	leases     *queue.LeaseSet
	repo       repository.VideoRepository
	advance    AdvanceHandler
	distribute DistributeHandler
	policy     RetryPolicy
	hooks      Hooks
	logger     *zap.Logger
}

func NewWorker(
	id int,
	q *queue.Queue,
	leases *queue.LeaseSet,
	repo repository.VideoRepository,
	advance AdvanceHandler,
	distribute DistributeHandler,
	policy RetryPolicy,
	hooks Hooks,
	logger *zap.Logger,
) *Worker {
	if hooks.OnFailed == nil {
		hooks.OnFailed = func() {}
	}
	return &Worker{
		id: id, q: q, leases: leases, repo: repo,
		advance: advance, distribute: distribute,
		policy: policy, hooks: hooks, logger: logger,
	}
}

// Run blocks until ctx is cancelled, processing one job per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		job, ok := w.q.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) {
	log := w.logger.With(
		zap.String("job_type", string(job.Type)),
		zap.String("payload_id", job.PayloadID),
	)

	// The lease guarantees two workers never process the same payload
	// concurrently. Losing it means another worker already holds the
	// payload; this delivery is a duplicate and the pollers will
	// re-surface the work if the holder does not finish.
	if !w.leases.TryAcquire(job.PayloadID) {
		log.Debug("payload leased elsewhere, dropping duplicate job")
		return
	}
	defer w.leases.Release(job.PayloadID)

	switch job.Type {
	case queue.JobAdvance:
		if err := w.advance.Advance(ctx, job.PayloadID); err != nil {
			w.handleAdvanceFailure(ctx, job, err, log)
		}
	case queue.JobDistribute:
		if err := w.distribute.Distribute(ctx, job.PayloadID); err != nil {
			w.handleDistributeFailure(ctx, job, err, log)
		}
	default:
		log.Error("unknown job type")
	}
}

// handleAdvanceFailure either schedules a DB-backed retry (surviving
// restarts) or marks the video permanently failed with the last error
// recorded, so the outcome is queryable without log archaeology.
func (w *Worker) handleAdvanceFailure(ctx context.Context, job queue.Job, jobErr error, log *zap.Logger) {
	if !w.policy.Retryable(jobErr) {
		log.Warn("permanent stage failure", zap.Error(jobErr))
		w.markFailed(ctx, job.PayloadID, jobErr, log)
		return
	}

	v, err := w.repo.GetVideo(ctx, job.PayloadID)
	if err != nil {
		log.Error("cannot load video for retry bookkeeping", zap.Error(err))
		return
	}

	if v.RetryCount >= w.policy.MaxAttempts {
		log.Warn("retry budget exhausted", zap.Int("attempts", v.RetryCount), zap.Error(jobErr))
		w.markFailed(ctx, job.PayloadID, jobErr, log)
		return
	}

	nextRetry := time.Now().UTC().Add(w.policy.Delay(v.RetryCount))
	log.Warn("transient stage failure, retry scheduled",
		zap.Int("attempt", v.RetryCount+1), zap.Time("next_retry_at", nextRetry), zap.Error(jobErr))
	if err := w.repo.ScheduleRetry(ctx, job.PayloadID, v.RetryCount+1, nextRetry, jobErr.Error()); err != nil {
		log.Error("failed to schedule retry", zap.Error(err))
	}
}

func (w *Worker) markFailed(ctx context.Context, videoID string, cause error, log *zap.Logger) {
	if err := w.repo.MarkVideoFailed(ctx, videoID, cause.Error()); err != nil {
		log.Error("failed to mark video as failed", zap.Error(err))
		return
	}
	w.hooks.OnFailed()
}

// handleDistributeFailure re-enqueues the job after backoff. Distribution
// needs no DB bookkeeping for this: partial progress already lives in the
// delivery map, and the sweep worker durably recovers any summary whose
// in-process retries were lost.
func (w *Worker) handleDistributeFailure(ctx context.Context, job queue.Job, jobErr error, log *zap.Logger) {
	if job.Attempt+1 >= w.policy.MaxAttempts {
		log.Error("distribution retries exhausted, leaving recovery to sweep", zap.Error(jobErr))
		return
	}

	delay := w.policy.Delay(job.Attempt)
	var transient *gateway.TransientError
	if errors.As(jobErr, &transient) && transient.RetryAfter > delay {
		delay = transient.RetryAfter
	}

	log.Warn("distribution failed, retry scheduled",
		zap.Int("attempt", job.Attempt+1), zap.Duration("delay", delay), zap.Error(jobErr))

	retry := queue.Job{Type: job.Type, PayloadID: job.PayloadID, Attempt: job.Attempt + 1}
	time.AfterFunc(delay, func() {
		if err := w.q.Enqueue(retry); err != nil {
			log.Warn("could not re-enqueue distribution, sweep will recover it", zap.Error(err))
		}
	})
}
