package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
)

// SweepWorker closes the gap between the committed "completed" status and
// the non-atomic distribution enqueue: it polls for summaries that are
// still distributed=false and re-enqueues their distribute jobs. A crash
// or dropped enqueue between commit and queue therefore delays a fan-out
// rather than losing it. This is also why eligibility is tracked via the
// distributed flag and never inferred from the video status alone.
type SweepWorker struct {
	repo     repository.VideoRepository
	q        *queue.Queue
	interval time.Duration
	// minAge keeps freshly completed summaries, whose normal distribute
	// job is likely still in flight or backing off, out of the sweep.
	minAge time.Duration
	logger *zap.Logger
}

func NewSweepWorker(
	repo repository.VideoRepository,
	q *queue.Queue,
	interval, minAge time.Duration,
	logger *zap.Logger,
) *SweepWorker {
	return &SweepWorker{repo: repo, q: q, interval: interval, minAge: minAge, logger: logger}
}

// Run ticks every interval and re-enqueues any undistributed summaries.
// Stops cleanly when ctx is cancelled.
func (sw *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	sw.logger.Info("sweep worker started",
		zap.Duration("interval", sw.interval), zap.Duration("min_age", sw.minAge))

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			sw.poll(ctx)
		}
	}
}

func (sw *SweepWorker) poll(ctx context.Context) {
	ids, err := sw.repo.ListUndistributed(ctx, sw.minAge)
	if err != nil {
		sw.logger.Error("sweep poll error", zap.Error(err))
		return
	}

	for _, id := range ids {
		if err := sw.q.Enqueue(queue.Job{Type: queue.JobDistribute, PayloadID: id}); err != nil {
			sw.logger.Warn("could not enqueue swept summary",
				zap.String("summary_id", id), zap.Error(err))
		}
	}

	if len(ids) > 0 {
		sw.logger.Info("re-enqueued undistributed summaries", zap.Int("count", len(ids)))
	}
}
