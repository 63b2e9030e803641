package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
)

// RetryWorker polls the database for advance work the queue no longer
// holds and re-enqueues it. Two queries per tick:
//
//   - due retries: videos whose next_retry_at has passed.
//   - stranded videos: non-terminal rows with no retry scheduled whose
//     last update is older than staleAge. These are left behind by a
//     crash mid-stage (in-flight status, nothing in the queue after
//     restart) or by a submit whose enqueue was dropped on a full queue.
//
// The DB-backed approach means recovery survives server restarts:
// everything the poller needs is persisted on the video row, not held in
// memory. A video may be enqueued again before its previous job ran; the
// lease and the orchestrator's no-op semantics make such duplicates
// harmless.
type RetryWorker struct {
	repo     repository.VideoRepository
	q        *queue.Queue
	interval time.Duration
	// staleAge keeps rows whose job is merely slow, still queued, or
	// backing off out of the stranded query.
	staleAge time.Duration
	logger   *zap.Logger
}

func NewRetryWorker(
	repo repository.VideoRepository,
	q *queue.Queue,
	interval, staleAge time.Duration,
	logger *zap.Logger,
) *RetryWorker {
	return &RetryWorker{repo: repo, q: q, interval: interval, staleAge: staleAge, logger: logger}
}

// Run ticks every interval and re-enqueues any due retries.
// Stops cleanly when ctx is cancelled.
func (rw *RetryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.Info("retry worker started", zap.Duration("interval", rw.interval))

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("retry worker stopping")
			return
		case <-ticker.C:
			rw.poll(ctx)
		}
	}
}

func (rw *RetryWorker) poll(ctx context.Context) {
	due, err := rw.repo.FindDueRetries(ctx)
	if err != nil {
		rw.logger.Error("retry poll error", zap.Error(err))
	} else {
		rw.enqueue(due, "re-enqueued due retries")
	}

	stranded, err := rw.repo.FindStranded(ctx, rw.staleAge)
	if err != nil {
		rw.logger.Error("stranded poll error", zap.Error(err))
		return
	}
	rw.enqueue(stranded, "re-enqueued stranded videos")
}

func (rw *RetryWorker) enqueue(videos []*domain.Video, msg string) {
	for _, v := range videos {
		if err := rw.q.Enqueue(queue.Job{
			Type:      queue.JobAdvance,
			PayloadID: v.ID,
			Attempt:   v.RetryCount,
		}); err != nil {
			rw.logger.Warn("could not re-enqueue advance",
				zap.String("video_id", v.ID), zap.Error(err))
		}
	}

	if len(videos) > 0 {
		rw.logger.Info(msg, zap.Int("count", len(videos)))
	}
}
