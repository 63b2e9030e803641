package repository

import (
	"context"
	"time"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

// VideoRepository defines all persistence operations the pipeline and the
// distribution worker need. The pgx implementation is in pg_video_repo.go.
// Tests use a hand-written mock (mock_video_repo.go).
//
// Every call is atomic: multi-row updates within one call run in a single
// transaction. Status updates are compare-and-swap: they only apply when
// the row still holds the expected current status, and report
// domain.ErrInvalidTransition otherwise. Storage alone cannot stop two
// workers from both believing they own a video; the CAS is the backstop
// behind the queue's exclusivity lease.
type VideoRepository interface {
	CreateVideo(ctx context.Context, v *domain.Video) error
	GetVideo(ctx context.Context, id string) (*domain.Video, error)
	GetVideoByRef(ctx context.Context, sourceID, ref string) (*domain.Video, error)

	// UpdateVideoStatus moves a video from one status to another and clears
	// any pending retry schedule.
	UpdateVideoStatus(ctx context.Context, id string, from, to domain.Status) error
	// MarkVideoAcquired records the probed duration together with the
	// acquiring → acquired transition.
	MarkVideoAcquired(ctx context.Context, id string, durationSeconds int) error
	MarkVideoFailed(ctx context.Context, id, reason string) error
	// MarkVideoSkipped applies only from acquired (the policy gate runs
	// right after acquisition).
	MarkVideoSkipped(ctx context.Context, id, reason string) error
	// RequeueFailed resets a failed video to pending with a clean retry
	// budget. Operator action; any other status is ErrNotRequeueable.
	RequeueFailed(ctx context.Context, id string) error

	ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, errMsg string) error
	FindDueRetries(ctx context.Context) ([]*domain.Video, error)
	// FindStranded returns non-terminal videos with no retry scheduled
	// whose last update is older than minAge: rows left behind by a crash
	// mid-stage or by an advance enqueue that never made it onto the
	// queue. The retry poller re-enqueues them.
	FindStranded(ctx context.Context, minAge time.Duration) ([]*domain.Video, error)

	// CreateTranscript inserts the transcript and moves the video
	// transcribing → transcribed in one transaction.
	CreateTranscript(ctx context.Context, t *domain.Transcript) error
	GetTranscript(ctx context.Context, videoID string) (*domain.Transcript, error)

	// CreateSummary inserts the summary and moves the video
	// summarizing → completed in one transaction, so a completed video
	// always owns its artifact.
	CreateSummary(ctx context.Context, s *domain.Summary) error
	GetSummary(ctx context.Context, id string) (*domain.Summary, error)
	GetSummaryByVideo(ctx context.Context, videoID string) (*domain.Summary, error)
	UpdateSummaryDelivery(ctx context.Context, id string, deliveries []domain.DeliveryRecord, distributed bool) error
	// ListUndistributed returns completed summaries that never finished
	// distribution, for the recovery sweep. minAge keeps freshly created
	// summaries (whose distribute job is still in flight) out of the sweep.
	ListUndistributed(ctx context.Context, minAge time.Duration) ([]string, error)
	ListRecentSummaries(ctx context.Context, sourceID string, limit int) ([]*domain.Summary, error)

	GetSource(ctx context.Context, id string) (*domain.Source, error)
	ListActiveSubscribers(ctx context.Context, sourceID string) ([]*domain.Subscriber, error)
	MarkSubscriberBlocked(ctx context.Context, id int64) error

	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}
