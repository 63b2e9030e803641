package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/cache"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
)

// TTLConfig differentiates cache lifetimes by volatility: summary detail
// is immutable once written (long), lists and aggregates churn with
// every finished video (short).
type TTLConfig struct {
	Summary time.Duration
	Recent  time.Duration
	Stats   time.Duration
}

// Stats is the aggregate processing snapshot served to operators.
type Stats struct {
	ByStatus map[domain.Status]int `json:"by_status"`
	Total    int                   `json:"total"`
}

// SummaryService is the query-and-submission surface over the pipeline.
// Reads of derived data (summary detail, recent lists, stats) go through
// the cache; the repository stays authoritative and serves every miss.
type SummaryService struct {
	repo   repository.VideoRepository
	q      *queue.Queue
	cache  *cache.Cache
	ttl    TTLConfig
	logger *zap.Logger
}

func NewSummaryService(
	repo repository.VideoRepository,
	q *queue.Queue,
	c *cache.Cache,
	ttl TTLConfig,
	logger *zap.Logger,
) *SummaryService {
	return &SummaryService{repo: repo, q: q, cache: c, ttl: ttl, logger: logger}
}

// SubmitVideo registers a video and enqueues its first advance job.
// Re-submitting the same (source, ref) pair is not an error: the existing
// video is returned as-is with duplicate=true.
func (s *SummaryService) SubmitVideo(ctx context.Context, req domain.SubmitVideoRequest) (*domain.Video, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetVideoByRef(ctx, req.SourceID, req.Ref)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("duplicate lookup: %w", err)
	}
	if existing != nil {
		return existing, true, nil
	}

	now := time.Now().UTC()
	v := &domain.Video{
		ID:        uuid.New().String(),
		SourceID:  req.SourceID,
		Ref:       req.Ref,
		Title:     req.Title,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateVideo(ctx, v); err != nil {
		if errors.Is(err, domain.ErrDuplicateRef) {
			// Lost a create race; serve the winner's row.
			winner, getErr := s.repo.GetVideoByRef(ctx, req.SourceID, req.Ref)
			if getErr != nil {
				return nil, false, getErr
			}
			return winner, true, nil
		}
		return nil, false, fmt.Errorf("persist video: %w", err)
	}

	s.enqueueAdvance(v.ID)
	return v, false, nil
}

// Requeue resets a failed video to pending and enqueues it again.
// Operator action; only the failed status is eligible.
func (s *SummaryService) Requeue(ctx context.Context, videoID string) error {
	if err := s.repo.RequeueFailed(ctx, videoID); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, cache.VideoKey(videoID))
	s.enqueueAdvance(videoID)
	return nil
}

func (s *SummaryService) GetVideo(ctx context.Context, videoID string) (*domain.Video, error) {
	return s.repo.GetVideo(ctx, videoID)
}

// SummaryByVideo returns the artifact for a completed video, cached with
// the long detail TTL since summaries are immutable apart from delivery
// bookkeeping (which is not cached).
func (s *SummaryService) SummaryByVideo(ctx context.Context, videoID string) (*domain.Summary, error) {
	return cache.GetOrPopulate(ctx, s.cache, cache.SummaryKey(videoID), s.ttl.Summary,
		func(ctx context.Context) (*domain.Summary, error) {
			return s.repo.GetSummaryByVideo(ctx, videoID)
		})
}

// Recent returns the latest summaries for a source, cached briefly.
func (s *SummaryService) Recent(ctx context.Context, sourceID string, limit int) ([]*domain.Summary, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	key := fmt.Sprintf("%s:%d", cache.RecentKey(sourceID), limit)
	return cache.GetOrPopulate(ctx, s.cache, key, s.ttl.Recent,
		func(ctx context.Context) ([]*domain.Summary, error) {
			return s.repo.ListRecentSummaries(ctx, sourceID, limit)
		})
}

// ProcessingStats returns per-status video counts, cached briefly.
func (s *SummaryService) ProcessingStats(ctx context.Context) (*Stats, error) {
	return cache.GetOrPopulate(ctx, s.cache, cache.StatsKey(), s.ttl.Stats,
		func(ctx context.Context) (*Stats, error) {
			counts, err := s.repo.CountByStatus(ctx)
			if err != nil {
				return nil, err
			}
			total := 0
			for _, n := range counts {
				total += n
			}
			return &Stats{ByStatus: counts, Total: total}, nil
		})
}

// enqueueAdvance is best-effort: a full queue leaves the video pending,
// which only an operator requeue or a fresh submission would surface.
// The queue capacity is sized so this stays a log line, not a code path.
func (s *SummaryService) enqueueAdvance(videoID string) {
	if err := s.q.Enqueue(queue.Job{Type: queue.JobAdvance, PayloadID: videoID}); err != nil {
		s.logger.Warn("queue full: video will remain pending",
			zap.String("video_id", videoID), zap.Error(err))
	}
}
