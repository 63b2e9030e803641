package pipeline

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
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/stage"
)

// Hooks carries the metric callbacks injected by main.
// Nil funcs are replaced with no-ops.
type Hooks struct {
	OnStage    func(s domain.Stage, latency time.Duration)
	OnFinished func(status domain.Status)
}

// Orchestrator drives a single video through its state machine: one
// Advance call walks the transition table stage by stage, persisting the
// status at every stage boundary so a crash leaves a consistent,
// resumable row. Stages themselves are not idempotent; resumption always
// restarts the current stage from its in-flight status.
type Orchestrator struct {
	repo        repository.VideoRepository
	q           *queue.Queue
	cache       *cache.Cache
	acquirer    stage.Acquirer
	transcriber stage.Transcriber
	summarizer  stage.Summarizer
	maxDuration time.Duration
	logger      *zap.Logger
	hooks       Hooks
}

func New(
	repo repository.VideoRepository,
	q *queue.Queue,
	c *cache.Cache,
	acquirer stage.Acquirer,
	transcriber stage.Transcriber,
	summarizer stage.Summarizer,
	maxDuration time.Duration,
	logger *zap.Logger,
	hooks Hooks,
) *Orchestrator {
	if hooks.OnStage == nil {
		hooks.OnStage = func(domain.Stage, time.Duration) {}
	}
	if hooks.OnFinished == nil {
		hooks.OnFinished = func(domain.Status) {}
	}
	return &Orchestrator{
		repo:        repo,
		q:           q,
		cache:       c,
		acquirer:    acquirer,
		transcriber: transcriber,
		summarizer:  summarizer,
		maxDuration: maxDuration,
		logger:      logger,
		hooks:       hooks,
	}
}

// Advance processes the video until it reaches a terminal status or a
// stage fails. The returned error is nil for every no-op outcome
// (unknown video, terminal status, transition lost to another worker):
// those are duplicate or stale queue deliveries, not failures. A non-nil
// error is always a classified stage error for the worker's retry logic.
func (o *Orchestrator) Advance(ctx context.Context, videoID string) error {
	v, err := o.repo.GetVideo(ctx, videoID)
	if errors.Is(err, domain.ErrNotFound) {
		o.logger.Warn("advance for unknown video", zap.String("video_id", videoID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load video %s: %w", videoID, err)
	}

	log := o.logger.With(zap.String("video_id", v.ID), zap.String("source_id", v.SourceID))

	for {
		// Policy gate, checked whenever the video sits at acquired so a
		// job resumed past MarkVideoAcquired still applies it: over-long
		// videos are skipped before any expensive transcription work.
		// Not an error; the reason is queryable.
		if v.Status == domain.StatusAcquired && o.overCeiling(v.DurationSeconds) {
			if err := o.repo.MarkVideoSkipped(ctx, v.ID, domain.SkipReasonDuration); err != nil {
				if errors.Is(err, domain.ErrInvalidTransition) {
					log.Debug("lost status transition, skipping job")
					return nil
				}
				return fmt.Errorf("skip video %s: %w", v.ID, err)
			}
			o.cache.Invalidate(ctx, cache.VideoKey(v.ID))
			o.hooks.OnFinished(domain.StatusSkipped)
			log.Info("video skipped", zap.String("reason", domain.SkipReasonDuration))
			return nil
		}

		tr, ok := domain.NextTransition(v.Status)
		if !ok {
			log.Debug("no pipeline step for status, skipping job", zap.String("status", string(v.Status)))
			return nil
		}

		if err := o.runStage(ctx, v, tr, log); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				// Another worker won the transition; this job is stale.
				log.Debug("lost status transition, skipping job")
				return nil
			}
			return err
		}

		v, err = o.repo.GetVideo(ctx, videoID)
		if err != nil {
			return fmt.Errorf("reload video %s: %w", videoID, err)
		}

		if v.Status == domain.StatusCompleted {
			o.hooks.OnFinished(domain.StatusCompleted)
			log.Info("video completed")
			o.enqueueDistribution(ctx, v, log)
			return nil
		}
	}
}

func (o *Orchestrator) runStage(ctx context.Context, v *domain.Video, tr domain.Transition, log *zap.Logger) error {
	// Persist the in-flight status before the external call; a crash
	// mid-stage then resumes by restarting this stage.
	if v.Status != tr.Working {
		if err := o.repo.UpdateVideoStatus(ctx, v.ID, v.Status, tr.Working); err != nil {
			return err
		}
		v.Status = tr.Working
		o.cache.Invalidate(ctx, cache.VideoKey(v.ID))
	}

	start := time.Now()
	var err error
	switch tr.Stage {
	case domain.StageAcquire:
		err = o.acquire(ctx, v)
	case domain.StageTranscribe:
		err = o.transcribe(ctx, v)
	case domain.StageSummarize:
		err = o.summarize(ctx, v)
	default:
		return fmt.Errorf("unknown stage %q", tr.Stage)
	}
	elapsed := time.Since(start)
	o.hooks.OnStage(tr.Stage, elapsed)

	if err != nil {
		log.Warn("stage failed",
			zap.String("stage", string(tr.Stage)),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w", tr.Stage, v.ID, err)
	}

	o.cache.Invalidate(ctx, cache.VideoKey(v.ID))
	log.Debug("stage done", zap.String("stage", string(tr.Stage)), zap.Duration("latency", elapsed))
	return nil
}

func (o *Orchestrator) acquire(ctx context.Context, v *domain.Video) error {
	res, err := o.acquirer.Acquire(ctx, v)
	if err != nil {
		return err
	}
	// The policy gate in Advance picks the duration up on the reload.
	return o.repo.MarkVideoAcquired(ctx, v.ID, res.DurationSeconds)
}

func (o *Orchestrator) overCeiling(durationSeconds int) bool {
	return time.Duration(durationSeconds)*time.Second > o.maxDuration
}

func (o *Orchestrator) transcribe(ctx context.Context, v *domain.Video) error {
	res, err := o.transcriber.Transcribe(ctx, v)
	if err != nil {
		return err
	}
	return o.repo.CreateTranscript(ctx, &domain.Transcript{
		ID:         uuid.New().String(),
		VideoID:    v.ID,
		Text:       res.Text,
		Language:   res.Language,
		Confidence: res.Confidence,
		Segments:   res.Segments,
		CreatedAt:  time.Now().UTC(),
	})
}

func (o *Orchestrator) summarize(ctx context.Context, v *domain.Video) error {
	t, err := o.repo.GetTranscript(ctx, v.ID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}

	res, err := o.summarizer.Summarize(ctx, v, t)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := o.repo.CreateSummary(ctx, &domain.Summary{
		ID:               uuid.New().String(),
		VideoID:          v.ID,
		Text:             res.Text,
		Category:         res.Category,
		Keywords:         res.Keywords,
		Model:            res.Model,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		CreatedAt:        now,
		UpdatedAt:        now,
	}); err != nil {
		return err
	}

	// A new artifact changes what the list and aggregate queries return.
	o.cache.InvalidatePrefix(ctx, cache.RecentPrefix())
	o.cache.Invalidate(ctx, cache.StatsKey())
	return nil
}

// enqueueDistribution places exactly one distribute job for the freshly
// completed video. The status commit and the enqueue are not atomic: if
// the enqueue is lost (queue full, crash in between), the summary stays
// distributed=false and the sweep worker re-enqueues it later.
func (o *Orchestrator) enqueueDistribution(ctx context.Context, v *domain.Video, log *zap.Logger) {
	s, err := o.repo.GetSummaryByVideo(ctx, v.ID)
	if err != nil {
		log.Error("completed video has no loadable summary", zap.Error(err))
		return
	}
	if err := o.q.Enqueue(queue.Job{Type: queue.JobDistribute, PayloadID: s.ID}); err != nil {
		log.Warn("could not enqueue distribution, sweep will recover it",
			zap.String("summary_id", s.ID), zap.Error(err))
	}
}
