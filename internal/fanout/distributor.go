package fanout

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/gateway"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
)

// Pacer is the minimum-delay gate applied before every gateway send.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Hooks carries the metric callbacks injected by main.
type Hooks struct {
	OnSent    func()
	OnBlocked func()
}

// Distributor fans a completed summary out to the current subscribers of
// its source. Distribute is idempotent: queue redeliveries and partial
// retries converge because already-reached recipients are recorded in
// the summary's delivery map and skipped.
type Distributor struct {
	repo   repository.VideoRepository
	gw     gateway.Gateway
	pacer  Pacer
	logger *zap.Logger
	hooks  Hooks
}

func New(repo repository.VideoRepository, gw gateway.Gateway, pacer Pacer, logger *zap.Logger, hooks Hooks) *Distributor {
	if hooks.OnSent == nil {
		hooks.OnSent = func() {}
	}
	if hooks.OnBlocked == nil {
		hooks.OnBlocked = func() {}
	}
	return &Distributor{repo: repo, gw: gw, pacer: pacer, logger: logger, hooks: hooks}
}

// Distribute delivers the summary to every eligible subscriber.
//
// Outcome per recipient:
//   - success: recorded in the delivery map (in memory; one write at the end)
//   - permanent failure: subscriber blocked immediately, fan-out continues
//   - transient failure: accumulated progress is persisted and a
//     retryable error returned so the job is re-run; recipients already
//     in the map are not re-sent on the retry
//
// Only after the full subscriber walk does a single transactional write
// persist the map and flip distributed=true — exactly once per summary.
func (d *Distributor) Distribute(ctx context.Context, summaryID string) error {
	s, err := d.repo.GetSummary(ctx, summaryID)
	if errors.Is(err, domain.ErrNotFound) {
		d.logger.Warn("distribute for unknown summary", zap.String("summary_id", summaryID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load summary %s: %w", summaryID, err)
	}

	// Idempotency guard against queue redelivery.
	if s.Distributed {
		d.logger.Debug("summary already distributed, skipping job", zap.String("summary_id", summaryID))
		return nil
	}

	v, err := d.repo.GetVideo(ctx, s.VideoID)
	if err != nil {
		return fmt.Errorf("load video for summary %s: %w", summaryID, err)
	}

	// Resolve the subscriber set at call time, not submission time:
	// subscriptions may have changed while the video was processing.
	// The repository returns the set sorted by subscriber ID so repeated
	// calls walk recipients in the same order.
	subs, err := d.repo.ListActiveSubscribers(ctx, v.SourceID)
	if err != nil {
		return fmt.Errorf("resolve subscribers for source %s: %w", v.SourceID, err)
	}

	log := d.logger.With(zap.String("summary_id", s.ID), zap.String("source_id", v.SourceID))
	text := formatMessage(v, s)

	deliveries := append([]domain.DeliveryRecord(nil), s.Deliveries...)
	persisted := len(deliveries)
	for _, sub := range subs {
		if s.DeliveredTo(sub.ID) {
			continue
		}

		if err := d.pacer.Wait(ctx); err != nil {
			// Shutting down mid-fan-out: keep what we have, retry later.
			return d.saveProgress(ctx, s.ID, deliveries, persisted, err)
		}

		msgID, err := d.gw.Send(ctx, sub.ID, text)
		if err != nil {
			if gateway.IsPermanent(err) {
				// Recipient unreachable for good: block them so future
				// fan-outs skip them, and carry on with the rest.
				log.Info("blocking unreachable subscriber",
					zap.Int64("subscriber_id", sub.ID), zap.Error(err))
				if blockErr := d.repo.MarkSubscriberBlocked(ctx, sub.ID); blockErr != nil {
					return d.saveProgress(ctx, s.ID, deliveries, persisted,
						fmt.Errorf("block subscriber %d: %w", sub.ID, blockErr))
				}
				d.hooks.OnBlocked()
				continue
			}
			log.Warn("transient send failure, job will be retried",
				zap.Int64("subscriber_id", sub.ID), zap.Error(err))
			return d.saveProgress(ctx, s.ID, deliveries, persisted, err)
		}

		deliveries = append(deliveries, domain.DeliveryRecord{SubscriberID: sub.ID, MessageID: msgID})
		s.Deliveries = deliveries
		d.hooks.OnSent()
	}

	if err := d.repo.UpdateSummaryDelivery(ctx, s.ID, deliveries, true); err != nil {
		return fmt.Errorf("finalize distribution for %s: %w", s.ID, err)
	}
	log.Info("summary distributed", zap.Int("recipients", len(deliveries)))
	return nil
}

// saveProgress persists the deliveries made since the last write without
// setting distributed, so a retry skips recipients already reached even
// when it runs on another process. The causing error is passed through
// for the retry logic.
func (d *Distributor) saveProgress(ctx context.Context, summaryID string, deliveries []domain.DeliveryRecord, persisted int, cause error) error {
	if len(deliveries) > persisted {
		if err := d.repo.UpdateSummaryDelivery(ctx, summaryID, deliveries, false); err != nil {
			d.logger.Error("could not persist partial deliveries",
				zap.String("summary_id", summaryID), zap.Error(err))
		}
	}
	return cause
}
