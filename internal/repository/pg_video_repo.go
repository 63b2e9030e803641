package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

type pgVideoRepository struct {
	pool *pgxpool.Pool
}

// NewPgVideoRepository returns a VideoRepository backed by PostgreSQL.
func NewPgVideoRepository(pool *pgxpool.Pool) VideoRepository {
	return &pgVideoRepository{pool: pool}
}

const videoColumns = `id, source_id, ref, title, status, duration_seconds,
	skip_reason, error_message, retry_count, next_retry_at, deleted_at,
	created_at, updated_at`

func (r *pgVideoRepository) CreateVideo(ctx context.Context, v *domain.Video) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO videos
			(id, source_id, ref, title, status, duration_seconds, retry_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		v.ID, v.SourceID, v.Ref, v.Title, v.Status, v.DurationSeconds, v.RetryCount,
		v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "videos_source_id_ref_key") {
			return domain.ErrDuplicateRef
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

func (r *pgVideoRepository) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+videoColumns+`
		FROM videos WHERE id = $1 AND deleted_at IS NULL`, id)

	v, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return v, err
}

func (r *pgVideoRepository) GetVideoByRef(ctx context.Context, sourceID, ref string) (*domain.Video, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+videoColumns+`
		FROM videos WHERE source_id = $1 AND ref = $2 AND deleted_at IS NULL`, sourceID, ref)

	v, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return v, err
}

func (r *pgVideoRepository) UpdateVideoStatus(ctx context.Context, id string, from, to domain.Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos
		SET status = $1, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *pgVideoRepository) MarkVideoAcquired(ctx context.Context, id string, durationSeconds int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos
		SET status = $1, duration_seconds = $2, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		domain.StatusAcquired, durationSeconds, id, domain.StatusAcquiring)
	if err != nil {
		return fmt.Errorf("mark video acquired: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *pgVideoRepository) MarkVideoFailed(ctx context.Context, id, reason string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE videos
		SET status = 'failed', error_message = $1, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status NOT IN ('completed', 'failed', 'skipped')`, reason, id)
	return err
}

func (r *pgVideoRepository) MarkVideoSkipped(ctx context.Context, id, reason string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos
		SET status = 'skipped', skip_reason = $1, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status = 'acquired'`, reason, id)
	if err != nil {
		return fmt.Errorf("mark video skipped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

func (r *pgVideoRepository) RequeueFailed(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE videos
		SET status = 'pending', error_message = NULL, retry_count = 0,
		    next_retry_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'failed'`, id)
	if err != nil {
		return fmt.Errorf("requeue video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotRequeueable
	}
	return nil
}

func (r *pgVideoRepository) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetryAt time.Time, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE videos
		SET retry_count = $1, next_retry_at = $2, error_message = $3, updated_at = NOW()
		WHERE id = $4`, retryCount, nextRetryAt, errMsg, id)
	return err
}

func (r *pgVideoRepository) FindDueRetries(ctx context.Context) ([]*domain.Video, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+videoColumns+`
		FROM videos
		WHERE next_retry_at IS NOT NULL
		  AND next_retry_at <= NOW()
		  AND status NOT IN ('completed', 'failed', 'skipped')
		  AND deleted_at IS NULL
		LIMIT 500`)
	if err != nil {
		return nil, fmt.Errorf("find due retries: %w", err)
	}
	defer rows.Close()
	return scanVideos(rows)
}

func (r *pgVideoRepository) FindStranded(ctx context.Context, minAge time.Duration) ([]*domain.Video, error) {
	cutoff := time.Now().UTC().Add(-minAge)
	rows, err := r.pool.Query(ctx, `
		SELECT `+videoColumns+`
		FROM videos
		WHERE next_retry_at IS NULL
		  AND status NOT IN ('completed', 'failed', 'skipped')
		  AND updated_at <= $1
		  AND deleted_at IS NULL
		LIMIT 500`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stranded videos: %w", err)
	}
	defer rows.Close()
	return scanVideos(rows)
}

func (r *pgVideoRepository) CreateTranscript(ctx context.Context, t *domain.Transcript) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transcript tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// A transcript may already exist if a previous attempt crashed between
	// the insert and the status update; re-running the stage must not fail.
	_, err = tx.Exec(ctx, `
		INSERT INTO transcripts (id, video_id, text, language, confidence, segments, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (video_id) DO NOTHING`,
		t.ID, t.VideoID, t.Text, t.Language, t.Confidence, t.Segments, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE videos SET status = $1, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		domain.StatusTranscribed, t.VideoID, domain.StatusTranscribing)
	if err != nil {
		return fmt.Errorf("advance video to transcribed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	return tx.Commit(ctx)
}

func (r *pgVideoRepository) GetTranscript(ctx context.Context, videoID string) (*domain.Transcript, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, video_id, text, language, confidence, segments, created_at
		FROM transcripts WHERE video_id = $1`, videoID)

	var t domain.Transcript
	err := row.Scan(&t.ID, &t.VideoID, &t.Text, &t.Language, &t.Confidence, &t.Segments, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}
	return &t, nil
}

const summaryColumns = `id, video_id, text, category, keywords, model,
	prompt_tokens, completion_tokens, distributed, deliveries, created_at, updated_at`

func (r *pgVideoRepository) CreateSummary(ctx context.Context, s *domain.Summary) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin summary tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// The unique constraint on video_id is what enforces at-most-one
	// summary per video even under concurrent advances.
	_, err = tx.Exec(ctx, `
		INSERT INTO summaries
			(id, video_id, text, category, keywords, model, prompt_tokens,
			 completion_tokens, distributed, deliveries, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (video_id) DO NOTHING`,
		s.ID, s.VideoID, s.Text, s.Category, s.Keywords, s.Model,
		s.PromptTokens, s.CompletionTokens, s.Distributed, s.Deliveries,
		s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE videos SET status = $1, next_retry_at = NULL, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		domain.StatusCompleted, s.VideoID, domain.StatusSummarizing)
	if err != nil {
		return fmt.Errorf("advance video to completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}

	return tx.Commit(ctx)
}

func (r *pgVideoRepository) GetSummary(ctx context.Context, id string) (*domain.Summary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+summaryColumns+`
		FROM summaries WHERE id = $1`, id)

	s, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *pgVideoRepository) GetSummaryByVideo(ctx context.Context, videoID string) (*domain.Summary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+summaryColumns+`
		FROM summaries WHERE video_id = $1`, videoID)

	s, err := scanSummary(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *pgVideoRepository) UpdateSummaryDelivery(ctx context.Context, id string, deliveries []domain.DeliveryRecord, distributed bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE summaries
		SET deliveries = $1, distributed = $2, updated_at = NOW()
		WHERE id = $3`, deliveries, distributed, id)
	return err
}

func (r *pgVideoRepository) ListUndistributed(ctx context.Context, minAge time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-minAge)
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM summaries
		WHERE distributed = FALSE AND created_at <= $1
		ORDER BY created_at
		LIMIT 100`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list undistributed: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgVideoRepository) ListRecentSummaries(ctx context.Context, sourceID string, limit int) ([]*domain.Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.video_id, s.text, s.category, s.keywords, s.model,
		       s.prompt_tokens, s.completion_tokens, s.distributed, s.deliveries,
		       s.created_at, s.updated_at
		FROM summaries s
		JOIN videos v ON v.id = s.video_id
		WHERE v.source_id = $1 AND v.deleted_at IS NULL
		ORDER BY s.created_at DESC
		LIMIT $2`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (r *pgVideoRepository) GetSource(ctx context.Context, id string) (*domain.Source, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, channel_ref, title, created_at
		FROM sources WHERE id = $1`, id)

	var src domain.Source
	err := row.Scan(&src.ID, &src.ChannelRef, &src.Title, &src.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	return &src, nil
}

func (r *pgVideoRepository) ListActiveSubscribers(ctx context.Context, sourceID string) ([]*domain.Subscriber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sub.id, sub.username, sub.blocked, sub.created_at
		FROM subscribers sub
		JOIN subscriptions sn ON sn.subscriber_id = sub.id
		WHERE sn.source_id = $1 AND sub.blocked = FALSE
		ORDER BY sub.id`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("list active subscribers: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(&s.ID, &s.Username, &s.Blocked, &s.CreatedAt); err != nil {
			return nil, err
		}
		subs = append(subs, &s)
	}
	return subs, rows.Err()
}

func (r *pgVideoRepository) MarkSubscriberBlocked(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE subscribers SET blocked = TRUE WHERE id = $1`, id)
	return err
}

func (r *pgVideoRepository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM videos
		WHERE deleted_at IS NULL
		GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status domain.Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ---- scanning helpers ----

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*domain.Video, error) {
	var v domain.Video
	err := row.Scan(
		&v.ID, &v.SourceID, &v.Ref, &v.Title, &v.Status, &v.DurationSeconds,
		&v.SkipReason, &v.ErrorMessage, &v.RetryCount, &v.NextRetryAt, &v.DeletedAt,
		&v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanVideos(rows pgx.Rows) ([]*domain.Video, error) {
	var videos []*domain.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func scanSummary(row rowScanner) (*domain.Summary, error) {
	var s domain.Summary
	err := row.Scan(
		&s.ID, &s.VideoID, &s.Text, &s.Category, &s.Keywords, &s.Model,
		&s.PromptTokens, &s.CompletionTokens, &s.Distributed, &s.Deliveries,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
