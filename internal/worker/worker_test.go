package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/gateway"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/stage"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/worker"
)

// scriptedHandler pops one error per call and reports each call on a
// channel so tests can synchronize with the worker goroutine.
type scriptedHandler struct {
	errs  []error
	calls chan string
}

func newScriptedHandler(errs ...error) *scriptedHandler {
	return &scriptedHandler{errs: errs, calls: make(chan string, 16)}
}

func (h *scriptedHandler) pop(id string) error {
	h.calls <- id
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func (h *scriptedHandler) Advance(_ context.Context, id string) error    { return h.pop(id) }
func (h *scriptedHandler) Distribute(_ context.Context, id string) error { return h.pop(id) }

func (h *scriptedHandler) awaitCall(t *testing.T) string {
	t.Helper()
	select {
	case id := <-h.calls:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler call")
		return ""
	}
}

func testPolicy() worker.RetryPolicy {
	return worker.RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond},
		Retryable:   func(err error) bool { return !stage.IsPermanent(err) && !gateway.IsPermanent(err) },
	}
}

// runWorker starts a single worker and returns a stop func that blocks
// until it exits.
func runWorker(q *queue.Queue, repo repository.VideoRepository, adv worker.AdvanceHandler, dist worker.DistributeHandler, policy worker.RetryPolicy, hooks worker.Hooks) func() {
	ctx, cancel := context.WithCancel(context.Background())
	w := worker.NewWorker(0, q, queue.NewLeaseSet(), repo, adv, dist, policy, hooks, zap.NewNop())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func seedVideo(t *testing.T, repo *repository.MockVideoRepository, retryCount int) *domain.Video {
	t.Helper()
	v := &domain.Video{
		ID:         "video-1",
		SourceID:   "src-1",
		Ref:        "ref-1",
		Status:     domain.StatusAcquiring,
		RetryCount: retryCount,
	}
	if err := repo.CreateVideo(context.Background(), v); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return v
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := worker.RetryPolicy{Backoff: []time.Duration{5 * time.Second, 30 * time.Second, 120 * time.Second}}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 5 * time.Second},
		{1, 30 * time.Second},
		{2, 120 * time.Second},
		{3, 120 * time.Second},  // clamped to the last entry
		{99, 120 * time.Second}, // clamped to the last entry
		{-1, 5 * time.Second},
	}
	for _, tc := range tests {
		if got := p.Delay(tc.attempt); got != tc.want {
			t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}

	empty := worker.RetryPolicy{}
	if got := empty.Delay(0); got != 0 {
		t.Errorf("empty backoff: Delay(0) = %v, want 0", got)
	}
}

func TestWorker_TransientAdvanceFailureSchedulesRetry(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	v := seedVideo(t, repo, 0)
	q := queue.New(16)
	adv := newScriptedHandler(stage.Transient(errors.New("timeout")))
	stop := runWorker(q, repo, adv, newScriptedHandler(), testPolicy(), worker.Hooks{})
	defer stop()

	_ = q.Enqueue(queue.Job{Type: queue.JobAdvance, PayloadID: v.ID})
	adv.awaitCall(t)

	eventually(t, func() bool {
		got, _ := repo.GetVideo(context.Background(), v.ID)
		return got.RetryCount == 1 && got.NextRetryAt != nil
	}, "expected a scheduled retry on the video row")

	got, _ := repo.GetVideo(context.Background(), v.ID)
	if got.Status != domain.StatusAcquiring {
		t.Fatalf("expected status unchanged for retry, got %s", got.Status)
	}
}

func TestWorker_PermanentAdvanceFailureMarksFailed(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	v := seedVideo(t, repo, 0)
	q := queue.New(16)
	adv := newScriptedHandler(stage.Permanent(errors.New("video unavailable")))
	stop := runWorker(q, repo, adv, newScriptedHandler(), testPolicy(), worker.Hooks{})
	defer stop()

	_ = q.Enqueue(queue.Job{Type: queue.JobAdvance, PayloadID: v.ID})
	adv.awaitCall(t)

	eventually(t, func() bool {
		got, _ := repo.GetVideo(context.Background(), v.ID)
		return got.Status == domain.StatusFailed
	}, "expected video to be marked failed")

	got, _ := repo.GetVideo(context.Background(), v.ID)
	if got.ErrorMessage == nil || *got.ErrorMessage == "" {
		t.Fatal("expected the terminal error message to be recorded")
	}
	if repo.ScheduledRetryCount != 0 {
		t.Fatal("expected no retry to be scheduled for a permanent failure")
	}
}

func TestWorker_ExhaustedRetryBudgetMarksFailed(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	v := seedVideo(t, repo, 3) // budget already spent
	q := queue.New(16)
	adv := newScriptedHandler(stage.Transient(errors.New("still failing")))
	stop := runWorker(q, repo, adv, newScriptedHandler(), testPolicy(), worker.Hooks{})
	defer stop()

	_ = q.Enqueue(queue.Job{Type: queue.JobAdvance, PayloadID: v.ID})
	adv.awaitCall(t)

	eventually(t, func() bool {
		got, _ := repo.GetVideo(context.Background(), v.ID)
		return got.Status == domain.StatusFailed
	}, "expected video to fail once the budget is exhausted")
}

func TestWorker_FailureHookFiresOnTerminalFailure(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		stageErr   error
	}{
		{"permanent error", 0, stage.Permanent(errors.New("video unavailable"))},
		{"exhausted budget", 3, stage.Transient(errors.New("still failing"))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := repository.NewMockVideoRepository()
			v := seedVideo(t, repo, tc.retryCount)
			q := queue.New(16)
			adv := newScriptedHandler(tc.stageErr)

			var failed atomic.Int32
			hooks := worker.Hooks{OnFailed: func() { failed.Add(1) }}
			stop := runWorker(q, repo, adv, newScriptedHandler(), testPolicy(), hooks)
			defer stop()

			_ = q.Enqueue(queue.Job{Type: queue.JobAdvance, PayloadID: v.ID})
			adv.awaitCall(t)

			eventually(t, func() bool { return failed.Load() == 1 }, "expected the failure hook to fire")
			time.Sleep(50 * time.Millisecond)
			if got := failed.Load(); got != 1 {
				t.Fatalf("failure hook fired %d times, want 1", got)
			}
		})
	}
}

func TestWorker_TransientDistributeFailureReenqueues(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	q := queue.New(16)
	dist := newScriptedHandler(&gateway.TransientError{Err: errors.New("flood limit")})
	stop := runWorker(q, repo, newScriptedHandler(), dist, testPolicy(), worker.Hooks{})
	defer stop()

	_ = q.Enqueue(queue.Job{Type: queue.JobDistribute, PayloadID: "summary-1"})

	// First attempt fails, the in-process backoff re-enqueues, the second
	// attempt succeeds.
	if id := dist.awaitCall(t); id != "summary-1" {
		t.Fatalf("unexpected payload %s", id)
	}
	if id := dist.awaitCall(t); id != "summary-1" {
		t.Fatalf("unexpected payload on retry %s", id)
	}
}

func TestWorker_ExhaustedDistributeRetriesLeftToSweep(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	q := queue.New(16)
	dist := newScriptedHandler(&gateway.TransientError{Err: errors.New("flood limit")})
	stop := runWorker(q, repo, newScriptedHandler(), dist, testPolicy(), worker.Hooks{})
	defer stop()

	// Attempt numbering starts at the job; this one has no budget left.
	_ = q.Enqueue(queue.Job{Type: queue.JobDistribute, PayloadID: "summary-1", Attempt: 2})
	dist.awaitCall(t)

	select {
	case id := <-dist.calls:
		t.Fatalf("expected no in-process retry, got call for %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRetryWorker_EnqueuesDueRetries(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	v := seedVideo(t, repo, 1)
	past := time.Now().Add(-time.Second)
	_ = repo.ScheduleRetry(context.Background(), v.ID, 1, past, "timeout")

	q := queue.New(16)
	rw := worker.NewRetryWorker(repo, q, 10*time.Millisecond, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rw.Run(ctx)

	dequeueCtx, dequeueCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dequeueCancel()
	job, ok := q.Dequeue(dequeueCtx)
	if !ok {
		t.Fatal("expected a re-enqueued advance job")
	}
	if job.Type != queue.JobAdvance || job.PayloadID != v.ID {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestRetryWorker_EnqueuesStrandedVideos(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	// Stuck mid-stage after a crash: no retry scheduled, no job in flight.
	stuck := &domain.Video{ID: "v-stuck", SourceID: "src-1", Ref: "r1", Status: domain.StatusTranscribing, UpdatedAt: old}
	_ = repo.CreateVideo(ctx, stuck)
	// Accepted but its initial job was lost to a full queue.
	pending := &domain.Video{ID: "v-pending", SourceID: "src-1", Ref: "r2", Status: domain.StatusPending, UpdatedAt: old}
	_ = repo.CreateVideo(ctx, pending)
	// Recently touched rows stay out of the sweep.
	fresh := &domain.Video{ID: "v-fresh", SourceID: "src-1", Ref: "r3", Status: domain.StatusAcquiring, UpdatedAt: time.Now()}
	_ = repo.CreateVideo(ctx, fresh)

	q := queue.New(16)
	rw := worker.NewRetryWorker(repo, q, 10*time.Millisecond, time.Minute, zap.NewNop())
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rw.Run(runCtx)

	seen := map[string]bool{}
	deadline := time.Now().Add(2 * time.Second)
	for !(seen["v-stuck"] && seen["v-pending"]) && time.Now().Before(deadline) {
		dequeueCtx, dequeueCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		job, ok := q.Dequeue(dequeueCtx)
		dequeueCancel()
		if !ok {
			continue
		}
		if job.Type != queue.JobAdvance {
			t.Fatalf("unexpected job type %s", job.Type)
		}
		if job.PayloadID == "v-fresh" {
			t.Fatal("recently updated video should not be re-enqueued")
		}
		seen[job.PayloadID] = true
	}
	if !seen["v-stuck"] || !seen["v-pending"] {
		t.Fatalf("expected advance jobs for both stranded videos, saw %v", seen)
	}
}

func TestSweepWorker_EnqueuesUndistributedSummaries(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	ctx := context.Background()
	v := &domain.Video{ID: "v1", SourceID: "src-1", Ref: "r1", Status: domain.StatusSummarizing}
	_ = repo.CreateVideo(ctx, v)
	old := time.Now().Add(-time.Hour)
	_ = repo.CreateSummary(ctx, &domain.Summary{ID: "s1", VideoID: "v1", Text: "text", CreatedAt: old})

	q := queue.New(16)
	sw := worker.NewSweepWorker(repo, q, 10*time.Millisecond, time.Minute, zap.NewNop())
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Run(runCtx)

	dequeueCtx, dequeueCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dequeueCancel()
	job, ok := q.Dequeue(dequeueCtx)
	if !ok {
		t.Fatal("expected a swept distribute job")
	}
	if job.Type != queue.JobDistribute || job.PayloadID != "s1" {
		t.Fatalf("unexpected job %+v", job)
	}
}
