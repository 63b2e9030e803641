package fanout_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/fanout"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/gateway"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
)

// fakeGateway scripts per-recipient outcomes: errs are popped one per
// send, an empty script means success.
type fakeGateway struct {
	sends []int64
	errs  map[int64][]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{errs: make(map[int64][]error)}
}

func (g *fakeGateway) failNext(chatID int64, err error) {
	g.errs[chatID] = append(g.errs[chatID], err)
}

func (g *fakeGateway) Send(_ context.Context, chatID int64, _ string) (string, error) {
	g.sends = append(g.sends, chatID)
	if script := g.errs[chatID]; len(script) > 0 {
		g.errs[chatID] = script[1:]
		return "", script[0]
	}
	return fmt.Sprintf("msg-%d-%d", chatID, len(g.sends)), nil
}

type noopPacer struct{}

func (noopPacer) Wait(ctx context.Context) error { return ctx.Err() }

func newDistributor(repo *repository.MockVideoRepository, gw gateway.Gateway) *fanout.Distributor {
	return fanout.New(repo, gw, noopPacer{}, zap.NewNop(), fanout.Hooks{})
}

// seedSummary creates a completed video with a summary and three
// subscribers (IDs 1, 2, 3) on its source.
func seedSummary(t *testing.T, repo *repository.MockVideoRepository) *domain.Summary {
	t.Helper()
	ctx := context.Background()

	repo.AddSource(&domain.Source{ID: "src-1", ChannelRef: "UCabc"})
	for id := int64(1); id <= 3; id++ {
		repo.AddSubscriber(&domain.Subscriber{ID: id}, "src-1")
	}

	v := &domain.Video{ID: "v1", SourceID: "src-1", Ref: "ref-1", Title: "Talk", Status: domain.StatusSummarizing}
	if err := repo.CreateVideo(ctx, v); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	s := &domain.Summary{ID: "s1", VideoID: "v1", Text: "the summary", Category: "tech"}
	if err := repo.CreateSummary(ctx, s); err != nil {
		t.Fatalf("seed summary: %v", err)
	}
	return s
}

func TestDistribute_ReachesAllSubscribers(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	gw := newFakeGateway()
	d := newDistributor(repo, gw)
	s := seedSummary(t, repo)

	if err := d.Distribute(context.Background(), s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int64{1, 2, 3}
	if len(gw.sends) != len(want) {
		t.Fatalf("expected %d sends, got %v", len(want), gw.sends)
	}
	for i, id := range want {
		if gw.sends[i] != id {
			t.Fatalf("expected send order %v, got %v", want, gw.sends)
		}
	}

	got, _ := repo.GetSummary(context.Background(), s.ID)
	if !got.Distributed {
		t.Fatal("expected distributed=true")
	}
	if len(got.Deliveries) != 3 {
		t.Fatalf("expected 3 delivery records, got %d", len(got.Deliveries))
	}
}

func TestDistribute_IsIdempotent(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	gw := newFakeGateway()
	d := newDistributor(repo, gw)
	s := seedSummary(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := d.Distribute(ctx, s.ID); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	if len(gw.sends) != 3 {
		t.Fatalf("expected each subscriber reached exactly once, got sends %v", gw.sends)
	}
}

func TestDistribute_ResumesAfterTransientFailure(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	gw := newFakeGateway()
	gw.failNext(2, &gateway.TransientError{Err: errors.New("flood limit")})
	d := newDistributor(repo, gw)
	s := seedSummary(t, repo)
	ctx := context.Background()

	err := d.Distribute(ctx, s.ID)
	if err == nil || gateway.IsPermanent(err) {
		t.Fatalf("expected a transient error, got %v", err)
	}

	// Progress so far must be durable and the flag must stay down.
	got, _ := repo.GetSummary(ctx, s.ID)
	if got.Distributed {
		t.Fatal("expected distributed=false after partial fan-out")
	}
	if len(got.Deliveries) != 1 || got.Deliveries[0].SubscriberID != 1 {
		t.Fatalf("expected only subscriber 1 recorded, got %+v", got.Deliveries)
	}

	// The retry must not re-send to subscriber 1.
	if err := d.Distribute(ctx, s.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	sentTo := map[int64]int{}
	for _, id := range gw.sends {
		sentTo[id]++
	}
	if sentTo[1] != 1 {
		t.Fatalf("expected subscriber 1 reached once, got %d", sentTo[1])
	}
	got, _ = repo.GetSummary(ctx, s.ID)
	if !got.Distributed || len(got.Deliveries) != 3 {
		t.Fatalf("expected full distribution after retry, got distributed=%v deliveries=%d",
			got.Distributed, len(got.Deliveries))
	}
}

func TestDistribute_BlocksUnreachableAndContinues(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	gw := newFakeGateway()
	gw.failNext(2, &gateway.PermanentError{Reason: "bot blocked", Err: errors.New("403")})
	d := newDistributor(repo, gw)
	s := seedSummary(t, repo)
	ctx := context.Background()

	if err := d.Distribute(ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := repo.GetSummary(ctx, s.ID)
	if !got.Distributed {
		t.Fatal("expected distributed=true despite one blocked recipient")
	}
	if len(got.Deliveries) != 2 {
		t.Fatalf("expected 2 delivery records, got %+v", got.Deliveries)
	}
	if got.DeliveredTo(2) {
		t.Fatal("expected no delivery record for the blocked subscriber")
	}

	// Blocked subscribers are gone from the live set for later fan-outs.
	subs, _ := repo.ListActiveSubscribers(ctx, "src-1")
	for _, sub := range subs {
		if sub.ID == 2 {
			t.Fatal("expected subscriber 2 to be excluded after blocking")
		}
	}
}

func TestDistribute_UnknownSummaryIsNoOp(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	gw := newFakeGateway()
	d := newDistributor(repo, gw)

	if err := d.Distribute(context.Background(), "no-such-summary"); err != nil {
		t.Fatalf("expected nil for unknown summary, got %v", err)
	}
	if len(gw.sends) != 0 {
		t.Fatal("expected no sends")
	}
}

func TestDistribute_NoSubscribers(t *testing.T) {
	repo := repository.NewMockVideoRepository()
	gw := newFakeGateway()
	d := newDistributor(repo, gw)
	ctx := context.Background()

	repo.AddSource(&domain.Source{ID: "src-empty", ChannelRef: "UCempty"})
	v := &domain.Video{ID: "v2", SourceID: "src-empty", Ref: "ref-2", Status: domain.StatusSummarizing}
	if err := repo.CreateVideo(ctx, v); err != nil {
		t.Fatalf("seed video: %v", err)
	}
	s := &domain.Summary{ID: "s2", VideoID: "v2", Text: "text"}
	if err := repo.CreateSummary(ctx, s); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	if err := d.Distribute(ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := repo.GetSummary(ctx, s.ID)
	if !got.Distributed {
		t.Fatal("expected distributed=true with zero recipients")
	}
}
