package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// failingStore errors on every call, simulating a dead cache backend.
type failingStore struct{}

var errBackendDown = errors.New("connection refused")

func (failingStore) Get(context.Context, string) ([]byte, error)               { return nil, errBackendDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error { return errBackendDown }
func (failingStore) Delete(context.Context, ...string) error                  { return errBackendDown }
func (failingStore) DeleteByPrefix(context.Context, string) error             { return errBackendDown }
func (failingStore) Ping(context.Context) error                               { return errBackendDown }

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestGetOrPopulate_MissThenHit(t *testing.T) {
	c := New(NewMemoryStore(), zap.NewNop(), Hooks{})
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (payload, error) {
		loads++
		return payload{Name: "first", Count: 42}, nil
	}

	got, err := GetOrPopulate(ctx, c, "k1", time.Minute, loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Count != 42 {
		t.Fatalf("expected count=42, got %d", got.Count)
	}

	// Second call must be served from cache, not the loader.
	got, err = GetOrPopulate(ctx, c, "k1", time.Minute, loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "first" {
		t.Fatalf("expected cached value, got %+v", got)
	}
	if loads != 1 {
		t.Fatalf("expected loader to run once, ran %d times", loads)
	}
}

func TestGetOrPopulate_FailOpen(t *testing.T) {
	// With the backend erroring on every call, the loader result must
	// still come through on every invocation.
	c := New(failingStore{}, zap.NewNop(), Hooks{})
	ctx := context.Background()

	loads := 0
	loader := func(context.Context) (payload, error) {
		loads++
		return payload{Name: "direct"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrPopulate(ctx, c, "k1", time.Minute, loader)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if got.Name != "direct" {
			t.Fatalf("call %d: expected loader value, got %+v", i, got)
		}
	}
	if loads != 3 {
		t.Fatalf("expected loader to run every time, ran %d times", loads)
	}
}

func TestGetOrPopulate_LoaderErrorPropagates(t *testing.T) {
	c := New(NewMemoryStore(), zap.NewNop(), Hooks{})
	wantErr := errors.New("repository down")

	_, err := GetOrPopulate(context.Background(), c, "k1", time.Minute, func(context.Context) (payload, error) {
		return payload{}, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected loader error, got %v", err)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(NewMemoryStore(), zap.NewNop(), Hooks{})
	ctx := context.Background()

	c.Set(ctx, "k1", payload{Name: "short"}, 10*time.Millisecond)

	var got payload
	if !c.Get(ctx, "k1", &got) {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(20 * time.Millisecond)
	if c.Get(ctx, "k1", &got) {
		t.Fatal("expected miss after TTL expiry")
	}
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := New(NewMemoryStore(), zap.NewNop(), Hooks{})
	ctx := context.Background()

	c.Set(ctx, RecentKey("src-1"), payload{Name: "a"}, time.Minute)
	c.Set(ctx, RecentKey("src-2"), payload{Name: "b"}, time.Minute)
	c.Set(ctx, VideoKey("v1"), payload{Name: "keep"}, time.Minute)

	c.InvalidatePrefix(ctx, RecentPrefix())

	var got payload
	if c.Get(ctx, RecentKey("src-1"), &got) || c.Get(ctx, RecentKey("src-2"), &got) {
		t.Fatal("expected recent keys to be invalidated")
	}
	if !c.Get(ctx, VideoKey("v1"), &got) {
		t.Fatal("expected video key to survive prefix invalidation")
	}
}

func TestCache_HookCounts(t *testing.T) {
	var hits, misses int
	c := New(NewMemoryStore(), zap.NewNop(), Hooks{
		OnHit:  func() { hits++ },
		OnMiss: func() { misses++ },
	})
	ctx := context.Background()

	var got payload
	c.Get(ctx, "k1", &got) // miss
	c.Set(ctx, "k1", payload{Name: "x"}, time.Minute)
	c.Get(ctx, "k1", &got) // hit

	if hits != 1 || misses != 1 {
		t.Fatalf("expected 1 hit / 1 miss, got %d / %d", hits, misses)
	}
}
