package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"assistant-gateway/middleware/ratelimit/domain"
)

func newTestWindowStore(t *testing.T, limit int, window time.Duration, opts ...WindowStoreOption) *WindowStore {
	t.Helper()
	s, err := NewWindowStore(domain.Rule{Limit: limit, Window: window}, opts...)
	if err != nil {
		t.Fatalf("failed to create window store: %v", err)
	}
	return s
}

func TestWindowStore_RejectsInvalidRule(t *testing.T) {
	if _, err := NewWindowStore(domain.Rule{Limit: -1, Window: time.Second}); !errors.Is(err, domain.ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := NewWindowStore(domain.Rule{Limit: 1, Window: 0}); !errors.Is(err, domain.ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestWindowStore_ConcreteScenario(t *testing.T) {
	s := newTestWindowStore(t, 5, 60*time.Second)
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		dec, err := s.Check(ctx, "10.0.0.1", t0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !dec.Allowed {
			t.Fatalf("expected request %d to be allowed", i+1)
		}
	}

	dec, _ := s.Check(ctx, "10.0.0.1", t0.Add(10*time.Second))
	if dec.Allowed {
		t.Fatalf("expected 6th request to be denied")
	}
	if got := dec.RetryAfterSeconds(); got != 50 {
		t.Fatalf("expected retryAfter=50, got %d", got)
	}

	dec, _ = s.Check(ctx, "10.0.0.1", t0.Add(61*time.Second))
	if !dec.Allowed {
		t.Fatalf("expected 7th request (after window) to be allowed")
	}
	if dec.Remaining != 4 {
		t.Fatalf("expected count reset to 1 (remaining 4), got remaining=%d", dec.Remaining)
	}
}

func TestWindowStore_KeysAreIndependent(t *testing.T) {
	s := newTestWindowStore(t, 1, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	if dec, _ := s.Check(context.Background(), "a", now); !dec.Allowed {
		t.Fatalf("expected a allowed")
	}
	if dec, _ := s.Check(context.Background(), "a", now); dec.Allowed {
		t.Fatalf("expected second a denied")
	}
	if dec, _ := s.Check(context.Background(), "b", now); !dec.Allowed {
		t.Fatalf("expected b allowed")
	}
}

func TestWindowStore_OpportunisticSweepDropsStaleEntries(t *testing.T) {
	s := newTestWindowStore(t, 3, time.Minute, WithShards(1), WithWindowCleanupEvery(0))
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0)

	for i := 0; i < 10; i++ {
		_, _ = s.Check(ctx, domain.Key(fmt.Sprintf("10.0.0.%d", i)), t0)
	}
	if s.Len() != 10 {
		t.Fatalf("expected 10 tracked clients, got %d", s.Len())
	}

	// antes do fim da janela nada é varrido
	_, _ = s.Check(ctx, "10.0.0.1", t0.Add(30*time.Second))
	if s.Len() != 10 {
		t.Fatalf("expected no sweep inside the window, got %d", s.Len())
	}

	_, _ = s.Check(ctx, "10.0.0.99", t0.Add(2*time.Minute))
	if s.Len() != 1 {
		t.Fatalf("expected only the fresh client after sweep, got %d", s.Len())
	}
}

func TestWindowStore_SweepAllShards(t *testing.T) {
	s := newTestWindowStore(t, 1, time.Second, WithShards(4))
	t0 := time.Unix(1_700_000_000, 0)

	for i := 0; i < 20; i++ {
		_, _ = s.Check(context.Background(), domain.Key(fmt.Sprintf("c%d", i)), t0)
	}
	if removed := s.Sweep(t0.Add(time.Second)); removed != 20 {
		t.Fatalf("expected 20 removed, got %d", removed)
	}
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d", s.Len())
	}
}

func TestWindowStore_ConcurrentSameKeyNeverExceedsLimit(t *testing.T) {
	const limit = 25
	s := newTestWindowStore(t, limit, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 500; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, _ := s.Check(context.Background(), "10.0.0.1", now)
			if dec.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != limit {
		t.Fatalf("expected exactly %d allowed, got %d", limit, got)
	}
}

func TestWindowStore_JanitorStopsWithContext(t *testing.T) {
	s := newTestWindowStore(t, 1, time.Millisecond, WithWindowCleanupEvery(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _ = s.Check(context.Background(), "k", time.Now())
	s.StartJanitor(ctx)

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected janitor to sweep expired window")
		}
		time.Sleep(2 * time.Millisecond)
	}
}
