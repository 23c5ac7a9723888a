package infra

import (
	"context"
	"testing"
	"time"

	"assistant-gateway/middleware/ratelimit/domain"
)

func TestMemoryStatsStore_CountsByScopeAndRoute(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Scope: "model", Key: "10.0.0.1", Allowed: true, Route: "POST /api/chat"})
	_ = s.Record(ctx, domain.StatsEvent{Scope: "model", Key: "10.0.0.1", Allowed: false, Route: "POST /api/chat"})
	_ = s.Record(ctx, domain.StatsEvent{Scope: "auth", Key: "10.0.0.2", Allowed: false, Route: "protected"})

	if got := s.Total(); got.Allowed != 1 || got.Denied != 2 {
		t.Fatalf("unexpected totals: %+v", got)
	}

	snap := s.Snapshot()
	if got := snap.ByScope["model"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected model counters: %+v", got)
	}
	if got := snap.ByRoute["protected"]; got.Denied != 1 {
		t.Fatalf("unexpected route counters: %+v", got)
	}
	if got := snap.ByKey["10.0.0.1"]; got.Allowed != 1 || got.Denied != 1 {
		t.Fatalf("unexpected key counters: %+v", got)
	}

	// o snapshot é uma cópia
	snap.ByScope["model"] = Counters{}
	if s.Snapshot().ByScope["model"].Allowed != 1 {
		t.Fatalf("expected snapshot to be detached from the store")
	}
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "k", Allowed: true})

	if snap := s.Snapshot(); snap.ByKey != nil {
		t.Fatalf("expected no per-key counters, got %v", snap.ByKey)
	}
}

func TestRedisStatsStore_WritesHashes(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsPrefix("gate:test:"), WithStatsTrackKeys(true), WithStatsTTL(time.Hour))
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)

	err := s.Record(context.Background(), domain.StatsEvent{
		Scope: "model", Key: "10.0.0.1", Allowed: false, Route: "POST /api/chat", At: at,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mr.HGet("gate:test:total", "denied"); got != "1" {
		t.Fatalf("expected total denied=1, got %q", got)
	}
	if got := mr.HGet("gate:test:scope:model", "denied"); got != "1" {
		t.Fatalf("expected scope denied=1, got %q", got)
	}
	if got := mr.HGet("gate:test:minute:202405011030", "denied"); got != "1" {
		t.Fatalf("expected minute bucket denied=1, got %q", got)
	}
	if got := mr.HGet("gate:test:scope:model:routes", "POST /api/chat|denied"); got != "1" {
		t.Fatalf("expected route denied=1, got %q", got)
	}
	if ttl := mr.TTL("gate:test:scope:model:routes"); ttl != time.Hour {
		t.Fatalf("expected route hash TTL of 1h, got %s", ttl)
	}
	if !mr.Exists("gate:test:scopes") {
		t.Fatalf("expected scope set to be written")
	}
	if ttl := mr.TTL("gate:test:key:10.0.0.1"); ttl != time.Hour {
		t.Fatalf("expected per-key TTL of 1h, got %s", ttl)
	}
}

func TestMemoryStatsStore_EventsWithoutRouteSkipByRoute(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Scope: "model", Allowed: true})

	snap := s.Snapshot()
	if len(snap.ByRoute) != 0 {
		t.Fatalf("expected no route entries, got %v", snap.ByRoute)
	}
	if snap.ByScope["model"].Allowed != 1 {
		t.Fatalf("expected scope counters to be kept, got %+v", snap.ByScope)
	}
}

func TestRedisStatsStore_SnapshotAggregatesScopesAndRoutes(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRedisStatsStore(rdb, WithStatsBucket("none"), WithStatsTrackKeys(true))
	ctx := context.Background()

	events := []domain.StatsEvent{
		{Scope: "model", Key: "user:a", Allowed: true, Route: "POST /api/chat"},
		{Scope: "model", Key: "user:a", Allowed: false, Route: "POST /api/chat"},
		{Scope: "auth", Allowed: false, Route: "protected"},
		{Scope: "auth", Allowed: true, Route: "exempt:/api/auth"},
		{Scope: "auth", Allowed: true, Route: "protected"},
	}
	for _, ev := range events {
		if err := s.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}

	snap, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	if snap.Total != (Counters{Allowed: 3, Denied: 2}) {
		t.Fatalf("unexpected totals: %+v", snap.Total)
	}
	if got := snap.ByScope["auth"]; got != (Counters{Allowed: 2, Denied: 1}) {
		t.Fatalf("unexpected auth counters: %+v", got)
	}
	if got := snap.ByRoute["protected"]; got != (Counters{Allowed: 1, Denied: 1}) {
		t.Fatalf("unexpected protected counters: %+v", got)
	}
	if got := snap.ByRoute["POST /api/chat"]; got != (Counters{Allowed: 1, Denied: 1}) {
		t.Fatalf("unexpected chat counters: %+v", got)
	}
	if snap.ByKey != nil {
		t.Fatalf("expected per-key counters to stay out of the snapshot")
	}
}

func TestRedisStatsStore_NilIsNoop(t *testing.T) {
	var s *RedisStatsStore
	if err := s.Record(context.Background(), domain.StatsEvent{}); err != nil {
		t.Fatalf("expected nil store to be a no-op, got %v", err)
	}
}
