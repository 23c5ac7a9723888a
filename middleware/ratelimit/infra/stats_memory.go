package infra

import (
	"context"
	"maps"
	"sync"

	"assistant-gateway/middleware/ratelimit/domain"
)

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

func (c *Counters) add(allowed bool) {
	if allowed {
		c.Allowed++
		return
	}
	c.Denied++
}

// Snapshot é uma cópia consistente dos contadores, pronta para serializar.
type Snapshot struct {
	Total   Counters            `json:"total"`
	ByScope map[string]Counters `json:"byScope"`
	ByRoute map[string]Counters `json:"byRoute"`
	ByKey   map[string]Counters `json:"byKey,omitempty"`
}

// MemoryStatsStore guarda contadores em memória.
// Útil para testes, desenvolvimento e para o endpoint de stats de uma instância só.
//
// Não faz expiração: com trackKeys ligado a cardinalidade cresce com o número de clientes.
type MemoryStatsStore struct {
	mu      sync.Mutex
	total   Counters
	byScope map[string]Counters
	byRoute map[string]Counters
	byKey   map[string]Counters

	trackKeys bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackKeys(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackKeys = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byScope: make(map[string]Counters),
		byRoute: make(map[string]Counters),
		byKey:   make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev.Allowed)
	bump(s.byScope, ev.Scope, ev.Allowed)
	if ev.Route != "" {
		bump(s.byRoute, ev.Route, ev.Allowed)
	}
	if s.trackKeys && ev.Key != "" {
		bump(s.byKey, string(ev.Key), ev.Allowed)
	}
	return nil
}

func bump(m map[string]Counters, k string, allowed bool) {
	c := m[k]
	c.add(allowed)
	m[k] = c
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Total:   s.total,
		ByScope: maps.Clone(s.byScope),
		ByRoute: maps.Clone(s.byRoute),
	}
	if s.trackKeys {
		snap.ByKey = maps.Clone(s.byKey)
	}
	return snap
}
