package infra

import (
	"context"
	"sync"
	"time"

	"assistant-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// TokenBucketStore é a alternativa ao WindowStore baseada em token-bucket
// (x/time/rate), com cache por chave e limpeza periódica.
//
// Ela não tem o "burst duplo" na borda da janela: o Rule vira uma taxa de
// Limit/Window tokens por segundo com burst = Limit.
type TokenBucketStore struct {
	mu           sync.Mutex
	entries      map[string]*storeEntry
	rule         domain.Rule
	rps          rate.Limit
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type storeEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type StoreOption func(*TokenBucketStore)

func WithIdleTTL(d time.Duration) StoreOption {
	return func(s *TokenBucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) StoreOption {
	return func(s *TokenBucketStore) { s.cleanupEvery = d }
}

func NewTokenBucketStore(rule domain.Rule, opts ...StoreOption) (*TokenBucketStore, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	s := &TokenBucketStore{
		entries:      make(map[string]*storeEntry),
		rule:         rule,
		rps:          rate.Limit(float64(rule.Limit) / rule.Window.Seconds()),
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	// um bucket ocioso por mais de uma janela já está cheio de novo
	if s.idleTTL < rule.Window {
		s.idleTTL = rule.Window
	}
	return s, nil
}

func (s *TokenBucketStore) RPS() float64                { return float64(s.rps) }
func (s *TokenBucketStore) Burst() int                  { return s.rule.Limit }
func (s *TokenBucketStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Check implementa domain.LimiterStore.
func (s *TokenBucketStore) Check(_ context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	lim := s.limiter(string(key), now)

	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return domain.Deny(s.rule.Limit, time.Time{}, s.rule.Window), nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		// devolve o token: requisição negada não consome capacidade
		r.CancelAt(now)
		return domain.Deny(s.rule.Limit, now.Add(delay), delay), nil
	}

	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return domain.Allow(s.rule.Limit, remaining, time.Time{}), nil
}

func (s *TokenBucketStore) limiter(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.rule.Limit)
	s.entries[key] = &storeEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup remove buckets sem uso há mais de idleTTL.
func (s *TokenBucketStore) Cleanup(now time.Time) {
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *TokenBucketStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
