package infra

import (
	"context"
	"sync"
	"time"

	"assistant-gateway/middleware/ratelimit/domain"

	"github.com/cespare/xxhash/v2"
)

// WindowStore é o contador de janela fixa em memória, por chave.
//
// O mapa é dividido em shards (escolhidos por xxhash da chave), cada um com
// seu mutex. O check-and-increment de uma chave acontece inteiro sob o lock
// do shard, então requisições concorrentes do mesmo cliente nunca passam do
// limite.
//
// Janelas expiradas são removidas de forma oportunista: no máximo uma
// varredura por shard a cada Window, feita dentro do próprio Check. O janitor
// (StartJanitor) cobre shards que ficaram sem tráfego.
//
// Válido apenas para um processo; para várias instâncias use RedisWindowStore.
type WindowStore struct {
	rule         domain.Rule
	shards       []*windowShard
	cleanupEvery time.Duration
}

type windowShard struct {
	mu        sync.Mutex
	windows   map[string]*domain.ClientWindow
	nextSweep time.Time
}

type WindowStoreOption func(*WindowStore)

// WithShards define o número de shards (mínimo 1).
func WithShards(n int) WindowStoreOption {
	return func(s *WindowStore) {
		if n < 1 {
			n = 1
		}
		s.shards = make([]*windowShard, n)
	}
}

// WithWindowCleanupEvery define o intervalo do janitor. 0 desliga o janitor.
func WithWindowCleanupEvery(d time.Duration) WindowStoreOption {
	return func(s *WindowStore) { s.cleanupEvery = d }
}

// NewWindowStore valida a regra e cria o store. Regra inválida é erro de
// configuração.
func NewWindowStore(rule domain.Rule, opts ...WindowStoreOption) (*WindowStore, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	s := &WindowStore{
		rule:         rule,
		shards:       make([]*windowShard, 32),
		cleanupEvery: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range s.shards {
		s.shards[i] = &windowShard{windows: make(map[string]*domain.ClientWindow)}
	}
	return s, nil
}

func (s *WindowStore) Limit() int                  { return s.rule.Limit }
func (s *WindowStore) Window() time.Duration       { return s.rule.Window }
func (s *WindowStore) CleanupEvery() time.Duration { return s.cleanupEvery }

func (s *WindowStore) shardFor(key string) *windowShard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Check implementa domain.LimiterStore. Nunca retorna erro.
func (s *WindowStore) Check(_ context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	k := string(key)
	sh := s.shardFor(k)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if !now.Before(sh.nextSweep) {
		sh.sweepLocked(now)
		sh.nextSweep = now.Add(s.rule.Window)
	}

	w, ok := sh.windows[k]
	if !ok {
		w = &domain.ClientWindow{}
		sh.windows[k] = w
	}
	return w.Take(s.rule, now), nil
}

func (sh *windowShard) sweepLocked(now time.Time) int {
	removed := 0
	for k, w := range sh.windows {
		if w.Stale(now) {
			delete(sh.windows, k)
			removed++
		}
	}
	return removed
}

// Sweep remove janelas expiradas de todos os shards e retorna quantas saíram.
func (s *WindowStore) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		removed += sh.sweepLocked(now)
		sh.mu.Unlock()
	}
	return removed
}

// Len retorna o número de chaves rastreadas (inclusive expiradas ainda não varridas).
func (s *WindowStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}

// StartJanitor inicia uma goroutine que varre janelas expiradas periodicamente.
// Pare cancelando o contexto.
func (s *WindowStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, func(now time.Time) { s.Sweep(now) })
}
