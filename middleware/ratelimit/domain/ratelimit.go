package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Key identifica o cliente (normalmente o IP de origem, ou o ID do usuário
// autenticado quando disponível).
type Key string

// Rule é a configuração fixa de uma instância de limiter: no máximo Limit
// requisições por Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Validate rejeita valores não positivos. Um Rule inválido nunca é corrigido
// com um default: o erro deve impedir a inicialização.
func (r Rule) Validate() error {
	if r.Limit <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, r.Limit)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidWindow, r.Window)
	}
	return nil
}

// LimiterStore decide e contabiliza uma requisição para a chave no instante now.
//
// A implementação pode ser janela fixa em memória, token bucket, Redis, etc.
// O check-and-increment precisa ser atômico por chave.
type LimiterStore interface {
	Check(ctx context.Context, key Key, now time.Time) (Decision, error)
}

type Decision struct {
	Allowed bool

	Limit     int
	Remaining int
	// ResetAt é o fim da janela corrente (zero quando desconhecido).
	ResetAt time.Time

	// RetryAfter é o tempo até a próxima requisição poder passar.
	// Só é preenchido quando Allowed=false.
	RetryAfter time.Duration
}

// Allow monta uma decisão positiva.
func Allow(limit, remaining int, resetAt time.Time) Decision {
	return Decision{Allowed: true, Limit: limit, Remaining: remaining, ResetAt: resetAt}
}

// Deny monta uma decisão negativa com o tempo de espera recomendado.
func Deny(limit int, resetAt time.Time, retryAfter time.Duration) Decision {
	return Decision{Allowed: false, Limit: limit, ResetAt: resetAt, RetryAfter: retryAfter}
}

// RetryAfterSeconds arredonda RetryAfter para cima, em segundos inteiros,
// que é o formato do header Retry-After. Uma decisão negativa nunca retorna 0.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
