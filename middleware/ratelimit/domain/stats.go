package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão tomada na borda: allow/deny de um limiter
// ou continue/redirect do auth gate.
//
// Scope identifica quem decidiu (ex.: "model", "api", "auth") para que
// instâncias diferentes não se misturem nos contadores.
//
// Route é um rótulo de cardinalidade fixa (padrão de rota, "protected",
// "exempt:/static"...), nunca o path bruto da requisição: qualquer cliente
// consegue inventar paths. Key só é guardada quando o store pede.
type StatsEvent struct {
	Scope   string
	Key     Key
	Allowed bool
	Route   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas das decisões.
//
// O middleware trata erro como best-effort (não derruba request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
