package application

import (
	"context"
	"log/slog"

	"assistant-gateway/middleware/ratelimit/domain"
)

// Service concentra a regra de aplicação do rate limit.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
// O limiter nunca falha: erro do store (ex.: Redis fora) vira Allow e é logado.
type Service struct {
	Store  domain.LimiterStore
	Clock  domain.Clock
	Logger *slog.Logger
	// Scope só aparece nos logs.
	Scope string
}

func (s Service) Decide(ctx context.Context, key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.Clock == nil {
		s.Clock = domain.SystemClock
	}

	dec, err := s.Store.Check(ctx, key, s.Clock.Now())
	if err != nil {
		s.logger().WarnContext(ctx, "rate limit store failed, allowing request",
			"scope", s.Scope,
			"key", string(key),
			"error", err,
		)
		return domain.Decision{Allowed: true}
	}
	return dec
}

func (s Service) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
