package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"assistant-gateway/middleware/ratelimit/domain"
	"assistant-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
)

func newLogger(cfg config) *slog.Logger {
	var level slog.Level
	switch cfg.logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.logFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func (c config) needsRedis() bool {
	return c.rateEnabled && c.rateBackend == "redis" ||
		c.rateStatsEnabled && c.rateStatsBackend == "redis"
}

func openRedis(ctx context.Context, cfg config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.rateRedisAddr,
		Password: cfg.rateRedisPass,
		DB:       cfg.rateRedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// newLimiterStore cria o store de uma classe de rotas. Os janitors dos stores
// em memória param quando ctx é cancelado.
func newLimiterStore(ctx context.Context, cfg config, rdb *redis.Client, scope string, rule domain.Rule) (domain.LimiterStore, error) {
	switch {
	case cfg.rateBackend == "redis":
		prefix := strings.Trim(cfg.rateRedisPrefix, ":") + ":" + scope
		return infra.NewRedisWindowStore(rdb, rule, infra.WithWindowPrefix(prefix))

	case cfg.rateAlgorithm == "token-bucket":
		s, err := infra.NewTokenBucketStore(rule)
		if err != nil {
			return nil, err
		}
		s.StartJanitor(ctx)
		return s, nil

	default:
		s, err := infra.NewWindowStore(rule)
		if err != nil {
			return nil, err
		}
		s.StartJanitor(ctx)
		return s, nil
	}
}

// newStatsStore devolve o store de estatísticas e a função de leitura usada
// pelo endpoint /api/gate/stats.
func newStatsStore(cfg config, rdb *redis.Client) (domain.StatsStore, func(context.Context) (infra.Snapshot, error)) {
	if !cfg.rateStatsEnabled {
		return nil, nil
	}
	if cfg.rateStatsBackend == "redis" {
		rs := infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
		return rs, rs.Snapshot
	}
	mem := infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.rateStatsTrackKeys))
	return mem, func(context.Context) (infra.Snapshot, error) { return mem.Snapshot(), nil }
}

// purgeSessions apaga sessões vencidas periodicamente até ctx ser cancelado.
func purgeSessions(ctx context.Context, s sessions, every time.Duration, logger *slog.Logger) {
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := s.purge(ctx)
				if err != nil {
					logger.Warn("session purge failed", "error", err)
					continue
				}
				if n > 0 {
					logger.Debug("expired sessions purged", "count", n)
				}
			}
		}
	}()
}
