package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"time"

	"assistant-gateway/middleware/authgate"
	"assistant-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
	"github.com/vardius/shutdown"
)

func main() {
	cfg, err := readConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate, err := authgate.NewGate(authgate.Config{
		LoginPath:   cfg.loginPath,
		HomePath:    cfg.homePath,
		ExemptPaths: cfg.exemptPaths,
	})
	if err != nil {
		log.Fatalf("auth gate error: %v", err)
	}

	sess, err := openSessions(ctx, cfg)
	if err != nil {
		log.Fatalf("session backend error: %v", err)
	}
	defer func() { _ = sess.close() }()
	purgeSessions(ctx, sess, 10*time.Minute, logger)

	var rdb *redis.Client
	if cfg.needsRedis() {
		rdb, err = openRedis(ctx, cfg)
		if err != nil {
			log.Fatalf("redis error: %v", err)
		}
		defer func() { _ = rdb.Close() }()
	}

	var modelStore, apiStore domain.LimiterStore
	if cfg.rateEnabled {
		if modelStore, err = newLimiterStore(ctx, cfg, rdb, "model", cfg.modelRule()); err != nil {
			log.Fatalf("model rate limiter error: %v", err)
		}
		if apiStore, err = newLimiterStore(ctx, cfg, rdb, "api", cfg.apiRule()); err != nil {
			log.Fatalf("api rate limiter error: %v", err)
		}
	}
	stats, statsView := newStatsStore(cfg, rdb)

	h := newRouter(deps{
		cfg:        cfg,
		logger:     logger,
		gate:       gate,
		sessions:   sess,
		modelStore: modelStore,
		apiStore:   apiStore,
		stats:      stats,
		statsView:  statsView,
		upstream:   newModelProxy(cfg.upstreamURL, cfg.modelAPIKey, logger),
	})

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// as rotas de modelo podem demorar
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	logger.Info("gateway listening",
		"addr", cfg.listenAddr,
		"upstream", cfg.upstreamURL.String(),
	)
	logger.Info("auth gate",
		"session_backend", cfg.sessionBackend,
		"login", gate.LoginPath(),
		"home", gate.HomePath(),
		"exempt", cfg.exemptPaths,
		"dev_login", cfg.devLogin,
	)
	logger.Info("rate limit",
		"enabled", cfg.rateEnabled,
		"algorithm", cfg.rateAlgorithm,
		"backend", cfg.rateBackend,
		"model_limit", cfg.modelLimit,
		"model_window", cfg.modelWindow,
		"api_limit", cfg.apiLimit,
		"api_window", cfg.apiWindow,
		"key_header", cfg.rateKeyHeader,
		"trust_xff", cfg.trustXFF,
	)
	logger.Info("rate stats",
		"enabled", cfg.rateStatsEnabled,
		"backend", cfg.rateStatsBackend,
		"bucket", cfg.rateStatsBucket,
		"ttl", cfg.rateStatsTTL,
		"track_keys", cfg.rateStatsTrackKeys,
	)
	logger.Info("concurrency", "max", cfg.concurrencyMax, "acquire_timeout", cfg.concurrencyTimeout)

	shutdown.GracefulStop(func() {
		logger.Info("shutting down")
		cancel()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	})
}
