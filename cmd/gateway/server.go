package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"assistant-gateway/middleware/authgate"
	"assistant-gateway/middleware/ratelimit"
	"assistant-gateway/middleware/ratelimit/domain"
	"assistant-gateway/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// modelRoutes são as rotas que chamam o modelo hospedado: caras, por isso
// passam pelo limiter "model" e pelo limite de concorrência.
var modelRoutes = []string{
	"/api/chat",
	"/api/code-complete",
	"/api/debug-analyze",
}

type deps struct {
	cfg      config
	logger   *slog.Logger
	clock    domain.Clock
	gate     *authgate.Gate
	sessions sessions

	// nil quando o rate limit está desligado.
	modelStore domain.LimiterStore
	apiStore   domain.LimiterStore

	stats domain.StatsStore
	// statsView alimenta /api/gate/stats; nil desliga o endpoint.
	statsView func(ctx context.Context) (infra.Snapshot, error)

	upstream http.Handler
}

func newRouter(d deps) http.Handler {
	if d.clock == nil {
		d.clock = domain.SystemClock
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(authgate.Middleware(authgate.Options{
		Gate:     d.gate,
		Resolver: d.sessions.resolver,
		Logger:   d.logger,
		Stats:    d.stats,
		Clock:    d.clock,
	}))

	r.Get("/healthz", handleHealthz)
	r.Get(d.gate.LoginPath(), handleLogin(d.cfg))
	r.Get(d.gate.HomePath(), handleHome)

	r.Route("/api/auth", func(r chi.Router) {
		if d.cfg.devLogin {
			r.Post("/dev-login", handleDevLogin(d))
		}
		r.Post("/logout", handleLogout(d))
	})

	r.Group(func(r chi.Router) {
		r.Use(d.rateLimit("api", d.apiStore))
		r.Get("/api/gpu-stats", handleGPUStats(d.clock))
		if d.statsView != nil {
			r.Get("/api/gate/stats", handleGateStats(d.statsView, d.logger))
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(d.rateLimit("model", d.modelStore))
		r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
			Max:            d.cfg.concurrencyMax,
			RejectStatus:   http.StatusServiceUnavailable,
			AcquireTimeout: d.cfg.concurrencyTimeout,
			Logger:         d.logger,
		}))
		for _, p := range modelRoutes {
			r.Method(http.MethodPost, p, d.upstream)
		}
	})

	return r
}

// rateLimit monta o limiter de uma classe de rotas. A chave é o usuário
// autenticado e, na falta dele, o IP/header configurado.
func (d deps) rateLimit(scope string, store domain.LimiterStore) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return ratelimit.Middleware(ratelimit.Options{
		Store:  store,
		Stats:  d.stats,
		Scope:  scope,
		Clock:  d.clock,
		Logger: d.logger,
		KeyFn: ratelimit.PreferKeyFunc(
			authgate.UserKeyFunc,
			ratelimit.DefaultKeyFunc(d.cfg.rateKeyHeader, d.cfg.trustXFF),
		),
		RouteLabel:          routePattern,
		AddRateLimitHeaders: d.cfg.addHeaders,
	})
}

// routePattern rotula a requisição pelo padrão de rota casado pelo chi, não
// pelo path recebido.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return r.Method + " " + p
		}
	}
	return r.Method
}

// newModelProxy encaminha as rotas de modelo para o upstream. O cookie de
// sessão nunca sai do gateway; a credencial do upstream é MODEL_API_KEY.
func newModelProxy(target *url.URL, apiKey string, logger *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Del("Cookie")
			pr.Out.Header.Del("Authorization")
			if apiKey != "" {
				pr.Out.Header.Set("Authorization", "Bearer "+apiKey)
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.ErrorContext(r.Context(), "model upstream failed",
				"path", r.URL.Path,
				"error", err,
			)
			writeJSON(w, http.StatusBadGateway, errorBody{
				Error: "An error occurred processing your request",
			})
		},
	}
}
