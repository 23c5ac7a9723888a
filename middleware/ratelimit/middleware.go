package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"assistant-gateway/middleware/ratelimit/application"
	"assistant-gateway/middleware/ratelimit/domain"
)

type Options struct {
	// Store é obrigatório na prática; nil deixa tudo passar.
	Store domain.LimiterStore
	Stats domain.StatsStore
	// Scope nomeia a classe de rotas (ex.: "model", "api") em logs e stats.
	Scope  string
	Clock  domain.Clock
	Logger *slog.Logger

	KeyFn              KeyFunc
	// RouteLabel nomeia a rota nas estatísticas. O padrão é "<METHOD> <path>",
	// que só é seguro quando o middleware roda depois do roteamento (rotas
	// conhecidas); com um router, prefira o padrão da rota casada.
	RouteLabel         func(r *http.Request) string
	KeyHeader          string
	TrustXForwardedFor bool

	// AddRateLimitHeaders adiciona X-RateLimit-* também nas respostas permitidas.
	// Desligado, uma requisição permitida passa sem nenhum header novo.
	AddRateLimitHeaders bool
}

// tooManyRequestsBody é o corpo JSON do 429.
type tooManyRequestsBody struct {
	Error      string `json:"error"`
	RetryAfter int    `json:"retryAfter"`
}

func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock
	}
	if opts.RouteLabel == nil {
		opts.RouteLabel = func(r *http.Request) string { return r.Method + " " + r.URL.Path }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	svc := application.Service{
		Store:  opts.Store,
		Clock:  opts.Clock,
		Logger: opts.Logger,
		Scope:  opts.Scope,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := domain.Key(opts.KeyFn(r))

			dec := svc.Decide(r.Context(), key)
			if opts.Stats != nil {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Scope:   opts.Scope,
					Key:     key,
					Allowed: dec.Allowed,
					Route:   opts.RouteLabel(r),
					At:      opts.Clock.Now(),
				}); err != nil {
					opts.Logger.DebugContext(r.Context(), "rate limit stats failed", "error", err)
				}
			}

			if opts.AddRateLimitHeaders && dec.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
				if !dec.ResetAt.IsZero() {
					w.Header().Set("X-RateLimit-Reset", formatUnix(dec.ResetAt))
				}
			}

			if !dec.Allowed {
				secs := dec.RetryAfterSeconds()
				opts.Logger.InfoContext(r.Context(), "rate limit exceeded",
					"scope", opts.Scope,
					"key", string(key),
					"path", r.URL.Path,
					"retry_after", secs,
				)
				writeTooManyRequests(w, secs)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeTooManyRequests(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Retry-After", formatInt(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(tooManyRequestsBody{
		Error:      "Too many requests",
		RetryAfter: retryAfter,
	})
}
