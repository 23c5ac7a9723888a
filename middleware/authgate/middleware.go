package authgate

import (
	"fmt"
	"log/slog"
	"net/http"

	"assistant-gateway/middleware/ratelimit/domain"
)

type Options struct {
	Gate     *Gate
	Resolver SessionResolver
	Logger   *slog.Logger
	// Stats recebe um evento por decisão (Scope "auth"; Allowed = Continue).
	// A rota do evento é o rótulo de Gate.Classify, nunca o path bruto.
	Stats domain.StatsStore
	Clock domain.Clock
}

// Middleware aplica o gate antes do roteamento. Redirect usa 307 para
// preservar método e corpo.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.Gate == nil {
		panic("authgate: Gate is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := resolve(opts.Resolver, r, opts.Logger)

			dec := opts.Gate.Decide(r.URL.Path, sess.Authenticated())
			if opts.Stats != nil {
				if err := opts.Stats.Record(r.Context(), domain.StatsEvent{
					Scope:   "auth",
					Allowed: dec.Action == Continue,
					Route:   opts.Gate.Classify(r.URL.Path),
					At:      opts.Clock.Now(),
				}); err != nil {
					opts.Logger.DebugContext(r.Context(), "auth stats failed", "error", err)
				}
			}

			if dec.Action == Redirect {
				opts.Logger.DebugContext(r.Context(), "auth redirect",
					"path", r.URL.Path,
					"location", dec.Location,
				)
				http.Redirect(w, r, dec.Location, http.StatusTemporaryRedirect)
				return
			}

			if sess.Authenticated() {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve nunca falha: erro ou panic no resolver vira sessão vazia.
func resolve(res SessionResolver, r *http.Request, logger *slog.Logger) (sess Session) {
	if res == nil {
		return Session{}
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.WarnContext(r.Context(), "session resolver panicked",
				"path", r.URL.Path,
				"panic", fmt.Sprint(rec),
			)
			sess = Session{}
		}
	}()

	s, err := res.Resolve(r)
	if err != nil {
		logger.WarnContext(r.Context(), "session resolution failed",
			"path", r.URL.Path,
			"error", err,
		)
		return Session{}
	}
	return s
}
