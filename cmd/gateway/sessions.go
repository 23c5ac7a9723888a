package main

import (
	"context"
	"fmt"
	"time"

	"assistant-gateway/middleware/authgate"
	"assistant-gateway/middleware/authgate/session"
)

// sessions junta o resolver usado pelo gate com as operações de emissão e
// revogação usadas pelas rotas /api/auth.
type sessions struct {
	resolver authgate.SessionResolver
	cookie   string
	issue    func(ctx context.Context, userID, email string, ttl time.Duration) (string, time.Time, error)
	revoke   func(ctx context.Context, token string) error
	purge    func(ctx context.Context) (int64, error)
	close    func() error
}

func openSessions(ctx context.Context, cfg config) (sessions, error) {
	switch cfg.sessionBackend {
	case "sql":
		store, err := session.OpenSQLStore(ctx, cfg.sessionDSN, session.WithSQLCookieName(cfg.sessionCookie))
		if err != nil {
			return sessions{}, err
		}
		return sessions{
			resolver: store,
			cookie:   store.CookieName(),
			issue:    store.Create,
			revoke:   store.Delete,
			purge:    store.PurgeExpired,
			close:    store.Close,
		}, nil

	case "jwt":
		res, err := session.NewJWTResolver(cfg.sessionSecret, session.WithCookieName(cfg.sessionCookie))
		if err != nil {
			return sessions{}, err
		}
		return sessions{
			resolver: res,
			cookie:   res.CookieName(),
			issue: func(_ context.Context, userID, email string, ttl time.Duration) (string, time.Time, error) {
				return res.Issue(userID, email, ttl)
			},
			// JWT não tem estado no servidor: logout só apaga o cookie.
			revoke: func(context.Context, string) error { return nil },
			purge:  func(context.Context) (int64, error) { return 0, nil },
			close:  func() error { return nil },
		}, nil

	default:
		return sessions{}, fmt.Errorf("unknown session backend %q", cfg.sessionBackend)
	}
}
