package authgate

import (
	"context"
	"net/http"
	"time"
)

// Session é o resultado opaco da resolução de sessão.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Authenticated é verdadeiro para uma sessão com usuário.
func (s Session) Authenticated() bool { return s.UserID != "" }

// SessionResolver extrai a sessão de uma requisição. Requisição sem
// credencial devolve Session{} e nil; credencial inválida devolve erro.
type SessionResolver interface {
	Resolve(r *http.Request) (Session, error)
}

type ResolverFunc func(r *http.Request) (Session, error)

func (f ResolverFunc) Resolve(r *http.Request) (Session, error) { return f(r) }

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}

// UserKeyFunc devolve o ID do usuário autenticado, prefixado para não colidir
// com IPs. Serve como KeyFunc do rate limiter.
func UserKeyFunc(r *http.Request) string {
	if s, ok := SessionFromContext(r.Context()); ok && s.Authenticated() {
		return "user:" + s.UserID
	}
	return ""
}
