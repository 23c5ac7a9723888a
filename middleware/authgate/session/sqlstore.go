package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"assistant-gateway/middleware/authgate"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expires_at ON sessions (expires_at);
`

// SQLStore guarda sessões opacas (token aleatório -> usuário) em sqlite.
// Serve quando a sessão precisa ser revogável, coisa que o JWT não é.
type SQLStore struct {
	db         *sql.DB
	cookieName string
	now        func() time.Time
}

type SQLOption func(*SQLStore)

func WithSQLCookieName(name string) SQLOption {
	return func(s *SQLStore) { s.cookieName = name }
}

func WithSQLNow(now func() time.Time) SQLOption {
	return func(s *SQLStore) { s.now = now }
}

// OpenSQLStore abre o banco (driver "sqlite") e garante o schema.
func OpenSQLStore(ctx context.Context, dsn string, opts ...SQLOption) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// sqlite aceita um escritor por vez; ":memory:" também exige conexão única.
	db.SetMaxOpenConns(1)

	s, err := NewSQLStore(ctx, db, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(ctx context.Context, db *sql.DB, opts ...SQLOption) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create sessions schema: %w", err)
	}
	s := &SQLStore{
		db:         db,
		cookieName: "session-token",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLStore) CookieName() string { return s.cookieName }

// Create registra uma sessão nova e devolve o token.
func (s *SQLStore) Create(ctx context.Context, userID, email string, ttl time.Duration) (string, time.Time, error) {
	token := uuid.NewString()
	exp := s.now().Add(ttl)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, email, expires_at) VALUES (?, ?, ?, ?)`,
		token, userID, email, exp.UnixMilli(),
	); err != nil {
		return "", time.Time{}, fmt.Errorf("insert session: %w", err)
	}
	return token, exp, nil
}

func (s *SQLStore) Delete(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Lookup devolve a sessão do token, ErrInvalidToken se não existir e
// ErrExpired se já venceu.
func (s *SQLStore) Lookup(ctx context.Context, token string) (authgate.Session, error) {
	var (
		userID, email string
		expMillis     int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, email, expires_at FROM sessions WHERE token = ?`, token,
	).Scan(&userID, &email, &expMillis)
	if errors.Is(err, sql.ErrNoRows) {
		return authgate.Session{}, ErrInvalidToken
	}
	if err != nil {
		return authgate.Session{}, fmt.Errorf("lookup session: %w", err)
	}

	exp := time.UnixMilli(expMillis)
	if !s.now().Before(exp) {
		return authgate.Session{}, ErrExpired
	}
	return authgate.Session{UserID: userID, Email: email, ExpiresAt: exp}, nil
}

// Resolve implementa authgate.SessionResolver.
func (s *SQLStore) Resolve(r *http.Request) (authgate.Session, error) {
	token := tokenFromRequest(r, s.cookieName)
	if token == "" {
		return authgate.Session{}, nil
	}
	return s.Lookup(r.Context(), token)
}

// PurgeExpired apaga sessões vencidas e retorna quantas saíram.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error { return s.db.Close() }
