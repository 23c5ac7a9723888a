package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type manualNow struct{ t time.Time }

func (m *manualNow) Now() time.Time { return m.t }

func newTestSQLStore(t *testing.T, now *manualNow) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(context.Background(), ":memory:", WithSQLNow(now.Now))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore_CreateResolveDelete(t *testing.T) {
	ctx := context.Background()
	now := &manualNow{t: time.Unix(1_700_000_000, 0)}
	s := newTestSQLStore(t, now)

	tok, exp, err := s.Create(ctx, "user-1", "dev@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if !exp.Equal(now.t.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", exp)
	}

	r := httptest.NewRequest(http.MethodGet, "http://example/dashboard", nil)
	r.AddCookie(&http.Cookie{Name: s.CookieName(), Value: tok})

	sess, err := s.Resolve(r)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if sess.UserID != "user-1" || sess.Email != "dev@example.com" || !sess.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if err := s.Delete(ctx, tok); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Resolve(r); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after delete, got %v", err)
	}
}

func TestSQLStore_ExpiredSession(t *testing.T) {
	ctx := context.Background()
	now := &manualNow{t: time.Unix(1_700_000_000, 0)}
	s := newTestSQLStore(t, now)

	tok, _, err := s.Create(ctx, "user-1", "", time.Minute)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	now.t = now.t.Add(time.Minute)
	if _, err := s.Lookup(ctx, tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at expiry instant, got %v", err)
	}

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged session, got %d", n)
	}
	if _, err := s.Lookup(ctx, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after purge, got %v", err)
	}
}

func TestSQLStore_NoCookieIsAnonymous(t *testing.T) {
	s := newTestSQLStore(t, &manualNow{t: time.Now()})

	sess, err := s.Resolve(httptest.NewRequest(http.MethodGet, "http://example/", nil))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sess.Authenticated() {
		t.Fatalf("expected anonymous session")
	}
}
