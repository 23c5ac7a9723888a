package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assistant-gateway/middleware/authgate"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-unit-tests"

func newTestResolver(t *testing.T, now func() time.Time) *JWTResolver {
	t.Helper()
	r, err := NewJWTResolver(testSecret, WithNow(now))
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	return r
}

func TestNewJWTResolver_RequiresSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewJWTResolver("  "); !errors.Is(err, authgate.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestJWTResolver_IssueAndResolve(t *testing.T) {
	t.Parallel()

	now := time.Now()
	res := newTestResolver(t, func() time.Time { return now })

	tok, exp, err := res.Issue("user-123", "dev@example.com", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if !exp.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", exp)
	}

	t.Run("from cookie", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "http://example/dashboard", nil)
		r.AddCookie(&http.Cookie{Name: "session-token", Value: tok})

		sess, err := res.Resolve(r)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if sess.UserID != "user-123" || sess.Email != "dev@example.com" {
			t.Fatalf("unexpected session: %+v", sess)
		}
	})

	t.Run("from bearer header", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "http://example/api/chat", nil)
		r.Header.Set("Authorization", "Bearer "+tok)

		sess, err := res.Resolve(r)
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if !sess.Authenticated() {
			t.Fatalf("expected authenticated session")
		}
	})

	t.Run("without credentials", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest(http.MethodGet, "http://example/dashboard", nil)

		sess, err := res.Resolve(r)
		if err != nil {
			t.Fatalf("expected no error without credentials, got %v", err)
		}
		if sess.Authenticated() {
			t.Fatalf("expected anonymous session")
		}
	})
}

func TestJWTResolver_RejectsExpiredToken(t *testing.T) {
	t.Parallel()

	now := time.Now()
	res := newTestResolver(t, func() time.Time { return now })
	tok, _, err := res.Issue("user-1", "", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	later := newTestResolver(t, func() time.Time { return now.Add(2 * time.Minute) })
	if _, err := later.Parse(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestJWTResolver_RejectsForeignTokens(t *testing.T) {
	t.Parallel()

	res := newTestResolver(t, time.Now)

	tests := []struct {
		name   string
		method jwt.SigningMethod
		secret any
		issuer string
	}{
		{"wrong secret", jwt.SigningMethodHS256, []byte("other-secret"), defaultIssuer},
		{"wrong issuer", jwt.SigningMethodHS256, []byte(testSecret), "someone-else"},
		{"unexpected algorithm", jwt.SigningMethodHS512, []byte(testSecret), defaultIssuer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims := Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Issuer:    tt.issuer,
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
				UserID: "user-1",
			}
			tok, err := jwt.NewWithClaims(tt.method, claims).SignedString(tt.secret)
			if err != nil {
				t.Fatalf("failed to sign token: %v", err)
			}
			if _, err := res.Parse(tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	if _, err := res.Parse("not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}
