package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"assistant-gateway/middleware/authgate"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("session: invalid token")
	ErrExpired      = errors.New("session: token expired")
)

// Claims é o payload do token de sessão.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

const defaultIssuer = "assistant-gateway"

// JWTResolver valida tokens HS256 vindos do cookie de sessão ou, na falta
// dele, de "Authorization: Bearer".
type JWTResolver struct {
	secret     []byte
	cookieName string
	issuer     string
	now        func() time.Time
}

type JWTOption func(*JWTResolver)

func WithCookieName(name string) JWTOption {
	return func(r *JWTResolver) { r.cookieName = name }
}

func WithIssuer(iss string) JWTOption {
	return func(r *JWTResolver) { r.issuer = iss }
}

// WithNow troca o relógio usado na emissão e na validação.
func WithNow(now func() time.Time) JWTOption {
	return func(r *JWTResolver) { r.now = now }
}

func NewJWTResolver(secret string, opts ...JWTOption) (*JWTResolver, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: session secret is required", authgate.ErrInvalidConfig)
	}
	r := &JWTResolver{
		secret:     []byte(secret),
		cookieName: "session-token",
		issuer:     defaultIssuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *JWTResolver) CookieName() string { return r.cookieName }

// Issue assina um token para o usuário.
func (r *JWTResolver) Issue(userID, email string, ttl time.Duration) (string, time.Time, error) {
	now := r.now()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID: userID,
		Email:  email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

// Resolve implementa authgate.SessionResolver.
func (r *JWTResolver) Resolve(req *http.Request) (authgate.Session, error) {
	raw := tokenFromRequest(req, r.cookieName)
	if raw == "" {
		return authgate.Session{}, nil
	}
	return r.Parse(raw)
}

func (r *JWTResolver) Parse(raw string) (authgate.Session, error) {
	claims := &Claims{}
	keyFunc := func(*jwt.Token) (any, error) { return r.secret, nil }
	_, err := jwt.ParseWithClaims(raw, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(r.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return authgate.Session{}, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return authgate.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return authgate.Session{}, fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}

	return authgate.Session{
		UserID:    claims.UserID,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// tokenFromRequest lê o cookie de sessão e, na falta dele, o Bearer token.
func tokenFromRequest(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}
