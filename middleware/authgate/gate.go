package authgate

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidConfig indica configuração inválida do gate. Erro de startup.
var ErrInvalidConfig = errors.New("authgate: invalid config")

// DefaultExemptPaths são as rotas que nunca exigem sessão: assets, o fluxo
// de autenticação em si e o health check.
var DefaultExemptPaths = []string{
	"/_next/static",
	"/_next/image",
	"/favicon.ico",
	"/public",
	"/static",
	"/api/auth",
	"/healthz",
}

type Config struct {
	LoginPath string
	HomePath  string
	// ExemptPaths casa o path exato ou qualquer subpath dele
	// ("/api/auth" cobre "/api/auth/callback", mas não "/api/authz").
	ExemptPaths []string
}

type Action int

const (
	Continue Action = iota
	Redirect
)

func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Redirect:
		return "redirect"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

type Decision struct {
	Action Action
	// Location só é preenchido quando Action == Redirect.
	Location string
}

func continueDecision() Decision { return Decision{Action: Continue} }

func redirectTo(loc string) Decision { return Decision{Action: Redirect, Location: loc} }

type Gate struct {
	loginPath string
	homePath  string
	exempt    []string
}

// NewGate valida cfg. Nada é preenchido por padrão: login e home precisam ser
// informados.
func NewGate(cfg Config) (*Gate, error) {
	login, err := cleanRoute("login path", cfg.LoginPath)
	if err != nil {
		return nil, err
	}
	home, err := cleanRoute("home path", cfg.HomePath)
	if err != nil {
		return nil, err
	}
	if login == home {
		return nil, fmt.Errorf("%w: login path and home path must differ (%q)", ErrInvalidConfig, login)
	}

	exempt := make([]string, 0, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		c, err := cleanRoute("exempt path", p)
		if err != nil {
			return nil, err
		}
		if c == "/" {
			return nil, fmt.Errorf("%w: \"/\" cannot be exempt", ErrInvalidConfig)
		}
		exempt = append(exempt, c)
	}

	return &Gate{loginPath: login, homePath: home, exempt: exempt}, nil
}

func cleanRoute(name, p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidConfig, name)
	}
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %s must be absolute, got %q", ErrInvalidConfig, name, p)
	}
	return path.Clean(p), nil
}

func (g *Gate) LoginPath() string { return g.loginPath }
func (g *Gate) HomePath() string  { return g.homePath }

// Decide aplica as regras na ordem: rota de login, rotas isentas e por fim o
// estado de autenticação. O path é normalizado antes de qualquer comparação,
// então "/api/auth/../dashboard" é tratado como "/dashboard".
func (g *Gate) Decide(p string, authenticated bool) Decision {
	p = normalize(p)

	if g.isLogin(p) {
		if authenticated {
			return redirectTo(g.homePath)
		}
		return continueDecision()
	}

	if g.isExempt(p) != "" {
		return continueDecision()
	}

	if !authenticated {
		return redirectTo(g.loginPath)
	}
	return continueDecision()
}

// Classify devolve um rótulo de cardinalidade fixa para p: "login",
// "exempt:<entrada>" ou "protected". Usado em estatísticas no lugar do path
// bruto.
func (g *Gate) Classify(p string) string {
	p = normalize(p)
	if g.isLogin(p) {
		return "login"
	}
	if e := g.isExempt(p); e != "" {
		return "exempt:" + e
	}
	return "protected"
}

// normalize resolve "." e ".." e garante a barra inicial.
func normalize(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func (g *Gate) isLogin(p string) bool {
	return p == g.loginPath || isBelow(p, g.loginPath)
}

// IsExempt informa se p dispensa sessão.
func (g *Gate) IsExempt(p string) bool {
	return g.isExempt(normalize(p)) != ""
}

// isExempt devolve a entrada que cobre p (já normalizado), ou "".
func (g *Gate) isExempt(p string) string {
	for _, e := range g.exempt {
		if p == e || isBelow(p, e) {
			return e
		}
	}
	return ""
}

// isBelow informa se p está abaixo de prefix numa fronteira de segmento.
func isBelow(p, prefix string) bool {
	return strings.HasPrefix(p, prefix) && len(p) > len(prefix) && p[len(prefix)] == '/'
}
