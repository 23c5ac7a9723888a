package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"assistant-gateway/middleware/authgate"
	"assistant-gateway/middleware/ratelimit/domain"

	"github.com/joho/godotenv"
)

type config struct {
	listenAddr  string
	upstreamURL *url.URL
	modelAPIKey string

	sessionBackend string
	sessionSecret  string
	sessionCookie  string
	sessionTTL     time.Duration
	sessionDSN     string

	loginPath   string
	homePath    string
	exemptPaths []string
	devLogin    bool

	rateEnabled     bool
	modelLimit      int
	modelWindow     time.Duration
	apiLimit        int
	apiWindow       time.Duration
	rateAlgorithm   string
	rateBackend     string
	rateRedisAddr   string
	rateRedisPass   string
	rateRedisDB     int
	rateRedisPrefix string
	rateKeyHeader   string
	trustXFF        bool
	addHeaders      bool

	rateStatsEnabled   bool
	rateStatsBackend   string
	rateStatsPrefix    string
	rateStatsTTL       time.Duration
	rateStatsBucket    string
	rateStatsTrackKeys bool

	concurrencyMax     int
	concurrencyTimeout time.Duration

	logLevel  string
	logFormat string
}

// env lê variáveis acumulando os erros de parse, para que o startup reporte
// todos os problemas de uma vez.
type env struct {
	errs []error
}

func (e *env) fail(format string, args ...any) {
	e.errs = append(e.errs, fmt.Errorf(format, args...))
}

func (e *env) str(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func (e *env) required(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		e.fail("%s is required", k)
	}
	return v
}

func (e *env) integer(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail("%s: invalid integer %q", k, v)
		return def
	}
	return i
}

func (e *env) boolean(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail("%s: invalid bool %q", k, v)
		return def
	}
	return b
}

func (e *env) duration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail("%s: invalid duration %q", k, v)
		return def
	}
	return d
}

func (e *env) list(k string, def []string) []string {
	v, ok := os.LookupEnv(k)
	if !ok {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e *env) oneOf(k, def string, allowed ...string) string {
	v := strings.ToLower(e.str(k, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	e.fail("%s: must be one of %s, got %q", k, strings.Join(allowed, "|"), v)
	return def
}

// readConfig carrega .env (se existir) e lê o ambiente. Limites e janelas
// inválidos são erro, nunca substituídos por padrão.
func readConfig() (config, error) {
	_ = godotenv.Load()

	e := &env{}
	cfg := config{}

	cfg.listenAddr = e.str("LISTEN_ADDR", ":8080")
	if raw := e.required("MODEL_UPSTREAM_URL"); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			e.fail("MODEL_UPSTREAM_URL: invalid url %q", raw)
		}
		cfg.upstreamURL = u
	}
	cfg.modelAPIKey = os.Getenv("MODEL_API_KEY")

	cfg.sessionBackend = e.oneOf("SESSION_BACKEND", "jwt", "jwt", "sql")
	cfg.sessionSecret = os.Getenv("SESSION_SECRET")
	cfg.sessionCookie = e.str("SESSION_COOKIE", "session-token")
	cfg.sessionTTL = e.duration("SESSION_TTL", 24*time.Hour)
	cfg.sessionDSN = e.str("SESSION_DB_DSN", "file:sessions.db")

	cfg.loginPath = e.str("AUTH_LOGIN_PATH", "/login")
	cfg.homePath = e.str("AUTH_HOME_PATH", "/")
	cfg.exemptPaths = e.list("AUTH_EXEMPT_PATHS", authgate.DefaultExemptPaths)
	cfg.devLogin = e.boolean("AUTH_DEV_LOGIN", false)

	cfg.rateEnabled = e.boolean("RATE_ENABLED", true)
	cfg.modelLimit = e.integer("RATE_MODEL_LIMIT", 20)
	cfg.modelWindow = e.duration("RATE_MODEL_WINDOW", 60*time.Second)
	cfg.apiLimit = e.integer("RATE_API_LIMIT", 120)
	cfg.apiWindow = e.duration("RATE_API_WINDOW", 60*time.Second)
	cfg.rateAlgorithm = e.oneOf("RATE_ALGORITHM", "fixed-window", "fixed-window", "token-bucket")
	cfg.rateBackend = e.oneOf("RATE_BACKEND", "memory", "memory", "redis")
	cfg.rateRedisAddr = e.str("RATE_REDIS_ADDR", "")
	cfg.rateRedisPass = os.Getenv("RATE_REDIS_PASSWORD")
	cfg.rateRedisDB = e.integer("RATE_REDIS_DB", 0)
	cfg.rateRedisPrefix = e.str("RATE_REDIS_PREFIX", "ratelimit:window")
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = e.boolean("TRUST_XFF", false)
	cfg.addHeaders = e.boolean("ADD_RATELIMIT_HEADERS", false)

	cfg.rateStatsEnabled = e.boolean("RATE_STATS_ENABLED", false)
	cfg.rateStatsBackend = e.oneOf("RATE_STATS_BACKEND", "memory", "memory", "redis")
	cfg.rateStatsPrefix = e.str("RATE_STATS_PREFIX", "gate:stats")
	cfg.rateStatsTTL = e.duration("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = e.oneOf("RATE_STATS_BUCKET", "minute", "minute", "none")
	cfg.rateStatsTrackKeys = e.boolean("RATE_STATS_TRACK_KEYS", false)

	cfg.concurrencyMax = e.integer("CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = e.duration("CONCURRENCY_TIMEOUT", 0)

	cfg.logLevel = e.oneOf("LOG_LEVEL", "info", "debug", "info", "warn", "error")
	cfg.logFormat = e.oneOf("LOG_FORMAT", "json", "json", "text")

	if cfg.sessionBackend == "jwt" && strings.TrimSpace(cfg.sessionSecret) == "" {
		e.fail("SESSION_SECRET is required when SESSION_BACKEND=jwt")
	}
	if cfg.sessionTTL <= 0 {
		e.fail("SESSION_TTL must be > 0")
	}
	if cfg.rateBackend == "redis" && cfg.rateAlgorithm == "token-bucket" {
		e.fail("RATE_ALGORITHM=token-bucket is only available with RATE_BACKEND=memory")
	}
	if cfg.needsRedis() && cfg.rateRedisAddr == "" {
		e.fail("RATE_REDIS_ADDR is required when a redis backend is selected")
	}
	if cfg.rateEnabled {
		if err := cfg.modelRule().Validate(); err != nil {
			e.fail("RATE_MODEL_*: %w", err)
		}
		if err := cfg.apiRule().Validate(); err != nil {
			e.fail("RATE_API_*: %w", err)
		}
	}
	if cfg.concurrencyMax < 0 {
		e.fail("CONCURRENCY_MAX must be >= 0")
	}

	if len(e.errs) > 0 {
		return config{}, errors.Join(e.errs...)
	}
	return cfg, nil
}

func (c config) modelRule() domain.Rule {
	return domain.Rule{Limit: c.modelLimit, Window: c.modelWindow}
}

func (c config) apiRule() domain.Rule {
	return domain.Rule{Limit: c.apiLimit, Window: c.apiWindow}
}
