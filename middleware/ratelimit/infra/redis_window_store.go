package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"assistant-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript faz o check-and-increment de forma atômica no Redis.
//
// KEYS[1] = contador, ARGV[1] = limit, ARGV[2] = janela em ms.
// Retorna {count, pttl, allowed}. O contador só é incrementado abaixo do limite.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current >= limit then
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl < 0 then
		redis.call("PEXPIRE", KEYS[1], window)
		ttl = window
	end
	return {current, ttl, 0}
end
local n = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], window)
	ttl = window
end
return {n, ttl, 1}
`)

// RedisWindowStore é a janela fixa compartilhada entre várias instâncias do
// gateway. A expiração da chave no Redis faz o papel do reset da janela, então
// não há janitor: o relógio que vale é o do Redis (o `now` recebido é ignorado).
type RedisWindowStore struct {
	rdb    *redis.Client
	rule   domain.Rule
	prefix string
}

type RedisWindowOption func(*RedisWindowStore)

func WithWindowPrefix(prefix string) RedisWindowOption {
	return func(s *RedisWindowStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisWindowStore(rdb *redis.Client, rule domain.Rule, opts ...RedisWindowOption) (*RedisWindowStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	// o script trabalha em ms: PEXPIRE 0 apagaria o contador
	if rule.Window < time.Millisecond {
		return nil, fmt.Errorf("%w: redis window must be >= 1ms, got %s", domain.ErrInvalidWindow, rule.Window)
	}
	s := &RedisWindowStore{
		rdb:    rdb,
		rule:   rule,
		prefix: "ratelimit:window",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RedisWindowStore) Limit() int            { return s.rule.Limit }
func (s *RedisWindowStore) Window() time.Duration { return s.rule.Window }

// Check implementa domain.LimiterStore.
func (s *RedisWindowStore) Check(ctx context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	redisKey := s.prefix + ":" + string(key)

	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{redisKey}, s.rule.Limit, s.rule.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("redis fixed window: %w", err)
	}
	if len(res) != 3 {
		return domain.Decision{}, fmt.Errorf("redis fixed window: unexpected reply %v", res)
	}

	count, ttl, allowed := int(res[0]), time.Duration(res[1])*time.Millisecond, res[2] == 1
	resetAt := now.Add(ttl)
	if allowed {
		return domain.Allow(s.rule.Limit, s.rule.Limit-count, resetAt), nil
	}
	return domain.Deny(s.rule.Limit, resetAt, ttl), nil
}
