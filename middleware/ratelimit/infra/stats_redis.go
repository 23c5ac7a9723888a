package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"assistant-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore agrega as decisões em hashes do Redis, compartilhados entre
// instâncias. Cada scope (limiter "model", "api", o gate "auth") tem suas
// próprias chaves, registradas no set <prefix>:scopes para o Snapshot:
//
//	<prefix>:total                  allowed/denied
//	<prefix>:scopes                 set com os scopes vistos
//	<prefix>:scope:<scope>          allowed/denied
//	<prefix>:scope:<scope>:routes   "<route>|allowed", "<route>|denied" (com TTL)
//	<prefix>:minute:<yyyymmddhhmm>  allowed/denied (com TTL)
//	<prefix>:key:<key>              allowed/denied (opcional, com TTL)
//
// total e scope são cumulativos e não expiram; o resto expira em ttl.
type RedisStatsStore struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	perMinute bool
	trackKeys bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

// WithStatsBucket liga ("minute") ou desliga ("none") a série por minuto.
func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.perMinute = strings.ToLower(strings.TrimSpace(bucket)) != "none"
	}
}

func WithStatsTrackKeys(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackKeys = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:       rdb,
		prefix:    "gate:stats",
		ttl:       24 * time.Hour,
		perMinute: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func outcome(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "denied"
}

func (s *RedisStatsStore) scopeKey(scope string) string  { return s.prefix + ":scope:" + scope }
func (s *RedisStatsStore) routesKey(scope string) string { return s.scopeKey(scope) + ":routes" }

func (s *RedisStatsStore) expire(ctx context.Context, pipe redis.Pipeliner, key string) {
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := outcome(ev.Allowed)
	scope := strings.TrimSpace(ev.Scope)

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if scope != "" {
		pipe.SAdd(ctx, s.prefix+":scopes", scope)
		pipe.HIncrBy(ctx, s.scopeKey(scope), field, 1)
		if ev.Route != "" {
			pipe.HIncrBy(ctx, s.routesKey(scope), ev.Route+"|"+field, 1)
			s.expire(ctx, pipe, s.routesKey(scope))
		}
	}

	if s.perMinute {
		bucketKey := s.prefix + ":minute:" + at.UTC().Format("200601021504")
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		s.expire(ctx, pipe, bucketKey)
	}

	if k := strings.TrimSpace(string(ev.Key)); s.trackKeys && k != "" {
		keyKey := s.prefix + ":key:" + k
		pipe.HIncrBy(ctx, keyKey, field, 1)
		s.expire(ctx, pipe, keyKey)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record stats: %w", err)
	}
	return nil
}

// Snapshot lê os contadores agregados de todas as instâncias. Contadores por
// chave não entram: ficam só no Redis, para consulta operacional.
func (s *RedisStatsStore) Snapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		ByScope: make(map[string]Counters),
		ByRoute: make(map[string]Counters),
	}

	total, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read stats total: %w", err)
	}
	snap.Total = countersFrom(total)

	scopes, err := s.rdb.SMembers(ctx, s.prefix+":scopes").Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read stats scopes: %w", err)
	}
	for _, scope := range scopes {
		counts, err := s.rdb.HGetAll(ctx, s.scopeKey(scope)).Result()
		if err != nil {
			return Snapshot{}, fmt.Errorf("read stats scope %q: %w", scope, err)
		}
		snap.ByScope[scope] = countersFrom(counts)

		routes, err := s.rdb.HGetAll(ctx, s.routesKey(scope)).Result()
		if err != nil {
			return Snapshot{}, fmt.Errorf("read stats routes %q: %w", scope, err)
		}
		for f, v := range routes {
			i := strings.LastIndexByte(f, '|')
			if i < 0 {
				continue
			}
			route, kind := f[:i], f[i+1:]
			n, _ := strconv.ParseInt(v, 10, 64)
			c := snap.ByRoute[route]
			if kind == "allowed" {
				c.Allowed += n
			} else {
				c.Denied += n
			}
			snap.ByRoute[route] = c
		}
	}
	return snap, nil
}

func countersFrom(h map[string]string) Counters {
	allowed, _ := strconv.ParseInt(h["allowed"], 10, 64)
	denied, _ := strconv.ParseInt(h["denied"], 10, 64)
	return Counters{Allowed: allowed, Denied: denied}
}
