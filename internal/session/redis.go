package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/Chative-core-poc-v1/draftflow/internal/core/error"
	"github.com/Chative-core-poc-v1/draftflow/internal/core/metrics"
	logx "github.com/Chative-core-poc-v1/draftflow/pkg/logger"
)

// Dialer establishes the shared Redis connection.
type Dialer func(ctx context.Context) (redis.UniversalClient, error)

// RedisStore is a Store backed by Redis that degrades to an in-process
// MemoryStore whenever Redis cannot be reached. The connection is dialed
// lazily on first use and shared by every caller of the store.
type RedisStore struct {
	dial       Dialer
	fallback   *MemoryStore
	metrics    *metrics.Metrics
	retryAfter time.Duration
	scanCount  int64
	now        func() time.Time

	mu         sync.Mutex
	client     redis.UniversalClient
	lastFailed time.Time
}

// RedisOption customizes a RedisStore.
type RedisOption func(*RedisStore)

// WithRetryAfter sets the cooldown before a failed dial is attempted again.
func WithRetryAfter(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.retryAfter = d }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) RedisOption {
	return func(s *RedisStore) { s.metrics = m }
}

// WithRedisClock overrides the time source used for the dial cooldown.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) { s.now = now }
}

// NewRedisStore creates a store that dials Redis on first use and falls back
// to fallback on failure. A nil fallback gets a default MemoryStore.
func NewRedisStore(dial Dialer, fallback *MemoryStore, opts ...RedisOption) *RedisStore {
	if fallback == nil {
		fallback = NewMemoryStore(0)
	}
	s := &RedisStore{
		dial:       dial,
		fallback:   fallback,
		retryAfter: 30 * time.Second,
		scanCount:  100,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// conn returns the live client, dialing if needed. It returns nil while Redis
// is unreachable and the cooldown has not elapsed.
func (s *RedisStore) conn(ctx context.Context) redis.UniversalClient {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client
	}
	if s.dial == nil {
		return nil
	}
	if !s.lastFailed.IsZero() && s.now().Sub(s.lastFailed) < s.retryAfter {
		return nil
	}

	client, err := s.dial(ctx)
	if err != nil {
		s.lastFailed = s.now()
		logx.Warn().Err(errx.WrapRedis(err)).Dur("retry_after", s.retryAfter).Msg("redis unavailable, using in-memory session store")
		return nil
	}
	logx.Info().Msg("connected to redis session store")
	s.client = client
	s.lastFailed = time.Time{}
	return client
}

func (s *RedisStore) degrade(op, key string, err error) {
	s.metrics.IncCacheFallback(op)
	if err != nil {
		logx.Error().Err(errx.WrapRedis(err)).Str("op", op).Str("key", key).Msg("redis command failed, using in-memory fallback")
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	client := s.conn(ctx)
	if client == nil {
		s.degrade("get", key, nil)
		return s.fallback.Get(ctx, key)
	}

	v, err := client.Get(ctx, key).Result()
	switch {
	case err == nil:
		return v, true
	case errors.Is(err, redis.Nil):
		// values written during an outage only live in memory
		return s.fallback.Get(ctx, key)
	default:
		s.degrade("get", key, err)
		return s.fallback.Get(ctx, key)
	}
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) {
	client := s.conn(ctx)
	if client == nil {
		s.degrade("set", key, nil)
		s.fallback.Set(ctx, key, value, ttl)
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.degrade("set", key, err)
		s.fallback.Set(ctx, key, value, ttl)
		return
	}
	s.fallback.Del(ctx, key)
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	s.fallback.Del(ctx, keys...)
	client := s.conn(ctx)
	if client == nil {
		s.degrade("del", keys[0], nil)
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		s.degrade("del", keys[0], err)
	}
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range s.fallback.Keys(ctx, pattern) {
		add(k)
	}

	client := s.conn(ctx)
	if client == nil {
		s.degrade("keys", pattern, nil)
		return out
	}
	iter := client.Scan(ctx, 0, pattern, s.scanCount).Iterator()
	for iter.Next(ctx) {
		add(iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.degrade("keys", pattern, err)
	}
	return out
}

// Close releases the Redis connection if one was established.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

var _ Store = (*RedisStore)(nil)
