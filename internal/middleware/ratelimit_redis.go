package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces rate limit counters in a shared Redis.
const redisKeyPrefix = "storepulse:ratelimit:"

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// kept in Redis, so several API replicas share one budget per client.
// Redis errors fail open: the request is allowed with its full quota and
// the error is counted.
type RedisRateLimitStore struct {
	client  redis.UniversalClient
	metrics *Metrics
	logger  *slog.Logger
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client redis.UniversalClient) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client: client,
		logger: slog.Default(),
	}
}

// WithMetrics sets the collector used to count fail-open events.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// WithLogger sets the logger used for fail-open warnings.
func (s *RedisRateLimitStore) WithLogger(logger *slog.Logger) *RedisRateLimitStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	k := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return s.failOpen(ctx, config, err)
	}

	count := int(incr.Val())
	window := ttl.Val()

	// A fresh counter (or one that lost its TTL) starts a new window.
	if count == 1 || window < 0 {
		if err := s.client.PExpire(ctx, k, config.WindowDuration).Err(); err != nil {
			return s.failOpen(ctx, config, err)
		}
		window = config.WindowDuration
	}

	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}
	return false, 0, secondsUntil(window)
}

func (s *RedisRateLimitStore) failOpen(ctx context.Context, config RateLimitConfig, err error) (bool, int, int) {
	s.metrics.IncRateLimitRedisErrors()
	s.logger.WarnContext(ctx, "rate limit store unavailable, allowing request", "error", err)
	return true, config.RequestsPerWindow, 0
}

// compile-time interface checks
var (
	_ RateLimitStore = (*InMemoryRateLimitStore)(nil)
	_ RateLimitStore = (*RedisRateLimitStore)(nil)
)

// redisDialTimeout keeps fail-open fast when Redis is unreachable.
const redisDialTimeout = 500 * time.Millisecond

// NewRedisClient parses a redis:// URL into a client tuned for rate limiting.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	if opts.DialTimeout == 0 || opts.DialTimeout > redisDialTimeout {
		opts.DialTimeout = redisDialTimeout
	}
	return redis.NewClient(opts), nil
}
