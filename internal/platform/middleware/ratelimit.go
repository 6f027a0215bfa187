package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// Limiter decides whether the caller identified by key may proceed. When it
// may not, retryAfter is the suggested wait in seconds.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, retryAfter int, err error)
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

func (b *tokenBucket) allow() (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, 1
	}
	return false, int((1-b.tokens)/b.refillRate) + 1
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	buckets map[string]*tokenBucket
	mu      sync.RWMutex
	config  RateLimitConfig
}

func NewMemoryLimiter(cfg RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*tokenBucket),
		config:  cfg,
	}
}

func (s *MemoryLimiter) Allow(_ context.Context, key string) (bool, int, error) {
	ok, retry := s.getBucket(key).allow()
	return ok, retry, nil
}

func (s *MemoryLimiter) getBucket(key string) *tokenBucket {
	s.mu.RLock()
	bucket, ok := s.buckets[key]
	s.mu.RUnlock()
	if ok {
		return bucket
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Double-check after acquiring write lock
	if bucket, ok := s.buckets[key]; ok {
		return bucket
	}
	bucket = newTokenBucket(s.config.RequestsPerSecond, s.config.BurstSize)
	s.buckets[key] = bucket
	return bucket
}

// RedisLimiter is a fixed one-second window counter shared by every
// replica. The window admits BurstSize requests.
type RedisLimiter struct {
	rdb    redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

func NewRedisLimiter(rdb redis.Cmdable, cfg RateLimitConfig) *RedisLimiter {
	limit := int64(cfg.BurstSize)
	if limit <= 0 {
		limit = int64(cfg.RequestsPerSecond)
	}
	return &RedisLimiter{rdb: rdb, prefix: "ratelimit:", limit: limit, window: time.Second}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	now := time.Now()
	bucket := fmt.Sprintf("%s%s:%d", l.prefix, key, now.Unix())

	count, err := l.rdb.Incr(ctx, bucket).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, bucket, 2*l.window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count > l.limit {
		return false, 1, nil
	}
	return true, 0, nil
}

// RateLimit returns a rate limiting middleware backed by an in-memory limiter.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return RateLimitWith(NewMemoryLimiter(cfg), cfg)
}

// RateLimitWith returns a rate limiting middleware using the given limiter.
// Limiter errors fail open so a Redis outage does not take the API down.
func RateLimitWith(limiter Limiter, cfg RateLimitConfig) echo.MiddlewareFunc {
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if uid, ok := c.Get("user_id").(string); ok && uid != "" {
				key = uid + ":" + key
			}

			ok, retryAfter, err := limiter.Allow(c.Request().Context(), key)
			if err != nil {
				c.Logger().Warnf("rate limiter unavailable: %v", err)
				ok = true
			}

			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)
			if !ok {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
