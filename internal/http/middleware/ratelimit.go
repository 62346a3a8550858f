package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/mortgage-leads/internal/http/respond"
	"github.com/wolfman30/mortgage-leads/internal/observability/metrics"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

// Counter counts hits per key in fixed windows. Incr must be atomic per key.
type Counter interface {
	// Incr records one hit and returns the hit count in the current window
	// and the time left until that window resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// MemoryCounter keeps windows in process memory.
type MemoryCounter struct {
	mu        sync.Mutex
	windows   map[string]*fixedWindow
	now       func() time.Time
	nextSweep time.Time
}

type fixedWindow struct {
	count   int64
	resetAt time.Time
}

const sweepInterval = 5 * time.Minute

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		windows: make(map[string]*fixedWindow),
		now:     time.Now,
	}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.After(c.nextSweep) {
		// Evict expired windows to bound memory.
		for k, w := range c.windows {
			if !now.Before(w.resetAt) {
				delete(c.windows, k)
			}
		}
		c.nextSweep = now.Add(sweepInterval)
	}

	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &fixedWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt.Sub(now), nil
}

// RedisCounter shares windows across replicas.
type RedisCounter struct {
	redis  *redis.Client
	prefix string
}

// NewRedisCounter returns nil when client is nil.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	if client == nil {
		return nil
	}
	return &RedisCounter{redis: client, prefix: "ratelimit:"}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	redisKey := c.prefix + key
	count, err := c.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit: incr: %w", err)
	}
	if count == 1 {
		if err := c.redis.PExpire(ctx, redisKey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("ratelimit: expire: %w", err)
		}
		return count, window, nil
	}
	ttl, err := c.redis.PTTL(ctx, redisKey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit: ttl: %w", err)
	}
	if ttl <= 0 {
		// a crash between INCR and PEXPIRE left the key without expiry
		if err := c.redis.PExpire(ctx, redisKey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("ratelimit: expire: %w", err)
		}
		ttl = window
	}
	return count, ttl, nil
}

var (
	_ Counter = (*MemoryCounter)(nil)
	_ Counter = (*RedisCounter)(nil)
)

// RateLimitConfig describes one ceiling.
type RateLimitConfig struct {
	// Scope namespaces the counters so ceilings do not share hits.
	Scope   string
	Window  time.Duration
	Max     int64
	Message string
	Counter Counter
	Logger  *logging.Logger
	Metrics *metrics.LeadMetrics
}

// RateLimit returns an HTTP middleware that rejects a client address after Max
// requests within Window with 429 Too Many Requests.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Counter == nil {
		cfg.Counter = NewMemoryCounter()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests, please try again later."
	}
	limit := strconv.FormatInt(cfg.Max, 10)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, reset, err := cfg.Counter.Incr(r.Context(), cfg.Scope+":"+ClientIP(r), cfg.Window)
			if err != nil {
				cfg.Logger.Warn("rate limit counter unavailable", "scope", cfg.Scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			resetSeconds := strconv.FormatInt(int64(math.Ceil(reset.Seconds())), 10)
			remaining := cfg.Max - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("RateLimit-Limit", limit)
			w.Header().Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("RateLimit-Reset", resetSeconds)

			if count > cfg.Max {
				cfg.Metrics.ObserveRateLimited(cfg.Scope)
				cfg.Logger.Warn("rate limit exceeded", "scope", cfg.Scope, "remote_ip", ClientIP(r), "count", count)
				w.Header().Set("Retry-After", resetSeconds)
				respond.Error(w, http.StatusTooManyRequests, cfg.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the request's source address without the port. RemoteAddr
// is the socket peer unless chi's RealIP ran in front of this middleware.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
