package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/mortgage-leads/internal/config"
	httpmiddleware "github.com/wolfman30/mortgage-leads/internal/http/middleware"
	"github.com/wolfman30/mortgage-leads/internal/leads"
	"github.com/wolfman30/mortgage-leads/pkg/logging"
)

// Backend names reported at startup.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, falling back to in-memory state", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRateCounter shares rate-limit windows through Redis when available so
// the ceilings hold across replicas.
func BuildRateCounter(redisClient *redis.Client) (httpmiddleware.Counter, string) {
	if redisClient == nil {
		return httpmiddleware.NewMemoryCounter(), BackendMemory
	}
	return httpmiddleware.NewRedisCounter(redisClient), BackendRedis
}

// BuildIdempotencyStore returns the claim store backing Idempotency-Key replays.
// In-flight markers outlive the store and mail timeouts combined.
func BuildIdempotencyStore(redisClient *redis.Client, cfg *appconfig.Config) (leads.IdempotencyStore, string) {
	var ttl, pendingTTL time.Duration
	if cfg != nil {
		ttl = cfg.IdempotencyTTL
		pendingTTL = leads.PendingTTL(cfg.StoreTimeout, cfg.MailTimeout)
	}
	if redisClient == nil {
		return leads.NewMemoryIdempotencyStore(ttl, pendingTTL), BackendMemory
	}
	return leads.NewRedisIdempotencyStore(redisClient, ttl, pendingTTL), BackendRedis
}
