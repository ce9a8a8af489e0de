package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Git-Robbed/smells-phishy/internal/config"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

// RedisCache wraps the Redis client with typed operations
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *logger.Logger
}

// NewRedis creates a new Redis client
func NewRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*RedisCache, error) {
	log = log.WithComponent("redis")
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	log.Info().Msg("connected to Redis successfully")

	return &RedisCache{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		logger:    log,
	}, nil
}

// Client returns the underlying Redis client
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	c.logger.Info().Msg("closing Redis connection")
	return c.client.Close()
}

// key prepends the namespace prefix to a key
func (c *RedisCache) key(k string) string {
	return c.keyPrefix + k
}

// Get retrieves a value from cache
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, c.key(key)).Result()
}

// GetJSON retrieves and unmarshals a JSON value from cache
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Set stores a value in cache with optional TTL
func (c *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

// SetJSON marshals and stores a value in cache
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, string(data), ttl)
}

// Delete removes a key from cache
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	prefixedKeys := make([]string, len(keys))
	for i, k := range keys {
		prefixedKeys[i] = c.key(k)
	}
	return c.client.Del(ctx, prefixedKeys...).Err()
}

// Incr increments an integer value
func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, c.key(key)).Result()
}

// Pipeline returns a Redis pipeline for batch operations
func (c *RedisCache) Pipeline() redis.Pipeliner {
	return c.client.Pipeline()
}

// Cache key constants
const (
	// Per-URL, per-checker intel lookup results
	KeyIntelPrefix = "intel:"

	// Rate limiting keys
	KeyRateLimitPrefix = "rate_limit:"

	// AI classifier daily quota counter
	KeyAIQuotaPrefix = "ai_quota:"
)

// CacheIntelFinding caches an intel lookup by checker slug and URL hash
func (c *RedisCache) CacheIntelFinding(ctx context.Context, checker, urlHash string, data any, ttl time.Duration) error {
	return c.SetJSON(ctx, KeyIntelPrefix+checker+":"+urlHash, data, ttl)
}

// GetCachedIntelFinding retrieves a cached intel lookup
func (c *RedisCache) GetCachedIntelFinding(ctx context.Context, checker, urlHash string, dest any) error {
	return c.GetJSON(ctx, KeyIntelPrefix+checker+":"+urlHash, dest)
}

// CheckRateLimit checks and increments the rate limit counter
// Returns (allowed, remaining, resetTime, error)
func (c *RedisCache) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error) {
	now := time.Now()
	windowKey := fmt.Sprintf("%s%s:%d", KeyRateLimitPrefix, key, now.Unix()/int64(window.Seconds()))

	pipe := c.Pipeline()
	incr := pipe.Incr(ctx, c.key(windowKey))
	pipe.Expire(ctx, c.key(windowKey), window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, time.Time{}, err
	}

	count := incr.Val()
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	resetTime := now.Add(window)

	return count <= limit, remaining, resetTime, nil
}

// ConsumeDailyQuota increments the AI quota counter for the current UTC day.
// Returns (allowed, remaining, error). The key outlives the day by 48h so
// late readers still see yesterday's usage.
func (c *RedisCache) ConsumeDailyQuota(ctx context.Context, limit int64) (bool, int64, error) {
	day := time.Now().UTC().Format("2006-01-02")
	quotaKey := KeyAIQuotaPrefix + day

	pipe := c.Pipeline()
	incr := pipe.Incr(ctx, c.key(quotaKey))
	pipe.Expire(ctx, c.key(quotaKey), 48*time.Hour)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, err
	}

	count := incr.Val()
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	return count <= limit, remaining, nil
}

// DailyQuotaUsed returns today's AI quota usage without incrementing it
func (c *RedisCache) DailyQuotaUsed(ctx context.Context) (int64, error) {
	day := time.Now().UTC().Format("2006-01-02")
	val, err := c.Get(ctx, KeyAIQuotaPrefix+day)
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var used int64
	_, err = fmt.Sscanf(val, "%d", &used)
	return used, err
}
