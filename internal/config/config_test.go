package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
app:
  name: smells-phishy
  environment: test
  version: 1.2.3

server:
  host: 127.0.0.1
  port: 9090
  shutdown_timeout: 5s

redis:
  host: redis.internal
  port: 6380
  key_prefix: "test:"

rate_limit:
  enabled: true
  requests_per_minute: 30

scan:
  max_urls: 5
  intel_cache_ttl: 15m

intel:
  urlhaus:
    enabled: true
    timeout: 7s
  domainage:
    enabled: true
    min_age_days: 14

ai:
  enabled: true
  provider: anthropic
  model: claude-3-5-haiku-latest
  daily_quota: 200
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, "smells-phishy", cfg.App.Name)
	assert.Equal(t, "test", cfg.App.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr())
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 5, cfg.Scan.MaxURLs)
	assert.Equal(t, 15*time.Minute, cfg.Scan.IntelCacheTTL)
	assert.Equal(t, 7*time.Second, cfg.Intel.URLhaus.Timeout)
	assert.Equal(t, 14, cfg.Intel.DomainAge.MinAgeDays)
	assert.Equal(t, "anthropic", cfg.AI.Provider)
	assert.Equal(t, int64(200), cfg.AI.DailyQuota)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: minimal\n"))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Scan.MaxURLs)
	assert.Equal(t, 64*1024, cfg.Scan.MaxContentBytes)
	assert.Equal(t, 20, cfg.Scan.MaxBatchSize)
	assert.Equal(t, 30*time.Minute, cfg.Scan.IntelCacheTTL)
	assert.InDelta(t, 0.9, cfg.Scan.ShortCircuitConfidence, 0.001)
	assert.Equal(t, int64(500), cfg.AI.DailyQuota)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SMELLSPHISHY_AI_DAILY_QUOTA", "42")
	t.Setenv("SMELLSPHISHY_REDIS_HOST", "env-redis")

	cfg, err := Load(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.AI.DailyQuota)
	assert.Equal(t, "env-redis", cfg.Redis.Host)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
