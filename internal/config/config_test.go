package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/providers")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Empty(t, cfg.Encryption.Key)
	assert.Equal(t, 1000, cfg.Cache.ProviderCacheSize)
	assert.Equal(t, 300*time.Second, cfg.Cache.ProviderCacheTTL)
	assert.False(t, cfg.UsageQueue.UseRedis)
	assert.Equal(t, 100, cfg.UsageQueue.BatchSize)
	assert.Equal(t, 5, cfg.Resilience.FailureThreshold)
	assert.Equal(t, 60*time.Second, cfg.Resilience.RecoveryTimeout)
	assert.True(t, cfg.HealthCheck.Enabled)
	assert.Equal(t, 30*time.Second, cfg.HealthCheck.Interval)
	assert.False(t, cfg.Archiver.Enabled)
	assert.Equal(t, "usage/", cfg.Archiver.S3Prefix)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/providers")
	t.Setenv("LLM_ENCRYPTION_KEY", "super-secret-passphrase")
	t.Setenv("CACHE_PROVIDER_TTL", "2m")
	t.Setenv("USAGE_QUEUE_USE_REDIS", "true")
	t.Setenv("BREAKER_FAILURE_THRESHOLD", "10")
	t.Setenv("RATELIMIT_MAX_RPM", "600")
	t.Setenv("HEALTH_CHECK_ENABLED", "false")
	t.Setenv("USAGE_ARCHIVE_ENABLED", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "super-secret-passphrase", cfg.Encryption.Key)
	assert.Equal(t, 2*time.Minute, cfg.Cache.ProviderCacheTTL)
	assert.True(t, cfg.UsageQueue.UseRedis)
	assert.Equal(t, 10, cfg.Resilience.FailureThreshold)
	assert.Equal(t, 600, cfg.Resilience.MaxRPM)
	assert.False(t, cfg.HealthCheck.Enabled)
	assert.True(t, cfg.Archiver.Enabled)
}

func TestLoad_MalformedValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/providers")
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("CACHE_PROVIDER_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 300*time.Second, cfg.Cache.ProviderCacheTTL)
}
