package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeecache/internal/cache/config"
	"coffeecache/internal/cache/domain"
	"coffeecache/pkg/logger"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, "json", cfg.Cache.Codec)
	assert.Equal(t, 2*time.Second, cfg.Cache.OperationTimeout)
	assert.True(t, cfg.Cache.MetricsEnabled)
	assert.Equal(t, time.Minute, cfg.Memory.SweepInterval)
	assert.Zero(t, cfg.Memory.MaxEntries)
	assert.Equal(t, "localhost:6379", cfg.Redis.GetAddressString())
	assert.Equal(t, 1, cfg.Redis.RetryAttempts)
	assert.Equal(t, uint32(5), cfg.Redis.BreakerFailureThreshold)
	assert.Equal(t, logger.Production, cfg.Logging.GetEnvironment())
	assert.Equal(t, 5*time.Second, cfg.Shutdown.GetTimeout())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_OPERATION_TIMEOUT", "750ms")
	t.Setenv("CACHE_METRICS_ENABLED", "false")
	t.Setenv("CACHE_MEMORY_MAX_ENTRIES", "100")
	t.Setenv("CACHE_REDIS_HOST", "cache.internal")
	t.Setenv("CACHE_REDIS_PORT", "6380")
	t.Setenv("CACHE_REDIS_DB", "3")
	t.Setenv("CACHE_REDIS_KEY_PREFIX", "coffee")
	t.Setenv("CACHE_REDIS_RETRY_ATTEMPTS", "3")
	t.Setenv("CACHE_LOGGER_MODE", "development")
	t.Setenv("CACHE_GRACEFUL_SHUTDOWN_TIMEOUT", "12")

	cfg, err := config.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, config.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 750*time.Millisecond, cfg.Cache.OperationTimeout)
	assert.False(t, cfg.Cache.MetricsEnabled)
	assert.Equal(t, 100, cfg.Memory.MaxEntries)
	assert.Equal(t, "cache.internal:6380", cfg.Redis.GetAddressString())
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "coffee", cfg.Redis.KeyPrefix)
	assert.Equal(t, 3, cfg.Redis.RetryAttempts)
	assert.Equal(t, logger.Development, cfg.Logging.GetEnvironment())
	assert.Equal(t, 12*time.Second, cfg.Shutdown.GetTimeout())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"CACHE_BACKEND": "memcached"}},
		{"unknown codec", map[string]string{"CACHE_CODEC": "xml"}},
		{"zero timeout", map[string]string{"CACHE_OPERATION_TIMEOUT": "0s"}},
		{"negative max entries", map[string]string{"CACHE_MEMORY_MAX_ENTRIES": "-1"}},
		{"zero retry attempts", map[string]string{"CACHE_REDIS_RETRY_ATTEMPTS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := config.Load(context.Background())
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestLoadMalformedValue(t *testing.T) {
	t.Setenv("CACHE_REDIS_PORT", "not-a-port")

	cfg, err := config.Load(context.Background())
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), config.ErrFailedLoadConfig)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	content := `
cache:
  backend: redis
  operation_timeout: 500ms
redis:
  host: redis.internal
  port: 6390
  key_prefix: menu
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(config.EnvConfigFile, path)
	t.Setenv("CACHE_REDIS_PORT", "6391")

	cfg, err := config.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, config.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Cache.OperationTimeout)
	assert.Equal(t, "redis.internal:6391", cfg.Redis.GetAddressString(), "environment wins over the file")
	assert.Equal(t, "menu", cfg.Redis.KeyPrefix)
	assert.Equal(t, "json", cfg.Cache.Codec)
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  backend: etcd\n"), 0o600))

	_, err := config.LoadFile(context.Background(), path)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
