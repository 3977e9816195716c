// Package config содержит конфигурацию клиента кэша, загружаемую из окружения.
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"

	"coffeecache/internal/cache/codec"
	"coffeecache/internal/cache/domain"
	pkgconfig "coffeecache/pkg/config"
	"coffeecache/pkg/logger"
)

const (
	LogLoadingConfig    = "loading cache configuration"
	LogConfigLoaded     = "configuration loaded successfully"
	ErrFailedLoadConfig = "failed to load configuration"
	ErrInvalidConfig    = "invalid configuration"
)

// Названия хранилищ.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config содержит полную конфигурацию сервиса кэша.
type Config struct {
	Cache    ClientConfig   `yaml:"cache"`
	Memory   MemoryConfig   `yaml:"memory"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
}

// ClientConfig содержит настройки самого клиента кэша.
type ClientConfig struct {
	Backend          string        `yaml:"backend" env:"CACHE_BACKEND" env-default:"memory"`
	Codec            string        `yaml:"codec" env:"CACHE_CODEC" env-default:"json"`
	OperationTimeout time.Duration `yaml:"operation_timeout" env:"CACHE_OPERATION_TIMEOUT" env-default:"2s"`
	MetricsEnabled   bool          `yaml:"metrics_enabled" env:"CACHE_METRICS_ENABLED" env-default:"true"`
}

// EnvConfigFile задает необязательный файл конфигурации, читаемый до окружения.
const EnvConfigFile = "CACHE_CONFIG_FILE"

// Load загружает конфигурацию из переменных окружения или из файла
// CACHE_CONFIG_FILE, при этом окружение имеет приоритет.
func Load(ctx context.Context) (*Config, error) {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return LoadFile(ctx, path)
	}

	log := logger.Log(ctx)

	log.Info(ctx, LogLoadingConfig)

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Error(ctx, ErrFailedLoadConfig, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrFailedLoadConfig, err)
	}

	return validated(ctx, &cfg)
}

// LoadFile загружает конфигурацию из файла yaml, json, toml или env.
func LoadFile(ctx context.Context, path string) (*Config, error) {
	cfg, err := pkgconfig.LoadFile[Config](ctx, path)
	if err != nil {
		return nil, err
	}
	return validated(ctx, cfg)
}

func validated(ctx context.Context, cfg *Config) (*Config, error) {
	log := logger.Log(ctx)

	if err := cfg.Validate(); err != nil {
		log.Error(ctx, ErrInvalidConfig, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrInvalidConfig, err)
	}

	log.Info(ctx, LogConfigLoaded,
		zap.String("backend", cfg.Cache.Backend),
		zap.String("codec", cfg.Cache.Codec),
		zap.Duration("operation_timeout", cfg.Cache.OperationTimeout),
		zap.String("log_level", cfg.Logging.Level),
		zap.String("log_mode", cfg.Logging.Mode),
		zap.Int("shutdown_timeout_seconds", cfg.Shutdown.Timeout),
		zap.String("redis_address", cfg.Redis.GetAddressString()))

	return cfg, nil
}

// Validate проверяет, что с настройками можно запустить клиент.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Cache.Backend) {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown backend %q", domain.ErrInvalidArgument, c.Cache.Backend)
	}
	if _, err := codec.ByName(c.Cache.Codec); err != nil {
		return err
	}
	if c.Cache.OperationTimeout <= 0 {
		return fmt.Errorf("%w: operation timeout must be positive", domain.ErrInvalidArgument)
	}
	if c.Memory.MaxEntries < 0 {
		return fmt.Errorf("%w: memory max entries must not be negative", domain.ErrInvalidArgument)
	}
	if c.Redis.RetryAttempts < 1 {
		return fmt.Errorf("%w: redis retry attempts must be at least 1", domain.ErrInvalidArgument)
	}
	return nil
}
