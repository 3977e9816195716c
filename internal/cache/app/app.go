// Package app собирает клиент кэша из конфигурации.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"coffeecache/internal/cache/adapters/memory"
	"coffeecache/internal/cache/adapters/redis"
	"coffeecache/internal/cache/client"
	"coffeecache/internal/cache/codec"
	"coffeecache/internal/cache/config"
	"coffeecache/internal/cache/domain"
	"coffeecache/internal/cache/metrics"
	"coffeecache/internal/cache/ports/cache"
	"coffeecache/pkg/logger"
)

const (
	LogCreatingStore  = "creating backing store"
	LogClientReady    = "cache client ready"
	ErrCreateStore    = "failed to create backing store"
	ErrCreateCodec    = "failed to create codec"
	ErrRegisterMetric = "failed to register metrics"
)

// NewStore создает хранилище, выбранное в cfg.Cache.Backend.
func NewStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	backend := strings.ToLower(cfg.Cache.Backend)
	log := logger.Log(ctx)

	log.Info(ctx, LogCreatingStore, zap.String("backend", backend))

	switch backend {
	case config.BackendMemory:
		return memory.New(memory.Options{
			SweepInterval: cfg.Memory.SweepInterval,
			MaxEntries:    cfg.Memory.MaxEntries,
			Logger:        log,
		}), nil
	case config.BackendRedis:
		store, err := redis.NewStore(ctx, &cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ErrCreateStore, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%s: %w: unknown backend %q", ErrCreateStore, domain.ErrInvalidArgument, cfg.Cache.Backend)
	}
}

// NewClient создает хранилище, кодек и метрики по cfg. Метрики регистрируются
// в reg, если включены; при nil reg они отключены.
func NewClient(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*client.Client, error) {
	c, err := codec.ByName(cfg.Cache.Codec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrCreateCodec, err)
	}

	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var recorder metrics.Recorder = metrics.Noop{}
	withMetrics := cfg.Cache.MetricsEnabled && reg != nil
	if withMetrics {
		p, err := metrics.NewPrometheus(reg)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%s: %w", ErrRegisterMetric, err)
		}
		recorder = p
	}

	logger.Log(ctx).Info(ctx, LogClientReady,
		zap.String("backend", cfg.Cache.Backend),
		zap.String("codec", c.Name()),
		zap.Duration("operation_timeout", cfg.Cache.OperationTimeout),
		zap.Bool("metrics", withMetrics))

	return client.New(store,
		client.WithCodec(c),
		client.WithOperationTimeout(cfg.Cache.OperationTimeout),
		client.WithMetrics(recorder),
	), nil
}
