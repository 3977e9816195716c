// Package redis содержит реализацию хранилища кэша на go-redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/mo"
	"go.uber.org/zap"

	"coffeecache/internal/cache/config"
	"coffeecache/internal/cache/domain"
	"coffeecache/internal/cache/ports/cache"
	"coffeecache/internal/cache/resilience"
	redisdb "coffeecache/pkg/db/redis"
	"coffeecache/pkg/logger"
)

const (
	LogMethodExists = "exists"
	LogMethodGet    = "get"
	LogMethodSet    = "set"
	LogMethodDelete = "delete"
	LogMethodClose  = "close"

	ErrorFailedToConnect = "failed to connect to redis"
	ErrorFailedToExists  = "failed to check key in redis"
	ErrorFailedToGet     = "failed to get value from redis"
	ErrorFailedToSet     = "failed to set value in redis"
	ErrorFailedToDelete  = "failed to delete value from redis"
	ErrorFailedToClose   = "failed to close redis connection"
)

// Store реализует интерфейс cache.Store с использованием Redis.
type Store struct {
	client goredis.UniversalClient
	prefix string
	guard  *resilience.Guard
	closed atomic.Bool
}

var _ cache.Store = (*Store)(nil)

// NewStore подключается к Redis и проверяет соединение командой PING.
func NewStore(ctx context.Context, cfg *config.RedisConfig) (*Store, error) {
	client, err := redisdb.Connect(ctx, &redisdb.Config{
		Addr:            cfg.GetAddressString(),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdle,
		DialTimeout:     cfg.ConnectTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ConnMaxIdleTime: cfg.IdleTimeout,
		ConnMaxLifetime: cfg.MaxConnLifetime,
		// retries belong to the guard
		MaxRetries: -1,
	})
	if err != nil {
		logger.Log(ctx).Error(ctx, ErrorFailedToConnect,
			zap.String("address", cfg.GetAddressString()),
			zap.Error(err))
		return nil, fmt.Errorf("%s: %w", ErrorFailedToConnect, classify(ctx, err))
	}

	guard := resilience.NewGuard("redis:"+cfg.GetAddressString(), breakerConfig(cfg), retryConfig(cfg))
	return NewStoreFromClient(client, cfg.KeyPrefix, guard), nil
}

// NewStoreFromClient оборачивает готовый клиент. При nil guard используются настройки по умолчанию.
// Клиент должен быть создан с ContextTimeoutEnabled, иначе дедлайн вызова
// не прерывает ожидание ответа от Redis.
func NewStoreFromClient(client goredis.UniversalClient, prefix string, guard *resilience.Guard) *Store {
	if guard == nil {
		guard = resilience.NewGuard("redis", resilience.DefaultBreakerConfig(), resilience.DefaultRetryConfig())
	}
	return &Store{client: client, prefix: prefix, guard: guard}
}

func breakerConfig(cfg *config.RedisConfig) resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Disabled:         cfg.BreakerDisabled,
		FailureThreshold: cfg.BreakerFailureThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		HalfOpenRequests: 1,
	}
}

func retryConfig(cfg *config.RedisConfig) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.MaxAttempts = cfg.RetryAttempts
	rc.InitialBackoff = cfg.RetryInitialBackoff
	rc.MaxBackoff = cfg.RetryMaxBackoff
	return rc
}

func (s *Store) namespaced(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if s.closed.Load() {
		return false, domain.ErrClosed
	}

	var n int64
	err := s.guard.Do(ctx, domain.OpExists, func(ctx context.Context) error {
		var err error
		n, err = s.client.Exists(ctx, s.namespaced(key)).Result()
		return classify(ctx, err)
	})
	if err != nil {
		s.logFailure(ctx, LogMethodExists, key, ErrorFailedToExists, err)
		return false, fmt.Errorf("%s: %w", ErrorFailedToExists, err)
	}
	return n > 0, nil
}

func (s *Store) Get(ctx context.Context, key string) (mo.Option[string], error) {
	if s.closed.Load() {
		return mo.None[string](), domain.ErrClosed
	}

	value := mo.None[string]()
	err := s.guard.Do(ctx, domain.OpRead, func(ctx context.Context) error {
		v, err := s.client.Get(ctx, s.namespaced(key)).Result()
		if errors.Is(err, goredis.Nil) {
			value = mo.None[string]()
			return nil
		}
		if err != nil {
			return classify(ctx, err)
		}
		value = mo.Some(v)
		return nil
	})
	if err != nil {
		s.logFailure(ctx, LogMethodGet, key, ErrorFailedToGet, err)
		return mo.None[string](), fmt.Errorf("%s: %w", ErrorFailedToGet, err)
	}
	return value, nil
}

// Set выполняет один SET с PX, значение и время жизни записываются атомарно.
func (s *Store) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if s.closed.Load() {
		return domain.ErrClosed
	}
	// go-redis treats a zero expiration as "keep forever"
	if err := domain.ValidateTTL(ttl); err != nil {
		return err
	}

	err := s.guard.Do(ctx, domain.OpWrite, func(ctx context.Context) error {
		return classify(ctx, s.client.Set(ctx, s.namespaced(key), value, ttl).Err())
	})
	if err != nil {
		s.logFailure(ctx, LogMethodSet, key, ErrorFailedToSet, err)
		return fmt.Errorf("%s: %w", ErrorFailedToSet, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.closed.Load() {
		return domain.ErrClosed
	}

	err := s.guard.Do(ctx, domain.OpDelete, func(ctx context.Context) error {
		return classify(ctx, s.client.Del(ctx, s.namespaced(key)).Err())
	})
	if err != nil {
		s.logFailure(ctx, LogMethodDelete, key, ErrorFailedToDelete, err)
		return fmt.Errorf("%s: %w", ErrorFailedToDelete, err)
	}
	return nil
}

// Close закрывает соединение с Redis. Повторные вызовы возвращают nil.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("%s: %w", ErrorFailedToClose, err)
	}
	return nil
}

func (s *Store) logFailure(ctx context.Context, method, key, msg string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	logger.Log(ctx).Error(ctx, msg,
		zap.String("method", method),
		zap.String("key", key),
		zap.Error(err))
}

// classify переводит ошибки go-redis в доменные. Ответы сервера с ошибкой
// возвращаются как есть, остальное считается сбоем транспорта. Таймаут сокета
// становится ErrTimeout, только если истек дедлайн вызова: зависший сервер
// без дедлайна вызывающего это недоступность хранилища.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		if deadlinePassed(ctx) {
			return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrBackingStoreUnavailable, err)
	}

	var replyErr goredis.Error
	if errors.As(err, &replyErr) && !errors.Is(err, goredis.ErrClosed) {
		return err
	}

	return fmt.Errorf("%w: %w", domain.ErrBackingStoreUnavailable, err)
}

// deadlinePassed не полагается только на ctx.Err: таймер контекста может
// сработать чуть позже дедлайна сокета, выставленного по тому же времени.
func deadlinePassed(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	dl, ok := ctx.Deadline()
	return ok && !time.Now().Before(dl)
}
