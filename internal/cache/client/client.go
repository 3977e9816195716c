// Package client содержит типизированный клиент кэша для приложений.
//
// Client проверяет аргументы, ограничивает каждый вызов таймаутом операции,
// кодирует структурированные значения через Codec и сводит любые ошибки
// к доменным видам. Повторов нет, ошибки не скрываются: отсутствие ключа
// единственный результат без ошибки.
package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/mo"
	"go.uber.org/zap"

	"coffeecache/internal/cache/codec"
	"coffeecache/internal/cache/domain"
	"coffeecache/internal/cache/metrics"
	"coffeecache/internal/cache/ports/cache"
	"coffeecache/pkg/logger"
)

const (
	LogOperation       = "cache operation"
	LogOperationFailed = "cache operation failed"
)

// Client безопасен для конкурентного использования.
type Client struct {
	store   cache.Store
	codec   cache.Codec
	timeout time.Duration
	metrics metrics.Recorder
	clock   clock.Clock
	closed  atomic.Bool
}

// Option настраивает Client.
type Option func(*Client)

// WithCodec задает кодек для WriteValue и ReadAs. По умолчанию JSON.
func WithCodec(c cache.Codec) Option {
	return func(cl *Client) {
		if c != nil {
			cl.codec = c
		}
	}
}

// WithOperationTimeout ограничивает каждый вызов. Ноль оставляет только дедлайн вызывающего.
func WithOperationTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = d
	}
}

// WithMetrics задает получателя метрик.
func WithMetrics(r metrics.Recorder) Option {
	return func(cl *Client) {
		if r != nil {
			cl.metrics = r
		}
	}
}

// WithClock задает часы для измерения длительности операций.
func WithClock(c clock.Clock) Option {
	return func(cl *Client) {
		if c != nil {
			cl.clock = c
		}
	}
}

// New создает Client поверх store. Клиент владеет store и закрывает его в Close.
func New(store cache.Store, opts ...Option) *Client {
	c := &Client{
		store:   store,
		codec:   codec.JSON{},
		metrics: metrics.Noop{},
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exists сообщает, есть ли по ключу живая запись.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	var found bool
	err := c.run(ctx, domain.OpExists, key, func(ctx context.Context) error {
		var err error
		found, err = c.store.Exists(ctx, key)
		return err
	})
	return found, err
}

// Read возвращает строковое значение или mo.None, если ключа нет или срок истек.
func (c *Client) Read(ctx context.Context, key string) (mo.Option[string], error) {
	value := mo.None[string]()
	err := c.run(ctx, domain.OpRead, key, func(ctx context.Context) error {
		var err error
		value, err = c.store.Get(ctx, key)
		if err == nil {
			c.metrics.Read(value.IsPresent())
		}
		return err
	})
	if err != nil {
		return mo.None[string](), err
	}
	return value, nil
}

// Write сохраняет значение на ttl, заменяя предыдущую запись.
func (c *Client) Write(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.run(ctx, domain.OpWrite, key, func(ctx context.Context) error {
		if err := domain.ValidateTTL(ttl); err != nil {
			return err
		}
		return c.store.Set(ctx, key, value, ttl)
	})
}

// WriteValue кодирует значение кодеком клиента и сохраняет как Write.
// При ошибке кодирования ничего не записывается.
func (c *Client) WriteValue(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.run(ctx, domain.OpWrite, key, func(ctx context.Context) error {
		if err := domain.ValidateTTL(ttl); err != nil {
			return err
		}
		data, err := c.codec.Marshal(value)
		if err != nil {
			return ensureKind(err, domain.ErrSerialization)
		}
		return c.store.Set(ctx, key, string(data), ttl)
	})
}

// Delete удаляет ключ. Удаление отсутствующего ключа не является ошибкой.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.run(ctx, domain.OpDelete, key, func(ctx context.Context) error {
		return c.store.Delete(ctx, key)
	})
}

// Close освобождает хранилище. Действует только первый вызов.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return domain.Wrap(domain.OpClose, "", c.store.Close())
}

// Codec возвращает кодек для структурированных значений.
func (c *Client) Codec() cache.Codec {
	return c.codec
}

// ReadAs читает ключ и декодирует значение в T кодеком клиента.
// Для отсутствующего или истекшего ключа возвращается ErrNotFound.
func ReadAs[T any](ctx context.Context, c *Client, key string) (T, error) {
	var out T

	err := c.run(ctx, domain.OpRead, key, func(ctx context.Context) error {
		raw, err := c.store.Get(ctx, key)
		if err != nil {
			return err
		}
		c.metrics.Read(raw.IsPresent())

		data, ok := raw.Get()
		if !ok {
			return domain.ErrNotFound
		}
		if err := c.codec.Unmarshal([]byte(data), &out); err != nil {
			return ensureKind(err, domain.ErrDeserialization)
		}
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// run проверяет ключ, применяет дедлайн, пишет метрики и оборачивает ошибку.
func (c *Client) run(ctx context.Context, op, key string, fn func(context.Context) error) error {
	start := c.clock.Now()

	err := c.call(ctx, key, fn)
	err = domain.Wrap(op, key, err)

	kind := ""
	if err != nil {
		kind = kindLabel(err)
		logger.Log(ctx).Debug(ctx, LogOperationFailed,
			zap.String("op", op),
			zap.String("key", key),
			zap.String("kind", kind),
			zap.Error(err))
	} else {
		logger.Log(ctx).Debug(ctx, LogOperation,
			zap.String("op", op),
			zap.String("key", key))
	}
	c.metrics.Operation(op, kind, c.clock.Since(start))

	return err
}

func (c *Client) call(ctx context.Context, key string, fn func(context.Context) error) error {
	if c.closed.Load() {
		return domain.ErrClosed
	}
	if err := domain.ValidateKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		// the store may surface a transport error once the deadline cut the call short
		return errors.Join(domain.ErrTimeout, err)
	}
	return err
}

func ensureKind(err, kind error) error {
	if errors.Is(err, kind) {
		return err
	}
	return errors.Join(kind, err)
}

func kindLabel(err error) string {
	switch domain.Kind(err) {
	case domain.ErrInvalidArgument:
		return "invalid_argument"
	case domain.ErrNotFound:
		return "not_found"
	case domain.ErrSerialization:
		return "serialization"
	case domain.ErrDeserialization:
		return "deserialization"
	case domain.ErrTimeout:
		return "timeout"
	case domain.ErrBackingStoreUnavailable:
		return "unavailable"
	case domain.ErrClosed:
		return "closed"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "other"
}
