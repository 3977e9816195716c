// Package redis предоставляет общую реализацию подключения к Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultPoolSize    = 10
	DefaultDialTimeout = 5 * time.Second
)

const errFailedToConnect = "failed to connect to Redis"

// ErrEmptyAddr возвращается Connect, если адрес не задан.
var ErrEmptyAddr = errors.New("redis address is empty")

// Config содержит настройки подключения к Redis. Нулевые значения берутся
// из go-redis, кроме PoolSize и DialTimeout, для них есть значения пакета.
type Config struct {
	Addr            string
	Password        string
	DB              int
	PoolSize        int
	MinIdleConns    int
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	// MaxRetries передается как есть; -1 отключает повторы драйвера.
	MaxRetries int
}

// Options преобразует cfg в настройки go-redis.
func (cfg *Config) Options() *redis.Options {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	return &redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        poolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     dialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		MaxRetries:      cfg.MaxRetries,

		// иначе дедлайн контекста не ограничивает чтение и запись в сокет
		ContextTimeoutEnabled: true,
	}
}

// Connect создает клиент и проверяет соединение командой PING с таймаутом
// подключения. При неудачной проверке клиент закрывается.
func Connect(ctx context.Context, cfg *Config) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, ErrEmptyAddr
	}

	opts := cfg.Options()
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", errFailedToConnect, err)
	}

	return rdb, nil
}
