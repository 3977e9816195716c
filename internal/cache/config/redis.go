package config

import (
	"net"
	"strconv"
	"time"
)

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Host            string        `yaml:"host" env:"CACHE_REDIS_HOST" env-default:"localhost"`
	Port            int           `yaml:"port" env:"CACHE_REDIS_PORT" env-default:"6379"`
	Password        string        `yaml:"password" env:"CACHE_REDIS_PASSWORD" env-default:""`
	DB              int           `yaml:"db" env:"CACHE_REDIS_DB" env-default:"0"`
	KeyPrefix       string        `yaml:"key_prefix" env:"CACHE_REDIS_KEY_PREFIX" env-default:""`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"CACHE_REDIS_CONNECT_TIMEOUT" env-default:"5s"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"CACHE_REDIS_READ_TIMEOUT" env-default:"3s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"CACHE_REDIS_WRITE_TIMEOUT" env-default:"3s"`
	PoolSize        int           `yaml:"pool_size" env:"CACHE_REDIS_POOL_SIZE" env-default:"10"`
	MinIdle         int           `yaml:"min_idle" env:"CACHE_REDIS_MIN_IDLE" env-default:"2"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"CACHE_REDIS_IDLE_TIMEOUT" env-default:"5m"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"CACHE_REDIS_MAX_CONN_LIFETIME" env-default:"1h"`

	BreakerDisabled         bool          `yaml:"breaker_disabled" env:"CACHE_REDIS_BREAKER_DISABLED" env-default:"false"`
	BreakerFailureThreshold uint32        `yaml:"breaker_failure_threshold" env:"CACHE_REDIS_BREAKER_FAILURE_THRESHOLD" env-default:"5"`
	BreakerOpenTimeout      time.Duration `yaml:"breaker_open_timeout" env:"CACHE_REDIS_BREAKER_OPEN_TIMEOUT" env-default:"10s"`

	RetryAttempts       int           `yaml:"retry_attempts" env:"CACHE_REDIS_RETRY_ATTEMPTS" env-default:"1"`
	RetryInitialBackoff time.Duration `yaml:"retry_initial_backoff" env:"CACHE_REDIS_RETRY_INITIAL_BACKOFF" env-default:"50ms"`
	RetryMaxBackoff     time.Duration `yaml:"retry_max_backoff" env:"CACHE_REDIS_RETRY_MAX_BACKOFF" env-default:"1s"`
}

// GetAddressString возвращает адрес в формате host:port.
func (c *RedisConfig) GetAddressString() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
