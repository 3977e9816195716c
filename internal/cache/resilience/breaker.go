package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"coffeecache/internal/cache/domain"
	"coffeecache/pkg/logger"
)

const LogCircuitStateChange = "circuit breaker state changed"

// BreakerConfig содержит настройки Circuit Breaker.
type BreakerConfig struct {
	// Disabled отключает Circuit Breaker.
	Disabled bool
	// FailureThreshold - число подряд идущих сбоев транспорта до размыкания.
	FailureThreshold uint32
	// OpenTimeout - время в разомкнутом состоянии до пробных запросов.
	OpenTimeout time.Duration
	// HalfOpenRequests - число пробных запросов в полуоткрытом состоянии.
	HalfOpenRequests uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		OpenTimeout:      10 * time.Second,
		HalfOpenRequests: 1,
	}
}

// Breaker сразу возвращает ErrBackingStoreUnavailable, пока хранилище недоступно.
// Сбоем считается только ErrBackingStoreUnavailable.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.Disabled {
		return &Breaker{}
	}
	if config.FailureThreshold == 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.HalfOpenRequests,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, domain.ErrBackingStoreUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := context.Background()
			logger.Log(ctx).Warn(ctx, LogCircuitStateChange,
				zap.String("circuit_breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

// Execute выполняет fn, если цепь не разомкнута.
func (b *Breaker) Execute(fn func() error) error {
	if b.cb == nil {
		return fn()
	}

	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrBackingStoreUnavailable, err)
	}
	return err
}

// State возвращает состояние; отключенный Circuit Breaker всегда замкнут.
func (b *Breaker) State() gobreaker.State {
	if b.cb == nil {
		return gobreaker.StateClosed
	}
	return b.cb.State()
}
