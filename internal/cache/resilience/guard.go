package resilience

import (
	"context"

	"go.uber.org/zap"

	"coffeecache/pkg/logger"
)

// Guard выполняет команды хранилища через Circuit Breaker с повторами внутри.
type Guard struct {
	name    string
	breaker *Breaker
	retry   *Retry
}

func NewGuard(name string, breaker BreakerConfig, retry RetryConfig) *Guard {
	return &Guard{
		name:    name,
		breaker: NewBreaker(name, breaker),
		retry:   NewRetry(name, retry),
	}
}

// Do выполняет операцию с отказоустойчивостью.
func (g *Guard) Do(ctx context.Context, operation string, fn func(context.Context) error) error {
	logger.Log(ctx).Debug(ctx, "guarded call",
		zap.String("store", g.name),
		zap.String("operation", operation))

	return g.breaker.Execute(func() error {
		return g.retry.Execute(ctx, fn)
	})
}

// Breaker возвращает используемый Circuit Breaker.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}
