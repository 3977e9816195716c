// Package cache определяет интерфейсы, с которыми работает клиент кэша.
package cache

import (
	"context"
	"time"

	"github.com/samber/mo"
)

// Store хранит строковые значения со сроком жизни для каждого ключа.
// Реализации должны быть потокобезопасны, Set выполняется атомарно.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)

	// Get возвращает mo.None для отсутствующего или истекшего ключа, это не ошибка.
	Get(ctx context.Context, key string) (mo.Option[string], error)

	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete идемпотентен.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Codec преобразует структурированные значения в хранимое представление и обратно.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}
