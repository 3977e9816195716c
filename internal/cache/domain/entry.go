// Package domain содержит модель записи кэша и виды ошибок, общие для клиента
// и всех хранилищ.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Entry представляет пару ключ/значение с абсолютным сроком истечения.
type Entry struct {
	Key       string
	Value     string
	ExpiresAt time.Time
}

// NewEntry выставляет срок истечения now+ttl.
func NewEntry(key, value string, ttl time.Duration, now time.Time) Entry {
	return Entry{
		Key:       key,
		Value:     value,
		ExpiresAt: now.Add(ttl),
	}
}

// IsLive сообщает, что срок истечения записи еще не наступил.
func (e Entry) IsLive(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// TTL возвращает оставшееся время, ноль после истечения.
func (e Entry) TTL(now time.Time) time.Duration {
	if left := e.ExpiresAt.Sub(now); left > 0 {
		return left
	}
	return 0
}

// ValidateKey отклоняет пустые ключи и ключи из пробелов.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key must not be empty", ErrInvalidArgument)
	}
	return nil
}

// ValidateTTL отклоняет нулевое и отрицательное время жизни.
func ValidateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidArgument, ttl)
	}
	return nil
}
