// Package codec предоставляет кодеки для структурированных значений кэша.
package codec

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"coffeecache/internal/cache/domain"
	"coffeecache/internal/cache/ports/cache"
)

// Поддерживаемые кодеки.
const (
	NameJSON = "json"
)

// JSON кодирует значения с помощью goccy/go-json.
type JSON struct{}

var _ cache.Codec = JSON{}

func (JSON) Name() string { return NameJSON }

func (JSON) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSerialization, err)
	}
	return data, nil
}

func (JSON) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeserialization, err)
	}
	return nil
}

// ByName возвращает кодек по имени из конфигурации.
func ByName(name string) (cache.Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameJSON:
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %q", domain.ErrInvalidArgument, name)
	}
}
