package domain

import (
	"context"
	"errors"
	"fmt"
)

// Виды ошибок. Проверяются через errors.Is.
var (
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrNotFound                = errors.New("key not found")
	ErrSerialization           = errors.New("serialization failed")
	ErrDeserialization         = errors.New("deserialization failed")
	ErrBackingStoreUnavailable = errors.New("backing store unavailable")
	ErrTimeout                 = errors.New("operation timed out")
	ErrClosed                  = errors.New("cache closed")
)

// Названия операций для ошибок, логов и метрик.
const (
	OpExists = "exists"
	OpRead   = "read"
	OpWrite  = "write"
	OpDelete = "delete"
	OpClose  = "close"
)

// OpError добавляет к ошибке операцию и ключ.
type OpError struct {
	Op  string
	Key string
	Err error
}

func (e *OpError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Wrap возвращает nil для nil, иначе *OpError. Истекший дедлайн контекста
// становится ErrTimeout с сохранением причины.
func Wrap(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &OpError{Op: op, Key: key, Err: err}
}

// Kind возвращает вид ошибки или nil, если вид не определен.
func Kind(err error) error {
	for _, kind := range []error{
		ErrInvalidArgument,
		ErrNotFound,
		ErrSerialization,
		ErrDeserialization,
		ErrTimeout,
		ErrBackingStoreUnavailable,
		ErrClosed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsTransient сообщает, можно ли повторить вызов с задержкой.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrBackingStoreUnavailable)
}
