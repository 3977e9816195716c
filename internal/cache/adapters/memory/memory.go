// Package memory реализует хранилище в памяти процесса с ленивым истечением
// срока жизни и необязательной фоновой очисткой.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/mo"
	"go.uber.org/zap"

	"coffeecache/internal/cache/domain"
	"coffeecache/internal/cache/ports/cache"
	"coffeecache/pkg/logger"
)

const (
	LogSweepDone   = "expired entries swept"
	LogEvicted     = "entry evicted, store full"
	LogSweeperStop = "sweeper stopped"
)

// Options содержит настройки Store. Нулевое значение дает неограниченное хранилище без очистки.
type Options struct {
	// SweepInterval включает фоновую очистку, если больше нуля.
	SweepInterval time.Duration
	// MaxEntries ограничивает число ключей, если больше нуля.
	MaxEntries int
	// Clock по умолчанию системные часы.
	Clock clock.Clock
	// Logger по умолчанию logger.Log(context.Background()).
	Logger *logger.Logger
}

// Store хранит записи в map под RWMutex.
type Store struct {
	mu      sync.RWMutex
	entries map[string]domain.Entry
	closed  bool

	maxEntries int
	clock      clock.Clock
	log        *logger.Logger

	stop chan struct{}
	done chan struct{}
}

var _ cache.Store = (*Store)(nil)

// New создает Store и запускает фоновую очистку, если она настроена.
func New(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Log(context.Background())
	}

	s := &Store{
		entries:    make(map[string]domain.Entry),
		maxEntries: opts.MaxEntries,
		clock:      opts.Clock,
		log:        opts.Logger.Named("memory"),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		ticker := s.clock.Ticker(opts.SweepInterval)
		go s.sweeper(ticker)
	} else {
		close(s.done)
	}

	return s
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, ok, err := s.lookup(key)
	return ok, err
}

func (s *Store) Get(ctx context.Context, key string) (mo.Option[string], error) {
	if err := ctx.Err(); err != nil {
		return mo.None[string](), err
	}

	entry, ok, err := s.lookup(key)
	if err != nil || !ok {
		return mo.None[string](), err
	}
	return mo.Some(entry.Value), nil
}

// lookup возвращает живую запись и удаляет ее, если срок истек.
func (s *Store) lookup(key string) (domain.Entry, bool, error) {
	now := s.clock.Now()

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return domain.Entry{}, false, domain.ErrClosed
	}
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return domain.Entry{}, false, nil
	}
	if entry.IsLive(now) {
		return entry, true, nil
	}

	s.mu.Lock()
	// the entry may have been rewritten between the two locks
	if cur, ok := s.entries[key]; ok && !cur.IsLive(now) {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	return domain.Entry{}, false, nil
}

func (s *Store) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := domain.ValidateTTL(ttl); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrClosed
	}

	now := s.clock.Now()
	if _, exists := s.entries[key]; !exists && s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		s.makeRoomLocked(ctx, now)
	}

	s.entries[key] = domain.NewEntry(key, value, ttl, now)
	return nil
}

// makeRoomLocked удаляет истекшие записи, а если места все равно нет,
// вытесняет запись с ближайшим сроком истечения. Вызывается под s.mu.
func (s *Store) makeRoomLocked(ctx context.Context, now time.Time) {
	if s.purgeLocked(now) > 0 && len(s.entries) < s.maxEntries {
		return
	}

	var victim domain.Entry
	found := false
	for _, e := range s.entries {
		if !found || e.ExpiresAt.Before(victim.ExpiresAt) {
			victim = e
			found = true
		}
	}
	if found {
		delete(s.entries, victim.Key)
		s.log.Debug(ctx, LogEvicted, zap.String("key", victim.Key), zap.Int("max_entries", s.maxEntries))
	}
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrClosed
	}
	delete(s.entries, key)
	return nil
}

// Len возвращает число хранимых записей, включая истекшие.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep удаляет все истекшие записи и возвращает их количество.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(s.clock.Now())
}

func (s *Store) purgeLocked(now time.Time) int {
	removed := 0
	for key, e := range s.entries {
		if !e.IsLive(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *Store) sweeper(ticker *clock.Ticker) {
	defer close(s.done)
	defer ticker.Stop()

	ctx := context.Background()
	for {
		select {
		case <-s.stop:
			s.log.Debug(ctx, LogSweeperStop)
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Debug(ctx, LogSweepDone, zap.Int("removed", n))
			}
		}
	}
}

// Close останавливает очистку и удаляет все записи. Повторные вызовы возвращают nil.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.entries = nil
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	return nil
}
