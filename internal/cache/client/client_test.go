package client_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffeecache/internal/cache/adapters/memory"
	"coffeecache/internal/cache/client"
	"coffeecache/internal/cache/domain"
	"coffeecache/internal/cache/metrics"
	"coffeecache/pkg/logger"
)

type drink struct {
	Name    string   `json:"name"`
	Size    string   `json:"size"`
	Extras  []string `json:"extras,omitempty"`
	PriceCt int      `json:"price_ct"`
}

func newClient(t *testing.T, opts ...client.Option) (*client.Client, *clock.Mock, *memory.Store) {
	t.Helper()

	mock := clock.NewMock()
	store := memory.New(memory.Options{Clock: mock, Logger: logger.NewNop()})
	c := client.New(store, append([]client.Option{client.WithClock(mock)}, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c, mock, store
}

func TestNeverWrittenKeyIsAbsent(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	for _, key := range []string{"a", "session:1", "order:9:status"} {
		ok, err := c.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := c.Read(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, mo.None[string](), got)
	}
}

func TestWriteThenRead(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "k", "v", time.Minute))

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := c.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, mo.Some("v"), got)
}

func TestEmptyValueIsPresent(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "k", "", time.Minute))

	got, err := c.Read(ctx, "k")
	require.NoError(t, err)
	assert.True(t, got.IsPresent())
	assert.Equal(t, "", got.MustGet())
}

func TestWriteThenDelete(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "k"), "deleting an absent key is a no-op")
	require.NoError(t, c.Delete(ctx, "never-written"))
}

func TestSessionExpires(t *testing.T) {
	c, mock, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "session:42", "token-abc", 60*time.Second))

	ok, err := c.Exists(ctx, "session:42")
	require.NoError(t, err)
	assert.True(t, ok)

	mock.Add(61 * time.Second)

	ok, err = c.Exists(ctx, "session:42")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.Read(ctx, "session:42")
	require.NoError(t, err)
	assert.True(t, got.IsAbsent())
}

func TestOverwriteUsesSecondTTL(t *testing.T) {
	ctx := context.Background()

	t.Run("longer second ttl keeps the entry", func(t *testing.T) {
		c, mock, _ := newClient(t)

		require.NoError(t, c.Write(ctx, "k", "v1", 10*time.Second))
		mock.Add(5 * time.Second)
		require.NoError(t, c.Write(ctx, "k", "v2", 20*time.Second))
		mock.Add(15 * time.Second)

		got, err := c.Read(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, mo.Some("v2"), got)

		mock.Add(6 * time.Second)
		ok, err := c.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("shorter second ttl expires earlier", func(t *testing.T) {
		c, mock, _ := newClient(t)

		require.NoError(t, c.Write(ctx, "k", "v1", time.Hour))
		require.NoError(t, c.Write(ctx, "k", "v2", time.Second))
		mock.Add(2 * time.Second)

		ok, err := c.Exists(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestNonPositiveTTL(t *testing.T) {
	c, _, store := newClient(t)
	ctx := context.Background()

	for _, ttl := range []time.Duration{0, -time.Second} {
		err := c.Write(ctx, "k", "v", ttl)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, ttl.String())

		err = c.WriteValue(ctx, "k", drink{Name: "mocha"}, ttl)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, ttl.String())
	}
	assert.Zero(t, store.Len(), "no entry is created")
}

func TestInvalidKey(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	for _, key := range []string{"", "   "} {
		_, err := c.Exists(ctx, key)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = c.Read(ctx, key)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		_, err = client.ReadAs[drink](ctx, c, key)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)

		assert.ErrorIs(t, c.Write(ctx, key, "v", time.Minute), domain.ErrInvalidArgument)
		assert.ErrorIs(t, c.WriteValue(ctx, key, 1, time.Minute), domain.ErrInvalidArgument)
		assert.ErrorIs(t, c.Delete(ctx, key), domain.ErrInvalidArgument)
	}
}

func TestTypedRoundTrip(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	in := drink{Name: "cortado", Size: "small", Extras: []string{"oat milk"}, PriceCt: 420}
	require.NoError(t, c.WriteValue(ctx, "drink:1", in, time.Minute))

	out, err := client.ReadAs[drink](ctx, c, "drink:1")
	require.NoError(t, err)
	assert.Equal(t, in, out)

	ptr, err := client.ReadAs[*drink](ctx, c, "drink:1")
	require.NoError(t, err)
	assert.Equal(t, &in, ptr)

	m, err := client.ReadAs[map[string]any](ctx, c, "drink:1")
	require.NoError(t, err)
	assert.Equal(t, "cortado", m["name"])
}

func TestTypedScalarRoundTrip(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.WriteValue(ctx, "count", 42, time.Minute))
	n, err := client.ReadAs[int](ctx, c, "count")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	raw, err := c.Read(ctx, "count")
	require.NoError(t, err)
	assert.Equal(t, "42", raw.MustGet())
}

func TestTypedReadAbsent(t *testing.T) {
	c, mock, _ := newClient(t)
	ctx := context.Background()

	_, err := client.ReadAs[drink](ctx, c, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, c.WriteValue(ctx, "short", drink{Name: "ristretto"}, time.Second))
	mock.Add(2 * time.Second)

	out, err := client.ReadAs[drink](ctx, c, "short")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, out)
}

func TestTypedReadUndecodable(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "session:42", "token-abc", time.Minute))

	out, err := client.ReadAs[drink](ctx, c, "session:42")
	assert.ErrorIs(t, err, domain.ErrDeserialization)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, out)

	var opErr *domain.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, domain.OpRead, opErr.Op)
	assert.Equal(t, "session:42", opErr.Key)
}

func TestWriteValueUnserializable(t *testing.T) {
	c, _, store := newClient(t)
	ctx := context.Background()

	err := c.WriteValue(ctx, "k", make(chan int), time.Minute)
	assert.ErrorIs(t, err, domain.ErrSerialization)
	assert.Zero(t, store.Len())

	require.NoError(t, c.Write(ctx, "k", "old", time.Minute))
	err = c.WriteValue(ctx, "k", make(chan struct{}), time.Minute)
	assert.ErrorIs(t, err, domain.ErrSerialization)

	got, err := c.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "old", got.MustGet(), "failed write leaves the previous value")
}

func TestCancelledWrite(t *testing.T) {
	c, _, store := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Write(ctx, "k", "v", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrTimeout)
	assert.Zero(t, store.Len())
}

func TestClosedClient(t *testing.T) {
	c, _, _ := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Exists(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrClosed)
	_, err = c.Read(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrClosed)
	assert.ErrorIs(t, c.Write(ctx, "k", "v", time.Minute), domain.ErrClosed)
	assert.ErrorIs(t, c.Delete(ctx, "k"), domain.ErrClosed)
}

// stubStore lets tests inject backing-store behavior.
type stubStore struct {
	exists func(ctx context.Context, key string) (bool, error)
	get    func(ctx context.Context, key string) (mo.Option[string], error)
	set    func(ctx context.Context, key, value string, ttl time.Duration) error
	del    func(ctx context.Context, key string) error
	closed bool
}

func (s *stubStore) Exists(ctx context.Context, key string) (bool, error) { return s.exists(ctx, key) }
func (s *stubStore) Get(ctx context.Context, key string) (mo.Option[string], error) {
	return s.get(ctx, key)
}
func (s *stubStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.set(ctx, key, value, ttl)
}
func (s *stubStore) Delete(ctx context.Context, key string) error { return s.del(ctx, key) }
func (s *stubStore) Close() error {
	s.closed = true
	return nil
}

func blockingStore() *stubStore {
	wait := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	return &stubStore{
		exists: func(ctx context.Context, _ string) (bool, error) { return false, wait(ctx) },
		get: func(ctx context.Context, _ string) (mo.Option[string], error) {
			return mo.None[string](), wait(ctx)
		},
		set: func(ctx context.Context, _, _ string, _ time.Duration) error { return wait(ctx) },
		del: func(ctx context.Context, _ string) error { return wait(ctx) },
	}
}

func unavailableStore() *stubStore {
	errDown := fmt.Errorf("dial tcp: %w", domain.ErrBackingStoreUnavailable)
	return &stubStore{
		exists: func(context.Context, string) (bool, error) { return false, errDown },
		get:    func(context.Context, string) (mo.Option[string], error) { return mo.None[string](), errDown },
		set:    func(context.Context, string, string, time.Duration) error { return errDown },
		del:    func(context.Context, string) error { return errDown },
	}
}

func TestOperationTimeout(t *testing.T) {
	c := client.New(blockingStore(), client.WithOperationTimeout(20*time.Millisecond))
	ctx := context.Background()

	_, err := c.Exists(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	_, err = c.Read(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.ErrorIs(t, c.Write(ctx, "k", "v", time.Minute), domain.ErrTimeout)
	assert.ErrorIs(t, c.Delete(ctx, "k"), domain.ErrTimeout)
}

func TestCallerDeadlineWins(t *testing.T) {
	c := client.New(blockingStore(), client.WithOperationTimeout(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Read(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTransportErrorAfterDeadlineIsTimeout(t *testing.T) {
	store := unavailableStore()
	store.get = func(ctx context.Context, _ string) (mo.Option[string], error) {
		<-ctx.Done()
		return mo.None[string](), fmt.Errorf("i/o: %w", domain.ErrBackingStoreUnavailable)
	}
	c := client.New(store, client.WithOperationTimeout(10*time.Millisecond))

	_, err := c.Read(context.Background(), "k")
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestBackingStoreUnavailable(t *testing.T) {
	c := client.New(unavailableStore())
	ctx := context.Background()

	_, err := c.Exists(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrBackingStoreUnavailable)

	got, err := c.Read(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrBackingStoreUnavailable)
	assert.True(t, got.IsAbsent())

	_, err = client.ReadAs[drink](ctx, c, "k")
	assert.ErrorIs(t, err, domain.ErrBackingStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, c.Write(ctx, "k", "v", time.Minute), domain.ErrBackingStoreUnavailable)
	assert.ErrorIs(t, c.Delete(ctx, "k"), domain.ErrBackingStoreUnavailable)
}

func TestCloseClosesStore(t *testing.T) {
	store := unavailableStore()
	c := client.New(store)

	require.NoError(t, c.Close())
	assert.True(t, store.closed)
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	c, _, _ := newClient(t, client.WithMetrics(rec))
	ctx := context.Background()

	require.NoError(t, c.Write(ctx, "k", "v", time.Minute))
	_, err = c.Read(ctx, "k")
	require.NoError(t, err)
	_, err = c.Read(ctx, "missing")
	require.NoError(t, err)
	_ = c.Write(ctx, "k", "v", 0)

	expected := `
# HELP coffeecache_read_total Cache reads by hit or miss.
# TYPE coffeecache_read_total counter
coffeecache_read_total{result="hit"} 1
coffeecache_read_total{result="miss"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "coffeecache_read_total"))

	expected = `
# HELP coffeecache_errors_total Failed cache operations by operation and error kind.
# TYPE coffeecache_errors_total counter
coffeecache_errors_total{kind="invalid_argument",op="write"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "coffeecache_errors_total"))

	n, err := testutil.GatherAndCount(reg, "coffeecache_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "write ok, read ok, write error")
}

func TestTypedReadMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	c, _, _ := newClient(t, client.WithMetrics(rec))
	ctx := context.Background()

	require.NoError(t, c.WriteValue(ctx, "drink:1", drink{Name: "cortado"}, time.Minute))
	require.NoError(t, c.Write(ctx, "session:42", "token-abc", time.Minute))

	_, err = client.ReadAs[drink](ctx, c, "drink:1")
	require.NoError(t, err)
	_, err = client.ReadAs[drink](ctx, c, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = client.ReadAs[drink](ctx, c, "session:42")
	require.ErrorIs(t, err, domain.ErrDeserialization)

	expected := `
# HELP coffeecache_operations_total Cache operations by operation and result.
# TYPE coffeecache_operations_total counter
coffeecache_operations_total{op="read",result="error"} 2
coffeecache_operations_total{op="read",result="ok"} 1
coffeecache_operations_total{op="write",result="ok"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "coffeecache_operations_total"))

	expected = `
# HELP coffeecache_errors_total Failed cache operations by operation and error kind.
# TYPE coffeecache_errors_total counter
coffeecache_errors_total{kind="deserialization",op="read"} 1
coffeecache_errors_total{kind="not_found",op="read"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "coffeecache_errors_total"))

	expected = `
# HELP coffeecache_read_total Cache reads by hit or miss.
# TYPE coffeecache_read_total counter
coffeecache_read_total{result="hit"} 2
coffeecache_read_total{result="miss"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "coffeecache_read_total"))
}

func TestConcurrentClients(t *testing.T) {
	store := memory.New(memory.Options{Logger: logger.NewNop()})
	c := client.New(store, client.WithOperationTimeout(time.Second))
	t.Cleanup(func() { _ = c.Close() })

	const workers = 16
	var wg sync.WaitGroup
	errCh := make(chan error, workers)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			ctx := context.Background()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("w%d:%d", w, i%5)
				in := drink{Name: key, PriceCt: i}
				if err := c.WriteValue(ctx, key, in, time.Minute); err != nil {
					errCh <- err
					return
				}
				out, err := client.ReadAs[drink](ctx, c, key)
				if err != nil {
					errCh <- err
					return
				}
				if out.Name != key || out.PriceCt != i {
					errCh <- fmt.Errorf("worker %d: got %+v", w, out)
					return
				}
			}
		}(w)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
}
