package cache

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
)

func newStore(t *testing.T, ttl time.Duration, opts ...Option[string]) (*TTL[string], *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	opts = append([]Option[string]{WithClock[string](mock), WithSweepInterval[string](0)}, opts...)
	c, err := NewTTL[string](context.Background(), ttl, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mock
}

func TestNewTTL_RejectsNonPositive(t *testing.T) {
	for _, ttl := range []time.Duration{0, -time.Second} {
		_, err := NewTTL[string](context.Background(), ttl)
		assert.True(t, errors.IsInvalid(err), "ttl %v", ttl)
	}
}

func TestTTL_Expiry(t *testing.T) {
	c, mock := newStore(t, 5*time.Minute)

	added, err := c.Set("plc-1", "def")
	require.NoError(t, err)
	assert.True(t, added)

	mock.Add(time.Second)
	v, ok := c.Get("plc-1")
	assert.True(t, ok)
	assert.Equal(t, "def", v)

	mock.Add(5 * time.Minute)
	_, ok = c.Get("plc-1")
	assert.False(t, ok)

	assert.Equal(t, Stats{Hits: 1, Misses: 1, Evictions: 1}, c.Stats())
}

func TestTTL_SetRestartsClock(t *testing.T) {
	c, mock := newStore(t, time.Minute)

	_, _ = c.Set("k", "a")
	mock.Add(50 * time.Second)
	added, _ := c.Set("k", "b")
	assert.False(t, added)

	mock.Add(50 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", v)

	at, ok := c.ExpiresAt("k")
	require.True(t, ok)
	assert.Equal(t, mock.Now().Add(10*time.Second), at)
}

func TestTTL_EmptyKey(t *testing.T) {
	c, _ := newStore(t, time.Minute)
	_, err := c.Set("", "x")
	assert.True(t, errors.IsInvalid(err))
	assert.Zero(t, c.Len())
}

func TestTTL_KeysSkipExpired(t *testing.T) {
	c, mock := newStore(t, time.Minute)

	_, _ = c.Set("old", "1")
	mock.Add(40 * time.Second)
	_, _ = c.Set("new", "2")
	mock.Add(30 * time.Second)

	assert.Equal(t, []string{"new"}, c.Keys())
	assert.Equal(t, 2, c.Len(), "expired entry waits for a sweep")
}

func TestTTL_DeleteCallsEvict(t *testing.T) {
	var got []string
	c, _ := newStore(t, time.Minute, OnEvict(func(k, v string) { got = append(got, k+"="+v) }))

	_, _ = c.Set("a", "1")
	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, []string{"a=1"}, got)
}

func TestTTL_SweepCollectsExpired(t *testing.T) {
	var (
		mu      sync.Mutex
		evicted []string
	)
	mock := clock.NewMock()
	c, err := NewTTL[string](context.Background(), time.Minute,
		WithClock[string](mock),
		WithSweepInterval[string](10*time.Second),
		OnEvict(func(k, _ string) {
			mu.Lock()
			defer mu.Unlock()
			evicted = append(evicted, k)
		}))
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	mock.Add(30 * time.Second)
	_, _ = c.Set("c", "3")

	mock.Add(40 * time.Second)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	sort.Strings(evicted)
	assert.Equal(t, []string{"a", "b"}, evicted)
}

func TestTTL_CloseAndContextEndSweep(t *testing.T) {
	c, err := NewTTL[string](context.Background(), time.Minute, WithSweepInterval[string](time.Millisecond))
	require.NoError(t, err)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	ctx, cancel := context.WithCancel(context.Background())
	c, err = NewTTL[string](ctx, time.Minute, WithSweepInterval[string](time.Millisecond))
	require.NoError(t, err)
	cancel()
	assert.NoError(t, c.Close())
}

func TestTTL_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	c, mock := newStore(t, time.Minute, WithMetrics[string](registry, "definitions"))

	_, _ = c.Set("a", "1")
	_, _ = c.Set("b", "2")
	c.Get("a")
	mock.Add(2 * time.Minute)
	c.Get("a")

	m := c.metrics
	require.NotNil(t, m)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ops.WithLabelValues("set")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ops.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ops.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ops.WithLabelValues("evict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.entries))

	_, err := NewTTL[string](context.Background(), time.Minute, WithMetrics[string](registry, "definitions"))
	assert.Error(t, err, "a name registers once")
}

func TestTTL_ConcurrentUse(t *testing.T) {
	c, _ := newStore(t, time.Minute)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := string(rune('a' + i))
			for range 100 {
				_, _ = c.Set(key, key)
				c.Get(key)
				c.Keys()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, c.Len())
}
