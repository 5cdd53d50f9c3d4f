package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
)

// DefaultSweepInterval is how often expired entries are collected
const DefaultSweepInterval = time.Minute

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL maps string keys to values of type V. It is safe for concurrent use.
type TTL[V any] struct {
	ttl     time.Duration
	clock   clock.Clock
	onEvict func(key string, value V)
	metrics *storeMetrics

	mu      sync.RWMutex
	entries map[string]entry[V]

	hits, misses, evictions atomic.Int64

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// Option configures a TTL
type Option[V any] func(*settings[V])

type settings[V any] struct {
	clock    clock.Clock
	sweep    time.Duration
	onEvict  func(string, V)
	registry *metric.MetricsRegistry
	name     string
}

// WithClock replaces the wall clock
func WithClock[V any](c clock.Clock) Option[V] {
	return func(s *settings[V]) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSweepInterval sets the background sweep period; zero turns the sweep off
func WithSweepInterval[V any](d time.Duration) Option[V] {
	return func(s *settings[V]) {
		if d >= 0 {
			s.sweep = d
		}
	}
}

// OnEvict is called, outside the lock, for every entry that expires or is deleted
func OnEvict[V any](fn func(key string, value V)) Option[V] {
	return func(s *settings[V]) {
		s.onEvict = fn
	}
}

// WithMetrics exports the store as datahub_cache_* series labelled cache=name
func WithMetrics[V any](registry *metric.MetricsRegistry, name string) Option[V] {
	return func(s *settings[V]) {
		s.registry = registry
		s.name = name
	}
}

// NewTTL creates a store whose entries live for ttl after each Set
func NewTTL[V any](ctx context.Context, ttl time.Duration, opts ...Option[V]) (*TTL[V], error) {
	if ttl <= 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("ttl must be positive, got %v", ttl), "cache", "NewTTL", "validate ttl")
	}
	s := settings[V]{clock: clock.New(), sweep: DefaultSweepInterval}
	for _, opt := range opts {
		opt(&s)
	}

	c := &TTL[V]{
		ttl:     ttl,
		clock:   s.clock,
		onEvict: s.onEvict,
		entries: make(map[string]entry[V]),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if s.registry != nil && s.name != "" {
		m, err := registerStoreMetrics(s.registry, s.name)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewTTL", "register metrics")
		}
		c.metrics = m
	}

	if s.sweep > 0 {
		go c.sweepLoop(ctx, c.clock.Ticker(s.sweep))
	} else {
		close(c.stopped)
	}
	return c, nil
}

// Get returns the value under key unless it is missing or expired
func (c *TTL[V]) Get(key string) (V, bool) {
	now := c.clock.Now()
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && now.Before(e.expires) {
		c.hits.Add(1)
		c.metrics.op("hit")
		return e.value, true
	}
	c.misses.Add(1)
	c.metrics.op("miss")
	if ok {
		c.expire(func(k string, e entry[V]) bool { return k == key && !now.Before(e.expires) })
	}
	var zero V
	return zero, false
}

// Set stores value under key and restarts its TTL. It reports whether the
// key was absent.
func (c *TTL[V]) Set(key string, value V) (bool, error) {
	if key == "" {
		return false, errors.WrapInvalid(errors.ErrInvalidData, "cache", "Set", "empty key")
	}
	c.mu.Lock()
	_, existed := c.entries[key]
	c.entries[key] = entry[V]{value: value, expires: c.clock.Now().Add(c.ttl)}
	n := len(c.entries)
	c.mu.Unlock()

	c.metrics.op("set")
	c.metrics.size(n)
	return !existed, nil
}

// Delete removes key and reports whether it was there
func (c *TTL[V]) Delete(key string) bool {
	c.mu.Lock()
	e, existed := c.entries[key]
	delete(c.entries, key)
	n := len(c.entries)
	c.mu.Unlock()

	if !existed {
		return false
	}
	c.metrics.op("delete")
	c.metrics.size(n)
	if c.onEvict != nil {
		c.onEvict(key, e.value)
	}
	return true
}

// ExpiresAt reports when key expires
func (c *TTL[V]) ExpiresAt(key string) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e.expires, ok
}

// Keys lists the unexpired keys in no particular order
func (c *TTL[V]) Keys() []string {
	now := c.clock.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k, e := range c.entries {
		if now.Before(e.expires) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len counts entries, including expired ones not yet collected
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats counts lookups and expiries since NewTTL
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Entries   int   `json:"entries"`
}

// Stats returns the current counters
func (c *TTL[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.Len(),
	}
}

// Close stops the background sweep
func (c *TTL[V]) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	select {
	case <-c.stopped:
		return nil
	case <-time.After(5 * time.Second):
		return errors.WrapTransient(errors.ErrShuttingDown, "cache", "Close", "wait for sweep")
	}
}

func (c *TTL[V]) sweepLoop(ctx context.Context, ticker *clock.Ticker) {
	defer close(c.stopped)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			now := c.clock.Now()
			c.expire(func(_ string, e entry[V]) bool { return !now.Before(e.expires) })
		}
	}
}

// expire removes the entries matching drop and reports them
func (c *TTL[V]) expire(drop func(string, entry[V]) bool) {
	var gone map[string]V
	c.mu.Lock()
	for k, e := range c.entries {
		if drop(k, e) {
			if gone == nil {
				gone = make(map[string]V)
			}
			gone[k] = e.value
			delete(c.entries, k)
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	if len(gone) == 0 {
		return
	}
	c.evictions.Add(int64(len(gone)))
	c.metrics.evicted(len(gone))
	c.metrics.size(n)
	if c.onEvict != nil {
		for k, v := range gone {
			c.onEvict(k, v)
		}
	}
}
