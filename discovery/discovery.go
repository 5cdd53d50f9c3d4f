// Package discovery finds and caches provider definitions.
//
// A Cache answers Definition and ResolveVariable from a TTL store (5 minutes
// by default). On a miss it tries, in order and each with its own timeout,
// a direct definition query to the provider, the same query through the
// registry, and the REST API. Concurrent misses for one provider share a
// single discovery. Manual key→ID overrides fill gaps and stand in when
// every strategy fails.
package discovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/c360/datahub/codec"
	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/hub"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/pkg/cache"
	"github.com/c360/datahub/subject"
)

// Defaults
const (
	DefaultTTL              = 5 * time.Minute
	DefaultStrategyTimeout  = 2 * time.Second
	DefaultHeuristicRecheck = 30 * time.Second
)

// Strategy names the source of a definition
type Strategy string

// Discovery strategies
const (
	StrategyDirect   Strategy = "direct"
	StrategyRegistry Strategy = "registry"
	StrategyREST     Strategy = "rest"
	StrategyEvent    Strategy = "event"
	StrategyManual   Strategy = "manual"
)

// Requester performs a bus request with a per-request timeout.
// *scheduler.Scheduler satisfies it.
type Requester interface {
	Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error)
}

// Entry is a cached definition with its provenance
type Entry struct {
	Definition hub.ProviderDefinition
	Source     Strategy
	// Heuristic is set when IDs were assigned by position because the
	// source did not report them. A later bus result replaces such entries.
	Heuristic bool
	FetchedAt time.Time
}

// Resolved is a key resolved against a provider definition
type Resolved struct {
	ID          uint32
	DataType    hub.DataType
	Access      hub.Access
	Fingerprint uint64
	Heuristic   bool
}

// Option configures a Cache
type Option func(*Cache)

// WithTTL sets how long definitions are cached
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces the wall clock
func WithClock(clk clock.Clock) Option {
	return func(c *Cache) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithStrategyTimeout bounds each discovery strategy
func WithStrategyTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.strategyTimeout = d
		}
	}
}

// WithHeuristicRecheck sets how often a cached REST definition with
// positional IDs is checked against the bus strategies
func WithHeuristicRecheck(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.heuristicRecheck = d
		}
	}
}

// WithREST enables the REST fallback strategy and ListProviders
func WithREST(rest *RESTClient) Option {
	return func(c *Cache) {
		c.rest = rest
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records discovery outcomes and exports cache statistics
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(c *Cache) {
		c.registry = registry
	}
}

// Cache is the process-wide definition cache
type Cache struct {
	requester       Requester
	rest            *RESTClient
	ttl              time.Duration
	strategyTimeout  time.Duration
	heuristicRecheck time.Duration
	clock            clock.Clock
	logger           *slog.Logger
	registry         *metric.MetricsRegistry
	metrics          *metric.Metrics

	store *cache.TTL[Entry]
	group singleflight.Group

	mu        sync.RWMutex
	overrides map[string]map[string]uint32
	// rechecked is when each heuristic entry was last checked on the bus
	rechecked map[string]time.Time
}

// New creates a Cache. The background expiry sweep stops when ctx ends or Close is called.
func New(ctx context.Context, requester Requester, opts ...Option) (*Cache, error) {
	c := &Cache{
		requester:        requester,
		ttl:              DefaultTTL,
		strategyTimeout:  DefaultStrategyTimeout,
		heuristicRecheck: DefaultHeuristicRecheck,
		clock:            clock.New(),
		logger:           slog.Default(),
		overrides:        make(map[string]map[string]uint32),
		rechecked:        make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "discovery")

	storeOpts := []cache.Option[Entry]{cache.WithClock[Entry](c.clock)}
	if c.registry != nil {
		c.metrics = c.registry.CoreMetrics()
		storeOpts = append(storeOpts, cache.WithMetrics[Entry](c.registry, "definitions"))
	}
	store, err := cache.NewTTL[Entry](ctx, c.ttl, storeOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Cache", "New", "create definition store")
	}
	c.store = store
	return c, nil
}

// Close stops the store's background sweep
func (c *Cache) Close() error {
	return c.store.Close()
}

// SetOverrides installs manual key→ID mappings for a provider
func (c *Cache) SetOverrides(providerID string, overrides map[string]uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make(map[string]uint32, len(overrides))
	for k, v := range overrides {
		cp[k] = v
	}
	c.overrides[providerID] = cp
}

func (c *Cache) overridesFor(providerID string) map[string]uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overrides[providerID]
}

// Definition returns the provider's definition, discovering it on a cache miss
func (c *Cache) Definition(ctx context.Context, providerID string) (hub.ProviderDefinition, error) {
	e, err := c.Lookup(ctx, providerID)
	if err != nil {
		return hub.ProviderDefinition{}, err
	}
	return e.Definition, nil
}

// Lookup is Definition with provenance. A cached definition with positional
// IDs is checked against the bus strategies at most once per recheck
// interval and replaced when one of them answers.
func (c *Cache) Lookup(ctx context.Context, providerID string) (Entry, error) {
	if err := subject.Validate(providerID); err != nil {
		return Entry{}, errors.WrapInvalid(err, "Cache", "Lookup", "validate provider id")
	}
	if e, ok := c.store.Get(providerID); ok {
		if e.Heuristic && c.recheckDue(providerID, e) {
			return c.supersede(ctx, providerID, e), nil
		}
		return e, nil
	}

	ch := c.group.DoChan(providerID, func() (any, error) {
		return c.discover(context.WithoutCancel(ctx), providerID)
	})

	select {
	case <-ctx.Done():
		return Entry{}, errors.WrapTransient(ctx.Err(), "Cache", "Lookup", "wait for discovery")
	case res := <-ch:
		if res.Err != nil {
			return Entry{}, res.Err
		}
		return res.Val.(Entry), nil
	}
}

// ResolveVariable maps a key to its ID, type and the definition fingerprint.
// Keys missing from the definition, or every key when discovery failed, fall
// back to manual overrides with an unknown type and fingerprint 0.
func (c *Cache) ResolveVariable(ctx context.Context, providerID, key string) (Resolved, error) {
	e, err := c.Lookup(ctx, providerID)
	if err == nil {
		if v, ok := e.Definition.ByKey(key); ok {
			return Resolved{
				ID:          v.ID,
				DataType:    v.DataType,
				Access:      v.Access,
				Fingerprint: e.Definition.Fingerprint,
				Heuristic:   e.Heuristic,
			}, nil
		}
	}

	if id, ok := c.overridesFor(providerID)[key]; ok {
		return Resolved{ID: id, DataType: hub.DataTypeUnknown, Access: hub.AccessReadOnly}, nil
	}
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{}, errors.WrapInvalid(
		fmt.Errorf("%w: %q in provider %s", errors.ErrVariableNotFound, key, providerID),
		"Cache", "ResolveVariable", "resolve key")
}

// Invalidate drops the cached definition so the next lookup rediscovers it
func (c *Cache) Invalidate(providerID string) {
	c.store.Delete(providerID)
	c.mu.Lock()
	delete(c.rechecked, providerID)
	c.mu.Unlock()
}

// Update stores a definition observed on the bus, e.g. from a definition
// changed event. It replaces heuristic entries, whose positional IDs are
// logged against the real ones by key.
func (c *Cache) Update(providerID string, def hub.ProviderDefinition) {
	if def.IsEmpty() {
		return
	}
	c.replace(providerID, Entry{Definition: def, Source: StrategyEvent, FetchedAt: c.clock.Now()})
}

// replace caches e, logging how the IDs of a heuristic entry it displaces
// map onto the real ones
func (c *Cache) replace(providerID string, e Entry) {
	if old, ok := c.store.Get(providerID); ok && old.Heuristic {
		remap := MatchByKey(old.Definition, e.Definition)
		for _, oldID := range sortedIDs(remap) {
			c.logger.Info("Positional variable ID superseded", "provider", providerID,
				"positional_id", oldID, "id", remap[oldID], "source", e.Source)
		}
	}
	c.mu.Lock()
	delete(c.rechecked, providerID)
	c.mu.Unlock()
	c.put(providerID, e)
}

// recheckDue reports whether a heuristic entry should be checked on the bus
// now and, if so, starts a new recheck interval
func (c *Cache) recheckDue(providerID string, e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last := c.rechecked[providerID]
	if last.Before(e.FetchedAt) {
		last = e.FetchedAt
	}
	now := c.clock.Now()
	if now.Sub(last) < c.heuristicRecheck {
		return false
	}
	c.rechecked[providerID] = now
	return true
}

// supersede runs the bus strategies for a provider whose cached definition
// is heuristic. It returns the stale entry when none of them answers.
func (c *Cache) supersede(ctx context.Context, providerID string, stale Entry) Entry {
	ch := c.group.DoChan(providerID, func() (any, error) {
		bctx := context.WithoutCancel(ctx)
		for _, s := range c.busStrategies() {
			e, err := c.try(bctx, providerID, s.name, s.run)
			if err != nil || e.Heuristic {
				continue
			}
			c.replace(providerID, e)
			return c.mustGet(providerID, e), nil
		}
		return stale, nil
	})

	select {
	case <-ctx.Done():
		return stale
	case res := <-ch:
		if res.Err != nil {
			return stale
		}
		return res.Val.(Entry)
	}
}

// ListProviders returns providers known to the REST API
func (c *Cache) ListProviders(ctx context.Context) ([]ProviderInfo, error) {
	if c.rest == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Cache", "ListProviders", "REST client not configured")
	}
	return c.rest.Providers(ctx)
}

func (c *Cache) put(providerID string, e Entry) {
	e.Definition = c.withOverrides(providerID, e.Definition)
	if _, err := c.store.Set(providerID, e); err != nil {
		c.logger.Warn("Failed to cache definition", "provider", providerID, "error", err)
	}
}

type strategy struct {
	name Strategy
	run  func(context.Context, string) (Entry, error)
}

func (c *Cache) busStrategies() []strategy {
	return []strategy{
		{StrategyDirect, c.busStrategy(StrategyDirect, subject.ReadDefinitionQuery)},
		{StrategyRegistry, c.busStrategy(StrategyRegistry, subject.RegistryDefinitionQuery)},
	}
}

// try runs one strategy, treating an empty definition as a failure
func (c *Cache) try(ctx context.Context, providerID string, name Strategy, run func(context.Context, string) (Entry, error)) (Entry, error) {
	e, err := run(ctx, providerID)
	if err == nil && e.Definition.IsEmpty() {
		err = fmt.Errorf("%s: %w", name, errors.ErrDefinitionNotFound)
	}
	if err != nil {
		c.metrics.RecordDiscovery(string(name), "failed")
		c.logger.Debug("Discovery strategy failed", "provider", providerID, "strategy", name, "error", err)
		return Entry{}, err
	}
	c.metrics.RecordDiscovery(string(name), "ok")
	e.FetchedAt = c.clock.Now()
	return e, nil
}

func (c *Cache) discover(ctx context.Context, providerID string) (Entry, error) {
	var causes []error
	var heuristic *Entry

	strategies := c.busStrategies()
	if c.rest != nil {
		strategies = append(strategies, strategy{StrategyREST, c.restStrategy})
	}
	for _, s := range strategies {
		e, err := c.try(ctx, providerID, s.name, s.run)
		if err != nil {
			causes = append(causes, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		if e.Heuristic {
			heuristic = &e
			continue
		}
		c.put(providerID, e)
		c.logger.Debug("Definition discovered", "provider", providerID, "strategy", s.name,
			"variables", len(e.Definition.Variables))
		return c.mustGet(providerID, e), nil
	}

	if heuristic != nil {
		c.logger.Warn("Using positional variable IDs from REST listing", "provider", providerID)
		c.put(providerID, *heuristic)
		return c.mustGet(providerID, *heuristic), nil
	}

	if manual := c.manualDefinition(providerID); !manual.IsEmpty() {
		c.metrics.RecordDiscovery(string(StrategyManual), "ok")
		c.logger.Warn("Discovery failed, using manual overrides", "provider", providerID,
			"error", stderrors.Join(causes...))
		return Entry{Definition: manual, Source: StrategyManual, FetchedAt: c.clock.Now()}, nil
	}

	return Entry{}, errors.WrapTransient(
		fmt.Errorf("%w: provider %s: %w", errors.ErrDiscoveryFailed, providerID, stderrors.Join(causes...)),
		"Cache", "discover", "discover definition")
}

func (c *Cache) mustGet(providerID string, fallback Entry) Entry {
	if e, ok := c.store.Get(providerID); ok {
		return e
	}
	return fallback
}

func (c *Cache) busStrategy(name Strategy, subjectFor func(string) string) func(context.Context, string) (Entry, error) {
	return func(ctx context.Context, providerID string) (Entry, error) {
		data, err := c.requester.Request(ctx, subjectFor(providerID), codec.EncodeDefinitionQuery(), c.strategyTimeout)
		if err != nil {
			return Entry{}, err
		}
		def, err := codec.DecodeDefinition(data)
		if err != nil {
			return Entry{}, err
		}
		return Entry{Definition: def, Source: name}, nil
	}
}

func (c *Cache) restStrategy(ctx context.Context, providerID string) (Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.strategyTimeout)
	defer cancel()

	vars, heuristic, err := c.rest.Variables(ctx, providerID)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Definition: hub.ProviderDefinition{Variables: vars},
		Source:     StrategyREST,
		Heuristic:  heuristic,
	}, nil
}

// withOverrides appends override keys absent from def by both key and ID
func (c *Cache) withOverrides(providerID string, def hub.ProviderDefinition) hub.ProviderDefinition {
	overrides := c.overridesFor(providerID)
	if len(overrides) == 0 {
		return def
	}
	out := hub.ProviderDefinition{
		Fingerprint: def.Fingerprint,
		Variables:   append([]hub.VariableDefinition(nil), def.Variables...),
	}
	for _, key := range sortedKeys(overrides) {
		id := overrides[key]
		if _, ok := out.ByKey(key); ok {
			continue
		}
		if _, ok := out.ByID(id); ok {
			continue
		}
		out.Variables = append(out.Variables, hub.VariableDefinition{
			ID: id, Key: key, DataType: hub.DataTypeUnknown, Access: hub.AccessReadOnly,
		})
	}
	return out
}

func (c *Cache) manualDefinition(providerID string) hub.ProviderDefinition {
	return c.withOverrides(providerID, hub.ProviderDefinition{})
}

// MatchByKey maps IDs in old to the IDs the same keys carry in current.
// Keys whose ID did not change are omitted.
func MatchByKey(old, current hub.ProviderDefinition) map[uint32]uint32 {
	remap := make(map[uint32]uint32)
	for _, v := range old.Variables {
		if nv, ok := current.ByKey(v.Key); ok && nv.ID != v.ID {
			remap[v.ID] = nv.ID
		}
	}
	return remap
}

func sortedIDs(m map[uint32]uint32) []uint32 {
	ids := make([]uint32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func sortedKeys(m map[string]uint32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
