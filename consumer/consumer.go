// Package consumer reads and writes another provider's variables.
//
// A Consumer resolves keys to IDs through the discovery cache, takes
// snapshots with the read query, follows change events and sends write
// commands. After a reconnect it re-arms its subscription and delivers a
// fresh snapshot so handlers never miss the state they were disconnected for.
package consumer

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/c360/datahub/codec"
	"github.com/c360/datahub/discovery"
	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/health"
	"github.com/c360/datahub/hub"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/natsclient"
	"github.com/c360/datahub/session"
	"github.com/c360/datahub/subject"
)

// DefaultRequestTimeout bounds a single snapshot request
const DefaultRequestTimeout = 10 * time.Second

// Session is the bus surface a Consumer needs. *session.Session satisfies it.
type Session interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler natsclient.MsgHandler) (natsclient.Subscription, error)
	RequestWithRetry(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error)
	OnEvent(fn func(session.Event)) func()
}

// Definitions resolves provider definitions. *discovery.Cache satisfies it.
type Definitions interface {
	Lookup(ctx context.Context, providerID string) (discovery.Entry, error)
	ResolveVariable(ctx context.Context, providerID, key string) (discovery.Resolved, error)
	Invalidate(providerID string)
	Update(providerID string, def hub.ProviderDefinition)
}

// Config holds consumer settings
type Config struct {
	ProviderID string
	// Keys limits snapshots and change events to these variables; empty means all
	Keys []string
	// PollingInterval takes a snapshot periodically when positive
	PollingInterval time.Duration
	RequestTimeout  time.Duration
}

// Variable is a value read from the provider
type Variable struct {
	ProviderID string      `json:"providerId"`
	ID         uint32      `json:"id"`
	Key        string      `json:"key"`
	Value      hub.Value   `json:"value"`
	Quality    hub.Quality `json:"quality"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Kind tells a handler where an Update came from
type Kind string

// Update kinds
const (
	KindSnapshot Kind = "snapshot"
	KindChange   Kind = "change"
)

// Update is a batch of variables delivered to a Handler
type Update struct {
	Kind      Kind       `json:"type"`
	Variables []Variable `json:"variables"`
}

// Handler receives snapshots and change events
type Handler func(ctx context.Context, u Update)

// WriteItem is one variable to write. ID wins over Key when both are set.
type WriteItem struct {
	Key      string
	ID       uint32
	Value    any
	DataType hub.DataType
}

// Option configures a Consumer
type Option func(*Consumer)

// WithClock replaces the clock driving the polling ticker
func WithClock(clk clock.Clock) Option {
	return func(c *Consumer) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records consumer errors
func WithMetrics(m *metric.Metrics) Option {
	return func(c *Consumer) {
		c.metrics = m
	}
}

// WithHealth reports status under "consumer/<id>"
func WithHealth(m *health.Monitor) Option {
	return func(c *Consumer) {
		c.health = m
	}
}

// Consumer reads and writes one provider's variables
type Consumer struct {
	cfg     Config
	sess    Session
	defs    Definitions
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metric.Metrics
	health  *health.Monitor
	keys    map[string]struct{}

	mu       sync.Mutex
	running  bool
	handler  Handler
	runCtx   context.Context
	cancel   context.CancelFunc
	varsSub  natsclient.Subscription
	defsSub  natsclient.Subscription
	unlisten func()
	wg       sync.WaitGroup
}

// New creates a stopped Consumer
func New(sess Session, defs Definitions, cfg Config, opts ...Option) (*Consumer, error) {
	if err := subject.Validate(cfg.ProviderID); err != nil {
		return nil, errors.WrapInvalid(err, "Consumer", "New", "validate provider id")
	}
	if defs == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Consumer", "New", "definition cache required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	c := &Consumer{
		cfg:    cfg,
		sess:   sess,
		defs:   defs,
		clock:  clock.New(),
		logger: slog.Default(),
		keys:   make(map[string]struct{}, len(cfg.Keys)),
	}
	for _, k := range cfg.Keys {
		if k = strings.TrimSpace(k); k != "" {
			c.keys[k] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "consumer", "provider", cfg.ProviderID)
	return c, nil
}

// ProviderID returns the provider this consumer reads from
func (c *Consumer) ProviderID() string { return c.cfg.ProviderID }

// Start acquires the session and follows definition changes
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Consumer", "Start", "start consumer")
	}

	c.reportHealth(health.NewConnecting("", "acquiring session"))
	if err := c.sess.Acquire(ctx); err != nil {
		c.reportHealth(health.FromError("", err))
		return errors.Wrap(err, "Consumer", "Start", "acquire session")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sub, err := c.sess.Subscribe(runCtx, subject.DefinitionChanged(c.cfg.ProviderID), c.handleDefinitionChanged)
	if err != nil {
		cancel()
		_ = c.sess.Release(ctx)
		return errors.Wrap(err, "Consumer", "Start", "subscribe definition events")
	}

	c.defsSub = sub
	c.runCtx = runCtx
	c.cancel = cancel
	c.unlisten = c.sess.OnEvent(c.handleSessionEvent)
	c.running = true

	if _, err := c.defs.Lookup(ctx, c.cfg.ProviderID); err != nil {
		c.logger.Warn("Definition not available yet, keys resolve on first use", "error", err)
	}
	c.reportHealth(health.NewHealthy("", "ready"))
	c.logger.Info("Consumer started", "keys", len(c.keys), "polling", c.cfg.PollingInterval)
	return nil
}

// Stop unsubscribes, stops polling and releases the session
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.cancel()
	unlisten := c.unlisten
	subs := []natsclient.Subscription{c.varsSub, c.defsSub}
	c.varsSub, c.defsSub, c.unlisten, c.handler = nil, nil, nil, nil
	c.mu.Unlock()

	c.wg.Wait()
	if unlisten != nil {
		unlisten()
	}

	var errs []error
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.sess.Release(ctx); err != nil {
		errs = append(errs, err)
	}
	c.reportHealth(health.NewUnhealthy("", "stopped"))
	c.logger.Info("Consumer stopped")
	return stderrors.Join(errs...)
}

// Snapshot reads the current values of the configured keys, or of every
// variable when no keys are configured.
func (c *Consumer) Snapshot(ctx context.Context) ([]Variable, error) {
	var ids []uint32
	if len(c.keys) > 0 {
		for _, key := range c.sortedKeys() {
			r, err := c.defs.ResolveVariable(ctx, c.cfg.ProviderID, key)
			if err != nil {
				c.logger.Debug("Key not resolved", "key", key, "error", err)
				continue
			}
			ids = append(ids, r.ID)
		}
		// an empty list would read every variable
		if len(ids) == 0 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: none of %d requested keys resolved", errors.ErrVariableNotFound, len(c.keys)),
				"Consumer", "Snapshot", "resolve keys")
		}
	}

	resp, err := c.sess.RequestWithRetry(ctx, subject.ReadVariablesQuery(c.cfg.ProviderID), codec.EncodeReadQuery(ids), c.cfg.RequestTimeout)
	if err != nil {
		c.reportRequestError(err)
		return nil, errors.Wrap(err, "Consumer", "Snapshot", "read variables")
	}
	list, err := codec.DecodeVariableListFull(resp)
	if err != nil {
		c.metrics.RecordError("consumer", errors.ErrorInvalid.String())
		return nil, err
	}

	vars := c.mapStates(ctx, list)
	c.reportHealth(health.NewHealthy("", "active"))
	return vars, nil
}

// Subscribe delivers an initial snapshot and then every change event to
// handler until Stop. Start must have been called.
func (c *Consumer) Subscribe(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Consumer", "Subscribe", "handler required")
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrNotStarted, "Consumer", "Subscribe", "subscribe")
	}
	if c.handler != nil {
		c.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Consumer", "Subscribe", "subscribe")
	}
	c.handler = handler
	c.mu.Unlock()

	c.deliverSnapshot(ctx)
	if err := c.arm(ctx); err != nil {
		return err
	}

	if c.cfg.PollingInterval > 0 {
		ticker := c.clock.Ticker(c.cfg.PollingInterval)
		c.mu.Lock()
		runCtx := c.runCtx
		c.wg.Add(1)
		c.mu.Unlock()
		go c.poll(runCtx, ticker)
	}
	return nil
}

// arm replaces the change subscription
func (c *Consumer) arm(ctx context.Context) error {
	sub, err := c.sess.Subscribe(ctx, subject.VarsChanged(c.cfg.ProviderID), c.handleVarsChanged)
	if err != nil {
		c.reportHealth(health.FromError("", err))
		return errors.Wrap(err, "Consumer", "Subscribe", "subscribe change events")
	}

	c.mu.Lock()
	old := c.varsSub
	c.varsSub = sub
	running := c.running
	c.mu.Unlock()

	if old != nil {
		_ = old.Unsubscribe()
	}
	if !running {
		_ = sub.Unsubscribe()
	}
	return nil
}

func (c *Consumer) poll(ctx context.Context, ticker *clock.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.deliverSnapshot(ctx)
		}
	}
}

func (c *Consumer) currentHandler() Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler
}

func (c *Consumer) deliverSnapshot(ctx context.Context) {
	h := c.currentHandler()
	if h == nil {
		return
	}
	vars, err := c.Snapshot(ctx)
	if err != nil {
		c.logger.Debug("Snapshot skipped", "error", err)
		return
	}
	if len(vars) == 0 {
		return
	}
	h(ctx, Update{Kind: KindSnapshot, Variables: vars})
}

// Write sends one write command for items and returns how many were
// included. Items whose key cannot be resolved are skipped; the command
// carries the fingerprint of the definition the keys were resolved against,
// or 0 when it is unknown.
func (c *Consumer) Write(ctx context.Context, items ...WriteItem) (int, error) {
	var (
		updates []hub.WriteUpdate
		skipped []error
		fp      uint64
	)

	for _, it := range items {
		switch {
		case it.ID != 0:
			u := hub.WriteUpdate{ID: it.ID, Value: it.Value, DataType: it.DataType}
			if e, err := c.defs.Lookup(ctx, c.cfg.ProviderID); err == nil {
				fp = e.Definition.Fingerprint
				if v, ok := e.Definition.ByID(it.ID); ok && !u.DataType.Valid() {
					u.DataType = v.DataType
				}
			} else {
				c.logger.Debug("Writing without fingerprint", "id", it.ID, "error", err)
			}
			updates = append(updates, u)
		case it.Key != "":
			r, err := c.defs.ResolveVariable(ctx, c.cfg.ProviderID, it.Key)
			if err != nil {
				c.logger.Warn("Skipping unresolved key", "key", it.Key, "error", err)
				skipped = append(skipped, err)
				continue
			}
			if r.Fingerprint != 0 {
				fp = r.Fingerprint
			}
			dt := it.DataType
			if !dt.Valid() {
				dt = r.DataType
			}
			updates = append(updates, hub.WriteUpdate{ID: r.ID, Value: it.Value, DataType: dt})
		default:
			skipped = append(skipped, fmt.Errorf("%w: item without id or key", errors.ErrInvalidData))
		}
	}

	if len(updates) == 0 {
		err := fmt.Errorf("%w: no writable variables", errors.ErrVariableNotFound)
		return 0, errors.WrapInvalid(stderrors.Join(append([]error{err}, skipped...)...), "Consumer", "Write", "resolve items")
	}

	payload, err := codec.EncodeWriteCommand(updates, fp)
	if err != nil {
		return 0, errors.Wrap(err, "Consumer", "Write", "encode write command")
	}
	if err := c.sess.Publish(ctx, subject.WriteVariablesCommand(c.cfg.ProviderID), payload); err != nil {
		c.metrics.RecordError("consumer", errors.Classify(err).String())
		return 0, errors.Wrap(err, "Consumer", "Write", "publish write command")
	}
	c.logger.Debug("Write command sent", "variables", len(updates), "fingerprint", fp)
	return len(updates), nil
}

// WriteMap writes a key/value batch. Keys made only of digits are taken as
// variable IDs.
func (c *Consumer) WriteMap(ctx context.Context, values map[string]any) (int, error) {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	sort.Strings(names)

	items := make([]WriteItem, 0, len(values))
	for _, k := range names {
		if id, err := strconv.ParseUint(k, 10, 32); err == nil && id != 0 {
			items = append(items, WriteItem{ID: uint32(id), Value: values[k]})
			continue
		}
		items = append(items, WriteItem{Key: k, Value: values[k]})
	}
	return c.Write(ctx, items...)
}

// mapStates names the states by key and drops those outside the configured
// keys. A list produced under a different definition invalidates the cached
// one and is mapped against a fresh lookup.
func (c *Consumer) mapStates(ctx context.Context, list hub.VariableList) []Variable {
	e, err := c.defs.Lookup(ctx, c.cfg.ProviderID)
	if err == nil && list.ProviderDefinitionFingerprint != 0 && !e.Heuristic &&
		e.Definition.Fingerprint != 0 && e.Definition.Fingerprint != list.ProviderDefinitionFingerprint {
		c.logger.Info("Definition changed, refreshing",
			"error", errors.ErrFingerprintMismatch,
			"cached", e.Definition.Fingerprint, "received", list.ProviderDefinitionFingerprint)
		c.defs.Invalidate(c.cfg.ProviderID)
		e, err = c.defs.Lookup(ctx, c.cfg.ProviderID)
	}
	if err != nil && len(c.keys) > 0 {
		c.logger.Warn("Filtering active but definition unavailable, keys cannot be resolved", "error", err)
	}

	out := make([]Variable, 0, len(list.Items))
	for _, st := range list.Items {
		key := strconv.FormatUint(uint64(st.ID), 10)
		if err == nil {
			if v, ok := e.Definition.ByID(st.ID); ok {
				key = v.Key
			}
		}
		if !c.include(key) {
			continue
		}
		out = append(out, Variable{
			ProviderID: c.cfg.ProviderID,
			ID:         st.ID,
			Key:        key,
			Value:      st.Value,
			Quality:    st.Quality,
			Timestamp:  st.Timestamp,
		})
	}
	return out
}

func (c *Consumer) include(key string) bool {
	if len(c.keys) == 0 {
		return true
	}
	_, ok := c.keys[key]
	return ok
}

func (c *Consumer) sortedKeys() []string {
	out := make([]string, 0, len(c.keys))
	for k := range c.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Consumer) handleVarsChanged(ctx context.Context, msg *natsclient.Msg) {
	h := c.currentHandler()
	if h == nil {
		return
	}
	list, err := codec.DecodeVariableListFull(msg.Data)
	if err != nil {
		c.logger.Debug("Malformed change event", "error", err)
		c.metrics.RecordError("consumer", errors.ErrorInvalid.String())
		return
	}
	vars := c.mapStates(ctx, list)
	if len(vars) == 0 {
		return
	}
	h(ctx, Update{Kind: KindChange, Variables: vars})
}

func (c *Consumer) handleDefinitionChanged(_ context.Context, msg *natsclient.Msg) {
	def, err := codec.DecodeDefinition(msg.Data)
	if err != nil {
		c.logger.Debug("Malformed definition event", "error", err)
		return
	}
	c.defs.Update(c.cfg.ProviderID, def)
	c.logger.Debug("Definition updated from event", "fingerprint", def.Fingerprint, "variables", len(def.Variables))
}

func (c *Consumer) handleSessionEvent(ev session.Event) {
	switch ev {
	case session.EventDisconnected:
		c.reportHealth(health.NewDegraded("", "bus disconnected"))
	case session.EventReconnected:
		c.reportHealth(health.NewHealthy("", "reconnected"))
		c.mu.Lock()
		if !c.running || c.handler == nil {
			c.mu.Unlock()
			return
		}
		ctx := c.runCtx
		c.wg.Add(1)
		c.mu.Unlock()
		go func() {
			defer c.wg.Done()
			c.logger.Info("Connection restored, refreshing snapshot and subscription")
			c.deliverSnapshot(ctx)
			if err := c.arm(ctx); err != nil {
				c.logger.Warn("Re-subscribe after reconnect failed", "error", err)
			}
		}()
	case session.EventClosed:
		c.reportHealth(health.NewUnhealthy("", "session closed"))
	}
}

func (c *Consumer) reportRequestError(err error) {
	c.metrics.RecordError("consumer", errors.Classify(err).String())
	switch {
	case stderrors.Is(err, errors.ErrProviderOffline), stderrors.Is(err, errors.ErrNoResponders), stderrors.Is(err, errors.ErrTimeout):
		c.reportHealth(health.NewDegraded("", "provider offline"))
	case stderrors.Is(err, errors.ErrAuthCooldown), stderrors.Is(err, errors.ErrCircuitOpen):
		c.reportHealth(health.NewDegraded("", "authentication cooldown"))
	default:
		c.reportHealth(health.FromError("", err))
	}
}

func (c *Consumer) reportHealth(s health.Status) {
	if c.health == nil {
		return
	}
	c.health.Update("consumer/"+c.cfg.ProviderID, s)
}
