// Package provider publishes a set of variables onto the hub bus.
//
// A Provider owns a definition set and the current value of each variable.
// New keys get IDs from 101 upward; whenever the set changes its definition
// event is published before any value that depends on it. The provider
// answers read and definition queries, optionally accepts writes, and keeps
// itself visible with two heartbeats: values every second and the definition
// every five minutes. After a reconnect, or when the registry reports
// RUNNING, the definition is announced again before the next values.
package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/c360/datahub/codec"
	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/fingerprint"
	"github.com/c360/datahub/health"
	"github.com/c360/datahub/hub"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/natsclient"
	"github.com/c360/datahub/pkg/worker"
	"github.com/c360/datahub/session"
	"github.com/c360/datahub/subject"
)

// Defaults
const (
	FirstID                  = 101
	DefaultValueInterval     = time.Second
	DefaultHeartbeatInterval = 300 * time.Second
)

// Session is the bus surface a Provider needs. *session.Session satisfies it.
type Session interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler natsclient.MsgHandler) (natsclient.Subscription, error)
	OnEvent(fn func(session.Event)) func()
}

// Config holds provider settings
type Config struct {
	ProviderID string
	// EnableWrites makes new variables READ_WRITE and serves write commands
	EnableWrites bool
	// HeartbeatInterval is the definition republish period
	HeartbeatInterval time.Duration
	// ValueInterval is the value republish period
	ValueInterval time.Duration
}

// Write is one variable changed by a consumer's write command
type Write struct {
	ProviderID string
	ID         uint32
	Key        string
	Value      hub.Value
}

// WriteHandler receives accepted writes
type WriteHandler func(ctx context.Context, w Write) error

// SetOption adjusts a single Set call
type SetOption func(*Entry)

// WithQuality overrides the quality of every value in the call
func WithQuality(q hub.Quality) SetOption {
	return func(e *Entry) { e.Quality = q }
}

// WithTimestamp overrides the timestamp of every value in the call
func WithTimestamp(ts time.Time) SetOption {
	return func(e *Entry) { e.Timestamp = ts }
}

// Option configures a Provider
type Option func(*Provider)

// WithClock replaces the wall clock used for heartbeats and timestamps
func WithClock(clk clock.Clock) Option {
	return func(p *Provider) {
		if clk != nil {
			p.clock = clk
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics registers the write pool metrics and records errors
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(p *Provider) {
		p.registry = registry
	}
}

// WithWriteHandler receives writes accepted from consumers
func WithWriteHandler(h WriteHandler) Option {
	return func(p *Provider) {
		p.onWrite = h
	}
}

// WithHealth reports status under "provider/<id>"
func WithHealth(m *health.Monitor) Option {
	return func(p *Provider) {
		p.health = m
	}
}

// Provider publishes variables for one provider ID
type Provider struct {
	cfg      Config
	sess     Session
	clock    clock.Clock
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	metrics  *metric.Metrics
	health   *health.Monitor
	onWrite  WriteHandler
	pool     *worker.Pool[Write]
	// poolMetrics outlive each Start's pool
	poolMetrics *worker.Metrics

	mu          sync.Mutex
	defs        []hub.VariableDefinition
	byKey       map[string]uint32
	byID        map[uint32]int
	states      map[uint32]hub.VariableState
	nextID      uint32
	fingerprint uint64
	// announce is set when the definition must be published before the next values
	announce bool

	// publishMu serializes definition and value publishes so their order on the bus matches
	publishMu sync.Mutex

	lifecycleMu sync.Mutex
	running     bool
	cancel      context.CancelFunc
	subs        []natsclient.Subscription
	unlisten    func()
	wg          sync.WaitGroup
}

// New creates a stopped Provider
func New(sess Session, cfg Config, opts ...Option) (*Provider, error) {
	if err := subject.Validate(cfg.ProviderID); err != nil {
		return nil, errors.WrapInvalid(err, "Provider", "New", "validate provider id")
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.ValueInterval <= 0 {
		cfg.ValueInterval = DefaultValueInterval
	}

	p := &Provider{
		cfg:    cfg,
		sess:   sess,
		clock:  clock.New(),
		logger: slog.Default(),
		byKey:  make(map[string]uint32),
		byID:   make(map[uint32]int),
		states: make(map[uint32]hub.VariableState),
		nextID: FirstID,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "provider", "provider", cfg.ProviderID)
	if p.registry != nil {
		p.metrics = p.registry.CoreMetrics()
		if cfg.EnableWrites {
			m, err := worker.RegisterMetrics(p.registry, "provider_"+sanitizeMetricName(cfg.ProviderID)+"_writes")
			if err != nil {
				return nil, errors.WrapInvalid(err, "Provider", "New", "register write metrics")
			}
			p.poolMetrics = m
		}
	}
	p.fingerprint = fingerprint.Compute(nil)
	return p, nil
}

// ID returns the provider ID
func (p *Provider) ID() string { return p.cfg.ProviderID }

func (p *Provider) defaultAccess() hub.Access {
	if p.cfg.EnableWrites {
		return hub.AccessReadWrite
	}
	return hub.AccessReadOnly
}

// Define registers key with an automatically assigned ID. Defining an
// existing key returns its definition unchanged.
func (p *Provider) Define(key string, dt hub.DataType) (hub.VariableDefinition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	def, _, err := p.defineLocked(0, key, dt)
	return def, err
}

// DefineWithID registers key under an explicit ID
func (p *Provider) DefineWithID(id uint32, key string, dt hub.DataType) (hub.VariableDefinition, error) {
	if id == 0 {
		return hub.VariableDefinition{}, errors.WrapInvalid(
			fmt.Errorf("%w: id 0 is reserved", errors.ErrInvalidData), "Provider", "DefineWithID", "validate id")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	def, _, err := p.defineLocked(id, key, dt)
	return def, err
}

func (p *Provider) defineLocked(id uint32, key string, dt hub.DataType) (hub.VariableDefinition, bool, error) {
	if key == "" {
		return hub.VariableDefinition{}, false, errors.WrapInvalid(
			fmt.Errorf("%w: empty key", errors.ErrInvalidData), "Provider", "Define", "validate key")
	}
	if existing, ok := p.byKey[key]; ok {
		def := p.defs[p.byID[existing]]
		if id != 0 && id != existing {
			return hub.VariableDefinition{}, false, errors.WrapInvalid(
				fmt.Errorf("%w: key %q already has id %d", errors.ErrInvalidData, key, existing),
				"Provider", "Define", "register key")
		}
		return def, false, nil
	}
	if !dt.Valid() {
		dt = hub.DataTypeString
	}

	if id == 0 {
		for {
			if _, taken := p.byID[p.nextID]; !taken {
				break
			}
			p.nextID++
		}
		id = p.nextID
		p.nextID++
	} else if _, taken := p.byID[id]; taken {
		return hub.VariableDefinition{}, false, errors.WrapInvalid(
			fmt.Errorf("%w: id %d already in use", errors.ErrInvalidData, id), "Provider", "Define", "register key")
	}

	def := hub.VariableDefinition{ID: id, Key: key, DataType: dt, Access: p.defaultAccess()}
	p.byKey[key] = id
	p.byID[id] = len(p.defs)
	p.defs = append(p.defs, def)
	p.states[id] = hub.VariableState{
		ID:        id,
		Value:     hub.ZeroValue(dt),
		Quality:   hub.QualityGood,
		Timestamp: p.clock.Now(),
	}
	p.fingerprint = fingerprint.Compute(p.defs)
	p.announce = true
	p.logger.Debug("Variable defined", "key", key, "id", id, "type", dt)
	return def, true, nil
}

// Definition returns the current definition set
func (p *Provider) Definition() hub.ProviderDefinition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.definitionLocked()
}

func (p *Provider) definitionLocked() hub.ProviderDefinition {
	return hub.ProviderDefinition{
		Fingerprint: p.fingerprint,
		Variables:   append([]hub.VariableDefinition(nil), p.defs...),
	}
}

// Value returns the current state of key
func (p *Provider) Value(key string) (hub.VariableState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byKey[key]
	if !ok {
		return hub.VariableState{}, false
	}
	return p.states[id], true
}

// Set stores value under key and publishes. Maps and slices are flattened
// below key; see Flatten.
func (p *Provider) Set(ctx context.Context, key string, value any, opts ...SetOption) error {
	entries := Flatten(key, value)
	for i := range entries {
		for _, opt := range opts {
			opt(&entries[i])
		}
	}
	return p.apply(ctx, entries)
}

// Ingest flattens a whole payload into variables and publishes
func (p *Provider) Ingest(ctx context.Context, payload any) error {
	return p.apply(ctx, Flatten("", payload))
}

func (p *Provider) apply(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	var errs []error
	p.mu.Lock()
	now := p.clock.Now()
	for _, e := range entries {
		id, ok := p.byKey[e.Key]
		if !ok {
			def, _, err := p.defineLocked(0, e.Key, hub.InferType(e.Value))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			id = def.ID
		}
		def := p.defs[p.byID[id]]

		v, err := hub.Coerce(def.DataType, e.Value)
		if err != nil {
			errs = append(errs, errors.WrapInvalid(err, "Provider", "Set", "coerce "+e.Key))
			continue
		}
		ts := e.Timestamp
		if ts.IsZero() {
			ts = now
		}
		p.states[id] = hub.VariableState{ID: id, Value: v, Quality: e.Quality, Timestamp: ts}
	}
	p.mu.Unlock()

	if p.isRunning() {
		if err := p.publishValues(ctx, false); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Start acquires the session, subscribes to queries and starts the heartbeats
func (p *Provider) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Provider", "Start", "start provider")
	}

	p.reportHealth(health.NewConnecting("", "acquiring session"))
	if err := p.sess.Acquire(ctx); err != nil {
		p.reportHealth(health.FromError("", err))
		return errors.Wrap(err, "Provider", "Start", "acquire session")
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	if p.cfg.EnableWrites {
		pool, err := p.newWritePool()
		if err != nil {
			cancel()
			_ = p.sess.Release(ctx)
			return err
		}
		if err := pool.Start(runCtx); err != nil {
			cancel()
			_ = p.sess.Release(ctx)
			return errors.Wrap(err, "Provider", "Start", "start write pool")
		}
		p.pool = pool
	}

	handlers := map[string]natsclient.MsgHandler{
		subject.ReadVariablesQuery(p.cfg.ProviderID):  p.handleReadVariables,
		subject.ReadDefinitionQuery(p.cfg.ProviderID): p.handleReadDefinition,
		subject.RegistryStateChanged:                  p.handleRegistryState,
	}
	if p.cfg.EnableWrites {
		handlers[subject.WriteVariablesCommand(p.cfg.ProviderID)] = p.handleWrite
	}

	for subj, h := range handlers {
		sub, err := p.sess.Subscribe(runCtx, subj, h)
		if err != nil {
			p.cleanupLocked(ctx)
			cancel()
			return errors.Wrap(err, "Provider", "Start", "subscribe "+subj)
		}
		p.subs = append(p.subs, sub)
	}

	p.unlisten = p.sess.OnEvent(p.handleSessionEvent)
	p.cancel = cancel
	p.running = true

	p.mu.Lock()
	p.announce = true
	p.mu.Unlock()
	if err := p.publishDefinition(runCtx); err != nil {
		p.logger.Warn("Initial definition publish failed", "error", err)
	}

	// Tickers are created before Start returns so no tick is missed.
	values := p.clock.Ticker(p.cfg.ValueInterval)
	defs := p.clock.Ticker(p.cfg.HeartbeatInterval)
	p.wg.Add(1)
	go p.heartbeat(runCtx, values, defs)

	p.reportHealth(health.NewHealthy("", "ready"))
	p.logger.Info("Provider started", "writes", p.cfg.EnableWrites, "variables", len(p.Definition().Variables))
	return nil
}

// Stop ends the heartbeats, unsubscribes and releases the session
func (p *Provider) Stop(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.running {
		return nil
	}
	p.running = false
	p.cancel()
	p.wg.Wait()

	err := p.cleanupLocked(ctx)
	p.reportHealth(health.NewUnhealthy("", "stopped"))
	p.logger.Info("Provider stopped")
	return err
}

func (p *Provider) cleanupLocked(ctx context.Context) error {
	var errs []error
	if p.unlisten != nil {
		p.unlisten()
		p.unlisten = nil
	}
	for _, sub := range p.subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	p.subs = nil
	if p.pool != nil {
		if err := p.pool.Stop(5 * time.Second); err != nil {
			errs = append(errs, err)
		}
		p.pool = nil
	}
	if err := p.sess.Release(ctx); err != nil {
		errs = append(errs, err)
	}
	return stderrors.Join(errs...)
}

func (p *Provider) isRunning() bool {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()
	return p.running
}

func (p *Provider) newWritePool() (*worker.Pool[Write], error) {
	process := func(ctx context.Context, w Write) error {
		if p.onWrite == nil {
			return nil
		}
		return p.onWrite(ctx, w)
	}
	return worker.NewPool(worker.DefaultWorkers, worker.DefaultQueueSize, process,
		worker.WithLogger[Write](p.logger),
		worker.WithMetrics[Write](p.poolMetrics),
		worker.WithErrorHandler(func(w Write, err error) {
			p.logger.Warn("Write handler failed", "key", w.Key, "id", w.ID, "error", err)
			p.metrics.RecordError("provider", errors.Classify(err).String())
		}),
	)
}

func (p *Provider) heartbeat(ctx context.Context, values, defs *clock.Ticker) {
	defer p.wg.Done()
	defer values.Stop()
	defer defs.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-values.C:
			if err := p.publishValues(ctx, true); err != nil {
				p.logger.Debug("Value heartbeat failed", "error", err)
			}
		case <-defs.C:
			p.mu.Lock()
			p.announce = true
			p.mu.Unlock()
			if err := p.publishDefinition(ctx); err != nil {
				p.logger.Debug("Definition heartbeat failed", "error", err)
			}
		}
	}
}

// publishDefinition announces the definition set if one is pending
func (p *Provider) publishDefinition(ctx context.Context) error {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()
	return p.publishDefinitionLocked(ctx)
}

func (p *Provider) publishDefinitionLocked(ctx context.Context) error {
	p.mu.Lock()
	if !p.announce || len(p.defs) == 0 {
		p.mu.Unlock()
		return nil
	}
	def := p.definitionLocked()
	p.announce = false
	p.mu.Unlock()

	if err := p.sess.Publish(ctx, subject.DefinitionChanged(p.cfg.ProviderID), codec.EncodeDefinition(def)); err != nil {
		p.mu.Lock()
		p.announce = true
		p.mu.Unlock()
		return err
	}
	p.logger.Debug("Definition published", "fingerprint", def.Fingerprint, "variables", len(def.Variables))
	return nil
}

// publishValues sends every current value, first announcing a pending
// definition. refresh stamps all values with the current time.
func (p *Provider) publishValues(ctx context.Context, refresh bool) error {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	if err := p.publishDefinitionLocked(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	if len(p.defs) == 0 {
		p.mu.Unlock()
		return nil
	}
	if refresh {
		now := p.clock.Now()
		for id, st := range p.states {
			st.Timestamp = now
			p.states[id] = st
		}
	}
	defs := append([]hub.VariableDefinition(nil), p.defs...)
	states := p.statesLocked(nil)
	fp := p.fingerprint
	p.mu.Unlock()

	payload, err := codec.EncodeVariableList(defs, states, fp)
	if err != nil {
		return err
	}
	return p.sess.Publish(ctx, subject.VarsChanged(p.cfg.ProviderID), payload)
}

// statesLocked returns the states for ids in definition order; nil ids means all
func (p *Provider) statesLocked(ids []uint32) []hub.VariableState {
	if len(ids) == 0 {
		out := make([]hub.VariableState, 0, len(p.defs))
		for _, d := range p.defs {
			out = append(out, p.states[d.ID])
		}
		return out
	}
	out := make([]hub.VariableState, 0, len(ids))
	for _, id := range ids {
		if st, ok := p.states[id]; ok {
			out = append(out, st)
		}
	}
	return out
}

func (p *Provider) handleReadVariables(_ context.Context, msg *natsclient.Msg) {
	if msg.Reply == "" {
		return
	}
	ids, err := codec.DecodeReadQuery(msg.Data)
	if err != nil {
		p.logger.Debug("Malformed read query", "error", err)
		ids = nil
	}

	p.mu.Lock()
	defs := append([]hub.VariableDefinition(nil), p.defs...)
	states := p.statesLocked(ids)
	fp := p.fingerprint
	p.mu.Unlock()

	payload, err := codec.EncodeReadResponse(defs, states, fp)
	if err != nil {
		p.logger.Warn("Failed to encode read response", "error", err)
		return
	}
	if err := msg.Respond(payload); err != nil {
		p.logger.Debug("Failed to answer read query", "error", err)
	}
}

func (p *Provider) handleReadDefinition(_ context.Context, msg *natsclient.Msg) {
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(codec.EncodeDefinitionResponse(p.Definition())); err != nil {
		p.logger.Debug("Failed to answer definition query", "error", err)
	}
}

func (p *Provider) handleRegistryState(ctx context.Context, msg *natsclient.Msg) {
	state, err := codec.DecodeRegistryState(msg.Data)
	if err != nil {
		p.logger.Debug("Malformed registry state event", "error", err)
		return
	}
	if state != hub.RegistryStateRunning {
		return
	}
	p.logger.Info("Registry running, republishing definition")
	p.mu.Lock()
	p.announce = true
	p.mu.Unlock()
	if err := p.publishDefinition(ctx); err != nil {
		p.logger.Warn("Definition republish failed", "error", err)
	}
}

func (p *Provider) handleWrite(ctx context.Context, msg *natsclient.Msg) {
	updates, fp, err := codec.DecodeWriteCommand(msg.Data)
	if err != nil {
		p.logger.Warn("Malformed write command", "error", err)
		return
	}
	if len(updates) == 0 {
		return
	}

	var accepted []Write
	p.mu.Lock()
	if fp != 0 && fp != p.fingerprint {
		current := p.fingerprint
		p.mu.Unlock()
		p.logger.Warn("Write command for a different definition set ignored",
			"command_fingerprint", fp, "fingerprint", current)
		p.metrics.RecordError("provider", errors.ErrorInvalid.String())
		return
	}
	now := p.clock.Now()
	for _, u := range updates {
		idx, ok := p.byID[u.ID]
		if !ok {
			p.logger.Debug("Write for unknown variable", "id", u.ID)
			continue
		}
		def := p.defs[idx]
		if !def.Access.Writable() {
			p.logger.Debug("Write for read-only variable", "key", def.Key)
			continue
		}
		v, err := hub.Coerce(def.DataType, u.Value)
		if err != nil {
			continue
		}
		p.states[u.ID] = hub.VariableState{ID: u.ID, Value: v, Quality: hub.QualityGoodLocalOverride, Timestamp: now}
		accepted = append(accepted, Write{ProviderID: p.cfg.ProviderID, ID: u.ID, Key: def.Key, Value: v})
	}
	p.mu.Unlock()

	if len(accepted) == 0 {
		return
	}
	p.logger.Debug("Write command applied", "variables", len(accepted))

	if err := p.publishValues(ctx, false); err != nil {
		p.logger.Warn("Failed to acknowledge write", "error", err)
	}
	if p.pool == nil {
		return
	}
	for _, w := range accepted {
		if err := p.pool.Submit(w); err != nil {
			p.logger.Warn("Dropping write notification", "key", w.Key, "error", err)
		}
	}
}

func (p *Provider) handleSessionEvent(ev session.Event) {
	switch ev {
	case session.EventDisconnected:
		p.reportHealth(health.NewDegraded("", "bus disconnected"))
	case session.EventReconnected:
		p.mu.Lock()
		p.announce = true
		p.mu.Unlock()
		p.reportHealth(health.NewHealthy("", "reconnected"))
		go func() {
			if err := p.publishDefinition(context.Background()); err != nil {
				p.logger.Warn("Definition replay after reconnect failed", "error", err)
			}
		}()
	case session.EventClosed:
		p.reportHealth(health.NewUnhealthy("", "session closed"))
	}
}

func (p *Provider) reportHealth(s health.Status) {
	if p.health == nil {
		return
	}
	p.health.Update("provider/"+p.cfg.ProviderID, s)
}

func sanitizeMetricName(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			b[i] = '_'
		}
	}
	return string(b)
}
