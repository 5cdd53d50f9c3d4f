package main

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/c360/datahub/config"
	"github.com/c360/datahub/consumer"
	"github.com/c360/datahub/discovery"
	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/health"
	"github.com/c360/datahub/hub"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/natsclient"
	"github.com/c360/datahub/provider"
	"github.com/c360/datahub/scheduler"
	"github.com/c360/datahub/session"
)

// maxLineSize bounds one stdin record
const maxLineSize = 1 << 20

// appDeps are the pieces main builds from the environment and tests replace
type appDeps struct {
	dial natsclient.Dialer
	// creds is nil for an anonymous connection
	creds session.Credentials
	rest  *discovery.RESTClient
	name  string
	// registry is shared with components built outside the app; nil creates one
	registry *metric.MetricsRegistry
}

// app owns every long-lived component of one datahub process
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	monitor  *health.Monitor
	sess     *session.Session
	defs     *discovery.Cache
	server   *metric.Server

	providers []*provider.Provider
	consumers []*consumer.Consumer

	outMu    sync.Mutex
	out      *json.Encoder
	unlisten func()
	unwatch  func()
	acquired bool
}

// outputRecord is one JSON line on stdout
type outputRecord struct {
	Kind       string              `json:"type"`
	ProviderID string              `json:"providerId,omitempty"`
	Variables  []consumer.Variable `json:"variables,omitempty"`
	ID         uint32              `json:"id,omitempty"`
	Key        string              `json:"key,omitempty"`
	Value      *hub.Value          `json:"value,omitempty"`
}

// inputRecord addresses a payload to one provider
type inputRecord struct {
	Provider string          `json:"provider"`
	Payload  json.RawMessage `json:"payload"`
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer, deps appDeps) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: deps.registry,
		monitor:  health.NewMonitor(),
		out:      json.NewEncoder(out),
	}
	if a.registry == nil {
		a.registry = metric.NewMetricsRegistry()
	}
	core := a.registry.CoreMetrics()

	sessOpts := []session.Option{
		session.WithName(deps.name),
		session.WithLogger(logger),
		session.WithMetrics(core),
		session.WithSchedulerOptions(
			scheduler.WithMaxInFlight(cfg.Session.MaxInFlight),
			scheduler.WithLogger(logger),
			scheduler.WithMetrics(core),
		),
	}
	if deps.creds != nil {
		sessOpts = append(sessOpts, session.WithCredentials(deps.creds))
	}
	a.sess = session.New(deps.dial, sessOpts...)

	defsOpts := []discovery.Option{
		discovery.WithTTL(cfg.Discovery.TTL),
		discovery.WithStrategyTimeout(cfg.Discovery.StrategyTimeout),
		discovery.WithLogger(logger),
		discovery.WithMetrics(a.registry),
	}
	if deps.rest != nil {
		defsOpts = append(defsOpts, discovery.WithREST(deps.rest))
	}
	defs, err := discovery.New(ctx, a.sess, defsOpts...)
	if err != nil {
		return nil, err
	}
	a.defs = defs

	for providerID := range cfg.Discovery.Overrides {
		defs.SetOverrides(providerID, cfg.OverridesFor(providerID))
	}
	for _, cc := range cfg.Consumers {
		defs.SetOverrides(cc.ProviderID, cfg.OverridesFor(cc.ProviderID))
	}

	for _, pc := range cfg.Providers {
		p, err := a.buildProvider(pc)
		if err != nil {
			_ = defs.Close()
			return nil, err
		}
		a.providers = append(a.providers, p)
	}

	for _, cc := range cfg.Consumers {
		c, err := consumer.New(a.sess, defs, consumer.Config{
			ProviderID:      cc.ProviderID,
			Keys:            cc.FilterKeys(),
			PollingInterval: cc.PollingInterval,
			RequestTimeout:  cfg.Session.RequestTimeout,
		},
			consumer.WithLogger(logger),
			consumer.WithMetrics(core),
			consumer.WithHealth(a.monitor),
		)
		if err != nil {
			_ = defs.Close()
			return nil, err
		}
		a.consumers = append(a.consumers, c)
	}

	if cfg.Metrics.Enabled {
		a.server = metric.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path, a.registry)
		a.server.SetHealthHandler(a.monitor.Handler(appName))
	}
	return a, nil
}

func (a *app) buildProvider(pc config.ProviderConfig) (*provider.Provider, error) {
	p, err := provider.New(a.sess, provider.Config{
		ProviderID:        pc.ID,
		EnableWrites:      pc.EnableWrites,
		HeartbeatInterval: pc.HeartbeatInterval,
	},
		provider.WithLogger(a.logger),
		provider.WithMetrics(a.registry),
		provider.WithHealth(a.monitor),
		provider.WithWriteHandler(a.handleWrite),
	)
	if err != nil {
		return nil, err
	}

	for _, v := range pc.Variables {
		dt := hub.ParseDataType(v.Type)
		if v.ID != 0 {
			_, err = p.DefineWithID(v.ID, v.Key, dt)
		} else {
			_, err = p.Define(v.Key, dt)
		}
		if err != nil {
			return nil, errors.Wrap(err, "app", "buildProvider", fmt.Sprintf("define %s/%s", pc.ID, v.Key))
		}
	}
	return p, nil
}

// start connects and starts every provider and consumer. On error the
// caller still runs stop.
func (a *app) start(ctx context.Context) error {
	a.unlisten = a.sess.OnEvent(a.handleSessionEvent)
	a.unwatch = a.monitor.Watch(func(s health.Status) {
		a.logger.Info("Health changed", "component", s.Component, "status", s.Status, "message", s.Message)
	})

	a.monitor.UpdateConnecting("session", "connecting to "+a.cfg.Hub.NATSURL())
	if err := a.sess.Acquire(ctx); err != nil {
		a.monitor.Update("session", health.FromError("session", err))
		return errors.Wrap(err, "app", "start", "connect to hub")
	}
	a.acquired = true
	a.monitor.UpdateHealthy("session", "connected")

	if a.server != nil {
		if err := a.server.Start(); err != nil {
			return err
		}
		a.logger.Info("Metrics server started", "address", a.server.Address())
	}

	for _, p := range a.providers {
		if err := p.Start(ctx); err != nil {
			return err
		}
	}
	for _, c := range a.consumers {
		if err := c.Start(ctx); err != nil {
			return err
		}
		if err := c.Subscribe(ctx, a.emitUpdate); err != nil {
			// the provider may come online later; changes still flow once it does
			a.logger.Warn("Initial snapshot failed", "provider", c.ProviderID(), "error", err)
		}
	}
	return nil
}

// stop tears down in reverse start order and returns every error
func (a *app) stop(ctx context.Context) error {
	var errs []error
	for i := len(a.consumers) - 1; i >= 0; i-- {
		errs = append(errs, a.consumers[i].Stop(ctx))
	}
	for i := len(a.providers) - 1; i >= 0; i-- {
		errs = append(errs, a.providers[i].Stop(ctx))
	}
	if a.server != nil {
		errs = append(errs, a.server.Stop())
	}
	errs = append(errs, a.defs.Close())
	if a.acquired {
		errs = append(errs, a.sess.Release(ctx))
		a.acquired = false
	}
	if a.unlisten != nil {
		a.unlisten()
	}
	if a.unwatch != nil {
		a.unwatch()
	}
	return stderrors.Join(errs...)
}

func (a *app) handleSessionEvent(ev session.Event) {
	switch ev {
	case session.EventDisconnected:
		a.monitor.UpdateDegraded("session", "disconnected, reconnecting")
	case session.EventReconnected:
		a.monitor.UpdateHealthy("session", "reconnected")
	case session.EventClosed:
		a.monitor.UpdateUnhealthy("session", "connection closed")
	}
}

func (a *app) emitUpdate(_ context.Context, u consumer.Update) {
	rec := outputRecord{Kind: string(u.Kind), Variables: u.Variables}
	if len(u.Variables) > 0 {
		rec.ProviderID = u.Variables[0].ProviderID
	}
	a.emit(rec)
}

func (a *app) handleWrite(_ context.Context, w provider.Write) error {
	value := w.Value
	a.emit(outputRecord{Kind: "write", ProviderID: w.ProviderID, ID: w.ID, Key: w.Key, Value: &value})
	return nil
}

func (a *app) emit(rec outputRecord) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	if err := a.out.Encode(rec); err != nil {
		a.logger.Error("Failed to write output", "error", err)
	}
}

// ingest reads JSON lines from r until EOF or ctx ends. Malformed lines
// are logged and skipped.
func (a *app) ingest(ctx context.Context, r io.Reader) error {
	if len(a.providers) == 0 {
		return nil
	}
	byID := make(map[string]*provider.Provider, len(a.providers))
	for _, p := range a.providers {
		byID[p.ID()] = p
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		target, payload, err := a.route(raw, byID)
		if err != nil {
			a.logger.Warn("Skipping input line", "line", line, "error", err)
			continue
		}
		if err := target.Ingest(ctx, payload); err != nil {
			a.logger.Warn("Failed to publish input", "line", line, "provider", target.ID(), "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "app", "ingest", "read input")
	}
	return nil
}

func (a *app) route(raw []byte, byID map[string]*provider.Provider) (*provider.Provider, any, error) {
	var rec inputRecord
	if err := json.Unmarshal(raw, &rec); err == nil && rec.Provider != "" && rec.Payload != nil {
		p, ok := byID[rec.Provider]
		if !ok {
			return nil, nil, fmt.Errorf("unknown provider %q", rec.Provider)
		}
		var payload any
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return nil, nil, errors.WrapInvalid(err, "app", "route", "decode payload")
		}
		return p, payload, nil
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, errors.WrapInvalid(err, "app", "route", "decode line")
	}
	return a.providers[0], payload, nil
}

// listProviders prints the hub's provider list as JSON lines
func (a *app) listProviders(ctx context.Context) error {
	providers, err := a.defs.ListProviders(ctx)
	if err != nil {
		return err
	}
	for _, p := range providers {
		a.outMu.Lock()
		err := a.out.Encode(p)
		a.outMu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}
