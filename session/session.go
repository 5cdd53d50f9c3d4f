// Package session owns the process's bus connection.
//
// A Session dials lazily on the first Acquire and closes the connection when
// the last holder calls Release. Requests go through a concurrency-limited
// scheduler; connection lifecycle changes are broadcast to listeners
// registered with OnEvent so providers and consumers can replay state after a
// reconnect.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/natsclient"
	"github.com/c360/datahub/scheduler"
)

// Event is a connection lifecycle change
type Event string

// Connection events
const (
	EventDisconnected Event = "DISCONNECTED"
	EventReconnected  Event = "RECONNECTED"
	EventClosed       Event = "CLOSED"
)

// State is the session's connection state
type State string

// Session states
const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Credentials supplies bus tokens and tracks authentication failures.
// *token.Manager satisfies it.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Current() string
	CheckCircuit() error
	RecordAuthFailure()
	Invalidate()
}

// Status is a point-in-time view of the session
type Status struct {
	State     State
	Refs      int
	InFlight  int
	Queued    int
	Name      string
	LastError error
}

// Option configures a Session
type Option func(*Session)

// WithCredentials enables token authentication. Without it the session
// connects anonymously.
func WithCredentials(c Credentials) Option {
	return func(s *Session) {
		s.creds = c
	}
}

// WithName sets the client name announced to the server. The default is
// "datahub-" plus a random UUID.
func WithName(name string) Option {
	return func(s *Session) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records scheduler and error metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithSchedulerOptions configures the request scheduler created on connect
func WithSchedulerOptions(opts ...scheduler.Option) Option {
	return func(s *Session) {
		s.schedOpts = append(s.schedOpts, opts...)
	}
}

// Session is a reference-counted shared bus connection
type Session struct {
	dial      natsclient.Dialer
	creds     Credentials
	name      string
	logger    *slog.Logger
	metrics   *metric.Metrics
	schedOpts []scheduler.Option

	mu        sync.Mutex
	refs      int
	transport natsclient.Transport
	sched     *scheduler.Scheduler
	state     State
	lastErr   error
	// generation increments per dial so callbacks from a closed transport are ignored
	generation uint64

	listenersMu sync.RWMutex
	listeners   map[int]func(Event)
	nextID      int
}

// New creates an idle Session that connects through dial
func New(dial natsclient.Dialer, opts ...Option) *Session {
	s := &Session{
		dial:      dial,
		name:      "datahub-" + uuid.NewString(),
		logger:    slog.Default(),
		state:     StateIdle,
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session", "client", s.name)
	return s
}

// Acquire takes a reference, connecting if this is the first one
func (s *Session) Acquire(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport != nil {
		s.refs++
		return nil
	}

	if s.creds != nil {
		if err := s.creds.CheckCircuit(); err != nil {
			return err
		}
		// A valid token must exist before the first connect; the handler
		// below is synchronous and cannot fetch.
		if _, err := s.creds.Token(ctx); err != nil {
			s.lastErr = err
			return errors.Wrap(err, "Session", "Acquire", "obtain token")
		}
	}

	s.state = StateConnecting
	s.generation++
	gen := s.generation

	opts := natsclient.DialOptions{
		Name:         s.name,
		OnDisconnect: func(err error) { s.handleDisconnect(gen, err) },
		OnReconnect:  func() { s.handleReconnect(gen) },
		OnClosed:     func() { s.handleClosed(gen) },
	}
	if s.creds != nil {
		opts.TokenHandler = s.creds.Current
	}

	transport, err := s.dial(ctx, opts)
	if err != nil {
		s.state = StateIdle
		s.lastErr = err
		if errors.IsAuthFailure(err) && s.creds != nil {
			s.creds.RecordAuthFailure()
			s.creds.Invalidate()
		}
		s.metrics.RecordError("session", errors.Classify(err).String())
		return errors.Wrap(err, "Session", "Acquire", "connect")
	}

	schedOpts := append([]scheduler.Option{
		scheduler.WithLogger(s.logger),
		scheduler.WithMetrics(s.metrics),
	}, s.schedOpts...)

	s.transport = transport
	s.sched = scheduler.New(transport, schedOpts...)
	s.state = StateConnected
	s.lastErr = nil
	s.refs = 1
	s.logger.Info("Session connected")
	return nil
}

// Release drops a reference. The last release drains and closes the connection.
func (s *Session) Release(ctx context.Context) error {
	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return nil
	}
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return nil
	}

	transport, sched := s.transport, s.sched
	s.transport = nil
	s.sched = nil
	s.state = StateClosed
	s.mu.Unlock()

	sched.Close()
	err := transport.Close(ctx)
	s.logger.Info("Session closed")
	s.emit(EventClosed)
	return err
}

// OnEvent registers fn for lifecycle events and returns a function that removes it.
// Listeners run on the bus client's callback goroutine and must not block.
func (s *Session) OnEvent(fn func(Event)) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) emit(ev Event) {
	s.listenersMu.RLock()
	fns := make([]func(Event), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Session) current(gen uint64) bool {
	return s.generation == gen && s.transport != nil
}

func (s *Session) handleDisconnect(gen uint64, err error) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	s.state = StateReconnecting
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()

	if err != nil && errors.IsAuthFailure(errors.FromNATS(err)) && s.creds != nil {
		s.logger.Warn("Bus rejected credentials", "error", err)
		s.creds.RecordAuthFailure()
		s.creds.Invalidate()
	} else {
		s.logger.Warn("Session disconnected", "error", err)
	}
	s.emit(EventDisconnected)
}

func (s *Session) handleReconnect(gen uint64) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	s.state = StateConnected
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("Session reconnected")
	s.emit(EventReconnected)
}

// handleClosed covers the server or client library giving up on the
// connection; a Release-initiated close is announced by Release itself.
func (s *Session) handleClosed(gen uint64) {
	s.mu.Lock()
	if !s.current(gen) {
		s.mu.Unlock()
		return
	}
	transport, sched := s.transport, s.sched
	s.transport = nil
	s.sched = nil
	s.refs = 0
	s.state = StateClosed
	s.mu.Unlock()

	sched.Close()
	_ = transport.Close(context.Background())
	s.logger.Warn("Session closed by transport")
	s.emit(EventClosed)
}

func (s *Session) active() (natsclient.Transport, *scheduler.Scheduler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return nil, nil, errors.WrapTransient(errors.ErrNoConnection, "Session", "active", "session not acquired")
	}
	return s.transport, s.sched, nil
}

// Publish sends data on subject
func (s *Session) Publish(ctx context.Context, subject string, data []byte) error {
	t, _, err := s.active()
	if err != nil {
		return err
	}
	if err := t.Publish(ctx, subject, data); err != nil {
		s.observe(err)
		return errors.WrapTransient(err, "Session", "Publish", "publish "+subject)
	}
	s.metrics.RecordPublished(kindOf(subject))
	return nil
}

// Subscribe registers handler on subject. Subscriptions survive reconnects
// but not EventClosed; after a new Acquire they must be made again.
func (s *Session) Subscribe(ctx context.Context, subject string, handler natsclient.MsgHandler) (natsclient.Subscription, error) {
	t, _, err := s.active()
	if err != nil {
		return nil, err
	}
	kind := kindOf(subject)
	sub, err := t.Subscribe(ctx, subject, func(ctx context.Context, msg *natsclient.Msg) {
		s.metrics.RecordReceived(kind)
		handler(ctx, msg)
	})
	if err != nil {
		s.observe(err)
		return nil, err
	}
	return sub, nil
}

// Request sends payload and waits up to timeout for a reply, subject to the
// scheduler's concurrency limit
func (s *Session) Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error) {
	_, sched, err := s.active()
	if err != nil {
		return nil, err
	}
	resp, err := sched.Request(ctx, subject, payload, timeout)
	s.observe(err)
	return resp, err
}

// RequestWithRetry is Request with the scheduler's retry policy for
// timeouts and missing responders
func (s *Session) RequestWithRetry(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error) {
	_, sched, err := s.active()
	if err != nil {
		return nil, err
	}
	resp, err := sched.RequestWithRetry(ctx, subject, payload, timeout)
	s.observe(err)
	return resp, err
}

func (s *Session) observe(err error) {
	if err == nil {
		return
	}
	if errors.IsAuthFailure(err) && s.creds != nil {
		s.creds.RecordAuthFailure()
		s.creds.Invalidate()
	}
	s.metrics.RecordError("session", errors.Classify(err).String())
}

// Status returns the current session state
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:     s.state,
		Refs:      s.refs,
		Name:      s.name,
		LastError: s.lastErr,
	}
	if s.sched != nil {
		st.InFlight = s.sched.InFlight()
		st.Queued = s.sched.Queued()
	}
	return st
}

// String implements fmt.Stringer
func (st Status) String() string {
	return fmt.Sprintf("%s refs=%d in_flight=%d queued=%d", st.State, st.Refs, st.InFlight, st.Queued)
}

// kindOf reduces a subject to its last three tokens, e.g. "vars.evt.changed"
func kindOf(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) < 3 {
		return subject
	}
	return strings.Join(parts[len(parts)-3:], ".")
}
