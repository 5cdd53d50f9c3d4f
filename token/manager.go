package token

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/singleflight"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
)

// Defaults for Manager timing
const (
	DefaultSafetyMargin  = 60 * time.Second
	DefaultRetryInterval = 5 * time.Second
	DefaultCooldown      = 10 * time.Second
)

// State is the lifecycle state of the cached token
type State int

// Token states
const (
	StateUnauthenticated State = iota
	StateAcquiring
	StateValid
	StateRefreshing
	StateExpired
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAcquiring:
		return "acquiring"
	case StateValid:
		return "valid"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Token is an access token with its absolute expiry
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
	Scope       string
}

// Fetcher obtains a new token from the identity provider
type Fetcher interface {
	Fetch(ctx context.Context) (Token, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context) (Token, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context) (Token, error) {
	return f(ctx)
}

// Option configures a Manager
type Option func(*Manager)

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records fetch outcomes
func WithMetrics(mt *metric.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithSafetyMargin sets how long before expiry a token stops being handed out
func WithSafetyMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithRetryInterval sets the delay before retrying a failed scheduled refresh
func WithRetryInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retryInterval = d
		}
	}
}

// WithCooldown sets how long fetches are refused after a failure
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.cooldown = d
		}
	}
}

// Manager owns the process-wide token
type Manager struct {
	fetcher       Fetcher
	clock         clock.Clock
	logger        *slog.Logger
	metrics       *metric.Metrics
	margin        time.Duration
	retryInterval time.Duration
	cooldown      time.Duration

	group singleflight.Group

	mu          sync.Mutex
	current     *Token
	state       State
	lastFailure time.Time
	timer       *clock.Timer
	closed      bool
}

// NewManager creates a Manager around fetcher
func NewManager(fetcher Fetcher, opts ...Option) *Manager {
	m := &Manager{
		fetcher:       fetcher,
		clock:         clock.New(),
		logger:        slog.Default(),
		margin:        DefaultSafetyMargin,
		retryInterval: DefaultRetryInterval,
		cooldown:      DefaultCooldown,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "token")
	return m
}

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateValid && m.current != nil && !m.clock.Now().Before(m.current.ExpiresAt) {
		return StateExpired
	}
	return m.state
}

// Token returns a token valid for at least the safety margin, fetching one if needed.
// Concurrent callers share a single fetch.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if tok, ok := m.cached(); ok {
		return tok, nil
	}

	if err := m.CheckCircuit(); err != nil {
		m.metrics.RecordTokenRefresh("cooldown")
		return "", err
	}

	ch := m.group.DoChan("token", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), false)
	})

	select {
	case <-ctx.Done():
		return "", errors.WrapTransient(ctx.Err(), "Manager", "Token", "wait for token")
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(Token).AccessToken, nil
	}
}

// Current returns the cached token without fetching. It is empty when no
// token is held or the held token has expired. Suitable for nats.TokenHandler.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil || !m.clock.Now().Before(m.current.ExpiresAt) {
		return ""
	}
	return m.current.AccessToken
}

// GrantedScope returns the scope granted with the current token
func (m *Manager) GrantedScope() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.Scope
}

// ExpiresAt returns the expiry of the cached token
func (m *Manager) ExpiresAt() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return time.Time{}, false
	}
	return m.current.ExpiresAt, true
}

// CheckCircuit fails with ErrAuthCooldown while a recent failure is cooling down
func (m *Manager) CheckCircuit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastFailure.IsZero() {
		return nil
	}
	if m.clock.Since(m.lastFailure) < m.cooldown {
		return errors.WrapTransient(errors.ErrAuthCooldown, "Manager", "CheckCircuit",
			"wait for authentication cooldown")
	}
	return nil
}

// RecordAuthFailure opens the cooldown and drops the cached token.
// Callers use it when the bus rejects the token.
func (m *Manager) RecordAuthFailure() {
	m.mu.Lock()
	m.lastFailure = m.clock.Now()
	m.mu.Unlock()
	m.Invalidate()
}

// Invalidate drops the cached token so the next Token call fetches. A
// background fetch is scheduled after the cooldown so Current recovers even
// when nobody calls Token, as during bus reconnects.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.state = StateUnauthenticated
	if m.closed {
		m.stopTimerLocked()
		return
	}
	m.armLocked(m.cooldown)
}

// Close stops the refresh timer
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.stopTimerLocked()
}

func (m *Manager) cached() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return "", false
	}
	if m.current.ExpiresAt.After(m.clock.Now().Add(m.margin)) {
		return m.current.AccessToken, true
	}
	return "", false
}

func (m *Manager) refresh(ctx context.Context, scheduled bool) (Token, error) {
	m.mu.Lock()
	if m.current != nil {
		m.state = StateRefreshing
	} else {
		m.state = StateAcquiring
	}
	m.mu.Unlock()

	tok, err := m.fetcher.Fetch(ctx)
	if err == nil && tok.AccessToken == "" {
		err = errors.WrapInvalid(errors.ErrInvalidData, "Manager", "refresh", "empty access token")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		auth := errors.IsAuthFailure(err)
		if auth {
			m.lastFailure = m.clock.Now()
		}
		if m.current == nil || !m.clock.Now().Before(m.current.ExpiresAt) {
			m.current = nil
			m.state = StateUnauthenticated
		} else {
			m.state = StateValid
		}
		m.metrics.RecordTokenRefresh("failure")
		m.logger.Warn("Token fetch failed", "scheduled", scheduled, "error", err)
		switch {
		case m.closed:
		case auth:
			m.armLocked(m.cooldown)
		case scheduled:
			m.armLocked(m.retryInterval)
		}
		return Token{}, classify(err)
	}

	m.current = &tok
	m.state = StateValid
	m.lastFailure = time.Time{}
	m.metrics.RecordTokenRefresh("success")

	delay := tok.ExpiresAt.Sub(m.clock.Now()) - m.margin
	if delay < m.retryInterval {
		delay = m.retryInterval
	}
	if !m.closed {
		m.armLocked(delay)
	}
	m.logger.Debug("Token acquired", "expires_at", tok.ExpiresAt, "refresh_in", delay)
	return tok, nil
}

func (m *Manager) armLocked(d time.Duration) {
	m.stopTimerLocked()
	m.timer = m.clock.AfterFunc(d, func() {
		_, _, _ = m.group.Do("token", func() (any, error) {
			return m.refresh(context.Background(), true)
		})
	})
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func classify(err error) error {
	var ce *errors.ClassifiedError
	if stderrors.As(err, &ce) {
		return err
	}
	if errors.IsAuthFailure(err) {
		return errors.WrapFatal(err, "Manager", "refresh", "fetch token")
	}
	return errors.WrapTransient(err, "Manager", "refresh", "fetch token")
}
