package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nats-io/nats.go"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
)

// Circuit breaker gauge values
const (
	circuitClosed = 0
	circuitOpen   = 1
)

// Client is one NATS connection to the hub. It implements Transport.
type Client struct {
	url     string
	logger  Logger
	metrics *metric.Metrics
	clock   clock.Clock
	breaker *breaker

	status     atomic.Int32
	reconnects atomic.Int32
	closed     atomic.Bool

	// connection settings, fixed after NewClient
	name           string
	maxReconnects  int
	reconnectWait  time.Duration
	pingInterval   time.Duration
	connectTimeout time.Duration
	handlerTimeout time.Duration
	tlsConfig      *tls.Config
	tokenHandler   func() string

	breakerThreshold int
	breakerMaxWait   time.Duration

	onDisconnect func(error)
	onReconnect  func()
	onClosed     func()

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewClient prepares a client for url. Nothing is dialled until Connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:            url,
		logger:         NewSlogLogger(nil),
		clock:          clock.New(),
		maxReconnects:  -1,
		reconnectWait:  2 * time.Second,
		pingInterval:   30 * time.Second,
		connectTimeout: 5 * time.Second,
		handlerTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.breaker = newBreaker(c.clock, c.breakerThreshold, c.breakerMaxWait)
	c.breaker.onChange = c.circuitChanged
	c.setStatus(StatusDisconnected)
	return c, nil
}

// URL returns the server URL the client dials
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection state
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(int32(s))
}

// IsConnected reports whether messages can flow right now
func (c *Client) IsConnected() bool {
	return c.Status() == StatusConnected
}

// Failures is the number of failed connects since the last success
func (c *Client) Failures() int {
	n, _, _ := c.breaker.stats()
	return n
}

// Reconnects counts successful reconnections since Connect
func (c *Client) Reconnects() int {
	return int(c.reconnects.Load())
}

// Conn exposes the underlying connection, or nil before Connect
func (c *Client) Conn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

func (c *Client) natsOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(c.pingInterval),
		nats.Timeout(c.connectTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleAsyncError),
	}
	if c.name != "" {
		opts = append(opts, nats.Name(c.name))
	}
	if c.tokenHandler != nil {
		opts = append(opts, nats.TokenHandler(c.tokenHandler))
	}
	if c.tlsConfig != nil {
		opts = append(opts, nats.Secure(c.tlsConfig))
	}
	return opts
}

// Connect dials the server. It fails fast with ErrCircuitOpen while the
// connect breaker is open, and gives up when ctx ends.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.WrapFatal(ErrNotConnected, "Client", "Connect", "client closed")
	}
	if !c.breaker.allow() {
		return ErrCircuitOpen
	}

	c.setStatus(StatusConnecting)
	c.logger.Debugf("Connecting to %s", c.url)

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	opts := c.natsOptions()
	go func() {
		conn, err := nats.Connect(c.url, opts...)
		done <- result{conn, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		// the dial finishes in the background; close whatever it produces
		go func() {
			if late := <-done; late.conn != nil {
				late.conn.Close()
			}
		}()
		res.err = ctx.Err()
	}

	if res.err != nil {
		if wait := c.breaker.fail(); wait > 0 {
			c.logger.Printf("Connect failed %d times, pausing attempts for %v", c.Failures(), wait)
		}
		if c.Status() == StatusConnecting {
			c.setStatus(StatusDisconnected)
		}
		return errors.WrapTransient(errors.FromNATS(res.err), "Client", "Connect", "connect to "+c.url)
	}

	c.mu.Lock()
	c.conn = res.conn
	c.mu.Unlock()

	c.breaker.succeed()
	c.setStatus(StatusConnected)
	c.metrics.RecordBusStatus(true)
	c.logger.Printf("Connected to %s", c.url)
	return nil
}

// Close unsubscribes everything and drains the connection within ctx.
// Calling it again is a no-op.
func (c *Client) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	conn := c.conn
	subs := c.subs
	c.conn = nil
	c.subs = nil
	c.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrBadSubscription) &&
			!stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe "+sub.Subject))
		}
	}

	if conn != nil {
		drained := make(chan error, 1)
		go func() { drained <- conn.Drain() }()
		select {
		case err := <-drained:
			if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
				errs = append(errs, errors.Wrap(err, "Client", "Close", "drain"))
			}
		case <-ctx.Done():
			errs = append(errs, errors.WrapTransient(ctx.Err(), "Client", "Close", "drain"))
		}
		conn.Close()
	}

	c.setStatus(StatusDisconnected)
	c.metrics.RecordBusStatus(false)
	return stderrors.Join(errs...)
}

func (c *Client) live() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return nil
	}
	return c.conn
}

// RTT measures the round trip to the server and records it
func (c *Client) RTT() (time.Duration, error) {
	conn := c.live()
	if conn == nil {
		return 0, ErrNotConnected
	}
	rtt, err := conn.RTT()
	if err != nil {
		return 0, errors.FromNATS(err)
	}
	c.metrics.RecordBusRTT(rtt)
	return rtt, nil
}

// Publish sends data to subject without waiting for delivery
func (c *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn := c.live()
	if conn == nil {
		return ErrNotConnected
	}
	return errors.FromNATS(conn.Publish(subject, data))
}

// Subscribe delivers every message on subject to handler. Handlers run
// one at a time per subscription, each with a context derived from ctx and
// bounded by the handler timeout.
func (c *Client) Subscribe(ctx context.Context, subject string, handler MsgHandler) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return nil, ErrNotConnected
	}

	timeout := c.handlerTimeout
	sub, err := c.conn.Subscribe(subject, func(m *nats.Msg) {
		hctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		handler(hctx, NewMsg(m.Subject, m.Reply, m.Data, m.Respond))
	})
	if err != nil {
		return nil, errors.WrapTransient(errors.FromNATS(err), "Client", "Subscribe", "subscribe "+subject)
	}
	c.subs = append(c.subs, sub)
	return sub, nil
}

// Request publishes data and waits, bounded by ctx, for the first reply
func (c *Client) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	conn := c.live()
	if conn == nil {
		return nil, ErrNotConnected
	}
	reply, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, errors.FromNATS(err)
	}
	return reply.Data, nil
}

func (c *Client) circuitChanged(open bool) {
	if open {
		c.setStatus(StatusCircuitOpen)
		c.metrics.RecordCircuitBreakerState(circuitOpen)
		return
	}
	c.status.CompareAndSwap(int32(StatusCircuitOpen), int32(StatusDisconnected))
	c.metrics.RecordCircuitBreakerState(circuitClosed)
}

// The nats library calls these from its own goroutine. User callbacks run
// inline so they see events in order.

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusReconnecting)
	c.metrics.RecordBusStatus(false)
	if err != nil {
		c.logger.Printf("Disconnected from %s: %v", c.url, err)
	}
	if c.onDisconnect != nil {
		c.onDisconnect(err)
	}
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.setStatus(StatusConnected)
	c.reconnects.Add(1)
	c.metrics.RecordBusStatus(true)
	c.metrics.RecordBusReconnect()
	c.logger.Printf("Reconnected to %s", conn.ConnectedUrlRedacted())
	if c.onReconnect != nil {
		c.onReconnect()
	}
}

func (c *Client) handleClosed(_ *nats.Conn) {
	c.setStatus(StatusDisconnected)
	c.metrics.RecordBusStatus(false)
	if c.closed.Load() {
		return
	}
	c.logger.Printf("Connection to %s closed", c.url)
	if c.onClosed != nil {
		c.onClosed()
	}
}

func (c *Client) handleAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	subject := ""
	if sub != nil {
		subject = sub.Subject
	}
	// a missing permission on one subject is not a connection problem
	if stderrors.Is(err, nats.ErrPermissionViolation) {
		c.logger.Debugf("Permission denied on %q: %v", subject, err)
		return
	}
	if stderrors.Is(err, nats.ErrSlowConsumer) {
		c.logger.Errorf("Slow consumer on %q, messages dropped", subject)
		return
	}
	c.logger.Errorf("Async bus error on %q: %v", subject, err)
}
