package natsclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/c360/datahub/metric"
)

// Logger is the printf-style sink the client logs connection events to
type Logger interface {
	Printf(format string, v ...any)
	Errorf(format string, v ...any)
	Debugf(format string, v ...any)
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger routes client logs to l, or to slog.Default() when l is nil
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l.With("component", "natsclient")}
}

func (s *slogLogger) Printf(format string, v ...any) {
	s.l.Info(fmt.Sprintf(format, v...))
}

func (s *slogLogger) Errorf(format string, v ...any) {
	s.l.Error(fmt.Sprintf(format, v...))
}

func (s *slogLogger) Debugf(format string, v ...any) {
	if s.l.Enabled(context.Background(), slog.LevelDebug) {
		s.l.Debug(fmt.Sprintf(format, v...))
	}
}

// ClientOption configures a Client
type ClientOption func(*Client) error

// WithName sets the connection name the server shows for this client
func WithName(name string) ClientOption {
	return func(c *Client) error {
		c.name = name
		return nil
	}
}

// WithMaxReconnects bounds reconnect attempts after a drop; -1 retries forever
func WithMaxReconnects(n int) ClientOption {
	return func(c *Client) error {
		c.maxReconnects = n
		return nil
	}
}

// WithReconnectWait sets the pause between reconnect attempts
func WithReconnectWait(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d < 0 {
			return fmt.Errorf("reconnect wait must not be negative: %v", d)
		}
		c.reconnectWait = d
		return nil
	}
}

// WithPingInterval sets how often the server connection is checked
func WithPingInterval(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("ping interval must be positive: %v", d)
		}
		c.pingInterval = d
		return nil
	}
}

// WithTimeout bounds a single dial
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("connect timeout must be positive: %v", d)
		}
		c.connectTimeout = d
		return nil
	}
}

// WithHandlerTimeout sets the deadline on the context given to each
// subscription handler call
func WithHandlerTimeout(d time.Duration) ClientOption {
	return func(c *Client) error {
		if d > 0 {
			c.handlerTimeout = d
		}
		return nil
	}
}

// WithCircuitBreaker opens the connect breaker after threshold consecutive
// failures and caps its backoff at maxWait
func WithCircuitBreaker(threshold int, maxWait time.Duration) ClientOption {
	return func(c *Client) error {
		c.breakerThreshold = threshold
		c.breakerMaxWait = maxWait
		return nil
	}
}

// WithTokenHandler supplies the bearer token, asked for again on every
// connect and reconnect
func WithTokenHandler(fn func() string) ClientOption {
	return func(c *Client) error {
		c.tokenHandler = fn
		return nil
	}
}

// WithTLS secures the connection with cfg
func WithTLS(cfg *tls.Config) ClientOption {
	return func(c *Client) error {
		c.tlsConfig = cfg
		return nil
	}
}

// WithLogger replaces the default slog-backed logger
func WithLogger(logger Logger) ClientOption {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithMetrics records connection state, reconnects, RTT and breaker state
func WithMetrics(m *metric.Metrics) ClientOption {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithClock drives the breaker backoff from clk
func WithClock(clk clock.Clock) ClientOption {
	return func(c *Client) error {
		if clk != nil {
			c.clock = clk
		}
		return nil
	}
}

// WithDisconnectCallback is called when the connection drops
func WithDisconnectCallback(fn func(error)) ClientOption {
	return func(c *Client) error {
		c.onDisconnect = fn
		return nil
	}
}

// WithReconnectCallback is called after the connection comes back
func WithReconnectCallback(fn func()) ClientOption {
	return func(c *Client) error {
		c.onReconnect = fn
		return nil
	}
}

// WithClosedCallback is called when the server connection ends for good
// without Close having been called
func WithClosedCallback(fn func()) ClientOption {
	return func(c *Client) error {
		c.onClosed = fn
		return nil
	}
}
