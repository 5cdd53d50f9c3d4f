// Package natsclient is the hub bus transport: a NATS connection with token
// authentication, reconnect hooks and a connect circuit breaker.
//
// The session layer never holds a *Client directly. It sees a Transport,
// obtained from a Dialer, so tests can put testutil.MockBus in its place:
//
//	dial := natsclient.Dial("nats://hub:49360",
//	    natsclient.WithMaxReconnects(-1),
//	    natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
//	)
//	t, err := dial(ctx, natsclient.DialOptions{
//	    Name:         "datahub-1",
//	    TokenHandler: tokens.Current,
//	    OnReconnect:  rearm,
//	})
//
// A token handler is consulted on every connect and reconnect, so a rotated
// token takes effect on the next reconnect without rebuilding the client.
//
// Connect runs through a breaker. After five consecutive failures (see
// WithCircuitBreaker) Connect returns ErrCircuitOpen without dialling until
// the backoff elapses. The backoff starts at one second and doubles on every
// reopen up to a cap. One success resets it.
//
// Errors from Publish, Subscribe, Request and Connect pass through
// errors.FromNATS, so callers match them with errors.Is against
// errors.ErrTimeout, errors.ErrNoResponders and errors.ErrAuthFailure.
//
// NewTestClient starts a real NATS server with testcontainers-go for
// integration tests, which skip under -short.
package natsclient
