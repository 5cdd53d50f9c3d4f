package natsclient

import (
	"context"
)

// Transport is the bus surface the session layer needs. *Client implements
// it; tests substitute an in-memory bus.
type Transport interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler MsgHandler) (Subscription, error)
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	Close(ctx context.Context) error
}

// DialOptions carries the per-connection hooks a Dialer must install
type DialOptions struct {
	Name string
	// TokenHandler is called on every (re)connect for a fresh bearer token
	TokenHandler func() string
	OnDisconnect func(error)
	OnReconnect  func()
	OnClosed     func()
}

// Dialer opens a connected Transport
type Dialer func(ctx context.Context, opts DialOptions) (Transport, error)

// Dial returns a Dialer that connects a Client to url. The extra options are
// applied before the hooks from DialOptions.
func Dial(url string, extra ...ClientOption) Dialer {
	return func(ctx context.Context, o DialOptions) (Transport, error) {
		opts := append([]ClientOption{}, extra...)
		if o.Name != "" {
			opts = append(opts, WithName(o.Name))
		}
		if o.TokenHandler != nil {
			opts = append(opts, WithTokenHandler(o.TokenHandler))
		}
		opts = append(opts,
			WithDisconnectCallback(o.OnDisconnect),
			WithReconnectCallback(o.OnReconnect),
			WithClosedCallback(o.OnClosed),
		)

		client, err := NewClient(url, opts...)
		if err != nil {
			return nil, err
		}
		if err := client.Connect(ctx); err != nil {
			return nil, err
		}
		return client, nil
	}
}
