package natsclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestClient is a connected Client backed by a throwaway NATS container
type TestClient struct {
	Client *Client
	URL    string

	container testcontainers.Container
}

type testServerConfig struct {
	image        string
	token        string
	dialTimeout  time.Duration
	startTimeout time.Duration
}

// TestOption configures StartTestServer and NewTestClient
type TestOption func(*testServerConfig)

// WithNATSVersion picks the nats image tag
func WithNATSVersion(version string) TestOption {
	return func(cfg *testServerConfig) {
		cfg.image = "nats:" + version
	}
}

// WithServerToken makes the server require token; NewTestClient presents it
func WithServerToken(token string) TestOption {
	return func(cfg *testServerConfig) {
		cfg.token = token
	}
}

// WithTestTimeout bounds the test client's dial
func WithTestTimeout(d time.Duration) TestOption {
	return func(cfg *testServerConfig) {
		cfg.dialTimeout = d
	}
}

// WithStartTimeout bounds how long the container may take to come up
func WithStartTimeout(d time.Duration) TestOption {
	return func(cfg *testServerConfig) {
		cfg.startTimeout = d
	}
}

func newTestServerConfig(opts []TestOption) testServerConfig {
	cfg := testServerConfig{
		image:        "nats:2.11.7-alpine",
		dialTimeout:  5 * time.Second,
		startTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// StartTestServer runs a NATS container and returns it with its client URL.
// The caller terminates the container.
func StartTestServer(ctx context.Context, opts ...TestOption) (testcontainers.Container, string, error) {
	cfg := newTestServerConfig(opts)

	cmd := []string{"--port", "4222", "--http_port", "8222"}
	if cfg.token != "" {
		cmd = append(cmd, "--auth", cfg.token)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cfg.image,
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          cmd,
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/healthz").WithPort("8222/tcp"),
			).WithDeadline(cfg.startTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start nats container: %w", err)
	}

	endpoint, err := container.PortEndpoint(ctx, "4222/tcp", "nats")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("resolve nats endpoint: %w", err)
	}
	return container, endpoint, nil
}

// NewTestClient starts a server and connects a client to it. Both are torn
// down by t.Cleanup.
func NewTestClient(t testing.TB, opts ...TestOption) *TestClient {
	t.Helper()
	cfg := newTestServerConfig(opts)
	ctx := context.Background()

	container, url, err := StartTestServer(ctx, opts...)
	if err != nil {
		t.Fatalf("%v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	clientOpts := []ClientOption{WithTimeout(cfg.dialTimeout), WithMaxReconnects(0)}
	if cfg.token != "" {
		token := cfg.token
		clientOpts = append(clientOpts, WithTokenHandler(func() string { return token }))
	}
	client, err := NewClient(url, clientOpts...)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
		t.Fatalf("connect to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	return &TestClient{Client: client, URL: url, container: container}
}

// Flush waits until the server has processed everything sent so far
func (tc *TestClient) Flush(t testing.TB) {
	t.Helper()
	if err := tc.Client.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}
