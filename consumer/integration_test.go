package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/discovery"
	"github.com/c360/datahub/hub"
	"github.com/c360/datahub/natsclient"
	"github.com/c360/datahub/provider"
	"github.com/c360/datahub/session"
	"github.com/c360/datahub/testutil"
)

// TestIntegration_ProviderToConsumer runs a provider and a consumer on
// separate authenticated sessions against a real NATS server.
func TestIntegration_ProviderToConsumer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	const token = "hub-token"
	container, url, err := natsclient.StartTestServer(ctx, natsclient.WithServerToken(token))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	newSession := func(name string) *session.Session {
		return session.New(natsclient.Dial(url, natsclient.WithMaxReconnects(0)),
			session.WithName(name),
			session.WithCredentials(testutil.NewFakeCredentials(token)),
		)
	}

	writes := make(chan provider.Write, 1)
	p, err := provider.New(newSession("it-provider"), provider.Config{ProviderID: testProvider, EnableWrites: true},
		provider.WithWriteHandler(func(_ context.Context, w provider.Write) error {
			writes <- w
			return nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, p.Ingest(ctx, map[string]any{"line": map[string]any{"speed": 1.5, "state": "idle"}}))
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })

	sess := newSession("it-consumer")
	cache, err := discovery.New(ctx, sess, discovery.WithStrategyTimeout(2*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	c, err := New(sess, cache, Config{ProviderID: testProvider})
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	vars, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"line.speed", "line.state"}, keysOf(vars))

	rec := &recorder{}
	require.NoError(t, c.Subscribe(ctx, rec.handle))
	require.Eventually(t, func() bool {
		// the change subscription may race the first publish; keep setting until one lands
		_ = p.Set(ctx, "line.speed", 2.5)
		return rec.count(KindChange) > 0
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, hub.Float64Value(2.5), rec.last(KindChange).Variables[0].Value)

	n, err := c.Write(ctx, WriteItem{Key: "line.state", Value: "running"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case w := <-writes:
		assert.Equal(t, "line.state", w.Key)
		assert.Equal(t, hub.StringValue("running"), w.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("write did not reach the provider")
	}
}
