package natsclient

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
)

func TestIntegration_Connect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := NewTestClient(t)
	assert.True(t, tc.Client.IsConnected())
	assert.Zero(t, tc.Client.Failures())

	rtt, err := tc.Client.RTT()
	require.NoError(t, err)
	assert.Positive(t, rtt)
}

func TestIntegration_PublishSubscribe(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := NewTestClient(t)
	ctx := context.Background()
	const subj = "v1.loc.p1.vars.evt.changed"

	received := make(chan *Msg, 1)
	sub, err := tc.Client.Subscribe(ctx, subj, func(_ context.Context, msg *Msg) {
		received <- msg
	})
	require.NoError(t, err)
	defer sub.Unsubscribe()
	tc.Flush(t)

	require.NoError(t, tc.Client.Publish(ctx, subj, []byte{0x01, 0x02}))

	select {
	case msg := <-received:
		assert.Equal(t, subj, msg.Subject)
		assert.Equal(t, []byte{0x01, 0x02}, msg.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestIntegration_RequestReply(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tc := NewTestClient(t)
	ctx := context.Background()

	_, err := tc.Client.Subscribe(ctx, "v1.loc.p1.def.qry.read", func(_ context.Context, msg *Msg) {
		_ = msg.Respond(append([]byte("def:"), msg.Data...))
	})
	require.NoError(t, err)
	tc.Flush(t)

	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	reply, err := tc.Client.Request(reqCtx, "v1.loc.p1.def.qry.read", []byte("q"))
	require.NoError(t, err)
	assert.Equal(t, []byte("def:q"), reply)

	missCtx, cancelMiss := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancelMiss()
	_, err = tc.Client.Request(missCtx, "v1.loc.nobody.def.qry.read", nil)
	assert.ErrorIs(t, err, errors.ErrNoResponders)
	assert.True(t, errors.IsRetryable(err))
}

func TestIntegration_TokenHandler(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, url, err := StartTestServer(ctx, WithServerToken("s3cret"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	var asked atomic.Int32
	dial := Dial(url, WithMaxReconnects(0))
	transport, err := dial(ctx, DialOptions{
		Name:         "datahub-it",
		TokenHandler: func() string {
			asked.Add(1)
			return "s3cret"
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = transport.Close(context.Background()) })
	assert.Positive(t, asked.Load())

	_, err = dial(ctx, DialOptions{TokenHandler: func() string { return "wrong" }})
	require.Error(t, err)
	assert.True(t, errors.IsAuthFailure(err))
}

func TestIntegration_BreakerAgainstUnreachableServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(100*time.Millisecond),
		WithMaxReconnects(0),
		WithCircuitBreaker(2, time.Minute),
	)
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, client.Connect(ctx))
	require.Error(t, client.Connect(ctx))
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.ErrorIs(t, client.Connect(ctx), ErrCircuitOpen)
}
