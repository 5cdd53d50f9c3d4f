package consumer

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/discovery"
	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/health"
	"github.com/c360/datahub/hub"
	"github.com/c360/datahub/pkg/retry"
	"github.com/c360/datahub/provider"
	"github.com/c360/datahub/scheduler"
	"github.com/c360/datahub/session"
	"github.com/c360/datahub/subject"
	"github.com/c360/datahub/testutil"
)

const testProvider = "plc-1"

type env struct {
	bus      *testutil.MockBus
	provider *provider.Provider
	sess     *session.Session
	cache    *discovery.Cache
	writes   chan provider.Write
}

// newEnv starts a provider with three variables on a mock bus and returns a
// session and discovery cache for the consumer side.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	bus := testutil.NewMockBus()
	writes := make(chan provider.Write, 8)

	p, err := provider.New(session.New(bus.Dial), provider.Config{ProviderID: testProvider, EnableWrites: true},
		provider.WithClock(clock.NewMock()),
		provider.WithWriteHandler(func(_ context.Context, w provider.Write) error {
			writes <- w
			return nil
		}),
	)
	require.NoError(t, err)
	require.NoError(t, p.Ingest(ctx, map[string]any{
		"machine": map[string]any{"speed": 1.5, "status": "idle"},
		"count":   int64(3),
	}))
	require.NoError(t, p.Start(ctx))
	t.Cleanup(func() { _ = p.Stop(ctx) })

	sess := session.New(bus.Dial)
	cache, err := discovery.New(ctx, sess, discovery.WithStrategyTimeout(time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return &env{bus: bus, provider: p, sess: sess, cache: cache, writes: writes}
}

func (e *env) consumer(t *testing.T, cfg Config, opts ...Option) *Consumer {
	t.Helper()
	if cfg.ProviderID == "" {
		cfg.ProviderID = testProvider
	}
	c, err := New(e.sess, e.cache, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })
	return c
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) handle(_ context.Context, u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.updates {
		if u.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind Kind) Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.updates) - 1; i >= 0; i-- {
		if r.updates[i].Kind == kind {
			return r.updates[i]
		}
	}
	return Update{}
}

func keysOf(vars []Variable) []string {
	out := make([]string, len(vars))
	for i, v := range vars {
		out[i] = v.Key
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, nil, Config{ProviderID: "a.b"})
	assert.True(t, errors.IsInvalid(err))

	_, err = New(nil, nil, Config{ProviderID: "ok"})
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestConsumer_Snapshot(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name    string
		keys    []string
		want    []string
		wantErr error
	}{
		{name: "all variables", want: []string{"count", "machine.speed", "machine.status"}},
		{name: "filtered", keys: []string{"machine.status", " count "}, want: []string{"count", "machine.status"}},
		{name: "unknown keys dropped", keys: []string{"machine.speed", "missing"}, want: []string{"machine.speed"}},
		{name: "nothing resolved", keys: []string{"missing"}, wantErr: errors.ErrVariableNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.consumer(t, Config{Keys: tt.keys})
			vars, err := c.Snapshot(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, keysOf(vars))
			for _, v := range vars {
				assert.Equal(t, testProvider, v.ProviderID)
			}
		})
	}
}

func TestConsumer_SnapshotValues(t *testing.T) {
	e := newEnv(t)
	c := e.consumer(t, Config{Keys: []string{"machine.speed"}})

	vars, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, hub.Float64Value(1.5), vars[0].Value)
	assert.Equal(t, hub.QualityGood, vars[0].Quality)

	def, _ := e.provider.Value("machine.speed")
	assert.Equal(t, def.ID, vars[0].ID)
}

func TestConsumer_SnapshotProviderOffline(t *testing.T) {
	bus := testutil.NewMockBus()
	sess := session.New(bus.Dial, session.WithSchedulerOptions(scheduler.WithRetryConfig(retry.Config{
		MaxAttempts:  2,
		InitialDelay: 10 * time.Millisecond,
		Retryable:    errors.IsRetryable,
	})))
	cache, err := discovery.New(context.Background(), sess)
	require.NoError(t, err)
	defer cache.Close()
	monitor := health.NewMonitor()

	c, err := New(sess, cache, Config{ProviderID: "offline", RequestTimeout: 20 * time.Millisecond}, WithHealth(monitor))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = c.Snapshot(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.ErrorIs(t, err, errors.ErrProviderOffline)

	status, ok := monitor.Get("consumer/offline")
	require.True(t, ok)
	assert.True(t, status.IsDegraded())
}

func TestConsumer_Subscribe(t *testing.T) {
	e := newEnv(t)
	c := e.consumer(t, Config{Keys: []string{"count"}})
	rec := &recorder{}
	ctx := context.Background()

	require.NoError(t, c.Subscribe(ctx, rec.handle))
	assert.Equal(t, 1, rec.count(KindSnapshot), "initial snapshot delivered synchronously")
	assert.ErrorIs(t, c.Subscribe(ctx, rec.handle), errors.ErrAlreadyStarted)

	testutil.WaitForSubscribers(t, e.bus, subject.VarsChanged(testProvider), 1, time.Second)
	require.NoError(t, e.provider.Set(ctx, "count", 7))
	require.NoError(t, e.provider.Set(ctx, "machine.status", "running"))

	assert.Eventually(t, func() bool { return rec.count(KindChange) >= 1 }, time.Second, 5*time.Millisecond)
	change := rec.last(KindChange)
	assert.Equal(t, []string{"count"}, keysOf(change.Variables), "change events are filtered to configured keys")
	assert.Equal(t, hub.Int64Value(7), change.Variables[0].Value)
}

func TestConsumer_SubscribeRequiresStart(t *testing.T) {
	e := newEnv(t)
	c, err := New(e.sess, e.cache, Config{ProviderID: testProvider})
	require.NoError(t, err)

	assert.ErrorIs(t, c.Subscribe(context.Background(), (&recorder{}).handle), errors.ErrNotStarted)
	assert.ErrorIs(t, c.Subscribe(context.Background(), nil), errors.ErrMissingConfig)
}

func TestConsumer_ReconnectRearms(t *testing.T) {
	e := newEnv(t)
	c := e.consumer(t, Config{})
	rec := &recorder{}
	ctx := context.Background()
	require.NoError(t, c.Subscribe(ctx, rec.handle))

	e.bus.SimulateDisconnect(nil)
	e.bus.SimulateReconnect()

	assert.Eventually(t, func() bool { return rec.count(KindSnapshot) == 2 }, time.Second, 5*time.Millisecond,
		"reconnect delivers a fresh snapshot")
	assert.Eventually(t, func() bool {
		return e.bus.Subscribers(subject.VarsChanged(testProvider)) == 1
	}, time.Second, 5*time.Millisecond, "old change subscription replaced")

	require.NoError(t, e.provider.Set(ctx, "count", 9))
	assert.Eventually(t, func() bool { return rec.count(KindChange) >= 1 }, time.Second, 5*time.Millisecond)
}

func TestConsumer_Polling(t *testing.T) {
	e := newEnv(t)
	mock := clock.NewMock()
	c := e.consumer(t, Config{PollingInterval: 5 * time.Second}, WithClock(mock))
	rec := &recorder{}
	require.NoError(t, c.Subscribe(context.Background(), rec.handle))

	mock.Add(5 * time.Second)
	assert.Eventually(t, func() bool { return rec.count(KindSnapshot) == 2 }, time.Second, 5*time.Millisecond)
	mock.Add(5 * time.Second)
	assert.Eventually(t, func() bool { return rec.count(KindSnapshot) == 3 }, time.Second, 5*time.Millisecond)
}

func TestConsumer_DefinitionEventsUpdateCache(t *testing.T) {
	e := newEnv(t)
	e.consumer(t, Config{})
	ctx := context.Background()

	testutil.WaitForSubscribers(t, e.bus, subject.DefinitionChanged(testProvider), 1, time.Second)
	require.NoError(t, e.provider.Set(ctx, "alarm", true))

	assert.Eventually(t, func() bool {
		entry, err := e.cache.Lookup(ctx, testProvider)
		if err != nil {
			return false
		}
		_, ok := entry.Definition.ByKey("alarm")
		return ok && entry.Source == discovery.StrategyEvent
	}, time.Second, 5*time.Millisecond)
}

func TestConsumer_Write(t *testing.T) {
	e := newEnv(t)
	c := e.consumer(t, Config{})
	ctx := context.Background()

	n, err := c.Write(ctx, WriteItem{Key: "machine.speed", Value: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case w := <-e.writes:
		assert.Equal(t, "machine.speed", w.Key)
		assert.Equal(t, hub.Float64Value(3), w.Value)
	case <-time.After(time.Second):
		t.Fatal("provider did not accept the write")
	}
	st, _ := e.provider.Value("machine.speed")
	assert.Equal(t, hub.QualityGoodLocalOverride, st.Quality)
}

func TestConsumer_WriteMap(t *testing.T) {
	e := newEnv(t)
	c := e.consumer(t, Config{})
	ctx := context.Background()
	status, _ := e.provider.Value("machine.status")

	n, err := c.WriteMap(ctx, map[string]any{
		"count":   int64(11),
		"missing": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "unresolved keys are skipped")

	n, err = c.WriteMap(ctx, map[string]any{strconv.FormatUint(uint64(status.ID), 10): "stopped"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := map[string]hub.Value{}
	for i := 0; i < 2; i++ {
		select {
		case w := <-e.writes:
			got[w.Key] = w.Value
		case <-time.After(time.Second):
			t.Fatal("write not received")
		}
	}
	assert.Equal(t, map[string]hub.Value{
		"count":          hub.Int64Value(11),
		"machine.status": hub.StringValue("stopped"),
	}, got)
}

func TestConsumer_WriteNothingResolved(t *testing.T) {
	e := newEnv(t)
	c := e.consumer(t, Config{})

	n, err := c.Write(context.Background(), WriteItem{Key: "missing", Value: 1}, WriteItem{Value: 2})
	assert.Zero(t, n)
	assert.ErrorIs(t, err, errors.ErrVariableNotFound)
	assert.True(t, errors.IsInvalid(err))
	assert.Zero(t, e.bus.MessageCount(subject.WriteVariablesCommand(testProvider)))
}

func TestConsumer_WriteManualOverride(t *testing.T) {
	bus := testutil.NewMockBus()
	sess := session.New(bus.Dial)
	cache, err := discovery.New(context.Background(), sess)
	require.NoError(t, err)
	defer cache.Close()
	cache.SetOverrides("offline", map[string]uint32{"valve": 12})

	c, err := New(sess, cache, Config{ProviderID: "offline"})
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop(context.Background())

	n, err := c.Write(context.Background(), WriteItem{Key: "valve", Value: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, bus.MessageCount(subject.WriteVariablesCommand("offline")))
}

// fakeDefinitions serves a fixed entry and counts invalidations
type fakeDefinitions struct {
	mu          sync.Mutex
	entries     []discovery.Entry
	lookups     int
	invalidated int
}

func (f *fakeDefinitions) Lookup(context.Context, string) (discovery.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[min(f.lookups, len(f.entries)-1)]
	f.lookups++
	return e, nil
}

func (f *fakeDefinitions) ResolveVariable(ctx context.Context, providerID, key string) (discovery.Resolved, error) {
	e, _ := f.Lookup(ctx, providerID)
	if v, ok := e.Definition.ByKey(key); ok {
		return discovery.Resolved{ID: v.ID, DataType: v.DataType, Fingerprint: e.Definition.Fingerprint}, nil
	}
	return discovery.Resolved{}, errors.ErrVariableNotFound
}

func (f *fakeDefinitions) Invalidate(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

func (f *fakeDefinitions) Update(string, hub.ProviderDefinition) {}

func TestConsumer_FingerprintDrift(t *testing.T) {
	stale := hub.ProviderDefinition{Fingerprint: 1, Variables: []hub.VariableDefinition{{ID: 101, Key: "old"}}}
	fresh := hub.ProviderDefinition{Fingerprint: 2, Variables: []hub.VariableDefinition{{ID: 101, Key: "new"}}}
	defs := &fakeDefinitions{entries: []discovery.Entry{{Definition: stale}, {Definition: fresh}}}

	c, err := New(nil, defs, Config{ProviderID: testProvider})
	require.NoError(t, err)

	vars := c.mapStates(context.Background(), hub.VariableList{
		ProviderDefinitionFingerprint: 2,
		Items:                         []hub.VariableState{{ID: 101, Value: hub.Int64Value(1)}, {ID: 999}},
	})

	assert.Equal(t, 1, defs.invalidated)
	assert.Equal(t, []string{"new", "999"}, keysOf(vars), "unknown IDs keep their numeric key")

	vars = c.mapStates(context.Background(), hub.VariableList{Items: []hub.VariableState{{ID: 101}}})
	assert.Equal(t, 1, defs.invalidated, "fingerprint 0 never counts as drift")
	assert.Equal(t, []string{"new"}, keysOf(vars))
}
