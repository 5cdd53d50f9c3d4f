package scheduler

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/pkg/retry"
)

type RequesterFunc func(ctx context.Context, subject string, data []byte) ([]byte, error)

func (f RequesterFunc) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	return f(ctx, subject, data)
}

func fastRetry() retry.Config {
	cfg := retry.BusRequest(errors.IsRetryable)
	cfg.InitialDelay = time.Millisecond
	return cfg
}

func TestScheduler_LimitsInFlight(t *testing.T) {
	var current, peak atomic.Int64
	release := make(chan struct{})

	req := RequesterFunc(func(ctx context.Context, _ string, data []byte) ([]byte, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		current.Add(-1)
		return data, nil
	})

	s := New(req, WithMaxInFlight(5))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Request(context.Background(), "v1.loc.p.vars.qry.read", []byte("x"), time.Second)
			assert.NoError(t, err)
		}()
	}

	assert.Eventually(t, func() bool {
		return s.InFlight() == 5 && s.Queued() == 15
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(5))
	assert.Equal(t, 0, s.InFlight())
	assert.Equal(t, 0, s.Queued())
}

func TestScheduler_FIFOAdmission(t *testing.T) {
	gate := make(chan struct{})
	var order []string
	var mu sync.Mutex

	req := RequesterFunc(func(_ context.Context, subject string, _ []byte) ([]byte, error) {
		if subject == "hold" {
			<-gate
		}
		mu.Lock()
		order = append(order, subject)
		mu.Unlock()
		return nil, nil
	})
	s := New(req, WithMaxInFlight(1))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Request(context.Background(), "hold", nil, time.Second)
	}()
	require.Eventually(t, func() bool { return s.InFlight() == 1 }, time.Second, time.Millisecond)

	for _, subj := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(subj string) {
			defer wg.Done()
			_, _ = s.Request(context.Background(), subj, nil, time.Second)
		}(subj)
		want := map[string]int{"a": 1, "b": 2, "c": 3}[subj]
		require.Eventually(t, func() bool { return s.Queued() == want }, time.Second, time.Millisecond)
		// let the waiter reach the semaphore queue before the next arrives
		time.Sleep(5 * time.Millisecond)
	}

	close(gate)
	wg.Wait()
	assert.Equal(t, []string{"hold", "a", "b", "c"}, order)
}

func TestScheduler_TimeoutMapsToErrTimeout(t *testing.T) {
	req := RequesterFunc(func(ctx context.Context, _ string, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := New(req)

	_, err := s.Request(context.Background(), "v1.loc.p.vars.qry.read", nil, 10*time.Millisecond)
	assert.ErrorIs(t, err, errors.ErrTimeout)
	assert.True(t, errors.IsRetryable(err))
}

func TestScheduler_RequestWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  []error
		wantCalls int32
		wantErr   error
		offline   bool
	}{
		{
			name:      "succeeds after no responders",
			failures:  []error{nats.ErrNoResponders, nats.ErrTimeout},
			wantCalls: 3,
		},
		{
			name:      "gives up after three attempts",
			failures:  []error{nats.ErrTimeout, nats.ErrTimeout, nats.ErrTimeout, nats.ErrTimeout},
			wantCalls: 3,
			wantErr:   errors.ErrTimeout,
			offline:   true,
		},
		{
			name:      "no responders three times means offline",
			failures:  []error{nats.ErrNoResponders, nats.ErrNoResponders, nats.ErrNoResponders},
			wantCalls: 3,
			wantErr:   errors.ErrNoResponders,
			offline:   true,
		},
		{
			name:      "permission violation surfaces immediately",
			failures:  []error{nats.ErrPermissionViolation},
			wantCalls: 1,
			wantErr:   errors.ErrPermissionViolation,
		},
		{
			name:      "definition not found surfaces immediately",
			failures:  []error{errors.ErrDefinitionNotFound},
			wantCalls: 1,
			wantErr:   errors.ErrDefinitionNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			req := RequesterFunc(func(_ context.Context, _ string, _ []byte) ([]byte, error) {
				n := int(calls.Add(1))
				if n <= len(tt.failures) {
					return nil, tt.failures[n-1]
				}
				return []byte("ok"), nil
			})
			s := New(req, WithRetryConfig(fastRetry()))

			data, err := s.RequestWithRetry(context.Background(), "v1.loc.p.vars.qry.read", nil, time.Second)
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.offline, stderrors.Is(err, errors.ErrProviderOffline))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []byte("ok"), data)
		})
	}
}

func TestScheduler_CancelledWhileQueued(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	req := RequesterFunc(func(_ context.Context, _ string, _ []byte) ([]byte, error) {
		<-block
		return nil, nil
	})
	s := New(req, WithMaxInFlight(1))

	go func() { _, _ = s.Request(context.Background(), "a", nil, time.Second) }()
	require.Eventually(t, func() bool { return s.InFlight() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Request(ctx, "b", nil, time.Second)
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 0, s.Queued())
}

func TestScheduler_Closed(t *testing.T) {
	s := New(RequesterFunc(func(context.Context, string, []byte) ([]byte, error) { return nil, nil }))
	s.Close()
	_, err := s.Request(context.Background(), "a", nil, 0)
	assert.ErrorIs(t, err, errors.ErrRequestLimiterStopped)

	_, err = s.RequestWithRetry(context.Background(), "a", nil, 0)
	assert.ErrorIs(t, err, errors.ErrRequestLimiterStopped)
	assert.True(t, retry.IsStopped(err), "a closed scheduler is not retried")
}

func TestScheduler_Metrics(t *testing.T) {
	m := metric.NewMetrics()
	s := New(RequesterFunc(func(context.Context, string, []byte) ([]byte, error) {
		return nil, nats.ErrNoResponders
	}), WithMetrics(m))

	_, _ = s.Request(context.Background(), "v1.loc.p1.def.qry.read", nil, time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("def.qry.read", "no_responders")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RequestsInFlight))
}

func TestRequestKind(t *testing.T) {
	assert.Equal(t, "vars.qry.read", requestKind("v1.loc.p1.vars.qry.read"))
	assert.Equal(t, "x.y", requestKind("x.y"))
}
