package retry

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
)

var errBusy = stderrors.New("no responders")

func failing(n int, calls *int) func() error {
	return func() error {
		*calls++
		if *calls <= n {
			return errBusy
		}
		return nil
	}
}

func TestDo_Attempts(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		max       int
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, max: 3, wantCalls: 1},
		{name: "third try", failures: 2, max: 3, wantCalls: 3},
		{name: "exhausted", failures: 5, max: 3, wantCalls: 3, wantErr: true},
		{name: "zero attempts means one", failures: 5, max: 0, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			cfg := Config{MaxAttempts: tt.max, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
			err := Do(context.Background(), cfg, failing(tt.failures, &calls))

			assert.Equal(t, tt.wantCalls, calls)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errBusy)
		})
	}
}

func TestDo_GiveUpMessage(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 2, InitialDelay: time.Millisecond}, failing(9, &calls))
	assert.EqualError(t, err, "gave up after 2 attempts: no responders")
}

func TestDo_RetryablePredicate(t *testing.T) {
	denied := stderrors.New("permissions violation")
	cfg := BusRequest(func(err error) bool { return stderrors.Is(err, errBusy) })

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return denied
	})

	assert.Same(t, denied, err)
	assert.Equal(t, 1, calls)
}

func TestDo_Stop(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Config{MaxAttempts: 5}, func() error {
		calls++
		return Stop(errBusy)
	})

	assert.True(t, IsStopped(err))
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Stop(nil))
}

func TestDo_WaitsOnClock(t *testing.T) {
	mock := clock.NewMock()
	cfg := BusRequest(nil)
	cfg.Clock = mock

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Do(context.Background(), cfg, func() error {
			if calls.Add(1) < 3 {
				return errBusy
			}
			return nil
		})
	}()

	// each wait ends only when the mock clock passes it
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return calls.Load() == 3
	}, time.Second, 5*time.Millisecond)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Do did not finish")
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 5, InitialDelay: time.Minute, MaxDelay: time.Minute, Clock: clock.NewMock()}

	calls := 0
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }
	err := Do(ctx, cfg, func() error {
		calls++
		return errBusy
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 1, calls)
}

func TestConfig_Delay(t *testing.T) {
	exp := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	tests := []struct {
		name    string
		cfg     Config
		attempt int
		want    time.Duration
	}{
		{"bus first", BusRequest(nil), 1, time.Second},
		{"bus second", BusRequest(nil), 2, 2 * time.Second},
		{"linear capped", Config{Backoff: Linear, InitialDelay: time.Second, MaxDelay: 3 * time.Second}, 5, 3 * time.Second},
		{"exponential first", exp, 1, 100 * time.Millisecond},
		{"exponential third", exp, 3, 400 * time.Millisecond},
		{"exponential capped", exp, 10, time.Second},
		{"zero config defaults", Config{}, 2, 200 * time.Millisecond},
		{"attempt below one", exp, -2, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.Delay(tt.attempt))
		})
	}
}

func TestDo_OnRetrySeesDelays(t *testing.T) {
	cfg := Config{MaxAttempts: 3, InitialDelay: 2 * time.Millisecond, MaxDelay: time.Second, Backoff: Linear}
	var (
		attempts []int
		delays   []time.Duration
	)
	cfg.OnRetry = func(a int, _ error, d time.Duration) {
		attempts = append(attempts, a)
		delays = append(delays, d)
	}

	_ = Do(context.Background(), cfg, func() error { return errBusy })

	assert.Equal(t, []int{1, 2}, attempts)
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond}, delays)
}

func TestDo_JitterStaysWithinQuarter(t *testing.T) {
	cfg := Config{MaxAttempts: 2, InitialDelay: 8 * time.Millisecond, MaxDelay: time.Second, Jitter: true}
	var got time.Duration
	cfg.OnRetry = func(_ int, _ error, d time.Duration) { got = d }

	_ = Do(context.Background(), cfg, func() error { return errBusy })

	assert.GreaterOrEqual(t, got, 8*time.Millisecond)
	assert.Less(t, got, 10*time.Millisecond)
}

func TestDo_InvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{InitialDelay: -1},
		{MaxDelay: -1},
		{Multiplier: -2},
		{InitialDelay: time.Second, MaxDelay: time.Millisecond},
	} {
		err := Do(context.Background(), cfg, func() error { return nil })
		assert.True(t, errors.IsInvalid(err), "%+v", cfg)
	}
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), Config{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		func() ([]byte, error) {
			calls++
			if calls == 1 {
				return nil, errBusy
			}
			return []byte("ok"), nil
		})

	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), got)
	assert.Equal(t, 2, calls)
}
