package retry

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/c360/datahub/errors"
)

// Backoff selects how the delay grows between attempts
type Backoff int

const (
	// Exponential multiplies the delay by Config.Multiplier after every attempt
	Exponential Backoff = iota
	// Linear waits InitialDelay times the attempt number
	Linear
)

// Config describes one retry policy. The zero value tries once.
type Config struct {
	MaxAttempts  int           // total attempts including the first
	InitialDelay time.Duration // wait before the second attempt, 100ms if zero
	MaxDelay     time.Duration // cap on any single wait, 5s if zero
	Multiplier   float64       // growth factor for Exponential, 2 if zero
	Backoff      Backoff
	Jitter       bool // add up to a quarter of the delay at random

	// Retryable decides whether an error earns another attempt. Nil retries
	// everything not marked with Stop.
	Retryable func(error) bool

	// OnRetry runs before each wait
	OnRetry func(attempt int, err error, delay time.Duration)

	// Clock drives the waits; nil means the wall clock
	Clock clock.Clock
}

// BusRequest is the policy for hub read requests: three attempts, waiting
// one second times the attempt number between them.
func BusRequest(retryable func(error) bool) Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Backoff:      Linear,
		Retryable:    retryable,
	}
}

// Delay is the wait after the given 1-based attempt, before jitter
func (c Config) Delay(attempt int) time.Duration {
	attempt = max(attempt, 1)
	initial, ceiling := c.InitialDelay, c.MaxDelay
	if initial <= 0 {
		initial = 100 * time.Millisecond
	}
	if ceiling <= 0 {
		ceiling = 5 * time.Second
	}

	if c.Backoff == Linear {
		return min(initial*time.Duration(attempt), ceiling)
	}
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(initial)
	for i := 1; i < attempt && d < float64(ceiling); i++ {
		d *= mult
	}
	return min(time.Duration(d), ceiling)
}

func (c Config) validate() error {
	switch {
	case c.InitialDelay < 0, c.MaxDelay < 0:
		return errors.WrapInvalid(stderrors.New("negative delay"), "retry", "Do", "validate config")
	case c.Multiplier < 0:
		return errors.WrapInvalid(fmt.Errorf("negative multiplier %v", c.Multiplier), "retry", "Do", "validate config")
	case c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay:
		return errors.WrapInvalid(fmt.Errorf("max delay %v below initial delay %v", c.MaxDelay, c.InitialDelay), "retry", "Do", "validate config")
	}
	return nil
}

type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop marks err as final so Do returns it without another attempt
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// IsStopped reports whether err was marked with Stop
func IsStopped(err error) bool {
	var s *stopError
	return stderrors.As(err, &s)
}

// Do runs fn until it succeeds, returns a final error, or runs out of attempts
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that return a value
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	if err := cfg.validate(); err != nil {
		return zero, err
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	attempts := max(cfg.MaxAttempts, 1)

	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if IsStopped(err) || (cfg.Retryable != nil && !cfg.Retryable(err)) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, fmt.Errorf("attempt %d: %w: %w", attempt, ctx.Err(), err)
		}
		if attempt >= attempts {
			return zero, fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}

		wait := cfg.Delay(attempt)
		if cfg.Jitter && wait >= 4 {
			wait += rand.N(wait / 4)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, wait)
		}

		timer := clk.Timer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("waiting for attempt %d: %w: %w", attempt+1, ctx.Err(), err)
		case <-timer.C:
		}
	}
}
