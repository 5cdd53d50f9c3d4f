// Package scheduler limits how many bus requests are awaiting a reply at once.
//
// Requests beyond the limit wait in arrival order on a weighted semaphore.
// RequestWithRetry adds the linear retry policy from pkg/retry, retrying only
// timeouts and missing responders.
package scheduler

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/pkg/retry"
)

// DefaultMaxInFlight is the default concurrency ceiling
const DefaultMaxInFlight = 5

// DefaultTimeout bounds a request when the caller passes zero
const DefaultTimeout = 5 * time.Second

// Requester performs one request/reply exchange
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithMaxInFlight sets the concurrency ceiling
func WithMaxInFlight(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.limit = int64(n)
		}
	}
}

// WithRetryConfig replaces the retry policy used by RequestWithRetry
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Scheduler) {
		s.retry = cfg
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records depth gauges and request latency
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// Scheduler multiplexes requests over one Requester
type Scheduler struct {
	requester Requester
	limit     int64
	sem       *semaphore.Weighted
	retry     retry.Config
	logger    *slog.Logger
	metrics   *metric.Metrics

	inFlight atomic.Int64
	queued   atomic.Int64
	closed   atomic.Bool
}

// New creates a Scheduler sending through requester
func New(requester Requester, opts ...Option) *Scheduler {
	s := &Scheduler{
		requester: requester,
		limit:     DefaultMaxInFlight,
		retry:     retry.BusRequest(errors.IsRetryable),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sem = semaphore.NewWeighted(s.limit)
	s.logger = s.logger.With("component", "scheduler")
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			s.logger.Debug("Retrying bus request", "attempt", attempt, "delay", delay, "error", err)
		}
	}
	return s
}

// Limit returns the concurrency ceiling
func (s *Scheduler) Limit() int {
	return int(s.limit)
}

// InFlight returns the number of requests awaiting a reply
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

// Queued returns the number of requests waiting for a slot
func (s *Scheduler) Queued() int {
	return int(s.queued.Load())
}

// Close makes subsequent requests fail with ErrRequestLimiterStopped.
// Requests already admitted run to completion.
func (s *Scheduler) Close() {
	s.closed.Store(true)
}

func (s *Scheduler) recordDepth() {
	s.metrics.RecordSchedulerDepth(s.InFlight(), s.Queued())
}

// Request sends payload to subject once a slot is free and waits up to
// timeout for the reply. Time spent queued does not count against timeout.
func (s *Scheduler) Request(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error) {
	if s.closed.Load() {
		return nil, errors.WrapTransient(errors.ErrRequestLimiterStopped, "Scheduler", "Request", "admit request")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	s.queued.Add(1)
	s.recordDepth()
	err := s.sem.Acquire(ctx, 1)
	s.queued.Add(-1)
	if err != nil {
		s.recordDepth()
		return nil, errors.WrapTransient(err, "Scheduler", "Request", "wait for request slot")
	}
	defer s.sem.Release(1)

	s.inFlight.Add(1)
	s.recordDepth()
	defer func() {
		s.inFlight.Add(-1)
		s.recordDepth()
	}()

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	data, err := s.requester.Request(reqCtx, subject, payload)
	kind := requestKind(subject)
	if err != nil {
		err = errors.FromNATS(err)
		s.metrics.RecordRequest(kind, outcome(err), time.Since(start))
		return nil, err
	}
	s.metrics.RecordRequest(kind, "ok", time.Since(start))
	return data, nil
}

// RequestWithRetry is Request under the scheduler's retry policy. A request
// still timing out or unanswered after the last attempt fails with
// ErrProviderOffline.
func (s *Scheduler) RequestWithRetry(ctx context.Context, subject string, payload []byte, timeout time.Duration) ([]byte, error) {
	data, err := retry.DoWithResult(ctx, s.retry, func() ([]byte, error) {
		data, err := s.Request(ctx, subject, payload, timeout)
		if err != nil && s.closed.Load() {
			return nil, retry.Stop(err)
		}
		return data, err
	})
	if err != nil && ctx.Err() == nil && !retry.IsStopped(err) && errors.IsRetryable(err) {
		return nil, fmt.Errorf("%w: %w", errors.ErrProviderOffline, err)
	}
	return data, err
}

// requestKind reduces a subject to its trailing noun.kind.verb, e.g. "vars.qry.read"
func requestKind(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) < 3 {
		return subject
	}
	return strings.Join(parts[len(parts)-3:], ".")
}

func outcome(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrTimeout):
		return "timeout"
	case stderrors.Is(err, errors.ErrNoResponders):
		return "no_responders"
	case stderrors.Is(err, errors.ErrPermissionViolation):
		return "permission"
	default:
		return "error"
	}
}
