package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults used when NewPool gets a non-positive size
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 256
)

type poolState int

const (
	stateIdle poolState = iota
	stateRunning
	stateStopped
)

// Pool feeds items of type T to a processor on a fixed set of goroutines.
// A Pool runs once: after Stop it rejects new work.
type Pool[T any] struct {
	size    int
	process func(context.Context, T) error
	onError func(T, error)
	logger  *slog.Logger
	metrics *Metrics

	queue chan T
	wg    sync.WaitGroup

	mu    sync.Mutex
	state poolState

	queued, done, failed, dropped atomic.Int64
}

// Option configures a Pool
type Option[T any] func(*Pool[T])

// WithMetrics reports into m, which may be shared with earlier pools
func WithMetrics[T any](m *Metrics) Option[T] {
	return func(p *Pool[T]) {
		p.metrics = m
	}
}

// WithErrorHandler receives every item the processor failed on or panicked on.
// Without one, failures are logged.
func WithErrorHandler[T any](fn func(T, error)) Option[T] {
	return func(p *Pool[T]) {
		p.onError = fn
	}
}

// WithLogger sets where unhandled failures are logged
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(p *Pool[T]) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool returns an idle pool of workers goroutines with room for
// queueSize waiting items
func NewPool[T any](workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if process == nil {
		return nil, ErrNilProcessor
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	p := &Pool[T]{
		size:    workers,
		process: process,
		logger:  slog.Default(),
		queue:   make(chan T, queueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Start launches the workers. They stop when ctx ends or after Stop has
// drained the queue.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateRunning:
		return ErrPoolAlreadyStarted
	case stateStopped:
		return ErrPoolStopped
	}
	p.state = stateRunning

	p.wg.Add(p.size)
	for range p.size {
		go p.loop(ctx)
	}
	return nil
}

// Submit queues item without blocking. A full queue drops it with ErrQueueFull.
func (p *Pool[T]) Submit(item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateIdle:
		return ErrPoolNotStarted
	case stateStopped:
		return ErrPoolStopped
	}

	select {
	case p.queue <- item:
		p.queued.Add(1)
		p.metrics.outcome("queued")
		p.metrics.setDepth(len(p.queue))
		return nil
	default:
		p.dropped.Add(1)
		p.metrics.outcome("dropped")
		return ErrQueueFull
	}
}

// Stop rejects new work and waits up to timeout for queued items to finish.
// Stopping a pool that never started, or twice, is a no-op.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if p.state != stateRunning {
		p.state = stateStopped
		p.mu.Unlock()
		return nil
	}
	p.state = stateStopped
	close(p.queue)
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(timeout):
		return ErrStopTimeout
	}
}

func (p *Pool[T]) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			p.handle(ctx, item)
		}
	}
}

func (p *Pool[T]) handle(ctx context.Context, item T) {
	began := time.Now()
	err := p.call(ctx, item)
	p.metrics.observe(time.Since(began).Seconds())
	p.metrics.setDepth(len(p.queue))
	p.done.Add(1)

	if err == nil {
		p.metrics.outcome("done")
		return
	}
	p.failed.Add(1)
	p.metrics.outcome("failed")
	if p.onError != nil {
		p.onError(item, err)
		return
	}
	p.logger.Warn("Worker item failed", "error", err)
}

// call converts a processor panic into ErrProcessorPanic
func (p *Pool[T]) call(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrProcessorPanic, r)
		}
	}()
	return p.process(ctx, item)
}

// Stats is a point-in-time view of a pool's counters
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Queued     int64 `json:"queued"`
	Done       int64 `json:"done"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

// Stats returns the pool's counters. Done includes failed items.
func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.size,
		QueueSize:  cap(p.queue),
		QueueDepth: len(p.queue),
		Queued:     p.queued.Load(),
		Done:       p.done.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}
