package natsclient

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultBreakerThreshold = 5
	defaultBreakerBackoff   = time.Second
	defaultBreakerMaxWait   = time.Minute
)

// breaker stops Connect from hammering an unreachable hub. After threshold
// consecutive failures it opens for the current backoff, which doubles on
// every reopen up to maxWait. A success closes it and resets the backoff.
type breaker struct {
	mu        sync.Mutex
	clock     clock.Clock
	threshold int
	maxWait   time.Duration

	failures int // since the last open
	total    int // since the last success
	backoff  time.Duration
	open     bool
	timer    *clock.Timer

	onChange func(open bool)
}

func newBreaker(clk clock.Clock, threshold int, maxWait time.Duration) *breaker {
	if threshold < 1 {
		threshold = defaultBreakerThreshold
	}
	if maxWait < defaultBreakerBackoff {
		maxWait = defaultBreakerMaxWait
	}
	return &breaker{
		clock:     clk,
		threshold: threshold,
		maxWait:   maxWait,
		backoff:   defaultBreakerBackoff,
	}
}

// allow reports whether a connect attempt may proceed
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open
}

// fail records one failed attempt and returns how long the breaker stays
// open, or zero if it is still closed
func (b *breaker) fail() time.Duration {
	b.mu.Lock()
	b.total++
	b.failures++
	if b.failures < b.threshold || b.open {
		b.mu.Unlock()
		return 0
	}

	wait := b.backoff
	b.backoff = min(b.backoff*2, b.maxWait)
	b.failures = 0
	b.open = true
	b.timer = b.clock.AfterFunc(wait, b.halfOpen)
	onChange := b.onChange
	b.mu.Unlock()

	if onChange != nil {
		onChange(true)
	}
	return wait
}

// halfOpen lets the next attempt through. Another failure reopens at once.
func (b *breaker) halfOpen() {
	b.mu.Lock()
	if !b.open {
		b.mu.Unlock()
		return
	}
	b.open = false
	b.failures = b.threshold - 1
	b.timer = nil
	onChange := b.onChange
	b.mu.Unlock()

	if onChange != nil {
		onChange(false)
	}
}

func (b *breaker) succeed() {
	b.mu.Lock()
	wasOpen := b.open
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.open = false
	b.failures = 0
	b.total = 0
	b.backoff = defaultBreakerBackoff
	onChange := b.onChange
	b.mu.Unlock()

	if wasOpen && onChange != nil {
		onChange(false)
	}
}

func (b *breaker) stats() (failures int, backoff time.Duration, open bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total, b.backoff, b.open
}
