package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/datahub/natsclient"
)

// Published is one message seen by a MockBus, in publish order.
type Published struct {
	Subject string
	Data    []byte
}

// MockBus is an in-memory message bus. Each Dial returns a connection that
// shares the bus, so a provider and a consumer in one test talk to each other.
// Handlers run on a per-subscription goroutine in publish order, like the real client.
type MockBus struct {
	mu        sync.RWMutex
	subs      map[int]*mockSub
	nextSub   int
	conns     []*MockConn
	published []Published

	// DialErr, when set, is returned by the next Dial calls
	DialErr error
	dials   int
	tokens  []string
}

// NewMockBus creates an empty bus.
func NewMockBus() *MockBus {
	return &MockBus{subs: make(map[int]*mockSub)}
}

type mockSub struct {
	bus     *MockBus
	id      int
	subject string
	ctx     context.Context
	handler natsclient.MsgHandler
	queue   chan *natsclient.Msg
	once    sync.Once
}

func (s *mockSub) run() {
	for msg := range s.queue {
		msgCtx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		s.handler(msgCtx, msg)
		cancel()
	}
}

// Unsubscribe implements natsclient.Subscription.
func (s *mockSub) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		close(s.queue)
	})
	return nil
}

// MockConn is one connection to a MockBus. It implements natsclient.Transport.
type MockConn struct {
	bus    *MockBus
	opts   natsclient.DialOptions
	mu     sync.Mutex
	subs   []*mockSub
	closed bool
}

// Dial implements natsclient.Dialer.
func (b *MockBus) Dial(ctx context.Context, opts natsclient.DialOptions) (natsclient.Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if opts.TokenHandler != nil {
		b.tokens = append(b.tokens, opts.TokenHandler())
	}
	if b.DialErr != nil {
		return nil, b.DialErr
	}

	c := &MockConn{bus: b, opts: opts}
	b.conns = append(b.conns, c)
	return c, nil
}

// Dials returns how many times Dial was called.
func (b *MockBus) Dials() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dials
}

// Tokens returns the tokens presented by each Dial.
func (b *MockBus) Tokens() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.tokens...)
}

// Publish implements natsclient.Transport.
func (c *MockConn) Publish(_ context.Context, subject string, data []byte) error {
	if c.isClosed() {
		return nats.ErrConnectionClosed
	}
	c.bus.deliver(subject, "", data, nil)
	return nil
}

// Subscribe implements natsclient.Transport.
func (c *MockConn) Subscribe(ctx context.Context, subject string, handler natsclient.MsgHandler) (natsclient.Subscription, error) {
	if c.isClosed() {
		return nil, nats.ErrConnectionClosed
	}

	b := c.bus
	b.mu.Lock()
	sub := &mockSub{
		bus:     b,
		id:      b.nextSub,
		subject: subject,
		ctx:     context.WithoutCancel(ctx),
		handler: handler,
		queue:   make(chan *natsclient.Msg, 1024),
	}
	b.nextSub++
	b.subs[sub.id] = sub
	b.mu.Unlock()

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()

	go sub.run()
	return sub, nil
}

// Request implements natsclient.Transport. Without a subscriber it fails with
// nats.ErrNoResponders; a subscriber that never responds yields a timeout.
func (c *MockConn) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	if c.isClosed() {
		return nil, nats.ErrConnectionClosed
	}

	reply := make(chan []byte, 1)
	respond := func(resp []byte) error {
		select {
		case reply <- resp:
		default:
		}
		return nil
	}

	if n := c.bus.deliver(subject, "_INBOX.mock", data, respond); n == 0 {
		return nil, nats.ErrNoResponders
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nats.ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// Close implements natsclient.Transport.
func (c *MockConn) Close(_ context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		_ = s.Unsubscribe()
	}
	return nil
}

func (c *MockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (b *MockBus) deliver(subject, reply string, data []byte, respond func([]byte) error) int {
	b.mu.Lock()
	if respond == nil {
		b.published = append(b.published, Published{Subject: subject, Data: data})
	}
	var targets []*mockSub
	for _, s := range b.subs {
		if SubjectMatches(s.subject, subject) {
			targets = append(targets, s)
		}
	}
	// Request/reply hands each message to one responder; queue under the lock
	// so a concurrent Unsubscribe cannot close the channel mid-send.
	n := 0
	for _, s := range targets {
		select {
		case s.queue <- natsclient.NewMsg(subject, reply, data, respond):
			n++
		default:
		}
		if respond != nil && n > 0 {
			break
		}
	}
	b.mu.Unlock()
	return n
}

// SubjectMatches reports whether subject matches pattern, which may use the
// "*" (one token) and ">" (rest) wildcards.
func SubjectMatches(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return len(st) > i
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}

// SimulateDisconnect runs every live connection's disconnect hook.
func (b *MockBus) SimulateDisconnect(err error) {
	for _, c := range b.liveConns() {
		if c.opts.OnDisconnect != nil {
			c.opts.OnDisconnect(err)
		}
	}
}

// SimulateReconnect runs every live connection's reconnect hook. Tokens are
// re-read from the handler as the real client does.
func (b *MockBus) SimulateReconnect() {
	for _, c := range b.liveConns() {
		if c.opts.TokenHandler != nil {
			tok := c.opts.TokenHandler()
			b.mu.Lock()
			b.tokens = append(b.tokens, tok)
			b.mu.Unlock()
		}
		if c.opts.OnReconnect != nil {
			c.opts.OnReconnect()
		}
	}
}

// SimulateClosed runs every live connection's closed hook, as when the
// client library gives up reconnecting.
func (b *MockBus) SimulateClosed() {
	for _, c := range b.liveConns() {
		if c.opts.OnClosed != nil {
			c.opts.OnClosed()
		}
	}
}

func (b *MockBus) liveConns() []*MockConn {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*MockConn
	for _, c := range b.conns {
		if !c.isClosed() {
			out = append(out, c)
		}
	}
	return out
}

// Subscribers returns how many subscriptions match subject.
func (b *MockBus) Subscribers(subject string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if SubjectMatches(s.subject, subject) {
			n++
		}
	}
	return n
}

// Published returns every published message in order.
func (b *MockBus) Published() []Published {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Published(nil), b.published...)
}

// Messages returns the payloads published on subject.
func (b *MockBus) Messages(subject string) [][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out [][]byte
	for _, p := range b.published {
		if p.Subject == subject {
			out = append(out, p.Data)
		}
	}
	return out
}

// MessageCount returns the number of messages published on subject.
func (b *MockBus) MessageCount(subject string) int {
	return len(b.Messages(subject))
}

// ClearPublished forgets all recorded messages.
func (b *MockBus) ClearPublished() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = nil
}

// WaitForMessageCount waits until at least count messages were published on subject.
func WaitForMessageCount(t *testing.T, bus *MockBus, subject string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if bus.MessageCount(subject) >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d messages on subject %s (got %d)", count, subject, bus.MessageCount(subject))
}

// WaitForSubscribers waits until subject has at least count subscribers.
func WaitForSubscribers(t *testing.T, bus *MockBus, subject string, count int, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if bus.Subscribers(subject) >= count {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d subscribers on %s (got %d)", count, subject, bus.Subscribers(subject))
}
