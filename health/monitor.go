package health

import (
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"
)

// Monitor keeps the latest Status of every named part of the process:
// the session, each provider and each consumer.
type Monitor struct {
	mu      sync.RWMutex
	parts   map[string]Status
	watches map[int]func(Status)
	seq     int
}

// NewMonitor returns an empty Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		parts:   make(map[string]Status),
		watches: make(map[int]func(Status)),
	}
}

// Update stores status under name. Watchers run, outside the lock, when the
// level differs from the previous one.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	prev, seen := m.parts[name]
	m.parts[name] = status
	var fire []func(Status)
	if !seen || prev.Status != status.Status {
		fire = slices.Collect(maps.Values(m.watches))
	}
	m.mu.Unlock()

	for _, fn := range fire {
		fn(status)
	}
}

// UpdateHealthy marks name healthy
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy marks name unhealthy
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded marks name degraded
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// UpdateConnecting marks name as still connecting
func (m *Monitor) UpdateConnecting(name, message string) {
	m.Update(name, NewConnecting(name, message))
}

// Watch calls fn on every level change until the returned func is called
func (m *Monitor) Watch(fn func(Status)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.seq
	m.seq++
	m.watches[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watches, id)
	}
}

// Get returns the latest status of name
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.parts[name]
	return s, ok
}

// AggregateHealth rolls every part up under systemName, parts sorted by name
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	names := slices.Sorted(maps.Keys(m.parts))
	parts := make([]Status, len(names))
	for i, n := range names {
		parts[i] = m.parts[n]
	}
	m.mu.RUnlock()

	return Aggregate(systemName, parts)
}

// Handler serves AggregateHealth as JSON, answering 503 while unhealthy
func (m *Monitor) Handler(systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := m.AggregateHealth(systemName)
		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
