package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_UpdateSetsNameAndTimestamp(t *testing.T) {
	m := NewMonitor()
	m.Update("consumer/p1", Status{Component: "wrong", Status: StateHealthy})

	got, ok := m.Get("consumer/p1")
	require.True(t, ok)
	assert.Equal(t, "consumer/p1", got.Component)
	assert.False(t, got.Timestamp.IsZero())

	_, ok = m.Get("consumer/p2")
	assert.False(t, ok)
}

func TestMonitor_WatchFiresOnLevelChange(t *testing.T) {
	m := NewMonitor()

	var seen []string
	stop := m.Watch(func(s Status) { seen = append(seen, s.Status) })

	m.UpdateConnecting("p1", "dialing")
	m.UpdateConnecting("p1", "still dialing")
	m.UpdateHealthy("p1", "ready")
	m.UpdateDegraded("p1", "discovery failed")
	stop()
	m.UpdateUnhealthy("p1", "closed")

	assert.Equal(t, []string{StateConnecting, StateHealthy, StateDegraded}, seen)
}

func TestMonitor_AggregateOrdered(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("b", "")
	m.UpdateHealthy("a", "")
	m.UpdateDegraded("c", "")

	agg := m.AggregateHealth("datahub")
	assert.True(t, agg.IsDegraded())
	require.Len(t, agg.SubStatuses, 3)
	assert.Equal(t, "a", agg.SubStatuses[0].Component)
	assert.Equal(t, "c", agg.SubStatuses[2].Component)
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor()
	m.UpdateHealthy("p1", "ready")

	rec := httptest.NewRecorder()
	m.Handler("datahub").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "datahub", body.Component)
	assert.True(t, body.Healthy)

	m.UpdateUnhealthy("p1", "auth failed")
	rec = httptest.NewRecorder()
	m.Handler("datahub").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMonitor_Concurrent(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := []string{"a", "b", "c"}[i%3]
			m.UpdateHealthy(name, "")
			_ = m.AggregateHealth("x")
			_, _ = m.Get(name)
		}(i)
	}
	wg.Wait()
	assert.Len(t, m.AggregateHealth("x").SubStatuses, 3)
}
