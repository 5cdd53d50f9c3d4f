package health

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Predicates(t *testing.T) {
	tests := []struct {
		state      string
		healthy    bool
		degraded   bool
		unhealthy  bool
		connecting bool
	}{
		{state: StateHealthy, healthy: true},
		{state: StateDegraded, degraded: true},
		{state: StateUnhealthy, unhealthy: true},
		{state: StateConnecting, connecting: true},
		{state: ""},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			s := Status{Status: tt.state}
			assert.Equal(t, tt.healthy, s.IsHealthy())
			assert.Equal(t, tt.degraded, s.IsDegraded())
			assert.Equal(t, tt.unhealthy, s.IsUnhealthy())
			assert.Equal(t, tt.connecting, s.IsConnecting())
		})
	}
}

func TestFromError(t *testing.T) {
	s := FromError("consumer", nil)
	assert.True(t, s.IsHealthy())

	s = FromError("consumer", fmt.Errorf("dial nats://10.0.0.5:4222 failed"))
	assert.True(t, s.IsUnhealthy())
	assert.False(t, s.Healthy)
	assert.Equal(t, "dial [URL] failed", s.Message)
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name string
		subs []Status
		want string
	}{
		{name: "empty", want: StateHealthy},
		{name: "all healthy", subs: []Status{NewHealthy("a", ""), NewHealthy("b", "")}, want: StateHealthy},
		{name: "connecting counts as degraded", subs: []Status{NewHealthy("a", ""), NewConnecting("b", "")}, want: StateDegraded},
		{name: "degraded", subs: []Status{NewDegraded("a", ""), NewHealthy("b", "")}, want: StateDegraded},
		{name: "unhealthy wins", subs: []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, want: StateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate("system", tt.subs)
			assert.Equal(t, tt.want, got.Status)
			assert.Equal(t, tt.want == StateHealthy, got.Healthy)
			assert.Len(t, got.SubStatuses, len(tt.subs))
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "bus url", in: "dial nats://10.0.0.5:4222 failed", want: "dial [URL] failed"},
		{name: "token endpoint", in: "oauth2 token request to https://hub.local/oauth2/token failed", want: "oauth2 token request to [URL] failed"},
		{name: "config path", in: "open /etc/datahub/datahub.yaml: permission denied", want: "open [PATH]: permission denied"},
		{name: "windows path", in: `read C:\ProgramData\datahub\datahub.yaml`, want: "read [PATH]"},
		{name: "bearer token", in: "authorization: Bearer eyJhbGciOi.abc-def", want: "authorization: [REDACTED]"},
		{name: "secret assignment", in: "client_secret=hunter2 rejected", want: "[REDACTED] rejected"},
		{name: "address", in: "no route to 192.168.1.100", want: "no route to [IP]"},
		{name: "listen port", in: "listen tcp :9090: address already in use", want: "listen tcp [PORT]: address already in use"},
		{name: "mixed", in: "connect https://192.168.1.1:8080/api with token=abc123", want: "connect [URL] with [REDACTED]"},
		{name: "plain words survive", in: "fetch token: unauthorized", want: "fetch token: unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeErrorMessage(tt.in))
		})
	}
}
