package testutil

import (
	"context"
	"sync"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/fingerprint"
	"github.com/c360/datahub/hub"
)

// MachineDefinitions is a four-variable definition set covering every data type.
func MachineDefinitions() []hub.VariableDefinition {
	return []hub.VariableDefinition{
		{ID: 101, Key: "machine.status", DataType: hub.DataTypeString, Access: hub.AccessReadWrite},
		{ID: 102, Key: "machine.details.temp", DataType: hub.DataTypeFloat64, Access: hub.AccessReadWrite},
		{ID: 103, Key: "machine.count", DataType: hub.DataTypeInt64, Access: hub.AccessReadOnly},
		{ID: 104, Key: "machine.running", DataType: hub.DataTypeBoolean, Access: hub.AccessReadOnly, Experimental: true},
	}
}

// MachineDefinition is MachineDefinitions with its fingerprint.
func MachineDefinition() hub.ProviderDefinition {
	defs := MachineDefinitions()
	return hub.ProviderDefinition{Fingerprint: fingerprint.Compute(defs), Variables: defs}
}

// FakeCredentials is an in-memory credential source for session tests.
type FakeCredentials struct {
	mu           sync.Mutex
	token        string
	TokenErr     error
	circuitOpen  bool
	authFailures int
	invalidated  int
}

// NewFakeCredentials returns credentials that always yield token.
func NewFakeCredentials(token string) *FakeCredentials {
	return &FakeCredentials{token: token}
}

// Token returns the configured token or TokenErr.
func (f *FakeCredentials) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TokenErr != nil {
		return "", f.TokenErr
	}
	return f.token, nil
}

// Current returns the configured token.
func (f *FakeCredentials) Current() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// SetToken replaces the token, as a refresh would.
func (f *FakeCredentials) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

// CheckCircuit fails with ErrAuthCooldown after RecordAuthFailure until ResetCircuit.
func (f *FakeCredentials) CheckCircuit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.circuitOpen {
		return errors.WrapTransient(errors.ErrAuthCooldown, "FakeCredentials", "CheckCircuit", "check circuit")
	}
	return nil
}

// RecordAuthFailure opens the circuit.
func (f *FakeCredentials) RecordAuthFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.circuitOpen = true
	f.authFailures++
}

// ResetCircuit closes the circuit.
func (f *FakeCredentials) ResetCircuit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.circuitOpen = false
}

// Invalidate counts token invalidations.
func (f *FakeCredentials) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

// AuthFailures returns how many auth failures were recorded.
func (f *FakeCredentials) AuthFailures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authFailures
}

// Invalidations returns how many times the token was invalidated.
func (f *FakeCredentials) Invalidations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.invalidated
}
