package natsclient

import (
	stderrors "errors"
)

// ConnectionStatus is where a Client is in its connection lifecycle
type ConnectionStatus int

// Connection lifecycle states
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

var statusNames = [...]string{
	StatusDisconnected: "disconnected",
	StatusConnecting:   "connecting",
	StatusConnected:    "connected",
	StatusReconnecting: "reconnecting",
	StatusCircuitOpen:  "circuit_open",
}

func (s ConnectionStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Client errors
var (
	ErrNotConnected = stderrors.New("not connected to hub bus")
	ErrCircuitOpen  = stderrors.New("connect circuit is open")
)
