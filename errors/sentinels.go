package errors

import "errors"

// Lifecycle
var (
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrShuttingDown   = errors.New("shutting down")
)

// Credentials
var (
	ErrAuthFailure  = errors.New("authentication failed")
	ErrAuthCooldown = errors.New("authentication cooldown active")
)

// Bus and request scheduling
var (
	ErrNoConnection          = errors.New("no connection available")
	ErrConnectionLost        = errors.New("connection lost")
	ErrTimeout               = errors.New("request timeout")
	ErrNoResponders          = errors.New("no responders")
	ErrPermissionViolation   = errors.New("permission violation")
	ErrProviderOffline       = errors.New("provider offline")
	ErrSubscriptionFailed    = errors.New("subscription failed")
	ErrCircuitOpen           = errors.New("circuit breaker open")
	ErrMaxRetriesExceeded    = errors.New("maximum retries exceeded")
	ErrRequestLimiterStopped = errors.New("request scheduler closed")
)

// Discovery
var (
	ErrDiscoveryFailed     = errors.New("provider definition discovery failed")
	ErrDefinitionNotFound  = errors.New("provider definition not found")
	ErrVariableNotFound    = errors.New("variable not found")
	ErrFingerprintMismatch = errors.New("definition fingerprint mismatch")
)

// Encoding
var (
	ErrUnsupportedValueType = errors.New("unsupported value type")
	ErrInvalidData          = errors.New("invalid data format")
	ErrParsingFailed        = errors.New("parsing failed")
)

// Configuration
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)
