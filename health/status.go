// Package health reports the connection and readiness state of hub clients
package health

import (
	"regexp"
	"time"
)

// Status levels
const (
	StateConnecting = "connecting"
	StateHealthy    = "healthy"
	StateDegraded   = "degraded"
	StateUnhealthy  = "unhealthy"
)

// redactions scrub an error message before it is served on the health
// endpoint. Order matters: URLs contain paths and addresses.
var redactions = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/=-]+`), "[REDACTED]"},
	{regexp.MustCompile(`(?i)[a-z_]*(password|token|secret|credential|key)[^a-zA-Z\s]*[:=][^,\s}]+`), "[REDACTED]"},
	{regexp.MustCompile(`[a-z][a-z0-9+.-]*://[^\s]+`), "[URL]"},
	{regexp.MustCompile(`[A-Z]:\\[^:\s]+`), "[PATH]"},
	{regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`), "[PATH]"},
	{regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`), "[IP]"},
	{regexp.MustCompile(`:\d{2,5}\b`), "[PORT]"},
}

// Status is the health of one client or of the whole process
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"` // true only for "healthy"
	Status      string    `json:"status"`  // connecting, healthy, degraded, unhealthy
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool {
	return s.Status == StateHealthy
}

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool {
	return s.Status == StateDegraded
}

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool {
	return s.Status == StateUnhealthy
}

// IsConnecting returns true while the client has not reached the bus yet
func (s Status) IsConnecting() bool {
	return s.Status == StateConnecting
}

func sanitizeErrorMessage(msg string) string {
	for _, r := range redactions {
		msg = r.re.ReplaceAllString(msg, r.with)
	}
	return msg
}

// FromError builds an unhealthy status whose message is the sanitized error.
// A nil error yields a healthy status.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "ready")
	}
	return NewUnhealthy(component, sanitizeErrorMessage(err.Error()))
}
