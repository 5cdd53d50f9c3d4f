package config

import (
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c360/datahub/errors"
	"github.com/c360/datahub/hub"
	"github.com/c360/datahub/pkg/tlsutil"
	"github.com/c360/datahub/subject"
)

// Defaults applied before any file layer
const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 49360
	DefaultClientName        = "datahub"
	DefaultScope             = "hub.variables.provide hub.variables.readwrite"
	DefaultMaxInFlight       = 5
	DefaultRequestTimeout    = 10 * time.Second
	DefaultReconnectWait     = 2 * time.Second
	DefaultDiscoveryTTL      = 5 * time.Minute
	DefaultStrategyTimeout   = 2 * time.Second
	DefaultHeartbeatInterval = 300 * time.Second
	DefaultMetricsAddr       = ":9090"
	DefaultMetricsPath       = "/metrics"
)

// Config represents the complete application configuration
type Config struct {
	Version   string           `json:"version,omitempty"`
	Hub       HubConfig        `json:"hub"`
	Session   SessionConfig    `json:"session"`
	Discovery DiscoveryConfig  `json:"discovery"`
	Providers []ProviderConfig `json:"providers,omitempty"`
	Consumers []ConsumerConfig `json:"consumers,omitempty"`
	Metrics   MetricsConfig    `json:"metrics"`
}

// HubConfig locates the hub and holds the OAuth client credentials
type HubConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	ClientName   string `json:"client_name"`
	Scope        string `json:"scope"`
	// TokenURL overrides https://<host>/oauth2/token
	TokenURL string `json:"token_url,omitempty"`
	// APIURL overrides https://<host> as the REST root
	APIURL             string    `json:"api_url,omitempty"`
	InsecureSkipVerify bool      `json:"insecure_skip_verify,omitempty"`
	TLS                TLSConfig `json:"tls"`
}

// TLSConfig controls the bus connection's TLS and the trust used for every
// HTTPS call to the hub
type TLSConfig struct {
	// Enabled requires TLS on the bus connection
	Enabled    bool     `json:"enabled,omitempty"`
	CAFiles    []string `json:"ca_files,omitempty"`
	CertFile   string   `json:"cert_file,omitempty"`
	KeyFile    string   `json:"key_file,omitempty"`
	MinVersion string   `json:"min_version,omitempty"`
}

// ClientTLS returns the TLS settings for hub clients
func (h HubConfig) ClientTLS() tlsutil.ClientConfig {
	return tlsutil.ClientConfig{
		CAFiles:            h.TLS.CAFiles,
		CertFile:           h.TLS.CertFile,
		KeyFile:            h.TLS.KeyFile,
		InsecureSkipVerify: h.InsecureSkipVerify,
		MinVersion:         h.TLS.MinVersion,
	}
}

// NATSURL returns the bus address
func (h HubConfig) NATSURL() string {
	return "nats://" + net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

// RESTURL returns the root of the hub's HTTP API
func (h HubConfig) RESTURL() string {
	if h.APIURL != "" {
		return h.APIURL
	}
	return "https://" + h.Host
}

// Scopes splits Scope on whitespace
func (h HubConfig) Scopes() []string {
	return strings.Fields(h.Scope)
}

// SessionConfig tunes the shared bus connection
type SessionConfig struct {
	MaxInFlight    int           `json:"max_in_flight"`
	RequestTimeout time.Duration `json:"request_timeout"`
	MaxReconnects  int           `json:"max_reconnects"`
	ReconnectWait  time.Duration `json:"reconnect_wait"`
}

// DiscoveryConfig tunes the definition cache
type DiscoveryConfig struct {
	TTL             time.Duration `json:"ttl"`
	StrategyTimeout time.Duration `json:"strategy_timeout"`
	// REST enables the HTTP listing as a last discovery strategy
	REST bool `json:"rest"`
	// Overrides maps provider ID to key to variable ID
	Overrides map[string]map[string]uint32 `json:"overrides,omitempty"`
}

// ProviderConfig declares a provider served by this process
type ProviderConfig struct {
	ID                string           `json:"id"`
	EnableWrites      bool             `json:"enable_writes,omitempty"`
	HeartbeatInterval time.Duration    `json:"heartbeat_interval,omitempty"`
	Variables         []VariableConfig `json:"variables,omitempty"`
}

// VariableConfig predeclares a provider variable
type VariableConfig struct {
	Key  string `json:"key"`
	Type string `json:"type"`
	// ID pins the variable ID; zero assigns the next free one
	ID uint32 `json:"id,omitempty"`
}

// ConsumerConfig declares a provider this process reads from
type ConsumerConfig struct {
	ProviderID string   `json:"provider_id"`
	Keys       []string `json:"keys,omitempty"`
	// ManualVariables is a "key:id, key:id" list used when discovery fails.
	// Its keys are also added to Keys.
	ManualVariables string        `json:"manual_variables,omitempty"`
	PollingInterval time.Duration `json:"polling_interval,omitempty"`
}

// FilterKeys returns Keys plus the keys named in ManualVariables
func (c ConsumerConfig) FilterKeys() []string {
	seen := make(map[string]bool, len(c.Keys))
	var out []string
	for _, k := range c.Keys {
		if k = strings.TrimSpace(k); k != "" && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	manual, _ := ParseManualVariables(c.ManualVariables)
	for _, k := range sortedKeys(manual) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// MetricsConfig controls the Prometheus and health endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	Path    string `json:"path"`
}

// Defaults returns a configuration with every default applied
func Defaults() *Config {
	return &Config{
		Hub: HubConfig{
			Host:       DefaultHost,
			Port:       DefaultPort,
			ClientName: DefaultClientName,
			Scope:      DefaultScope,
		},
		Session: SessionConfig{
			MaxInFlight:    DefaultMaxInFlight,
			RequestTimeout: DefaultRequestTimeout,
			MaxReconnects:  -1,
			ReconnectWait:  DefaultReconnectWait,
		},
		Discovery: DiscoveryConfig{
			TTL:             DefaultDiscoveryTTL,
			StrategyTimeout: DefaultStrategyTimeout,
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
			Path: DefaultMetricsPath,
		},
	}
}

// OverridesFor merges the discovery overrides for providerID with the
// manual variables of every consumer of that provider.
func (c *Config) OverridesFor(providerID string) map[string]uint32 {
	out := make(map[string]uint32)
	for k, id := range c.Discovery.Overrides[providerID] {
		out[k] = id
	}
	for _, cc := range c.Consumers {
		if cc.ProviderID != providerID {
			continue
		}
		manual, _ := ParseManualVariables(cc.ManualVariables)
		for k, id := range manual {
			out[k] = id
		}
	}
	return out
}

// Validate checks the semantic rules the schema cannot express
func (c *Config) Validate() error {
	if c.Hub.Host == "" {
		return invalid("hub.host is required")
	}
	if c.Hub.Port < 1 || c.Hub.Port > 65535 {
		return invalid("hub.port %d out of range", c.Hub.Port)
	}
	if c.Hub.ClientID == "" {
		return invalid("hub.client_id is required")
	}
	if c.Hub.ClientSecret == "" {
		return invalid("hub.client_secret is required (set it in the file or DATAHUB_CLIENT_SECRET)")
	}
	if len(c.Hub.Scopes()) == 0 {
		return invalid("hub.scope is required")
	}
	if (c.Hub.TLS.CertFile == "") != (c.Hub.TLS.KeyFile == "") {
		return invalid("hub.tls needs both cert_file and key_file")
	}

	if c.Session.MaxInFlight < 1 {
		return invalid("session.max_in_flight must be at least 1")
	}
	if c.Session.RequestTimeout <= 0 {
		return invalid("session.request_timeout must be positive")
	}
	if c.Discovery.TTL <= 0 {
		return invalid("discovery.ttl must be positive")
	}
	if c.Discovery.StrategyTimeout <= 0 {
		return invalid("discovery.strategy_timeout must be positive")
	}
	for providerID, keys := range c.Discovery.Overrides {
		if err := subject.Validate(providerID); err != nil {
			return invalid("discovery.overrides: %v", err)
		}
		for key, id := range keys {
			if key == "" || id == 0 {
				return invalid("discovery.overrides.%s: key and non-zero id required", providerID)
			}
		}
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if err := subject.Validate(p.ID); err != nil {
			return invalid("providers[%d]: %v", i, err)
		}
		if seen[p.ID] {
			return invalid("providers[%d]: duplicate provider id %q", i, p.ID)
		}
		seen[p.ID] = true
		if p.HeartbeatInterval != 0 && p.HeartbeatInterval < time.Second {
			return invalid("providers[%d].heartbeat_interval must be at least 1s", i)
		}
		keys := make(map[string]bool, len(p.Variables))
		for j, v := range p.Variables {
			if v.Key == "" {
				return invalid("providers[%d].variables[%d]: key is required", i, j)
			}
			if keys[v.Key] {
				return invalid("providers[%d].variables[%d]: duplicate key %q", i, j, v.Key)
			}
			keys[v.Key] = true
			if !hub.ParseDataType(v.Type).Valid() {
				return invalid("providers[%d].variables[%d]: unknown type %q", i, j, v.Type)
			}
		}
	}

	for i, cc := range c.Consumers {
		if err := subject.Validate(cc.ProviderID); err != nil {
			return invalid("consumers[%d]: %v", i, err)
		}
		if cc.PollingInterval < 0 {
			return invalid("consumers[%d].polling_interval cannot be negative", i)
		}
		if cc.ManualVariables != "" {
			if manual, _ := ParseManualVariables(cc.ManualVariables); len(manual) == 0 {
				return invalid("consumers[%d].manual_variables has no valid key:id entry", i)
			}
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return invalid("metrics.addr is required when metrics are enabled")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"Config", "Validate", "validate configuration")
}

// ParseManualVariables parses "key:id" pairs separated by commas. Malformed
// entries are returned separately and otherwise ignored.
func ParseManualVariables(text string) (map[string]uint32, []string) {
	out := make(map[string]uint32)
	var bad []string
	for _, entry := range strings.Split(text, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, rawID, ok := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 32)
		if !ok || key == "" || err != nil || id == 0 {
			bad = append(bad, entry)
			continue
		}
		out[key] = uint32(id)
	}
	return out, bad
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Redacted returns a copy safe to log
func (c *Config) Redacted() *Config {
	clone := c.Clone()
	if clone.Hub.ClientSecret != "" {
		clone.Hub.ClientSecret = "***"
	}
	return clone
}

// String returns a JSON representation of the config without secrets
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

func sortedKeys(m map[string]uint32) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
