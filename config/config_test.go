package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/datahub/errors"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.Hub.ClientID = "node"
	cfg.Hub.ClientSecret = "secret"
	return cfg
}

// Test default values
func TestLoader_Defaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{"hub": {"client_id": "node"}}`)

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "node", cfg.Hub.ClientID)
	assert.Equal(t, DefaultHost, cfg.Hub.Host)
	assert.Equal(t, 49360, cfg.Hub.Port)
	assert.Equal(t, []string{"hub.variables.provide", "hub.variables.readwrite"}, cfg.Hub.Scopes())
	assert.Equal(t, 5, cfg.Session.MaxInFlight)
	assert.Equal(t, -1, cfg.Session.MaxReconnects)
	assert.Equal(t, 5*time.Minute, cfg.Discovery.TTL)
	assert.Equal(t, 2*time.Second, cfg.Discovery.StrategyTimeout)
	assert.Equal(t, "nats://127.0.0.1:49360", cfg.Hub.NATSURL())
	assert.Equal(t, "https://127.0.0.1", cfg.Hub.RESTURL())
}

func TestLoader_JSONAndYAML(t *testing.T) {
	jsonCfg := `{
		"hub": {"host": "hub.local", "port": 4222, "client_id": "node", "client_secret": "s3cret"},
		"session": {"max_in_flight": 3, "request_timeout": "4s"},
		"discovery": {"ttl": "1d", "rest": true, "overrides": {"plc-1": {"speed": 12}}},
		"providers": [{"id": "plc-1", "enable_writes": true, "heartbeat_interval": "30s",
			"variables": [{"key": "speed", "type": "FLOAT64", "id": 12}]}],
		"consumers": [{"provider_id": "plc-2", "keys": ["temp"], "polling_interval": "500ms"}]
	}`
	yamlCfg := `
hub:
  host: hub.local
  port: 4222
  client_id: node
  client_secret: s3cret
session:
  max_in_flight: 3
  request_timeout: 4s
discovery:
  ttl: 1d
  rest: true
  overrides:
    plc-1:
      speed: 12
providers:
  - id: plc-1
    enable_writes: true
    heartbeat_interval: 30s
    variables:
      - key: speed
        type: FLOAT64
        id: 12
consumers:
  - provider_id: plc-2
    keys: [temp]
    polling_interval: 500ms
`

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "json", file: "config.json", content: jsonCfg},
		{name: "yaml", file: "config.yaml", content: yamlCfg},
		{name: "yml", file: "config.yml", content: yamlCfg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := NewLoader()
			loader.EnableValidation(true)
			cfg, err := loader.LoadFile(writeConfig(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, "nats://hub.local:4222", cfg.Hub.NATSURL())
			assert.Equal(t, 3, cfg.Session.MaxInFlight)
			assert.Equal(t, 4*time.Second, cfg.Session.RequestTimeout)
			assert.Equal(t, 2*time.Second, cfg.Session.ReconnectWait, "unset fields keep defaults")
			assert.Equal(t, 24*time.Hour, cfg.Discovery.TTL)
			assert.True(t, cfg.Discovery.REST)
			assert.Equal(t, map[string]uint32{"speed": 12}, cfg.Discovery.Overrides["plc-1"])

			require.Len(t, cfg.Providers, 1)
			assert.Equal(t, 30*time.Second, cfg.Providers[0].HeartbeatInterval)
			assert.Equal(t, VariableConfig{Key: "speed", Type: "FLOAT64", ID: 12}, cfg.Providers[0].Variables[0])

			require.Len(t, cfg.Consumers, 1)
			assert.Equal(t, 500*time.Millisecond, cfg.Consumers[0].PollingInterval)
		})
	}
}

func TestLoader_Layers(t *testing.T) {
	base := writeConfig(t, "base.json", `{
		"hub": {"host": "hub.local", "client_id": "node"},
		"consumers": [{"provider_id": "a"}, {"provider_id": "b"}]
	}`)
	override := writeConfig(t, "prod.yaml", "hub:\n  host: prod.local\nconsumers:\n  - provider_id: c\n")

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "prod.local", cfg.Hub.Host)
	assert.Equal(t, "node", cfg.Hub.ClientID, "nested fields merge")
	require.Len(t, cfg.Consumers, 1, "lists are replaced")
	assert.Equal(t, "c", cfg.Consumers[0].ProviderID)
}

func TestLoader_SchemaRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown top-level field", content: `{"graph": {}}`},
		{name: "unknown hub field", content: `{"hub": {"hostname": "x"}}`},
		{name: "port out of range", content: `{"hub": {"port": 70000}}`},
		{name: "bad duration", content: `{"discovery": {"ttl": "soon"}}`},
		{name: "provider id with wildcard", content: `{"providers": [{"id": "plc.*"}]}`},
		{name: "consumer without provider", content: `{"consumers": [{"keys": ["a"]}]}`},
		{name: "tls version", content: `{"hub": {"tls": {"min_version": "1.1"}}}`},
		{name: "zero override id", content: `{"discovery": {"overrides": {"p": {"k": 0}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadFile(writeConfig(t, "config.json", tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoader_RejectsOtherFormats(t *testing.T) {
	_, err := NewLoader().LoadFile(writeConfig(t, "config.toml", `hub = {}`))
	assert.ErrorContains(t, err, "only JSON or YAML")
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("DATAHUB_CLIENT_SECRET", "from-env")
	t.Setenv("DATAHUB_HOST", "env.local")
	t.Setenv("DATAHUB_PORT", "4333")

	path := writeConfig(t, "config.json", `{"hub": {"host": "file.local", "client_id": "node"}}`)
	loader := NewLoader()
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Hub.ClientSecret)
	assert.Equal(t, "env.local", cfg.Hub.Host)
	assert.Equal(t, 4333, cfg.Hub.Port)
	assert.Equal(t, "node", cfg.Hub.ClientID)

	t.Setenv("DATAHUB_PORT", "not-a-port")
	_, err = loader.LoadFile(path)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing client id", mutate: func(c *Config) { c.Hub.ClientID = "" }, errMsg: "client_id"},
		{name: "missing secret", mutate: func(c *Config) { c.Hub.ClientSecret = "" }, errMsg: "DATAHUB_CLIENT_SECRET"},
		{name: "empty scope", mutate: func(c *Config) { c.Hub.Scope = "  " }, errMsg: "hub.scope"},
		{name: "tls cert without key", mutate: func(c *Config) { c.Hub.TLS.CertFile = "client.pem" }, errMsg: "hub.tls"},
		{name: "bad port", mutate: func(c *Config) { c.Hub.Port = 0 }, errMsg: "hub.port"},
		{name: "in flight", mutate: func(c *Config) { c.Session.MaxInFlight = 0 }, errMsg: "max_in_flight"},
		{name: "ttl", mutate: func(c *Config) { c.Discovery.TTL = 0 }, errMsg: "discovery.ttl"},
		{
			name: "duplicate provider",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{ID: "p"}, {ID: "p"}}
			},
			errMsg: "duplicate provider id",
		},
		{
			name: "short heartbeat",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{ID: "p", HeartbeatInterval: time.Millisecond}}
			},
			errMsg: "heartbeat_interval",
		},
		{
			name: "unknown variable type",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{ID: "p", Variables: []VariableConfig{{Key: "a", Type: "DECIMAL"}}}}
			},
			errMsg: "unknown type",
		},
		{
			name: "duplicate variable key",
			mutate: func(c *Config) {
				c.Providers = []ProviderConfig{{ID: "p", Variables: []VariableConfig{
					{Key: "a", Type: "INT64"}, {Key: "a", Type: "STRING"},
				}}}
			},
			errMsg: "duplicate key",
		},
		{
			name: "consumer provider id",
			mutate: func(c *Config) {
				c.Consumers = []ConsumerConfig{{ProviderID: "a.b"}}
			},
			errMsg: "consumers[0]",
		},
		{
			name: "manual variables unparsable",
			mutate: func(c *Config) {
				c.Consumers = []ConsumerConfig{{ProviderID: "p", ManualVariables: "speed, temp:x"}}
			},
			errMsg: "manual_variables",
		},
		{
			name:   "metrics without addr",
			mutate: func(c *Config) { c.Metrics = MetricsConfig{Enabled: true} },
			errMsg: "metrics.addr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestParseManualVariables(t *testing.T) {
	got, bad := ParseManualVariables(" speed:12, temp : 13,broken, zero:0, :5, name:abc,")
	assert.Equal(t, map[string]uint32{"speed": 12, "temp": 13}, got)
	assert.Equal(t, []string{"broken", "zero:0", ":5", "name:abc"}, bad)

	got, bad = ParseManualVariables("")
	assert.Empty(t, got)
	assert.Empty(t, bad)
}

func TestConfig_OverridesAndFilterKeys(t *testing.T) {
	cfg := validConfig()
	cfg.Discovery.Overrides = map[string]map[string]uint32{"plc": {"a": 1, "b": 2}}
	cfg.Consumers = []ConsumerConfig{
		{ProviderID: "plc", Keys: []string{"c", " a "}, ManualVariables: "b:20, d:4"},
		{ProviderID: "other", ManualVariables: "x:9"},
	}

	assert.Equal(t, map[string]uint32{"a": 1, "b": 20, "d": 4}, cfg.OverridesFor("plc"))
	assert.Equal(t, map[string]uint32{"x": 9}, cfg.OverridesFor("other"))
	assert.Empty(t, cfg.OverridesFor("unknown"))

	assert.Equal(t, []string{"c", "a", "b", "d"}, cfg.Consumers[0].FilterKeys())
}

func TestConfig_SaveAndRedact(t *testing.T) {
	cfg := validConfig()
	cfg.Providers = []ProviderConfig{{ID: "plc", HeartbeatInterval: time.Minute}}

	for _, name := range []string{"saved.json", "saved.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cfg.SaveToFile(path))

			loaded, err := NewLoader().LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}

	assert.NotContains(t, cfg.String(), `"secret"`)
	assert.Contains(t, cfg.String(), `"client_secret": "***"`)
	assert.Equal(t, "secret", cfg.Hub.ClientSecret, "redaction works on a copy")
}

func TestConfig_Clone(t *testing.T) {
	cfg := validConfig()
	cfg.Consumers = []ConsumerConfig{{ProviderID: "plc", Keys: []string{"a"}}}

	clone := cfg.Clone()
	clone.Consumers[0].Keys[0] = "changed"
	clone.Hub.Host = "other"

	assert.Equal(t, "a", cfg.Consumers[0].Keys[0])
	assert.Equal(t, DefaultHost, cfg.Hub.Host)
	assert.NotNil(t, (*Config)(nil).Clone())
}
