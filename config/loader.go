package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/c360/datahub/errors"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DATAHUB"

//go:embed schema.json
var schemaJSON []byte

var configSchema = gojsonschema.NewBytesLoader(schemaJSON)

// durationKeys are fields whose string values are parsed as durations
var durationKeys = map[string]bool{
	"request_timeout":    true,
	"reconnect_wait":     true,
	"ttl":                true,
	"strategy_timeout":   true,
	"heartbeat_interval": true,
	"polling_interval":   true,
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  EnvPrefix,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables semantic validation after loading
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		if err := validateSchema(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		parseDurations(raw)

		merged, err := l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to merge %s: %w", path, err)
		}
		cfg = merged
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// loadRaw reads a JSON or YAML file, chosen by extension, into a map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "loadRaw", "parse YAML")
		}
	default:
		if err := checkJSONDepth(data); err != nil {
			return nil, fmt.Errorf("invalid JSON structure: %w", err)
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "loadRaw", "parse JSON")
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// validateSchema checks a raw layer against the embedded JSON schema
func validateSchema(raw map[string]any) error {
	result, err := gojsonschema.Validate(configSchema, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errors.WrapInvalid(err, "Loader", "validateSchema", "run schema validation")
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; ")),
		"Loader", "validateSchema", "validate against schema")
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "mergeFromMap", "decode configuration")
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence.
// Lists are replaced, not merged.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if s, ok := child.(string); ok && durationKeys[k] {
				if d, err := parseDurationWithDays(s); err == nil {
					t[k] = d.Nanoseconds()
				}
				continue
			}
			parseDurations(child)
		}
	case []any:
		for _, child := range t {
			parseDurations(child)
		}
	}
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		name   string
		target *string
	}{
		{"HOST", &cfg.Hub.Host},
		{"CLIENT_ID", &cfg.Hub.ClientID},
		{"CLIENT_SECRET", &cfg.Hub.ClientSecret},
		{"CLIENT_NAME", &cfg.Hub.ClientName},
		{"SCOPE", &cfg.Hub.Scope},
		{"TOKEN_URL", &cfg.Hub.TokenURL},
		{"API_URL", &cfg.Hub.APIURL},
	}
	for _, s := range strs {
		key := l.envPrefix + "_" + s.name
		val := os.Getenv(key)
		if err := checkEnvValue(key, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "read "+key)
		}
		if val != "" {
			*s.target = val
		}
	}

	key := l.envPrefix + "_PORT"
	if val := os.Getenv(key); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s=%q", errors.ErrInvalidConfig, key, val),
				"Loader", "applyEnvOverrides", "parse port")
		}
		cfg.Hub.Port = port
	}
	return nil
}

// SaveToFile saves the configuration, secrets included, as JSON or YAML by extension
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// round-trip through JSON so the YAML keys match the json tags
		var m map[string]any
		if data, err = json.Marshal(c); err == nil {
			if err = json.Unmarshal(data, &m); err == nil {
				data, err = yaml.Marshal(m)
			}
		}
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return writeConfigFile(path, data)
}
