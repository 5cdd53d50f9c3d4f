package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ReadStdin       bool
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
	ListProviders   bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}
	configPath := envOr("DATAHUB_CONFIG", "datahub.yaml", identity)

	flag.StringVar(&cfg.ConfigPath, "config", configPath, "JSON or YAML config file (env: DATAHUB_CONFIG)")
	flag.StringVar(&cfg.ConfigPath, "c", configPath, "Shorthand for --config")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("DATAHUB_LOG_LEVEL", "info", identity),
		"debug, info, warn or error (env: DATAHUB_LOG_LEVEL)")
	flag.StringVar(&cfg.LogFormat, "log-format", envOr("DATAHUB_LOG_FORMAT", "json", identity),
		"json or text (env: DATAHUB_LOG_FORMAT)")
	flag.BoolVar(&cfg.Debug, "debug", envOr("DATAHUB_DEBUG", false, strconv.ParseBool),
		"Same as --log-level=debug (env: DATAHUB_DEBUG)")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", envOr("DATAHUB_SHUTDOWN_TIMEOUT", 10*time.Second, time.ParseDuration),
		"How long stop may take (env: DATAHUB_SHUTDOWN_TIMEOUT)")
	flag.BoolVar(&cfg.ReadStdin, "stdin", true, "Publish JSON lines read from stdin through the configured providers")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Print the version and exit")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Shorthand for --version")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Print this help and exit")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Shorthand for --help")
	flag.BoolVar(&cfg.Validate, "validate", false, "Check the configuration and exit")
	flag.BoolVar(&cfg.ListProviders, "list-providers", false, "Print the providers the hub knows and exit")

	flag.Usage = printDetailedHelp
	flag.Parse()

	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - typed variables over the hub bus

Usage: %s [options]

Configured providers publish the JSON objects read from stdin, one per line.
A line {"provider": "<id>", "payload": {...}} targets a specific provider;
any other line goes to the first one. Configured consumers print snapshots
and changes to stdout as JSON lines. Logs go to stderr.

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with a config file and the secret from the environment
  export DATAHUB_CLIENT_SECRET=...
  %s --config=/etc/datahub/datahub.yaml

  # Publish one value and keep serving
  echo '{"machine": {"speed": 1.5}}' | %s --config=datahub.yaml

  # Validate configuration only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func identity(s string) (string, error) { return s, nil }

// envOr parses the environment variable key, falling back to def when it is
// unset or does not parse
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}
