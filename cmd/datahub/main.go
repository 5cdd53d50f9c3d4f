// Package main implements the datahub command. It serves the configured
// providers and prints the variables of the configured consumers, sharing
// one authenticated bus connection.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/c360/datahub/config"
	"github.com/c360/datahub/discovery"
	"github.com/c360/datahub/metric"
	"github.com/c360/datahub/natsclient"
	"github.com/c360/datahub/pkg/tlsutil"
	"github.com/c360/datahub/token"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "datahub"
)

// httpTimeout bounds token and REST calls
const httpTimeout = 10 * time.Second

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config", cfg.Redacted())
		return nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tokens, deps, err := buildDeps(cfg, logger)
	if err != nil {
		return err
	}
	defer tokens.Close()

	a, err := newApp(ctx, cfg, logger, os.Stdout, deps)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}

	if cliCfg.ListProviders {
		defer func() { _ = a.defs.Close() }()
		return a.listProviders(ctx)
	}

	return runWithSignalHandling(ctx, a, cliCfg)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(os.Stderr, cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting datahub",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfig loads and validates configuration from the specified file path
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildDeps creates the credentials and transports that reach the real hub
func buildDeps(cfg *config.Config, logger *slog.Logger) (*token.Manager, appDeps, error) {
	tlsCfg, err := tlsutil.LoadClientTLSConfig(cfg.Hub.ClientTLS())
	if err != nil {
		return nil, appDeps{}, err
	}
	httpClient := tlsutil.HTTPClient(tlsCfg, httpTimeout)

	tokenURL := cfg.Hub.TokenURL
	if tokenURL == "" {
		tokenURL = token.TokenURL(cfg.Hub.Host)
	}
	fetcher, err := token.NewOAuthFetcher(token.OAuthConfig{
		TokenURL:     tokenURL,
		ClientID:     cfg.Hub.ClientID,
		ClientSecret: cfg.Hub.ClientSecret,
		Scopes:       cfg.Hub.Scopes(),
		HTTPClient:   httpClient,
	})
	if err != nil {
		return nil, appDeps{}, err
	}
	registry := metric.NewMetricsRegistry()
	tokens := token.NewManager(fetcher,
		token.WithLogger(logger),
		token.WithMetrics(registry.CoreMetrics()),
	)

	dialOpts := []natsclient.ClientOption{
		natsclient.WithMaxReconnects(cfg.Session.MaxReconnects),
		natsclient.WithReconnectWait(cfg.Session.ReconnectWait),
		natsclient.WithLogger(natsclient.NewSlogLogger(logger)),
		natsclient.WithMetrics(registry.CoreMetrics()),
	}
	if cfg.Hub.TLS.Enabled {
		dialOpts = append(dialOpts, natsclient.WithTLS(tlsCfg))
	}

	deps := appDeps{
		dial:     natsclient.Dial(cfg.Hub.NATSURL(), dialOpts...),
		creds:    tokens,
		name:     fmt.Sprintf("%s-%s", cfg.Hub.ClientName, uuid.NewString()),
		registry: registry,
	}
	if cfg.Discovery.REST {
		deps.rest = discovery.NewRESTClient(cfg.Hub.RESTURL(), tokens, httpClient)
	}
	return tokens, deps, nil
}

// runWithSignalHandling starts the app, feeds stdin to the providers and
// waits for a shutdown signal
func runWithSignalHandling(ctx context.Context, a *app, cliCfg *CLIConfig) error {
	startErr := a.start(ctx)
	if startErr == nil {
		slog.Info("datahub started",
			"providers", len(a.providers),
			"consumers", len(a.consumers))

		if cliCfg.ReadStdin && len(a.providers) > 0 {
			go func() {
				if err := a.ingest(ctx, os.Stdin); err != nil && ctx.Err() == nil {
					slog.Error("Input stopped", "error", err)
				}
			}()
		}

		<-ctx.Done()
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
	defer shutdownCancel()

	stopErr := a.stop(shutdownCtx)
	if startErr != nil {
		return fmt.Errorf("start: %w", startErr)
	}
	if stopErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", stopErr)
	}
	slog.Info("datahub shutdown complete")
	return nil
}
