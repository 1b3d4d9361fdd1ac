package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"multimind-hq/relay/pkg/breaker"
	"multimind-hq/relay/pkg/chat"
	"multimind-hq/relay/pkg/cli"
	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/credentials"
	"multimind-hq/relay/pkg/history"
	"multimind-hq/relay/pkg/providerfactory"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/telemetry/health"
	"multimind-hq/relay/pkg/telemetry/logging"
	"multimind-hq/relay/pkg/telemetry/metrics"
	"multimind-hq/relay/pkg/telemetry/tracing"
	"multimind-hq/relay/pkg/transport/natsbridge"
)

// app is the wired relay: every long-lived component built from one
// configuration.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	tracer    *tracing.Tracer
	collector *metrics.Collector

	creds     providers.CredentialStore
	fileStore *credentials.FileStore
	factory   *providerfactory.Factory
	engine    *proxy.Engine

	store  history.Store
	pruner *history.PruneScheduler
	chats  *chat.Service

	checker *health.Checker
	bridge  *natsbridge.Bridge
}

type appOptions struct {
	// terminal receives the engine's operator log
	terminal proxy.Terminal

	// history opens the chat history store when enabled in the config
	history bool
}

func newLogger(cfg *config.LoggingConfig, w io.Writer, level *slog.LevelVar) (*slog.Logger, error) {
	lvl := cfg.Level
	if verbose {
		lvl = "debug"
	}
	return logging.New(logging.Config{
		Level:         lvl,
		Format:        cfg.Format,
		AddSource:     cfg.AddSource,
		RedactSecrets: cfg.RedactSecrets,
		Writer:        w,
		LevelVar:      level,
	})
}

func buildApp(cfg *config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	a.creds, a.fileStore, err = credentialChain(cfg, cfg.Credentials.Watch, logger)
	if err != nil {
		return nil, err
	}

	a.factory = providerfactory.New(a.creds, clientConfig(&cfg.Client), providers.WithObserver(a.collector))
	if a.fileStore != nil {
		a.fileStore.OnChange(a.factory.ClearCache)
	}

	engineOpts := []proxy.Option{
		proxy.WithRecorder(a.collector),
		proxy.WithBreakerConfig(breakerConfig(&cfg.Breaker)),
		proxy.WithLogger(logger.With("component", "proxy")),
	}
	if opts.terminal != nil {
		engineOpts = append(engineOpts, proxy.WithTerminal(opts.terminal))
	}
	a.engine = proxy.New(engineConfig(&cfg.Proxy), a.factory, engineOpts...)

	a.checker = health.New(2*time.Second, nil)
	a.checker.RegisterOptional("engine", func(context.Context) error {
		if !a.engine.IsRunning() {
			return errors.New("proxy server is not running")
		}
		return nil
	})

	if opts.history && cfg.History.Enabled {
		store, err := history.NewSQLiteStore(history.SQLiteConfig{
			Path:        cfg.History.Path,
			BusyTimeout: cfg.History.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open chat history: %w", err)
		}
		a.store = store
		a.checker.Register("history", store.Ping)
		a.pruner = history.NewPruneScheduler(store, history.PruneConfig{
			RetentionDays: cfg.History.RetentionDays,
			Schedule:      cfg.History.PruneSchedule,
		}, nil)
		a.chats = chat.NewService(store, a.engine)
	}

	if cfg.NATS.Enabled {
		a.bridge = natsbridge.New(&cfg.NATS, a.engine, natsbridge.WithLogger(logger))
		a.checker.RegisterOptional("nats", a.bridge.Ping)
	}

	return a, nil
}

// close tears the components down in reverse order of construction.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.bridge != nil {
		errs = append(errs, a.bridge.Stop(ctx))
	}
	if a.engine != nil {
		errs = append(errs, a.engine.Stop(ctx))
	}
	if a.pruner != nil {
		a.pruner.Stop()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.factory != nil {
		errs = append(errs, a.factory.Close())
	}
	if a.fileStore != nil {
		errs = append(errs, a.fileStore.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// credentialChain builds the credential lookup order: environment, then the
// credentials file, then the providers section of the configuration.
func credentialChain(cfg *config.Config, watch bool, logger *slog.Logger) (providers.CredentialStore, *credentials.FileStore, error) {
	var (
		file      providers.CredentialStore
		fileStore *credentials.FileStore
	)
	if cfg.Credentials.File != "" {
		var err error
		fileStore, err = credentials.NewFileStore(cfg.Credentials.File, watch, logger.With("component", "credentials"))
		if err != nil {
			return nil, nil, err
		}
		file = fileStore
	}
	chain := credentials.NewChain(
		credentials.NewEnvStore(cfg.Credentials.EnvPrefix),
		file,
		credentials.NewStaticStore(cfg.Providers),
	)
	return chain, fileStore, nil
}

func engineConfig(c *config.ProxyConfig) proxy.Config {
	return proxy.Config{
		MaxQueueSize:    c.MaxQueueSize,
		RateLimit:       c.RateLimit,
		RateWindow:      c.RateWindow,
		RequestTimeout:  c.RequestTimeout,
		MaxRetries:      c.MaxRetries,
		RetryDelay:      c.RetryDelay,
		DrainInterval:   c.DrainInterval,
		MaxInFlight:     c.MaxInFlight,
		HealthInterval:  c.HealthInterval,
		CleanupInterval: c.CleanupInterval,
		StopTimeout:     c.StopTimeout,
		CapacityWarning: c.CapacityWarning,
	}
}

func breakerConfig(c *config.BreakerConfig) breaker.Config {
	return breaker.Config{
		FailureThreshold: c.FailureThreshold,
		ResetTimeout:     c.ResetTimeout,
		HalfOpenMaxCalls: c.HalfOpenMaxCalls,
		MonitorInterval:  c.MonitorInterval,
		CallTimeout:      c.CallTimeout,
	}
}

func clientConfig(c *config.ClientConfig) providers.ClientConfig {
	return providers.ClientConfig{
		Timeout:             c.Timeout,
		MaxAttempts:         c.MaxAttempts,
		RetryDelay:          c.RetryDelay,
		MaxIdleConns:        c.MaxIdleConns,
		MaxIdleConnsPerHost: c.MaxIdleConnsPerHost,
		IdleConnTimeout:     c.IdleConnTimeout,
	}
}

// loadConfig loads --config with environment overrides and installs it as
// the process-wide configuration.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return config.GetConfig(), nil
}
