package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"multimind-hq/relay/pkg/cli"
	"multimind-hq/relay/pkg/config"
	"multimind-hq/relay/pkg/events"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/server"
	"multimind-hq/relay/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	console       bool
	noStart       bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay",
	Long: `Start the relay with the specified configuration.

The relay serves the HTTP API, answers NATS chat requests when enabled and
keeps chat history when enabled. SIGHUP reloads the configuration file;
the log level takes effect immediately, everything else on restart.

Examples:
  # Start with defaults
  multimind run

  # Start with a config file and the engine log on the console
  multimind run --config /etc/multimind/config.yaml --console

  # Override the listen address
  multimind run --listen 0.0.0.0:8787

  # Validate the configuration without starting
  multimind run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.console, "console", false, "print the engine log as colored lines on stderr")
	runCmd.Flags().BoolVar(&runFlags.noStart, "no-start", false, "leave the proxy engine stopped until POST /v1/proxy/start")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	level := new(slog.LevelVar)
	logger, err := newLogger(&cfg.Telemetry.Logging, cmd.ErrOrStderr(), level)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	opts := appOptions{history: true}
	if runFlags.console {
		opts.terminal = proxy.NewWriterTerminal(cmd.ErrOrStderr())
	}
	a, err := buildApp(cfg, logger, opts)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	bus := a.engine.Bus()
	defer bus.Subscribe(events.EventStarted, func(context.Context, any) { fmt.Fprintln(out, "✓ Proxy engine started") })()
	defer bus.Subscribe(events.EventStopped, func(context.Context, any) { fmt.Fprintln(out, "✓ Proxy engine stopped") })()

	ctx, cancel := cli.SetupSignalHandler()
	defer cancel()

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := a.close(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	config.OnReload(func(old, updated *config.Config) {
		if updated.Telemetry.Logging.Level == old.Telemetry.Logging.Level || runFlags.logLevel != "" {
			return
		}
		if lvl, err := logging.ParseLevel(updated.Telemetry.Logging.Level); err == nil {
			level.Set(lvl)
			slog.Info("log level changed", "level", lvl.String())
		}
	})
	reload, stopReload := cli.NotifyReload()
	defer stopReload()
	go func() {
		for range reload {
			if err := config.Reload(); err != nil {
				slog.Error("configuration reload failed", "error", err)
				continue
			}
			slog.Info("configuration reloaded")
		}
	}()

	fmt.Fprintf(out, "Multimind v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "✓ Configuration loaded from %s\n", cfgFile)
	}

	if cfg.Proxy.AutoStart && !runFlags.noStart {
		if err := a.engine.Start(); err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			slog.Warn("failed to start history retention", "error", err)
		} else if next := a.pruner.NextRun(); next != nil {
			slog.Debug("history retention scheduled", "next_run", next)
		}
		fmt.Fprintf(out, "✓ Chat history at %s\n", cfg.History.Path)
	}

	if a.bridge != nil {
		if err := a.bridge.Start(ctx); err != nil {
			slog.Warn("nats bridge unavailable", "error", err)
		} else {
			fmt.Fprintf(out, "✓ NATS bridge on %s\n", cfg.NATS.Subject)
		}
	}

	deps := server.Deps{
		Engine:      a.engine,
		Clients:     a.factory,
		Credentials: a.creds,
		Chats:       a.chats,
		Health:      a.checker,
		Tracer:      a.tracer,
		Logger:      logger,
		Version:     Version,
		Commit:      GitCommit,
		BuildTime:   BuildDate,
	}
	if cfg.Telemetry.Metrics.Enabled {
		deps.Metrics = a.collector.Handler()
		deps.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	srv := server.New(&cfg.Server, deps)

	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}
