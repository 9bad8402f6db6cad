package cliapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreapp "weave/internal/core/app"
	"weave/internal/core/config"
	"weave/internal/data/history"
	"weave/internal/shared/observability"
	"weave/internal/shared/version"
)

// Run executes the weave command line and returns the process exit code.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, stderr)
	if err != nil {
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "weave v%s\n", version.Version)
		return 0
	}

	configureLogging(stderr, opts.verbose)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	if err := applyModeOptions(&opts, cfg); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  cfg.Observability.ServiceName,
		OTLPEndpoint: cfg.Observability.OTLPEndpoint,
		SampleRate:   cfg.Observability.SampleRate,
	})
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		return 1
	}
	defer shutdown("tracing", tp.Shutdown)

	app, err := coreapp.New(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("failed to close app", "error", err)
		}
	}()

	if opts.history > 0 {
		return printHistory(stdout, app, opts.history)
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		server := observability.NewServer(addr, app.Health)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			return 1
		}
		defer shutdown("observability server", server.Stop)
	}

	result, err := app.Build(ctx)
	if err != nil {
		slog.Error("initial build failed", "error", err)
		return 1
	}
	fmt.Fprintln(stdout, renderSummary(result))

	if opts.once {
		if hasErrors(result) {
			return 1
		}
		return 0
	}

	app.SetUpdateHandler(func(r *coreapp.Result) {
		fmt.Fprintln(stdout, renderSummary(r))
	})
	if err := app.StartWatcher(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return 1
	}
	slog.Info("watching for changes", "root", cfg.Root)

	<-ctx.Done()
	return 0
}

func printHistory(out io.Writer, app *coreapp.App, limit int) int {
	cycles, err := app.History(limit)
	if err != nil {
		slog.Error("failed to load history", "error", err)
		return 1
	}
	if len(cycles) == 0 {
		fmt.Fprintln(out, statusStyle.Render("No build cycles recorded."))
		return 0
	}
	report, err := history.BuildTrendReport(cycles)
	if err != nil {
		slog.Error("failed to build trend report", "error", err)
		return 1
	}
	fmt.Fprintln(out, renderTrend(report))
	return 0
}

// loadConfig falls back to defaults only when the default config file does
// not exist. An explicit path must load.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path != defaultConfigPath || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	slog.Debug("no config file, using defaults", "path", path)
	return config.Default(), nil
}

func applyModeOptions(opts *cliOptions, cfg *config.Config) error {
	if opts.history < 0 {
		return fmt.Errorf("--history must be positive")
	}
	if len(opts.args) > 0 {
		cfg.Entries = append([]string(nil), opts.args...)
	}
	if opts.history == 0 && len(cfg.Entries) == 0 {
		return fmt.Errorf("no entry files: pass them as arguments or set entries in the config")
	}
	return nil
}

func configureLogging(output io.Writer, verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
}

func shutdown(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		slog.Warn("shutdown failed", "component", name, "error", err)
	}
}
