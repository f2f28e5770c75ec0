// Package commands implements the libforge subcommands.
package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/libforge/internal/build"
	"git.home.luguber.info/inful/libforge/internal/config"
	"git.home.luguber.info/inful/libforge/internal/eventstore"
	"git.home.luguber.info/inful/libforge/internal/logfields"
	"git.home.luguber.info/inful/libforge/internal/metrics"
)

// LogLevelEnv overrides the log level chosen by --verbose.
const LogLevelEnv = "LIBFORGE_LOG_LEVEL"

// Global carries process-wide state into subcommands.
type Global struct {
	// Ctx is cancelled on SIGINT or SIGTERM.
	Ctx context.Context
}

// CLI definition & global flags.
type CLI struct {
	File    string           `short:"f" name:"file" help:"Project file path" default:"libforge.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Sync, patch, build and package the selected platforms"`
	Plan    PlanCmd    `cmd:"" help:"Show resolved plans and GN args without building"`
	Sync    SyncCmd    `cmd:"" help:"Synchronize and patch the source tree"`
	History HistoryCmd `cmd:"" help:"List recent runs from the run ledger"`
	Init    InitCmd    `cmd:"" help:"Write an example project file"`
	Show    VersionCmd `cmd:"" name:"version" help:"Print the libforge version"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honors LIBFORGE_LOG_LEVEL over the verbose flag.
func parseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadConfig reads the project file. With optional set, a missing file
// yields the defaults.
func loadConfig(path string, optional bool) (*config.Config, error) {
	if optional {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			slog.Debug("No project file, using defaults", logfields.Path(path))
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

// Reporting holds the flags that control run reporting.
type Reporting struct {
	MetricsFile string `name:"metrics-file" help:"Write Prometheus metrics in textfile format to this path" type:"path"`
	StateDB     string `name:"state-db" help:"Run ledger database (overrides state_db)" type:"path"`
}

// reporter owns the metrics registry and ledger of one command.
type reporter struct {
	registry    *prom.Registry
	metricsFile string
	ledger      *eventstore.SQLiteStore
}

func (r Reporting) open(cfg *config.Config) *reporter {
	rep := &reporter{metricsFile: r.MetricsFile}
	if rep.metricsFile == "" {
		rep.metricsFile = cfg.MetricsFile
	}
	if rep.metricsFile != "" {
		rep.registry = prom.NewRegistry()
	}

	path := r.StateDB
	if path == "" {
		path = cfg.StateDB
	}
	if path != "" {
		store, err := eventstore.NewSQLiteStore(path)
		if err != nil {
			slog.Warn("Run ledger unavailable, continuing without it", logfields.Path(path), logfields.Error(err))
		} else {
			rep.ledger = store
		}
	}
	return rep
}

func (r *reporter) options() []build.Option {
	var opts []build.Option
	if r.registry != nil {
		opts = append(opts, build.WithRecorder(metrics.NewPrometheusRecorder(r.registry)))
	}
	if r.ledger != nil {
		opts = append(opts, build.WithLedger(r.ledger))
	}
	return opts
}

// close flushes metrics and closes the ledger. Failures are logged only.
func (r *reporter) close() {
	if r.registry != nil {
		if err := metrics.WriteTextfile(r.registry, r.metricsFile); err != nil {
			slog.Warn("Failed to write metrics file", logfields.Path(r.metricsFile), logfields.Error(err))
		}
	}
	if r.ledger != nil {
		if err := r.ledger.Close(); err != nil {
			slog.Warn("Failed to close run ledger", logfields.Error(err))
		}
	}
}
