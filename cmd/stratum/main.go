// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package main is the entry point for the Stratum transformation engine.
//
// Stratum loads MovieLens-style event extracts into a DuckDB warehouse and
// materializes a layered dimensional model (staging, dimensions, facts,
// marts) on top of them. Facts load incrementally through column watermarks
// and slowly changing dimensions are tracked as Type 2 history.
//
// # Application Architecture
//
// The engine initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Database: Open DuckDB and apply memory/thread pragmas
//  3. Catalog: Register the built-in model set and validate the dependency graph
//  4. Runner: Wire the incremental loader and history versioner
//  5. Supervisor (daemon mode): Cron scheduler + operational HTTP API under suture
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (DUCKDB_PATH, DATA_DIR, PIPELINE_SCHEDULE, ...)
//   - Config file (config.yaml, or -config PATH)
//   - Built-in defaults
//
// # Modes
//
// By default Stratum runs a single pipeline cycle and exits; the exit code is
// non-zero when any model fails. With -daemon it stays resident, running
// cycles on the configured cron schedule and serving the operational API
// (health, models, runs, Prometheus metrics) on the configured port.
//
//	./stratum                          # one cycle, then exit
//	./stratum -full-refresh            # rebuild incremental targets from scratch
//	./stratum -models fct_ratings      # run one model plus its upstreams
//	./stratum -daemon                  # scheduled cycles + HTTP API
//
// # Signal Handling
//
// In daemon mode SIGINT and SIGTERM trigger graceful shutdown: the scheduler
// finishes or abandons the in-flight cycle, the HTTP server drains in-flight
// requests (10s timeout), and the database is checkpointed and closed.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomtom215/stratum/internal/catalog"
	"github.com/tomtom215/stratum/internal/config"
	"github.com/tomtom215/stratum/internal/logging"
	"github.com/tomtom215/stratum/internal/ops"
	"github.com/tomtom215/stratum/internal/scheduler"
	"github.com/tomtom215/stratum/internal/supervisor"
	"github.com/tomtom215/stratum/internal/table"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "path to config file (default: auto-discover config.yaml)")
		daemon      = flag.Bool("daemon", false, "stay resident: run on the cron schedule and serve the HTTP API")
		fullRefresh = flag.Bool("full-refresh", false, "rebuild incremental targets from scratch this cycle")
		models      = flag.String("models", "", "comma-separated model names to run (upstreams are included automatically)")
	)
	flag.Parse()

	// Load configuration first to get logging settings
	cfg, err := loadConfig(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	opts := scheduler.RunOptions{
		Models:      cfg.Pipeline.Models,
		FullRefresh: cfg.Pipeline.FullRefresh || *fullRefresh,
	}
	if *models != "" {
		opts.Models = splitModels(*models)
	}

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("data_dir", cfg.Source.DataDir).
		Bool("daemon", *daemon).
		Bool("full_refresh", opts.FullRefresh).
		Msg("Configuration loaded")

	wh, err := table.OpenWarehouse(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open warehouse database")
	}
	defer func() {
		if err := wh.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing warehouse database")
		}
	}()
	logging.Info().Msg("Warehouse database opened")

	cat := catalog.Default()
	logging.Info().Int("models", cat.Len()).Msg("Model catalog registered")

	runner := scheduler.NewRunner(cfg, wh, cat)

	if !*daemon {
		return runOnce(runner, opts)
	}
	return runDaemon(cfg, runner, cat, wh, opts)
}

// runOnce executes a single pipeline cycle and maps its outcome to an exit code.
func runOnce(runner *scheduler.Runner, opts scheduler.RunOptions) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := runner.Run(ctx, opts)
	if err != nil {
		logging.Error().Err(err).Msg("Pipeline cycle failed")
		return 1
	}
	if report.Status == scheduler.StatusError {
		for _, mr := range report.Models {
			if mr.Status == scheduler.StatusError {
				logging.Error().Str("model", mr.Model).Str("error", mr.Error).Msg("Model failed")
			}
		}
		return 1
	}
	logging.Info().
		Str("run_id", report.RunID).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Int("models", len(report.Models)).
		Msg("Pipeline cycle completed")
	return 0
}

// runDaemon runs the cron scheduler and operational API under the supervisor
// tree until a shutdown signal arrives.
func runDaemon(cfg *config.Config, runner *scheduler.Runner, cat *catalog.Catalog, wh *table.Warehouse, opts scheduler.RunOptions) int {
	svc, err := scheduler.NewService(runner, cfg.Pipeline.Schedule, opts, true)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create pipeline scheduler")
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(svc)
	logging.Info().Str("schedule", cfg.Pipeline.Schedule).Msg("Pipeline scheduler added to supervisor tree")

	if cfg.Server.Enabled {
		server := ops.NewServer(&cfg.Server, runner, cat, wh)
		tree.AddAPIService(supervisor.NewHTTPService(server.HTTPServer(), 10*time.Second))
		logging.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("HTTP API service added to supervisor tree")
	} else {
		logging.Info().Msg("HTTP API disabled (HTTP_ENABLED=false)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor closes the channel.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, s := range unstopped {
			logging.Warn().Str("service", s.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Stratum stopped gracefully")
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func splitModels(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
