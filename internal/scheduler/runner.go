// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/tomtom215/stratum/internal/catalog"
	"github.com/tomtom215/stratum/internal/config"
	"github.com/tomtom215/stratum/internal/engine"
	"github.com/tomtom215/stratum/internal/logging"
	"github.com/tomtom215/stratum/internal/metrics"
	"github.com/tomtom215/stratum/internal/rows"
	"github.com/tomtom215/stratum/internal/source"
	"github.com/tomtom215/stratum/internal/table"
)

// Model run statuses reported in ModelReport.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// RunOptions select what a cycle processes.
type RunOptions struct {
	// Models restricts the cycle to the named models and their upstream
	// closure. Empty means the full catalog.
	Models []string

	// FullRefresh truncates and reloads incremental targets.
	FullRefresh bool
}

// ModelReport is the outcome of one model within a cycle.
type ModelReport struct {
	Model    string        `json:"model"`
	Strategy string        `json:"strategy"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`

	// Exactly one of these is set for incremental and snapshot models.
	Load    *engine.LoadResult    `json:"load,omitempty"`
	Version *engine.VersionResult `json:"version,omitempty"`

	// RowsLoaded is set for reload materializations.
	RowsLoaded int `json:"rowsLoaded,omitempty"`
}

// RunReport is the outcome of one full cycle.
type RunReport struct {
	RunID       string        `json:"runId"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
	FullRefresh bool          `json:"fullRefresh"`
	Status      string        `json:"status"`
	Models      []ModelReport `json:"models"`
}

// TableProvider resolves table specs to concrete tables. *table.Warehouse
// is the production implementation.
type TableProvider interface {
	Table(ctx context.Context, spec table.TableSpec) (table.Table, error)
}

// Runner executes pipeline cycles against a warehouse.
type Runner struct {
	cfg       *config.Config
	warehouse TableProvider
	catalog   *catalog.Catalog
	loader    *engine.Loader
	versioner *engine.Versioner

	mu      sync.Mutex
	history []RunReport
}

// NewRunner wires a runner over the given warehouse and catalog. All
// engines share one lock registry so a model cannot run concurrently with
// itself regardless of entry point.
func NewRunner(cfg *config.Config, wh TableProvider, cat *catalog.Catalog) *Runner {
	locks := table.NewLockRegistry()
	return &Runner{
		cfg:       cfg,
		warehouse: wh,
		catalog:   cat,
		loader:    engine.NewLoader(locks),
		versioner: engine.NewVersioner(locks),
	}
}

// Run executes one cycle: the selected models in dependency order, each
// under the configured per-model timeout. The error reports cycle-level
// failures only; per-model failures live in the report.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	models, err := r.catalog.Select(opts.Models)
	if err != nil {
		return nil, err
	}

	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	report := &RunReport{
		RunID:       runID,
		StartedAt:   time.Now().UTC(),
		FullRefresh: opts.FullRefresh,
		Status:      StatusSuccess,
	}

	logging.Ctx(ctx).Info().
		Int("models", len(models)).
		Bool("full_refresh", opts.FullRefresh).
		Msg("Starting pipeline cycle")

	failed := make(map[string]bool)
	for _, m := range models {
		if blocked := blockedBy(m, failed); blocked != "" {
			report.Models = append(report.Models, ModelReport{
				Model:    m.Name,
				Strategy: m.Strategy.String(),
				Status:   StatusSkipped,
				Error:    fmt.Sprintf("upstream %s failed", blocked),
			})
			failed[m.Name] = true
			continue
		}

		mr := r.runModel(ctx, m, opts, report.StartedAt)
		report.Models = append(report.Models, mr)
		if mr.Status == StatusError {
			failed[m.Name] = true
			report.Status = StatusError
		}
		metrics.RecordModel(m.Name, statusErr(mr))
	}

	report.FinishedAt = time.Now().UTC()
	metrics.RecordCycle(statusErrReport(report))

	logging.Ctx(ctx).Info().
		Str("status", report.Status).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Pipeline cycle finished")

	r.record(report)
	return report, nil
}

// History returns retained cycle reports, newest first.
func (r *Runner) History() []RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RunReport, len(r.history))
	for i, rep := range r.history {
		out[len(r.history)-1-i] = rep
	}
	return out
}

func (r *Runner) record(report *RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, *report)
	if limit := r.cfg.Pipeline.HistoryLimit; len(r.history) > limit {
		r.history = r.history[len(r.history)-limit:]
	}
}

// runModel dispatches one model to its materialization path.
func (r *Runner) runModel(ctx context.Context, m *catalog.Model, opts RunOptions, cycleStart time.Time) ModelReport {
	start := time.Now()
	mr := ModelReport{Model: m.Name, Strategy: m.Strategy.String(), Status: StatusSuccess}

	ctx = logging.ContextWithModel(ctx, m.Name)
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Pipeline.ModelTimeout)
	defer cancel()

	err := r.dispatch(ctx, m, opts, cycleStart, &mr)
	mr.Duration = time.Since(start)
	if err != nil {
		mr.Status = StatusError
		mr.Error = err.Error()
		logging.Ctx(ctx).Error().Err(err).
			Str("strategy", mr.Strategy).
			Dur("duration", mr.Duration).
			Msg("Model failed")
		return mr
	}

	logging.Ctx(ctx).Info().
		Str("strategy", mr.Strategy).
		Dur("duration", mr.Duration).
		Msg("Model materialized")
	return mr
}

// spec builds the warehouse table spec for a model, carrying the pipeline's
// configured insert batch size.
func (r *Runner) spec(m *catalog.Model) table.TableSpec {
	s := m.Spec()
	s.InsertBatchSize = r.cfg.Pipeline.BatchSize
	return s
}

func (r *Runner) dispatch(ctx context.Context, m *catalog.Model, opts RunOptions, cycleStart time.Time, mr *ModelReport) error {
	target, err := r.warehouse.Table(ctx, r.spec(m))
	if err != nil {
		return err
	}

	stream, err := r.inputStream(ctx, m)
	if err != nil {
		return err
	}

	switch m.Strategy {
	case table.StrategyIncremental:
		res, err := r.loader.Load(ctx, stream, target, engine.LoadOptions{
			WatermarkColumn: m.WatermarkColumn,
			SchemaPolicy:    m.SchemaPolicy,
			FullRefresh:     opts.FullRefresh,
		})
		if err != nil {
			return err
		}
		mr.Load = &res
		return nil

	case table.StrategySnapshot:
		res, err := r.versioner.Version(ctx, stream, target, engine.VersionOptions{
			BusinessKey:           m.BusinessKey,
			UpdatedAtColumn:       m.UpdatedAtColumn,
			InvalidateHardDeletes: m.InvalidateHardDeletes,
			RunTime:               cycleStart,
		})
		if err != nil {
			return err
		}
		mr.Version = &res
		return nil

	default:
		// Views, tables and ephemerals rebuild in full each cycle.
		n, err := r.reload(ctx, stream, target)
		if err != nil {
			return err
		}
		mr.RowsLoaded = n
		return nil
	}
}

// inputStream builds the model's source: the raw extract for staging
// models, the declared transform for derived ones.
func (r *Runner) inputStream(ctx context.Context, m *catalog.Model) (rows.Stream, error) {
	if m.SourceFile != "" {
		path := filepath.Join(r.cfg.Source.DataDir, m.SourceFile)
		delim := []rune(r.cfg.Source.Delimiter)
		var d rune
		if len(delim) > 0 {
			d = delim[0]
		}
		return source.NewCSVStream(path, m.Schema, source.CSVOptions{Delimiter: d}), nil
	}
	return m.Transform(ctx, &depResolver{ctx: ctx, runner: r, model: m})
}

// reload replaces the target's contents with the full stream.
func (r *Runner) reload(ctx context.Context, stream rows.Stream, target table.Table) (int, error) {
	it, err := stream.Rows(ctx)
	if err != nil {
		return 0, err
	}
	batch, err := rows.Collect(it)
	if err != nil {
		return 0, err
	}
	if err := target.TruncateAndLoad(ctx, batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// depResolver exposes a model's declared upstream tables, and only those.
type depResolver struct {
	ctx    context.Context
	runner *Runner
	model  *catalog.Model
}

func (d *depResolver) Table(name string) (table.Table, error) {
	declared := false
	for _, dep := range d.model.DependsOn {
		if dep == name {
			declared = true
			break
		}
	}
	if !declared {
		return nil, fmt.Errorf("model %s: %q is not a declared dependency", d.model.Name, name)
	}

	dep, ok := d.runner.catalog.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	return d.runner.warehouse.Table(d.ctx, d.runner.spec(dep))
}

// blockedBy returns the first direct dependency of m that failed or was
// skipped this cycle.
func blockedBy(m *catalog.Model, failed map[string]bool) string {
	for _, dep := range m.DependsOn {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

func statusErr(mr ModelReport) error {
	if mr.Status == StatusError {
		return errors.New(mr.Error)
	}
	return nil
}

func statusErrReport(rep *RunReport) error {
	if rep.Status == StatusError {
		return errors.New("cycle had model failures")
	}
	return nil
}
