// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/stratum/internal/logging"
	"github.com/tomtom215/stratum/internal/metrics"
	"github.com/tomtom215/stratum/internal/rows"
	"github.com/tomtom215/stratum/internal/table"
)

// SchemaPolicy controls how the loader reconciles a source schema against
// the target's declared schema.
type SchemaPolicy uint8

const (
	// SchemaPolicyFail aborts the run on any column set or type mismatch.
	SchemaPolicyFail SchemaPolicy = iota

	// SchemaPolicyIgnore drops undeclared source columns and fills missing
	// target columns with nulls.
	SchemaPolicyIgnore

	// SchemaPolicyAppendNewColumns widens the target with undeclared
	// source columns before appending.
	SchemaPolicyAppendNewColumns
)

func (p SchemaPolicy) String() string {
	switch p {
	case SchemaPolicyFail:
		return "fail"
	case SchemaPolicyIgnore:
		return "ignore"
	case SchemaPolicyAppendNewColumns:
		return "append_new_columns"
	default:
		return "unknown"
	}
}

// ParseSchemaPolicy converts a config-file policy name to a SchemaPolicy.
func ParseSchemaPolicy(s string) (SchemaPolicy, error) {
	switch s {
	case "fail", "":
		return SchemaPolicyFail, nil
	case "ignore":
		return SchemaPolicyIgnore, nil
	case "append_new_columns":
		return SchemaPolicyAppendNewColumns, nil
	default:
		return SchemaPolicyFail, fmt.Errorf("unknown schema policy %q", s)
	}
}

// LoadOptions parameterize one incremental load run.
type LoadOptions struct {
	// WatermarkColumn is the monotonic column bounding incremental
	// extraction.
	WatermarkColumn string

	// SchemaPolicy selects the schema reconciliation behavior.
	SchemaPolicy SchemaPolicy

	// FullRefresh bypasses the watermark filter, truncates the target,
	// and reloads from the full source. Used for recovery after upstream
	// corrections.
	FullRefresh bool
}

// Loader performs watermark-bounded incremental appends into a target table.
type Loader struct {
	locks *table.LockRegistry
}

// NewLoader returns a loader serializing its runs through the given
// lock registry.
func NewLoader(locks *table.LockRegistry) *Loader {
	return &Loader{locks: locks}
}

// Load determines the subset of source rows newer than the target's
// watermark and appends them in a single atomic batch. The returned result
// is valid whenever err is nil; on error the target is unchanged.
func (l *Loader) Load(ctx context.Context, source rows.Stream, target table.Table, opts LoadOptions) (LoadResult, error) {
	start := time.Now()
	res := LoadResult{
		Target:      target.Name(),
		FullRefresh: opts.FullRefresh,
		Rejections:  make(map[string]int),
	}

	srcSchema := source.Schema()
	if !srcSchema.Has(opts.WatermarkColumn) {
		return res, fmt.Errorf("watermark column %q not in source schema", opts.WatermarkColumn)
	}

	release, err := l.locks.Acquire(target.Name())
	if err != nil {
		return res, err
	}
	defer release()

	outSchema, extraCols, err := reconcileSchemas(target, srcSchema, opts.SchemaPolicy)
	if err != nil {
		return res, err
	}

	// Watermark for this run; recomputed at the start of every run rather
	// than carried across runs.
	var currentMax any
	var haveMax bool
	if !opts.FullRefresh {
		currentMax, haveMax, err = target.ReadMax(ctx, opts.WatermarkColumn)
		if err != nil {
			return res, err
		}
		res.OldWatermark = currentMax
	}

	it, err := source.Rows(ctx)
	if err != nil {
		return res, fmt.Errorf("open source for %s: %w", target.Name(), err)
	}
	defer func() { _ = it.Close() }()

	var batch []rows.Row
	var batchMax any
	for it.Next() {
		res.RowsRead++
		row := it.Row()

		wmv := row[opts.WatermarkColumn]
		if !opts.FullRefresh {
			// A full refresh reloads everything and needs no ordering, so
			// the null check applies to incremental runs only.
			if wmv == nil {
				l.reject(&res, &MalformedRowError{Column: opts.WatermarkColumn})
				continue
			}
			if haveMax {
				cmp, err := rows.Compare(wmv, currentMax)
				if err != nil {
					l.reject(&res, &MalformedRowError{Column: opts.WatermarkColumn, Value: wmv})
					continue
				}
				// Strict inequality: rows exactly at the watermark are
				// assumed already persisted.
				if cmp <= 0 {
					continue
				}
			}
		}

		if batchMax == nil {
			batchMax = wmv
		} else if wmv != nil {
			if cmp, err := rows.Compare(wmv, batchMax); err == nil && cmp > 0 {
				batchMax = wmv
			}
		}
		batch = append(batch, row.Project(outSchema))
	}
	if err := it.Err(); err != nil {
		return res, fmt.Errorf("read source for %s: %w", target.Name(), err)
	}

	// Widen the target only once the whole source has been read cleanly,
	// so a source failure leaves the schema untouched too.
	if len(extraCols) > 0 {
		if err := target.AddColumns(ctx, extraCols); err != nil {
			return res, err
		}
	}

	if opts.FullRefresh {
		if err := target.TruncateAndLoad(ctx, batch); err != nil {
			return res, err
		}
	} else if len(batch) > 0 {
		if err := target.Append(ctx, batch); err != nil {
			return res, err
		}
	}

	res.RowsAppended = len(batch)
	res.NewWatermark = currentMax
	if batchMax != nil {
		res.NewWatermark = batchMax
	}
	res.Duration = time.Since(start)

	metrics.RecordLoad(target.Name(), res.Duration, res.RowsAppended, res.RowsRejected)
	if res.NewWatermark != nil {
		metrics.SetWatermark(target.Name(), res.NewWatermark)
	}
	logging.Ctx(ctx).Info().
		Str("target", target.Name()).
		Bool("full_refresh", opts.FullRefresh).
		Int("rows_read", res.RowsRead).
		Int("rows_appended", res.RowsAppended).
		Int("rows_rejected", res.RowsRejected).
		Dur("duration", res.Duration).
		Msg("Incremental load complete")

	return res, nil
}

func (l *Loader) reject(res *LoadResult, err error) {
	res.RowsRejected++
	res.Rejections[RejectMalformedRow]++
	metrics.RecordRowRejected(res.Target, RejectMalformedRow)
	logging.Debug().Str("target", res.Target).Err(err).Msg("Row rejected")
}

// reconcileSchemas validates the source column set against the target
// schema per policy. It returns the schema appended rows are projected to
// and any columns the target must be widened with first.
func reconcileSchemas(target table.Table, src rows.Schema, policy SchemaPolicy) (rows.Schema, []rows.Column, error) {
	tgt := target.Schema()
	missing, extra := tgt.Diff(src)

	// Shared columns must agree on type under every policy; there is no
	// coercion path between scalar kinds.
	var conflict bool
	for _, c := range src.Columns {
		if tc, ok := tgt.Column(c.Name); ok && tc.Type != c.Type {
			conflict = true
			break
		}
	}

	switch {
	case conflict:
		return rows.Schema{}, nil, &SchemaMismatchError{Target: target.Name(), Missing: missing, Extra: extra}
	case policy == SchemaPolicyFail && (len(missing) > 0 || len(extra) > 0):
		return rows.Schema{}, nil, &SchemaMismatchError{Target: target.Name(), Missing: missing, Extra: extra}
	case policy == SchemaPolicyAppendNewColumns && len(extra) > 0:
		cols := make([]rows.Column, 0, len(extra))
		for _, name := range extra {
			c, _ := src.Column(name)
			cols = append(cols, c)
		}
		return tgt.WithColumns(cols...), cols, nil
	default:
		// Ignore, or Fail with matching column sets: rows take the
		// target's declared shape, missing values become nulls.
		return tgt, nil, nil
	}
}
