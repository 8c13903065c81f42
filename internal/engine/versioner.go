// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/stratum/internal/logging"
	"github.com/tomtom215/stratum/internal/metrics"
	"github.com/tomtom215/stratum/internal/rows"
	"github.com/tomtom215/stratum/internal/table"
)

// VersionOptions parameterize one SCD2 snapshot cycle.
type VersionOptions struct {
	// BusinessKey is the ordered column set identifying a tracked entity.
	BusinessKey []string

	// UpdatedAtColumn orders versions of an entity and stamps validity
	// intervals. It is excluded from change detection.
	UpdatedAtColumn string

	// InvalidateHardDeletes closes open records whose keys are absent
	// from the snapshot, flagging them is_deleted.
	InvalidateHardDeletes bool

	// RunTime stamps hard-delete closures. Zero means time.Now at entry.
	RunTime time.Time
}

// Versioner maintains SCD Type 2 history for tracked entities.
type Versioner struct {
	locks *table.LockRegistry
}

// NewVersioner returns a versioner serializing its cycles through the given
// lock registry.
func NewVersioner(locks *table.LockRegistry) *Versioner {
	return &Versioner{locks: locks}
}

// Version runs one snapshot cycle against the history table. Interval
// mutations are applied in a single atomic commit where the table supports
// transactions; rows with unusable keys or timestamps are rejected
// individually and the cycle continues.
func (v *Versioner) Version(ctx context.Context, source rows.Stream, history table.Table, opts VersionOptions) (VersionResult, error) {
	start := time.Now()
	res := VersionResult{
		Target:     history.Name(),
		Rejections: make(map[string]int),
	}

	if len(opts.BusinessKey) == 0 {
		return res, fmt.Errorf("business key is empty")
	}
	srcSchema := source.Schema()
	for _, col := range opts.BusinessKey {
		if !srcSchema.Has(col) {
			return res, fmt.Errorf("business key column %q not in source schema", col)
		}
	}
	if !srcSchema.Has(opts.UpdatedAtColumn) {
		return res, fmt.Errorf("updated-at column %q not in source schema", opts.UpdatedAtColumn)
	}
	runTime := opts.RunTime
	if runTime.IsZero() {
		runTime = time.Now().UTC()
	}

	release, err := v.locks.Acquire(history.Name())
	if err != nil {
		return res, err
	}
	defer release()

	open, err := history.OpenRecords(ctx, opts.BusinessKey)
	if err != nil {
		return res, err
	}

	// Single-pass fold of the snapshot: the latest updated_at per key wins,
	// superseded intermediates never produce their own interval.
	latest := make(map[table.Key]rows.Row)
	seen := make(map[table.Key]struct{})

	it, err := source.Rows(ctx)
	if err != nil {
		return res, fmt.Errorf("open source for %s: %w", history.Name(), err)
	}
	defer func() { _ = it.Close() }()

	for it.Next() {
		res.RowsRead++
		row := it.Row()

		key, badCol, err := table.KeyOf(row, opts.BusinessKey)
		if err != nil {
			v.reject(&res, RejectMissingKey, &MissingKeyError{Column: badCol})
			continue
		}
		// A computable key protects the entity from hard-delete inference
		// even when the row itself is unusable.
		seen[key] = struct{}{}

		upd := row[opts.UpdatedAtColumn]
		if upd == nil {
			v.reject(&res, RejectMalformedRow, &MalformedRowError{Column: opts.UpdatedAtColumn})
			continue
		}

		prev, ok := latest[key]
		if !ok {
			latest[key] = row
			continue
		}
		cmp, err := rows.Compare(upd, prev[opts.UpdatedAtColumn])
		if err != nil {
			v.reject(&res, RejectMalformedRow, &MalformedRowError{Column: opts.UpdatedAtColumn, Value: upd})
			continue
		}
		if cmp > 0 {
			latest[key] = row
		}
	}
	if err := it.Err(); err != nil {
		return res, fmt.Errorf("read source for %s: %w", history.Name(), err)
	}

	// Deterministic application order keeps logs and tests stable.
	keys := make([]string, 0, len(latest))
	for k := range latest {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	compareCols := trackedColumns(srcSchema, opts.UpdatedAtColumn)

	err = table.Apply(ctx, history, func(tx table.Table) error {
		for _, ks := range keys {
			key := table.Key(ks)
			row := latest[key]
			upd := row[opts.UpdatedAtColumn]

			cur, exists := open[key]
			if exists && unchangedSince(cur, row, compareCols) {
				res.Unchanged++
				continue
			}

			if exists {
				// Replayed extracts can carry versions older than the open
				// record. Validity intervals only move forward; a stamp at or
				// before the open record's valid_from is already history.
				cmp, err := rows.Compare(upd, cur.ValidFrom)
				if err != nil || cmp <= 0 {
					res.Unchanged++
					continue
				}
				if err := tx.CloseOpenRecord(ctx, opts.BusinessKey, cur.Attributes, upd, false); err != nil {
					return err
				}
				res.Closed++
			}
			rec := table.HistoryRecord{
				Attributes: row.Clone(),
				ValidFrom:  upd,
				ValidTo:    nil,
				IsDeleted:  false,
			}
			if err := tx.UpsertOpenRecord(ctx, key, rec); err != nil {
				return err
			}
			res.Inserted++
		}

		if opts.InvalidateHardDeletes {
			stamp := runStamp(srcSchema, opts.UpdatedAtColumn, runTime)
			for key, cur := range open {
				if _, present := seen[key]; present {
					continue
				}
				if err := tx.CloseOpenRecord(ctx, opts.BusinessKey, cur.Attributes, stamp, true); err != nil {
					return err
				}
				res.HardDeleted++
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	metrics.RecordVersion(history.Name(), res.Duration, res.Inserted, res.Closed, res.HardDeleted, res.RowsRejected)
	logging.Ctx(ctx).Info().
		Str("target", history.Name()).
		Int("rows_read", res.RowsRead).
		Int("inserted", res.Inserted).
		Int("closed", res.Closed).
		Int("unchanged", res.Unchanged).
		Int("hard_deleted", res.HardDeleted).
		Int("rows_rejected", res.RowsRejected).
		Dur("duration", res.Duration).
		Msg("History snapshot cycle complete")

	return res, nil
}

func (v *Versioner) reject(res *VersionResult, reason string, err error) {
	res.RowsRejected++
	res.Rejections[reason]++
	metrics.RecordRowRejected(res.Target, reason)
	logging.Debug().Str("target", res.Target).Err(err).Msg("Row rejected")
}

// trackedColumns is the change-detection column set: every source column
// except the updated-at stamp. Business key columns are included but always
// compare equal within one key.
func trackedColumns(s rows.Schema, updatedAt string) []string {
	cols := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == updatedAt {
			continue
		}
		cols = append(cols, c.Name)
	}
	return cols
}

// unchangedSince reports whether the incoming row carries the same tracked
// attribute values as the current open record.
func unchangedSince(cur table.HistoryRecord, row rows.Row, cols []string) bool {
	for _, col := range cols {
		if !rows.Equal(cur.Attributes[col], row[col]) {
			return false
		}
	}
	return true
}

// runStamp converts the run timestamp to the scalar kind of the updated-at
// column, so hard-delete closures share the interval columns' domain.
func runStamp(s rows.Schema, updatedAt string, t time.Time) any {
	col, ok := s.Column(updatedAt)
	if !ok {
		return t
	}
	switch col.Type {
	case rows.KindInteger:
		return t.Unix()
	case rows.KindDecimal:
		return float64(t.Unix())
	case rows.KindString:
		return t.UTC().Format(time.RFC3339)
	default:
		return t
	}
}
