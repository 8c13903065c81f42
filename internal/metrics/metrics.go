// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Warehouse table operation metrics
	TableOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_table_op_duration_seconds",
			Help:    "Duration of warehouse table operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	TableOpErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_table_op_errors_total",
			Help: "Total number of failed warehouse table operations",
		},
		[]string{"operation", "table"},
	)

	// Incremental load metrics
	LoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "load_duration_seconds",
			Help:    "Duration of incremental load runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"target"},
	)

	RowsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "load_rows_appended_total",
			Help: "Total number of rows appended by incremental loads",
		},
		[]string{"target"},
	)

	LoadWatermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "load_watermark",
			Help: "Watermark of each incremental target as of its last load (numeric and timestamp watermarks only)",
		},
		[]string{"target"},
	)

	// Snapshot cycle (SCD2) metrics
	VersionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "version_cycle_duration_seconds",
			Help:    "Duration of SCD2 snapshot cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"target"},
	)

	RecordsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_records_inserted_total",
			Help: "Total number of open history records inserted",
		},
		[]string{"target"},
	)

	RecordsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_records_closed_total",
			Help: "Total number of history records closed by change detection",
		},
		[]string{"target"},
	)

	RecordsHardDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_records_hard_deleted_total",
			Help: "Total number of history records closed by hard-delete inference",
		},
		[]string{"target"},
	)

	// Shared row-level rejection metrics
	RowsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rows_rejected_total",
			Help: "Total number of rows rejected during runs",
		},
		[]string{"target", "reason"}, // reason: "malformed_row", "missing_key"
	)

	// Run serialization metrics
	LockContention = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "run_lock_contention_total",
			Help: "Total number of runs rejected due to an active run on the same target",
		},
		[]string{"target"},
	)

	// Scheduler metrics
	SchedulerCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_cycles_total",
			Help: "Total number of pipeline cycles executed",
		},
		[]string{"result"}, // "success", "error"
	)

	SchedulerLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scheduler_last_success_timestamp",
			Help: "Unix timestamp of the last fully successful pipeline cycle",
		},
	)

	ModelsMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "models_materialized_total",
			Help: "Total number of model materializations by outcome",
		},
		[]string{"model", "result"},
	)
)

// RecordTableOp records a warehouse table operation.
func RecordTableOp(operation, table string, duration time.Duration, err error) {
	TableOpDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		TableOpErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordLoad records the outcome of one incremental load run. Rejected
// rows are counted per-row via RecordRowRejected as they occur.
func RecordLoad(target string, duration time.Duration, appended, rejected int) {
	LoadDuration.WithLabelValues(target).Observe(duration.Seconds())
	RowsAppended.WithLabelValues(target).Add(float64(appended))
}

// SetWatermark publishes the target's current watermark. String watermarks
// have no numeric representation and leave the gauge untouched.
func SetWatermark(target string, v any) {
	switch wm := v.(type) {
	case int64:
		LoadWatermark.WithLabelValues(target).Set(float64(wm))
	case int:
		LoadWatermark.WithLabelValues(target).Set(float64(wm))
	case float64:
		LoadWatermark.WithLabelValues(target).Set(wm)
	case time.Time:
		LoadWatermark.WithLabelValues(target).Set(float64(wm.Unix()))
	}
}

// RecordVersion records the outcome of one SCD2 snapshot cycle.
func RecordVersion(target string, duration time.Duration, inserted, closed, hardDeleted, rejected int) {
	VersionDuration.WithLabelValues(target).Observe(duration.Seconds())
	RecordsInserted.WithLabelValues(target).Add(float64(inserted))
	RecordsClosed.WithLabelValues(target).Add(float64(closed))
	RecordsHardDeleted.WithLabelValues(target).Add(float64(hardDeleted))
}

// RecordRowRejected records a single rejected row.
func RecordRowRejected(target, reason string) {
	RowsRejected.WithLabelValues(target, reason).Inc()
}

// RecordLockContention records a run rejected by the lock registry.
func RecordLockContention(target string) {
	LockContention.WithLabelValues(target).Inc()
}

// RecordCycle records a completed pipeline cycle.
func RecordCycle(err error) {
	if err != nil {
		SchedulerCycles.WithLabelValues("error").Inc()
		return
	}
	SchedulerCycles.WithLabelValues("success").Inc()
	SchedulerLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordModel records one model materialization outcome.
func RecordModel(model string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	ModelsMaterialized.WithLabelValues(model, result).Inc()
}
