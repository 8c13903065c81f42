// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package engine

import "time"

// Rejection reasons reported in run results.
const (
	RejectMalformedRow = "malformed_row"
	RejectMissingKey   = "missing_key"
)

// LoadResult reports the outcome of one incremental load run.
type LoadResult struct {
	Target       string         `json:"target"`
	FullRefresh  bool           `json:"fullRefresh"`
	RowsRead     int            `json:"rowsRead"`
	RowsAppended int            `json:"rowsAppended"`
	RowsRejected int            `json:"rowsRejected"`
	Rejections   map[string]int `json:"rejections,omitempty"`
	OldWatermark any            `json:"oldWatermark,omitempty"`
	NewWatermark any            `json:"newWatermark,omitempty"`
	Duration     time.Duration  `json:"duration"`
}

// VersionResult reports the outcome of one SCD2 snapshot cycle.
type VersionResult struct {
	Target       string         `json:"target"`
	RowsRead     int            `json:"rowsRead"`
	Inserted     int            `json:"inserted"`
	Closed       int            `json:"closed"`
	Unchanged    int            `json:"unchanged"`
	HardDeleted  int            `json:"hardDeleted"`
	RowsRejected int            `json:"rowsRejected"`
	Rejections   map[string]int `json:"rejections,omitempty"`
	Duration     time.Duration  `json:"duration"`
}
