// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package rows defines the row-level data model shared by every stage of the
// pipeline: typed columns, schemas, rows, and the lazy row stream consumed by
// the incremental loader and the history versioner.
//
// A Row is a column-name to scalar-value mapping. Supported scalar kinds are
// integers, decimals, strings, timestamps, and string arrays; column order is
// carried by the Schema, not the Row itself. Streams are restartable: calling
// Rows again yields a fresh iterator over the same finite sequence, so a run
// can be retried without re-extracting upstream data.
package rows
