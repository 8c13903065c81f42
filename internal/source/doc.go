// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package source provides row streams over the pipeline's inputs: raw CSV
// extract files and already-materialized warehouse tables.
//
// Streams are restartable: every call to Rows opens a fresh pass over the
// input, so a run that aborts mid-read can be retried without upstream
// coordination.
//
// CSV extracts are expected to carry a header row whose column names match
// the declared staging schema. Cells are decoded to the declared column
// kind; a cell that cannot be decoded becomes null (and is counted), so
// the engines' own key and watermark checks decide whether the row
// survives. Strict mode turns decode failures into iteration errors
// instead.
package source
