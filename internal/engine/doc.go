// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package engine implements the two core batch operations of the pipeline.
//
// The incremental Loader appends only rows newer than the target's
// watermark, validating source schemas against a configurable policy and
// committing each run as a single atomic batch.
//
// The history Versioner maintains SCD Type 2 validity intervals: it compares
// each snapshot row against the current open version of its business key and
// opens, closes, or skips interval records accordingly, optionally closing
// keys that vanished from the source as hard deletes.
//
// Both operations are synchronous single-pass runs over a lazy row stream,
// serialized per target through the table lock registry, and always return a
// structured result; there is no silent partial success. Row-level problems
// (unusable watermark, missing key) reject the row and continue; table-level
// problems (schema mismatch, unreachable storage, lock contention) abort the
// run with the target unchanged.
package engine
