// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package table provides the durable table collaborator the engines write to.
//
// Two implementations share one interface: a DuckDB-backed table for
// persisted warehouse models and an in-memory table for ephemeral models and
// tests. Snapshot tables additionally maintain SCD Type 2 history columns
// (valid_from, valid_to, is_deleted) and expose the open-record operations
// used by the history versioner.
//
// The package also owns the run-lock registry that serializes concurrent runs
// against the same target, preserving the at-most-one-open-record-per-key
// invariant.
package table
