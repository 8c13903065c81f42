// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/stratum/internal/rows"
)

// Strategy is the materialization strategy a table is constructed with.
type Strategy uint8

const (
	StrategyView Strategy = iota
	StrategyTable
	StrategyIncremental
	StrategyEphemeral
	StrategySnapshot
)

func (s Strategy) String() string {
	switch s {
	case StrategyView:
		return "view"
	case StrategyTable:
		return "table"
	case StrategyIncremental:
		return "incremental"
	case StrategyEphemeral:
		return "ephemeral"
	case StrategySnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a config-file materialization name to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "view":
		return StrategyView, nil
	case "table":
		return StrategyTable, nil
	case "incremental":
		return StrategyIncremental, nil
	case "ephemeral":
		return StrategyEphemeral, nil
	case "snapshot":
		return StrategySnapshot, nil
	default:
		return StrategyView, fmt.Errorf("unknown materialization %q", s)
	}
}

// History column names appended to every snapshot table.
const (
	ColValidFrom = "valid_from"
	ColValidTo   = "valid_to"
	ColIsDeleted = "is_deleted"
)

// HistoryRecord is one version of a tracked entity: the row attributes plus
// the validity interval. A nil ValidTo marks the currently open version.
// ValidFrom and ValidTo carry the same scalar kind as the source's
// updated-at column (integer epoch or timestamp).
type HistoryRecord struct {
	Attributes rows.Row
	ValidFrom  any
	ValidTo    any
	IsDeleted  bool
}

// Open reports whether the record is the current version of its entity.
func (r HistoryRecord) Open() bool { return r.ValidTo == nil }

// Key is the encoded composite business-key value used to index open
// records. It is an opaque lookup token; the source column values live in
// the record attributes.
type Key string

// keySep separates key parts; the ASCII unit separator cannot appear in
// normal column data.
const keySep = "\x1f"

// KeyOf encodes the business-key value of a row. A nil or absent component
// makes the key unusable and returns the offending column name.
func KeyOf(r rows.Row, keyColumns []string) (Key, string, error) {
	parts := make([]string, len(keyColumns))
	for i, col := range keyColumns {
		v, ok := r[col]
		if !ok || v == nil {
			return "", col, fmt.Errorf("business key column %q has no value", col)
		}
		parts[i] = fmt.Sprintf("%v", v)
	}
	return Key(strings.Join(parts, keySep)), "", nil
}

// Table is the durable sink the engines write to. Implementations must make
// Append and TruncateAndLoad atomic: either every row of the batch is
// persisted or none is.
type Table interface {
	// Name is the table identity used for locking and reporting.
	Name() string

	// Schema is the declared column set, excluding history columns.
	Schema() rows.Schema

	// Strategy is the materialization the table was constructed with.
	Strategy() Strategy

	// ReadMax returns the maximum value of the named column. ok is false
	// when the table is empty or every value is null.
	ReadMax(ctx context.Context, column string) (v any, ok bool, err error)

	// ReadAll returns every row. History columns are included for
	// snapshot tables.
	ReadAll(ctx context.Context) ([]rows.Row, error)

	// Append atomically adds a batch of rows.
	Append(ctx context.Context, batch []rows.Row) error

	// TruncateAndLoad atomically replaces the table contents.
	TruncateAndLoad(ctx context.Context, batch []rows.Row) error

	// AddColumns widens the schema with nullable columns.
	AddColumns(ctx context.Context, cols []rows.Column) error

	// OpenRecords loads the current open version of every tracked entity,
	// keyed by encoded business-key value. Snapshot tables only.
	OpenRecords(ctx context.Context, keyColumns []string) (map[Key]HistoryRecord, error)

	// UpsertOpenRecord inserts a new open version for the entity
	// identified by key. Snapshot tables only.
	UpsertOpenRecord(ctx context.Context, key Key, rec HistoryRecord) error

	// CloseOpenRecord closes the open version whose business-key columns
	// match keyVals, setting valid_to and the deletion flag. Closed
	// records are never touched. Snapshot tables only.
	CloseOpenRecord(ctx context.Context, keyColumns []string, keyVals rows.Row, validTo any, deleted bool) error
}

// Transactional is implemented by tables that can group several mutations
// into one atomic commit. The versioner uses it so a cycle either applies
// all of its interval changes or none.
type Transactional interface {
	// WithinTx runs fn against a transactional view of the table and
	// commits on nil return, rolling back otherwise.
	WithinTx(ctx context.Context, fn func(tx Table) error) error
}

// Apply runs fn transactionally when the table supports it, directly
// otherwise. In-memory tables mutate under their own lock and do not need
// a transaction.
func Apply(ctx context.Context, t Table, fn func(tx Table) error) error {
	if txer, ok := t.(Transactional); ok {
		return txer.WithinTx(ctx, fn)
	}
	return fn(t)
}
