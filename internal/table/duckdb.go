// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package table

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stratum/internal/logging"
	"github.com/tomtom215/stratum/internal/metrics"
	"github.com/tomtom215/stratum/internal/rows"
)

// TableSpec declares a persisted table: its identity, column set, and
// materialization. UpdatedAtColumn is required for snapshot tables and
// determines the scalar kind of the valid_from/valid_to columns.
// InsertBatchSize caps the rows per INSERT statement; zero means one row
// per statement.
type TableSpec struct {
	Name            string
	Schema          rows.Schema
	Strategy        Strategy
	UpdatedAtColumn string
	InsertBatchSize int
}

// querier is the subset of *sql.DB and *sql.Tx the table methods need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DuckTable is a Table persisted in the warehouse's DuckDB database.
// String-array columns are stored as JSON-encoded VARCHAR; every other kind
// maps to a native DuckDB type.
type DuckTable struct {
	name      string
	schema    rows.Schema
	strategy  Strategy
	histKind  rows.Kind
	batchSize int

	db *sql.DB
	q  querier
}

// Table returns a DuckDB-backed table for the given spec, creating the
// physical table on first use. Ephemeral and view strategies are served
// from memory instead; their lifetime is the current process.
func (w *Warehouse) Table(ctx context.Context, spec TableSpec) (Table, error) {
	if spec.Strategy == StrategyEphemeral || spec.Strategy == StrategyView {
		w.memMu.Lock()
		defer w.memMu.Unlock()
		if t, ok := w.mem[spec.Name]; ok {
			return t, nil
		}
		t := NewMemTable(spec.Name, spec.Schema, spec.Strategy)
		w.mem[spec.Name] = t
		return t, nil
	}

	batchSize := spec.InsertBatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	t := &DuckTable{
		name:      spec.Name,
		schema:    spec.Schema,
		strategy:  spec.Strategy,
		histKind:  rows.KindTimestamp,
		batchSize: batchSize,
		db:        w.conn,
		q:         w.conn,
	}
	if spec.Strategy == StrategySnapshot {
		if col, ok := spec.Schema.Column(spec.UpdatedAtColumn); ok {
			t.histKind = col.Type
		}
	}

	if err := t.ensureExists(ctx); err != nil {
		return nil, unavailable(spec.Name, err)
	}
	return t, nil
}

func (t *DuckTable) Name() string        { return t.name }
func (t *DuckTable) Schema() rows.Schema { return t.schema }
func (t *DuckTable) Strategy() Strategy  { return t.strategy }

// ensureExists creates the physical table if missing.
func (t *DuckTable) ensureExists(ctx context.Context) error {
	defs := make([]string, 0, len(t.schema.Columns)+3)
	for _, c := range t.schema.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", quoteIdent(c.Name), duckType(c.Type)))
	}
	if t.strategy == StrategySnapshot {
		hist := duckType(t.histKind)
		defs = append(defs,
			fmt.Sprintf("%s %s", ColValidFrom, hist),
			fmt.Sprintf("%s %s", ColValidTo, hist),
			fmt.Sprintf("%s BOOLEAN DEFAULT FALSE", ColIsDeleted),
		)
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(t.name), strings.Join(defs, ", "))
	if _, err := t.q.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", t.name, err)
	}
	return nil
}

func (t *DuckTable) ReadMax(ctx context.Context, column string) (any, bool, error) {
	start := time.Now()
	query := fmt.Sprintf("SELECT max(%s) FROM %s", quoteIdent(column), quoteIdent(t.name))

	var raw any
	err := t.q.QueryRowContext(ctx, query).Scan(&raw)
	metrics.RecordTableOp("read_max", t.name, time.Since(start), err)
	if err != nil {
		return nil, false, unavailable(t.name, fmt.Errorf("read max %s.%s: %w", t.name, column, err))
	}
	if raw == nil {
		return nil, false, nil
	}

	col, ok := t.schema.Column(column)
	if !ok {
		return nil, false, fmt.Errorf("read max %s: unknown column %q", t.name, column)
	}
	v, err := decodeValue(col.Type, raw)
	if err != nil {
		return nil, false, fmt.Errorf("read max %s.%s: %w", t.name, column, err)
	}
	return v, true, nil
}

func (t *DuckTable) ReadAll(ctx context.Context) ([]rows.Row, error) {
	start := time.Now()
	cols := t.allColumns()

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), quoteIdent(t.name))

	rs, err := t.q.QueryContext(ctx, query)
	metrics.RecordTableOp("read_all", t.name, time.Since(start), err)
	if err != nil {
		return nil, unavailable(t.name, fmt.Errorf("read all %s: %w", t.name, err))
	}
	defer closeWithLog(rs, "result set")

	var out []rows.Row
	for rs.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}

		r := make(rows.Row, len(cols))
		for i, c := range cols {
			v, err := decodeValue(c.Type, raw[i])
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", t.name, c.Name, err)
			}
			r[c.Name] = v
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, unavailable(t.name, fmt.Errorf("read all %s: %w", t.name, err))
	}
	return out, nil
}

func (t *DuckTable) Append(ctx context.Context, batch []rows.Row) error {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	err := t.withTx(ctx, func(tx *DuckTable) error {
		return tx.insertRows(ctx, t.allColumns(), batch)
	})
	metrics.RecordTableOp("append", t.name, time.Since(start), err)
	if err != nil {
		return unavailable(t.name, fmt.Errorf("append %s: %w", t.name, err))
	}
	return nil
}

func (t *DuckTable) TruncateAndLoad(ctx context.Context, batch []rows.Row) error {
	start := time.Now()
	err := t.withTx(ctx, func(tx *DuckTable) error {
		if _, err := tx.q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", quoteIdent(t.name))); err != nil {
			return fmt.Errorf("truncate: %w", err)
		}
		return tx.insertRows(ctx, t.allColumns(), batch)
	})
	metrics.RecordTableOp("truncate_and_load", t.name, time.Since(start), err)
	if err != nil {
		return unavailable(t.name, fmt.Errorf("truncate and load %s: %w", t.name, err))
	}
	return nil
}

func (t *DuckTable) AddColumns(ctx context.Context, cols []rows.Column) error {
	for _, c := range cols {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
			quoteIdent(t.name), quoteIdent(c.Name), duckType(c.Type))
		if _, err := t.q.ExecContext(ctx, stmt); err != nil {
			return unavailable(t.name, fmt.Errorf("add column %s.%s: %w", t.name, c.Name, err))
		}
	}
	t.schema = t.schema.WithColumns(cols...)
	return nil
}

func (t *DuckTable) OpenRecords(ctx context.Context, keyColumns []string) (map[Key]HistoryRecord, error) {
	if t.strategy != StrategySnapshot {
		return nil, fmt.Errorf("%s: %w", t.name, ErrNotSnapshot)
	}

	all, err := t.readWhereOpen(ctx)
	if err != nil {
		return nil, err
	}

	open := make(map[Key]HistoryRecord, len(all))
	for _, r := range all {
		key, _, err := KeyOf(r, keyColumns)
		if err != nil {
			return nil, fmt.Errorf("open records %s: %w", t.name, err)
		}
		open[key] = historyRecordFromRow(r)
	}
	return open, nil
}

func (t *DuckTable) UpsertOpenRecord(ctx context.Context, key Key, rec HistoryRecord) error {
	if t.strategy != StrategySnapshot {
		return fmt.Errorf("%s: %w", t.name, ErrNotSnapshot)
	}

	r := rec.Attributes.Clone()
	r[ColValidFrom] = rec.ValidFrom
	r[ColValidTo] = rec.ValidTo
	r[ColIsDeleted] = rec.IsDeleted

	start := time.Now()
	err := t.insertRows(ctx, t.allColumns(), []rows.Row{r})
	metrics.RecordTableOp("upsert_open_record", t.name, time.Since(start), err)
	if err != nil {
		return unavailable(t.name, fmt.Errorf("upsert open record %s: %w", t.name, err))
	}
	return nil
}

func (t *DuckTable) CloseOpenRecord(ctx context.Context, keyColumns []string, keyVals rows.Row, validTo any, deleted bool) error {
	if t.strategy != StrategySnapshot {
		return fmt.Errorf("%s: %w", t.name, ErrNotSnapshot)
	}

	conds := make([]string, 0, len(keyColumns)+1)
	args := make([]any, 0, len(keyColumns)+2)

	validToEnc, err := encodeValue(t.histKind, validTo)
	if err != nil {
		return fmt.Errorf("close open record %s: %w", t.name, err)
	}
	args = append(args, validToEnc, deleted)

	for _, col := range keyColumns {
		kind := rows.KindString
		if c, ok := t.schema.Column(col); ok {
			kind = c.Type
		}
		v, err := encodeValue(kind, keyVals[col])
		if err != nil {
			return fmt.Errorf("close open record %s: key column %s: %w", t.name, col, err)
		}
		conds = append(conds, fmt.Sprintf("%s = ?", quoteIdent(col)))
		args = append(args, v)
	}
	conds = append(conds, fmt.Sprintf("%s IS NULL", ColValidTo))

	stmt := fmt.Sprintf("UPDATE %s SET %s = ?, %s = ? WHERE %s",
		quoteIdent(t.name), ColValidTo, ColIsDeleted, strings.Join(conds, " AND "))

	start := time.Now()
	res, err := t.q.ExecContext(ctx, stmt, args...)
	metrics.RecordTableOp("close_open_record", t.name, time.Since(start), err)
	if err != nil {
		return unavailable(t.name, fmt.Errorf("close open record %s: %w", t.name, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("close open record %s: no open record for key", t.name)
	}
	return nil
}

// WithinTx groups mutations into one atomic commit.
func (t *DuckTable) WithinTx(ctx context.Context, fn func(tx Table) error) error {
	return t.withTx(ctx, func(txt *DuckTable) error { return fn(txt) })
}

// withTx runs fn against a transactional copy of the table. When t itself
// is already transactional (nested call), fn runs in the same transaction.
func (t *DuckTable) withTx(ctx context.Context, fn func(tx *DuckTable) error) error {
	if _, nested := t.q.(*sql.Tx); nested {
		return fn(t)
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txt := *t
	txt.q = tx
	if err := fn(&txt); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logging.Error().Err(rbErr).AnErr("original_error", err).Msg("Transaction rollback failed")
		}
		return err
	}
	// Propagate widened schema out of the transactional copy.
	t.schema = txt.schema
	return tx.Commit()
}

// insertRows inserts a batch as multi-row INSERT statements of up to
// batchSize rows each.
func (t *DuckTable) insertRows(ctx context.Context, cols []rows.Column, batch []rows.Row) error {
	if len(batch) == 0 {
		return nil
	}

	names := make([]string, len(cols))
	holders := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
		holders[i] = "?"
	}
	rowHolder := "(" + strings.Join(holders, ", ") + ")"

	size := t.batchSize
	if size < 1 {
		size = 1
	}
	for start := 0; start < len(batch); start += size {
		end := start + size
		if end > len(batch) {
			end = len(batch)
		}
		chunk := batch[start:end]

		groups := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(cols))
		for i, r := range chunk {
			groups[i] = rowHolder
			for _, c := range cols {
				v, err := encodeValue(c.Type, r[c.Name])
				if err != nil {
					return fmt.Errorf("column %s: %w", c.Name, err)
				}
				args = append(args, v)
			}
		}

		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			quoteIdent(t.name), strings.Join(names, ", "), strings.Join(groups, ", "))
		if _, err := t.q.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
	}
	return nil
}

// readWhereOpen returns every row whose valid_to is null.
func (t *DuckTable) readWhereOpen(ctx context.Context) ([]rows.Row, error) {
	cols := t.allColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = quoteIdent(c.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NULL",
		strings.Join(names, ", "), quoteIdent(t.name), ColValidTo)

	start := time.Now()
	rs, err := t.q.QueryContext(ctx, query)
	metrics.RecordTableOp("open_records", t.name, time.Since(start), err)
	if err != nil {
		return nil, unavailable(t.name, fmt.Errorf("open records %s: %w", t.name, err))
	}
	defer closeWithLog(rs, "result set")

	var out []rows.Row
	for rs.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.name, err)
		}
		r := make(rows.Row, len(cols))
		for i, c := range cols {
			v, err := decodeValue(c.Type, raw[i])
			if err != nil {
				return nil, fmt.Errorf("decode %s.%s: %w", t.name, c.Name, err)
			}
			r[c.Name] = v
		}
		out = append(out, r)
	}
	if err := rs.Err(); err != nil {
		return nil, unavailable(t.name, fmt.Errorf("open records %s: %w", t.name, err))
	}
	return out, nil
}

// allColumns returns the physical column set, including history columns for
// snapshot tables.
func (t *DuckTable) allColumns() []rows.Column {
	cols := make([]rows.Column, len(t.schema.Columns), len(t.schema.Columns)+3)
	copy(cols, t.schema.Columns)
	if t.strategy == StrategySnapshot {
		cols = append(cols,
			rows.Column{Name: ColValidFrom, Type: t.histKind},
			rows.Column{Name: ColValidTo, Type: t.histKind},
			rows.Column{Name: ColIsDeleted, Type: kindBool},
		)
	}
	return cols
}

// kindBool is internal to the DuckDB mapping; engine rows never carry
// booleans outside the is_deleted history column.
const kindBool = rows.Kind(250)

// duckType maps a scalar kind to a DuckDB column type.
func duckType(k rows.Kind) string {
	switch k {
	case rows.KindInteger:
		return "BIGINT"
	case rows.KindDecimal:
		return "DOUBLE"
	case rows.KindTimestamp:
		return "TIMESTAMP"
	case kindBool:
		return "BOOLEAN"
	default:
		// Strings, and string arrays as JSON-encoded text.
		return "VARCHAR"
	}
}

// encodeValue converts an engine scalar to its driver representation.
func encodeValue(kind rows.Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if kind == rows.KindStringArray {
		ss, ok := v.([]string)
		if !ok {
			return nil, fmt.Errorf("value %v (%T) is not a string array", v, v)
		}
		data, err := json.Marshal(ss)
		if err != nil {
			return nil, fmt.Errorf("encode string array: %w", err)
		}
		return string(data), nil
	}
	return v, nil
}

// decodeValue converts a driver value back to the engine scalar for kind.
func decodeValue(kind rows.Kind, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch kind {
	case rows.KindInteger:
		switch n := raw.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case int:
			return int64(n), nil
		}
	case rows.KindDecimal:
		switch n := raw.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case rows.KindString:
		switch s := raw.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case rows.KindTimestamp:
		if ts, ok := raw.(time.Time); ok {
			return ts, nil
		}
	case rows.KindStringArray:
		var data []byte
		switch s := raw.(type) {
		case string:
			data = []byte(s)
		case []byte:
			data = s
		}
		if data != nil {
			var ss []string
			if err := json.Unmarshal(data, &ss); err != nil {
				return nil, fmt.Errorf("decode string array: %w", err)
			}
			return ss, nil
		}
	case kindBool:
		if b, ok := raw.(bool); ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("value %v (%T) is not a valid %v", raw, raw, kind)
}

// quoteIdent quotes an identifier for DuckDB. Identifiers come from model
// configuration, not user input; quoting guards against reserved words.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
