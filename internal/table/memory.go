// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package table

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/stratum/internal/rows"
)

// MemTable is an in-memory Table. It backs ephemeral and view models, whose
// lifetime is a single run, and doubles as the storage fake in engine tests.
// All operations are guarded by one mutex; batch mutations are therefore
// atomic with respect to readers.
type MemTable struct {
	name     string
	strategy Strategy

	mu     sync.RWMutex
	schema rows.Schema
	data   []rows.Row
}

// NewMemTable creates an empty in-memory table. For snapshot tables the
// history columns are carried by the rows themselves, not the declared
// schema.
func NewMemTable(name string, schema rows.Schema, strategy Strategy) *MemTable {
	return &MemTable{name: name, strategy: strategy, schema: schema}
}

func (m *MemTable) Name() string       { return m.name }
func (m *MemTable) Strategy() Strategy { return m.strategy }

func (m *MemTable) Schema() rows.Schema {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.schema
}

func (m *MemTable) ReadMax(_ context.Context, column string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var maxVal any
	for _, r := range m.data {
		v := r[column]
		if v == nil {
			continue
		}
		if maxVal == nil {
			maxVal = v
			continue
		}
		cmp, err := rows.Compare(v, maxVal)
		if err != nil {
			return nil, false, fmt.Errorf("read max %s.%s: %w", m.name, column, err)
		}
		if cmp > 0 {
			maxVal = v
		}
	}
	return maxVal, maxVal != nil, nil
}

func (m *MemTable) ReadAll(_ context.Context) ([]rows.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]rows.Row, len(m.data))
	for i, r := range m.data {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *MemTable) Append(_ context.Context, batch []rows.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range batch {
		m.data = append(m.data, r.Clone())
	}
	return nil
}

func (m *MemTable) TruncateAndLoad(_ context.Context, batch []rows.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make([]rows.Row, 0, len(batch))
	for _, r := range batch {
		m.data = append(m.data, r.Clone())
	}
	return nil
}

func (m *MemTable) AddColumns(_ context.Context, cols []rows.Column) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.schema = m.schema.WithColumns(cols...)
	return nil
}

func (m *MemTable) OpenRecords(_ context.Context, keyColumns []string) (map[Key]HistoryRecord, error) {
	if m.strategy != StrategySnapshot {
		return nil, fmt.Errorf("%s: %w", m.name, ErrNotSnapshot)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	open := make(map[Key]HistoryRecord)
	for _, r := range m.data {
		if r[ColValidTo] != nil {
			continue
		}
		key, _, err := KeyOf(r, keyColumns)
		if err != nil {
			return nil, fmt.Errorf("open records %s: %w", m.name, err)
		}
		open[key] = historyRecordFromRow(r)
	}
	return open, nil
}

func (m *MemTable) UpsertOpenRecord(_ context.Context, key Key, rec HistoryRecord) error {
	if m.strategy != StrategySnapshot {
		return fmt.Errorf("%s: %w", m.name, ErrNotSnapshot)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r := rec.Attributes.Clone()
	r[ColValidFrom] = rec.ValidFrom
	r[ColValidTo] = rec.ValidTo
	r[ColIsDeleted] = rec.IsDeleted
	m.data = append(m.data, r)
	return nil
}

func (m *MemTable) CloseOpenRecord(_ context.Context, keyColumns []string, keyVals rows.Row, validTo any, deleted bool) error {
	if m.strategy != StrategySnapshot {
		return fmt.Errorf("%s: %w", m.name, ErrNotSnapshot)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.data {
		if r[ColValidTo] != nil {
			continue
		}
		if !keyMatches(r, keyVals, keyColumns) {
			continue
		}
		r[ColValidTo] = validTo
		r[ColIsDeleted] = deleted
		return nil
	}
	return fmt.Errorf("close open record %s: no open record for key", m.name)
}

func keyMatches(r, keyVals rows.Row, keyColumns []string) bool {
	for _, col := range keyColumns {
		if !rows.Equal(r[col], keyVals[col]) {
			return false
		}
	}
	return true
}

func historyRecordFromRow(r rows.Row) HistoryRecord {
	attrs := r.Clone()
	validFrom := attrs[ColValidFrom]
	validTo := attrs[ColValidTo]
	deleted, _ := attrs[ColIsDeleted].(bool)
	delete(attrs, ColValidFrom)
	delete(attrs, ColValidTo)
	delete(attrs, ColIsDeleted)
	return HistoryRecord{
		Attributes: attrs,
		ValidFrom:  validFrom,
		ValidTo:    validTo,
		IsDeleted:  deleted,
	}
}
