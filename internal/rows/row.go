// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package rows

import (
	"fmt"
	"time"
)

// Kind identifies the scalar type of a column.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInteger
	KindDecimal
	KindString
	KindTimestamp
	KindStringArray
)

// String returns the lowercase name used in config files and log output.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindTimestamp:
		return "timestamp"
	case KindStringArray:
		return "string_array"
	default:
		return "invalid"
	}
}

// ParseKind converts a config-file type name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "integer":
		return KindInteger, nil
	case "decimal":
		return KindDecimal, nil
	case "string":
		return KindString, nil
	case "timestamp":
		return KindTimestamp, nil
	case "string_array":
		return KindStringArray, nil
	default:
		return KindInvalid, fmt.Errorf("unknown column type %q", s)
	}
}

// Column describes a single column in a schema.
type Column struct {
	Name string
	Type Kind
}

// Schema is the ordered column list shared by all rows of one source or table.
type Schema struct {
	Columns []Column
}

// NewSchema builds a schema from columns in declaration order.
func NewSchema(cols ...Column) Schema {
	return Schema{Columns: cols}
}

// Names returns column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of the named column, or -1 if absent.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column definition.
func (s Schema) Column(name string) (Column, bool) {
	i := s.Index(name)
	if i < 0 {
		return Column{}, false
	}
	return s.Columns[i], true
}

// Has reports whether the named column exists.
func (s Schema) Has(name string) bool {
	return s.Index(name) >= 0
}

// Equal reports whether two schemas have the same columns, types, and order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if c != other.Columns[i] {
			return false
		}
	}
	return true
}

// Diff compares column sets by name. missing lists columns present in s but
// absent from other; extra lists columns present in other but absent from s.
func (s Schema) Diff(other Schema) (missing, extra []string) {
	for _, c := range s.Columns {
		if !other.Has(c.Name) {
			missing = append(missing, c.Name)
		}
	}
	for _, c := range other.Columns {
		if !s.Has(c.Name) {
			extra = append(extra, c.Name)
		}
	}
	return missing, extra
}

// WithColumns returns a copy of s with cols appended. Existing names are
// left untouched.
func (s Schema) WithColumns(cols ...Column) Schema {
	out := Schema{Columns: make([]Column, len(s.Columns), len(s.Columns)+len(cols))}
	copy(out.Columns, s.Columns)
	for _, c := range cols {
		if !out.Has(c.Name) {
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// Row is a single record: column name to typed scalar value.
// Valid value types are int64, float64, string, time.Time, []string, and nil.
type Row map[string]any

// Clone returns a shallow copy of the row. String slices are copied so that
// later mutation of one row cannot leak into another.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		if ss, ok := v.([]string); ok {
			cp := make([]string, len(ss))
			copy(cp, ss)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

// Project returns a copy of the row restricted to the schema's columns.
// Columns absent from the row are filled with nil.
func (r Row) Project(s Schema) Row {
	out := make(Row, len(s.Columns))
	for _, c := range s.Columns {
		out[c.Name] = r[c.Name]
	}
	return out
}

// ValidateKind checks that v is an acceptable Go representation of kind.
// Nil is valid for every kind.
func ValidateKind(v any, kind Kind) error {
	if v == nil {
		return nil
	}
	switch kind {
	case KindInteger:
		if _, ok := normalizeInt(v); ok {
			return nil
		}
	case KindDecimal:
		if _, ok := normalizeFloat(v); ok {
			return nil
		}
	case KindString:
		if _, ok := v.(string); ok {
			return nil
		}
	case KindTimestamp:
		if _, ok := v.(time.Time); ok {
			return nil
		}
	case KindStringArray:
		if _, ok := v.([]string); ok {
			return nil
		}
	}
	return fmt.Errorf("value %v (%T) is not a valid %s", v, v, kind)
}
