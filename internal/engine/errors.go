// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package engine

import (
	"fmt"
	"strings"
)

// MalformedRowError marks a row whose watermark or timestamp value is
// unusable for ordering. The row is skipped and counted; the run continues.
type MalformedRowError struct {
	Column string
	Value  any
}

func (e *MalformedRowError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("row has null value in column %q", e.Column)
	}
	return fmt.Sprintf("row has unorderable value %v (%T) in column %q", e.Value, e.Value, e.Column)
}

// MissingKeyError marks a row lacking a value for a business key column.
// The row is skipped and counted; the cycle continues.
type MissingKeyError struct {
	Column string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("row is missing business key column %q", e.Column)
}

// SchemaMismatchError aborts a run under the fail schema policy: the source
// column set does not match the target's declared schema. The target is
// left unchanged.
type SchemaMismatchError struct {
	Target  string
	Missing []string // declared on the target, absent from the source
	Extra   []string // present in the source, undeclared on the target
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing columns [%s]", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("undeclared columns [%s]", strings.Join(e.Extra, ", ")))
	}
	if len(parts) == 0 {
		parts = append(parts, "column type conflict")
	}
	return fmt.Sprintf("schema mismatch for target %s: %s", e.Target, strings.Join(parts, "; "))
}
