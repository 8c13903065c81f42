// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package source

import (
	"context"
	"fmt"

	"github.com/tomtom215/stratum/internal/rows"
	"github.com/tomtom215/stratum/internal/table"
)

// TableStream adapts a materialized warehouse table to a row stream, so a
// downstream model can consume an upstream table through the same
// interface as a raw extract. Each iteration reads the table's state at
// open time.
type TableStream struct {
	tbl table.Table
}

// NewTableStream wraps tbl as a restartable stream.
func NewTableStream(tbl table.Table) *TableStream {
	return &TableStream{tbl: tbl}
}

func (s *TableStream) Schema() rows.Schema { return s.tbl.Schema() }

func (s *TableStream) Rows(ctx context.Context) (rows.Iterator, error) {
	rs, err := s.tbl.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading table %s: %w", s.tbl.Name(), err)
	}
	it, err := rows.NewSliceStream(s.tbl.Schema(), rs).Rows(ctx)
	if err != nil {
		return nil, err
	}
	return it, nil
}
