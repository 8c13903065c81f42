// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package rows

import "context"

// Iterator walks a row sequence in the style of sql.Rows: call Next until it
// returns false, then check Err to distinguish exhaustion from failure.
type Iterator interface {
	// Next advances to the next row, returning false when the sequence is
	// exhausted or an error occurred.
	Next() bool

	// Row returns the current row. Valid only after a true Next.
	Row() Row

	// Err returns the first error encountered while iterating.
	Err() error

	// Close releases resources held by the iterator. Safe to call twice.
	Close() error
}

// Stream is a lazy, restartable, finite sequence of rows sharing one schema.
// Each call to Rows yields a fresh iterator from the beginning, so a failed
// run can be retried without coordinating with the upstream extractor.
type Stream interface {
	// Schema describes the columns every row of the stream carries.
	Schema() Schema

	// Rows opens a new iteration over the full sequence.
	Rows(ctx context.Context) (Iterator, error)
}

// SliceStream is an in-memory Stream over a fixed row slice. It backs unit
// tests and ephemeral intermediate results.
type SliceStream struct {
	schema Schema
	rows   []Row
}

// NewSliceStream builds a stream over the given rows. The slice is not
// copied; callers must not mutate it afterwards.
func NewSliceStream(schema Schema, rs []Row) *SliceStream {
	return &SliceStream{schema: schema, rows: rs}
}

func (s *SliceStream) Schema() Schema { return s.schema }

func (s *SliceStream) Rows(_ context.Context) (Iterator, error) {
	return &sliceIterator{rows: s.rows, pos: -1}, nil
}

type sliceIterator struct {
	rows []Row
	pos  int
}

func (it *sliceIterator) Next() bool {
	if it.pos+1 >= len(it.rows) {
		return false
	}
	it.pos++
	return true
}

func (it *sliceIterator) Row() Row    { return it.rows[it.pos] }
func (it *sliceIterator) Err() error  { return nil }
func (it *sliceIterator) Close() error { return nil }

// Collect drains an iterator into a slice, closing it afterwards.
func Collect(it Iterator) ([]Row, error) {
	defer func() { _ = it.Close() }()

	var out []Row
	for it.Next() {
		out = append(out, it.Row())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
