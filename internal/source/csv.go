// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tomtom215/stratum/internal/rows"
)

// arraySep separates elements of a string-array cell in raw extracts,
// following the MovieLens genre convention.
const arraySep = "|"

// timestampLayouts are tried in order when decoding a timestamp cell that
// is not an epoch integer.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSVOptions tune extract decoding.
type CSVOptions struct {
	// Delimiter is the field separator. Zero means comma.
	Delimiter rune

	// Strict turns cell decode failures into iteration errors. The
	// default leaves the cell null and counts it, deferring row fate to
	// the engines' key and watermark checks.
	Strict bool
}

// CSVStream reads a raw extract file as a typed row stream. The file must
// carry a header row; header names are matched to schema columns, extra
// file columns are ignored, and schema columns absent from the file load
// as null.
type CSVStream struct {
	path   string
	schema rows.Schema
	opts   CSVOptions

	decodeFailures atomic.Int64
}

// NewCSVStream builds a stream over the extract at path, decoded to schema.
func NewCSVStream(path string, schema rows.Schema, opts CSVOptions) *CSVStream {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &CSVStream{path: path, schema: schema, opts: opts}
}

func (s *CSVStream) Schema() rows.Schema { return s.schema }

// DecodeFailures reports cells nulled out by decode errors across all
// iterations so far. Only meaningful in non-strict mode.
func (s *CSVStream) DecodeFailures() int64 { return s.decodeFailures.Load() }

// Rows opens a fresh pass over the file.
func (s *CSVStream) Rows(ctx context.Context) (rows.Iterator, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening extract %s: %w", s.path, err)
	}

	r := csv.NewReader(f)
	r.Comma = s.opts.Delimiter
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("extract %s is empty, expected a header row", s.path)
		}
		return nil, fmt.Errorf("reading header of %s: %w", s.path, err)
	}

	// Map file positions to schema columns.
	cols := make([]rows.Column, len(header))
	mapped := make([]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if col, ok := s.schema.Column(name); ok {
			cols[i] = col
			mapped[i] = true
		}
	}

	return &csvIterator{
		stream: s,
		ctx:    ctx,
		file:   f,
		reader: r,
		cols:   cols,
		mapped: mapped,
	}, nil
}

type csvIterator struct {
	stream *CSVStream
	ctx    context.Context
	file   *os.File
	reader *csv.Reader
	cols   []rows.Column
	mapped []bool

	cur    rows.Row
	err    error
	closed bool
}

func (it *csvIterator) Next() bool {
	if it.err != nil || it.closed {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	record, err := it.reader.Read()
	if errors.Is(err, io.EOF) {
		return false
	}
	if err != nil {
		it.err = fmt.Errorf("reading %s: %w", it.stream.path, err)
		return false
	}

	row := make(rows.Row, len(it.stream.schema.Columns))
	for i, raw := range record {
		if i >= len(it.cols) || !it.mapped[i] {
			continue
		}
		col := it.cols[i]
		v, err := decodeCell(col.Type, raw)
		if err != nil {
			if it.stream.opts.Strict {
				it.err = fmt.Errorf("%s: column %s: %w", it.stream.path, col.Name, err)
				return false
			}
			it.stream.decodeFailures.Add(1)
			v = nil
		}
		row[col.Name] = v
	}
	// Columns the file does not carry load as null.
	for _, col := range it.stream.schema.Columns {
		if _, ok := row[col.Name]; !ok {
			row[col.Name] = nil
		}
	}

	it.cur = row
	return true
}

func (it *csvIterator) Row() rows.Row { return it.cur }
func (it *csvIterator) Err() error    { return it.err }

func (it *csvIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.file.Close()
}

// decodeCell converts one raw cell to the engine scalar for kind. Empty
// cells are null.
func decodeCell(kind rows.Kind, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	switch kind {
	case rows.KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		return n, nil

	case rows.KindDecimal:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid decimal %q", raw)
		}
		return f, nil

	case rows.KindTimestamp:
		// Epoch seconds are the common extract form.
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.Unix(n, 0).UTC(), nil
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts.UTC(), nil
			}
		}
		return nil, fmt.Errorf("invalid timestamp %q", raw)

	case rows.KindStringArray:
		parts := strings.Split(raw, arraySep)
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out, nil

	case rows.KindString:
		return raw, nil

	default:
		return nil, fmt.Errorf("undecodable column kind %s", kind)
	}
}
