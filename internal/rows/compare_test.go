// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package rows

import (
	"testing"
	"time"
)

func TestCompare(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	cases := []struct {
		name    string
		a, b    any
		want    int
		wantErr bool
	}{
		{name: "int less", a: int64(1), b: int64(2), want: -1},
		{name: "int greater", a: int64(5), b: int64(2), want: 1},
		{name: "int equal", a: int64(3), b: int64(3), want: 0},
		{name: "int widths mix", a: int(4), b: int64(4), want: 0},
		{name: "float", a: 1.5, b: 2.5, want: -1},
		{name: "int against float", a: int64(2), b: 1.5, want: 1},
		{name: "float against int", a: 1.5, b: int64(2), want: -1},
		{name: "string lexical", a: "a", b: "b", want: -1},
		{name: "timestamp", a: early, b: late, want: -1},
		{name: "timestamp equal", a: early, b: early, want: 0},
		{name: "nil left", a: nil, b: int64(1), wantErr: true},
		{name: "nil right", a: int64(1), b: nil, wantErr: true},
		{name: "string against int", a: "1", b: int64(1), wantErr: true},
		{name: "string array unorderable", a: []string{"a"}, b: []string{"a"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compare(tc.a, tc.b)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Compare(%v, %v): expected error", tc.a, tc.b)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Errorf("Compare(%v, %v) = %d, %v; want %d", tc.a, tc.b, got, err, tc.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{name: "both nil", a: nil, b: nil, want: true},
		{name: "nil against value", a: nil, b: int64(0), want: false},
		{name: "ints", a: int64(7), b: int64(7), want: true},
		{name: "int against float same value", a: int64(4), b: 4.0, want: true},
		{name: "strings", a: "x", b: "x", want: true},
		{name: "timestamps across zones", a: ts, b: ts.In(time.FixedZone("off", 3600)), want: true},
		{name: "string arrays equal", a: []string{"a", "b"}, b: []string{"a", "b"}, want: true},
		{name: "string arrays order matters", a: []string{"a", "b"}, b: []string{"b", "a"}, want: false},
		{name: "string array length differs", a: []string{"a"}, b: []string{"a", "b"}, want: false},
		{name: "mismatched kinds", a: "1", b: int64(1), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Equal(tc.a, tc.b); got != tc.want {
				t.Errorf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
