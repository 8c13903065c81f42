// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package catalog

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/tomtom215/stratum/internal/rows"
	"github.com/tomtom215/stratum/internal/table"
)

func passthrough(schema rows.Schema) TransformFunc {
	return func(ctx context.Context, deps Deps) (rows.Stream, error) {
		return rows.NewSliceStream(schema, nil), nil
	}
}

func validModel(name string) *Model {
	schema := rows.NewSchema(
		rows.Column{Name: "id", Type: rows.KindInteger},
		rows.Column{Name: "updated_at", Type: rows.KindInteger},
	)
	return &Model{
		Name:      name,
		Layer:     LayerStaging,
		Strategy:  table.StrategyTable,
		Schema:    schema,
		Transform: passthrough(schema),
	}
}

// TestModelValidate exercises the structural and materialization rules
func TestModelValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Model)
		wantErr string
	}{
		{
			name:    "valid table model",
			mutate:  func(m *Model) {},
			wantErr: "",
		},
		{
			name:    "missing name",
			mutate:  func(m *Model) { m.Name = "" },
			wantErr: "required",
		},
		{
			name:    "bad layer",
			mutate:  func(m *Model) { m.Layer = "gold" },
			wantErr: "one of",
		},
		{
			name:    "empty schema",
			mutate:  func(m *Model) { m.Schema = rows.Schema{} },
			wantErr: "schema",
		},
		{
			name: "source file and transform together",
			mutate: func(m *Model) {
				m.SourceFile = "events.csv"
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "neither source file nor transform",
			mutate: func(m *Model) {
				m.Transform = nil
			},
			wantErr: "either SourceFile or Transform",
		},
		{
			name: "incremental without watermark",
			mutate: func(m *Model) {
				m.Strategy = table.StrategyIncremental
			},
			wantErr: "WatermarkColumn",
		},
		{
			name: "incremental watermark not in schema",
			mutate: func(m *Model) {
				m.Strategy = table.StrategyIncremental
				m.WatermarkColumn = "event_time"
			},
			wantErr: "event_time",
		},
		{
			name: "snapshot without business key",
			mutate: func(m *Model) {
				m.Strategy = table.StrategySnapshot
				m.UpdatedAtColumn = "updated_at"
			},
			wantErr: "BusinessKey",
		},
		{
			name: "snapshot key column not in schema",
			mutate: func(m *Model) {
				m.Strategy = table.StrategySnapshot
				m.BusinessKey = []string{"tenant_id"}
				m.UpdatedAtColumn = "updated_at"
			},
			wantErr: "tenant_id",
		},
		{
			name: "snapshot without updated-at",
			mutate: func(m *Model) {
				m.Strategy = table.StrategySnapshot
				m.BusinessKey = []string{"id"}
			},
			wantErr: "UpdatedAtColumn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModel("test_model")
			tt.mutate(m)

			err := m.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

// TestCatalogRegisterDuplicate verifies the same name cannot register twice
func TestCatalogRegisterDuplicate(t *testing.T) {
	c := New()
	if err := c.Register(validModel("dup")); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := c.Register(validModel("dup")); err == nil {
		t.Fatal("second Register() expected duplicate error, got nil")
	}
}

// TestCatalogSort verifies dependency ordering with deterministic ties
func TestCatalogSort(t *testing.T) {
	c := New()
	base := validModel("base")
	mid := validModel("mid")
	mid.DependsOn = []string{"base"}
	leafB := validModel("leaf_b")
	leafB.DependsOn = []string{"mid"}
	leafA := validModel("leaf_a")
	leafA.DependsOn = []string{"mid"}

	// Register out of order to prove sorting is structural
	for _, m := range []*Model{leafB, mid, leafA, base} {
		if err := c.Register(m); err != nil {
			t.Fatalf("Register(%s) error = %v", m.Name, err)
		}
	}

	sorted, err := c.Sort()
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}

	got := make([]string, len(sorted))
	for i, m := range sorted {
		got[i] = m.Name
	}
	want := []string{"base", "mid", "leaf_a", "leaf_b"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Sort() order = %v, want %v", got, want)
	}
}

// TestCatalogSortCycle verifies cycles are reported, not looped over
func TestCatalogSortCycle(t *testing.T) {
	c := New()
	a := validModel("a")
	a.DependsOn = []string{"b"}
	b := validModel("b")
	b.DependsOn = []string{"a"}
	for _, m := range []*Model{a, b} {
		if err := c.Register(m); err != nil {
			t.Fatalf("Register(%s) error = %v", m.Name, err)
		}
	}

	_, err := c.Sort()
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("Sort() error = %v, want cycle error", err)
	}
}

// TestCatalogSortUnknownDependency verifies dangling deps are errors
func TestCatalogSortUnknownDependency(t *testing.T) {
	c := New()
	m := validModel("orphan")
	m.DependsOn = []string{"missing_upstream"}
	if err := c.Register(m); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := c.Sort()
	if err == nil || !strings.Contains(err.Error(), "missing_upstream") {
		t.Errorf("Sort() error = %v, want unknown dependency error", err)
	}
}

// TestCatalogSelect verifies selection pulls in the upstream closure
func TestCatalogSelect(t *testing.T) {
	c := Default()

	sorted, err := c.Select([]string{"mart_movie_ratings"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	names := make(map[string]int)
	for i, m := range sorted {
		names[m.Name] = i
	}

	// Closure: the mart needs both the fact and the dimension, which in
	// turn need their staging tables.
	for _, want := range []string{"stg_ratings", "stg_movies", "fct_ratings", "dim_movies", "mart_movie_ratings"} {
		if _, ok := names[want]; !ok {
			t.Errorf("Select() missing %s from closure", want)
		}
	}
	if _, ok := names["snap_tags"]; ok {
		t.Error("Select() included snap_tags, which is not upstream of the mart")
	}

	// Ordering: upstreams strictly before dependents.
	if !(names["stg_ratings"] < names["fct_ratings"] && names["fct_ratings"] < names["mart_movie_ratings"]) {
		t.Errorf("Select() order violates dependencies: %v", names)
	}
	if !(names["stg_movies"] < names["dim_movies"] && names["dim_movies"] < names["mart_movie_ratings"]) {
		t.Errorf("Select() order violates dependencies: %v", names)
	}
}

// TestCatalogSelectUnknown verifies unknown selections fail fast
func TestCatalogSelectUnknown(t *testing.T) {
	c := Default()
	_, err := c.Select([]string{"dim_actors"})
	if err == nil || !strings.Contains(err.Error(), "dim_actors") {
		t.Errorf("Select() error = %v, want unknown model error", err)
	}
}

// TestDefaultCatalog verifies every built-in model validates and sorts
func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 11 {
		t.Errorf("Default() has %d models, want 11", c.Len())
	}

	sorted, err := c.Sort()
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if len(sorted) != c.Len() {
		t.Errorf("Sort() returned %d models, want %d", len(sorted), c.Len())
	}

	// Staging models read files, derived models transform.
	for _, m := range sorted {
		if m.Layer == LayerStaging && m.SourceFile == "" {
			t.Errorf("%s: staging model without a source file", m.Name)
		}
		if m.Layer != LayerStaging && m.Transform == nil {
			t.Errorf("%s: derived model without a transform", m.Name)
		}
	}
}
