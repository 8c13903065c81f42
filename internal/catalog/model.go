// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/stratum/internal/engine"
	"github.com/tomtom215/stratum/internal/rows"
	"github.com/tomtom215/stratum/internal/table"
	"github.com/tomtom215/stratum/internal/validation"
)

// Layer places a model in the warehouse topology.
type Layer string

const (
	LayerStaging   Layer = "staging"
	LayerDimension Layer = "dimension"
	LayerFact      Layer = "fact"
	LayerMart      Layer = "mart"
)

// Deps resolves the upstream tables a transform reads from. Only tables
// named in the model's DependsOn list are resolvable.
type Deps interface {
	Table(name string) (table.Table, error)
}

// TransformFunc builds the input stream of a derived model from its
// upstream tables. It must return a restartable stream: the engines may
// open it more than once.
type TransformFunc func(ctx context.Context, deps Deps) (rows.Stream, error)

// Model declares one warehouse table and how it is populated.
type Model struct {
	Name     string         `validate:"required"`
	Layer    Layer          `validate:"required,oneof=staging dimension fact mart"`
	Strategy table.Strategy `validate:"-"`
	Schema   rows.Schema    `validate:"-"`

	// DependsOn names the models whose tables must be populated first.
	DependsOn []string `validate:"dive,required"`

	// SourceFile is the raw extract file a staging model loads from,
	// relative to the configured data directory.
	SourceFile string

	// Transform builds the input stream of a derived model.
	Transform TransformFunc `validate:"-"`

	// Incremental materialization settings.
	WatermarkColumn string
	SchemaPolicy    engine.SchemaPolicy

	// Snapshot materialization settings.
	BusinessKey           []string
	UpdatedAtColumn       string
	InvalidateHardDeletes bool
}

// Validate checks structural tags and the materialization-specific rules a
// tag cannot express.
func (m *Model) Validate() error {
	if err := validation.ValidateStruct(m); err != nil {
		return fmt.Errorf("model %s: %w", m.Name, err)
	}

	if len(m.Schema.Columns) == 0 {
		return fmt.Errorf("model %s: schema must declare at least one column", m.Name)
	}

	if m.SourceFile != "" && m.Transform != nil {
		return fmt.Errorf("model %s: SourceFile and Transform are mutually exclusive", m.Name)
	}
	if m.SourceFile == "" && m.Transform == nil {
		return fmt.Errorf("model %s: either SourceFile or Transform is required", m.Name)
	}

	switch m.Strategy {
	case table.StrategyIncremental:
		if m.WatermarkColumn == "" {
			return fmt.Errorf("model %s: incremental materialization requires WatermarkColumn", m.Name)
		}
		if !m.Schema.Has(m.WatermarkColumn) {
			return fmt.Errorf("model %s: watermark column %q not in schema", m.Name, m.WatermarkColumn)
		}
	case table.StrategySnapshot:
		if len(m.BusinessKey) == 0 {
			return fmt.Errorf("model %s: snapshot materialization requires BusinessKey", m.Name)
		}
		for _, col := range m.BusinessKey {
			if !m.Schema.Has(col) {
				return fmt.Errorf("model %s: business key column %q not in schema", m.Name, col)
			}
		}
		if m.UpdatedAtColumn == "" {
			return fmt.Errorf("model %s: snapshot materialization requires UpdatedAtColumn", m.Name)
		}
		if !m.Schema.Has(m.UpdatedAtColumn) {
			return fmt.Errorf("model %s: updated-at column %q not in schema", m.Name, m.UpdatedAtColumn)
		}
	case table.StrategyView, table.StrategyTable, table.StrategyEphemeral:
		// No extra settings.
	default:
		return fmt.Errorf("model %s: unknown strategy %d", m.Name, m.Strategy)
	}

	return nil
}

// Spec converts the model to the table specification the warehouse opens.
func (m *Model) Spec() table.TableSpec {
	return table.TableSpec{
		Name:            m.Name,
		Schema:          m.Schema,
		Strategy:        m.Strategy,
		UpdatedAtColumn: m.UpdatedAtColumn,
	}
}

// Catalog is a validated, dependency-checked set of models.
type Catalog struct {
	models map[string]*Model
	order  []string // registration order, for stable iteration
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{models: make(map[string]*Model)}
}

// Register validates the model and adds it. Registration order is
// preserved for iteration but has no dependency meaning.
func (c *Catalog) Register(m *Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if _, dup := c.models[m.Name]; dup {
		return fmt.Errorf("model %s: already registered", m.Name)
	}
	c.models[m.Name] = m
	c.order = append(c.order, m.Name)
	return nil
}

// Get returns the named model.
func (c *Catalog) Get(name string) (*Model, bool) {
	m, ok := c.models[name]
	return m, ok
}

// Len returns the number of registered models.
func (c *Catalog) Len() int { return len(c.models) }

// Sort returns every model in dependency order: a model appears after all
// models it depends on. The order is deterministic. Unknown dependencies
// and cycles are errors.
func (c *Catalog) Sort() ([]*Model, error) {
	return c.sortSubset(c.order)
}

// Select returns the named models plus their transitive upstream closure,
// in dependency order. An empty selection means the full catalog.
func (c *Catalog) Select(names []string) ([]*Model, error) {
	if len(names) == 0 {
		return c.Sort()
	}

	included := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if included[name] {
			return nil
		}
		m, ok := c.models[name]
		if !ok {
			return fmt.Errorf("unknown model %q", name)
		}
		included[name] = true
		for _, dep := range m.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	subset := make([]string, 0, len(included))
	for _, name := range c.order {
		if included[name] {
			subset = append(subset, name)
		}
	}
	return c.sortSubset(subset)
}

// sortSubset runs Kahn's algorithm over the given model names. Ties are
// broken alphabetically so repeated runs process models in the same order.
func (c *Catalog) sortSubset(names []string) ([]*Model, error) {
	inSubset := make(map[string]bool, len(names))
	for _, n := range names {
		inSubset[n] = true
	}

	indegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, n := range names {
		m := c.models[n]
		for _, dep := range m.DependsOn {
			if _, ok := c.models[dep]; !ok {
				return nil, fmt.Errorf("model %s: unknown dependency %q", n, dep)
			}
			if !inSubset[dep] {
				return nil, fmt.Errorf("model %s: dependency %q not in selection", n, dep)
			}
			indegree[n]++
			dependents[dep] = append(dependents[dep], n)
		}
	}

	ready := make([]string, 0, len(names))
	for _, n := range names {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	out := make([]*Model, 0, len(names))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		out = append(out, c.models[n])

		released := dependents[n]
		sort.Strings(released)
		for _, d := range released {
			indegree[d]--
			if indegree[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}

	if len(out) != len(names) {
		var stuck []string
		for _, n := range names {
			if indegree[n] > 0 {
				stuck = append(stuck, n)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("dependency cycle involving %v", stuck)
	}
	return out, nil
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
