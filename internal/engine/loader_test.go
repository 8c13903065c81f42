// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/stratum/internal/rows"
	"github.com/tomtom215/stratum/internal/table"
)

var eventSchema = rows.NewSchema(
	rows.Column{Name: "user_id", Type: rows.KindInteger},
	rows.Column{Name: "movie_id", Type: rows.KindInteger},
	rows.Column{Name: "rating", Type: rows.KindDecimal},
	rows.Column{Name: "rated_at", Type: rows.KindInteger},
)

func event(user, movie int64, rating float64, ratedAt any) rows.Row {
	return rows.Row{"user_id": user, "movie_id": movie, "rating": rating, "rated_at": ratedAt}
}

func newLoader() *Loader {
	return NewLoader(table.NewLockRegistry())
}

func loadInto(t *testing.T, target table.Table, src []rows.Row, opts LoadOptions) LoadResult {
	t.Helper()
	res, err := newLoader().Load(context.Background(), rows.NewSliceStream(eventSchema, src), target, opts)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return res
}

func TestLoadEmptyTargetAppendsEverything(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)
	src := []rows.Row{
		event(1, 10, 4.0, int64(100)),
		event(2, 10, 3.5, int64(300)),
		event(1, 20, 5.0, int64(200)),
	}

	res := loadInto(t, target, src, LoadOptions{WatermarkColumn: "rated_at"})

	if res.RowsRead != 3 || res.RowsAppended != 3 || res.RowsRejected != 0 {
		t.Errorf("unexpected counts: read=%d appended=%d rejected=%d", res.RowsRead, res.RowsAppended, res.RowsRejected)
	}
	if res.OldWatermark != nil {
		t.Errorf("old watermark = %v, want nil for empty target", res.OldWatermark)
	}
	if res.NewWatermark != int64(300) {
		t.Errorf("new watermark = %v, want 300", res.NewWatermark)
	}

	got, err := target.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("target has %d rows, want 3", len(got))
	}
}

func TestLoadStrictWatermarkInequality(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)
	if err := target.Append(context.Background(), []rows.Row{event(1, 10, 4.0, int64(100))}); err != nil {
		t.Fatal(err)
	}

	// A row exactly at the watermark must not be re-appended.
	src := []rows.Row{
		event(1, 10, 4.0, int64(100)),
		event(2, 10, 3.0, int64(101)),
	}
	res := loadInto(t, target, src, LoadOptions{WatermarkColumn: "rated_at"})

	if res.RowsAppended != 1 {
		t.Errorf("appended %d rows, want 1", res.RowsAppended)
	}
	if res.OldWatermark != int64(100) || res.NewWatermark != int64(101) {
		t.Errorf("watermarks = %v -> %v, want 100 -> 101", res.OldWatermark, res.NewWatermark)
	}
}

func TestLoadRerunIsIdempotent(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)
	src := []rows.Row{
		event(1, 10, 4.0, int64(100)),
		event(2, 20, 2.5, int64(200)),
	}
	opts := LoadOptions{WatermarkColumn: "rated_at"}

	loadInto(t, target, src, opts)
	res := loadInto(t, target, src, opts)

	if res.RowsAppended != 0 {
		t.Errorf("second run appended %d rows, want 0", res.RowsAppended)
	}
	if res.NewWatermark != int64(200) {
		t.Errorf("watermark regressed to %v, want 200", res.NewWatermark)
	}
	got, _ := target.ReadAll(context.Background())
	if len(got) != 2 {
		t.Errorf("target has %d rows after rerun, want 2", len(got))
	}
}

func TestLoadNullWatermarkRowRejected(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)
	src := []rows.Row{
		event(1, 10, 4.0, int64(100)),
		event(2, 20, 3.0, nil),
		event(3, 30, 2.0, int64(200)),
	}

	res := loadInto(t, target, src, LoadOptions{WatermarkColumn: "rated_at"})

	if res.RowsAppended != 2 {
		t.Errorf("appended %d rows, want 2", res.RowsAppended)
	}
	if res.RowsRejected != 1 || res.Rejections[RejectMalformedRow] != 1 {
		t.Errorf("rejections = %d (%v), want 1 malformed_row", res.RowsRejected, res.Rejections)
	}
}

func TestLoadUnorderableWatermarkRowRejected(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)
	if err := target.Append(context.Background(), []rows.Row{event(1, 10, 4.0, int64(100))}); err != nil {
		t.Fatal(err)
	}

	src := []rows.Row{
		event(2, 20, 3.0, "not-a-timestamp"),
		event(3, 30, 2.0, int64(200)),
	}
	res := loadInto(t, target, src, LoadOptions{WatermarkColumn: "rated_at"})

	if res.RowsAppended != 1 || res.RowsRejected != 1 {
		t.Errorf("appended=%d rejected=%d, want 1/1", res.RowsAppended, res.RowsRejected)
	}
}

func TestLoadFullRefreshReplacesTarget(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)
	stale := []rows.Row{
		event(9, 90, 1.0, int64(500)),
		event(9, 91, 1.0, int64(600)),
	}
	if err := target.Append(context.Background(), stale); err != nil {
		t.Fatal(err)
	}

	// Source watermarks sit below the target's; full refresh must load them anyway.
	src := []rows.Row{
		event(1, 10, 4.0, int64(100)),
		event(2, 20, 3.0, int64(200)),
	}
	res := loadInto(t, target, src, LoadOptions{WatermarkColumn: "rated_at", FullRefresh: true})

	if !res.FullRefresh {
		t.Error("result not flagged full refresh")
	}
	if res.RowsAppended != 2 {
		t.Errorf("loaded %d rows, want 2", res.RowsAppended)
	}
	got, _ := target.ReadAll(context.Background())
	if len(got) != 2 {
		t.Fatalf("target has %d rows after full refresh, want 2", len(got))
	}
	for _, r := range got {
		if r["user_id"] == int64(9) {
			t.Error("stale row survived full refresh")
		}
	}
}

func TestLoadFullRefreshKeepsNullWatermarkRows(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)

	// No ordering is needed on the full-refresh path, so a null stamp must
	// not shrink the reload.
	src := []rows.Row{
		event(1, 10, 4.0, nil),
		event(2, 20, 3.0, int64(200)),
		event(3, 30, 2.0, nil),
	}
	res := loadInto(t, target, src, LoadOptions{WatermarkColumn: "rated_at", FullRefresh: true})

	if res.RowsAppended != 3 || res.RowsRejected != 0 {
		t.Errorf("appended=%d rejected=%d, want 3/0", res.RowsAppended, res.RowsRejected)
	}
	if res.NewWatermark != int64(200) {
		t.Errorf("new watermark = %v, want 200", res.NewWatermark)
	}
	got, _ := target.ReadAll(context.Background())
	if len(got) != 3 {
		t.Errorf("target has %d rows, want 3", len(got))
	}
}

func TestLoadMissingWatermarkColumn(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)
	_, err := newLoader().Load(context.Background(),
		rows.NewSliceStream(eventSchema, nil), target, LoadOptions{WatermarkColumn: "no_such_column"})
	if err == nil {
		t.Fatal("expected error for watermark column absent from source schema")
	}
}

func TestLoadConcurrentRunRejected(t *testing.T) {
	locks := table.NewLockRegistry()
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)

	release, err := locks.Acquire("fct_ratings")
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	loader := NewLoader(locks)
	_, err = loader.Load(context.Background(),
		rows.NewSliceStream(eventSchema, nil), target, LoadOptions{WatermarkColumn: "rated_at"})
	if !errors.Is(err, table.ErrConcurrentRun) {
		t.Fatalf("err = %v, want ErrConcurrentRun", err)
	}
}

func TestLoadSchemaPolicyFail(t *testing.T) {
	wide := eventSchema.WithColumns(rows.Column{Name: "device", Type: rows.KindString})
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)

	src := rows.NewSliceStream(wide, []rows.Row{
		{"user_id": int64(1), "movie_id": int64(10), "rating": 4.0, "rated_at": int64(100), "device": "tv"},
	})
	_, err := newLoader().Load(context.Background(), src, target, LoadOptions{
		WatermarkColumn: "rated_at",
		SchemaPolicy:    SchemaPolicyFail,
	})

	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want SchemaMismatchError", err)
	}
	if len(mismatch.Extra) != 1 || mismatch.Extra[0] != "device" {
		t.Errorf("extra columns = %v, want [device]", mismatch.Extra)
	}
	got, _ := target.ReadAll(context.Background())
	if len(got) != 0 {
		t.Errorf("target mutated on schema mismatch: %d rows", len(got))
	}
}

func TestLoadSchemaPolicyIgnore(t *testing.T) {
	wide := eventSchema.WithColumns(rows.Column{Name: "device", Type: rows.KindString})
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)

	src := rows.NewSliceStream(wide, []rows.Row{
		{"user_id": int64(1), "movie_id": int64(10), "rating": 4.0, "rated_at": int64(100), "device": "tv"},
	})
	res, err := newLoader().Load(context.Background(), src, target, LoadOptions{
		WatermarkColumn: "rated_at",
		SchemaPolicy:    SchemaPolicyIgnore,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RowsAppended != 1 {
		t.Fatalf("appended %d rows, want 1", res.RowsAppended)
	}

	got, _ := target.ReadAll(context.Background())
	if _, present := got[0]["device"]; present {
		t.Error("undeclared column leaked into target rows")
	}
}

func TestLoadSchemaPolicyAppendNewColumns(t *testing.T) {
	wide := eventSchema.WithColumns(rows.Column{Name: "device", Type: rows.KindString})
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)

	src := rows.NewSliceStream(wide, []rows.Row{
		{"user_id": int64(1), "movie_id": int64(10), "rating": 4.0, "rated_at": int64(100), "device": "tv"},
	})
	res, err := newLoader().Load(context.Background(), src, target, LoadOptions{
		WatermarkColumn: "rated_at",
		SchemaPolicy:    SchemaPolicyAppendNewColumns,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.RowsAppended != 1 {
		t.Fatalf("appended %d rows, want 1", res.RowsAppended)
	}

	if !target.Schema().Has("device") {
		t.Error("target schema not widened with new column")
	}
	got, _ := target.ReadAll(context.Background())
	if got[0]["device"] != "tv" {
		t.Errorf("device = %v, want tv", got[0]["device"])
	}
}

func TestLoadSchemaTypeConflictAlwaysFails(t *testing.T) {
	conflicting := rows.NewSchema(
		rows.Column{Name: "user_id", Type: rows.KindString}, // declared integer on the target
		rows.Column{Name: "movie_id", Type: rows.KindInteger},
		rows.Column{Name: "rating", Type: rows.KindDecimal},
		rows.Column{Name: "rated_at", Type: rows.KindInteger},
	)
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)

	for _, policy := range []SchemaPolicy{SchemaPolicyFail, SchemaPolicyIgnore, SchemaPolicyAppendNewColumns} {
		_, err := newLoader().Load(context.Background(),
			rows.NewSliceStream(conflicting, nil), target, LoadOptions{
				WatermarkColumn: "rated_at",
				SchemaPolicy:    policy,
			})
		var mismatch *SchemaMismatchError
		if !errors.As(err, &mismatch) {
			t.Errorf("policy %v: err = %v, want SchemaMismatchError", policy, err)
		}
	}
}

func TestLoadOutOfOrderSourceBatch(t *testing.T) {
	target := table.NewMemTable("fct_ratings", eventSchema, table.StrategyIncremental)
	src := []rows.Row{
		event(1, 10, 4.0, int64(300)),
		event(2, 20, 3.0, int64(100)),
		event(3, 30, 2.0, int64(200)),
	}

	res := loadInto(t, target, src, LoadOptions{WatermarkColumn: "rated_at"})

	if res.NewWatermark != int64(300) {
		t.Errorf("new watermark = %v, want batch max 300", res.NewWatermark)
	}
	if res.RowsAppended != 3 {
		t.Errorf("appended %d rows, want 3", res.RowsAppended)
	}
}

func TestParseSchemaPolicy(t *testing.T) {
	cases := []struct {
		in      string
		want    SchemaPolicy
		wantErr bool
	}{
		{in: "", want: SchemaPolicyFail},
		{in: "fail", want: SchemaPolicyFail},
		{in: "ignore", want: SchemaPolicyIgnore},
		{in: "append_new_columns", want: SchemaPolicyAppendNewColumns},
		{in: "bogus", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseSchemaPolicy(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSchemaPolicy(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseSchemaPolicy(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}
