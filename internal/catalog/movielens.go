// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package catalog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tomtom215/stratum/internal/engine"
	"github.com/tomtom215/stratum/internal/rows"
	"github.com/tomtom215/stratum/internal/table"
)

// Default returns the built-in MovieLens catalog: staging over the raw
// extracts, dimensions, the versioned tag history, incremental facts, and
// the reporting marts.
func Default() *Catalog {
	c := New()
	for _, m := range []*Model{
		stgMovies(), stgRatings(), stgTags(), stgGenomeScores(),
		dimMovies(), dimUsers(), snapTags(),
		fctRatings(), fctGenomeScores(),
		martMovieRatings(), martUserActivity(),
	} {
		if err := c.Register(m); err != nil {
			// The built-in set is fixed; a registration failure is a
			// programming error, not a runtime condition.
			panic(err)
		}
	}
	return c
}

func stgMovies() *Model {
	return &Model{
		Name:     "stg_movies",
		Layer:    LayerStaging,
		Strategy: table.StrategyTable,
		Schema: rows.NewSchema(
			rows.Column{Name: "movie_id", Type: rows.KindInteger},
			rows.Column{Name: "title", Type: rows.KindString},
			rows.Column{Name: "genres", Type: rows.KindStringArray},
		),
		SourceFile: "movies.csv",
	}
}

func stgRatings() *Model {
	return &Model{
		Name:     "stg_ratings",
		Layer:    LayerStaging,
		Strategy: table.StrategyTable,
		Schema: rows.NewSchema(
			rows.Column{Name: "user_id", Type: rows.KindInteger},
			rows.Column{Name: "movie_id", Type: rows.KindInteger},
			rows.Column{Name: "rating", Type: rows.KindDecimal},
			rows.Column{Name: "rated_at", Type: rows.KindInteger},
		),
		SourceFile: "ratings.csv",
	}
}

func stgTags() *Model {
	return &Model{
		Name:     "stg_tags",
		Layer:    LayerStaging,
		Strategy: table.StrategyTable,
		Schema: rows.NewSchema(
			rows.Column{Name: "user_id", Type: rows.KindInteger},
			rows.Column{Name: "movie_id", Type: rows.KindInteger},
			rows.Column{Name: "tag", Type: rows.KindString},
			rows.Column{Name: "tagged_at", Type: rows.KindInteger},
		),
		SourceFile: "tags.csv",
	}
}

func stgGenomeScores() *Model {
	return &Model{
		Name:     "stg_genome_scores",
		Layer:    LayerStaging,
		Strategy: table.StrategyTable,
		Schema: rows.NewSchema(
			rows.Column{Name: "movie_id", Type: rows.KindInteger},
			rows.Column{Name: "tag_id", Type: rows.KindInteger},
			rows.Column{Name: "relevance", Type: rows.KindDecimal},
			rows.Column{Name: "scored_at", Type: rows.KindInteger},
		),
		SourceFile: "genome-scores.csv",
	}
}

func dimMovies() *Model {
	schema := rows.NewSchema(
		rows.Column{Name: "movie_id", Type: rows.KindInteger},
		rows.Column{Name: "title", Type: rows.KindString},
		rows.Column{Name: "release_year", Type: rows.KindInteger},
		rows.Column{Name: "genres", Type: rows.KindStringArray},
	)
	return &Model{
		Name:      "dim_movies",
		Layer:     LayerDimension,
		Strategy:  table.StrategyTable,
		Schema:    schema,
		DependsOn: []string{"stg_movies"},
		Transform: func(ctx context.Context, deps Deps) (rows.Stream, error) {
			src, err := readDep(ctx, deps, "stg_movies")
			if err != nil {
				return nil, err
			}
			out := make([]rows.Row, 0, len(src))
			for _, r := range src {
				title, year := splitTitleYear(asString(r["title"]))
				out = append(out, rows.Row{
					"movie_id":     r["movie_id"],
					"title":        title,
					"release_year": year,
					"genres":       r["genres"],
				})
			}
			return rows.NewSliceStream(schema, out), nil
		},
	}
}

func dimUsers() *Model {
	schema := rows.NewSchema(
		rows.Column{Name: "user_id", Type: rows.KindInteger},
		rows.Column{Name: "first_seen", Type: rows.KindInteger},
		rows.Column{Name: "last_seen", Type: rows.KindInteger},
		rows.Column{Name: "rating_count", Type: rows.KindInteger},
	)
	return &Model{
		Name:      "dim_users",
		Layer:     LayerDimension,
		Strategy:  table.StrategyTable,
		Schema:    schema,
		DependsOn: []string{"stg_ratings"},
		Transform: func(ctx context.Context, deps Deps) (rows.Stream, error) {
			src, err := readDep(ctx, deps, "stg_ratings")
			if err != nil {
				return nil, err
			}
			type userAgg struct {
				first, last int64
				count       int64
			}
			users := make(map[int64]*userAgg)
			for _, r := range src {
				id := asInt64(r["user_id"])
				at := asInt64(r["rated_at"])
				agg, ok := users[id]
				if !ok {
					users[id] = &userAgg{first: at, last: at, count: 1}
					continue
				}
				if at < agg.first {
					agg.first = at
				}
				if at > agg.last {
					agg.last = at
				}
				agg.count++
			}
			out := make([]rows.Row, 0, len(users))
			for id, agg := range users {
				out = append(out, rows.Row{
					"user_id":      id,
					"first_seen":   agg.first,
					"last_seen":    agg.last,
					"rating_count": agg.count,
				})
			}
			sortByInt(out, "user_id")
			return rows.NewSliceStream(schema, out), nil
		},
	}
}

// snapTags tracks the current tag a user has applied to a movie as a
// versioned history: a re-tag closes the old interval, a removed tag is
// closed as a hard delete.
func snapTags() *Model {
	schema := rows.NewSchema(
		rows.Column{Name: "user_id", Type: rows.KindInteger},
		rows.Column{Name: "movie_id", Type: rows.KindInteger},
		rows.Column{Name: "tag", Type: rows.KindString},
		rows.Column{Name: "tagged_at", Type: rows.KindInteger},
	)
	return &Model{
		Name:                  "snap_tags",
		Layer:                 LayerDimension,
		Strategy:              table.StrategySnapshot,
		Schema:                schema,
		DependsOn:             []string{"stg_tags"},
		BusinessKey:           []string{"user_id", "movie_id"},
		UpdatedAtColumn:       "tagged_at",
		InvalidateHardDeletes: true,
		Transform: func(ctx context.Context, deps Deps) (rows.Stream, error) {
			src, err := readDep(ctx, deps, "stg_tags")
			if err != nil {
				return nil, err
			}
			return rows.NewSliceStream(schema, src), nil
		},
	}
}

func fctRatings() *Model {
	schema := rows.NewSchema(
		rows.Column{Name: "user_id", Type: rows.KindInteger},
		rows.Column{Name: "movie_id", Type: rows.KindInteger},
		rows.Column{Name: "rating", Type: rows.KindDecimal},
		rows.Column{Name: "rated_at", Type: rows.KindInteger},
	)
	return &Model{
		Name:            "fct_ratings",
		Layer:           LayerFact,
		Strategy:        table.StrategyIncremental,
		Schema:          schema,
		DependsOn:       []string{"stg_ratings"},
		WatermarkColumn: "rated_at",
		SchemaPolicy:    engine.SchemaPolicyFail,
		Transform: func(ctx context.Context, deps Deps) (rows.Stream, error) {
			src, err := readDep(ctx, deps, "stg_ratings")
			if err != nil {
				return nil, err
			}
			return rows.NewSliceStream(schema, src), nil
		},
	}
}

func fctGenomeScores() *Model {
	schema := rows.NewSchema(
		rows.Column{Name: "movie_id", Type: rows.KindInteger},
		rows.Column{Name: "tag_id", Type: rows.KindInteger},
		rows.Column{Name: "relevance", Type: rows.KindDecimal},
		rows.Column{Name: "scored_at", Type: rows.KindInteger},
	)
	return &Model{
		Name:            "fct_genome_scores",
		Layer:           LayerFact,
		Strategy:        table.StrategyIncremental,
		Schema:          schema,
		DependsOn:       []string{"stg_genome_scores"},
		WatermarkColumn: "scored_at",
		SchemaPolicy:    engine.SchemaPolicyAppendNewColumns,
		Transform: func(ctx context.Context, deps Deps) (rows.Stream, error) {
			src, err := readDep(ctx, deps, "stg_genome_scores")
			if err != nil {
				return nil, err
			}
			return rows.NewSliceStream(schema, src), nil
		},
	}
}

func martMovieRatings() *Model {
	schema := rows.NewSchema(
		rows.Column{Name: "movie_id", Type: rows.KindInteger},
		rows.Column{Name: "title", Type: rows.KindString},
		rows.Column{Name: "rating_count", Type: rows.KindInteger},
		rows.Column{Name: "rating_avg", Type: rows.KindDecimal},
		rows.Column{Name: "last_rated_at", Type: rows.KindInteger},
	)
	return &Model{
		Name:      "mart_movie_ratings",
		Layer:     LayerMart,
		Strategy:  table.StrategyTable,
		Schema:    schema,
		DependsOn: []string{"fct_ratings", "dim_movies"},
		Transform: func(ctx context.Context, deps Deps) (rows.Stream, error) {
			ratings, err := readDep(ctx, deps, "fct_ratings")
			if err != nil {
				return nil, err
			}
			movies, err := readDep(ctx, deps, "dim_movies")
			if err != nil {
				return nil, err
			}

			titles := make(map[int64]string, len(movies))
			for _, m := range movies {
				titles[asInt64(m["movie_id"])] = asString(m["title"])
			}

			type movieAgg struct {
				count     int64
				sum       float64
				lastRated int64
			}
			aggs := make(map[int64]*movieAgg)
			for _, r := range ratings {
				id := asInt64(r["movie_id"])
				at := asInt64(r["rated_at"])
				agg, ok := aggs[id]
				if !ok {
					agg = &movieAgg{}
					aggs[id] = agg
				}
				agg.count++
				agg.sum += asFloat64(r["rating"])
				if at > agg.lastRated {
					agg.lastRated = at
				}
			}

			out := make([]rows.Row, 0, len(aggs))
			for id, agg := range aggs {
				title, ok := titles[id]
				if !ok {
					// Rating for a movie absent from the dimension;
					// keep the fact visible rather than dropping it.
					title = fmt.Sprintf("unknown movie %d", id)
				}
				out = append(out, rows.Row{
					"movie_id":      id,
					"title":         title,
					"rating_count":  agg.count,
					"rating_avg":    agg.sum / float64(agg.count),
					"last_rated_at": agg.lastRated,
				})
			}
			sortByInt(out, "movie_id")
			return rows.NewSliceStream(schema, out), nil
		},
	}
}

func martUserActivity() *Model {
	schema := rows.NewSchema(
		rows.Column{Name: "user_id", Type: rows.KindInteger},
		rows.Column{Name: "rating_count", Type: rows.KindInteger},
		rows.Column{Name: "tag_count", Type: rows.KindInteger},
		rows.Column{Name: "first_rated_at", Type: rows.KindInteger},
		rows.Column{Name: "last_rated_at", Type: rows.KindInteger},
	)
	return &Model{
		Name:      "mart_user_activity",
		Layer:     LayerMart,
		Strategy:  table.StrategyTable,
		Schema:    schema,
		DependsOn: []string{"fct_ratings", "stg_tags"},
		Transform: func(ctx context.Context, deps Deps) (rows.Stream, error) {
			ratings, err := readDep(ctx, deps, "fct_ratings")
			if err != nil {
				return nil, err
			}
			tags, err := readDep(ctx, deps, "stg_tags")
			if err != nil {
				return nil, err
			}

			type activity struct {
				ratings, tags int64
				first, last   int64
			}
			users := make(map[int64]*activity)
			for _, r := range ratings {
				id := asInt64(r["user_id"])
				at := asInt64(r["rated_at"])
				a, ok := users[id]
				if !ok {
					users[id] = &activity{ratings: 1, first: at, last: at}
					continue
				}
				a.ratings++
				if at < a.first {
					a.first = at
				}
				if at > a.last {
					a.last = at
				}
			}
			for _, t := range tags {
				id := asInt64(t["user_id"])
				a, ok := users[id]
				if !ok {
					a = &activity{}
					users[id] = a
				}
				a.tags++
			}

			out := make([]rows.Row, 0, len(users))
			for id, a := range users {
				out = append(out, rows.Row{
					"user_id":        id,
					"rating_count":   a.ratings,
					"tag_count":      a.tags,
					"first_rated_at": a.first,
					"last_rated_at":  a.last,
				})
			}
			sortByInt(out, "user_id")
			return rows.NewSliceStream(schema, out), nil
		},
	}
}

// readDep loads every row of a dependency table. Derived models in this
// catalog materialize small aggregates, so full reads are acceptable.
func readDep(ctx context.Context, deps Deps, name string) ([]rows.Row, error) {
	tbl, err := deps.Table(name)
	if err != nil {
		return nil, err
	}
	rs, err := tbl.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return rs, nil
}

// splitTitleYear extracts a trailing "(YYYY)" release year from a raw
// movie title, returning zero when no year is present.
func splitTitleYear(raw string) (title string, year int64) {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) < 6 || !strings.HasSuffix(trimmed, ")") {
		return trimmed, 0
	}
	open := strings.LastIndex(trimmed, "(")
	if open < 0 {
		return trimmed, 0
	}
	y, err := strconv.ParseInt(trimmed[open+1:len(trimmed)-1], 10, 64)
	if err != nil || y < 1800 || y > 3000 {
		return trimmed, 0
	}
	return strings.TrimSpace(trimmed[:open]), y
}

func sortByInt(rs []rows.Row, column string) {
	sort.Slice(rs, func(i, j int) bool {
		return asInt64(rs[i][column]) < asInt64(rs[j][column])
	})
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
