// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Context keys for logging.
type contextKey string

const (
	// runIDKey is the context key for pipeline run IDs.
	runIDKey contextKey = "run_id"

	// modelKey is the context key for the model currently materializing.
	modelKey contextKey = "model"
)

// GenerateRunID creates a new unique run ID.
// Returns the first 8 characters of a UUID for readability in log output.
func GenerateRunID() string {
	return uuid.New().String()[:8]
}

// ContextWithRunID returns a new context carrying the given run ID.
//
//	ctx = logging.ContextWithRunID(ctx, logging.GenerateRunID())
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext retrieves the run ID from context.
// Returns empty string if not present.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithModel returns a new context carrying the model name.
func ContextWithModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, modelKey, model)
}

// ModelFromContext retrieves the model name from context.
// Returns empty string if not present.
func ModelFromContext(ctx context.Context) string {
	if m, ok := ctx.Value(modelKey).(string); ok {
		return m
	}
	return ""
}

// Ctx returns a logger with context values (run_id, model) automatically
// added. This is the recommended way to log inside engine and scheduler
// code paths.
//
//	logging.Ctx(ctx).Info().Msg("Model materialized")
//	// Output: {"level":"info","run_id":"abc12345","model":"fct_ratings","message":"Model materialized"}
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()

	if runID := RunIDFromContext(ctx); runID != "" {
		logCtx = logCtx.Str("run_id", runID)
	}
	if model := ModelFromContext(ctx); model != "" {
		logCtx = logCtx.Str("model", model)
	}

	logger := logCtx.Logger()
	return &logger
}
