// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package logging provides centralized zerolog-based logging for Stratum.
//
// A single global logger is configured once at startup and shared by every
// package:
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("model", "fct_ratings").Msg("Load starting")
//	logging.Error().Err(err).Msg("Load failed")
//
// Run identifiers propagate through context so every log line of a pipeline
// run can be correlated:
//
//	ctx = logging.ContextWithRunID(ctx, runID)
//	logging.Ctx(ctx).Info().Msg("Model materialized")
//	// Output: {"level":"info","run_id":"...","message":"Model materialized"}
//
// Always terminate log chains with .Msg() or .Send(); an unterminated chain
// is never emitted. Prefer structured fields over string formatting.
package logging
