// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// captureLog swaps the global logger for one writing to a buffer, restoring
// the original on cleanup.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(orig) })
	return &buf
}

func TestCtxCarriesRunIDAndModel(t *testing.T) {
	buf := captureLog(t)

	ctx := ContextWithRunID(context.Background(), "abc12345")
	ctx = ContextWithModel(ctx, "fct_ratings")
	Ctx(ctx).Info().Msg("model materialized")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["run_id"] != "abc12345" {
		t.Errorf("run_id = %v, want abc12345", entry["run_id"])
	}
	if entry["model"] != "fct_ratings" {
		t.Errorf("model = %v, want fct_ratings", entry["model"])
	}
	if entry["message"] != "model materialized" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestCtxWithoutValues(t *testing.T) {
	buf := captureLog(t)

	Ctx(context.Background()).Info().Msg("plain")

	out := buf.String()
	if strings.Contains(out, "run_id") || strings.Contains(out, "model") {
		t.Errorf("empty context produced correlation fields: %q", out)
	}
}

func TestRunIDContextRoundTrip(t *testing.T) {
	if got := RunIDFromContext(context.Background()); got != "" {
		t.Errorf("empty context run ID = %q, want empty", got)
	}

	id := GenerateRunID()
	if len(id) != 8 {
		t.Errorf("run ID %q has length %d, want 8", id, len(id))
	}
	if other := GenerateRunID(); other == id {
		t.Error("consecutive run IDs collided")
	}

	ctx := ContextWithRunID(context.Background(), id)
	if got := RunIDFromContext(ctx); got != id {
		t.Errorf("round-tripped run ID = %q, want %q", got, id)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":    zerolog.TraceLevel,
		"debug":    zerolog.DebugLevel,
		"info":     zerolog.InfoLevel,
		"warn":     zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"disabled": zerolog.Disabled,
		"bogus":    zerolog.InfoLevel, // unknown falls back to info
		"INFO":     zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
