// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/goccy/go-json"
)

func TestSlogHandlerBridgesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(orig) })

	logger := NewSlogLogger()
	logger.Info("supervisor event",
		slog.String("service", "pipeline-scheduler"),
		slog.Int("restarts", 2),
		slog.Bool("terminal", false),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("bridged output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["message"] != "supervisor event" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["service"] != "pipeline-scheduler" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["restarts"] != float64(2) {
		t.Errorf("restarts = %v, want 2", entry["restarts"])
	}
	if entry["terminal"] != false {
		t.Errorf("terminal = %v, want false", entry["terminal"])
	}
}

func TestSlogHandlerGroupsPrefixKeys(t *testing.T) {
	var buf bytes.Buffer
	orig := Logger()
	SetLogger(NewTestLogger(&buf))
	t.Cleanup(func() { SetLogger(orig) })

	logger := NewSlogLogger().WithGroup("suture").With(slog.String("tree", "stratum"))
	logger.Warn("service failed")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["suture.tree"] != "stratum" {
		t.Errorf("grouped key = %v, want suture.tree=stratum", entry["suture.tree"])
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
}
