// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/stratum/internal/catalog"
)

// TestNewServiceBadSchedule verifies invalid cron expressions are rejected
func TestNewServiceBadSchedule(t *testing.T) {
	runner := NewRunner(testConfig(t, t.TempDir()), newMemProvider(), catalog.Default())

	if _, err := NewService(runner, "every tuesday", RunOptions{}, false); err == nil {
		t.Fatal("NewService() expected error for bad schedule, got nil")
	}
	if _, err := NewService(runner, "0 2 * * *", RunOptions{}, false); err != nil {
		t.Fatalf("NewService() unexpected error: %v", err)
	}
}

// TestServiceRunOnStart verifies an immediate cycle fires before the schedule
func TestServiceRunOnStart(t *testing.T) {
	dir := writeMovieLensExtracts(t)
	runner := NewRunner(testConfig(t, dir), newMemProvider(), catalog.Default())

	// Schedule far in the future so only the startup cycle can fire.
	svc, err := NewService(runner, "0 2 1 1 *", RunOptions{Models: []string{"stg_movies"}}, true)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	deadline := time.After(5 * time.Second)
	for len(runner.History()) == 0 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("startup cycle never recorded a report")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not stop after cancel")
	}
}

// TestServiceStopsWithoutRunning verifies cancellation before any cycle
func TestServiceStopsWithoutRunning(t *testing.T) {
	runner := NewRunner(testConfig(t, t.TempDir()), newMemProvider(), catalog.Default())
	svc, err := NewService(runner, "0 2 1 1 *", RunOptions{}, false)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not stop after cancel")
	}

	if got := len(runner.History()); got != 0 {
		t.Errorf("History() has %d entries, want 0", got)
	}
}
