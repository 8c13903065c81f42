// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// mockHTTPServer simulates *http.Server lifecycle behavior.
type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	stop        chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		started: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	close(m.started)
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stop
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	close(m.stop)
	return m.shutdownErr
}

// TestHTTPServiceGracefulShutdown verifies cancel triggers Shutdown
func TestHTTPServiceGracefulShutdown(t *testing.T) {
	mock := newMockHTTPServer()
	svc := NewHTTPService(mock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	select {
	case <-mock.started:
	case <-time.After(5 * time.Second):
		t.Fatal("server never started")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

// TestHTTPServiceListenFailure verifies startup errors propagate
func TestHTTPServiceListenFailure(t *testing.T) {
	mock := newMockHTTPServer()
	mock.listenErr = errors.New("address already in use")
	svc := NewHTTPService(mock, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, mock.listenErr) {
		t.Errorf("Serve() returned %v, want wrapped listen error", err)
	}
}

// TestHTTPServiceShutdownFailure verifies shutdown errors propagate
func TestHTTPServiceShutdownFailure(t *testing.T) {
	mock := newMockHTTPServer()
	mock.shutdownErr = errors.New("connections still active")
	svc := NewHTTPService(mock, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-mock.started
	cancel()

	select {
	case err := <-done:
		if err == nil || !errors.Is(err, mock.shutdownErr) {
			t.Errorf("Serve() returned %v, want wrapped shutdown error", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return")
	}
}
