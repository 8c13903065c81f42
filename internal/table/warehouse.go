// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package table

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/stratum/internal/config"
	"github.com/tomtom215/stratum/internal/logging"
)

// Warehouse wraps the DuckDB connection backing every persisted table.
// One Warehouse is shared by all models of a pipeline; individual tables
// are obtained through Table.
type Warehouse struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig

	// Ephemeral and view tables live in process memory; the same
	// instance must be handed out for every request of the same name.
	memMu sync.Mutex
	mem   map[string]*MemTable
}

// OpenWarehouse opens (creating if necessary) the DuckDB database file and
// configures the connection pool.
func OpenWarehouse(cfg *config.DatabaseConfig) (*Warehouse, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure parent directory exists for database file
	// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// preserve_insertion_order=false reduces memory usage but may change result order
	preserveOrder := "true"
	if !cfg.PreserveInsertionOrder {
		preserveOrder = "false"
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network
	// environments; the pipeline uses no DuckDB extensions.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&preserve_insertion_order=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory, preserveOrder)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Warehouse{conn: conn, cfg: cfg, mem: make(map[string]*MemTable)}
	w.configureConnectionPool(numThreads)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("Warehouse opened")

	return w, nil
}

// configureConnectionPool tunes the database/sql pool for batch workloads.
func (w *Warehouse) configureConnectionPool(numThreads int) {
	// Batch pipelines run few, long statements; a small pool avoids
	// concurrent CGO calls contending inside DuckDB.
	maxOpen := numThreads
	if maxOpen > 4 {
		maxOpen = 4
	}
	w.conn.SetMaxOpenConns(maxOpen)
	w.conn.SetMaxIdleConns(2)
	w.conn.SetConnMaxLifetime(time.Hour)
	w.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Conn returns the underlying SQL database connection.
func (w *Warehouse) Conn() *sql.DB { return w.conn }

// Ping checks if the database connection is alive.
func (w *Warehouse) Ping(ctx context.Context) error {
	if w.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return w.conn.PingContext(ctx)
}

// Checkpoint forces a WAL flush to the main database file.
func (w *Warehouse) Checkpoint(ctx context.Context) error {
	_, err := w.conn.ExecContext(ctx, "CHECKPOINT;")
	if err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Close checkpoints and closes the database connection. The checkpoint
// flushes the WAL so the next startup does not replay it.
func (w *Warehouse) Close() error {
	if w.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := w.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}

	return w.conn.Close()
}

