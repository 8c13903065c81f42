// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package config

import (
	"time"
)

// Config is the root configuration for a Stratum process.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Source   SourceConfig   `koanf:"source"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`                  // Number of DuckDB threads (0 = use NumCPU)
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"` // Whether to preserve insertion order (default true)
}

// SourceConfig holds settings for the raw event files the pipeline ingests.
type SourceConfig struct {
	DataDir   string `koanf:"data_dir"`  // Directory containing the raw CSV extracts
	Delimiter string `koanf:"delimiter"` // Field delimiter, single character (default ",")
}

// PipelineConfig holds transformation run settings.
type PipelineConfig struct {
	Schedule     string        `koanf:"schedule"`      // Cron expression for daemon mode
	ModelTimeout time.Duration `koanf:"model_timeout"` // Max duration of a single model run
	BatchSize    int           `koanf:"batch_size"`    // Rows per insert batch
	FullRefresh  bool          `koanf:"full_refresh"`  // Truncate-and-reload incremental targets
	Models       []string      `koanf:"models"`        // Optional subset of models to run (empty = all)
	HistoryLimit int           `koanf:"history_limit"` // Run reports retained for the ops API
}

// ServerConfig holds settings for the operational HTTP endpoint.
type ServerConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:                   "/data/stratum.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,    // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true, // DuckDB default
		},
		Source: SourceConfig{
			DataDir:   "/data/raw",
			Delimiter: ",",
		},
		Pipeline: PipelineConfig{
			Schedule:     "0 2 * * *", // nightly at 02:00
			ModelTimeout: 30 * time.Minute,
			BatchSize:    1000,
			FullRefresh:  false,
			Models:       nil,
			HistoryLimit: 50,
		},
		Server: ServerConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    3857,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
