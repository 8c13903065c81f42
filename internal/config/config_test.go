// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestLoadDefaults verifies a clean environment yields the built-in defaults
func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Database.Path != "/data/stratum.duckdb" {
		t.Errorf("Database.Path = %q, want /data/stratum.duckdb", cfg.Database.Path)
	}
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB", cfg.Database.MaxMemory)
	}
	if !cfg.Database.PreserveInsertionOrder {
		t.Error("Database.PreserveInsertionOrder = false, want true")
	}
	if cfg.Pipeline.Schedule != "0 2 * * *" {
		t.Errorf("Pipeline.Schedule = %q, want nightly default", cfg.Pipeline.Schedule)
	}
	if cfg.Pipeline.BatchSize != 1000 {
		t.Errorf("Pipeline.BatchSize = %d, want 1000", cfg.Pipeline.BatchSize)
	}
	if cfg.Server.Port != 3857 {
		t.Errorf("Server.Port = %d, want 3857", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
}

// TestLoadEnvOverrides verifies environment variables override defaults
func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DUCKDB_PATH", "/tmp/test.duckdb")
	t.Setenv("DUCKDB_MAX_MEMORY", "512MB")
	t.Setenv("DUCKDB_THREADS", "4")
	t.Setenv("PIPELINE_BATCH_SIZE", "250")
	t.Setenv("PIPELINE_MODEL_TIMEOUT", "5m")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.duckdb" {
		t.Errorf("Database.Path = %q, want /tmp/test.duckdb", cfg.Database.Path)
	}
	if cfg.Database.MaxMemory != "512MB" {
		t.Errorf("Database.MaxMemory = %q, want 512MB", cfg.Database.MaxMemory)
	}
	if cfg.Database.Threads != 4 {
		t.Errorf("Database.Threads = %d, want 4", cfg.Database.Threads)
	}
	if cfg.Pipeline.BatchSize != 250 {
		t.Errorf("Pipeline.BatchSize = %d, want 250", cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.ModelTimeout != 5*time.Minute {
		t.Errorf("Pipeline.ModelTimeout = %s, want 5m", cfg.Pipeline.ModelTimeout)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

// TestLoadModelsFromEnv verifies comma-separated model lists parse into slices
func TestLoadModelsFromEnv(t *testing.T) {
	t.Setenv("PIPELINE_MODELS", "stg_ratings, dim_movies ,fct_ratings")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	want := []string{"stg_ratings", "dim_movies", "fct_ratings"}
	if len(cfg.Pipeline.Models) != len(want) {
		t.Fatalf("Pipeline.Models = %v, want %v", cfg.Pipeline.Models, want)
	}
	for i, m := range want {
		if cfg.Pipeline.Models[i] != m {
			t.Errorf("Pipeline.Models[%d] = %q, want %q", i, cfg.Pipeline.Models[i], m)
		}
	}
}

// TestLoadConfigFile verifies the YAML layer overrides defaults and env overrides YAML
func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  path: /from/file.duckdb
  max_memory: 4GB
pipeline:
  batch_size: 500
server:
  port: 8080
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	// env beats file
	t.Setenv("HTTP_PORT", "9999")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Database.Path != "/from/file.duckdb" {
		t.Errorf("Database.Path = %q, want /from/file.duckdb", cfg.Database.Path)
	}
	if cfg.Database.MaxMemory != "4GB" {
		t.Errorf("Database.MaxMemory = %q, want 4GB", cfg.Database.MaxMemory)
	}
	if cfg.Pipeline.BatchSize != 500 {
		t.Errorf("Pipeline.BatchSize = %d, want 500", cfg.Pipeline.BatchSize)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want env override 9999", cfg.Server.Port)
	}
}

// TestLoadFileMissing verifies a nonexistent explicit path is an error
func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("LoadFile() expected error for missing file, got nil")
	}
}

// TestValidate exercises the validation rules
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "DUCKDB_PATH",
		},
		{
			name:    "negative threads",
			mutate:  func(c *Config) { c.Database.Threads = -1 },
			wantErr: "DUCKDB_THREADS",
		},
		{
			name:    "memory limit without unit",
			mutate:  func(c *Config) { c.Database.MaxMemory = "2048" },
			wantErr: "DUCKDB_MAX_MEMORY",
		},
		{
			name:    "memory limit garbage",
			mutate:  func(c *Config) { c.Database.MaxMemory = "lotsGB" },
			wantErr: "DUCKDB_MAX_MEMORY",
		},
		{
			name:    "empty data dir",
			mutate:  func(c *Config) { c.Source.DataDir = "" },
			wantErr: "DATA_DIR",
		},
		{
			name:    "multi-char delimiter",
			mutate:  func(c *Config) { c.Source.Delimiter = "::" },
			wantErr: "DATA_DELIMITER",
		},
		{
			name:    "bad cron expression",
			mutate:  func(c *Config) { c.Pipeline.Schedule = "every tuesday" },
			wantErr: "PIPELINE_SCHEDULE",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Pipeline.BatchSize = 0 },
			wantErr: "PIPELINE_BATCH_SIZE",
		},
		{
			name:    "zero model timeout",
			mutate:  func(c *Config) { c.Pipeline.ModelTimeout = 0 },
			wantErr: "PIPELINE_MODEL_TIMEOUT",
		},
		{
			name:    "blank model name",
			mutate:  func(c *Config) { c.Pipeline.Models = []string{"dim_movies", " "} },
			wantErr: "PIPELINE_MODELS",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "server disabled skips port check",
			mutate:  func(c *Config) { c.Server.Enabled = false; c.Server.Port = 0 },
			wantErr: "",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

// TestValidateMemoryLimit exercises the DuckDB memory limit grammar
func TestValidateMemoryLimit(t *testing.T) {
	valid := []string{"512MB", "2GB", "1.5GiB", "100 KB", "4TB", "0B"}
	for _, v := range valid {
		if err := validateMemoryLimit(v); err != nil {
			t.Errorf("validateMemoryLimit(%q) = %v, want nil", v, err)
		}
	}

	invalid := []string{"", "MB", "2", "two GB", "2PB"}
	for _, v := range invalid {
		if err := validateMemoryLimit(v); err == nil {
			t.Errorf("validateMemoryLimit(%q) = nil, want error", v)
		}
	}
}
