// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateSource(); err != nil {
		return err
	}

	if err := c.validatePipeline(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH must not be empty")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0 (0 = all cores), got %d", c.Database.Threads)
	}
	if c.Database.MaxMemory != "" {
		if err := validateMemoryLimit(c.Database.MaxMemory); err != nil {
			return fmt.Errorf("DUCKDB_MAX_MEMORY is invalid: %w", err)
		}
	}
	return nil
}

// validateMemoryLimit accepts DuckDB-style limits such as "512MB" or "2GB".
func validateMemoryLimit(limit string) error {
	upper := strings.ToUpper(strings.TrimSpace(limit))
	for _, suffix := range []string{"KB", "MB", "GB", "TB", "KIB", "MIB", "GIB", "TIB", "B"} {
		if num, ok := strings.CutSuffix(upper, suffix); ok {
			num = strings.TrimSpace(num)
			if num == "" {
				return fmt.Errorf("missing numeric value in %q", limit)
			}
			for _, r := range num {
				if (r < '0' || r > '9') && r != '.' {
					return fmt.Errorf("invalid numeric value %q", num)
				}
			}
			return nil
		}
	}
	return fmt.Errorf("expected a unit suffix (KB, MB, GB, TB) in %q", limit)
}

func (c *Config) validateSource() error {
	if c.Source.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	if utf8.RuneCountInString(c.Source.Delimiter) != 1 {
		return fmt.Errorf("DATA_DELIMITER must be a single character, got %q", c.Source.Delimiter)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Schedule != "" {
		if _, err := cron.ParseStandard(c.Pipeline.Schedule); err != nil {
			return fmt.Errorf("PIPELINE_SCHEDULE is not a valid cron expression: %w", err)
		}
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("PIPELINE_BATCH_SIZE must be >= 1, got %d", c.Pipeline.BatchSize)
	}
	if c.Pipeline.ModelTimeout <= 0 {
		return fmt.Errorf("PIPELINE_MODEL_TIMEOUT must be positive, got %s", c.Pipeline.ModelTimeout)
	}
	if c.Pipeline.HistoryLimit < 1 {
		return fmt.Errorf("PIPELINE_HISTORY_LIMIT must be >= 1, got %d", c.Pipeline.HistoryLimit)
	}
	for _, m := range c.Pipeline.Models {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("PIPELINE_MODELS contains an empty model name")
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
