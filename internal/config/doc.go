// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package config provides layered configuration loading for the pipeline.
//
// Configuration is assembled from three sources with clear precedence,
// highest last:
//
//  1. Built-in defaults (see defaultConfig)
//  2. An optional YAML config file (CONFIG_PATH or the default search paths)
//  3. Environment variables (DUCKDB_PATH, PIPELINE_SCHEDULE, LOG_LEVEL, ...)
//
// Loading is done through Koanf v2 so every setting can come from any
// layer, and the result is validated before it is handed to the rest of
// the process. A failed validation aborts startup; there is no partial
// configuration.
package config
