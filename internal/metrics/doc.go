// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package metrics provides Prometheus instrumentation for the pipeline:
// warehouse table operations, incremental load and snapshot cycle outcomes,
// row rejections, lock contention, and scheduler health. Metrics are
// registered through promauto at package load and exposed by the ops HTTP
// server's /metrics endpoint.
package metrics
