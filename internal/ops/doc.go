// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package ops exposes the operational HTTP surface of a daemon-mode
// process: liveness and readiness probes, Prometheus metrics, the model
// catalog, retained run reports, and a trigger for ad-hoc cycles.
//
// The surface is intentionally small and unauthenticated; it is meant for
// an internal network segment alongside the scrape infrastructure.
package ops
