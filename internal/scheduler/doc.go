// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package scheduler drives pipeline runs. The Runner resolves the catalog
// into dependency order and dispatches each model to the loader, the
// versioner, or a full reload according to its materialization, collecting
// a per-model report for the ops surface. The Service wraps the Runner in
// a cron trigger for daemon mode.
//
// A failed model does not stop the cycle: models that do not depend on it
// still run, while its downstream models are skipped with a reference to
// the failure.
package scheduler
