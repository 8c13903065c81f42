// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package supervisor provides process supervision for daemon mode using
// suture v4.
//
// The tree has two layers under the root: the pipeline layer (cron
// scheduler) and the api layer (ops HTTP server). A crash in either layer
// restarts only that layer's services; the other keeps running. Supervisor
// events are logged through the sutureslog adapter over the process
// logger.
//
// All services implement suture.Service:
//
//	Serve(ctx context.Context) error
//
// returning when the context is canceled.
package supervisor
