// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

// Package catalog declares the model set of the warehouse: which tables
// exist, which layer they belong to, how they are materialized, and what
// they depend on.
//
// A Model is data, not behavior. Staging models name the raw extract file
// they load from; derived models carry a Transform function that builds
// their input stream from upstream tables. The scheduler walks the catalog
// in dependency order and dispatches each model to the loader, the
// versioner, or a plain reload according to its materialization.
//
// The built-in catalog (Default) models a MovieLens-style event dataset:
// staging tables over the raw extracts, dimensions for movies and users, a
// versioned tag history, incremental fact tables for ratings and genome
// scores, and two reporting marts.
package catalog
