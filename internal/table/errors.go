// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package table

import (
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/stratum/internal/logging"
)

// ErrConcurrentRun signals that another run holds the lock for the same
// target table. The caller may retry once the competing run finishes.
var ErrConcurrentRun = errors.New("another run is active for this target")

// ErrNotSnapshot signals a history operation against a table that was not
// constructed with StrategySnapshot.
var ErrNotSnapshot = errors.New("table does not track history")

// TargetUnavailableError wraps a storage failure that makes the target
// table unusable for the rest of the run. It is fatal for the invocation
// and is not retried automatically.
type TargetUnavailableError struct {
	Target string
	Err    error
}

func (e *TargetUnavailableError) Error() string {
	return fmt.Sprintf("target %s unavailable: %v", e.Target, e.Err)
}

func (e *TargetUnavailableError) Unwrap() error { return e.Err }

// unavailable wraps err as a TargetUnavailableError unless it already is one.
func unavailable(target string, err error) error {
	var tu *TargetUnavailableError
	if errors.As(err, &tu) {
		return err
	}
	return &TargetUnavailableError{Target: target, Err: err}
}

// closeQuietly closes a resource and explicitly ignores any error
// Use this for cleanup operations in error paths where Close() errors are not actionable
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// closeWithLog closes a resource and logs any error
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}
