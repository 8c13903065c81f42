// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package table

import (
	"fmt"
	"sync"

	"github.com/tomtom215/stratum/internal/metrics"
)

// LockRegistry serializes runs per target table identity. Acquisition is
// non-blocking: a run that meets contention is rejected immediately with
// ErrConcurrentRun rather than queued, so the scheduler keeps control over
// retry timing.
type LockRegistry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLockRegistry returns an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{held: make(map[string]struct{})}
}

// Acquire takes the lock for the named target. The returned release func
// must be called exactly once when the run completes.
func (l *LockRegistry) Acquire(target string) (release func(), err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[target]; taken {
		metrics.RecordLockContention(target)
		return nil, fmt.Errorf("target %s: %w", target, ErrConcurrentRun)
	}
	l.held[target] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, target)
			l.mu.Unlock()
		})
	}, nil
}
