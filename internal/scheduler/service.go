// Stratum - Dimensional Warehouse Transformation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stratum

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tomtom215/stratum/internal/logging"
)

// Service runs pipeline cycles on a cron schedule. It implements
// suture.Service so the daemon supervisor can restart it on failure.
type Service struct {
	runner     *Runner
	schedule   cron.Schedule
	expr       string
	opts       RunOptions
	runOnStart bool
}

// NewService parses the standard five-field cron expression and wraps the
// runner. With runOnStart, a cycle fires immediately on Serve in addition
// to the schedule.
func NewService(runner *Runner, expr string, opts RunOptions, runOnStart bool) (*Service, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parsing schedule %q: %w", expr, err)
	}
	return &Service{
		runner:     runner,
		schedule:   schedule,
		expr:       expr,
		opts:       opts,
		runOnStart: runOnStart,
	}, nil
}

// Serve blocks, firing a cycle at each scheduled instant until the context
// is canceled. A failed cycle is logged and the schedule continues; only a
// canceled context ends the loop.
func (s *Service) Serve(ctx context.Context) error {
	logging.Info().
		Str("schedule", s.expr).
		Bool("run_on_start", s.runOnStart).
		Msg("Pipeline scheduler started")

	if s.runOnStart {
		s.cycle(ctx)
	}

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		next := s.schedule.Next(time.Now())
		timer.Reset(time.Until(next))

		select {
		case <-ctx.Done():
			logging.Info().Msg("Pipeline scheduler stopping")
			return ctx.Err()
		case <-timer.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.Run(ctx, s.opts)
	if err != nil {
		logging.Error().Err(err).Msg("Scheduled cycle failed to start")
		return
	}
	if report.Status != StatusSuccess {
		logging.Warn().
			Str("run_id", report.RunID).
			Msg("Scheduled cycle finished with model failures")
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Service) String() string {
	return "pipeline-scheduler"
}
