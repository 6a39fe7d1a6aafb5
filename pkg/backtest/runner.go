package backtest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/peter-kozarec/arbiter/pkg/datasource"
	"github.com/peter-kozarec/arbiter/pkg/exchange/sandbox"
	"github.com/peter-kozarec/arbiter/pkg/middleware"
)

// Job binds one snapshot stream to one strategy instance. Neither may be
// shared with another job.
type Job struct {
	Config   SessionConfig
	Source   datasource.SnapshotSource
	Strategy Strategy
}

// Runner runs sessions concurrently on one engine. A session that fails
// never stops its siblings.
type Runner struct {
	logger *zap.Logger
	engine *sandbox.Engine

	parallelism  int
	telemetry    *middleware.Telemetry
	monitorFlags middleware.MonitorFlags
	performance  bool
	hooks        []Hook
}

func NewRunner(logger *zap.Logger, engine *sandbox.Engine, options ...RunnerOption) *Runner {
	r := &Runner{
		logger: logger,
		engine: engine,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run returns one outcome per job, in job order. The error joins the jobs
// that could not be run at all; aborted sessions report through their
// outcome instead.
func (r *Runner) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	outcomes := make([]Outcome, len(jobs))
	errs := make([]error, len(jobs))

	var group errgroup.Group
	if r.parallelism > 0 {
		group.SetLimit(r.parallelism)
	}

	for i, job := range jobs {
		group.Go(func() error {
			outcome, err := r.session(job).Run(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("job %d (%s): %w", i, job.Config.Name, err)
				return nil
			}
			outcomes[i] = outcome
			if outcome.Err != nil {
				r.logger.Warn("session aborted",
					zap.String("session_name", job.Config.Name),
					zap.Error(outcome.Err))
			}
			return nil
		})
	}
	_ = group.Wait()

	return outcomes, errors.Join(errs...)
}

func (r *Runner) session(job Job) *Session {
	logger := r.logger.With(zap.String("session_name", job.Config.Name))

	var options []SessionOption
	if r.monitorFlags != 0 && r.monitorFlags != middleware.MonitorNone {
		options = append(options, WithMonitor(middleware.NewMonitor(logger, r.monitorFlags)))
	}
	if r.telemetry != nil {
		options = append(options, WithTelemetry(r.telemetry.Session(job.Config.Name)))
	}
	if r.performance {
		options = append(options, WithPerformance(middleware.NewPerformance(logger)))
	}
	for _, hook := range r.hooks {
		options = append(options, hook(job.Config.Name)...)
	}

	return NewSession(r.logger, r.engine, job.Source, job.Strategy, job.Config, options...)
}
