package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type Status string

const (
	StatusCreated Status = "created"
	StatusSkipped Status = "skipped" // already existed
	StatusFailed  Status = "failed"
	StatusBlocked Status = "blocked" // a step it depends on failed
)

// Step is the outcome of one administrative call.
type Step struct {
	Action string
	Target string
	Status Status
	Err    error
}

// Report lists every step of a run in execution order.
type Report struct {
	Engine string
	Steps  []Step
}

func (r *Report) add(action, target string, err error) Status {
	s := Step{Action: action, Target: target, Status: StatusCreated}
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyExists):
		s.Status = StatusSkipped
	default:
		s.Status = StatusFailed
		s.Err = err
	}
	r.Steps = append(r.Steps, s)
	return s.Status
}

// Count returns the number of steps with status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed step.
func (r *Report) Err() error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", s.Action, s.Target, s.Err))
		}
	}
	return errors.Join(errs...)
}

// Runner executes a Plan against an Engine.
type Runner struct {
	engine Engine
	logger *zap.Logger
}

func NewRunner(engine Engine, logger *zap.Logger) *Runner {
	return &Runner{engine: engine, logger: logger}
}

// Run executes every step of plan in order: user, collections, indexes.
// A failed step does not stop the run. The returned error is non-nil when at
// least one step failed or ctx was cancelled.
func (r *Runner) Run(ctx context.Context, plan Plan) (*Report, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	report := &Report{Engine: r.engine.Name()}

	report.add("create user", plan.User.Name, r.engine.CreateUser(ctx, plan.User))
	r.log(report.Steps[len(report.Steps)-1])

	for _, db := range plan.Databases {
		for _, coll := range plan.Collections {
			if err := ctx.Err(); err != nil {
				return report, fmt.Errorf("bootstrap interrupted: %w", err)
			}

			target := db + "." + coll.Name
			status := report.add("create collection", target, r.engine.CreateCollection(ctx, db, coll, plan.Validators))
			r.log(report.Steps[len(report.Steps)-1])

			if !plan.Indexes {
				continue
			}
			for _, idx := range coll.UniqueIndexes {
				idxTarget := target + " (" + strings.Join(idx.Keys, ", ") + ")"
				if status == StatusFailed {
					report.Steps = append(report.Steps, Step{Action: "create unique index", Target: idxTarget, Status: StatusBlocked})
					r.log(report.Steps[len(report.Steps)-1])
					continue
				}
				report.add("create unique index", idxTarget, r.engine.CreateUniqueIndex(ctx, db, coll.Name, idx))
				r.log(report.Steps[len(report.Steps)-1])
			}
		}
	}

	r.logger.Info("bootstrap finished",
		zap.String("engine", report.Engine),
		zap.Int("created", report.Count(StatusCreated)),
		zap.Int("skipped", report.Count(StatusSkipped)),
		zap.Int("failed", report.Count(StatusFailed)),
		zap.Int("blocked", report.Count(StatusBlocked)),
	)

	return report, report.Err()
}

func (r *Runner) log(s Step) {
	fields := []zap.Field{
		zap.String("action", s.Action),
		zap.String("target", s.Target),
		zap.String("status", string(s.Status)),
	}
	switch s.Status {
	case StatusFailed:
		r.logger.Error("bootstrap step failed", append(fields, zap.Error(s.Err))...)
	case StatusBlocked:
		r.logger.Warn("bootstrap step not attempted", fields...)
	default:
		r.logger.Info("bootstrap step", fields...)
	}
}
