// Package scheduler runs a job on a cron schedule, one run at a time.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled run. Its context is cancelled after the configured
// timeout or when the scheduler stops.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a scheduler using standard 5-field cron expressions, plus
// descriptors such as "@daily". Runs still in progress when the next one is
// due cause the next one to be skipped.
func New(logger *zap.Logger, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(
				cron.Recover(cronLogger{logger}),
				cron.SkipIfStillRunning(cronLogger{logger}),
			),
		),
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register schedules job under name.
func (s *Scheduler) Register(spec, name string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, job) }); err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	s.logger.Info("task registered", zap.String("task", name), zap.String("cron", spec))
	return nil
}

// RunNow executes job immediately in the calling goroutine.
func (s *Scheduler) RunNow(name string, job Job) error {
	return s.run(name, job)
}

func (s *Scheduler) run(name string, job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Info("running task", zap.String("task", name))
	if err := job(ctx); err != nil {
		s.logger.Error("task failed", zap.String("task", name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
	s.logger.Info("task done", zap.String("task", name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
