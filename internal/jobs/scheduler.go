// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package jobs runs FamTrack's periodic background work on cron schedules.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/pkg/errutil"
)

// DefaultTimeout bounds a single job run.
const DefaultTimeout = 10 * time.Minute

// Job is a named unit of periodic work.
type Job struct {
	Name    string
	Spec    string // six-field cron expression or descriptor such as "@every 1h"
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

type entry struct {
	id  cron.EntryID
	job Job
}

// Scheduler fires registered jobs on their schedules. A job that is still
// running when its next tick arrives is skipped for that tick.
type Scheduler struct {
	logger *slog.Logger
	loc    *time.Location
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]entry
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a stopped Scheduler. Times are UTC unless WithLocation is given.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:  slog.Default(),
		loc:     time.UTC,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	cl := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Add registers job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return oops.Code("JOB_INVALID").Errorf("job name is required")
	}
	if job.Run == nil {
		return oops.Code("JOB_INVALID").With("job", job.Name).Errorf("job has no run function")
	}
	if job.Timeout <= 0 {
		job.Timeout = DefaultTimeout
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[job.Name]; dup {
		return oops.Code("JOB_DUPLICATE").With("job", job.Name).Errorf("job already registered")
	}
	id, err := s.cron.AddFunc(job.Spec, func() {
		_ = s.run(s.runContext(), job) //nolint:errcheck // logged in run
	})
	if err != nil {
		return oops.Code("JOB_SCHEDULE_INVALID").
			With("job", job.Name).
			With("spec", job.Spec).
			Wrap(err)
	}
	s.entries[job.Name] = entry{id: id, job: job}
	return nil
}

// Start begins firing jobs. Runs derive their context from ctx, so cancelling
// it aborts in-flight work.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	parent := s.cancel
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	parent()

	s.cron.Start()
	for name, next := range s.NextRuns() {
		s.logger.Info("job scheduled", "job", name, "next_run", next)
	}
}

// Stop halts scheduling and waits for running jobs until ctx ends, at which
// point in-flight runs are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancelRuns()
		return nil
	case <-ctx.Done():
		s.cancelRuns()
		<-done.Done()
		return oops.Code("JOB_STOP_TIMEOUT").Wrap(ctx.Err())
	}
}

// NextRuns reports when each registered job fires next. Jobs report the
// zero time until the scheduler is started.
func (s *Scheduler) NextRuns() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Time, len(s.entries))
	for name, e := range s.entries {
		out[name] = s.cron.Entry(e.id).Next
	}
	return out
}

// RunNow runs the named job synchronously, outside its schedule, and
// returns its error.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return oops.Code("JOB_NOT_FOUND").With("job", name).Errorf("no such job")
	}
	return s.run(ctx, e.job)
}

func (s *Scheduler) cancelRuns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) run(parent context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(parent, job.Timeout)
	defer cancel()

	start := time.Now()
	s.logger.InfoContext(ctx, "job started", "job", job.Name)
	if err := job.Run(ctx); err != nil {
		err = oops.With("job", job.Name).Wrap(err)
		errutil.LogErrorContext(ctx, s.logger, "job failed", err)
		return err
	}
	s.logger.InfoContext(ctx, "job finished", "job", job.Name, "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
