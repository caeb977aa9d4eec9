package semaphore

import (
	"context"
	"fmt"
	"time"

	cerrors "github.com/mcdexio/chain-collector/common/errors"
	"github.com/mcdexio/chain-collector/common/logging"
	"go.uber.org/atomic"
)

// Work is a unit of scheduled work. It should return once ctx is done.
type Work func(ctx context.Context) error

// Observer is told how every run ended.
type Observer func(name string, outcome Outcome, elapsed time.Duration)

// Outcome of a guarded run.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
	TimedOut  Outcome = "timeout"
	Skipped   Outcome = "skipped"
)

// Semaphore runs one named job at a time. A run that finds the job in flight returns at
// once; errors, panics and timeouts are logged and never reach the caller.
type Semaphore struct {
	logger  logging.Logger
	name    string
	timeout time.Duration
	work    Work
	observe Observer
	running atomic.Bool
}

// New creates a guard for work.
func New(logger logging.Logger, name string, timeout time.Duration, work Work) *Semaphore {
	return &Semaphore{
		logger:  logger.With("job", name),
		name:    name,
		timeout: timeout,
		work:    work,
	}
}

// WithObserver sets the run observer.
func (s *Semaphore) WithObserver(o Observer) *Semaphore {
	s.observe = o
	return s
}

// Name returns the job name.
func (s *Semaphore) Name() string { return s.name }

// Running reports whether a run is in flight.
func (s *Semaphore) Running() bool { return s.running.Load() }

// Run executes the job unless it is already running. It returns when the work ends or the
// timeout expires, whichever is first; in the latter case the work keeps its cancelled ctx
// and the guard is released.
func (s *Semaphore) Run(ctx context.Context) {
	if !s.running.CAS(false, true) {
		s.logger.Info("%s is still running, skipped", s.name)
		s.report(Skipped, 0)
		return
	}
	defer s.running.Store(false)

	start := time.Now()
	s.logger.Info("%s started", s.name)

	runCtx, cancel := context.WithCancel(ctx)
	if s.timeout > 0 {
		cancel()
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var err error
		defer func() { done <- err }()
		defer cerrors.Recover(&err)
		err = s.work(runCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Error("%s failed after %s: %v", s.name, time.Since(start), err)
			s.report(Failed, time.Since(start))
			return
		}
		s.logger.Info("%s ended in %s", s.name, time.Since(start))
		s.report(Succeeded, time.Since(start))
	case <-runCtx.Done():
		err := fmt.Errorf("%s: %w", s.name, runCtx.Err())
		if ctx.Err() == nil {
			s.logger.Error("%s timed out after %s: %v", s.name, s.timeout, err)
			s.report(TimedOut, time.Since(start))
			return
		}
		s.logger.Warn("%s interrupted: %v", s.name, err)
		s.report(Failed, time.Since(start))
	}
}

func (s *Semaphore) report(o Outcome, elapsed time.Duration) {
	if s.observe != nil {
		s.observe(s.name, o, elapsed)
	}
}
