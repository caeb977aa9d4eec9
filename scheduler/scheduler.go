package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mcdexio/chain-collector/common/logging"
	"github.com/mcdexio/chain-collector/semaphore"
	"github.com/robfig/cron/v3"
)

// Job is a periodic unit of work. Spec takes six fields, seconds first.
type Job struct {
	Name string
	Spec string
	Work semaphore.Work
}

// Scheduler runs every job on its cron spec, each behind its own semaphore so that a job
// never overlaps itself.
type Scheduler struct {
	logger   logging.Logger
	cron     *cron.Cron
	timeout  time.Duration
	observer semaphore.Observer

	mu      sync.Mutex
	ctx     context.Context
	running bool
	pending []*semaphore.Semaphore
	guards  map[string]*semaphore.Semaphore
}

// New creates a scheduler whose jobs time out after timeout. observer may be nil.
func New(logger logging.Logger, timeout time.Duration, observer semaphore.Observer) *Scheduler {
	return &Scheduler{
		logger:   logger,
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cronLogger{logger}))),
		timeout:  timeout,
		observer: observer,
		ctx:      context.Background(),
		guards:   map[string]*semaphore.Semaphore{},
	}
}

// Add registers job. Names must be unique.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.guards[job.Name]; ok {
		return fmt.Errorf("job %s already scheduled", job.Name)
	}
	guard := semaphore.New(s.logger, job.Name, s.timeout, job.Work)
	if s.observer != nil {
		guard.WithObserver(s.observer)
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { guard.Run(s.context()) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", job.Name, job.Spec, err)
	}
	s.guards[job.Name] = guard
	s.logger.Info("scheduled %s at %q", job.Name, job.Spec)
	return nil
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Trigger runs the named job now, outside its schedule, still guarded. Before Run it is queued
// and fired once Run has its context.
func (s *Scheduler) Trigger(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	guard, ok := s.guards[name]
	if !ok {
		return false
	}
	if !s.running {
		s.pending = append(s.pending, guard)
		return true
	}
	go guard.Run(s.ctx)
	return true
}

// Run starts the cron loop and blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.running = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, guard := range pending {
		go guard.Run(ctx)
	}
	s.cron.Start()
	s.logger.Info("scheduler started with %d jobs", len(s.cron.Entries()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// cronLogger adapts the collector logger to cron.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("%s%s", msg, formatKV(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("%s: %v%s", msg, err, formatKV(keysAndValues))
}

func formatKV(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
