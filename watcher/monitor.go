package watcher

import (
	"context"
	"time"

	"github.com/mcdexio/chain-collector/common/logging"
	"go.uber.org/atomic"
)

// Restarter is what the monitor kicks when events stop.
type Restarter interface {
	Restart()
}

// Monitor restarts a watcher whose socket stays open but delivers nothing for a window.
type Monitor struct {
	logger logging.Logger
	window time.Duration
	target Restarter
	count  atomic.Int64

	// OnRestart, when set, is called after every forced restart.
	OnRestart func()
}

// NewMonitor creates a monitor with the given liveness window.
func NewMonitor(logger logging.Logger, window time.Duration, target Restarter) *Monitor {
	return &Monitor{logger: logger, window: window, target: target}
}

// Observe records one received event.
func (m *Monitor) Observe() { m.count.Inc() }

// Check closes the current window and restarts the target if it saw no event.
func (m *Monitor) Check() bool {
	if m.count.Swap(0) > 0 {
		return false
	}
	m.logger.Warn("no event in the last %s", m.window)
	m.target.Restart()
	if m.OnRestart != nil {
		m.OnRestart()
	}
	return true
}

// Run checks once per window until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check()
		}
	}
}
