package syncer

import (
	"context"
	"time"

	"github.com/mcdexio/chain-collector/common/logging"
	"go.uber.org/atomic"
)

// Stepper ingests one block per call.
type Stepper interface {
	SyncNext(ctx context.Context) (more bool, err error)
}

// Driver runs the synchronizer whenever it was marked dirty. The watcher and the fallback
// poller mark it; the driver clears the flag before syncing, so events arriving meanwhile
// trigger another pass.
type Driver struct {
	logger   logging.Logger
	stepper  Stepper
	interval time.Duration
	backoff  time.Duration
	dirty    atomic.Bool

	// OnError, when set, sees every failed step.
	OnError func(error)
}

// NewDriver creates a driver polling the dirty flag every interval.
func NewDriver(logger logging.Logger, stepper Stepper, interval, backoff time.Duration) *Driver {
	return &Driver{logger: logger, stepper: stepper, interval: interval, backoff: backoff}
}

// MarkDirty requests a sync pass.
func (d *Driver) MarkDirty() { d.dirty.Store(true) }

// Dirty reports whether a pass is pending.
func (d *Driver) Dirty() bool { return d.dirty.Load() }

// Run drives the synchronizer until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("sync driver started, poll every %s", d.interval)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("sync driver receives shutdown signal.")
			return nil
		case <-ticker.C:
			if !d.dirty.CAS(true, false) {
				continue
			}
			if err := d.drain(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				d.logger.Warn("sync failed, retry in %s: %v", d.backoff, err)
				if d.OnError != nil {
					d.OnError(err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(d.backoff):
				}
				d.MarkDirty()
			}
		}
	}
}

// drain syncs until the node has no further block.
func (d *Driver) drain(ctx context.Context) error {
	for {
		more, err := d.stepper.SyncNext(ctx)
		if err != nil {
			return err
		}
		if !more || ctx.Err() != nil {
			return nil
		}
	}
}
