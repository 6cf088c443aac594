package queuectl

import (
	"context"
	"errors"
	"time"

	"github.com/queuectl/queuectl/internal"
)

// Shutdown runs the graceful-shutdown sequence: it refuses
// further writes, stops the scheduler and snapshotter, lets the pool
// drain (no respawn, idle workers closed), waits up to timeout for every
// in-flight job to finish, then takes a final snapshot. It returns
// ErrStopTimeout if quiescence was not reached in time; the process
// should still exit, but the final snapshot may capture jobs still
// Processing.
//
// Shutdown may be called at most once; a second call returns
// ErrDoubleStopped immediately without repeating the teardown.
func (c *Core) Shutdown(ctx context.Context, timeout time.Duration) error {
	err := c.tryStop(timeout, func() internal.DoneChan {
		return c.beginShutdown()
	})
	if errors.Is(err, ErrDoubleStopped) {
		return err
	}

	if snapErr := c.store.Snapshot(ctx); snapErr != nil {
		c.log.Error("queuectl: final snapshot failed", "err", snapErr)
		if err == nil {
			err = snapErr
		}
	}
	c.pool.Close()
	return err
}

// beginShutdown performs the non-blocking part of shutdown and returns
// the channel that closes exactly once the pool has drained.
func (c *Core) beginShutdown() internal.DoneChan {
	c.stateMu.Lock()
	c.shuttingDown = true
	c.stateMu.Unlock()

	c.scheduler.Stop()
	c.snapshotter.Stop()
	c.pool.Shutdown()

	c.checkQuiescence()
	return c.quiesced
}

// checkQuiescence closes c.quiesced, exactly once, the first time it
// observes zero jobs Processing. It is called after shutdown begins and
// on every terminal worker event thereafter; calls before shutdown
// begins are harmless no-ops since the channel is only ever closed once
// shuttingDown is true.
func (c *Core) checkQuiescence() {
	c.stateMu.Lock()
	down := c.shuttingDown
	c.stateMu.Unlock()
	if !down {
		return
	}
	if c.pool.Stats().Processing == 0 {
		c.quiesceOnce.Do(func() {
			close(c.quiesced)
		})
	}
}
