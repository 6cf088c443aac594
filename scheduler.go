package queuectl

import (
	"context"
	"time"
)

// tick implements one iteration of the scheduler: at most one job is
// claimed and dispatched per call. It is driven by c.scheduler, a
// TimerTask firing at the configured tick interval.
func (c *Core) tick(ctx context.Context) {
	if c.isShuttingDown() {
		return
	}
	if c.pool.Stats().Idle == 0 {
		return
	}
	if !c.tickBusy.TryLock() {
		return
	}
	defer c.tickBusy.Unlock()

	j, err := c.store.ClaimNext(ctx, time.Now())
	if err != nil {
		c.log.Error("queuectl: claim_next failed", "err", err)
		return
	}
	if j == nil {
		return
	}

	if !c.pool.Dispatch(j.Id, j.Command) {
		// Every idle worker we saw a moment ago raced away, or the send
		// itself failed. Either way the job is stuck in Processing with
		// no worker bound to it; put it back without charging an
		// attempt, same as a crash-recovery reset, so a later tick can
		// retry the dispatch.
		if err := c.store.ResetProcessing(ctx, j.Id); err != nil {
			c.log.Error("queuectl: reset_processing after failed dispatch", "job", j.Id, "err", err)
		}
		return
	}
	c.metrics.JobDispatched()
}

// snapshotTick takes a snapshot of the store if it is dirty. It is
// driven by c.snapshotter, a TimerTask firing at the configured save
// interval.
func (c *Core) snapshotTick(ctx context.Context) {
	if _, err := c.store.SnapshotIfDirty(ctx); err != nil {
		c.log.Error("queuectl: snapshot failed", "err", err)
	}
}
