// Package pool implements the worker pool: the set of live worker-child
// processes, their readiness/binding state, and crash recovery.
//
// A worker is in exactly one of four states at any instant: idle (ready
// and unbound), processing (bound to one job id), in the process of
// being spawned (not yet in either set; it joins the idle queue only
// once its ready message arrives), or closing (closed during a drain and
// not yet exited; in neither set). Pool exposes this as a small surface:
// Dispatch to bind an idle worker to a job, Stats to observe pool
// occupancy, and two callbacks (onResult, onCrash) through which the
// scheduler and lifecycle controller learn about terminal outcomes.
//
// All worker events are funneled onto a single internal event channel and
// processed by one goroutine, so Pool needs no additional locking beyond
// a small mutex guarding the idle queue and binding map that Dispatch,
// Shutdown and the event loop all touch. This mirrors the single-execution-context
// model the rest of the system uses for its own state transitions.
package pool
