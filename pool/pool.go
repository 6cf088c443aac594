package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/queuectl/queuectl/workerchild"
)

// EventKind distinguishes the three things a worker-child connection can
// report back to the pool.
type EventKind int

const (
	// EventReady fires once, when a newly spawned worker announces it is
	// ready to accept a job.
	EventReady EventKind = iota
	// EventResult fires when a bound worker reports a terminal outcome
	// for its current job.
	EventResult
	// EventExit fires when a worker's underlying process has exited, for
	// any reason: clean shutdown, crash, or kill.
	EventExit
)

// Event is one message from a worker connection to the pool's event loop.
type Event struct {
	WorkerID int
	Kind     EventKind
	Result   workerchild.Result
	ExitErr  error
}

// Conn is the transport half of one worker-child connection: sending it
// jobs and closing it down. Implementations push Event values onto the
// channel handed to the SpawnFunc that created them; Pool never reads
// from the worker directly.
type Conn interface {
	Send(req workerchild.JobRequest) error
	Close() error
}

// SpawnFunc starts one worker and wires its connection so that it emits
// Events, tagged with workerID, onto events. child_proc.go provides the
// real implementation (a re-exec'd OS subprocess); tests provide fakes.
type SpawnFunc func(ctx context.Context, workerID int, events chan<- Event) (Conn, error)

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Processing int
	Idle       int
	Live       int
}

type slot struct {
	conn  Conn
	jobID string // "" when idle
}

// Pool owns the set of live worker-child processes: spawning them,
// tracking which are idle versus bound to a job, dispatching jobs to idle
// workers, and respawning crashed workers unless the pool is shutting
// down.
type Pool struct {
	spawn SpawnFunc
	size  int
	log   *slog.Logger

	mu      sync.Mutex
	slots   map[int]*slot
	idleIDs []int
	nextID  int

	shuttingDown bool

	events   chan Event
	quit     chan struct{}
	onResult func(jobID string, result workerchild.Result)
	onCrash  func(jobID string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Pool that will maintain size live workers, spawned via
// spawn. Call Start to actually bring the workers up.
func New(spawn SpawnFunc, size int, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		spawn: spawn,
		size:  size,
		log:   log,
		slots: make(map[int]*slot),
	}
}

// Start spawns the configured number of workers and begins routing their
// events. onResult is called once per completed/failed job, with the
// worker returned to the idle queue beforehand. onCrash is called once
// per job whose worker died before replying, so the caller can put the
// job back in a dispatchable state.
func (p *Pool) Start(ctx context.Context, onResult func(jobID string, result workerchild.Result), onCrash func(jobID string)) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.onResult = onResult
	p.onCrash = onCrash
	p.events = make(chan Event, p.size*4+4)
	p.quit = make(chan struct{})

	p.wg.Add(1)
	go p.loop()

	for i := 0; i < p.size; i++ {
		if err := p.spawnOne(); err != nil {
			return fmt.Errorf("pool: spawn worker %d: %w", i, err)
		}
	}
	return nil
}

func (p *Pool) spawnOne() error {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	// Reserve the slot before calling spawn, so a ready event racing in
	// on a background goroutine is never dropped for lack of a slot.
	p.slots[id] = &slot{}
	p.mu.Unlock()

	conn, err := p.spawn(p.ctx, id, p.events)
	if err != nil {
		p.mu.Lock()
		delete(p.slots, id)
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.slots[id].conn = conn
	p.mu.Unlock()
	return nil
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		select {
		case ev := <-p.events:
			p.handle(ev)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) handle(ev Event) {
	switch ev.Kind {
	case EventReady:
		p.mu.Lock()
		var late Conn
		if s, live := p.slots[ev.WorkerID]; live {
			if p.shuttingDown {
				// Became ready after the drain began; close it rather
				// than admitting it to the idle queue.
				late = s.conn
			} else {
				p.idleIDs = append(p.idleIDs, ev.WorkerID)
			}
		}
		p.mu.Unlock()

		if late != nil {
			if err := late.Close(); err != nil {
				p.log.Error("pool: close late-ready worker failed", "worker", ev.WorkerID, "err", err)
			}
		}

	case EventResult:
		p.mu.Lock()
		jobID := ""
		var drained Conn
		if s, ok := p.slots[ev.WorkerID]; ok {
			jobID = s.jobID
			s.jobID = ""
			if p.shuttingDown {
				// The pool is draining; close the worker instead of
				// returning it to the idle queue.
				drained = s.conn
			} else {
				p.idleIDs = append(p.idleIDs, ev.WorkerID)
			}
		}
		p.mu.Unlock()

		if drained != nil {
			if err := drained.Close(); err != nil {
				p.log.Error("pool: close drained worker failed", "worker", ev.WorkerID, "err", err)
			}
		}
		if jobID != "" && p.onResult != nil {
			p.onResult(jobID, ev.Result)
		}

	case EventExit:
		p.mu.Lock()
		jobID := ""
		if s, ok := p.slots[ev.WorkerID]; ok {
			jobID = s.jobID
			delete(p.slots, ev.WorkerID)
			p.idleIDs = removeID(p.idleIDs, ev.WorkerID)
		}
		shuttingDown := p.shuttingDown
		p.mu.Unlock()

		if jobID != "" && p.onCrash != nil {
			p.onCrash(jobID)
		}
		if !shuttingDown {
			if err := p.spawnOne(); err != nil {
				p.log.Error("pool: respawn failed", "worker", ev.WorkerID, "err", err)
			}
		}
	}
}

func removeID(ids []int, target int) []int {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Dispatch binds jobID/command to one idle worker and sends it, returning
// true on success. It returns false without side effects if no worker is
// currently idle.
func (p *Pool) Dispatch(jobID, command string) bool {
	p.mu.Lock()
	if len(p.idleIDs) == 0 {
		p.mu.Unlock()
		return false
	}
	id := p.idleIDs[0]
	p.idleIDs = p.idleIDs[1:]
	s, ok := p.slots[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	s.jobID = jobID
	conn := s.conn
	p.mu.Unlock()

	if err := conn.Send(workerchild.JobRequest{Id: jobID, Command: command}); err != nil {
		// The worker's pipe is broken; clear the binding and leave the
		// worker out of the idle queue. Its exit event will clean up
		// the slot and trigger a respawn.
		p.mu.Lock()
		if s, ok := p.slots[id]; ok && s.jobID == jobID {
			s.jobID = ""
		}
		p.mu.Unlock()
		p.log.Error("pool: send to worker failed", "worker", id, "job", jobID, "err", err)
		return false
	}
	return true
}

// Stats reports current pool occupancy. Workers that are still spawning
// (no ready message yet) are in neither count, so Live may briefly lag
// the configured size.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	processing := 0
	for _, s := range p.slots {
		if s.jobID != "" {
			processing++
		}
	}
	idle := len(p.idleIDs)
	return Stats{Processing: processing, Idle: idle, Live: processing + idle}
}

// Shutdown stops respawning crashed or exiting workers and closes every
// currently idle worker's connection, which causes it to exit cleanly.
// Workers bound to a job are left alone; they are expected to finish
// naturally and report through onResult, at which point the exit that
// eventually follows them will not be respawned either.
//
// Shutdown does not wait for bound workers to drain; that quiescence
// wait belongs to the lifecycle controller, which knows the in-flight
// job count. Call Close once that wait is over to tear the pool down
// completely.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shuttingDown = true
	idle := p.idleIDs
	p.idleIDs = nil
	p.mu.Unlock()

	for _, id := range idle {
		p.mu.Lock()
		s, ok := p.slots[id]
		p.mu.Unlock()
		if ok {
			if err := s.conn.Close(); err != nil {
				p.log.Error("pool: close idle worker failed", "worker", id, "err", err)
			}
		}
	}
}

// Close tears the pool down after Shutdown's drain has completed: it
// cancels the context passed to every spawned worker (reaping any that
// failed to exit on their own) and stops the event loop. Close must only
// be called once no jobs are in flight.
//
// The events channel is never closed: exit events from reaped workers
// can still arrive after the loop stops, and its buffer absorbs them.
func (p *Pool) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	close(p.quit)
	p.wg.Wait()
}
