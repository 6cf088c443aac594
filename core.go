package queuectl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/queuectl/queuectl/config"
	"github.com/queuectl/queuectl/internal"
	"github.com/queuectl/queuectl/job"
	"github.com/queuectl/queuectl/pool"
	"github.com/queuectl/queuectl/store"
	"github.com/queuectl/queuectl/workerchild"
)

var (
	// ErrShuttingDown is returned by every write operation once shutdown
	// has begun.
	ErrShuttingDown = errors.New("queuectl: server is shutting down")

	// ErrNotFound is returned when an operation references a job id or
	// config key that does not exist in the expected state.
	ErrNotFound = errors.New("queuectl: not found")

	// ErrConflict is returned by Enqueue when the supplied id already
	// exists.
	ErrConflict = errors.New("queuectl: conflict")

	// ErrValidation is returned for malformed input: empty command,
	// empty id where one is required, unknown or out-of-range config
	// values.
	ErrValidation = errors.New("queuectl: validation")
)

// Core is the single point through which every state transition in the
// system flows: it owns the job store and the worker pool, runs the
// scheduler tick and the snapshotter, and coordinates shutdown. Its
// exported methods serialize on stateMu only for the flag check and
// release it before touching the store or pool, which have their own
// concurrency story (store.Store, pool.Pool).
type Core struct {
	lcBase

	store   *store.Store
	pool    *pool.Pool
	log     *slog.Logger
	metrics Metrics

	stateMu      sync.Mutex
	shuttingDown bool

	scheduler   internal.TimerTask
	snapshotter internal.TimerTask
	tickBusy    sync.Mutex

	quiesceOnce sync.Once
	quiesced    chan struct{}
}

// NewCore wires a Core over an already-open store and an unstarted pool.
func NewCore(st *store.Store, workerPool *pool.Pool, log *slog.Logger) *Core {
	if log == nil {
		log = slog.Default()
	}
	return &Core{
		store:    st,
		pool:     workerPool,
		log:      log,
		metrics:  noopMetrics{},
		quiesced: make(chan struct{}),
	}
}

// Start brings the pool up and begins the scheduler tick and snapshot
// loops. It may be called at most once per Core.
func (c *Core) Start(ctx context.Context) error {
	if err := c.tryStart(); err != nil {
		return err
	}

	raw, err := c.store.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("queuectl: load config at startup: %w", err)
	}
	cfg := config.Load(raw)

	if err := c.pool.Start(ctx, c.onWorkerResult, c.onWorkerCrash); err != nil {
		return fmt.Errorf("queuectl: start pool: %w", err)
	}

	c.scheduler.Start(ctx, c.tick, cfg.TickInterval())
	c.snapshotter.Start(ctx, c.snapshotTick, cfg.SaveInterval())
	return nil
}

func (c *Core) loadConfig(ctx context.Context) (config.Values, error) {
	raw, err := c.store.GetConfig(ctx)
	if err != nil {
		return config.Values{}, err
	}
	return config.Load(raw), nil
}

// Enqueue inserts a new job. It refuses with ErrShuttingDown once
// shutdown has begun.
func (c *Core) Enqueue(ctx context.Context, id, command string, maxRetries *int, runAfter time.Time) (*job.Job, error) {
	if c.isShuttingDown() {
		return nil, ErrShuttingDown
	}
	if command == "" {
		return nil, fmt.Errorf("%w: command is required", ErrValidation)
	}

	j, err := c.store.Enqueue(ctx, id, command, maxRetries, runAfter)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: job id already exists", ErrConflict)
		}
		return nil, err
	}
	c.metrics.JobEnqueued()
	return j, nil
}

// List returns jobs, optionally filtered to one state. state == job.Unknown
// means no filter.
func (c *Core) List(ctx context.Context, state job.State) ([]*job.Job, error) {
	return c.store.List(ctx, state)
}

// StatusReport is the response shape for the Status control operation.
type StatusReport struct {
	Jobs    map[job.State]int
	Workers pool.Stats
}

// Status reports job counts per state alongside worker-pool occupancy.
func (c *Core) Status(ctx context.Context) (StatusReport, error) {
	jobs, err := c.store.Summarize(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{Jobs: jobs, Workers: c.pool.Stats()}, nil
}

// DLQList returns every Dead job.
func (c *Core) DLQList(ctx context.Context) ([]*job.Job, error) {
	return c.store.List(ctx, job.Dead)
}

// DLQRetryOne moves a single Dead job back to Pending with a fresh retry
// budget.
func (c *Core) DLQRetryOne(ctx context.Context, id string) error {
	if c.isShuttingDown() {
		return ErrShuttingDown
	}
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if err := c.store.RequeueDead(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: job %q is not dead", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// DLQRetryAll moves every Dead job back to Pending, returning the count
// requeued. It returns ErrNotFound if no job was Dead.
func (c *Core) DLQRetryAll(ctx context.Context) (int64, error) {
	if c.isShuttingDown() {
		return 0, ErrShuttingDown
	}
	count, err := c.store.RequeueAllDead(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, fmt.Errorf("%w: no dead jobs", ErrNotFound)
		}
		return 0, err
	}
	return count, nil
}

// ConfigList returns the effective configuration: every recognized key,
// using the stored value where one exists and the schema default
// otherwise.
func (c *Core) ConfigList(ctx context.Context) (map[string]string, error) {
	stored, err := c.store.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	ret := make(map[string]string, len(config.Keys()))
	for _, k := range config.Keys() {
		ret[string(k)] = config.Default(k)
	}
	for k, v := range stored {
		ret[k] = v
	}
	return ret, nil
}

// ConfigGet returns the effective value of one key, or ErrNotFound if key
// is not recognized.
func (c *Core) ConfigGet(ctx context.Context, key string) (string, error) {
	if !config.Known(key) {
		return "", fmt.Errorf("%w: unknown config key %q", ErrNotFound, key)
	}
	all, err := c.ConfigList(ctx)
	if err != nil {
		return "", err
	}
	return all[key], nil
}

// ConfigSet validates and persists one key/value pair.
func (c *Core) ConfigSet(ctx context.Context, key, value string) (string, error) {
	if c.isShuttingDown() {
		return "", ErrShuttingDown
	}
	n, err := config.Validate(config.Key(key), value)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrValidation, err)
	}
	sanitized := fmt.Sprintf("%d", n)
	if err := c.store.SetConfig(ctx, key, sanitized); err != nil {
		return "", err
	}
	return sanitized, nil
}

func (c *Core) isShuttingDown() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.shuttingDown
}

// onWorkerResult applies a worker's terminal reply: complete on success,
// or run the retry/backoff decision on failure. It is invoked by the
// pool's single event-loop goroutine, so calls for distinct jobs never
// overlap with one another.
func (c *Core) onWorkerResult(jobID string, result workerchild.Result) {
	ctx := context.Background()
	if result.Status == "completed" {
		if err := c.store.Complete(ctx, jobID); err != nil {
			c.log.Error("queuectl: complete failed", "job", jobID, "err", err)
		} else {
			c.metrics.JobCompleted()
		}
		c.checkQuiescence()
		return
	}

	c.metrics.JobFailed()
	c.applyFailure(ctx, jobID)
	c.checkQuiescence()
}

// onWorkerCrash recovers a job whose worker died before replying,
// returning it to Pending without charging an attempt.
func (c *Core) onWorkerCrash(jobID string) {
	ctx := context.Background()
	if err := c.store.ResetProcessing(ctx, jobID); err != nil {
		c.log.Error("queuectl: reset_processing after crash failed", "job", jobID, "err", err)
	}
	c.checkQuiescence()
}

func (c *Core) applyFailure(ctx context.Context, jobID string) {
	j, err := c.store.Get(ctx, jobID)
	if err != nil {
		c.log.Error("queuectl: load job for retry decision failed", "job", jobID, "err", err)
		return
	}
	cfg, err := c.loadConfig(ctx)
	if err != nil {
		c.log.Error("queuectl: load config for retry decision failed", "job", jobID, "err", err)
		return
	}

	decision := decideRetry(j, cfg, time.Now())
	if err := c.store.Fail(ctx, jobID, decision.Attempts, decision.State, decision.RunAfter); err != nil {
		c.log.Error("queuectl: fail transition failed", "job", jobID, "err", err)
		return
	}
	if decision.State == job.Dead {
		c.metrics.JobDead()
	}
}
