package queuectl_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/queuectl/queuectl"
	"github.com/queuectl/queuectl/job"
	"github.com/queuectl/queuectl/pool"
	"github.com/queuectl/queuectl/store"
	"github.com/queuectl/queuectl/workerchild"
)

type fakeConn struct {
	enc   *json.Encoder
	stdin io.WriteCloser
}

func (c *fakeConn) Send(req workerchild.JobRequest) error { return c.enc.Encode(req) }
func (c *fakeConn) Close() error                          { return c.stdin.Close() }

func liveSpawner() pool.SpawnFunc {
	return func(ctx context.Context, id int, events chan<- pool.Event) (pool.Conn, error) {
		inR, inW := io.Pipe()
		outR, outW := io.Pipe()

		go func() {
			workerchild.Run(ctx, inR, outW)
			outW.Close()
		}()
		go func() {
			scanner := bufio.NewScanner(outR)
			for scanner.Scan() {
				line := bytes.TrimSpace(scanner.Bytes())
				if len(line) == 0 {
					continue
				}
				var probe struct {
					Status string `json:"status"`
				}
				if err := json.Unmarshal(line, &probe); err != nil {
					continue
				}
				switch probe.Status {
				case "ready":
					events <- pool.Event{WorkerID: id, Kind: pool.EventReady}
				case "completed", "failed":
					var res workerchild.Result
					if err := json.Unmarshal(line, &res); err != nil {
						continue
					}
					events <- pool.Event{WorkerID: id, Kind: pool.EventResult, Result: res}
				}
			}
			events <- pool.Event{WorkerID: id, Kind: pool.EventExit}
		}()

		return &fakeConn{enc: json.NewEncoder(inW), stdin: inW}, nil
	}
}

func newTestCore(t *testing.T, workers int) (*queuectl.Core, *store.Store) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	p := pool.New(liveSpawner(), workers, nil)
	core := queuectl.NewCore(st, p, nil)
	return core, st
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHappyPathJobCompletes(t *testing.T) {
	core, _ := newTestCore(t, 2)
	ctx := context.Background()
	if err := core.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { core.Shutdown(context.Background(), 2*time.Second) })

	j, err := core.Enqueue(ctx, "job-pass", "echo success", nil, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		got, err := core.List(ctx, job.Completed)
		if err != nil {
			t.Fatal(err)
		}
		for _, g := range got {
			if g.Id == j.Id {
				return true
			}
		}
		return false
	})
}

func TestAllRetriesFailReachesDeadImmediatelyWithZeroBudget(t *testing.T) {
	core, _ := newTestCore(t, 2)
	ctx := context.Background()
	if err := core.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { core.Shutdown(context.Background(), 2*time.Second) })

	zero := 0
	j, err := core.Enqueue(ctx, "job-fail", "exit 1", &zero, time.Time{})
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		got, err := core.List(ctx, job.Dead)
		if err != nil {
			t.Fatal(err)
		}
		for _, g := range got {
			if g.Id == j.Id {
				return g.Attempts == 1
			}
		}
		return false
	})
}

func TestDLQRetryOneMovesJobOutOfDead(t *testing.T) {
	core, _ := newTestCore(t, 2)
	ctx := context.Background()
	if err := core.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { core.Shutdown(context.Background(), 2*time.Second) })

	zero := 0
	j, err := core.Enqueue(ctx, "job-dlq", "exit 1", &zero, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		got, _ := core.List(ctx, job.Dead)
		for _, g := range got {
			if g.Id == j.Id {
				return true
			}
		}
		return false
	})

	if err := core.DLQRetryOne(ctx, j.Id); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		got, _ := core.List(ctx, job.Unknown)
		for _, g := range got {
			if g.Id == j.Id {
				return g.State != job.Dead
			}
		}
		return false
	})
}

func TestDLQRetryOneUnknownIdIsNotFound(t *testing.T) {
	core, _ := newTestCore(t, 1)
	ctx := context.Background()
	if err := core.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { core.Shutdown(context.Background(), 2*time.Second) })

	err := core.DLQRetryOne(ctx, "no-such-job")
	if !errors.Is(err, queuectl.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShutdownRefusesFurtherWrites(t *testing.T) {
	core, _ := newTestCore(t, 1)
	ctx := context.Background()
	if err := core.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if err := core.Shutdown(ctx, 2*time.Second); err != nil {
		t.Fatal(err)
	}

	_, err := core.Enqueue(ctx, "too-late", "echo hi", nil, time.Time{})
	if !errors.Is(err, queuectl.ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestShutdownWaitsForProcessingJobToFinish(t *testing.T) {
	core, _ := newTestCore(t, 1)
	ctx := context.Background()
	if err := core.Start(ctx); err != nil {
		t.Fatal(err)
	}

	j, err := core.Enqueue(ctx, "job-slow", "sleep 0.3 && echo done", nil, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		status, err := core.Status(ctx)
		if err != nil {
			t.Fatal(err)
		}
		return status.Workers.Processing == 1
	})

	if err := core.Shutdown(ctx, 2*time.Second); err != nil {
		t.Fatal(err)
	}

	got, err := core.List(context.Background(), job.Completed)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, g := range got {
		if g.Id == j.Id {
			found = true
		}
	}
	if !found {
		t.Fatal("expected job to complete before shutdown returned")
	}
}
