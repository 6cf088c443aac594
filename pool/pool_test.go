package pool_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/queuectl/queuectl/pool"
	"github.com/queuectl/queuectl/workerchild"
)

// fakeConn adapts an in-process io.Pipe writer to pool.Conn, so tests
// never spawn a real OS process.
type fakeConn struct {
	enc   *json.Encoder
	stdin io.WriteCloser
}

func (c *fakeConn) Send(req workerchild.JobRequest) error { return c.enc.Encode(req) }
func (c *fakeConn) Close() error                          { return c.stdin.Close() }

// liveSpawner wires workerchild.Run itself as the "child", connected
// through pipes, so the real protocol logic runs end to end.
func liveSpawner() pool.SpawnFunc {
	return func(ctx context.Context, id int, events chan<- pool.Event) (pool.Conn, error) {
		inR, inW := io.Pipe()
		outR, outW := io.Pipe()

		go func() {
			workerchild.Run(ctx, inR, outW)
			outW.Close()
		}()
		go pumpEvents(id, outR, events)

		return &fakeConn{enc: json.NewEncoder(inW), stdin: inW}, nil
	}
}

// crashingSpawner reports ready normally but, on receiving its first
// job, exits without ever writing a result, simulating a worker that
// dies mid-command.
func crashingSpawner() pool.SpawnFunc {
	return func(ctx context.Context, id int, events chan<- pool.Event) (pool.Conn, error) {
		inR, inW := io.Pipe()
		events <- pool.Event{WorkerID: id, Kind: pool.EventReady}

		go func() {
			// Block until Send has written a whole job line (an io.Pipe
			// write only returns once all of it is read), then "crash".
			bufio.NewReader(inR).ReadBytes('\n')
			events <- pool.Event{WorkerID: id, Kind: pool.EventExit, ExitErr: context.Canceled}
		}()

		return &fakeConn{enc: json.NewEncoder(inW), stdin: inW}, nil
	}
}

func pumpEvents(id int, r io.Reader, events chan<- pool.Event) {
	scanner := bufio.NewScanner(r)
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
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStartSpawnsConfiguredWorkerCount(t *testing.T) {
	p := pool.New(liveSpawner(), 3, nil)
	if err := p.Start(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return p.Stats().Idle == 3 })
	stats := p.Stats()
	if stats.Live != 3 || stats.Processing != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestDispatchBindsIdleWorkerAndReportsResult(t *testing.T) {
	p := pool.New(liveSpawner(), 1, nil)

	results := make(chan workerchild.Result, 1)
	onResult := func(jobID string, res workerchild.Result) { results <- res }

	if err := p.Start(context.Background(), onResult, nil); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return p.Stats().Idle == 1 })

	if !p.Dispatch("job-1", "echo hi") {
		t.Fatal("expected dispatch to succeed with an idle worker")
	}

	select {
	case res := <-results:
		if res.Status != "completed" || res.Job != "job-1" {
			t.Fatalf("unexpected result: %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	waitFor(t, func() bool { return p.Stats().Idle == 1 && p.Stats().Processing == 0 })
}

func TestDispatchWithNoIdleWorkerReturnsFalse(t *testing.T) {
	p := pool.New(liveSpawner(), 1, nil)
	if err := p.Start(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return p.Stats().Idle == 1 })

	if !p.Dispatch("job-1", "sleep 0.2") {
		t.Fatal("expected first dispatch to succeed")
	}
	if p.Dispatch("job-2", "echo hi") {
		t.Fatal("expected second dispatch to fail: no idle worker")
	}
}

func TestCrashedWorkerIsRespawnedAndJobReportedViaOnCrash(t *testing.T) {
	p := pool.New(crashingSpawner(), 1, nil)

	crashed := make(chan string, 1)
	onCrash := func(jobID string) { crashed <- jobID }

	if err := p.Start(context.Background(), nil, onCrash); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return p.Stats().Idle == 1 })

	if !p.Dispatch("job-1", "echo hi") {
		t.Fatal("expected dispatch to succeed")
	}

	select {
	case jobID := <-crashed:
		if jobID != "job-1" {
			t.Fatalf("expected job-1, got %q", jobID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for crash callback")
	}

	// The pool should have respawned a replacement worker.
	waitFor(t, func() bool { return p.Stats().Live == 1 })
}

func TestShutdownStopsRespawnAndClosesIdleWorkers(t *testing.T) {
	p := pool.New(liveSpawner(), 2, nil)
	if err := p.Start(context.Background(), nil, nil); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return p.Stats().Idle == 2 })

	p.Shutdown()
	waitFor(t, func() bool { return p.Stats().Live == 0 })

	p.Close()
}
