package pool

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"

	"github.com/queuectl/queuectl/workerchild"
)

// processConn adapts a real OS subprocess's stdin/stdout pipes to Conn.
type processConn struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
}

func (c *processConn) Send(req workerchild.JobRequest) error {
	return c.enc.Encode(req)
}

func (c *processConn) Close() error {
	return c.stdin.Close()
}

// NewProcessSpawner returns a SpawnFunc that launches execPath with args
// as a worker-child subprocess, wiring its stdin/stdout as the
// newline-delimited JSON transport described by the workerchild package.
// In production execPath is the queuectl binary's own path, re-exec'd
// with a hidden subcommand argument, and stderr is forwarded so a
// crashing worker's panic output lands in the parent's log stream.
func NewProcessSpawner(execPath string, args []string, stderr io.Writer) SpawnFunc {
	return func(ctx context.Context, workerID int, events chan<- Event) (Conn, error) {
		cmd := exec.CommandContext(ctx, execPath, args...)
		cmd.Stderr = stderr

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("pool: stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("pool: stdout pipe: %w", err)
		}

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("pool: start worker: %w", err)
		}

		go readChildOutput(workerID, stdout, events)
		go func() {
			err := cmd.Wait()
			events <- Event{WorkerID: workerID, Kind: EventExit, ExitErr: err}
		}()

		return &processConn{cmd: cmd, stdin: stdin, enc: json.NewEncoder(stdin)}, nil
	}
}

// readChildOutput reads one NDJSON line at a time from a worker child's
// stdout and turns each into a ready or result Event. It returns once the
// pipe reaches EOF, which happens when the child process exits; the exit
// Event itself is reported separately by the cmd.Wait goroutine.
func readChildOutput(workerID int, r io.Reader, events chan<- Event) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
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
			events <- Event{WorkerID: workerID, Kind: EventReady}
		case "completed", "failed":
			var res workerchild.Result
			if err := json.Unmarshal(line, &res); err != nil {
				continue
			}
			events <- Event{WorkerID: workerID, Kind: EventResult, Result: res}
		}
	}
}
