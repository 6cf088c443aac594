package workerchild

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Run implements the full worker-child protocol against in/out: it
// writes a ready message once, then reads one JobRequest per line from
// in and writes exactly one Result per line to out, until in reaches
// EOF or a read, decode or write fails. Canceling ctx kills the command
// currently running (reported as a failed Result) but does not end the
// loop; Run keeps reading from in until EOF.
//
// Run executes at most one command at a time; it never starts a second
// command before the previous one's terminal reply has been written.
func Run(ctx context.Context, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	if err := enc.Encode(readyMessage{Status: statusReady}); err != nil {
		return fmt.Errorf("workerchild: write ready: %w", err)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var req JobRequest
		if err := json.Unmarshal(line, &req); err != nil {
			return fmt.Errorf("workerchild: decode job: %w", err)
		}

		result := runOne(ctx, req)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("workerchild: write result: %w", err)
		}
	}
	return scanner.Err()
}

// runOne executes a single job and returns its terminal Result. It never
// returns an error itself: every failure mode becomes a failed Result.
func runOne(ctx context.Context, req JobRequest) Result {
	if _, err := shellwords.Parse(req.Command); err != nil {
		return Result{Status: statusFailed, Job: req.Id, Error: "Unparseable command"}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", req.Command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return Result{Status: statusCompleted, Job: req.Id, Output: stdout.String()}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("Process exited with code %d", exitErr.ExitCode())
		}
		return Result{Status: statusFailed, Job: req.Id, Error: msg}
	}

	// Spawn error: executable/shell not found, permissions, etc.
	return Result{Status: statusFailed, Job: req.Id, Error: err.Error()}
}
