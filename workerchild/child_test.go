package workerchild_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/queuectl/queuectl/workerchild"
)

func encodeLines(t *testing.T, msgs ...any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			t.Fatal(err)
		}
	}
	return &buf
}

func readLines(t *testing.T, r *bytes.Buffer) []map[string]any {
	t.Helper()
	var ret []map[string]any
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatal(err)
		}
		ret = append(ret, m)
	}
	return ret
}

func TestRunSendsReadyThenCompletesSuccessfulCommand(t *testing.T) {
	in := encodeLines(t, map[string]any{"id": "job-1", "command": "echo hello"})
	var out bytes.Buffer

	if err := workerchild.Run(context.Background(), in, &out); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, &out)
	if len(lines) != 2 {
		t.Fatalf("expected ready + 1 result, got %d lines: %+v", len(lines), lines)
	}
	if lines[0]["status"] != "ready" {
		t.Fatalf("expected first line to be ready, got %+v", lines[0])
	}
	if lines[1]["status"] != "completed" {
		t.Fatalf("expected completed, got %+v", lines[1])
	}
	if lines[1]["job"] != "job-1" {
		t.Fatalf("expected job-1, got %+v", lines[1])
	}
}

func TestRunReportsNonZeroExit(t *testing.T) {
	in := encodeLines(t, map[string]any{"id": "job-2", "command": "exit 7"})
	var out bytes.Buffer

	if err := workerchild.Run(context.Background(), in, &out); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, &out)
	if len(lines) != 2 || lines[1]["status"] != "failed" {
		t.Fatalf("expected failed result, got %+v", lines)
	}
}

func TestRunReportsUnparseableCommand(t *testing.T) {
	in := encodeLines(t, map[string]any{"id": "job-3", "command": `echo "unterminated`})
	var out bytes.Buffer

	if err := workerchild.Run(context.Background(), in, &out); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, &out)
	if len(lines) != 2 || lines[1]["status"] != "failed" || lines[1]["error"] != "Unparseable command" {
		t.Fatalf("expected Unparseable command failure, got %+v", lines)
	}
}

func TestRunProcessesMultipleJobsInOrder(t *testing.T) {
	in := encodeLines(t,
		map[string]any{"id": "a", "command": "echo a"},
		map[string]any{"id": "b", "command": "echo b"},
	)
	var out bytes.Buffer

	if err := workerchild.Run(context.Background(), in, &out); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, &out)
	if len(lines) != 3 {
		t.Fatalf("expected ready + 2 results, got %+v", lines)
	}
	if lines[1]["job"] != "a" || lines[2]["job"] != "b" {
		t.Fatalf("expected results in request order, got %+v", lines)
	}
}
