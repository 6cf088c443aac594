package job_test

import (
	"testing"

	"github.com/queuectl/queuectl/job"
)

func TestParseStateRoundTrip(t *testing.T) {
	states := []job.State{job.Pending, job.Processing, job.Completed, job.Failed, job.Dead}
	for _, s := range states {
		parsed, err := job.ParseState(s.String())
		if err != nil {
			t.Fatalf("ParseState(%q): %v", s.String(), err)
		}
		if parsed != s {
			t.Errorf("round trip of %v gave %v", s, parsed)
		}
	}
}

func TestParseStateRejectsGarbage(t *testing.T) {
	if _, err := job.ParseState("exploded"); err == nil {
		t.Fatal("expected error for unrecognized state")
	}
}

func TestTerminalStates(t *testing.T) {
	cases := map[job.State]bool{
		job.Pending:    false,
		job.Processing: false,
		job.Completed:  true,
		job.Failed:     false,
		job.Dead:       true,
	}
	for s, want := range cases {
		if got := s.Terminal(); got != want {
			t.Errorf("%v.Terminal() = %v, want %v", s, got, want)
		}
	}
}
