package job

import "fmt"

// State represents the current lifecycle state of a Job.
//
// The live state machine is:
//
//	Pending    -> Processing
//	Processing -> Completed
//	Processing -> Pending  (retry, with a delay)
//	Processing -> Dead
//	Dead       -> Pending  (explicit DLQ requeue only)
//
// Failed is reserved: list filters accept it, but no transition in this
// implementation ever produces it.
type State uint8

const (
	// Unknown is the zero value and never stored; it is only useful as
	// a "no filter" sentinel in List.
	Unknown State = iota

	// Pending indicates the job is eligible for dispatch once RunAfter
	// has elapsed.
	Pending

	// Processing indicates the job is bound to exactly one live worker.
	Processing

	// Completed is terminal: the worker reported a zero exit code.
	Completed

	// Failed is reserved and never produced by this implementation.
	Failed

	// Dead is terminal: the retry budget was exhausted. Only an explicit
	// DLQ requeue moves a job out of Dead.
	Dead
)

func stateToString(s State) string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

func stateFromString(s string) (State, error) {
	switch s {
	case "pending":
		return Pending, nil
	case "processing":
		return Processing, nil
	case "completed":
		return Completed, nil
	case "failed":
		return Failed, nil
	case "dead":
		return Dead, nil
	case "unknown", "":
		return Unknown, nil
	default:
		return 0, fmt.Errorf("unknown job state: %s", s)
	}
}

// ParseState converts a string representation of a state into a State
// value. Recognized values are "pending", "processing", "completed",
// "failed", "dead" and "unknown"; the empty string also parses as
// Unknown. An error is returned for anything else.
func ParseState(s string) (State, error) {
	return stateFromString(s)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(stateToString(s)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	state, err := stateFromString(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// String returns the canonical string representation of the state.
func (s State) String() string {
	return stateToString(s)
}

// Terminal reports whether s is an absorbing state that no background
// transition ever leaves (Completed, Dead). Dead may still be left via an
// explicit DLQ requeue, which is not a background transition.
func (s State) Terminal() bool {
	return s == Completed || s == Dead
}
