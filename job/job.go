package job

import "time"

// Job is a row in the jobs table.
//
// Id is a stable text identifier: either client-supplied at enqueue time
// or server-generated when omitted. Command is the shell-level string a
// worker child executes. MaxRetries is nil when the job defers to the
// store's configured default.
//
// CreatedAt and UpdatedAt are the row's creation/last-transition
// timestamps. RunAfter is the earliest time the job becomes eligible for
// dispatch; the zero value means "immediately".
//
// Job instances should be treated as snapshots of storage state.
// Mutating fields directly does not change the underlying queue state;
// transitions must be performed through the store package.
type Job struct {
	Id         string
	Command    string
	State      State
	Attempts   int
	MaxRetries *int
	RunAfter   time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
