// Package job defines the durable representation of a shell-command job
// managed by queuectl.
//
// A Job is the authoritative row stored by the store package. It carries
// both the data an operator supplied at enqueue time (Command) and the
// scheduling state the core mutates as the job moves through its
// lifecycle (State, Attempts, RunAfter).
//
// Job values returned by the store package are snapshots: mutating a
// returned Job does not change the underlying row. All transitions go
// through the store package's methods.
package job
