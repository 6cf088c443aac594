// Package workerchild implements the worker child side of queuectl's
// worker protocol.
//
// A worker child is a subprocess (in practice, the same binary re-exec'd
// with a hidden argument) that executes exactly one shell command at a
// time and reports the result back to its parent over stdin/stdout as
// newline-delimited JSON. Run implements the whole protocol: it writes a
// ready message once, then loops reading one job per line and writing
// exactly one terminal reply per job.
//
// workerchild never persists state and never talks to the job store; it
// only knows how to run a command and describe the outcome. All lifecycle
// and retry decisions are made by the parent (the pool and scheduler
// packages).
package workerchild
