// Package store implements queuectl's durable job and config tables.
//
// The dataset lives entirely in an in-process SQLite connection opened
// against ":memory:", for speed; durability is provided by periodic
// snapshotting rather than by writing through to disk on every mutation.
// A dirty flag tracks whether the in-memory image has changed since the
// last successful snapshot; callers never need to think about it, since
// every mutating method sets it.
//
// # Concurrency
//
// Store serializes all mutating operations through a single SQLite
// connection (MaxOpenConns(1)); ClaimNext additionally uses an atomic
// UPDATE ... WHERE id IN (subquery) statement so that two concurrent
// callers never claim the same row.
//
// # Snapshots
//
// Snapshot serializes the live database to a temporary file in the same
// directory as the canonical queue.db, fsyncs it, renames it over
// queue.db, then fsyncs the directory entry. Open loads an existing
// queue.db (if any) into the in-memory connection before the store is
// used.
package store
