package store

import "errors"

var (
	// ErrConflict is returned by Enqueue when the supplied id already
	// exists. No row is inserted.
	ErrConflict = errors.New("store: job id already exists")

	// ErrNotFound is returned by DLQ operations when the referenced id
	// does not exist, or exists but is not currently Dead.
	ErrNotFound = errors.New("store: job not found")
)
