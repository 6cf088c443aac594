package store

import (
	"context"
	"fmt"
	"os"
)

// restore loads an existing snapshot file, if present, into the live
// in-memory connection. It is a no-op if dir has no prior queue.db.
func (s *Store) restore(ctx context.Context) error {
	if _, err := os.Stat(s.dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if _, err := s.db.ExecContext(ctx, "ATTACH DATABASE ? AS disk", s.dbPath); err != nil {
		return fmt.Errorf("attach snapshot: %w", err)
	}
	defer s.db.ExecContext(ctx, "DETACH DATABASE disk")

	if _, err := s.db.ExecContext(ctx, "INSERT INTO jobs SELECT * FROM disk.jobs"); err != nil {
		return fmt.Errorf("restore jobs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "INSERT INTO config SELECT * FROM disk.config"); err != nil {
		return fmt.Errorf("restore config: %w", err)
	}
	return nil
}

// writeSnapshot serializes the live database to a temp file, fsyncs it,
// renames it over the canonical path, then fsyncs the directory entry
// so the rename itself survives a power loss.
func (s *Store) writeSnapshot(ctx context.Context) error {
	_ = os.Remove(s.tmpPath)

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", s.tmpPath); err != nil {
		return fmt.Errorf("vacuum into temp file: %w", err)
	}

	tmp, err := os.Open(s.tmpPath)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if syncErr != nil {
		return fmt.Errorf("sync temp file: %w", syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := os.Rename(s.tmpPath, s.dbPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	dir, err := os.Open(s.stateDir)
	if err != nil {
		return fmt.Errorf("open state dir: %w", err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return fmt.Errorf("sync state dir: %w", err)
	}
	return nil
}

// SnapshotIfDirty writes a new snapshot only if the store has been
// mutated since the last successful snapshot. It reports whether a
// snapshot was written.
//
// The flag is cleared with a CompareAndSwap before the write begins, so
// a mutation that commits while the snapshot is in flight re-dirties
// the store and is captured by the next interval; clearing after the
// write would clobber that mutation's flag and lose it from every
// future snapshot. On failure the flag is restored so the next interval
// retries: a snapshot I/O failure is transient and never fatal outside
// shutdown.
func (s *Store) SnapshotIfDirty(ctx context.Context) (bool, error) {
	if !s.dirty.CompareAndSwap(true, false) {
		return false, nil
	}
	if err := s.writeSnapshot(ctx); err != nil {
		s.dirty.Store(true)
		return false, err
	}
	return true, nil
}

// Snapshot writes a snapshot unconditionally, regardless of the dirty
// flag. It is used for the final snapshot during shutdown, where
// failure is fatal and must be surfaced to the caller rather than
// retried later. The flag follows the same clear-before-write protocol
// as SnapshotIfDirty.
func (s *Store) Snapshot(ctx context.Context) error {
	s.dirty.Store(false)
	if err := s.writeSnapshot(ctx); err != nil {
		s.dirty.Store(true)
		return err
	}
	return nil
}
