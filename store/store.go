package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

const (
	snapshotFile = "queue.db"
	tempFile     = "queue.db.tmp"
)

// Store is the durable job and config table. Its dataset lives in
// an in-process SQLite connection; Open restores any prior snapshot
// found in dir, and Snapshot/SnapshotIfDirty write new ones.
type Store struct {
	db       *bun.DB
	stateDir string
	dbPath   string
	tmpPath  string
	dirty    atomic.Bool
}

// Open creates (or restores) a Store rooted at dir. dir is created if it
// does not already exist. Schema initialization failure here is
// intended to be unrecoverable at process startup.
func Open(ctx context.Context, dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create state dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open in-memory db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1) // single connection: serializes mutations, required for sqlite

	db := bun.NewDB(sqlDB, sqlitedialect.New())

	s := &Store{
		db:       db,
		stateDir: dir,
		dbPath:   filepath.Join(dir, snapshotFile),
		tmpPath:  filepath.Join(dir, tempFile),
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	if err := s.restore(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: restore snapshot: %w", err)
	}
	return s, nil
}

// Close releases the underlying database connection. It does not take a
// final snapshot; callers that need durability on exit must call
// Snapshot first.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) markDirty() {
	s.dirty.Store(true)
}
