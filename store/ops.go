package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/queuectl/queuectl/config"
	"github.com/queuectl/queuectl/job"
)

// Enqueue inserts a new row in the Pending state. If id is empty, a new
// id is generated. If runAfter is the zero value, the job is immediately
// eligible. Enqueue returns ErrConflict if id already exists and inserts
// nothing in that case.
func (s *Store) Enqueue(ctx context.Context, id, command string, maxRetries *int, runAfter time.Time) (*job.Job, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	exists, err := tx.NewSelect().Model((*jobModel)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrConflict
	}

	model := &jobModel{
		Id:         id,
		Command:    command,
		State:      job.Pending,
		Attempts:   0,
		MaxRetries: maxRetries,
		RunAfter:   runAfter,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.markDirty()
	return model.toJob(), nil
}

// ClaimNext selects the eligible Pending job with the smallest
// (created_at, id) and transitions it to Processing, atomically. It
// returns (nil, nil) when no job is eligible.
//
// The transition uses a single UPDATE ... WHERE id IN (subquery)
// statement so that two concurrent callers can never claim the same row.
func (s *Store) ClaimNext(ctx context.Context, now time.Time) (*job.Job, error) {
	sub := s.db.NewSelect().
		Model((*jobModel)(nil)).
		Column("id").
		Where("state = ?", job.Pending).
		Where("run_after <= ?", now).
		Order("created_at ASC", "id ASC").
		Limit(1)

	var rows []*jobModel
	err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Processing).
		Set("updated_at = ?", now).
		Where("id IN (?)", sub).
		Returning("*").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	s.markDirty()
	return rows[0].toJob(), nil
}

// Complete transitions id from Processing to Completed. It is a no-op
// (returns ErrNotFound) if id is not currently Processing.
func (s *Store) Complete(ctx context.Context, id string) error {
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Completed).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return ErrNotFound
	}
	s.markDirty()
	return nil
}

// Fail transitions id out of Processing into either Pending (with
// newAttempts and newRunAfter set, for a retry) or Dead (retry budget
// exhausted), as decided by the caller's retry/backoff policy. It is a
// no-op (returns ErrNotFound) if id is not currently Processing.
func (s *Store) Fail(ctx context.Context, id string, newAttempts int, newState job.State, newRunAfter time.Time) error {
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", newState).
		Set("attempts = ?", newAttempts).
		Set("run_after = ?", newRunAfter).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return ErrNotFound
	}
	s.markDirty()
	return nil
}

// ResetProcessing transitions id from Processing back to Pending,
// leaving attempts and run_after unchanged. It is used to recover a job
// whose worker crashed mid-execution: no attempt is charged for the
// crash. It is conditional on the current state being
// Processing, so it cannot clobber a transition a concurrent Complete or
// Fail already applied.
func (s *Store) ResetProcessing(ctx context.Context, id string) error {
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Processing).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return nil
	}
	s.markDirty()
	return nil
}

// Get returns a single job by id, or ErrNotFound if no such row exists.
func (s *Store) Get(ctx context.Context, id string) (*job.Job, error) {
	model := new(jobModel)
	err := s.db.NewSelect().Model(model).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return model.toJob(), nil
}

// List returns jobs in descending created_at order (newest first). A
// zero job.State (job.Unknown) returns jobs in any state.
func (s *Store) List(ctx context.Context, state job.State) ([]*job.Job, error) {
	query := s.db.NewSelect().Model((*jobModel)(nil)).Order("created_at DESC", "id ASC")
	if state != job.Unknown {
		query = query.Where("state = ?", state)
	}
	var rows []*jobModel
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	ret := make([]*job.Job, len(rows))
	for i, r := range rows {
		ret[i] = r.toJob()
	}
	return ret, nil
}

// Summarize returns the count of jobs in each live state.
func (s *Store) Summarize(ctx context.Context) (map[job.State]int, error) {
	var rows []struct {
		State job.State
		Count int
	}
	err := s.db.NewSelect().
		Model((*jobModel)(nil)).
		ColumnExpr("state, count(*) AS count").
		Group("state").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	ret := map[job.State]int{
		job.Pending:    0,
		job.Processing: 0,
		job.Completed:  0,
		job.Dead:       0,
	}
	for _, r := range rows {
		ret[r.State] = r.Count
	}
	return ret, nil
}

// RequeueDead moves a single Dead job back to Pending, resetting
// attempts and run_after. It returns ErrNotFound if id does not exist
// or is not currently Dead.
func (s *Store) RequeueDead(ctx context.Context, id string) error {
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("attempts = 0").
		Set("run_after = ?", time.Time{}).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("state = ?", job.Dead).
		Exec(ctx)
	if err != nil {
		return err
	}
	if !isAffected(res) {
		return ErrNotFound
	}
	s.markDirty()
	return nil
}

// RequeueAllDead moves every Dead job back to Pending, resetting
// attempts and run_after. It returns (0, ErrNotFound) if no job was
// Dead.
func (s *Store) RequeueAllDead(ctx context.Context) (int64, error) {
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*jobModel)(nil)).
		Set("state = ?", job.Pending).
		Set("attempts = 0").
		Set("run_after = ?", time.Time{}).
		Set("updated_at = ?", now).
		Where("state = ?", job.Dead).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	count := getAffected(res)
	if count <= 0 {
		return 0, ErrNotFound
	}
	s.markDirty()
	return count, nil
}

// GetConfig returns every stored config row as a string map. Keys with
// no stored row are omitted; callers needing defaults should use
// config.Load on the result.
func (s *Store) GetConfig(ctx context.Context) (map[string]string, error) {
	var rows []*configModel
	if err := s.db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, err
	}
	ret := make(map[string]string, len(rows))
	for _, r := range rows {
		ret[r.Key] = r.Value
	}
	return ret, nil
}

// SetConfig validates value against key's schema and persists it. It
// returns the validation error unchanged if value fails validation, and
// leaves the stored row untouched in that case.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	if _, err := config.Validate(config.Key(key), value); err != nil {
		return err
	}
	_, err := s.db.NewInsert().
		Model(&configModel{Key: key, Value: value}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Exec(ctx)
	if err != nil {
		return err
	}
	s.markDirty()
	return nil
}
