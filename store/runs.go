package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/ids"
)

// CreateRun inserts a new run in RunPending state.
func (s *Store) CreateRun(ctx context.Context, r Run) (Run, error) {
	err := s.Named(ctx, "CreateRun", func(ctx context.Context) error {
		now := Now()
		r.ID = ids.New()
		if r.State == "" {
			r.State = RunPending
		}
		if r.ScheduledAt.IsZero() {
			r.ScheduledAt = now
		}
		if r.Input == "" {
			r.Input = "{}"
		}
		if r.Output == "" {
			r.Output = "{}"
		}
		if r.MaxRetries == 0 {
			r.MaxRetries = 3
		}
		r.CreatedAt = now
		r.UpdatedAt = now

		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO runs (
				id, source_id, schedule_id, name, state, input, output, error,
				progress_current, progress_total, progress_message,
				retry_count, max_retries, scheduled_at, started_at, completed_at,
				created_at, updated_at
			) VALUES (
				:id, :source_id, :schedule_id, :name, :state, :input, :output, :error,
				:progress_current, :progress_total, :progress_message,
				:retry_count, :max_retries, :scheduled_at, :started_at, :completed_at,
				:created_at, :updated_at
			)`, r)
		return translateWriteErr("run", err)
	})
	return r, err
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.Named(ctx, "GetRun", func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &r, "SELECT * FROM runs WHERE id = ?", id)
		if err == sql.ErrNoRows {
			return errs.NotFound("run", "run "+id+" not found")
		}
		return err
	})
	return r, err
}

// ListRuns returns runs newest-first, optionally filtered by state.
func (s *Store) ListRuns(ctx context.Context, state RunState, limit int) ([]Run, error) {
	var runs []Run
	err := s.Named(ctx, "ListRuns", func(ctx context.Context) error {
		if state == "" {
			return s.db.SelectContext(ctx, &runs, "SELECT * FROM runs ORDER BY created_at DESC LIMIT ?", limit)
		}
		return s.db.SelectContext(ctx, &runs, "SELECT * FROM runs WHERE state = ? ORDER BY created_at DESC LIMIT ?", state, limit)
	})
	return runs, err
}

// ClaimPendingRuns atomically moves up to max pending runs whose
// scheduled_at is due into RunRunning state and returns the claimed rows.
// This is the processor tick's entry point into the pending queue.
func (s *Store) ClaimPendingRuns(ctx context.Context, now time.Time, max int) ([]Run, error) {
	epochNow := NewEpochTime(now)
	var claimed []Run
	err := s.Named(ctx, "ClaimPendingRuns", func(ctx context.Context) error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var candidates []Run
		if err := tx.SelectContext(ctx, &candidates, `
			SELECT * FROM runs
			WHERE state = ? AND scheduled_at <= ?
			ORDER BY scheduled_at ASC
			LIMIT ?`, RunPending, epochNow, max); err != nil {
			return err
		}

		for i := range candidates {
			candidates[i].State = RunRunning
			candidates[i].StartedAt = NewNullEpochTime(&now)
			candidates[i].UpdatedAt = epochNow
			if _, err := tx.ExecContext(ctx, `
				UPDATE runs SET state = ?, started_at = ?, updated_at = ? WHERE id = ? AND state = ?`,
				RunRunning, epochNow, epochNow, candidates[i].ID, RunPending); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		claimed = candidates
		return nil
	})
	return claimed, err
}

// FindStaleRunning returns runs stuck in RunRunning past threshold — the
// input to the processor's stale-recovery sweep.
func (s *Store) FindStaleRunning(ctx context.Context, olderThan time.Time) ([]Run, error) {
	var runs []Run
	err := s.Named(ctx, "FindStaleRunning", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &runs, `
			SELECT * FROM runs WHERE state = ? AND started_at IS NOT NULL AND started_at <= ?`,
			RunRunning, NewEpochTime(olderThan))
	})
	return runs, err
}

// FindAllRunning returns every run currently marked RunRunning, used on
// daemon startup to recover from an unclean shutdown.
func (s *Store) FindAllRunning(ctx context.Context) ([]Run, error) {
	var runs []Run
	err := s.Named(ctx, "FindAllRunning", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &runs, "SELECT * FROM runs WHERE state = ?", RunRunning)
	})
	return runs, err
}

// UpdateRunProgress persists incremental progress without altering state.
func (s *Store) UpdateRunProgress(ctx context.Context, id string, current, total int, message string) error {
	return s.Named(ctx, "UpdateRunProgress", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE runs SET progress_current = ?, progress_total = ?, progress_message = ?, updated_at = ?
			WHERE id = ?`, current, total, message, Now(), id)
		if err != nil {
			return err
		}
		return mustAffect(res, "run", id)
	})
}

// CompleteRun marks a run RunCompleted with its final output.
func (s *Store) CompleteRun(ctx context.Context, id string, output string) error {
	return s.Named(ctx, "CompleteRun", func(ctx context.Context) error {
		now := Now()
		res, err := s.db.ExecContext(ctx, `
			UPDATE runs SET state = ?, output = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			RunCompleted, output, now, now, id)
		if err != nil {
			return err
		}
		return mustAffect(res, "run", id)
	})
}

// FailRun marks a run RunFailed and records the error message. If the run
// has remaining retries, callers should instead use RetryRun.
func (s *Store) FailRun(ctx context.Context, id string, runErr string) error {
	return s.Named(ctx, "FailRun", func(ctx context.Context) error {
		now := Now()
		res, err := s.db.ExecContext(ctx, `
			UPDATE runs SET state = ?, error = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			RunFailed, runErr, now, now, id)
		if err != nil {
			return err
		}
		return mustAffect(res, "run", id)
	})
}

// RetryRun increments retry_count and reschedules the run back to pending
// at scheduledAt, which callers compute from the configured backoff.
func (s *Store) RetryRun(ctx context.Context, id string, scheduledAt time.Time, runErr string) error {
	return s.Named(ctx, "RetryRun", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE runs SET state = ?, retry_count = retry_count + 1, scheduled_at = ?,
				started_at = NULL, error = ?, updated_at = ?
			WHERE id = ?`, RunPending, NewEpochTime(scheduledAt), runErr, Now(), id)
		if err != nil {
			return err
		}
		return mustAffect(res, "run", id)
	})
}

// CancelRun transitions a run from RunPending to RunCancelled; it refuses to
// cancel a run already in progress.
func (s *Store) CancelRun(ctx context.Context, id string) error {
	return s.Named(ctx, "CancelRun", func(ctx context.Context) error {
		now := Now()
		res, err := s.db.ExecContext(ctx, `
			UPDATE runs SET state = ?, completed_at = ?, updated_at = ? WHERE id = ? AND state = ?`,
			RunCancelled, now, now, id, RunPending)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			existing, getErr := s.GetRun(ctx, id)
			if getErr != nil {
				return getErr
			}
			return errs.Validationf("run %s is %s, only pending runs can be cancelled", id, existing.State)
		}
		return nil
	})
}

func mustAffect(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.NotFound(entity, entity+" "+id+" not found")
	}
	return nil
}
