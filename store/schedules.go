package store

import (
	"context"
	"database/sql"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/ids"
)

// CreateSchedule binds a cron expression to a source.
func (s *Store) CreateSchedule(ctx context.Context, sch Schedule) (Schedule, error) {
	err := s.Named(ctx, "CreateSchedule", func(ctx context.Context) error {
		now := Now()
		sch.ID = ids.New()
		sch.CreatedAt = now
		sch.UpdatedAt = now

		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO schedules (id, source_id, cron_expr, created_at, updated_at)
			VALUES (:id, :source_id, :cron_expr, :created_at, :updated_at)`, sch)
		return translateWriteErr("schedule", err)
	})
	return sch, err
}

// GetSchedule fetches a schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, id string) (Schedule, error) {
	var sch Schedule
	err := s.Named(ctx, "GetSchedule", func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &sch, "SELECT * FROM schedules WHERE id = ?", id)
		if err == sql.ErrNoRows {
			return errs.NotFound("schedule", "schedule "+id+" not found")
		}
		return err
	})
	return sch, err
}

// ListSchedules returns every schedule in the system, used to populate the
// cron scheduler's in-memory cache at startup and on reload.
func (s *Store) ListSchedules(ctx context.Context) ([]Schedule, error) {
	var schedules []Schedule
	err := s.Named(ctx, "ListSchedules", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &schedules, "SELECT * FROM schedules ORDER BY created_at")
	})
	return schedules, err
}

// ListSchedulesForSource returns schedules bound to a single source.
func (s *Store) ListSchedulesForSource(ctx context.Context, sourceID string) ([]Schedule, error) {
	var schedules []Schedule
	err := s.Named(ctx, "ListSchedulesForSource", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &schedules, "SELECT * FROM schedules WHERE source_id = ? ORDER BY created_at", sourceID)
	})
	return schedules, err
}

// UpdateSchedule persists a schedule's cron expression.
func (s *Store) UpdateSchedule(ctx context.Context, sch Schedule) (Schedule, error) {
	err := s.Named(ctx, "UpdateSchedule", func(ctx context.Context) error {
		sch.UpdatedAt = Now()
		res, err := s.db.NamedExecContext(ctx, `
			UPDATE schedules SET cron_expr = :cron_expr, updated_at = :updated_at WHERE id = :id`, sch)
		if err != nil {
			return translateWriteErr("schedule", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("schedule", "schedule "+sch.ID+" not found")
		}
		return nil
	})
	return sch, err
}

// DeleteSchedule removes a schedule.
func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	return s.Named(ctx, "DeleteSchedule", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("schedule", "schedule "+id+" not found")
		}
		return nil
	})
}
