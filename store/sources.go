package store

import (
	"context"
	"database/sql"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/ids"
)

// CreateSource inserts a new source configuration.
func (s *Store) CreateSource(ctx context.Context, src Source) (Source, error) {
	err := s.Named(ctx, "CreateSource", func(ctx context.Context) error {
		now := Now()
		src.ID = ids.New()
		src.CreatedAt = now
		src.UpdatedAt = now

		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO sources (id, enabled, name, kind, params, lookup_limit, created_at, updated_at)
			VALUES (:id, :enabled, :name, :kind, :params, :lookup_limit, :created_at, :updated_at)`, src)
		return translateWriteErr("source", err)
	})
	return src, err
}

// GetSource fetches a source by ID.
func (s *Store) GetSource(ctx context.Context, id string) (Source, error) {
	var src Source
	err := s.Named(ctx, "GetSource", func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &src, "SELECT * FROM sources WHERE id = ?", id)
		if err == sql.ErrNoRows {
			return errs.NotFound("source", "source "+id+" not found")
		}
		return err
	})
	return src, err
}

// ListSources returns every source, ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	var sources []Source
	err := s.Named(ctx, "ListSources", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &sources, "SELECT * FROM sources ORDER BY name")
	})
	return sources, err
}

// UpdateSource persists every mutable field of src, keyed by src.ID.
func (s *Store) UpdateSource(ctx context.Context, src Source) (Source, error) {
	err := s.Named(ctx, "UpdateSource", func(ctx context.Context) error {
		src.UpdatedAt = Now()
		res, err := s.db.NamedExecContext(ctx, `
			UPDATE sources SET
				enabled = :enabled, name = :name, kind = :kind, params = :params,
				lookup_limit = :lookup_limit, updated_at = :updated_at
			WHERE id = :id`, src)
		if err != nil {
			return translateWriteErr("source", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("source", "source "+src.ID+" not found")
		}
		return nil
	})
	return src, err
}

// DeleteSource removes a source along with its schedules and subscriptions.
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	return s.Named(ctx, "DeleteSource", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("source", "source "+id+" not found")
		}
		return nil
	})
}
