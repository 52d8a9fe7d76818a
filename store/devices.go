package store

import (
	"context"
	"database/sql"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/ids"
)

// CreateDevice inserts a new device, assigning it a time-ordered ID.
func (s *Store) CreateDevice(ctx context.Context, d Device) (Device, error) {
	err := s.Named(ctx, "CreateDevice", func(ctx context.Context) error {
		now := Now()
		d.ID = ids.New()
		d.CreatedAt = now
		d.UpdatedAt = now

		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO devices (
				id, enabled, display_name, slug, native_width, native_height, aspect_tolerance,
				min_width, max_width, min_height, max_height, min_filesize, max_filesize,
				nsfw_policy, created_at, updated_at
			) VALUES (
				:id, :enabled, :display_name, :slug, :native_width, :native_height, :aspect_tolerance,
				:min_width, :max_width, :min_height, :max_height, :min_filesize, :max_filesize,
				:nsfw_policy, :created_at, :updated_at
			)`, d)
		return translateWriteErr("device", err)
	})
	return d, err
}

// GetDevice fetches a device by ID.
func (s *Store) GetDevice(ctx context.Context, id string) (Device, error) {
	var d Device
	err := s.Named(ctx, "GetDevice", func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &d, "SELECT * FROM devices WHERE id = ?", id)
		if err == sql.ErrNoRows {
			return errs.NotFound("device", "device "+id+" not found")
		}
		return err
	})
	return d, err
}

// ListDevices returns every device, ordered by display name.
func (s *Store) ListDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	err := s.Named(ctx, "ListDevices", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &devices, "SELECT * FROM devices ORDER BY display_name")
	})
	return devices, err
}

// ListEnabledDevices returns only devices with Enabled = true.
func (s *Store) ListEnabledDevices(ctx context.Context) ([]Device, error) {
	var devices []Device
	err := s.Named(ctx, "ListEnabledDevices", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &devices, "SELECT * FROM devices WHERE enabled = 1 ORDER BY display_name")
	})
	return devices, err
}

// UpdateDevice persists every mutable field of d, keyed by d.ID.
func (s *Store) UpdateDevice(ctx context.Context, d Device) (Device, error) {
	err := s.Named(ctx, "UpdateDevice", func(ctx context.Context) error {
		d.UpdatedAt = Now()
		res, err := s.db.NamedExecContext(ctx, `
			UPDATE devices SET
				enabled = :enabled, display_name = :display_name, slug = :slug,
				native_width = :native_width, native_height = :native_height,
				aspect_tolerance = :aspect_tolerance,
				min_width = :min_width, max_width = :max_width,
				min_height = :min_height, max_height = :max_height,
				min_filesize = :min_filesize, max_filesize = :max_filesize,
				nsfw_policy = :nsfw_policy, updated_at = :updated_at
			WHERE id = :id`, d)
		if err != nil {
			return translateWriteErr("device", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("device", "device "+d.ID+" not found")
		}
		return nil
	})
	return d, err
}

// DeleteDevice removes a device and, via ON DELETE CASCADE, its subscriptions.
func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	return s.Named(ctx, "DeleteDevice", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("device", "device "+id+" not found")
		}
		return nil
	})
}

// DeviceBySlug fetches a device by its unique slug.
func (s *Store) DeviceBySlug(ctx context.Context, slug string) (Device, error) {
	var d Device
	err := s.Named(ctx, "DeviceBySlug", func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &d, "SELECT * FROM devices WHERE slug = ?", slug)
		if err == sql.ErrNoRows {
			return errs.NotFound("device", "no device with slug "+slug)
		}
		return err
	})
	return d, err
}
