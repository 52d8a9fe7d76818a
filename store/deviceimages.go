package store

import (
	"context"
	"database/sql"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/ids"
)

// CreateDeviceImage records that an image was materialized at localPath for
// a device.
func (s *Store) CreateDeviceImage(ctx context.Context, deviceID, imageID, localPath string) (DeviceImage, error) {
	var di DeviceImage
	err := s.Named(ctx, "CreateDeviceImage", func(ctx context.Context) error {
		di = DeviceImage{ID: ids.New(), DeviceID: &deviceID, ImageID: &imageID, LocalPath: localPath}
		_, err := s.db.NamedExecContext(ctx, `
			INSERT INTO device_images (id, device_id, image_id, local_path)
			VALUES (:id, :device_id, :image_id, :local_path)`, di)
		return translateWriteErr("device_image", err)
	})
	return di, err
}

// DeviceImageExists reports whether an image has already been materialized
// for a device.
func (s *Store) DeviceImageExists(ctx context.Context, deviceID, imageID string) (bool, error) {
	var exists bool
	err := s.Named(ctx, "DeviceImageExists", func(ctx context.Context) error {
		var count int
		if err := s.db.GetContext(ctx, &count, `
			SELECT COUNT(*) FROM device_images WHERE device_id = ? AND image_id = ?`, deviceID, imageID); err != nil {
			return err
		}
		exists = count > 0
		return nil
	})
	return exists, err
}

// ListDeviceImages returns every materialization for a device, newest first.
func (s *Store) ListDeviceImages(ctx context.Context, deviceID string) ([]DeviceImage, error) {
	var dis []DeviceImage
	err := s.Named(ctx, "ListDeviceImages", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &dis, `
			SELECT di.* FROM device_images di
			JOIN images i ON i.id = di.image_id
			WHERE di.device_id = ? ORDER BY i.created_at DESC`, deviceID)
	})
	return dis, err
}

// GetDeviceImage fetches a single materialization row by ID.
func (s *Store) GetDeviceImage(ctx context.Context, id string) (DeviceImage, error) {
	var di DeviceImage
	err := s.Named(ctx, "GetDeviceImage", func(ctx context.Context) error {
		err := s.db.GetContext(ctx, &di, "SELECT * FROM device_images WHERE id = ?", id)
		if err == sql.ErrNoRows {
			return errs.NotFound("device_image", "device_image "+id+" not found")
		}
		return err
	})
	return di, err
}
