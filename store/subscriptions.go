package store

import (
	"context"

	"github.com/fallpaper-daemon/fallpaper/errs"
)

// Subscribe creates or re-enables a device's subscription to a source.
func (s *Store) Subscribe(ctx context.Context, deviceID, sourceID string) error {
	return s.Named(ctx, "Subscribe", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO subscriptions (device_id, source_id, enabled) VALUES (?, ?, 1)
			ON CONFLICT (device_id, source_id) DO UPDATE SET enabled = 1`, deviceID, sourceID)
		return translateWriteErr("subscription", err)
	})
}

// Unsubscribe disables a device's subscription to a source (rows are kept,
// not deleted, so history of a device's prior sources is not lost).
func (s *Store) Unsubscribe(ctx context.Context, deviceID, sourceID string) error {
	return s.Named(ctx, "Unsubscribe", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE subscriptions SET enabled = 0 WHERE device_id = ? AND source_id = ?`, deviceID, sourceID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.NotFound("subscription", "no subscription between device "+deviceID+" and source "+sourceID)
		}
		return nil
	})
}

// ListSubscribedDevices returns the enabled devices subscribed to a source,
// the audience the runner fans a source's images out to.
func (s *Store) ListSubscribedDevices(ctx context.Context, sourceID string) ([]Device, error) {
	var devices []Device
	err := s.Named(ctx, "ListSubscribedDevices", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &devices, `
			SELECT d.* FROM devices d
			JOIN subscriptions sub ON sub.device_id = d.id
			WHERE sub.source_id = ? AND sub.enabled = 1 AND d.enabled = 1
			ORDER BY d.display_name`, sourceID)
	})
	return devices, err
}

// ListSubscriptionsForDevice returns every subscription row for a device,
// enabled or not.
func (s *Store) ListSubscriptionsForDevice(ctx context.Context, deviceID string) ([]Subscription, error) {
	var subs []Subscription
	err := s.Named(ctx, "ListSubscriptionsForDevice", func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &subs, "SELECT * FROM subscriptions WHERE device_id = ?", deviceID)
	})
	return subs, err
}
