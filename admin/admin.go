// Package admin exposes the CRUD and operational surface an external admin
// tool (CLI or otherwise) drives — device/source/schedule/subscription
// management, manual run triggering, run cancellation, and image pruning.
//
// It is the plain-Go equivalent of the teacher's tui/admin_client.go: that
// file talks to a separate process over a Unix socket using connect-RPC
// (connectrpc.com/connect + a generated fsmv1 protobuf client). Spec §1
// scopes the admin/web surface as external to the daemon's core, and the
// generated RPC stubs aren't present in the retrieval pack, so this package
// keeps the teacher's operation surface (list/trigger/cancel) but drops the
// wire protocol — see DESIGN.md's "Dropped teacher dependencies".
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/scheduler"
	"github.com/fallpaper-daemon/fallpaper/store"
)

// Admin composes the store and the scheduler's reload hook into the
// operations an external caller needs.
type Admin struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
}

// New builds an Admin. scheduler may be nil in contexts that only need
// store CRUD (e.g. a one-shot CLI invocation that doesn't run the cron
// loop) — mutations then skip the scheduler reload.
func New(st *store.Store, sch *scheduler.Scheduler) *Admin {
	return &Admin{store: st, scheduler: sch}
}

// -- Devices --

func (a *Admin) CreateDevice(ctx context.Context, d store.Device) (store.Device, error) {
	return a.store.CreateDevice(ctx, d)
}

func (a *Admin) GetDevice(ctx context.Context, id string) (store.Device, error) {
	return a.store.GetDevice(ctx, id)
}

func (a *Admin) ListDevices(ctx context.Context) ([]store.Device, error) {
	return a.store.ListDevices(ctx)
}

func (a *Admin) UpdateDevice(ctx context.Context, d store.Device) (store.Device, error) {
	return a.store.UpdateDevice(ctx, d)
}

func (a *Admin) DeleteDevice(ctx context.Context, id string) error {
	return a.store.DeleteDevice(ctx, id)
}

// -- Sources --

func (a *Admin) CreateSource(ctx context.Context, src store.Source) (store.Source, error) {
	return a.store.CreateSource(ctx, src)
}

func (a *Admin) GetSource(ctx context.Context, id string) (store.Source, error) {
	return a.store.GetSource(ctx, id)
}

func (a *Admin) ListSources(ctx context.Context) ([]store.Source, error) {
	return a.store.ListSources(ctx)
}

// UpdateSource persists a source and hot-reloads the scheduler, so enabling
// or disabling a source takes effect on its schedules without a restart.
func (a *Admin) UpdateSource(ctx context.Context, src store.Source) (store.Source, error) {
	updated, err := a.store.UpdateSource(ctx, src)
	if err != nil {
		return updated, err
	}
	return updated, a.reload(ctx)
}

func (a *Admin) DeleteSource(ctx context.Context, id string) error {
	return a.store.DeleteSource(ctx, id)
}

// -- Schedules --

// CreateSchedule binds a cron expression to a source and hot-reloads the
// scheduler so the new timer fires without a process restart.
func (a *Admin) CreateSchedule(ctx context.Context, sch store.Schedule) (store.Schedule, error) {
	created, err := a.store.CreateSchedule(ctx, sch)
	if err != nil {
		return created, err
	}
	return created, a.reload(ctx)
}

func (a *Admin) ListSchedules(ctx context.Context) ([]store.Schedule, error) {
	return a.store.ListSchedules(ctx)
}

func (a *Admin) UpdateSchedule(ctx context.Context, sch store.Schedule) (store.Schedule, error) {
	updated, err := a.store.UpdateSchedule(ctx, sch)
	if err != nil {
		return updated, err
	}
	return updated, a.reload(ctx)
}

func (a *Admin) DeleteSchedule(ctx context.Context, id string) error {
	if err := a.store.DeleteSchedule(ctx, id); err != nil {
		return err
	}
	return a.reload(ctx)
}

func (a *Admin) reload(ctx context.Context) error {
	if a.scheduler == nil {
		return nil
	}
	return a.scheduler.ReloadSchedules(ctx)
}

// -- Subscriptions --

func (a *Admin) Subscribe(ctx context.Context, deviceID, sourceID string) error {
	return a.store.Subscribe(ctx, deviceID, sourceID)
}

func (a *Admin) Unsubscribe(ctx context.Context, deviceID, sourceID string) error {
	return a.store.Unsubscribe(ctx, deviceID, sourceID)
}

func (a *Admin) ListSubscriptionsForDevice(ctx context.Context, deviceID string) ([]store.Subscription, error) {
	return a.store.ListSubscriptionsForDevice(ctx, deviceID)
}

// -- Runs --

// TriggerRun inserts a manual run for sourceID, due immediately. It mirrors
// the teacher's ListActive/admin-triggered-run pattern, but unlike the
// scheduler's own fire callback it rejects a disabled source outright
// rather than silently skipping — spec §8 scenario 5: "manually triggering
// a disabled source is a validation error, not a silent no-op."
func (a *Admin) TriggerRun(ctx context.Context, sourceID string) (store.Run, error) {
	src, err := a.store.GetSource(ctx, sourceID)
	if err != nil {
		return store.Run{}, fmt.Errorf("admin: loading source: %w", err)
	}
	if !src.Enabled {
		return store.Run{}, errs.Validationf("source %s is disabled", src.Name)
	}
	return a.store.CreateRun(ctx, store.Run{
		SourceID:    &sourceID,
		Name:        "fetch_source",
		ScheduledAt: store.Now(),
	})
}

// CancelRun cancels a run still in RunPending; it returns an error if the
// run has already started or finished (store.CancelRun enforces the state
// transition).
func (a *Admin) CancelRun(ctx context.Context, runID string) error {
	return a.store.CancelRun(ctx, runID)
}

func (a *Admin) GetRun(ctx context.Context, runID string) (store.Run, error) {
	return a.store.GetRun(ctx, runID)
}

func (a *Admin) ListRuns(ctx context.Context, state store.RunState, limit int) ([]store.Run, error) {
	return a.store.ListRuns(ctx, state, limit)
}

// -- Images --

func (a *Admin) ListImages(ctx context.Context, sourceID, cursor string, pageSize int) (store.ImagePage, error) {
	return a.store.ListImages(ctx, sourceID, cursor, pageSize)
}

// PruneImages deletes images older than cutoff, keeping at least
// keepPerDevice of each device's most recent materializations — the
// supplemented retention operation SPEC_FULL.md adds over spec.md.
func (a *Admin) PruneImages(ctx context.Context, cutoff time.Time, keepPerDevice int) (int64, error) {
	return a.store.DeleteImagesOlderThan(ctx, cutoff, keepPerDevice)
}
