package admin

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/store"
)

func newTestAdmin(t *testing.T) *Admin {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(store.Config{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, nil)
}

func TestDeviceCRUDRoundTrips(t *testing.T) {
	ctx := context.Background()
	a := newTestAdmin(t)

	d, err := a.CreateDevice(ctx, store.Device{Enabled: true, DisplayName: "TV", Slug: "tv", NativeWidth: 1920, NativeHeight: 1080})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	got, err := a.GetDevice(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.DisplayName != "TV" {
		t.Fatalf("expected round-tripped device, got %+v", got)
	}

	got.DisplayName = "Living Room TV"
	updated, err := a.UpdateDevice(ctx, got)
	if err != nil {
		t.Fatalf("UpdateDevice: %v", err)
	}
	if updated.DisplayName != "Living Room TV" {
		t.Fatalf("expected updated name to persist, got %+v", updated)
	}

	list, err := a.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 device, got %d", len(list))
	}

	if err := a.DeleteDevice(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	if _, err := a.GetDevice(ctx, d.ID); !errs.IsNotFound(err) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
}

func TestSourceCRUDRoundTrips(t *testing.T) {
	ctx := context.Background()
	a := newTestAdmin(t)

	src, err := a.CreateSource(ctx, store.Source{Enabled: true, Name: "reddit", Kind: "mock", Params: "{}"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	src.Name = "renamed"
	updated, err := a.UpdateSource(ctx, src)
	if err != nil {
		t.Fatalf("UpdateSource: %v", err)
	}
	if updated.Name != "renamed" {
		t.Fatalf("expected renamed source, got %+v", updated)
	}
	if err := a.DeleteSource(ctx, src.ID); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
}

func TestTriggerRunRejectsDisabledSource(t *testing.T) {
	ctx := context.Background()
	a := newTestAdmin(t)

	src, err := a.CreateSource(ctx, store.Source{Enabled: false, Name: "s1", Kind: "mock", Params: "{}"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	if _, err := a.TriggerRun(ctx, src.ID); !errs.IsValidation(err) {
		t.Fatalf("expected a validation error for a disabled source, got %v", err)
	}
}

func TestTriggerRunQueuesPendingRunForEnabledSource(t *testing.T) {
	ctx := context.Background()
	a := newTestAdmin(t)

	src, err := a.CreateSource(ctx, store.Source{Enabled: true, Name: "s1", Kind: "mock", Params: "{}"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	run, err := a.TriggerRun(ctx, src.ID)
	if err != nil {
		t.Fatalf("TriggerRun: %v", err)
	}
	if run.State != store.RunPending {
		t.Fatalf("expected a pending run, got state=%s", run.State)
	}
}

func TestCancelRunOnlySucceedsWhilePending(t *testing.T) {
	ctx := context.Background()
	a := newTestAdmin(t)

	src, err := a.CreateSource(ctx, store.Source{Enabled: true, Name: "s1", Kind: "mock", Params: "{}"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	run, err := a.TriggerRun(ctx, src.ID)
	if err != nil {
		t.Fatalf("TriggerRun: %v", err)
	}

	if err := a.CancelRun(ctx, run.ID); err != nil {
		t.Fatalf("CancelRun: %v", err)
	}
	got, err := a.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.State != store.RunCancelled {
		t.Fatalf("expected run cancelled, got state=%s", got.State)
	}

	if err := a.CancelRun(ctx, run.ID); err == nil {
		t.Fatal("expected cancelling an already-cancelled run to fail")
	}
}
