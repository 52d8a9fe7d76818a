package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fallpaper-daemon/fallpaper/downloader"
	"github.com/fallpaper-daemon/fallpaper/imageproc"
	"github.com/fallpaper-daemon/fallpaper/processor"
	"github.com/fallpaper-daemon/fallpaper/runner"
	"github.com/fallpaper-daemon/fallpaper/source"
	"github.com/fallpaper-daemon/fallpaper/source/mock"
	"github.com/fallpaper-daemon/fallpaper/store"
)

func newTestScheduler(t *testing.T) (*store.Store, *processor.Processor) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(store.Config{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	registry := source.NewRegistry()
	if err := registry.Register(mock.New(nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	dl := downloader.New(downloader.Config{MaxConcurrent: 1})
	ip := imageproc.New(st, dl, imageproc.Config{ImageDir: filepath.Join(dir, "images"), TempDir: filepath.Join(dir, "tmp")})
	rn := runner.New(st, registry, ip, nil, nil)
	proc := processor.New(st, rn, processor.Config{StaleRunTimeout: time.Hour, MaxPendingPerPoll: 5, RetryBackoffBase: time.Second}, nil, nil)
	return st, proc
}

func TestNewRejectsSecondInstance(t *testing.T) {
	_, proc := newTestScheduler(t)
	a, err := New(nil, proc, "*/5 * * * * *", nil, nil)
	if err != nil {
		t.Fatalf("first New: %v", err)
	}
	defer a.Stop()

	if _, err := New(nil, proc, "*/5 * * * * *", nil, nil); err == nil {
		t.Fatal("expected a second concurrent Scheduler to be rejected")
	}
}

func TestLoadSchedulesSkipsDisabledSource(t *testing.T) {
	ctx := context.Background()
	st, proc := newTestScheduler(t)

	enabledSrc, err := st.CreateSource(ctx, store.Source{Enabled: true, Name: "enabled", Kind: mock.Kind, Params: "{}"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	disabledSrc, err := st.CreateSource(ctx, store.Source{Enabled: false, Name: "disabled", Kind: mock.Kind, Params: "{}"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	if _, err := st.CreateSchedule(ctx, store.Schedule{SourceID: enabledSrc.ID, CronExpr: "0 0 0 1 1 *"}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if _, err := st.CreateSchedule(ctx, store.Schedule{SourceID: disabledSrc.ID, CronExpr: "0 0 0 1 1 *"}); err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}

	s, err := New(st, proc, "0 0 0 1 1 *", nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := s.ScheduleCount(); got != 1 {
		t.Fatalf("expected only the enabled source's schedule loaded, got %d", got)
	}
}

func TestReloadSchedulesPicksUpNewAndRemovedEntries(t *testing.T) {
	ctx := context.Background()
	st, proc := newTestScheduler(t)

	src, err := st.CreateSource(ctx, store.Source{Enabled: true, Name: "s1", Kind: mock.Kind, Params: "{}"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	s, err := New(st, proc, "0 0 0 1 1 *", nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Stop()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.ScheduleCount(); got != 0 {
		t.Fatalf("expected no schedules before any are created, got %d", got)
	}

	sch, err := st.CreateSchedule(ctx, store.Schedule{SourceID: src.ID, CronExpr: "0 0 0 1 1 *"})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if err := s.ReloadSchedules(ctx); err != nil {
		t.Fatalf("ReloadSchedules: %v", err)
	}
	if got := s.ScheduleCount(); got != 1 {
		t.Fatalf("expected 1 schedule after reload, got %d", got)
	}

	if err := st.DeleteSchedule(ctx, sch.ID); err != nil {
		t.Fatalf("DeleteSchedule: %v", err)
	}
	if err := s.ReloadSchedules(ctx); err != nil {
		t.Fatalf("ReloadSchedules: %v", err)
	}
	if got := s.ScheduleCount(); got != 0 {
		t.Fatalf("expected 0 schedules after the schedule is deleted and reloaded, got %d", got)
	}
}
