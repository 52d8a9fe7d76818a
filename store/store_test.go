package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fallpaper-daemon/fallpaper/errs"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Config{Path: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetDevice(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	d, err := s.CreateDevice(ctx, Device{
		Enabled: true, DisplayName: "Living Room TV", Slug: "living-room-tv",
		NativeWidth: 3840, NativeHeight: 2160,
	})
	if err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if d.ID == "" {
		t.Fatal("expected generated ID")
	}

	got, err := s.GetDevice(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Slug != "living-room-tv" {
		t.Errorf("Slug = %q", got.Slug)
	}
}

func TestCreateDeviceDuplicateSlugRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mk := func() Device {
		return Device{Enabled: true, DisplayName: "D", Slug: "dup", NativeWidth: 1920, NativeHeight: 1080}
	}
	if _, err := s.CreateDevice(ctx, mk()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := s.CreateDevice(ctx, mk()); err == nil {
		t.Fatal("expected uniqueness error on duplicate slug")
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.GetDevice(ctx, "missing"); !errs.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestClaimPendingRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	src, err := s.CreateSource(ctx, Source{Enabled: true, Name: "s1", Kind: "mock"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	sourceID := src.ID
	past := time.Now().Add(-time.Minute).UTC()
	run, err := s.CreateRun(ctx, Run{SourceID: &sourceID, Name: "manual", ScheduledAt: NewEpochTime(past)})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	claimed, err := s.ClaimPendingRuns(ctx, time.Now().UTC(), 5)
	if err != nil {
		t.Fatalf("ClaimPendingRuns: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != run.ID {
		t.Fatalf("expected to claim the one pending run, got %+v", claimed)
	}
	if claimed[0].State != RunRunning {
		t.Errorf("state = %s, want running", claimed[0].State)
	}

	again, err := s.ClaimPendingRuns(ctx, time.Now().UTC(), 5)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected nothing left to claim, got %d", len(again))
	}
}

func TestCancelRunOnlyAffectsPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	run, err := s.CreateRun(ctx, Run{Name: "manual"})
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.CancelRun(ctx, run.ID); err != nil {
		t.Fatalf("CancelRun: %v", err)
	}

	got, err := s.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.State != RunCancelled {
		t.Fatalf("state = %s, want cancelled", got.State)
	}

	if err := s.CancelRun(ctx, run.ID); err == nil {
		t.Fatal("expected error cancelling an already-cancelled run")
	}
}

func TestListImagesCursorPagination(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	src, err := s.CreateSource(ctx, Source{Enabled: true, Name: "s", Kind: "mock"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	for i := 0; i < 5; i++ {
		_, err := s.CreateImage(ctx, Image{
			SourceID: src.ID, DownloadURL: filepath.Join("http://x/", string(rune('a'+i))),
			Checksum: "c", Width: 1920, Height: 1080, Format: "jpeg",
		})
		if err != nil {
			t.Fatalf("CreateImage %d: %v", i, err)
		}
	}

	page1, err := s.ListImages(ctx, "", "", 2)
	if err != nil {
		t.Fatalf("ListImages page1: %v", err)
	}
	if len(page1.Images) != 2 || page1.NextCursor == "" {
		t.Fatalf("expected 2 images and a next cursor, got %d images, cursor %q", len(page1.Images), page1.NextCursor)
	}

	page2, err := s.ListImages(ctx, "", page1.NextCursor, 2)
	if err != nil {
		t.Fatalf("ListImages page2: %v", err)
	}
	if len(page2.Images) != 2 {
		t.Fatalf("expected 2 images on page2, got %d", len(page2.Images))
	}
	for _, img := range page2.Images {
		for _, prev := range page1.Images {
			if img.ID == prev.ID {
				t.Fatalf("image %s appeared on both pages", img.ID)
			}
		}
	}
}

func TestDeleteImagesOlderThanRemovesImagesBeforeCutoff(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	src, err := s.CreateSource(ctx, Source{Enabled: true, Name: "s", Kind: "mock"})
	if err != nil {
		t.Fatalf("CreateSource: %v", err)
	}
	img, err := s.CreateImage(ctx, Image{
		SourceID: src.ID, DownloadURL: "http://x/a", Checksum: "c", Width: 1, Height: 1, Format: "jpeg",
	})
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}

	deleted, err := s.DeleteImagesOlderThan(ctx, time.Now().Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("DeleteImagesOlderThan: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}
	if _, err := s.GetImage(ctx, img.ID); !errs.IsNotFound(err) {
		t.Fatalf("expected image to be gone, got %v", err)
	}
}
