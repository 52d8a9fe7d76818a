package eligibility

import (
	"testing"

	"github.com/fallpaper-daemon/fallpaper/store"
)

func baseDevice() store.Device {
	return store.Device{
		ID: "d1", Enabled: true, NativeWidth: 1920, NativeHeight: 1080, AspectTolerance: 0.02,
	}
}

func TestEligibleHappyPath(t *testing.T) {
	d := baseDevice()
	img := ImageMeta{Width: 3840, Height: 2160, Filesize: 2_000_000, NSFW: store.NSFWUnknown}
	ok, reason := Eligible(d, img)
	if !ok {
		t.Fatalf("expected eligible, got rejected: %s", reason)
	}
}

func TestAspectMismatchRejected(t *testing.T) {
	d := baseDevice()
	img := ImageMeta{Width: 1080, Height: 1920, Filesize: 100} // portrait vs landscape device
	ok, reason := Eligible(d, img)
	if ok || reason != "aspect_ratio_mismatch" {
		t.Fatalf("expected aspect_ratio_mismatch, got ok=%v reason=%q", ok, reason)
	}
}

func TestNSFWRejectPolicy(t *testing.T) {
	d := baseDevice()
	d.NSFWPolicy = store.NSFWReject
	img := ImageMeta{Width: 1920, Height: 1080, NSFW: store.NSFWFlagged}
	ok, reason := Eligible(d, img)
	if ok || reason != "nsfw_rejected" {
		t.Fatalf("expected nsfw_rejected, got ok=%v reason=%q", ok, reason)
	}
}

func TestNSFWRequirePolicy(t *testing.T) {
	d := baseDevice()
	d.NSFWPolicy = store.NSFWRequire
	img := ImageMeta{Width: 1920, Height: 1080, NSFW: store.NSFWSafe}
	ok, reason := Eligible(d, img)
	if ok || reason != "nsfw_required" {
		t.Fatalf("expected nsfw_required, got ok=%v reason=%q", ok, reason)
	}
}

func TestDimensionBoundsRejectBelowMinimum(t *testing.T) {
	d := baseDevice()
	minWidth := 2000
	d.MinWidth = &minWidth
	img := ImageMeta{Width: 1920, Height: 1080}
	ok, reason := Eligible(d, img)
	if ok || reason != "width_below_minimum" {
		t.Fatalf("expected width_below_minimum, got ok=%v reason=%q", ok, reason)
	}
}

func TestFilesizeBoundsRejectAboveMaximum(t *testing.T) {
	d := baseDevice()
	var maxSize int64 = 1_000_000
	d.MaxFilesize = &maxSize
	img := ImageMeta{Width: 1920, Height: 1080, Filesize: 5_000_000}
	ok, reason := Eligible(d, img)
	if ok || reason != "filesize_above_maximum" {
		t.Fatalf("expected filesize_above_maximum, got ok=%v reason=%q", ok, reason)
	}
}

func TestFindEligibleDevicesPartitions(t *testing.T) {
	fits := baseDevice()
	fits.ID = "fits"

	tooSmall := baseDevice()
	tooSmall.ID = "too-small"
	minW := 4000
	tooSmall.MinWidth = &minW

	img := ImageMeta{Width: 1920, Height: 1080}
	eligible, rejections := FindEligibleDevices([]store.Device{fits, tooSmall}, img)

	if len(eligible) != 1 || eligible[0].ID != "fits" {
		t.Fatalf("expected only 'fits' eligible, got %+v", eligible)
	}
	if len(rejections) != 1 || rejections[0].DeviceID != "too-small" {
		t.Fatalf("expected 'too-small' rejected, got %+v", rejections)
	}
}
