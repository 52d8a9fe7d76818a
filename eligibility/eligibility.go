// Package eligibility implements the pure device/image matching rules of
// component C3: no I/O, no clock, deterministic given its inputs.
package eligibility

import (
	"fmt"
	"math"

	"github.com/fallpaper-daemon/fallpaper/store"
)

// ImageMeta is the subset of an image's attributes eligibility needs,
// decoupled from store.Image so callers can check a candidate before it is
// ever persisted.
type ImageMeta struct {
	Width       int
	Height      int
	Filesize    int64
	NSFW        store.NSFWFlag
}

// Eligible reports whether img may be materialized onto d, and a stable,
// human-readable reason when it may not. Checks run in a fixed order — device
// enabled, then NSFW policy, then aspect ratio, then dimension bounds, then filesize bounds —
// so the first failing check is always the one reported.
func Eligible(d store.Device, img ImageMeta) (bool, string) {
	if !d.Enabled {
		return false, "device_disabled"
	}
	if ok, reason := nsfwOK(d, img); !ok {
		return false, reason
	}
	if ok, reason := aspectOK(d, img); !ok {
		return false, reason
	}
	if ok, reason := dimensionsOK(d, img); !ok {
		return false, reason
	}
	if ok, reason := filesizeOK(d, img); !ok {
		return false, reason
	}
	return true, ""
}

func nsfwOK(d store.Device, img ImageMeta) (bool, string) {
	switch d.NSFWPolicy {
	case store.NSFWReject:
		if img.NSFW == store.NSFWFlagged {
			return false, "nsfw_rejected"
		}
	case store.NSFWRequire:
		if img.NSFW != store.NSFWFlagged {
			return false, "nsfw_required"
		}
	}
	return true, ""
}

func aspectOK(d store.Device, img ImageMeta) (bool, string) {
	if d.NativeWidth <= 0 || d.NativeHeight <= 0 || img.Height <= 0 {
		return true, ""
	}
	deviceRatio := float64(d.NativeWidth) / float64(d.NativeHeight)
	imageRatio := float64(img.Width) / float64(img.Height)
	if math.Abs(deviceRatio-imageRatio) > d.AspectTolerance {
		return false, "aspect_ratio_mismatch"
	}
	return true, ""
}

func dimensionsOK(d store.Device, img ImageMeta) (bool, string) {
	if d.MinWidth != nil && img.Width < *d.MinWidth {
		return false, "width_below_minimum"
	}
	if d.MaxWidth != nil && img.Width > *d.MaxWidth {
		return false, "width_above_maximum"
	}
	if d.MinHeight != nil && img.Height < *d.MinHeight {
		return false, "height_below_minimum"
	}
	if d.MaxHeight != nil && img.Height > *d.MaxHeight {
		return false, "height_above_maximum"
	}
	return true, ""
}

func filesizeOK(d store.Device, img ImageMeta) (bool, string) {
	if d.MinFilesize != nil && img.Filesize < *d.MinFilesize {
		return false, "filesize_below_minimum"
	}
	if d.MaxFilesize != nil && img.Filesize > *d.MaxFilesize {
		return false, "filesize_above_maximum"
	}
	return true, ""
}

// Rejection pairs a device with the reason it rejected a candidate image,
// useful for run output/diagnostics.
type Rejection struct {
	DeviceID string
	Reason   string
}

// FindEligibleDevices partitions devices into those img may be materialized
// onto and the rejections for the rest.
func FindEligibleDevices(devices []store.Device, img ImageMeta) (eligible []store.Device, rejections []Rejection) {
	for _, d := range devices {
		ok, reason := Eligible(d, img)
		if ok {
			eligible = append(eligible, d)
			continue
		}
		rejections = append(rejections, Rejection{DeviceID: d.ID, Reason: reason})
	}
	return eligible, rejections
}

// String renders a rejection for logging.
func (r Rejection) String() string {
	return fmt.Sprintf("device %s: %s", r.DeviceID, r.Reason)
}
