package imageproc

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fallpaper-daemon/fallpaper/downloader"
	"github.com/fallpaper-daemon/fallpaper/eligibility"
	"github.com/fallpaper-daemon/fallpaper/obs"
	"github.com/fallpaper-daemon/fallpaper/source"
	"github.com/fallpaper-daemon/fallpaper/store"
)

// Checksum computes a content hash good enough for dedup — spec §4.6 calls
// for "a non-cryptographic collision-resistant hash such as 128-bit MD5" —
// so crypto/md5 is the literal match, not a cryptographic-integrity use.
func Checksum(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// Outcome classifies what happened to one candidate item.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// ItemResult is the per-item detail accumulated into a run's output (spec
// §4.6's "per-item detail").
type ItemResult struct {
	URL     string  `json:"url"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	ImageID string  `json:"image_id,omitempty"`
}

// BatchResult is the per-batch accumulation downloadAndProcessImages
// returns — component C6's documented entry point in spec §4.6.
type BatchResult struct {
	Processed  int          `json:"processed"`
	Downloaded int          `json:"downloaded"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Items      []ItemResult `json:"items"`
}

// Config configures a Processor's filesystem layout.
type Config struct {
	ImageDir string
	TempDir  string
	Logger   obs.Logger
	Tracer   obs.Tracer
}

// Processor implements component C6: per-image format/dimension/checksum
// detection, atomic staging, and fan-out to every eligible device.
type Processor struct {
	store *store.Store
	dl    *downloader.Downloader
	cfg   Config
}

// New builds a Processor backed by st for persistence and dl for streaming
// downloads.
func New(st *store.Store, dl *downloader.Downloader, cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = obs.Noop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = obs.NoopTracer()
	}
	return &Processor{store: st, dl: dl, cfg: cfg}
}

// DownloadAndProcessImages composes the Downloader and the per-image
// processing pipeline over a batch of candidate items (spec §4.6's named
// entry point). devices is the set of eligible-at-batch-time devices
// (already filtered by subscription/enablement upstream in the runner);
// eligibility is re-checked per item once true dimensions/filesize are
// known.
func (p *Processor) DownloadAndProcessImages(ctx context.Context, sourceID string, items []source.Item, devices []store.Device) (BatchResult, error) {
	var result BatchResult
	if len(items) == 0 {
		return result, nil
	}

	if err := os.MkdirAll(p.cfg.TempDir, 0o755); err != nil {
		return result, fmt.Errorf("imageproc: creating temp dir: %w", err)
	}

	tempPaths := make([]string, len(items))
	dlItems := make([]downloader.Item, len(items))
	files := make([]*os.File, len(items))
	for i, item := range items {
		f, err := os.CreateTemp(p.cfg.TempDir, "fallpaper-dl-*")
		if err != nil {
			return result, fmt.Errorf("imageproc: creating temp file: %w", err)
		}
		files[i] = f
		tempPaths[i] = f.Name()
		dlItems[i] = downloader.Item{URL: item.DownloadURL, Dest: f}
	}

	dlResults := p.dl.DownloadAll(ctx, dlItems)

	ctx, span := p.cfg.Tracer.Start(ctx, "imageproc.DownloadAndProcessImages")
	defer span.End(nil)

	for i, item := range items {
		files[i].Close()
		dlr := dlResults[i]

		if dlr.Err != nil {
			result.Failed++
			result.Items = append(result.Items, ItemResult{URL: item.DownloadURL, Outcome: OutcomeFailed, Reason: dlr.Err.Error()})
			os.Remove(tempPaths[i])
			continue
		}
		result.Downloaded++

		ir, err := p.processOne(ctx, sourceID, item, tempPaths[i], dlr.ContentType, devices)
		if err != nil {
			result.Failed++
			result.Items = append(result.Items, ItemResult{URL: item.DownloadURL, Outcome: OutcomeFailed, Reason: err.Error()})
			continue
		}
		switch ir.Outcome {
		case OutcomeProcessed:
			result.Processed++
		case OutcomeSkipped:
			result.Skipped++
		case OutcomeFailed:
			result.Failed++
		}
		result.Items = append(result.Items, ir)
	}

	return result, nil
}

// processOne sniffs format/dimensions/checksum from the staged file,
// recomputes eligibility now that true dimensions/filesize are known, and —
// if at least one device remains eligible — inserts the Image row and fans
// it out to every eligible device's directory.
func (p *Processor) processOne(ctx context.Context, sourceID string, item source.Item, tempPath, contentType string, devices []store.Device) (ItemResult, error) {
	data, err := os.ReadFile(tempPath)
	if err != nil {
		os.Remove(tempPath)
		return ItemResult{}, fmt.Errorf("reading staged file: %w", err)
	}

	width, height, format, err := DetectDimensions(data)
	if err != nil {
		os.Remove(tempPath)
		return ItemResult{URL: item.DownloadURL, Outcome: OutcomeFailed, Reason: "dimensions_unknown"}, nil
	}
	if format == "" {
		format = DetectFormat(contentType, SniffContentType(data), item.DownloadURL)
	}
	checksum := Checksum(data)
	filesize := int64(len(data))

	meta := eligibility.ImageMeta{Width: width, Height: height, Filesize: filesize, NSFW: item.NSFW}
	eligibleDevices, _ := eligibility.FindEligibleDevices(devices, meta)
	if len(eligibleDevices) == 0 {
		os.Remove(tempPath)
		return ItemResult{URL: item.DownloadURL, Outcome: OutcomeSkipped, Reason: "no eligible devices"}, nil
	}

	if existing, err := p.store.ImageByDownloadURL(ctx, item.DownloadURL); err == nil {
		os.Remove(tempPath)
		return ItemResult{URL: item.DownloadURL, Outcome: OutcomeSkipped, Reason: "already known", ImageID: existing.ID}, nil
	}

	img := store.Image{
		SourceID:    sourceID,
		WebsiteURL:  item.WebsiteURL,
		DownloadURL: item.DownloadURL,
		Checksum:    checksum,
		Width:       width,
		Height:      height,
		AspectRatio: float64(width) / float64(height),
		Filesize:    filesize,
		Format:      format,
		NSFW:        item.NSFW,
	}
	if item.SourceCreatedAt != nil {
		t := time.Unix(*item.SourceCreatedAt, 0).UTC()
		img.SourceCreatedAt = store.NewNullEpochTime(&t)
	}
	if item.Title != "" {
		img.Title = &item.Title
	}
	if item.Author != "" {
		img.Author = &item.Author
	}
	if item.AuthorURL != "" {
		img.AuthorURL = &item.AuthorURL
	}

	created, err := p.store.CreateImage(ctx, img)
	if err != nil {
		os.Remove(tempPath)
		return ItemResult{}, fmt.Errorf("inserting image row: %w", err)
	}

	if err := p.materialize(ctx, created, format, tempPath, eligibleDevices); err != nil {
		return ItemResult{URL: item.DownloadURL, Outcome: OutcomeFailed, Reason: err.Error(), ImageID: created.ID}, nil
	}

	return ItemResult{URL: item.DownloadURL, Outcome: OutcomeProcessed, ImageID: created.ID}, nil
}

// materialize fans the staged file out to every eligible device's
// directory: rename-from-temp for the first device, copy for the rest, per
// spec §4.6 and §9's filesystem-atomicity note. A failure partway leaves
// the Image row and whichever DeviceImage rows/files were already written
// in place — a retriable partial-success state the spec explicitly allows.
func (p *Processor) materialize(ctx context.Context, img store.Image, format, stagedPath string, devices []store.Device) error {
	var firstDest string
	for i, d := range devices {
		deviceDir := filepath.Join(p.cfg.ImageDir, d.Slug)
		if err := os.MkdirAll(deviceDir, 0o755); err != nil {
			return fmt.Errorf("creating device directory %s: %w", deviceDir, err)
		}
		destPath := filepath.Join(deviceDir, fmt.Sprintf("%s.%s", img.ID, format))

		if i == 0 {
			if err := os.Rename(stagedPath, destPath); err != nil {
				if err := copyFile(stagedPath, destPath); err != nil {
					return fmt.Errorf("materializing to %s: %w", destPath, err)
				}
				os.Remove(stagedPath)
			}
			firstDest = destPath
		} else {
			if err := copyFile(firstDest, destPath); err != nil {
				return fmt.Errorf("materializing to %s: %w", destPath, err)
			}
		}

		if _, err := p.store.CreateDeviceImage(ctx, d.ID, img.ID, destPath); err != nil {
			return fmt.Errorf("recording device_image for %s: %w", d.Slug, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
