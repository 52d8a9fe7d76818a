// Package runner implements component C7: one source's run, end to end —
// load the source and its subscribers, validate adapter params, iterate
// batches, de-dupe by download URL, hand survivors to the image processor,
// and keep the run's progress fields current at batch boundaries.
//
// The runner never decides retry-vs-fail itself; it surfaces an error (for
// the run processor to classify via errs.Kind) or an Outcome whose Success
// is always true once Run returns without error — "succeeded" per spec §4.7
// means the adapter completed and fetch/filter ran to completion, even if
// individual downloads failed; those failures are reflected in the
// Outcome's counts, not in Success.
package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/imageproc"
	"github.com/fallpaper-daemon/fallpaper/obs"
	"github.com/fallpaper-daemon/fallpaper/source"
	"github.com/fallpaper-daemon/fallpaper/store"
)

// Outcome is the run-level result the processor (C8) persists as a run's
// output and progress.
type Outcome struct {
	Success           bool                  `json:"success"`
	Skipped           bool                  `json:"skipped"`
	SkipReason        string                `json:"skip_reason,omitempty"`
	ImagesFound       int                   `json:"images_found"`
	ImagesDownloaded  int                   `json:"images_downloaded"`
	ImagesSkipped     int                   `json:"images_skipped"`
	ImagesFailed      int                   `json:"images_failed"`
	Items             []imageproc.ItemResult `json:"items,omitempty"`
}

// ProgressReporter is the narrow callback the runner uses to persist
// progress at batch boundaries — implemented by the run processor binding
// it to a specific run id, keeping the runner store-update-free except for
// the de-dupe lookup and the processor's own writes.
type ProgressReporter func(ctx context.Context, current, total int, message string) error

// Runner drives one source's run.
type Runner struct {
	store     *store.Store
	registry  *source.Registry
	processor *imageproc.Processor
	logger    obs.Logger
	tracer    obs.Tracer
}

// New builds a Runner.
func New(st *store.Store, registry *source.Registry, processor *imageproc.Processor, logger obs.Logger, tracer obs.Tracer) *Runner {
	if logger == nil {
		logger = obs.Noop()
	}
	if tracer == nil {
		tracer = obs.NoopTracer()
	}
	return &Runner{store: st, registry: registry, processor: processor, logger: logger, tracer: tracer}
}

// Run executes one source fetch to completion, calling report after each
// batch. A returned error means C8 must classify it (errs.Kind) to decide
// retry-vs-fail; a nil error with a non-nil Outcome always means success
// (possibly a record-and-skip).
func (r *Runner) Run(ctx context.Context, sourceID string, report ProgressReporter) (Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "runner.Run")
	var runErr error
	defer func() { span.End(runErr) }()

	src, err := r.store.GetSource(ctx, sourceID)
	if err != nil {
		runErr = fmt.Errorf("runner: loading source: %w", err)
		return Outcome{}, runErr
	}

	if !src.Enabled {
		return Outcome{Success: true, Skipped: true, SkipReason: "source disabled"}, nil
	}

	devices, err := r.store.ListSubscribedDevices(ctx, sourceID)
	if err != nil {
		runErr = fmt.Errorf("runner: loading subscribed devices: %w", err)
		return Outcome{}, runErr
	}
	if len(devices) == 0 {
		return Outcome{Success: true, Skipped: true, SkipReason: "no eligible devices subscribed"}, nil
	}

	adapter, err := r.registry.Resolve(src.Kind)
	if err != nil {
		runErr = errs.Validationf("no adapter registered for source kind %q", src.Kind)
		return Outcome{}, runErr
	}
	if err := adapter.ValidateParams(src.Params); err != nil {
		runErr = errs.Validationf("invalid params for source %s: %v", src.Name, err)
		return Outcome{}, runErr
	}

	seq, err := adapter.FetchBatches(ctx, src.Params, src.LookupLimit)
	if err != nil {
		runErr = fmt.Errorf("runner: starting fetch: %w", err)
		return Outcome{}, runErr
	}

	var outcome Outcome
	for {
		batch, ok, err := seq.Next(ctx)
		if err != nil {
			runErr = fmt.Errorf("runner: adapter error: %w", err)
			r.reportProgress(ctx, report, outcome, "adapter error: "+err.Error())
			return outcome, runErr
		}
		if !ok {
			break
		}
		if len(batch.Items) == 0 {
			continue
		}

		outcome.ImagesFound += len(batch.Items)

		survivors := make([]source.Item, 0, len(batch.Items))
		for _, item := range batch.Items {
			if _, err := r.store.ImageByDownloadURL(ctx, item.DownloadURL); err == nil {
				outcome.ImagesSkipped++
				continue
			} else if !errs.IsNotFound(err) {
				runErr = fmt.Errorf("runner: checking existing image: %w", err)
				return outcome, runErr
			}
			survivors = append(survivors, item)
		}

		if len(survivors) > 0 {
			batchResult, err := r.processor.DownloadAndProcessImages(ctx, sourceID, survivors, devices)
			if err != nil {
				runErr = fmt.Errorf("runner: processing batch: %w", err)
				return outcome, runErr
			}
			outcome.ImagesDownloaded += batchResult.Processed
			outcome.ImagesSkipped += batchResult.Skipped
			outcome.ImagesFailed += batchResult.Failed
			outcome.Items = append(outcome.Items, batchResult.Items...)
		}

		r.reportProgress(ctx, report, outcome, fmt.Sprintf("processed %d/%d images", outcome.ImagesDownloaded+outcome.ImagesSkipped+outcome.ImagesFailed, outcome.ImagesFound))
	}

	outcome.Success = true
	return outcome, nil
}

func (r *Runner) reportProgress(ctx context.Context, report ProgressReporter, outcome Outcome, message string) {
	if report == nil {
		return
	}
	current := outcome.ImagesDownloaded + outcome.ImagesSkipped + outcome.ImagesFailed
	if err := report(ctx, current, outcome.ImagesFound, message); err != nil {
		r.logger.Warn("runner: failed to persist progress", obs.Fields{"error": err.Error()})
	}
}

// MarshalOutput renders an Outcome as the run's JSON output column.
func MarshalOutput(o Outcome) string {
	b, err := json.Marshal(o)
	if err != nil {
		return "{}"
	}
	return string(b)
}
