// Package processor implements component C8: the run lifecycle engine. One
// cooperative tick recovers stale runs, claims due pending runs, and
// executes each sequentially, applying the retry-with-backoff policy the
// teacher's download FSM applies per-transition (download/fsm.go's
// MaxRetriesDownload counters) generalized here to one counter per run.
package processor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/obs"
	"github.com/fallpaper-daemon/fallpaper/runner"
	"github.com/fallpaper-daemon/fallpaper/store"
)

// Config configures retry/stale-recovery timing, per spec §4.2's scheduler
// options.
type Config struct {
	StaleRunTimeout   time.Duration
	MaxPendingPerPoll int
	RetryBackoffBase  time.Duration
}

// Processor drives the run lifecycle: claim, execute, retry, recover.
type Processor struct {
	store  *store.Store
	runner *runner.Runner
	cfg    Config
	logger obs.Logger
	tracer obs.Tracer
}

// New builds a Processor.
func New(st *store.Store, rn *runner.Runner, cfg Config, logger obs.Logger, tracer obs.Tracer) *Processor {
	if cfg.MaxPendingPerPoll <= 0 {
		cfg.MaxPendingPerPoll = 5
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = time.Minute
	}
	if logger == nil {
		logger = obs.Noop()
	}
	if tracer == nil {
		tracer = obs.NoopTracer()
	}
	return &Processor{store: st, runner: rn, cfg: cfg, logger: logger, tracer: tracer}
}

// backoffDuration returns base * 2^oldRetryCount — the exponential backoff
// end-to-end scenario 4 in spec §8 describes (+base, +2×base, +4×base on
// successive retries) — computed by reading oldRetryCount+1 values off a
// fresh, zero-jitter cenkalti/backoff/v4 ExponentialBackOff rather than
// letting the library drive its own retry loop: retries here persist
// through the runs table, across process restarts, so the processor — not
// an in-memory backoff object — owns when the next attempt fires.
func backoffDuration(base time.Duration, oldRetryCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.MaxInterval = time.Duration(math.MaxInt64)
	b.Reset()
	var d time.Duration
	for i := 0; i <= oldRetryCount; i++ {
		d = b.NextBackOff()
	}
	return d
}

// RecoverRunsOnStartup treats every row left in RunRunning as orphaned by
// definition (spec §3: "running rows only exist for an actively owned run
// inside the current process") and retries/fails it immediately.
func (p *Processor) RecoverRunsOnStartup(ctx context.Context) error {
	runs, err := p.store.FindAllRunning(ctx)
	if err != nil {
		return fmt.Errorf("processor: listing running runs at startup: %w", err)
	}
	for _, r := range runs {
		if err := p.recover(ctx, r, "interrupted by server restart", time.Now().UTC()); err != nil {
			return err
		}
	}
	return nil
}

// RecoverStale reclaims runs that have been RunRunning past the configured
// stale timeout — a worker that crashed without getting the chance to
// update the row.
func (p *Processor) RecoverStale(ctx context.Context) error {
	threshold := time.Now().UTC().Add(-p.cfg.StaleRunTimeout)
	runs, err := p.store.FindStaleRunning(ctx, threshold)
	if err != nil {
		return fmt.Errorf("processor: finding stale runs: %w", err)
	}
	for _, r := range runs {
		if err := p.recover(ctx, r, "timed out", time.Now().UTC().Add(backoffDuration(p.cfg.RetryBackoffBase, r.RetryCount))); err != nil {
			return err
		}
	}
	return nil
}

// recover applies the same retry-or-fail rule used for a thrown execution
// error, since a stale/orphaned run is indistinguishable from one whose
// worker failed silently.
func (p *Processor) recover(ctx context.Context, r store.Run, reason string, scheduledAt time.Time) error {
	if r.RetryCount < r.MaxRetries {
		if err := p.store.RetryRun(ctx, r.ID, scheduledAt, reason); err != nil {
			return fmt.Errorf("processor: retrying run %s: %w", r.ID, err)
		}
		p.logger.Warn("recovered run, rescheduled", obs.Fields{"run_id": r.ID, "reason": reason, "retry_count": r.RetryCount + 1})
		return nil
	}
	if err := p.store.FailRun(ctx, r.ID, reason); err != nil {
		return fmt.Errorf("processor: failing exhausted run %s: %w", r.ID, err)
	}
	p.logger.Warn("recovered run, retries exhausted", obs.Fields{"run_id": r.ID, "reason": reason})
	return nil
}

// Tick is one cooperative processing cycle: recover stale runs, then claim
// and execute up to MaxPendingPerPoll due runs, sequentially.
func (p *Processor) Tick(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "processor.Tick")
	var tickErr error
	defer func() { span.End(tickErr) }()

	if err := p.RecoverStale(ctx); err != nil {
		tickErr = err
		return err
	}

	claimed, err := p.store.ClaimPendingRuns(ctx, time.Now().UTC(), p.cfg.MaxPendingPerPoll)
	if err != nil {
		tickErr = fmt.Errorf("processor: claiming pending runs: %w", err)
		return tickErr
	}

	for _, r := range claimed {
		p.executeRun(ctx, r)
	}
	return nil
}

// TriggerProcessing is the external "run now" nudge (spec §4.8); it runs
// the identical tick without waiting for the poll cron to fire.
func (p *Processor) TriggerProcessing(ctx context.Context) error {
	return p.Tick(ctx)
}

// executeRun runs one claimed run to completion (or to a retry/fail
// decision) and never returns an error to Tick's caller — per spec §4.8,
// a single run's outcome is fully resolved (completed/failed/pending) by
// the time this returns; Tick only aborts on a fatal store failure.
func (p *Processor) executeRun(ctx context.Context, r store.Run) {
	ctx, span := p.tracer.Start(ctx, "processor.executeRun")
	defer func() { span.End(nil) }()
	span.SetAttr("run_id", r.ID)

	if err := p.store.UpdateRunProgress(ctx, r.ID, 0, 0, "Starting…"); err != nil {
		p.logger.Error("processor: failed to mark run starting", obs.Fields{"run_id": r.ID, "error": err.Error()})
	}

	if r.SourceID == nil {
		p.failOrRetry(ctx, r, fmt.Errorf("run has no source id"))
		return
	}

	report := func(ctx context.Context, current, total int, message string) error {
		return p.store.UpdateRunProgress(ctx, r.ID, current, total, message)
	}

	outcome, err := p.runner.Run(ctx, *r.SourceID, report)
	if err != nil {
		p.failOrRetry(ctx, r, err)
		return
	}

	message := outcome.SkipReason
	if message == "" {
		message = fmt.Sprintf("completed: %d downloaded, %d skipped, %d failed", outcome.ImagesDownloaded, outcome.ImagesSkipped, outcome.ImagesFailed)
	}
	if err := p.store.UpdateRunProgress(ctx, r.ID, outcome.ImagesDownloaded, outcome.ImagesFound, message); err != nil {
		p.logger.Error("processor: failed to persist final progress", obs.Fields{"run_id": r.ID, "error": err.Error()})
	}
	if err := p.store.CompleteRun(ctx, r.ID, runner.MarshalOutput(outcome)); err != nil {
		p.logger.Error("processor: failed to complete run", obs.Fields{"run_id": r.ID, "error": err.Error()})
	}
}

// failOrRetry classifies err via errs.Kind: NotFound/ValidationFailed never
// retry (spec §7); anything else consumes a retry attempt, or fails outright
// once retries are exhausted.
func (p *Processor) failOrRetry(ctx context.Context, r store.Run, runErr error) {
	if errs.IsNotFound(runErr) || errs.IsValidation(runErr) {
		if err := p.store.FailRun(ctx, r.ID, runErr.Error()); err != nil {
			p.logger.Error("processor: failed to fail run", obs.Fields{"run_id": r.ID, "error": err.Error()})
		}
		return
	}

	if r.RetryCount < r.MaxRetries {
		scheduledAt := time.Now().UTC().Add(backoffDuration(p.cfg.RetryBackoffBase, r.RetryCount))
		if err := p.store.RetryRun(ctx, r.ID, scheduledAt, runErr.Error()); err != nil {
			p.logger.Error("processor: failed to retry run", obs.Fields{"run_id": r.ID, "error": err.Error()})
		}
		return
	}
	if err := p.store.FailRun(ctx, r.ID, runErr.Error()); err != nil {
		p.logger.Error("processor: failed to fail exhausted run", obs.Fields{"run_id": r.ID, "error": err.Error()})
	}
}
