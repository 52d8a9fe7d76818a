// Package daemon wires every component into a running process: construct
// the store, registry, downloader, processors, and scheduler in the
// declared startup order spec §9 requires, sweep orphaned temp files left
// by a prior unclean exit, and drive graceful shutdown on SIGINT/SIGTERM —
// generalized from the teacher's cmd/flyio-image-manager/main.go runDaemon
// (lock acquisition, dependency initialization, signal handling, graceful
// cancellation) to this domain's components.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fallpaper-daemon/fallpaper/admin"
	"github.com/fallpaper-daemon/fallpaper/config"
	"github.com/fallpaper-daemon/fallpaper/downloader"
	"github.com/fallpaper-daemon/fallpaper/imageproc"
	"github.com/fallpaper-daemon/fallpaper/lock"
	"github.com/fallpaper-daemon/fallpaper/obs"
	"github.com/fallpaper-daemon/fallpaper/processor"
	"github.com/fallpaper-daemon/fallpaper/runner"
	"github.com/fallpaper-daemon/fallpaper/scheduler"
	"github.com/fallpaper-daemon/fallpaper/source"
	"github.com/fallpaper-daemon/fallpaper/source/mock"
	"github.com/fallpaper-daemon/fallpaper/source/s3source"
	"github.com/fallpaper-daemon/fallpaper/store"
)

// orphanSweepAge is how old a leftover temp file must be before the startup
// sweep removes it — the supplemented feature SPEC_FULL.md adds: a crash
// between CreateTemp and materialize leaves an orphan that nothing else
// cleans up.
const orphanSweepAge = 1 * time.Hour

// Daemon owns every long-lived singleton for one process.
type Daemon struct {
	Store     *store.Store
	Config    *config.Snapshot
	Registry  *source.Registry
	Processor *processor.Processor
	Scheduler *scheduler.Scheduler
	Admin     *admin.Admin

	logger obs.Logger
	lock   *lock.Lock
	configPath string
}

// Build constructs every singleton in the declared order: config, lock,
// store, registry, downloader/imageproc/runner, processor, scheduler,
// admin. It does not start the scheduler — call Run for that.
func Build(configPath string, log *logrus.Logger) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: loading config: %w", err)
	}
	snapshot := config.NewSnapshot(cfg)

	logger := obs.NewLogrusLogger(log)
	tracer := obs.NewOtelTracer("fallpaper")

	dataDir := filepath.Dir(cfg.Database.Path)
	l, err := lock.Acquire(dataDir)
	if err != nil {
		return nil, err
	}

	st, err := store.New(store.Config{Path: cfg.Database.Path, Logger: logger, Tracer: tracer})
	if err != nil {
		l.Release()
		return nil, fmt.Errorf("daemon: opening store: %w", err)
	}

	registry := source.NewRegistry()
	if err := registry.Register(mock.New(nil)); err != nil {
		st.Close()
		l.Release()
		return nil, err
	}
	if err := registry.Register(s3source.New()); err != nil {
		st.Close()
		l.Release()
		return nil, err
	}

	dl := downloader.New(downloader.Config{
		MaxConcurrent:       cfg.Runner.MaxConcurrentDownloads,
		MinSpeedBytesPerSec: cfg.Runner.MinSpeedBytesPerSec,
		SlowSpeedTimeout:    cfg.Runner.SlowSpeedTimeout,
		Logger:              logger,
		Tracer:              tracer,
	})

	ip := imageproc.New(st, dl, imageproc.Config{
		ImageDir: cfg.Runner.ImageDir,
		TempDir:  cfg.Runner.TempDir,
		Logger:   logger,
		Tracer:   tracer,
	})

	rn := runner.New(st, registry, ip, logger, tracer)

	proc := processor.New(st, rn, processor.Config{
		StaleRunTimeout:   cfg.Scheduler.StaleRunTimeout,
		MaxPendingPerPoll: cfg.Scheduler.MaxPendingPerPoll,
		RetryBackoffBase:  cfg.Scheduler.RetryBackoffBase,
	}, logger, tracer)

	sch, err := scheduler.New(st, proc, cfg.Scheduler.PollCron, logger, tracer)
	if err != nil {
		st.Close()
		l.Release()
		return nil, err
	}

	adm := admin.New(st, sch)

	return &Daemon{
		Store:      st,
		Config:     snapshot,
		Registry:   registry,
		Processor:  proc,
		Scheduler:  sch,
		Admin:      adm,
		logger:     logger,
		lock:       l,
		configPath: configPath,
	}, nil
}

// Close releases the store and process lock, in reverse acquisition order.
func (d *Daemon) Close() error {
	storeErr := d.Store.Close()
	lockErr := d.lock.Release()
	if storeErr != nil {
		return storeErr
	}
	return lockErr
}

// sweepOrphanedTempFiles removes temp files older than orphanSweepAge left
// behind by a process that crashed between staging a download and
// materializing it.
func (d *Daemon) sweepOrphanedTempFiles(tempDir string) {
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		if !os.IsNotExist(err) {
			d.logger.Warn("daemon: failed to scan temp dir", obs.Fields{"error": err.Error()})
		}
		return
	}
	cutoff := time.Now().Add(-orphanSweepAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(tempDir, entry.Name())
		if err := os.Remove(path); err != nil {
			d.logger.Warn("daemon: failed to remove orphaned temp file", obs.Fields{"path": path, "error": err.Error()})
		} else {
			d.logger.Info("daemon: removed orphaned temp file", obs.Fields{"path": path})
		}
	}
}

// Run starts the scheduler and blocks until ctx is cancelled or a
// termination signal is received, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	d.sweepOrphanedTempFiles(d.Config.Current().Runner.TempDir)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.Scheduler.Start(runCtx); err != nil {
		return fmt.Errorf("daemon: starting scheduler: %w", err)
	}
	d.logger.Info("daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info("received shutdown signal", obs.Fields{"signal": sig.String()})
	case <-ctx.Done():
		d.logger.Info("context cancelled, shutting down")
	}

	cancel()
	d.Scheduler.Stop()
	d.logger.Info("shutdown complete")
	return nil
}
