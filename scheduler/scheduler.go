// Package scheduler implements component C9: it owns every cron job bound
// to a source (via a Schedule row), inserts a pending Run at each fire time,
// and drives the run processor's poll-cron tick. It never executes a run
// itself — that is always C8's job.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-memdb"
	"github.com/robfig/cron/v3"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/obs"
	"github.com/fallpaper-daemon/fallpaper/processor"
	"github.com/fallpaper-daemon/fallpaper/store"
)

// instanceActive enforces the single-scheduler-per-process rule (spec §4.9:
// "multiple scheduler instances within the same process are a configuration
// error").
var instanceActive atomic.Bool

// scheduleEntry is one row of the in-memory schedule cache — a
// hashicorp/go-memdb table repurposed from the teacher's unused dependency
// (see DESIGN.md) into the indexed map from scheduleId to its live
// cron-timer handle that spec §4.9 describes.
type scheduleEntry struct {
	ID       string
	SourceID string
	CronExpr string
	EntryID  cron.EntryID
}

var memdbSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		"schedules": {
			Name: "schedules",
			Indexes: map[string]*memdb.IndexSchema{
				"id":        {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				"source_id": {Name: "source_id", Indexer: &memdb.StringFieldIndex{Field: "SourceID"}},
			},
		},
	},
}

// Scheduler is the process-wide cron owner. Construct it once (New enforces
// this) and keep it for the process's lifetime.
type Scheduler struct {
	store     *store.Store
	processor *processor.Processor
	pollCron  string
	logger    obs.Logger
	tracer    obs.Tracer

	mu    sync.Mutex
	cache *memdb.MemDB
	cr    *cron.Cron
	pollEntryID cron.EntryID
	running     bool
}

// New constructs a Scheduler. It returns an error if another Scheduler is
// already active in this process.
func New(st *store.Store, proc *processor.Processor, pollCron string, logger obs.Logger, tracer obs.Tracer) (*Scheduler, error) {
	if !instanceActive.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("scheduler: a scheduler instance is already active in this process")
	}
	if logger == nil {
		logger = obs.Noop()
	}
	if tracer == nil {
		tracer = obs.NoopTracer()
	}
	cache, err := memdb.NewMemDB(memdbSchema)
	if err != nil {
		instanceActive.Store(false)
		return nil, fmt.Errorf("scheduler: building schedule cache: %w", err)
	}
	return &Scheduler{
		store:     st,
		processor: proc,
		pollCron:  pollCron,
		logger:    logger,
		tracer:    tracer,
		cache:     cache,
		cr:        cron.New(cron.WithSeconds()),
	}, nil
}

// Start recovers any runs orphaned by a prior process's unclean exit, loads
// every enabled schedule, and starts the poll-cron driver that invokes
// Processor.Tick.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler: already started")
	}

	if err := s.processor.RecoverRunsOnStartup(ctx); err != nil {
		return fmt.Errorf("scheduler: recovering runs on startup: %w", err)
	}
	if err := s.loadSchedulesLocked(ctx); err != nil {
		return err
	}

	entryID, err := s.cr.AddFunc(s.pollCron, func() {
		tickCtx, span := s.tracer.Start(context.Background(), "scheduler.poll")
		if err := s.processor.Tick(tickCtx); err != nil {
			s.logger.Error("scheduler: poll tick failed", obs.Fields{"error": err.Error()})
		}
		span.End(nil)
	})
	if err != nil {
		return fmt.Errorf("scheduler: invalid poll cron %q: %w", s.pollCron, err)
	}
	s.pollEntryID = entryID

	s.cr.Start()
	s.running = true
	return nil
}

// Stop halts every timer and releases the process-wide singleton slot.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cr != nil {
		ctx := s.cr.Stop()
		<-ctx.Done()
	}
	s.running = false
	instanceActive.Store(false)
}

// loadSchedulesLocked reads every schedule, skips any whose source is
// disabled, and creates a cron timer for the rest. Callers must hold s.mu.
func (s *Scheduler) loadSchedulesLocked(ctx context.Context) error {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: listing schedules: %w", err)
	}

	for _, sch := range schedules {
		src, err := s.store.GetSource(ctx, sch.SourceID)
		if err != nil {
			if errs.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("scheduler: loading source %s: %w", sch.SourceID, err)
		}
		if !src.Enabled {
			continue
		}
		if err := s.addScheduleLocked(sch); err != nil {
			s.logger.Error("scheduler: failed to add schedule", obs.Fields{"schedule_id": sch.ID, "error": err.Error()})
		}
	}
	return nil
}

func (s *Scheduler) addScheduleLocked(sch store.Schedule) error {
	scheduleID, sourceID := sch.ID, sch.SourceID
	entryID, err := s.cr.AddFunc(sch.CronExpr, func() { s.fire(scheduleID, sourceID) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", sch.CronExpr, err)
	}
	txn := s.cache.Txn(true)
	if err := txn.Insert("schedules", &scheduleEntry{ID: sch.ID, SourceID: sch.SourceID, CronExpr: sch.CronExpr, EntryID: entryID}); err != nil {
		txn.Abort()
		s.cr.Remove(entryID)
		return fmt.Errorf("caching schedule: %w", err)
	}
	txn.Commit()
	return nil
}

// fire is the per-schedule cron callback: re-verify the source is still
// enabled (read-through, no cache — spec §4.9) and insert a pending Run.
// Execution always happens later, via C8; the scheduler never runs a
// source itself.
func (s *Scheduler) fire(scheduleID, sourceID string) {
	ctx, span := s.tracer.Start(context.Background(), "scheduler.fire")
	defer span.End(nil)

	src, err := s.store.GetSource(ctx, sourceID)
	if err != nil {
		s.logger.Error("scheduler: fire failed to load source", obs.Fields{"source_id": sourceID, "error": err.Error()})
		return
	}
	if !src.Enabled {
		s.logger.Debug("scheduler: skipping fire, source disabled", obs.Fields{"source_id": sourceID})
		return
	}

	scheduleID2 := scheduleID
	_, err = s.store.CreateRun(ctx, store.Run{
		SourceID:    &sourceID,
		ScheduleID:  &scheduleID2,
		Name:        "fetch_source",
		State:       store.RunPending,
		ScheduledAt: store.Now(),
	})
	if err != nil {
		s.logger.Error("scheduler: failed to insert scheduled run", obs.Fields{"source_id": sourceID, "error": err.Error()})
	}
}

// ReloadSchedules stops every current timer and reloads from the store —
// the hook invoked by the external admin surface after any mutation that
// affects a Schedule row or a Source's enabled flag.
func (s *Scheduler) ReloadSchedules(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.cache.Txn(false)
	it, err := txn.Get("schedules", "id")
	if err != nil {
		return fmt.Errorf("scheduler: reading schedule cache: %w", err)
	}
	var entries []*scheduleEntry
	for raw := it.Next(); raw != nil; raw = it.Next() {
		entries = append(entries, raw.(*scheduleEntry))
	}
	txn.Abort()

	for _, e := range entries {
		s.cr.Remove(e.EntryID)
	}

	newCache, err := memdb.NewMemDB(memdbSchema)
	if err != nil {
		return fmt.Errorf("scheduler: rebuilding schedule cache: %w", err)
	}
	s.cache = newCache

	return s.loadSchedulesLocked(ctx)
}

// ScheduleCount returns the number of schedules currently holding a live
// cron timer, used by diagnostics and tests.
func (s *Scheduler) ScheduleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn := s.cache.Txn(false)
	it, err := txn.Get("schedules", "id")
	if err != nil {
		return 0
	}
	n := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		n++
	}
	return n
}
