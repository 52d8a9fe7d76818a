// Package config implements the three-layer configuration load of spec §4.2:
// built-in defaults, overridden by an optional KEY=value file, overridden by
// FALLPAPER_-prefixed environment variables. The resulting snapshot is
// immutable; Reload produces a brand new snapshot and swaps it in atomically.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/immutable"
)

const envPrefix = "FALLPAPER_"

// stringHasher satisfies immutable.Hasher[string] without depending on any
// library-provided default — the raw snapshot map only ever holds string
// keys, so this is the one hasher the whole package needs.
type stringHasher struct{}

func (stringHasher) Hash(v string) uint32 {
	// FNV-1a, good enough for a config map with a few dozen keys.
	var h uint32 = 2166136261
	for i := 0; i < len(v); i++ {
		h ^= uint32(v[i])
		h *= 16777619
	}
	return h
}

func (stringHasher) Equal(a, b string) bool { return a == b }

// Database holds database-related options.
type Database struct {
	Path         string
	QueryLogging bool
	Tracing      bool
}

// Scheduler holds run-scheduler options.
type Scheduler struct {
	PollCron           string
	StaleRunTimeout    time.Duration
	MaxPendingPerPoll  int
	RetryBackoffBase   time.Duration
}

// Runner holds fetch/download/process options.
type Runner struct {
	ImageDir              string
	TempDir                string
	MaxConcurrentDownloads int
	MinSpeedBytesPerSec    int64
	SlowSpeedTimeout       time.Duration
}

// Config is the immutable, fully-coerced configuration snapshot. Every field
// is resolved at load time; nothing in the rest of the system re-reads the
// environment or the config file.
type Config struct {
	Database  Database
	Scheduler Scheduler
	Runner    Runner

	// raw backs Raw, the lookup of a single key's resolved coerced value.
	raw *immutable.Map[string, string]
}

// Raw returns the coerced-string value for a fully-qualified key (e.g.
// "SCHEDULER_POLL_CRON"), mostly useful for diagnostics.
func (c *Config) Raw(key string) (string, bool) {
	return c.raw.Get(key)
}

type schemaEntry struct {
	key     string
	def     string
	kind    kind
}

type kind int

const (
	kindString kind = iota
	kindBool
	kindInt
	kindInt64
	kindDuration
)

var schema = []schemaEntry{
	{"DATABASE_PATH", "/var/lib/fallpaper/fallpaper.db", kindString},
	{"DATABASE_QUERY_LOGGING", "false", kindBool},
	{"DATABASE_TRACING", "false", kindBool},

	{"SCHEDULER_POLL_CRON", "*/30 * * * * *", kindString},
	{"SCHEDULER_STALE_RUN_TIMEOUT", "30m", kindDuration},
	{"SCHEDULER_MAX_PENDING_RUNS_PER_POLL", "5", kindInt},
	{"SCHEDULER_RETRY_BACKOFF_BASE", "1m", kindDuration},

	{"RUNNER_IMAGE_DIRECTORY", "/var/lib/fallpaper/images", kindString},
	{"RUNNER_TEMP_DIRECTORY", "/var/lib/fallpaper/tmp", kindString},
	{"RUNNER_MAX_CONCURRENT_DOWNLOADS", "4", kindInt},
	{"RUNNER_MIN_SPEED_BYTES_PER_SEC", "10240", kindInt64},
	{"RUNNER_SLOW_SPEED_TIMEOUT", "15s", kindDuration},
}

// Load builds an immutable snapshot: defaults, then the file at filePath (if
// it exists — a missing file is not an error), then environment variables.
// Environment variables only override when set to a non-empty value.
func Load(filePath string) (*Config, error) {
	values := map[string]string{}
	for _, e := range schema {
		values[e.key] = e.def
	}

	if filePath != "" {
		fileValues, err := parseFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", filePath, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}

	for _, e := range schema {
		if v := os.Getenv(envPrefix + e.key); v != "" {
			values[e.key] = v
		}
	}

	return build(values)
}

func build(values map[string]string) (*Config, error) {
	raw := immutable.NewMap[string, string](stringHasher{})
	for _, e := range schema {
		raw = raw.Set(e.key, values[e.key])
	}

	get := func(key string) string {
		v, _ := raw.Get(key)
		return v
	}

	boolOf := func(key string) (bool, error) {
		v := get(key)
		switch v {
		case "true", "1":
			return true, nil
		case "false", "0", "":
			return false, nil
		default:
			return false, fmt.Errorf("%s: invalid boolean %q", key, v)
		}
	}
	intOf := func(key string) (int, error) {
		n, err := strconv.Atoi(get(key))
		if err != nil {
			return 0, fmt.Errorf("%s: invalid integer %q: %w", key, get(key), err)
		}
		return n, nil
	}
	int64Of := func(key string) (int64, error) {
		n, err := strconv.ParseInt(get(key), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid integer %q: %w", key, get(key), err)
		}
		return n, nil
	}
	durationOf := func(key string) (time.Duration, error) {
		d, err := time.ParseDuration(get(key))
		if err != nil {
			return 0, fmt.Errorf("%s: invalid duration %q: %w", key, get(key), err)
		}
		return d, nil
	}

	dbQueryLogging, err := boolOf("DATABASE_QUERY_LOGGING")
	if err != nil {
		return nil, err
	}
	dbTracing, err := boolOf("DATABASE_TRACING")
	if err != nil {
		return nil, err
	}
	staleTimeout, err := durationOf("SCHEDULER_STALE_RUN_TIMEOUT")
	if err != nil {
		return nil, err
	}
	maxPending, err := intOf("SCHEDULER_MAX_PENDING_RUNS_PER_POLL")
	if err != nil {
		return nil, err
	}
	backoffBase, err := durationOf("SCHEDULER_RETRY_BACKOFF_BASE")
	if err != nil {
		return nil, err
	}
	maxConcurrent, err := intOf("RUNNER_MAX_CONCURRENT_DOWNLOADS")
	if err != nil {
		return nil, err
	}
	minSpeed, err := int64Of("RUNNER_MIN_SPEED_BYTES_PER_SEC")
	if err != nil {
		return nil, err
	}
	slowTimeout, err := durationOf("RUNNER_SLOW_SPEED_TIMEOUT")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		raw: raw,
		Database: Database{
			Path:         get("DATABASE_PATH"),
			QueryLogging: dbQueryLogging,
			Tracing:      dbTracing,
		},
		Scheduler: Scheduler{
			PollCron:          get("SCHEDULER_POLL_CRON"),
			StaleRunTimeout:   staleTimeout,
			MaxPendingPerPoll: maxPending,
			RetryBackoffBase:  backoffBase,
		},
		Runner: Runner{
			ImageDir:               get("RUNNER_IMAGE_DIRECTORY"),
			TempDir:                get("RUNNER_TEMP_DIRECTORY"),
			MaxConcurrentDownloads: maxConcurrent,
			MinSpeedBytesPerSec:    minSpeed,
			SlowSpeedTimeout:       slowTimeout,
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Runner.MaxConcurrentDownloads <= 0 {
		return fmt.Errorf("config: RUNNER_MAX_CONCURRENT_DOWNLOADS must be positive")
	}
	if c.Scheduler.MaxPendingPerPoll <= 0 {
		return fmt.Errorf("config: SCHEDULER_MAX_PENDING_RUNS_PER_POLL must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: DATABASE_PATH must not be empty")
	}
	return nil
}

// Snapshot is the process-wide holder, swapped atomically by Reload.
type Snapshot struct {
	ptr atomic.Pointer[Config]
}

// NewSnapshot wraps an already-loaded Config for process-wide sharing.
func NewSnapshot(cfg *Config) *Snapshot {
	s := &Snapshot{}
	s.ptr.Store(cfg)
	return s
}

// Current returns the currently active immutable snapshot.
func (s *Snapshot) Current() *Config {
	return s.ptr.Load()
}

// Reload loads a fresh Config from the same file path and swaps it in.
// The previous snapshot remains valid for anyone still holding a reference
// to it — it is never mutated, only replaced.
func (s *Snapshot) Reload(filePath string) (*Config, error) {
	cfg, err := Load(filePath)
	if err != nil {
		return nil, err
	}
	s.ptr.Store(cfg)
	return cfg, nil
}
