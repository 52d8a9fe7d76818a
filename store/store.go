// Package store is the persistence layer (component C1): a single SQLite
// database, accessed through sqlx, with an embedded forward-only migration
// runner modeled on the teacher's database package.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/fallpaper-daemon/fallpaper/errs"
	"github.com/fallpaper-daemon/fallpaper/obs"
)

// Config configures a Store. Path is a filesystem path; Logger and Tracer
// are capabilities, never concrete library types.
type Config struct {
	Path   string
	Logger obs.Logger
	Tracer obs.Tracer
}

// Store wraps the database handle and the capabilities every query method
// uses to log and trace itself.
type Store struct {
	db     *sqlx.DB
	logger obs.Logger
	tracer obs.Tracer
}

// New opens (creating if necessary) the SQLite database at cfg.Path, applies
// pragmas for WAL concurrency, and runs any pending migrations.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		cfg.Logger = obs.Noop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = obs.NoopTracer()
	}

	db, err := sqlx.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", cfg.Path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite + WAL: one writer, serialize via the pool

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA mmap_size = 134217728",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, logger: cfg.Logger, tracer: cfg.Tracer}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schemaMigrationsTable); err != nil {
		return fmt.Errorf("store: creating schema_migrations: %w", err)
	}

	var applied int
	for _, m := range migrations {
		var count int
		if err := s.db.Get(&count, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version); err != nil {
			return fmt.Errorf("store: checking migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("store: begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: applying migration %d (%s): %w", m.version, m.description, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version, description) VALUES (?, ?)", m.version, m.description); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %d: %w", m.version, err)
		}
		applied++
	}

	if applied > 0 {
		s.logger.Info("applied migrations", obs.Fields{"count": applied})
	}
	return nil
}

// Named runs fn inside a named span, logging failures at Warn and recording
// duration at Debug — the store's equivalent of the teacher's perf.Timer
// wrapping every database round-trip.
func (s *Store) Named(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "store."+label)
	timer := obs.StartTimer("store."+label, s.logger)
	err := fn(ctx)
	span.End(err)
	timer.StopWithThreshold(200 * time.Millisecond)
	if err != nil && !isNotFoundErr(err) {
		s.logger.Warn("store operation failed", obs.Fields{"operation": label, "error": err.Error()})
	}
	return err
}

func isNotFoundErr(err error) bool {
	return err == sql.ErrNoRows || errs.IsNotFound(err)
}
