// Package lock provides the single-instance guard a daemon process takes
// out against its data directory: only one fallpaperd process may own a
// given store at a time, since concurrent writers would race on SQLite's
// file locking and on filesystem materialization paths alike.
//
// The teacher's go.mod already carries go.etcd.io/bbolt, though no
// retrieved teacher file shows its use-site. bbolt.Open itself takes an
// exclusive flock on its database file for the process's lifetime, so a
// one-bucket bbolt database is repurposed here purely for that locking
// behavior (see DESIGN.md).
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var metaBucket = []byte("lock")

// Lock holds an exclusive process lock over a data directory.
type Lock struct {
	db   *bbolt.DB
	path string
}

// Acquire takes the lock at <dataDir>/fallpaperd.lock. It fails after
// waiting at most one second (rather than blocking indefinitely) if another
// process already holds it, so the
// daemon can report a clear startup error instead of hanging.
func Acquire(dataDir string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("lock: creating data dir: %w", err)
	}
	path := filepath.Join(dataDir, "fallpaperd.lock")

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		if err == bbolt.ErrTimeout {
			return nil, fmt.Errorf("lock: another fallpaperd instance is already running against %s", dataDir)
		}
		return nil, fmt.Errorf("lock: opening lock file: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		hostname, _ := os.Hostname()
		return b.Put([]byte("owner"), []byte(fmt.Sprintf("pid=%d host=%s acquired_at=%s", os.Getpid(), hostname, time.Now().UTC().Format(time.RFC3339))))
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lock: recording ownership: %w", err)
	}

	return &Lock{db: db, path: path}, nil
}

// Owner returns the recorded "pid=... host=... acquired_at=..." string for
// diagnostics.
func (l *Lock) Owner() (string, error) {
	var owner string
	err := l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		if b == nil {
			return nil
		}
		owner = string(b.Get([]byte("owner")))
		return nil
	})
	return owner, err
}

// Release closes the lock database, dropping the flock so a subsequent
// process can acquire it.
func (l *Lock) Release() error {
	return l.db.Close()
}
