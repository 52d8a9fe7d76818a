package store

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

// EpochTime stores a required timestamp as an INTEGER unix-epoch column, the
// representation spec §6 calls for ("integer Unix-epoch timestamps").
// modernc.org/sqlite only auto-converts a column into time.Time when its
// declared type contains a date/time keyword (DATE/DATETIME/TIMESTAMP); every
// timestamp column in this schema is declared INTEGER, so the conversion has
// to happen explicitly here — the same way the teacher reads its one
// INTEGER epoch column (database/database.go's lockedAt int64, converted
// with time.Unix(lockedAt, 0)) instead of a time.Time field.
type EpochTime struct {
	time.Time
}

// NewEpochTime wraps t, normalized to UTC.
func NewEpochTime(t time.Time) EpochTime {
	return EpochTime{t.UTC()}
}

// Now returns the current time as an EpochTime.
func Now() EpochTime {
	return NewEpochTime(time.Now())
}

// Value implements driver.Valuer, binding the column as a Unix-seconds
// integer rather than the time.Time the sqlite driver would otherwise try
// (and fail) to store into an INTEGER column.
func (e EpochTime) Value() (driver.Value, error) {
	return e.Time.Unix(), nil
}

// Scan implements sql.Scanner, reading the INTEGER column back as seconds.
func (e *EpochTime) Scan(src any) error {
	sec, err := scanEpochSeconds(src)
	if err != nil {
		return fmt.Errorf("store: scanning epoch time: %w", err)
	}
	e.Time = time.Unix(sec, 0).UTC()
	return nil
}

// NullEpochTime stores an optional timestamp the same way, mirroring
// sql.NullTime's Valid-flag shape for a column that may be NULL.
type NullEpochTime struct {
	Time  time.Time
	Valid bool
}

// NewNullEpochTime wraps t if non-nil, normalized to UTC.
func NewNullEpochTime(t *time.Time) NullEpochTime {
	if t == nil {
		return NullEpochTime{}
	}
	return NullEpochTime{Time: t.UTC(), Valid: true}
}

// Ptr returns the timestamp as *time.Time, nil when not set.
func (n NullEpochTime) Ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func (n NullEpochTime) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Time.Unix(), nil
}

func (n *NullEpochTime) Scan(src any) error {
	if src == nil {
		n.Time, n.Valid = time.Time{}, false
		return nil
	}
	sec, err := scanEpochSeconds(src)
	if err != nil {
		return fmt.Errorf("store: scanning nullable epoch time: %w", err)
	}
	n.Time, n.Valid = time.Unix(sec, 0).UTC(), true
	return nil
}

func scanEpochSeconds(src any) (int64, error) {
	switch v := src.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported source type %T", src)
	}
}
