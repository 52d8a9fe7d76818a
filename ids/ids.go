// Package ids generates the time-ordered unique identifiers the data model
// requires for every entity (Device, Source, Schedule, Run, Image,
// DeviceImage), and derives URL-safe device slugs.
package ids

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/oklog/ulid/v2"
)

// mu guards the monotonic entropy source: ulid.MonotonicEntropy panics if read
// concurrently, and the daemon generates ids from many goroutines (runner
// workers, scheduler fires, admin CRUD) at once.
var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a new time-ordered ULID string, lexicographically sortable by
// creation time. Used for every primary key in the data model.
func New() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewAt is New but pinned to a caller-supplied time, used by tests that need
// deterministic, ordered ids without relying on wall-clock granularity.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Slug derives a URL-safe, kebab-case slug from a device display name, e.g.
// "Pixel 8 Pro" -> "pixel-8-pro". Callers are responsible for enforcing
// uniqueness against the store; Slug itself is a pure function.
func Slug(displayName string) string {
	s := strcase.ToKebab(strings.TrimSpace(displayName))
	s = strings.Trim(s, "-")
	if s == "" {
		return "device"
	}
	return s
}

// Dedupe appends a short numeric suffix to a candidate slug, used when the
// bare slug collides with an existing device.
func Dedupe(slug string, n int) string {
	return fmt.Sprintf("%s-%d", slug, n)
}
