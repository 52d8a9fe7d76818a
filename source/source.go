// Package source defines the adapter contract (component C4): a paged,
// incremental iterator over an upstream content source, plus the registry
// that resolves a Source row's kind tag to a concrete Adapter. Adapters
// never write to the store and never restart a batch sequence once started.
package source

import (
	"context"
	"fmt"
	"sync"

	"github.com/fallpaper-daemon/fallpaper/store"
)

// Item is one normalized candidate image surfaced by an adapter, before any
// eligibility filtering or download has happened.
type Item struct {
	DownloadURL     string
	WebsiteURL      string
	Title           string
	Author          string
	AuthorURL       string
	NSFW            store.NSFWFlag
	SourceCreatedAt *int64 // unix seconds, nil when the upstream doesn't report one
	Width           int    // 0 when unknown; the processor detects it from bytes
	Height          int
}

// Batch is one page's worth of candidate items, per spec §4.4 ("up to ~100
// normalized candidate items").
type Batch struct {
	Items []Item
}

// BatchSeq is the lazy, cancellation-aware sequence an adapter's
// FetchBatches returns. It is finite and non-restartable: calling Next after
// it reports done, or after ctx is cancelled, returns ok=false.
type BatchSeq interface {
	// Next blocks until the next batch is ready, the sequence is exhausted,
	// or ctx is cancelled. ok is false in the last two cases; ok is true only
	// when batch carries at least the possibility of items (it may be empty).
	Next(ctx context.Context) (batch Batch, ok bool, err error)
}

// Adapter is the capability every upstream content source implements.
// Pagination, inter-page rate limiting, and within-adapter deduplication
// across the pages it emits are the adapter's own responsibility.
type Adapter interface {
	// Kind is the stable tag matching store.Source.Kind.
	Kind() string
	// ValidateParams rejects a source's opaque params object before a run
	// starts; nil means the params are acceptable for this adapter.
	ValidateParams(params string) error
	// FetchBatches begins a new, non-restartable iteration bounded by limit
	// (spec's Source.LookupLimit — an upper bound on upstream items
	// inspected, not guaranteed items returned).
	FetchBatches(ctx context.Context, params string, limit int) (BatchSeq, error)
}

// Registry resolves a Source.Kind string to its registered Adapter, built up
// once at process startup (per §9's "Singletons... construct them in a
// declared startup sequence and inject").
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry returns an empty registry; callers Register each adapter kind
// the daemon supports before starting the scheduler/processor.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds an adapter under its own Kind(). Registering the same kind
// twice is a configuration error, caught here rather than silently
// overwriting a prior registration.
func (r *Registry) Register(a Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Kind()]; exists {
		return fmt.Errorf("source: adapter kind %q already registered", a.Kind())
	}
	r.adapters[a.Kind()] = a
	return nil
}

// Resolve looks up the adapter for a kind tag. Returns a plain error a
// caller can treat as not-found — callers needing the errs.Kind wrap this
// themselves.
func (r *Registry) Resolve(kind string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("source: no adapter registered for kind %q", kind)
	}
	return a, nil
}

// Kinds returns every registered kind tag in no defined order; used only
// for diagnostics.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	return out
}
