package capacity

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/erg0nix/ctxmeter/internal/registry"
)

// SonnetContextSize is reported for every model id mentioning "sonnet"; hosts expose that family
// under many aliases that share one capacity.
const SonnetContextSize = 128000

// Registry supplies live per-model configuration.
type Registry interface {
	Lookup(ctx context.Context, id string) (registry.Model, error)
}

type Options struct {
	Registry  Registry
	Fallback  int
	CacheSize int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

// Resolver answers "how many tokens fit in this model's context".
type Resolver struct {
	mu       sync.RWMutex
	table    *Table
	cache    *Cache
	registry Registry
	fallback int
	logger   *slog.Logger
}

func NewResolver(opts Options) *Resolver {
	if opts.Fallback <= 0 {
		opts.Fallback = 4096
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Resolver{
		table:    NewTable(""),
		cache:    NewCache(opts.CacheSize, opts.CacheTTL),
		registry: opts.Registry,
		fallback: opts.Fallback,
		logger:   opts.Logger,
	}
}

// Refresh re-derives the table from overrideText when its digest differs from the current one and
// clears memoized lookups. It reports whether the table changed.
func (r *Resolver) Refresh(overrideText string) bool {
	digest := Digest(overrideText)

	r.mu.RLock()
	unchanged := r.table.Digest() == digest
	r.mu.RUnlock()

	if unchanged {
		return false
	}

	table := NewTable(overrideText)

	r.mu.Lock()
	if r.table.Digest() == digest {
		r.mu.Unlock()
		return false
	}
	r.table = table
	r.mu.Unlock()

	r.cache.InvalidateAll()
	r.logger.Info("context overrides reloaded", "entries", len(table.Entries()))

	return true
}

// Table returns the current snapshot.
func (r *Resolver) Table() *Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.table
}

// Fallback is the size used when nothing else matches.
func (r *Resolver) Fallback() int {
	return r.fallback
}

func (r *Resolver) CachedLookups() int {
	return r.cache.Len()
}

// Resolve returns the context capacity of rawID. It never fails.
func (r *Resolver) Resolve(ctx context.Context, rawID string) int {
	if rawID == "" {
		return r.fallback
	}

	if strings.Contains(strings.ToLower(rawID), "sonnet") {
		return SonnetContextSize
	}

	table := r.Table()
	normalized := Normalize(rawID)
	key := CacheKey{Raw: rawID, Normalized: normalized, Snapshot: table.Digest()}

	return r.cache.GetOrCompute(key, func() (int, bool) {
		size := r.resolve(ctx, rawID, normalized, table)
		// A lookup cut short by the caller is answered but not remembered.
		return size, ctx.Err() == nil
	})
}

// ResolveHinted is Resolve with a capacity the host already reported for this request. The hint
// stands in for the registry answer: the empty-id and sonnet rules still win, and a non-positive
// hint falls through to Resolve. Hinted answers are not memoized.
func (r *Resolver) ResolveHinted(ctx context.Context, rawID string, hint int) int {
	if hint <= 0 || rawID == "" || strings.Contains(strings.ToLower(rawID), "sonnet") {
		return r.Resolve(ctx, rawID)
	}
	return hint
}

func (r *Resolver) resolve(ctx context.Context, rawID, normalized string, table *Table) int {
	size, err := r.lookupLive(ctx, rawID)
	if err == nil {
		return size
	}
	r.logger.Debug("model registry lookup skipped", "model", rawID, "error", err)

	if size, ok := table.Lookup(rawID); ok {
		return size
	}

	if size, ok := table.Lookup(normalized); ok {
		return size
	}

	return r.fallback
}

func (r *Resolver) lookupLive(ctx context.Context, rawID string) (int, error) {
	if r.registry == nil {
		return 0, registry.ErrNotFound
	}

	model, err := r.registry.Lookup(ctx, rawID)
	if err != nil {
		return 0, err
	}

	if model.ContextSize <= 0 {
		return 0, registry.ErrNoContextSize
	}

	return model.ContextSize, nil
}
