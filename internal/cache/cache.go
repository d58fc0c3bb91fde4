// Package cache provides the bounded LRU of crate snapshots with
// single-flight load coalescing.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/git-pkgs/crateview/internal/core"
	"github.com/git-pkgs/crateview/internal/crate"
	"github.com/git-pkgs/crateview/internal/itemindex"
)

// Loader fetches and extracts the snapshot for a missing key.
type Loader func(ctx context.Context, key core.CrateKey) (*crate.Snapshot, error)

// Entry pairs a snapshot with its lazily built item index. The index is
// created on the first structural query and lives exactly as long as the
// entry.
type Entry struct {
	Snapshot *crate.Snapshot

	indexOnce sync.Once
	index     *itemindex.Index
}

// Index returns the entry's structural index, building it on first use.
// Concurrent first calls coalesce onto a single builder; the build is
// detached from the caller's cancellation so an aborted request cannot
// memoize a partial index.
func (e *Entry) Index(ctx context.Context, concurrency int, logger *slog.Logger) *itemindex.Index {
	e.indexOnce.Do(func() {
		e.index = itemindex.Build(context.WithoutCancel(ctx), e.Snapshot, concurrency, logger)
	})
	return e.index
}

// Config bounds the cache. MaxEntries must be positive; MaxBytes zero
// disables the byte budget.
type Config struct {
	MaxEntries int
	MaxBytes   int64
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
	Bytes     int64
}

// CrateCache is a fixed-capacity LRU keyed by (name, version). Misses go
// through a single-flight group so concurrent requests for the same key
// perform exactly one load.
type CrateCache struct {
	loader Loader

	mu    sync.Mutex
	lru   *lru.Cache[core.CrateKey, *Entry]
	bytes int64

	maxBytes int64
	group    singleflight.Group

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache with the given bounds and loader.
func New(cfg Config, loader Loader) (*CrateCache, error) {
	c := &CrateCache{loader: loader, maxBytes: cfg.MaxBytes}
	l, err := lru.NewWithEvict[core.CrateKey, *Entry](cfg.MaxEntries, func(_ core.CrateKey, e *Entry) {
		c.bytes -= e.Snapshot.TotalBytes()
		c.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// GetOrLoad returns the cached entry for key, loading and admitting it on a
// miss. All concurrent callers for the same key observe the same outcome. A
// caller whose context is cancelled stops waiting; the in-flight load keeps
// running for the remaining waiters.
func (c *CrateCache) GetOrLoad(ctx context.Context, key core.CrateKey) (*Entry, error) {
	c.mu.Lock()
	if e, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		c.hits.Add(1)
		return e, nil
	}
	c.mu.Unlock()
	c.misses.Add(1)

	ch := c.group.DoChan(key.String(), func() (any, error) {
		// Detach from the first caller: one waiter cancelling must not fail
		// the load for the others.
		snap, err := c.loader(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		e := &Entry{Snapshot: snap}
		c.admit(key, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, core.Cancelled(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	}
}

// admit inserts an entry, evicting in strict LRU order until both the entry
// count and the byte budget hold. A snapshot bigger than the whole budget is
// still admitted once the cache is otherwise empty.
func (c *CrateCache) admit(key core.CrateKey, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	size := e.Snapshot.TotalBytes()
	if c.maxBytes > 0 {
		for c.bytes+size > c.maxBytes && c.lru.Len() > 0 {
			c.lru.RemoveOldest()
		}
	}
	c.bytes += size
	c.lru.Add(key, e)
}

// Purge removes one key if present.
func (c *CrateCache) Purge(key core.CrateKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Clear removes all entries.
func (c *CrateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Stats returns current counters.
func (c *CrateCache) Stats() Stats {
	c.mu.Lock()
	entries, bytes := c.lru.Len(), c.bytes
	c.mu.Unlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
		Bytes:     bytes,
	}
}
