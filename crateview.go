// Package crateview lets an AI assistant explore published crate sources
// from crates.io.
//
// Given a crate name and version, the package downloads the crate's source
// tarball, caches the decompressed tree in memory, and exposes fine-grained
// read and search operations over it: directory listing, line-ranged file
// reads, full-text search, and a structural search over the crate's
// declarations.
//
// Basic usage:
//
//	explorer, err := crateview.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	key := crateview.CrateKey{Name: "serde", Version: "1.0.228"}
//	entries, err := explorer.Directory(context.Background(), key, "")
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, e := range entries {
//		fmt.Println(e.Name, e.Kind)
//	}
//
// Concurrent requests for the same missing crate perform exactly one
// download; snapshots are held in a bounded LRU and evicted least recently
// used first.
package crateview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/crateview/client"
	"github.com/git-pkgs/crateview/fetch"
	"github.com/git-pkgs/crateview/internal/archive"
	"github.com/git-pkgs/crateview/internal/cache"
	"github.com/git-pkgs/crateview/internal/cargo"
	"github.com/git-pkgs/crateview/internal/core"
	"github.com/git-pkgs/crateview/internal/crate"
	"github.com/git-pkgs/crateview/internal/itemindex"
	"github.com/git-pkgs/crateview/internal/textsearch"
)

// Re-export the shared types consumed by the HTTP boundary.
type (
	// CrateKey identifies one published crate version.
	CrateKey = core.CrateKey

	// DirEntry is one immediate child of a listed directory.
	DirEntry = core.DirEntry

	// FileLineRange selects an inclusive 1-based line window.
	FileLineRange = core.FileLineRange

	// Item is one declaration discovered by the structural indexer.
	Item = core.Item

	// ItemQuery selects declarations from the structural index.
	ItemQuery = core.ItemQuery

	// ItemType enumerates the declaration categories.
	ItemType = core.ItemType

	// Line is one full-text search match.
	Line = core.Line

	// LineQuery describes a full-text search over a snapshot.
	LineQuery = core.LineQuery

	// SearchMode selects plain-text or regex matching.
	SearchMode = core.SearchMode

	// Stats is a point-in-time view of the cache counters.
	Stats = cache.Stats
)

// Re-export constants.
const (
	ModePlainText = core.ModePlainText
	ModeRegex     = core.ModeRegex

	ItemAll              = core.ItemAll
	ItemStruct           = core.ItemStruct
	ItemEnum             = core.ItemEnum
	ItemTrait            = core.ItemTrait
	ItemImplType         = core.ItemImplType
	ItemImplTraitForType = core.ItemImplTraitForType
	ItemMacro            = core.ItemMacro
	ItemAttributeMacro   = core.ItemAttributeMacro
	ItemFunction         = core.ItemFunction
	ItemTypeAlias        = core.ItemTypeAlias
)

// ErrNotFound is returned when a crate, path, or item is not found.
var ErrNotFound = core.ErrNotFound

// ParseItemType maps a query-string value to an ItemType.
var ParseItemType = core.ParseItemType

// ParseSearchMode maps a query-string value to a SearchMode.
var ParseSearchMode = core.ParseSearchMode

// HTTPStatusOf maps any error from this package to an HTTP status code.
var HTTPStatusOf = core.HTTPStatusOf

// ParseCrateKey parses a cargo package URL ("pkg:cargo/serde@1.0.228") into a
// CrateKey. The version may be omitted; resolve it with ResolveVersion.
func ParseCrateKey(purlStr string) (CrateKey, error) {
	p, err := purl.Parse(purlStr)
	if err != nil {
		return CrateKey{}, core.InvalidQuery(fmt.Sprintf("invalid purl %q", purlStr), err)
	}
	if p.Type != "cargo" {
		return CrateKey{}, core.InvalidQuery(fmt.Sprintf("unsupported purl type %q", p.Type), nil)
	}
	return CrateKey{Name: p.Name, Version: p.Version}, nil
}

// Explorer coordinates cache admission and dispatches read and search
// operations against crate snapshots.
type Explorer struct {
	cache    *cache.CrateCache
	registry *cargo.Registry
	fetcher  fetch.FetcherInterface
	urls     *client.URLs

	limits           archive.Limits
	indexConcurrency int
	logger           *slog.Logger
}

// Option configures an Explorer.
type Option func(*Explorer, *cache.Config)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Explorer, _ *cache.Config) {
		e.logger = l
	}
}

// WithFetcher replaces the tarball fetcher.
func WithFetcher(f fetch.FetcherInterface) Option {
	return func(e *Explorer, _ *cache.Config) {
		e.fetcher = f
	}
}

// WithURLs points the explorer at a different registry origin.
func WithURLs(u *client.URLs) Option {
	return func(e *Explorer, _ *cache.Config) {
		e.urls = u
	}
}

// WithRegistry replaces the metadata client.
func WithRegistry(r *cargo.Registry) Option {
	return func(e *Explorer, _ *cache.Config) {
		e.registry = r
	}
}

// WithCacheBounds sets the snapshot cache capacity. Bytes zero disables the
// byte budget.
func WithCacheBounds(entries int, bytes int64) Option {
	return func(_ *Explorer, cfg *cache.Config) {
		cfg.MaxEntries = entries
		cfg.MaxBytes = bytes
	}
}

// WithArchiveLimits bounds the decompressed size of one archive.
func WithArchiveLimits(l archive.Limits) Option {
	return func(e *Explorer, _ *cache.Config) {
		e.limits = l
	}
}

// WithIndexConcurrency bounds parallel parsing during index builds.
func WithIndexConcurrency(n int) Option {
	return func(e *Explorer, _ *cache.Config) {
		e.indexConcurrency = n
	}
}

// New creates an Explorer targeting the public crates.io registry.
func New(opts ...Option) (*Explorer, error) {
	e := &Explorer{
		urls:   client.DefaultURLs(),
		limits: archive.DefaultLimits,
		logger: slog.Default(),
	}
	cfg := cache.Config{MaxEntries: 64, MaxBytes: 1 << 30}
	for _, opt := range opts {
		opt(e, &cfg)
	}
	if e.fetcher == nil {
		e.fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher())
	}
	if e.registry == nil {
		e.registry = cargo.New(e.urls, nil)
	}

	c, err := cache.New(cfg, e.load)
	if err != nil {
		return nil, err
	}
	e.cache = c
	return e, nil
}

// load is the cache's miss path: download the tarball and extract it into a
// snapshot.
func (e *Explorer) load(ctx context.Context, key CrateKey) (*crate.Snapshot, error) {
	url := e.urls.Download(key.Name, key.Version)
	if url == "" {
		return nil, core.InvalidQuery("crate version is required", nil)
	}

	e.logger.Info("fetching crate", "crate", key.String(), "url", url)
	art, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, mapFetchError(key, err)
	}
	defer art.Body.Close()

	snap, err := archive.Extract(key, art.Body, e.limits)
	if err != nil {
		if errors.Is(err, fetch.ErrTooLarge) {
			return nil, core.Oversize(fmt.Sprintf("crate %s exceeds the download size cap", key))
		}
		return nil, err
	}
	e.logger.Info("crate cached",
		"crate", key.String(), "files", snap.FileCount(), "bytes", snap.TotalBytes())
	return snap, nil
}

func mapFetchError(key CrateKey, err error) error {
	switch {
	case errors.Is(err, fetch.ErrNotFound):
		return core.NotFoundf("crate %s not found on the registry", key)
	case errors.Is(err, fetch.ErrTooLarge):
		return core.Oversize(fmt.Sprintf("crate %s exceeds the download size cap", key))
	case errors.Is(err, context.Canceled):
		return core.Cancelled(err)
	default:
		return core.Upstream(fmt.Sprintf("downloading crate %s", key), err)
	}
}

// Directory lists a directory of the crate. The empty path lists the root.
func (e *Explorer) Directory(ctx context.Context, key CrateKey, path string) ([]DirEntry, error) {
	p, err := core.CleanRelPath(path)
	if err != nil {
		return nil, err
	}
	entry, err := e.cache.GetOrLoad(ctx, key)
	if err != nil {
		return nil, err
	}
	return entry.Snapshot.List(p)
}

// ReadFile returns a file's bytes, narrowed to the given inclusive line range
// when one is set.
func (e *Explorer) ReadFile(ctx context.Context, key CrateKey, path string, r FileLineRange) ([]byte, error) {
	p, err := core.CleanRelPath(path)
	if err != nil {
		return nil, err
	}
	if p == "" {
		return nil, core.BadPath(path, "a file path is required")
	}
	entry, err := e.cache.GetOrLoad(ctx, key)
	if err != nil {
		return nil, err
	}
	if r.Start == 0 && r.End == 0 {
		return entry.Snapshot.ReadFile(p)
	}
	s, err := entry.Snapshot.ReadFileRange(p, r)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// SearchLines runs a full-text query over the crate's files.
func (e *Explorer) SearchLines(ctx context.Context, key CrateKey, q LineQuery) ([]Line, error) {
	entry, err := e.cache.GetOrLoad(ctx, key)
	if err != nil {
		return nil, err
	}
	return textsearch.Search(entry.Snapshot, q)
}

// SearchItems runs a structural query over the crate's declarations. The
// index is built on first use and kept for the snapshot's lifetime.
func (e *Explorer) SearchItems(ctx context.Context, key CrateKey, q ItemQuery) ([]Item, error) {
	scope, err := core.CleanRelPath(q.Path)
	if err != nil {
		return nil, err
	}
	q.Path = scope
	entry, err := e.cache.GetOrLoad(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.itemIndex(ctx, entry).Search(q), nil
}

func (e *Explorer) itemIndex(ctx context.Context, entry *cache.Entry) *itemindex.Index {
	return entry.Index(ctx, e.indexConcurrency, e.logger)
}

// Crate returns the registry's metadata for a crate with its versions,
// newest first.
func (e *Explorer) Crate(ctx context.Context, name string) (*cargo.Crate, []cargo.Version, error) {
	return e.registry.FetchCrate(ctx, name)
}

// ResolveVersion turns an empty or "latest" version into the newest
// non-yanked release; explicit versions pass through untouched.
func (e *Explorer) ResolveVersion(ctx context.Context, name, version string) (CrateKey, error) {
	if version != "" && version != "latest" {
		return CrateKey{Name: name, Version: version}, nil
	}
	v, err := e.registry.LatestVersion(ctx, name)
	if err != nil {
		return CrateKey{}, err
	}
	return CrateKey{Name: name, Version: v}, nil
}

// Purge drops one crate from the cache if present.
func (e *Explorer) Purge(key CrateKey) {
	e.cache.Purge(key)
}

// ClearCache drops every cached crate.
func (e *Explorer) ClearCache() {
	e.cache.Clear()
}

// CacheStats returns the cache counters.
func (e *Explorer) CacheStats() Stats {
	return e.cache.Stats()
}
