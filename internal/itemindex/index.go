// Package itemindex builds a per-snapshot structural index of Rust
// declarations by parsing every source file with tree-sitter.
package itemindex

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/git-pkgs/crateview/internal/core"
	"github.com/git-pkgs/crateview/internal/crate"
)

const defaultConcurrency = 8

// Index is the finished mapping from item category to declarations. It is
// immutable after Build returns and safe for concurrent use.
type Index struct {
	byType map[core.ItemType][]core.Item
	total  int
}

// Build parses every `.rs` file in the snapshot and collects its
// declarations. Files are parsed in parallel up to the given concurrency
// (<=0 selects the default). A file that fails to parse is logged and
// skipped; it never fails the whole index.
func Build(ctx context.Context, snap *crate.Snapshot, concurrency int, logger *slog.Logger) *Index {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		mu    sync.Mutex
		items []core.Item
		sem   = make(chan struct{}, concurrency)
		wg    sync.WaitGroup
	)
	for _, path := range snap.Paths() {
		if !strings.HasSuffix(path, ".rs") {
			continue
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			source, _ := snap.File(path)
			found, err := extractFile(path, source)
			if err != nil {
				logger.Warn("skipping unparsable source file",
					"crate", snap.Key().String(), "path", path, "error", err)
				return
			}
			mu.Lock()
			items = append(items, found...)
			mu.Unlock()
		}(path)
	}
	wg.Wait()

	sortItems(items)
	ix := &Index{byType: make(map[core.ItemType][]core.Item), total: len(items)}
	for _, it := range items {
		ix.byType[it.Type] = append(ix.byType[it.Type], it)
	}
	return ix
}

// Len returns the total number of indexed declarations.
func (ix *Index) Len() int { return ix.total }

// Search returns the records matching the query: category (or all), path
// prefix, and case-insensitive name substring. Results are ordered by
// (path, line start).
func (ix *Index) Search(q core.ItemQuery) []core.Item {
	needle := strings.ToLower(q.Query)

	var candidates [][]core.Item
	if q.Type == core.ItemAll || q.Type == "" {
		for _, its := range ix.byType {
			candidates = append(candidates, its)
		}
	} else {
		candidates = append(candidates, ix.byType[q.Type])
	}

	var out []core.Item
	for _, its := range candidates {
		for _, it := range its {
			if !core.UnderPrefix(it.File, q.Path) {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(it.Name), needle) {
				continue
			}
			out = append(out, it)
		}
	}
	sortItems(out)
	return out
}

func sortItems(items []core.Item) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.LineStart != b.LineStart {
			return a.LineStart < b.LineStart
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Name < b.Name
	})
}
