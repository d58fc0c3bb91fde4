// Package crate holds the immutable in-memory representation of one extracted
// crate tarball and its read operations.
package crate

import (
	"sort"
	"strings"

	"github.com/git-pkgs/crateview/internal/core"
)

// Snapshot is the decompressed form of one crate version. All exposed paths
// are crate-root-relative with forward slashes. A snapshot never changes after
// construction and can be shared across goroutines without locking.
type Snapshot struct {
	key        core.CrateKey
	files      map[string][]byte
	paths      []string // sorted
	dirs       map[string]struct{}
	totalBytes int64
}

// New builds a snapshot from extracted files. The caller hands over ownership
// of the byte slices; they must not be mutated afterwards.
func New(key core.CrateKey, files map[string][]byte) *Snapshot {
	s := &Snapshot{
		key:   key,
		files: files,
		dirs:  make(map[string]struct{}),
	}
	s.paths = make([]string, 0, len(files))
	for p, b := range files {
		s.paths = append(s.paths, p)
		s.totalBytes += int64(len(b))
		for i := len(p) - 1; i > 0; i-- {
			if p[i] == '/' {
				dir := p[:i]
				if _, ok := s.dirs[dir]; ok {
					break
				}
				s.dirs[dir] = struct{}{}
			}
		}
	}
	sort.Strings(s.paths)
	return s
}

// Key returns the crate identity this snapshot was extracted from.
func (s *Snapshot) Key() core.CrateKey { return s.key }

// TotalBytes returns the decompressed size of all retained files.
func (s *Snapshot) TotalBytes() int64 { return s.totalBytes }

// FileCount returns the number of retained files.
func (s *Snapshot) FileCount() int { return len(s.paths) }

// Paths returns all file paths in ascending lexicographic order. The returned
// slice is shared; callers must not modify it.
func (s *Snapshot) Paths() []string { return s.paths }

// File returns the raw bytes of a stored file.
func (s *Snapshot) File(path string) ([]byte, bool) {
	b, ok := s.files[path]
	return b, ok
}

// IsDir reports whether path names a directory, i.e. at least one stored file
// lives under it. The empty path is the crate root and always a directory.
func (s *Snapshot) IsDir(path string) bool {
	if path == "" {
		return true
	}
	_, ok := s.dirs[path]
	return ok
}

// List returns the immediate children of a directory, sorted by name.
// The empty path lists the crate root. Returns KindNotFound if path does not
// name a directory.
func (s *Snapshot) List(path string) ([]core.DirEntry, error) {
	if !s.IsDir(path) {
		return nil, core.NotFoundf("directory %q not found in %s", path, s.key)
	}
	prefix := ""
	if path != "" {
		prefix = path + "/"
	}
	seen := make(map[string]core.EntryKind)
	for _, p := range s.paths {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			seen[rest[:i]] = core.KindDir
		} else if _, taken := seen[rest]; !taken {
			seen[rest] = core.KindFile
		}
	}
	entries := make([]core.DirEntry, 0, len(seen))
	for name, kind := range seen {
		entries = append(entries, core.DirEntry{Name: name, Kind: kind})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadFile returns the full raw bytes of a file, or KindNotFound.
func (s *Snapshot) ReadFile(path string) ([]byte, error) {
	b, ok := s.files[path]
	if !ok {
		return nil, core.NotFoundf("file %q not found in %s", path, s.key)
	}
	return b, nil
}

// ReadFileRange returns the selected lines joined with "\n". Line numbers are
// 1-based and inclusive on both ends; a zero Start defaults to the first line
// and a zero End to the last. A start past the end of the file yields an empty
// string, and End clamps to the line count. Splitting is on ASCII '\n', so a
// file ending in a newline contributes a final empty line.
func (s *Snapshot) ReadFileRange(path string, r core.FileLineRange) (string, error) {
	b, ok := s.files[path]
	if !ok {
		return "", core.NotFoundf("file %q not found in %s", path, s.key)
	}
	if r.Start == 0 && r.End == 0 {
		return string(b), nil
	}
	lines := strings.Split(string(b), "\n")
	start := r.Start
	if start < 1 {
		start = 1
	}
	end := r.End
	if end == 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end || start > len(lines) {
		return "", nil
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}
