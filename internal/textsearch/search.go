// Package textsearch implements plain-text and regex line search over a
// crate snapshot.
package textsearch

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/git-pkgs/crateview/internal/core"
	"github.com/git-pkgs/crateview/internal/crate"
)

// binaryProbeLen is how much of a file is scanned for NUL bytes before it is
// treated as binary and skipped.
const binaryProbeLen = 8 << 10

// Search runs a line query against a snapshot. Results are ordered by
// (file, line number) with files visited in ascending lexicographic order;
// only the first match per line is recorded.
func Search(snap *crate.Snapshot, q core.LineQuery) ([]core.Line, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, core.InvalidQuery("empty query", nil)
	}
	scope, err := core.CleanRelPath(q.Path)
	if err != nil {
		return nil, err
	}

	pattern, err := compile(q)
	if err != nil {
		return nil, err
	}
	exts := splitExtList(q.FileExt)

	var results []core.Line
	for _, path := range snap.Paths() {
		if !core.UnderPrefix(path, scope) {
			continue
		}
		if len(exts) > 0 && !exts[extensionOf(path)] {
			continue
		}
		data, _ := snap.File(path)
		if isBinary(data) {
			continue
		}

		lines := strings.Split(string(data), "\n")
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
		for i, line := range lines {
			line = strings.TrimSuffix(line, "\r")
			loc := pattern.FindStringIndex(line)
			if loc == nil {
				continue
			}
			results = append(results, core.Line{
				Line:        line,
				File:        path,
				LineNumber:  i + 1,
				ColumnStart: loc[0] + 1,
				ColumnEnd:   loc[1] + 1,
			})
			if q.MaxResults > 0 && len(results) >= q.MaxResults {
				return results, nil
			}
		}
	}
	return results, nil
}

// compile builds one regexp covering both search modes. Plain-text queries
// are quoted; the whole-word and case flags wrap the pattern the same way in
// either mode.
func compile(q core.LineQuery) (*regexp.Regexp, error) {
	var pattern string
	switch q.Mode {
	case core.ModeRegex:
		pattern = q.Query
	default:
		pattern = regexp.QuoteMeta(q.Query)
	}
	if q.WholeWord {
		pattern = `\b(?:` + pattern + `)\b`
	}
	if !q.CaseSensitive {
		pattern = `(?i)` + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, core.InvalidQuery("invalid search pattern", err)
	}
	return re, nil
}

func splitExtList(s string) map[string]bool {
	exts := make(map[string]bool)
	for _, e := range strings.Split(s, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			exts[e] = true
		}
	}
	return exts
}

// extensionOf returns the lowercased characters after the last '.' of the
// basename, or "" when the basename has no extension.
func extensionOf(path string) string {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

func isBinary(data []byte) bool {
	probe := data
	if len(probe) > binaryProbeLen {
		probe = probe[:binaryProbeLen]
	}
	return bytes.IndexByte(probe, 0) >= 0
}
