package textsearch

import (
	"testing"

	"github.com/git-pkgs/crateview/internal/core"
	"github.com/git-pkgs/crateview/internal/crate"
)

func searchSnapshot() *crate.Snapshot {
	return crate.New(core.CrateKey{Name: "demo", Version: "0.1.0"}, map[string][]byte{
		"Cargo.toml": []byte("[package]\nname = \"demo\"\n"),
		"src/lib.rs": []byte("pub fn new() -> Self {\n    Self::default()\n}\nfn newer() {}\n"),
		"src/sleep.rs": []byte("pub struct Sleep;\n// sleep twice: sleep sleep\nfn sleep() {}\n"),
		"data/blob.bin": append([]byte{0x00, 0x01, 0x02}, []byte("fn new()")...),
	})
}

func TestPlainTextSearch(t *testing.T) {
	lines, err := Search(searchSnapshot(), core.LineQuery{Query: "sleep", Mode: core.ModePlainText})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// Case-insensitive by default: matches Sleep on line 1, the comment line,
	// and the fn line; one match per line.
	if len(lines) != 3 {
		t.Fatalf("expected 3 matches, got %d: %v", len(lines), lines)
	}
	for _, l := range lines {
		if l.File != "src/sleep.rs" {
			t.Errorf("unexpected file %q", l.File)
		}
	}
	if lines[0].LineNumber != 1 || lines[1].LineNumber != 2 || lines[2].LineNumber != 3 {
		t.Errorf("unexpected line ordering: %v", lines)
	}
	// First match per line only.
	if lines[1].ColumnStart != 4 {
		t.Errorf("comment match column = %d, want 4", lines[1].ColumnStart)
	}
}

func TestCaseSensitiveSearch(t *testing.T) {
	lines, err := Search(searchSnapshot(), core.LineQuery{
		Query:         "Sleep",
		Mode:          core.ModePlainText,
		CaseSensitive: true,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(lines) != 1 || lines[0].LineNumber != 1 {
		t.Fatalf("expected the single Sleep line, got %v", lines)
	}
}

func TestWholeWordSearch(t *testing.T) {
	lines, err := Search(searchSnapshot(), core.LineQuery{
		Query:     "new",
		Mode:      core.ModePlainText,
		WholeWord: true,
		FileExt:   "rs",
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// "newer" must not match.
	if len(lines) != 1 {
		t.Fatalf("expected 1 match, got %d: %v", len(lines), lines)
	}
	if lines[0].File != "src/lib.rs" || lines[0].LineNumber != 1 {
		t.Errorf("unexpected match %v", lines[0])
	}
}

func TestRegexSearch(t *testing.T) {
	lines, err := Search(searchSnapshot(), core.LineQuery{
		Query:   `fn\s+new\b`,
		Mode:    core.ModeRegex,
		FileExt: "rs",
		Path:    "src",
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 match, got %d: %v", len(lines), lines)
	}
	if lines[0].ColumnStart != 5 {
		t.Errorf("ColumnStart = %d, want 5 (the fn keyword)", lines[0].ColumnStart)
	}
	if lines[0].ColumnEnd <= lines[0].ColumnStart {
		t.Errorf("degenerate column range: %v", lines[0])
	}
}

func TestInvalidRegex(t *testing.T) {
	_, err := Search(searchSnapshot(), core.LineQuery{Query: "(unclosed", Mode: core.ModeRegex})
	if core.KindOf(err) != core.KindInvalidQuery {
		t.Errorf("expected invalid_query, got %v", err)
	}
}

func TestEmptyQuery(t *testing.T) {
	_, err := Search(searchSnapshot(), core.LineQuery{Query: "  ", Mode: core.ModePlainText})
	if core.KindOf(err) != core.KindInvalidQuery {
		t.Errorf("expected invalid_query, got %v", err)
	}
}

func TestBadPathFilter(t *testing.T) {
	_, err := Search(searchSnapshot(), core.LineQuery{Query: "fn", Mode: core.ModePlainText, Path: "../src"})
	if core.KindOf(err) != core.KindBadPath {
		t.Errorf("expected bad_path, got %v", err)
	}
}

func TestBinaryFilesSkipped(t *testing.T) {
	lines, err := Search(searchSnapshot(), core.LineQuery{Query: "fn new", Mode: core.ModePlainText})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	for _, l := range lines {
		if l.File == "data/blob.bin" {
			t.Errorf("binary file was searched: %v", l)
		}
	}
}

func TestMaxResults(t *testing.T) {
	lines, err := Search(searchSnapshot(), core.LineQuery{Query: "e", Mode: core.ModePlainText, MaxResults: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("expected cap of 2 results, got %d", len(lines))
	}
}

func TestOrderingAndExtFilter(t *testing.T) {
	lines, err := Search(searchSnapshot(), core.LineQuery{Query: "demo", Mode: core.ModePlainText, FileExt: "toml"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(lines) != 1 || lines[0].File != "Cargo.toml" {
		t.Fatalf("expected single Cargo.toml match, got %v", lines)
	}

	// Identical inputs yield identical sequences.
	again, err := Search(searchSnapshot(), core.LineQuery{Query: "demo", Mode: core.ModePlainText, FileExt: "toml"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(again) != len(lines) || again[0] != lines[0] {
		t.Errorf("search is not deterministic: %v vs %v", lines, again)
	}
}
