package archive

import (
	"bytes"
	"testing"

	"github.com/git-pkgs/crateview/internal/archive/archivetest"
	"github.com/git-pkgs/crateview/internal/core"
)

var demoKey = core.CrateKey{Name: "demo", Version: "0.1.0"}

func TestExtract(t *testing.T) {
	data := archivetest.Build(demoKey, map[string]string{
		"Cargo.toml": "[package]\nname = \"demo\"\n",
		"src/lib.rs": "pub fn hello() {}\n",
	})

	snap, err := Extract(demoKey, bytes.NewReader(data), DefaultLimits)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if snap.FileCount() != 2 {
		t.Fatalf("expected 2 files, got %d", snap.FileCount())
	}
	b, err := snap.ReadFile("src/lib.rs")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(b) != "pub fn hello() {}\n" {
		t.Errorf("round-trip mismatch: %q", b)
	}
	// The tarball root prefix must not leak into exposed paths.
	for _, p := range snap.Paths() {
		if p == "" || p[0] == '/' || bytes.Contains([]byte(p), []byte("..")) {
			t.Errorf("unsafe exposed path %q", p)
		}
		if len(p) > len(demoKey.RootPrefix()) && p[:len(demoKey.RootPrefix())] == demoKey.RootPrefix() {
			t.Errorf("root prefix not stripped from %q", p)
		}
	}
}

func TestExtractSkipsForeignRoots(t *testing.T) {
	data := archivetest.BuildRaw(map[string]string{
		"demo-0.1.0/src/lib.rs": "pub fn hello() {}\n",
		"other-9.9.9/evil.rs":   "nope\n",
	})

	snap, err := Extract(demoKey, bytes.NewReader(data), DefaultLimits)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if snap.FileCount() != 1 {
		t.Errorf("expected 1 file, got %d: %v", snap.FileCount(), snap.Paths())
	}
}

func TestExtractRejectsUnsafePaths(t *testing.T) {
	for _, name := range []string{
		"demo-0.1.0/../escape.rs",
		"/etc/passwd",
		"demo-0.1.0/a/./b.rs",
	} {
		data := archivetest.BuildRaw(map[string]string{name: "x"})
		_, err := Extract(demoKey, bytes.NewReader(data), DefaultLimits)
		if core.KindOf(err) != core.KindMalformedArchive {
			t.Errorf("entry %q: expected malformed_archive, got %v", name, err)
		}
	}
}

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := Extract(demoKey, bytes.NewReader([]byte("not a gzip stream")), DefaultLimits)
	if core.KindOf(err) != core.KindMalformedArchive {
		t.Errorf("expected malformed_archive, got %v", err)
	}
}

func TestExtractEnforcesEntryCap(t *testing.T) {
	data := archivetest.Build(demoKey, map[string]string{
		"big.bin": string(bytes.Repeat([]byte{'a'}, 1024)),
	})
	_, err := Extract(demoKey, bytes.NewReader(data), Limits{MaxFileBytes: 100})
	if core.KindOf(err) != core.KindOversize {
		t.Errorf("expected oversize, got %v", err)
	}
}

func TestExtractEnforcesTotalCap(t *testing.T) {
	data := archivetest.Build(demoKey, map[string]string{
		"a.bin": string(bytes.Repeat([]byte{'a'}, 600)),
		"b.bin": string(bytes.Repeat([]byte{'b'}, 600)),
	})
	_, err := Extract(demoKey, bytes.NewReader(data), Limits{MaxTotalBytes: 1000})
	if core.KindOf(err) != core.KindOversize {
		t.Errorf("expected oversize, got %v", err)
	}
}
