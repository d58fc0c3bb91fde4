package crateview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/git-pkgs/crateview/client"
	"github.com/git-pkgs/crateview/internal/archive/archivetest"
	"github.com/git-pkgs/crateview/internal/core"
)

const demoLib = `pub struct Config;

pub trait Deserialize {
    fn deserialize(&self);
}

impl Config {
    pub fn new() -> Self {
        Config
    }
}

pub fn run() {}
`

// fakeOrigin serves synthetic .crate tarballs and counts downloads per crate.
type fakeOrigin struct {
	server *httptest.Server
	crates map[string]map[string]string // name-version -> files
	hits   atomic.Int64
}

func newFakeOrigin(t *testing.T) *fakeOrigin {
	t.Helper()
	o := &fakeOrigin{crates: map[string]map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/crates/", func(w http.ResponseWriter, r *http.Request) {
		o.hits.Add(1)
		// Path shape: /crates/<name>/<name>-<version>.crate
		key := lastSegment(r.URL.Path)
		files, ok := o.crates[key]
		if !ok {
			w.WriteHeader(404)
			return
		}
		time.Sleep(20 * time.Millisecond) // give concurrent waiters time to pile up
		w.Header().Set("Content-Type", "application/gzip")
		_, _ = w.Write(archivetest.Build(keyFromFilename(key), files))
	})
	o.server = httptest.NewServer(mux)
	t.Cleanup(o.server.Close)
	return o
}

func lastSegment(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

// keyFromFilename turns "serde-1.0.0.crate" back into its CrateKey.
func keyFromFilename(file string) core.CrateKey {
	name := file[:len(file)-len(".crate")]
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '-' {
			return core.CrateKey{Name: name[:i], Version: name[i+1:]}
		}
	}
	return core.CrateKey{Name: name}
}

func (o *fakeOrigin) add(key CrateKey, files map[string]string) {
	o.crates[key.String()+".crate"] = files
}

func (o *fakeOrigin) explorer(t *testing.T, opts ...Option) *Explorer {
	t.Helper()
	urls := &client.URLs{
		APIBase:          o.server.URL,
		DownloadTemplate: o.server.URL + "/crates/%s/%s-%s.crate",
	}
	e, err := New(append([]Option{WithURLs(urls)}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

func TestColdFetchListsRoot(t *testing.T) {
	origin := newFakeOrigin(t)
	key := CrateKey{Name: "serde", Version: "1.0.0"}
	origin.add(key, map[string]string{
		"Cargo.toml": "[package]\nname = \"serde\"\n",
		"src/lib.rs": demoLib,
	})

	e := origin.explorer(t)
	entries, err := e.Directory(context.Background(), key, "")
	if err != nil {
		t.Fatalf("Directory failed: %v", err)
	}

	var names []string
	for _, en := range entries {
		names = append(names, en.Name)
	}
	if len(entries) != 2 || entries[0].Name != "Cargo.toml" || entries[1].Name != "src" {
		t.Fatalf("unexpected root listing: %v", names)
	}
	if entries[1].Kind != core.KindDir {
		t.Errorf("src listed as %v, want dir", entries[1].Kind)
	}
	if origin.hits.Load() != 1 {
		t.Errorf("origin hit %d times, want 1", origin.hits.Load())
	}
}

func TestRangedRead(t *testing.T) {
	origin := newFakeOrigin(t)
	key := CrateKey{Name: "serde", Version: "1.0.0"}
	origin.add(key, map[string]string{"src/lib.rs": demoLib})

	e := origin.explorer(t)
	got, err := e.ReadFile(context.Background(), key, "src/lib.rs", FileLineRange{Start: 3, End: 5})
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	want := "pub trait Deserialize {\n    fn deserialize(&self);\n}"
	if string(got) != want {
		t.Errorf("ranged read = %q, want %q", got, want)
	}
}

func TestItemSearch(t *testing.T) {
	origin := newFakeOrigin(t)
	key := CrateKey{Name: "serde", Version: "1.0.0"}
	origin.add(key, map[string]string{"src/lib.rs": demoLib})

	e := origin.explorer(t)
	items, err := e.SearchItems(context.Background(), key, ItemQuery{Type: ItemTrait, Query: "deserial", Path: "src"})
	if err != nil {
		t.Fatalf("SearchItems failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 trait, got %v", items)
	}
	it := items[0]
	if it.Name != "Deserialize" || it.Type != ItemTrait {
		t.Errorf("unexpected item: %+v", it)
	}
	if it.LineStart < 1 || it.LineEnd < it.LineStart {
		t.Errorf("invalid span: %+v", it)
	}
}

func TestRegexLineSearch(t *testing.T) {
	origin := newFakeOrigin(t)
	key := CrateKey{Name: "serde", Version: "1.0.0"}
	origin.add(key, map[string]string{"src/lib.rs": demoLib, "notes.txt": "fn new\n"})

	e := origin.explorer(t)
	lines, err := e.SearchLines(context.Background(), key, LineQuery{
		Query:   `fn\s+new\b`,
		Mode:    ModeRegex,
		FileExt: "rs",
		Path:    "src",
	})
	if err != nil {
		t.Fatalf("SearchLines failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 match, got %v", lines)
	}
	if lines[0].File != "src/lib.rs" || lines[0].ColumnStart != 9 {
		t.Errorf("unexpected match: %+v", lines[0])
	}
}

func TestSingleFlightColdCache(t *testing.T) {
	origin := newFakeOrigin(t)
	key := CrateKey{Name: "tokio", Version: "1.35.0"}
	origin.add(key, map[string]string{"src/lib.rs": "pub fn spawn() {}\n"})

	e := origin.explorer(t)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Directory(context.Background(), key, ""); err != nil {
				t.Errorf("Directory failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if origin.hits.Load() != 1 {
		t.Errorf("expected exactly one outbound GET, got %d", origin.hits.Load())
	}
}

func TestEvictionTriggersRefetch(t *testing.T) {
	origin := newFakeOrigin(t)
	keys := []CrateKey{
		{Name: "a", Version: "1.0.0"},
		{Name: "b", Version: "1.0.0"},
		{Name: "c", Version: "1.0.0"},
	}
	for _, k := range keys {
		origin.add(k, map[string]string{"src/lib.rs": "pub fn f() {}\n"})
	}

	e := origin.explorer(t, WithCacheBounds(2, 0))
	for _, k := range keys {
		if _, err := e.Directory(context.Background(), k, ""); err != nil {
			t.Fatalf("Directory(%v) failed: %v", k, err)
		}
	}

	before := origin.hits.Load()
	if _, err := e.Directory(context.Background(), keys[0], ""); err != nil {
		t.Fatalf("Directory(a) failed: %v", err)
	}
	if origin.hits.Load() != before+1 {
		t.Error("expected evicted crate to be fetched again")
	}
}

func TestUnknownCrateIsNotFound(t *testing.T) {
	origin := newFakeOrigin(t)
	e := origin.explorer(t)

	_, err := e.Directory(context.Background(), CrateKey{Name: "ghost", Version: "0.0.1"}, "")
	if core.KindOf(err) != core.KindNotFound {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestBadPathRejected(t *testing.T) {
	origin := newFakeOrigin(t)
	key := CrateKey{Name: "serde", Version: "1.0.0"}
	origin.add(key, map[string]string{"src/lib.rs": demoLib})
	e := origin.explorer(t)

	for _, p := range []string{"../escape", "/abs", "a//b", "src/./lib.rs"} {
		if _, err := e.ReadFile(context.Background(), key, p, FileLineRange{}); core.KindOf(err) != core.KindBadPath {
			t.Errorf("path %q: expected bad_path, got %v", p, err)
		}
	}
}

func TestParseCrateKey(t *testing.T) {
	key, err := ParseCrateKey("pkg:cargo/serde@1.0.228")
	if err != nil {
		t.Fatalf("ParseCrateKey failed: %v", err)
	}
	if key.Name != "serde" || key.Version != "1.0.228" {
		t.Errorf("unexpected key: %+v", key)
	}

	if _, err := ParseCrateKey("pkg:npm/left-pad@1.0.0"); core.KindOf(err) != core.KindInvalidQuery {
		t.Errorf("expected invalid_query for non-cargo purl, got %v", err)
	}
}

func TestPurgeForcesReload(t *testing.T) {
	origin := newFakeOrigin(t)
	key := CrateKey{Name: "serde", Version: "1.0.0"}
	origin.add(key, map[string]string{"src/lib.rs": demoLib})
	e := origin.explorer(t)

	if _, err := e.Directory(context.Background(), key, ""); err != nil {
		t.Fatalf("Directory failed: %v", err)
	}
	e.Purge(key)
	if _, err := e.Directory(context.Background(), key, ""); err != nil {
		t.Fatalf("Directory after purge failed: %v", err)
	}
	if origin.hits.Load() != 2 {
		t.Errorf("expected 2 fetches after purge, got %d", origin.hits.Load())
	}
}
