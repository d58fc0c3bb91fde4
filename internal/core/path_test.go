package core

import "testing"

func TestCleanRelPath(t *testing.T) {
	valid := map[string]string{
		"":            "",
		"src":         "src",
		"src/":        "src",
		"src/lib.rs":  "src/lib.rs",
		"a/b/c.toml":  "a/b/c.toml",
		".cargo/conf": ".cargo/conf",
	}
	for in, want := range valid {
		got, err := CleanRelPath(in)
		if err != nil {
			t.Errorf("CleanRelPath(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("CleanRelPath(%q) = %q, want %q", in, got, want)
		}
	}

	invalid := []string{"/abs", "../up", "a/../b", "a//b", "a/./b", `a\b`, "/"}
	for _, in := range invalid {
		if _, err := CleanRelPath(in); KindOf(err) != KindBadPath {
			t.Errorf("CleanRelPath(%q): expected bad_path, got %v", in, err)
		}
	}
}

func TestSafeEntryPath(t *testing.T) {
	for _, p := range []string{"demo-0.1.0/src/lib.rs", "demo-0.1.0/Cargo.toml"} {
		if !SafeEntryPath(p) {
			t.Errorf("SafeEntryPath(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"", "/etc/passwd", "a/../b", "./a", `a\b`, "a//b"} {
		if SafeEntryPath(p) {
			t.Errorf("SafeEntryPath(%q) = true, want false", p)
		}
	}
}

func TestUnderPrefix(t *testing.T) {
	cases := []struct {
		path, prefix string
		want         bool
	}{
		{"src/lib.rs", "", true},
		{"src/lib.rs", "src", true},
		{"src/lib.rs", "src/", true},
		{"src", "src", true},
		{"srcdir/lib.rs", "src", false},
		{"tests/a.rs", "src", false},
	}
	for _, c := range cases {
		if got := UnderPrefix(c.path, c.prefix); got != c.want {
			t.Errorf("UnderPrefix(%q, %q) = %v, want %v", c.path, c.prefix, got, c.want)
		}
	}
}
