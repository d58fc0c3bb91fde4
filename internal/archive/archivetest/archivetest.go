// Package archivetest builds in-memory crate tarballs for tests.
package archivetest

import (
	"archive/tar"
	"bytes"

	"github.com/klauspost/compress/gzip"

	"github.com/git-pkgs/crateview/internal/core"
)

// Build produces a gzipped tarball with every file placed under the crate's
// `<name>-<version>/` root directory, the way crates.io publishes them.
func Build(key core.CrateKey, files map[string]string) []byte {
	entries := make(map[string]string, len(files))
	for p, content := range files {
		entries[key.RootPrefix()+p] = content
	}
	return BuildRaw(entries)
}

// BuildRaw produces a gzipped tarball with entry names used verbatim, for
// exercising malformed and unsafe archives.
func BuildRaw(entries map[string]string) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			panic(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	if err := tw.Close(); err != nil {
		panic(err)
	}
	if err := gz.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
