// Package archive turns a gzip-compressed crate tarball into a Snapshot.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/git-pkgs/crateview/internal/core"
	"github.com/git-pkgs/crateview/internal/crate"
)

// Limits bounds the decompressed size of an archive. Zero disables a limit.
type Limits struct {
	// MaxFileBytes caps a single extracted file.
	MaxFileBytes int64
	// MaxTotalBytes caps the aggregate decompressed size.
	MaxTotalBytes int64
}

// DefaultLimits match a deployment serving multi-megabyte crates without
// letting one archive exhaust the process.
var DefaultLimits = Limits{
	MaxFileBytes:  64 << 20,
	MaxTotalBytes: 256 << 20,
}

// Extract stream-decompresses a gzipped tarball and retains every regular
// file entry in memory, keyed by its path with the crate's root directory
// (`<name>-<version>/`) stripped. Directory, symlink, hard-link, and device
// entries are skipped. Entries with absolute or dot-segment paths fail the
// whole archive.
func Extract(key core.CrateKey, r io.Reader, limits Limits) (*crate.Snapshot, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, core.MalformedArchive(fmt.Sprintf("gzip decode of %s", key), err)
	}
	defer gz.Close()

	root := key.RootPrefix()
	files := make(map[string][]byte)
	var total int64

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.MalformedArchive(fmt.Sprintf("tar decode of %s", key), err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := hdr.Name
		if !core.SafeEntryPath(name) {
			return nil, core.MalformedArchive(fmt.Sprintf("unsafe entry path %q in %s", name, key), nil)
		}
		rel, ok := strings.CutPrefix(name, root)
		if !ok || rel == "" {
			// Entries outside the crate root directory are not exposed.
			continue
		}

		if limits.MaxFileBytes > 0 && hdr.Size > limits.MaxFileBytes {
			return nil, core.Oversize(fmt.Sprintf("entry %q in %s is %d bytes, cap %d", rel, key, hdr.Size, limits.MaxFileBytes))
		}
		if limits.MaxTotalBytes > 0 && total+hdr.Size > limits.MaxTotalBytes {
			return nil, core.Oversize(fmt.Sprintf("archive %s exceeds %d decompressed bytes", key, limits.MaxTotalBytes))
		}

		buf := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr, buf); err != nil {
			return nil, core.MalformedArchive(fmt.Sprintf("entry %q in %s", rel, key), err)
		}
		total += hdr.Size

		files[rel] = buf
	}

	return crate.New(key, files), nil
}
