package client

import "fmt"

// URLs builds the crates.io endpoints for a crate. The download template
// points at the registry's static host, which returns the gzipped tarball
// for `<name>-<version>.crate`.
type URLs struct {
	// APIBase is the crates.io API origin, e.g. "https://crates.io".
	APIBase string
	// DownloadTemplate formats (name, name, version) into a tarball URL.
	DownloadTemplate string
}

// DefaultURLs targets the public crates.io registry.
func DefaultURLs() *URLs {
	return &URLs{
		APIBase:          "https://crates.io",
		DownloadTemplate: "https://static.crates.io/crates/%s/%s-%s.crate",
	}
}

// Crate returns the API URL for crate metadata.
func (u *URLs) Crate(name string) string {
	return fmt.Sprintf("%s/api/v1/crates/%s", u.APIBase, name)
}

// Download returns the tarball URL for a crate version.
func (u *URLs) Download(name, version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf(u.DownloadTemplate, name, name, version)
}

// Documentation returns the docs.rs URL for a crate version.
func (u *URLs) Documentation(name, version string) string {
	if version != "" {
		return fmt.Sprintf("https://docs.rs/%s/%s", name, version)
	}
	return fmt.Sprintf("https://docs.rs/%s", name)
}

// PURL returns the package URL identifier for a crate version.
func (u *URLs) PURL(name, version string) string {
	if version != "" {
		return fmt.Sprintf("pkg:cargo/%s@%s", name, version)
	}
	return fmt.Sprintf("pkg:cargo/%s", name)
}
