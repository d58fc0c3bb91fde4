// Package cargo provides the crates.io metadata client used to resolve
// versions and describe crates.
package cargo

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/git-pkgs/crateview/client"
	"github.com/git-pkgs/crateview/internal/core"
)

// Registry fetches crate metadata from the crates.io API.
type Registry struct {
	urls   *client.URLs
	client *client.Client
}

// New creates a metadata client. Nil arguments select the public registry
// and the default HTTP client.
func New(urls *client.URLs, c *client.Client) *Registry {
	if urls == nil {
		urls = client.DefaultURLs()
	}
	if c == nil {
		c = client.DefaultClient()
	}
	return &Registry{urls: urls, client: c}
}

// URLs returns the URL builder this registry targets.
func (r *Registry) URLs() *client.URLs { return r.urls }

// Crate is the registry's description of a package.
type Crate struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	Repository  string   `json:"repository,omitempty"`
	License     string   `json:"license,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Categories  []string `json:"categories,omitempty"`
	Downloads   int      `json:"downloads"`
}

// Version is one published version of a crate.
type Version struct {
	Num         string    `json:"num"`
	License     string    `json:"license,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
	Yanked      bool      `json:"yanked"`
	PublishedAt time.Time `json:"published_at,omitzero"`
	CrateSize   int       `json:"crate_size,omitempty"`
	Downloads   int       `json:"downloads"`
}

type crateResponse struct {
	Crate    crateInfo     `json:"crate"`
	Versions []versionInfo `json:"versions"`
}

type crateInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Homepage    string   `json:"homepage"`
	Repository  string   `json:"repository"`
	Keywords    []string `json:"keywords"`
	Categories  []string `json:"categories"`
	Downloads   int      `json:"downloads"`
}

type versionInfo struct {
	Num       string `json:"num"`
	License   string `json:"license"`
	Checksum  string `json:"checksum"`
	Yanked    bool   `json:"yanked"`
	CreatedAt string `json:"created_at"`
	CrateSize int    `json:"crate_size"`
	Downloads int    `json:"downloads"`
}

// FetchCrate retrieves a crate's metadata and its published versions, newest
// first.
func (r *Registry) FetchCrate(ctx context.Context, name string) (*Crate, []Version, error) {
	var resp crateResponse
	if err := r.client.GetJSON(ctx, r.urls.Crate(name), &resp); err != nil {
		return nil, nil, mapError(name, err)
	}

	c := &Crate{
		Name:        resp.Crate.ID,
		Description: resp.Crate.Description,
		Homepage:    resp.Crate.Homepage,
		Repository:  resp.Crate.Repository,
		Keywords:    resp.Crate.Keywords,
		Categories:  resp.Crate.Categories,
		Downloads:   resp.Crate.Downloads,
	}
	if len(resp.Versions) > 0 {
		c.License = resp.Versions[0].License
	}

	versions := make([]Version, len(resp.Versions))
	for i, v := range resp.Versions {
		var publishedAt time.Time
		if v.CreatedAt != "" {
			publishedAt, _ = time.Parse(time.RFC3339, v.CreatedAt)
		}
		versions[i] = Version{
			Num:         v.Num,
			License:     v.License,
			Checksum:    v.Checksum,
			Yanked:      v.Yanked,
			PublishedAt: publishedAt,
			CrateSize:   v.CrateSize,
			Downloads:   v.Downloads,
		}
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].PublishedAt.After(versions[j].PublishedAt)
	})

	return c, versions, nil
}

// LatestVersion returns the newest non-yanked version number.
func (r *Registry) LatestVersion(ctx context.Context, name string) (string, error) {
	_, versions, err := r.FetchCrate(ctx, name)
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		if !v.Yanked {
			return v.Num, nil
		}
	}
	return "", core.NotFoundf("crate %q has no non-yanked versions", name)
}

func mapError(name string, err error) error {
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.IsNotFound() {
			return core.NotFoundf("crate %q not found on crates.io", name)
		}
		return core.Upstream("crates.io API error", err)
	}
	if errors.Is(err, context.Canceled) {
		return core.Cancelled(err)
	}
	return core.Upstream("crates.io API unreachable", err)
}
