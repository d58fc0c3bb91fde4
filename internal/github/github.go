// Package github provides a read-only explorer for GitHub repositories,
// complementing the crates.io path for crates whose sources live upstream.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/git-pkgs/crateview/internal/core"
)

const defaultAPIBase = "https://api.github.com"

// Client talks to the GitHub REST API. The token is optional; without it the
// client is subject to the anonymous rate limit.
type Client struct {
	hc        *http.Client
	apiBase   string
	token     string
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIBase overrides the API origin, mainly for tests.
func WithAPIBase(base string) Option {
	return func(c *Client) {
		c.apiBase = base
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// New creates a GitHub client.
func New(token string, opts ...Option) *Client {
	c := &Client{
		hc:        &http.Client{Timeout: 30 * time.Second},
		apiBase:   defaultAPIBase,
		token:     token,
		userAgent: "crateview",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue is a GitHub issue returned by search.
type Issue struct {
	Number int64  `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	State  string `json:"state"`
	Body   string `json:"body,omitempty"`
}

// IssueEvent is one entry of an issue's timeline.
type IssueEvent struct {
	Event     string `json:"event"`
	Actor     string `json:"actor,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Body      string `json:"body,omitempty"`
}

func (c *Client) contentsURL(owner, repo, path, ref string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiBase, owner, repo, path)
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}
	return u
}

// get performs an authenticated GET and maps status codes onto the shared
// error taxonomy.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, core.Internal(err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, core.Upstream("github unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, core.Upstream("reading github response", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, core.NotFoundf("github resource %s not found", rawURL)
	default:
		return nil, core.Upstream(fmt.Sprintf("github returned status %d", resp.StatusCode), nil)
	}
}

// ReadDir lists the entries of a repository directory at an optional ref.
func (c *Client) ReadDir(ctx context.Context, owner, repo, path, ref string) ([]core.DirEntry, error) {
	body, err := c.get(ctx, c.contentsURL(owner, repo, path, ref))
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsArray() {
		return nil, core.NotFoundf("%s/%s:%s is not a directory", owner, repo, path)
	}
	var entries []core.DirEntry
	for _, item := range parsed.Array() {
		switch item.Get("type").String() {
		case "file":
			entries = append(entries, core.DirEntry{Name: item.Get("name").String(), Kind: core.KindFile})
		case "dir":
			entries = append(entries, core.DirEntry{Name: item.Get("name").String(), Kind: core.KindDir})
		}
	}
	return entries, nil
}

// GetFile fetches a file's raw bytes. The contents API answers with the
// download URL; the payload itself comes from a second request.
func (c *Client) GetFile(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	body, err := c.get(ctx, c.contentsURL(owner, repo, path, ref))
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(body)
	if parsed.IsArray() || parsed.Get("type").String() != "file" {
		return nil, core.NotFoundf("%s/%s:%s is not a regular file", owner, repo, path)
	}
	downloadURL := parsed.Get("download_url").String()
	if downloadURL == "" {
		return nil, core.Upstream("github response carried no download_url", nil)
	}
	return c.get(ctx, downloadURL)
}

// SearchIssues searches a repository's issues for a keyword.
func (c *Client) SearchIssues(ctx context.Context, owner, repo, keyword string) ([]Issue, error) {
	q := url.QueryEscape(fmt.Sprintf("%s repo:%s/%s", keyword, owner, repo))
	body, err := c.get(ctx, fmt.Sprintf("%s/search/issues?q=%s", c.apiBase, q))
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for _, item := range gjson.GetBytes(body, "items").Array() {
		issues = append(issues, Issue{
			Number: item.Get("number").Int(),
			Title:  item.Get("title").String(),
			URL:    item.Get("html_url").String(),
			State:  item.Get("state").String(),
			Body:   item.Get("body").String(),
		})
	}
	return issues, nil
}

// IssueTimeline returns the timeline events of one issue.
func (c *Client) IssueTimeline(ctx context.Context, owner, repo string, number int64) ([]IssueEvent, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/repos/%s/%s/issues/%d/timeline", c.apiBase, owner, repo, number))
	if err != nil {
		return nil, err
	}

	var events []IssueEvent
	for _, item := range gjson.ParseBytes(body).Array() {
		events = append(events, IssueEvent{
			Event:     item.Get("event").String(),
			Actor:     item.Get("actor.login").String(),
			CreatedAt: item.Get("created_at").String(),
			Body:      item.Get("body").String(),
		})
	}
	return events, nil
}
