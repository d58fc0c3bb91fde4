package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/git-pkgs/crateview"
	"github.com/git-pkgs/crateview/internal/core"
	"github.com/git-pkgs/crateview/internal/github"
)

// Handler holds the HTTP handlers.
type Handler struct {
	explorer *crateview.Explorer
	github   *github.Client
}

// NewHandler creates a new handler.
func NewHandler(explorer *crateview.Explorer, gh *github.Client) *Handler {
	return &Handler{explorer: explorer, github: gh}
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// crateKey resolves the :name/:version route params, turning "latest" into a
// concrete version via the registry.
func (h *Handler) crateKey(c echo.Context) (crateview.CrateKey, error) {
	return h.explorer.ResolveVersion(
		c.Request().Context(),
		c.Param("name"),
		c.Param("version"),
	)
}

// CrateInfo handles GET /api/crates/:name.
func (h *Handler) CrateInfo(c echo.Context) error {
	info, versions, err := h.explorer.Crate(c.Request().Context(), c.Param("name"))
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"crate":    info,
		"versions": versions,
	})
}

// Directory handles GET /api/crates/:name/:version/directory[/*].
func (h *Handler) Directory(c echo.Context) error {
	key, err := h.crateKey(c)
	if err != nil {
		return handleError(c, err)
	}
	entries, err := h.explorer.Directory(c.Request().Context(), key, c.Param("*"))
	if err != nil {
		return handleError(c, err)
	}
	if entries == nil {
		entries = []crateview.DirEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// File handles GET /api/crates/:name/:version/file/*?start&end.
func (h *Handler) File(c echo.Context) error {
	key, err := h.crateKey(c)
	if err != nil {
		return handleError(c, err)
	}
	var lineRange crateview.FileLineRange
	if lineRange.Start, err = positiveQueryParam(c, "start"); err != nil {
		return handleError(c, err)
	}
	if lineRange.End, err = positiveQueryParam(c, "end"); err != nil {
		return handleError(c, err)
	}

	data, err := h.explorer.ReadFile(c.Request().Context(), key, c.Param("*"), lineRange)
	if err != nil {
		return handleError(c, err)
	}
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", data)
}

// Items handles GET /api/crates/:name/:version/items?type&query&path.
func (h *Handler) Items(c echo.Context) error {
	key, err := h.crateKey(c)
	if err != nil {
		return handleError(c, err)
	}
	itemType, err := crateview.ParseItemType(c.QueryParam("type"))
	if err != nil {
		return handleError(c, core.InvalidQuery(err.Error(), err))
	}

	items, err := h.explorer.SearchItems(c.Request().Context(), key, crateview.ItemQuery{
		Type:  itemType,
		Query: c.QueryParam("query"),
		Path:  c.QueryParam("path"),
	})
	if err != nil {
		return handleError(c, err)
	}
	if items == nil {
		items = []crateview.Item{}
	}
	return c.JSON(http.StatusOK, items)
}

// Lines handles GET /api/crates/:name/:version/lines.
func (h *Handler) Lines(c echo.Context) error {
	key, err := h.crateKey(c)
	if err != nil {
		return handleError(c, err)
	}
	mode, err := crateview.ParseSearchMode(c.QueryParam("mode"))
	if err != nil {
		return handleError(c, core.InvalidQuery(err.Error(), err))
	}
	maxResults := 0
	if raw := c.QueryParam("max_results"); raw != "" {
		if maxResults, err = strconv.Atoi(raw); err != nil || maxResults < 1 {
			return handleError(c, core.InvalidQuery("max_results must be a positive integer", err))
		}
	}

	lines, err := h.explorer.SearchLines(c.Request().Context(), key, crateview.LineQuery{
		Query:         c.QueryParam("query"),
		Mode:          mode,
		CaseSensitive: queryFlag(c, "case_sensitive"),
		WholeWord:     queryFlag(c, "whole_word"),
		MaxResults:    maxResults,
		FileExt:       c.QueryParam("file_ext"),
		Path:          c.QueryParam("path"),
	})
	if err != nil {
		return handleError(c, err)
	}
	if lines == nil {
		lines = []crateview.Line{}
	}
	return c.JSON(http.StatusOK, lines)
}

// PurgeCrate handles DELETE /api/cache/:name/:version.
func (h *Handler) PurgeCrate(c echo.Context) error {
	h.explorer.Purge(crateview.CrateKey{
		Name:    c.Param("name"),
		Version: c.Param("version"),
	})
	return c.NoContent(http.StatusNoContent)
}

// ClearCache handles DELETE /api/cache.
func (h *Handler) ClearCache(c echo.Context) error {
	h.explorer.ClearCache()
	return c.NoContent(http.StatusNoContent)
}

// GithubDirectory handles GET /api/github/:owner/:repo/directory[/*]?ref.
func (h *Handler) GithubDirectory(c echo.Context) error {
	if h.github == nil {
		return handleError(c, core.NotFoundf("github exploration is not configured"))
	}
	entries, err := h.github.ReadDir(c.Request().Context(),
		c.Param("owner"), c.Param("repo"), c.Param("*"), c.QueryParam("ref"))
	if err != nil {
		return handleError(c, err)
	}
	if entries == nil {
		entries = []crateview.DirEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// GithubFile handles GET /api/github/:owner/:repo/file/*?ref.
func (h *Handler) GithubFile(c echo.Context) error {
	if h.github == nil {
		return handleError(c, core.NotFoundf("github exploration is not configured"))
	}
	data, err := h.github.GetFile(c.Request().Context(),
		c.Param("owner"), c.Param("repo"), c.Param("*"), c.QueryParam("ref"))
	if err != nil {
		return handleError(c, err)
	}
	return c.Blob(http.StatusOK, "text/plain; charset=utf-8", data)
}

// GithubIssues handles GET /api/github/:owner/:repo/issues?query.
func (h *Handler) GithubIssues(c echo.Context) error {
	if h.github == nil {
		return handleError(c, core.NotFoundf("github exploration is not configured"))
	}
	query := c.QueryParam("query")
	if query == "" {
		return handleError(c, core.InvalidQuery("query is required", nil))
	}
	issues, err := h.github.SearchIssues(c.Request().Context(), c.Param("owner"), c.Param("repo"), query)
	if err != nil {
		return handleError(c, err)
	}
	if issues == nil {
		issues = []github.Issue{}
	}
	return c.JSON(http.StatusOK, issues)
}

// GithubIssueTimeline handles GET /api/github/:owner/:repo/issues/:number/timeline.
func (h *Handler) GithubIssueTimeline(c echo.Context) error {
	if h.github == nil {
		return handleError(c, core.NotFoundf("github exploration is not configured"))
	}
	number, err := strconv.ParseInt(c.Param("number"), 10, 64)
	if err != nil || number < 1 {
		return handleError(c, core.InvalidQuery("issue number must be a positive integer", err))
	}
	events, err := h.github.IssueTimeline(c.Request().Context(), c.Param("owner"), c.Param("repo"), number)
	if err != nil {
		return handleError(c, err)
	}
	if events == nil {
		events = []github.IssueEvent{}
	}
	return c.JSON(http.StatusOK, events)
}

// positiveQueryParam parses an optional 1-based line bound.
func positiveQueryParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, core.InvalidQuery(name+" must be a positive integer", err)
	}
	return n, nil
}

func queryFlag(c echo.Context, name string) bool {
	v, _ := strconv.ParseBool(c.QueryParam(name))
	return v
}

// handleError maps the error taxonomy onto status codes. Internal causes are
// never rendered to clients.
func handleError(c echo.Context, err error) error {
	status := crateview.HTTPStatusOf(err)
	message := err.Error()
	if kind := core.KindOf(err); kind == core.KindInternal {
		message = "internal error"
	}
	return c.JSON(status, map[string]any{
		"error": map[string]any{
			"kind":    string(core.KindOf(err)),
			"message": message,
		},
	})
}
