// Package release resolves the latest upstream release of a dependency and
// picks the asset that matches the running platform.
//
// Release metadata is fetched fresh for every check and never persisted.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/subforge/subforge/internal/logging"
)

const (
	// DefaultAPIBase is the GitHub REST endpoint.
	DefaultAPIBase = "https://api.github.com"
	// DefaultPyPIBase is the PyPI JSON API endpoint.
	DefaultPyPIBase = "https://pypi.org"

	defaultTimeout = 30 * time.Second
	// maxMetadataSize bounds release JSON and checksum manifests.
	maxMetadataSize = 4 << 20
)

// Release is one published upstream release.
type Release struct {
	Tag        string  `json:"tag_name"`
	Name       string  `json:"name"`
	Prerelease bool    `json:"prerelease"`
	HTMLURL    string  `json:"html_url"`
	Assets     []Asset `json:"assets"`
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
}

// AssetNames lists the names of all assets in publication order.
func (r Release) AssetNames() []string {
	names := make([]string, 0, len(r.Assets))
	for _, a := range r.Assets {
		names = append(names, a.Name)
	}
	return names
}

// Version returns the tag without a leading "v".
func (r Release) Version() string {
	return strings.TrimPrefix(strings.TrimPrefix(r.Tag, "v"), "V")
}

// FetchError reports a failed release lookup: either a transport error
// (Err set) or a non-2xx response (StatusCode set).
type FetchError struct {
	Repo       string
	StatusCode int
	Status     string
	// RateLimited is set when GitHub reports an exhausted quota.
	RateLimited bool
	Err         error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch latest release of %s: %v", e.Repo, e.Err)
	}
	msg := fmt.Sprintf("fetch latest release of %s: %s", e.Repo, e.Status)
	if e.RateLimited {
		msg += " (API rate limit exceeded)"
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Hint returns the next step shown to users.
func (e *FetchError) Hint() string {
	switch {
	case e.RateLimited:
		return "set GITHUB_TOKEN (or github.token in config.lua) to raise the API rate limit, then retry"
	case e.StatusCode == http.StatusNotFound:
		return "the project has no published release at https://github.com/" + e.Repo + "/releases"
	default:
		return "check your network connection and retry"
	}
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	HTTPClient *http.Client
	APIBase    string
	PyPIBase   string
	Token      string
	UserAgent  string
	Logger     *slog.Logger
}

// Client talks to the GitHub releases API and PyPI.
type Client struct {
	http      *http.Client
	apiBase   string
	pypiBase  string
	token     string
	userAgent string
	logger    *slog.Logger
}

// NewClient creates a release client.
func NewClient(opts Options) *Client {
	c := &Client{
		http:      opts.HTTPClient,
		apiBase:   strings.TrimRight(opts.APIBase, "/"),
		pypiBase:  strings.TrimRight(opts.PyPIBase, "/"),
		token:     opts.Token,
		userAgent: opts.UserAgent,
		logger:    logging.OrNop(opts.Logger),
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.apiBase == "" {
		c.apiBase = DefaultAPIBase
	}
	if c.pypiBase == "" {
		c.pypiBase = DefaultPyPIBase
	}
	if c.userAgent == "" {
		c.userAgent = "subforge/1.0"
	}
	return c
}

// Latest fetches the latest published release of repo ("owner/name").
func (c *Client) Latest(ctx context.Context, repo string) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.apiBase, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Release{}, &FetchError{Repo: repo, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Release{}, &FetchError{
			Repo:        repo,
			StatusCode:  resp.StatusCode,
			Status:      resp.Status,
			RateLimited: resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0",
		}
	}

	var rel Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataSize)).Decode(&rel); err != nil {
		return Release{}, &FetchError{Repo: repo, Err: fmt.Errorf("decode release: %w", err)}
	}

	c.logger.Debug("resolved latest release",
		slog.String("repo", repo),
		slog.String("tag", rel.Tag),
		slog.Int("assets", len(rel.Assets)),
	)
	return rel, nil
}

// LatestOf tries repos in order and returns the first release found. A 404
// moves on to the next repository; any other failure is returned at once.
func (c *Client) LatestOf(ctx context.Context, repos ...string) (Release, string, error) {
	var lastErr error
	for _, repo := range repos {
		rel, err := c.Latest(ctx, repo)
		if err == nil {
			return rel, repo, nil
		}
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) && fetchErr.StatusCode == http.StatusNotFound {
			lastErr = err
			continue
		}
		return Release{}, repo, err
	}
	if lastErr == nil {
		lastErr = errors.New("no repositories configured")
	}
	return Release{}, "", lastErr
}

// fetchSmall downloads a small document such as a checksum manifest.
func (c *Client) fetchSmall(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}
