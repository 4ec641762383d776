package release

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"
)

// LatestPyPI returns the current version of a PyPI project.
func (c *Client) LatestPyPI(ctx context.Context, project string) (string, error) {
	endpoint := fmt.Sprintf("%s/pypi/%s/json", c.pypiBase, url.PathEscape(project))
	data, err := c.fetchSmall(ctx, endpoint)
	if err != nil {
		return "", &FetchError{Repo: "pypi:" + project, Err: err}
	}
	if !gjson.ValidBytes(data) {
		return "", &FetchError{Repo: "pypi:" + project, Err: fmt.Errorf("invalid JSON response")}
	}
	version := gjson.GetBytes(data, "info.version").String()
	if version == "" {
		return "", &FetchError{Repo: "pypi:" + project, Err: fmt.Errorf("response has no info.version")}
	}
	return version, nil
}
