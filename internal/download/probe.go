package download

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// probeResult is what the HEAD request learned about the remote file.
type probeResult struct {
	Total        int64
	AcceptRanges bool
}

// probe issues a HEAD request. Transport errors fail the attempt; a non-2xx
// answer only means no resume information is available (some hosts reject
// HEAD outright).
func (d *Downloader) probe(ctx context.Context, url string) (probeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return probeResult{}, fmt.Errorf("create probe request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return probeResult{}, fmt.Errorf("probe %s: %w", url, err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return probeResult{}, nil
	}

	result := probeResult{
		AcceptRanges: acceptsByteRanges(resp.Header.Values("Accept-Ranges")),
	}
	if resp.ContentLength > 0 {
		result.Total = resp.ContentLength
	}
	return result, nil
}

func acceptsByteRanges(values []string) bool {
	for _, v := range values {
		for _, unit := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(unit), "bytes") {
				return true
			}
		}
	}
	return false
}
