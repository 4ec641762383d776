package release

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const ytDlpRelease = `{
  "tag_name": "2024.08.06",
  "name": "yt-dlp 2024.08.06",
  "prerelease": false,
  "unknown_field": {"ignored": true},
  "assets": [
    {"name": "SHA2-256SUMS", "browser_download_url": "https://example.invalid/SHA2-256SUMS", "size": 1024},
    {"name": "yt-dlp", "browser_download_url": "https://example.invalid/yt-dlp", "size": 3000000},
    {"name": "yt-dlp.exe", "browser_download_url": "https://example.invalid/yt-dlp.exe", "size": 17000000},
    {"name": "yt-dlp_linux", "browser_download_url": "https://example.invalid/yt-dlp_linux", "size": 33000000},
    {"name": "yt-dlp_linux_aarch64", "browser_download_url": "https://example.invalid/yt-dlp_linux_aarch64", "size": 33000000},
    {"name": "yt-dlp_macos", "browser_download_url": "https://example.invalid/yt-dlp_macos", "size": 35000000}
  ]
}`

func TestLatest(t *testing.T) {
	var gotAccept, gotAuth, gotPath string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ytDlpRelease))
	}))
	defer ts.Close()

	c := NewClient(Options{APIBase: ts.URL, Token: "secret"})
	rel, err := c.Latest(context.Background(), "yt-dlp/yt-dlp")
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}

	if gotPath != "/repos/yt-dlp/yt-dlp/releases/latest" {
		t.Errorf("path = %s", gotPath)
	}
	if gotAccept != "application/vnd.github+json" {
		t.Errorf("Accept = %s", gotAccept)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %s", gotAuth)
	}
	if rel.Tag != "2024.08.06" || len(rel.Assets) != 6 {
		t.Errorf("release = %+v", rel)
	}
	if rel.Assets[1].DownloadURL != "https://example.invalid/yt-dlp" {
		t.Errorf("asset URL = %s", rel.Assets[1].DownloadURL)
	}
}

func TestLatest_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		headers     map[string]string
		rateLimited bool
	}{
		{"not found", http.StatusNotFound, nil, false},
		{"rate limited", http.StatusForbidden, map[string]string{"X-RateLimit-Remaining": "0"}, true},
		{"server error", http.StatusBadGateway, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			_, err := NewClient(Options{APIBase: ts.URL}).Latest(context.Background(), "o/r")
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("error = %v, want *FetchError", err)
			}
			if fetchErr.StatusCode != tt.status || fetchErr.RateLimited != tt.rateLimited {
				t.Errorf("FetchError = %+v", fetchErr)
			}
			if fetchErr.Hint() == "" {
				t.Error("Hint() should not be empty")
			}
		})
	}
}

func TestLatest_MalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": `))
	}))
	defer ts.Close()

	_, err := NewClient(Options{APIBase: ts.URL}).Latest(context.Background(), "o/r")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Err == nil {
		t.Fatalf("error = %v, want decode FetchError", err)
	}
}

func TestLatestOf_FallsBackOn404(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/ggml-org/whisper.cpp/releases/latest" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"v1.7.2","assets":[]}`))
	}))
	defer ts.Close()

	rel, repo, err := NewClient(Options{APIBase: ts.URL}).LatestOf(context.Background(), "ggml-org/whisper.cpp", "ggerganov/whisper.cpp")
	if err != nil {
		t.Fatalf("LatestOf() error = %v", err)
	}
	if repo != "ggerganov/whisper.cpp" || rel.Tag != "v1.7.2" {
		t.Errorf("LatestOf() = %s from %s", rel.Tag, repo)
	}
	if rel.Version() != "1.7.2" {
		t.Errorf("Version() = %s", rel.Version())
	}
}

func TestLatestPyPI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pypi/libretranslate/json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"info":{"name":"libretranslate","version":"1.6.2"},"releases":{}}`))
	}))
	defer ts.Close()

	c := NewClient(Options{PyPIBase: ts.URL})
	got, err := c.LatestPyPI(context.Background(), "libretranslate")
	if err != nil {
		t.Fatalf("LatestPyPI() error = %v", err)
	}
	if got != "1.6.2" {
		t.Errorf("LatestPyPI() = %s, want 1.6.2", got)
	}

	if _, err := c.LatestPyPI(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown project")
	}
}
