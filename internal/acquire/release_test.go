package acquire

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/download"
	"github.com/subforge/subforge/internal/release"
)

func serveFiles(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func ytDlpRelease(baseURL string) release.Release {
	names := []string{"SHA2-256SUMS", "yt-dlp", "yt-dlp.exe", "yt-dlp_linux", "yt-dlp_linux_aarch64", "yt-dlp_macos"}
	rel := release.Release{Tag: "2024.08.06"}
	for _, n := range names {
		rel.Assets = append(rel.Assets, release.Asset{Name: n, DownloadURL: baseURL + "/" + n})
	}
	return rel
}

func releaseStrategyFor(t *testing.T, env *Env, id catalog.ID, goos string) Strategy {
	t.Helper()
	dep := testDependency(t, id)
	for _, spec := range dep.Strategies(goos) {
		if spec.Kind == catalog.KindRelease {
			return env.Build(dep, spec, goos)
		}
	}
	t.Fatalf("%s has no release strategy on %s", id, goos)
	return nil
}

func TestReleaseStrategy_BareExecutable(t *testing.T) {
	payload := []byte("#!/usr/bin/env python3\nprint('yt-dlp')\n")
	srv := serveFiles(t, map[string][]byte{"yt-dlp_linux": payload})

	env := newTestEnv(t, newFakeRunner(nil))
	env.Releases = &fakeReleases{rel: ytDlpRelease(srv.URL), checksum: digest(payload)}
	env.Downloader = download.NewDownloader(download.Options{})

	var progress progressLog
	outcome := releaseStrategyFor(t, env, catalog.YtDlp, "linux").Attempt(context.Background(),
		Request{Dependency: catalog.YtDlp, GOOS: "linux", GOARCH: "amd64", Progress: progress.record})

	installed, ok := outcome.(Installed)
	if !ok {
		t.Fatalf("outcome = %#v, want Installed", outcome)
	}
	if installed.Version != "2024.08.06" {
		t.Errorf("Version = %q", installed.Version)
	}
	want := filepath.Join(env.Paths.Bin, "yt-dlp")
	if installed.Path != want {
		t.Errorf("Path = %q, want %q", installed.Path, want)
	}
	got, err := os.ReadFile(want)
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("installed content mismatch: %v", err)
	}
	info, _ := os.Stat(want)
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("mode = %v, want executable", info.Mode())
	}
	if len(progress.percents) == 0 || progress.percents[len(progress.percents)-1] != 100 {
		t.Errorf("progress = %v", progress.percents)
	}
}

func TestReleaseStrategy_ArchiveWithCompanion(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"ffmpeg-master-latest-win64-gpl/bin/ffmpeg.exe", "ffmpeg-master-latest-win64-gpl/bin/ffprobe.exe", "ffmpeg-master-latest-win64-gpl/bin/avcodec-61.dll"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(w, "binary %s", name)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	rel := release.Release{Tag: "latest", Assets: []release.Asset{
		{Name: "ffmpeg-master-latest-win64-gpl.zip"},
		{Name: "ffmpeg-master-latest-linux64-gpl.tar.xz"},
	}}
	env := newTestEnv(t, newFakeRunner(nil))
	env.Releases = &fakeReleases{rel: rel}
	env.Downloader = &fakeDownloader{payload: buf.Bytes()}

	outcome := releaseStrategyFor(t, env, catalog.FFmpeg, "windows").Attempt(context.Background(),
		Request{Dependency: catalog.FFmpeg, GOOS: "windows", GOARCH: "amd64"})

	installed, ok := outcome.(Installed)
	if !ok {
		t.Fatalf("outcome = %#v, want Installed", outcome)
	}
	root := filepath.Join(env.Paths.Tools, "ffmpeg", "latest", "ffmpeg-master-latest-win64-gpl", "bin")
	if target, err := os.Readlink(installed.Path); err != nil || target != filepath.Join(root, "ffmpeg.exe") {
		t.Errorf("ffmpeg link = %q, %v", target, err)
	}
	if _, err := os.Stat(filepath.Join(root, "avcodec-61.dll")); err != nil {
		t.Errorf("libraries not kept next to the executable: %v", err)
	}
	probe, ok := installed.Companions[catalog.FFprobe]
	if !ok || !strings.HasSuffix(probe.ResolvedPath, "ffprobe.exe") {
		t.Errorf("ffprobe companion = %+v", probe)
	}
}

func TestReleaseStrategy_AssetNotFoundIsUnavailable(t *testing.T) {
	rel := release.Release{Tag: "2024.08.06", Assets: []release.Asset{{Name: "yt-dlp_macos"}, {Name: "yt-dlp.exe"}}}
	env := newTestEnv(t, newFakeRunner(nil))
	env.Releases = &fakeReleases{rel: rel}
	env.Downloader = &fakeDownloader{}

	outcome := releaseStrategyFor(t, env, catalog.YtDlp, "linux").Attempt(context.Background(),
		Request{GOOS: "linux", GOARCH: "riscv64"})
	u, ok := outcome.(Unavailable)
	if !ok {
		t.Fatalf("outcome = %#v, want Unavailable", outcome)
	}
	if !strings.Contains(u.Reason, "yt-dlp_macos") {
		t.Errorf("reason %q does not list the published assets", u.Reason)
	}
}

func TestSelector_MissingAssetListedInFinalError(t *testing.T) {
	rel := release.Release{Tag: "2024.08.06", Assets: []release.Asset{{Name: "yt-dlp_macos"}, {Name: "yt-dlp.exe"}}}
	env := newTestEnv(t, newFakeRunner(nil))
	env.Releases = &fakeReleases{rel: rel}
	env.Downloader = &fakeDownloader{}

	dep := testDependency(t, catalog.YtDlp)
	strategy := releaseStrategyFor(t, env, catalog.YtDlp, "linux")
	_, err := NewSelector(env, nil).Run(context.Background(), dep, Request{GOOS: "linux", GOARCH: "riscv64"}, []Strategy{strategy})

	var failed *AcquisitionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("Run() error = %v, want *AcquisitionFailedError", err)
	}
	if Classify(err) != KindAllStrategiesExhausted {
		t.Errorf("Classify() = %v, want all_strategies_exhausted", Classify(err))
	}
	for _, name := range []string{"yt-dlp_macos", "yt-dlp.exe"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not list asset %s", err.Error(), name)
		}
	}
	if Hint(err) == "" {
		t.Error("exhausted chain carries no manual instructions")
	}
}

func TestReleaseStrategy_IntegrityFailuresAreFatal(t *testing.T) {
	tests := []struct {
		name     string
		releases *fakeReleases
		dl       *fakeDownloader
	}{
		{
			name:     "checksum mismatch",
			releases: &fakeReleases{checksum: strings.Repeat("0", 64)},
			dl:       &fakeDownloader{err: &download.ChecksumMismatchError{Expected: "0", Actual: "1"}},
		},
		{
			name:     "bad signature",
			releases: &fakeReleases{checksumErr: fmt.Errorf("verify SHA2-256SUMS: %w", release.ErrSignature)},
			dl:       &fakeDownloader{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.releases.rel = ytDlpRelease("http://example.invalid")
			env := newTestEnv(t, newFakeRunner(nil))
			env.Releases = tt.releases
			env.Downloader = tt.dl

			outcome := releaseStrategyFor(t, env, catalog.YtDlp, "linux").Attempt(context.Background(),
				Request{GOOS: "linux", GOARCH: "amd64"})
			f, ok := outcome.(Fatal)
			if !ok {
				t.Fatalf("outcome = %#v, want Fatal", outcome)
			}
			if Classify(f.Err) != KindIntegrity {
				t.Errorf("Classify = %v", Classify(f.Err))
			}
		})
	}
}

func TestReleaseStrategy_NetworkFailureIsUnavailable(t *testing.T) {
	env := newTestEnv(t, newFakeRunner(nil))
	env.Releases = &fakeReleases{err: &release.FetchError{Repo: "yt-dlp/yt-dlp", StatusCode: 403, RateLimited: true}}
	env.Downloader = &fakeDownloader{}

	outcome := releaseStrategyFor(t, env, catalog.YtDlp, "linux").Attempt(context.Background(), Request{GOOS: "linux", GOARCH: "amd64"})
	if _, ok := outcome.(Unavailable); !ok {
		t.Fatalf("outcome = %#v, want Unavailable", outcome)
	}

	env.Releases = &fakeReleases{rel: ytDlpRelease("http://example.invalid")}
	env.Downloader = &fakeDownloader{err: &download.FailedError{URL: "u", Attempts: 3, Err: errors.New("reset")}}
	outcome = releaseStrategyFor(t, env, catalog.YtDlp, "linux").Attempt(context.Background(), Request{GOOS: "linux", GOARCH: "amd64"})
	if _, ok := outcome.(Unavailable); !ok {
		t.Fatalf("outcome = %#v, want Unavailable", outcome)
	}
}
