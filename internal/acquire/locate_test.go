package acquire

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLink_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "bin")
	first := filepath.Join(dir, "a", "tool")
	second := filepath.Join(dir, "b", "tool")
	writeExecutable(t, first)
	writeExecutable(t, second)

	if _, err := Link(bin, "tool", first, "linux"); err != nil {
		t.Fatal(err)
	}
	path, err := Link(bin, "tool", second, "linux")
	if err != nil {
		t.Fatal(err)
	}
	if target, err := os.Readlink(path); err != nil || target != second {
		t.Errorf("link target = %q, %v; want %q", target, err, second)
	}
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	conventional := filepath.Join(dir, "usr", "bin")
	prefix := filepath.Join(dir, "prefix", "bin")
	writeExecutable(t, filepath.Join(conventional, "whisper-cpp"))
	writeExecutable(t, filepath.Join(conventional, "main"))

	env := newTestEnv(t, newFakeRunner(nil))
	env.SearchDirs = []string{conventional}

	got, err := env.locate("linux", []string{"whisper-cli", "whisper-cpp", "main"})
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(conventional, "whisper-cpp"); got != want {
		t.Errorf("locate() = %q, want %q (preference order)", got, want)
	}

	writeExecutable(t, filepath.Join(prefix, "main"))
	got, err = env.locate("linux", []string{"main"}, prefix)
	if err != nil || got != filepath.Join(prefix, "main") {
		t.Errorf("prefix dir not preferred: %q, %v", got, err)
	}

	if _, err := env.locate("linux", []string{"absent"}); err == nil {
		t.Error("missing executable found")
	}
}

func TestLocate_SkipsBinDir(t *testing.T) {
	env := newTestEnv(t, nil)
	writeExecutable(t, filepath.Join(env.Paths.Bin, "yt-dlp"))
	env.Runner = newFakeRunner(map[string]string{"yt-dlp": filepath.Join(env.Paths.Bin, "yt-dlp")})

	if path, err := env.locate("linux", []string{"yt-dlp"}); err == nil {
		t.Errorf("locate() resolved to the bin dir itself: %q", path)
	}
}

func TestExeName(t *testing.T) {
	if got := exeName("windows", "ffmpeg"); got != "ffmpeg.exe" {
		t.Errorf("exeName(windows) = %q", got)
	}
	if got := exeName("windows", "ffmpeg.exe"); got != "ffmpeg.exe" {
		t.Errorf("exeName kept suffix = %q", got)
	}
	if got := exeName("linux", "ffmpeg"); got != "ffmpeg" {
		t.Errorf("exeName(linux) = %q", got)
	}
}
