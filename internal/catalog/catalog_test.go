package catalog

import (
	"regexp"
	"strings"
	"testing"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		in      string
		want    ID
		wantErr bool
	}{
		{"yt-dlp", YtDlp, false},
		{"FFmpeg", FFmpeg, false},
		{"ffprobe", FFmpeg, false},
		{"whisper", WhisperCpp, false},
		{"model", WhisperModel, false},
		{" LibreTranslate ", LibreTranslate, false},
		{"vlc", "", true},
	}
	for _, tt := range tests {
		got, err := ParseID(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseID(%q) = %q, %v; want %q, wantErr %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestStrategyOrder(t *testing.T) {
	rank := map[Kind]int{KindBrew: 0, KindNative: 1, KindRelease: 2, KindModel: 3, KindPipVenv: 3}

	for _, id := range Installable() {
		dep, ok := Lookup(id)
		if !ok {
			t.Fatalf("Lookup(%s) failed", id)
		}
		for _, goos := range []string{"darwin", "linux", "windows"} {
			list := dep.Strategies(goos)
			if len(list) == 0 {
				t.Errorf("%s/%s has no strategies", id, goos)
			}
			for i := 1; i < len(list); i++ {
				if rank[list[i].Kind] < rank[list[i-1].Kind] {
					t.Errorf("%s/%s: %s listed after %s", id, goos, list[i].Kind, list[i-1].Kind)
				}
			}
			if dep.ManualInstructions(goos) == "" {
				t.Errorf("%s/%s has no manual instructions", id, goos)
			}
		}
	}
}

func TestReleasePatternsCompile(t *testing.T) {
	for _, id := range Installable() {
		dep, _ := Lookup(id)
		for _, goos := range []string{"darwin", "linux", "windows"} {
			for _, s := range dep.Strategies(goos) {
				if s.Release == nil {
					continue
				}
				for _, patterns := range s.Release.Assets {
					for _, p := range patterns {
						if _, err := regexp.Compile(p); err != nil {
							t.Errorf("%s/%s pattern %q: %v", id, goos, p, err)
						}
					}
				}
			}
		}
	}
}

func TestYtDlpPatternsPerPlatform(t *testing.T) {
	dep, _ := Lookup(YtDlp)
	tests := []struct {
		goos, goarch string
		first        string
	}{
		{"linux", "amd64", `^yt-dlp_linux$`},
		{"linux", "arm64", `^yt-dlp_linux_aarch64$`},
		{"linux", "riscv64", `^yt-dlp$`},
		{"darwin", "arm64", `^yt-dlp_macos$`},
		{"windows", "amd64", `^yt-dlp\.exe$`},
	}
	for _, tt := range tests {
		var release *ReleaseSource
		for _, s := range dep.Strategies(tt.goos) {
			if s.Kind == KindRelease {
				release = s.Release
			}
		}
		if release == nil {
			t.Fatalf("%s has no release strategy", tt.goos)
		}
		got := release.PatternsFor(tt.goarch)
		if len(got) == 0 || got[0] != tt.first {
			t.Errorf("%s/%s patterns = %v, want first %s", tt.goos, tt.goarch, got, tt.first)
		}
	}
}

func TestFFmpegLinuxHasNoReleaseStrategy(t *testing.T) {
	dep, _ := Lookup(FFmpeg)
	for _, s := range dep.Strategies("linux") {
		if s.Kind == KindRelease {
			t.Error("linux ffmpeg builds are tar.xz only and must fall through to manual instructions")
		}
	}
	if len(dep.Companions) != 1 || dep.Companions[0].ID != FFprobe {
		t.Errorf("ffmpeg companions = %+v", dep.Companions)
	}
}

func TestReorder(t *testing.T) {
	dep, _ := Lookup(YtDlp)
	list := Reorder(dep.Strategies("linux"), []Kind{KindRelease, KindBrew})
	if len(list) != 2 || list[0].Kind != KindRelease || list[1].Kind != KindBrew {
		t.Errorf("Reorder() = %v", list)
	}
	if got := Reorder(dep.Strategies("linux"), nil); len(got) != 3 {
		t.Errorf("empty order should keep all strategies, got %d", len(got))
	}
}

func TestModels(t *testing.T) {
	for _, m := range Models() {
		sum, ok := DefaultRegistry.Checksum(m.ID)
		if !ok {
			t.Errorf("model %s has no checksum", m.ID)
			continue
		}
		if len(sum) != 64 || strings.ToLower(sum) != sum {
			t.Errorf("model %s checksum %q is not lowercase hex sha256", m.ID, sum)
		}
	}

	m, err := LookupModel("base")
	if err != nil {
		t.Fatal(err)
	}
	if got := m.URL(""); got != DefaultModelBaseURL+"/ggml-base.bin" {
		t.Errorf("URL() = %s", got)
	}
	if got := m.URL("http://127.0.0.1:1234/"); got != "http://127.0.0.1:1234/ggml-base.bin" {
		t.Errorf("URL(custom) = %s", got)
	}
	if _, err := LookupModel("huge"); err == nil {
		t.Error("expected error for unknown model")
	}
	if _, ok := (Registry{}).Checksum("base"); ok {
		t.Error("empty registry should report no checksum")
	}
}

func TestStrategyName(t *testing.T) {
	if got := brew("ffmpeg").Name(); got != "brew" {
		t.Errorf("Name() = %s", got)
	}
	if got := linuxNative("a", "b", "", "", "").Name(); got != "native" {
		t.Errorf("Name() = %s", got)
	}
	if got := windowsNative("", "ffmpeg", "").Name(); got != "native:choco" {
		t.Errorf("Name() = %s", got)
	}
}
