package platform

import (
	"context"
	"runtime"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestRealDetector_Detect(t *testing.T) {
	info, err := NewDetector().Detect(context.Background())
	if err != nil {
		t.Skipf("unsupported test architecture: %v", err)
	}

	if info.OS != runtime.GOOS {
		t.Errorf("OS = %v, want %v", info.OS, runtime.GOOS)
	}
	if info.ArchRaw != runtime.GOARCH {
		t.Errorf("ArchRaw = %v, want %v", info.ArchRaw, runtime.GOARCH)
	}
	if info.Arch == "" {
		t.Error("Arch should not be empty")
	}
	if runtime.GOOS != "linux" && info.Distro != "" {
		t.Errorf("Distro = %q on non-Linux platform", info.Distro)
	}
}

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"amd64", "amd64", false},
		{"x86_64", "amd64", false},
		{"AArch64", "arm64", false},
		{"i686", "386", false},
		{"armv7l", "arm", false},
		{"riscv64", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeArch(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("normalizeArch(%q) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeArch(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("normalizeArch(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapFamily(t *testing.T) {
	if got := mapFamily(" Ubuntu "); got != FamilyDebian {
		t.Errorf("mapFamily(ubuntu) = %q, want %q", got, FamilyDebian)
	}
	if got := mapFamily("slackware"); got != FamilyUnknown {
		t.Errorf("mapFamily(slackware) = %q, want %q", got, FamilyUnknown)
	}
}

func TestInfoHelpers(t *testing.T) {
	mac := &Info{OS: "darwin", Arch: "arm64"}
	if !mac.IsAppleSilicon() {
		t.Error("darwin/arm64 should be Apple Silicon")
	}
	if mac.Key() != "darwin-arm64" {
		t.Errorf("Key() = %q", mac.Key())
	}

	win := &Info{OS: "windows", Arch: "amd64"}
	if got := win.ExecutableName("ffmpeg"); got != "ffmpeg.exe" {
		t.Errorf("ExecutableName() = %q, want ffmpeg.exe", got)
	}
	if got := mac.ExecutableName("ffmpeg"); got != "ffmpeg" {
		t.Errorf("ExecutableName() = %q, want ffmpeg", got)
	}
}

func TestStaticDetector(t *testing.T) {
	want := &Info{OS: "linux", Arch: "amd64"}
	got, err := StaticDetector{Info: want}.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got == want {
		t.Error("Detect() should return a copy")
	}
	if *got != *want {
		t.Errorf("Detect() = %+v, want %+v", got, want)
	}

	if _, err := (StaticDetector{}).Detect(context.Background()); err == nil {
		t.Error("expected error for empty detector")
	}
}

func TestInjectPlatformTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{
		OS:            "linux",
		Arch:          "amd64",
		ArchRaw:       "amd64",
		Distro:        "ubuntu",
		Family:        FamilyDebian,
		DistroVersion: "22.04",
	}
	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	tests := []struct {
		name string
		code string
		want lua.LValue
	}{
		{"os", `return platform.os`, lua.LString("linux")},
		{"key", `return platform.key`, lua.LString("linux-amd64")},
		{"is_linux", `return platform.is_linux`, lua.LTrue},
		{"is_windows", `return platform.is_windows`, lua.LFalse},
		{"distro.family", `return platform.distro.family`, lua.LString("debian")},
		{"when_true", `return platform.when(platform.is_linux, "apt")`, lua.LString("apt")},
		{"when_false", `return platform.when(platform.is_macos, "brew")`, lua.LNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.code); err != nil {
				t.Fatalf("DoString(%q) error = %v", tt.code, err)
			}
			got := L.Get(-1)
			L.Pop(1)
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.code, got, tt.want)
			}
		})
	}

	if err := L.DoString(`platform.os = "windows"`); err == nil {
		t.Error("expected error when writing to read-only platform table")
	}
}
