// Package catalog holds the static description of every external
// dependency: how it is named, which acquisition strategies apply on each
// operating system and in what order, and the manual fallback instructions.
//
// Adding a dependency or platform is a change to the tables in this package,
// not new control flow.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// ID names a dependency. The values double as Version Ledger keys.
type ID string

const (
	YtDlp          ID = "yt-dlp"
	FFmpeg         ID = "ffmpeg"
	FFprobe        ID = "ffprobe"
	WhisperCpp     ID = "whisper.cpp"
	WhisperModel   ID = "whisperModel"
	LibreTranslate ID = "libreTranslate"
)

// LedgerIDs lists every ledger key in display order.
func LedgerIDs() []ID {
	return []ID{YtDlp, FFmpeg, FFprobe, WhisperCpp, WhisperModel, LibreTranslate}
}

// Installable lists the dependencies that can be requested directly.
// ffprobe is installed alongside ffmpeg.
func Installable() []ID {
	return []ID{YtDlp, FFmpeg, WhisperCpp, WhisperModel, LibreTranslate}
}

var aliases = map[string]ID{
	"yt-dlp":          YtDlp,
	"ytdlp":           YtDlp,
	"ffmpeg":          FFmpeg,
	"ffprobe":         FFmpeg,
	"whisper.cpp":     WhisperCpp,
	"whisper-cpp":     WhisperCpp,
	"whisper":         WhisperCpp,
	"whispermodel":    WhisperModel,
	"whisper-model":   WhisperModel,
	"model":           WhisperModel,
	"libretranslate":  LibreTranslate,
	"libre-translate": LibreTranslate,
}

// ParseID resolves user input such as "whisper" or "model" to an ID.
func ParseID(s string) (ID, error) {
	if id, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return id, nil
	}
	known := make([]string, 0, len(aliases))
	for k := range aliases {
		known = append(known, k)
	}
	sort.Strings(known)
	return "", fmt.Errorf("unknown dependency %q (known: %s)", s, strings.Join(known, ", "))
}

// Kind is the family an acquisition strategy belongs to.
type Kind string

const (
	// KindBrew installs through Homebrew/Linuxbrew.
	KindBrew Kind = "brew"
	// KindNative installs through the OS package manager.
	KindNative Kind = "native"
	// KindRelease downloads a prebuilt GitHub release asset.
	KindRelease Kind = "release"
	// KindModel downloads a model file from a direct URL.
	KindModel Kind = "model"
	// KindPipVenv creates a Python virtual environment and pip-installs.
	KindPipVenv Kind = "pipvenv"
)

// ManagerCommands is one package manager and the argv lists to run with it.
type ManagerCommands struct {
	Manager  string
	Commands [][]string
	// Package is the name the manager knows the dependency by; used for
	// version and prefix queries.
	Package string
}

// ReleaseSource describes a GitHub-hosted prebuilt binary.
type ReleaseSource struct {
	// Repos are tried in order; a 404 moves to the next one.
	Repos []string
	// Assets maps GOARCH to asset patterns; the "" entry applies to every
	// architecture and is tried after the specific ones.
	Assets map[string][]string
	// Executables are looked up inside an archive asset, in preference
	// order. For a bare executable asset they are ignored.
	Executables []string
}

// PatternsFor returns the ordered asset patterns for goarch.
func (r ReleaseSource) PatternsFor(goarch string) []string {
	out := append([]string(nil), r.Assets[goarch]...)
	return append(out, r.Assets[""]...)
}

// Strategy is one row of the acquisition table.
type Strategy struct {
	Kind     Kind
	Managers []ManagerCommands
	Release  *ReleaseSource
	// PipPackage names the package installed into the virtual environment.
	PipPackage string
}

// Name returns a short label for logs and aggregate errors.
func (s Strategy) Name() string {
	if s.Kind == KindNative && len(s.Managers) == 1 {
		return string(s.Kind) + ":" + s.Managers[0].Manager
	}
	return string(s.Kind)
}

// Companion is a secondary executable shipped by the same install.
type Companion struct {
	ID          ID
	Executables []string
	VersionArgs []string
}

// Dependency describes one external dependency.
type Dependency struct {
	ID    ID
	Title string
	// Executables are candidate names after a package-manager install, in
	// preference order. The first is the name used in the bin directory.
	Executables []string
	// VersionArgs makes the executable print its version; nil skips probing.
	VersionArgs []string
	Companions  []Companion
	// UpdateRepos is consulted by update checks; PyPIProject takes its
	// place for Python packages.
	UpdateRepos []string
	PyPIProject string

	strategies map[string][]Strategy
	manual     map[string]string
}

// InstallName returns the executable name used in the bin directory.
func (d Dependency) InstallName() string {
	if len(d.Executables) == 0 {
		return string(d.ID)
	}
	return d.Executables[0]
}

// Strategies returns the ordered strategy list for goos.
func (d Dependency) Strategies(goos string) []Strategy {
	return append([]Strategy(nil), d.strategies[goos]...)
}

// ManualInstructions returns copy-pasteable commands for goos, or "".
func (d Dependency) ManualInstructions(goos string) string {
	return d.manual[goos]
}

// Lookup returns the dependency definition for id.
func Lookup(id ID) (Dependency, bool) {
	if id == FFprobe {
		id = FFmpeg
	}
	d, ok := dependencies[id]
	return d, ok
}

// Reorder filters and orders strategies by kind. An empty order returns the
// list unchanged; kinds not in order are dropped.
func Reorder(strategies []Strategy, order []Kind) []Strategy {
	if len(order) == 0 {
		return strategies
	}
	out := make([]Strategy, 0, len(strategies))
	for _, kind := range order {
		for _, s := range strategies {
			if s.Kind == kind {
				out = append(out, s)
			}
		}
	}
	return out
}
