package acquire

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/download"
	"github.com/subforge/subforge/internal/logging"
	"github.com/subforge/subforge/internal/release"
)

// Downloader fetches one verified file. *download.Downloader satisfies it.
type Downloader interface {
	Download(ctx context.Context, task download.Task, onProgress download.ProgressFunc) error
}

// Releases resolves GitHub releases. *release.Client satisfies it.
type Releases interface {
	LatestOf(ctx context.Context, repos ...string) (release.Release, string, error)
	ChecksumFor(ctx context.Context, rel release.Release, asset release.Asset, keyring openpgp.EntityList) (string, error)
}

// Paths are the directories strategies install into.
type Paths struct {
	// Bin holds executables and links to them.
	Bin string
	// Cache holds downloaded release assets.
	Cache string
	// Tools holds unpacked release archives.
	Tools string
	// Models holds Whisper model files.
	Models string
	// Venvs holds Python virtual environments, one per dependency.
	Venvs string
}

// DownloadDir returns where release assets for id are cached.
func (p Paths) DownloadDir(id catalog.ID, tag string) string {
	return filepath.Join(p.Cache, "downloads", string(id), tag)
}

// Env carries the collaborators every strategy shares.
type Env struct {
	Runner     Runner
	Downloader Downloader
	Releases   Releases
	Paths      Paths
	// Registry maps model IDs to digests; nil means catalog.DefaultRegistry.
	Registry     catalog.Registry
	ModelBaseURL string
	// Keyring, when non-empty, makes signed checksum manifests mandatory.
	Keyring openpgp.EntityList
	// SearchDirs replaces the conventional executable directories when
	// non-nil.
	SearchDirs []string
	Logger     *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	return logging.OrNop(e.Logger)
}

func (e *Env) registry() catalog.Registry {
	if e.Registry == nil {
		return catalog.DefaultRegistry
	}
	return e.Registry
}

func (e *Env) modelBaseURL() string {
	if e.ModelBaseURL == "" {
		return catalog.DefaultModelBaseURL
	}
	return e.ModelBaseURL
}

// Build turns one strategy table row into a runnable Strategy for dep.
func (e *Env) Build(dep catalog.Dependency, spec catalog.Strategy, goos string) Strategy {
	switch spec.Kind {
	case catalog.KindBrew, catalog.KindNative:
		return &managerStrategy{env: e, dep: dep, spec: spec, goos: goos}
	case catalog.KindRelease:
		return &releaseStrategy{env: e, dep: dep, spec: spec, goos: goos}
	case catalog.KindModel:
		return &modelStrategy{env: e}
	case catalog.KindPipVenv:
		return &pipVenvStrategy{env: e, dep: dep, spec: spec, goos: goos}
	default:
		return unknownStrategy{kind: spec.Kind}
	}
}

type unknownStrategy struct {
	kind catalog.Kind
}

func (s unknownStrategy) Name() string { return string(s.kind) }

func (s unknownStrategy) Attempt(context.Context, Request) Outcome {
	return unavailable("unknown strategy kind " + string(s.kind))
}
