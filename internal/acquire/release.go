package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/subforge/subforge/internal/archive"
	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/download"
	"github.com/subforge/subforge/internal/ledger"
	"github.com/subforge/subforge/internal/logging"
	"github.com/subforge/subforge/internal/release"
)

// releaseStrategy downloads a prebuilt binary from the latest GitHub
// release. Bare executables are copied into the bin directory; archives are
// unpacked under the tools directory, next to any libraries they ship, and
// linked from the bin directory.
type releaseStrategy struct {
	env  *Env
	dep  catalog.Dependency
	spec catalog.Strategy
	goos string
}

func (s *releaseStrategy) Name() string {
	return s.spec.Name()
}

func (s *releaseStrategy) Attempt(ctx context.Context, req Request) Outcome {
	src := s.spec.Release
	if src == nil || len(src.Repos) == 0 {
		return unavailable("no release source configured")
	}
	log := s.env.logger().With(logging.FieldDependency, s.dep.ID, logging.FieldStrategy, s.Name())

	rel, repo, err := s.env.Releases.LatestOf(ctx, src.Repos...)
	if err != nil {
		if ctx.Err() != nil {
			return canceledOutcome(ctx.Err())
		}
		return unavailable(err.Error())
	}

	asset, err := release.SelectAsset(rel, release.Selector{
		Patterns: src.PatternsFor(req.GOARCH),
		Fallback: release.PlatformFallback(req.GOOS, req.GOARCH),
	})
	if err != nil {
		// A missing asset ends this strategy, not the chain; the
		// diagnostic travels with the Unavailable outcome.
		var notFound *release.AssetNotFoundError
		if errors.As(err, &notFound) {
			notFound.Repo = repo
		}
		log.Warn("no release asset for platform", "repo", repo, logging.Error(err))
		return unavailable(err.Error())
	}
	format := archive.DetectFormat(asset.Name)
	if format != archive.FormatNone && !format.Supported() {
		return unavailable(fmt.Sprintf("%s: %v", asset.Name, archive.ErrUnsupportedFormat))
	}

	checksum, err := s.env.Releases.ChecksumFor(ctx, rel, asset, s.env.Keyring)
	switch {
	case err == nil:
	case errors.Is(err, release.ErrNoChecksum) && len(s.env.Keyring) == 0:
		log.Warn("release publishes no checksum; integrity not verified", "asset", asset.Name)
	case ctx.Err() != nil:
		return canceledOutcome(ctx.Err())
	case errors.Is(err, release.ErrSignature), errors.Is(err, release.ErrNoChecksum):
		return Fatal{Reason: "checksum manifest could not be trusted", Err: err}
	default:
		return unavailable(fmt.Sprintf("fetch checksum for %s: %v", asset.Name, err))
	}

	target := filepath.Join(s.env.Paths.DownloadDir(s.dep.ID, rel.Tag), asset.Name)
	if outcome := downloadFile(ctx, s.env, req, s.Name(), download.Task{
		URL:            asset.DownloadURL,
		TempPath:       target + ".part",
		TargetPath:     target,
		ExpectedSHA256: checksum,
	}); outcome != nil {
		return outcome
	}

	var out Installed
	if format == archive.FormatNone {
		out, err = s.installExecutable(target)
	} else {
		out, err = s.installArchive(target, rel.Tag)
	}
	if err != nil {
		return unavailable(err.Error())
	}
	out.Version = firstNonEmpty(rel.Version(), UnknownVersion)
	for id, entry := range out.Companions {
		entry.Version = out.Version
		out.Companions[id] = entry
	}
	log.Info("installed from release", "repo", repo, "tag", rel.Tag, logging.FieldPath, out.Path)
	return out
}

func (s *releaseStrategy) installExecutable(downloaded string) (Installed, error) {
	if err := os.MkdirAll(s.env.Paths.Bin, 0o755); err != nil {
		return Installed{}, fmt.Errorf("create bin dir: %w", err)
	}
	dest := filepath.Join(s.env.Paths.Bin, exeName(s.goos, s.dep.InstallName()))
	if err := archive.InstallFile(downloaded, dest); err != nil {
		return Installed{}, err
	}
	if err := clearQuarantine(dest); err != nil {
		s.env.logger().Warn("could not clear quarantine", logging.FieldPath, dest, logging.Error(err))
	}
	return Installed{Path: dest}, nil
}

func (s *releaseStrategy) installArchive(downloaded, tag string) (Installed, error) {
	root := filepath.Join(s.env.Paths.Tools, string(s.dep.ID), tag)
	if err := os.RemoveAll(root); err != nil {
		return Installed{}, fmt.Errorf("clear %s: %w", root, err)
	}
	if err := archive.Extract(downloaded, root); err != nil {
		return Installed{}, err
	}

	out := Installed{}
	path, err := s.linkFromArchive(root, s.dep.InstallName(), s.archiveNames(s.spec.Release.Executables, s.dep.Executables))
	if err != nil {
		return Installed{}, err
	}
	out.Path = path

	for _, c := range s.dep.Companions {
		cpath, err := s.linkFromArchive(root, c.Executables[0], s.archiveNames(nil, c.Executables))
		if err != nil {
			s.env.logger().Warn("companion missing from archive", logging.FieldDependency, c.ID, logging.Error(err))
			continue
		}
		if out.Companions == nil {
			out.Companions = make(map[catalog.ID]ledger.Entry)
		}
		out.Companions[c.ID] = ledger.Entry{ResolvedPath: cpath}
	}
	return out, nil
}

func (s *releaseStrategy) linkFromArchive(root, name string, candidates []string) (string, error) {
	found, err := archive.FindBinary(root, candidates...)
	if err != nil {
		return "", err
	}
	if err := archive.SetExecutable(found); err != nil {
		return "", err
	}
	if err := clearQuarantine(found); err != nil {
		s.env.logger().Warn("could not clear quarantine", logging.FieldPath, found, logging.Error(err))
	}
	return Link(s.env.Paths.Bin, name, found, s.goos)
}

// archiveNames prefers the names the release table lists and falls back to
// the dependency's executable names.
func (s *releaseStrategy) archiveNames(preferred, fallback []string) []string {
	if len(preferred) > 0 {
		return preferred
	}
	names := make([]string, 0, len(fallback))
	for _, n := range fallback {
		names = append(names, exeName(s.goos, n))
	}
	return names
}

// downloadFile runs one verified download and maps its failure onto an
// outcome. It returns nil on success.
func downloadFile(ctx context.Context, env *Env, req Request, strategy string, task download.Task) Outcome {
	err := env.Downloader.Download(ctx, task, func(p download.Progress) {
		percent := -1
		if p.Total > 0 {
			percent = int(p.Fraction() * 100)
		}
		req.report(Progress{Strategy: strategy, Percent: percent, Written: p.Written, Total: p.Total, TempPath: task.TempPath})
	})
	if err == nil {
		return nil
	}

	var (
		mismatch *download.ChecksumMismatchError
		space    *download.InsufficientSpaceError
	)
	switch {
	case ctx.Err() != nil:
		return canceledOutcome(ctx.Err())
	case errors.As(err, &mismatch):
		return Fatal{Reason: "download failed verification", Err: err}
	case errors.As(err, &space):
		return Fatal{Reason: "not enough disk space", Err: err}
	default:
		return unavailable(err.Error())
	}
}
