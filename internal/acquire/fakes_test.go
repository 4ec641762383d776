package acquire

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork

	"github.com/subforge/subforge/internal/download"
	"github.com/subforge/subforge/internal/release"
)

// fakeCommand scripts the response to every command whose joined argv
// starts with match.
type fakeCommand struct {
	match string
	lines []string
	exit  int
	err   error
	run   func(argv []string)
}

type fakeRunner struct {
	mu       sync.Mutex
	paths    map[string]string
	commands []fakeCommand
	calls    []string
}

func newFakeRunner(paths map[string]string, commands ...fakeCommand) *fakeRunner {
	return &fakeRunner{paths: paths, commands: commands}
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if path, ok := f.paths[name]; ok {
		return path, nil
	}
	return "", exec.ErrNotFound
}

func (f *fakeRunner) Run(ctx context.Context, argv []string, onLine func(string)) (CommandResult, error) {
	joined := strings.Join(argv, " ")
	f.mu.Lock()
	f.calls = append(f.calls, joined)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return CommandResult{ExitCode: -1}, err
	}
	for _, c := range f.commands {
		if !strings.HasPrefix(joined, c.match) {
			continue
		}
		for _, line := range c.lines {
			if onLine != nil {
				onLine(line)
			}
		}
		if c.run != nil {
			c.run(argv)
		}
		res := CommandResult{ExitCode: c.exit, Tail: c.lines}
		if c.err != nil {
			return res, c.err
		}
		if c.exit != 0 {
			return res, &CommandError{Command: joined, ExitCode: c.exit, Output: lastLine(c.lines)}
		}
		return res, nil
	}
	return CommandResult{ExitCode: 127}, &CommandError{Command: joined, ExitCode: 127, Output: "command not scripted"}
}

func (f *fakeRunner) called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// fakeReleases serves one release for any repo list.
type fakeReleases struct {
	rel         release.Release
	repo        string
	err         error
	checksum    string
	checksumErr error
}

func (f *fakeReleases) LatestOf(ctx context.Context, repos ...string) (release.Release, string, error) {
	if f.err != nil {
		return release.Release{}, "", f.err
	}
	repo := f.repo
	if repo == "" && len(repos) > 0 {
		repo = repos[0]
	}
	return f.rel, repo, nil
}

func (f *fakeReleases) ChecksumFor(ctx context.Context, rel release.Release, asset release.Asset, keyring openpgp.EntityList) (string, error) {
	if f.checksumErr != nil {
		return "", f.checksumErr
	}
	if f.checksum == "" {
		return "", release.ErrNoChecksum
	}
	return f.checksum, nil
}

// fakeDownloader writes a fixed payload to the task target, or fails.
type fakeDownloader struct {
	payload []byte
	err     error
	tasks   []download.Task
}

func (f *fakeDownloader) Download(ctx context.Context, task download.Task, onProgress download.ProgressFunc) error {
	f.tasks = append(f.tasks, task)
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(task.TargetPath), 0o755); err != nil {
		return err
	}
	if onProgress != nil {
		onProgress(download.Progress{URL: task.URL, Written: int64(len(f.payload)), Total: int64(len(f.payload))})
	}
	return os.WriteFile(task.TargetPath, f.payload, 0o644)
}

// newTestEnv returns an Env rooted in a temp dir that never looks at the
// real conventional directories.
func newTestEnv(t *testing.T, runner Runner) *Env {
	t.Helper()
	root := t.TempDir()
	return &Env{
		Runner: runner,
		Paths: Paths{
			Bin:    filepath.Join(root, "bin"),
			Cache:  filepath.Join(root, "cache"),
			Tools:  filepath.Join(root, "tools"),
			Models: filepath.Join(root, "models"),
			Venvs:  filepath.Join(root, "venvs"),
		},
		SearchDirs: []string{},
	}
}

// writeExecutable creates an executable file at path.
func writeExecutable(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

// progressLog collects reported percentages.
type progressLog struct {
	mu       sync.Mutex
	percents []int
}

func (p *progressLog) record(pr Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr.Percent >= 0 {
		p.percents = append(p.percents, pr.Percent)
	}
}

var errBoom = errors.New("boom")
