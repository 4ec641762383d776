package acquire

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/subforge/subforge/internal/catalog"
)

func TestPipVenvStrategy_Installs(t *testing.T) {
	runner := newFakeRunner(map[string]string{"python3": "/usr/bin/python3"})
	env := newTestEnv(t, runner)
	venv := filepath.Join(env.Paths.Venvs, string(catalog.LibreTranslate))
	venvPython := filepath.Join(venv, "bin", "python")

	runner.commands = []fakeCommand{
		{match: "/usr/bin/python3 -m venv " + venv, run: func([]string) {
			writeExecutable(t, venvPython)
		}},
		{match: venvPython + " -m pip install --upgrade libretranslate", lines: []string{
			"Collecting libretranslate",
			"Downloading libretranslate-1.6.2-py3-none-any.whl (1.2 MB)",
			"Installing collected packages: libretranslate",
			"Successfully installed libretranslate-1.6.2",
		}, run: func([]string) {
			writeExecutable(t, filepath.Join(venv, "bin", "libretranslate"))
		}},
		{match: venvPython + " -m pip show libretranslate", lines: []string{"Name: libretranslate", "Version: 1.6.2"}},
	}

	dep := testDependency(t, catalog.LibreTranslate)
	var progress progressLog
	outcome := env.Build(dep, dep.Strategies("linux")[0], "linux").Attempt(context.Background(),
		Request{Dependency: catalog.LibreTranslate, GOOS: "linux", Progress: progress.record})

	installed, ok := outcome.(Installed)
	if !ok {
		t.Fatalf("outcome = %#v, want Installed", outcome)
	}
	if installed.Version != "1.6.2" {
		t.Errorf("Version = %q", installed.Version)
	}
	if installed.Path != filepath.Join(env.Paths.Bin, "libretranslate") {
		t.Errorf("Path = %q", installed.Path)
	}
	want := []int{5, 20, 40, 80, 100, 100}
	if len(progress.percents) != len(want) {
		t.Fatalf("progress = %v, want %v", progress.percents, want)
	}
	for i := range want {
		if progress.percents[i] != want[i] {
			t.Errorf("progress = %v, want %v", progress.percents, want)
			break
		}
	}
}

func TestPipVenvStrategy_NoPython(t *testing.T) {
	env := newTestEnv(t, newFakeRunner(nil))
	dep := testDependency(t, catalog.LibreTranslate)
	outcome := env.Build(dep, dep.Strategies("linux")[0], "linux").Attempt(context.Background(), Request{GOOS: "linux"})
	u, ok := outcome.(Unavailable)
	if !ok || u.ManagerInvoked {
		t.Fatalf("outcome = %#v, want Unavailable without invocation", outcome)
	}
}

func TestPipVenvStrategy_PipFails(t *testing.T) {
	runner := newFakeRunner(
		map[string]string{"python3": "/usr/bin/python3"},
		fakeCommand{match: "/usr/bin/python3 -m venv", exit: 1, lines: []string{"Error: ensurepip is not available"}},
	)
	env := newTestEnv(t, runner)
	dep := testDependency(t, catalog.LibreTranslate)
	outcome := env.Build(dep, dep.Strategies("linux")[0], "linux").Attempt(context.Background(), Request{GOOS: "linux"})
	u, ok := outcome.(Unavailable)
	if !ok || !u.ManagerInvoked || u.ExitCode != 1 {
		t.Fatalf("outcome = %#v", outcome)
	}
}
