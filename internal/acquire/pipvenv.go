package acquire

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/logging"
)

// pipVenvStrategy creates a dedicated virtual environment and pip-installs
// the package into it.
type pipVenvStrategy struct {
	env  *Env
	dep  catalog.Dependency
	spec catalog.Strategy
	goos string
}

func (s *pipVenvStrategy) Name() string {
	return s.spec.Name()
}

func (s *pipVenvStrategy) Attempt(ctx context.Context, req Request) Outcome {
	log := s.env.logger().With(logging.FieldDependency, s.dep.ID, logging.FieldStrategy, s.Name())

	python, ok := s.findPython()
	if !ok {
		return unavailable("python3 not found on PATH")
	}

	venv := filepath.Join(s.env.Paths.Venvs, string(s.dep.ID))
	venvPython := s.venvExecutable(venv, "python")
	if _, err := os.Stat(venvPython); err != nil {
		req.report(Progress{Strategy: s.Name(), Percent: 5, Message: "creating virtual environment"})
		argv := append(append([]string(nil), python...), "-m", "venv", venv)
		if res, err := s.env.Runner.Run(ctx, argv, nil); err != nil {
			if ctx.Err() != nil {
				return canceledOutcome(ctx.Err())
			}
			return Unavailable{Reason: err.Error(), ManagerInvoked: true, ExitCode: res.ExitCode}
		}
	}

	pkg := firstNonEmpty(s.spec.PipPackage, s.dep.PyPIProject, string(s.dep.ID))
	log.Info("installing into virtual environment", "package", pkg, logging.FieldPath, venv)
	argv := []string{venvPython, "-m", "pip", "install", "--upgrade", pkg}
	if res, err := s.env.Runner.Run(ctx, argv, milestoneReporter(req, s.Name(), "pip")); err != nil {
		if ctx.Err() != nil {
			return canceledOutcome(ctx.Err())
		}
		return Unavailable{Reason: err.Error(), ManagerInvoked: true, ExitCode: res.ExitCode}
	}

	executable := s.venvExecutable(venv, s.dep.InstallName())
	if _, err := os.Stat(executable); err != nil {
		return Unavailable{Reason: fmt.Sprintf("pip reported success but %s is missing", executable), ManagerInvoked: true, ExitCode: 0}
	}
	linked, err := Link(s.env.Paths.Bin, s.dep.InstallName(), executable, s.goos)
	if err != nil {
		return unavailable(err.Error())
	}

	version := s.pipVersion(ctx, venvPython, pkg)
	req.report(Progress{Strategy: s.Name(), Percent: 100, Message: "installed " + pkg})
	return Installed{Version: firstNonEmpty(version, UnknownVersion), Path: linked}
}

// findPython returns the interpreter invocation, which on Windows may be the
// py launcher.
func (s *pipVenvStrategy) findPython() ([]string, bool) {
	candidates := [][]string{{"python3"}, {"python"}}
	if s.goos == "windows" {
		candidates = [][]string{{"py", "-3"}, {"python"}, {"python3"}}
	}
	for _, c := range candidates {
		if path, err := s.env.Runner.LookPath(c[0]); err == nil {
			return append([]string{path}, c[1:]...), true
		}
	}
	return nil, false
}

func (s *pipVenvStrategy) venvExecutable(venv, name string) string {
	if s.goos == "windows" {
		return filepath.Join(venv, "Scripts", exeName(s.goos, name))
	}
	return filepath.Join(venv, "bin", name)
}

// pipVersion reads the installed version from `pip show`.
func (s *pipVenvStrategy) pipVersion(ctx context.Context, venvPython, pkg string) string {
	var version string
	_, err := s.env.Runner.Run(ctx, []string{venvPython, "-m", "pip", "show", pkg}, func(line string) {
		if v, ok := strings.CutPrefix(line, "Version:"); ok && version == "" {
			version = strings.TrimSpace(v)
		}
	})
	if err != nil {
		return ""
	}
	return version
}
