package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/ledger"
	"github.com/subforge/subforge/internal/logging"
)

// elevated lists the Linux package managers that need root.
var elevated = map[string]bool{
	"apt-get": true,
	"dnf":     true,
	"pacman":  true,
	"zypper":  true,
	"apk":     true,
}

// managerStrategy installs through brew or an OS package manager. Managers
// are probed in table order; the first one present is used.
type managerStrategy struct {
	env  *Env
	dep  catalog.Dependency
	spec catalog.Strategy
	goos string
}

func (s *managerStrategy) Name() string {
	return s.spec.Name()
}

func (s *managerStrategy) Attempt(ctx context.Context, req Request) Outcome {
	log := s.env.logger().With(logging.FieldDependency, s.dep.ID, logging.FieldStrategy, s.Name())

	var missing []string
	var last Unavailable
	invoked := false

	for _, mc := range s.spec.Managers {
		managerPath, ok := s.managerPath(mc.Manager)
		if !ok {
			missing = append(missing, mc.Manager)
			continue
		}

		invoked = true
		log.Info("installing with package manager", "manager", mc.Manager, "package", mc.Package)
		req.report(Progress{Strategy: s.Name(), Percent: 0, Message: "running " + mc.Manager})

		exitCode, err := s.runCommands(ctx, req, managerPath, mc)
		if ctx.Err() != nil {
			return canceledOutcome(ctx.Err())
		}
		if err != nil {
			log.Warn("package manager failed", "manager", mc.Manager, logging.Error(err))
			last = Unavailable{Reason: err.Error(), ManagerInvoked: true, ExitCode: exitCode}
			continue
		}

		outcome, err := s.collect(ctx, managerPath, mc)
		if err != nil {
			last = Unavailable{Reason: fmt.Sprintf("%s reported success but %v", mc.Manager, err), ManagerInvoked: true, ExitCode: 0}
			continue
		}
		req.report(Progress{Strategy: s.Name(), Percent: 100, Message: "installed with " + mc.Manager})
		return outcome
	}

	if !invoked {
		return unavailable(fmt.Sprintf("package manager not found (tried %s)", strings.Join(missing, ", ")))
	}
	return last
}

func (s *managerStrategy) managerPath(manager string) (string, bool) {
	if manager == "brew" {
		return s.env.findBrew(s.goos)
	}
	path, err := s.env.Runner.LookPath(manager)
	return path, err == nil
}

// runCommands runs every command of mc in order and returns the exit code of
// the one that failed.
func (s *managerStrategy) runCommands(ctx context.Context, req Request, managerPath string, mc catalog.ManagerCommands) (int, error) {
	onLine := milestoneReporter(req, s.Name(), mc.Manager)
	for _, argv := range mc.Commands {
		argv = append([]string{managerPath}, argv[1:]...)
		var (
			res CommandResult
			err error
		)
		for _, candidate := range s.elevation(mc.Manager, argv) {
			res, err = s.env.Runner.Run(ctx, candidate, onLine)
			if err == nil || ctx.Err() != nil {
				break
			}
			var timeout *ProcessTimeoutError
			if errors.As(err, &timeout) {
				break
			}
		}
		if err != nil {
			return res.ExitCode, err
		}
	}
	return 0, nil
}

// elevation returns argv variants in the order they are tried: as is, then
// through pkexec, then through non-interactive sudo.
func (s *managerStrategy) elevation(manager string, argv []string) [][]string {
	if s.goos != "linux" || !elevated[manager] || os.Geteuid() == 0 {
		return [][]string{argv}
	}
	variants := [][]string{argv}
	if _, err := s.env.Runner.LookPath("pkexec"); err == nil {
		variants = append(variants, append([]string{"pkexec"}, argv...))
	}
	if _, err := s.env.Runner.LookPath("sudo"); err == nil {
		variants = append(variants, append([]string{"sudo", "-n"}, argv...))
	}
	return variants
}

// collect locates the installed executables, links them into the bin
// directory and reads back their versions.
func (s *managerStrategy) collect(ctx context.Context, managerPath string, mc catalog.ManagerCommands) (Installed, error) {
	var prefixDirs []string
	isBrew := s.spec.Kind == catalog.KindBrew
	if isBrew {
		prefixDirs = s.env.brewPrefixDirs(ctx, managerPath, mc.Package)
	}

	path, err := s.env.locate(s.goos, s.dep.Executables, prefixDirs...)
	if err != nil {
		return Installed{}, err
	}
	linked, err := Link(s.env.Paths.Bin, s.dep.InstallName(), path, s.goos)
	if err != nil {
		return Installed{}, err
	}

	version := s.env.probeVersion(ctx, path, s.dep.VersionArgs)
	if version == "" && isBrew {
		version = s.env.brewVersion(ctx, managerPath, mc.Package)
	}
	out := Installed{Version: firstNonEmpty(version, UnknownVersion), Path: linked}

	for _, c := range s.dep.Companions {
		cpath, err := s.env.locate(s.goos, c.Executables, prefixDirs...)
		if err != nil {
			s.env.logger().Warn("companion executable not found", logging.FieldDependency, c.ID, logging.Error(err))
			continue
		}
		clinked, err := Link(s.env.Paths.Bin, c.Executables[0], cpath, s.goos)
		if err != nil {
			return Installed{}, err
		}
		if out.Companions == nil {
			out.Companions = make(map[catalog.ID]ledger.Entry)
		}
		out.Companions[c.ID] = ledger.Entry{
			Version:      firstNonEmpty(s.env.probeVersion(ctx, cpath, c.VersionArgs), out.Version),
			ResolvedPath: clinked,
		}
	}
	return out, nil
}
