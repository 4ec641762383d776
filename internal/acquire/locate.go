package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrNotFound is returned when no candidate executable exists.
var ErrNotFound = errors.New("executable not found")

// conventionalDirs lists where package managers put executables, for the
// case where the install succeeded but PATH has not caught up.
func conventionalDirs(goos string) []string {
	home, _ := os.UserHomeDir()
	switch goos {
	case "darwin":
		return []string{"/opt/homebrew/bin", "/usr/local/bin", "/usr/bin"}
	case "windows":
		var dirs []string
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			dirs = append(dirs, filepath.Join(local, "Microsoft", "WinGet", "Links"))
		}
		if programData := os.Getenv("ProgramData"); programData != "" {
			dirs = append(dirs, filepath.Join(programData, "chocolatey", "bin"))
		}
		if home != "" {
			dirs = append(dirs, filepath.Join(home, "scoop", "shims"))
		}
		return dirs
	default:
		dirs := []string{"/usr/bin", "/usr/local/bin", "/bin", "/snap/bin", "/home/linuxbrew/.linuxbrew/bin"}
		if home != "" {
			dirs = append(dirs, filepath.Join(home, ".linuxbrew", "bin"), filepath.Join(home, ".local", "bin"))
		}
		return dirs
	}
}

func (e *Env) searchDirs(goos string) []string {
	if e.SearchDirs != nil {
		return e.SearchDirs
	}
	return conventionalDirs(goos)
}

// exeName appends .exe on Windows.
func exeName(goos, name string) string {
	if goos == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// locate finds the first of names in preference order. Each name is looked
// for in prefixDirs, then on PATH, then in the conventional directories.
// Anything inside the bin directory is skipped so a stale link never
// resolves to itself.
func (e *Env) locate(goos string, names []string, prefixDirs ...string) (string, error) {
	search := e.searchDirs(goos)
	for _, name := range names {
		file := exeName(goos, name)
		for _, dir := range prefixDirs {
			if path := filepath.Join(dir, file); e.usable(path) {
				return path, nil
			}
		}
		if path, err := e.Runner.LookPath(name); err == nil && e.usable(path) {
			return path, nil
		}
		for _, dir := range search {
			if path := filepath.Join(dir, file); e.usable(path) {
				return path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNotFound, strings.Join(names, ", "))
}

func (e *Env) usable(path string) bool {
	if e.Paths.Bin != "" && isWithinDir(e.Paths.Bin, path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// findBrew returns the brew executable, which is often missing from PATH on
// fresh macOS and Linuxbrew installs.
func (e *Env) findBrew(goos string) (string, bool) {
	if path, err := e.Runner.LookPath("brew"); err == nil {
		return path, true
	}
	for _, dir := range e.searchDirs(goos) {
		path := filepath.Join(dir, "brew")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// brewPrefixDirs asks brew where it links executables.
func (e *Env) brewPrefixDirs(ctx context.Context, brewPath, pkg string) []string {
	var dirs []string
	for _, argv := range [][]string{{brewPath, "--prefix", pkg}, {brewPath, "--prefix"}} {
		res, err := e.Runner.Run(ctx, argv, nil)
		if err != nil || len(res.Tail) == 0 {
			continue
		}
		prefix := strings.TrimSpace(res.Tail[len(res.Tail)-1])
		if prefix != "" {
			dirs = append(dirs, filepath.Join(prefix, "bin"))
		}
	}
	return dirs
}

// Link makes target reachable as name inside binDir. An existing entry is
// replaced. On Windows a .cmd shim is written when symlinks are not
// permitted.
func Link(binDir, name, target, goos string) (string, error) {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return "", fmt.Errorf("create bin dir: %w", err)
	}

	linkPath := filepath.Join(binDir, exeName(goos, name))
	if err := removeEntry(linkPath); err != nil {
		return "", err
	}
	err := os.Symlink(target, linkPath)
	if err == nil {
		return linkPath, nil
	}
	if goos != "windows" || runtime.GOOS != "windows" {
		return "", fmt.Errorf("link %s: %w", linkPath, err)
	}

	shim := filepath.Join(binDir, name+".cmd")
	if err := removeEntry(shim); err != nil {
		return "", err
	}
	content := "@echo off\r\n\"" + target + "\" %*\r\n"
	if err := os.WriteFile(shim, []byte(content), 0o755); err != nil {
		return "", fmt.Errorf("write shim %s: %w", shim, err)
	}
	return shim, nil
}

func removeEntry(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

func isWithinDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}
