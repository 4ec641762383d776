package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Dirs are the three roots every other path derives from.
type Dirs struct {
	Config string
	Data   string
	Cache  string
}

// ConfigFile returns the configuration file path.
func (d Dirs) ConfigFile() string {
	return filepath.Join(d.Config, FileName)
}

// ResolveDirs applies the SUBFORGE_*_DIR overrides on top of the platform
// conventions.
func ResolveDirs() (Dirs, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("cannot determine home directory: %w", err)
	}

	var dirs Dirs
	if dirs.Config = os.Getenv(EnvConfigDir); dirs.Config == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = filepath.Join(home, ".config")
		}
		dirs.Config = filepath.Join(base, "subforge")
	}
	if dirs.Data = os.Getenv(EnvDataDir); dirs.Data == "" {
		dirs.Data = defaultDataDir(home)
	}
	if dirs.Cache = os.Getenv(EnvCacheDir); dirs.Cache == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = filepath.Join(home, ".cache")
		}
		dirs.Cache = filepath.Join(base, "subforge")
	}
	return dirs, nil
}

func defaultDataDir(home string) string {
	switch runtime.GOOS {
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "subforge")
		}
		return filepath.Join(home, "AppData", "Local", "subforge")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "subforge")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "subforge")
		}
		return filepath.Join(home, ".local", "share", "subforge")
	}
}

// expandHome replaces a leading ~/ with the home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
