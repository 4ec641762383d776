package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathSnippet returns the line that prepends binDir to PATH in shell.
func PathSnippet(shell ShellType, binDir string) (string, error) {
	if err := ValidateShell(shell); err != nil {
		return "", err
	}

	switch shell {
	case ShellFish:
		return fmt.Sprintf("fish_add_path --global --prepend %s", singleQuote(binDir)), nil
	case ShellPowerShell:
		return fmt.Sprintf("$env:PATH = '%s' + [IO.Path]::PathSeparator + $env:PATH", strings.ReplaceAll(binDir, "'", "''")), nil
	default:
		return fmt.Sprintf(`export PATH=%s:"$PATH"`, singleQuote(binDir)), nil
	}
}

// OnPath reports whether dir appears in the PATH list pathEnv.
func OnPath(dir, pathEnv string) bool {
	want := filepath.Clean(dir)
	for _, entry := range filepath.SplitList(pathEnv) {
		if entry != "" && filepath.Clean(entry) == want {
			return true
		}
	}
	return false
}

// BinOnPath checks the current process PATH.
func BinOnPath(binDir string) bool {
	return OnPath(binDir, os.Getenv("PATH"))
}

// singleQuote quotes s for POSIX shells and fish.
func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
