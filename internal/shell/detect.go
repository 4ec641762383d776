// Package shell detects the user's shell and renders the snippet that puts
// the subforge bin directory on PATH.
package shell

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// DetectShell detects the user's shell from $SHELL, falling back to the
// parent process name.
func DetectShell(ctx context.Context) *DetectionResult {
	if shell := os.Getenv("SHELL"); shell != "" {
		if shellType := ParseShell(shell); shellType.IsValid() {
			return &DetectionResult{Shell: shellType, Method: "$SHELL environment variable", ShellPath: shell}
		}
	}

	if shellType, shellPath := detectFromParentProcess(ctx); shellType.IsValid() {
		return &DetectionResult{Shell: shellType, Method: "parent process", ShellPath: shellPath}
	}

	return &DetectionResult{Shell: ShellUnknown, Method: "detection failed"}
}

// ParseShell maps a shell name or binary path to a ShellType.
// Examples:
//   - /bin/bash -> bash
//   - /usr/local/bin/fish -> fish
//   - pwsh.exe -> powershell
func ParseShell(shellPath string) ShellType {
	baseName := strings.ToLower(filepath.Base(shellPath))
	baseName = strings.TrimSuffix(baseName, ".exe")
	baseName = strings.TrimPrefix(baseName, "-") // login shells

	switch baseName {
	case "bash":
		return ShellBash
	case "zsh":
		return ShellZsh
	case "fish":
		return ShellFish
	case "pwsh", "powershell":
		return ShellPowerShell
	default:
		return ShellUnknown
	}
}

func detectFromParentProcess(ctx context.Context) (ShellType, string) {
	parent, err := process.NewProcessWithContext(ctx, int32(os.Getppid()))
	if err != nil {
		return ShellUnknown, ""
	}
	name, err := parent.NameWithContext(ctx)
	if err != nil {
		return ShellUnknown, ""
	}
	exe, _ := parent.ExeWithContext(ctx)
	if exe == "" {
		exe = name
	}
	return ParseShell(name), exe
}
