package shell

import "fmt"

// ShellType names a shell subforge can emit PATH snippets for.
type ShellType string

const (
	ShellBash       ShellType = "bash"
	ShellZsh        ShellType = "zsh"
	ShellFish       ShellType = "fish"
	ShellPowerShell ShellType = "powershell"
	ShellUnknown    ShellType = "unknown"
)

func (s ShellType) String() string {
	return string(s)
}

// IsValid reports whether PathSnippet supports s.
func (s ShellType) IsValid() bool {
	return s == ShellBash || s == ShellZsh || s == ShellFish || s == ShellPowerShell
}

// DetectionResult is what DetectShell found and how.
type DetectionResult struct {
	Shell     ShellType
	Method    string
	ShellPath string
}

// UnsupportedShellError is returned for shells without a PATH snippet.
type UnsupportedShellError struct {
	Shell string
}

func (e *UnsupportedShellError) Error() string {
	return fmt.Sprintf("unsupported shell: %s (supported: bash, zsh, fish, powershell)", e.Shell)
}

// ValidateShell returns an *UnsupportedShellError for unknown shells.
func ValidateShell(shell ShellType) error {
	if shell.IsValid() {
		return nil
	}
	return &UnsupportedShellError{Shell: shell.String()}
}
