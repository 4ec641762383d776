package config

import (
	"regexp"
	"strings"
)

// SensitivePattern represents a pattern that might indicate a hardcoded
// credential.
type SensitivePattern struct {
	Name    string
	Pattern *regexp.Regexp
}

var sensitivePatterns = []SensitivePattern{
	{
		Name:    "github_token",
		Pattern: regexp.MustCompile(`(gh[pousr]_[A-Za-z0-9]{36,}|github_pat_[A-Za-z0-9_]{40,})`),
	},
	{
		Name:    "token",
		Pattern: regexp.MustCompile(`(?i)(token|auth[_-]?token|access[_-]?token|bearer)\s*=\s*['"][a-zA-Z0-9_-]{15,}['"]`),
	},
	{
		Name:    "password",
		Pattern: regexp.MustCompile(`(?i)(password|passwd|pwd)\s*=\s*['"].+['"]`),
	},
}

// SensitiveDataFinding is one line that looks like it carries a secret.
type SensitiveDataFinding struct {
	PatternName string
	Line        int
	Preview     string
}

// DetectSensitiveData scans configuration content for credentials that
// belong in the environment (GITHUB_TOKEN) rather than in the file. Lua
// comments are ignored.
func DetectSensitiveData(content string) []SensitiveDataFinding {
	var findings []SensitiveDataFinding
	for i, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		for _, p := range sensitivePatterns {
			if p.Pattern.MatchString(line) {
				findings = append(findings, SensitiveDataFinding{
					PatternName: p.Name,
					Line:        i + 1,
					Preview:     redactSensitiveValue(line),
				})
				break
			}
		}
	}
	return findings
}

// redactSensitiveValue keeps the key and hides the value.
func redactSensitiveValue(line string) string {
	eq := strings.Index(line, "=")
	if eq == -1 {
		if len(line) > 30 {
			return line[:30] + "... [REDACTED]"
		}
		return line + " [REDACTED]"
	}
	return strings.TrimSpace(line[:eq]) + " = [REDACTED]"
}
