package config

import "testing"

func TestDetectSensitiveData(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"clean", `subforge = { ledger = { backend = "toml" } }`, nil},
		{"github token", `github = { token = "ghp_` + "0123456789abcdefghijklmnopqrstuvwxyzAB" + `" }`, []string{"github_token"}},
		{"generic token", `token = "abcdefghijklmnopqrstu"`, []string{"token"}},
		{"commented out", `-- token = "abcdefghijklmnopqrstu"`, nil},
		{"password", `password = "hunter2"`, []string{"password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := DetectSensitiveData(tt.content)
			if len(findings) != len(tt.want) {
				t.Fatalf("findings = %+v, want %v", findings, tt.want)
			}
			for i, f := range findings {
				if f.PatternName != tt.want[i] {
					t.Errorf("finding %d = %s, want %s", i, f.PatternName, tt.want[i])
				}
				if f.Line != 1 {
					t.Errorf("Line = %d", f.Line)
				}
			}
		})
	}
}

func TestRedactSensitiveValue(t *testing.T) {
	if got := redactSensitiveValue(`  token = "secret-value"`); got != "token = [REDACTED]" {
		t.Errorf("redactSensitiveValue() = %q", got)
	}
}
