// Package testutil isolates tests from the user's real subforge state.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points every SUBFORGE_*_DIR variable at a fresh temp
// directory, clears GITHUB_TOKEN and returns the root. t.TempDir handles the
// cleanup.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	t.Setenv("SUBFORGE_CONFIG_DIR", filepath.Join(root, "config"))
	t.Setenv("SUBFORGE_DATA_DIR", filepath.Join(root, "data"))
	t.Setenv("SUBFORGE_CACHE_DIR", filepath.Join(root, "cache"))
	t.Setenv("GITHUB_TOKEN", "")

	for _, dir := range []string{"config", "data", "cache"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return root
}

// WriteFile creates path with content, making parent directories.
func WriteFile(t *testing.T, path string, content []byte, perm os.FileMode) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
