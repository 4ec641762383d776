package release

import (
	"fmt"
	"regexp"
	"strings"
)

// Selector describes how to pick an asset: ordered patterns first, then a
// fallback predicate over the remaining names.
type Selector struct {
	// Patterns are regular expressions tried in order; the first asset
	// matching the earliest pattern wins.
	Patterns []string
	// Fallback is consulted when no pattern matches. It may be nil.
	Fallback func(name string) bool
}

// AssetNotFoundError lists every asset name of the release so users can
// see what was published.
type AssetNotFoundError struct {
	Repo  string
	Tag   string
	Names []string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("no matching asset in release %s (available: %s)", e.Tag, strings.Join(e.Names, ", "))
}

// Hint returns the next step shown to users.
func (e *AssetNotFoundError) Hint() string {
	if e.Repo != "" {
		return "no build for this platform was published; check https://github.com/" + e.Repo + "/releases or install it manually"
	}
	return "no build for this platform was published; install it manually"
}

// SelectAsset picks the asset for the current platform.
func SelectAsset(rel Release, sel Selector) (Asset, error) {
	for _, pattern := range sel.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Asset{}, fmt.Errorf("invalid asset pattern %q: %w", pattern, err)
		}
		for _, asset := range rel.Assets {
			if re.MatchString(asset.Name) {
				return asset, nil
			}
		}
	}

	if sel.Fallback != nil {
		for _, asset := range rel.Assets {
			if isSupplemental(asset.Name) {
				continue
			}
			if sel.Fallback(asset.Name) {
				return asset, nil
			}
		}
	}

	return Asset{}, &AssetNotFoundError{Tag: rel.Tag, Names: rel.AssetNames()}
}

var (
	osAliases = map[string][]string{
		"linux":   {"linux"},
		"darwin":  {"darwin", "macos", "osx", "mac"},
		"windows": {"windows", "win64", "win32", "win", ".exe"},
	}
	archAliases = map[string][]string{
		"amd64": {"amd64", "x86_64", "x64"},
		"arm64": {"arm64", "aarch64"},
		"386":   {"386", "i386", "i686", "x86", "win32"},
	}
)

// PlatformFallback returns a predicate that accepts asset names mentioning
// the operating system and, when any architecture token appears in the
// name, the right architecture.
func PlatformFallback(goos, goarch string) func(string) bool {
	osTokens := osAliases[goos]
	wantArch := archAliases[goarch]
	return func(name string) bool {
		lower := strings.ToLower(name)
		if !containsAny(lower, osTokens) {
			return false
		}
		if !mentionsArch(lower) {
			return true
		}
		return containsAny(lower, wantArch)
	}
}

func mentionsArch(name string) bool {
	for _, tokens := range archAliases {
		if containsAny(name, tokens) {
			return true
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// isSupplemental reports checksum and signature files.
func isSupplemental(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".sha256", ".sha512", ".sig", ".asc", ".pem", ".sbom", ".json", ".txt"} {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return strings.Contains(lower, "sha2-") || strings.Contains(lower, "sums") || strings.Contains(lower, "checksum")
}
