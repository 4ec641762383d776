package release

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// ErrNoChecksum is returned when a release publishes no manifest covering
// the asset.
var ErrNoChecksum = errors.New("no checksum manifest published for asset")

// ErrSignature marks a checksum manifest whose detached signature is missing
// or does not verify against the configured keyring.
var ErrSignature = errors.New("checksum manifest signature invalid")

// manifestCandidates are tried in order; "{asset}" expands to the asset name.
var manifestCandidates = []string{
	"{asset}.sha256",
	"{asset}.sha256sum",
	"SHA2-256SUMS",
	"SHA256SUMS",
	"sha256sums.txt",
	"checksums.txt",
	"checksums.sha256",
}

// FindChecksum returns the manifest asset that should list asset's digest.
func FindChecksum(rel Release, asset Asset) (Asset, error) {
	byName := make(map[string]Asset, len(rel.Assets))
	for _, a := range rel.Assets {
		byName[strings.ToLower(a.Name)] = a
	}
	for _, candidate := range manifestCandidates {
		name := strings.ToLower(strings.ReplaceAll(candidate, "{asset}", asset.Name))
		if manifest, ok := byName[name]; ok {
			return manifest, nil
		}
	}
	return Asset{}, fmt.Errorf("%w: %s", ErrNoChecksum, asset.Name)
}

// FindSignature returns the detached signature published for manifest.
func FindSignature(rel Release, manifest Asset) (Asset, bool) {
	for _, suffix := range []string{".sig", ".asc", ".gpg"} {
		want := manifest.Name + suffix
		for _, a := range rel.Assets {
			if strings.EqualFold(a.Name, want) {
				return a, true
			}
		}
	}
	return Asset{}, false
}

// ParseChecksum finds the digest for filename in a manifest. Lines have the
// form "abc123  filename" (a leading "*" marks binary mode); a manifest that
// is a single bare digest applies to any file.
func ParseChecksum(data []byte, filename string) (string, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("checksum file is empty")
	}
	if isSHA256Hex(text) {
		return strings.ToLower(text), nil
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 || !isSHA256Hex(parts[0]) {
			continue
		}

		name := strings.TrimPrefix(parts[len(parts)-1], "*")
		if name == filename || filepath.Base(name) == filename {
			return strings.ToLower(parts[0]), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum file: %w", err)
	}

	return "", fmt.Errorf("checksum not found for %s", filename)
}

// ChecksumFor downloads the manifest covering asset and returns its digest.
// When keyring is non-empty the manifest must carry a valid detached
// signature from one of its keys.
func (c *Client) ChecksumFor(ctx context.Context, rel Release, asset Asset, keyring openpgp.EntityList) (string, error) {
	manifest, err := FindChecksum(rel, asset)
	if err != nil {
		return "", err
	}
	data, err := c.fetchSmall(ctx, manifest.DownloadURL)
	if err != nil {
		return "", err
	}

	if len(keyring) > 0 {
		sigAsset, ok := FindSignature(rel, manifest)
		if !ok {
			return "", fmt.Errorf("%w: %s has no detached signature", ErrSignature, manifest.Name)
		}
		sig, err := c.fetchSmall(ctx, sigAsset.DownloadURL)
		if err != nil {
			return "", err
		}
		if err := VerifyManifestSignature(keyring, data, sig); err != nil {
			return "", fmt.Errorf("verify %s: %w", manifest.Name, err)
		}
		c.logger.Debug("checksum manifest signature verified", "manifest", manifest.Name)
	}

	return ParseChecksum(data, asset.Name)
}

// VerifyManifestSignature checks a detached signature, armored or binary.
func VerifyManifestSignature(keyring openpgp.EntityList, manifest, signature []byte) error {
	if len(keyring) == 0 {
		return fmt.Errorf("keyring is empty")
	}
	_, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(manifest), bytes.NewReader(signature), nil)
	if err != nil {
		_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(manifest), bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignature, err)
	}
	return nil
}

// LoadKeyring reads an armored or binary public keyring from path.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	keyringFile, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		if _, seekErr := keyringFile.Seek(0, io.SeekStart); seekErr != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
