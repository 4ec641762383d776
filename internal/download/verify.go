package download

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// SHA256File streams path through SHA-256 in ChunkSize reads and returns the
// lowercase hex digest.
func SHA256File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := sha256.New()
	// Wrapping hides os.File's WriterTo so the copy honours the buffer.
	if _, err := io.CopyBuffer(hasher, struct{ io.Reader }{file}, make([]byte, ChunkSize)); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ChecksumMatches compares two hex digests case-insensitively.
func ChecksumMatches(expected, actual string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(actual))
}

// VerifyFile returns nil when path matches the expected digest, and a
// *ChecksumMismatchError (with URL set to source) otherwise.
func VerifyFile(path, expected, source string) error {
	actual, err := SHA256File(path)
	if err != nil {
		return err
	}
	if !ChecksumMatches(expected, actual) {
		return &ChecksumMismatchError{URL: source, Expected: strings.ToLower(expected), Actual: actual}
	}
	return nil
}
