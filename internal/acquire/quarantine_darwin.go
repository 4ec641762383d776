//go:build darwin

package acquire

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

const quarantineAttr = "com.apple.quarantine"

// clearQuarantine removes the Gatekeeper quarantine flag so a downloaded
// binary can run without a prompt.
func clearQuarantine(path string) error {
	err := unix.Removexattr(path, quarantineAttr)
	if err == nil || errors.Is(err, unix.ENOATTR) {
		return nil
	}
	return fmt.Errorf("clear quarantine on %s: %w", path, err)
}
