package acquire

import (
	"context"
	"strings"
	"time"

	"github.com/subforge/subforge/internal/release"
)

const versionProbeTimeout = 30 * time.Second

// UnknownVersion is recorded when an install succeeded but no version could
// be read back.
const UnknownVersion = "unknown"

// probeVersion runs path with args and extracts the first dotted version
// from its opening lines.
func (e *Env) probeVersion(ctx context.Context, path string, args []string) string {
	if len(args) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	var head []string
	argv := append([]string{path}, args...)
	if _, err := e.Runner.Run(ctx, argv, func(line string) {
		if len(head) < 5 {
			head = append(head, line)
		}
	}); err != nil {
		e.logger().Debug("version probe failed", "path", path, "error", err)
		return ""
	}
	version, err := release.ExtractVersion(strings.Join(head, "\n"))
	if err != nil {
		return ""
	}
	return version
}

// brewVersion asks brew which version of pkg it has installed.
func (e *Env) brewVersion(ctx context.Context, brewPath, pkg string) string {
	res, err := e.Runner.Run(ctx, []string{brewPath, "list", "--versions", pkg}, nil)
	if err != nil || len(res.Tail) == 0 {
		return ""
	}
	fields := strings.Fields(res.Tail[0])
	if len(fields) < 2 {
		return ""
	}
	return fields[len(fields)-1]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
