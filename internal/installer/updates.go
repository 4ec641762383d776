package installer

import (
	"context"
	"fmt"

	"github.com/subforge/subforge/internal/acquire"
	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/logging"
	"github.com/subforge/subforge/internal/release"
)

// Update is the upstream comparison for one installed dependency.
type Update struct {
	Dependency catalog.ID
	Current    string
	Latest     string
	Available  bool
	// Err is set when the upstream version could not be determined.
	Err error
}

// CheckUpdates compares installed versions with the latest upstream
// releases. Dependencies that are not installed, have no upstream source, or
// whose version is unknown are reported without Available set. Lookup
// failures are recorded per dependency and do not fail the whole check.
func (s *Service) CheckUpdates(ctx context.Context) ([]Update, error) {
	if s.updates == nil {
		return nil, fmt.Errorf("update source not configured")
	}
	versions, err := s.ledger.Get(ctx)
	if err != nil {
		return nil, err
	}

	var out []Update
	for _, id := range catalog.Installable() {
		entry, _ := versions.Entry(id)
		if !entry.Installed() {
			continue
		}
		dep, ok := catalog.Lookup(id)
		if !ok || (len(dep.UpdateRepos) == 0 && dep.PyPIProject == "") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		u := Update{Dependency: id, Current: entry.Version}
		u.Latest, u.Err = s.latest(ctx, dep)
		if u.Err != nil {
			s.logger.Warn("update check failed",
				logging.FieldDependency, id,
				logging.Error(u.Err),
				logging.FieldErrorHint, acquire.Hint(u.Err),
			)
		} else if entry.Version != acquire.UnknownVersion {
			u.Available = release.IsNewer(u.Latest, entry.Version)
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Service) latest(ctx context.Context, dep catalog.Dependency) (string, error) {
	if dep.PyPIProject != "" {
		return s.updates.LatestPyPI(ctx, dep.PyPIProject)
	}
	rel, _, err := s.updates.LatestOf(ctx, dep.UpdateRepos...)
	if err != nil {
		return "", err
	}
	return rel.Version(), nil
}
