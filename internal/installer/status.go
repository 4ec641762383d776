package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/ledger"
	"github.com/subforge/subforge/internal/logging"
	"github.com/subforge/subforge/internal/transaction"
)

// DependencyStatus is the ledger entry for one dependency plus what is
// actually on disk.
type DependencyStatus struct {
	Dependency catalog.ID
	Entry      ledger.Entry
	// Present is true when the recorded path still exists.
	Present bool
	// Size is the size of the resolved file, following links.
	Size int64
}

// Report is the result of Status.
type Report struct {
	Dependencies []DependencyStatus
	// Interrupted lists installs that started but never finished.
	Interrupted []*transaction.Journal
}

// Status reads the ledger and checks each recorded path.
func (s *Service) Status(ctx context.Context) (Report, error) {
	versions, err := s.ledger.Get(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, id := range catalog.LedgerIDs() {
		entry, _ := versions.Entry(id)
		st := DependencyStatus{Dependency: id, Entry: entry}
		if entry.ResolvedPath != "" {
			if info, err := os.Stat(entry.ResolvedPath); err == nil {
				st.Present = true
				st.Size = info.Size()
			}
		}
		report.Dependencies = append(report.Dependencies, st)
	}

	report.Interrupted, err = transaction.Interrupted(s.paths.Journal())
	if err != nil {
		return report, err
	}
	return report, nil
}

// ResetOptions selects what Reset removes besides the ledger.
type ResetOptions struct {
	// Models also deletes downloaded Whisper models.
	Models bool
	// Cache also deletes cached downloads and extracted tool archives.
	Cache bool
}

// Reset restores a fresh state: the ledger is cleared, links in the bin
// directory are removed and interrupted installs are discarded along with
// their partial downloads.
func (s *Service) Reset(ctx context.Context, opts ResetOptions) error {
	if err := s.ledger.Reset(ctx); err != nil {
		return err
	}

	var errs []error
	journals, err := transaction.Interrupted(s.paths.Journal())
	if err != nil {
		errs = append(errs, err)
	}
	for _, j := range journals {
		if err := j.Discard(); err != nil {
			errs = append(errs, err)
		}
	}

	dirs := []string{s.paths.Bin}
	if opts.Models {
		dirs = append(dirs, s.paths.Models)
	}
	if opts.Cache {
		dirs = append(dirs, s.paths.Cache, s.paths.Tools)
	}
	for _, dir := range dirs {
		if err := clearDir(dir); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	s.logger.Info("factory reset complete", logging.FieldPath, s.paths.Data)
	return nil
}

// clearDir removes everything inside dir but keeps dir itself.
func clearDir(dir string) error {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var errs []error
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
