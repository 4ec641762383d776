// Package transaction keeps installs safe to interrupt: a per-dependency
// lock rejects concurrent installs of the same dependency, and a journal
// records what an in-flight install touched so an interrupted run can be
// reported and cleaned up.
package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// State represents the current state of an install or one of its steps.
type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

const journalPrefix = "txn-install-"

// Journal records one install operation.
type Journal struct {
	Version    int       `json:"version"`
	ID         string    `json:"id"`
	Dependency string    `json:"dependency"`
	Timestamp  time.Time `json:"timestamp"`
	State      State     `json:"state"`
	Steps      []Step    `json:"steps"`
	// TempFiles are partial downloads owned by this install. They are kept
	// after a cancel so a later install can resume.
	TempFiles []string `json:"temp_files,omitempty"`

	path string
}

// Step is one strategy attempt.
type Step struct {
	Strategy  string `json:"strategy"`
	State     State  `json:"state"`
	LastError string `json:"last_error,omitempty"`
}

// NewJournal starts a journal for dependency.
func NewJournal(dependency string) *Journal {
	return &Journal{
		Version:    1,
		ID:         uuid.New().String(),
		Dependency: dependency,
		Timestamp:  time.Now().UTC(),
		State:      StatePending,
		Steps:      []Step{},
	}
}

// Begin records that strategy is being attempted.
func (j *Journal) Begin(strategy string) {
	j.State = StateInProgress
	j.Steps = append(j.Steps, Step{Strategy: strategy, State: StateInProgress})
}

// Finish records the outcome of the most recent step.
func (j *Journal) Finish(state State, err error) {
	if len(j.Steps) == 0 {
		return
	}
	last := &j.Steps[len(j.Steps)-1]
	last.State = state
	if err != nil {
		last.LastError = err.Error()
	} else {
		last.LastError = ""
	}
}

// TrackTemp records a partial-download path owned by this install.
func (j *Journal) TrackTemp(path string) {
	for _, p := range j.TempFiles {
		if p == path {
			return
		}
	}
	j.TempFiles = append(j.TempFiles, path)
}

// Save writes the journal to dir atomically.
// Uses write-then-rename pattern for atomicity.
func (j *Journal) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	finalPath := filepath.Join(dir, journalPrefix+j.ID+".json")
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}

	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("write temporary journal file: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename journal file: %w", err)
	}

	j.path = finalPath
	return nil
}

// Complete marks the install finished and removes its journal file along
// with any tracked partial download still on disk.
func (j *Journal) Complete() error {
	j.State = StateCompleted
	return j.Discard()
}

// Adopt takes over an interrupted journal of the same dependency. Its
// partial downloads are tracked by j from now on and its file is removed.
func (j *Journal) Adopt(prev *Journal) error {
	for _, p := range prev.TempFiles {
		j.TrackTemp(p)
	}
	if prev.path == "" {
		return nil
	}
	if err := os.Remove(prev.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove adopted journal: %w", err)
	}
	prev.path = ""
	return nil
}

// LoadJournal reads a journal from disk.
func LoadJournal(path string) (*Journal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read journal file: %w", err)
	}

	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("unmarshal journal: %w", err)
	}
	j.path = path
	return &j, nil
}

// Path returns where the journal was last saved.
func (j *Journal) Path() string {
	return j.path
}

// Interrupted lists journals left behind by installs that never completed,
// oldest first. Unreadable files are skipped.
func Interrupted(dir string) ([]*Journal, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read journal directory: %w", err)
	}

	var out []*Journal
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, journalPrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		j, err := LoadJournal(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Timestamp.Before(out[b].Timestamp) })
	return out, nil
}

// Discard removes the journal and any partial downloads it tracked.
func (j *Journal) Discard() error {
	var errs []error
	for _, p := range j.TempFiles {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if j.path != "" {
		if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		j.path = ""
	}
	return errors.Join(errs...)
}
