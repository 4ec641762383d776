package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// TOMLStore keeps the record in a TOML file, replaced atomically on save.
type TOMLStore struct {
	path string
}

// NewTOMLStore returns a store backed by path.
func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// Path returns the backing file.
func (s *TOMLStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *TOMLStore) Load(_ context.Context) (Versions, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Versions{}, nil
		}
		return Versions{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	var v Versions
	if err := toml.Unmarshal(data, &v); err != nil {
		return Versions{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return v, nil
}

// Save implements Store.
func (s *TOMLStore) Save(_ context.Context, v Versions) error {
	data, err := toml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// Delete implements Store.
func (s *TOMLStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
