package agents

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileStore persists agent profiles to a YAML file. Writes go through a
// temp file plus rename so a crash never leaves a half-written set.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed profile store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Load reads all persisted profiles. A missing file yields an empty
// slice.
func (f *FileStore) Load() ([]Profile, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profile file: %w", err)
	}
	return file.Profiles, nil
}

// Save writes the full profile set atomically.
func (f *FileStore) Save(profiles []Profile) error {
	data, err := yaml.Marshal(profileFile{Profiles: profiles})
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".profiles-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp profile file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp profile file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp profile file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace profile file: %w", err)
	}
	return nil
}
