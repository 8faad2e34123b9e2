// Package meta reads and writes the sidecar file that records where a locally
// materialized directory came from. When present, its origin URL is the only
// source used to resolve an upload destination that was not given explicitly.
package meta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// FileName is the sidecar file placed at the root of a synced directory.
const FileName = ".remote.meta"

// InputsDir is where remote step inputs are staged inside a working
// directory. Its contents are copies of other remote data and are never
// synced back.
const InputsDir = ".remote-inputs"

// Metadata is the provenance record of a synced directory.
type Metadata struct {
	URL string `yaml:"url"` // Remote origin, e.g. s3://bucket/projects/garden
}

// Path returns the sidecar location for dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the sidecar in dir.
// A missing file, or one with an empty url, returns an error wrapping os.ErrNotExist.
func Load(fs afero.Fs, dir string) (*Metadata, error) {
	p := Path(dir)

	data, err := afero.ReadFile(fs, p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no remote metadata in %s: %w", dir, os.ErrNotExist)
		}
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}

	var m Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p, err)
	}

	if m.URL == "" {
		return nil, fmt.Errorf("remote metadata in %s has no url: %w", dir, os.ErrNotExist)
	}

	return &m, nil
}

// Save writes m to the sidecar in dir, replacing any previous record.
func Save(fs afero.Fs, dir string, m Metadata) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshaling remote metadata: %w", err)
	}

	if err := afero.WriteFile(fs, Path(dir), data, 0644); err != nil {
		return fmt.Errorf("writing remote metadata: %w", err)
	}

	return nil
}
