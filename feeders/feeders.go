// Package feeders reads bootstrap manifests from YAML and TOML files and
// feeds environment overrides into module configuration.
package feeders

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/GoCodeAlone/modboot"
)

var (
	// ErrUnsupportedFormat is returned for manifest files with an unknown
	// extension.
	ErrUnsupportedFormat = errors.New("unsupported manifest format")

	// ErrInvalidManifest is returned when a manifest declares a module
	// without a name or location.
	ErrInvalidManifest = errors.New("invalid manifest")
)

// Manifest is the on-disk form of a bootstrap: application options and the
// ordered module declarations.
type Manifest struct {
	App     modboot.Options             `yaml:"app" toml:"app"`
	Modules []modboot.ModuleDeclaration `yaml:"modules" toml:"modules"`
}

// Feeder populates a manifest from some source.
type Feeder interface {
	Feed(m *Manifest) error
}

// NewFeeder returns the feeder for path, chosen by file extension.
func NewFeeder(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlFeeder(path), nil
	case ".toml":
		return NewTomlFeeder(path), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads the manifest at path and validates its declarations.
func Load(path string) (*Manifest, error) {
	feeder, err := NewFeeder(path)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	if err := feeder.Feed(m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks that every declaration has a name and a location.
func (m *Manifest) Validate() error {
	for i, decl := range m.Modules {
		if decl.Name == "" {
			return fmt.Errorf("%w: module %d has no name", ErrInvalidManifest, i)
		}
		if decl.Location == "" {
			return fmt.Errorf("%w: module %s has no location", ErrInvalidManifest, decl.Name)
		}
	}
	return nil
}
