package feeders

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YamlFeeder reads a manifest from a YAML file.
type YamlFeeder struct {
	Path string
}

// NewYamlFeeder creates a YamlFeeder reading filePath.
func NewYamlFeeder(filePath string) YamlFeeder {
	return YamlFeeder{Path: filePath}
}

// Feed validates the file against the manifest schema and decodes it into m.
func (y YamlFeeder) Feed(m *Manifest) error {
	data, err := os.ReadFile(y.Path)
	if err != nil {
		return fmt.Errorf("failed to read YAML: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML %s: %w", y.Path, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return fmt.Errorf("%s: %w", y.Path, err)
	}

	if err := yaml.Unmarshal(data, m); err != nil {
		return fmt.Errorf("failed to parse YAML %s: %w", y.Path, err)
	}
	return nil
}
