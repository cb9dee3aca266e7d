package feeders

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// TomlFeeder reads a manifest from a TOML file. Modules are declared as an
// array of tables:
//
//	[[modules]]
//	name = "http"
//	location = "./modules/httpserver"
//	[modules.config]
//	port = 8080
type TomlFeeder struct {
	Path string
}

// NewTomlFeeder creates a TomlFeeder reading filePath.
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{Path: filePath}
}

// Feed validates the file against the manifest schema and decodes it into m.
func (t TomlFeeder) Feed(m *Manifest) error {
	data, err := os.ReadFile(t.Path)
	if err != nil {
		return fmt.Errorf("failed to read toml: %w", err)
	}

	var doc map[string]any
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return fmt.Errorf("failed to parse toml %s: %w", t.Path, err)
	}
	if err := ValidateDocument(doc); err != nil {
		return fmt.Errorf("%s: %w", t.Path, err)
	}

	meta, err := toml.Decode(string(data), m)
	if err != nil {
		return fmt.Errorf("failed to parse toml %s: %w", t.Path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%w: unknown keys %v in %s", ErrInvalidManifest, undecoded, t.Path)
	}
	return nil
}
