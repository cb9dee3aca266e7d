package feeders

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const manifestSchemaURL = "manifest.schema.json"

//go:embed manifest.schema.json
var manifestSchemaJSON []byte

var manifestSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(manifestSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(manifestSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add manifest schema: %w", err)
	}
	return compiler.Compile(manifestSchemaURL)
})

// ValidateDocument checks a decoded manifest document against the manifest
// JSON schema. The document is normalized through JSON first, so values
// decoded from YAML or TOML validate the same way. A nil document is an
// empty manifest.
func ValidateDocument(doc any) error {
	schema, err := manifestSchema()
	if err != nil {
		return err
	}

	if doc == nil {
		doc = map[string]any{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	normalized, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	if err := schema.Validate(normalized); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return nil
}
