package modelcfg

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema checks the document shape before any semantic rules run:
// a non-empty object of provider entries, each with a non-empty default,
// a boolean fallback flag, and a non-empty list of non-empty model IDs.
const configSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {
		"type": "object",
		"required": ["default", "enableFallback", "models"],
		"properties": {
			"default": {"type": "string", "minLength": 1},
			"enableFallback": {"type": "boolean"},
			"models": {
				"type": "array",
				"minItems": 1,
				"items": {"type": "string", "minLength": 1}
			}
		},
		"additionalProperties": false
	}
}`

var compiledSchema = jsonschema.MustCompileString("models.schema.json", configSchema)

// parse decodes and fully validates raw file content.
func parse(raw []byte) (Config, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse models config: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid models config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse models config: %w", err)
	}
	if err := validateSemantics(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks an in-memory snapshot against the same rules the parser
// applies, schema shape first and then the cross-field constraints.
func Validate(cfg Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode models config: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("encode models config: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid models config: %w", err)
	}
	return validateSemantics(cfg)
}

func validateSemantics(cfg Config) error {
	for key, pm := range cfg {
		seen := make(map[string]bool, len(pm.Models))
		for _, m := range pm.Models {
			if seen[m] {
				return fmt.Errorf("invalid models config: provider %s lists model %s twice", key, m)
			}
			seen[m] = true
		}
		if !seen[pm.Default] {
			return fmt.Errorf("invalid models config: provider %s default %s is not in its models list", key, pm.Default)
		}
	}
	return nil
}
