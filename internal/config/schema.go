package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const schemaURL = "https://composeim.invalid/config.schema.json"

//go:embed config.schema.json
var schemaData []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Schema returns the embedded JSON Schema document.
func Schema() []byte {
	return schemaData
}

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaData)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// ValidateSchemaFile checks a config file against the schema. Unlike
// Validate, it rejects unknown keys such as misspelled section names.
func ValidateSchemaFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return ValidateSchema(data, filepath.Ext(path))
}

// ValidateSchema checks raw config bytes in the format named by ext
// (".toml", ".json", ".yaml" or ".yml").
func ValidateSchema(data []byte, ext string) error {
	schema, err := compiled()
	if err != nil {
		return err
	}

	var doc map[string]any
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &doc)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = toml.Unmarshal(data, &doc)
	}
	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	instance, err := normalize(doc)
	if err != nil {
		return err
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// normalize maps decoder-specific value types (int64, nested maps) onto
// the JSON data model the validator expects.
func normalize(doc map[string]any) (any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize config: %w", err)
	}
	return out, nil
}
