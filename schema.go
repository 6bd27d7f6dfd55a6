package docex

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FieldSpec names one field to extract. Description is a free-text hint
// passed through to the extractor and the retrieval query builder.
type FieldSpec struct {
	Name        string `json:"name" toml:"name"`
	Description string `json:"description,omitempty" toml:"description"`
}

// Schema is an ordered list of field specs. Order carries no meaning, but
// names must be unique within a schema.
type Schema []FieldSpec

// Validate checks that the schema is non-empty and every field name is
// unique and non-blank.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return ErrMissingSchema
	}
	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if f.Name == "" {
			return fmt.Errorf("schema: %w", ErrBlankFieldName)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema: duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Contains reports whether name is one of the schema's field names.
func (s Schema) Contains(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Field returns the spec for name, or false when the schema does not
// declare it.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// JSONSchema builds a permissive JSON-Schema document for extractor output:
// an object whose properties are the schema's field names, each of any type
// (null included), with no extra properties allowed.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s))
	for _, f := range s {
		spec := map[string]any{}
		if f.Description != "" {
			spec["description"] = f.Description
		}
		props[f.Name] = spec
	}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
}

// ValidateResult validates raw extractor output (JSON bytes) against the
// schema's generated JSON-Schema document.
func (s Schema) ValidateResult(data []byte) error {
	b, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	if err := compiled.Validate(v); err != nil {
		return fmt.Errorf("result does not match schema: %w", err)
	}
	return nil
}
