package schema

import (
	"encoding/json"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema is a named, resolved declarative schema used to validate
// model-generated JSON (tool arguments, structured response bodies).
type Schema struct {
	name        string
	description string

	definition *jsonschema.Schema
	resolved   *jsonschema.Resolved
}

func New(name string, definition *jsonschema.Schema) (*Schema, error) {
	if name == "" {
		return nil, errors.New("schema name must not be empty")
	}

	if definition == nil {
		return nil, errors.New("schema definition must not be nil")
	}

	resolved, err := definition.Resolve(nil)

	if err != nil {
		return nil, err
	}

	return &Schema{
		name: name,

		definition: definition,
		resolved:   resolved,
	}, nil
}

// For derives a schema from a Go struct type.
func For[T any](name string) (*Schema, error) {
	definition, err := jsonschema.For[T](nil)

	if err != nil {
		return nil, err
	}

	return New(name, definition)
}

func (s *Schema) Name() string {
	return s.name
}

func (s *Schema) Description() string {
	return s.description
}

func (s *Schema) WithDescription(description string) *Schema {
	clone := *s
	clone.description = description

	return &clone
}

func (s *Schema) Definition() *jsonschema.Schema {
	return s.definition
}

// Parameters returns the schema as a plain mapping, the shape provider
// request formats expect.
func (s *Schema) Parameters() map[string]any {
	data, err := json.Marshal(s.definition)

	if err != nil {
		return nil
	}

	var result map[string]any

	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}

	return result
}

// Validate checks a decoded value against the schema without applying
// defaults.
func (s *Schema) Validate(v any) error {
	if err := s.resolved.Validate(v); err != nil {
		return &ValidationError{
			Schema: s.name,
			Err:    err,
		}
	}

	return nil
}

// Result wraps raw model output text for lazy validation against this
// schema.
func (s *Schema) Result(raw string) *Result {
	return &Result{
		raw:    raw,
		schema: s,
	}
}
