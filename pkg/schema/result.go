package schema

import (
	"encoding/json"
	"sync"
)

// Result distinguishes three states of raw model output: not JSON at all,
// valid JSON that does not conform to the schema, and conforming JSON.
// Callers branch on ValidJSON / Valid instead of catching errors, so a
// repair loop can re-prompt with the partial JSON rather than starting over.
//
// Evaluation is deferred until first use and happens at most once; the raw
// text never changes, so every call observes the same outcome.
type Result struct {
	raw    string
	schema *Schema

	once sync.Once

	decoded   any
	decodeErr error

	value       any
	validateErr error
}

// Raw returns the original text untouched, regardless of outcome.
func (r *Result) Raw() string {
	return r.raw
}

// ValidJSON reports whether the text parsed as JSON, conforming or not.
func (r *Result) ValidJSON() bool {
	r.evaluate()

	return r.decodeErr == nil
}

// Valid reports whether the text parsed as JSON and conforms to the schema.
func (r *Result) Valid() bool {
	r.evaluate()

	return r.decodeErr == nil && r.validateErr == nil
}

// Parse returns the schema-conforming value with declared defaults applied.
// It fails with the JSON decode error if the text is not JSON, or with a
// *ValidationError if it is JSON of the wrong shape.
func (r *Result) Parse() (any, error) {
	r.evaluate()

	if r.decodeErr != nil {
		return nil, r.decodeErr
	}

	if r.validateErr != nil {
		return nil, r.validateErr
	}

	return r.value, nil
}

// ParseObject returns the decoded JSON value (mapping, array or scalar)
// without schema coercion. It fails only when the text is not JSON.
func (r *Result) ParseObject() (any, error) {
	r.evaluate()

	if r.decodeErr != nil {
		return nil, r.decodeErr
	}

	return r.decoded, nil
}

func (r *Result) evaluate() {
	r.once.Do(func() {
		var decoded any

		if err := json.Unmarshal([]byte(r.raw), &decoded); err != nil {
			r.decodeErr = err
			return
		}

		r.decoded = decoded

		// Decode a second copy so defaults never leak into ParseObject.
		var value any
		json.Unmarshal([]byte(r.raw), &value)

		if m, ok := value.(map[string]any); ok {
			if err := r.schema.resolved.ApplyDefaults(&m); err != nil {
				r.validateErr = &ValidationError{
					Schema: r.schema.name,
					Raw:    r.raw,
					Err:    err,
				}

				return
			}

			value = m
		}

		if err := r.schema.resolved.Validate(value); err != nil {
			r.validateErr = &ValidationError{
				Schema: r.schema.name,
				Raw:    r.raw,
				Err:    err,
			}

			return
		}

		r.value = value
	})
}
