package schema

// ValidationError reports JSON that parsed but does not conform to a
// schema. Err carries the field-level details from the validator.
type ValidationError struct {
	Schema string
	Raw    string

	Err error
}

func (e *ValidationError) Error() string {
	return "schema " + e.Schema + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
