package prompt

import "errors"

// Invariant violations are programmer errors: they fail at construction
// and have no retry path.
var (
	ErrInvalidImage     = errors.New("invalid image")
	ErrDuplicateTool    = errors.New("duplicate tool name")
	ErrMissingToolUseID = errors.New("tool result requires a tool use id")
)
