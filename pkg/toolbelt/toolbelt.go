// Package toolbelt bridges raw tool invocations to typed, validated
// arguments via each tool's declared schema.
package toolbelt

import (
	"fmt"
	"slices"

	"github.com/adrianliechti/prompter/pkg/prompt"
)

// Belt is a registry of tools keyed by name. It holds no conversation
// state and is read-only after construction, so one instance may back any
// number of concurrent prompts.
type Belt struct {
	names []string
	tools map[string]prompt.Tool
}

func New(tools ...prompt.Tool) (*Belt, error) {
	b := &Belt{
		tools: map[string]prompt.Tool{},
	}

	for _, t := range tools {
		if err := b.Add(t); err != nil {
			return nil, err
		}
	}

	return b, nil
}

func (b *Belt) Add(tool prompt.Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("%w: empty name", prompt.ErrDuplicateTool)
	}

	if _, ok := b.tools[tool.Name]; ok {
		return fmt.Errorf("%w: %q", prompt.ErrDuplicateTool, tool.Name)
	}

	b.names = append(b.names, tool.Name)
	b.tools[tool.Name] = tool

	return nil
}

// Tools returns the declarations in registration order, ready to embed
// into a prompt.
func (b *Belt) Tools() []prompt.Tool {
	result := make([]prompt.Tool, 0, len(b.names))

	for _, name := range b.names {
		result = append(result, b.tools[name])
	}

	return result
}

func (b *Belt) Names() []string {
	return slices.Clone(b.names)
}

// ParseCall resolves an invocation by exact name and validates its raw
// arguments against the tool's schema, returning the decoded mapping with
// defaults applied. Tools declared without parameters accept any decodable
// mapping.
func (b *Belt) ParseCall(call prompt.ToolUse) (map[string]any, error) {
	tool, ok := b.tools[call.Name]

	if !ok {
		return nil, &UnknownToolError{Name: call.Name}
	}

	if tool.Parameters == nil {
		if call.Arguments == "" {
			return map[string]any{}, nil
		}

		args, err := call.ArgumentsMap()

		if err != nil {
			return nil, err
		}

		return args, nil
	}

	result := tool.Parameters.Result(call.Arguments)

	value, err := result.Parse()

	if err != nil {
		return nil, err
	}

	args, ok := value.(map[string]any)

	if !ok {
		return nil, fmt.Errorf("tool %q: arguments are not an object", call.Name)
	}

	return args, nil
}

// UnknownToolError reports an invocation naming a tool that was never
// registered. Lookup is exact-match; there is no fuzzy fallback.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return "unknown tool: " + e.Name
}
