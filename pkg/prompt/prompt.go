package prompt

import (
	"fmt"
	"slices"

	"github.com/adrianliechti/prompter/pkg/schema"
)

// Tool declares a callable the model may invoke. Parameters describes the
// argument shape; nil means the tool takes no arguments.
type Tool struct {
	Name        string
	Description string

	Parameters *schema.Schema
}

// ToolChoice is the tool-use policy for a prompt. Values other than the
// declared constants name a specific tool the model must call.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

func ToolChoiceTool(name string) ToolChoice {
	return ToolChoice(name)
}

// Prompt is a complete request to a model: system instruction, ordered
// conversation, declared tools and an optional response schema. A Prompt is
// immutable once constructed; Append and the With builders return copies.
type Prompt struct {
	system string

	messages []Message

	tools      []Tool
	toolChoice ToolChoice

	responseSchema *schema.Schema
}

func New(system string, messages ...Message) *Prompt {
	return &Prompt{
		system: system,

		messages: slices.Clone(messages),
	}
}

func (p *Prompt) System() string {
	return p.system
}

func (p *Prompt) Messages() []Message {
	return slices.Clone(p.messages)
}

func (p *Prompt) Tools() []Tool {
	return p.tools
}

func (p *Prompt) ToolChoice() ToolChoice {
	return p.toolChoice
}

func (p *Prompt) ResponseSchema() *schema.Schema {
	return p.responseSchema
}

// WithTools declares the tools available to the model. Tool names must be
// unique within one prompt.
func (p *Prompt) WithTools(tools ...Tool) (*Prompt, error) {
	seen := map[string]bool{}

	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("%w: empty name", ErrDuplicateTool)
		}

		if seen[t.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTool, t.Name)
		}

		seen[t.Name] = true
	}

	clone := *p
	clone.tools = slices.Clone(tools)

	return &clone, nil
}

func (p *Prompt) WithToolChoice(choice ToolChoice) *Prompt {
	clone := *p
	clone.toolChoice = choice

	return &clone
}

func (p *Prompt) WithResponseSchema(s *schema.Schema) *Prompt {
	clone := *p
	clone.responseSchema = s

	return &clone
}

// Append returns a new Prompt with messages added to the conversation. The
// receiver is not modified.
func (p *Prompt) Append(messages ...Message) *Prompt {
	clone := *p
	clone.messages = append(slices.Clone(p.messages), messages...)

	return &clone
}
