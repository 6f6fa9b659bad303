package prompt

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation. Content order is significant: it
// is the reading order shown to the model.
type Message struct {
	Role Role

	Content []Content
}

func UserMessage(content ...Content) Message {
	return Message{
		Role: RoleUser,

		Content: content,
	}
}

func UserText(text string) Message {
	return UserMessage(TextContent(text))
}

func AssistantMessage(content ...Content) Message {
	return Message{
		Role: RoleAssistant,

		Content: content,
	}
}

func AssistantText(text string) Message {
	return AssistantMessage(TextContent(text))
}

// ToolResultMessage carries tool results back to the model. Providers that
// use a dedicated tool role derive it from the content kind.
func ToolResultMessage(results ...*ToolResult) Message {
	var content []Content

	for _, r := range results {
		content = append(content, ToolResultContent(r))
	}

	return Message{
		Role: RoleUser,

		Content: content,
	}
}

func (m Message) Text() string {
	var parts []string

	for _, c := range m.Content {
		if c.Text != "" {
			parts = append(parts, c.Text)
		}
	}

	return strings.Join(parts, "\n")
}

type ContentKind string

const (
	ContentKindText       ContentKind = "text"
	ContentKindImage      ContentKind = "image"
	ContentKindToolUse    ContentKind = "tool_use"
	ContentKindToolResult ContentKind = "tool_result"
)

// Content is a tagged variant: exactly one of the fields is populated.
// Consumers switch on Kind so a new block kind surfaces everywhere it must
// be handled.
type Content struct {
	Text string

	Image *Image

	ToolUse    *ToolUse
	ToolResult *ToolResult
}

func (c Content) Kind() ContentKind {
	switch {
	case c.Image != nil:
		return ContentKindImage

	case c.ToolUse != nil:
		return ContentKindToolUse

	case c.ToolResult != nil:
		return ContentKindToolResult

	default:
		return ContentKindText
	}
}

func TextContent(val string) Content {
	return Content{
		Text: val,
	}
}

func ImageContent(val *Image) Content {
	return Content{
		Image: val,
	}
}

func ToolUseContent(val ToolUse) Content {
	return Content{
		ToolUse: &val,
	}
}

func ToolResultContent(val *ToolResult) Content {
	return Content{
		ToolResult: val,
	}
}

// ToolUse records a tool invocation requested by the model. Arguments is
// the raw JSON text as generated, which may be partial or not JSON at all;
// validation happens in the tool belt, not here.
type ToolUse struct {
	ID string

	Name      string
	Arguments string
}

// NewToolUse builds a locally-generated invocation with a fresh
// correlation id, for callers replaying calls they synthesized themselves.
func NewToolUse(name string, arguments map[string]any) ToolUse {
	data, _ := json.Marshal(arguments)

	return ToolUse{
		ID: uuid.NewString(),

		Name:      name,
		Arguments: string(data),
	}
}

func (t ToolUse) ArgumentsMap() (map[string]any, error) {
	var result map[string]any

	if err := json.Unmarshal([]byte(t.Arguments), &result); err != nil {
		return nil, err
	}

	return result, nil
}

// ToolResult answers the ToolUse with the same correlation id. It holds
// either a serialized payload or an error description, never both.
type ToolResult struct {
	ID string

	Data    string
	IsError bool
}

func NewToolResult(id string, payload any) (*ToolResult, error) {
	if id == "" {
		return nil, ErrMissingToolUseID
	}

	data, ok := payload.(string)

	if !ok {
		encoded, err := json.Marshal(payload)

		if err != nil {
			return nil, err
		}

		data = string(encoded)
	}

	return &ToolResult{
		ID: id,

		Data: data,
	}, nil
}

func NewToolError(id, message string) (*ToolResult, error) {
	if id == "" {
		return nil, ErrMissingToolUseID
	}

	return &ToolResult{
		ID: id,

		Data:    message,
		IsError: true,
	}, nil
}
