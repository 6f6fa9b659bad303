package executor

import (
	"iter"
	"slices"
	"strings"

	"github.com/adrianliechti/prompter/pkg/prompt"
	"github.com/adrianliechti/prompter/pkg/schema"
)

// Usage is the token accounting reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Response is an immutable snapshot of one provider reply, normalized into
// the block model. All methods are pure derivations.
type Response struct {
	messages []prompt.Message

	usage Usage

	responseSchema *schema.Schema

	status error
}

type ResponseOption func(*Response)

func WithUsage(usage Usage) ResponseOption {
	return func(r *Response) {
		r.usage = usage
	}
}

// WithSchema attaches the response schema declared on the originating
// prompt, enabling Result.
func WithSchema(s *schema.Schema) ResponseOption {
	return func(r *Response) {
		r.responseSchema = s
	}
}

// WithStatus captures a post-hoc failure condition for Err.
func WithStatus(err error) ResponseOption {
	return func(r *Response) {
		r.status = err
	}
}

func NewResponse(messages []prompt.Message, options ...ResponseOption) *Response {
	r := &Response{
		messages: messages,
	}

	for _, option := range options {
		option(r)
	}

	return r
}

func (r *Response) Messages() []prompt.Message {
	return slices.Clone(r.messages)
}

func (r *Response) Usage() Usage {
	return r.usage
}

// Text concatenates the text blocks of all output messages in order.
func (r *Response) Text() string {
	return r.render(nil, false)
}

// ToolRenderer turns a tool-use or tool-result block into its inline text
// rendering. Returning false omits the block.
type ToolRenderer func(c prompt.Content) (string, bool)

// TextWithTools renders text blocks and tool blocks inline at their
// position. A nil renderer uses the default "name(arguments)" and payload
// renderings.
func (r *Response) TextWithTools(render ToolRenderer) string {
	if render == nil {
		render = renderTool
	}

	return r.render(render, true)
}

func (r *Response) render(render ToolRenderer, includeTools bool) string {
	var parts []string

	for _, m := range r.messages {
		for _, c := range m.Content {
			switch c.Kind() {
			case prompt.ContentKindText:
				if c.Text != "" {
					parts = append(parts, c.Text)
				}

			case prompt.ContentKindToolUse, prompt.ContentKindToolResult:
				if !includeTools {
					continue
				}

				if val, ok := render(c); ok {
					parts = append(parts, val)
				}

			case prompt.ContentKindImage:
				continue
			}
		}
	}

	return strings.Join(parts, "\n")
}

func renderTool(c prompt.Content) (string, bool) {
	switch c.Kind() {
	case prompt.ContentKindToolUse:
		return c.ToolUse.Name + "(" + c.ToolUse.Arguments + ")", true

	case prompt.ContentKindToolResult:
		return c.ToolResult.Data, true
	}

	return "", false
}

// ToolCalls yields the tool invocations of the response in order. The
// sequence is finite and restartable.
func (r *Response) ToolCalls() iter.Seq[prompt.ToolUse] {
	return func(yield func(prompt.ToolUse) bool) {
		for _, m := range r.messages {
			for _, c := range m.Content {
				if c.ToolUse == nil {
					continue
				}

				if !yield(*c.ToolUse) {
					return
				}
			}
		}
	}
}

// ToolCall expects exactly one tool invocation and fails with
// *AmbiguousToolCallError otherwise.
func (r *Response) ToolCall() (prompt.ToolUse, error) {
	var calls []prompt.ToolUse

	for call := range r.ToolCalls() {
		calls = append(calls, call)
	}

	if len(calls) != 1 {
		return prompt.ToolUse{}, &AmbiguousToolCallError{Count: len(calls)}
	}

	return calls[0], nil
}

// Result wraps the concatenated text in the response schema declared on
// the originating prompt. It fails with ErrNoSchema if none was declared.
func (r *Response) Result() (*schema.Result, error) {
	if r.responseSchema == nil {
		return nil, ErrNoSchema
	}

	return r.responseSchema.Result(r.Text()), nil
}

// Err surfaces a failure condition captured in the reply, for callers who
// prefer an explicit check over relying on Execute's error return.
func (r *Response) Err() error {
	return r.status
}
