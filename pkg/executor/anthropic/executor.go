package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/prompt"

	"github.com/anthropics/anthropic-sdk-go"
)

var _ executor.Executor = (*Executor)(nil)

type Executor struct {
	*Config

	messages anthropic.MessageService
}

func New(model string, options ...Option) (*Executor, error) {
	cfg := &Config{
		model: model,

		maxTokens: 1024,
	}

	for _, option := range options {
		option(cfg)
	}

	return &Executor{
		Config: cfg,

		messages: anthropic.NewMessageService(cfg.Options()...),
	}, nil
}

func (e *Executor) Execute(ctx context.Context, p *prompt.Prompt) (*executor.Response, error) {
	req, err := e.convertRequest(ctx, p)

	if err != nil {
		return nil, err
	}

	message, err := e.messages.New(ctx, *req)

	if err != nil {
		return nil, convertError(err)
	}

	return parseMessage(message, p), nil
}

func (e *Executor) convertRequest(ctx context.Context, p *prompt.Prompt) (*anthropic.MessageNewParams, error) {
	req := &anthropic.MessageNewParams{
		Model: anthropic.Model(e.model),

		MaxTokens: e.maxTokens,
	}

	var system []anthropic.TextBlockParam

	if p.System() != "" {
		system = append(system, anthropic.TextBlockParam{Text: p.System()})
	}

	// The messages API has no structured-output parameter; the schema is
	// carried as an explicit instruction instead.
	if s := p.ResponseSchema(); s != nil {
		data, _ := json.Marshal(s.Parameters())

		system = append(system, anthropic.TextBlockParam{
			Text: "Respond only with a JSON object matching this JSON schema:\n" + string(data),
		})
	}

	if len(system) > 0 {
		req.System = system
	}

	messages, err := e.convertMessages(ctx, p.Messages())

	if err != nil {
		return nil, err
	}

	req.Messages = mergeMessages(messages)

	for _, t := range p.Tools() {
		tool := anthropic.ToolParam{
			Name: t.Name,
		}

		if t.Description != "" {
			tool.Description = anthropic.String(t.Description)
		}

		if t.Parameters != nil {
			var schema anthropic.ToolInputSchemaParam

			data, _ := json.Marshal(t.Parameters.Parameters())

			if err := json.Unmarshal(data, &schema); err != nil {
				return nil, errors.New("invalid tool parameters schema")
			}

			tool.InputSchema = schema
		}

		req.Tools = append(req.Tools, anthropic.ToolUnionParam{OfTool: &tool})
	}

	if len(req.Tools) > 0 {
		if choice := convertToolChoice(p.ToolChoice()); choice != nil {
			req.ToolChoice = *choice
		}
	}

	return req, nil
}

func (e *Executor) convertMessages(ctx context.Context, input []prompt.Message) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, m := range input {
		var blocks []anthropic.ContentBlockParamUnion

		for _, c := range m.Content {
			switch c.Kind() {
			case prompt.ContentKindText:
				blocks = append(blocks, anthropic.NewTextBlock(c.Text))

			case prompt.ContentKindImage:
				block, err := e.convertImage(ctx, c.Image)

				if err != nil {
					return nil, err
				}

				blocks = append(blocks, block)

			case prompt.ContentKindToolResult:
				block := anthropic.ToolResultBlockParam{
					ToolUseID: c.ToolResult.ID,

					Content: []anthropic.ToolResultBlockParamContentUnion{
						{
							OfText: &anthropic.TextBlockParam{
								Text: c.ToolResult.Data,
							},
						},
					},
				}

				if c.ToolResult.IsError {
					block.IsError = anthropic.Bool(true)
				}

				blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolResult: &block})

			case prompt.ContentKindToolUse:
				var input map[string]any

				if err := json.Unmarshal([]byte(c.ToolUse.Arguments), &input); err != nil || input == nil {
					input = map[string]any{}
				}

				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    c.ToolUse.ID,
						Name:  c.ToolUse.Name,
						Input: input,
					},
				})
			}
		}

		role := anthropic.MessageParamRoleUser

		if m.Role == prompt.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		result = append(result, anthropic.MessageParam{
			Role:    role,
			Content: blocks,
		})
	}

	return result, nil
}

// convertImage always sends base64 source data: remote URLs are fetched,
// files read, inline data passed through.
func (e *Executor) convertImage(ctx context.Context, img *prompt.Image) (anthropic.ContentBlockParamUnion, error) {
	data, mediaType, err := img.Resolve(ctx, e.client)

	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}

	switch mediaType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return anthropic.NewImageBlock(anthropic.Base64ImageSourceParam{
			Data:      base64.StdEncoding.EncodeToString(data),
			MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
		}), nil

	default:
		return anthropic.ContentBlockParamUnion{}, errors.New("unsupported media type " + mediaType)
	}
}

// mergeMessages folds consecutive same-role turns into one, which the
// messages API requires after tool results split a conversation.
func mergeMessages(messages []anthropic.MessageParam) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, m := range messages {
		if len(result) > 0 && result[len(result)-1].Role == m.Role {
			last := &result[len(result)-1]
			last.Content = append(last.Content, m.Content...)

			continue
		}

		result = append(result, m)
	}

	return result
}

func convertToolChoice(choice prompt.ToolChoice) *anthropic.ToolChoiceUnionParam {
	switch choice {
	case "":
		return nil

	case prompt.ToolChoiceAuto:
		return &anthropic.ToolChoiceUnionParam{
			OfAuto: &anthropic.ToolChoiceAutoParam{},
		}

	case prompt.ToolChoiceRequired:
		return &anthropic.ToolChoiceUnionParam{
			OfAny: &anthropic.ToolChoiceAnyParam{},
		}

	case prompt.ToolChoiceNone:
		return &anthropic.ToolChoiceUnionParam{
			OfNone: &anthropic.ToolChoiceNoneParam{},
		}

	default:
		return &anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{
				Name: string(choice),
			},
		}
	}
}

func parseMessage(message *anthropic.Message, p *prompt.Prompt) *executor.Response {
	result := prompt.Message{
		Role: prompt.RoleAssistant,
	}

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			result.Content = append(result.Content, prompt.TextContent(block.Text))

		case "tool_use":
			arguments := string(block.Input)

			if strings.TrimSpace(arguments) == "" {
				arguments = "{}"
			}

			result.Content = append(result.Content, prompt.ToolUseContent(prompt.ToolUse{
				ID: block.ID,

				Name:      block.Name,
				Arguments: arguments,
			}))
		}
	}

	options := []executor.ResponseOption{
		executor.WithUsage(executor.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
		}),
	}

	if s := p.ResponseSchema(); s != nil {
		options = append(options, executor.WithSchema(s))
	}

	if status := toStatus(message.StopReason); status != nil {
		options = append(options, executor.WithStatus(status))
	}

	return executor.NewResponse([]prompt.Message{result}, options...)
}

func toStatus(reason anthropic.StopReason) error {
	switch reason {
	case anthropic.StopReasonMaxTokens:
		return &executor.Error{
			Kind:    executor.ErrorKindTruncated,
			Message: "output truncated at token limit",
		}

	case anthropic.StopReasonRefusal:
		return &executor.Error{
			Kind:    executor.ErrorKindContentFilter,
			Message: "model refused to answer",
		}
	}

	return nil
}

func convertError(err error) error {
	var apierr *anthropic.Error

	if errors.As(err, &apierr) {
		return executor.NewError(apierr.StatusCode, "anthropic request failed", err)
	}

	return &executor.Error{
		Kind:    executor.ErrorKindNetwork,
		Message: "anthropic request failed",

		Retryable: true,

		Provider: err,
	}
}
