package openai

import (
	"context"
	"errors"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/prompt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
)

var _ executor.Executor = (*Executor)(nil)

type Executor struct {
	*Config

	completions openai.ChatCompletionService
}

func New(model string, options ...Option) (*Executor, error) {
	cfg := &Config{
		model: model,
	}

	for _, option := range options {
		option(cfg)
	}

	return &Executor{
		Config: cfg,

		completions: openai.NewChatCompletionService(cfg.Options()...),
	}, nil
}

func (e *Executor) Execute(ctx context.Context, p *prompt.Prompt) (*executor.Response, error) {
	req, err := e.convertRequest(ctx, p)

	if err != nil {
		return nil, err
	}

	completion, err := e.completions.New(ctx, *req)

	if err != nil {
		return nil, convertError(err)
	}

	return e.parseCompletion(completion, p), nil
}

func (e *Executor) convertRequest(ctx context.Context, p *prompt.Prompt) (*openai.ChatCompletionNewParams, error) {
	messages, err := e.convertMessages(ctx, p)

	if err != nil {
		return nil, err
	}

	req := &openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),

		Messages: messages,
	}

	if tools := convertTools(p.Tools()); len(tools) > 0 {
		req.Tools = tools

		if choice := convertToolChoice(p.ToolChoice()); choice != nil {
			req.ToolChoice = *choice
		}
	}

	if s := p.ResponseSchema(); s != nil {
		js := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   s.Name(),
			Schema: s.Parameters(),

			Strict: openai.Bool(true),
		}

		if s.Description() != "" {
			js.Description = openai.String(s.Description())
		}

		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: js,
			},
		}
	}

	return req, nil
}

func (e *Executor) convertMessages(ctx context.Context, p *prompt.Prompt) ([]openai.ChatCompletionMessageParamUnion, error) {
	var result []openai.ChatCompletionMessageParamUnion

	if p.System() != "" {
		result = append(result, openai.SystemMessage(p.System()))
	}

	for _, m := range p.Messages() {
		switch m.Role {
		case prompt.RoleUser:
			var parts []openai.ChatCompletionContentPartUnionParam

			for _, c := range m.Content {
				switch c.Kind() {
				case prompt.ContentKindText:
					parts = append(parts, openai.TextContentPart(c.Text))

				case prompt.ContentKindImage:
					url := c.Image.URL

					if url == "" {
						val, err := c.Image.DataURL(ctx, e.client)

						if err != nil {
							return nil, err
						}

						url = val
					}

					parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: url,
					}))

				case prompt.ContentKindToolResult:
					result = append(result, openai.ToolMessage(c.ToolResult.Data, c.ToolResult.ID))

				case prompt.ContentKindToolUse:
					return nil, errors.New("tool use blocks belong to assistant messages")
				}
			}

			if len(parts) > 0 {
				result = append(result, openai.UserMessage(parts))
			}

		case prompt.RoleAssistant:
			message := openai.ChatCompletionAssistantMessageParam{}

			for _, c := range m.Content {
				switch c.Kind() {
				case prompt.ContentKindText:
					message.Content.OfArrayOfContentParts = append(message.Content.OfArrayOfContentParts, openai.ChatCompletionAssistantMessageParamContentArrayOfContentPartUnion{
						OfText: &openai.ChatCompletionContentPartTextParam{
							Text: c.Text,
						},
					})

				case prompt.ContentKindToolUse:
					message.ToolCalls = append(message.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
							ID: c.ToolUse.ID,

							Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      c.ToolUse.Name,
								Arguments: c.ToolUse.Arguments,
							},
						},
					})

				case prompt.ContentKindToolResult:
					result = append(result, openai.ToolMessage(c.ToolResult.Data, c.ToolResult.ID))

				case prompt.ContentKindImage:
					return nil, errors.New("image blocks belong to user messages")
				}
			}

			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &message})
		}
	}

	return result, nil
}

func convertTools(tools []prompt.Tool) []openai.ChatCompletionToolUnionParam {
	var result []openai.ChatCompletionToolUnionParam

	for _, t := range tools {
		function := shared.FunctionDefinitionParam{
			Name: t.Name,
		}

		if t.Description != "" {
			function.Description = openai.String(t.Description)
		}

		if t.Parameters != nil {
			function.Parameters = shared.FunctionParameters(t.Parameters.Parameters())
		}

		result = append(result, openai.ChatCompletionFunctionTool(function))
	}

	return result
}

func convertToolChoice(choice prompt.ToolChoice) *openai.ChatCompletionToolChoiceOptionUnionParam {
	switch choice {
	case "":
		return nil

	case prompt.ToolChoiceAuto, prompt.ToolChoiceRequired, prompt.ToolChoiceNone:
		return &openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(string(choice)),
		}

	default:
		return &openai.ChatCompletionToolChoiceOptionUnionParam{
			OfFunctionToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{
					Name: string(choice),
				},
			},
		}
	}
}

func (e *Executor) parseCompletion(completion *openai.ChatCompletion, p *prompt.Prompt) *executor.Response {
	if len(completion.Choices) == 0 {
		return executor.NewResponse(nil,
			executor.WithUsage(toUsage(completion.Usage)),
			executor.WithStatus(&executor.Error{
				Kind:    executor.ErrorKindProvider,
				Message: "completion contains no choices",
			}))
	}

	choice := completion.Choices[0]

	message := prompt.Message{
		Role: prompt.RoleAssistant,
	}

	if choice.Message.Content != "" {
		message.Content = append(message.Content, prompt.TextContent(choice.Message.Content))
	}

	for _, c := range choice.Message.ToolCalls {
		message.Content = append(message.Content, prompt.ToolUseContent(prompt.ToolUse{
			ID: c.ID,

			Name:      c.Function.Name,
			Arguments: c.Function.Arguments,
		}))
	}

	options := []executor.ResponseOption{
		executor.WithUsage(toUsage(completion.Usage)),
	}

	if s := p.ResponseSchema(); s != nil {
		options = append(options, executor.WithSchema(s))
	}

	if status := toStatus(choice); status != nil {
		options = append(options, executor.WithStatus(status))
	}

	return executor.NewResponse([]prompt.Message{message}, options...)
}

func toUsage(usage openai.CompletionUsage) executor.Usage {
	return executor.Usage{
		InputTokens:  int(usage.PromptTokens),
		OutputTokens: int(usage.CompletionTokens),
		TotalTokens:  int(usage.TotalTokens),
	}
}

func toStatus(choice openai.ChatCompletionChoice) error {
	if choice.Message.Refusal != "" {
		return &executor.Error{
			Kind:    executor.ErrorKindContentFilter,
			Message: choice.Message.Refusal,
		}
	}

	switch choice.FinishReason {
	case "content_filter":
		return &executor.Error{
			Kind:    executor.ErrorKindContentFilter,
			Message: "output blocked by content filter",
		}

	case "length":
		return &executor.Error{
			Kind:    executor.ErrorKindTruncated,
			Message: "output truncated at token limit",
		}
	}

	return nil
}

func convertError(err error) error {
	var apierr *openai.Error

	if errors.As(err, &apierr) {
		return executor.NewError(apierr.StatusCode, "openai request failed", err)
	}

	return &executor.Error{
		Kind:    executor.ErrorKindNetwork,
		Message: "openai request failed",

		Retryable: true,

		Provider: err,
	}
}
