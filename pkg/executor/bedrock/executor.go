package bedrock

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/prompt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/google/uuid"
)

var _ executor.Executor = (*Executor)(nil)

type Executor struct {
	*Config

	client *bedrockruntime.Client
}

func New(model string, options ...Option) (*Executor, error) {
	cfg := &Config{
		model: model,
	}

	for _, option := range options {
		option(cfg)
	}

	aws, err := config.LoadDefaultConfig(context.Background())

	if err != nil {
		return nil, err
	}

	if cfg.client != nil {
		aws.HTTPClient = cfg.client
	}

	return &Executor{
		Config: cfg,

		client: bedrockruntime.NewFromConfig(aws),
	}, nil
}

func (e *Executor) Execute(ctx context.Context, p *prompt.Prompt) (*executor.Response, error) {
	req, err := e.convertConverseInput(ctx, p)

	if err != nil {
		return nil, err
	}

	resp, err := e.client.Converse(ctx, req)

	if err != nil {
		return nil, convertError(err)
	}

	return parseConverseOutput(resp, p), nil
}

func (e *Executor) convertConverseInput(ctx context.Context, p *prompt.Prompt) (*bedrockruntime.ConverseInput, error) {
	messages, err := e.convertMessages(ctx, p.Messages())

	if err != nil {
		return nil, err
	}

	req := &bedrockruntime.ConverseInput{
		ModelId: aws.String(e.model),

		Messages: messages,
	}

	if p.System() != "" {
		req.System = []types.SystemContentBlock{
			&types.SystemContentBlockMemberText{
				Value: p.System(),
			},
		}
	}

	// Converse has no "none" choice; honoring the policy means sending no
	// tool configuration at all.
	if tools := p.Tools(); len(tools) > 0 && p.ToolChoice() != prompt.ToolChoiceNone {
		req.ToolConfig = convertToolConfig(tools, p.ToolChoice())
	}

	return req, nil
}

func (e *Executor) convertMessages(ctx context.Context, input []prompt.Message) ([]types.Message, error) {
	var result []types.Message

	for _, m := range input {
		message := types.Message{
			Role: types.ConversationRoleUser,
		}

		if m.Role == prompt.RoleAssistant {
			message.Role = types.ConversationRoleAssistant
		}

		for _, c := range m.Content {
			switch c.Kind() {
			case prompt.ContentKindText:
				message.Content = append(message.Content, &types.ContentBlockMemberText{
					Value: c.Text,
				})

			case prompt.ContentKindImage:
				block, err := e.convertImage(ctx, c.Image)

				if err != nil {
					return nil, err
				}

				message.Content = append(message.Content, block)

			case prompt.ContentKindToolUse:
				var input map[string]any

				if err := json.Unmarshal([]byte(c.ToolUse.Arguments), &input); err != nil || input == nil {
					input = map[string]any{}
				}

				message.Content = append(message.Content, &types.ContentBlockMemberToolUse{
					Value: types.ToolUseBlock{
						ToolUseId: aws.String(c.ToolUse.ID),
						Name:      aws.String(c.ToolUse.Name),

						Input: document.NewLazyDocument(input),
					},
				})

			case prompt.ContentKindToolResult:
				var data any

				if err := json.Unmarshal([]byte(c.ToolResult.Data), &data); err != nil {
					data = c.ToolResult.Data
				}

				if _, ok := data.(map[string]any); !ok {
					data = map[string]any{
						"result": data,
					}
				}

				block := types.ToolResultBlock{
					ToolUseId: aws.String(c.ToolResult.ID),

					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberJson{
							Value: document.NewLazyDocument(data),
						},
					},
				}

				if c.ToolResult.IsError {
					block.Status = types.ToolResultStatusError
				}

				message.Content = append(message.Content, &types.ContentBlockMemberToolResult{
					Value: block,
				})
			}
		}

		result = append(result, message)
	}

	return result, nil
}

func (e *Executor) convertImage(ctx context.Context, img *prompt.Image) (types.ContentBlock, error) {
	data, mediaType, err := img.Resolve(ctx, e.Config.client)

	if err != nil {
		return nil, err
	}

	format, ok := convertImageFormat(mediaType)

	if !ok {
		return nil, errors.New("unsupported media type " + mediaType)
	}

	return &types.ContentBlockMemberImage{
		Value: types.ImageBlock{
			Format: format,

			Source: &types.ImageSourceMemberBytes{
				Value: data,
			},
		},
	}, nil
}

func convertImageFormat(mime string) (types.ImageFormat, bool) {
	switch mime {
	case "image/png":
		return types.ImageFormatPng, true

	case "image/jpeg":
		return types.ImageFormatJpeg, true

	case "image/gif":
		return types.ImageFormatGif, true

	case "image/webp":
		return types.ImageFormatWebp, true
	}

	return "", false
}

func convertToolConfig(tools []prompt.Tool, choice prompt.ToolChoice) *types.ToolConfiguration {
	result := &types.ToolConfiguration{}

	for _, t := range tools {
		tool := types.ToolSpecification{
			Name: aws.String(t.Name),
		}

		if t.Description != "" {
			tool.Description = aws.String(t.Description)
		}

		if t.Parameters != nil {
			tool.InputSchema = &types.ToolInputSchemaMemberJson{
				Value: document.NewLazyDocument(t.Parameters.Parameters()),
			}
		}

		result.Tools = append(result.Tools, &types.ToolMemberToolSpec{Value: tool})
	}

	switch choice {
	case "", prompt.ToolChoiceAuto:

	case prompt.ToolChoiceRequired:
		result.ToolChoice = &types.ToolChoiceMemberAny{
			Value: types.AnyToolChoice{},
		}

	default:
		result.ToolChoice = &types.ToolChoiceMemberTool{
			Value: types.SpecificToolChoice{
				Name: aws.String(string(choice)),
			},
		}
	}

	return result
}

func parseConverseOutput(resp *bedrockruntime.ConverseOutput, p *prompt.Prompt) *executor.Response {
	message := prompt.Message{
		Role: prompt.RoleAssistant,
	}

	if output, ok := resp.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range output.Value.Content {
			switch block := block.(type) {
			case *types.ContentBlockMemberText:
				message.Content = append(message.Content, prompt.TextContent(block.Value))

			case *types.ContentBlockMemberToolUse:
				id := aws.ToString(block.Value.ToolUseId)

				if id == "" {
					id = uuid.NewString()
				}

				var arguments string

				if data, err := block.Value.Input.MarshalSmithyDocument(); err == nil {
					arguments = string(data)
				}

				message.Content = append(message.Content, prompt.ToolUseContent(prompt.ToolUse{
					ID: id,

					Name:      aws.ToString(block.Value.Name),
					Arguments: arguments,
				}))
			}
		}
	}

	options := []executor.ResponseOption{
		executor.WithUsage(toUsage(resp.Usage)),
	}

	if s := p.ResponseSchema(); s != nil {
		options = append(options, executor.WithSchema(s))
	}

	if status := toStatus(resp.StopReason); status != nil {
		options = append(options, executor.WithStatus(status))
	}

	return executor.NewResponse([]prompt.Message{message}, options...)
}

func toUsage(usage *types.TokenUsage) executor.Usage {
	if usage == nil {
		return executor.Usage{}
	}

	return executor.Usage{
		InputTokens:  int(aws.ToInt32(usage.InputTokens)),
		OutputTokens: int(aws.ToInt32(usage.OutputTokens)),
		TotalTokens:  int(aws.ToInt32(usage.TotalTokens)),
	}
}

func toStatus(reason types.StopReason) error {
	switch reason {
	case types.StopReasonMaxTokens:
		return &executor.Error{
			Kind:    executor.ErrorKindTruncated,
			Message: "output truncated at token limit",
		}

	case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
		return &executor.Error{
			Kind:    executor.ErrorKindContentFilter,
			Message: "output blocked by content filter",
		}
	}

	return nil
}

func convertError(err error) error {
	var throttled *types.ThrottlingException

	if errors.As(err, &throttled) {
		return executor.NewError(429, "bedrock request throttled", err)
	}

	var invalid *types.ValidationException

	if errors.As(err, &invalid) {
		return executor.NewError(400, "bedrock request invalid", err)
	}

	return &executor.Error{
		Kind:    executor.ErrorKindProvider,
		Message: "bedrock request failed",

		Retryable: true,

		Provider: err,
	}
}
