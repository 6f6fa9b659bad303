package google

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/prompt"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

var _ executor.Executor = (*Executor)(nil)

type Executor struct {
	*Config
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
	}, nil
}

func (e *Executor) Execute(ctx context.Context, p *prompt.Prompt) (*executor.Response, error) {
	client, err := e.newClient(ctx)

	if err != nil {
		return nil, err
	}

	contents, err := e.convertContents(ctx, p)

	if err != nil {
		return nil, err
	}

	config := e.convertConfig(p)

	resp, err := client.Models.GenerateContent(ctx, e.model, contents, config)

	if err != nil {
		return nil, convertError(err)
	}

	return parseResponse(resp, p), nil
}

func (e *Executor) convertConfig(p *prompt.Prompt) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if p.System() != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: p.System()},
			},
		}
	}

	if tools := p.Tools(); len(tools) > 0 {
		tool := &genai.Tool{}

		for _, t := range tools {
			declaration := &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
			}

			if t.Parameters != nil {
				declaration.ParametersJsonSchema = t.Parameters.Parameters()
			}

			tool.FunctionDeclarations = append(tool.FunctionDeclarations, declaration)
		}

		config.Tools = []*genai.Tool{tool}

		if val := convertToolChoice(p.ToolChoice()); val != nil {
			config.ToolConfig = val
		}
	}

	if s := p.ResponseSchema(); s != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseJsonSchema = s.Parameters()
	}

	return config
}

func convertToolChoice(choice prompt.ToolChoice) *genai.ToolConfig {
	switch choice {
	case "":
		return nil

	case prompt.ToolChoiceAuto:
		return &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAuto,
			},
		}

	case prompt.ToolChoiceRequired:
		return &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAny,
			},
		}

	case prompt.ToolChoiceNone:
		return &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeNone,
			},
		}

	default:
		return &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAny,

				AllowedFunctionNames: []string{string(choice)},
			},
		}
	}
}

func (e *Executor) convertContents(ctx context.Context, p *prompt.Prompt) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, m := range p.Messages() {
		content := &genai.Content{
			Role: genai.RoleUser,
		}

		if m.Role == prompt.RoleAssistant {
			content.Role = genai.RoleModel
		}

		for _, c := range m.Content {
			switch c.Kind() {
			case prompt.ContentKindText:
				content.Parts = append(content.Parts, &genai.Part{Text: c.Text})

			case prompt.ContentKindImage:
				data, mediaType, err := c.Image.Resolve(ctx, e.client)

				if err != nil {
					return nil, err
				}

				content.Parts = append(content.Parts, &genai.Part{
					InlineData: &genai.Blob{
						MIMEType: mediaType,
						Data:     data,
					},
				})

			case prompt.ContentKindToolUse:
				var args map[string]any

				if err := json.Unmarshal([]byte(c.ToolUse.Arguments), &args); err != nil || args == nil {
					args = map[string]any{}
				}

				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID: c.ToolUse.ID,

						Name: c.ToolUse.Name,
						Args: args,
					},
				})

			case prompt.ContentKindToolResult:
				var data any

				if err := json.Unmarshal([]byte(c.ToolResult.Data), &data); err != nil {
					data = c.ToolResult.Data
				}

				response, ok := data.(map[string]any)

				if !ok {
					response = map[string]any{"result": c.ToolResult.Data}
				}

				if c.ToolResult.IsError {
					response = map[string]any{"error": c.ToolResult.Data}
				}

				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						ID: c.ToolResult.ID,

						Name:     callName(p, c.ToolResult.ID),
						Response: response,
					},
				})
			}
		}

		result = append(result, content)
	}

	return result, nil
}

// callName recovers the function name behind a correlation id from the
// originating tool use earlier in the conversation.
func callName(p *prompt.Prompt, id string) string {
	for _, m := range p.Messages() {
		for _, c := range m.Content {
			if c.ToolUse != nil && c.ToolUse.ID == id {
				return c.ToolUse.Name
			}
		}
	}

	return id
}

func parseResponse(resp *genai.GenerateContentResponse, p *prompt.Prompt) *executor.Response {
	message := prompt.Message{
		Role: prompt.RoleAssistant,
	}

	var status error

	if len(resp.Candidates) > 0 {
		candidate := resp.Candidates[0]

		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					message.Content = append(message.Content, prompt.TextContent(part.Text))
				}

				if part.FunctionCall != nil {
					id := part.FunctionCall.ID

					// The API may omit call ids; synthesize one that stays
					// stable for the lifetime of this response.
					if id == "" {
						id = uuid.NewString()
					}

					args, _ := json.Marshal(part.FunctionCall.Args)

					message.Content = append(message.Content, prompt.ToolUseContent(prompt.ToolUse{
						ID: id,

						Name:      part.FunctionCall.Name,
						Arguments: string(args),
					}))
				}
			}
		}

		status = toStatus(candidate.FinishReason)
	}

	options := []executor.ResponseOption{
		executor.WithUsage(toUsage(resp.UsageMetadata)),
	}

	if s := p.ResponseSchema(); s != nil {
		options = append(options, executor.WithSchema(s))
	}

	if status != nil {
		options = append(options, executor.WithStatus(status))
	}

	return executor.NewResponse([]prompt.Message{message}, options...)
}

func toStatus(reason genai.FinishReason) error {
	switch reason {
	case genai.FinishReasonMaxTokens:
		return &executor.Error{
			Kind:    executor.ErrorKindTruncated,
			Message: "output truncated at token limit",
		}

	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
		return &executor.Error{
			Kind:    executor.ErrorKindContentFilter,
			Message: "output blocked by safety filter",
		}
	}

	return nil
}

func toUsage(metadata *genai.GenerateContentResponseUsageMetadata) executor.Usage {
	if metadata == nil {
		return executor.Usage{}
	}

	return executor.Usage{
		InputTokens:  int(metadata.PromptTokenCount),
		OutputTokens: int(metadata.CandidatesTokenCount),
		TotalTokens:  int(metadata.TotalTokenCount),
	}
}

func convertError(err error) error {
	var apierr genai.APIError

	if errors.As(err, &apierr) {
		return executor.NewError(apierr.Code, "gemini request failed", err)
	}

	return &executor.Error{
		Kind:    executor.ErrorKindNetwork,
		Message: "gemini request failed",

		Retryable: true,

		Provider: err,
	}
}
