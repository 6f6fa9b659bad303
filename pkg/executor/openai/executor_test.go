package openai

import (
	"context"
	"testing"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/prompt"
	"github.com/adrianliechti/prompter/pkg/schema"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/require"
)

func weatherSchema(t *testing.T) *schema.Schema {
	t.Helper()

	s, err := schema.New("get_weather", &jsonschema.Schema{
		Type: "object",

		Properties: map[string]*jsonschema.Schema{
			"location": {Type: "string"},
		},

		Required: []string{"location"},
	})
	require.NoError(t, err)

	return s
}

func TestConvertRequest(t *testing.T) {
	e, err := New("gpt-4o", WithToken("test"))
	require.NoError(t, err)

	p := prompt.New("You are terse.",
		prompt.UserText("What is the weather in London?"),
	)

	p, err = p.WithTools(prompt.Tool{
		Name:        "get_weather",
		Description: "Get the current weather",

		Parameters: weatherSchema(t),
	})
	require.NoError(t, err)

	p = p.WithToolChoice(prompt.ToolChoiceAuto)

	req, err := e.convertRequest(t.Context(), p)
	require.NoError(t, err)

	require.Equal(t, "gpt-4o", string(req.Model))
	require.Len(t, req.Messages, 2)

	require.NotNil(t, req.Messages[0].OfSystem)
	require.NotNil(t, req.Messages[1].OfUser)

	require.Len(t, req.Tools, 1)
	require.Equal(t, "get_weather", req.Tools[0].OfFunction.Function.Name)
	require.Contains(t, req.Tools[0].OfFunction.Function.Parameters, "properties")

	require.Equal(t, "auto", req.ToolChoice.OfAuto.Value)
}

func TestConvertMessagesOrder(t *testing.T) {
	e, err := New("gpt-4o", WithToken("test"))
	require.NoError(t, err)

	img, err := prompt.ImageFromData("image/jpeg", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)

	p := prompt.New("",
		prompt.UserMessage(
			prompt.TextContent("What is in this image?"),
			prompt.ImageContent(img),
			prompt.TextContent("Answer briefly."),
		),
	)

	messages, err := e.convertMessages(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	parts := messages[0].OfUser.Content.OfArrayOfContentParts
	require.Len(t, parts, 3)

	require.Equal(t, "What is in this image?", parts[0].OfText.Text)
	require.Contains(t, parts[1].OfImageURL.ImageURL.URL, "data:image/jpeg;base64,")
	require.Equal(t, "Answer briefly.", parts[2].OfText.Text)
}

func TestConvertMessagesToolRoundTrip(t *testing.T) {
	e, err := New("gpt-4o", WithToken("test"))
	require.NoError(t, err)

	result, err := prompt.NewToolResult("call_1", `{"temp": 20}`)
	require.NoError(t, err)

	p := prompt.New("",
		prompt.UserText("Weather in London?"),
		prompt.AssistantMessage(prompt.ToolUseContent(prompt.ToolUse{
			ID: "call_1",

			Name:      "get_weather",
			Arguments: `{"location": "London"}`,
		})),
		prompt.ToolResultMessage(result),
	)

	messages, err := e.convertMessages(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, messages, 3)

	require.NotNil(t, messages[0].OfUser)

	assistant := messages[1].OfAssistant
	require.NotNil(t, assistant)
	require.Len(t, assistant.ToolCalls, 1)
	require.Equal(t, "call_1", assistant.ToolCalls[0].OfFunction.ID)
	require.Equal(t, "get_weather", assistant.ToolCalls[0].OfFunction.Function.Name)

	tool := messages[2].OfTool
	require.NotNil(t, tool)
	require.Equal(t, "call_1", tool.ToolCallID)
	require.Equal(t, `{"temp": 20}`, tool.Content.OfString.Value)
}

func TestConvertRequestResponseFormat(t *testing.T) {
	e, err := New("gpt-4o", WithToken("test"))
	require.NoError(t, err)

	p := prompt.New("", prompt.UserText("Generate a character."))
	p = p.WithResponseSchema(weatherSchema(t))

	req, err := e.convertRequest(context.Background(), p)
	require.NoError(t, err)

	format := req.ResponseFormat.OfJSONSchema
	require.NotNil(t, format)
	require.Equal(t, "get_weather", format.JSONSchema.Name)
	require.True(t, format.JSONSchema.Strict.Value)
}

func TestConvertToolChoice(t *testing.T) {
	require.Nil(t, convertToolChoice(""))

	choice := convertToolChoice(prompt.ToolChoiceRequired)
	require.Equal(t, "required", choice.OfAuto.Value)

	choice = convertToolChoice(prompt.ToolChoiceTool("get_weather"))
	require.Equal(t, "get_weather", choice.OfFunctionToolChoice.Function.Name)
}

func TestParseCompletion(t *testing.T) {
	e, err := New("gpt-4o", WithToken("test"))
	require.NoError(t, err)

	completion := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{
				FinishReason: "tool_calls",

				Message: openai.ChatCompletionMessage{
					ToolCalls: []openai.ChatCompletionMessageToolCallUnion{
						{
							ID: "call_1",

							Function: openai.ChatCompletionMessageFunctionToolCallFunction{
								Name:      "get_weather",
								Arguments: `{"location": "London"}`,
							},
						},
					},
				},
			},
		},

		Usage: openai.CompletionUsage{
			PromptTokens:     12,
			CompletionTokens: 8,
			TotalTokens:      20,
		},
	}

	response := e.parseCompletion(completion, prompt.New("", prompt.UserText("hi")))
	require.NoError(t, response.Err())

	call, err := response.ToolCall()
	require.NoError(t, err)
	require.Equal(t, "call_1", call.ID)
	require.Equal(t, "get_weather", call.Name)

	require.Equal(t, 20, response.Usage().TotalTokens)
}

func TestParseCompletionNoChoices(t *testing.T) {
	e, err := New("gpt-4o", WithToken("test"))
	require.NoError(t, err)

	response := e.parseCompletion(&openai.ChatCompletion{}, prompt.New("", prompt.UserText("hi")))

	var status *executor.Error
	require.ErrorAs(t, response.Err(), &status)
	require.Equal(t, executor.ErrorKindProvider, status.Kind)
	require.Empty(t, response.Text())
}

func TestParseCompletionStatus(t *testing.T) {
	e, err := New("gpt-4o", WithToken("test"))
	require.NoError(t, err)

	completion := &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{
				FinishReason: "length",

				Message: openai.ChatCompletionMessage{
					Content: "truncated ou",
				},
			},
		},
	}

	response := e.parseCompletion(completion, prompt.New("", prompt.UserText("hi")))

	var status *executor.Error
	require.ErrorAs(t, response.Err(), &status)
	require.Equal(t, executor.ErrorKindTruncated, status.Kind)
	require.Equal(t, "truncated ou", response.Text())
}
