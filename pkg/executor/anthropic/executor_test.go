package anthropic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/prompt"
	"github.com/adrianliechti/prompter/pkg/schema"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/jsonschema-go/jsonschema"
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
	e, err := New("claude-sonnet-4-5", WithToken("test"), WithMaxTokens(2048))
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

	p = p.WithToolChoice(prompt.ToolChoiceRequired)

	req, err := e.convertRequest(t.Context(), p)
	require.NoError(t, err)

	require.Equal(t, "claude-sonnet-4-5", string(req.Model))
	require.EqualValues(t, 2048, req.MaxTokens)

	require.Len(t, req.System, 1)
	require.Equal(t, "You are terse.", req.System[0].Text)

	require.Len(t, req.Messages, 1)
	require.Equal(t, anthropic.MessageParamRoleUser, req.Messages[0].Role)

	require.Len(t, req.Tools, 1)
	require.Equal(t, "get_weather", req.Tools[0].OfTool.Name)
	require.Contains(t, req.Tools[0].OfTool.InputSchema.Properties, "location")

	require.NotNil(t, req.ToolChoice.OfAny)
}

func TestConvertRequestResponseSchema(t *testing.T) {
	e, err := New("claude-sonnet-4-5", WithToken("test"))
	require.NoError(t, err)

	p := prompt.New("", prompt.UserText("Generate weather data."))
	p = p.WithResponseSchema(weatherSchema(t))

	req, err := e.convertRequest(context.Background(), p)
	require.NoError(t, err)

	require.Len(t, req.System, 1)
	require.Contains(t, req.System[0].Text, "JSON schema")
	require.Contains(t, req.System[0].Text, "location")
}

func TestConvertMessagesToolRoundTrip(t *testing.T) {
	e, err := New("claude-sonnet-4-5", WithToken("test"))
	require.NoError(t, err)

	result, err := prompt.NewToolResult("toolu_1", `{"temp": 20}`)
	require.NoError(t, err)

	messages, err := e.convertMessages(context.Background(), []prompt.Message{
		prompt.AssistantMessage(prompt.ToolUseContent(prompt.ToolUse{
			ID: "toolu_1",

			Name:      "get_weather",
			Arguments: `{"location": "London"}`,
		})),
		prompt.ToolResultMessage(result),
	})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	use := messages[0].Content[0].OfToolUse
	require.NotNil(t, use)
	require.Equal(t, "toolu_1", use.ID)
	require.Equal(t, map[string]any{"location": "London"}, use.Input)

	res := messages[1].Content[0].OfToolResult
	require.NotNil(t, res)
	require.Equal(t, "toolu_1", res.ToolUseID)
	require.Equal(t, `{"temp": 20}`, res.Content[0].OfText.Text)
}

func TestConvertMessagesErrorResult(t *testing.T) {
	e, err := New("claude-sonnet-4-5", WithToken("test"))
	require.NoError(t, err)

	result, err := prompt.NewToolError("toolu_1", "city not found")
	require.NoError(t, err)

	messages, err := e.convertMessages(context.Background(), []prompt.Message{
		prompt.ToolResultMessage(result),
	})
	require.NoError(t, err)

	block := messages[0].Content[0].OfToolResult
	require.True(t, block.IsError.Value)
	require.Equal(t, "city not found", block.Content[0].OfText.Text)
}

func TestConvertImage(t *testing.T) {
	e, err := New("claude-sonnet-4-5", WithToken("test"))
	require.NoError(t, err)

	img, err := prompt.ImageFromData("image/jpeg", []byte{0xff, 0xd8, 0xff})
	require.NoError(t, err)

	block, err := e.convertImage(t.Context(), img)
	require.NoError(t, err)

	require.NotNil(t, block.OfImage)
	require.Equal(t, "image/jpeg", string(block.OfImage.Source.OfBase64.MediaType))
	require.Equal(t, "/9j/", block.OfImage.Source.OfBase64.Data)

	tiff, err := prompt.ImageFromData("image/tiff", []byte{0x49, 0x49})
	require.NoError(t, err)

	_, err = e.convertImage(t.Context(), tiff)
	require.Error(t, err)
}

func TestMergeMessages(t *testing.T) {
	merged := mergeMessages([]anthropic.MessageParam{
		{Role: anthropic.MessageParamRoleUser, Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock("a")}},
		{Role: anthropic.MessageParamRoleUser, Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock("b")}},
		{Role: anthropic.MessageParamRoleAssistant, Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock("c")}},
		{Role: anthropic.MessageParamRoleUser, Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock("d")}},
	})

	require.Len(t, merged, 3)
	require.Len(t, merged[0].Content, 2)
	require.Equal(t, anthropic.MessageParamRoleAssistant, merged[1].Role)
}

func TestConvertToolChoice(t *testing.T) {
	require.Nil(t, convertToolChoice(""))

	require.NotNil(t, convertToolChoice(prompt.ToolChoiceAuto).OfAuto)
	require.NotNil(t, convertToolChoice(prompt.ToolChoiceRequired).OfAny)
	require.NotNil(t, convertToolChoice(prompt.ToolChoiceNone).OfNone)

	named := convertToolChoice(prompt.ToolChoiceTool("get_weather"))
	require.Equal(t, "get_weather", named.OfTool.Name)
}

func TestParseMessage(t *testing.T) {
	message := &anthropic.Message{
		StopReason: anthropic.StopReasonToolUse,

		Content: []anthropic.ContentBlockUnion{
			{
				Type: "text",
				Text: "Let me check the weather.",
			},
			{
				Type: "tool_use",

				ID:    "toolu_1",
				Name:  "get_weather",
				Input: json.RawMessage(`{"location": "London"}`),
			},
		},

		Usage: anthropic.Usage{
			InputTokens:  12,
			OutputTokens: 8,
		},
	}

	response := parseMessage(message, prompt.New("", prompt.UserText("hi")))
	require.NoError(t, response.Err())

	require.Equal(t, "Let me check the weather.", response.Text())

	call, err := response.ToolCall()
	require.NoError(t, err)
	require.Equal(t, "toolu_1", call.ID)
	require.Equal(t, `{"location": "London"}`, call.Arguments)

	require.Equal(t, 20, response.Usage().TotalTokens)
}

func TestParseMessageEmptyInput(t *testing.T) {
	message := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{
				Type: "tool_use",

				ID:   "toolu_1",
				Name: "ping",
			},
		},
	}

	response := parseMessage(message, prompt.New("", prompt.UserText("hi")))

	call, err := response.ToolCall()
	require.NoError(t, err)
	require.Equal(t, "{}", call.Arguments)
}

func TestParseMessageStatus(t *testing.T) {
	message := &anthropic.Message{
		StopReason: anthropic.StopReasonMaxTokens,

		Content: []anthropic.ContentBlockUnion{
			{
				Type: "text",
				Text: "truncated ou",
			},
		},
	}

	response := parseMessage(message, prompt.New("", prompt.UserText("hi")))

	var status *executor.Error
	require.ErrorAs(t, response.Err(), &status)
	require.Equal(t, executor.ErrorKindTruncated, status.Kind)
}
