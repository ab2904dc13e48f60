// Package openai provides a model.Client implementation backed by the
// OpenAI Chat Completions API using github.com/openai/openai-go, the
// official Stainless-generated SDK already present in the dependency
// graph. Its option/params shape mirrors github.com/anthropics/anthropic-sdk-go,
// so this adapter follows the same New/NewFromAPIKey/Complete structure as
// ../anthropic.
package openai

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/model"
)

type (
	// ChatClient captures the subset of the OpenAI SDK used by the adapter,
	// satisfied by the client's Chat.Completions service.
	ChatClient interface {
		New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
	}

	// Options configures the OpenAI adapter.
	Options struct {
		// DefaultModel is used when model.Request.Model is empty.
		DefaultModel string
		// MaxTokens sets the default completion cap when a request does not
		// specify MaxTokens.
		MaxTokens int
		// Temperature is used when a request does not specify Temperature.
		Temperature float64
	}

	// Client implements model.Client via the OpenAI Chat Completions API.
	Client struct {
		chat   ChatClient
		model  string
		maxTok int
		temp   float64
	}
)

// New builds an OpenAI-backed model client from the provided chat
// completions client and options.
func New(chat ChatClient, opts Options) (*Client, error) {
	if chat == nil {
		return nil, errors.New("openai client is required")
	}
	modelID := strings.TrimSpace(opts.DefaultModel)
	if modelID == "" {
		return nil, errors.New("default model is required")
	}
	return &Client{chat: chat, model: modelID, maxTok: opts.MaxTokens, temp: opts.Temperature}, nil
}

// NewFromAPIKey constructs a client using the default openai-go HTTP client.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("api key is required")
	}
	oc := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&oc.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete renders a chat completion using the configured OpenAI client.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errs.New(errs.Validation, "openai: messages are required")
	}
	modelID := strings.TrimSpace(req.Model)
	if modelID == "" {
		modelID = c.model
	}
	messages, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	params := sdk.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
		Tools:    encodeTools(req.Tools),
	}
	if maxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(maxTokens))
	}
	temp := float64(req.Temperature)
	if temp == 0 {
		temp = c.temp
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	resp, err := c.chat.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}
	return translateResponse(resp), nil
}

// Stream reports that this adapter does not implement streaming; the
// workflow core only ever calls Complete.
func (c *Client) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func encodeMessages(msgs []model.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		text := textOf(m.Parts)
		switch m.Role {
		case model.RoleSystem:
			out = append(out, sdk.SystemMessage(text))
		case model.RoleUser:
			out = append(out, sdk.UserMessage(text))
		case model.RoleAssistant:
			out = append(out, sdk.AssistantMessage(text))
		default:
			return nil, errs.Newf(errs.Validation, "openai: unsupported message role %q", m.Role)
		}
	}
	return out, nil
}

func textOf(parts []model.Part) string {
	var b strings.Builder
	for _, p := range parts {
		if tp, ok := p.(model.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

func encodeTools(defs []model.ToolDefinition) []sdk.ChatCompletionToolParam {
	if len(defs) == 0 {
		return nil
	}
	out := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, sdk.ChatCompletionToolParam{
			Function: sdk.FunctionDefinitionParam{
				Name:        d.Name,
				Description: sdk.String(d.Description),
			},
		})
	}
	return out
}

func translateResponse(resp *sdk.ChatCompletion) *model.Response {
	out := &model.Response{
		Usage: model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.Content = choice.Message.Content
	out.StopReason = string(choice.FinishReason)
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:      call.ID,
			Name:    call.Function.Name,
			Payload: []byte(call.Function.Arguments),
		})
	}
	return out
}

func classifyError(err error) error {
	return errs.NewProviderError("openai", "chat.completions.new", errs.ProviderUnknown, "", err.Error(), "", err)
}
