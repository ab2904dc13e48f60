// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API. It translates workflow AgentNode requests
// into sdk.Message calls using github.com/anthropics/anthropic-sdk-go and
// maps the response (text, tool use, usage) back into model.Response.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/model"
)

type (
	// MessagesClient captures the subset of the Anthropic SDK used by the
	// adapter, satisfied by *sdk.MessageService so tests can supply a mock.
	MessagesClient interface {
		New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	}

	// Options configures optional Anthropic adapter behavior.
	Options struct {
		// DefaultModel is the Claude model identifier used when
		// model.Request.Model is empty.
		DefaultModel string
		// MaxTokens sets the default completion cap when a request does not
		// specify MaxTokens.
		MaxTokens int
		// Temperature is used when a request does not specify Temperature.
		Temperature float64
	}

	// Client implements model.Client on top of Anthropic Claude Messages.
	Client struct {
		msg          MessagesClient
		defaultModel string
		maxTok       int
		temp         float64
	}
)

// New builds an Anthropic-backed model client from the provided Messages
// client and configuration options.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client,
// reading ANTHROPIC_API_KEY and related defaults from the environment.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming Messages.New request and translates the
// response into a model.Response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	params, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.msg.New(ctx, *params)
	if err != nil {
		return nil, classifyError(err)
	}
	return translateResponse(msg), nil
}

// Stream is not implemented: the workflow core treats streaming as a
// node-local concern and never calls it from the scheduler.
func (c *Client) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func (c *Client) prepareRequest(req *model.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errs.New(errs.Validation, "anthropic: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	msgs, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	if maxTokens <= 0 {
		return nil, errs.New(errs.Validation, "anthropic: max_tokens must be positive")
	}
	params := &sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
		Model:     sdk.Model(modelID),
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	temp := float64(req.Temperature)
	if temp == 0 {
		temp = c.temp
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	return params, nil
}

func encodeMessages(msgs []model.Message) ([]sdk.MessageParam, string, error) {
	var system strings.Builder
	var out []sdk.MessageParam
	for _, m := range msgs {
		if m.Role == model.RoleSystem {
			for _, p := range m.Parts {
				if tp, ok := p.(model.TextPart); ok {
					system.WriteString(tp.Text)
				}
			}
			continue
		}
		blocks, err := encodeParts(m.Parts)
		if err != nil {
			return nil, "", err
		}
		switch m.Role {
		case model.RoleUser:
			out = append(out, sdk.NewUserMessage(blocks...))
		case model.RoleAssistant:
			out = append(out, sdk.NewAssistantMessage(blocks...))
		default:
			return nil, "", errs.Newf(errs.Validation, "anthropic: unsupported message role %q", m.Role)
		}
	}
	return out, system.String(), nil
}

func encodeParts(parts []model.Part) ([]sdk.ContentBlockParamUnion, error) {
	blocks := make([]sdk.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case model.TextPart:
			blocks = append(blocks, sdk.NewTextBlock(v.Text))
		case model.ToolUsePart:
			blocks = append(blocks, sdk.NewToolUseBlock(v.ID, v.Input, v.Name))
		case model.ToolResultPart:
			content, err := json.Marshal(v.Content)
			if err != nil {
				return nil, errs.Wrap(errs.Validation, "anthropic: encode tool result content", err)
			}
			blocks = append(blocks, sdk.NewToolResultBlock(v.ToolUseID, string(content), v.IsError))
		default:
			return nil, errs.Newf(errs.Validation, "anthropic: unsupported part %T", p)
		}
	}
	return blocks, nil
}

func encodeTools(defs []model.ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, sdk.ToolUnionParamOfTool(sdk.ToolInputSchemaParam{}, d.Name))
	}
	return out
}

func translateResponse(msg *sdk.Message) *model.Response {
	resp := &model.Response{
		Usage: model.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
		StopReason: string(msg.StopReason),
	}
	var text strings.Builder
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				ID:      block.ID,
				Name:    block.Name,
				Payload: block.Input,
			})
		}
	}
	resp.Content = text.String()
	return resp
}

func classifyError(err error) error {
	if errors.Is(err, model.ErrRateLimited) {
		return errs.NewProviderError("anthropic", "messages.new", errs.ProviderRateLimited, "", err.Error(), "", err)
	}
	return errs.NewProviderError("anthropic", "messages.new", errs.ProviderUnknown, "", err.Error(), "", err)
}
