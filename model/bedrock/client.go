// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Converse API. It mirrors the shape of its richer production
// counterpart: split system vs. conversational messages, encode tool
// definitions into Bedrock's ToolConfiguration, and translate Converse
// responses (text + tool_use blocks) back into model.Response, trimmed of
// streaming, thinking budgets, prompt-cache checkpoints, and ledger
// rehydration, which belong to a fuller conversational agent runtime rather
// than this workflow core.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client
// required by the adapter, satisfied by *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the Bedrock client adapter.
type Options struct {
	// DefaultModel is the default Bedrock model identifier.
	DefaultModel string
	// MaxTokens sets the default completion cap when a request does not
	// specify MaxTokens.
	MaxTokens int
	// Temperature is used when a request does not specify Temperature.
	Temperature float32
}

// Client implements model.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	maxTok       int
	temp         float32
}

// New initializes a Bedrock-backed model client from a runtime client and
// configuration options.
func New(runtime RuntimeClient, opts Options) (*Client, error) {
	if runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{
		runtime:      runtime,
		defaultModel: opts.DefaultModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// Complete issues a Converse request and translates the response into a
// model.Response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	input, err := c.prepareInput(req)
	if err != nil {
		return nil, err
	}
	output, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return nil, classifyError(err)
	}
	return translateResponse(output)
}

// Stream is not implemented: the workflow core treats streaming as a
// node-local concern and never calls it from the scheduler.
func (c *Client) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func (c *Client) prepareInput(req *model.Request) (*bedrockruntime.ConverseInput, error) {
	if len(req.Messages) == 0 {
		return nil, errs.New(errs.Validation, "bedrock: messages are required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}
	messages, system, err := encodeMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
	}
	if len(system) > 0 {
		input.System = system
	}
	if toolConfig := encodeTools(req.Tools); toolConfig != nil {
		input.ToolConfig = toolConfig
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temp
	}
	if maxTokens > 0 || temp > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			cfg.MaxTokens = aws.Int32(int32(maxTokens))
		}
		if temp > 0 {
			cfg.Temperature = aws.Float32(temp)
		}
		input.InferenceConfig = cfg
	}
	return input, nil
}

func encodeMessages(msgs []model.Message) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var system []brtypes.SystemContentBlock
	var out []brtypes.Message
	for _, m := range msgs {
		if m.Role == model.RoleSystem {
			for _, p := range m.Parts {
				if tp, ok := p.(model.TextPart); ok {
					system = append(system, &brtypes.SystemContentBlockMemberText{Value: tp.Text})
				}
			}
			continue
		}
		blocks, err := encodeParts(m.Parts)
		if err != nil {
			return nil, nil, err
		}
		role := brtypes.ConversationRoleUser
		if m.Role == model.RoleAssistant {
			role = brtypes.ConversationRoleAssistant
		}
		out = append(out, brtypes.Message{Role: role, Content: blocks})
	}
	return out, system, nil
}

func encodeParts(parts []model.Part) ([]brtypes.ContentBlock, error) {
	blocks := make([]brtypes.ContentBlock, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case model.TextPart:
			blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: v.Text})
		case model.ToolUsePart:
			input, err := json.Marshal(v.Input)
			if err != nil {
				return nil, errs.Wrap(errs.Validation, "bedrock: encode tool use input", err)
			}
			blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{Value: brtypes.ToolUseBlock{
				ToolUseId: aws.String(v.ID),
				Name:      aws.String(v.Name),
				Input:     document.NewLazyDocument(json.RawMessage(input)),
			}})
		case model.ToolResultPart:
			content, err := json.Marshal(v.Content)
			if err != nil {
				return nil, errs.Wrap(errs.Validation, "bedrock: encode tool result content", err)
			}
			status := brtypes.ToolResultStatusSuccess
			if v.IsError {
				status = brtypes.ToolResultStatusError
			}
			blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{Value: brtypes.ToolResultBlock{
				ToolUseId: aws.String(v.ToolUseID),
				Status:    status,
				Content: []brtypes.ToolResultContentBlock{
					&brtypes.ToolResultContentBlockMemberText{Value: string(content)},
				},
			}})
		default:
			return nil, errs.Newf(errs.Validation, "bedrock: unsupported part %T", p)
		}
	}
	return blocks, nil
}

func encodeTools(defs []model.ToolDefinition) *brtypes.ToolConfiguration {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, &brtypes.ToolMemberToolSpec{Value: brtypes.ToolSpecification{
			Name:        aws.String(d.Name),
			Description: aws.String(d.Description),
			InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(d.InputSchema)},
		}})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

func translateResponse(output *bedrockruntime.ConverseOutput) (*model.Response, error) {
	if output == nil {
		return nil, errs.New(errs.Protocol, "bedrock: response is nil")
	}
	resp := &model.Response{}
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if ok {
		for _, block := range msg.Value.Content {
			switch v := block.(type) {
			case *brtypes.ContentBlockMemberText:
				resp.Content += v.Value
			case *brtypes.ContentBlockMemberToolUse:
				payload := decodeDocument(v.Value.Input)
				id := ""
				if v.Value.ToolUseId != nil {
					id = *v.Value.ToolUseId
				}
				name := ""
				if v.Value.Name != nil {
					name = *v.Value.Name
				}
				resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{ID: id, Name: name, Payload: payload})
			}
		}
	}
	if usage := output.Usage; usage != nil {
		resp.Usage = model.TokenUsage{
			PromptTokens:     int(ptrValue(usage.InputTokens)),
			CompletionTokens: int(ptrValue(usage.OutputTokens)),
		}
	}
	resp.StopReason = string(output.StopReason)
	return resp, nil
}

func decodeDocument(doc document.Interface) json.RawMessage {
	if doc == nil {
		return nil
	}
	var raw json.RawMessage
	if err := doc.UnmarshalSmithyDocument(&raw); err != nil {
		return nil
	}
	return raw
}

func ptrValue(v *int32) int32 {
	if v == nil {
		return 0
	}
	return *v
}

func classifyError(err error) error {
	if errors.Is(err, model.ErrRateLimited) {
		return errs.NewProviderError("bedrock", "converse", errs.ProviderRateLimited, "", err.Error(), "", err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return errs.NewProviderError("bedrock", "converse", errs.ProviderRateLimited, apiErr.ErrorCode(), apiErr.ErrorMessage(), "", errors.Join(model.ErrRateLimited, err))
		case "ValidationException":
			return errs.NewProviderError("bedrock", "converse", errs.ProviderInvalidRequest, apiErr.ErrorCode(), apiErr.ErrorMessage(), "", err)
		case "AccessDeniedException":
			return errs.NewProviderError("bedrock", "converse", errs.ProviderAuth, apiErr.ErrorCode(), apiErr.ErrorMessage(), "", err)
		}
		return errs.NewProviderError("bedrock", "converse", errs.ProviderUnavailable, apiErr.ErrorCode(), apiErr.ErrorMessage(), "", err)
	}
	return errs.NewProviderError("bedrock", "converse", errs.ProviderUnknown, "", err.Error(), "", err)
}
