// Package model defines the provider-agnostic request/response types AgentNode
// uses to call an AI provider. It is trimmed from a richer provider-agnostic
// message model down to what a single-turn agent node needs: text content,
// tool-use declarations, and tool results, dropping document/citation/
// thinking-budget machinery that belongs to a fuller conversational agent
// framework rather than this workflow core.
package model

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrStreamingUnsupported indicates the provider adapter does not implement
// Stream.
var ErrStreamingUnsupported = errors.New("model: streaming not supported")

// ErrRateLimited indicates the provider rejected the request due to rate
// limiting. Adapters keep it in the cause chain of a rate-limited
// *errs.ProviderError so callers can recognize it with errors.Is even
// after classification.
var ErrRateLimited = errors.New("model: rate limited")

// ConversationRole is the role for a message in a conversation.
type ConversationRole string

const (
	// RoleSystem is the role for system messages.
	RoleSystem ConversationRole = "system"
	// RoleUser is the role for user messages.
	RoleUser ConversationRole = "user"
	// RoleAssistant is the role for assistant messages.
	RoleAssistant ConversationRole = "assistant"
)

type (
	// Part is a marker interface implemented by every message content block.
	Part interface {
		isPart()
	}

	// TextPart is a plain text content block.
	TextPart struct {
		Text string
	}

	// ToolUsePart declares a tool invocation requested by the assistant.
	ToolUsePart struct {
		ID    string
		Name  string
		Input any
	}

	// ToolResultPart carries a tool result supplied back to the model.
	ToolResultPart struct {
		ToolUseID string
		Content   any
		IsError   bool
	}
)

func (TextPart) isPart()       {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}

// Message is a single chat message: a role plus ordered content parts.
type Message struct {
	Role  ConversationRole
	Parts []Part
}

// ToolDefinition describes a tool exposed to the model for this request.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema any
}

// ToolCall is a tool invocation requested by the model in a Response.
type ToolCall struct {
	ID      string
	Name    string
	Payload json.RawMessage
}

// TokenUsage tracks token counts for a single model call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
}

// Request captures the inputs for a single model invocation, matching the
// collaborator contract in the external interfaces: model, messages,
// max_tokens, temperature, and an optional tool list.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float32
	Tools       []ToolDefinition
}

// Response is the result of a non-streaming invocation.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     TokenUsage
	StopReason string
}

// Chunk is a single streaming delta from a model invocation.
type Chunk struct {
	Delta      string
	ToolCall   *ToolCall
	StopReason string
}

// Streamer delivers incremental model output. Callers drain Recv until it
// returns io.EOF, then Close.
type Streamer interface {
	Recv() (Chunk, error)
	Close() error
}

// Client is the provider-agnostic interface AgentNode depends on. Provider
// packages (model/anthropic, model/openai, model/bedrock) adapt their SDKs
// to this shape.
type Client interface {
	// Complete performs a non-streaming model invocation.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Stream performs a streaming model invocation when supported. The core
	// scheduler never calls this directly (streaming is a node-local
	// concern per the workflow engine's non-goals); it exists so provider
	// adapters have a uniform extension point.
	Stream(ctx context.Context, req *Request) (Streamer, error)
}
