package protocol

import (
	"context"
	"encoding/json"

	"github.com/flowcraft/core/errs"
)

// Transport is the subset of mcp/transport.Transport the protocol client
// depends on. Declared locally so this package has no import-time
// dependency on the transport package's concrete types.
type Transport interface {
	Call(ctx context.Context, method string, params any, result any) error
	Notify(ctx context.Context, method string, params any) error
	Close() error
}

// ClientOptions configures the initialize handshake a Client performs on
// first use.
type ClientOptions struct {
	ProtocolVersion string
	ClientName      string
	ClientVersion   string
}

// Client drives the MCP method set over a Transport: initialize once, then
// tools/resources/prompts calls for the lifetime of the connection.
type Client struct {
	transport   Transport
	opts        ClientOptions
	initialized bool
}

// NewClient returns a Client bound to transport. Initialize must be called
// before any other method.
func NewClient(transport Transport, opts ClientOptions) *Client {
	if opts.ProtocolVersion == "" {
		opts.ProtocolVersion = DefaultProtocolVersion
	}
	if opts.ClientName == "" {
		opts.ClientName = "flowcraft-core"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "dev"
	}
	return &Client{transport: transport, opts: opts}
}

// NewInitializedClient wraps transport as a Client that has already
// completed the initialize handshake over this same connection, so
// reused pooled connections are not re-initialized on every checkout.
func NewInitializedClient(transport Transport, opts ClientOptions) *Client {
	c := NewClient(transport, opts)
	c.initialized = true
	return c
}

// Initialize performs the MCP handshake. Subsequent calls are no-ops.
func (c *Client) Initialize(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	params := InitializeParams{
		ProtocolVersion: c.opts.ProtocolVersion,
		ClientInfo:      ClientInfo{Name: c.opts.ClientName, Version: c.opts.ClientVersion},
	}
	if err := c.transport.Call(ctx, MethodInitialize, params, nil); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

// ListTools returns the tools the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	var result ToolsListResult
	if err := c.transport.Call(ctx, MethodToolsList, map[string]any{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes name with the given JSON-encoded arguments and
// normalizes the response into a Result.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (Result, error) {
	params := ToolCallParams{Name: name, Arguments: arguments}
	var raw ToolCallResult
	if err := c.transport.Call(ctx, MethodToolsCall, params, &raw); err != nil {
		return Result{}, err
	}
	if raw.IsError {
		return Result{}, errs.Newf(errs.Processing, "mcp tool %q returned an error result", name).WithTool(name)
	}
	return normalizeResult(raw)
}

// ListResources returns the resources the server exposes.
func (c *Client) ListResources(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.transport.Call(ctx, MethodResourcesList, map[string]any{}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ReadResource reads the resource identified by uri.
func (c *Client) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.transport.Call(ctx, MethodResourcesRead, map[string]any{"uri": uri}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ListPrompts returns the prompts the server exposes.
func (c *Client) ListPrompts(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.transport.Call(ctx, MethodPromptsList, map[string]any{}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetPrompt retrieves a named prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]any) (json.RawMessage, error) {
	params := map[string]any{"name": name, "arguments": arguments}
	var raw json.RawMessage
	if err := c.transport.Call(ctx, MethodPromptsGet, params, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// Notify sends method as a fire-and-forget message with no response
// correlation.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	return c.transport.Notify(ctx, method, params)
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.transport.Close()
}
