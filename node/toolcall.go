package node

import (
	"context"
	"encoding/json"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/mcp/pool"
	"github.com/flowcraft/core/mcp/protocol"
	"github.com/flowcraft/core/taskctx"
)

// ToolCallNode acquires a pooled MCP connection to a configured server,
// invokes a single tool, and writes the normalized result under the
// node's output key. Failures are classified by the pool and protocol
// layers: a broken connection surfaces as Transient/Connection, a
// malformed server response as Protocol, and a tool-reported failure as
// Processing.
type ToolCallNode struct {
	name           string
	requiredInputs []string
	outputKey      string
	serverName     string
	toolName       string
	registry       *pool.Registry
	clientOpts     protocol.ClientOptions
}

// ToolCallNodeConfig configures a ToolCallNode at construction time.
type ToolCallNodeConfig struct {
	Name           string
	RequiredInputs []string
	OutputKey      string
	ServerName     string
	ToolName       string
	Registry       *pool.Registry
	ClientOptions  protocol.ClientOptions
}

// NewToolCallNode validates cfg and returns a ready-to-run ToolCallNode.
func NewToolCallNode(cfg ToolCallNodeConfig) (*ToolCallNode, error) {
	if cfg.Name == "" {
		return nil, errs.New(errs.Validation, "tool call node: name is required")
	}
	if cfg.OutputKey == "" {
		return nil, errs.New(errs.Validation, "tool call node: output key is required").WithNode(cfg.Name)
	}
	if cfg.ServerName == "" {
		return nil, errs.New(errs.Validation, "tool call node: server name is required").WithNode(cfg.Name)
	}
	if cfg.ToolName == "" {
		return nil, errs.New(errs.Validation, "tool call node: tool name is required").WithNode(cfg.Name)
	}
	if cfg.Registry == nil {
		return nil, errs.New(errs.Validation, "tool call node: pool registry is required").WithNode(cfg.Name)
	}
	return &ToolCallNode{
		name:           cfg.Name,
		requiredInputs: cfg.RequiredInputs,
		outputKey:      cfg.OutputKey,
		serverName:     cfg.ServerName,
		toolName:       cfg.ToolName,
		registry:       cfg.Registry,
		clientOpts:     cfg.ClientOptions,
	}, nil
}

// Name returns the node's stable identifier.
func (n *ToolCallNode) Name() string { return n.name }

// RequiredInputs returns the declared input keys this node reads to build
// the tool call arguments.
func (n *ToolCallNode) RequiredInputs() []string { return n.requiredInputs }

// OutputKey returns the context key this node writes the tool result
// under.
func (n *ToolCallNode) OutputKey() string { return n.outputKey }

// Process builds the tool arguments from required inputs, acquires a
// pooled connection to the configured server, issues tools/call, and
// writes the decoded result. The pool connection is always released,
// tagged with the call's outcome so the circuit breaker and discard
// policy can react to it.
func (n *ToolCallNode) Process(ctx context.Context, tc *taskctx.Context) error {
	args := make(map[string]any, len(n.requiredInputs))
	for _, key := range n.requiredInputs {
		v, ok := tc.GetInput(key)
		if !ok {
			v, ok = tc.GetOutput(key)
		}
		if !ok {
			return errs.Newf(errs.Validation, "missing required input %q", key).WithNode(n.name)
		}
		args[key] = v
	}
	payload, err := json.Marshal(args)
	if err != nil {
		return errs.Wrap(errs.Validation, "tool call node: encode arguments", err).WithNode(n.name)
	}

	p, err := n.registry.Pool(n.serverName)
	if err != nil {
		return n.annotate(err)
	}
	conn, err := p.Acquire(ctx)
	if err != nil {
		return n.annotate(err)
	}

	client := protocol.NewInitializedClient(conn.Transport, n.clientOpts)
	result, callErr := client.CallTool(ctx, n.toolName, payload)
	p.Release(conn, callErr)
	if callErr != nil {
		return n.annotate(callErr)
	}

	var decoded any
	if err := json.Unmarshal(result.Payload, &decoded); err != nil {
		return errs.Wrap(errs.Protocol, "tool call node: decode result", err).WithNode(n.name).WithServer(n.serverName).WithTool(n.toolName)
	}
	return tc.SetOutput(n.outputKey, decoded)
}

func (n *ToolCallNode) annotate(err error) error {
	if e, ok := errs.Of(err); ok {
		return e.WithNode(n.name).WithServer(n.serverName).WithTool(n.toolName)
	}
	return errs.Wrap(errs.Processing, "", err).WithNode(n.name).WithServer(n.serverName).WithTool(n.toolName)
}
