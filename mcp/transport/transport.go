// Package transport implements the framing and connection lifecycle for
// the three MCP wire transports the pool can dial: stdio (subprocess),
// HTTP (request/response JSON-RPC), and WebSocket (full-duplex). Each
// transport satisfies the same Transport contract so mcp/protocol.Client
// and mcp/pool can treat them interchangeably.
package transport

import (
	"context"
	"encoding/json"
)

// Transport sends a JSON-RPC method call and decodes its result, or
// reports a connection/protocol failure classified via the errs package.
// Implementations must be safe for concurrent Call invocations.
type Transport interface {
	// Call issues method with params and, if result is non-nil, decodes the
	// response's result field into it.
	Call(ctx context.Context, method string, params any, result any) error

	// Notify sends method with params as a fire-and-forget message: no id
	// is attached and no response is awaited or correlated.
	Notify(ctx context.Context, method string, params any) error

	// Close releases the underlying connection or subprocess. Close is
	// idempotent.
	Close() error
}

// rpcRequest and rpcResponse mirror protocol.Request/Response but stay
// transport-local so this package does not import protocol (protocol
// declares its own Transport interface, so neither package imports the
// other).
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	ID      uint64 `json:"id"`
	Params  any    `json:"params,omitempty"`
}

// rpcNotification mirrors rpcRequest but carries no id field, matching the
// wire format's "no id" notification shape.
type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
