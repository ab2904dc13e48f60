package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/flowcraft/core/errs"
)

// HTTPOptions configures an HTTP-based MCP transport.
type HTTPOptions struct {
	Endpoint string
	Client   *http.Client
}

// HTTP implements Transport as JSON-RPC-over-HTTP: each call is a single
// POST carrying the request envelope, with the response envelope decoded
// from the HTTP response body.
type HTTP struct {
	endpoint string
	client   *http.Client
	nextID   uint64
}

// NewHTTP returns an HTTP transport bound to opts.Endpoint.
func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	if opts.Endpoint == "" {
		return nil, errs.New(errs.Validation, "mcp http transport: endpoint is required")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{endpoint: opts.Endpoint, client: client}, nil
}

// Close is a no-op: the HTTP transport holds no persistent connection.
func (t *HTTP) Close() error { return nil }

// Notify POSTs a JSON-RPC notification envelope (no id) and does not
// decode or wait on the response body beyond confirming the request was
// accepted.
func (t *HTTP) Notify(ctx context.Context, method string, params any) error {
	body, err := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return errs.Wrap(errs.Processing, "mcp http transport: encode notification", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.Processing, "mcp http transport: build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	injectTraceHeaders(ctx, req.Header)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.WrapTransient(errs.Timeout, "mcp http transport: notify timed out", err)
		}
		return errs.WrapTransient(errs.Connection, "mcp http transport: notify failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		return errs.NewTransient(errs.Transport, fmt.Sprintf("mcp http transport: notify status %d", resp.StatusCode))
	}
	return nil
}

// Call POSTs a JSON-RPC request envelope to the configured endpoint.
func (t *HTTP) Call(ctx context.Context, method string, params any, result any) error {
	id := atomic.AddUint64(&t.nextID, 1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params})
	if err != nil {
		return errs.Wrap(errs.Processing, "mcp http transport: encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return errs.Wrap(errs.Processing, "mcp http transport: build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	injectTraceHeaders(ctx, req.Header)

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errs.WrapTransient(errs.Timeout, "mcp http transport: call timed out", err)
		}
		return errs.WrapTransient(errs.Connection, "mcp http transport: request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errs.NewTransient(errs.Transport, fmt.Sprintf("mcp http transport: status %d", resp.StatusCode))
	}
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return errs.Wrap(errs.Protocol, "mcp http transport: decode response", err)
	}
	if rpcResp.Error != nil {
		return errs.New(errs.Protocol, rpcResp.Error.Message)
	}
	if result != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return errs.Wrap(errs.Protocol, "mcp http transport: decode result", err)
		}
	}
	return nil
}
