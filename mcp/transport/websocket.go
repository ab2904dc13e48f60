package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flowcraft/core/errs"
)

// WebSocketOptions configures a WebSocket-based MCP transport.
type WebSocketOptions struct {
	URL         string
	DialTimeout time.Duration
}

// WebSocket implements Transport as full-duplex JSON-RPC over a single
// WebSocket connection: a background reader goroutine demultiplexes
// incoming frames to waiting callers by request id, the same shape as the
// stdio transport but framed as WebSocket text messages instead of
// newline-delimited lines.
type WebSocket struct {
	conn      *websocket.Conn
	pending   map[uint64]chan callResult
	pendingMu sync.Mutex
	writeMu   sync.Mutex
	nextID    uint64

	closed    chan struct{}
	closeOnce sync.Once
}

// NewWebSocket dials opts.URL and returns a connected Transport.
func NewWebSocket(ctx context.Context, opts WebSocketOptions) (*WebSocket, error) {
	if opts.URL == "" {
		return nil, errs.New(errs.Validation, "mcp websocket transport: url is required")
	}
	dialCtx := ctx
	if opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, opts.URL, nil)
	if err != nil {
		return nil, errs.WrapTransient(errs.Connection, "mcp websocket transport: dial", err)
	}
	t := &WebSocket{
		conn:    conn,
		pending: make(map[uint64]chan callResult),
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Close closes the underlying WebSocket connection.
func (t *WebSocket) Close() error {
	t.closeOnce.Do(func() {
		_ = t.conn.Close()
		close(t.closed)
	})
	return nil
}

// Call sends method as a JSON-RPC text frame and waits for the matching
// response frame.
func (t *WebSocket) Call(ctx context.Context, method string, params any, result any) error {
	id := t.next()
	ch := make(chan callResult, 1)
	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params}
	data, err := json.Marshal(req)
	if err != nil {
		t.removePending(id)
		return errs.Wrap(errs.Processing, "mcp websocket transport: encode request", err)
	}
	t.writeMu.Lock()
	writeErr := t.conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()
	if writeErr != nil {
		t.removePending(id)
		return errs.WrapTransient(errs.Connection, "mcp websocket transport: write", writeErr)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		if res.resp.Error != nil {
			return errs.New(errs.Protocol, res.resp.Error.Message)
		}
		if result != nil && len(res.resp.Result) > 0 {
			if err := json.Unmarshal(res.resp.Result, result); err != nil {
				return errs.Wrap(errs.Protocol, "mcp websocket transport: decode result", err)
			}
		}
		return nil
	case <-ctx.Done():
		t.removePending(id)
		return errs.WrapTransient(errs.Timeout, "mcp websocket transport: call cancelled", ctx.Err())
	case <-t.closed:
		return errs.WrapTransient(errs.Connection, "mcp websocket transport: closed", websocket.ErrCloseSent)
	}
}

// Notify sends method as a JSON-RPC text frame with no id and does not
// wait for or correlate any response.
func (t *WebSocket) Notify(_ context.Context, method string, params any) error {
	data, err := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return errs.Wrap(errs.Processing, "mcp websocket transport: encode notification", err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errs.WrapTransient(errs.Connection, "mcp websocket transport: write notification", err)
	}
	return nil
}

func (t *WebSocket) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.failPending(errs.WrapTransient(errs.Connection, "mcp websocket transport: read", err))
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			continue
		}
		if resp.ID == 0 {
			continue
		}
		t.pendingMu.Lock()
		ch, ok := t.pending[resp.ID]
		if ok {
			delete(t.pending, resp.ID)
		}
		t.pendingMu.Unlock()
		if ok {
			ch <- callResult{resp: resp}
			close(ch)
		}
	}
}

func (t *WebSocket) failPending(err error) {
	t.pendingMu.Lock()
	for id, ch := range t.pending {
		delete(t.pending, id)
		ch <- callResult{err: err}
		close(ch)
	}
	t.pendingMu.Unlock()
	_ = t.Close()
}

func (t *WebSocket) removePending(id uint64) {
	t.pendingMu.Lock()
	delete(t.pending, id)
	t.pendingMu.Unlock()
}

func (t *WebSocket) next() uint64 {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	t.nextID++
	return t.nextID
}
