package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/flowcraft/core/errs"
)

// StdioOptions configures a subprocess-backed MCP transport.
type StdioOptions struct {
	Command string
	Args    []string
	Env     []string
	Dir     string
}

// Stdio implements Transport by launching a subprocess and framing
// requests/responses as one JSON object per line, matching the MCP stdio
// transport's wire format. A background goroutine reads lines off the
// subprocess's stdout and demultiplexes them to waiting callers by id.
type Stdio struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	pending   map[uint64]chan callResult
	pendingMu sync.Mutex
	writeMu   sync.Mutex
	nextID    uint64

	closed     chan struct{}
	closeOnce  sync.Once
	closeErr   error
	closeErrMu sync.Mutex
}

type callResult struct {
	resp rpcResponse
	err  error
}

// NewStdio launches opts.Command and returns a Transport bound to its
// stdin/stdout.
func NewStdio(opts StdioOptions) (*Stdio, error) {
	if opts.Command == "" {
		return nil, errs.New(errs.Validation, "mcp stdio transport: command is required")
	}
	cmd := exec.Command(opts.Command, opts.Args...)
	if opts.Dir != "" {
		cmd.Dir = opts.Dir
	}
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errs.WrapTransient(errs.Connection, "mcp stdio transport: stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.WrapTransient(errs.Connection, "mcp stdio transport: stdout pipe", err)
	}
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		return nil, errs.WrapTransient(errs.Connection, "mcp stdio transport: start process", err)
	}
	t := &Stdio{
		cmd:     cmd,
		stdin:   stdin,
		pending: make(map[uint64]chan callResult),
		closed:  make(chan struct{}),
	}
	go t.readLoop(stdout)
	if stderr != nil {
		go func() { _, _ = io.Copy(io.Discard, stderr) }()
	}
	return t, nil
}

// Close terminates the subprocess and releases resources.
func (t *Stdio) Close() error {
	t.closeOnce.Do(func() {
		if t.stdin != nil {
			_ = t.stdin.Close()
		}
		if t.cmd != nil && t.cmd.Process != nil && t.cmd.ProcessState == nil {
			_ = t.cmd.Process.Kill()
		}
		if t.cmd != nil {
			_ = t.cmd.Wait()
		}
		close(t.closed)
	})
	return nil
}

// Call sends method over stdin and waits for the matching response frame.
func (t *Stdio) Call(ctx context.Context, method string, params any, result any) error {
	id := t.next()
	ch := make(chan callResult, 1)
	t.pendingMu.Lock()
	t.pending[id] = ch
	t.pendingMu.Unlock()

	req := rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: params}
	if err := t.writeMessage(req); err != nil {
		t.removePending(id)
		return err
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
				return errs.Wrap(errs.Protocol, "mcp stdio transport: decode result", err)
			}
		}
		return nil
	case <-ctx.Done():
		t.removePending(id)
		return errs.WrapTransient(errs.Timeout, "mcp stdio transport: call cancelled", ctx.Err())
	case <-t.closed:
		return t.closeError()
	}
}

// Notify sends method as a fire-and-forget line with no id and does not
// wait for or correlate any response.
func (t *Stdio) Notify(_ context.Context, method string, params any) error {
	return t.writeMessage(rpcNotification{JSONRPC: "2.0", Method: method, Params: params})
}

func (t *Stdio) writeMessage(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errs.Wrap(errs.Processing, "mcp stdio transport: encode message", err)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(data); err != nil {
		return errs.WrapTransient(errs.Connection, "mcp stdio transport: write body", err)
	}
	if _, err := io.WriteString(t.stdin, "\n"); err != nil {
		return errs.WrapTransient(errs.Connection, "mcp stdio transport: write newline", err)
	}
	return nil
}

func (t *Stdio) readLoop(stdout io.Reader) {
	reader := bufio.NewReader(stdout)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			t.failPending(errs.WrapTransient(errs.Connection, "mcp stdio transport: read frame", err))
			return
		}
		var resp rpcResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
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

func (t *Stdio) failPending(err error) {
	t.pendingMu.Lock()
	for id, ch := range t.pending {
		delete(t.pending, id)
		ch <- callResult{err: err}
		close(ch)
	}
	t.pendingMu.Unlock()
	t.setCloseError(err)
	_ = t.Close()
}

func (t *Stdio) removePending(id uint64) {
	t.pendingMu.Lock()
	delete(t.pending, id)
	t.pendingMu.Unlock()
}

func (t *Stdio) next() uint64 {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	t.nextID++
	return t.nextID
}

func (t *Stdio) setCloseError(err error) {
	if err == nil {
		return
	}
	t.closeErrMu.Lock()
	if t.closeErr == nil {
		t.closeErr = err
	}
	t.closeErrMu.Unlock()
}

func (t *Stdio) closeError() error {
	t.closeErrMu.Lock()
	defer t.closeErrMu.Unlock()
	if t.closeErr == nil {
		return errs.WrapTransient(errs.Connection, "mcp stdio transport: closed", io.ErrClosedPipe)
	}
	return t.closeErr
}

// readFrame reads a single newline-terminated JSON object from reader.
func readFrame(reader *bufio.Reader) ([]byte, error) {
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}
