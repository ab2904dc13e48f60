package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const stdioHelperEnv = "FLOWCRAFT_MCP_STDIO_HELPER"

func TestStdioCallRoundTrips(t *testing.T) {
	t.Parallel()
	tr, err := NewStdio(StdioOptions{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestStdioHelperProcess", "--"},
		Env:     []string{stdioHelperEnv + "=1"},
	})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var echoed map[string]any
	err = tr.Call(ctx, "echo", map[string]any{"value": "hi"}, &echoed)
	require.NoError(t, err)
	require.Equal(t, "hi", echoed["value"])
}

func TestStdioNotifySendsNoIDAndAwaitsNoResponse(t *testing.T) {
	t.Parallel()
	tr, err := NewStdio(StdioOptions{
		Command: os.Args[0],
		Args:    []string{"-test.run=TestStdioHelperProcess", "--"},
		Env:     []string{stdioHelperEnv + "=1"},
	})
	require.NoError(t, err)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tr.Notify(ctx, "notifications/progress", map[string]any{"progress": 1}))

	var echoed map[string]any
	require.NoError(t, tr.Call(ctx, "echo", map[string]any{"value": "still alive"}, &echoed))
	require.Equal(t, "still alive", echoed["value"])
}

// TestStdioHelperProcess is not a real test: it is re-exec'd as a
// subprocess by TestStdioCallRoundTrips to stand in for an MCP server
// speaking the newline-delimited stdio transport.
func TestStdioHelperProcess(t *testing.T) {
	if os.Getenv(stdioHelperEnv) != "1" {
		t.Skip("helper process")
	}
	runStdioHelperProcess()
}

func runStdioHelperProcess() {
	reader := bufio.NewReader(os.Stdin)
	writer := bufio.NewWriter(os.Stdout)
	for {
		frame, err := readFrame(reader)
		if err != nil {
			break
		}
		var req rpcRequest
		if err := json.Unmarshal(frame, &req); err != nil {
			continue
		}
		if req.ID == 0 {
			// notification: no response expected.
			continue
		}
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: mustMarshal(req.Params)}
		writeHelperFrame(writer, resp)
	}
	writer.Flush()
	os.Exit(0)
}

func mustMarshal(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func writeHelperFrame(writer *bufio.Writer, resp rpcResponse) {
	data, _ := json.Marshal(resp)
	writer.Write(data)
	writer.WriteByte('\n')
	writer.Flush()
}
