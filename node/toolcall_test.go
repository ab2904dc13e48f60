package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/mcp/pool"
	"github.com/flowcraft/core/mcp/protocol"
	"github.com/flowcraft/core/mcp/transport"
	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/taskctx"
)

type fakeToolTransport struct {
	calls    int
	failOnce bool
}

func (f *fakeToolTransport) Close() error { return nil }

func (f *fakeToolTransport) Notify(context.Context, string, any) error { return nil }

func (f *fakeToolTransport) Call(_ context.Context, method string, _ any, result any) error {
	f.calls++
	if method != protocol.MethodToolsCall {
		return nil
	}
	if f.failOnce && f.calls == 1 {
		return errs.NewTransient(errs.Transport, "simulated transport failure")
	}
	out, ok := result.(*protocol.ToolCallResult)
	if !ok {
		return nil
	}
	text := `{"echo":"ok"}`
	out.Content = []protocol.ContentItem{{Type: "text", Text: &text}}
	return nil
}

func newTestRegistry(t *testing.T, tr transport.Transport) *pool.Registry {
	t.Helper()
	p, err := pool.New(pool.Config{
		ServerName:     "echo-server",
		MaxConnections: 1,
		Dialer: func(context.Context) (transport.Transport, error) {
			return tr, nil
		},
	})
	require.NoError(t, err)
	reg := pool.NewRegistry()
	reg.Register(p)
	return reg
}

func TestToolCallNodeWritesNormalizedResult(t *testing.T) {
	t.Parallel()
	tr := &fakeToolTransport{}
	reg := newTestRegistry(t, tr)

	tcNode, err := node.NewToolCallNode(node.ToolCallNodeConfig{
		Name:       "T",
		OutputKey:  "T",
		ServerName: "echo-server",
		ToolName:   "echo",
		Registry:   reg,
	})
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w2", nil)
	require.NoError(t, tcNode.Process(context.Background(), tc))

	out, ok := tc.GetOutput("T")
	require.True(t, ok)
	require.Equal(t, map[string]any{"echo": "ok"}, out)
}

func TestToolCallNodeSurfacesTransientFailure(t *testing.T) {
	t.Parallel()
	tr := &fakeToolTransport{failOnce: true}
	reg := newTestRegistry(t, tr)

	tcNode, err := node.NewToolCallNode(node.ToolCallNodeConfig{
		Name:       "T",
		OutputKey:  "T",
		ServerName: "echo-server",
		ToolName:   "echo",
		Registry:   reg,
	})
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w2", nil)
	err = tcNode.Process(context.Background(), tc)
	require.Error(t, err)
	require.Equal(t, errs.Transient, errs.ClassOf(err))

	_, ok := tc.GetOutput("T")
	require.False(t, ok)
}
