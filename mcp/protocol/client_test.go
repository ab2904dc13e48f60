package protocol

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	calls []string
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) Notify(_ context.Context, method string, _ any) error {
	f.calls = append(f.calls, method)
	return nil
}

func (f *fakeTransport) Call(_ context.Context, method string, _ any, result any) error {
	f.calls = append(f.calls, method)
	switch method {
	case MethodInitialize:
		return nil
	case MethodToolsCall:
		out := result.(*ToolCallResult)
		text := `{"sum":3}`
		out.Content = []ContentItem{{Type: "text", Text: &text}}
		return nil
	default:
		return nil
	}
}

func TestClientInitializeIsIdempotent(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{}
	c := NewClient(tr, ClientOptions{})
	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))
	require.Equal(t, []string{MethodInitialize}, tr.calls)
}

func TestClientCallToolNormalizesResult(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{}
	c := NewInitializedClient(tr, ClientOptions{})
	result, err := c.CallTool(context.Background(), "add", json.RawMessage(`{"a":1,"b":2}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"sum":3}`, string(result.Payload))
	require.JSONEq(t, `{"sum":3}`, string(result.Structured))
}

func TestClientNotifyDelegatesToTransportWithoutAwaitingResponse(t *testing.T) {
	t.Parallel()
	tr := &fakeTransport{}
	c := NewInitializedClient(tr, ClientOptions{})
	require.NoError(t, c.Notify(context.Background(), "notifications/progress", map[string]any{"progress": 1}))
	require.Equal(t, []string{"notifications/progress"}, tr.calls)
}
