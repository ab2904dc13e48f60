package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/model"
	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/taskctx"
)

type fakeModelClient struct {
	resp *model.Response
	err  error
}

func (f *fakeModelClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return f.resp, f.err
}

func (f *fakeModelClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func TestAgentNodeWritesResponseAndTokenUsage(t *testing.T) {
	t.Parallel()
	client := &fakeModelClient{resp: &model.Response{
		Content: "hello there",
		Usage:   model.TokenUsage{PromptTokens: 10, CompletionTokens: 4},
	}}
	a, err := node.NewAgentNode(node.AgentNodeConfig{
		Name:           "A",
		RequiredInputs: []string{"topic"},
		OutputKey:      "A",
		PromptTemplate: "Write about {{topic}}",
		Client:         client,
	})
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w", map[string]any{"topic": "Go"})
	require.NoError(t, a.Process(context.Background(), tc))

	out, ok := tc.GetOutput("A")
	require.True(t, ok)
	require.Equal(t, "hello there", out)

	usage, ok := tc.GetMetadata("tokens:A")
	require.True(t, ok)
	require.Equal(t, model.TokenUsage{PromptTokens: 10, CompletionTokens: 4}, usage)
}

func TestAgentNodePropagatesProviderErrorClass(t *testing.T) {
	t.Parallel()
	providerErr := errs.NewProviderError("anthropic", "complete", errs.ProviderRateLimited, "rate_limited", "too many requests", "req-1", nil)
	client := &fakeModelClient{err: providerErr}
	a, err := node.NewAgentNode(node.AgentNodeConfig{
		Name:           "A",
		OutputKey:      "A",
		PromptTemplate: "hi",
		Client:         client,
	})
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w", nil)
	err = a.Process(context.Background(), tc)
	require.Error(t, err)
	require.Equal(t, errs.Transient, errs.ClassOf(err))
	var pe *errs.ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "A", pe.Node)
}
