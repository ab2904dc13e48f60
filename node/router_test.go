package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/taskctx"
)

func TestRouterNodeSelectsBranchAndRecordsMetadata(t *testing.T) {
	t.Parallel()
	r, err := node.NewRouterNode("R", nil, []string{"left", "right"}, func(*taskctx.Context) (string, error) {
		return "left", nil
	})
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w", nil)
	require.NoError(t, r.Process(context.Background(), tc))

	out, ok := tc.GetOutput("R")
	require.True(t, ok)
	require.Equal(t, "left", out)

	meta, ok := tc.GetMetadata(node.MetadataKey("R"))
	require.True(t, ok)
	require.Equal(t, "left", meta)
}

func TestRouterNodeRejectsUnknownBranch(t *testing.T) {
	t.Parallel()
	r, err := node.NewRouterNode("R", nil, []string{"left", "right"}, func(*taskctx.Context) (string, error) {
		return "middle", nil
	})
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w", nil)
	err = r.Process(context.Background(), tc)
	require.Error(t, err)
}
