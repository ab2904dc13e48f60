package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/taskctx"
)

func TestTerminalNodeMarksCompletion(t *testing.T) {
	t.Parallel()
	term, err := node.NewTerminalNode("done")
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w", nil)
	require.NoError(t, term.Process(context.Background(), tc))

	out, ok := tc.GetOutput("done")
	require.True(t, ok)
	require.Equal(t, true, out)
}
