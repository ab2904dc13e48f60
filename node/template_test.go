package node_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/taskctx"
)

func TestTemplateNodeRendersAgainstInputsAndOutputs(t *testing.T) {
	t.Parallel()
	a, err := node.NewTemplateNode("A", []string{"name"}, "A", "Hello, {{name}}!")
	require.NoError(t, err)
	b, err := node.NewTemplateNode("B", []string{"A"}, "B", "{{prev}} World")
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w1", map[string]any{"name": "Ada"})
	require.NoError(t, a.Process(context.Background(), tc))
	require.NoError(t, b.Process(context.Background(), tc))

	outA, ok := tc.GetOutput("A")
	require.True(t, ok)
	require.Equal(t, "Hello, Ada!", outA)

	outB, ok := tc.GetOutput("B")
	require.True(t, ok)
	require.Equal(t, "Hello, Ada! World", outB)
}

func TestTemplateNodeMissingInputIsValidation(t *testing.T) {
	t.Parallel()
	n, err := node.NewTemplateNode("A", []string{"missing"}, "A", "{{missing}}")
	require.NoError(t, err)

	tc := taskctx.New("run-1", "w1", nil)
	err = n.Process(context.Background(), tc)
	require.Error(t, err)
	require.Equal(t, errs.Validation, errs.ClassOf(err))
}
