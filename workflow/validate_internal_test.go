package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/taskctx"
)

// plainNode is a bare node.Node (no Declarer) used to test the reachability
// and cycle checks in isolation from dataflow analysis.
type plainNode struct{ name string }

func (p *plainNode) Name() string { return p.name }
func (p *plainNode) Process(_ context.Context, tc *taskctx.Context) error {
	return tc.SetOutput(p.name, true)
}

// TestUnreachableNodeCheck exercises the reachability check directly: the
// Builder's entry computation already rules this case out for any workflow
// it can construct (a DAG with a single in-degree-0 node is, by
// construction, fully reachable from it), so this constructs a Workflow
// value directly to isolate the check the way the validator performs it.
func TestUnreachableNodeCheck(t *testing.T) {
	t.Parallel()
	w := &Workflow{
		name: "w",
		nodes: []node.Node{
			&plainNode{"A"}, &plainNode{"B"}, &plainNode{"C"},
		},
		handles: []string{"A", "B", "C"},
		index:   map[string]int{"A": 0, "B": 1, "C": 2},
		edges:   []Edge{{From: 0, To: 1}},
		entry:   0,
	}
	err := validate(w, nil)
	require.Error(t, err)
	var unreached *UnreachableNodes
	require.ErrorAs(t, err, &unreached)
	require.Equal(t, []string{"C"}, unreached.Nodes)
}
