package workflow_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/taskctx"
	"github.com/flowcraft/core/workflow"
)

// stubNode is a minimal node.Declarer used to exercise builder and
// validator behavior without pulling in template/tool-call machinery.
type stubNode struct {
	name      string
	required  []string
	outputKey string
}

func (s *stubNode) Name() string             { return s.name }
func (s *stubNode) RequiredInputs() []string { return s.required }
func (s *stubNode) OutputKey() string        { return s.outputKey }
func (s *stubNode) Process(_ context.Context, tc *taskctx.Context) error {
	return tc.SetOutput(s.name, true)
}

func node1(name string, required ...string) *stubNode {
	return &stubNode{name: name, required: required, outputKey: name}
}

func TestBuilderRejectsDuplicateHandle(t *testing.T) {
	t.Parallel()
	b := workflow.NewBuilder("w").AddNode("A", node1("A")).AddNode("A", node1("A"))
	_, err := b.Build()
	require.Error(t, err)
	var dup *workflow.DuplicateHandle
	require.ErrorAs(t, err, &dup)
}

func TestBuilderRejectsUnknownEdgeEndpoint(t *testing.T) {
	t.Parallel()
	b := workflow.NewBuilder("w").AddNode("A", node1("A")).AddEdge("A", "B")
	_, err := b.Build()
	require.Error(t, err)
	var unk *workflow.UnknownEndpoint
	require.ErrorAs(t, err, &unk)
}

func TestBuilderRejectsSelfLoop(t *testing.T) {
	t.Parallel()
	b := workflow.NewBuilder("w").AddNode("A", node1("A")).AddEdge("A", "A")
	_, err := b.Build()
	require.Error(t, err)
	var loop *workflow.SelfLoop
	require.ErrorAs(t, err, &loop)
}

func TestBuilderRejectsAmbiguousEntry(t *testing.T) {
	t.Parallel()
	b := workflow.NewBuilder("w").
		AddNode("A", node1("A")).
		AddNode("B", node1("B"))
	_, err := b.Build()
	require.Error(t, err)
	var amb *workflow.AmbiguousEntry
	require.ErrorAs(t, err, &amb)
}

func TestBuilderDetectsCycle(t *testing.T) {
	// S3: cycle rejected.
	t.Parallel()
	b := workflow.NewBuilder("w").
		AddNode("A", node1("A")).
		AddNode("B", node1("B", "A")).
		AddNode("C", node1("C", "B")).
		AddEdge("A", "B").
		AddEdge("B", "C").
		AddEdge("C", "A")
	_, err := b.Build()
	require.Error(t, err)
	var cyc *workflow.CycleDetected
	require.ErrorAs(t, err, &cyc)
}

func TestBuilderDetectsMissingInput(t *testing.T) {
	t.Parallel()
	b := workflow.NewBuilder("w").
		AddNode("A", node1("A")).
		AddNode("B", node1("B", "missing_key")).
		AddEdge("A", "B")
	_, err := b.Build()
	require.Error(t, err)
	var mi *workflow.MissingInput
	require.ErrorAs(t, err, &mi)
	require.Equal(t, "B", mi.Node)
	require.Equal(t, "missing_key", mi.Key)
}

func TestBuilderAcceptsInputSatisfiedByWorkflowSchema(t *testing.T) {
	t.Parallel()
	b := workflow.NewBuilder("w").
		WithInput("name").
		AddNode("A", node1("A", "name"))
	w, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, "w", w.Name())
}

func TestBuilderAcceptsInputSatisfiedByAncestorOutput(t *testing.T) {
	// S1 shape: A produces "A", B requires "A".
	t.Parallel()
	b := workflow.NewBuilder("w1").
		WithInput("name").
		AddNode("A", node1("A", "name")).
		AddNode("B", node1("B", "A")).
		AddEdge("A", "B")
	w, err := b.Build()
	require.NoError(t, err)
	entryHandle := w.Handle(w.Entry())
	require.Equal(t, "A", entryHandle)
}

func TestRouterEdgesMustBeLabelled(t *testing.T) {
	t.Parallel()
	left := node1("L")
	right := node1("Rn")
	router, err := node.NewRouterNode("R", nil, []string{"left", "right"}, func(tc *taskctx.Context) (string, error) {
		return "left", nil
	})
	require.NoError(t, err)

	b := workflow.NewBuilder("w5").
		AddNode("R", router).
		AddNode("L", left).
		AddNode("Rn", right).
		AddEdge("R", "L").
		AddRoutedEdge("R", "Rn", "right")
	_, err = b.Build()
	require.Error(t, err)
	var unl *workflow.UnlabelledRouterEdge
	require.ErrorAs(t, err, &unl)
}

func TestRouterEdgesMustMatchKnownBranch(t *testing.T) {
	t.Parallel()
	left := node1("L")
	router, err := node.NewRouterNode("R", nil, []string{"left", "right"}, func(tc *taskctx.Context) (string, error) {
		return "left", nil
	})
	require.NoError(t, err)

	b := workflow.NewBuilder("w5").
		AddNode("R", router).
		AddNode("L", left).
		AddRoutedEdge("R", "L", "up")
	_, err = b.Build()
	require.Error(t, err)
	var unk *workflow.UnknownRouterBranch
	require.ErrorAs(t, err, &unk)
}

func TestValidWorkflowWithRouterBuildsCleanly(t *testing.T) {
	// S5: router pruning is a scheduler-level concern, but the build/
	// validate step must accept the well-labelled graph.
	t.Parallel()
	left := node1("L")
	right := node1("Rn")
	router, err := node.NewRouterNode("R", nil, []string{"left", "right"}, func(tc *taskctx.Context) (string, error) {
		return "left", nil
	})
	require.NoError(t, err)

	b := workflow.NewBuilder("w5").
		AddNode("R", router).
		AddNode("L", left).
		AddNode("Rn", right).
		AddRoutedEdge("R", "L", "left").
		AddRoutedEdge("R", "Rn", "right")
	w, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 3, w.NodeCount())
}
