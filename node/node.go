// Package node defines the node capability contract nodes implement and the
// concrete node variants (AI agent calls, MCP tool invocations, template
// rendering, routing, and workflow termination) the scheduler drives. Nodes
// are a tagged variant rather than a class hierarchy: well-known variants
// are distinguished by the optional Router/Terminal/Declarer interfaces they
// implement, and any other type that implements Node covers anything else.
package node

import (
	"context"

	"github.com/flowcraft/core/taskctx"
)

// Node is the single capability every node in a workflow implements: a
// stable name and a Process step that mutates the shared task context.
type Node interface {
	// Name is the node's stable handle-facing identifier, used in event
	// payloads and error context. It is not necessarily the workflow
	// handle (callers may reuse a node across handles), but in practice
	// the two coincide.
	Name() string

	// Process runs the node's unit of work against ctx (the task context
	// for the current run) and returns an error classified via the errs
	// package on failure. Implementations write their result into tc via
	// tc.SetOutput under their own handle.
	Process(ctx context.Context, tc *taskctx.Context) error
}

// Declarer is implemented by nodes that declare, at construction time, the
// input keys they require and the output key they produce. The workflow
// validator uses this to check that every required input is satisfied by a
// workflow input or an ancestor node's output before a run starts.
type Declarer interface {
	// RequiredInputs lists the context keys (workflow inputs or ancestor
	// node outputs) this node reads before it can run.
	RequiredInputs() []string
	// OutputKey is the key this node writes its result under via
	// tc.SetOutput.
	OutputKey() string
}

// Router is implemented by RouterNode and any custom node that prunes
// out-edges by branch label. The validator checks that every out-edge of a
// Router-implementing node carries a label matching one of Branches.
type Router interface {
	Node
	// Branches lists the branch labels this router may select among.
	Branches() []string
}

// Terminal is implemented by nodes that end the workflow: once such a node
// completes, the scheduler stops admitting further nodes even if some
// remain unreached.
type Terminal interface {
	Node
	isTerminal()
}

// MetadataKey is the tc.PutMetadata key under which RouterNode instances
// record their selected branch, keyed by router node name. The scheduler
// reads this key after a router's Process call returns to decide which
// out-edges to prune.
func MetadataKey(routerName string) string {
	return "route:" + routerName
}
