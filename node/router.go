package node

import (
	"context"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/taskctx"
)

// Predicate evaluates the task context and returns the selected branch
// label. The returned label must be one of the branches the RouterNode was
// constructed with.
type Predicate func(tc *taskctx.Context) (string, error)

// RouterNode evaluates a predicate over the context and attaches the
// selected branch to metadata under MetadataKey(name); the scheduler reads
// that key to prune out-edges not labelled with the chosen branch.
type RouterNode struct {
	name           string
	requiredInputs []string
	branches       []string
	predicate      Predicate
}

// NewRouterNode validates branches and returns a ready-to-run RouterNode.
func NewRouterNode(name string, requiredInputs, branches []string, predicate Predicate) (*RouterNode, error) {
	if name == "" {
		return nil, errs.New(errs.Validation, "router node: name is required")
	}
	if len(branches) == 0 {
		return nil, errs.New(errs.Validation, "router node: at least one branch is required").WithNode(name)
	}
	if predicate == nil {
		return nil, errs.New(errs.Validation, "router node: predicate is required").WithNode(name)
	}
	return &RouterNode{name: name, requiredInputs: requiredInputs, branches: branches, predicate: predicate}, nil
}

// Name returns the node's stable identifier.
func (n *RouterNode) Name() string { return n.name }

// RequiredInputs returns the declared input keys this node reads.
func (n *RouterNode) RequiredInputs() []string { return n.requiredInputs }

// OutputKey returns the context key this node writes its chosen branch
// under, satisfying Declarer so the router's decision is visible in
// node_outputs alongside metadata.
func (n *RouterNode) OutputKey() string { return n.name }

// Branches lists the branch labels this router may select among.
func (n *RouterNode) Branches() []string { return n.branches }

// Process evaluates the predicate and records the chosen branch in both
// node_outputs (for inspection) and metadata under MetadataKey (for the
// scheduler's edge-pruning decision).
func (n *RouterNode) Process(_ context.Context, tc *taskctx.Context) error {
	branch, err := n.predicate(tc)
	if err != nil {
		return errs.Wrap(errs.Processing, "router predicate", err).WithNode(n.name)
	}
	valid := false
	for _, b := range n.branches {
		if b == branch {
			valid = true
			break
		}
	}
	if !valid {
		return errs.Newf(errs.Processing, "router predicate selected unknown branch %q", branch).WithNode(n.name)
	}
	tc.PutMetadata(MetadataKey(n.name), branch)
	return tc.SetOutput(n.name, branch)
}
