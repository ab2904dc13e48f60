package node

import (
	"context"

	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/taskctx"
)

// TerminalNode marks the workflow for completion; once its Process call
// returns successfully the scheduler stops admitting further nodes even if
// some remain unreached.
type TerminalNode struct {
	name string
}

// NewTerminalNode returns a TerminalNode with the given name.
func NewTerminalNode(name string) (*TerminalNode, error) {
	if name == "" {
		return nil, errs.New(errs.Validation, "terminal node: name is required")
	}
	return &TerminalNode{name: name}, nil
}

// Name returns the node's stable identifier.
func (n *TerminalNode) Name() string { return n.name }

// RequiredInputs returns no declared inputs; terminal nodes read nothing.
func (n *TerminalNode) RequiredInputs() []string { return nil }

// OutputKey returns the node's own name so its completion is visible in
// node_outputs.
func (n *TerminalNode) OutputKey() string { return n.name }

// Process always succeeds, recording that the terminal node was reached.
func (n *TerminalNode) Process(_ context.Context, tc *taskctx.Context) error {
	return tc.SetOutput(n.name, true)
}

func (n *TerminalNode) isTerminal() {}
