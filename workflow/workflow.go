// Package workflow defines the immutable workflow graph a scheduler drives:
// a build-time Builder that enforces structural invariants as nodes and
// edges are added, and a frozen Workflow the Builder produces once
// validation passes. Nodes are stored in an arena indexed by small integers
// per the graph-storage convention of representing ownership as indices
// rather than a pointer graph; handles map to arena indices and edges are
// (u, v) index pairs.
package workflow

import "github.com/flowcraft/core/node"

// Edge is a directed (from, to) pair in the node arena, optionally carrying
// a branch label when from is a router node.
type Edge struct {
	From  int
	To    int
	Label string
}

// Workflow is an immutable, validated graph of nodes ready to be scheduled.
// Once Build returns a Workflow successfully, nothing about its structure
// can change; only a new Builder produces a new Workflow.
type Workflow struct {
	name    string
	nodes   []node.Node
	handles []string
	index   map[string]int
	edges   []Edge
	entry   int
}

// Name returns the workflow's identifier.
func (w *Workflow) Name() string { return w.name }

// Entry returns the arena index of the single zero-in-degree node
// designated as the start of execution.
func (w *Workflow) Entry() int { return w.entry }

// NodeCount returns the number of nodes in the arena.
func (w *Workflow) NodeCount() int { return len(w.nodes) }

// Node returns the node at arena index i.
func (w *Workflow) Node(i int) node.Node { return w.nodes[i] }

// Handle returns the handle a node was registered under at arena index i.
func (w *Workflow) Handle(i int) string { return w.handles[i] }

// IndexOf returns the arena index registered under handle, if any.
func (w *Workflow) IndexOf(handle string) (int, bool) {
	i, ok := w.index[handle]
	return i, ok
}

// Edges returns the workflow's edge set.
func (w *Workflow) Edges() []Edge { return w.edges }

// Successors returns the out-edges of the node at arena index u.
func (w *Workflow) Successors(u int) []Edge {
	var out []Edge
	for _, e := range w.edges {
		if e.From == u {
			out = append(out, e)
		}
	}
	return out
}

// Predecessors returns the arena indices of nodes with an edge into v.
func (w *Workflow) Predecessors(v int) []int {
	var in []int
	for _, e := range w.edges {
		if e.To == v {
			in = append(in, e.From)
		}
	}
	return in
}
