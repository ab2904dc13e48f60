package workflow

import "fmt"

// CycleDetected is returned by Build's validation step when the node graph contains a
// directed cycle. Cycle lists the handles of the cycle in traversal order.
type CycleDetected struct {
	Cycle []string
}

func (e *CycleDetected) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.Cycle)
}

// UnreachableNodes is returned by Build's validation step when one or more handles cannot
// be reached from the entry node.
type UnreachableNodes struct {
	Nodes []string
}

func (e *UnreachableNodes) Error() string {
	return fmt.Sprintf("unreachable nodes: %v", e.Nodes)
}

// MissingInput is returned by Build's validation step when a node's declared required
// input key is satisfied by neither the workflow's input schema nor any
// ancestor node's output.
type MissingInput struct {
	Node string
	Key  string
}

func (e *MissingInput) Error() string {
	return fmt.Sprintf("node %s: missing input %q", e.Node, e.Key)
}

// UnlabelledRouterEdge is returned by Build's validation step when an out-edge of a router
// node carries no branch label.
type UnlabelledRouterEdge struct {
	Router    string
	Successor string
}

func (e *UnlabelledRouterEdge) Error() string {
	return fmt.Sprintf("router %s: edge to %s has no branch label", e.Router, e.Successor)
}

// UnknownRouterBranch is returned by Build's validation step when an out-edge of a router
// node carries a label that does not match any of the router's declared
// branches.
type UnknownRouterBranch struct {
	Router    string
	Successor string
	Label     string
}

func (e *UnknownRouterBranch) Error() string {
	return fmt.Sprintf("router %s: edge to %s has unknown branch %q", e.Router, e.Successor, e.Label)
}

// DuplicateHandle is returned by the Builder when AddNode is called twice
// with the same handle.
type DuplicateHandle struct {
	Handle string
}

func (e *DuplicateHandle) Error() string {
	return fmt.Sprintf("duplicate node handle %q", e.Handle)
}

// UnknownEndpoint is returned by the Builder when AddEdge references a
// handle that was never registered via AddNode.
type UnknownEndpoint struct {
	Handle string
}

func (e *UnknownEndpoint) Error() string {
	return fmt.Sprintf("unknown node handle %q", e.Handle)
}

// DuplicateEdge is returned by the Builder when the same (from, to) pair is
// added more than once; the workflow graph is not a multigraph.
type DuplicateEdge struct {
	From string
	To   string
}

func (e *DuplicateEdge) Error() string {
	return fmt.Sprintf("duplicate edge %s -> %s", e.From, e.To)
}

// SelfLoop is returned by the Builder when an edge's endpoints are the same
// handle.
type SelfLoop struct {
	Handle string
}

func (e *SelfLoop) Error() string {
	return fmt.Sprintf("self-loop on node %q", e.Handle)
}

// NoEntry is returned by Build when no node has in-degree zero and cycle
// detection reports no cycle; when it finds one, Build returns
// CycleDetected instead.
type NoEntry struct{}

func (e *NoEntry) Error() string { return "no entry node: every node has an incoming edge" }

// AmbiguousEntry is returned by Build when more than one node has in-degree
// zero.
type AmbiguousEntry struct {
	Candidates []string
}

func (e *AmbiguousEntry) Error() string {
	return fmt.Sprintf("ambiguous entry: multiple zero-in-degree nodes %v", e.Candidates)
}
