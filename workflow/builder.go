package workflow

import (
	"github.com/flowcraft/core/errs"
	"github.com/flowcraft/core/node"
)

// Builder accumulates nodes and edges and produces an immutable, validated
// Workflow on Build. Each method returns the Builder so calls can chain; the
// first structural error encountered is latched and returned by Build,
// mirroring the teacher's RegisterWorkflow "fail the whole registration on
// the first invalid definition" behavior rather than panicking mid-build.
type Builder struct {
	name    string
	nodes   []node.Node
	handles []string
	index   map[string]int
	edges   []Edge
	inputs  map[string]bool
	err     error
}

// NewBuilder starts a Builder for a workflow named name.
func NewBuilder(name string) *Builder {
	return &Builder{
		name:   name,
		index:  make(map[string]int),
		inputs: make(map[string]bool),
	}
}

// WithInput declares a key the workflow's run-time inputs will supply,
// satisfying any node that requires it directly without an ancestor
// producing it.
func (b *Builder) WithInput(key string) *Builder {
	b.inputs[key] = true
	return b
}

// AddNode registers n under handle. handle must be unique within the
// builder.
func (b *Builder) AddNode(handle string, n node.Node) *Builder {
	if b.err != nil {
		return b
	}
	if handle == "" {
		b.err = errs.New(errs.Validation, "workflow builder: node handle is required")
		return b
	}
	if _, dup := b.index[handle]; dup {
		b.err = &DuplicateHandle{Handle: handle}
		return b
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, n)
	b.handles = append(b.handles, handle)
	b.index[handle] = idx
	return b
}

// AddEdge adds a directed edge from -> to with no branch label.
func (b *Builder) AddEdge(from, to string) *Builder {
	return b.AddRoutedEdge(from, to, "")
}

// AddRoutedEdge adds a directed edge from -> to carrying branch label
// label, used for out-edges of router nodes.
func (b *Builder) AddRoutedEdge(from, to, label string) *Builder {
	if b.err != nil {
		return b
	}
	if from == to {
		b.err = &SelfLoop{Handle: from}
		return b
	}
	u, ok := b.index[from]
	if !ok {
		b.err = &UnknownEndpoint{Handle: from}
		return b
	}
	v, ok := b.index[to]
	if !ok {
		b.err = &UnknownEndpoint{Handle: to}
		return b
	}
	for _, e := range b.edges {
		if e.From == u && e.To == v {
			b.err = &DuplicateEdge{From: from, To: to}
			return b
		}
	}
	b.edges = append(b.edges, Edge{From: u, To: v, Label: label})
	return b
}

// Build determines the workflow's entry node, runs the validator, and returns
// the frozen Workflow. Any structural error latched during AddNode/AddEdge
// calls is returned first.
func (b *Builder) Build() (*Workflow, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.nodes) == 0 {
		return nil, errs.New(errs.Validation, "workflow builder: at least one node is required")
	}

	inDegree := make([]int, len(b.nodes))
	for _, e := range b.edges {
		inDegree[e.To]++
	}
	var candidates []int
	for i, d := range inDegree {
		if d == 0 {
			candidates = append(candidates, i)
		}
	}
	switch len(candidates) {
	case 0:
		// Every node has an incoming edge, so the graph contains a cycle.
		probe := &Workflow{nodes: b.nodes, handles: b.handles, edges: b.edges}
		if cyc := detectCycle(probe); cyc != nil {
			return nil, &CycleDetected{Cycle: cyc}
		}
		return nil, &NoEntry{}
	case 1:
		// single candidate, falls through
	default:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = b.handles[c]
		}
		return nil, &AmbiguousEntry{Candidates: names}
	}

	w := &Workflow{
		name:    b.name,
		nodes:   b.nodes,
		handles: b.handles,
		index:   b.index,
		edges:   b.edges,
		entry:   candidates[0],
	}

	if err := validate(w, b.inputs); err != nil {
		return nil, err
	}
	return w, nil
}
