package workflow

import "github.com/flowcraft/core/node"

// validate runs the four checks of the workflow validator in order: cycle
// detection, reachability, dataflow analysis, and router edge labelling.
// Validation is pure (reads only) and idempotent; calling it twice on the
// same Workflow value yields the same result.
func validate(w *Workflow, inputs map[string]bool) error {
	if cyc := detectCycle(w); cyc != nil {
		return &CycleDetected{Cycle: cyc}
	}
	reachable := reachableFrom(w, w.entry)
	if unreached := unreachableHandles(w, reachable); len(unreached) > 0 {
		return &UnreachableNodes{Nodes: unreached}
	}
	if err := checkDataflow(w, inputs, reachable); err != nil {
		return err
	}
	return checkRouterEdges(w)
}

// detectCycle runs a recursive DFS with a three-color mark (white/gray/
// black) over the arena and returns the handle sequence of the first cycle
// found, or nil if the graph is acyclic.
func detectCycle(w *Workflow) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, w.NodeCount())
	parent := make([]int, w.NodeCount())
	for i := range parent {
		parent[i] = -1
	}

	var cycleAt = -1
	var visit func(u int) bool
	visit = func(u int) bool {
		color[u] = gray
		for _, e := range w.Successors(u) {
			v := e.To
			switch color[v] {
			case white:
				parent[v] = u
				if visit(v) {
					return true
				}
			case gray:
				parent[v] = u
				cycleAt = v
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := 0; i < w.NodeCount(); i++ {
		if color[i] == white {
			if visit(i) {
				return buildCyclePath(w, cycleAt, parent)
			}
		}
	}
	return nil
}

// buildCyclePath walks parent pointers from the repeated node start back to
// itself and returns the handle sequence in traversal order.
func buildCyclePath(w *Workflow, start int, parent []int) []string {
	path := []int{start}
	for cur := parent[start]; cur != start && cur != -1; cur = parent[cur] {
		path = append(path, cur)
	}
	path = append(path, start)
	// path was built tail-first; reverse it to traversal order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	handles := make([]string, len(path))
	for i, idx := range path {
		handles[i] = w.Handle(idx)
	}
	return handles
}

// reachableFrom runs a BFS from entry and returns the set of reachable
// arena indices.
func reachableFrom(w *Workflow, entry int) map[int]bool {
	seen := map[int]bool{entry: true}
	queue := []int{entry}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, e := range w.Successors(u) {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return seen
}

func unreachableHandles(w *Workflow, reachable map[int]bool) []string {
	var out []string
	for i := 0; i < w.NodeCount(); i++ {
		if !reachable[i] {
			out = append(out, w.Handle(i))
		}
	}
	return out
}

// checkDataflow verifies, for each reachable node implementing
// node.Declarer, that every declared required input key is satisfied by
// either the workflow-level input schema or the output key of some
// ancestor reachable via a path from entry.
func checkDataflow(w *Workflow, inputs map[string]bool, reachable map[int]bool) error {
	for i := 0; i < w.NodeCount(); i++ {
		if !reachable[i] {
			continue
		}
		d, ok := w.Node(i).(node.Declarer)
		if !ok {
			continue
		}
		ancestors := ancestorOutputKeys(w, i)
		for _, key := range d.RequiredInputs() {
			if inputs[key] || ancestors[key] {
				continue
			}
			return &MissingInput{Node: w.Handle(i), Key: key}
		}
	}
	return nil
}

// ancestorOutputKeys walks predecessors of v transitively and returns the
// set of output keys produced by nodes that can reach v.
func ancestorOutputKeys(w *Workflow, v int) map[string]bool {
	seen := map[int]bool{}
	keys := map[string]bool{}
	var walk func(u int)
	walk = func(u int) {
		for _, p := range w.Predecessors(u) {
			if seen[p] {
				continue
			}
			seen[p] = true
			if d, ok := w.Node(p).(node.Declarer); ok {
				keys[d.OutputKey()] = true
			} else {
				keys[w.Handle(p)] = true
			}
			walk(p)
		}
	}
	walk(v)
	return keys
}

// checkRouterEdges verifies that every out-edge of a router node carries a
// label matching one of the router's declared branches.
func checkRouterEdges(w *Workflow) error {
	for i := 0; i < w.NodeCount(); i++ {
		r, ok := w.Node(i).(node.Router)
		if !ok {
			continue
		}
		branches := make(map[string]bool, len(r.Branches()))
		for _, b := range r.Branches() {
			branches[b] = true
		}
		for _, e := range w.Successors(i) {
			if e.Label == "" {
				return &UnlabelledRouterEdge{Router: w.Handle(i), Successor: w.Handle(e.To)}
			}
			if !branches[e.Label] {
				return &UnknownRouterBranch{Router: w.Handle(i), Successor: w.Handle(e.To), Label: e.Label}
			}
		}
	}
	return nil
}
