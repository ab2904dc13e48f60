package scheduler

import "github.com/flowcraft/core/workflow"

// topoOrder computes a topological order of w's arena indices via Kahn's
// algorithm, breaking ties by arena index for determinism. w is assumed
// already validated acyclic; callers that pass an unvalidated workflow get
// a partial order (nodes involved in a cycle are simply omitted).
func topoOrder(w *workflow.Workflow) []int {
	n := w.NodeCount()
	indegree := make([]int, n)
	for _, e := range w.Edges() {
		indegree[e.To]++
	}

	var ready []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]int, 0, n)
	for len(ready) > 0 {
		// smallest-index-first keeps the order deterministic.
		minPos := 0
		for i, v := range ready {
			if v < ready[minPos] {
				minPos = i
			}
		}
		u := ready[minPos]
		ready = append(ready[:minPos], ready[minPos+1:]...)
		order = append(order, u)

		for _, e := range w.Successors(u) {
			indegree[e.To]--
			if indegree[e.To] == 0 {
				ready = append(ready, e.To)
			}
		}
	}
	return order
}
