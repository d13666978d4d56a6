package kernel

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Deadlocks returns every cycle of the wait-for graph, where an edge runs
// from a blocked task to the holder of the mutex it waits on. A single
// mutex can never produce a cycle.
func (k *Kernel) Deadlocks() [][]TaskID {
	k.mu.Lock()
	defer k.mu.Unlock()

	g := simple.NewDirectedGraph()
	for id := TaskID(0); id < k.taskCount; id++ {
		t := &k.tasks[id]
		if t.state != StateBlocked || !t.waiting {
			continue
		}
		mx := &k.mutexes[t.waitOn]
		if !mx.held || mx.holder == id {
			continue
		}
		g.SetEdge(g.NewEdge(simple.Node(id), simple.Node(mx.holder)))
	}

	var out [][]TaskID
	for _, cycle := range topo.DirectedCyclesIn(g) {
		if n := len(cycle); n > 1 && cycle[0].ID() == cycle[n-1].ID() {
			cycle = cycle[:n-1]
		}
		ids := make([]TaskID, len(cycle))
		for i, n := range cycle {
			ids[i] = TaskID(n.ID())
		}
		out = append(out, ids)
	}
	return out
}
