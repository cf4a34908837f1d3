package dag

import "slices"

// Topo is the result of ToposortKahn.
type Topo struct {
	// Order lists every acyclic node, dependencies first.
	Order []NodeID
	// Batches groups Order into waves whose nodes are independent.
	Batches [][]NodeID
	Cyclic  bool
	// Cycles holds the nodes that sit on or behind a cycle, ascending.
	Cycles []NodeID
}

// ToposortKahn orders g. Within a wave nodes are sorted by id, so the
// result is deterministic.
func ToposortKahn(g Graph) *Topo {
	indeg := slices.Clone(g.indeg)
	topo := &Topo{Order: make([]NodeID, 0, g.Len())}

	var wave []NodeID
	for i, d := range indeg {
		if d == 0 {
			wave = append(wave, nodeID(i))
		}
	}
	for len(wave) > 0 {
		topo.Batches = append(topo.Batches, wave)
		topo.Order = append(topo.Order, wave...)
		var next []NodeID
		for _, n := range wave {
			for _, to := range g.out[n] {
				if indeg[to]--; indeg[to] == 0 {
					next = append(next, to)
				}
			}
		}
		slices.Sort(next)
		wave = next
	}

	if len(topo.Order) == g.Len() {
		return topo
	}
	topo.Cyclic = true
	for i, d := range indeg {
		if d > 0 {
			topo.Cycles = append(topo.Cycles, nodeID(i))
		}
	}
	return topo
}
