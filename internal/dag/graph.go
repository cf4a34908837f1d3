// Package dag orders dependency graphs with Kahn's algorithm.
package dag

import (
	"fmt"
	"slices"

	"fortio.org/safecast"
)

// NodeID indexes a node of a Graph.
type NodeID uint32

// Graph is a directed graph over the nodes 0..Len()-1. An edge from a to b
// means a is ordered before b.
type Graph struct {
	out   [][]NodeID
	indeg []int
}

// New returns a graph with n nodes and no edges.
func New(n int) Graph {
	return Graph{out: make([][]NodeID, n), indeg: make([]int, n)}
}

// Len is the number of nodes.
func (g *Graph) Len() int { return len(g.out) }

// Successors lists the nodes ordered after n, in insertion order.
func (g *Graph) Successors(n NodeID) []NodeID { return g.out[n] }

// AddEdge records that from must be ordered before to. Duplicate edges are
// ignored; a self edge makes its node cyclic.
func (g *Graph) AddEdge(from, to NodeID) {
	if int(from) >= len(g.out) || int(to) >= len(g.out) {
		panic(fmt.Errorf("dag: edge %d->%d out of range %d", from, to, len(g.out)))
	}
	if slices.Contains(g.out[from], to) {
		return
	}
	g.out[from] = append(g.out[from], to)
	g.indeg[to]++
}

// Reverse returns the graph with every edge flipped.
func Reverse(g Graph) Graph {
	r := New(g.Len())
	for from, tos := range g.out {
		for _, to := range tos {
			r.AddEdge(to, nodeID(from))
		}
	}
	return r
}

func nodeID(i int) NodeID {
	id, err := safecast.Conv[NodeID](i)
	if err != nil {
		panic(fmt.Errorf("dag: node id overflow: %w", err))
	}
	return id
}
