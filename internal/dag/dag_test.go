package dag

import (
	"slices"
	"testing"
)

func TestToposortKahnBatches(t *testing.T) {
	g := New(4)
	g.AddEdge(0, 2)
	g.AddEdge(1, 2)
	g.AddEdge(2, 3)
	g.AddEdge(2, 3)

	topo := ToposortKahn(g)
	if topo.Cyclic {
		t.Fatalf("unexpected cycle: %v", topo.Cycles)
	}
	if want := []NodeID{0, 1, 2, 3}; !slices.Equal(topo.Order, want) {
		t.Fatalf("order = %v, want %v", topo.Order, want)
	}
	if len(topo.Batches) != 3 || len(topo.Batches[0]) != 2 {
		t.Fatalf("unexpected batches: %v", topo.Batches)
	}
}

func TestToposortKahnReportsCycle(t *testing.T) {
	g := New(4)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	g.AddEdge(2, 1)
	g.AddEdge(2, 3)

	topo := ToposortKahn(g)
	if !topo.Cyclic {
		t.Fatal("expected cycle")
	}
	if want := []NodeID{1, 2, 3}; !slices.Equal(topo.Cycles, want) {
		t.Fatalf("cycles = %v, want %v", topo.Cycles, want)
	}
	if want := []NodeID{0}; !slices.Equal(topo.Order, want) {
		t.Fatalf("order = %v, want %v", topo.Order, want)
	}
}

func TestToposortSelfEdge(t *testing.T) {
	g := New(2)
	g.AddEdge(1, 1)
	topo := ToposortKahn(g)
	if !topo.Cyclic || !slices.Equal(topo.Cycles, []NodeID{1}) {
		t.Fatalf("self edge should be cyclic, got %+v", topo)
	}
}

func TestReverse(t *testing.T) {
	g := New(3)
	g.AddEdge(0, 1)
	g.AddEdge(1, 2)
	topo := ToposortKahn(Reverse(g))
	if want := []NodeID{2, 1, 0}; !slices.Equal(topo.Order, want) {
		t.Fatalf("order = %v, want %v", topo.Order, want)
	}
}

func TestSuccessorsIgnoreDuplicates(t *testing.T) {
	g := New(3)
	g.AddEdge(0, 2)
	g.AddEdge(0, 1)
	g.AddEdge(0, 2)
	if got := g.Successors(0); !slices.Equal(got, []NodeID{2, 1}) {
		t.Fatalf("successors = %v", got)
	}
	if g.Len() != 3 {
		t.Fatalf("len = %d", g.Len())
	}
}
