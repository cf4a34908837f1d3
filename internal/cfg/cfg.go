// Package cfg builds the statement graph of a Sierra function and tracks
// which variables are live, with their types, before every statement.
package cfg

import (
	"fmt"
	"maps"
	"slices"

	"sierranative/internal/errs"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
)

// State maps live variables to their types.
type State map[sierra.VarID]sierra.TypeID

// Vars lists the live variables in ascending order.
func (s State) Vars() []sierra.VarID {
	out := make([]sierra.VarID, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func (s State) clone() State { return maps.Clone(s) }

// Edge is one branch of an invocation.
type Edge struct {
	Target  sierra.StatementIdx
	Results []sierra.VarID
	Types   []sierra.TypeID
}

// Node is a reachable statement.
type Node struct {
	Idx     sierra.StatementIdx
	Stmt    *sierra.Statement
	Libfunc registry.ConcreteLibfunc // nil for return
	State   State                    // before the statement
	Edges   []Edge
	// Remaining are the variables untouched by the statement.
	Remaining State
}

// IsReturn reports return statements.
func (n *Node) IsReturn() bool { return n.Stmt.Kind == sierra.StmtReturn }

// Graph is the statement graph of one function.
type Graph struct {
	Function *sierra.Function
	Order    []sierra.StatementIdx
	Nodes    map[sierra.StatementIdx]*Node
	Preds    map[sierra.StatementIdx][]sierra.StatementIdx
}

// Node returns the node of a reachable statement.
func (g *Graph) Node(idx sierra.StatementIdx) *Node { return g.Nodes[idx] }

// Build walks fn from its entry, checking that every statement consumes
// live variables of the expected types and that all incoming states agree.
func Build(r *registry.Registry, fn *sierra.Function) (*Graph, error) {
	p := r.Program()
	g := &Graph{
		Function: fn,
		Nodes:    make(map[sierra.StatementIdx]*Node),
		Preds:    make(map[sierra.StatementIdx][]sierra.StatementIdx),
	}
	fail := func(kind errs.EditStateKind, at sierra.StatementIdx, v sierra.VarID, format string, args ...any) error {
		return &errs.EditStateError{
			Kind:      kind,
			Function:  fn.ID.String(),
			Statement: int(at),
			Var:       uint64(v),
			Detail:    fmt.Sprintf(format, args...),
		}
	}

	initial := make(State, len(fn.Params))
	for _, prm := range fn.Params {
		if _, dup := initial[prm.ID]; dup {
			return nil, fail(errs.EditVariableOverride, fn.Entry, prm.ID, "parameter declared twice")
		}
		initial[prm.ID] = prm.Type
	}

	states := map[sierra.StatementIdx]State{fn.Entry: initial}
	work := []sierra.StatementIdx{fn.Entry}
	for len(work) > 0 {
		idx := work[len(work)-1]
		work = work[:len(work)-1]
		if _, done := g.Nodes[idx]; done {
			continue
		}
		st, ok := p.Statement(idx)
		if !ok {
			return nil, fail(errs.EditInconsistentState, idx, 0, "statement out of range")
		}
		node := &Node{Idx: idx, Stmt: st, State: states[idx]}
		g.Nodes[idx] = node

		if st.Kind == sierra.StmtReturn {
			if err := checkReturn(node, fn, fail); err != nil {
				return nil, err
			}
			continue
		}

		inv := &st.Invocation
		lf, err := r.Libfunc(inv.Libfunc)
		if err != nil {
			return nil, err
		}
		node.Libfunc = lf
		sig := lf.Signature()
		if len(inv.Args) != len(sig.Params) {
			return nil, fail(errs.EditTypeMismatch, idx, 0, "%s takes %d arguments, got %d", inv.Libfunc, len(sig.Params), len(inv.Args))
		}
		if len(inv.Branches) != len(sig.Branches) {
			return nil, fail(errs.EditTypeMismatch, idx, 0, "%s has %d branches, got %d", inv.Libfunc, len(sig.Branches), len(inv.Branches))
		}
		remaining := node.State.clone()
		for ai, a := range inv.Args {
			t, live := remaining[a]
			if !live {
				return nil, fail(errs.EditMissingVariable, idx, a, "argument %d of %s is not live", ai, inv.Libfunc)
			}
			if t.ID != sig.Params[ai].ID {
				return nil, fail(errs.EditTypeMismatch, idx, a, "argument %d of %s has type %s, want %s", ai, inv.Libfunc, t, sig.Params[ai])
			}
			delete(remaining, a)
		}
		node.Remaining = remaining

		for bi, br := range inv.Branches {
			bs := sig.Branches[bi]
			if len(br.Results) != len(bs.Vars) {
				return nil, fail(errs.EditTypeMismatch, idx, 0, "branch %d of %s yields %d values, got %d", bi, inv.Libfunc, len(bs.Vars), len(br.Results))
			}
			next := remaining.clone()
			for ri, v := range br.Results {
				if _, live := next[v]; live {
					return nil, fail(errs.EditVariableOverride, idx, v, "branch %d overrides a live variable", bi)
				}
				next[v] = bs.Vars[ri]
			}
			to := br.Target.Resolve(idx)
			if _, ok := p.Statement(to); !ok {
				return nil, fail(errs.EditInconsistentState, idx, 0, "branch %d jumps to missing statement %d", bi, to)
			}
			node.Edges = append(node.Edges, Edge{Target: to, Results: br.Results, Types: bs.Vars})
			g.Preds[to] = append(g.Preds[to], idx)
			if prev, seen := states[to]; seen {
				if !sameState(prev, next) {
					return nil, fail(errs.EditInconsistentState, to, 0, "state from statement %d differs from an earlier one", idx)
				}
				continue
			}
			states[to] = next
			work = append(work, to)
		}
	}

	for idx := range g.Nodes {
		g.Order = append(g.Order, idx)
	}
	slices.Sort(g.Order)
	return g, nil
}

func checkReturn(node *Node, fn *sierra.Function, fail func(errs.EditStateKind, sierra.StatementIdx, sierra.VarID, string, ...any) error) error {
	vars := node.Stmt.Return
	if len(vars) != len(fn.Signature.RetTypes) {
		return fail(errs.EditTypeMismatch, node.Idx, 0, "returns %d values, want %d", len(vars), len(fn.Signature.RetTypes))
	}
	left := node.State.clone()
	for i, v := range vars {
		t, live := left[v]
		if !live {
			return fail(errs.EditMissingVariable, node.Idx, v, "returned variable is not live")
		}
		if t.ID != fn.Signature.RetTypes[i].ID {
			return fail(errs.EditTypeMismatch, node.Idx, v, "return value %d has type %s, want %s", i, t, fn.Signature.RetTypes[i])
		}
		delete(left, v)
	}
	if len(left) > 0 {
		v := left.Vars()[0]
		return fail(errs.EditUnconsumedVariable, node.Idx, v, "%d variables left unconsumed", len(left))
	}
	return nil
}

func sameState(a, b State) bool {
	if len(a) != len(b) {
		return false
	}
	for v, t := range a {
		if u, ok := b[v]; !ok || u.ID != t.ID {
			return false
		}
	}
	return true
}
