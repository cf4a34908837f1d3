package gas

import (
	"fmt"

	"sierranative/internal/errs"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
)

var untracked apState

type apState struct {
	tracking bool
	known    bool
	n        int
}

func (s apState) String() string {
	switch {
	case !s.tracking:
		return "untracked"
	case !s.known:
		return "unknown"
	default:
		return fmt.Sprintf("ap+%d", s.n)
	}
}

func (a *analyzer) branchAp(lf registry.ConcreteLibfunc, callee uint64, isCall bool, b int, in apState) apState {
	out := in
	switch lf.Class() {
	case registry.ClassDisableApTracking:
		return apState{}
	case registry.ClassEnableApTracking:
		out.tracking = true
	}
	if !out.known {
		return out
	}
	ap := lf.Signature().Branches[b].ApChange
	switch ap.Kind {
	case registry.ApKnown:
		out.n += ap.N
	case registry.ApFromCallee:
		c, ok := a.md.ApChange[callee]
		if !isCall || a.recursive[callee] || !ok || c.Kind != registry.ApKnown {
			out.known, out.n = false, 0
		} else {
			out.n += c.N
		}
	default:
		out.known, out.n = false, 0
	}
	return out
}

// apChange follows the allocation pointer through fn. Joins of two tracked
// paths must agree; untracked paths make the merged state untracked.
func (a *analyzer) apChange(fn *sierra.Function) error {
	g := a.graphs[fn.ID.ID]
	states := map[sierra.StatementIdx]apState{fn.Entry: {tracking: true, known: true}}
	work := []sierra.StatementIdx{fn.Entry}
	for len(work) > 0 {
		idx := work[len(work)-1]
		work = work[:len(work)-1]
		node := g.Node(idx)
		if node.IsReturn() {
			continue
		}
		in := states[idx]
		callee, isCall := calleeOf(node)
		for b, e := range node.Edges {
			out := a.branchAp(node.Libfunc, callee, isCall, b, in)
			prev, seen := states[e.Target]
			switch {
			case !seen:
				states[e.Target] = out
			case prev == out:
				continue
			case prev.tracking && out.tracking:
				return &errs.GasMetadataError{
					Kind:      errs.GasInconsistentApChange,
					Function:  fn.ID.String(),
					Statement: int(e.Target),
					Detail:    fmt.Sprintf("%s from statement #%d, %s before", out, idx, prev),
				}
			case prev == untracked:
				continue
			default:
				states[e.Target] = untracked
			}
			work = append(work, e.Target)
		}
	}
	var rets []apState
	for _, idx := range g.Order {
		if g.Node(idx).IsReturn() {
			rets = append(rets, states[idx])
		}
	}

	result := registry.UnknownAp
	for i, s := range rets {
		if !s.tracking || !s.known || s.n != rets[0].n {
			result = registry.UnknownAp
			break
		}
		if i == 0 {
			result = registry.Known(s.n)
		}
	}
	a.md.ApChange[fn.ID.ID] = result
	return nil
}
