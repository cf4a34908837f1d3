package llvm

import (
	"fmt"
	"strings"

	"sierranative/internal/target"
)

func (fe *funcEmitter) emitTerminator(term *target.Terminator) error {
	switch term.Kind {
	case target.TermReturn:
		if err := fe.emitReturn(term.Return.Values); err != nil {
			return err
		}
	case target.TermBr:
		if err := fe.storeEdge(&term.Br); err != nil {
			return err
		}
		fe.line("br label %%bb%d", term.Br.Target)
	case target.TermCondBr:
		c, _, err := fe.operand(term.CondBr.Cond)
		if err != nil {
			return err
		}
		fe.line("br i1 %s, label %%%s, label %%%s", c, fe.edgeTarget(&term.CondBr.Then), fe.edgeTarget(&term.CondBr.Else))
	case target.TermSwitch:
		if err := fe.emitSwitch(&term.Switch); err != nil {
			return err
		}
	case target.TermTrap:
		msg := "null"
		if term.Trap.Msg != "" {
			msg = fe.emitter.message(term.Trap.Msg)
		}
		fe.line("call void @%s(i32 %d, ptr %s)", rtTrap, term.Trap.Code, msg)
		fe.line("unreachable")
	default:
		return fmt.Errorf("unsupported terminator kind %d", term.Kind)
	}
	return fe.flushEdges()
}

func (fe *funcEmitter) emitReturn(values []target.ValueID) error {
	sig := fe.emitter.funcSigs[fe.f.Name]
	switch len(values) {
	case 0:
		fe.line("ret void")
		return nil
	case 1:
		v, err := fe.typed(values[0])
		if err != nil {
			return err
		}
		fe.line("ret %s", v)
		return nil
	}
	agg := "undef"
	for i, v := range values {
		tv, err := fe.typed(v)
		if err != nil {
			return err
		}
		next := fe.nextTemp()
		fe.line("%s = insertvalue %s %s, %s, %d", next, sig.ret, agg, tv, i)
		agg = next
	}
	fe.line("ret %s %s", sig.ret, agg)
	return nil
}

func (fe *funcEmitter) emitSwitch(sw *target.SwitchTerm) error {
	v, ty, err := fe.operand(sw.Value)
	if err != nil {
		return err
	}
	bits := fe.f.TypeOf(sw.Value).Bits
	var cases []string
	seen := make(map[uint64]bool, len(sw.Cases))
	for i := range sw.Cases {
		c := &sw.Cases[i]
		// The first case for a value wins; values wider than the
		// scrutinee never match.
		if seen[c.Value] || (bits < 64 && c.Value>>uint(bits) != 0) { //nolint:gosec // bits in [1, 64)
			continue
		}
		seen[c.Value] = true
		cases = append(cases, fmt.Sprintf("%s %d, label %%%s", ty, c.Value, fe.edgeTarget(&c.Edge)))
	}
	fe.line("switch %s %s, label %%%s [%s]", ty, v, fe.edgeTarget(&sw.Default), strings.Join(cases, " "))
	return nil
}

// edgeTarget returns the label to branch to for e. Edges carrying values
// get a block of their own that stores them and jumps on.
func (fe *funcEmitter) edgeTarget(e *target.Edge) string {
	if len(e.Args) == 0 {
		return fmt.Sprintf("bb%d", e.Target)
	}
	label := fe.nextLabel("edge")
	fe.pending = append(fe.pending, pendingEdge{label: label, edge: *e})
	return label
}

func (fe *funcEmitter) flushEdges() error {
	pending := fe.pending
	fe.pending = nil
	for i := range pending {
		fe.label(pending[i].label)
		if err := fe.storeEdge(&pending[i].edge); err != nil {
			return err
		}
		fe.line("br label %%bb%d", pending[i].edge.Target)
	}
	return nil
}

func (fe *funcEmitter) storeEdge(e *target.Edge) error {
	dst := fe.f.Block(e.Target)
	if dst == nil {
		return fmt.Errorf("branch to missing block %d", e.Target)
	}
	if len(e.Args) != len(dst.Params) {
		return fmt.Errorf("bb%d takes %d values, edge passes %d", e.Target, len(dst.Params), len(e.Args))
	}
	for i, a := range e.Args {
		v, err := fe.typed(a)
		if err != nil {
			return err
		}
		p := dst.Params[i]
		fe.line("store %s, ptr %s, align %d", v, fe.slots[p], fe.f.TypeOf(p).AlignOf())
	}
	return nil
}
