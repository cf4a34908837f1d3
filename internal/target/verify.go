package target

import (
	"errors"
	"fmt"
)

// Verify checks module invariants: terminated blocks, existing targets,
// matching block argument arity and types, single definition of every value
// and consistent op typing.
func Verify(m *Module) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := verifyFunc(m, f); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

func verifyFunc(m *Module, f *Func) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	entry := f.Block(f.Entry)
	if entry == nil {
		return fmt.Errorf("missing entry block bb%d", f.Entry)
	}
	if len(entry.Params) != len(f.Params) {
		add("entry block has %d params, function has %d", len(entry.Params), len(f.Params))
	}
	for i, p := range entry.Params {
		if i < len(f.Params) && f.TypeOf(p) != f.Params[i] {
			add("entry param %d type %s, want %s", i, f.TypeOf(p), f.Params[i])
		}
	}

	defined := make([]bool, len(f.Values))
	define := func(bb BlockID, v ValueID) {
		if v < 0 || int(v) >= len(f.Values) {
			add("bb%d: value %%%d out of range", bb, v)
			return
		}
		if defined[v] {
			add("bb%d: value %%%d defined twice", bb, v)
		}
		defined[v] = true
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for _, p := range bb.Params {
			define(bb.ID, p)
		}
		for _, op := range bb.Ops {
			for _, r := range op.Results {
				define(bb.ID, r)
			}
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if bb.ID != BlockID(i) { //nolint:gosec // bounded by block count
			add("block at index %d has id bb%d", i, bb.ID)
		}
		for oi := range bb.Ops {
			op := &bb.Ops[oi]
			for _, a := range op.Args {
				if a < 0 || int(a) >= len(defined) || !defined[a] {
					add("bb%d: %s uses undefined value %%%d", bb.ID, op.Code, a)
				}
			}
			if err := verifyOp(m, f, op); err != nil {
				add("bb%d: %w", bb.ID, err)
			}
		}
		if !bb.Terminated() {
			add("bb%d is not terminated", bb.ID)
			continue
		}
		for _, u := range bb.Term.Uses() {
			if *u < 0 || int(*u) >= len(defined) || !defined[*u] {
				add("bb%d: terminator uses undefined value %%%d", bb.ID, *u)
			}
		}
		for _, e := range bb.Term.Edges() {
			target := f.Block(e.Target)
			if target == nil {
				add("bb%d: jump to missing block bb%d", bb.ID, e.Target)
				continue
			}
			if len(e.Args) != len(target.Params) {
				add("bb%d: jump to bb%d passes %d args, want %d", bb.ID, e.Target, len(e.Args), len(target.Params))
				continue
			}
			for ai, a := range e.Args {
				if f.TypeOf(a) != f.TypeOf(target.Params[ai]) {
					add("bb%d: jump to bb%d arg %d has type %s, want %s", bb.ID, e.Target, ai, f.TypeOf(a), f.TypeOf(target.Params[ai]))
				}
			}
		}
		switch bb.Term.Kind {
		case TermCondBr:
			if f.TypeOf(bb.Term.CondBr.Cond) != I1 {
				add("bb%d: condition is %s, want i1", bb.ID, f.TypeOf(bb.Term.CondBr.Cond))
			}
		case TermSwitch:
			if !f.TypeOf(bb.Term.Switch.Value).IsInt() {
				add("bb%d: switch on non-integer", bb.ID)
			}
		case TermReturn:
			vals := bb.Term.Return.Values
			if len(vals) != len(f.Results) {
				add("bb%d: returns %d values, want %d", bb.ID, len(vals), len(f.Results))
				break
			}
			for ri, v := range vals {
				if f.TypeOf(v) != f.Results[ri] {
					add("bb%d: result %d has type %s, want %s", bb.ID, ri, f.TypeOf(v), f.Results[ri])
				}
			}
		}
	}
	return errors.Join(errs...)
}

func verifyOp(m *Module, f *Func, op *Op) error {
	argT := func(i int) Type {
		if i >= len(op.Args) {
			return Type{}
		}
		return f.TypeOf(op.Args[i])
	}
	want := func(n int) error {
		if len(op.Args) != n {
			return fmt.Errorf("%s takes %d operands, got %d", op.Code, n, len(op.Args))
		}
		return nil
	}
	switch {
	case op.Code == OpConst:
		if len(op.Imm) != op.Type.StoreSize() {
			return fmt.Errorf("const image is %d bytes, %s needs %d", len(op.Imm), op.Type, op.Type.StoreSize())
		}
	case op.Code.IsBinary():
		if err := want(2); err != nil {
			return err
		}
		if !argT(0).IsInt() || argT(0) != argT(1) || op.Type != argT(0) {
			return fmt.Errorf("%s operand types %s, %s", op.Code, argT(0), argT(1))
		}
	case op.Code.IsModular():
		if err := want(3); err != nil {
			return err
		}
		if !argT(0).IsInt() || argT(0) != argT(1) || argT(1) != argT(2) {
			return fmt.Errorf("%s operand types differ", op.Code)
		}
	case op.Code == OpICmp:
		if err := want(2); err != nil {
			return err
		}
		if argT(0) != argT(1) || argT(0).IsBlob() {
			return fmt.Errorf("icmp operand types %s, %s", argT(0), argT(1))
		}
	case op.Code == OpSelect:
		if err := want(3); err != nil {
			return err
		}
		if argT(0) != I1 || argT(1) != argT(2) {
			return fmt.Errorf("select operand types %s, %s, %s", argT(0), argT(1), argT(2))
		}
	case op.Code == OpZExt || op.Code == OpSExt:
		if !argT(0).IsInt() || !op.Type.IsInt() || op.Type.Bits < argT(0).Bits {
			return fmt.Errorf("%s from %s to %s", op.Code, argT(0), op.Type)
		}
	case op.Code == OpTrunc:
		if !argT(0).IsInt() || !op.Type.IsInt() || op.Type.Bits > argT(0).Bits {
			return fmt.Errorf("trunc from %s to %s", argT(0), op.Type)
		}
	case op.Code == OpBitcast:
		if argT(0).StoreSize() != op.Type.StoreSize() {
			return fmt.Errorf("bitcast from %s to %s changes size", argT(0), op.Type)
		}
	case op.Code == OpExtract:
		if !argT(0).IsBlob() || op.Offset < 0 || op.Offset+op.Type.StoreSize() > argT(0).Size {
			return fmt.Errorf("extract %s at %d from %s", op.Type, op.Offset, argT(0))
		}
	case op.Code == OpInsert:
		if err := want(2); err != nil {
			return err
		}
		if !argT(0).IsBlob() || op.Offset < 0 || op.Offset+argT(1).StoreSize() > argT(0).Size {
			return fmt.Errorf("insert %s at %d into %s", argT(1), op.Offset, argT(0))
		}
	case op.Code == OpLoad || op.Code == OpPtrAdd || op.Code == OpRealloc:
		if !argT(0).IsPtr() {
			return fmt.Errorf("%s through %s", op.Code, argT(0))
		}
	case op.Code == OpStore || op.Code == OpMemcpy:
		if !argT(0).IsPtr() {
			return fmt.Errorf("%s through %s", op.Code, argT(0))
		}
	case op.Code == OpCall:
		callee, ok := m.Func(op.Callee)
		if !ok {
			return fmt.Errorf("call to unknown function %s", op.Callee)
		}
		return checkSignature(f, op, callee.Params, callee.Results)
	case op.Code == OpRuntimeCall:
		d, ok := m.RuntimeDecl(op.Callee)
		if !ok {
			return fmt.Errorf("call to undeclared runtime function %s", op.Callee)
		}
		return checkSignature(f, op, d.Params, d.Results)
	}
	return nil
}

func checkSignature(f *Func, op *Op, params, results []Type) error {
	if len(op.Args) != len(params) || len(op.Results) != len(results) {
		return fmt.Errorf("call %s: %d args/%d results, want %d/%d", op.Callee, len(op.Args), len(op.Results), len(params), len(results))
	}
	for i, a := range op.Args {
		if f.TypeOf(a) != params[i] {
			return fmt.Errorf("call %s: arg %d is %s, want %s", op.Callee, i, f.TypeOf(a), params[i])
		}
	}
	for i, r := range op.Results {
		if f.TypeOf(r) != results[i] {
			return fmt.Errorf("call %s: result %d is %s, want %s", op.Callee, i, f.TypeOf(r), results[i])
		}
	}
	return nil
}
