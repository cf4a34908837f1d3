package jit

import (
	"fmt"

	"sierranative/internal/errs"
	"sierranative/internal/target"
)

func (p *Program) compileOp(fn *function, op *target.Op) (opFn, error) {
	f := fn.src
	res := func(i int) target.ValueID { return op.Results[i] }
	arg := func(i int) target.ValueID { return op.Args[i] }

	switch {
	case op.Code == target.OpConst:
		img := Value(append([]byte(nil), op.Imm...))
		img = normalize(op.Type, img)
		r := res(0)
		return func(fr *frame) error { fr.regs[r] = img; return nil }, nil

	case op.Code == target.OpZero:
		zero := Zero(op.Type)
		r := res(0)
		return func(fr *frame) error { fr.regs[r] = zero; return nil }, nil

	case op.Code.IsBinary():
		code, bits, t := op.Code, f.TypeOf(arg(0)).Bits, op.Type
		x, y, r := arg(0), arg(1), res(0)
		name := fn.name
		return func(fr *frame) error {
			a, b := fr.regs[x].Uint256(), fr.regs[y].Uint256()
			z, ok := target.EvalBinary(code, bits, &a, &b)
			if !ok {
				return trapf(target.TrapAssert, name, "%s by zero", code)
			}
			fr.regs[r] = IntValue(t, &z)
			return nil
		}, nil

	case op.Code.IsModular():
		code, t := op.Code, op.Type
		x, y, m, r := arg(0), arg(1), arg(2), res(0)
		name := fn.name
		return func(fr *frame) error {
			a, b, mod := fr.regs[x].Uint256(), fr.regs[y].Uint256(), fr.regs[m].Uint256()
			z, ok := target.EvalModular(code, t.Bits, &a, &b, &mod)
			if !ok {
				return trapf(target.TrapAssert, name, "%s with zero modulus", code)
			}
			fr.regs[r] = IntValue(t, &z)
			return nil
		}, nil

	case op.Code == target.OpICmp:
		pred, bits := op.Pred, f.TypeOf(arg(0)).Bits
		x, y, r := arg(0), arg(1), res(0)
		return func(fr *frame) error {
			a, b := fr.regs[x].Uint256(), fr.regs[y].Uint256()
			fr.regs[r] = BoolValue(target.EvalICmp(pred, bits, &a, &b))
			return nil
		}, nil

	case op.Code == target.OpSelect:
		c, x, y, r := arg(0), arg(1), arg(2), res(0)
		return func(fr *frame) error {
			if fr.regs[c].Bool() {
				fr.regs[r] = fr.regs[x]
			} else {
				fr.regs[r] = fr.regs[y]
			}
			return nil
		}, nil

	case op.Code.IsCast():
		return compileCast(f, op)

	case op.Code == target.OpExtract:
		agg, off, t, r := arg(0), op.Offset, op.Type, res(0)
		size := t.StoreSize()
		return func(fr *frame) error {
			fr.regs[r] = normalize(t, fr.regs[agg][off:off+size])
			return nil
		}, nil

	case op.Code == target.OpInsert:
		agg, val, off, r := arg(0), arg(1), op.Offset, res(0)
		return func(fr *frame) error {
			out := append(Value(nil), fr.regs[agg]...)
			copy(out[off:], fr.regs[val])
			fr.regs[r] = out
			return nil
		}, nil

	case op.Code == target.OpAlloc:
		size, r := arg(0), res(0)
		return func(fr *frame) error {
			ptr, err := fr.env.Mem.Alloc(fr.regs[size].U64())
			if err != nil {
				return err
			}
			fr.regs[r] = PtrValue(ptr)
			return nil
		}, nil

	case op.Code == target.OpRealloc:
		ptr, oldSize, newSize, r := arg(0), arg(1), arg(2), res(0)
		return func(fr *frame) error {
			moved, err := fr.env.Mem.Realloc(fr.regs[ptr].U64(), fr.regs[oldSize].U64(), fr.regs[newSize].U64())
			if err != nil {
				return err
			}
			fr.regs[r] = PtrValue(moved)
			return nil
		}, nil

	case op.Code == target.OpLoad:
		ptr, t, r := arg(0), op.Type, res(0)
		size := uint64(t.StoreSize()) //nolint:gosec // store sizes are small and positive
		return func(fr *frame) error {
			data, err := fr.env.Mem.Read(fr.regs[ptr].U64(), size)
			if err != nil {
				return err
			}
			fr.regs[r] = normalize(t, data)
			return nil
		}, nil

	case op.Code == target.OpStore:
		ptr, val := arg(0), arg(1)
		return func(fr *frame) error {
			return fr.env.Mem.Write(fr.regs[ptr].U64(), fr.regs[val])
		}, nil

	case op.Code == target.OpMemcpy:
		dst, src, n := arg(0), arg(1), arg(2)
		return func(fr *frame) error {
			return fr.env.Mem.Copy(fr.regs[dst].U64(), fr.regs[src].U64(), fr.regs[n].U64())
		}, nil

	case op.Code == target.OpPtrAdd:
		ptr, off, r := arg(0), arg(1), res(0)
		return func(fr *frame) error {
			fr.regs[r] = PtrValue(fr.regs[ptr].U64() + fr.regs[off].U64())
			return nil
		}, nil

	case op.Code == target.OpCall:
		callee, ok := p.funcs[op.Callee]
		if !ok {
			return nil, fmt.Errorf("call to undefined function %q", op.Callee)
		}
		args, results := op.Args, op.Results
		return func(fr *frame) error {
			in := make([]Value, len(args))
			for i, a := range args {
				in[i] = fr.regs[a]
			}
			out, err := fr.prog.run(fr.env, callee, in, fr.depth+1)
			if err != nil {
				if t, ok := err.(*Trap); ok {
					t.Backtrace = append(t.Backtrace, fr.fn.name)
				}
				return err
			}
			for i, r := range results {
				fr.regs[r] = out[i]
			}
			return nil
		}, nil

	case op.Code == target.OpRuntimeCall:
		decl, ok := p.module.RuntimeDecl(op.Callee)
		if !ok {
			return nil, fmt.Errorf("runtime function %q is not declared", op.Callee)
		}
		args, results := op.Args, op.Results
		return func(fr *frame) error {
			impl, ok := fr.env.Runtime[decl.Name]
			if !ok {
				return &UnresolvedError{Name: decl.Name}
			}
			in := make([]Value, len(args))
			for i, a := range args {
				in[i] = fr.regs[a]
			}
			out, err := impl(fr.env, in)
			if err != nil {
				return err
			}
			if len(out) != len(results) {
				return fmt.Errorf("jit: runtime %s returned %d values, want %d", decl.Name, len(out), len(results))
			}
			for i, r := range results {
				t := decl.Results[i]
				if len(out[i]) != t.StoreSize() {
					return fmt.Errorf("jit: runtime %s result %d is %d bytes, want %s", decl.Name, i, len(out[i]), t)
				}
				fr.regs[r] = normalize(t, out[i])
			}
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported op %s", op.Code)
}

func compileCast(f *target.Func, op *target.Op) (opFn, error) {
	from, to := f.TypeOf(op.Args[0]), op.Type
	x, r, code := op.Args[0], op.Results[0], op.Code
	if !from.IsInt() || !to.IsInt() {
		size := to.StoreSize()
		return func(fr *frame) error {
			out := make(Value, size)
			copy(out, fr.regs[x])
			fr.regs[r] = out
			return nil
		}, nil
	}
	return func(fr *frame) error {
		v := fr.regs[x].Uint256()
		z := target.EvalCast(code, from.Bits, to.Bits, &v)
		fr.regs[r] = IntValue(to, &z)
		return nil
	}, nil
}

// UnresolvedError is a runtime call the Env does not provide.
type UnresolvedError struct {
	Name string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("jit: runtime function %s is not bound", e.Name)
}

func (e *UnresolvedError) ErrorKind() errs.Kind { return errs.KindLink }
