package llvm

import (
	"fmt"
	"strings"

	"sierranative/internal/target"
)

// wideBits holds the intermediate results of modular arithmetic.
const wideBits = 2 * target.MaxIntBits

func (fe *funcEmitter) emitOp(op *target.Op) error {
	f := fe.f
	switch {
	case op.Code == target.OpConst, op.Code == target.OpZero:
		return nil
	case op.Code.IsBinary():
		return fe.emitBinary(op)
	case op.Code.IsModular():
		return fe.emitModular(op)
	case op.Code.IsCast():
		return fe.emitCast(op)
	}

	var r string
	if len(op.Results) > 0 {
		r = fe.vals[op.Results[0]]
	}
	switch op.Code {
	case target.OpICmp:
		x, ty, err := fe.operand(op.Args[0])
		if err != nil {
			return err
		}
		y, _, err := fe.operand(op.Args[1])
		if err != nil {
			return err
		}
		fe.line("%s = icmp %s %s %s, %s", r, op.Pred, ty, x, y)

	case target.OpSelect:
		c, _, err := fe.operand(op.Args[0])
		if err != nil {
			return err
		}
		x, err := fe.typed(op.Args[1])
		if err != nil {
			return err
		}
		y, err := fe.typed(op.Args[2])
		if err != nil {
			return err
		}
		fe.line("%s = select i1 %s, %s, %s", r, c, x, y)

	case target.OpExtract:
		agg, err := fe.typed(op.Args[0])
		if err != nil {
			return err
		}
		ty, err := llvmType(op.Type)
		if err != nil {
			return err
		}
		aggT := f.TypeOf(op.Args[0])
		buf := fe.scratch(aggT.StoreSize(), aggT.AlignOf())
		fe.line("store %s, ptr %s, align %d", agg, buf, aggT.AlignOf())
		p := fe.nextTemp()
		fe.line("%s = getelementptr i8, ptr %s, i64 %d", p, buf, op.Offset)
		fe.line("%s = load %s, ptr %s, align 1", r, ty, p)

	case target.OpInsert:
		agg, err := fe.typed(op.Args[0])
		if err != nil {
			return err
		}
		val, err := fe.typed(op.Args[1])
		if err != nil {
			return err
		}
		aggT := f.TypeOf(op.Args[0])
		aggTy, _ := llvmType(aggT)
		buf := fe.scratch(aggT.StoreSize(), aggT.AlignOf())
		fe.line("store %s, ptr %s, align %d", agg, buf, aggT.AlignOf())
		p := fe.nextTemp()
		fe.line("%s = getelementptr i8, ptr %s, i64 %d", p, buf, op.Offset)
		fe.line("store %s, ptr %s, align 1", val, p)
		fe.line("%s = load %s, ptr %s, align %d", r, aggTy, buf, aggT.AlignOf())

	case target.OpAlloc:
		size, err := fe.i64(op.Args[0])
		if err != nil {
			return err
		}
		fe.line("%s = call ptr @%s(i64 %s, i64 16)", r, rtAlloc, size)

	case target.OpRealloc:
		ptr, _, err := fe.operand(op.Args[0])
		if err != nil {
			return err
		}
		oldSize, err := fe.i64(op.Args[1])
		if err != nil {
			return err
		}
		newSize, err := fe.i64(op.Args[2])
		if err != nil {
			return err
		}
		fe.line("%s = call ptr @%s(ptr %s, i64 %s, i64 %s, i64 16)", r, rtRealloc, ptr, oldSize, newSize)

	case target.OpLoad:
		ptr, _, err := fe.operand(op.Args[0])
		if err != nil {
			return err
		}
		ty, err := llvmType(op.Type)
		if err != nil {
			return err
		}
		fe.line("%s = load %s, ptr %s, align 1", r, ty, ptr)

	case target.OpStore:
		ptr, _, err := fe.operand(op.Args[0])
		if err != nil {
			return err
		}
		val, err := fe.typed(op.Args[1])
		if err != nil {
			return err
		}
		fe.line("store %s, ptr %s, align 1", val, ptr)

	case target.OpMemcpy:
		dst, _, err := fe.operand(op.Args[0])
		if err != nil {
			return err
		}
		src, _, err := fe.operand(op.Args[1])
		if err != nil {
			return err
		}
		n, err := fe.i64(op.Args[2])
		if err != nil {
			return err
		}
		fe.line("call void @%s(ptr %s, ptr %s, i64 %s)", rtMemcpy, dst, src, n)

	case target.OpPtrAdd:
		ptr, _, err := fe.operand(op.Args[0])
		if err != nil {
			return err
		}
		off, err := fe.i64(op.Args[1])
		if err != nil {
			return err
		}
		fe.line("%s = getelementptr i8, ptr %s, i64 %s", r, ptr, off)

	case target.OpCall:
		sig, ok := fe.emitter.funcSigs[op.Callee]
		if !ok {
			return fmt.Errorf("call to undefined function %q", op.Callee)
		}
		return fe.emitCall(globalName(op.Callee), sig, op)

	case target.OpRuntimeCall:
		sig, ok := fe.emitter.runtimeSigs[op.Callee]
		if !ok {
			return fmt.Errorf("runtime function %q is not declared", op.Callee)
		}
		return fe.emitCall(globalName(op.Callee), sig, op)

	default:
		return fmt.Errorf("unsupported op %s", op.Code)
	}
	return nil
}

func (fe *funcEmitter) emitBinary(op *target.Op) error {
	x, ty, err := fe.operand(op.Args[0])
	if err != nil {
		return err
	}
	y, _, err := fe.operand(op.Args[1])
	if err != nil {
		return err
	}
	bits := fe.f.TypeOf(op.Args[0]).Bits
	r := fe.vals[op.Results[0]]
	switch op.Code {
	case target.OpUDiv, target.OpURem, target.OpSDiv, target.OpSRem:
		fe.checkNonZero(ty, y)
		fe.line("%s = %s %s %s, %s", r, op.Code, ty, x, y)
	case target.OpShl, target.OpLShr:
		// Shifting by the width or more yields zero.
		inRange := fe.nextTemp()
		fe.line("%s = icmp ult %s %s, %d", inRange, ty, y, bits)
		shifted := fe.nextTemp()
		fe.line("%s = %s %s %s, %s", shifted, op.Code, ty, x, y)
		fe.line("%s = select i1 %s, %s %s, %s 0", r, inRange, ty, shifted, ty)
	case target.OpAShr:
		inRange := fe.nextTemp()
		fe.line("%s = icmp ult %s %s, %d", inRange, ty, y, bits)
		n := fe.nextTemp()
		fe.line("%s = select i1 %s, %s %s, %s %d", n, inRange, ty, y, ty, bits-1)
		fe.line("%s = ashr %s %s, %s", r, ty, x, n)
	default:
		fe.line("%s = %s %s %s, %s", r, op.Code, ty, x, y)
	}
	return nil
}

func (fe *funcEmitter) emitModular(op *target.Op) error {
	wide := fmt.Sprintf("i%d", wideBits)
	var in [3]string
	for i := range in {
		val, ty, err := fe.operand(op.Args[i])
		if err != nil {
			return err
		}
		in[i] = fe.nextTemp()
		fe.line("%s = zext %s %s to %s", in[i], ty, val, wide)
	}
	x, y, m := in[0], in[1], in[2]
	fe.checkNonZero(wide, m)

	bin := func(code, a, b string) string {
		t := fe.nextTemp()
		fe.line("%s = %s %s %s, %s", t, code, wide, a, b)
		return t
	}
	var w string
	switch op.Code {
	case target.OpAddMod:
		w = bin("urem", bin("add", x, y), m)
	case target.OpMulMod:
		w = bin("urem", bin("mul", x, y), m)
	case target.OpSubMod:
		a, b := bin("urem", x, m), bin("urem", y, m)
		w = bin("urem", bin("add", bin("sub", a, b), m), m)
	}
	ty, err := llvmType(op.Type)
	if err != nil {
		return err
	}
	fe.line("%s = trunc %s %s to %s", fe.vals[op.Results[0]], wide, w, ty)
	return nil
}

func (fe *funcEmitter) emitCast(op *target.Op) error {
	x, fromTy, err := fe.operand(op.Args[0])
	if err != nil {
		return err
	}
	from, to := fe.f.TypeOf(op.Args[0]), op.Type
	toTy, err := llvmType(to)
	if err != nil {
		return err
	}
	r := fe.vals[op.Results[0]]
	if !from.IsInt() || !to.IsInt() {
		// Reinterpret through memory, zero-filling a wider destination.
		size := max(from.StoreSize(), to.StoreSize())
		align := max(from.AlignOf(), to.AlignOf())
		buf := fe.scratch(size, align)
		fe.line("store [%d x i8] zeroinitializer, ptr %s, align %d", size, buf, align)
		fe.line("store %s %s, ptr %s, align %d", fromTy, x, buf, align)
		fe.line("%s = load %s, ptr %s, align %d", r, toTy, buf, align)
		return nil
	}
	var code string
	switch {
	case from.Bits == to.Bits:
		code = "bitcast"
	case to.Bits < from.Bits:
		code = "trunc"
	case op.Code == target.OpSExt:
		code = "sext"
	default:
		code = "zext"
	}
	fe.line("%s = %s %s %s to %s", r, code, fromTy, x, toTy)
	return nil
}

func (fe *funcEmitter) emitCall(callee string, sig funcSig, op *target.Op) error {
	if len(op.Args) != len(sig.params) {
		return fmt.Errorf("%s takes %d arguments, got %d", callee, len(sig.params), len(op.Args))
	}
	if len(op.Results) != len(sig.results) {
		return fmt.Errorf("%s returns %d values, got %d", callee, len(sig.results), len(op.Results))
	}
	args := make([]string, len(op.Args))
	for i, a := range op.Args {
		val, _, err := fe.operand(a)
		if err != nil {
			return err
		}
		args[i] = sig.params[i] + " " + val
	}
	call := fmt.Sprintf("call %s %s(%s)", sig.ret, callee, strings.Join(args, ", "))
	switch len(op.Results) {
	case 0:
		fe.line("%s", call)
	case 1:
		fe.line("%s = %s", fe.vals[op.Results[0]], call)
	default:
		agg := fe.nextTemp()
		fe.line("%s = %s", agg, call)
		for i, res := range op.Results {
			fe.line("%s = extractvalue %s %s, %d", fe.vals[res], sig.ret, agg, i)
		}
	}
	return nil
}
