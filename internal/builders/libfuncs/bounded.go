package libfuncs

import (
	"math/big"

	"sierranative/internal/errs"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// boundedType resolves bounded_int<lo, hi>, which the program must declare.
func boundedType(ctx *registry.SpecializationContext, lo, hi *big.Int) (sierra.TypeID, registry.TypeInfo, error) {
	t, err := ctx.FindType("bounded_int", sierra.ValueArg(lo), sierra.ValueArg(hi))
	if err != nil {
		return t, registry.TypeInfo{}, err
	}
	info, err := ctx.TypeInfo(t)
	return t, info, err
}

// rangedOperands checks two integer operands with known ranges.
func rangedOperands(ctx *registry.SpecializationContext, args []sierra.GenericArg) (a, b sierra.TypeID, ai, bi registry.TypeInfo, err error) {
	if a, b, ai, bi, err = twoTypeArgs(ctx, args); err != nil {
		return
	}
	for _, op := range []struct {
		t    sierra.TypeID
		info registry.TypeInfo
	}{{a, ai}, {b, bi}} {
		if err = requireInteger(ctx, op.t, op.info); err != nil {
			return
		}
		if op.info.Kind == registry.TypeFelt252 {
			err = &errs.SierraAssertError{Kind: errs.SierraAssertCast, Type: op.t.String(), Detail: "felt252 has no bounded range"}
			return
		}
	}
	return
}

// boundedArith returns the factory of a range-tracking binary operation
// whose result range is computed by bounds.
func boundedArith(generic string, code target.Code, bounds func(a, b registry.TypeInfo) (lo, hi *big.Int)) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		a, b, ai, bi, err := rangedOperands(ctx, args)
		if err != nil {
			return nil, err
		}
		lo, hi := bounds(ai, bi)
		out, oi, err := boundedType(ctx, lo, hi)
		if err != nil {
			return nil, err
		}
		return simple(generic, types(a, b), types(out), func(c *registry.LibfuncContext) error {
			r := c.B.Binary(code, widen(c, c.Args[0], ai), widen(c, c.Args[1], bi))
			return c.Br(0, narrow(c, r, oi))
		}), nil
	}
}

func add(x, y *big.Int) *big.Int { return new(big.Int).Add(x, y) }
func sub(x, y *big.Int) *big.Int { return new(big.Int).Sub(x, y) }
func mul(x, y *big.Int) *big.Int { return new(big.Int).Mul(x, y) }

func minMax(vs ...*big.Int) (lo, hi *big.Int) {
	lo, hi = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v.Cmp(lo) < 0 {
			lo = v
		}
		if v.Cmp(hi) > 0 {
			hi = v
		}
	}
	return lo, hi
}

var (
	BoundedIntAdd = boundedArith("bounded_int_add", target.OpAdd, func(a, b registry.TypeInfo) (*big.Int, *big.Int) {
		return add(a.Lo, b.Lo), add(a.Hi, b.Hi)
	})
	BoundedIntSub = boundedArith("bounded_int_sub", target.OpSub, func(a, b registry.TypeInfo) (*big.Int, *big.Int) {
		return sub(a.Lo, b.Hi), sub(a.Hi, b.Lo)
	})
	BoundedIntMul = boundedArith("bounded_int_mul", target.OpMul, func(a, b registry.TypeInfo) (*big.Int, *big.Int) {
		return minMax(mul(a.Lo, b.Lo), mul(a.Lo, b.Hi), mul(a.Hi, b.Lo), mul(a.Hi, b.Hi))
	})
)

// BoundedIntDivRem is bounded_int_div_rem<A, B> over non-negative ranges.
func BoundedIntDivRem(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	a, b, ai, bi, err := rangedOperands(ctx, args)
	if err != nil {
		return nil, err
	}
	if ai.Lo.Sign() < 0 || bi.Lo.Sign() < 0 || bi.Hi.Sign() == 0 {
		return nil, ctx.Invalid("div_rem needs a non-negative dividend and a positive divisor range")
	}
	one := big.NewInt(1)
	minDivisor := bi.Lo
	if minDivisor.Sign() == 0 {
		minDivisor = one
	}
	q, qi, err := boundedType(ctx, new(big.Int).Quo(ai.Lo, bi.Hi), new(big.Int).Quo(ai.Hi, minDivisor))
	if err != nil {
		return nil, err
	}
	rHi := sub(bi.Hi, one)
	if ai.Hi.Cmp(rHi) < 0 {
		rHi = ai.Hi
	}
	r, ri, err := boundedType(ctx, new(big.Int), rHi)
	if err != nil {
		return nil, err
	}
	rc, err := ctx.FindType("RangeCheck")
	if err != nil {
		return nil, err
	}
	nz, err := wrap(ctx, "NonZero", b)
	if err != nil {
		return nil, err
	}
	return simple("bounded_int_div_rem", types(rc, a, nz), types(rc, q, r), func(c *registry.LibfuncContext) error {
		x, y := widen(c, c.Args[1], ai), widen(c, c.Args[2], bi)
		counter := bump(c, c.Args[0], 1)
		return c.Br(0, counter, narrow(c, c.B.UDiv(x, y), qi), narrow(c, c.B.URem(x, y), ri))
	}), nil
}

// BoundedIntConstrain is bounded_int_constrain<T, boundary>: values below
// the boundary take the first branch.
func BoundedIntConstrain(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 2); err != nil {
		return nil, err
	}
	t, err := ctx.TypeArg(args, 0)
	if err != nil {
		return nil, err
	}
	info, err := ctx.TypeInfo(t)
	if err != nil {
		return nil, err
	}
	if err := requireInteger(ctx, t, info); err != nil {
		return nil, err
	}
	boundary, err := ctx.ValueArg(args, 1)
	if err != nil {
		return nil, err
	}
	if boundary.Cmp(info.Lo) <= 0 || boundary.Cmp(info.Hi) > 0 {
		return nil, ctx.Invalid("boundary %s outside (%s, %s]", boundary, info.Lo, info.Hi)
	}
	below, bi, err := boundedType(ctx, info.Lo, sub(boundary, big.NewInt(1)))
	if err != nil {
		return nil, err
	}
	above, ai, err := boundedType(ctx, boundary, info.Hi)
	if err != nil {
		return nil, err
	}
	rc, err := ctx.FindType("RangeCheck")
	if err != nil {
		return nil, err
	}
	return branching("bounded_int_constrain", types(rc, t), []registry.BranchSignature{branch(rc, below), branch(rc, above)},
		func(c *registry.LibfuncContext) error {
			b := c.B
			counter := bump(c, c.Args[0], 1)
			w := widen(c, c.Args[1], info)
			isBelow := b.ICmp(target.PredSLT, w, b.Const(target.I256, boundary))
			return c.CondBr(isBelow,
				0, []target.ValueID{counter, narrow(c, w, bi)},
				1, []target.ValueID{counter, narrow(c, w, ai)})
		}), nil
}

// BoundedIntIsZero is bounded_int_is_zero<T>.
func BoundedIntIsZero(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := requireInteger(ctx, t, info); err != nil {
		return nil, err
	}
	nz, err := wrap(ctx, "NonZero", t)
	if err != nil {
		return nil, err
	}
	return branching("bounded_int_is_zero", types(t), []registry.BranchSignature{branch(), branch(nz)},
		func(c *registry.LibfuncContext) error {
			w := widen(c, c.Args[0], info)
			zero := c.B.ICmp(target.PredEQ, w, c.B.ConstU64(target.I256, 0))
			return c.CondBr(zero, 0, nil, 1, c.Args)
		}), nil
}

// BoundedIntWrapNonZero is bounded_int_wrap_non_zero<T> for ranges that
// exclude zero.
func BoundedIntWrapNonZero(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := requireInteger(ctx, t, info); err != nil {
		return nil, err
	}
	if info.Lo.Sign() <= 0 && info.Hi.Sign() >= 0 {
		return nil, ctx.Invalid("range [%s, %s] contains zero", info.Lo, info.Hi)
	}
	nz, err := wrap(ctx, "NonZero", t)
	if err != nil {
		return nil, err
	}
	return simple("bounded_int_wrap_non_zero", types(t), types(nz), forward), nil
}
