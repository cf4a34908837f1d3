package libfuncs

import (
	"math/big"
	"strconv"

	"sierranative/internal/metadata"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// intType resolves a fixed-width integer type by its generic id.
func intType(ctx *registry.SpecializationContext, name string) (sierra.TypeID, registry.TypeInfo, error) {
	t, err := ctx.FindType(name)
	if err != nil {
		return t, registry.TypeInfo{}, err
	}
	info, err := ctx.TypeInfo(t)
	return t, info, err
}

func uintName(bits int) string { return "u" + strconv.Itoa(bits) }
func sintName(bits int) string { return "i" + strconv.Itoa(bits) }

func primeValue(c *registry.LibfuncContext) *big.Int {
	return metadata.GetOrInsertWith(c.Metadata, metadata.NewPrimeModulo).Prime
}

// intBuilder builds a libfunc of an integer family member.
type intBuilder func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, info registry.TypeInfo) (registry.ConcreteLibfunc, error)

func intFactory(name string, build intBuilder) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		t, info, err := intType(ctx, name)
		if err != nil {
			return nil, err
		}
		return build(ctx, name, t, info)
	}
}

// IntConst returns the factory of <name>_const<v>.
func IntConst(name string) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 1); err != nil {
			return nil, err
		}
		v, err := ctx.ValueArg(args, 0)
		if err != nil {
			return nil, err
		}
		t, info, err := intType(ctx, name)
		if err != nil {
			return nil, err
		}
		if v.Cmp(info.Lo) < 0 || v.Cmp(info.Hi) > 0 {
			return nil, ctx.Invalid("%s out of range for %s", v, name)
		}
		return simple(name+"_const", nil, types(t), func(c *registry.LibfuncContext) error {
			return c.Br(0, c.B.Const(target.Int(info.Bits), v))
		}), nil
	}
}

// UintOverflowingAdd returns the factory of uN_overflowing_add. The wrapped
// result is produced on both branches; the overflow branch is second.
func UintOverflowingAdd(bits int) registry.LibfuncFactory {
	return uintOverflowing(uintName(bits), "_overflowing_add", func(b *target.Builder, x, y target.ValueID) (target.ValueID, target.ValueID) {
		sum := b.Add(x, y)
		return sum, b.ICmp(target.PredULT, sum, x)
	})
}

// UintOverflowingSub returns the factory of uN_overflowing_sub.
func UintOverflowingSub(bits int) registry.LibfuncFactory {
	return uintOverflowing(uintName(bits), "_overflowing_sub", func(b *target.Builder, x, y target.ValueID) (target.ValueID, target.ValueID) {
		return b.Sub(x, y), b.ICmp(target.PredULT, x, y)
	})
}

func uintOverflowing(name, suffix string, op func(b *target.Builder, x, y target.ValueID) (target.ValueID, target.ValueID)) registry.LibfuncFactory {
	return intFactory(name, func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, _ registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		rc, err := ctx.FindType("RangeCheck")
		if err != nil {
			return nil, err
		}
		return branching(name+suffix, types(rc, t, t), []registry.BranchSignature{branch(rc, t), branch(rc, t)},
			func(c *registry.LibfuncContext) error {
				counter := bump(c, c.Args[0], 1)
				v, overflow := op(c.B, c.Args[1], c.Args[2])
				out := []target.ValueID{counter, v}
				return c.CondBr(overflow, 1, out, 0, out)
			}), nil
	})
}

// IntEq returns the factory of <name>_eq: false first, then true.
func IntEq(name string) registry.LibfuncFactory {
	return intFactory(name, func(_ *registry.SpecializationContext, name string, t sierra.TypeID, _ registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		return branching(name+"_eq", types(t, t), []registry.BranchSignature{branch(), branch()},
			func(c *registry.LibfuncContext) error {
				return c.CondBr(c.B.ICmp(target.PredEQ, c.Args[0], c.Args[1]), 1, nil, 0, nil)
			}), nil
	})
}

func uintCompare(bits int, suffix string, pred target.Pred) registry.LibfuncFactory {
	return intFactory(uintName(bits), func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, _ registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		rc, err := ctx.FindType("RangeCheck")
		if err != nil {
			return nil, err
		}
		return branching(name+suffix, types(rc, t, t), []registry.BranchSignature{branch(rc), branch(rc)},
			func(c *registry.LibfuncContext) error {
				counter := bump(c, c.Args[0], 1)
				out := []target.ValueID{counter}
				return c.CondBr(c.B.ICmp(pred, c.Args[1], c.Args[2]), 1, out, 0, out)
			}), nil
	})
}

// UintLt returns the factory of uN_lt.
func UintLt(bits int) registry.LibfuncFactory { return uintCompare(bits, "_lt", target.PredULT) }

// UintLe returns the factory of uN_le.
func UintLe(bits int) registry.LibfuncFactory { return uintCompare(bits, "_le", target.PredULE) }

// IntIsZero returns the factory of <name>_is_zero.
func IntIsZero(name string) registry.LibfuncFactory {
	return intFactory(name, func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, _ registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		return isZeroOf(ctx, name+"_is_zero", t)
	})
}

// UintSafeDivmod returns the factory of uN_safe_divmod.
func UintSafeDivmod(bits int) registry.LibfuncFactory {
	return intFactory(uintName(bits), func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, _ registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		rc, err := ctx.FindType("RangeCheck")
		if err != nil {
			return nil, err
		}
		nz, err := wrap(ctx, "NonZero", t)
		if err != nil {
			return nil, err
		}
		return simple(name+"_safe_divmod", types(rc, t, nz), types(rc, t, t), func(c *registry.LibfuncContext) error {
			counter := bump(c, c.Args[0], 1)
			q := c.B.UDiv(c.Args[1], c.Args[2])
			r := c.B.URem(c.Args[1], c.Args[2])
			return c.Br(0, counter, q, r)
		}), nil
	})
}

// UintWideMul returns the factory of uN_wide_mul. u128 produces the high
// and low halves; narrower widths produce the next width up.
func UintWideMul(bits int) registry.LibfuncFactory {
	return intFactory(uintName(bits), func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, _ registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		if bits == 128 {
			return simple(name+"_wide_mul", types(t, t), types(t, t), func(c *registry.LibfuncContext) error {
				b := c.B
				m := b.Mul(b.ZExt(c.Args[0], target.I256), b.ZExt(c.Args[1], target.I256))
				hi := b.Trunc(b.LShr(m, b.ConstU64(target.I256, 128)), target.I128)
				return c.Br(0, hi, b.Trunc(m, target.I128))
			}), nil
		}
		wide, _, err := intType(ctx, uintName(bits*2))
		if err != nil {
			return nil, err
		}
		return simple(name+"_wide_mul", types(t, t), types(wide), func(c *registry.LibfuncContext) error {
			wt := target.Int(bits * 2)
			return c.Br(0, c.B.Mul(c.B.ZExt(c.Args[0], wt), c.B.ZExt(c.Args[1], wt)))
		}), nil
	})
}

// UintSqrt returns the factory of uN_sqrt; the root has half the width,
// at least 8 bits.
func UintSqrt(bits int) registry.LibfuncFactory {
	return intFactory(uintName(bits), func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, _ registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		rc, err := ctx.FindType("RangeCheck")
		if err != nil {
			return nil, err
		}
		rootBits := max(bits/2, 8)
		root, _, err := intType(ctx, uintName(rootBits))
		if err != nil {
			return nil, err
		}
		return simple(name+"_sqrt", types(rc, t), types(rc, root), func(c *registry.LibfuncContext) error {
			sqrt, err := c.Runtime(metadata.RtIntSqrt)
			if err != nil {
				return err
			}
			counter := bump(c, c.Args[0], 1)
			r := c.B.RuntimeCall(sqrt, c.B.ZExt(c.Args[1], target.I256))[0]
			return c.Br(0, counter, c.B.Trunc(r, target.Int(rootBits)))
		}), nil
	})
}

// IntToFelt252 returns the factory of <name>_to_felt252. Negative values
// map to p + v.
func IntToFelt252(name string) registry.LibfuncFactory {
	return intFactory(name, func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, info registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		f, err := feltType(ctx)
		if err != nil {
			return nil, err
		}
		return simple(name+"_to_felt252", types(t), types(f), func(c *registry.LibfuncContext) error {
			return c.Br(0, toFelt(c, c.Args[0], info))
		}), nil
	})
}

func toFelt(c *registry.LibfuncContext, v target.ValueID, info registry.TypeInfo) target.ValueID {
	b := c.B
	w := widen(c, v, info)
	if info.Lo.Sign() >= 0 {
		return b.Trunc(w, target.I252)
	}
	neg := b.ICmp(target.PredSLT, w, b.ConstU64(target.I256, 0))
	shifted := b.Add(w, b.Const(target.I256, primeValue(c)))
	return b.Trunc(b.Select(neg, shifted, w), target.I252)
}

// IntTryFromFelt252 returns the factory of <name>_try_from_felt252. The
// field element x is read as x - p when x > p/2 and the type is signed.
func IntTryFromFelt252(name string) registry.LibfuncFactory {
	return intFactory(name, func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, info registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		rc, err := ctx.FindType("RangeCheck")
		if err != nil {
			return nil, err
		}
		f, err := feltType(ctx)
		if err != nil {
			return nil, err
		}
		return branching(name+"_try_from_felt252", types(rc, f), []registry.BranchSignature{branch(rc, t), branch(rc)},
			func(c *registry.LibfuncContext) error {
				counter := bump(c, c.Args[0], 1)
				v, ok := fromFelt(c, c.Args[1], info)
				return c.CondBr(ok, 0, []target.ValueID{counter, v}, 1, []target.ValueID{counter})
			}), nil
	})
}

// fromFelt converts a field element to the representation of info and
// reports whether it was in range.
func fromFelt(c *registry.LibfuncContext, x target.ValueID, info registry.TypeInfo) (target.ValueID, target.ValueID) {
	b := c.B
	p := primeValue(c)
	w := b.ZExt(x, target.I256)
	if info.Lo.Sign() < 0 {
		half := new(big.Int).Rsh(p, 1)
		negative := b.ICmp(target.PredUGT, w, b.Const(target.I256, half))
		w = b.Select(negative, b.Sub(w, b.Const(target.I256, p)), w)
	}
	return narrow(c, w, info), inRange(c, w, info.Lo, info.Hi)
}

// SintOverflowing returns the factory of iN_overflowing_{add,sub}_impl:
// in range, underflow, then overflow, each with the wrapped result.
func SintOverflowing(bits int, suffix string, code target.Code) registry.LibfuncFactory {
	return intFactory(sintName(bits), func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, info registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		rc, err := ctx.FindType("RangeCheck")
		if err != nil {
			return nil, err
		}
		return branching(name+suffix, types(rc, t, t),
			[]registry.BranchSignature{branch(rc, t), branch(rc, t), branch(rc, t)},
			func(c *registry.LibfuncContext) error {
				b := c.B
				counter := bump(c, c.Args[0], 1)
				r := b.Binary(code, widen(c, c.Args[1], info), widen(c, c.Args[2], info))
				under := b.ICmp(target.PredSLT, r, b.Const(target.I256, info.Lo))
				over := b.ICmp(target.PredSGT, r, b.Const(target.I256, info.Hi))
				tag := b.Select(under, b.ConstU64(target.I8, 1),
					b.Select(over, b.ConstU64(target.I8, 2), b.ConstU64(target.I8, 0)))
				out := []target.ValueID{counter, b.Trunc(r, target.Int(bits))}
				return c.Switch(tag, [][]target.ValueID{out, out, out})
			}), nil
	})
}

// SintDiff returns the factory of iN_diff: a - b as uN, the second branch
// taken when a < b.
func SintDiff(bits int) registry.LibfuncFactory {
	return intFactory(sintName(bits), func(ctx *registry.SpecializationContext, name string, t sierra.TypeID, _ registry.TypeInfo) (registry.ConcreteLibfunc, error) {
		rc, err := ctx.FindType("RangeCheck")
		if err != nil {
			return nil, err
		}
		u, _, err := intType(ctx, uintName(bits))
		if err != nil {
			return nil, err
		}
		return branching(name+"_diff", types(rc, t, t), []registry.BranchSignature{branch(rc, u), branch(rc, u)},
			func(c *registry.LibfuncContext) error {
				counter := bump(c, c.Args[0], 1)
				d := c.B.Sub(c.Args[1], c.Args[2])
				ge := c.B.ICmp(target.PredSGE, c.Args[1], c.Args[2])
				out := []target.ValueID{counter, d}
				return c.CondBr(ge, 0, out, 1, out)
			}), nil
	})
}

// Bitwise is bitwise: and, xor and or of two u128.
func Bitwise(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	bw, err := ctx.FindType("Bitwise")
	if err != nil {
		return nil, err
	}
	u128, _, err := intType(ctx, "u128")
	if err != nil {
		return nil, err
	}
	return simple("bitwise", types(bw, u128, u128), types(bw, u128, u128, u128), func(c *registry.LibfuncContext) error {
		b := c.B
		x, y := c.Args[1], c.Args[2]
		return c.Br(0, bump(c, c.Args[0], 1), b.And(x, y), b.Xor(x, y), b.Or(x, y))
	}), nil
}

// U128sFromFelt252 is u128s_from_felt252: a single u128 when the value
// fits, otherwise the high and low halves.
func U128sFromFelt252(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	rc, err := ctx.FindType("RangeCheck")
	if err != nil {
		return nil, err
	}
	f, err := feltType(ctx)
	if err != nil {
		return nil, err
	}
	u128, _, err := intType(ctx, "u128")
	if err != nil {
		return nil, err
	}
	return branching("u128s_from_felt252", types(rc, f), []registry.BranchSignature{branch(rc, u128), branch(rc, u128, u128)},
		func(c *registry.LibfuncContext) error {
			b := c.B
			counter := bump(c, c.Args[0], 1)
			x := c.Args[1]
			hi := b.Trunc(b.LShr(x, b.ConstU64(target.I252, 128)), target.I128)
			lo := b.Trunc(x, target.I128)
			fits := b.ICmp(target.PredEQ, hi, b.ConstU64(target.I128, 0))
			return c.CondBr(fits, 0, []target.ValueID{counter, lo}, 1, []target.ValueID{counter, hi, lo})
		}), nil
}

// Upcast is upcast<From, To>; every value of From fits in To.
func Upcast(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	from, to, fi, ti, err := twoTypeArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := requireInteger(ctx, from, fi); err != nil {
		return nil, err
	}
	if err := requireInteger(ctx, to, ti); err != nil {
		return nil, err
	}
	if fi.Lo.Cmp(ti.Lo) < 0 || fi.Hi.Cmp(ti.Hi) > 0 {
		return nil, ctx.Invalid("%s does not fit in %s", from, to)
	}
	return simple("upcast", types(from), types(to), func(c *registry.LibfuncContext) error {
		if ti.Kind == registry.TypeFelt252 {
			return c.Br(0, toFelt(c, c.Args[0], fi))
		}
		return c.Br(0, narrow(c, widen(c, c.Args[0], fi), ti))
	}), nil
}

// Downcast is downcast<From, To>: the converted value when in range, then
// the failure branch.
func Downcast(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	from, to, fi, ti, err := twoTypeArgs(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := requireInteger(ctx, from, fi); err != nil {
		return nil, err
	}
	if err := requireInteger(ctx, to, ti); err != nil {
		return nil, err
	}
	rc, err := ctx.FindType("RangeCheck")
	if err != nil {
		return nil, err
	}
	return branching("downcast", types(rc, from), []registry.BranchSignature{branch(rc, to), branch(rc)},
		func(c *registry.LibfuncContext) error {
			counter := bump(c, c.Args[0], 1)
			var v, ok target.ValueID
			if fi.Kind == registry.TypeFelt252 {
				v, ok = fromFelt(c, c.Args[1], ti)
			} else {
				w := widen(c, c.Args[1], fi)
				v, ok = narrow(c, w, ti), inRange(c, w, ti.Lo, ti.Hi)
			}
			return c.CondBr(ok, 0, []target.ValueID{counter, v}, 1, []target.ValueID{counter})
		}), nil
}
