package libfuncs

import (
	"sierranative/internal/metadata"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

func feltType(ctx *registry.SpecializationContext) (sierra.TypeID, error) {
	return ctx.FindType("felt252")
}

// Felt252Const is felt252_const<v>; v is reduced into the field.
func Felt252Const(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 1); err != nil {
		return nil, err
	}
	v, err := ctx.ValueArg(args, 0)
	if err != nil {
		return nil, err
	}
	f, err := feltType(ctx)
	if err != nil {
		return nil, err
	}
	return simple("felt252_const", nil, types(f), func(c *registry.LibfuncContext) error {
		return c.Br(0, feltConst(c, v))
	}), nil
}

// feltBinary returns the factory of a field operation lowered to a modular op.
func feltBinary(generic string, code target.Code) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		f, err := feltType(ctx)
		if err != nil {
			return nil, err
		}
		return simple(generic, types(f, f), types(f), func(c *registry.LibfuncContext) error {
			return c.Br(0, c.B.Mod(code, c.Args[0], c.Args[1], prime(c)))
		}), nil
	}
}

var (
	Felt252Add = feltBinary("felt252_add", target.OpAddMod)
	Felt252Sub = feltBinary("felt252_sub", target.OpSubMod)
	Felt252Mul = feltBinary("felt252_mul", target.OpMulMod)
)

// Felt252Div is felt252_div: multiplication by the inverse of a non-zero
// divisor, computed by the runtime.
func Felt252Div(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	f, err := feltType(ctx)
	if err != nil {
		return nil, err
	}
	nz, err := wrap(ctx, "NonZero", f)
	if err != nil {
		return nil, err
	}
	return simple("felt252_div", types(f, nz), types(f), func(c *registry.LibfuncContext) error {
		div, err := c.Runtime(metadata.RtFelt252Div)
		if err != nil {
			return err
		}
		return c.Br(0, c.B.RuntimeCall(div, c.Args...)[0])
	}), nil
}

// isZero returns the factory of T_is_zero: the zero branch first, then the
// value wrapped in NonZero.
func isZero(generic string, find func(*registry.SpecializationContext) (sierra.TypeID, error)) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		t, err := find(ctx)
		if err != nil {
			return nil, err
		}
		return isZeroOf(ctx, generic, t)
	}
}

func isZeroOf(ctx *registry.SpecializationContext, generic string, t sierra.TypeID) (registry.ConcreteLibfunc, error) {
	nz, err := wrap(ctx, "NonZero", t)
	if err != nil {
		return nil, err
	}
	return branching(generic, types(t), []registry.BranchSignature{branch(), branch(nz)},
		func(c *registry.LibfuncContext) error {
			zero := c.B.ICmp(target.PredEQ, c.Args[0], zeroOf(c, c.Args[0]))
			return c.CondBr(zero, 0, nil, 1, c.Args)
		}), nil
}

var Felt252IsZero = isZero("felt252_is_zero", feltType)
