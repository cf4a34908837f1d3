package libfuncs

import (
	"sierranative/internal/metadata"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

type ecTypes struct {
	felt, point, nonZero sierra.TypeID
}

func findEcTypes(ctx *registry.SpecializationContext, args []sierra.GenericArg) (ecTypes, error) {
	var t ecTypes
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return t, err
	}
	var err error
	if t.felt, err = feltType(ctx); err != nil {
		return t, err
	}
	if t.point, err = ctx.FindType("EcPoint"); err != nil {
		return t, err
	}
	t.nonZero, err = wrap(ctx, "NonZero", t.point)
	return t, err
}

// pack builds a point from two coordinates.
func (t ecTypes) pack(c *registry.LibfuncContext, x, y target.ValueID) (target.ValueID, error) {
	l, err := c.Layout(t.point)
	if err != nil {
		return target.NoValue, err
	}
	tt, err := c.TargetType(t.point)
	if err != nil {
		return target.NoValue, err
	}
	v := c.B.Insert(c.B.Zero(tt), x, l.FieldOffsets[0])
	return c.B.Insert(v, y, l.FieldOffsets[1]), nil
}

func (t ecTypes) coords(c *registry.LibfuncContext, p target.ValueID) (x, y target.ValueID, err error) {
	l, err := c.Layout(t.point)
	if err != nil {
		return target.NoValue, target.NoValue, err
	}
	return c.B.Extract(p, l.FieldOffsets[0], target.I252), c.B.Extract(p, l.FieldOffsets[1], target.I252), nil
}

// EcPointZero is ec_point_zero: the point at infinity, stored as (0, 0).
func EcPointZero(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, err := findEcTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	return simple("ec_point_zero", nil, types(t.point), func(c *registry.LibfuncContext) error {
		tt, err := c.TargetType(t.point)
		if err != nil {
			return err
		}
		return c.Br(0, c.B.Zero(tt))
	}), nil
}

// EcPointTryNewNz is ec_point_try_new_nz: the point when (x, y) is on the
// curve.
func EcPointTryNewNz(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, err := findEcTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	return branching("ec_point_try_new_nz", types(t.felt, t.felt), []registry.BranchSignature{branch(t.nonZero), branch()},
		func(c *registry.LibfuncContext) error {
			check, err := c.Runtime(metadata.RtEcPointTryNew)
			if err != nil {
				return err
			}
			ok := c.B.RuntimeCall(check, c.Args[0], c.Args[1])[0]
			p, err := t.pack(c, c.Args[0], c.Args[1])
			if err != nil {
				return err
			}
			return c.CondBr(ok, 0, []target.ValueID{p}, 1, nil)
		}), nil
}

// EcPointFromXNz is ec_point_from_x_nz: a curve point with the given x.
func EcPointFromXNz(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, err := findEcTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	rc, err := ctx.FindType("RangeCheck")
	if err != nil {
		return nil, err
	}
	return branching("ec_point_from_x_nz", types(rc, t.felt), []registry.BranchSignature{branch(rc, t.nonZero), branch(rc)},
		func(c *registry.LibfuncContext) error {
			fromX, err := c.Runtime(metadata.RtEcPointFromX)
			if err != nil {
				return err
			}
			counter := bump(c, c.Args[0], 1)
			res := c.B.RuntimeCall(fromX, c.Args[1])
			p, err := t.pack(c, c.Args[1], res[1])
			if err != nil {
				return err
			}
			return c.CondBr(res[0], 0, []target.ValueID{counter, p}, 1, []target.ValueID{counter})
		}), nil
}

// EcPointUnwrap is ec_point_unwrap.
func EcPointUnwrap(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, err := findEcTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	return simple("ec_point_unwrap", types(t.nonZero), types(t.felt, t.felt), func(c *registry.LibfuncContext) error {
		x, y, err := t.coords(c, c.Args[0])
		if err != nil {
			return err
		}
		return c.Br(0, x, y)
	}), nil
}

// EcPointIsZero is ec_point_is_zero. Only the point at infinity has y = 0.
func EcPointIsZero(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, err := findEcTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	return branching("ec_point_is_zero", types(t.point), []registry.BranchSignature{branch(), branch(t.nonZero)},
		func(c *registry.LibfuncContext) error {
			_, y, err := t.coords(c, c.Args[0])
			if err != nil {
				return err
			}
			zero := c.B.ICmp(target.PredEQ, y, c.B.ConstU64(target.I252, 0))
			return c.CondBr(zero, 0, nil, 1, c.Args)
		}), nil
}

// EcNeg is ec_neg: (x, -y).
func EcNeg(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, err := findEcTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	return simple("ec_neg", types(t.point), types(t.point), func(c *registry.LibfuncContext) error {
		x, y, err := t.coords(c, c.Args[0])
		if err != nil {
			return err
		}
		negY := c.B.Mod(target.OpSubMod, c.B.ConstU64(target.I252, 0), y, prime(c))
		p, err := t.pack(c, x, negY)
		if err != nil {
			return err
		}
		return c.Br(0, p)
	}), nil
}
