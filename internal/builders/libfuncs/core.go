package libfuncs

import (
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// FunctionCall is function_call<user@f>.
func FunctionCall(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 1); err != nil {
		return nil, err
	}
	if args[0].Kind != sierra.ArgUserFunc {
		return nil, ctx.Invalid("argument must be a user function")
	}
	fn, err := ctx.Function(args[0].UserFunc)
	if err != nil {
		return nil, err
	}
	callee := fn.ID
	rets := fn.Signature.RetTypes
	sig := registry.LibfuncSignature{
		Params: fn.Signature.ParamTypes,
		Branches: []registry.BranchSignature{{
			Vars:     rets,
			ApChange: registry.ApChange{Kind: registry.ApFromCallee},
		}},
	}
	l := &callLibfunc{callee: callee}
	l.libfunc = libfunc{
		generic: "function_call",
		sig:     sig,
		class:   registry.ClassFunctionCall,
		build: func(c *registry.LibfuncContext) error {
			results := make([]target.Type, len(rets))
			for i, t := range rets {
				tt, err := c.TargetType(t)
				if err != nil {
					return err
				}
				results[i] = tt
			}
			outs := c.B.Call(callee.Symbol(), results, c.Args...)
			return c.Br(0, outs...)
		},
	}
	return l, nil
}

// StoreTemp is store_temp<T>.
func StoreTemp(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	if !info.Storable {
		return nil, ctx.Invalid("%s is not storable", t)
	}
	return &libfunc{
		generic: "store_temp",
		sig:     registry.Simple(types(t), types(t), registry.Known(1)),
		class:   registry.ClassStoreTemp,
		build:   forward,
	}, nil
}

// StoreLocal is store_local<T>.
func StoreLocal(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	if !info.Storable {
		return nil, ctx.Invalid("%s is not storable", t)
	}
	uninit, err := wrap(ctx, "Uninitialized", t)
	if err != nil {
		return nil, err
	}
	return simple("store_local", types(uninit, t), types(t), func(c *registry.LibfuncContext) error {
		return c.Br(0, c.Args[1])
	}), nil
}

// AllocLocal is alloc_local<T>.
func AllocLocal(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, _, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	uninit, err := wrap(ctx, "Uninitialized", t)
	if err != nil {
		return nil, err
	}
	return simple("alloc_local", nil, types(uninit), func(c *registry.LibfuncContext) error {
		tt, err := c.TargetType(uninit)
		if err != nil {
			return err
		}
		return c.Br(0, c.B.Zero(tt))
	}), nil
}

// plain returns the factory of an argument-less libfunc without outputs.
func plain(generic string, class registry.Class) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		l := simple(generic, nil, nil, nothing)
		l.class = class
		return l, nil
	}
}

// Rename is rename<T>.
func Rename(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, _, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	return simple("rename", types(t), types(t), forward), nil
}

// Dup is dup<T>.
func Dup(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	if !info.Duplicatable {
		return nil, ctx.Invalid("%s is not duplicatable", t)
	}
	return simple("dup", types(t), types(t, t), func(c *registry.LibfuncContext) error {
		return c.Br(0, c.Args[0], c.Args[0])
	}), nil
}

// Drop is drop<T>.
func Drop(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	if !info.Droppable {
		return nil, ctx.Invalid("%s is not droppable", t)
	}
	return simple("drop", types(t), nil, nothing), nil
}

// SnapshotTake is snapshot_take<T>. Types owning heap memory are copied
// through a generated clone function.
func SnapshotTake(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(ctx, t)
	if err != nil {
		return nil, err
	}
	needsClone := info.NeedsClone && info.Kind != registry.TypeSnapshot
	return simple("snapshot_take", types(t), types(t, snap), func(c *registry.LibfuncContext) error {
		if !needsClone {
			return c.Br(0, c.Args[0], c.Args[0])
		}
		name, err := cloneFunc(c, t)
		if err != nil {
			return err
		}
		tt, err := c.TargetType(t)
		if err != nil {
			return err
		}
		copied := c.B.Call(name, []target.Type{tt}, c.Args[0])
		return c.Br(0, c.Args[0], copied[0])
	}), nil
}

// UnwrapNonZero is unwrap_non_zero<T>.
func UnwrapNonZero(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, _, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	nz, err := wrap(ctx, "NonZero", t)
	if err != nil {
		return nil, err
	}
	return simple("unwrap_non_zero", types(nz), types(t), forward), nil
}

// IntoBox is into_box<T>.
func IntoBox(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, _, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	box, err := wrap(ctx, "Box", t)
	if err != nil {
		return nil, err
	}
	return simple("into_box", types(t), types(box), func(c *registry.LibfuncContext) error {
		l, err := c.Layout(t)
		if err != nil {
			return err
		}
		p := c.B.Alloc(i64(c, uint64(max(l.Size, 1)))) //nolint:gosec // layout sizes are non-negative
		c.B.Store(p, c.Args[0])
		return c.Br(0, p)
	}), nil
}

// Unbox is unbox<T>.
func Unbox(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, _, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	box, err := wrap(ctx, "Box", t)
	if err != nil {
		return nil, err
	}
	return simple("unbox", types(box), types(t), func(c *registry.LibfuncContext) error {
		tt, err := c.TargetType(t)
		if err != nil {
			return err
		}
		return c.Br(0, c.B.Load(c.Args[0], tt))
	}), nil
}

// Null is null<T>.
func Null(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, _, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	nullable, err := wrap(ctx, "Nullable", t)
	if err != nil {
		return nil, err
	}
	return simple("null", nil, types(nullable), func(c *registry.LibfuncContext) error {
		return c.Br(0, c.B.ConstU64(target.Ptr(), 0))
	}), nil
}

// NullableFromBox is nullable_from_box<T>.
func NullableFromBox(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, _, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	box, err := wrap(ctx, "Box", t)
	if err != nil {
		return nil, err
	}
	nullable, err := wrap(ctx, "Nullable", t)
	if err != nil {
		return nil, err
	}
	return simple("nullable_from_box", types(box), types(nullable), forward), nil
}

// MatchNullable is match_nullable<T>: null first, then the box.
func MatchNullable(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, _, err := typeArg(ctx, args)
	if err != nil {
		return nil, err
	}
	box, err := wrap(ctx, "Box", t)
	if err != nil {
		return nil, err
	}
	nullable, err := wrap(ctx, "Nullable", t)
	if err != nil {
		return nil, err
	}
	return branching("match_nullable", types(nullable), []registry.BranchSignature{branch(), branch(box)},
		func(c *registry.LibfuncContext) error {
			isNull := c.B.ICmp(target.PredEQ, c.Args[0], zeroOf(c, c.Args[0]))
			return c.CondBr(isNull, 0, nil, 1, c.Args)
		}), nil
}
