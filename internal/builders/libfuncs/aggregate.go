package libfuncs

import (
	"math/big"

	"sierranative/internal/layout"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

func aggregateArg(ctx *registry.SpecializationContext, args []sierra.GenericArg, kind registry.TypeKind) (sierra.TypeID, registry.TypeInfo, error) {
	t, info, err := typeArg(ctx, args)
	if err != nil {
		return t, info, err
	}
	if info.Kind != kind {
		return t, info, ctx.Invalid("%s is a %s, want %s", t, info.Kind, kind)
	}
	return t, info, nil
}

func memberTypes(c *registry.LibfuncContext, members []sierra.TypeID) ([]target.Type, error) {
	out := make([]target.Type, len(members))
	for i, m := range members {
		tt, err := c.TargetType(m)
		if err != nil {
			return nil, err
		}
		out[i] = tt
	}
	return out, nil
}

// StructConstruct is struct_construct<S>.
func StructConstruct(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := aggregateArg(ctx, args, registry.TypeStruct)
	if err != nil {
		return nil, err
	}
	return simple("struct_construct", info.Members, types(t), func(c *registry.LibfuncContext) error {
		tt, err := c.TargetType(t)
		if err != nil {
			return err
		}
		l, err := c.Layout(t)
		if err != nil {
			return err
		}
		v := c.B.Zero(tt)
		for i, a := range c.Args {
			if c.B.TypeOf(a).StoreSize() == 0 {
				continue
			}
			v = c.B.Insert(v, a, l.FieldOffsets[i])
		}
		return c.Br(0, v)
	}), nil
}

func deconstruct(t sierra.TypeID, members []sierra.TypeID) buildFunc {
	return func(c *registry.LibfuncContext) error {
		l, err := c.Layout(t)
		if err != nil {
			return err
		}
		mts, err := memberTypes(c, members)
		if err != nil {
			return err
		}
		outs := make([]target.ValueID, len(members))
		for i, mt := range mts {
			if mt.StoreSize() == 0 {
				outs[i] = c.B.Zero(mt)
				continue
			}
			outs[i] = c.B.Extract(c.Args[0], l.FieldOffsets[i], mt)
		}
		return c.Br(0, outs...)
	}
}

// StructDeconstruct is struct_deconstruct<S>.
func StructDeconstruct(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := aggregateArg(ctx, args, registry.TypeStruct)
	if err != nil {
		return nil, err
	}
	return simple("struct_deconstruct", types(t), info.Members, deconstruct(t, info.Members)), nil
}

// StructSnapshotDeconstruct is struct_snapshot_deconstruct<S>.
func StructSnapshotDeconstruct(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := aggregateArg(ctx, args, registry.TypeStruct)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(ctx, t)
	if err != nil {
		return nil, err
	}
	outs := make([]sierra.TypeID, len(info.Members))
	for i, m := range info.Members {
		if outs[i], err = snapshotOf(ctx, m); err != nil {
			return nil, err
		}
	}
	return simple("struct_snapshot_deconstruct", types(snap), outs, deconstruct(t, info.Members)), nil
}

// EnumInit is enum_init<E, index>.
func EnumInit(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
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
	if info.Kind != registry.TypeEnum {
		return nil, ctx.Invalid("%s is not an enum", t)
	}
	idx, err := ctx.ValueArg(args, 1)
	if err != nil {
		return nil, err
	}
	if idx.Sign() < 0 || idx.Cmp(big.NewInt(int64(len(info.Members)))) >= 0 {
		return nil, ctx.Invalid("variant %s out of range for %d variants", idx, len(info.Members))
	}
	variant := int(idx.Int64())
	return simple("enum_init", types(info.Members[variant]), types(t), func(c *registry.LibfuncContext) error {
		tt, err := c.TargetType(t)
		if err != nil {
			return err
		}
		l, err := c.Layout(t)
		if err != nil {
			return err
		}
		v := c.B.Zero(tt)
		if l.TagSize > 0 {
			tag := c.B.ConstU64(target.Int(l.TagSize*8), uint64(variant)) //nolint:gosec // checked above
			v = c.B.Insert(v, tag, 0)
		}
		if c.B.TypeOf(c.Args[0]).StoreSize() > 0 {
			v = c.B.Insert(v, c.Args[0], l.PayloadOffset)
		}
		return c.Br(0, v)
	}), nil
}

// loadTag reads the discriminant of an enum value.
func loadTag(c *registry.LibfuncContext, v target.ValueID, l layout.TypeLayout) target.ValueID {
	if l.TagSize == 0 {
		return c.B.ConstU64(target.I8, 0)
	}
	return c.B.Extract(v, 0, target.Int(l.TagSize*8))
}

func match(t sierra.TypeID, members []sierra.TypeID) buildFunc {
	return func(c *registry.LibfuncContext) error {
		l, err := c.Layout(t)
		if err != nil {
			return err
		}
		mts, err := memberTypes(c, members)
		if err != nil {
			return err
		}
		tag := loadTag(c, c.Args[0], l)
		outs := make([][]target.ValueID, len(members))
		for i, mt := range mts {
			if mt.StoreSize() == 0 {
				outs[i] = []target.ValueID{c.B.Zero(mt)}
				continue
			}
			outs[i] = []target.ValueID{c.B.Extract(c.Args[0], l.PayloadOffset, mt)}
		}
		return c.Switch(tag, outs)
	}
}

// EnumMatch is enum_match<E>: one branch per variant.
func EnumMatch(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := aggregateArg(ctx, args, registry.TypeEnum)
	if err != nil {
		return nil, err
	}
	branches := make([]registry.BranchSignature, len(info.Members))
	for i, m := range info.Members {
		branches[i] = branch(m)
	}
	return branching("enum_match", types(t), branches, match(t, info.Members)), nil
}

// EnumSnapshotMatch is enum_snapshot_match<E>.
func EnumSnapshotMatch(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	t, info, err := aggregateArg(ctx, args, registry.TypeEnum)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(ctx, t)
	if err != nil {
		return nil, err
	}
	branches := make([]registry.BranchSignature, len(info.Members))
	for i, m := range info.Members {
		s, err := snapshotOf(ctx, m)
		if err != nil {
			return nil, err
		}
		branches[i] = branch(s)
	}
	return branching("enum_snapshot_match", types(snap), branches, match(t, info.Members)), nil
}
