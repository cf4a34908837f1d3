package types

import (
	"sierranative/internal/layout"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

func wrapped(ctx *registry.SpecializationContext, args []sierra.GenericArg) (sierra.TypeID, registry.TypeInfo, error) {
	if err := ctx.ExpectArgs(args, 1); err != nil {
		return sierra.TypeID{}, registry.TypeInfo{}, err
	}
	inner, err := ctx.TypeArg(args, 0)
	if err != nil {
		return sierra.TypeID{}, registry.TypeInfo{}, err
	}
	info, err := ctx.TypeInfo(inner)
	return inner, info, err
}

// NonZero<T> shares T's representation.
func NonZero(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	inner, in, err := wrapped(ctx, args)
	if err != nil {
		return nil, err
	}
	info := in
	info.Kind = registry.TypeNonZero
	info.GenericID = "NonZero"
	info.Inner = inner
	return &concrete{info: info, layout: innerLayout(inner), tt: sameAs(inner), self: ctx.Self()}, nil
}

func pointer(kind registry.TypeKind, generic string) registry.TypeFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
		inner, in, err := wrapped(ctx, args)
		if err != nil {
			return nil, err
		}
		return &concrete{
			info: registry.TypeInfo{
				Kind:         kind,
				GenericID:    generic,
				Inner:        inner,
				Storable:     true,
				Droppable:    in.Droppable,
				Duplicatable: in.Duplicatable,
			},
			layout: func(c *layout.Context) (layout.TypeLayout, error) { return layout.Ptr(c.Target()), nil },
			tt:     register(target.Ptr()),
			self:   ctx.Self(),
		}, nil
	}
}

// Box<T> points at an immutable heap copy of T.
var Box = pointer(registry.TypeBox, "Box")

// Nullable<T> is a Box that may be null.
var Nullable = pointer(registry.TypeNullable, "Nullable")

// Array<T> is a {ptr, len, cap} descriptor over a heap buffer.
func Array(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	inner, in, err := wrapped(ctx, args)
	if err != nil {
		return nil, err
	}
	if in.ZeroSized {
		return nil, ctx.Invalid("array of zero sized %s", inner)
	}
	return &concrete{
		info: registry.TypeInfo{
			Kind:       registry.TypeArray,
			GenericID:  "Array",
			Inner:      inner,
			Storable:   true,
			Droppable:  in.Droppable,
			NeedsClone: true,
		},
		layout: func(c *layout.Context) (layout.TypeLayout, error) {
			if _, err := c.LayoutOf(inner); err != nil {
				return layout.TypeLayout{}, err
			}
			return layout.ArrayDescriptor(c.Target()), nil
		},
		tt:   blob,
		self: ctx.Self(),
	}, nil
}

// Snapshot<T> is a read-only copy of T.
func Snapshot(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	inner, in, err := wrapped(ctx, args)
	if err != nil {
		return nil, err
	}
	if in.Kind == registry.TypeSnapshot {
		return nil, ctx.Invalid("snapshot of snapshot %s", inner)
	}
	info := in
	info.Kind = registry.TypeSnapshot
	info.GenericID = "Snapshot"
	info.Inner = inner
	info.Droppable = true
	info.Duplicatable = true
	return &concrete{info: info, layout: innerLayout(inner), tt: sameAs(inner), self: ctx.Self()}, nil
}

// Uninitialized<T> is the zero sized placeholder of a local slot.
func Uninitialized(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	inner, _, err := wrapped(ctx, args)
	if err != nil {
		return nil, err
	}
	return &concrete{
		info: registry.TypeInfo{
			Kind:      registry.TypeUninitialized,
			GenericID: "Uninitialized",
			Inner:     inner,
			Droppable: true,
			ZeroSized: true,
		},
		layout: fixed(layout.Scalar(0)),
		tt:     register(target.Blob(0, 1)),
		self:   ctx.Self(),
	}, nil
}

func members(ctx *registry.SpecializationContext, args []sierra.GenericArg) (sierra.UserTypeID, []sierra.TypeID, []registry.TypeInfo, error) {
	if len(args) == 0 || args[0].Kind != sierra.ArgUserType {
		return sierra.UserTypeID{}, nil, nil, ctx.Invalid("first argument must be a user type")
	}
	ids := make([]sierra.TypeID, 0, len(args)-1)
	infos := make([]registry.TypeInfo, 0, len(args)-1)
	for i := 1; i < len(args); i++ {
		id, err := ctx.TypeArg(args, i)
		if err != nil {
			return sierra.UserTypeID{}, nil, nil, err
		}
		info, err := ctx.TypeInfo(id)
		if err != nil {
			return sierra.UserTypeID{}, nil, nil, err
		}
		ids = append(ids, id)
		infos = append(infos, info)
	}
	return args[0].UserType, ids, infos, nil
}

func memberLayouts(c *layout.Context, ids []sierra.TypeID) ([]layout.TypeLayout, error) {
	out := make([]layout.TypeLayout, len(ids))
	for i, id := range ids {
		l, err := c.LayoutOf(id)
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}

func aggregateInfo(kind registry.TypeKind, generic string, ut sierra.UserTypeID, ids []sierra.TypeID, infos []registry.TypeInfo) registry.TypeInfo {
	info := registry.TypeInfo{
		Kind:         kind,
		GenericID:    generic,
		DebugName:    ut.DebugName,
		UserType:     ut,
		Members:      ids,
		Storable:     true,
		Droppable:    true,
		Duplicatable: true,
	}
	for _, m := range infos {
		info.Droppable = info.Droppable && m.Droppable
		info.Duplicatable = info.Duplicatable && m.Duplicatable
		info.Storable = info.Storable && m.Storable
		info.NeedsClone = info.NeedsClone || m.NeedsClone
	}
	return info
}

// Struct<ut@Name, T...> lays its members out in order.
func Struct(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	ut, ids, infos, err := members(ctx, args)
	if err != nil {
		return nil, err
	}
	info := aggregateInfo(registry.TypeStruct, "Struct", ut, ids, infos)
	info.ZeroSized = true
	for _, m := range infos {
		info.ZeroSized = info.ZeroSized && m.ZeroSized
	}
	return &concrete{
		info: info,
		layout: func(c *layout.Context) (layout.TypeLayout, error) {
			ls, err := memberLayouts(c, ids)
			if err != nil {
				return layout.TypeLayout{}, err
			}
			return layout.Struct(ls...), nil
		},
		tt:   blob,
		self: ctx.Self(),
	}, nil
}

// Enum<ut@Name, T...> is a tag followed by the payload of one variant.
func Enum(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	ut, ids, infos, err := members(ctx, args)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ctx.Invalid("enum without variants")
	}
	info := aggregateInfo(registry.TypeEnum, "Enum", ut, ids, infos)
	return &concrete{
		info: info,
		layout: func(c *layout.Context) (layout.TypeLayout, error) {
			ls, err := memberLayouts(c, ids)
			if err != nil {
				return layout.TypeLayout{}, err
			}
			return layout.Enum(ls...), nil
		},
		tt:   blob,
		self: ctx.Self(),
	}, nil
}
