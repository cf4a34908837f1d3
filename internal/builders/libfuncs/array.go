package libfuncs

import (
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// Array descriptor fields.
const (
	arrayPtr = 0
	arrayLen = 8
	arrayCap = 12
)

// minArrayCap is the capacity of the first buffer an append allocates.
const minArrayCap = 8

type arrayParts struct {
	ptr, len, cap target.ValueID
}

func splitArray(b *target.Builder, v target.ValueID) arrayParts {
	return arrayParts{
		ptr: b.Extract(v, arrayPtr, target.Ptr()),
		len: b.Extract(v, arrayLen, target.I32),
		cap: b.Extract(v, arrayCap, target.I32),
	}
}

func joinArray(b *target.Builder, t target.Type, p arrayParts) target.ValueID {
	v := b.Insert(b.Zero(t), p.ptr, arrayPtr)
	v = b.Insert(v, p.len, arrayLen)
	return b.Insert(v, p.cap, arrayCap)
}

// arrayTypes resolves Array<T> for the element type argument.
func arrayTypes(ctx *registry.SpecializationContext, args []sierra.GenericArg) (elem, arr sierra.TypeID, err error) {
	if elem, _, err = typeArg(ctx, args); err != nil {
		return
	}
	arr, err = wrap(ctx, "Array", elem)
	return
}

// elemSpec is what array builders need to know about the element type.
type elemSpec struct {
	tt     target.Type
	stride uint64
}

func elemOf(c *registry.LibfuncContext, elem sierra.TypeID) (elemSpec, error) {
	l, err := c.Layout(elem)
	if err != nil {
		return elemSpec{}, err
	}
	tt, err := c.TargetType(elem)
	if err != nil {
		return elemSpec{}, err
	}
	return elemSpec{tt: tt, stride: uint64(l.Stride())}, nil //nolint:gosec // strides are positive
}

// at returns the address of element i (an i32) of the buffer.
func (e elemSpec) at(c *registry.LibfuncContext, ptr, i target.ValueID) target.ValueID {
	off := c.B.Mul(c.B.ZExt(i, target.I64), i64(c, e.stride))
	return c.B.PtrAdd(ptr, off)
}

// boxed copies the element at p into a fresh allocation.
func (e elemSpec) boxed(c *registry.LibfuncContext, p target.ValueID) target.ValueID {
	size := i64(c, max(e.stride, 1))
	box := c.B.Alloc(size)
	c.B.Memcpy(box, p, i64(c, e.stride))
	return box
}

func i32(c *registry.LibfuncContext, v uint64) target.ValueID {
	return c.B.ConstU64(target.I32, v)
}

// ArrayNew is array_new<T>.
func ArrayNew(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	_, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	return simple("array_new", nil, types(arr), func(c *registry.LibfuncContext) error {
		tt, err := c.TargetType(arr)
		if err != nil {
			return err
		}
		return c.Br(0, c.B.Zero(tt))
	}), nil
}

// ArrayAppend is array_append<T>. A full buffer doubles its capacity.
func ArrayAppend(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	elem, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	return simple("array_append", types(arr, elem), types(arr), func(c *registry.LibfuncContext) error {
		e, err := elemOf(c, elem)
		if err != nil {
			return err
		}
		b := c.B
		arrT := b.TypeOf(c.Args[0])
		p := splitArray(b, c.Args[0])

		grow := b.NewBlock()
		store := b.NewBlock(target.Ptr(), target.I32)
		b.CondBr(b.ICmp(target.PredEQ, p.len, p.cap),
			target.Edge{Target: grow},
			target.Edge{Target: store, Args: []target.ValueID{p.ptr, p.cap}})

		b.SetBlock(grow)
		doubled := b.Add(p.cap, p.cap)
		newCap := b.Select(b.ICmp(target.PredULT, doubled, i32(c, minArrayCap)), i32(c, minArrayCap), doubled)
		bytes := func(n target.ValueID) target.ValueID {
			return b.Mul(b.ZExt(n, target.I64), i64(c, e.stride))
		}
		moved := b.Realloc(p.ptr, bytes(p.cap), bytes(newCap))
		b.Br(store, moved, newCap)

		b.SetBlock(store)
		ptr, capacity := b.Params(store)[0], b.Params(store)[1]
		b.Store(e.at(c, ptr, p.len), c.Args[1])
		out := joinArray(b, arrT, arrayParts{ptr: ptr, len: b.Add(p.len, i32(c, 1)), cap: capacity})
		return c.Br(0, out)
	}), nil
}

// ArrayLen is array_len<T>.
func ArrayLen(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	_, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(ctx, arr)
	if err != nil {
		return nil, err
	}
	u32, err := ctx.FindType("u32")
	if err != nil {
		return nil, err
	}
	return simple("array_len", types(snap), types(u32), func(c *registry.LibfuncContext) error {
		return c.Br(0, c.B.Extract(c.Args[0], arrayLen, target.I32))
	}), nil
}

// ArrayGet is array_get<T>: the element in a box on success, just the
// range check when out of bounds.
func ArrayGet(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	elem, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	rc, err := ctx.FindType("RangeCheck")
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(ctx, arr)
	if err != nil {
		return nil, err
	}
	u32, err := ctx.FindType("u32")
	if err != nil {
		return nil, err
	}
	box, err := snapshotBox(ctx, elem)
	if err != nil {
		return nil, err
	}
	return branching("array_get", types(rc, snap, u32), []registry.BranchSignature{branch(rc, box), branch(rc)},
		func(c *registry.LibfuncContext) error {
			e, err := elemOf(c, elem)
			if err != nil {
				return err
			}
			b := c.B
			counter := bump(c, c.Args[0], 1)
			p := splitArray(b, c.Args[1])
			idx := c.Args[2]

			inBounds := b.NewBlock()
			outEdge, err := c.Edge(1, counter)
			if err != nil {
				return err
			}
			b.CondBr(b.ICmp(target.PredULT, idx, p.len), target.Edge{Target: inBounds}, outEdge)

			b.SetBlock(inBounds)
			return c.Br(0, counter, e.boxed(c, e.at(c, p.ptr, idx)))
		}), nil
}

// snapshotBox is Box<Snapshot<T>>.
func snapshotBox(ctx *registry.SpecializationContext, t sierra.TypeID) (sierra.TypeID, error) {
	s, err := snapshotOf(ctx, t)
	if err != nil {
		return sierra.TypeID{}, err
	}
	return wrap(ctx, "Box", s)
}

// popFront builds the shared body of the pop_front family. keepOnEmpty
// passes the array through on the empty branch.
func popFront(elem sierra.TypeID, keepOnEmpty bool) buildFunc {
	return func(c *registry.LibfuncContext) error {
		e, err := elemOf(c, elem)
		if err != nil {
			return err
		}
		b := c.B
		arrT := b.TypeOf(c.Args[0])
		p := splitArray(b, c.Args[0])

		var emptyOut []target.ValueID
		if keepOnEmpty {
			emptyOut = c.Args
		}
		nonEmpty := b.NewBlock()
		emptyEdge, err := c.Edge(1, emptyOut...)
		if err != nil {
			return err
		}
		b.CondBr(b.ICmp(target.PredEQ, p.len, i32(c, 0)), emptyEdge, target.Edge{Target: nonEmpty})

		b.SetBlock(nonEmpty)
		box := e.boxed(c, p.ptr)
		one := i32(c, 1)
		rest := joinArray(b, arrT, arrayParts{
			ptr: b.PtrAdd(p.ptr, i64(c, e.stride)),
			len: b.Sub(p.len, one),
			cap: b.Sub(p.cap, one),
		})
		return c.Br(0, rest, box)
	}
}

// ArrayPopFront is array_pop_front<T>.
func ArrayPopFront(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	elem, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	box, err := wrap(ctx, "Box", elem)
	if err != nil {
		return nil, err
	}
	return branching("array_pop_front", types(arr), []registry.BranchSignature{branch(arr, box), branch(arr)},
		popFront(elem, true)), nil
}

// ArrayPopFrontConsume is array_pop_front_consume<T>; the empty array is
// dropped.
func ArrayPopFrontConsume(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	elem, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	box, err := wrap(ctx, "Box", elem)
	if err != nil {
		return nil, err
	}
	return branching("array_pop_front_consume", types(arr), []registry.BranchSignature{branch(arr, box), branch()},
		popFront(elem, false)), nil
}

// ArraySnapshotPopFront is array_snapshot_pop_front<T>.
func ArraySnapshotPopFront(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	elem, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(ctx, arr)
	if err != nil {
		return nil, err
	}
	box, err := snapshotBox(ctx, elem)
	if err != nil {
		return nil, err
	}
	return branching("array_snapshot_pop_front", types(snap), []registry.BranchSignature{branch(snap, box), branch(snap)},
		popFront(elem, true)), nil
}

// ArraySnapshotPopBack is array_snapshot_pop_back<T>.
func ArraySnapshotPopBack(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	elem, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(ctx, arr)
	if err != nil {
		return nil, err
	}
	box, err := snapshotBox(ctx, elem)
	if err != nil {
		return nil, err
	}
	return branching("array_snapshot_pop_back", types(snap), []registry.BranchSignature{branch(snap, box), branch(snap)},
		func(c *registry.LibfuncContext) error {
			e, err := elemOf(c, elem)
			if err != nil {
				return err
			}
			b := c.B
			arrT := b.TypeOf(c.Args[0])
			p := splitArray(b, c.Args[0])

			nonEmpty := b.NewBlock()
			emptyEdge, err := c.Edge(1, c.Args[0])
			if err != nil {
				return err
			}
			b.CondBr(b.ICmp(target.PredEQ, p.len, i32(c, 0)), emptyEdge, target.Edge{Target: nonEmpty})

			b.SetBlock(nonEmpty)
			last := b.Sub(p.len, i32(c, 1))
			box := e.boxed(c, e.at(c, p.ptr, last))
			rest := joinArray(b, arrT, arrayParts{ptr: p.ptr, len: last, cap: p.cap})
			return c.Br(0, rest, box)
		}), nil
}

// ArraySlice is array_slice<T>: (rc, span, start, length).
func ArraySlice(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	elem, arr, err := arrayTypes(ctx, args)
	if err != nil {
		return nil, err
	}
	rc, err := ctx.FindType("RangeCheck")
	if err != nil {
		return nil, err
	}
	snap, err := snapshotOf(ctx, arr)
	if err != nil {
		return nil, err
	}
	u32, err := ctx.FindType("u32")
	if err != nil {
		return nil, err
	}
	return branching("array_slice", types(rc, snap, u32, u32), []registry.BranchSignature{branch(rc, snap), branch(rc)},
		func(c *registry.LibfuncContext) error {
			e, err := elemOf(c, elem)
			if err != nil {
				return err
			}
			b := c.B
			counter := bump(c, c.Args[0], 1)
			arrT := b.TypeOf(c.Args[1])
			p := splitArray(b, c.Args[1])
			start, length := c.Args[2], c.Args[3]

			end := b.Add(b.ZExt(start, target.I64), b.ZExt(length, target.I64))
			fits := b.ICmp(target.PredULE, end, b.ZExt(p.len, target.I64))
			inBounds := b.NewBlock()
			outEdge, err := c.Edge(1, counter)
			if err != nil {
				return err
			}
			b.CondBr(fits, target.Edge{Target: inBounds}, outEdge)

			b.SetBlock(inBounds)
			slice := joinArray(b, arrT, arrayParts{ptr: e.at(c, p.ptr, start), len: length, cap: length})
			return c.Br(0, counter, slice)
		}), nil
}
