package libfuncs

import (
	"fmt"

	"sierranative/internal/metadata"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// cloneFunc returns the module function that deep copies values of t,
// generating it on first use.
func cloneFunc(c *registry.LibfuncContext, t sierra.TypeID) (string, error) {
	clones := metadata.GetOrInsertWith(c.Metadata, metadata.NewSnapshotClones)
	if name, ok := clones.Lookup(t); ok {
		return name, nil
	}
	tt, err := c.TargetType(t)
	if err != nil {
		return "", err
	}
	info, err := c.Registry.TypeInfo(t)
	if err != nil {
		return "", err
	}
	name := clones.Register(t, fmt.Sprintf("clone.%d", t.ID))
	f, err := c.Module.AddFunc(name, []target.Type{tt}, []target.Type{tt})
	if err != nil {
		return "", err
	}
	b := target.NewBuilder(f)
	v := b.Params(f.Entry)[0]

	switch info.Kind {
	case registry.TypeArray:
		err = cloneArray(c, b, v, info.Inner)
	case registry.TypeStruct:
		err = cloneStruct(c, b, v, t, info.Members)
	case registry.TypeEnum:
		err = cloneEnum(c, b, v, t, info.Members)
	case registry.TypeSnapshot, registry.TypeNonZero:
		var inner string
		if inner, err = cloneFunc(c, info.Inner); err == nil {
			b.Return(b.Call(inner, []target.Type{tt}, v)...)
		}
	default:
		b.Return(v)
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// needsClone reports whether copies of t must duplicate owned memory.
func needsClone(c *registry.LibfuncContext, t sierra.TypeID) (bool, error) {
	info, err := c.Registry.TypeInfo(t)
	if err != nil {
		return false, err
	}
	return info.NeedsClone, nil
}

// cloneValue copies v of type t, calling the clone function when needed.
func cloneValue(c *registry.LibfuncContext, b *target.Builder, v target.ValueID, t sierra.TypeID) (target.ValueID, error) {
	ok, err := needsClone(c, t)
	if err != nil || !ok {
		return v, err
	}
	name, err := cloneFunc(c, t)
	if err != nil {
		return target.NoValue, err
	}
	return b.Call(name, []target.Type{b.TypeOf(v)}, v)[0], nil
}

func cloneArray(c *registry.LibfuncContext, b *target.Builder, v target.ValueID, elem sierra.TypeID) error {
	el, err := c.Layout(elem)
	if err != nil {
		return err
	}
	et, err := c.TargetType(elem)
	if err != nil {
		return err
	}
	deep, err := needsClone(c, elem)
	if err != nil {
		return err
	}
	arr := b.TypeOf(v)
	src := b.Extract(v, arrayPtr, target.Ptr())
	n := b.Extract(v, arrayLen, target.I32)
	count := b.ZExt(n, target.I64)
	stride := b.ConstU64(target.I64, uint64(el.Stride())) //nolint:gosec // strides are positive
	size := b.Mul(count, stride)

	empty := b.NewBlock()
	full := b.NewBlock()
	b.CondBr(b.ICmp(target.PredEQ, count, b.ConstU64(target.I64, 0)),
		target.Edge{Target: empty}, target.Edge{Target: full})

	b.SetBlock(empty)
	b.Return(b.Zero(arr))

	b.SetBlock(full)
	dst := b.Alloc(size)
	done := b.NewBlock()
	if !deep {
		b.Memcpy(dst, src, size)
		b.Br(done)
	} else {
		loop := b.NewBlock(target.I64)
		b.Br(loop, b.ConstU64(target.I64, 0))

		b.SetBlock(loop)
		i := b.Params(loop)[0]
		body := b.NewBlock()
		b.CondBr(b.ICmp(target.PredUGE, i, count), target.Edge{Target: done}, target.Edge{Target: body})

		b.SetBlock(body)
		off := b.Mul(i, stride)
		e := b.Load(b.PtrAdd(src, off), et)
		copied, err := cloneValue(c, b, e, elem)
		if err != nil {
			return err
		}
		b.Store(b.PtrAdd(dst, off), copied)
		b.Br(loop, b.Add(i, b.ConstU64(target.I64, 1)))
	}

	b.SetBlock(done)
	out := b.Insert(b.Zero(arr), dst, arrayPtr)
	out = b.Insert(out, n, arrayLen)
	out = b.Insert(out, n, arrayCap)
	b.Return(out)
	return nil
}

func cloneStruct(c *registry.LibfuncContext, b *target.Builder, v target.ValueID, t sierra.TypeID, members []sierra.TypeID) error {
	l, err := c.Layout(t)
	if err != nil {
		return err
	}
	out := v
	for i, m := range members {
		deep, err := needsClone(c, m)
		if err != nil {
			return err
		}
		if !deep {
			continue
		}
		mt, err := c.TargetType(m)
		if err != nil {
			return err
		}
		field := b.Extract(v, l.FieldOffsets[i], mt)
		copied, err := cloneValue(c, b, field, m)
		if err != nil {
			return err
		}
		out = b.Insert(out, copied, l.FieldOffsets[i])
	}
	b.Return(out)
	return nil
}

func cloneEnum(c *registry.LibfuncContext, b *target.Builder, v target.ValueID, t sierra.TypeID, variants []sierra.TypeID) error {
	l, err := c.Layout(t)
	if err != nil {
		return err
	}
	tt := b.TypeOf(v)
	var tag target.ValueID
	if l.TagSize == 0 {
		tag = b.ConstU64(target.I8, 0)
	} else {
		tag = b.Extract(v, 0, target.Int(l.TagSize*8))
	}
	entry := b.Block()
	join := b.NewBlock(tt)

	edges := make([]target.Edge, len(variants))
	for i, m := range variants {
		blk := b.NewBlock()
		edges[i] = target.Edge{Target: blk}
		b.SetBlock(blk)
		deep, err := needsClone(c, m)
		if err != nil {
			return err
		}
		if !deep {
			b.Br(join, v)
			continue
		}
		mt, err := c.TargetType(m)
		if err != nil {
			return err
		}
		copied, err := cloneValue(c, b, b.Extract(v, l.PayloadOffset, mt), m)
		if err != nil {
			return err
		}
		b.Br(join, b.Insert(v, copied, l.PayloadOffset))
	}

	b.SetBlock(entry)
	cases := make([]target.SwitchCase, 0, len(edges)-1)
	for i, e := range edges[:len(edges)-1] {
		cases = append(cases, target.SwitchCase{Value: uint64(i), Edge: e}) //nolint:gosec // non-negative index
	}
	b.Switch(tag, cases, edges[len(edges)-1])

	b.SetBlock(join)
	b.Return(b.Params(join)[0])
	return nil
}
