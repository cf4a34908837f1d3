package target

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Builder appends operations to one function. It is the single emission
// handle: every op goes through it.
type Builder struct {
	f   *Func
	cur BlockID
}

// NewBuilder positions a builder at the function's entry.
func NewBuilder(f *Func) *Builder {
	return &Builder{f: f, cur: f.Entry}
}

func (b *Builder) Func() *Func { return b.f }

// Block returns the current block id.
func (b *Builder) Block() BlockID { return b.cur }

// SetBlock moves the insertion point.
func (b *Builder) SetBlock(id BlockID) { b.cur = id }

// NewBlock appends a block with fresh parameters of the given types.
func (b *Builder) NewBlock(params ...Type) BlockID {
	id := BlockID(len(b.f.Blocks)) //nolint:gosec // bounded by block count
	blk := Block{ID: id}
	for _, t := range params {
		blk.Params = append(blk.Params, b.newValue(t))
	}
	b.f.Blocks = append(b.f.Blocks, blk)
	return id
}

// Params returns the parameters of a block.
func (b *Builder) Params(id BlockID) []ValueID {
	return b.f.Blocks[id].Params
}

// TypeOf returns the type of v.
func (b *Builder) TypeOf(v ValueID) Type { return b.f.TypeOf(v) }

// Terminated reports whether the current block already has a terminator.
func (b *Builder) Terminated() bool { return b.f.Blocks[b.cur].Terminated() }

func (b *Builder) newValue(t Type) ValueID {
	id := ValueID(len(b.f.Values)) //nolint:gosec // bounded by value count
	b.f.Values = append(b.f.Values, t)
	return id
}

func (b *Builder) emit(op Op) {
	blk := &b.f.Blocks[b.cur]
	blk.Ops = append(blk.Ops, op)
}

func (b *Builder) single(code Code, t Type, args ...ValueID) ValueID {
	v := b.newValue(t)
	b.emit(Op{Code: code, Results: []ValueID{v}, Args: args, Type: t})
	return v
}

// Const materializes an integer or pointer constant; negative values are
// stored in two's complement.
func (b *Builder) Const(t Type, v *big.Int) ValueID {
	return b.ConstBytes(t, EncodeInt(v, t.StoreSize()))
}

// ConstU64 materializes a small constant.
func (b *Builder) ConstU64(t Type, v uint64) ValueID {
	return b.ConstBytes(t, EncodeInt(new(big.Int).SetUint64(v), t.StoreSize()))
}

// ConstBytes materializes a constant from its little-endian memory image.
func (b *Builder) ConstBytes(t Type, data []byte) ValueID {
	img := make([]byte, t.StoreSize())
	copy(img, data)
	v := b.newValue(t)
	b.emit(Op{Code: OpConst, Results: []ValueID{v}, Type: t, Imm: img})
	return v
}

// Zero produces the all-zero value of type t.
func (b *Builder) Zero(t Type) ValueID { return b.single(OpZero, t) }

// Binary emits integer arithmetic; the result has x's type.
func (b *Builder) Binary(code Code, x, y ValueID) ValueID {
	return b.single(code, b.TypeOf(x), x, y)
}

func (b *Builder) Add(x, y ValueID) ValueID  { return b.Binary(OpAdd, x, y) }
func (b *Builder) Sub(x, y ValueID) ValueID  { return b.Binary(OpSub, x, y) }
func (b *Builder) Mul(x, y ValueID) ValueID  { return b.Binary(OpMul, x, y) }
func (b *Builder) UDiv(x, y ValueID) ValueID { return b.Binary(OpUDiv, x, y) }
func (b *Builder) URem(x, y ValueID) ValueID { return b.Binary(OpURem, x, y) }
func (b *Builder) And(x, y ValueID) ValueID  { return b.Binary(OpAnd, x, y) }
func (b *Builder) Or(x, y ValueID) ValueID   { return b.Binary(OpOr, x, y) }
func (b *Builder) Xor(x, y ValueID) ValueID  { return b.Binary(OpXor, x, y) }
func (b *Builder) Shl(x, y ValueID) ValueID  { return b.Binary(OpShl, x, y) }
func (b *Builder) LShr(x, y ValueID) ValueID { return b.Binary(OpLShr, x, y) }

// Mod emits (x op y) mod m.
func (b *Builder) Mod(code Code, x, y, m ValueID) ValueID {
	return b.single(code, b.TypeOf(x), x, y, m)
}

// ICmp compares two integers producing an i1.
func (b *Builder) ICmp(p Pred, x, y ValueID) ValueID {
	v := b.newValue(I1)
	b.emit(Op{Code: OpICmp, Results: []ValueID{v}, Args: []ValueID{x, y}, Type: I1, Pred: p})
	return v
}

// Select picks x when c is set, otherwise y.
func (b *Builder) Select(c, x, y ValueID) ValueID {
	return b.single(OpSelect, b.TypeOf(x), c, x, y)
}

func (b *Builder) ZExt(x ValueID, t Type) ValueID    { return b.cast(OpZExt, x, t) }
func (b *Builder) SExt(x ValueID, t Type) ValueID    { return b.cast(OpSExt, x, t) }
func (b *Builder) Trunc(x ValueID, t Type) ValueID   { return b.cast(OpTrunc, x, t) }
func (b *Builder) Bitcast(x ValueID, t Type) ValueID { return b.cast(OpBitcast, x, t) }

// Resize zero-extends, truncates or passes x through to reach t.
func (b *Builder) Resize(x ValueID, t Type) ValueID {
	from := b.TypeOf(x)
	switch {
	case from == t:
		return x
	case from.Bits < t.Bits:
		return b.ZExt(x, t)
	default:
		return b.Trunc(x, t)
	}
}

func (b *Builder) cast(code Code, x ValueID, t Type) ValueID {
	if b.TypeOf(x) == t {
		return x
	}
	return b.single(code, t, x)
}

// Extract reads a t-typed field at a byte offset of a blob.
func (b *Builder) Extract(agg ValueID, offset int, t Type) ValueID {
	v := b.newValue(t)
	b.emit(Op{Code: OpExtract, Results: []ValueID{v}, Args: []ValueID{agg}, Type: t, Offset: offset})
	return v
}

// Insert writes val at a byte offset of a blob, producing a new blob.
func (b *Builder) Insert(agg, val ValueID, offset int) ValueID {
	t := b.TypeOf(agg)
	v := b.newValue(t)
	b.emit(Op{Code: OpInsert, Results: []ValueID{v}, Args: []ValueID{agg, val}, Type: t, Offset: offset})
	return v
}

// Alloc allocates size bytes (an i64) of zeroed memory.
func (b *Builder) Alloc(size ValueID) ValueID { return b.single(OpAlloc, Ptr(), size) }

// Realloc moves an allocation, preserving min(oldSize, newSize) bytes.
func (b *Builder) Realloc(ptr, oldSize, newSize ValueID) ValueID {
	return b.single(OpRealloc, Ptr(), ptr, oldSize, newSize)
}

// Load reads a t-typed value.
func (b *Builder) Load(ptr ValueID, t Type) ValueID { return b.single(OpLoad, t, ptr) }

// Store writes v at ptr.
func (b *Builder) Store(ptr, v ValueID) {
	b.emit(Op{Code: OpStore, Args: []ValueID{ptr, v}})
}

// Memcpy copies n bytes (an i64).
func (b *Builder) Memcpy(dst, src, n ValueID) {
	b.emit(Op{Code: OpMemcpy, Args: []ValueID{dst, src, n}})
}

// PtrAdd offsets a pointer by an i64 byte count.
func (b *Builder) PtrAdd(ptr, off ValueID) ValueID { return b.single(OpPtrAdd, Ptr(), ptr, off) }

// Call calls a module function.
func (b *Builder) Call(callee string, results []Type, args ...ValueID) []ValueID {
	return b.call(OpCall, callee, results, args)
}

// RuntimeCall calls a declared runtime function.
func (b *Builder) RuntimeCall(d RuntimeDecl, args ...ValueID) []ValueID {
	return b.call(OpRuntimeCall, d.Name, d.Results, args)
}

func (b *Builder) call(code Code, callee string, results []Type, args []ValueID) []ValueID {
	outs := make([]ValueID, len(results))
	for i, t := range results {
		outs[i] = b.newValue(t)
	}
	b.emit(Op{Code: code, Results: outs, Args: append([]ValueID(nil), args...), Callee: callee})
	return outs
}

func (b *Builder) terminate(t Terminator) {
	b.f.Blocks[b.cur].Term = t
}

// Br jumps unconditionally.
func (b *Builder) Br(target BlockID, args ...ValueID) {
	b.terminate(Terminator{Kind: TermBr, Br: Edge{Target: target, Args: args}})
}

// CondBr branches on an i1.
func (b *Builder) CondBr(cond ValueID, then Edge, els Edge) {
	b.terminate(Terminator{Kind: TermCondBr, CondBr: CondBrTerm{Cond: cond, Then: then, Else: els}})
}

// Switch dispatches on an integer value.
func (b *Builder) Switch(v ValueID, cases []SwitchCase, def Edge) {
	b.terminate(Terminator{Kind: TermSwitch, Switch: SwitchTerm{Value: v, Cases: cases, Default: def}})
}

// Return leaves the function.
func (b *Builder) Return(vals ...ValueID) {
	b.terminate(Terminator{Kind: TermReturn, Return: ReturnTerm{Values: vals}})
}

// Trap aborts execution.
func (b *Builder) Trap(code TrapCode, msg string) {
	b.terminate(Terminator{Kind: TermTrap, Trap: TrapTerm{Code: code, Msg: msg}})
}

// EncodeInt writes v as a size-byte little-endian two's complement image.
func EncodeInt(v *big.Int, size int) []byte {
	out := make([]byte, size)
	if v == nil || size == 0 {
		return out
	}
	var u uint256.Int
	if v.Sign() < 0 {
		abs := new(big.Int).Neg(v)
		u.SetFromBig(abs)
		u.Neg(&u)
	} else {
		u.SetFromBig(v)
	}
	PutUint256(out, &u)
	return out
}
