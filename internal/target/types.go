// Package target is the code-generation target of the compiler: a small
// typed SSA form with block parameters, executed in-process by the jit
// backend and printed as LLVM IR by the llvm backend.
package target

import (
	"fmt"

	"sierranative/internal/layout"
)

// TypeKind tags a Type.
type TypeKind uint8

const (
	TyNone TypeKind = iota
	TyInt
	TyPtr
	TyBlob
)

// Type is a target value type. Ints are at most 256 bits wide; blobs are
// untyped byte aggregates with an alignment.
type Type struct {
	Kind  TypeKind `msgpack:"k"`
	Bits  int      `msgpack:"b,omitempty"`
	Size  int      `msgpack:"s,omitempty"`
	Align int      `msgpack:"a,omitempty"`
}

// MaxIntBits bounds Int widths.
const MaxIntBits = 256

func Int(bits int) Type          { return Type{Kind: TyInt, Bits: bits} }
func Ptr() Type                  { return Type{Kind: TyPtr} }
func Blob(size, align int) Type  { return Type{Kind: TyBlob, Size: size, Align: align} }
func (t Type) IsInt() bool       { return t.Kind == TyInt }
func (t Type) IsPtr() bool       { return t.Kind == TyPtr }
func (t Type) IsBlob() bool      { return t.Kind == TyBlob }
func (t Type) Equal(u Type) bool { return t == u }

var (
	I1   = Int(1)
	I8   = Int(8)
	I16  = Int(16)
	I32  = Int(32)
	I64  = Int(64)
	I128 = Int(128)
	I252 = Int(252)
	I256 = Int(256)
)

// FromLayout returns the blob type of a layout.
func FromLayout(l layout.TypeLayout) Type {
	return Blob(l.Size, l.Align)
}

// StoreSize is the number of bytes a value occupies in memory.
func (t Type) StoreSize() int {
	switch t.Kind {
	case TyInt:
		return layout.IntBytes(t.Bits)
	case TyPtr:
		return 8
	case TyBlob:
		return t.Size
	default:
		return 0
	}
}

// AlignOf is the memory alignment of the type.
func (t Type) AlignOf() int {
	switch t.Kind {
	case TyInt:
		return layout.Int(t.Bits).Align
	case TyPtr:
		return 8
	case TyBlob:
		if t.Align <= 0 {
			return 1
		}
		return t.Align
	default:
		return 1
	}
}

func (t Type) String() string {
	switch t.Kind {
	case TyInt:
		return fmt.Sprintf("i%d", t.Bits)
	case TyPtr:
		return "ptr"
	case TyBlob:
		return fmt.Sprintf("blob<%d,%d>", t.Size, t.Align)
	default:
		return "none"
	}
}
