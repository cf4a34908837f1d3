// Package abi converts between host values and the memory images compiled
// code works on. Offsets come from type descriptors computed once per type;
// arrays and boxes live in a Heap.
package abi

import (
	"fmt"
	"math/big"
	"strings"

	"sierranative/internal/felt"
)

// ValueKind tags a Value.
type ValueKind uint8

const (
	ValInvalid ValueKind = iota
	ValFelt
	ValUint
	ValSint
	ValBounded
	ValStruct
	ValEnum
	ValArray
	ValBox
	ValNullable
	ValEcPoint
	ValSecpPoint
	ValBuiltin
	ValUninit
)

var valueKindNames = [...]string{
	ValInvalid:   "invalid",
	ValFelt:      "felt252",
	ValUint:      "uint",
	ValSint:      "sint",
	ValBounded:   "bounded_int",
	ValStruct:    "struct",
	ValEnum:      "enum",
	ValArray:     "array",
	ValBox:       "box",
	ValNullable:  "nullable",
	ValEcPoint:   "ec_point",
	ValSecpPoint: "secp_point",
	ValBuiltin:   "builtin",
	ValUninit:    "uninitialized",
}

func (k ValueKind) String() string {
	if int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return "value?"
}

// Value is a host-side program value.
type Value struct {
	Kind ValueKind
	// Int holds numbers, builtin counters and felts (canonical).
	Int *big.Int
	// Fields holds struct fields, array elements or point coordinates.
	Fields []Value
	// Tag is the enum variant.
	Tag int
	// Inner is the enum payload or the boxed value; nil for a null Nullable.
	Inner *Value
}

// Felt is a felt252 reduced to its canonical representative.
func Felt(n *big.Int) Value {
	return Value{Kind: ValFelt, Int: felt.FromBigInt(n).BigInt()}
}

// FeltFrom wraps a field element.
func FeltFrom(f felt.Felt) Value { return Value{Kind: ValFelt, Int: f.BigInt()} }

// FeltU64 is a small felt252.
func FeltU64(n uint64) Value { return FeltFrom(felt.FromUint64(n)) }

// Uint is an unsigned integer.
func Uint(n uint64) Value { return Value{Kind: ValUint, Int: new(big.Int).SetUint64(n)} }

// UintBig is an unsigned integer of any width.
func UintBig(n *big.Int) Value { return Value{Kind: ValUint, Int: new(big.Int).Set(n)} }

// Sint is a signed integer.
func Sint(n int64) Value { return Value{Kind: ValSint, Int: big.NewInt(n)} }

// SintBig is a signed integer of any width.
func SintBig(n *big.Int) Value { return Value{Kind: ValSint, Int: new(big.Int).Set(n)} }

// Bounded is a bounded_int value.
func Bounded(n *big.Int) Value { return Value{Kind: ValBounded, Int: new(big.Int).Set(n)} }

// Builtin is a builtin counter.
func Builtin(n uint64) Value { return Value{Kind: ValBuiltin, Int: new(big.Int).SetUint64(n)} }

// Struct builds a struct; Struct() is the unit value.
func Struct(fields ...Value) Value { return Value{Kind: ValStruct, Fields: fields} }

// Enum builds variant tag carrying payload.
func Enum(tag int, payload Value) Value { return Value{Kind: ValEnum, Tag: tag, Inner: &payload} }

// Array builds an array.
func Array(elems ...Value) Value { return Value{Kind: ValArray, Fields: elems} }

// Box boxes v.
func Box(v Value) Value { return Value{Kind: ValBox, Inner: &v} }

// Null is the null Nullable.
func Null() Value { return Value{Kind: ValNullable} }

// NullableOf is a non-null Nullable.
func NullableOf(v Value) Value { return Value{Kind: ValNullable, Inner: &v} }

// EcPoint is a STARK curve point; (0, 0) is the point at infinity.
func EcPoint(x, y *big.Int) Value {
	return Value{Kind: ValEcPoint, Fields: []Value{Felt(x), Felt(y)}}
}

// SecpPoint is a secp256 point with u256 coordinates.
func SecpPoint(x, y *big.Int) Value {
	return Value{Kind: ValSecpPoint, Fields: []Value{UintBig(x), UintBig(y)}}
}

// Uninit is an uninitialized slot.
func Uninit() Value { return Value{Kind: ValUninit} }

// FeltsOf builds an Array<felt252>.
func FeltsOf(fs ...felt.Felt) Value {
	elems := make([]Value, len(fs))
	for i, f := range fs {
		elems[i] = FeltFrom(f)
	}
	return Array(elems...)
}

// Felts returns the elements of an Array<felt252>.
func (v Value) Felts() ([]felt.Felt, bool) {
	if v.Kind != ValArray {
		return nil, false
	}
	out := make([]felt.Felt, len(v.Fields))
	for i, e := range v.Fields {
		if e.Kind != ValFelt {
			return nil, false
		}
		out[i] = felt.FromBigInt(e.Int)
	}
	return out, true
}

// Equal compares values structurally.
func (v Value) Equal(w Value) bool {
	if v.Kind != w.Kind || v.Tag != w.Tag || len(v.Fields) != len(w.Fields) {
		return false
	}
	switch {
	case v.Int == nil && w.Int != nil, v.Int != nil && w.Int == nil:
		return false
	case v.Int != nil && v.Int.Cmp(w.Int) != 0:
		return false
	}
	for i := range v.Fields {
		if !v.Fields[i].Equal(w.Fields[i]) {
			return false
		}
	}
	switch {
	case v.Inner == nil && w.Inner == nil:
		return true
	case v.Inner == nil || w.Inner == nil:
		return false
	}
	return v.Inner.Equal(*w.Inner)
}

func (v Value) String() string {
	switch v.Kind {
	case ValFelt, ValUint, ValSint, ValBounded, ValBuiltin:
		if v.Int == nil {
			return "0"
		}
		return v.Int.String()
	case ValStruct:
		return "{" + joinValues(v.Fields) + "}"
	case ValArray:
		return "[" + joinValues(v.Fields) + "]"
	case ValEnum:
		if v.Inner == nil {
			return fmt.Sprintf("variant%d", v.Tag)
		}
		return fmt.Sprintf("variant%d(%s)", v.Tag, v.Inner)
	case ValBox:
		return fmt.Sprintf("box(%s)", v.Inner)
	case ValNullable:
		if v.Inner == nil {
			return "null"
		}
		return fmt.Sprintf("nullable(%s)", v.Inner)
	case ValEcPoint, ValSecpPoint:
		return "(" + joinValues(v.Fields) + ")"
	case ValUninit:
		return "uninit"
	default:
		return "<invalid>"
	}
}

func joinValues(vs []Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
