package jit

import (
	"encoding/binary"
	"math/big"

	"github.com/holiman/uint256"

	"sierranative/internal/target"
)

// Value is a register: the memory image of a target value, little endian,
// StoreSize bytes long. Values are never modified once produced.
type Value []byte

// IntValue encodes z as a value of type t.
func IntValue(t target.Type, z *uint256.Int) Value {
	v := make(Value, t.StoreSize())
	m := *z
	if t.IsInt() {
		target.Mask(&m, t.Bits)
	}
	target.PutUint256(v, &m)
	return v
}

// U64Value encodes n as a value of type t.
func U64Value(t target.Type, n uint64) Value {
	return IntValue(t, uint256.NewInt(n))
}

// BigValue encodes n in two's complement as a value of type t.
func BigValue(t target.Type, n *big.Int) Value {
	return Value(target.EncodeInt(n, t.StoreSize()))
}

// BoolValue is an i1.
func BoolValue(b bool) Value {
	if b {
		return Value{1}
	}
	return Value{0}
}

// PtrValue is a pointer.
func PtrValue(p uint64) Value {
	v := make(Value, 8)
	binary.LittleEndian.PutUint64(v, p)
	return v
}

// Zero is the zeroed value of type t.
func Zero(t target.Type) Value { return make(Value, t.StoreSize()) }

// Uint256 decodes an integer value of at most 32 bytes.
func (v Value) Uint256() uint256.Int { return target.LoadUint256(v) }

// Big decodes the value as an unsigned integer.
func (v Value) Big() *big.Int {
	z := v.Uint256()
	return z.ToBig()
}

// U64 decodes the low 64 bits.
func (v Value) U64() uint64 {
	var buf [8]byte
	copy(buf[:], v)
	return binary.LittleEndian.Uint64(buf[:])
}

// Bool decodes an i1.
func (v Value) Bool() bool { return len(v) > 0 && v[0]&1 == 1 }

// normalize clears the bits of an int value above its width.
func normalize(t target.Type, v Value) Value {
	if !t.IsInt() || t.Bits%8 == 0 {
		return v
	}
	z := v.Uint256()
	return IntValue(t, &z)
}
