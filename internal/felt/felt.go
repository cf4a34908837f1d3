// Package felt implements felt252, the field element of the STARK prime
// p = 2^251 + 17*2^192 + 1.
package felt

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

// Size is the in-memory size of a felt in bytes.
const Size = 32

// Felt is a canonical field element. The zero value is 0.
type Felt struct {
	e fp.Element
}

var (
	prime     = fp.Modulus()
	halfPrime = new(big.Int).Rsh(fp.Modulus(), 1)
)

// Prime returns a copy of the field modulus.
func Prime() *big.Int { return new(big.Int).Set(prime) }

// Zero and One.
var (
	Zero = Felt{}
	One  = FromUint64(1)
)

// FromUint64 converts v.
func FromUint64(v uint64) Felt {
	var f Felt
	f.e.SetUint64(v)
	return f
}

// FromInt64 converts v, mapping negatives to p - |v|.
func FromInt64(v int64) Felt {
	return FromBigInt(big.NewInt(v))
}

// FromBigInt reduces v modulo p into the canonical range.
func FromBigInt(v *big.Int) Felt {
	var f Felt
	r := new(big.Int).Mod(v, prime)
	f.e.SetBigInt(r)
	return f
}

// Parse accepts decimal (optionally negative) or 0x-prefixed hex.
func Parse(s string) (Felt, error) {
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return Felt{}, fmt.Errorf("invalid felt252 literal %q", s)
	}
	return FromBigInt(v), nil
}

// FromShortString encodes an ASCII string of at most 31 bytes as Cairo does.
func FromShortString(s string) (Felt, error) {
	if len(s) > 31 {
		return Felt{}, fmt.Errorf("short string %q longer than 31 bytes", s)
	}
	return FromBigInt(new(big.Int).SetBytes([]byte(s))), nil
}

// MustShortString is FromShortString that panics.
func MustShortString(s string) Felt {
	f, err := FromShortString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// FromLE decodes little-endian bytes (at most 32) and reduces modulo p.
func FromLE(b []byte) Felt {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return FromBigInt(new(big.Int).SetBytes(be))
}

// BigInt returns v in [0, p).
func (f Felt) BigInt() *big.Int {
	var out big.Int
	f.e.BigInt(&out)
	return &out
}

// Signed returns the representative in (-p/2, p/2].
func (f Felt) Signed() *big.Int {
	v := f.BigInt()
	if v.Cmp(halfPrime) > 0 {
		v.Sub(v, prime)
	}
	return v
}

// LE returns the little-endian 32 byte encoding.
func (f Felt) LE() [Size]byte {
	be := f.e.Bytes()
	var out [Size]byte
	for i := range be {
		out[Size-1-i] = be[i]
	}
	return out
}

// Limbs returns the value as four little-endian 64-bit words.
func (f Felt) Limbs() [4]uint64 {
	le := f.LE()
	var out [4]uint64
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(le[i*8:])
	}
	return out
}

// Uint64 returns the value if it fits.
func (f Felt) Uint64() (uint64, bool) {
	v := f.BigInt()
	if !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

func (f Felt) IsZero() bool        { return f.e.IsZero() }
func (f Felt) Equal(g Felt) bool   { return f.e.Equal(&g.e) }
func (f Felt) Cmp(g Felt) int      { return f.BigInt().Cmp(g.BigInt()) }
func (f Felt) String() string      { return f.BigInt().String() }
func (f Felt) Hex() string         { return "0x" + f.BigInt().Text(16) }
func (f Felt) Element() fp.Element { return f.e }

// FromElement wraps an fp element.
func FromElement(e fp.Element) Felt { return Felt{e: e} }

func (f Felt) Add(g Felt) Felt {
	var out Felt
	out.e.Add(&f.e, &g.e)
	return out
}

func (f Felt) Sub(g Felt) Felt {
	var out Felt
	out.e.Sub(&f.e, &g.e)
	return out
}

func (f Felt) Mul(g Felt) Felt {
	var out Felt
	out.e.Mul(&f.e, &g.e)
	return out
}

func (f Felt) Neg() Felt {
	var out Felt
	out.e.Neg(&f.e)
	return out
}

// Div returns f / g. Division by zero yields zero; callers guard with NonZero.
func (f Felt) Div(g Felt) Felt {
	if g.IsZero() {
		return Zero
	}
	var inv, out fp.Element
	inv.Inverse(&g.e)
	out.Mul(&f.e, &inv)
	return Felt{e: out}
}

// Sqrt returns a square root when one exists.
func (f Felt) Sqrt() (Felt, bool) {
	var out fp.Element
	if out.Sqrt(&f.e) == nil {
		return Zero, false
	}
	return Felt{e: out}, true
}

// ShortString decodes a Cairo short string when every byte is printable.
func (f Felt) ShortString() (string, bool) {
	b := f.BigInt().Bytes()
	if len(b) == 0 || len(b) > 31 {
		return "", false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return "", false
		}
	}
	return string(b), true
}
