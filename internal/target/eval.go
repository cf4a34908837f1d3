package target

import (
	"encoding/binary"

	"github.com/holiman/uint256"
)

// LoadUint256 decodes a little-endian image of at most 32 bytes.
func LoadUint256(b []byte) uint256.Int {
	var buf [32]byte
	copy(buf[:], b)
	var z uint256.Int
	for i := range 4 {
		z[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return z
}

// PutUint256 writes the low len(dst) bytes of z.
func PutUint256(dst []byte, z *uint256.Int) {
	var buf [32]byte
	for i := range 4 {
		binary.LittleEndian.PutUint64(buf[i*8:], z[i])
	}
	copy(dst, buf[:])
}

// Mask truncates z to bits.
func Mask(z *uint256.Int, bits int) *uint256.Int {
	if bits >= 256 {
		return z
	}
	var m uint256.Int
	m.Lsh(uint256.NewInt(1), uint(bits)) //nolint:gosec // bits in [0, 256)
	m.SubUint64(&m, 1)
	return z.And(z, &m)
}

// SignExtend interprets the low bits of x as signed and widens to 256 bits.
func SignExtend(x *uint256.Int, bits int) uint256.Int {
	z := *x
	if bits >= 256 || bits <= 0 {
		return z
	}
	Mask(&z, bits)
	top := bits - 1
	if (z[top/64]>>(top%64))&1 == 0 {
		return z
	}
	var m uint256.Int
	m.Lsh(uint256.NewInt(1), uint(bits)) //nolint:gosec // bits in (0, 256)
	m.SubUint64(&m, 1)
	m.Not(&m)
	z.Or(&z, &m)
	return z
}

// EvalBinary computes a two-operand op at the given width. ok is false on
// division by zero.
func EvalBinary(code Code, bits int, x, y *uint256.Int) (uint256.Int, bool) {
	var z uint256.Int
	switch code {
	case OpAdd:
		z.Add(x, y)
	case OpSub:
		z.Sub(x, y)
	case OpMul:
		z.Mul(x, y)
	case OpUDiv:
		if y.IsZero() {
			return z, false
		}
		z.Div(x, y)
	case OpURem:
		if y.IsZero() {
			return z, false
		}
		z.Mod(x, y)
	case OpSDiv, OpSRem:
		if y.IsZero() {
			return z, false
		}
		sx, sy := SignExtend(x, bits), SignExtend(y, bits)
		if code == OpSDiv {
			z.SDiv(&sx, &sy)
		} else {
			z.SMod(&sx, &sy)
		}
	case OpAnd:
		z.And(x, y)
	case OpOr:
		z.Or(x, y)
	case OpXor:
		z.Xor(x, y)
	case OpShl:
		if y.LtUint64(uint64(bits)) { //nolint:gosec // bits <= 256
			z.Lsh(x, uint(y.Uint64()))
		}
	case OpLShr:
		if y.LtUint64(uint64(bits)) { //nolint:gosec // bits <= 256
			z.Rsh(x, uint(y.Uint64()))
		}
	case OpAShr:
		sx := SignExtend(x, bits)
		n := uint(bits)
		if y.LtUint64(uint64(bits)) { //nolint:gosec // bits <= 256
			n = uint(y.Uint64())
		}
		if n >= 256 {
			n = 255
		}
		z.SRsh(&sx, n)
	default:
		return z, false
	}
	Mask(&z, bits)
	return z, true
}

// EvalModular computes (x op y) mod m. ok is false when m is zero.
func EvalModular(code Code, bits int, x, y, m *uint256.Int) (uint256.Int, bool) {
	var z uint256.Int
	if m.IsZero() {
		return z, false
	}
	switch code {
	case OpAddMod:
		z.AddMod(x, y, m)
	case OpMulMod:
		z.MulMod(x, y, m)
	case OpSubMod:
		var a, b uint256.Int
		a.Mod(x, m)
		b.Mod(y, m)
		if a.Cmp(&b) >= 0 {
			z.Sub(&a, &b)
		} else {
			z.Sub(m, &b)
			z.Add(&z, &a)
		}
	default:
		return z, false
	}
	Mask(&z, bits)
	return z, true
}

// EvalICmp compares x and y of the given width.
func EvalICmp(p Pred, bits int, x, y *uint256.Int) bool {
	switch p {
	case PredEQ:
		return x.Eq(y)
	case PredNE:
		return !x.Eq(y)
	case PredULT:
		return x.Lt(y)
	case PredULE:
		return !x.Gt(y)
	case PredUGT:
		return x.Gt(y)
	case PredUGE:
		return !x.Lt(y)
	}
	sx, sy := SignExtend(x, bits), SignExtend(y, bits)
	switch p {
	case PredSLT:
		return sx.Slt(&sy)
	case PredSLE:
		return !sx.Sgt(&sy)
	case PredSGT:
		return sx.Sgt(&sy)
	case PredSGE:
		return !sx.Slt(&sy)
	default:
		return false
	}
}

// EvalCast converts between integer widths.
func EvalCast(code Code, fromBits, toBits int, x *uint256.Int) uint256.Int {
	z := *x
	switch code {
	case OpSExt:
		z = SignExtend(x, fromBits)
	case OpZExt, OpTrunc, OpBitcast:
		Mask(&z, fromBits)
	}
	Mask(&z, toBits)
	return z
}
