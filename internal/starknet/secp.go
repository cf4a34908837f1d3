package starknet

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/secp256k1"
	"github.com/consensys/gnark-crypto/ecc/secp256k1/fp"
)

// secpCurve is the point arithmetic behind the secp syscalls. The point at
// infinity is (0, 0), which is never on these curves.
type secpCurve interface {
	// inField reports whether both coordinates are reduced.
	inField(x, y *big.Int) bool
	onCurve(x, y *big.Int) bool
	add(x0, y0, x1, y1 *big.Int) (*big.Int, *big.Int)
}

func isInfinity(x, y *big.Int) bool { return x.Sign() == 0 && y.Sign() == 0 }

func reduced(p, x, y *big.Int) bool {
	return x.Sign() >= 0 && y.Sign() >= 0 && x.Cmp(p) < 0 && y.Cmp(p) < 0
}

// k1 is secp256k1 on gnark-crypto's affine group.
type k1 struct{}

var secp256k1Curve secpCurve = k1{}

func (k1) point(x, y *big.Int) secp256k1.G1Affine {
	var pt secp256k1.G1Affine
	pt.X.SetBigInt(x)
	pt.Y.SetBigInt(y)
	return pt
}

func (k1) inField(x, y *big.Int) bool { return reduced(fp.Modulus(), x, y) }

func (c k1) onCurve(x, y *big.Int) bool {
	pt := c.point(x, y)
	return pt.IsOnCurve()
}

func (c k1) add(x0, y0, x1, y1 *big.Int) (*big.Int, *big.Int) {
	a, b := c.point(x0, y0), c.point(x1, y1)
	var sum secp256k1.G1Affine
	sum.Add(&a, &b)
	return sum.X.BigInt(new(big.Int)), sum.Y.BigInt(new(big.Int))
}

// curve is a short Weierstrass curve y^2 = x^3 + a*x + b over GF(p) with
// plain big.Int arithmetic, for curves gnark-crypto does not ship.
type curve struct {
	p *big.Int
	a *big.Int
	b *big.Int
}

func hexInt(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("starknet: bad curve constant " + s)
	}
	return n
}

var secp256r1 = &curve{
	p: hexInt("ffffffff00000001000000000000000000000000ffffffffffffffffffffffff"),
	a: hexInt("ffffffff00000001000000000000000000000000fffffffffffffffffffffffc"),
	b: hexInt("5ac635d8aa3a93e7b3ebbd55769886bc651d06b0cc53b0f63bce3c3e27d2604b"),
}

func (c *curve) inField(x, y *big.Int) bool { return reduced(c.p, x, y) }

func (c *curve) onCurve(x, y *big.Int) bool {
	if isInfinity(x, y) {
		return true
	}
	lhs := new(big.Int).Mul(y, y)
	lhs.Mod(lhs, c.p)
	rhs := new(big.Int).Exp(x, big.NewInt(3), c.p)
	ax := new(big.Int).Mul(c.a, x)
	rhs.Add(rhs, ax).Add(rhs, c.b).Mod(rhs, c.p)
	return lhs.Cmp(rhs) == 0
}

// add returns p0 + p1.
func (c *curve) add(x0, y0, x1, y1 *big.Int) (*big.Int, *big.Int) {
	switch {
	case isInfinity(x0, y0):
		return new(big.Int).Set(x1), new(big.Int).Set(y1)
	case isInfinity(x1, y1):
		return new(big.Int).Set(x0), new(big.Int).Set(y0)
	}
	var slope *big.Int
	if x0.Cmp(x1) == 0 {
		sum := new(big.Int).Add(y0, y1)
		if sum.Mod(sum, c.p).Sign() == 0 {
			return new(big.Int), new(big.Int)
		}
		// (3x^2 + a) / 2y
		num := new(big.Int).Mul(x0, x0)
		num.Mul(num, big.NewInt(3)).Add(num, c.a)
		den := new(big.Int).Lsh(y0, 1)
		slope = c.div(num, den)
	} else {
		num := new(big.Int).Sub(y1, y0)
		den := new(big.Int).Sub(x1, x0)
		slope = c.div(num, den)
	}
	x := new(big.Int).Mul(slope, slope)
	x.Sub(x, x0).Sub(x, x1).Mod(x, c.p)
	y := new(big.Int).Sub(x0, x)
	y.Mul(y, slope).Sub(y, y0).Mod(y, c.p)
	return x, y
}

func (c *curve) div(num, den *big.Int) *big.Int {
	d := new(big.Int).Mod(den, c.p)
	inv := new(big.Int).ModInverse(d, c.p)
	out := new(big.Int).Mod(num, c.p)
	return out.Mul(out, inv).Mod(out, c.p)
}
