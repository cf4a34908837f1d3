package felt

import (
	"math/big"
	"testing"
)

func TestNormalizesNegatives(t *testing.T) {
	f := FromInt64(-1)
	want := new(big.Int).Sub(Prime(), big.NewInt(1))
	if f.BigInt().Cmp(want) != 0 {
		t.Fatalf("-1 = %s, want %s", f, want)
	}
	if f.Signed().Int64() != -1 {
		t.Fatalf("signed = %s, want -1", f.Signed())
	}
}

func TestReducesModuloPrime(t *testing.T) {
	v := new(big.Int).Add(Prime(), big.NewInt(5))
	if got := FromBigInt(v); !got.Equal(FromUint64(5)) {
		t.Fatalf("p+5 = %s, want 5", got)
	}
}

func TestLittleEndianRoundTrip(t *testing.T) {
	f, err := Parse("0x1234567890abcdef1234567890abcdef")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	le := f.LE()
	if le[0] != 0xef || le[15] != 0x12 || le[16] != 0 {
		t.Fatalf("unexpected encoding %x", le)
	}
	if back := FromLE(le[:]); !back.Equal(f) {
		t.Fatalf("round trip = %s, want %s", back, f)
	}
}

func TestArithmetic(t *testing.T) {
	a, b := FromUint64(10), FromUint64(4)
	if got := a.Sub(b); !got.Equal(FromUint64(6)) {
		t.Fatalf("10-4 = %s", got)
	}
	if got := b.Sub(a); !got.Equal(FromInt64(-6)) {
		t.Fatalf("4-10 = %s", got)
	}
	q := a.Div(b)
	if got := q.Mul(b); !got.Equal(a) {
		t.Fatalf("(10/4)*4 = %s", got)
	}
}

func TestShortString(t *testing.T) {
	f := MustShortString("Out of gas")
	s, ok := f.ShortString()
	if !ok || s != "Out of gas" {
		t.Fatalf("decoded %q, %v", s, ok)
	}
	if _, err := FromShortString("this string is definitely longer than 31"); err == nil {
		t.Fatalf("expected error for long string")
	}
}
