package starknet

import (
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/secp256k1/fp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierranative/internal/abi"
	"sierranative/internal/felt"
)

func leInt(t *testing.T, hexBytes string) *big.Int {
	t.Helper()
	b, err := hex.DecodeString(hexBytes)
	require.NoError(t, err)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return new(big.Int).SetBytes(b)
}

func TestKeccakOfEmptyPaddedInput(t *testing.T) {
	input := make([]uint64, keccakRateWords)
	input[0] = 1
	input[keccakRateWords-1] = 0x8000000000000000

	h := NewStubHandler()
	gas := uint64(1_000_000)
	out, err := h.Keccak(input, &gas)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000-KeccakRoundCost), gas)

	// keccak256("") = c5d24601...5d85a470
	assert.Equal(t, 0, out.Low.Cmp(leInt(t, "c5d2460186f7233c927e7db2dcc703c0")))
	assert.Equal(t, 0, out.High.Cmp(leInt(t, "e500b653ca82273b7bfad8045d85a470")))
}

func TestKeccakRejectsUnalignedInput(t *testing.T) {
	h := NewStubHandler()
	gas := uint64(1_000_000)
	_, err := h.Keccak([]uint64{1, 2, 3}, &gas)
	var se *SyscallError
	require.True(t, errors.As(err, &se))
	require.Len(t, se.Data, 1)
	assert.True(t, se.Data[0].Equal(felt.MustShortString(ReasonInvalidInputLen)))
}

func TestStorageRoundTrip(t *testing.T) {
	h := NewStubHandler()
	gas := uint64(10)
	addr := felt.FromUint64(0x42)

	v, err := h.StorageRead(0, addr, &gas)
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	require.NoError(t, h.StorageWrite(0, addr, felt.FromUint64(7), &gas))
	v, err = h.StorageRead(0, addr, &gas)
	require.NoError(t, err)
	assert.True(t, v.Equal(felt.FromUint64(7)))

	_, err = h.StorageRead(1, addr, &gas)
	assert.Error(t, err)
}

func TestCostsAreCharged(t *testing.T) {
	h := NewStubHandler()
	h.Costs = map[string]uint64{"emit_event": 50}
	gas := uint64(80)
	require.NoError(t, h.EmitEvent([]felt.Felt{felt.FromUint64(1)}, nil, &gas))
	assert.Equal(t, uint64(30), gas)

	err := h.EmitEvent(nil, nil, &gas)
	var se *SyscallError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Error(), ReasonOutOfGas)
	assert.Len(t, h.Events(), 1)
}

func TestCallContract(t *testing.T) {
	h := NewStubHandler()
	target := felt.FromUint64(0xc0de)
	h.Deploy(target, func(selector felt.Felt, calldata []felt.Felt, _ *uint64) ([]felt.Felt, error) {
		return append([]felt.Felt{selector}, calldata...), nil
	})
	gas := uint64(0)
	out, err := h.CallContract(target, felt.FromUint64(9), []felt.Felt{felt.FromUint64(1)}, &gas)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].Equal(felt.FromUint64(9)))

	_, err = h.CallContract(felt.FromUint64(1), felt.FromUint64(9), nil, &gas)
	assert.ErrorContains(t, err, ReasonContractNotFound)
}

func TestSecp256k1Doubling(t *testing.T) {
	gx := hexInt("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	gy := hexInt("483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")
	h := NewStubHandler()
	gas := uint64(0)

	p, err := h.Secp256k1New(abi.U256From(gx), abi.U256From(gy), &gas)
	require.NoError(t, err)
	require.NotNil(t, p)

	sum, err := h.Secp256k1Add(*p, *p, &gas)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.X.Cmp(hexInt("c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5")))
	assert.Equal(t, 0, sum.Y.Cmp(hexInt("1ae168fea63dc339a3c58419466ceaeef7f632653266d0e1236431a950cfe52a")))

	off, err := h.Secp256k1New(abi.U256From(gx), abi.U256From(big.NewInt(1)), &gas)
	require.NoError(t, err)
	assert.Nil(t, off)

	_, err = h.Secp256k1New(abi.U256From(fp.Modulus()), abi.U256From(gy), &gas)
	assert.Error(t, err)
}

func TestSecp256k1InverseAndIdentity(t *testing.T) {
	gx := hexInt("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	gy := hexInt("483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8")
	h := NewStubHandler()
	gas := uint64(0)
	g := abi.Secp256k1Point{X: gx, Y: gy}

	neg := abi.Secp256k1Point{X: gx, Y: new(big.Int).Sub(fp.Modulus(), gy)}
	zero, err := h.Secp256k1Add(g, neg, &gas)
	require.NoError(t, err)
	assert.True(t, isInfinity(zero.X, zero.Y))

	same, err := h.Secp256k1Add(g, zero, &gas)
	require.NoError(t, err)
	assert.Equal(t, 0, same.X.Cmp(gx))
	assert.Equal(t, 0, same.Y.Cmp(gy))

	// 2G + G
	twice, err := h.Secp256k1Add(g, g, &gas)
	require.NoError(t, err)
	thrice, err := h.Secp256k1Add(twice, g, &gas)
	require.NoError(t, err)
	assert.Equal(t, 0, thrice.X.Cmp(hexInt("f9308a019258c31049344f85f89d5229b531c845836f99b08601f113bce036f9")))
	assert.True(t, secp256k1Curve.onCurve(thrice.X, thrice.Y))
}

func TestSecp256r1MatchesStdlib(t *testing.T) {
	params := elliptic.P256().Params()
	h := NewStubHandler()
	gas := uint64(0)
	p, err := h.Secp256r1New(abi.U256From(params.Gx), abi.U256From(params.Gy), &gas)
	require.NoError(t, err)
	require.NotNil(t, p)

	sum, err := h.Secp256r1Add(*p, *p, &gas)
	require.NoError(t, err)
	wx, wy := params.Double(params.Gx, params.Gy)
	assert.Equal(t, 0, sum.X.Cmp(wx))
	assert.Equal(t, 0, sum.Y.Cmp(wy))

	// P + (-P) is the point at infinity.
	neg := abi.Secp256r1Point{X: params.Gx, Y: new(big.Int).Sub(params.P, params.Gy)}
	zero, err := h.Secp256r1Add(*p, neg, &gas)
	require.NoError(t, err)
	assert.True(t, isInfinity(zero.X, zero.Y))
}

func TestDescribeData(t *testing.T) {
	data := []felt.Felt{felt.MustShortString("Out of gas"), felt.FromUint64(0x10)}
	assert.Equal(t, "['Out of gas', 0x10]", DescribeData(data))
}
