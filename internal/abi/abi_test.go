package abi_test

import (
	"encoding/binary"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierranative/internal/abi"
	"sierranative/internal/backend/jit"
	"sierranative/internal/builders"
	"sierranative/internal/errs"
	"sierranative/internal/felt"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/sierra/text"
)

const typesProgram = `
type felt252 = felt252;
type u8 = u8;
type i16 = i16;
type u128 = u128;
type Small = bounded_int<-5, 10>;
type Unit = Struct<ut@Tuple>;
type Pair = Struct<ut@Pair, u8, felt252>;
type Option = Enum<ut@core::option::Option, felt252, Unit>;
type Felts = Array<felt252>;
type Pairs = Array<Pair>;
type BoxedPair = Box<Pair>;
type MaybeFelt = Nullable<felt252>;
type NonZeroFelt = NonZero<felt252>;
type ContractAddress = ContractAddress;
type GasBuiltin = GasBuiltin;
type EcPoint = EcPoint;
type Secp256k1Point = Secp256k1Point;
`

type fixture struct {
	reg   *registry.Registry
	desc  *abi.Describer
	codec *abi.Codec
	mem   *jit.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	p, err := text.Parse("types.sierra", typesProgram)
	require.NoError(t, err)
	reg, err := registry.Build(p, builders.Core())
	require.NoError(t, err)
	d := abi.NewDescriber(reg)
	for _, decl := range p.TypeDeclarations {
		_, err := d.Describe(decl.ID)
		require.NoError(t, err, "describe %s", decl.ID)
	}
	mem := jit.NewMemory(0)
	return &fixture{reg: reg, desc: d, codec: &abi.Codec{Types: d.Types(), Heap: mem}, mem: mem}
}

func (f *fixture) id(t *testing.T, name string) uint64 {
	t.Helper()
	for _, decl := range f.reg.Program().TypeDeclarations {
		if decl.ID.DebugName == name {
			return decl.ID.ID
		}
	}
	t.Fatalf("no type %s", name)
	return 0
}

func (f *fixture) typeID(t *testing.T, name string) sierra.TypeID {
	t.Helper()
	for _, decl := range f.reg.Program().TypeDeclarations {
		if decl.ID.DebugName == name {
			return decl.ID
		}
	}
	t.Fatalf("no type %s", name)
	return sierra.TypeID{}
}

func TestRoundTrip(t *testing.T) {
	f := newFixture(t)
	pair := abi.Struct(abi.Uint(7), abi.FeltU64(99))
	cases := []struct {
		typ string
		v   abi.Value
	}{
		{"felt252", abi.FeltU64(42)},
		{"u8", abi.Uint(255)},
		{"i16", abi.Sint(-300)},
		{"u128", abi.UintBig(new(big.Int).Lsh(big.NewInt(1), 127))},
		{"Small", abi.Bounded(big.NewInt(-5))},
		{"Small", abi.Bounded(big.NewInt(10))},
		{"Unit", abi.Struct()},
		{"Pair", pair},
		{"Option", abi.Enum(0, abi.FeltU64(5))},
		{"Option", abi.Enum(1, abi.Struct())},
		{"Felts", abi.Array()},
		{"Felts", abi.Array(abi.FeltU64(1), abi.FeltU64(2), abi.FeltU64(3))},
		{"Pairs", abi.Array(pair, pair)},
		{"BoxedPair", abi.Box(pair)},
		{"MaybeFelt", abi.Null()},
		{"MaybeFelt", abi.NullableOf(abi.FeltU64(8))},
		{"NonZeroFelt", abi.FeltU64(3)},
		{"ContractAddress", abi.FeltU64(0x1234)},
		{"GasBuiltin", abi.Builtin(1_000_000)},
		{"EcPoint", abi.EcPoint(big.NewInt(1), big.NewInt(2))},
		{"Secp256k1Point", abi.SecpPoint(new(big.Int).Lsh(big.NewInt(3), 200), big.NewInt(4))},
	}
	for _, tc := range cases {
		t.Run(tc.typ+"/"+tc.v.String(), func(t *testing.T) {
			id := f.id(t, tc.typ)
			img, err := f.codec.Encode(id, tc.v)
			require.NoError(t, err)
			got, err := f.codec.Decode(id, img)
			require.NoError(t, err)
			assert.True(t, tc.v.Equal(got), "got %s, want %s", got, tc.v)
		})
	}
}

func TestFeltsAreNormalized(t *testing.T) {
	f := newFixture(t)
	id := f.id(t, "felt252")

	img, err := f.codec.Encode(id, abi.Felt(big.NewInt(-1)))
	require.NoError(t, err)
	got, err := f.codec.Decode(id, img)
	require.NoError(t, err)
	want := new(big.Int).Sub(felt.Prime(), big.NewInt(1))
	assert.Equal(t, 0, got.Int.Cmp(want))

	over := new(big.Int).Add(felt.Prime(), big.NewInt(3))
	img, err = f.codec.Encode(id, abi.Value{Kind: abi.ValFelt, Int: over})
	require.NoError(t, err)
	got, err = f.codec.Decode(id, img)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Int.Int64())
}

func TestBoundedIntsAreStoredFromTheirLowerBound(t *testing.T) {
	f := newFixture(t)
	img, err := f.codec.Encode(f.id(t, "Small"), abi.Bounded(big.NewInt(-5)))
	require.NoError(t, err)
	require.Len(t, img, 1)
	assert.Equal(t, byte(0), img[0])

	img, err = f.codec.Encode(f.id(t, "Small"), abi.Bounded(big.NewInt(10)))
	require.NoError(t, err)
	assert.Equal(t, byte(15), img[0])
}

func TestRangeViolations(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		typ string
		v   abi.Value
	}{
		{"u8", abi.Uint(256)},
		{"u8", abi.Sint(-1)},
		{"i16", abi.Sint(40_000)},
		{"Small", abi.Bounded(big.NewInt(11))},
		{"ContractAddress", abi.Felt(new(big.Int).Lsh(big.NewInt(1), 251))},
	}
	for _, tc := range cases {
		_, err := f.codec.Encode(f.id(t, tc.typ), tc.v)
		require.Error(t, err, "%s as %s", tc.v, tc.typ)
		assert.Equal(t, errs.KindUnexpectedValue, errs.KindOf(err))
	}
}

func TestShapeMismatchIsNativeAssert(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		typ string
		v   abi.Value
	}{
		{"felt252", abi.Uint(1)},
		{"Pair", abi.Struct(abi.Uint(1))},
		{"Option", abi.Enum(2, abi.Struct())},
		{"BoxedPair", abi.Null()},
	}
	for _, tc := range cases {
		_, err := f.codec.Encode(f.id(t, tc.typ), tc.v)
		require.Error(t, err)
		assert.Equal(t, errs.KindNativeAssert, errs.KindOf(err), "%s as %s: %v", tc.v, tc.typ, err)
	}
}

func TestWrappersShareTheInnerDescriptor(t *testing.T) {
	f := newFixture(t)
	inner, err := f.desc.Describe(f.typeID(t, "felt252"))
	require.NoError(t, err)
	nz, err := f.desc.Describe(f.typeID(t, "NonZeroFelt"))
	require.NoError(t, err)
	assert.Same(t, inner, nz)
}

func TestArraysOwnHeapBuffers(t *testing.T) {
	f := newFixture(t)
	before := f.mem.Allocations()
	img, err := f.codec.Encode(f.id(t, "Felts"), abi.Array(abi.FeltU64(1), abi.FeltU64(2)))
	require.NoError(t, err)
	assert.Equal(t, before+1, f.mem.Allocations())

	desc, err := abi.ParseArrayAbi(img)
	require.NoError(t, err)
	assert.NotZero(t, desc.Ptr)
	assert.Equal(t, uint32(2), desc.Len)
	assert.Equal(t, uint32(2), desc.Cap)

	fs, err := abi.ReadFelts(f.mem, img)
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.True(t, fs[1].Equal(felt.FromUint64(2)))

	empty, err := f.codec.Encode(f.id(t, "Felts"), abi.Array())
	require.NoError(t, err)
	assert.Equal(t, make([]byte, abi.ArrayAbiSize), empty)
}

func TestU256Halves(t *testing.T) {
	n := new(big.Int).Lsh(big.NewInt(5), 128)
	n.Add(n, big.NewInt(9))
	u := abi.U256From(n)
	assert.Equal(t, int64(9), u.Low.Int64())
	assert.Equal(t, int64(5), u.High.Int64())

	back, err := abi.ParseU256(u.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 0, back.Big().Cmp(n))
}

func TestExecutionInfoV2Layout(t *testing.T) {
	mem := jit.NewMemory(0)
	info := abi.ExecutionInfoV2{
		BlockInfo:       abi.BlockInfo{BlockNumber: 7, BlockTimestamp: 9, SequencerAddress: felt.FromUint64(3)},
		TxInfo:          abi.TxV2Info{TxInfo: abi.TxInfo{Version: felt.FromUint64(3), Signature: []felt.Felt{felt.FromUint64(11)}}},
		CallerAddress:   felt.FromUint64(0xca11),
		ContractAddress: felt.FromUint64(0xc0de),
	}
	ptr, err := info.Write(mem)
	require.NoError(t, err)

	// {Box<BlockInfo>, Box<TxInfo>, caller, contract, selector}
	head, err := mem.Read(ptr, 16+3*felt.Size)
	require.NoError(t, err)
	caller := felt.FromLE(head[16 : 16+felt.Size])
	assert.True(t, caller.Equal(felt.FromUint64(0xca11)))

	block, err := mem.Read(binary.LittleEndian.Uint64(head[0:]), 48)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(block[0:]))
	assert.Equal(t, uint64(9), binary.LittleEndian.Uint64(block[8:]))
	assert.True(t, felt.FromLE(block[16:48]).Equal(felt.FromUint64(3)))

	// TxInfo v2: version, account, max_fee (u128), signature span at 80.
	tx, err := mem.Read(binary.LittleEndian.Uint64(head[8:]), 96)
	require.NoError(t, err)
	sig, err := abi.ReadFelts(mem, tx[80:96])
	require.NoError(t, err)
	require.Len(t, sig, 1)
	assert.True(t, sig[0].Equal(felt.FromUint64(11)))
}

func TestValueString(t *testing.T) {
	v := abi.Enum(0, abi.Struct(abi.FeltU64(1), abi.Array(abi.Uint(2))))
	assert.Equal(t, "variant0({1, [2]})", v.String())
	assert.Equal(t, "null", abi.Null().String())
}
