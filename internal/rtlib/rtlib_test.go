package rtlib

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierranative/internal/abi"
	"sierranative/internal/backend/jit"
	"sierranative/internal/errs"
	"sierranative/internal/felt"
	"sierranative/internal/metadata"
	"sierranative/internal/starknet"
	"sierranative/internal/target"
)

func newEnv(h starknet.SyscallHandler, debug *bytes.Buffer) *jit.Env {
	host := &Host{Syscalls: h}
	if debug != nil {
		host.Debug = debug
	}
	return jit.NewEnv(context.Background(), Table(), host)
}

func TestEveryRuntimeFunctionIsBound(t *testing.T) {
	table := Table()
	for _, name := range metadata.RuntimeNames() {
		_, ok := table[name]
		assert.True(t, ok, "%s has no binding", name)
	}
}

func TestFelt252Div(t *testing.T) {
	env := newEnv(nil, nil)
	out, err := Table()[metadata.RtFelt252Div](env, []jit.Value{
		feltValue(felt.FromUint64(1)), feltValue(felt.FromUint64(2)),
	})
	require.NoError(t, err)
	half := feltOf(out[0])
	assert.True(t, half.Mul(felt.FromUint64(2)).Equal(felt.FromUint64(1)))
}

func TestIntSqrtFloors(t *testing.T) {
	out, err := intSqrt(nil, []jit.Value{jit.U64Value(target.I256, 99)})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), out[0].U64())
}

func TestEcPointFromXLandsOnCurve(t *testing.T) {
	env := newEnv(nil, nil)
	gx, err := felt.Parse("0x1ef15c18599971b7beced415a40f0c7deacfd9b0d1819e03d723d8bc943cfca")
	require.NoError(t, err)
	x := feltValue(gx)
	res, err := ecPointFromX(env, []jit.Value{x})
	require.NoError(t, err)
	require.True(t, res[0].Bool())
	ok, err := ecPointTryNew(env, []jit.Value{x, res[1]})
	require.NoError(t, err)
	assert.True(t, ok[0].Bool())

	bad, err := ecPointTryNew(env, []jit.Value{x, feltValue(felt.FromUint64(0))})
	require.NoError(t, err)
	assert.False(t, bad[0].Bool())
}

func TestDebugPrint(t *testing.T) {
	var out bytes.Buffer
	env := newEnv(nil, &out)
	desc, err := abi.WriteFelts(env.Mem, []felt.Felt{felt.MustShortString("hello"), felt.FromUint64(1)})
	require.NoError(t, err)
	_, err = debugPrint(env, []jit.Value{desc})
	require.NoError(t, err)
	assert.Equal(t, "[DEBUG]\t0x68656c6c6f ('hello')\n[DEBUG]\t0x1\n", out.String())
}

func TestSyscallWithoutHandler(t *testing.T) {
	env := newEnv(nil, nil)
	_, err := Table()[metadata.RtStorageRead](env, []jit.Value{
		jit.U64Value(target.I64, 100), jit.U64Value(target.I32, 0), feltValue(felt.FromUint64(1)),
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindMissingSyscallHandler, errs.KindOf(err))
}

func TestSyscallSuccessAndFailure(t *testing.T) {
	h := starknet.NewStubHandler()
	h.Costs = map[string]uint64{"storage_write": 30}
	env := newEnv(h, nil)
	write := Table()[metadata.RtStorageWrite]
	args := func(gas uint64) []jit.Value {
		return []jit.Value{
			jit.U64Value(target.I64, gas), jit.U64Value(target.I32, 0),
			feltValue(felt.FromUint64(5)), feltValue(felt.FromUint64(6)),
		}
	}

	res, err := write(env, args(100))
	require.NoError(t, err)
	require.Len(t, res, metadata.SyscallPrefix)
	assert.Equal(t, uint64(70), res[0].U64())
	assert.False(t, res[1].Bool())
	v, ok := h.Storage(starknet.StorageKey{Address: felt.FromUint64(5)})
	require.True(t, ok)
	assert.True(t, v.Equal(felt.FromUint64(6)))

	res, err = write(env, args(10))
	require.NoError(t, err)
	assert.True(t, res[1].Bool())
	reason, err := abi.ReadFelts(env.Mem, res[2])
	require.NoError(t, err)
	require.Len(t, reason, 1)
	assert.True(t, reason[0].Equal(felt.MustShortString(starknet.ReasonOutOfGas)))
}

func TestCallContractMarshalsSpans(t *testing.T) {
	h := starknet.NewStubHandler()
	addr := felt.FromUint64(0xabc)
	h.Deploy(addr, func(_ felt.Felt, calldata []felt.Felt, _ *uint64) ([]felt.Felt, error) {
		out := make([]felt.Felt, len(calldata))
		for i, f := range calldata {
			out[i] = f.Add(f)
		}
		return out, nil
	})
	env := newEnv(h, nil)
	calldata, err := abi.WriteFelts(env.Mem, []felt.Felt{felt.FromUint64(2), felt.FromUint64(3)})
	require.NoError(t, err)

	res, err := Table()[metadata.RtCallContract](env, []jit.Value{
		jit.U64Value(target.I64, 0), feltValue(addr), feltValue(felt.FromUint64(1)), calldata,
	})
	require.NoError(t, err)
	require.False(t, res[1].Bool())
	ret, err := abi.ReadFelts(env.Mem, res[metadata.SyscallPrefix])
	require.NoError(t, err)
	require.Len(t, ret, 2)
	assert.True(t, ret[1].Equal(felt.FromUint64(6)))
}

func TestExecutionInfoIsWrittenToTheHeap(t *testing.T) {
	h := starknet.NewStubHandler()
	h.Info.BlockInfo.BlockNumber = 77
	env := newEnv(h, nil)
	res, err := Table()[metadata.RtGetExecInfoV2](env, []jit.Value{jit.U64Value(target.I64, 0)})
	require.NoError(t, err)
	ptr := res[metadata.SyscallPrefix].U64()
	require.NotZero(t, ptr)
	head, err := env.Mem.Read(ptr, 8)
	require.NoError(t, err)
	block, err := env.Mem.Read(jit.Value(head).U64(), 8)
	require.NoError(t, err)
	assert.Equal(t, uint64(77), jit.Value(block).U64())
}
