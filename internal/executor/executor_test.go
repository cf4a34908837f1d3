package executor

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"sierranative/internal/abi"
	"sierranative/internal/compiler"
	"sierranative/internal/config"
	"sierranative/internal/errs"
	"sierranative/internal/felt"
	"sierranative/internal/sierra/text"
	"sierranative/internal/starknet"
)

const identityProgram = `
type felt252 = felt252;

return([0]);

id@0([0]: felt252) -> (felt252);
`

const addProgram = `
type RangeCheck = RangeCheck;
type GasBuiltin = GasBuiltin;
type felt252 = felt252;

libfunc withdraw_gas = withdraw_gas;
libfunc branch_align = branch_align;
libfunc felt252_add = felt252_add;
libfunc drop<felt252> = drop<felt252>;
libfunc store_temp<RangeCheck> = store_temp<RangeCheck>;
libfunc store_temp<GasBuiltin> = store_temp<GasBuiltin>;
libfunc store_temp<felt252> = store_temp<felt252>;

withdraw_gas([0], [1]) { fallthrough([4], [5]) 7([4], [5]) };
branch_align() -> ();
felt252_add([2], [3]) -> ([6]);
store_temp<RangeCheck>([4]) -> ([4]);
store_temp<GasBuiltin>([5]) -> ([5]);
store_temp<felt252>([6]) -> ([6]);
return([4], [5], [6]);
branch_align() -> ();
drop<felt252>([3]) -> ();
store_temp<RangeCheck>([4]) -> ([4]);
store_temp<GasBuiltin>([5]) -> ([5]);
store_temp<felt252>([2]) -> ([2]);
return([4], [5], [2]);

main@0([0]: RangeCheck, [1]: GasBuiltin, [2]: felt252, [3]: felt252) -> (RangeCheck, GasBuiltin, felt252);
`

const loopProgram = `
type GasBuiltin = GasBuiltin;
libfunc jump = jump;

jump() { 0() };

spin@0([0]: GasBuiltin) -> (GasBuiltin);
`

// checked panics with [1234] when its argument is zero.
const panicProgram = `
type felt252 = felt252;
type NonZeroFelt = NonZero<felt252>;
type Felts = Array<felt252>;
type Panic = Struct<ut@core::panics::Panic>;
type Ok = Struct<ut@Tuple, felt252>;
type Err = Struct<ut@Tuple, Panic, Felts>;
type Result = Enum<ut@core::panics::PanicResult, Ok, Err>;

libfunc dup_felt = dup<felt252>;
libfunc drop_felt = drop<felt252>;
libfunc drop_nz = drop<NonZeroFelt>;
libfunc is_zero = felt252_is_zero;
libfunc align = branch_align;
libfunc panic = struct_construct<Panic>;
libfunc new_felts = array_new<felt252>;
libfunc append = array_append<felt252>;
libfunc code = felt252_const<1234>;
libfunc wrap_err = struct_construct<Err>;
libfunc wrap_ok = struct_construct<Ok>;
libfunc err = enum_init<Result, 1>;
libfunc ok = enum_init<Result, 0>;

dup_felt([0]) -> ([0], [1]);
is_zero([1]) { fallthrough() 11([2]) };
align() -> ();
drop_felt([0]) -> ();
panic() -> ([3]);
new_felts() -> ([4]);
code() -> ([5]);
append([4], [5]) -> ([4]);
wrap_err([3], [4]) -> ([6]);
err([6]) -> ([7]);
return([7]);
align() -> ();
drop_nz([2]) -> ();
wrap_ok([0]) -> ([8]);
ok([8]) -> ([9]);
return([9]);

checked@0([0]: felt252) -> (Result);
`

// echo emits its calldata as an event and returns it.
const contractProgram = `
type GasBuiltin = GasBuiltin;
type System = System;
type felt252 = felt252;
type Felts = Array<felt252>;
type FeltsSnap = Snapshot<Felts>;
type Span = Struct<ut@core::array::Span, FeltsSnap>;
type SpanTuple = Struct<ut@Tuple, Span>;
type Panic = Struct<ut@core::panics::Panic>;
type PanicTuple = Struct<ut@Tuple, Panic, Felts>;
type EchoResult = Enum<ut@core::panics::PanicResult, SpanTuple, PanicTuple>;

libfunc dup_span = dup<Span>;
libfunc drop_span = drop<Span>;
libfunc span_parts = struct_deconstruct<Span>;
libfunc dup_snap = dup<FeltsSnap>;
libfunc emit = emit_event_syscall;
libfunc align = branch_align;
libfunc wrap_ok = struct_construct<SpanTuple>;
libfunc ok = enum_init<EchoResult, 0>;
libfunc panic = struct_construct<Panic>;
libfunc wrap_err = struct_construct<PanicTuple>;
libfunc err = enum_init<EchoResult, 1>;

dup_span([2]) -> ([2], [3]);
span_parts([3]) -> ([4]);
dup_snap([4]) -> ([4], [5]);
emit([0], [1], [4], [5]) { fallthrough([6], [7]) 8([6], [7], [8]) };
align() -> ();
wrap_ok([2]) -> ([9]);
ok([9]) -> ([10]);
return([6], [7], [10]);
align() -> ();
drop_span([2]) -> ();
panic() -> ([11]);
wrap_err([11], [8]) -> ([12]);
err([12]) -> ([13]);
return([6], [7], [13]);

echo@0([0]: GasBuiltin, [1]: System, [2]: Span) -> (GasBuiltin, System, EchoResult);
`

func compileText(t *testing.T, src string) *Artifact {
	t.Helper()
	p, err := text.Parse("test.sierra", src)
	require.NoError(t, err)
	art, err := Compile(context.Background(), p, compiler.Options{CompileOptions: config.DefaultCompileOptions()})
	require.NoError(t, err)
	return art
}

func newJIT(t *testing.T, src string) *JITExecutor {
	t.Helper()
	e, err := NewJIT(compileText(t, src))
	require.NoError(t, err)
	return e
}

func gas(n uint64) *uint64 { return &n }

func TestIdentity(t *testing.T) {
	e := newJIT(t, identityProgram)
	res, err := e.Invoke(context.Background(), "id", []abi.Value{abi.FeltU64(5)}, InvokeOptions{})
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.True(t, res.ReturnValue.Equal(abi.FeltU64(5)), "got %s", res.ReturnValue)
	assert.Nil(t, res.RemainingGas)
	assert.Zero(t, res.GasConsumed)

	required, err := e.RequiredInitialGas("id")
	require.NoError(t, err)
	assert.Zero(t, required)
}

func TestGasIsDeductedUpFront(t *testing.T) {
	e := newJIT(t, addProgram)
	args := []abi.Value{abi.FeltU64(3), abi.FeltU64(4)}
	required, err := e.RequiredInitialGas("main")
	require.NoError(t, err)
	require.Positive(t, required)

	res, err := e.Invoke(context.Background(), "main", args, InvokeOptions{Gas: gas(1_000_000)})
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.True(t, res.ReturnValue.Equal(abi.FeltU64(7)), "got %s", res.ReturnValue)
	require.NotNil(t, res.RemainingGas)
	assert.Equal(t, uint64(1_000_000)-*res.RemainingGas, res.GasConsumed)
	assert.GreaterOrEqual(t, res.GasConsumed, required)
	assert.Equal(t, uint64(1), res.BuiltinStats["RangeCheck"])

	// Exactly the entry cost leaves nothing for the checkpoint.
	res, err = e.Invoke(context.Background(), "main", args, InvokeOptions{Gas: gas(required)})
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.True(t, res.ReturnValue.Equal(abi.FeltU64(3)), "got %s", res.ReturnValue)

	res, err = e.Invoke(context.Background(), "main", args, InvokeOptions{Gas: gas(required - 1)})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, "['Out of gas']", res.ErrorMsg())
	require.NotNil(t, res.RemainingGas)
	assert.Equal(t, required-1, *res.RemainingGas)
}

func TestOutOfGasTrapIsAFailedResult(t *testing.T) {
	e := newJIT(t, loopProgram)
	res, err := e.Invoke(context.Background(), "spin", nil, InvokeOptions{Gas: gas(1000)})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	require.NotNil(t, res.RemainingGas)
	assert.Zero(t, *res.RemainingGas)
	assert.Equal(t, uint64(1000), res.GasConsumed)
	require.Len(t, res.PanicData, 1)
	assert.True(t, res.PanicData[0].Equal(felt.MustShortString(starknet.ReasonOutOfGas)))
}

func TestPanicResultIsUnwrapped(t *testing.T) {
	e := newJIT(t, panicProgram)

	res, err := e.Invoke(context.Background(), "checked", []abi.Value{abi.FeltU64(9)}, InvokeOptions{})
	require.NoError(t, err)
	assert.False(t, res.Failed)
	assert.True(t, res.ReturnValue.Equal(abi.Struct(abi.FeltU64(9))), "got %s", res.ReturnValue)

	res, err = e.Invoke(context.Background(), "checked", []abi.Value{abi.FeltU64(0)}, InvokeOptions{})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	require.Len(t, res.PanicData, 1)
	assert.True(t, res.PanicData[0].Equal(felt.FromUint64(1234)))
	assert.Equal(t, "[0x4d2]", res.ErrorMsg())
}

func TestInvokeContract(t *testing.T) {
	e := newJIT(t, contractProgram)
	h := starknet.NewStubHandler()
	calldata := []felt.Felt{felt.FromUint64(1), felt.FromUint64(2), felt.FromUint64(3)}

	required, err := e.RequiredInitialGas("echo")
	require.NoError(t, err)

	res, err := e.InvokeContract(context.Background(), "echo", calldata, InvokeOptions{Syscalls: h})
	require.NoError(t, err)
	require.False(t, res.Failed, res.ErrorMsg)
	assert.Equal(t, uint64(math.MaxUint64)-required, res.RemainingGas)
	require.Len(t, res.ReturnValues, 3)
	for i, f := range calldata {
		assert.True(t, res.ReturnValues[i].Equal(f))
	}
	require.Len(t, res.Events, 1)
	assert.Len(t, res.Events[0].Keys, 3)
	assert.Len(t, res.Events[0].Data, 3)
}

func TestInvokeContractReportsSyscallFailure(t *testing.T) {
	e := newJIT(t, contractProgram)
	h := starknet.NewStubHandler()
	h.Costs = map[string]uint64{"emit_event": 10}
	required, err := e.RequiredInitialGas("echo")
	require.NoError(t, err)

	res, err := e.InvokeContract(context.Background(), "echo", nil, InvokeOptions{Syscalls: h, Gas: gas(required + 5)})
	require.NoError(t, err)
	assert.True(t, res.Failed)
	assert.Equal(t, "['Out of gas']", res.ErrorMsg)
	assert.Equal(t, uint64(5), res.RemainingGas)
	assert.Empty(t, res.Events)
}

func TestContractWithoutHandlerIsAnError(t *testing.T) {
	e := newJIT(t, contractProgram)
	_, err := e.InvokeContract(context.Background(), "echo", nil, InvokeOptions{})
	require.Error(t, err)
	assert.Equal(t, errs.KindMissingSyscallHandler, errs.KindOf(err))
}

func TestInvokeErrors(t *testing.T) {
	e := newJIT(t, identityProgram)
	ctx := context.Background()

	_, err := e.Invoke(ctx, "nope", nil, InvokeOptions{})
	assert.Equal(t, errs.KindSelectorNotFound, errs.KindOf(err))

	_, err = e.Invoke(ctx, "id", nil, InvokeOptions{})
	assert.Equal(t, errs.KindUnexpectedValue, errs.KindOf(err))

	_, err = e.Invoke(ctx, "id", []abi.Value{abi.Array()}, InvokeOptions{})
	assert.Equal(t, errs.KindNativeAssert, errs.KindOf(err))

	_, err = e.InvokeContract(ctx, "id", nil, InvokeOptions{})
	assert.Equal(t, errs.KindUnexpectedValue, errs.KindOf(err))
}

func TestConcurrentInvocations(t *testing.T) {
	e := newJIT(t, addProgram)
	var g errgroup.Group
	for i := range 16 {
		g.Go(func() error {
			res, err := e.Invoke(context.Background(), "main",
				[]abi.Value{abi.FeltU64(uint64(i)), abi.FeltU64(1)}, InvokeOptions{Gas: gas(1_000_000)})
			if err != nil {
				return err
			}
			if !res.ReturnValue.Equal(abi.FeltU64(uint64(i) + 1)) {
				return errs.New(errs.KindUnexpectedValue, "invocation %d returned %s", i, res.ReturnValue)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestArtifactRoundTrip(t *testing.T) {
	art := compileText(t, addProgram)
	data, err := art.Marshal()
	require.NoError(t, err)
	back, err := UnmarshalArtifact(data)
	require.NoError(t, err)
	assert.Equal(t, art.Hash, back.Hash)
	assert.Equal(t, art.Entries, back.Entries)

	e, err := NewJIT(back)
	require.NoError(t, err)
	res, err := e.Invoke(context.Background(), "main", []abi.Value{abi.FeltU64(20), abi.FeltU64(22)}, InvokeOptions{})
	require.NoError(t, err)
	assert.True(t, res.ReturnValue.Equal(abi.FeltU64(42)))
}

func TestArtifactVersionIsChecked(t *testing.T) {
	art := compileText(t, identityProgram)
	art.Version = ArtifactVersion + 1
	data, err := art.Marshal()
	require.NoError(t, err)
	_, err = UnmarshalArtifact(data)
	assert.Equal(t, errs.KindLibraryLoad, errs.KindOf(err))
}

func TestLoadAOT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.sna")
	require.NoError(t, compileText(t, identityProgram).WriteFile(path))

	e, err := LoadAOT(path)
	require.NoError(t, err)
	assert.Equal(t, path, e.Path)
	require.Len(t, e.EntryPoints(), 1)
	assert.Equal(t, "id", e.EntryPoints()[0].Name)

	res, err := e.Invoke(context.Background(), "id", []abi.Value{abi.FeltU64(11)}, InvokeOptions{})
	require.NoError(t, err)
	assert.True(t, res.ReturnValue.Equal(abi.FeltU64(11)))

	_, err = LoadAOT(filepath.Join(t.TempDir(), "missing.sna"))
	assert.Equal(t, errs.KindIO, errs.KindOf(err))
}
