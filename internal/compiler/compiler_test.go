package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierranative/internal/config"
	"sierranative/internal/errs"
	"sierranative/internal/sierra"
	"sierranative/internal/sierra/text"
	"sierranative/internal/target"
)

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

func parse(t *testing.T, src string) *sierra.Program {
	t.Helper()
	p, err := text.Parse("test.sierra", src)
	require.NoError(t, err)
	return p
}

func defaultOptions() Options {
	return Options{CompileOptions: config.DefaultCompileOptions()}
}

func TestCompileWalksEveryStage(t *testing.T) {
	var events []PhaseEvent
	opts := defaultOptions()
	opts.Observer = func(ev PhaseEvent) { events = append(events, ev) }

	c := New(opts)
	res, err := c.Compile(context.Background(), parse(t, addProgram))
	require.NoError(t, err)
	assert.Equal(t, StageModuleFinalized, c.Stage())
	require.NoError(t, c.Err())

	want := []Stage{StageRegistryBuilt, StageMetadataComputed, StageFunctionsLowered, StageModuleFinalized}
	require.Len(t, events, 2*len(want))
	for i, s := range want {
		assert.Equal(t, PhaseEvent{Stage: s, Status: PhaseStart}, events[2*i])
		end := events[2*i+1]
		assert.Equal(t, s, end.Stage)
		assert.Equal(t, PhaseEnd, end.Status)
		assert.NoError(t, end.Err)
	}

	f, ok := res.Module.Func("main")
	require.True(t, ok)
	assert.True(t, f.Public)
	assert.Equal(t, []target.Type{target.I64, target.I64, target.I252, target.I252}, f.Params)
	assert.Equal(t, []target.Type{target.I64, target.I64, target.I252}, f.Results)
	require.NoError(t, target.Verify(res.Module))
	assert.Len(t, res.Timings.Phases, len(want))
	assert.NotNil(t, res.Gas)
	assert.Contains(t, res.Graphs, uint64(0))
}

func TestEveryOptLevelVerifies(t *testing.T) {
	for _, lvl := range []config.OptLevel{config.OptNone, config.OptLess, config.OptDefault, config.OptAggressive} {
		t.Run(lvl.String(), func(t *testing.T) {
			opts := defaultOptions()
			opts.OptLevel = lvl
			res, err := Compile(context.Background(), parse(t, addProgram), opts)
			require.NoError(t, err)
			require.NoError(t, target.Verify(res.Module))
		})
	}
}

func TestCompilerRefusesReuse(t *testing.T) {
	c := New(defaultOptions())
	_, err := c.Compile(context.Background(), parse(t, addProgram))
	require.NoError(t, err)

	_, err = c.Compile(context.Background(), parse(t, addProgram))
	var ce *errs.CompilerError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, errs.CompilerStageMisuse, ce.Kind)
	assert.Equal(t, StageModuleFinalized, c.Stage())
}

func TestFailedCompilerStaysFailed(t *testing.T) {
	c := New(defaultOptions())
	_, err := c.Compile(context.Background(), parse(t, `libfunc nope = definitely_not_a_libfunc;`))
	require.Error(t, err)
	assert.Equal(t, errs.KindCompiler, errs.KindOf(err))
	assert.Equal(t, StageUninitialized, c.Stage())
	require.Error(t, c.Err())

	_, err = c.Compile(context.Background(), parse(t, addProgram))
	var ce *errs.CompilerError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, errs.CompilerStageMisuse, ce.Kind)
}

func TestLoopGetsOutOfGasTrap(t *testing.T) {
	res, err := Compile(context.Background(), parse(t, loopProgram), defaultOptions())
	require.NoError(t, err)
	f, ok := res.Module.Func("spin")
	require.True(t, ok)

	traps := 0
	for _, b := range f.Blocks {
		if b.Term.Kind == target.TermTrap && b.Term.Trap.Code == target.TrapOutOfGas {
			traps++
		}
	}
	assert.Equal(t, 1, traps)
}

func TestDisabledMeteringInjectsNothing(t *testing.T) {
	opts := defaultOptions()
	opts.Gas.Disabled = true
	res, err := Compile(context.Background(), parse(t, loopProgram), opts)
	require.NoError(t, err)
	f, _ := res.Module.Func("spin")
	for _, b := range f.Blocks {
		assert.NotEqual(t, target.TermTrap, b.Term.Kind)
	}
}

func TestCanceledContextStopsTheCompiler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(defaultOptions())
	_, err := c.Compile(ctx, parse(t, addProgram))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageUninitialized, c.Stage())
}

func TestNilProgram(t *testing.T) {
	_, err := Compile(context.Background(), nil, defaultOptions())
	assert.Equal(t, errs.KindUnexpectedValue, errs.KindOf(err))
}

func TestUndeclaredLibfuncEmitsNoModule(t *testing.T) {
	p := parse(t, `
type felt252 = felt252;

felt252_mystery([0]) -> ([1]);
return([1]);

f@0([0]: felt252) -> (felt252);
`)
	res, err := Compile(context.Background(), p, defaultOptions())
	require.Error(t, err)
	assert.Nil(t, res)
	var ce *errs.CompilerError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, errs.CompilerUndeclaredLibfunc, ce.Kind)
	assert.Equal(t, "felt252_mystery", ce.ID)
}
