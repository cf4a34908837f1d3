package gas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierranative/internal/builders"
	"sierranative/internal/errs"
	"sierranative/internal/gas/cost"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/sierra/text"
)

const header = `
type RangeCheck = RangeCheck;
type GasBuiltin = GasBuiltin;
type felt252 = felt252;
type NonZero<felt252> = NonZero<felt252>;

libfunc withdraw_gas = withdraw_gas;
libfunc redeposit_gas = redeposit_gas;
libfunc branch_align = branch_align;
libfunc jump = jump;
libfunc disable_ap_tracking = disable_ap_tracking;
libfunc felt252_add = felt252_add;
libfunc felt252_is_zero = felt252_is_zero;
libfunc drop<felt252> = drop<felt252>;
libfunc drop<NonZero<felt252>> = drop<NonZero<felt252>>;
libfunc store_temp<RangeCheck> = store_temp<RangeCheck>;
libfunc store_temp<GasBuiltin> = store_temp<GasBuiltin>;
libfunc store_temp<felt252> = store_temp<felt252>;
libfunc store_temp<NonZero<felt252>> = store_temp<NonZero<felt252>>;
`

// checkpoint withdraws once, then either adds or gives up.
const checkpoint = header + `
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

// refund has a cheap branch ending in redeposit_gas.
const refund = header + `
withdraw_gas([0], [1]) { fallthrough([2], [3]) 10([2], [3]) };
branch_align() -> ();
felt252_is_zero([4]) { fallthrough() 6([5]) };
branch_align() -> ();
store_temp<GasBuiltin>([3]) -> ([3]);
return([2], [3]);
branch_align() -> ();
drop<NonZero<felt252>>([5]) -> ();
redeposit_gas([3]) -> ([3]);
return([2], [3]);
branch_align() -> ();
drop<felt252>([4]) -> ();
return([2], [3]);

main@0([0]: RangeCheck, [1]: GasBuiltin, [4]: felt252) -> (RangeCheck, GasBuiltin);
`

func analyze(t *testing.T, src string, opts Options) (*sierra.Program, *Metadata, error) {
	t.Helper()
	p, err := text.Parse("test.sierra", src)
	require.NoError(t, err)
	r, err := registry.Build(p, builders.Core())
	require.NoError(t, err)
	md, err := Compute(r, opts)
	return p, md, err
}

func mustAnalyze(t *testing.T, src string, opts Options) (*sierra.Program, *Metadata) {
	t.Helper()
	p, md, err := analyze(t, src, opts)
	require.NoError(t, err)
	return p, md
}

func function(t *testing.T, p *sierra.Program, name string) sierra.FunctionID {
	t.Helper()
	fn, ok := p.FindFunction(name)
	require.True(t, ok, "function %s", name)
	return fn.ID
}

func TestCheckpointChargesTheSuccessPath(t *testing.T) {
	p, md := mustAnalyze(t, checkpoint, Options{})
	main := function(t, p, "main")

	require.True(t, md.UsesGas)
	// Three store_temp on the success path.
	assert.Equal(t, uint64(300), md.Charge(main, 0))
	// The failure branch of withdraw_gas plus its three store_temp.
	assert.Equal(t, uint64(470+300), md.RequiredInitialGas(main))

	worst, bounded := md.WorstCaseOf(main)
	require.True(t, bounded)
	assert.Equal(t, uint64(770), worst)
	assert.Empty(t, md.Injected)
	assert.Equal(t, registry.Known(3), md.ApChange[main.ID])
}

func TestBranchesTakeTheMaximum(t *testing.T) {
	_, md := mustAnalyze(t, refund, Options{})
	// Zero branch: 100 for is_zero plus 100 for store_temp.
	assert.Equal(t, int64(200), md.Need[2])
	assert.Equal(t, uint64(200), md.Charges[0])
}

func TestEntryCostIsMonotonicInLibfuncCosts(t *testing.T) {
	p, base := mustAnalyze(t, checkpoint, Options{})
	main := function(t, p, "main")

	tbl := cost.DefaultTable()
	tbl.Set("store_temp", cost.Of(250))
	_, pricier := mustAnalyze(t, checkpoint, Options{Table: tbl})

	assert.Greater(t, pricier.RequiredInitialGas(main), base.RequiredInitialGas(main))
	assert.Greater(t, pricier.Charge(main, 0), base.Charge(main, 0))
}

func TestRefundsNeedDynamicCosts(t *testing.T) {
	p, md := mustAnalyze(t, refund, Options{})
	main := function(t, p, "main")
	assert.Zero(t, md.Refund(main, 8))

	_, md = mustAnalyze(t, refund, Options{DynamicCosts: true})
	// The non-zero branch skips the 100 spent on store_temp.
	assert.Equal(t, uint64(100), md.Refund(main, 8))
}

func TestDisabledMeteringChargesNothing(t *testing.T) {
	p, md := mustAnalyze(t, checkpoint, Options{Disabled: true})
	main := function(t, p, "main")
	assert.Zero(t, md.Charge(main, 0))
	assert.Zero(t, md.RequiredInitialGas(main))

	// Worst case is still priced for reporting.
	worst, bounded := md.WorstCaseOf(main)
	require.True(t, bounded)
	assert.Equal(t, uint64(770), worst)
}

func TestLoopGetsInjectedCheck(t *testing.T) {
	src := header + `
jump() { 0() };
spin@0([0]: GasBuiltin) -> (GasBuiltin);
`
	p, md := mustAnalyze(t, src, Options{})
	spin := function(t, p, "spin")

	injected, ok := md.InjectedAt(spin, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(100), injected)
	_, bounded := md.WorstCaseOf(spin)
	assert.False(t, bounded)
}

func TestLoopWithoutGasIsMalformed(t *testing.T) {
	src := header + `
return([0]);
jump() { 1() };
f@0([0]: GasBuiltin) -> (GasBuiltin);
spin@1() -> ();
`
	_, _, err := analyze(t, src, Options{})
	var gerr *errs.GasMetadataError
	require.True(t, errors.As(err, &gerr), "got %v", err)
	assert.Equal(t, errs.GasMalformedCycle, gerr.Kind)
	assert.Equal(t, 1, gerr.Statement)

	// Without metering the loop is only reported as unbounded.
	p, md := mustAnalyze(t, src, Options{Disabled: true})
	_, bounded := md.WorstCaseOf(function(t, p, "spin"))
	assert.False(t, bounded)
}

func TestRecursionIsCheckedAtEntry(t *testing.T) {
	src := header + `
libfunc function_call<user@rec> = function_call<user@rec>;

function_call<user@rec>([0], [1]) -> ([2], [3]);
return([2], [3]);

rec@0([0]: RangeCheck, [1]: GasBuiltin) -> (RangeCheck, GasBuiltin);
`
	p, md := mustAnalyze(t, src, Options{})
	rec := function(t, p, "rec")

	injected, ok := md.InjectedAt(rec, 0)
	require.True(t, ok)
	assert.Equal(t, uint64(200), injected)
	assert.Zero(t, md.RequiredInitialGas(rec))
	assert.Equal(t, registry.UnknownAp, md.ApChange[rec.ID])

	reports := md.Reports(p)
	require.Len(t, reports, 1)
	assert.Equal(t, "rec: entry=0 worst=unbounded checkpoints=0 injected=1 ap=unknown", reports[0].String())
}

func TestCallerPaysCalleeEntryCost(t *testing.T) {
	src := header + `
libfunc function_call<user@leaf> = function_call<user@leaf>;

store_temp<felt252>([0]) -> ([0]);
return([0]);
function_call<user@leaf>([0]) -> ([1]);
return([1]);

leaf@0([0]: felt252) -> (felt252);
main@2([0]: felt252, [9]: GasBuiltin) -> (felt252);
`
	_, _, err := analyze(t, src, Options{})
	// main leaves its gas builtin unconsumed.
	require.Error(t, err)

	src = header + `
libfunc function_call<user@leaf> = function_call<user@leaf>;

store_temp<felt252>([0]) -> ([0]);
return([0]);
function_call<user@leaf>([0]) -> ([1]);
return([9], [1]);

leaf@0([0]: felt252) -> (felt252);
main@2([0]: felt252, [9]: GasBuiltin) -> (GasBuiltin, felt252);
`
	p, md := mustAnalyze(t, src, Options{})
	leaf := function(t, p, "leaf")
	main := function(t, p, "main")
	assert.Equal(t, uint64(100), md.RequiredInitialGas(leaf))
	assert.Equal(t, uint64(200+100), md.RequiredInitialGas(main))
	assert.Equal(t, registry.Known(1), md.ApChange[leaf.ID])
}

func TestJoinWithDifferentApChangeFails(t *testing.T) {
	body := `
felt252_is_zero([0]) { fallthrough() 3([1]) };
branch_align() -> ();
jump() { 5() };
store_temp<NonZero<felt252>>([1]) -> ([1]);
drop<NonZero<felt252>>([1]) -> ();
return();

f@0([0]: felt252) -> ();
`
	_, _, err := analyze(t, header+body, Options{})
	var gerr *errs.GasMetadataError
	require.True(t, errors.As(err, &gerr), "got %v", err)
	assert.Equal(t, errs.GasInconsistentApChange, gerr.Kind)
	assert.Equal(t, 5, gerr.Statement)

	untracked := `
disable_ap_tracking() -> ();
felt252_is_zero([0]) { fallthrough() 4([1]) };
branch_align() -> ();
jump() { 6() };
store_temp<NonZero<felt252>>([1]) -> ([1]);
drop<NonZero<felt252>>([1]) -> ();
return();

f@0([0]: felt252) -> ();
`
	p, md := mustAnalyze(t, header+untracked, Options{})
	assert.Equal(t, registry.UnknownAp, md.ApChange[function(t, p, "f").ID])
}

func TestMissingCostEntry(t *testing.T) {
	tbl := cost.NewTable()
	tbl.Set("withdraw_gas", cost.Of(1))
	_, _, err := analyze(t, checkpoint, Options{Table: tbl})
	var gerr *errs.GasMetadataError
	require.True(t, errors.As(err, &gerr), "got %v", err)
	assert.Equal(t, errs.GasMissingCostEntry, gerr.Kind)

	// Unmetered programs tolerate gaps in the table.
	_, _, err = analyze(t, checkpoint, Options{Table: tbl, Disabled: true})
	assert.NoError(t, err)
}

func TestMalformedCostTable(t *testing.T) {
	tbl := cost.DefaultTable()
	tbl.Set("jump", cost.Of(-5))
	_, _, err := analyze(t, checkpoint, Options{Table: tbl})
	var gerr *errs.GasMetadataError
	require.True(t, errors.As(err, &gerr), "got %v", err)
	assert.Equal(t, errs.GasMalformedCostTable, gerr.Kind)

	tbl = cost.DefaultTable()
	tbl.Set("withdraw_gas", cost.Of(1), cost.Of(2), cost.Of(3))
	_, _, err = analyze(t, checkpoint, Options{Table: tbl})
	require.True(t, errors.As(err, &gerr), "got %v", err)
	assert.Equal(t, errs.GasMalformedCostTable, gerr.Kind)
}

func TestNoGasMeansNoMetering(t *testing.T) {
	src := header + `
felt252_add([0], [1]) -> ([2]);
return([2]);
add@0([0]: felt252, [1]: felt252) -> (felt252);
`
	p, md := mustAnalyze(t, src, Options{})
	assert.False(t, md.UsesGas)
	add := function(t, p, "add")
	assert.Zero(t, md.RequiredInitialGas(add))
	assert.Equal(t, registry.Known(0), md.ApChange[add.ID])
}
