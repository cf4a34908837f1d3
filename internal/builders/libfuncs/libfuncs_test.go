package libfuncs_test

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

func TestEveryLibfuncHasADefaultCost(t *testing.T) {
	tbl := cost.DefaultTable()
	for _, id := range builders.Core().LibfuncIDs() {
		assert.True(t, tbl.Has(id), "no default cost for %s", id)
	}
}

func build(t *testing.T, src string) (*registry.Registry, error) {
	t.Helper()
	p, err := text.Parse("test.sierra", src)
	require.NoError(t, err)
	return registry.Build(p, builders.Core())
}

func libfunc(t *testing.T, r *registry.Registry, name string) registry.ConcreteLibfunc {
	t.Helper()
	for _, d := range r.Program().LibfuncDeclarations {
		if d.ID.DebugName == name {
			lf, err := r.Libfunc(d.ID)
			require.NoError(t, err)
			return lf
		}
	}
	t.Fatalf("libfunc %s not declared", name)
	return nil
}

func typeID(t *testing.T, r *registry.Registry, name string) sierra.TypeID {
	t.Helper()
	for _, d := range r.Program().TypeDeclarations {
		if d.ID.DebugName == name {
			return d.ID
		}
	}
	t.Fatalf("type %s not declared", name)
	return sierra.TypeID{}
}

const boundedProgram = `
type RangeCheck = RangeCheck;
type BoundedInt<0, 100> = bounded_int<0, 100>;
type BoundedInt<1, 10> = bounded_int<1, 10>;
type NonZero<BoundedInt<1, 10>> = NonZero<BoundedInt<1, 10>>;
type BoundedInt<0, 9> = bounded_int<0, 9>;
type BoundedInt<1, 110> = bounded_int<1, 110>;
type BoundedInt<0, 49> = bounded_int<0, 49>;
type BoundedInt<50, 100> = bounded_int<50, 100>;

libfunc bounded_int_div_rem<BoundedInt<0, 100>, BoundedInt<1, 10>> = bounded_int_div_rem<BoundedInt<0, 100>, BoundedInt<1, 10>>;
libfunc bounded_int_add<BoundedInt<0, 100>, BoundedInt<1, 10>> = bounded_int_add<BoundedInt<0, 100>, BoundedInt<1, 10>>;
libfunc bounded_int_constrain<BoundedInt<0, 100>, 50> = bounded_int_constrain<BoundedInt<0, 100>, 50>;
libfunc bounded_int_wrap_non_zero<BoundedInt<1, 10>> = bounded_int_wrap_non_zero<BoundedInt<1, 10>>;
`

func TestBoundedIntRanges(t *testing.T) {
	r, err := build(t, boundedProgram)
	require.NoError(t, err)

	divRem := libfunc(t, r, "bounded_int_div_rem<BoundedInt<0, 100>, BoundedInt<1, 10>>").Signature()
	require.Len(t, divRem.Branches, 1)
	assert.Equal(t, []sierra.TypeID{
		typeID(t, r, "RangeCheck"),
		typeID(t, r, "BoundedInt<0, 100>"),
		typeID(t, r, "BoundedInt<0, 9>"),
	}, divRem.Branches[0].Vars)

	sum := libfunc(t, r, "bounded_int_add<BoundedInt<0, 100>, BoundedInt<1, 10>>").Signature()
	assert.Equal(t, []sierra.TypeID{typeID(t, r, "BoundedInt<1, 110>")}, sum.Branches[0].Vars)

	constrain := libfunc(t, r, "bounded_int_constrain<BoundedInt<0, 100>, 50>").Signature()
	require.Len(t, constrain.Branches, 2)
	assert.Equal(t, typeID(t, r, "BoundedInt<0, 49>"), constrain.Branches[0].Vars[1])
	assert.Equal(t, typeID(t, r, "BoundedInt<50, 100>"), constrain.Branches[1].Vars[1])
}

func TestBoundedIntRejectsZeroInRange(t *testing.T) {
	_, err := build(t, `
type BoundedInt<0, 10> = bounded_int<0, 10>;
type NonZero<BoundedInt<0, 10>> = NonZero<BoundedInt<0, 10>>;
libfunc bounded_int_wrap_non_zero<BoundedInt<0, 10>> = bounded_int_wrap_non_zero<BoundedInt<0, 10>>;
`)
	var ce *errs.CompilerError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, errs.CompilerInvalidGenericArgs, ce.Kind)
}

func TestBoundedIntResultMustBeDeclared(t *testing.T) {
	_, err := build(t, `
type BoundedInt<0, 100> = bounded_int<0, 100>;
libfunc bounded_int_add<BoundedInt<0, 100>, BoundedInt<0, 100>> = bounded_int_add<BoundedInt<0, 100>, BoundedInt<0, 100>>;
`)
	var ce *errs.CompilerError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, errs.CompilerUndeclaredType, ce.Kind)
	assert.Equal(t, "bounded_int<0, 200>", ce.ID)
}

func TestUnknownGenericLibfunc(t *testing.T) {
	_, err := build(t, `libfunc nope = definitely_not_a_libfunc;`)
	var ce *errs.CompilerError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, errs.CompilerMissingBuilder, ce.Kind)
}

func TestBranchConventions(t *testing.T) {
	r, err := build(t, `
type RangeCheck = RangeCheck;
type GasBuiltin = GasBuiltin;
type felt252 = felt252;
type u8 = u8;
type NonZero<felt252> = NonZero<felt252>;

libfunc withdraw_gas = withdraw_gas;
libfunc felt252_is_zero = felt252_is_zero;
libfunc u8_overflowing_add = u8_overflowing_add;
libfunc u8_eq = u8_eq;
libfunc store_temp<felt252> = store_temp<felt252>;
`)
	require.NoError(t, err)
	rc, gas := typeID(t, r, "RangeCheck"), typeID(t, r, "GasBuiltin")
	felt, u8 := typeID(t, r, "felt252"), typeID(t, r, "u8")

	w := libfunc(t, r, "withdraw_gas")
	assert.True(t, w.Class().IsCheckpoint())
	require.Len(t, w.Signature().Branches, 2)
	assert.Equal(t, []sierra.TypeID{rc, gas}, w.Signature().Branches[0].Vars)

	isZero := libfunc(t, r, "felt252_is_zero").Signature()
	assert.Empty(t, isZero.Branches[0].Vars)
	assert.Equal(t, []sierra.TypeID{typeID(t, r, "NonZero<felt252>")}, isZero.Branches[1].Vars)

	add := libfunc(t, r, "u8_overflowing_add").Signature()
	assert.Equal(t, []sierra.TypeID{rc, u8, u8}, add.Params)
	require.Len(t, add.Branches, 2)
	assert.Equal(t, []sierra.TypeID{rc, u8}, add.Branches[1].Vars)

	assert.Len(t, libfunc(t, r, "u8_eq").Signature().Branches, 2)

	st := libfunc(t, r, "store_temp<felt252>")
	assert.Equal(t, registry.ClassStoreTemp, st.Class())
	assert.Equal(t, registry.Known(1), st.Signature().Branches[0].ApChange)
	assert.Equal(t, []sierra.TypeID{felt}, st.Signature().Params)
}
