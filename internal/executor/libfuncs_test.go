package executor

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sierranative/internal/abi"
)

// binaryBranchProgram calls a two-branch libfunc of shape
// (RangeCheck, arg, arg) -> (RangeCheck, res) | (RangeCheck, res) and
// returns the result with the index of the branch taken.
func binaryBranchProgram(decls, op, arg, res string) string {
	return fmt.Sprintf(`
type RangeCheck = RangeCheck;
type felt252 = felt252;
%[1]s

libfunc op = %[2]s;
libfunc align = branch_align;
libfunc mark0 = felt252_const<0>;
libfunc mark1 = felt252_const<1>;

op([0], [1], [2]) { fallthrough([3], [4]) 4([5], [6]) };
align() -> ();
mark0() -> ([7]);
return([3], [4], [7]);
align() -> ();
mark1() -> ([8]);
return([5], [6], [8]);

main@0([0]: RangeCheck, [1]: %[3]s, [2]: %[3]s) -> (RangeCheck, %[4]s, felt252);
`, decls, op, arg, res)
}

// tryProgram calls a conversion of shape (RangeCheck, from) ->
// (RangeCheck, to) | (RangeCheck). The failure branch returns a zero of to.
func tryProgram(decls, op, from, to string) string {
	return fmt.Sprintf(`
type RangeCheck = RangeCheck;
type felt252 = felt252;
%[1]s

libfunc op = %[2]s;
libfunc align = branch_align;
libfunc mark0 = felt252_const<0>;
libfunc mark1 = felt252_const<1>;
libfunc fallback = %[4]s_const<0>;

op([0], [1]) { fallthrough([2], [3]) 4([4]) };
align() -> ();
mark0() -> ([5]);
return([2], [3], [5]);
align() -> ();
fallback() -> ([6]);
mark1() -> ([7]);
return([4], [6], [7]);

main@0([0]: RangeCheck, [1]: %[3]s) -> (RangeCheck, %[4]s, felt252);
`, decls, op, from, to)
}

// run invokes main and checks that the range check was used once.
func run(t *testing.T, e *JITExecutor, args ...abi.Value) abi.Value {
	t.Helper()
	res, err := e.Invoke(context.Background(), "main", args, InvokeOptions{})
	require.NoError(t, err)
	require.False(t, res.Failed, res.ErrorMsg())
	assert.Equal(t, uint64(1), res.BuiltinStats["RangeCheck"])
	return res.ReturnValue
}

// taken splits a (value, branch index) result.
func taken(t *testing.T, v abi.Value) (abi.Value, uint64) {
	t.Helper()
	require.Equal(t, abi.ValStruct, v.Kind, "got %s", v)
	require.Len(t, v.Fields, 2)
	return v.Fields[0], v.Fields[1].Int.Uint64()
}

type branchCase struct {
	args   []abi.Value
	want   abi.Value
	branch uint64
}

func checkBranches(t *testing.T, src string, cases []branchCase) {
	t.Helper()
	e := newJIT(t, src)
	for _, tc := range cases {
		got, branch := taken(t, run(t, e, tc.args...))
		assert.Equal(t, tc.branch, branch, "branch for %v", tc.args)
		assert.True(t, got.Equal(tc.want), "%v: got %s, want %s", tc.args, got, tc.want)
	}
}

func TestUintOverflowingArithmetic(t *testing.T) {
	t.Run("u8_add", func(t *testing.T) {
		checkBranches(t, binaryBranchProgram("type u8 = u8;", "u8_overflowing_add", "u8", "u8"), []branchCase{
			{[]abi.Value{abi.Uint(100), abi.Uint(100)}, abi.Uint(200), 0},
			{[]abi.Value{abi.Uint(200), abi.Uint(100)}, abi.Uint(44), 1},
			{[]abi.Value{abi.Uint(255), abi.Uint(1)}, abi.Uint(0), 1},
		})
	})
	t.Run("u8_sub", func(t *testing.T) {
		checkBranches(t, binaryBranchProgram("type u8 = u8;", "u8_overflowing_sub", "u8", "u8"), []branchCase{
			{[]abi.Value{abi.Uint(10), abi.Uint(5)}, abi.Uint(5), 0},
			{[]abi.Value{abi.Uint(5), abi.Uint(10)}, abi.Uint(251), 1},
			{[]abi.Value{abi.Uint(7), abi.Uint(7)}, abi.Uint(0), 0},
		})
	})
	t.Run("u64_add", func(t *testing.T) {
		checkBranches(t, binaryBranchProgram("type u64 = u64;", "u64_overflowing_add", "u64", "u64"), []branchCase{
			{[]abi.Value{abi.Uint(math.MaxUint64), abi.Uint(1)}, abi.Uint(0), 1},
			{[]abi.Value{abi.Uint(math.MaxUint64 - 1), abi.Uint(1)}, abi.Uint(math.MaxUint64), 0},
		})
	})
}

func TestSintDiff(t *testing.T) {
	src := binaryBranchProgram("type i8 = i8;\ntype u8 = u8;", "i8_diff", "i8", "u8")
	checkBranches(t, src, []branchCase{
		{[]abi.Value{abi.Sint(-128), abi.Sint(127)}, abi.Uint(1), 1},
		{[]abi.Value{abi.Sint(127), abi.Sint(-128)}, abi.Uint(255), 0},
		{[]abi.Value{abi.Sint(3), abi.Sint(3)}, abi.Uint(0), 0},
		{[]abi.Value{abi.Sint(-1), abi.Sint(0)}, abi.Uint(255), 1},
	})
}

func TestDowncast(t *testing.T) {
	t.Run("u32_to_u8", func(t *testing.T) {
		checkBranches(t, tryProgram("type u32 = u32;\ntype u8 = u8;", "downcast<u32, u8>", "u32", "u8"), []branchCase{
			{[]abi.Value{abi.Uint(200)}, abi.Uint(200), 0},
			{[]abi.Value{abi.Uint(255)}, abi.Uint(255), 0},
			{[]abi.Value{abi.Uint(256)}, abi.Uint(0), 1},
			{[]abi.Value{abi.Uint(300)}, abi.Uint(0), 1},
		})
	})
	t.Run("i16_to_i8", func(t *testing.T) {
		checkBranches(t, tryProgram("type i16 = i16;\ntype i8 = i8;", "downcast<i16, i8>", "i16", "i8"), []branchCase{
			{[]abi.Value{abi.Sint(-128)}, abi.Sint(-128), 0},
			{[]abi.Value{abi.Sint(-129)}, abi.Sint(0), 1},
			{[]abi.Value{abi.Sint(128)}, abi.Sint(0), 1},
		})
	})
	t.Run("felt252_to_i8", func(t *testing.T) {
		checkBranches(t, tryProgram("type i8 = i8;", "downcast<felt252, i8>", "felt252", "i8"), []branchCase{
			{[]abi.Value{abi.Felt(big.NewInt(-5))}, abi.Sint(-5), 0},
			{[]abi.Value{abi.Felt(big.NewInt(-200))}, abi.Sint(0), 1},
		})
	})
}

func TestTryFromFelt252(t *testing.T) {
	t.Run("i8", func(t *testing.T) {
		checkBranches(t, tryProgram("type i8 = i8;", "i8_try_from_felt252", "felt252", "i8"), []branchCase{
			{[]abi.Value{abi.Felt(big.NewInt(-5))}, abi.Sint(-5), 0},
			{[]abi.Value{abi.Felt(big.NewInt(-128))}, abi.Sint(-128), 0},
			{[]abi.Value{abi.Felt(big.NewInt(-129))}, abi.Sint(0), 1},
			{[]abi.Value{abi.FeltU64(127)}, abi.Sint(127), 0},
			{[]abi.Value{abi.FeltU64(128)}, abi.Sint(0), 1},
		})
	})
	t.Run("u8", func(t *testing.T) {
		checkBranches(t, tryProgram("type u8 = u8;", "u8_try_from_felt252", "felt252", "u8"), []branchCase{
			{[]abi.Value{abi.FeltU64(255)}, abi.Uint(255), 0},
			{[]abi.Value{abi.Felt(big.NewInt(-1))}, abi.Uint(0), 1},
		})
	})
}

func sqrtProgram(from, to string) string {
	return fmt.Sprintf(`
type RangeCheck = RangeCheck;
type %[1]s = %[1]s;
type %[2]s = %[2]s;

libfunc sqrt = %[1]s_sqrt;

sqrt([0], [1]) -> ([2], [3]);
return([2], [3]);

main@0([0]: RangeCheck, [1]: %[1]s) -> (RangeCheck, %[2]s);
`, from, to)
}

func TestUintSqrt(t *testing.T) {
	e := newJIT(t, sqrtProgram("u16", "u8"))
	for in, want := range map[uint64]uint64{0: 0, 24: 4, 25: 5, 65535: 255} {
		got := run(t, e, abi.Uint(in))
		assert.True(t, got.Equal(abi.Uint(want)), "sqrt(%d) = %s", in, got)
	}

	e = newJIT(t, sqrtProgram("u128", "u64"))
	max128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	got := run(t, e, abi.UintBig(max128))
	assert.True(t, got.Equal(abi.Uint(math.MaxUint64)), "got %s", got)
}

const divmodProgram = `
type RangeCheck = RangeCheck;
type u8 = u8;
type NonZeroU8 = NonZero<u8>;

libfunc divmod = u8_safe_divmod;

divmod([0], [1], [2]) -> ([3], [4], [5]);
return([3], [4], [5]);

main@0([0]: RangeCheck, [1]: u8, [2]: NonZeroU8) -> (RangeCheck, u8, u8);
`

func TestUintSafeDivmod(t *testing.T) {
	e := newJIT(t, divmodProgram)
	for _, tc := range []struct{ x, y, q, r uint64 }{
		{200, 7, 28, 4},
		{255, 255, 1, 0},
		{3, 10, 0, 3},
	} {
		got := run(t, e, abi.Uint(tc.x), abi.Uint(tc.y))
		want := abi.Struct(abi.Uint(tc.q), abi.Uint(tc.r))
		assert.True(t, got.Equal(want), "%d divmod %d: got %s", tc.x, tc.y, got)
	}
}

const boundedArithProgram = `
type Small = bounded_int<-5, 5>;
type Wide = bounded_int<0, 20>;
type Sum = bounded_int<-5, 25>;
type Diff = bounded_int<-25, 5>;
type Prod = bounded_int<-100, 100>;

libfunc add = bounded_int_add<Small, Wide>;
libfunc sub = bounded_int_sub<Small, Wide>;
libfunc mul = bounded_int_mul<Small, Wide>;
libfunc dup_small = dup<Small>;
libfunc dup_wide = dup<Wide>;

dup_small([0]) -> ([0], [2]);
dup_small([0]) -> ([0], [3]);
dup_wide([1]) -> ([1], [4]);
dup_wide([1]) -> ([1], [5]);
add([0], [1]) -> ([6]);
sub([2], [4]) -> ([7]);
mul([3], [5]) -> ([8]);
return([6], [7], [8]);

main@0([0]: Small, [1]: Wide) -> (Sum, Diff, Prod);
`

func TestBoundedIntArithmeticWithNegativeBounds(t *testing.T) {
	e := newJIT(t, boundedArithProgram)
	for _, tc := range []struct{ a, b, sum, diff, prod int64 }{
		{-5, 20, 15, -25, -100},
		{5, 0, 5, 5, 0},
		{-3, 7, 4, -10, -21},
		{5, 20, 25, -15, 100},
	} {
		res, err := e.Invoke(context.Background(), "main",
			[]abi.Value{abi.Bounded(big.NewInt(tc.a)), abi.Bounded(big.NewInt(tc.b))}, InvokeOptions{})
		require.NoError(t, err)
		want := abi.Struct(abi.Bounded(big.NewInt(tc.sum)), abi.Bounded(big.NewInt(tc.diff)), abi.Bounded(big.NewInt(tc.prod)))
		assert.True(t, res.ReturnValue.Equal(want), "(%d, %d): got %s", tc.a, tc.b, res.ReturnValue)
	}
}

const boundedDivRemProgram = `
type RangeCheck = RangeCheck;
type Dividend = bounded_int<10, 100>;
type Divisor = bounded_int<3, 7>;
type NonZeroDivisor = NonZero<Divisor>;
type Quotient = bounded_int<1, 33>;
type Remainder = bounded_int<0, 6>;

libfunc divrem = bounded_int_div_rem<Dividend, Divisor>;

divrem([0], [1], [2]) -> ([3], [4], [5]);
return([3], [4], [5]);

main@0([0]: RangeCheck, [1]: Dividend, [2]: NonZeroDivisor) -> (RangeCheck, Quotient, Remainder);
`

func TestBoundedIntDivRemWithOffsetBounds(t *testing.T) {
	e := newJIT(t, boundedDivRemProgram)
	for _, tc := range []struct{ x, y, q, r int64 }{
		{57, 5, 11, 2},
		{10, 7, 1, 3},
		{100, 3, 33, 1},
	} {
		got := run(t, e, abi.Bounded(big.NewInt(tc.x)), abi.Bounded(big.NewInt(tc.y)))
		want := abi.Struct(abi.Bounded(big.NewInt(tc.q)), abi.Bounded(big.NewInt(tc.r)))
		assert.True(t, got.Equal(want), "%d div_rem %d: got %s", tc.x, tc.y, got)
	}
}

const ecProgram = `
type felt252 = felt252;
type EcPoint = EcPoint;
type NonZeroEcPoint = NonZero<EcPoint>;

libfunc try_new = ec_point_try_new_nz;
libfunc unwrap = ec_point_unwrap;
libfunc neg = ec_neg;
libfunc align = branch_align;
libfunc zero = felt252_const<0>;
libfunc mark1 = felt252_const<1>;

try_new([0], [1]) { fallthrough([2]) 5() };
align() -> ();
unwrap([2]) -> ([3], [4]);
zero() -> ([5]);
return([3], [4], [5]);
align() -> ();
zero() -> ([6]);
zero() -> ([7]);
mark1() -> ([8]);
return([6], [7], [8]);
neg([0]) -> ([1]);
return([1]);

point@0([0]: felt252, [1]: felt252) -> (felt252, felt252, felt252);
negate@10([0]: EcPoint) -> (EcPoint);
`

func TestEcPointConstructionAndNegation(t *testing.T) {
	gx, _ := new(big.Int).SetString("1ef15c18599971b7beced415a40f0c7deacfd9b0d1819e03d723d8bc943cfca", 16)
	gy, _ := new(big.Int).SetString("5668060aa49730b7be4801df46ec62de53ecd11abe43a32873000c36e8dc1f", 16)
	e := newJIT(t, ecProgram)
	ctx := context.Background()

	res, err := e.Invoke(ctx, "point", []abi.Value{abi.Felt(gx), abi.Felt(gy)}, InvokeOptions{})
	require.NoError(t, err)
	assert.True(t, res.ReturnValue.Equal(abi.Struct(abi.Felt(gx), abi.Felt(gy), abi.FeltU64(0))), "got %s", res.ReturnValue)

	off := new(big.Int).Add(gy, big.NewInt(1))
	res, err = e.Invoke(ctx, "point", []abi.Value{abi.Felt(gx), abi.Felt(off)}, InvokeOptions{})
	require.NoError(t, err)
	assert.True(t, res.ReturnValue.Equal(abi.Struct(abi.FeltU64(0), abi.FeltU64(0), abi.FeltU64(1))), "got %s", res.ReturnValue)

	res, err = e.Invoke(ctx, "negate", []abi.Value{abi.EcPoint(gx, gy)}, InvokeOptions{})
	require.NoError(t, err)
	want := abi.EcPoint(gx, new(big.Int).Neg(gy))
	assert.True(t, res.ReturnValue.Equal(want), "got %s", res.ReturnValue)

	res, err = e.Invoke(ctx, "negate", []abi.Value{abi.EcPoint(big.NewInt(0), big.NewInt(0))}, InvokeOptions{})
	require.NoError(t, err)
	assert.True(t, res.ReturnValue.Equal(abi.EcPoint(big.NewInt(0), big.NewInt(0))), "got %s", res.ReturnValue)
}
