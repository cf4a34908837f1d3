package llvm

import (
	"strings"
	"testing"

	"sierranative/internal/target"
)

func mustEmit(t *testing.T, m *target.Module) string {
	t.Helper()
	out, err := EmitModule(m)
	if err != nil {
		t.Fatalf("EmitModule: %v", err)
	}
	return out
}

func expectLines(t *testing.T, ir string, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if !strings.Contains(ir, l) {
			t.Errorf("missing %q in:\n%s", l, ir)
		}
	}
}

func TestEmitLoopThroughEntryBlock(t *testing.T) {
	m := target.NewModule("loop")
	f, err := m.AddFunc("core::count", []target.Type{target.I64}, []target.Type{target.I64})
	if err != nil {
		t.Fatal(err)
	}
	f.Public = true
	b := target.NewBuilder(f)
	n := b.Params(f.Entry)[0]
	done := b.NewBlock()
	zero := b.ConstU64(target.I64, 0)
	isZero := b.ICmp(target.PredEQ, n, zero)
	b.CondBr(isZero, target.Edge{Target: done}, target.Edge{Target: f.Entry, Args: []target.ValueID{b.Sub(n, b.ConstU64(target.I64, 1))}})
	b.SetBlock(done)
	b.Return(zero)

	ir := mustEmit(t, m)
	expectLines(t, ir,
		`target triple = "x86_64-linux-gnu"`,
		`define i64 @"core::count"(i64 %arg0) {`,
		"%s0 = alloca i64, align 8",
		"store i64 %arg0, ptr %s0, align 8",
		"br label %bb0",
		"%v0 = load i64, ptr %s0, align 8",
		"icmp eq i64 %v0, 0",
		"sub i64 %v0, 1",
		"ret i64 0",
	)
	if !strings.Contains(ir, "label %bb1, label %edge") {
		t.Errorf("back edge should get its own block:\n%s", ir)
	}
}

func TestEmitMultipleResultsAndCalls(t *testing.T) {
	m := target.NewModule("calls")
	pair, _ := m.AddFunc("pair", []target.Type{target.I252}, []target.Type{target.I252, target.I1})
	b := target.NewBuilder(pair)
	x := b.Params(pair.Entry)[0]
	b.Return(x, b.ConstU64(target.I1, 1))

	caller, _ := m.AddFunc("caller", []target.Type{target.I252}, []target.Type{target.I252})
	caller.Public = true
	b = target.NewBuilder(caller)
	outs := b.Call("pair", []target.Type{target.I252, target.I1}, b.Params(caller.Entry)[0])
	b.Return(outs[0])

	ir := mustEmit(t, m)
	expectLines(t, ir,
		"define internal { i252, i1 } @pair(i252 %arg0) {",
		"insertvalue { i252, i1 } undef, i252 %v0, 0",
		", i1 true, 1",
		"= call { i252, i1 } @pair(i252 %v0)",
		"= extractvalue { i252, i1 } %t",
	)
}

func TestEmitRuntimeCallsAndTraps(t *testing.T) {
	m := target.NewModule("rt")
	decl := target.RuntimeDecl{Name: "sierra::felt252_div", Params: []target.Type{target.I252, target.I252}, Results: []target.Type{target.I252}}
	m.Declare(decl)
	f, _ := m.AddFunc("div", []target.Type{target.I252, target.I252}, []target.Type{target.I252})
	b := target.NewBuilder(f)
	ps := b.Params(f.Entry)
	ok := b.NewBlock()
	zero := b.ConstU64(target.I252, 0)
	b.CondBr(b.ICmp(target.PredEQ, ps[1], zero), target.Edge{Target: b.NewBlock()}, target.Edge{Target: ok})
	b.SetBlock(f.Blocks[len(f.Blocks)-1].ID)
	b.Trap(target.TrapAssert, `div "by" zero`)
	b.SetBlock(ok)
	b.Return(b.RuntimeCall(decl, ps[0], ps[1])...)

	ir := mustEmit(t, m)
	expectLines(t, ir,
		`declare i252 @"sierra::felt252_div"(i252, i252)`,
		"declare void @rt_trap(i32, ptr)",
		`call i252 @"sierra::felt252_div"(i252 %v0, i252 %v1)`,
		"call void @rt_trap(i32 3, ptr @.msg0)",
		`@.msg0 = private unnamed_addr constant [14 x i8] c"\64\69\76\20\22`,
	)
}

func TestEmitDivisionAndShiftGuards(t *testing.T) {
	m := target.NewModule("arith")
	f, _ := m.AddFunc("f", []target.Type{target.I64, target.I64}, []target.Type{target.I64})
	b := target.NewBuilder(f)
	ps := b.Params(f.Entry)
	q := b.UDiv(ps[0], ps[1])
	b.Return(b.Shl(q, ps[1]))

	ir := mustEmit(t, m)
	expectLines(t, ir,
		"icmp eq i64 %v1, 0",
		"label %trap.assert, label %ok",
		"udiv i64 %v0, %v1",
		"icmp ult i64 %v1, 64",
		"trap.assert:",
		"call void @rt_trap(i32 3, ptr null)",
	)
}

func TestEmitModularArithmetic(t *testing.T) {
	m := target.NewModule("felt")
	f, _ := m.AddFunc("add", []target.Type{target.I252, target.I252, target.I252}, []target.Type{target.I252})
	b := target.NewBuilder(f)
	ps := b.Params(f.Entry)
	b.Return(b.Mod(target.OpAddMod, ps[0], ps[1], ps[2]))

	ir := mustEmit(t, m)
	expectLines(t, ir,
		"zext i252 %v0 to i512",
		"add i512",
		"urem i512",
		"to i252",
	)
}

func TestEmitAggregatesGoThroughMemory(t *testing.T) {
	m := target.NewModule("agg")
	blob := target.Blob(16, 8)
	f, _ := m.AddFunc("second", []target.Type{blob}, []target.Type{target.I64})
	b := target.NewBuilder(f)
	agg := b.Params(f.Entry)[0]
	b.Return(b.Extract(agg, 8, target.I64))

	ir := mustEmit(t, m)
	expectLines(t, ir,
		"define internal i64 @second([16 x i8] %arg0) {",
		"= alloca [16 x i8], align 8",
		"store [16 x i8] %v0, ptr %t",
		"getelementptr i8, ptr %t",
		", i64 8",
		"load i64, ptr %t",
	)
}

func TestGlobalNames(t *testing.T) {
	cases := map[string]string{
		"main":      "@main",
		"f1":        "@f1",
		"1f":        `@"1f"`,
		"a::b":      `@"a::b"`,
		`q"uote`:    `@"q\22uote"`,
		"with.dots": "@with.dots",
	}
	for in, want := range cases {
		if got := globalName(in); got != want {
			t.Errorf("globalName(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestConstValues(t *testing.T) {
	wide := make([]byte, 32)
	wide[31] = 0xf0 // above bit 252, masked off
	wide[0] = 7
	cases := []struct {
		t    target.Type
		imm  []byte
		want string
	}{
		{target.I1, []byte{1}, "true"},
		{target.I64, []byte{0x2a}, "42"},
		{target.I252, wide, "7"},
		{target.Ptr(), nil, "null"},
		{target.Blob(2, 1), []byte{0, 0}, "zeroinitializer"},
		{target.Blob(2, 1), []byte{1, 2}, `c"\01\02"`},
	}
	for _, c := range cases {
		got, err := constValue(c.t, c.imm)
		if err != nil {
			t.Fatalf("%s: %v", c.t, err)
		}
		if got != c.want {
			t.Errorf("constValue(%s) = %s, want %s", c.t, got, c.want)
		}
	}
}
