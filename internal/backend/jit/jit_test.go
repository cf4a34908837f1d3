package jit

import (
	"context"
	"errors"
	"testing"

	"sierranative/internal/target"
)

// sumTo builds sum(n) = n + (n-1) + ... + 1 as a loop.
func sumTo(t *testing.T) *target.Module {
	t.Helper()
	m := target.NewModule("sum")
	f, err := m.AddFunc("sum", []target.Type{target.I64}, []target.Type{target.I64})
	if err != nil {
		t.Fatalf("add func: %v", err)
	}
	f.Public = true
	b := target.NewBuilder(f)
	n := b.Params(f.Entry)[0]
	loop := b.NewBlock(target.I64, target.I64)
	done := b.NewBlock(target.I64)

	b.SetBlock(f.Entry)
	b.Br(loop, n, b.ConstU64(target.I64, 0))

	b.SetBlock(loop)
	i, acc := b.Params(loop)[0], b.Params(loop)[1]
	zero := b.ICmp(target.PredEQ, i, b.ConstU64(target.I64, 0))
	next := b.Add(acc, i)
	dec := b.Sub(i, b.ConstU64(target.I64, 1))
	b.CondBr(zero, target.Edge{Target: done, Args: []target.ValueID{acc}}, target.Edge{Target: loop, Args: []target.ValueID{dec, next}})

	b.SetBlock(done)
	b.Return(b.Params(done)[0])
	return m
}

func compile(t *testing.T, m *target.Module) *Program {
	t.Helper()
	p, err := Compile(m)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

func TestLoop(t *testing.T) {
	p := compile(t, sumTo(t))
	env := NewEnv(context.Background(), nil, nil)
	out, err := p.Call(env, "sum", []Value{U64Value(target.I64, 100)})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := out[0].U64(); got != 5050 {
		t.Fatalf("sum(100) = %d, want 5050", got)
	}
	if env.Steps() == 0 {
		t.Fatalf("no steps recorded")
	}
}

func TestWideArithmeticMasks(t *testing.T) {
	m := target.NewModule("wide")
	f, _ := m.AddFunc("wrap", []target.Type{target.I8}, []target.Type{target.I8, target.I1})
	b := target.NewBuilder(f)
	x := b.Params(f.Entry)[0]
	sum := b.Add(x, b.ConstU64(target.I8, 10))
	overflow := b.ICmp(target.PredULT, sum, x)
	b.Return(sum, overflow)

	p := compile(t, m)
	out, err := p.Call(&Env{}, "wrap", []Value{U64Value(target.I8, 250)})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got := out[0].U64(); got != 4 {
		t.Fatalf("250 + 10 = %d, want 4", got)
	}
	if !out[1].Bool() {
		t.Fatalf("overflow not detected")
	}
}

func TestDivisionByZeroTraps(t *testing.T) {
	m := target.NewModule("div")
	f, _ := m.AddFunc("div", []target.Type{target.I32, target.I32}, []target.Type{target.I32})
	b := target.NewBuilder(f)
	b.Return(b.UDiv(b.Params(f.Entry)[0], b.Params(f.Entry)[1]))

	p := compile(t, m)
	_, err := p.Call(&Env{}, "div", []Value{U64Value(target.I32, 1), U64Value(target.I32, 0)})
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected trap, got %v", err)
	}
	if trap.Func != "div" || trap.Code != target.TrapAssert {
		t.Fatalf("trap = %+v", trap)
	}
}

func TestTrapTerminatorCarriesBacktrace(t *testing.T) {
	m := target.NewModule("trap")
	inner, _ := m.AddFunc("inner", nil, nil)
	b := target.NewBuilder(inner)
	b.Trap(target.TrapOutOfGas, "no gas")

	outer, _ := m.AddFunc("outer", nil, nil)
	b = target.NewBuilder(outer)
	b.Call("inner", nil)
	b.Return()

	p := compile(t, m)
	_, err := p.Call(&Env{}, "outer", nil)
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected trap, got %v", err)
	}
	if !trap.IsOutOfGas() || trap.Func != "inner" {
		t.Fatalf("trap = %+v", trap)
	}
	if len(trap.Backtrace) != 1 || trap.Backtrace[0] != "outer" {
		t.Fatalf("backtrace = %v", trap.Backtrace)
	}
}

func TestDepthLimit(t *testing.T) {
	m := target.NewModule("rec")
	f, _ := m.AddFunc("rec", nil, nil)
	b := target.NewBuilder(f)
	b.Call("rec", nil)
	b.Return()

	p := compile(t, m)
	_, err := p.Call(&Env{MaxDepth: 50}, "rec", nil)
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected trap, got %v", err)
	}
	if len(trap.Backtrace) != 50 {
		t.Fatalf("backtrace depth = %d, want 50", len(trap.Backtrace))
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	m := target.NewModule("mem")
	f, _ := m.AddFunc("roundtrip", []target.Type{target.I252}, []target.Type{target.I252, target.I252})
	b := target.NewBuilder(f)
	x := b.Params(f.Entry)[0]
	p := b.Alloc(b.ConstU64(target.I64, 32))
	b.Store(p, x)
	grown := b.Realloc(p, b.ConstU64(target.I64, 32), b.ConstU64(target.I64, 64))
	second := b.PtrAdd(grown, b.ConstU64(target.I64, 32))
	b.Memcpy(second, grown, b.ConstU64(target.I64, 32))
	b.Return(b.Load(grown, target.I252), b.Load(second, target.I252))

	prog := compile(t, m)
	env := &Env{}
	out, err := prog.Call(env, "roundtrip", []Value{U64Value(target.I252, 0xdeadbeef)})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	for i, v := range out {
		if v.U64() != 0xdeadbeef {
			t.Fatalf("result %d = %#x", i, v.U64())
		}
	}
	if env.Mem.Allocations() != 2 {
		t.Fatalf("allocations = %d, want 2", env.Mem.Allocations())
	}
}

func TestRuntimeCall(t *testing.T) {
	decl := target.RuntimeDecl{Name: "double", Params: []target.Type{target.I64}, Results: []target.Type{target.I64}}
	m := target.NewModule("rt")
	m.Declare(decl)
	f, _ := m.AddFunc("f", []target.Type{target.I64}, []target.Type{target.I64})
	b := target.NewBuilder(f)
	b.Return(b.RuntimeCall(decl, b.Params(f.Entry)[0])...)

	p := compile(t, m)
	if missing := p.Unresolved(nil); len(missing) != 1 || missing[0] != "double" {
		t.Fatalf("unresolved = %v", missing)
	}
	_, err := p.Call(&Env{}, "f", []Value{U64Value(target.I64, 1)})
	var unresolved *UnresolvedError
	if !errors.As(err, &unresolved) {
		t.Fatalf("expected unresolved runtime function, got %v", err)
	}

	rt := Runtime{"double": func(_ *Env, args []Value) ([]Value, error) {
		return []Value{U64Value(target.I64, 2*args[0].U64())}, nil
	}}
	out, err := p.Call(&Env{Runtime: rt}, "f", []Value{U64Value(target.I64, 21)})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out[0].U64() != 42 {
		t.Fatalf("double(21) = %d", out[0].U64())
	}
}

func TestMemoryBounds(t *testing.T) {
	mem := NewMemory(64)
	if _, err := mem.Read(0, 1); err == nil {
		t.Fatalf("null read succeeded")
	}
	p, err := mem.Alloc(8)
	if err != nil {
		t.Fatalf("alloc: %v", err)
	}
	if p%allocAlign != 0 || p == 0 {
		t.Fatalf("misaligned pointer %d", p)
	}
	if _, err := mem.Read(p, 17); err == nil {
		t.Fatalf("read past the end succeeded")
	}
	if _, err := mem.Alloc(64); err == nil {
		t.Fatalf("allocation beyond the limit succeeded")
	}
	q, err := mem.Realloc(p, 8, 4)
	if err != nil || q != p {
		t.Fatalf("shrinking realloc moved %d -> %d (%v)", p, q, err)
	}
}

func TestCanceledContextStopsLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := compile(t, sumTo(t))
	_, err := p.Call(NewEnv(ctx, nil, nil), "sum", []Value{U64Value(target.I64, 5000)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestZeroFillsAggregates(t *testing.T) {
	m := target.NewModule("zero")
	blob := target.Blob(24, 8)
	f, _ := m.AddFunc("pair", []target.Type{target.I64}, []target.Type{target.I64, target.I64})
	b := target.NewBuilder(f)
	v := b.Insert(b.Zero(blob), b.Params(f.Entry)[0], 8)
	b.Return(b.Extract(v, 0, target.I64), b.Extract(v, 16, target.I64))

	out, err := compile(t, m).Call(&Env{}, "pair", []Value{U64Value(target.I64, 7)})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out[0].U64() != 0 || out[1].U64() != 0 {
		t.Fatalf("untouched fields = %d, %d, want 0, 0", out[0].U64(), out[1].U64())
	}
	if got := target.OpZero.String(); got != "zero" {
		t.Fatalf("op name = %q", got)
	}
}
