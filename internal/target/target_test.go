package target_test

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"sierranative/internal/target"
)

// addOne builds: func @add_one(i64) -> (i64) { bb0: br bb1; bb1: add; ret }.
func addOne(t *testing.T) (*target.Module, *target.Func) {
	t.Helper()
	m := target.NewModule("test")
	f, err := m.AddFunc("add_one", []target.Type{target.I64}, []target.Type{target.I64})
	if err != nil {
		t.Fatalf("AddFunc: %v", err)
	}
	b := target.NewBuilder(f)
	x := b.Params(f.Entry)[0]
	next := b.NewBlock(target.I64)
	b.Br(next, x)
	b.SetBlock(next)
	p := b.Params(next)[0]
	one := b.ConstU64(target.I64, 1)
	b.Return(b.Add(p, one))
	return m, f
}

func TestVerify_ValidModule(t *testing.T) {
	m, _ := addOne(t)
	if err := target.Verify(m); err != nil {
		t.Fatalf("unexpected verify error: %v", err)
	}
}

func TestVerify_ArityMismatch(t *testing.T) {
	m := target.NewModule("bad")
	f, _ := m.AddFunc("f", nil, nil)
	b := target.NewBuilder(f)
	next := b.NewBlock(target.I64)
	b.Br(next)
	b.SetBlock(next)
	b.Return()
	err := target.Verify(m)
	if err == nil || !strings.Contains(err.Error(), "passes 0 args, want 1") {
		t.Fatalf("expected arity error, got %v", err)
	}
}

func TestVerify_UnterminatedAndTypes(t *testing.T) {
	m := target.NewModule("bad")
	f, _ := m.AddFunc("f", []target.Type{target.I64, target.I32}, []target.Type{target.I64})
	b := target.NewBuilder(f)
	ps := b.Params(f.Entry)
	b.Binary(target.OpAdd, ps[0], ps[1])
	err := target.Verify(m)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "not terminated") || !strings.Contains(msg, "operand types") {
		t.Fatalf("missing diagnostics in %q", msg)
	}
}

func TestVerify_UnknownCallee(t *testing.T) {
	m := target.NewModule("bad")
	f, _ := m.AddFunc("f", nil, nil)
	b := target.NewBuilder(f)
	b.Call("missing", nil)
	b.Return()
	if err := target.Verify(m); err == nil || !strings.Contains(err.Error(), "unknown function missing") {
		t.Fatalf("expected unknown callee error, got %v", err)
	}
}

func TestMergeLinear_FoldsChain(t *testing.T) {
	m, f := addOne(t)
	target.MergeLinear(f)
	if len(f.Blocks) != 1 {
		t.Fatalf("expected 1 block after merge, got %d\n%s", len(f.Blocks), f)
	}
	if f.Blocks[0].Term.Kind != target.TermReturn {
		t.Fatalf("expected return terminator, got %v", f.Blocks[0].Term.Kind)
	}
	if err := target.Verify(m); err != nil {
		t.Fatalf("verify after merge: %v", err)
	}
	add := f.Blocks[0].Ops[1]
	if add.Code != target.OpAdd || add.Args[0] != f.Blocks[0].Params[0] {
		t.Fatalf("merged add should read the entry param, got %+v", add)
	}
}

func TestSimplifyCFG_ForwardsTrivialBlocks(t *testing.T) {
	m := target.NewModule("cfg")
	f, _ := m.AddFunc("f", []target.Type{target.I1, target.I8}, []target.Type{target.I8})
	b := target.NewBuilder(f)
	ps := b.Params(f.Entry)
	trivial := b.NewBlock(target.I8)
	exit := b.NewBlock(target.I8)
	dead := b.NewBlock()
	b.CondBr(ps[0], target.Edge{Target: trivial, Args: []target.ValueID{ps[1]}}, target.Edge{Target: exit, Args: []target.ValueID{ps[1]}})
	b.SetBlock(trivial)
	b.Br(exit, b.Params(trivial)[0])
	b.SetBlock(exit)
	b.Return(b.Params(exit)[0])
	b.SetBlock(dead)
	b.Trap(target.TrapUnreachable, "")

	target.SimplifyCFG(f)
	if len(f.Blocks) != 2 {
		t.Fatalf("expected entry and exit only, got %d blocks\n%s", len(f.Blocks), f)
	}
	then := f.Blocks[0].Term.CondBr.Then
	if then.Target != 1 || then.Args[0] != ps[1] {
		t.Fatalf("then edge not forwarded: %+v", then)
	}
	if err := target.Verify(m); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestConstFold_ResolvesBranch(t *testing.T) {
	m := target.NewModule("fold")
	f, _ := m.AddFunc("f", nil, []target.Type{target.I8})
	b := target.NewBuilder(f)
	x := b.ConstU64(target.I8, 200)
	y := b.ConstU64(target.I8, 100)
	sum := b.Add(x, y) // wraps to 44
	cond := b.ICmp(target.PredULT, sum, x)
	yes := b.NewBlock()
	no := b.NewBlock()
	b.CondBr(cond, target.Edge{Target: yes}, target.Edge{Target: no})
	b.SetBlock(yes)
	b.Return(sum)
	b.SetBlock(no)
	b.Return(x)

	target.Optimize(m, target.Passes{SimplifyCFG: true, DCE: true, ConstFold: true})
	if err := target.Verify(m); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(f.Blocks) != 1 {
		t.Fatalf("expected a single block, got %d\n%s", len(f.Blocks), f)
	}
	ret := f.Blocks[0].Term.Return.Values[0]
	var img []byte
	for _, op := range f.Blocks[0].Ops {
		if len(op.Results) == 1 && op.Results[0] == ret {
			img = op.Imm
		}
	}
	if len(img) != 1 || img[0] != 44 {
		t.Fatalf("expected folded constant 44, got %v\n%s", img, f)
	}
}

func TestDCE_KeepsSideEffects(t *testing.T) {
	m := target.NewModule("dce")
	f, _ := m.AddFunc("f", []target.Type{target.Ptr()}, nil)
	b := target.NewBuilder(f)
	p := b.Params(f.Entry)[0]
	v := b.ConstU64(target.I64, 7)
	b.Add(v, v)
	b.Store(p, v)
	b.Return()
	if n := target.DCE(f); n != 1 {
		t.Fatalf("expected 1 removed op, got %d", n)
	}
	if len(f.Blocks[0].Ops) != 2 {
		t.Fatalf("expected const and store to remain, got %d ops", len(f.Blocks[0].Ops))
	}
}

func TestEval_SignedOps(t *testing.T) {
	minus7 := uint256.NewInt(0xF9) // -7 as i8
	two := uint256.NewInt(2)
	q, ok := target.EvalBinary(target.OpSDiv, 8, minus7, two)
	if !ok || q.Uint64() != 0xFD {
		t.Fatalf("sdiv: got %v ok=%v, want 0xfd", q.Uint64(), ok)
	}
	if !target.EvalICmp(target.PredSLT, 8, minus7, two) {
		t.Fatal("-7 < 2 should hold for signed compare")
	}
	if target.EvalICmp(target.PredULT, 8, minus7, two) {
		t.Fatal("0xf9 < 2 should not hold for unsigned compare")
	}
	if _, ok := target.EvalBinary(target.OpUDiv, 8, two, new(uint256.Int)); ok {
		t.Fatal("division by zero must not evaluate")
	}
	ext := target.EvalCast(target.OpSExt, 8, 16, minus7)
	if ext.Uint64() != 0xFFF9 {
		t.Fatalf("sext: got %#x", ext.Uint64())
	}
}

func TestEval_SubMod(t *testing.T) {
	m := uint256.NewInt(11)
	z, ok := target.EvalModular(target.OpSubMod, 64, uint256.NewInt(3), uint256.NewInt(5), m)
	if !ok || z.Uint64() != 9 {
		t.Fatalf("3-5 mod 11: got %d", z.Uint64())
	}
}

func TestEncodeInt_Negative(t *testing.T) {
	img := target.EncodeInt(big.NewInt(-2), 2)
	if !bytes.Equal(img, []byte{0xFE, 0xFF}) {
		t.Fatalf("got %x", img)
	}
}

func TestEncodeDecodeAndDump(t *testing.T) {
	m, _ := addOne(t)
	m.Declare(target.RuntimeDecl{Name: "rt_debug", Params: []target.Type{target.Ptr()}})
	data, err := target.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := target.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	var want, got bytes.Buffer
	if err := target.Dump(&want, m); err != nil {
		t.Fatal(err)
	}
	if err := target.Dump(&got, back); err != nil {
		t.Fatal(err)
	}
	if want.String() != got.String() {
		t.Fatalf("dump mismatch after round trip:\n%s\nvs\n%s", want.String(), got.String())
	}
	if !strings.Contains(want.String(), "declare @rt_debug(ptr)") || !strings.Contains(want.String(), "%2 = const i64 1") {
		t.Fatalf("unexpected dump:\n%s", want.String())
	}
}
