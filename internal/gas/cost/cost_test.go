package cost

import "testing"

func TestLookupBroadcastsSingleEntry(t *testing.T) {
	tbl := NewTable()
	tbl.SetConst("jump", 100)
	got, ok, err := tbl.Lookup("jump", 3)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if len(got) != 3 || got[2][Const] != 100 {
		t.Fatalf("got %v", got)
	}
}

func TestLookupBranchMismatch(t *testing.T) {
	tbl := NewTable()
	tbl.Set("x", Of(1), Of(2))
	if _, _, err := tbl.Lookup("x", 3); err == nil {
		t.Fatalf("expected branch count error")
	}
	if _, ok, _ := tbl.Lookup("missing", 1); ok {
		t.Fatalf("missing entry reported as present")
	}
}

func TestValidateRejectsNegative(t *testing.T) {
	tbl := NewTable()
	tbl.Set("bad", Of(-1))
	if err := tbl.Validate(); err == nil {
		t.Fatalf("expected negative cost to be rejected")
	}
	if err := DefaultTable().Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
}

func TestTotalWeightsTokens(t *testing.T) {
	v := Of(10)
	v[Bitwise] = 2
	if got, want := v.Total(DefaultWeights), int64(10+2*583); got != want {
		t.Fatalf("total = %d, want %d", got, want)
	}
}
