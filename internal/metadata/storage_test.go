package metadata

import (
	"errors"
	"testing"

	"sierranative/internal/errs"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

func TestGetOrInsertWithCreatesOnce(t *testing.T) {
	s := New()
	calls := 0
	factory := func() *SnapshotClones {
		calls++
		return NewSnapshotClones()
	}
	a := GetOrInsertWith(s, factory)
	a.Register(sierra.TypeID{ID: 3}, "clone$3")
	b := GetOrInsertWith(s, factory)
	if calls != 1 {
		t.Fatalf("factory called %d times, want 1", calls)
	}
	if a != b {
		t.Fatal("expected the same instance")
	}
	if name, ok := b.Lookup(sierra.TypeID{ID: 3}); !ok || name != "clone$3" {
		t.Fatalf("lookup = %q %v", name, ok)
	}
}

func TestGetMissing(t *testing.T) {
	s := New()
	if _, ok := Get[*DebugUtils](s); ok {
		t.Fatal("expected no entry")
	}
	_, err := Require[*PrimeModulo](s)
	if errs.KindOf(err) != errs.KindMissingMetadata {
		t.Fatalf("Require error kind = %v", errs.KindOf(err))
	}
}

type fakeClones struct{}

func (fakeClones) MetadataKind() Kind { return KindSnapshotClones }

func TestGetTypeMismatchPanicsWithNativeAssert(t *testing.T) {
	s := New()
	s.Insert(fakeClones{})
	defer func() {
		r := recover()
		err, ok := r.(error)
		var na *errs.NativeAssertError
		if !ok || !errors.As(err, &na) {
			t.Fatalf("expected NativeAssertError panic, got %v", r)
		}
	}()
	Get[*SnapshotClones](s)
}

func TestInsertRemove(t *testing.T) {
	s := New()
	if prev := s.Insert(NewPrimeModulo()); prev != nil {
		t.Fatalf("unexpected previous entry %v", prev)
	}
	if !s.Has(KindPrimeModulo) {
		t.Fatal("expected prime modulo entry")
	}
	p, _ := Get[*PrimeModulo](s)
	if p.Prime.BitLen() != 252 {
		t.Fatalf("prime has %d bits", p.Prime.BitLen())
	}
	if s.Remove(KindPrimeModulo) == nil || s.Has(KindPrimeModulo) {
		t.Fatal("remove failed")
	}
}

func TestRuntimeBindingsDeclareOnce(t *testing.T) {
	m := target.NewModule("m")
	rb := NewRuntimeBindings()
	for range 2 {
		d, err := rb.Declare(m, RtFelt252Div)
		if err != nil {
			t.Fatal(err)
		}
		if len(d.Params) != 2 || d.Results[0] != target.I252 {
			t.Fatalf("unexpected signature %+v", d)
		}
	}
	if len(m.Runtime) != 1 {
		t.Fatalf("declared %d times", len(m.Runtime))
	}
	if _, err := rb.Declare(m, "nope"); errs.KindOf(err) != errs.KindNativeAssert {
		t.Fatalf("unknown runtime function error = %v", err)
	}
}

func TestSyscallSignaturesSharePrefix(t *testing.T) {
	for _, name := range RuntimeNames() {
		d, _ := RuntimeSignature(name)
		if len(name) < 8 || name[:8] != "syscall_" {
			continue
		}
		if d.Params[0] != target.I64 || d.Results[0] != target.I64 || d.Results[1] != target.I1 || d.Results[2] != ArrayType {
			t.Fatalf("%s does not follow the syscall convention: %+v", name, d)
		}
	}
}
