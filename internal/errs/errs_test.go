package errs

import (
	"errors"
	"io/fs"
	"math/big"
	"os"
	"strings"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := &CompilerError{Kind: CompilerUndeclaredLibfunc, ID: "felt252_add"}
	err := Wrap(cause)

	var top *Error
	if !errors.As(err, &top) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if top.Kind != KindCompiler {
		t.Fatalf("kind = %s, want %s", top.Kind, KindCompiler)
	}
	var got *CompilerError
	if !errors.As(err, &got) || got != cause {
		t.Fatalf("cause not reachable through the chain")
	}
	if !errors.Is(err, Sentinel(KindCompiler)) {
		t.Fatalf("errors.Is by kind failed")
	}
	if errors.Is(err, Sentinel(KindGasMetadata)) {
		t.Fatalf("errors.Is matched a different kind")
	}
}

func TestWrapIsIdempotent(t *testing.T) {
	first := Wrap(&GasMetadataError{Kind: GasMissingCostEntry, Detail: "foo"})
	if second := Wrap(first); second != first {
		t.Fatalf("wrapping twice changed the error")
	}
	if Wrap(nil) != nil {
		t.Fatalf("Wrap(nil) != nil")
	}
}

func TestConversionTable(t *testing.T) {
	_, err := os.Open("/definitely/not/here")
	if err == nil {
		t.Skip("unexpected file")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("unexpected error %v", err)
	}
	if got := KindOf(Wrap(err)); got != KindIO {
		t.Fatalf("kind = %s, want io", got)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Fatalf("kind = %s, want unknown", got)
	}
}

func TestTypedErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{&CompilerError{Kind: CompilerCyclicType, ID: "[3]"}, KindCompiler},
		{&GasMetadataError{Kind: GasInconsistentApChange}, KindGasMetadata},
		{&SierraAssertError{Kind: SierraAssertRange}, KindSierraAssert},
		{NativeAssertf("bad %d", 1), KindNativeAssert},
		{&EditStateError{Kind: EditMissingVariable, Var: 4}, KindEditState},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Fatalf("%T: kind = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestNativeAssertRecordsLocation(t *testing.T) {
	err := NativeAssertf("unexpected %s", "shape")
	if err.File != "errs_test.go" || err.Line == 0 {
		t.Fatalf("location = %s:%d", err.File, err.Line)
	}
	if !strings.Contains(err.Error(), "unexpected shape") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestBoundedIntOutOfRangeMessage(t *testing.T) {
	err := &CompilerError{
		Kind:  CompilerBoundedIntOutOfRange,
		Value: big.NewInt(300),
		Lo:    big.NewInt(0),
		Hi:    big.NewInt(256),
	}
	if got, want := err.Error(), "value 300 is out of range [0, 256)"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
