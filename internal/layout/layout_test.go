package layout

import (
	"errors"
	"testing"

	"sierranative/internal/sierra"
)

// tableResolver describes types as lists of struct members.
type tableResolver struct {
	scalars map[uint64]int
	structs map[uint64][]uint64
	enums   map[uint64][]uint64
	calls   int
}

func (r *tableResolver) ComputeLayout(c *Context, id sierra.TypeID) (TypeLayout, error) {
	r.calls++
	if n, ok := r.scalars[id.ID]; ok {
		return Scalar(n), nil
	}
	collect := func(ids []uint64) ([]TypeLayout, error) {
		out := make([]TypeLayout, 0, len(ids))
		for _, m := range ids {
			l, err := c.LayoutOf(sierra.TypeID{ID: m})
			if err != nil {
				return nil, err
			}
			out = append(out, l)
		}
		return out, nil
	}
	if members, ok := r.structs[id.ID]; ok {
		ls, err := collect(members)
		if err != nil {
			return TypeLayout{}, err
		}
		return Struct(ls...), nil
	}
	if members, ok := r.enums[id.ID]; ok {
		ls, err := collect(members)
		if err != nil {
			return TypeLayout{}, err
		}
		return Enum(ls...), nil
	}
	return TypeLayout{}, &LayoutError{Kind: LayoutErrUnknownType, Type: id}
}

func TestStructLayoutPadsFields(t *testing.T) {
	r := &tableResolver{
		scalars: map[uint64]int{1: 1, 2: 8, 3: 32},
		structs: map[uint64][]uint64{10: {1, 2, 3, 1}},
	}
	e := New(X86_64LinuxGNU(), r)
	l, err := e.LayoutOf(sierra.TypeID{ID: 10})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	wantOffsets := []int{0, 8, 16, 48}
	for i, off := range wantOffsets {
		if l.FieldOffsets[i] != off {
			t.Fatalf("field %d offset = %d, want %d", i, l.FieldOffsets[i], off)
		}
	}
	if l.Size != 64 || l.Align != 16 {
		t.Fatalf("size/align = %d/%d, want 64/16", l.Size, l.Align)
	}
}

func TestEnumLayoutTagAndPayload(t *testing.T) {
	r := &tableResolver{
		scalars: map[uint64]int{1: 16, 2: 0},
		enums:   map[uint64][]uint64{20: {1, 2, 2}, 21: {2, 2}, 22: {1}},
	}
	e := New(X86_64LinuxGNU(), r)

	l, err := e.LayoutOf(sierra.TypeID{ID: 20})
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if l.TagSize != 1 || l.PayloadOffset != 16 || l.Size != 32 {
		t.Fatalf("got tag=%d payload=%d size=%d", l.TagSize, l.PayloadOffset, l.Size)
	}

	boolLike, _ := e.LayoutOf(sierra.TypeID{ID: 21})
	if boolLike.Size != 1 || boolLike.TagSize != 1 {
		t.Fatalf("bool-like enum = %+v", boolLike)
	}

	single, _ := e.LayoutOf(sierra.TypeID{ID: 22})
	if single.TagSize != 0 || single.Size != 16 {
		t.Fatalf("single variant enum = %+v", single)
	}
}

func TestRecursiveTypeReportsCycle(t *testing.T) {
	r := &tableResolver{
		scalars: map[uint64]int{1: 8},
		structs: map[uint64][]uint64{30: {1, 31}, 31: {30}},
	}
	e := New(X86_64LinuxGNU(), r)
	_, err := e.LayoutOf(sierra.TypeID{ID: 30})
	var lerr *LayoutError
	if !errors.As(err, &lerr) || lerr.Kind != LayoutErrRecursiveUnsized {
		t.Fatalf("expected recursive error, got %v", err)
	}
	if len(lerr.Cycle) != 3 {
		t.Fatalf("cycle = %v", lerr.Cycle)
	}
}

func TestLayoutIsCached(t *testing.T) {
	r := &tableResolver{
		scalars: map[uint64]int{1: 4},
		structs: map[uint64][]uint64{10: {1, 1}},
	}
	e := New(X86_64LinuxGNU(), r)
	for range 3 {
		if _, err := e.LayoutOf(sierra.TypeID{ID: 10}); err != nil {
			t.Fatalf("layout: %v", err)
		}
	}
	if r.calls != 2 {
		t.Fatalf("resolver called %d times, want 2", r.calls)
	}
}

func TestTagBits(t *testing.T) {
	cases := map[int]int{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 256: 8, 257: 9}
	for n, want := range cases {
		if got := TagBits(n); got != want {
			t.Fatalf("TagBits(%d) = %d, want %d", n, got, want)
		}
	}
}
