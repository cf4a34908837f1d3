package layout

import (
	"math/bits"

	"fortio.org/safecast"
)

// Scalar is a primitive of the given byte size, naturally aligned up to 16.
func Scalar(size int) TypeLayout {
	if size <= 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	return TypeLayout{Size: size, Align: minInt(size, 16)}
}

// IntBytes is the storage size of an integer of the given bit width.
func IntBytes(width int) int {
	switch {
	case width <= 0:
		return 0
	case width <= 8:
		return 1
	case width <= 16:
		return 2
	case width <= 32:
		return 4
	case width <= 64:
		return 8
	case width <= 128:
		return 16
	default:
		return 32
	}
}

// Int is the layout of an integer of the given bit width.
func Int(width int) TypeLayout {
	return Scalar(IntBytes(width))
}

// Ptr is the layout of a pointer on t.
func Ptr(t Target) TypeLayout {
	return TypeLayout{Size: t.PtrSize, Align: t.PtrAlign}
}

// ArrayDescriptor is {ptr, len u32, cap u32}.
func ArrayDescriptor(t Target) TypeLayout {
	return Struct(Ptr(t), Int(32), Int(32))
}

// Struct lays fields out in order, C style.
func Struct(fields ...TypeLayout) TypeLayout {
	if len(fields) == 0 {
		return TypeLayout{Size: 0, Align: 1, FieldOffsets: []int{}}
	}
	offsets := make([]int, len(fields))
	size := 0
	align := 1
	for i, fl := range fields {
		fAlign := maxInt(1, fl.Align)
		size = roundUp(size, fAlign)
		offsets[i] = size
		size += fl.Size
		align = maxInt(align, fAlign)
	}
	size = roundUp(size, align)
	return TypeLayout{
		Size:         size,
		Align:        align,
		FieldOffsets: offsets,
	}
}

// TagBits is the width of the discriminant for n variants.
func TagBits(n int) int {
	if n <= 1 {
		return 0
	}
	u, err := safecast.Conv[uint64](n - 1)
	if err != nil {
		return 64
	}
	return bits.Len64(u)
}

// Enum lays out a tag followed by the payload aligned to the widest variant.
func Enum(variants ...TypeLayout) TypeLayout {
	if len(variants) == 0 {
		return TypeLayout{Size: 0, Align: 1}
	}
	maxPayloadSize := 0
	payloadAlign := 1
	for _, v := range variants {
		maxPayloadSize = maxInt(maxPayloadSize, v.Size)
		payloadAlign = maxInt(payloadAlign, maxInt(1, v.Align))
	}
	tagSize := IntBytes(TagBits(len(variants)))
	tagAlign := maxInt(1, tagSize)
	payloadOffset := roundUp(tagSize, payloadAlign)
	overallAlign := maxInt(tagAlign, payloadAlign)
	size := roundUp(payloadOffset+maxPayloadSize, overallAlign)
	return TypeLayout{
		Size:          size,
		Align:         overallAlign,
		TagSize:       tagSize,
		PayloadOffset: payloadOffset,
		Variants:      len(variants),
	}
}

func roundUp(n, align int) int {
	if align <= 1 {
		return n
	}
	r := n % align
	if r == 0 {
		return n
	}
	return n + (align - r)
}

// RoundUp rounds n up to a multiple of align.
func RoundUp(n, align int) int { return roundUp(n, align) }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
