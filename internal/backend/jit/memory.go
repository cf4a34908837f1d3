package jit

import (
	"fmt"

	"fortio.org/safecast"

	"sierranative/internal/errs"
)

const (
	// allocAlign is the alignment of every allocation.
	allocAlign = 16
	// DefaultMemoryLimit bounds the heap of an Env without an explicit limit.
	DefaultMemoryLimit = 1 << 30
)

// MemoryError is an out of bounds, null or exhausted access.
type MemoryError struct {
	Op  string
	Ptr uint64
	Len uint64
	Msg string
}

func (e *MemoryError) Error() string {
	return fmt.Sprintf("memory %s at %#x (+%d): %s", e.Op, e.Ptr, e.Len, e.Msg)
}

func (e *MemoryError) ErrorKind() errs.Kind { return errs.KindNativeAssert }

// Memory is a linear heap with bump allocation. The first allocAlign bytes
// are reserved so that no allocation starts at null.
type Memory struct {
	buf   []byte
	limit uint64
	live  int
}

// NewMemory returns an empty heap growing up to limit bytes; zero selects
// DefaultMemoryLimit.
func NewMemory(limit uint64) *Memory {
	if limit == 0 {
		limit = DefaultMemoryLimit
	}
	return &Memory{buf: make([]byte, allocAlign, 4096), limit: limit}
}

// Used is the number of bytes handed out, including the reserved prefix.
func (m *Memory) Used() uint64 { return uint64(len(m.buf)) }

// Allocations counts successful Alloc calls.
func (m *Memory) Allocations() int { return m.live }

// Alloc returns size bytes of zeroed memory.
func (m *Memory) Alloc(size uint64) (uint64, error) {
	rounded := (max(size, 1) + allocAlign - 1) &^ (allocAlign - 1)
	ptr := uint64(len(m.buf))
	if rounded < size || ptr+rounded > m.limit {
		return 0, &MemoryError{Op: "alloc", Ptr: ptr, Len: size, Msg: "heap exhausted"}
	}
	n, err := safecast.Conv[int](ptr + rounded)
	if err != nil {
		return 0, &MemoryError{Op: "alloc", Ptr: ptr, Len: size, Msg: err.Error()}
	}
	if n > cap(m.buf) {
		grown := make([]byte, len(m.buf), max(n, 2*cap(m.buf)))
		copy(grown, m.buf)
		m.buf = grown
	}
	m.buf = m.buf[:n]
	clear(m.buf[ptr:])
	m.live++
	return ptr, nil
}

// Realloc resizes the allocation at ptr. Shrinking keeps it in place;
// growing copies the first oldSize bytes into a new allocation. A null ptr
// allocates.
func (m *Memory) Realloc(ptr, oldSize, newSize uint64) (uint64, error) {
	if ptr == 0 {
		return m.Alloc(newSize)
	}
	if newSize <= oldSize {
		return ptr, nil
	}
	if _, err := m.span("realloc", ptr, oldSize); err != nil {
		return 0, err
	}
	p, err := m.Alloc(newSize)
	if err != nil {
		return 0, err
	}
	copy(m.buf[p:p+oldSize], m.buf[ptr:ptr+oldSize])
	return p, nil
}

// Read returns a copy of n bytes at ptr.
func (m *Memory) Read(ptr, n uint64) ([]byte, error) {
	s, err := m.span("read", ptr, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(s))
	copy(out, s)
	return out, nil
}

// Write stores data at ptr.
func (m *Memory) Write(ptr uint64, data []byte) error {
	s, err := m.span("write", ptr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(s, data)
	return nil
}

// Copy moves n bytes from src to dst; the ranges may overlap.
func (m *Memory) Copy(dst, src, n uint64) error {
	if n == 0 {
		return nil
	}
	from, err := m.span("copy", src, n)
	if err != nil {
		return err
	}
	to, err := m.span("copy", dst, n)
	if err != nil {
		return err
	}
	copy(to, from)
	return nil
}

func (m *Memory) span(op string, ptr, n uint64) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if ptr == 0 {
		return nil, &MemoryError{Op: op, Ptr: ptr, Len: n, Msg: "null pointer"}
	}
	end := ptr + n
	if end < ptr || end > uint64(len(m.buf)) || ptr < allocAlign {
		return nil, &MemoryError{Op: op, Ptr: ptr, Len: n, Msg: "out of bounds"}
	}
	return m.buf[ptr:end], nil
}
