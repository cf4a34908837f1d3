// Package metadata holds the side tables shared by the builders of one
// compilation. Each kind has at most one live entry.
package metadata

import (
	"fmt"
	"slices"

	"sierranative/internal/errs"
)

// Kind identifies a metadata entry.
type Kind uint8

const (
	KindGasMetadata Kind = iota + 1
	KindRuntimeBindings
	KindSnapshotClones
	KindDebugUtils
	KindPrimeModulo
	KindBuiltinCosts
)

var kindNames = [...]string{
	KindGasMetadata:     "gas-metadata",
	KindRuntimeBindings: "runtime-bindings",
	KindSnapshotClones:  "snapshot-clones",
	KindDebugUtils:      "debug-utils",
	KindPrimeModulo:     "prime-modulo",
	KindBuiltinCosts:    "builtin-costs",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("metadata(%d)", uint8(k))
}

// Entry is a value stored under its kind. MetadataKind must not depend on
// the receiver's state: it is called on zero values.
type Entry interface {
	MetadataKind() Kind
}

// Storage maps kinds to entries. It is owned by one compilation and is not
// safe for concurrent use.
type Storage struct {
	entries map[Kind]Entry
}

// New returns an empty storage.
func New() *Storage {
	return &Storage{entries: make(map[Kind]Entry, 8)}
}

// Insert stores e, replacing and returning any previous entry of its kind.
func (s *Storage) Insert(e Entry) Entry {
	k := e.MetadataKind()
	prev := s.entries[k]
	s.entries[k] = e
	return prev
}

// Remove deletes and returns the entry of kind k.
func (s *Storage) Remove(k Kind) Entry {
	prev := s.entries[k]
	delete(s.entries, k)
	return prev
}

// Has reports whether an entry of kind k exists.
func (s *Storage) Has(k Kind) bool {
	_, ok := s.entries[k]
	return ok
}

// Kinds lists the populated kinds in order.
func (s *Storage) Kinds() []Kind {
	out := make([]Kind, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Raw returns the entry of kind k without a type check.
func (s *Storage) Raw(k Kind) (Entry, bool) {
	e, ok := s.entries[k]
	return e, ok
}

// GetOrInsertWith returns the entry of T's kind, creating it with factory on
// first use. A stored entry of another Go type is an internal error.
func GetOrInsertWith[T Entry](s *Storage, factory func() T) T {
	var zero T
	k := zero.MetadataKind()
	if e, ok := s.entries[k]; ok {
		return mustCast[T](k, e)
	}
	v := factory()
	s.entries[k] = v
	return v
}

// Get returns the entry of T's kind.
func Get[T Entry](s *Storage) (T, bool) {
	var zero T
	k := zero.MetadataKind()
	e, ok := s.entries[k]
	if !ok {
		return zero, false
	}
	return mustCast[T](k, e), true
}

// Require is Get that reports a missing entry as an error.
func Require[T Entry](s *Storage) (T, error) {
	v, ok := Get[T](s)
	if !ok {
		var zero T
		return v, errs.New(errs.KindMissingMetadata, "missing metadata %s", zero.MetadataKind())
	}
	return v, nil
}

func mustCast[T Entry](k Kind, e Entry) T {
	v, ok := e.(T)
	if !ok {
		var zero T
		panic(errs.NativeAssertf("metadata %s holds %T, requested %T", k, e, zero))
	}
	return v
}
