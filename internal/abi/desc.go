package abi

import (
	"math/big"
	"sync"

	"sierranative/internal/errs"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
)

// DescKind is the host-visible shape of a type.
type DescKind uint8

const (
	DescInvalid DescKind = iota
	DescFelt
	DescUint
	DescSint
	DescBounded
	DescStruct
	DescEnum
	DescArray
	DescBox
	DescNullable
	DescEcPoint
	DescSecpPoint
	DescBuiltin
	DescUninit
)

// TypeDesc is the flattened description of one concrete type. Members and
// Elem refer to other descriptors by type id, so recursive types through
// Box or Array are representable.
type TypeDesc struct {
	ID    uint64   `msgpack:"id"`
	Kind  DescKind `msgpack:"kind"`
	Name  string   `msgpack:"name,omitempty"`
	Bits  int      `msgpack:"bits,omitempty"`
	Size  int      `msgpack:"size"`
	Align int      `msgpack:"align"`

	// Lo and Hi bound integer-like kinds, in decimal.
	Lo string `msgpack:"lo,omitempty"`
	Hi string `msgpack:"hi,omitempty"`

	Members []uint64 `msgpack:"members,omitempty"`
	Offsets []int    `msgpack:"offsets,omitempty"`
	Elem    uint64   `msgpack:"elem,omitempty"`
	Stride  int      `msgpack:"stride,omitempty"`

	TagSize       int `msgpack:"tag_size,omitempty"`
	PayloadOffset int `msgpack:"payload_offset,omitempty"`

	// Generic is the generic id of the declaration, e.g. "GasBuiltin".
	Generic string `msgpack:"generic,omitempty"`
}

// Range returns the inclusive bounds of an integer-like type; nil when the
// type has none.
func (d *TypeDesc) Range() (lo, hi *big.Int) {
	if d.Lo == "" || d.Hi == "" {
		return nil, nil
	}
	lo, ok1 := new(big.Int).SetString(d.Lo, 10)
	hi, ok2 := new(big.Int).SetString(d.Hi, 10)
	if !ok1 || !ok2 {
		return nil, nil
	}
	return lo, hi
}

// Types is a descriptor table keyed by type id.
type Types map[uint64]*TypeDesc

// Get returns the descriptor of id.
func (ts Types) Get(id uint64) (*TypeDesc, error) {
	d, ok := ts[id]
	if !ok {
		return nil, errs.New(errs.KindUnexpectedValue, "abi: no descriptor for type %d", id)
	}
	return d, nil
}

// Describer builds descriptors from a registry and remembers them.
type Describer struct {
	reg *registry.Registry

	mu    sync.Mutex
	types Types
}

// NewDescriber returns a Describer over reg.
func NewDescriber(reg *registry.Registry) *Describer {
	return &Describer{reg: reg, types: make(Types)}
}

// Types returns every descriptor built so far.
func (d *Describer) Types() Types {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(Types, len(d.types))
	for k, v := range d.types {
		out[k] = v
	}
	return out
}

// Describe returns the descriptor of id, describing the types it reaches.
func (d *Describer) Describe(id sierra.TypeID) (*TypeDesc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.describe(id)
}

func (d *Describer) describe(id sierra.TypeID) (*TypeDesc, error) {
	if td, ok := d.types[id.ID]; ok {
		return td, nil
	}
	info, err := d.reg.TypeInfo(id)
	if err != nil {
		return nil, err
	}
	// NonZero and Snapshot share the representation of the wrapped type.
	if info.Kind == registry.TypeNonZero || info.Kind == registry.TypeSnapshot {
		inner, err := d.describe(info.Inner)
		if err != nil {
			return nil, err
		}
		d.types[id.ID] = inner
		return inner, nil
	}
	l, err := d.reg.LayoutOf(id)
	if err != nil {
		return nil, err
	}
	td := &TypeDesc{
		ID:      id.ID,
		Name:    id.String(),
		Size:    l.Size,
		Align:   l.Align,
		Generic: info.GenericID,
	}
	// Registered before recursing so cycles through pointers terminate.
	d.types[id.ID] = td

	switch info.Kind {
	case registry.TypeFelt252, registry.TypeAddress:
		td.Kind = DescFelt
		td.Bits = info.Bits
		td.setRange(info.Lo, info.Hi)
	case registry.TypeUint, registry.TypeBytes31:
		td.Kind = DescUint
		td.Bits = info.Bits
		td.setRange(info.Lo, info.Hi)
	case registry.TypeSint:
		td.Kind = DescSint
		td.Bits = info.Bits
		td.setRange(info.Lo, info.Hi)
	case registry.TypeBoundedInt:
		td.Kind = DescBounded
		td.Bits = info.Bits
		td.setRange(info.Lo, info.Hi)
	case registry.TypeBuiltin, registry.TypeGasBuiltin, registry.TypeBuiltinCosts, registry.TypeSystem:
		td.Kind = DescBuiltin
		td.Bits = 64
	case registry.TypeUninitialized:
		td.Kind = DescUninit
	case registry.TypeEcPoint:
		td.Kind = DescEcPoint
		td.Offsets = l.FieldOffsets
	case registry.TypeSecpPoint:
		td.Kind = DescSecpPoint
		td.Offsets = l.FieldOffsets
	case registry.TypeStruct, registry.TypeEnum:
		td.Kind = DescStruct
		if info.Kind == registry.TypeEnum {
			td.Kind = DescEnum
			td.TagSize = l.TagSize
			td.PayloadOffset = l.PayloadOffset
		} else {
			td.Offsets = l.FieldOffsets
		}
		if info.DebugName != "" {
			td.Name = info.DebugName
		}
		td.Members = make([]uint64, len(info.Members))
		for i, m := range info.Members {
			md, err := d.describe(m)
			if err != nil {
				delete(d.types, id.ID)
				return nil, err
			}
			td.Members[i] = md.ID
		}
	case registry.TypeArray, registry.TypeBox, registry.TypeNullable:
		switch info.Kind {
		case registry.TypeArray:
			td.Kind = DescArray
		case registry.TypeBox:
			td.Kind = DescBox
		default:
			td.Kind = DescNullable
		}
		ed, err := d.describe(info.Inner)
		if err != nil {
			delete(d.types, id.ID)
			return nil, err
		}
		td.Elem = ed.ID
		el, err := d.reg.LayoutOf(info.Inner)
		if err != nil {
			delete(d.types, id.ID)
			return nil, err
		}
		td.Stride = el.Stride()
	default:
		delete(d.types, id.ID)
		return nil, errs.New(errs.KindUnexpectedValue, "abi: type %s of kind %s has no host representation", id, info.Kind)
	}
	return td, nil
}

func (td *TypeDesc) setRange(lo, hi *big.Int) {
	if lo == nil || hi == nil {
		return
	}
	td.Lo, td.Hi = lo.String(), hi.String()
}
