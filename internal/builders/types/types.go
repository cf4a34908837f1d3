// Package types holds the TypeBuilders of the core catalog.
package types

import (
	"math/big"

	"sierranative/internal/felt"
	"sierranative/internal/layout"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// concrete is the shared implementation of registry.ConcreteType.
type concrete struct {
	info   registry.TypeInfo
	layout func(c *layout.Context) (layout.TypeLayout, error)
	tt     func(r *registry.Registry, self sierra.TypeID) (target.Type, error)
	self   sierra.TypeID
}

func (t *concrete) Info() registry.TypeInfo { return t.info }

func (t *concrete) Layout(c *layout.Context) (layout.TypeLayout, error) { return t.layout(c) }

func (t *concrete) TargetType(r *registry.Registry) (target.Type, error) {
	return t.tt(r, t.self)
}

func fixed(l layout.TypeLayout) func(*layout.Context) (layout.TypeLayout, error) {
	return func(*layout.Context) (layout.TypeLayout, error) { return l, nil }
}

func register(t target.Type) func(*registry.Registry, sierra.TypeID) (target.Type, error) {
	return func(*registry.Registry, sierra.TypeID) (target.Type, error) { return t, nil }
}

// blob uses the layout of the type itself.
func blob(r *registry.Registry, self sierra.TypeID) (target.Type, error) {
	return r.BlobOf(self)
}

// sameAs forwards to a wrapped type.
func sameAs(inner sierra.TypeID) func(*registry.Registry, sierra.TypeID) (target.Type, error) {
	return func(r *registry.Registry, _ sierra.TypeID) (target.Type, error) {
		return r.TargetType(inner)
	}
}

func innerLayout(inner sierra.TypeID) func(*layout.Context) (layout.TypeLayout, error) {
	return func(c *layout.Context) (layout.TypeLayout, error) { return c.LayoutOf(inner) }
}

func pow2(n int) *big.Int { return new(big.Int).Lsh(big.NewInt(1), uint(n)) } //nolint:gosec // small widths

// integer builds a plain integer-like type of the given width and range.
func integer(kind registry.TypeKind, generic string, bits int, lo, hi *big.Int) *concrete {
	return &concrete{
		info: registry.TypeInfo{
			Kind:         kind,
			GenericID:    generic,
			Bits:         bits,
			Lo:           lo,
			Hi:           hi,
			Storable:     true,
			Droppable:    true,
			Duplicatable: true,
		},
		layout: fixed(layout.Int(bits)),
		tt:     register(target.Int(bits)),
	}
}

// Felt252 is the field element type.
func Felt252(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	hi := new(big.Int).Sub(felt.Prime(), big.NewInt(1))
	return integer(registry.TypeFelt252, "felt252", 252, new(big.Int), hi), nil
}

// Uint returns the factory of the unsigned integer of the given width.
func Uint(bits int) registry.TypeFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		hi := new(big.Int).Sub(pow2(bits), big.NewInt(1))
		return integer(registry.TypeUint, UintName(bits), bits, new(big.Int), hi), nil
	}
}

// Sint returns the factory of the signed integer of the given width.
func Sint(bits int) registry.TypeFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		half := pow2(bits - 1)
		lo := new(big.Int).Neg(half)
		hi := new(big.Int).Sub(half, big.NewInt(1))
		return integer(registry.TypeSint, SintName(bits), bits, lo, hi), nil
	}
}

func UintName(bits int) string { return "u" + itoa(bits) }
func SintName(bits int) string { return "i" + itoa(bits) }

func itoa(n int) string { return big.NewInt(int64(n)).String() }

// BoundedInt is bounded_int<lo, hi> with an inclusive range. Values are
// stored offset by lo in the narrowest width that holds hi - lo.
func BoundedInt(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	if err := ctx.ExpectArgs(args, 2); err != nil {
		return nil, err
	}
	lo, err := ctx.ValueArg(args, 0)
	if err != nil {
		return nil, err
	}
	hi, err := ctx.ValueArg(args, 1)
	if err != nil {
		return nil, err
	}
	if lo.Cmp(hi) > 0 {
		return nil, ctx.Invalid("empty range [%s, %s]", lo, hi)
	}
	return integer(registry.TypeBoundedInt, "bounded_int", BoundedBits(lo, hi), lo, hi), nil
}

// BoundedBits is the storage width of a bounded range.
func BoundedBits(lo, hi *big.Int) int {
	n := new(big.Int).Sub(hi, lo).BitLen()
	if n == 0 {
		return 1
	}
	return n
}

// Bytes31 holds 31 bytes in a 248-bit integer.
func Bytes31(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	hi := new(big.Int).Sub(pow2(248), big.NewInt(1))
	return integer(registry.TypeBytes31, "bytes31", 248, new(big.Int), hi), nil
}

// Address returns the factory of a felt-backed address type whose values
// are below limit.
func Address(generic string, limit *big.Int) registry.TypeFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		hi := new(big.Int).Sub(limit, big.NewInt(1))
		return integer(registry.TypeAddress, generic, 252, new(big.Int), hi), nil
	}
}

// AddressBound is the exclusive upper bound of contract and storage
// addresses.
func AddressBound() *big.Int { return pow2(251) }

// StorageBaseBound is the exclusive upper bound of storage base addresses.
func StorageBaseBound() *big.Int { return new(big.Int).Sub(pow2(251), big.NewInt(256)) }

// Builtin returns the factory of a builtin counter type.
func Builtin(kind registry.TypeKind, generic string) registry.TypeFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		info := registry.TypeInfo{Kind: kind, GenericID: generic, Bits: 64, Storable: true}
		if kind == registry.TypeBuiltinCosts {
			info.Droppable = true
			info.Duplicatable = true
		}
		return &concrete{info: info, layout: fixed(layout.Int(64)), tt: register(target.I64)}, nil
	}
}

// EcPoint is a pair of felts.
func EcPoint(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	l := layout.Struct(layout.Int(252), layout.Int(252))
	return &concrete{
		info: registry.TypeInfo{
			Kind: registry.TypeEcPoint, GenericID: "EcPoint",
			Storable: true, Droppable: true, Duplicatable: true,
		},
		layout: fixed(l),
		tt:     register(target.FromLayout(l)),
	}, nil
}

// SecpPoint returns the factory of a secp256 curve point: two u256
// coordinates, the point at infinity being (0, 0).
func SecpPoint(generic string) registry.TypeFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteType, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		u256 := layout.Struct(layout.Int(128), layout.Int(128))
		l := layout.Struct(u256, u256)
		return &concrete{
			info: registry.TypeInfo{
				Kind: registry.TypeSecpPoint, GenericID: generic,
				Storable: true, Droppable: true, Duplicatable: true,
			},
			layout: fixed(l),
			tt:     register(target.FromLayout(l)),
		}, nil
	}
}
