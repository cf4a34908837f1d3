package registry

import (
	"math/big"

	"sierranative/internal/layout"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// TypeKind classifies concrete types.
type TypeKind uint8

const (
	TypeInvalid TypeKind = iota
	TypeFelt252
	TypeUint
	TypeSint
	TypeBoundedInt
	TypeBytes31
	TypeAddress
	TypeNonZero
	TypeBox
	TypeNullable
	TypeArray
	TypeSnapshot
	TypeStruct
	TypeEnum
	TypeUninitialized
	TypeBuiltin
	TypeGasBuiltin
	TypeBuiltinCosts
	TypeSystem
	TypeEcPoint
	TypeSecpPoint
)

var typeKindNames = [...]string{
	TypeInvalid:       "invalid",
	TypeFelt252:       "felt252",
	TypeUint:          "uint",
	TypeSint:          "sint",
	TypeBoundedInt:    "bounded_int",
	TypeBytes31:       "bytes31",
	TypeAddress:       "address",
	TypeNonZero:       "non_zero",
	TypeBox:           "box",
	TypeNullable:      "nullable",
	TypeArray:         "array",
	TypeSnapshot:      "snapshot",
	TypeStruct:        "struct",
	TypeEnum:          "enum",
	TypeUninitialized: "uninitialized",
	TypeBuiltin:       "builtin",
	TypeGasBuiltin:    "gas_builtin",
	TypeBuiltinCosts:  "builtin_costs",
	TypeSystem:        "system",
	TypeEcPoint:       "ec_point",
	TypeSecpPoint:     "secp_point",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "type?"
}

// TypeInfo describes a concrete type.
type TypeInfo struct {
	Kind      TypeKind
	GenericID string
	DebugName string

	// Integer-like kinds: width and inclusive value range.
	Bits int
	Lo   *big.Int
	Hi   *big.Int

	// Struct fields or enum variants.
	Members  []sierra.TypeID
	UserType sierra.UserTypeID

	// Wrapped type of NonZero, Box, Nullable, Array, Snapshot, Uninitialized.
	Inner sierra.TypeID

	Storable     bool
	Droppable    bool
	Duplicatable bool
	ZeroSized    bool
	// NeedsClone marks types whose snapshot must copy owned memory.
	NeedsClone bool
}

// IsIntegerLike reports kinds represented as a single integer register.
func (i TypeInfo) IsIntegerLike() bool {
	switch i.Kind {
	case TypeFelt252, TypeUint, TypeSint, TypeBoundedInt, TypeBytes31, TypeAddress:
		return true
	}
	return false
}

// IsSigned reports signed integer kinds.
func (i TypeInfo) IsSigned() bool { return i.Kind == TypeSint }

// ConcreteType is a specialized type.
type ConcreteType interface {
	Info() TypeInfo
	// Layout computes the memory layout, asking c for component layouts.
	Layout(c *layout.Context) (layout.TypeLayout, error)
	// TargetType is the register type values of this type have.
	TargetType(r *Registry) (target.Type, error)
}
