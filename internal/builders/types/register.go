package types

import "sierranative/internal/registry"

// UnsignedWidths and SignedWidths are the integer widths of the core catalog.
var (
	UnsignedWidths = []int{8, 16, 32, 64, 128}
	SignedWidths   = []int{8, 16, 32, 64, 128}
)

// Register adds every core type builder to c.
func Register(c *registry.Catalog) {
	c.MustRegisterType("felt252", Felt252)
	for _, w := range UnsignedWidths {
		c.MustRegisterType(UintName(w), Uint(w))
	}
	for _, w := range SignedWidths {
		c.MustRegisterType(SintName(w), Sint(w))
	}
	c.MustRegisterType("bounded_int", BoundedInt)
	c.MustRegisterType("bytes31", Bytes31)
	c.MustRegisterType("ContractAddress", Address("ContractAddress", AddressBound()))
	c.MustRegisterType("StorageAddress", Address("StorageAddress", AddressBound()))
	c.MustRegisterType("StorageBaseAddress", Address("StorageBaseAddress", StorageBaseBound()))
	c.MustRegisterType("ClassHash", Address("ClassHash", AddressBound()))

	c.MustRegisterType("NonZero", NonZero)
	c.MustRegisterType("Box", Box)
	c.MustRegisterType("Nullable", Nullable)
	c.MustRegisterType("Array", Array)
	c.MustRegisterType("Snapshot", Snapshot)
	c.MustRegisterType("Uninitialized", Uninitialized)
	c.MustRegisterType("Struct", Struct)
	c.MustRegisterType("Enum", Enum)

	for _, b := range []string{"RangeCheck", "RangeCheck96", "Bitwise", "Pedersen", "Poseidon", "EcOp", "SegmentArena", "AddMod", "MulMod"} {
		c.MustRegisterType(b, Builtin(registry.TypeBuiltin, b))
	}
	c.MustRegisterType("GasBuiltin", Builtin(registry.TypeGasBuiltin, "GasBuiltin"))
	c.MustRegisterType("BuiltinCosts", Builtin(registry.TypeBuiltinCosts, "BuiltinCosts"))
	c.MustRegisterType("System", Builtin(registry.TypeSystem, "System"))

	c.MustRegisterType("EcPoint", EcPoint)
	c.MustRegisterType("Secp256k1Point", SecpPoint("Secp256k1Point"))
	c.MustRegisterType("Secp256r1Point", SecpPoint("Secp256r1Point"))
}
