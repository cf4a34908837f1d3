package libfuncs

import (
	"sierranative/internal/registry"
	"sierranative/internal/target"
)

// UnsignedWidths and SignedWidths are the integer families with libfuncs.
var (
	UnsignedWidths = []int{8, 16, 32, 64, 128}
	SignedWidths   = []int{8, 16, 32, 64, 128}
)

// Register adds every core libfunc builder to c.
func Register(c *registry.Catalog) {
	c.MustRegisterLibfunc("function_call", FunctionCall)
	c.MustRegisterLibfunc("store_temp", StoreTemp)
	c.MustRegisterLibfunc("store_local", StoreLocal)
	c.MustRegisterLibfunc("alloc_local", AllocLocal)
	c.MustRegisterLibfunc("finalize_locals", plain("finalize_locals", registry.ClassPlain))
	c.MustRegisterLibfunc("rename", Rename)
	c.MustRegisterLibfunc("dup", Dup)
	c.MustRegisterLibfunc("drop", Drop)
	c.MustRegisterLibfunc("jump", plain("jump", registry.ClassJump))
	c.MustRegisterLibfunc("branch_align", plain("branch_align", registry.ClassPlain))
	c.MustRegisterLibfunc("disable_ap_tracking", plain("disable_ap_tracking", registry.ClassDisableApTracking))
	c.MustRegisterLibfunc("enable_ap_tracking", plain("enable_ap_tracking", registry.ClassEnableApTracking))
	c.MustRegisterLibfunc("snapshot_take", SnapshotTake)
	c.MustRegisterLibfunc("unwrap_non_zero", UnwrapNonZero)
	c.MustRegisterLibfunc("into_box", IntoBox)
	c.MustRegisterLibfunc("unbox", Unbox)
	c.MustRegisterLibfunc("null", Null)
	c.MustRegisterLibfunc("nullable_from_box", NullableFromBox)
	c.MustRegisterLibfunc("match_nullable", MatchNullable)

	c.MustRegisterLibfunc("withdraw_gas", WithdrawGas)
	c.MustRegisterLibfunc("withdraw_gas_all", WithdrawGasAll)
	c.MustRegisterLibfunc("redeposit_gas", RedepositGas)
	c.MustRegisterLibfunc("get_builtin_costs", GetBuiltinCosts)
	c.MustRegisterLibfunc("get_available_gas", GetAvailableGas)

	c.MustRegisterLibfunc("struct_construct", StructConstruct)
	c.MustRegisterLibfunc("struct_deconstruct", StructDeconstruct)
	c.MustRegisterLibfunc("struct_snapshot_deconstruct", StructSnapshotDeconstruct)
	c.MustRegisterLibfunc("enum_init", EnumInit)
	c.MustRegisterLibfunc("enum_match", EnumMatch)
	c.MustRegisterLibfunc("enum_snapshot_match", EnumSnapshotMatch)

	c.MustRegisterLibfunc("array_new", ArrayNew)
	c.MustRegisterLibfunc("array_append", ArrayAppend)
	c.MustRegisterLibfunc("array_len", ArrayLen)
	c.MustRegisterLibfunc("array_get", ArrayGet)
	c.MustRegisterLibfunc("array_pop_front", ArrayPopFront)
	c.MustRegisterLibfunc("array_pop_front_consume", ArrayPopFrontConsume)
	c.MustRegisterLibfunc("array_snapshot_pop_front", ArraySnapshotPopFront)
	c.MustRegisterLibfunc("array_snapshot_pop_back", ArraySnapshotPopBack)
	c.MustRegisterLibfunc("array_slice", ArraySlice)

	c.MustRegisterLibfunc("felt252_const", Felt252Const)
	c.MustRegisterLibfunc("felt252_add", Felt252Add)
	c.MustRegisterLibfunc("felt252_sub", Felt252Sub)
	c.MustRegisterLibfunc("felt252_mul", Felt252Mul)
	c.MustRegisterLibfunc("felt252_div", Felt252Div)
	c.MustRegisterLibfunc("felt252_is_zero", Felt252IsZero)

	for _, w := range UnsignedWidths {
		p := uintName(w)
		c.MustRegisterLibfunc(p+"_const", IntConst(p))
		c.MustRegisterLibfunc(p+"_overflowing_add", UintOverflowingAdd(w))
		c.MustRegisterLibfunc(p+"_overflowing_sub", UintOverflowingSub(w))
		c.MustRegisterLibfunc(p+"_eq", IntEq(p))
		c.MustRegisterLibfunc(p+"_lt", UintLt(w))
		c.MustRegisterLibfunc(p+"_le", UintLe(w))
		c.MustRegisterLibfunc(p+"_is_zero", IntIsZero(p))
		c.MustRegisterLibfunc(p+"_safe_divmod", UintSafeDivmod(w))
		c.MustRegisterLibfunc(p+"_wide_mul", UintWideMul(w))
		c.MustRegisterLibfunc(p+"_sqrt", UintSqrt(w))
		c.MustRegisterLibfunc(p+"_to_felt252", IntToFelt252(p))
		c.MustRegisterLibfunc(p+"_try_from_felt252", IntTryFromFelt252(p))
	}
	for _, w := range SignedWidths {
		p := sintName(w)
		c.MustRegisterLibfunc(p+"_const", IntConst(p))
		c.MustRegisterLibfunc(p+"_overflowing_add_impl", SintOverflowing(w, "_overflowing_add_impl", target.OpAdd))
		c.MustRegisterLibfunc(p+"_overflowing_sub_impl", SintOverflowing(w, "_overflowing_sub_impl", target.OpSub))
		c.MustRegisterLibfunc(p+"_eq", IntEq(p))
		c.MustRegisterLibfunc(p+"_is_zero", IntIsZero(p))
		c.MustRegisterLibfunc(p+"_diff", SintDiff(w))
		c.MustRegisterLibfunc(p+"_to_felt252", IntToFelt252(p))
		c.MustRegisterLibfunc(p+"_try_from_felt252", IntTryFromFelt252(p))
	}
	c.MustRegisterLibfunc("bitwise", Bitwise)
	c.MustRegisterLibfunc("u128s_from_felt252", U128sFromFelt252)
	c.MustRegisterLibfunc("upcast", Upcast)
	c.MustRegisterLibfunc("downcast", Downcast)

	c.MustRegisterLibfunc("bounded_int_add", BoundedIntAdd)
	c.MustRegisterLibfunc("bounded_int_sub", BoundedIntSub)
	c.MustRegisterLibfunc("bounded_int_mul", BoundedIntMul)
	c.MustRegisterLibfunc("bounded_int_div_rem", BoundedIntDivRem)
	c.MustRegisterLibfunc("bounded_int_constrain", BoundedIntConstrain)
	c.MustRegisterLibfunc("bounded_int_is_zero", BoundedIntIsZero)
	c.MustRegisterLibfunc("bounded_int_wrap_non_zero", BoundedIntWrapNonZero)

	c.MustRegisterLibfunc("print", Print)

	c.MustRegisterLibfunc("ec_point_zero", EcPointZero)
	c.MustRegisterLibfunc("ec_point_try_new_nz", EcPointTryNewNz)
	c.MustRegisterLibfunc("ec_point_from_x_nz", EcPointFromXNz)
	c.MustRegisterLibfunc("ec_point_unwrap", EcPointUnwrap)
	c.MustRegisterLibfunc("ec_point_is_zero", EcPointIsZero)
	c.MustRegisterLibfunc("ec_neg", EcNeg)

	c.MustRegisterLibfunc("storage_base_address_const", StorageBaseAddressConst)
	c.MustRegisterLibfunc("storage_base_address_from_felt252", StorageBaseAddressFromFelt252)
	c.MustRegisterLibfunc("storage_address_from_base", StorageAddressFromBase)
	c.MustRegisterLibfunc("contract_address_const", ContractAddressConst)
	c.MustRegisterLibfunc("contract_address_try_from_felt252", ContractAddressTryFromFelt252)
	c.MustRegisterLibfunc("contract_address_to_felt252", ContractAddressToFelt252)
	c.MustRegisterLibfunc("bytes31_const", Bytes31Const)
	c.MustRegisterLibfunc("bytes31_try_from_felt252", Bytes31TryFromFelt252)
	c.MustRegisterLibfunc("bytes31_to_felt252", Bytes31ToFelt252)

	c.MustRegisterLibfunc("storage_read_syscall", StorageReadSyscall)
	c.MustRegisterLibfunc("storage_write_syscall", StorageWriteSyscall)
	c.MustRegisterLibfunc("emit_event_syscall", EmitEventSyscall)
	c.MustRegisterLibfunc("get_block_hash_syscall", GetBlockHashSyscall)
	c.MustRegisterLibfunc("get_execution_info_v2_syscall", GetExecutionInfoV2Syscall)
	c.MustRegisterLibfunc("call_contract_syscall", CallContractSyscall)
	c.MustRegisterLibfunc("send_message_to_l1_syscall", SendMessageToL1Syscall)
	c.MustRegisterLibfunc("keccak_syscall", KeccakSyscall)
	for _, curve := range []secpCurve{secp256k1, secp256r1} {
		c.MustRegisterLibfunc(curve.prefix+"_new_syscall", curve.New())
		c.MustRegisterLibfunc(curve.prefix+"_add_syscall", curve.Add())
		c.MustRegisterLibfunc(curve.prefix+"_get_xy_syscall", curve.GetXY())
	}
}
