package cost

import "strconv"

const (
	step       = 100
	rangeCheck = 70
)

func steps(n int64) Vector       { return Of(n * step) }
func stepsRC(n, rc int64) Vector { return Of(n*step + rc*rangeCheck) }
func withToken(v Vector, t Token, n int64) Vector {
	v[t] += n
	return v
}

// UnsignedWidths and SignedWidths list the integer families of the core
// catalogue.
var (
	UnsignedWidths = []int{8, 16, 32, 64, 128}
	SignedWidths   = []int{8, 16, 32, 64, 128}
)

// DefaultTable covers every generic libfunc of the core catalogue.
func DefaultTable() *Table {
	t := NewTable()

	for _, id := range []string{
		"rename", "drop", "dup", "branch_align", "snapshot_take",
		"struct_construct", "struct_deconstruct", "struct_snapshot_deconstruct",
		"unwrap_non_zero", "enum_init", "disable_ap_tracking", "enable_ap_tracking",
		"alloc_local", "finalize_locals", "redeposit_gas", "null", "nullable_from_box",
		"upcast", "felt252_const", "felt252_add", "felt252_sub", "felt252_mul",
		"unbox", "get_available_gas", "array_len",
		"bounded_int_add", "bounded_int_sub", "bounded_int_mul", "bounded_int_wrap_non_zero",
		"storage_base_address_const", "contract_address_const", "contract_address_to_felt252",
		"storage_address_from_base", "bytes31_const", "bytes31_to_felt252", "ec_point_zero",
		"ec_point_unwrap",
	} {
		t.Set(id, Vector{})
	}

	t.Set("store_temp", steps(1))
	t.Set("store_local", steps(1))
	t.Set("jump", steps(1))
	t.Set("function_call", steps(2))
	t.Set("enum_match", steps(1))
	t.Set("enum_snapshot_match", steps(1))
	t.Set("match_nullable", steps(1))
	t.Set("into_box", steps(1))
	t.Set("felt252_is_zero", steps(1))
	t.Set("felt252_div", steps(5))
	t.Set("print", steps(1))

	t.Set("withdraw_gas", stepsRC(3, 1), stepsRC(4, 1))
	t.Set("withdraw_gas_all", stepsRC(4, 1), stepsRC(5, 1))
	t.Set("get_builtin_costs", steps(3))

	for _, w := range UnsignedWidths {
		p := uintName(w)
		t.Set(p+"_const", Vector{})
		t.Set(p+"_overflowing_add", stepsRC(3, 1), stepsRC(4, 1))
		t.Set(p+"_overflowing_sub", stepsRC(3, 1), stepsRC(4, 1))
		t.Set(p+"_eq", steps(1))
		t.Set(p+"_lt", stepsRC(3, 1))
		t.Set(p+"_le", stepsRC(3, 1))
		t.Set(p+"_is_zero", steps(1))
		t.Set(p+"_safe_divmod", stepsRC(7, 3))
		t.Set(p+"_wide_mul", Vector{})
		t.Set(p+"_sqrt", stepsRC(9, 4))
		t.Set(p+"_to_felt252", Vector{})
		t.Set(p+"_try_from_felt252", stepsRC(3, 2), stepsRC(5, 3))
	}
	for _, w := range SignedWidths {
		p := sintName(w)
		t.Set(p+"_const", Vector{})
		t.Set(p+"_overflowing_add_impl", stepsRC(4, 1), stepsRC(5, 1), stepsRC(5, 1))
		t.Set(p+"_overflowing_sub_impl", stepsRC(4, 1), stepsRC(5, 1), stepsRC(5, 1))
		t.Set(p+"_eq", steps(1))
		t.Set(p+"_is_zero", steps(1))
		t.Set(p+"_diff", stepsRC(3, 1), stepsRC(4, 1))
		t.Set(p+"_to_felt252", Vector{})
		t.Set(p+"_try_from_felt252", stepsRC(4, 2), stepsRC(5, 3))
	}
	t.Set("bitwise", withToken(Vector{}, Bitwise, 1))
	t.Set("u128s_from_felt252", stepsRC(5, 1), stepsRC(9, 3))

	t.Set("bounded_int_div_rem", stepsRC(7, 3))
	t.Set("bounded_int_constrain", stepsRC(3, 1), stepsRC(3, 1))
	t.Set("bounded_int_is_zero", steps(1))
	t.Set("downcast", stepsRC(3, 1), stepsRC(4, 1))

	t.Set("array_new", steps(1))
	t.Set("array_append", steps(2))
	t.Set("array_get", stepsRC(3, 1), stepsRC(3, 1))
	t.Set("array_pop_front", steps(2), steps(1))
	t.Set("array_pop_front_consume", steps(2), steps(1))
	t.Set("array_snapshot_pop_front", steps(2), steps(1))
	t.Set("array_snapshot_pop_back", steps(2), steps(1))
	t.Set("array_slice", stepsRC(4, 2), stepsRC(4, 2))

	t.Set("ec_point_try_new_nz", steps(4), steps(4))
	t.Set("ec_point_from_x_nz", steps(6), steps(6))
	t.Set("ec_point_is_zero", steps(1))
	t.Set("ec_neg", steps(1))

	t.Set("storage_base_address_from_felt252", stepsRC(5, 3))
	t.Set("contract_address_try_from_felt252", stepsRC(3, 1), stepsRC(4, 1))
	t.Set("bytes31_try_from_felt252", stepsRC(3, 1), stepsRC(4, 1))

	for _, id := range []string{
		"storage_read_syscall", "storage_write_syscall", "emit_event_syscall",
		"get_block_hash_syscall", "get_execution_info_v2_syscall", "call_contract_syscall",
		"send_message_to_l1_syscall", "keccak_syscall",
		"secp256k1_new_syscall", "secp256k1_add_syscall", "secp256k1_get_xy_syscall",
		"secp256r1_new_syscall", "secp256r1_add_syscall", "secp256r1_get_xy_syscall",
	} {
		t.Set(id, steps(2), steps(2))
	}
	return t
}

func uintName(w int) string { return "u" + strconv.Itoa(w) }
func sintName(w int) string { return "i" + strconv.Itoa(w) }
