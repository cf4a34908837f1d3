package metadata

import (
	"slices"

	"sierranative/internal/errs"
	"sierranative/internal/target"
)

// Runtime function names. The rtlib package provides an implementation for
// each of them.
const (
	RtFelt252Div      = "felt252_div"
	RtDebugPrint      = "debug_print"
	RtIntSqrt         = "int_sqrt"
	RtEcPointTryNew   = "ec_point_try_new"
	RtEcPointFromX    = "ec_point_from_x"
	RtStorageRead     = "syscall_storage_read"
	RtStorageWrite    = "syscall_storage_write"
	RtEmitEvent       = "syscall_emit_event"
	RtGetBlockHash    = "syscall_get_block_hash"
	RtGetExecInfoV2   = "syscall_get_execution_info_v2"
	RtCallContract    = "syscall_call_contract"
	RtSendMessageToL1 = "syscall_send_message_to_l1"
	RtKeccak          = "syscall_keccak"
	RtSecp256k1New    = "syscall_secp256k1_new"
	RtSecp256k1Add    = "syscall_secp256k1_add"
	RtSecp256k1GetXY  = "syscall_secp256k1_get_xy"
	RtSecp256r1New    = "syscall_secp256r1_new"
	RtSecp256r1Add    = "syscall_secp256r1_add"
	RtSecp256r1GetXY  = "syscall_secp256r1_get_xy"
)

// Shapes shared by the runtime signatures.
var (
	ArrayType     = target.Blob(16, 8)
	U256Type      = target.Blob(32, 16)
	SecpPointType = target.Blob(64, 16)
)

func sig(name string, params []target.Type, results ...target.Type) target.RuntimeDecl {
	return target.RuntimeDecl{Name: name, Params: params, Results: results}
}

// Every syscall takes the remaining gas first and returns the remaining gas,
// a failure flag and the revert reason before its outputs.
func syscall(name string, params []target.Type, results ...target.Type) target.RuntimeDecl {
	return sig(name,
		append([]target.Type{target.I64}, params...),
		append([]target.Type{target.I64, target.I1, ArrayType}, results...)...)
}

// SyscallPrefix is the number of leading results every syscall returns.
const SyscallPrefix = 3

var runtimeSignatures = map[string]target.RuntimeDecl{
	RtFelt252Div:    sig(RtFelt252Div, []target.Type{target.I252, target.I252}, target.I252),
	RtDebugPrint:    sig(RtDebugPrint, []target.Type{ArrayType}),
	RtIntSqrt:       sig(RtIntSqrt, []target.Type{target.I256}, target.I256),
	RtEcPointTryNew: sig(RtEcPointTryNew, []target.Type{target.I252, target.I252}, target.I1),
	RtEcPointFromX:  sig(RtEcPointFromX, []target.Type{target.I252}, target.I1, target.I252),

	RtStorageRead:     syscall(RtStorageRead, []target.Type{target.I32, target.I252}, target.I252),
	RtStorageWrite:    syscall(RtStorageWrite, []target.Type{target.I32, target.I252, target.I252}),
	RtEmitEvent:       syscall(RtEmitEvent, []target.Type{ArrayType, ArrayType}),
	RtGetBlockHash:    syscall(RtGetBlockHash, []target.Type{target.I64}, target.I252),
	RtGetExecInfoV2:   syscall(RtGetExecInfoV2, nil, target.Ptr()),
	RtCallContract:    syscall(RtCallContract, []target.Type{target.I252, target.I252, ArrayType}, ArrayType),
	RtSendMessageToL1: syscall(RtSendMessageToL1, []target.Type{target.I252, ArrayType}),
	RtKeccak:          syscall(RtKeccak, []target.Type{ArrayType}, U256Type),
	RtSecp256k1New:    syscall(RtSecp256k1New, []target.Type{U256Type, U256Type}, target.I1, SecpPointType),
	RtSecp256k1Add:    syscall(RtSecp256k1Add, []target.Type{SecpPointType, SecpPointType}, SecpPointType),
	RtSecp256k1GetXY:  syscall(RtSecp256k1GetXY, []target.Type{SecpPointType}, U256Type, U256Type),
	RtSecp256r1New:    syscall(RtSecp256r1New, []target.Type{U256Type, U256Type}, target.I1, SecpPointType),
	RtSecp256r1Add:    syscall(RtSecp256r1Add, []target.Type{SecpPointType, SecpPointType}, SecpPointType),
	RtSecp256r1GetXY:  syscall(RtSecp256r1GetXY, []target.Type{SecpPointType}, U256Type, U256Type),
}

// RuntimeSignature returns the declaration of a runtime function.
func RuntimeSignature(name string) (target.RuntimeDecl, bool) {
	d, ok := runtimeSignatures[name]
	return d, ok
}

// RuntimeNames lists every runtime function in order.
func RuntimeNames() []string {
	out := make([]string, 0, len(runtimeSignatures))
	for name := range runtimeSignatures {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// RuntimeBindings declares runtime functions in the module on first use.
type RuntimeBindings struct {
	used map[string]bool
}

func (*RuntimeBindings) MetadataKind() Kind { return KindRuntimeBindings }

func NewRuntimeBindings() *RuntimeBindings {
	return &RuntimeBindings{used: make(map[string]bool)}
}

// Declare adds the declaration of name to m once and returns it.
func (r *RuntimeBindings) Declare(m *target.Module, name string) (target.RuntimeDecl, error) {
	d, ok := runtimeSignatures[name]
	if !ok {
		return target.RuntimeDecl{}, errs.NativeAssertf("unknown runtime function %q", name)
	}
	if !r.used[name] {
		r.used[name] = true
		m.Declare(d)
	}
	return d, nil
}

// Used lists the runtime functions declared so far.
func (r *RuntimeBindings) Used() []string {
	out := make([]string, 0, len(r.used))
	for name := range r.used {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
