package libfuncs

import (
	"math/big"

	"sierranative/internal/metadata"
	"sierranative/internal/registry"
	"sierranative/internal/sierra"
	"sierranative/internal/target"
)

// Declared names of the user types syscalls produce.
const (
	u256Name          = "core::integer::u256"
	executionInfoName = "core::starknet::info::v2::ExecutionInfo"
)

// constOf returns the factory of <generic><v> for a felt-backed type.
func constOf(generic, typeName string) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 1); err != nil {
			return nil, err
		}
		v, err := ctx.ValueArg(args, 0)
		if err != nil {
			return nil, err
		}
		t, info, err := intType(ctx, typeName)
		if err != nil {
			return nil, err
		}
		if v.Cmp(info.Lo) < 0 || v.Cmp(info.Hi) > 0 {
			return nil, ctx.Invalid("%s out of range for %s", v, typeName)
		}
		return simple(generic, nil, types(t), func(c *registry.LibfuncContext) error {
			return c.Br(0, c.B.Const(target.Int(info.Bits), v))
		}), nil
	}
}

// convert returns the factory of a conversion that cannot fail.
func convert(generic, from, to string) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		ft, fi, err := intType(ctx, from)
		if err != nil {
			return nil, err
		}
		tt, ti, err := intType(ctx, to)
		if err != nil {
			return nil, err
		}
		return simple(generic, types(ft), types(tt), func(c *registry.LibfuncContext) error {
			return c.Br(0, narrow(c, widen(c, c.Args[0], fi), ti))
		}), nil
	}
}

// tryFromFelt returns the factory of a range checked conversion from felt252.
func tryFromFelt(generic, to string) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		rc, err := ctx.FindType("RangeCheck")
		if err != nil {
			return nil, err
		}
		f, err := feltType(ctx)
		if err != nil {
			return nil, err
		}
		t, info, err := intType(ctx, to)
		if err != nil {
			return nil, err
		}
		return branching(generic, types(rc, f), []registry.BranchSignature{branch(rc, t), branch(rc)},
			func(c *registry.LibfuncContext) error {
				counter := bump(c, c.Args[0], 1)
				v, ok := fromFelt(c, c.Args[1], info)
				return c.CondBr(ok, 0, []target.ValueID{counter, v}, 1, []target.ValueID{counter})
			}), nil
	}
}

var (
	StorageBaseAddressConst       = constOf("storage_base_address_const", "StorageBaseAddress")
	ContractAddressConst          = constOf("contract_address_const", "ContractAddress")
	Bytes31Const                  = constOf("bytes31_const", "bytes31")
	StorageAddressFromBase        = convert("storage_address_from_base", "StorageBaseAddress", "StorageAddress")
	ContractAddressToFelt252      = convert("contract_address_to_felt252", "ContractAddress", "felt252")
	Bytes31ToFelt252              = convert("bytes31_to_felt252", "bytes31", "felt252")
	ContractAddressTryFromFelt252 = tryFromFelt("contract_address_try_from_felt252", "ContractAddress")
	Bytes31TryFromFelt252         = tryFromFelt("bytes31_try_from_felt252", "bytes31")
)

// StorageBaseAddressFromFelt252 is storage_base_address_from_felt252: the
// value reduced below the storage base bound.
func StorageBaseAddressFromFelt252(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
	if err := ctx.ExpectArgs(args, 0); err != nil {
		return nil, err
	}
	rc, err := ctx.FindType("RangeCheck")
	if err != nil {
		return nil, err
	}
	f, err := feltType(ctx)
	if err != nil {
		return nil, err
	}
	t, info, err := intType(ctx, "StorageBaseAddress")
	if err != nil {
		return nil, err
	}
	bound := new(big.Int).Add(info.Hi, big.NewInt(1))
	return simple("storage_base_address_from_felt252", types(rc, f), types(rc, t), func(c *registry.LibfuncContext) error {
		counter := bump(c, c.Args[0], 1)
		return c.Br(0, counter, c.B.URem(c.Args[1], c.B.Const(target.I252, bound)))
	}), nil
}

// syscallTypes are the types every syscall threads through.
type syscallTypes struct {
	gas, system, felt, reason, span sierra.TypeID
}

func findSyscallTypes(ctx *registry.SpecializationContext) (syscallTypes, error) {
	var t syscallTypes
	var err error
	if t.gas, err = ctx.FindType("GasBuiltin"); err != nil {
		return t, err
	}
	if t.system, err = ctx.FindType("System"); err != nil {
		return t, err
	}
	if t.felt, err = feltType(ctx); err != nil {
		return t, err
	}
	if t.reason, err = wrap(ctx, "Array", t.felt); err != nil {
		return t, err
	}
	t.span, err = snapshotOf(ctx, t.reason)
	return t, err
}

// syscallOutputs maps the runtime results of a successful call to the
// branch outputs.
type syscallOutputs func(c *registry.LibfuncContext, res []target.ValueID) ([]target.ValueID, error)

// syscall builds a libfunc over the runtime function rt. Params and outs
// exclude the leading gas and system values. The failure branch carries the
// revert reason.
func syscall(ctx *registry.SpecializationContext, generic, rt string, params, outs []sierra.TypeID, mapOut syscallOutputs) (registry.ConcreteLibfunc, error) {
	t, err := findSyscallTypes(ctx)
	if err != nil {
		return nil, err
	}
	ok := branch(append(types(t.gas, t.system), outs...)...)
	failed := branch(t.gas, t.system, t.reason)
	return branching(generic, append(types(t.gas, t.system), params...), []registry.BranchSignature{ok, failed},
		func(c *registry.LibfuncContext) error {
			decl, err := c.Runtime(rt)
			if err != nil {
				return err
			}
			callArgs := append([]target.ValueID{c.Args[0]}, c.Args[2:]...)
			res := c.B.RuntimeCall(decl, callArgs...)
			gas, isErr, reason := res[0], res[1], res[2]
			values := res[metadata.SyscallPrefix:]
			if mapOut != nil {
				if values, err = mapOut(c, values); err != nil {
					return err
				}
			}
			system := c.Args[1]
			return c.CondBr(isErr,
				1, []target.ValueID{gas, system, reason},
				0, append([]target.ValueID{gas, system}, values...))
		}), nil
}

func noArgs(f func(*registry.SpecializationContext) (registry.ConcreteLibfunc, error)) registry.LibfuncFactory {
	return func(ctx *registry.SpecializationContext, args []sierra.GenericArg) (registry.ConcreteLibfunc, error) {
		if err := ctx.ExpectArgs(args, 0); err != nil {
			return nil, err
		}
		return f(ctx)
	}
}

// StorageReadSyscall is storage_read_syscall(domain, address) -> value.
var StorageReadSyscall = noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
	u32, _, err := intType(ctx, "u32")
	if err != nil {
		return nil, err
	}
	addr, err := ctx.FindType("StorageAddress")
	if err != nil {
		return nil, err
	}
	f, err := feltType(ctx)
	if err != nil {
		return nil, err
	}
	return syscall(ctx, "storage_read_syscall", metadata.RtStorageRead, types(u32, addr), types(f), nil)
})

// StorageWriteSyscall is storage_write_syscall(domain, address, value).
var StorageWriteSyscall = noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
	u32, _, err := intType(ctx, "u32")
	if err != nil {
		return nil, err
	}
	addr, err := ctx.FindType("StorageAddress")
	if err != nil {
		return nil, err
	}
	f, err := feltType(ctx)
	if err != nil {
		return nil, err
	}
	return syscall(ctx, "storage_write_syscall", metadata.RtStorageWrite, types(u32, addr, f), nil, nil)
})

// EmitEventSyscall is emit_event_syscall(keys, data).
var EmitEventSyscall = noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
	t, err := findSyscallTypes(ctx)
	if err != nil {
		return nil, err
	}
	return syscall(ctx, "emit_event_syscall", metadata.RtEmitEvent, types(t.span, t.span), nil, nil)
})

// GetBlockHashSyscall is get_block_hash_syscall(block_number) -> hash.
var GetBlockHashSyscall = noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
	u64, _, err := intType(ctx, "u64")
	if err != nil {
		return nil, err
	}
	f, err := feltType(ctx)
	if err != nil {
		return nil, err
	}
	return syscall(ctx, "get_block_hash_syscall", metadata.RtGetBlockHash, types(u64), types(f), nil)
})

// GetExecutionInfoV2Syscall is get_execution_info_v2_syscall() -> Box<ExecutionInfo>.
var GetExecutionInfoV2Syscall = noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
	info, err := findUserType(ctx, registry.TypeStruct, executionInfoName)
	if err != nil {
		return nil, err
	}
	box, err := wrap(ctx, "Box", info)
	if err != nil {
		return nil, err
	}
	return syscall(ctx, "get_execution_info_v2_syscall", metadata.RtGetExecInfoV2, nil, types(box), nil)
})

// CallContractSyscall is call_contract_syscall(address, selector, calldata) -> retdata.
var CallContractSyscall = noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
	t, err := findSyscallTypes(ctx)
	if err != nil {
		return nil, err
	}
	addr, err := ctx.FindType("ContractAddress")
	if err != nil {
		return nil, err
	}
	return syscall(ctx, "call_contract_syscall", metadata.RtCallContract, types(addr, t.felt, t.span), types(t.span), nil)
})

// SendMessageToL1Syscall is send_message_to_l1_syscall(to, payload).
var SendMessageToL1Syscall = noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
	t, err := findSyscallTypes(ctx)
	if err != nil {
		return nil, err
	}
	return syscall(ctx, "send_message_to_l1_syscall", metadata.RtSendMessageToL1, types(t.felt, t.span), nil, nil)
})

// KeccakSyscall is keccak_syscall(input u64 words) -> u256.
var KeccakSyscall = noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
	u64, _, err := intType(ctx, "u64")
	if err != nil {
		return nil, err
	}
	words, err := wrap(ctx, "Array", u64)
	if err != nil {
		return nil, err
	}
	span, err := snapshotOf(ctx, words)
	if err != nil {
		return nil, err
	}
	u256, err := findUserType(ctx, registry.TypeStruct, u256Name)
	if err != nil {
		return nil, err
	}
	return syscall(ctx, "keccak_syscall", metadata.RtKeccak, types(span), types(u256), nil)
})

// secpCurve names the point type and runtime functions of one curve.
type secpCurve struct {
	prefix, point      string
	newFn, addFn, xyFn string
}

var (
	secp256k1 = secpCurve{"secp256k1", "Secp256k1Point", metadata.RtSecp256k1New, metadata.RtSecp256k1Add, metadata.RtSecp256k1GetXY}
	secp256r1 = secpCurve{"secp256r1", "Secp256r1Point", metadata.RtSecp256r1New, metadata.RtSecp256r1Add, metadata.RtSecp256r1GetXY}
)

func (s secpCurve) types(ctx *registry.SpecializationContext) (point, u256 sierra.TypeID, err error) {
	if point, err = ctx.FindType(s.point); err != nil {
		return
	}
	u256, err = findUserType(ctx, registry.TypeStruct, u256Name)
	return
}

// New is <curve>_new_syscall(x, y) -> Option<Point>: Some for points on
// the curve, None otherwise.
func (s secpCurve) New() registry.LibfuncFactory {
	return noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
		point, u256, err := s.types(ctx)
		if err != nil {
			return nil, err
		}
		option, err := findOption(ctx, point)
		if err != nil {
			return nil, err
		}
		return syscall(ctx, s.prefix+"_new_syscall", s.newFn, types(u256, u256), types(option),
			func(c *registry.LibfuncContext, res []target.ValueID) ([]target.ValueID, error) {
				l, err := c.Layout(option)
				if err != nil {
					return nil, err
				}
				tt, err := c.TargetType(option)
				if err != nil {
					return nil, err
				}
				b := c.B
				tagT := target.Int(l.TagSize * 8)
				tag := b.Select(res[0], b.ConstU64(tagT, 0), b.ConstU64(tagT, 1))
				v := b.Insert(b.Zero(tt), tag, 0)
				return []target.ValueID{b.Insert(v, res[1], l.PayloadOffset)}, nil
			})
	})
}

// Add is <curve>_add_syscall(p, q) -> p + q.
func (s secpCurve) Add() registry.LibfuncFactory {
	return noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
		point, _, err := s.types(ctx)
		if err != nil {
			return nil, err
		}
		return syscall(ctx, s.prefix+"_add_syscall", s.addFn, types(point, point), types(point), nil)
	})
}

// GetXY is <curve>_get_xy_syscall(p) -> (x, y).
func (s secpCurve) GetXY() registry.LibfuncFactory {
	return noArgs(func(ctx *registry.SpecializationContext) (registry.ConcreteLibfunc, error) {
		point, u256, err := s.types(ctx)
		if err != nil {
			return nil, err
		}
		return syscall(ctx, s.prefix+"_get_xy_syscall", s.xyFn, types(point), types(u256, u256), nil)
	})
}
