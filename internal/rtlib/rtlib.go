// Package rtlib implements the runtime functions compiled modules declare:
// felt division, debug printing, STARK curve checks and the syscall
// dispatchers that forward to a starknet.SyscallHandler.
package rtlib

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"

	"github.com/holiman/uint256"

	"sierranative/internal/abi"
	"sierranative/internal/backend/jit"
	"sierranative/internal/errs"
	"sierranative/internal/felt"
	"sierranative/internal/metadata"
	"sierranative/internal/starknet"
	"sierranative/internal/target"
)

// Host is stored in jit.Env.Host by the executor.
type Host struct {
	Syscalls starknet.SyscallHandler
	// Debug receives print output; nil writes to stderr.
	Debug io.Writer
}

func hostOf(env *jit.Env) *Host {
	h, _ := env.Host.(*Host)
	return h
}

// Table returns the bindings of every runtime function.
func Table() jit.Runtime {
	return jit.Runtime{
		metadata.RtFelt252Div:    felt252Div,
		metadata.RtDebugPrint:    debugPrint,
		metadata.RtIntSqrt:       intSqrt,
		metadata.RtEcPointTryNew: ecPointTryNew,
		metadata.RtEcPointFromX:  ecPointFromX,

		metadata.RtStorageRead:     syscall(metadata.RtStorageRead, storageRead),
		metadata.RtStorageWrite:    syscall(metadata.RtStorageWrite, storageWrite),
		metadata.RtEmitEvent:       syscall(metadata.RtEmitEvent, emitEvent),
		metadata.RtGetBlockHash:    syscall(metadata.RtGetBlockHash, getBlockHash),
		metadata.RtGetExecInfoV2:   syscall(metadata.RtGetExecInfoV2, getExecutionInfoV2),
		metadata.RtCallContract:    syscall(metadata.RtCallContract, callContract),
		metadata.RtSendMessageToL1: syscall(metadata.RtSendMessageToL1, sendMessageToL1),
		metadata.RtKeccak:          syscall(metadata.RtKeccak, keccak),
		metadata.RtSecp256k1New:    syscall(metadata.RtSecp256k1New, secp256k1New),
		metadata.RtSecp256k1Add:    syscall(metadata.RtSecp256k1Add, secp256k1Add),
		metadata.RtSecp256k1GetXY:  syscall(metadata.RtSecp256k1GetXY, secp256k1GetXY),
		metadata.RtSecp256r1New:    syscall(metadata.RtSecp256r1New, secp256r1New),
		metadata.RtSecp256r1Add:    syscall(metadata.RtSecp256r1Add, secp256r1Add),
		metadata.RtSecp256r1GetXY:  syscall(metadata.RtSecp256r1GetXY, secp256r1GetXY),
	}
}

func feltOf(v jit.Value) felt.Felt { return felt.FromLE(v) }

func feltValue(f felt.Felt) jit.Value {
	le := f.LE()
	return jit.Value(le[:])
}

func felt252Div(_ *jit.Env, args []jit.Value) ([]jit.Value, error) {
	d := feltOf(args[1])
	if d.IsZero() {
		return nil, errs.NativeAssertf("felt252_div by zero")
	}
	return []jit.Value{feltValue(feltOf(args[0]).Div(d))}, nil
}

func debugPrint(env *jit.Env, args []jit.Value) ([]jit.Value, error) {
	fs, err := abi.ReadFelts(env.Mem, args[0])
	if err != nil {
		return nil, err
	}
	var w io.Writer = os.Stderr
	if h := hostOf(env); h != nil && h.Debug != nil {
		w = h.Debug
	}
	for _, f := range fs {
		if s, ok := f.ShortString(); ok {
			fmt.Fprintf(w, "[DEBUG]\t%s ('%s')\n", f.Hex(), s)
			continue
		}
		fmt.Fprintf(w, "[DEBUG]\t%s\n", f.Hex())
	}
	return nil, nil
}

func intSqrt(_ *jit.Env, args []jit.Value) ([]jit.Value, error) {
	n := args[0].Big()
	r := new(big.Int).Sqrt(n)
	z, overflow := uint256.FromBig(r)
	if overflow {
		return nil, errs.NativeAssertf("int_sqrt result overflows 256 bits")
	}
	return []jit.Value{jit.IntValue(target.I256, z)}, nil
}

// STARK curve: y^2 = x^3 + alpha*x + beta with alpha = 1.
var starkBeta = func() felt.Felt {
	f, err := felt.Parse("0x6f21413efbe40de150e596d72f7a8c5609ad26c15c915c1f4cdfcb99cee9e89")
	if err != nil {
		panic(err)
	}
	return f
}()

func curveRHS(x felt.Felt) felt.Felt {
	return x.Mul(x).Mul(x).Add(x).Add(starkBeta)
}

func ecPointTryNew(_ *jit.Env, args []jit.Value) ([]jit.Value, error) {
	x, y := feltOf(args[0]), feltOf(args[1])
	return []jit.Value{jit.BoolValue(y.Mul(y).Equal(curveRHS(x)))}, nil
}

func ecPointFromX(_ *jit.Env, args []jit.Value) ([]jit.Value, error) {
	y, ok := curveRHS(feltOf(args[0])).Sqrt()
	if !ok {
		return []jit.Value{jit.BoolValue(false), jit.Zero(target.I252)}, nil
	}
	return []jit.Value{jit.BoolValue(true), feltValue(y)}, nil
}

// syscallBody serves one syscall. args exclude the leading gas; the
// returned values are the outputs after the common prefix.
type syscallBody func(env *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error)

// syscall adapts body to the runtime calling convention: (gas, args...) ->
// (gas, failed, reason, outs...). A *starknet.SyscallError becomes the
// failure branch; any other error aborts the execution.
func syscall(name string, body syscallBody) jit.RuntimeFunc {
	decl, ok := metadata.RuntimeSignature(name)
	if !ok {
		panic("rtlib: no signature for " + name)
	}
	outs := decl.Results[metadata.SyscallPrefix:]
	return func(env *jit.Env, args []jit.Value) ([]jit.Value, error) {
		h := hostOf(env)
		if h == nil || h.Syscalls == nil {
			return nil, errs.New(errs.KindMissingSyscallHandler, "%s called without a syscall handler", name)
		}
		gas := args[0].U64()
		res, err := body(env, h.Syscalls, args[1:], &gas)
		var se *starknet.SyscallError
		if errors.As(err, &se) {
			reason, werr := abi.WriteFelts(env.Mem, se.Data)
			if werr != nil {
				return nil, werr
			}
			failed := []jit.Value{jit.U64Value(target.I64, gas), jit.BoolValue(true), reason}
			for _, t := range outs {
				failed = append(failed, jit.Zero(t))
			}
			return failed, nil
		}
		if err != nil {
			return nil, err
		}
		return append([]jit.Value{jit.U64Value(target.I64, gas), jit.BoolValue(false), jit.Zero(metadata.ArrayType)}, res...), nil
	}
}

func storageRead(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	v, err := h.StorageRead(uint32(args[0].U64()), feltOf(args[1]), gas) //nolint:gosec // i32 register
	if err != nil {
		return nil, err
	}
	return []jit.Value{feltValue(v)}, nil
}

func storageWrite(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	return nil, h.StorageWrite(uint32(args[0].U64()), feltOf(args[1]), feltOf(args[2]), gas) //nolint:gosec // i32 register
}

func emitEvent(env *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	keys, err := abi.ReadFelts(env.Mem, args[0])
	if err != nil {
		return nil, err
	}
	data, err := abi.ReadFelts(env.Mem, args[1])
	if err != nil {
		return nil, err
	}
	return nil, h.EmitEvent(keys, data, gas)
}

func getBlockHash(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	v, err := h.GetBlockHash(args[0].U64(), gas)
	if err != nil {
		return nil, err
	}
	return []jit.Value{feltValue(v)}, nil
}

func getExecutionInfoV2(env *jit.Env, h starknet.SyscallHandler, _ []jit.Value, gas *uint64) ([]jit.Value, error) {
	info, err := h.GetExecutionInfoV2(gas)
	if err != nil {
		return nil, err
	}
	ptr, err := info.Write(env.Mem)
	if err != nil {
		return nil, err
	}
	return []jit.Value{jit.PtrValue(ptr)}, nil
}

func callContract(env *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	calldata, err := abi.ReadFelts(env.Mem, args[2])
	if err != nil {
		return nil, err
	}
	ret, err := h.CallContract(feltOf(args[0]), feltOf(args[1]), calldata, gas)
	if err != nil {
		return nil, err
	}
	desc, err := abi.WriteFelts(env.Mem, ret)
	if err != nil {
		return nil, err
	}
	return []jit.Value{desc}, nil
}

func sendMessageToL1(env *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	payload, err := abi.ReadFelts(env.Mem, args[1])
	if err != nil {
		return nil, err
	}
	return nil, h.SendMessageToL1(feltOf(args[0]), payload, gas)
}

func keccak(env *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	words, err := abi.ReadU64s(env.Mem, args[0])
	if err != nil {
		return nil, err
	}
	out, err := h.Keccak(words, gas)
	if err != nil {
		return nil, err
	}
	return []jit.Value{out.Bytes()}, nil
}

func u256Of(v jit.Value) (abi.U256, error) { return abi.ParseU256(v) }

func secpCoords(v jit.Value) (x, y *big.Int, err error) { return abi.ParseSecpPoint(v) }

func secpResult(ok bool, x, y *big.Int) []jit.Value {
	if !ok {
		return []jit.Value{jit.BoolValue(false), jit.Zero(metadata.SecpPointType)}
	}
	return []jit.Value{jit.BoolValue(true), abi.SecpPointBytes(x, y)}
}

func secp256k1New(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	x, err := u256Of(args[0])
	if err != nil {
		return nil, err
	}
	y, err := u256Of(args[1])
	if err != nil {
		return nil, err
	}
	p, err := h.Secp256k1New(x, y, gas)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return secpResult(false, nil, nil), nil
	}
	return secpResult(true, p.X, p.Y), nil
}

func secp256k1Add(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	x0, y0, err := secpCoords(args[0])
	if err != nil {
		return nil, err
	}
	x1, y1, err := secpCoords(args[1])
	if err != nil {
		return nil, err
	}
	p, err := h.Secp256k1Add(abi.Secp256k1Point{X: x0, Y: y0}, abi.Secp256k1Point{X: x1, Y: y1}, gas)
	if err != nil {
		return nil, err
	}
	return []jit.Value{p.Bytes()}, nil
}

func secp256k1GetXY(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	x, y, err := secpCoords(args[0])
	if err != nil {
		return nil, err
	}
	ux, uy, err := h.Secp256k1GetXY(abi.Secp256k1Point{X: x, Y: y}, gas)
	if err != nil {
		return nil, err
	}
	return []jit.Value{ux.Bytes(), uy.Bytes()}, nil
}

func secp256r1New(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	x, err := u256Of(args[0])
	if err != nil {
		return nil, err
	}
	y, err := u256Of(args[1])
	if err != nil {
		return nil, err
	}
	p, err := h.Secp256r1New(x, y, gas)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return secpResult(false, nil, nil), nil
	}
	return secpResult(true, p.X, p.Y), nil
}

func secp256r1Add(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	x0, y0, err := secpCoords(args[0])
	if err != nil {
		return nil, err
	}
	x1, y1, err := secpCoords(args[1])
	if err != nil {
		return nil, err
	}
	p, err := h.Secp256r1Add(abi.Secp256r1Point{X: x0, Y: y0}, abi.Secp256r1Point{X: x1, Y: y1}, gas)
	if err != nil {
		return nil, err
	}
	return []jit.Value{p.Bytes()}, nil
}

func secp256r1GetXY(_ *jit.Env, h starknet.SyscallHandler, args []jit.Value, gas *uint64) ([]jit.Value, error) {
	x, y, err := secpCoords(args[0])
	if err != nil {
		return nil, err
	}
	ux, uy, err := h.Secp256r1GetXY(abi.Secp256r1Point{X: x, Y: y}, gas)
	if err != nil {
		return nil, err
	}
	return []jit.Value{ux.Bytes(), uy.Bytes()}, nil
}
