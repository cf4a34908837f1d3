// Package starknet defines the syscall interface compiled contracts call
// into, and an in-memory implementation for tests and local runs.
package starknet

import (
	"strings"

	"sierranative/internal/abi"
	"sierranative/internal/felt"
)

// SyscallHandler serves the syscalls of one execution. Every method gets
// the remaining gas and may lower it; a failed syscall returns a
// *SyscallError whose data becomes the revert reason.
type SyscallHandler interface {
	GetBlockHash(blockNumber uint64, gas *uint64) (felt.Felt, error)
	GetExecutionInfo(gas *uint64) (abi.ExecutionInfo, error)
	GetExecutionInfoV2(gas *uint64) (abi.ExecutionInfoV2, error)

	StorageRead(domain uint32, address felt.Felt, gas *uint64) (felt.Felt, error)
	StorageWrite(domain uint32, address, value felt.Felt, gas *uint64) error

	EmitEvent(keys, data []felt.Felt, gas *uint64) error
	SendMessageToL1(to felt.Felt, payload []felt.Felt, gas *uint64) error
	CallContract(address, selector felt.Felt, calldata []felt.Felt, gas *uint64) ([]felt.Felt, error)

	Keccak(input []uint64, gas *uint64) (abi.U256, error)

	Secp256k1New(x, y abi.U256, gas *uint64) (*abi.Secp256k1Point, error)
	Secp256k1Add(p0, p1 abi.Secp256k1Point, gas *uint64) (abi.Secp256k1Point, error)
	Secp256k1GetXY(p abi.Secp256k1Point, gas *uint64) (x, y abi.U256, err error)

	Secp256r1New(x, y abi.U256, gas *uint64) (*abi.Secp256r1Point, error)
	Secp256r1Add(p0, p1 abi.Secp256r1Point, gas *uint64) (abi.Secp256r1Point, error)
	Secp256r1GetXY(p abi.Secp256r1Point, gas *uint64) (x, y abi.U256, err error)
}

// SyscallError is a syscall failure with its revert data.
type SyscallError struct {
	Data []felt.Felt
}

// Fail builds a SyscallError from short strings.
func Fail(reasons ...string) *SyscallError {
	data := make([]felt.Felt, 0, len(reasons))
	for _, r := range reasons {
		f, err := felt.FromShortString(r)
		if err != nil {
			f = felt.FromUint64(0)
		}
		data = append(data, f)
	}
	return &SyscallError{Data: data}
}

func (e *SyscallError) Error() string {
	return "syscall failed: " + DescribeData(e.Data)
}

// DescribeData renders revert data, decoding short strings where possible.
func DescribeData(data []felt.Felt) string {
	parts := make([]string, len(data))
	for i, f := range data {
		if s, ok := f.ShortString(); ok && s != "" {
			parts[i] = "'" + s + "'"
			continue
		}
		parts[i] = f.Hex()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Revert reasons shared by the handlers.
const (
	ReasonOutOfGas         = "Out of gas"
	ReasonInvalidInputLen  = "Invalid input length"
	ReasonInvalidArgument  = "Invalid argument"
	ReasonBlockOutOfRange  = "Block number out of range"
	ReasonContractNotFound = "CONTRACT_NOT_DEPLOYED"
	ReasonEntryNotFound    = "ENTRYPOINT_NOT_FOUND"
)

// Charge deducts cost from gas, failing with ReasonOutOfGas.
func Charge(gas *uint64, cost uint64) error {
	if *gas < cost {
		return Fail(ReasonOutOfGas)
	}
	*gas -= cost
	return nil
}
