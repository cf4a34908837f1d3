package starknet

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"

	"sierranative/internal/abi"
)

// keccakRateWords is the keccak-256 block size in 64-bit words.
const keccakRateWords = 17

// KeccakRoundCost is charged per absorbed block.
const KeccakRoundCost = 180_000

// keccak hashes input words that already carry keccak padding, as the
// Cairo library pads before calling the syscall. The result halves are
// little endian, low first.
func keccak(input []uint64) (abi.U256, bool) {
	if len(input) == 0 || len(input)%keccakRateWords != 0 {
		return abi.U256{}, false
	}
	msg := make([]byte, 8*len(input))
	for i, w := range input {
		binary.LittleEndian.PutUint64(msg[8*i:], w)
	}
	msg, ok := unpad(msg)
	if !ok {
		return abi.U256{}, false
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(msg)
	sum := h.Sum(nil)

	le := func(b []byte) *big.Int {
		be := make([]byte, len(b))
		for i := range b {
			be[len(b)-1-i] = b[i]
		}
		return new(big.Int).SetBytes(be)
	}
	return abi.U256{Low: le(sum[:16]), High: le(sum[16:])}, true
}

// unpad strips the pad10*1 suffix: 0x01, zeros, then 0x80 on the last byte,
// or the single byte 0x81.
func unpad(msg []byte) ([]byte, bool) {
	n := len(msg)
	switch msg[n-1] {
	case 0x81:
		return msg[:n-1], true
	case 0x80:
		i := n - 2
		for i >= 0 && msg[i] == 0 {
			i--
		}
		if i < 0 || msg[i] != 0x01 {
			return nil, false
		}
		return msg[:i], true
	}
	return nil, false
}
