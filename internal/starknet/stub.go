package starknet

import (
	"math/big"
	"sync"

	"github.com/tliron/commonlog"

	"sierranative/internal/abi"
	"sierranative/internal/felt"
)

var log = commonlog.GetLogger("sierranative.starknet")

// StorageKey addresses one storage slot.
type StorageKey struct {
	Domain  uint32
	Address felt.Felt
}

// Event is an emitted event.
type Event struct {
	Keys []felt.Felt
	Data []felt.Felt
}

// L1Message is a message sent to L1.
type L1Message struct {
	To      felt.Felt
	Payload []felt.Felt
}

// ContractFunc serves call_contract for one registered address.
type ContractFunc func(selector felt.Felt, calldata []felt.Felt, gas *uint64) ([]felt.Felt, error)

// StubHandler is an in-memory SyscallHandler. It is safe for concurrent use.
type StubHandler struct {
	mu sync.Mutex

	storage     map[StorageKey]felt.Felt
	events      []Event
	messages    []L1Message
	contracts   map[felt.Felt]ContractFunc
	blockHashes map[uint64]felt.Felt

	// Info is returned by both execution info syscalls.
	Info abi.ExecutionInfoV2
	// Costs are charged per syscall name, e.g. "storage_read"; absent names
	// are free.
	Costs map[string]uint64
}

// NewStubHandler returns an empty handler.
func NewStubHandler() *StubHandler {
	return &StubHandler{
		storage:     make(map[StorageKey]felt.Felt),
		contracts:   make(map[felt.Felt]ContractFunc),
		blockHashes: make(map[uint64]felt.Felt),
	}
}

var _ SyscallHandler = (*StubHandler)(nil)

// Deploy registers fn at address.
func (s *StubHandler) Deploy(address felt.Felt, fn ContractFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[address] = fn
}

// SetBlockHash makes get_block_hash answer hash for number.
func (s *StubHandler) SetBlockHash(number uint64, hash felt.Felt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockHashes[number] = hash
}

// Storage returns the value at key and whether it was written.
func (s *StubHandler) Storage(key StorageKey) (felt.Felt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.storage[key]
	return v, ok
}

// Events returns the emitted events in order.
func (s *StubHandler) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Messages returns the L1 messages in order.
func (s *StubHandler) Messages() []L1Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]L1Message(nil), s.messages...)
}

func (s *StubHandler) charge(name string, gas *uint64) error {
	cost := s.Costs[name]
	if err := Charge(gas, cost); err != nil {
		log.Debugf("%s: out of gas (need %d, have %d)", name, cost, *gas)
		return err
	}
	return nil
}

func (s *StubHandler) GetBlockHash(blockNumber uint64, gas *uint64) (felt.Felt, error) {
	if err := s.charge("get_block_hash", gas); err != nil {
		return felt.Felt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.blockHashes[blockNumber]
	if !ok {
		return felt.Felt{}, Fail(ReasonBlockOutOfRange)
	}
	return h, nil
}

func (s *StubHandler) GetExecutionInfo(gas *uint64) (abi.ExecutionInfo, error) {
	if err := s.charge("get_execution_info", gas); err != nil {
		return abi.ExecutionInfo{}, err
	}
	return abi.ExecutionInfo{
		BlockInfo:          s.Info.BlockInfo,
		TxInfo:             s.Info.TxInfo.TxInfo,
		CallerAddress:      s.Info.CallerAddress,
		ContractAddress:    s.Info.ContractAddress,
		EntryPointSelector: s.Info.EntryPointSelector,
	}, nil
}

func (s *StubHandler) GetExecutionInfoV2(gas *uint64) (abi.ExecutionInfoV2, error) {
	if err := s.charge("get_execution_info", gas); err != nil {
		return abi.ExecutionInfoV2{}, err
	}
	return s.Info, nil
}

func (s *StubHandler) StorageRead(domain uint32, address felt.Felt, gas *uint64) (felt.Felt, error) {
	if err := s.charge("storage_read", gas); err != nil {
		return felt.Felt{}, err
	}
	if domain != 0 {
		return felt.Felt{}, Fail("Unsupported address domain")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storage[StorageKey{Domain: domain, Address: address}], nil
}

func (s *StubHandler) StorageWrite(domain uint32, address, value felt.Felt, gas *uint64) error {
	if err := s.charge("storage_write", gas); err != nil {
		return err
	}
	if domain != 0 {
		return Fail("Unsupported address domain")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storage[StorageKey{Domain: domain, Address: address}] = value
	return nil
}

func (s *StubHandler) EmitEvent(keys, data []felt.Felt, gas *uint64) error {
	if err := s.charge("emit_event", gas); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Keys: keys, Data: data})
	log.Debugf("event #%d: %d keys, %d data", len(s.events), len(keys), len(data))
	return nil
}

func (s *StubHandler) SendMessageToL1(to felt.Felt, payload []felt.Felt, gas *uint64) error {
	if err := s.charge("send_message_to_l1", gas); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, L1Message{To: to, Payload: payload})
	return nil
}

func (s *StubHandler) CallContract(address, selector felt.Felt, calldata []felt.Felt, gas *uint64) ([]felt.Felt, error) {
	if err := s.charge("call_contract", gas); err != nil {
		return nil, err
	}
	s.mu.Lock()
	fn, ok := s.contracts[address]
	s.mu.Unlock()
	if !ok {
		return nil, Fail(ReasonContractNotFound)
	}
	log.Debugf("call_contract %s selector %s", address.Hex(), selector.Hex())
	return fn(selector, calldata, gas)
}

func (s *StubHandler) Keccak(input []uint64, gas *uint64) (abi.U256, error) {
	if err := s.charge("keccak", gas); err != nil {
		return abi.U256{}, err
	}
	rounds := uint64(len(input) / keccakRateWords)
	if err := Charge(gas, rounds*KeccakRoundCost); err != nil {
		return abi.U256{}, err
	}
	out, ok := keccak(input)
	if !ok {
		return abi.U256{}, Fail(ReasonInvalidInputLen)
	}
	return out, nil
}

func secpNew(c secpCurve, x, y abi.U256) (*big.Int, *big.Int, bool, error) {
	bx, by := x.Big(), y.Big()
	if !c.inField(bx, by) {
		return nil, nil, false, Fail(ReasonInvalidArgument)
	}
	if isInfinity(bx, by) || !c.onCurve(bx, by) {
		return nil, nil, false, nil
	}
	return bx, by, true, nil
}

func (s *StubHandler) Secp256k1New(x, y abi.U256, gas *uint64) (*abi.Secp256k1Point, error) {
	if err := s.charge("secp256k1_new", gas); err != nil {
		return nil, err
	}
	bx, by, ok, err := secpNew(secp256k1Curve, x, y)
	if err != nil || !ok {
		return nil, err
	}
	return &abi.Secp256k1Point{X: bx, Y: by}, nil
}

func (s *StubHandler) Secp256k1Add(p0, p1 abi.Secp256k1Point, gas *uint64) (abi.Secp256k1Point, error) {
	if err := s.charge("secp256k1_add", gas); err != nil {
		return abi.Secp256k1Point{}, err
	}
	x, y := secp256k1Curve.add(p0.X, p0.Y, p1.X, p1.Y)
	return abi.Secp256k1Point{X: x, Y: y}, nil
}

func (s *StubHandler) Secp256k1GetXY(p abi.Secp256k1Point, gas *uint64) (abi.U256, abi.U256, error) {
	if err := s.charge("secp256k1_get_xy", gas); err != nil {
		return abi.U256{}, abi.U256{}, err
	}
	return abi.U256From(p.X), abi.U256From(p.Y), nil
}

func (s *StubHandler) Secp256r1New(x, y abi.U256, gas *uint64) (*abi.Secp256r1Point, error) {
	if err := s.charge("secp256r1_new", gas); err != nil {
		return nil, err
	}
	bx, by, ok, err := secpNew(secp256r1, x, y)
	if err != nil || !ok {
		return nil, err
	}
	return &abi.Secp256r1Point{X: bx, Y: by}, nil
}

func (s *StubHandler) Secp256r1Add(p0, p1 abi.Secp256r1Point, gas *uint64) (abi.Secp256r1Point, error) {
	if err := s.charge("secp256r1_add", gas); err != nil {
		return abi.Secp256r1Point{}, err
	}
	x, y := secp256r1.add(p0.X, p0.Y, p1.X, p1.Y)
	return abi.Secp256r1Point{X: x, Y: y}, nil
}

func (s *StubHandler) Secp256r1GetXY(p abi.Secp256r1Point, gas *uint64) (abi.U256, abi.U256, error) {
	if err := s.charge("secp256r1_get_xy", gas); err != nil {
		return abi.U256{}, abi.U256{}, err
	}
	return abi.U256From(p.X), abi.U256From(p.Y), nil
}
