package abi

import (
	"encoding/binary"
	"math/big"

	"fortio.org/safecast"

	"sierranative/internal/errs"
	"sierranative/internal/felt"
	"sierranative/internal/layout"
)

// Felt252Abi is the little endian image of a felt252.
type Felt252Abi [felt.Size]byte

// FeltAbi encodes f.
func FeltAbi(f felt.Felt) Felt252Abi { return Felt252Abi(f.LE()) }

// Felt decodes the image, reducing it modulo the prime.
func (a Felt252Abi) Felt() felt.Felt { return felt.FromLE(a[:]) }

// ArrayAbi is the {ptr, len, cap} descriptor of an array or span.
type ArrayAbi struct {
	Ptr uint64
	Len uint32
	Cap uint32
}

// ArrayAbiSize is the size of an encoded ArrayAbi.
const ArrayAbiSize = 16

// ParseArrayAbi reads a descriptor.
func ParseArrayAbi(b []byte) (ArrayAbi, error) {
	if len(b) < ArrayAbiSize {
		return ArrayAbi{}, errs.NativeAssertf("abi: array descriptor is %d bytes", len(b))
	}
	return ArrayAbi{
		Ptr: binary.LittleEndian.Uint64(b[arrayPtrOffset:]),
		Len: binary.LittleEndian.Uint32(b[arrayLenOffset:]),
		Cap: binary.LittleEndian.Uint32(b[arrayCapOffset:]),
	}, nil
}

// Bytes encodes the descriptor.
func (a ArrayAbi) Bytes() []byte {
	b := make([]byte, ArrayAbiSize)
	binary.LittleEndian.PutUint64(b[arrayPtrOffset:], a.Ptr)
	binary.LittleEndian.PutUint32(b[arrayLenOffset:], a.Len)
	binary.LittleEndian.PutUint32(b[arrayCapOffset:], a.Cap)
	return b
}

// U256 is core::integer::u256.
type U256 struct {
	Low, High *big.Int
}

// U256Size is the size of an encoded U256.
const U256Size = 32

// U256From splits n, which must fit 256 bits.
func U256From(n *big.Int) U256 {
	return U256{Low: new(big.Int).And(n, u128Mask), High: new(big.Int).Rsh(n, 128)}
}

// ParseU256 reads {low, high}.
func ParseU256(b []byte) (U256, error) {
	if len(b) < U256Size {
		return U256{}, errs.NativeAssertf("abi: u256 image is %d bytes", len(b))
	}
	return U256{Low: readLE(b[:16], 128), High: readLE(b[16:32], 128)}, nil
}

// Big joins the halves.
func (u U256) Big() *big.Int {
	n := new(big.Int).Lsh(u.High, 128)
	return n.Or(n, u.Low)
}

// Bytes encodes {low, high}.
func (u U256) Bytes() []byte {
	b := make([]byte, U256Size)
	putLE(b[:16], u.Low)
	putLE(b[16:], u.High)
	return b
}

// SecpPointSize is the size of an encoded secp256 point.
const SecpPointSize = 2 * U256Size

// Secp256k1Point is a point of secp256k1; (0, 0) is the point at infinity.
type Secp256k1Point struct{ X, Y *big.Int }

// Secp256r1Point is a point of secp256r1; (0, 0) is the point at infinity.
type Secp256r1Point struct{ X, Y *big.Int }

// SecpPointBytes encodes a point as two u256.
func SecpPointBytes(x, y *big.Int) []byte {
	return append(U256From(x).Bytes(), U256From(y).Bytes()...)
}

// ParseSecpPoint reads the coordinates of a point.
func ParseSecpPoint(b []byte) (x, y *big.Int, err error) {
	if len(b) < SecpPointSize {
		return nil, nil, errs.NativeAssertf("abi: secp point image is %d bytes", len(b))
	}
	ux, _ := ParseU256(b[:U256Size])
	uy, _ := ParseU256(b[U256Size:])
	return ux.Big(), uy.Big(), nil
}

// Bytes encodes the point.
func (p Secp256k1Point) Bytes() []byte { return SecpPointBytes(p.X, p.Y) }

// Bytes encodes the point.
func (p Secp256r1Point) Bytes() []byte { return SecpPointBytes(p.X, p.Y) }

// BlockInfo is core::starknet::info::BlockInfo.
type BlockInfo struct {
	BlockNumber      uint64
	BlockTimestamp   uint64
	SequencerAddress felt.Felt
}

// ResourceBounds is core::starknet::info::v2::ResourceBounds.
type ResourceBounds struct {
	Resource        felt.Felt
	MaxAmount       uint64
	MaxPricePerUnit *big.Int
}

// TxInfo is core::starknet::info::TxInfo.
type TxInfo struct {
	Version                felt.Felt
	AccountContractAddress felt.Felt
	MaxFee                 *big.Int
	Signature              []felt.Felt
	TransactionHash        felt.Felt
	ChainID                felt.Felt
	Nonce                  felt.Felt
}

// TxV2Info is core::starknet::info::v2::TxInfo.
type TxV2Info struct {
	TxInfo
	ResourceBounds            []ResourceBounds
	Tip                       *big.Int
	PaymasterData             []felt.Felt
	NonceDataAvailabilityMode uint32
	FeeDataAvailabilityMode   uint32
	AccountDeploymentData     []felt.Felt
}

// ExecutionInfo is core::starknet::info::ExecutionInfo.
type ExecutionInfo struct {
	BlockInfo          BlockInfo
	TxInfo             TxInfo
	CallerAddress      felt.Felt
	ContractAddress    felt.Felt
	EntryPointSelector felt.Felt
}

// ExecutionInfoV2 is core::starknet::info::v2::ExecutionInfo.
type ExecutionInfoV2 struct {
	BlockInfo          BlockInfo
	TxInfo             TxV2Info
	CallerAddress      felt.Felt
	ContractAddress    felt.Felt
	EntryPointSelector felt.Felt
}

// field is one member of a record: its layout and a writer for its image.
type field struct {
	l   layout.TypeLayout
	put func(h Heap, b []byte) error
}

var (
	feltLayout = layout.Int(252)
	u32Layout  = layout.Int(32)
	u64Layout  = layout.Int(64)
	u128Layout = layout.Int(128)
	ptrLayout  = layout.Ptr(layout.X86_64LinuxGNU())
	spanLayout = layout.ArrayDescriptor(layout.X86_64LinuxGNU())
)

func feltField(f felt.Felt) field {
	return field{l: feltLayout, put: func(_ Heap, b []byte) error {
		le := f.LE()
		copy(b, le[:])
		return nil
	}}
}

func u32Field(v uint32) field {
	return field{l: u32Layout, put: func(_ Heap, b []byte) error {
		binary.LittleEndian.PutUint32(b, v)
		return nil
	}}
}

func u64Field(v uint64) field {
	return field{l: u64Layout, put: func(_ Heap, b []byte) error {
		binary.LittleEndian.PutUint64(b, v)
		return nil
	}}
}

func u128Field(v *big.Int) field {
	return field{l: u128Layout, put: func(_ Heap, b []byte) error {
		if v == nil {
			return nil
		}
		if v.Sign() < 0 || v.BitLen() > 128 {
			return errs.New(errs.KindUnexpectedValue, "abi: %s is not a u128", v)
		}
		putLE(b, v)
		return nil
	}}
}

// boxField writes the record of fields to the heap and stores its pointer.
func boxField(fields ...field) field {
	return field{l: ptrLayout, put: func(h Heap, b []byte) error {
		ptr, err := writeRecord(h, fields...)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(b, ptr)
		return nil
	}}
}

// spanField writes records of the same shape contiguously.
func spanField(elems [][]field) field {
	return field{l: spanLayout, put: func(h Heap, b []byte) error {
		desc, err := writeSpan(h, elems)
		if err != nil {
			return err
		}
		copy(b, desc.Bytes())
		return nil
	}}
}

func feltSpanField(fs []felt.Felt) field { return spanField(feltElems(fs)) }

func recordImage(h Heap, fields []field) ([]byte, layout.TypeLayout, error) {
	ls := make([]layout.TypeLayout, len(fields))
	for i, f := range fields {
		ls[i] = f.l
	}
	l := layout.Struct(ls...)
	buf := make([]byte, l.Size)
	for i, f := range fields {
		off := l.FieldOffsets[i]
		if err := f.put(h, buf[off:off+f.l.Size]); err != nil {
			return nil, l, err
		}
	}
	return buf, l, nil
}

func writeRecord(h Heap, fields ...field) (uint64, error) {
	img, l, err := recordImage(h, fields)
	if err != nil {
		return 0, err
	}
	ptr, err := h.Alloc(uint64(max(l.Size, 1))) //nolint:gosec // sizes are positive
	if err != nil {
		return 0, err
	}
	return ptr, h.Write(ptr, img)
}

func writeSpan(h Heap, elems [][]field) (ArrayAbi, error) {
	n, err := safecast.Conv[uint32](len(elems))
	if err != nil {
		return ArrayAbi{}, errs.New(errs.KindUnexpectedValue, "abi: span of %d elements is too long", len(elems))
	}
	if n == 0 {
		return ArrayAbi{}, nil
	}
	var buf []byte
	for _, e := range elems {
		img, l, err := recordImage(h, e)
		if err != nil {
			return ArrayAbi{}, err
		}
		stride := l.Stride()
		img = append(img, make([]byte, stride-len(img))...)
		buf = append(buf, img...)
	}
	ptr, err := h.Alloc(uint64(len(buf)))
	if err != nil {
		return ArrayAbi{}, err
	}
	if err := h.Write(ptr, buf); err != nil {
		return ArrayAbi{}, err
	}
	return ArrayAbi{Ptr: ptr, Len: n, Cap: n}, nil
}

func (b BlockInfo) fields() []field {
	return []field{u64Field(b.BlockNumber), u64Field(b.BlockTimestamp), feltField(b.SequencerAddress)}
}

func (r ResourceBounds) fields() []field {
	return []field{feltField(r.Resource), u64Field(r.MaxAmount), u128Field(r.MaxPricePerUnit)}
}

func (t TxInfo) fields() []field {
	return []field{
		feltField(t.Version),
		feltField(t.AccountContractAddress),
		u128Field(t.MaxFee),
		feltSpanField(t.Signature),
		feltField(t.TransactionHash),
		feltField(t.ChainID),
		feltField(t.Nonce),
	}
}

func (t TxV2Info) fields() []field {
	bounds := make([][]field, len(t.ResourceBounds))
	for i, rb := range t.ResourceBounds {
		bounds[i] = rb.fields()
	}
	return append(t.TxInfo.fields(),
		spanField(bounds),
		u128Field(t.Tip),
		feltSpanField(t.PaymasterData),
		u32Field(t.NonceDataAvailabilityMode),
		u32Field(t.FeeDataAvailabilityMode),
		feltSpanField(t.AccountDeploymentData),
	)
}

// Write stores the record and the boxes it refers to in h and returns its
// address.
func (e ExecutionInfo) Write(h Heap) (uint64, error) {
	return writeRecord(h,
		boxField(e.BlockInfo.fields()...),
		boxField(e.TxInfo.fields()...),
		feltField(e.CallerAddress),
		feltField(e.ContractAddress),
		feltField(e.EntryPointSelector),
	)
}

// Write stores the record and the boxes it refers to in h and returns its
// address.
func (e ExecutionInfoV2) Write(h Heap) (uint64, error) {
	return writeRecord(h,
		boxField(e.BlockInfo.fields()...),
		boxField(e.TxInfo.fields()...),
		feltField(e.CallerAddress),
		feltField(e.ContractAddress),
		feltField(e.EntryPointSelector),
	)
}

// ReadFelts reads the elements of an Array<felt252> or Span<felt252>.
func ReadFelts(h Heap, desc []byte) ([]felt.Felt, error) {
	a, err := ParseArrayAbi(desc)
	if err != nil {
		return nil, err
	}
	if a.Len == 0 {
		return nil, nil
	}
	data, err := h.Read(a.Ptr, uint64(a.Len)*felt.Size)
	if err != nil {
		return nil, err
	}
	out := make([]felt.Felt, a.Len)
	for i := range out {
		out[i] = felt.FromLE(data[i*felt.Size : (i+1)*felt.Size])
	}
	return out, nil
}

// WriteFelts stores fs as a fresh Array<felt252> and returns its descriptor.
func WriteFelts(h Heap, fs []felt.Felt) ([]byte, error) {
	a, err := writeSpan(h, feltElems(fs))
	if err != nil {
		return nil, err
	}
	return a.Bytes(), nil
}

func feltElems(fs []felt.Felt) [][]field {
	elems := make([][]field, len(fs))
	for i, f := range fs {
		elems[i] = []field{feltField(f)}
	}
	return elems
}

// ReadU64s reads the elements of an Array<u64>.
func ReadU64s(h Heap, desc []byte) ([]uint64, error) {
	a, err := ParseArrayAbi(desc)
	if err != nil {
		return nil, err
	}
	if a.Len == 0 {
		return nil, nil
	}
	data, err := h.Read(a.Ptr, uint64(a.Len)*8)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, a.Len)
	for i := range out {
		out[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	return out, nil
}
