package abi

import (
	"encoding/binary"
	"math/big"

	"fortio.org/safecast"

	"sierranative/internal/errs"
	"sierranative/internal/felt"
)

// Array descriptor field offsets.
const (
	arrayPtrOffset = 0
	arrayLenOffset = 8
	arrayCapOffset = 12
)

// Codec encodes Values into register images and back. Arrays and boxes are
// written to and read from Heap.
type Codec struct {
	Types Types
	Heap  Heap
}

// Encode returns the image of v as type id.
func (c *Codec) Encode(id uint64, v Value) ([]byte, error) {
	d, err := c.Types.Get(id)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, d.Size)
	if err := c.encodeInto(d, v, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode reads a value of type id from img.
func (c *Codec) Decode(id uint64, img []byte) (Value, error) {
	d, err := c.Types.Get(id)
	if err != nil {
		return Value{}, err
	}
	if len(img) < d.Size {
		return Value{}, errs.NativeAssertf("abi: %s image is %d bytes, want %d", d.Name, len(img), d.Size)
	}
	return c.decode(d, img[:d.Size])
}

func mismatch(d *TypeDesc, v Value) error {
	return errs.NativeAssertf("abi: cannot pass %s value as %s", v.Kind, d.Name)
}

func outOfRange(d *TypeDesc, n *big.Int) error {
	lo, hi := d.Range()
	return errs.New(errs.KindUnexpectedValue, "abi: %s is outside [%s, %s] of %s", n, lo, hi, d.Name)
}

func checkRange(d *TypeDesc, n *big.Int) error {
	lo, hi := d.Range()
	if lo == nil {
		return nil
	}
	if n.Cmp(lo) < 0 || n.Cmp(hi) > 0 {
		return outOfRange(d, n)
	}
	return nil
}

func (c *Codec) encodeInto(d *TypeDesc, v Value, buf []byte) error {
	switch d.Kind {
	case DescFelt:
		if v.Kind != ValFelt || v.Int == nil {
			return mismatch(d, v)
		}
		f := felt.FromBigInt(v.Int)
		if err := checkRange(d, f.BigInt()); err != nil {
			return err
		}
		le := f.LE()
		copy(buf, le[:])
		return nil

	case DescUint, DescSint:
		if (v.Kind != ValUint && v.Kind != ValSint) || v.Int == nil {
			return mismatch(d, v)
		}
		if err := checkRange(d, v.Int); err != nil {
			return err
		}
		putTwos(buf, v.Int, d.Bits)
		return nil

	case DescBounded:
		if v.Kind != ValBounded || v.Int == nil {
			return mismatch(d, v)
		}
		if err := checkRange(d, v.Int); err != nil {
			return err
		}
		lo, _ := d.Range()
		putLE(buf, new(big.Int).Sub(v.Int, lo))
		return nil

	case DescBuiltin:
		if v.Kind != ValBuiltin {
			return mismatch(d, v)
		}
		n := v.Int
		if n == nil {
			n = new(big.Int)
		}
		if n.Sign() < 0 || !n.IsUint64() {
			return errs.New(errs.KindUnexpectedValue, "abi: builtin counter %s does not fit 64 bits", n)
		}
		binary.LittleEndian.PutUint64(buf, n.Uint64())
		return nil

	case DescUninit:
		return nil

	case DescEcPoint:
		if v.Kind != ValEcPoint || len(v.Fields) != 2 {
			return mismatch(d, v)
		}
		for i, f := range v.Fields {
			le := felt.FromBigInt(f.Int).LE()
			copy(buf[d.Offsets[i]:], le[:])
		}
		return nil

	case DescSecpPoint:
		if v.Kind != ValSecpPoint || len(v.Fields) != 2 {
			return mismatch(d, v)
		}
		for i, f := range v.Fields {
			if f.Int == nil || f.Int.Sign() < 0 || f.Int.BitLen() > 256 {
				return errs.New(errs.KindUnexpectedValue, "abi: secp coordinate %s is not a u256", f.Int)
			}
			putU256(buf[d.Offsets[i]:], f.Int)
		}
		return nil

	case DescStruct:
		if v.Kind != ValStruct || len(v.Fields) != len(d.Members) {
			return mismatch(d, v)
		}
		for i, m := range d.Members {
			md, err := c.Types.Get(m)
			if err != nil {
				return err
			}
			off := d.Offsets[i]
			if err := c.encodeInto(md, v.Fields[i], buf[off:off+md.Size]); err != nil {
				return errs.Wrapf(err, "%s field %d", d.Name, i)
			}
		}
		return nil

	case DescEnum:
		if v.Kind != ValEnum || v.Tag < 0 || v.Tag >= len(d.Members) || v.Inner == nil {
			return mismatch(d, v)
		}
		putUint(buf[:d.TagSize], uint64(v.Tag)) //nolint:gosec // checked above
		md, err := c.Types.Get(d.Members[v.Tag])
		if err != nil {
			return err
		}
		off := d.PayloadOffset
		if err := c.encodeInto(md, *v.Inner, buf[off:off+md.Size]); err != nil {
			return errs.Wrapf(err, "%s variant %d", d.Name, v.Tag)
		}
		return nil

	case DescArray:
		if v.Kind != ValArray {
			return mismatch(d, v)
		}
		return c.encodeArray(d, v.Fields, buf)

	case DescBox, DescNullable:
		if d.Kind == DescNullable && v.Kind == ValNullable && v.Inner == nil {
			return nil
		}
		if (v.Kind != ValBox && v.Kind != ValNullable) || v.Inner == nil {
			return mismatch(d, v)
		}
		ptr, err := c.boxed(d, *v.Inner)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(buf, ptr)
		return nil
	}
	return errs.NativeAssertf("abi: unsupported descriptor kind %d", d.Kind)
}

func (c *Codec) heap() (Heap, error) {
	if c.Heap == nil {
		return nil, errs.NativeAssertf("abi: codec has no heap")
	}
	return c.Heap, nil
}

// encodeArray writes the elements to a fresh buffer with capacity equal to
// its length. An empty array has a null pointer.
func (c *Codec) encodeArray(d *TypeDesc, elems []Value, buf []byte) error {
	n, err := safecast.Conv[uint32](len(elems))
	if err != nil {
		return errs.New(errs.KindUnexpectedValue, "abi: array of %d elements is too long", len(elems))
	}
	var ptr uint64
	if n > 0 {
		ed, err := c.Types.Get(d.Elem)
		if err != nil {
			return err
		}
		h, err := c.heap()
		if err != nil {
			return err
		}
		stride := uint64(d.Stride) //nolint:gosec // strides are positive
		ptr, err = h.Alloc(stride * uint64(n))
		if err != nil {
			return err
		}
		img := make([]byte, stride*uint64(n))
		for i, e := range elems {
			off := i * d.Stride
			if err := c.encodeInto(ed, e, img[off:off+ed.Size]); err != nil {
				return errs.Wrapf(err, "%s element %d", d.Name, i)
			}
		}
		if err := h.Write(ptr, img); err != nil {
			return err
		}
	}
	binary.LittleEndian.PutUint64(buf[arrayPtrOffset:], ptr)
	binary.LittleEndian.PutUint32(buf[arrayLenOffset:], n)
	binary.LittleEndian.PutUint32(buf[arrayCapOffset:], n)
	return nil
}

func (c *Codec) boxed(d *TypeDesc, v Value) (uint64, error) {
	ed, err := c.Types.Get(d.Elem)
	if err != nil {
		return 0, err
	}
	h, err := c.heap()
	if err != nil {
		return 0, err
	}
	img := make([]byte, ed.Size)
	if err := c.encodeInto(ed, v, img); err != nil {
		return 0, errs.Wrapf(err, "%s contents", d.Name)
	}
	ptr, err := h.Alloc(uint64(max(d.Stride, 1))) //nolint:gosec // strides are positive
	if err != nil {
		return 0, err
	}
	if err := h.Write(ptr, img); err != nil {
		return 0, err
	}
	return ptr, nil
}

func (c *Codec) decode(d *TypeDesc, img []byte) (Value, error) {
	switch d.Kind {
	case DescFelt:
		return FeltFrom(felt.FromLE(img)), nil

	case DescUint:
		return Value{Kind: ValUint, Int: readLE(img, d.Bits)}, nil

	case DescSint:
		n := readLE(img, d.Bits)
		if d.Bits > 0 && n.Bit(d.Bits-1) == 1 {
			n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(d.Bits))) //nolint:gosec // widths are small
		}
		return Value{Kind: ValSint, Int: n}, nil

	case DescBounded:
		lo, _ := d.Range()
		n := readLE(img, d.Bits)
		if lo != nil {
			n.Add(n, lo)
		}
		return Value{Kind: ValBounded, Int: n}, nil

	case DescBuiltin:
		return Builtin(binary.LittleEndian.Uint64(img)), nil

	case DescUninit:
		return Uninit(), nil

	case DescEcPoint:
		x := felt.FromLE(img[d.Offsets[0] : d.Offsets[0]+felt.Size])
		y := felt.FromLE(img[d.Offsets[1] : d.Offsets[1]+felt.Size])
		return Value{Kind: ValEcPoint, Fields: []Value{FeltFrom(x), FeltFrom(y)}}, nil

	case DescSecpPoint:
		x := readU256(img[d.Offsets[0]:])
		y := readU256(img[d.Offsets[1]:])
		return SecpPoint(x, y), nil

	case DescStruct:
		fields := make([]Value, len(d.Members))
		for i, m := range d.Members {
			md, err := c.Types.Get(m)
			if err != nil {
				return Value{}, err
			}
			off := d.Offsets[i]
			f, err := c.decode(md, img[off:off+md.Size])
			if err != nil {
				return Value{}, err
			}
			fields[i] = f
		}
		return Value{Kind: ValStruct, Fields: fields}, nil

	case DescEnum:
		tag := readUint(img[:d.TagSize])
		if tag >= uint64(len(d.Members)) {
			return Value{}, errs.NativeAssertf("abi: %s has no variant %d", d.Name, tag)
		}
		md, err := c.Types.Get(d.Members[tag])
		if err != nil {
			return Value{}, err
		}
		off := d.PayloadOffset
		payload, err := c.decode(md, img[off:off+md.Size])
		if err != nil {
			return Value{}, err
		}
		return Enum(int(tag), payload), nil //nolint:gosec // bounded by the member count

	case DescArray:
		return c.decodeArray(d, img)

	case DescBox, DescNullable:
		ptr := binary.LittleEndian.Uint64(img)
		if ptr == 0 {
			if d.Kind == DescNullable {
				return Null(), nil
			}
			return Value{}, errs.NativeAssertf("abi: null %s", d.Name)
		}
		ed, err := c.Types.Get(d.Elem)
		if err != nil {
			return Value{}, err
		}
		h, err := c.heap()
		if err != nil {
			return Value{}, err
		}
		data, err := h.Read(ptr, uint64(ed.Size)) //nolint:gosec // sizes are positive
		if err != nil {
			return Value{}, err
		}
		inner, err := c.decode(ed, data)
		if err != nil {
			return Value{}, err
		}
		if d.Kind == DescNullable {
			return NullableOf(inner), nil
		}
		return Box(inner), nil
	}
	return Value{}, errs.NativeAssertf("abi: unsupported descriptor kind %d", d.Kind)
}

func (c *Codec) decodeArray(d *TypeDesc, img []byte) (Value, error) {
	ptr := binary.LittleEndian.Uint64(img[arrayPtrOffset:])
	n := binary.LittleEndian.Uint32(img[arrayLenOffset:])
	if n == 0 {
		return Array(), nil
	}
	if ptr == 0 {
		return Value{}, errs.NativeAssertf("abi: %s of length %d has a null buffer", d.Name, n)
	}
	ed, err := c.Types.Get(d.Elem)
	if err != nil {
		return Value{}, err
	}
	h, err := c.heap()
	if err != nil {
		return Value{}, err
	}
	stride := uint64(d.Stride) //nolint:gosec // strides are positive
	data, err := h.Read(ptr, stride*uint64(n))
	if err != nil {
		return Value{}, err
	}
	elems := make([]Value, n)
	for i := range elems {
		off := i * d.Stride
		e, err := c.decode(ed, data[off:off+ed.Size])
		if err != nil {
			return Value{}, err
		}
		elems[i] = e
	}
	return Array(elems...), nil
}

// putLE writes a non-negative n little endian into buf.
func putLE(buf []byte, n *big.Int) {
	be := n.Bytes()
	clear(buf)
	for i := 0; i < len(be) && i < len(buf); i++ {
		buf[i] = be[len(be)-1-i]
	}
}

// putTwos writes n in two's complement over bits, zero extended to buf.
func putTwos(buf []byte, n *big.Int, bits int) {
	if n.Sign() >= 0 {
		putLE(buf, n)
		return
	}
	m := new(big.Int).Lsh(big.NewInt(1), uint(bits)) //nolint:gosec // widths are small
	putLE(buf, m.Add(m, n))
}

func readLE(buf []byte, bits int) *big.Int {
	be := make([]byte, len(buf))
	for i, b := range buf {
		be[len(buf)-1-i] = b
	}
	n := new(big.Int).SetBytes(be)
	if bits > 0 && n.BitLen() > bits {
		mask := new(big.Int).Lsh(big.NewInt(1), uint(bits)) //nolint:gosec // widths are small
		n.Mod(n, mask)
	}
	return n
}

func putUint(buf []byte, v uint64) {
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
}

func readUint(buf []byte) uint64 {
	var v uint64
	for i, b := range buf {
		v |= uint64(b) << (8 * i)
	}
	return v
}

// putU256 writes a u256 as {low: u128, high: u128}.
func putU256(buf []byte, n *big.Int) {
	low := new(big.Int).And(n, u128Mask)
	high := new(big.Int).Rsh(n, 128)
	putLE(buf[:16], low)
	putLE(buf[16:32], high)
}

func readU256(buf []byte) *big.Int {
	low := readLE(buf[:16], 128)
	high := readLE(buf[16:32], 128)
	return high.Lsh(high, 128).Or(high, low)
}

var u128Mask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
