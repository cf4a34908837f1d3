package sierra

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"
)

// Digest is a program content hash.
type Digest [32]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

type genericArgWire struct {
	Kind     ArgKind    `msgpack:"k"`
	Type     TypeID     `msgpack:"t,omitempty"`
	Value    string     `msgpack:"v,omitempty"`
	UserType UserTypeID `msgpack:"u,omitempty"`
	UserFunc FunctionID `msgpack:"f,omitempty"`
	Libfunc  LibfuncID  `msgpack:"l,omitempty"`
}

// EncodeMsgpack stores Value as a decimal string.
func (a GenericArg) EncodeMsgpack(enc *msgpack.Encoder) error {
	w := genericArgWire{Kind: a.Kind, Type: a.Type, UserType: a.UserType, UserFunc: a.UserFunc, Libfunc: a.Libfunc}
	if a.Value != nil {
		w.Value = a.Value.String()
	}
	return enc.Encode(&w)
}

func (a *GenericArg) DecodeMsgpack(dec *msgpack.Decoder) error {
	var w genericArgWire
	if err := dec.Decode(&w); err != nil {
		return err
	}
	*a = GenericArg{Kind: w.Kind, Type: w.Type, UserType: w.UserType, UserFunc: w.UserFunc, Libfunc: w.Libfunc}
	if w.Value != "" {
		v, ok := new(big.Int).SetString(w.Value, 10)
		if !ok {
			return fmt.Errorf("msgpack: invalid generic value %q", w.Value)
		}
		a.Value = v
	}
	return nil
}

// Encode serializes the program.
func Encode(p *Program) ([]byte, error) {
	return msgpack.Marshal(p)
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*Program, error) {
	var p Program
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ContentHash identifies a program by content; equal programs hash equally.
func (p *Program) ContentHash() (Digest, error) {
	data, err := Encode(p)
	if err != nil {
		return Digest{}, err
	}
	return blake2b.Sum256(data), nil
}
