package target

import "github.com/vmihailenco/msgpack/v5"

// Encode serializes a module.
func Encode(m *Module) ([]byte, error) {
	return msgpack.Marshal(m)
}

// Decode is the inverse of Encode.
func Decode(data []byte) (*Module, error) {
	var m Module
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
