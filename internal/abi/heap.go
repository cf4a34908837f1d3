package abi

// Heap is the linear memory arrays and boxes live in. Pointer 0 is null.
type Heap interface {
	Alloc(size uint64) (uint64, error)
	Read(ptr, n uint64) ([]byte, error)
	Write(ptr uint64, data []byte) error
}
