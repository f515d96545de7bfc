// Package descriptors provides the element types of region descriptors and the
// flat binary codec used to persist them.
package descriptors

import (
	"fmt"
	"unsafe"
)

// Element is the constraint satisfied by descriptor element types.
type Element interface {
	~uint8 | ~uint16 | ~uint32 | ~float32 | ~float64
}

// ElementSize returns the size in bytes of one element of type T.
func ElementSize[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// TypeName returns the Go name of T. It is a coarse discriminator and is not
// guaranteed to be stable across builds.
func TypeName[T Element]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

// Bytes reinterprets data as raw bytes without copying. The returned slice
// aliases data and must not outlive it.
func Bytes[T Element](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*ElementSize[T]())
}
