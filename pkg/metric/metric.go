// Package metric provides the squared distance strategies bound to region sets.
package metric

import (
	"fmt"
	"math/bits"

	"github.com/TFMV/regions/pkg/descriptors"
)

// Kind is the descriptor kind of a region set.
type Kind int

const (
	// Binary descriptors are bit strings compared with Hamming distance.
	Binary Kind = iota
	// Scalar descriptors are real-valued vectors compared with Euclidean distance.
	Scalar
)

func (k Kind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Scalar:
		return "scalar"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Func computes the squared distance between the first n elements of a and b.
// Callers guarantee both slices hold at least n elements.
type Func[T descriptors.Element] func(a, b []T, n int) float64

// SquaredL2 returns the squared Euclidean distance. Differences are taken in
// float64 so unsigned elements do not wrap.
func SquaredL2[T descriptors.Element](a, b []T, n int) float64 {
	a, b = a[:n], b[:n]
	var sum float64
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := float64(a[i]) - float64(b[i])
		d1 := float64(a[i+1]) - float64(b[i+1])
		d2 := float64(a[i+2]) - float64(b[i+2])
		d3 := float64(a[i+3]) - float64(b[i+3])
		sum += d0*d0 + d1*d1 + d2*d2 + d3*d3
	}
	for ; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Hamming returns the number of differing bits between the first n bytes.
func Hamming(a, b []uint8, n int) int {
	a, b = a[:n], b[:n]
	dist := 0
	i := 0
	for ; i+8 <= n; i += 8 {
		x := uint64(a[i]^b[i]) | uint64(a[i+1]^b[i+1])<<8 |
			uint64(a[i+2]^b[i+2])<<16 | uint64(a[i+3]^b[i+3])<<24 |
			uint64(a[i+4]^b[i+4])<<32 | uint64(a[i+5]^b[i+5])<<40 |
			uint64(a[i+6]^b[i+6])<<48 | uint64(a[i+7]^b[i+7])<<56
		dist += bits.OnesCount64(x)
	}
	for ; i < n; i++ {
		dist += bits.OnesCount8(a[i] ^ b[i])
	}
	return dist
}

// SquaredHamming returns the square of the Hamming distance.
func SquaredHamming(a, b []uint8, n int) float64 {
	d := float64(Hamming(a, b, n))
	return d * d
}

// For returns the strategy of kind for element type T. Binary kinds are only
// defined over bytes.
func For[T descriptors.Element](kind Kind) (Func[T], error) {
	switch kind {
	case Scalar:
		return SquaredL2[T], nil
	case Binary:
		if f, ok := any(Func[uint8](SquaredHamming)).(Func[T]); ok {
			return f, nil
		}
		return nil, fmt.Errorf("binary descriptors require uint8 elements, got %s", descriptors.TypeName[T]())
	default:
		return nil, fmt.Errorf("unsupported descriptor kind: %v", kind)
	}
}
