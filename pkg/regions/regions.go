// Package regions stores the features and descriptors detected in one image
// behind a single interface, whatever the descriptor element type, length and
// metric.
//
// Region sets are not synchronized. A set built by one goroutine may be read
// concurrently once built; any mutation (append, copy into, clear, load)
// requires external locking.
package regions

import (
	"fmt"
	"slices"

	"github.com/TFMV/regions/pkg/features"
)

// IndexT indexes features and 3D points.
type IndexT = uint32

// FeatureInImage associates a feature of an image with a reconstructed 3D point.
type FeatureInImage struct {
	FeatureIndex IndexT `json:"feature_index"`
	Point3DID    IndexT `json:"point3d_id"`
}

// Less orders entries by feature index.
func (f FeatureInImage) Less(other FeatureInImage) bool {
	return f.FeatureIndex < other.FeatureIndex
}

// SortFeaturesInImage sorts entries by feature index, keeping the relative
// order of entries that share an index.
func SortFeaturesInImage(fs []FeatureInImage) {
	slices.SortStableFunc(fs, func(a, b FeatureInImage) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}

// Encoder receives the ordered values of the archive hook.
type Encoder interface {
	Encode(v any) error
}

// Decoder yields values written through an Encoder, in the same order.
type Decoder interface {
	Decode(v any) error
}

// DescriptorView is a non-owning view of the descriptor storage of a region set.
// Data aliases the set's buffer and is only valid while the set is alive and
// unmodified.
type DescriptorView struct {
	Data     []byte
	ElemSize int
	Length   int
	Count    int
	TypeID   string
}

// Descriptor returns the bytes of descriptor i.
func (v DescriptorView) Descriptor(i int) ([]byte, error) {
	if i < 0 || i >= v.Count {
		return nil, indexError("descriptor", i, v.Count)
	}
	stride := v.ElemSize * v.Length
	return v.Data[i*stride : (i+1)*stride], nil
}

// Regions is the type-erased contract of a region set. Matching and
// reconstruction code depends on it without knowing the descriptor type.
type Regions interface {
	// Load replaces the content of the set with the two files. Both files are
	// always read, even when the first one fails.
	Load(featPath, descPath string) error
	// Save writes the features and descriptors. Both files are always written,
	// even when the first one fails.
	Save(featPath, descPath string) error
	SaveDesc(descPath string) error
	// LoadFeatures replaces the features and drops the descriptors.
	LoadFeatures(featPath string) error

	IsScalar() bool
	IsBinary() bool
	// TypeID names the descriptor element type.
	TypeID() string
	DescriptorLength() int

	RegionsPositions() []features.PointFeature
	RegionPosition(i int) (features.Vec2, error)
	RegionCount() int
	DescriptorCount() int

	DescriptorView() DescriptorView
	DescriptorRawData() []byte
	ClearDescriptors()

	// SquaredDescriptorDistance compares descriptor i of the receiver with
	// descriptor j of other, which must be of the same specialization.
	SquaredDescriptorDistance(i int, other Regions, j int) (float64, error)
	// CopyRegion appends region i of the receiver to other.
	CopyRegion(i int, other Regions) error
	// EmptyClone returns a new empty set of the same specialization.
	EmptyClone() Regions
	// CreateFilteredRegions builds a set holding the listed features in input
	// order. It also returns the 3D point of every kept region and the map from
	// original to new feature index; for duplicated feature indices the last
	// entry wins.
	CreateFilteredRegions(featuresInImage []FeatureInImage) (Regions, []IndexT, map[IndexT]IndexT, error)

	// Serialize writes the features then the descriptors to enc.
	Serialize(enc Encoder) error
	// Deserialize replaces the content of the set with values read from dec.
	Deserialize(dec Decoder) error

	// Signature describes the specialization, for diagnostics.
	Signature() string
}

// SameSpecialization reports whether a and b are region sets of the same
// concrete type, descriptor kind and length.
func SameSpecialization(a, b Regions) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Signature() == b.Signature()
}

func mismatch(a, b Regions) error {
	other := "<nil>"
	if b != nil {
		other = b.Signature()
	}
	return fmt.Errorf("%w: %s vs %s", ErrTypeMismatch, a.Signature(), other)
}
