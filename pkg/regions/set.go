package regions

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/TFMV/regions/pkg/descriptors"
	"github.com/TFMV/regions/pkg/features"
	"github.com/TFMV/regions/pkg/metric"
)

// Set is a region set of features F described by fixed-length descriptors of
// element type T. The descriptors are stored in one flat buffer, descriptor i
// occupying elements [i*L, (i+1)*L).
type Set[F features.Feature[F], T descriptors.Element] struct {
	featureSet[F]

	descs  []T
	length int
	kind   metric.Kind
	dist   metric.Func[T]
}

var _ Regions = (*Set[features.SIOPointFeature, uint8])(nil)

// New creates an empty region set of the given kind and descriptor length.
func New[F features.Feature[F], T descriptors.Element](kind metric.Kind, length int) (*Set[F, T], error) {
	if length <= 0 {
		return nil, fmt.Errorf("%w: %d", descriptors.ErrInvalidLength, length)
	}
	dist, err := metric.For[T](kind)
	if err != nil {
		return nil, err
	}
	return &Set[F, T]{length: length, kind: kind, dist: dist}, nil
}

// NewScalar creates an empty set of real-valued descriptors compared with the
// squared Euclidean distance. It panics if length is not positive.
func NewScalar[F features.Feature[F], T descriptors.Element](length int) *Set[F, T] {
	s, err := New[F, T](metric.Scalar, length)
	if err != nil {
		panic(err)
	}
	return s
}

// NewBinary creates an empty set of bit-packed descriptors of length bytes
// compared with the squared Hamming distance. It panics if length is not positive.
func NewBinary[F features.Feature[F]](length int) *Set[F, uint8] {
	s, err := New[F, uint8](metric.Binary, length)
	if err != nil {
		panic(err)
	}
	return s
}

// IsScalar reports whether the descriptors are real-valued.
func (s *Set[F, T]) IsScalar() bool { return s.kind == metric.Scalar }

// IsBinary reports whether the descriptors are bit-packed.
func (s *Set[F, T]) IsBinary() bool { return s.kind == metric.Binary }

// Kind returns the descriptor kind.
func (s *Set[F, T]) Kind() metric.Kind { return s.kind }

// TypeID names the descriptor element type, e.g. "uint8".
func (s *Set[F, T]) TypeID() string { return descriptors.TypeName[T]() }

// DescriptorLength returns the number of elements per descriptor.
func (s *Set[F, T]) DescriptorLength() int { return s.length }

// Signature describes the specialization of the set.
func (s *Set[F, T]) Signature() string {
	if s == nil {
		return "<nil>"
	}
	var zero F
	return fmt.Sprintf("%s %s[%d] %T", s.kind, s.TypeID(), s.length, zero)
}

// DescriptorCount returns the number of stored descriptors. It equals
// RegionCount unless the descriptors have been cleared.
func (s *Set[F, T]) DescriptorCount() int {
	if s.length == 0 {
		return 0
	}
	return len(s.descs) / s.length
}

func (s *Set[F, T]) described() bool { return len(s.descs) == len(s.feats)*s.length }

// Descriptors returns the flat descriptor buffer. The slice aliases the set.
func (s *Set[F, T]) Descriptors() []T { return s.descs }

// Descriptor returns descriptor i. The slice aliases the set.
func (s *Set[F, T]) Descriptor(i int) ([]T, error) {
	if i < 0 || i >= s.DescriptorCount() {
		return nil, indexError("descriptor", i, s.DescriptorCount())
	}
	return s.descs[i*s.length : (i+1)*s.length : (i+1)*s.length], nil
}

// Append adds one region at the end of the set.
func (s *Set[F, T]) Append(f F, desc []T) error {
	if len(desc) != s.length {
		return fmt.Errorf("%w: expected %d, got %d", ErrDescriptorLength, s.length, len(desc))
	}
	if !s.described() {
		return ErrNoDescriptors
	}
	s.feats = append(s.feats, f)
	s.descs = append(s.descs, desc...)
	return nil
}

// Reserve grows the storage to hold n more regions without reallocation.
func (s *Set[F, T]) Reserve(n int) {
	if n <= 0 {
		return
	}
	if free := cap(s.feats) - len(s.feats); free < n {
		feats := make([]F, len(s.feats), len(s.feats)+n)
		copy(feats, s.feats)
		s.feats = feats
	}
	if free := cap(s.descs) - len(s.descs); free < n*s.length {
		descs := make([]T, len(s.descs), len(s.descs)+n*s.length)
		copy(descs, s.descs)
		s.descs = descs
	}
}

// DescriptorView returns a byte view of the descriptor buffer.
func (s *Set[F, T]) DescriptorView() DescriptorView {
	return DescriptorView{
		Data:     descriptors.Bytes(s.descs),
		ElemSize: descriptors.ElementSize[T](),
		Length:   s.length,
		Count:    s.DescriptorCount(),
		TypeID:   s.TypeID(),
	}
}

// DescriptorRawData returns the descriptor buffer as bytes. The slice aliases the set.
func (s *Set[F, T]) DescriptorRawData() []byte {
	return descriptors.Bytes(s.descs)
}

// ClearDescriptors drops the descriptors and keeps the features.
func (s *Set[F, T]) ClearDescriptors() {
	s.descs = nil
}

// Swap exchanges the content of s and other in constant time.
func (s *Set[F, T]) Swap(other *Set[F, T]) error {
	if other == nil {
		return mismatch(s, nil)
	}
	if !SameSpecialization(s, other) {
		return mismatch(s, other)
	}
	s.feats, other.feats = other.feats, s.feats
	s.descs, other.descs = other.descs, s.descs
	return nil
}

// sibling recovers the concrete set behind other, failing when its
// specialization differs from s.
func (s *Set[F, T]) sibling(other Regions) (*Set[F, T], error) {
	o, ok := other.(*Set[F, T])
	if ok && o == nil {
		return nil, mismatch(s, nil)
	}
	if !ok || o.length != s.length || o.kind != s.kind {
		return nil, mismatch(s, other)
	}
	return o, nil
}

// SquaredDescriptorDistance compares descriptor i of s with descriptor j of other.
func (s *Set[F, T]) SquaredDescriptorDistance(i int, other Regions, j int) (float64, error) {
	o, err := s.sibling(other)
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= s.DescriptorCount() {
		return 0, indexError("descriptor", i, s.DescriptorCount())
	}
	if j < 0 || j >= o.DescriptorCount() {
		return 0, indexError("descriptor", j, o.DescriptorCount())
	}
	return s.dist(s.descs[i*s.length:], o.descs[j*o.length:], s.length), nil
}

// CopyRegion appends region i of s to other.
func (s *Set[F, T]) CopyRegion(i int, other Regions) error {
	o, err := s.sibling(other)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(s.feats) {
		return indexError("region", i, len(s.feats))
	}
	if !s.described() || !o.described() {
		return ErrNoDescriptors
	}
	o.feats = append(o.feats, s.feats[i])
	o.descs = append(o.descs, s.descs[i*s.length:(i+1)*s.length]...)
	return nil
}

// EmptyClone returns a new empty set of the same specialization.
func (s *Set[F, T]) EmptyClone() Regions {
	return s.emptyClone()
}

func (s *Set[F, T]) emptyClone() *Set[F, T] {
	return &Set[F, T]{length: s.length, kind: s.kind, dist: s.dist}
}

// CreateFilteredRegions builds a set holding the regions listed in featuresInImage, in order.
func (s *Set[F, T]) CreateFilteredRegions(featuresInImage []FeatureInImage) (Regions, []IndexT, map[IndexT]IndexT, error) {
	if !s.described() {
		return nil, nil, nil, ErrNoDescriptors
	}
	for _, fi := range featuresInImage {
		if int64(fi.FeatureIndex) >= int64(len(s.feats)) {
			return nil, nil, nil, indexError("feature", int(fi.FeatureIndex), len(s.feats))
		}
	}

	out := s.emptyClone()
	out.Reserve(len(featuresInImage))
	associated3dPoint := make([]IndexT, 0, len(featuresInImage))
	mapFullToLocal := make(map[IndexT]IndexT, len(featuresInImage))

	for local, fi := range featuresInImage {
		k := int(fi.FeatureIndex)
		out.feats = append(out.feats, s.feats[k])
		out.descs = append(out.descs, s.descs[k*s.length:(k+1)*s.length]...)

		// A feature may be associated to several 3D points; the last one wins.
		mapFullToLocal[fi.FeatureIndex] = IndexT(local)
		associated3dPoint = append(associated3dPoint, fi.Point3DID)
	}
	return out, associated3dPoint, mapFullToLocal, nil
}

// Load replaces the content of s with the two files, reading both even when one fails.
func (s *Set[F, T]) Load(featPath, descPath string) error {
	feats, ferr := features.Load[F](featPath)
	descs, derr := descriptors.Load[T](descPath, s.length)

	err := multierr.Append(
		ioError("load features", featPath, ferr),
		ioError("load descriptors", descPath, derr),
	)
	if err == nil && len(descs) != len(feats)*s.length {
		err = ioError("load", descPath, fmt.Errorf("%w: %d features, %d descriptors",
			ErrCountMismatch, len(feats), len(descs)/s.length))
	}
	if err != nil {
		s.feats, s.descs = nil, nil
		return err
	}
	s.feats, s.descs = feats, descs
	return nil
}

// Save writes the features and descriptors, attempting both even when one fails.
func (s *Set[F, T]) Save(featPath, descPath string) error {
	return multierr.Append(
		ioError("save features", featPath, features.Save(featPath, s.feats)),
		s.SaveDesc(descPath),
	)
}

// SaveDesc writes the descriptors. It fails with ErrNoDescriptors, leaving
// descPath untouched, when the descriptors have been cleared.
func (s *Set[F, T]) SaveDesc(descPath string) error {
	if !s.described() {
		return ioError("save descriptors", descPath, fmt.Errorf("%w: %d regions, %d descriptors",
			ErrNoDescriptors, len(s.feats), s.DescriptorCount()))
	}
	return ioError("save descriptors", descPath, descriptors.Save(descPath, s.descs, s.length))
}

// LoadFeatures replaces the features and drops the descriptors.
func (s *Set[F, T]) LoadFeatures(featPath string) error {
	feats, err := features.Load[F](featPath)
	if err != nil {
		return ioError("load features", featPath, err)
	}
	s.feats, s.descs = feats, nil
	return nil
}

// Serialize encodes the features, then the descriptors one row per region.
func (s *Set[F, T]) Serialize(enc Encoder) error {
	if err := enc.Encode(s.feats); err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	rows := make([][]T, s.DescriptorCount())
	for i := range rows {
		rows[i] = s.descs[i*s.length : (i+1)*s.length]
	}
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode descriptors: %w", err)
	}
	return nil
}

// Deserialize decodes values written by Serialize.
func (s *Set[F, T]) Deserialize(dec Decoder) error {
	var feats []F
	if err := dec.Decode(&feats); err != nil {
		return fmt.Errorf("failed to decode features: %w", err)
	}
	var rows [][]T
	if err := dec.Decode(&rows); err != nil {
		return fmt.Errorf("failed to decode descriptors: %w", err)
	}
	if len(rows) != len(feats) {
		return fmt.Errorf("%w: %d features, %d descriptors", ErrCountMismatch, len(feats), len(rows))
	}

	descs := make([]T, 0, len(rows)*s.length)
	for i, row := range rows {
		if len(row) != s.length {
			return fmt.Errorf("descriptor %d: %w: expected %d, got %d", i, ErrDescriptorLength, s.length, len(row))
		}
		descs = append(descs, row...)
	}
	s.feats, s.descs = feats, descs
	return nil
}
