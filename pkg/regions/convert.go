package regions

import (
	"github.com/TFMV/regions/pkg/descriptors"
	"github.com/TFMV/regions/pkg/features"
)

// As views r as a concrete set of features F and elements T. It reports false
// instead of panicking when r holds another specialization.
func As[F features.Feature[F], T descriptors.Element](r Regions) (*Set[F, T], bool) {
	s, ok := r.(*Set[F, T])
	if !ok || s == nil {
		return nil, false
	}
	return s, true
}

// FeaturesOf returns the features of r when they are of type F.
func FeaturesOf[F features.Feature[F]](r Regions) ([]F, bool) {
	fs, ok := r.(interface{ Features() []F })
	if !ok {
		return nil, false
	}
	return fs.Features(), true
}

// DescriptorsOf returns the flat descriptor buffer of r when its elements are of type T.
// The slice aliases r.
func DescriptorsOf[T descriptors.Element](r Regions) ([]T, bool) {
	ds, ok := r.(interface{ Descriptors() []T })
	if !ok {
		return nil, false
	}
	return ds.Descriptors(), true
}

// SIOPointFeatures returns the scale/orientation features of r, or nil when r
// stores another feature type.
func SIOPointFeatures(r Regions) []features.SIOPointFeature {
	fs, _ := FeaturesOf[features.SIOPointFeature](r)
	return fs
}
