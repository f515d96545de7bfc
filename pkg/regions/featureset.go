package regions

import (
	"github.com/TFMV/regions/pkg/features"
)

// featureSet holds the ordered keypoints of a region set.
type featureSet[F features.Feature[F]] struct {
	feats []F
}

// RegionCount returns the number of features.
func (s *featureSet[F]) RegionCount() int {
	return len(s.feats)
}

// RegionsPositions returns the position of every feature, in order.
func (s *featureSet[F]) RegionsPositions() []features.PointFeature {
	return features.Positions(s.feats)
}

// RegionPosition returns the position of feature i in double precision.
func (s *featureSet[F]) RegionPosition(i int) (features.Vec2, error) {
	if i < 0 || i >= len(s.feats) {
		return features.Vec2{}, indexError("region", i, len(s.feats))
	}
	return s.feats[i].Coords().Float64(), nil
}

// Features returns the feature storage. The slice aliases the set.
func (s *featureSet[F]) Features() []F {
	return s.feats
}

// Feature returns feature i.
func (s *featureSet[F]) Feature(i int) (F, error) {
	if i < 0 || i >= len(s.feats) {
		var zero F
		return zero, indexError("region", i, len(s.feats))
	}
	return s.feats[i], nil
}
