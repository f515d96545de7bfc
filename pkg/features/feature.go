// Package features provides the keypoint records stored in a region set and the
// text codec used to persist them.
package features

import (
	"errors"
	"fmt"
)

// ErrFieldCount is returned when a record is built from the wrong number of fields.
var ErrFieldCount = errors.New("unexpected number of feature fields")

// Vec2f is a single precision 2D coordinate.
type Vec2f struct {
	X float32
	Y float32
}

// Vec2 is a double precision 2D coordinate.
type Vec2 struct {
	X float64
	Y float64
}

// Float64 promotes the coordinate to double precision.
func (v Vec2f) Float64() Vec2 {
	return Vec2{X: float64(v.X), Y: float64(v.Y)}
}

// Feature is the constraint satisfied by every keypoint record type.
// F is the record type itself so that records can be rebuilt from their fields.
type Feature[F any] interface {
	// Coords returns the keypoint position.
	Coords() Vec2f
	// Fields returns the record as a flat list of values, in file order.
	Fields() []float32
	// FromFields builds a record from values produced by Fields.
	FromFields(fields []float32) (F, error)
	// FieldCount is the number of values of one record.
	FieldCount() int
}

// PointFeature is a bare 2D keypoint.
type PointFeature struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// NewPointFeature creates a point feature.
func NewPointFeature(x, y float32) PointFeature {
	return PointFeature{X: x, Y: y}
}

func (f PointFeature) Coords() Vec2f { return Vec2f{X: f.X, Y: f.Y} }

func (f PointFeature) Fields() []float32 { return []float32{f.X, f.Y} }

func (PointFeature) FieldCount() int { return 2 }

func (PointFeature) FromFields(fields []float32) (PointFeature, error) {
	if len(fields) != 2 {
		return PointFeature{}, fmt.Errorf("%w: point feature needs 2, got %d", ErrFieldCount, len(fields))
	}
	return PointFeature{X: fields[0], Y: fields[1]}, nil
}

// SIOPointFeature is a keypoint with scale and orientation.
type SIOPointFeature struct {
	X           float32 `json:"x"`
	Y           float32 `json:"y"`
	Scale       float32 `json:"scale"`
	Orientation float32 `json:"orientation"`
}

// NewSIOPointFeature creates a scale/orientation keypoint.
func NewSIOPointFeature(x, y, scale, orientation float32) SIOPointFeature {
	return SIOPointFeature{X: x, Y: y, Scale: scale, Orientation: orientation}
}

func (f SIOPointFeature) Coords() Vec2f { return Vec2f{X: f.X, Y: f.Y} }

func (f SIOPointFeature) Fields() []float32 {
	return []float32{f.X, f.Y, f.Scale, f.Orientation}
}

func (SIOPointFeature) FieldCount() int { return 4 }

func (SIOPointFeature) FromFields(fields []float32) (SIOPointFeature, error) {
	if len(fields) != 4 {
		return SIOPointFeature{}, fmt.Errorf("%w: sio feature needs 4, got %d", ErrFieldCount, len(fields))
	}
	return SIOPointFeature{
		X:           fields[0],
		Y:           fields[1],
		Scale:       fields[2],
		Orientation: fields[3],
	}, nil
}

// Positions extracts the position of every record, order preserved.
func Positions[F Feature[F]](feats []F) []PointFeature {
	out := make([]PointFeature, len(feats))
	for i, f := range feats {
		c := f.Coords()
		out[i] = PointFeature{X: c.X, Y: c.Y}
	}
	return out
}
