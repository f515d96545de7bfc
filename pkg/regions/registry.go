package regions

import (
	"fmt"
	"sort"
	"sync"

	"github.com/TFMV/regions/pkg/features"
)

// Names of the built-in describers.
const (
	SIFT       = "SIFT"
	AKAZEFloat = "AKAZE_FLOAT"
	AKAZELiop  = "AKAZE_LIOP"
	AKAZEMLDB  = "AKAZE_MLDB"
)

type (
	// SIFTRegions holds 128 byte scalar descriptors.
	SIFTRegions = Set[features.SIOPointFeature, uint8]
	// AKAZEFloatRegions holds 64 float scalar descriptors.
	AKAZEFloatRegions = Set[features.SIOPointFeature, float32]
	// AKAZELiopRegions holds 144 byte scalar descriptors.
	AKAZELiopRegions = Set[features.SIOPointFeature, uint8]
	// AKAZEBinaryRegions holds 64 byte binary descriptors.
	AKAZEBinaryRegions = Set[features.SIOPointFeature, uint8]
)

// NewSIFTRegions creates an empty SIFT region set.
func NewSIFTRegions() *SIFTRegions {
	return NewScalar[features.SIOPointFeature, uint8](128)
}

// NewAKAZEFloatRegions creates an empty AKAZE float region set.
func NewAKAZEFloatRegions() *AKAZEFloatRegions {
	return NewScalar[features.SIOPointFeature, float32](64)
}

// NewAKAZELiopRegions creates an empty AKAZE LIOP region set.
func NewAKAZELiopRegions() *AKAZELiopRegions {
	return NewScalar[features.SIOPointFeature, uint8](144)
}

// NewAKAZEBinaryRegions creates an empty AKAZE MLDB region set.
func NewAKAZEBinaryRegions() *AKAZEBinaryRegions {
	return NewBinary[features.SIOPointFeature](64)
}

// Factory creates an empty region set.
type Factory func() Regions

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		SIFT:       func() Regions { return NewSIFTRegions() },
		AKAZEFloat: func() Regions { return NewAKAZEFloatRegions() },
		AKAZELiop:  func() Regions { return NewAKAZELiopRegions() },
		AKAZEMLDB:  func() Regions { return NewAKAZEBinaryRegions() },
	}
)

// Register adds a named describer. Names are unique.
func Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("describer name and factory are required")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[name]; exists {
		return fmt.Errorf("describer %q already registered", name)
	}
	registry[name] = factory
	return nil
}

// NewByName creates an empty region set of the named describer.
func NewByName(name string) (Regions, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescriber, name)
	}
	return factory(), nil
}

// Names returns the registered describer names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NameOf returns the name of the first describer, in name order, whose
// specialization matches r. Describers sharing a specialization are not
// told apart.
func NameOf(r Regions) (string, bool) {
	for _, name := range Names() {
		proto, err := NewByName(name)
		if err != nil {
			continue
		}
		if SameSpecialization(proto, r) {
			return name, true
		}
	}
	return "", false
}
