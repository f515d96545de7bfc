// Package archive streams region sets as a sequence of JSON documents: a
// header, the features, then the descriptors as one row per region.
//
// Rows of float descriptors are arrays of numbers. Rows of uint8
// descriptors, which covers every binary set, are base64 strings as
// encoding/json writes []byte:
//
//	{"describer":"SIFT","type_id":"uint8","binary":false,"length":128,"count":2}
//	[{"x":1,"y":2,"scale":1.5,"orientation":0.25},...]
//	["AAECAw...","BAUGBw..."]
package archive

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/TFMV/regions/pkg/regions"
)

// Header describes the region set that follows it in an archive.
type Header struct {
	Describer string `json:"describer"`
	TypeID    string `json:"type_id"`
	Binary    bool   `json:"binary"`
	Length    int    `json:"length"`
	Count     int    `json:"count"`
}

// HeaderOf builds the header of r. The describer is empty when r does not
// match a registered describer.
func HeaderOf(r regions.Regions) Header {
	name, _ := regions.NameOf(r)
	return Header{
		Describer: name,
		TypeID:    r.TypeID(),
		Binary:    r.IsBinary(),
		Length:    r.DescriptorLength(),
		Count:     r.RegionCount(),
	}
}

// NewEncoder returns an encoder writing one JSON document per value.
func NewEncoder(w io.Writer) regions.Encoder {
	return sonic.ConfigDefault.NewEncoder(w)
}

// NewDecoder returns a decoder reading values written by NewEncoder.
func NewDecoder(r io.Reader) regions.Decoder {
	return sonic.ConfigDefault.NewDecoder(r)
}

// Write archives rs to w.
func Write(w io.Writer, rs regions.Regions) error {
	enc := NewEncoder(w)
	if err := enc.Encode(HeaderOf(rs)); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	return rs.Serialize(enc)
}

// Read restores a region set archived by Write. The header must name a
// registered describer.
func Read(r io.Reader) (regions.Regions, Header, error) {
	dec := NewDecoder(r)

	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, h, fmt.Errorf("failed to decode header: %w", err)
	}

	rs, err := regions.NewByName(h.Describer)
	if err != nil {
		return nil, h, err
	}
	if rs.TypeID() != h.TypeID || rs.DescriptorLength() != h.Length || rs.IsBinary() != h.Binary {
		return nil, h, fmt.Errorf("%w: archive holds %s %s[%d]", regions.ErrTypeMismatch, h.Describer, h.TypeID, h.Length)
	}

	if err := rs.Deserialize(dec); err != nil {
		return nil, h, err
	}
	if rs.RegionCount() != h.Count {
		return nil, h, fmt.Errorf("%w: header announces %d regions, archive holds %d",
			regions.ErrCountMismatch, h.Count, rs.RegionCount())
	}
	return rs, h, nil
}
