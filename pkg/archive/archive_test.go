package archive

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/regions/pkg/features"
	"github.com/TFMV/regions/pkg/regions"
)

func sampleAKAZE(t *testing.T, n int) *regions.AKAZEFloatRegions {
	t.Helper()
	s := regions.NewAKAZEFloatRegions()
	for i := 0; i < n; i++ {
		desc := make([]float32, s.DescriptorLength())
		desc[i%len(desc)] = 0.25 * float32(i+1)
		require.NoError(t, s.Append(features.NewSIOPointFeature(float32(i), 1.5, 2, 0.1), desc))
	}
	return s
}

func TestWriteRead(t *testing.T) {
	src := sampleAKAZE(t, 4)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	got, h, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, regions.AKAZEFloat, h.Describer)
	assert.Equal(t, 4, h.Count)
	assert.False(t, h.Binary)

	dst, ok := regions.As[features.SIOPointFeature, float32](got)
	require.True(t, ok)
	assert.Equal(t, src.Features(), dst.Features())
	assert.Equal(t, src.Descriptors(), dst.Descriptors())
}

func TestWriteReadBinary(t *testing.T) {
	src := regions.NewAKAZEBinaryRegions()
	desc := make([]uint8, 64)
	for i := range desc {
		desc[i] = uint8(i * 3)
	}
	require.NoError(t, src.Append(features.NewSIOPointFeature(1, 2, 3, 4), desc))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], `["AAMG`), lines[2])

	got, h, err := Read(&buf)
	require.NoError(t, err)
	assert.True(t, h.Binary)
	assert.Equal(t, src.DescriptorRawData(), got.DescriptorRawData())
}

func TestSerializeOrder(t *testing.T) {
	src := sampleAKAZE(t, 1)

	var buf bytes.Buffer
	require.NoError(t, src.Serialize(NewEncoder(&buf)))

	dec := NewDecoder(&buf)
	var feats []features.SIOPointFeature
	require.NoError(t, dec.Decode(&feats))
	assert.Equal(t, src.Features(), feats)

	var rows [][]float32
	require.NoError(t, dec.Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, src.Descriptors(), rows[0])
}

func TestReadErrors(t *testing.T) {
	t.Run("UnknownDescriber", func(t *testing.T) {
		in := `{"describer":"ORB","type_id":"uint8","length":32,"count":0}`
		_, _, err := Read(strings.NewReader(in))
		assert.ErrorIs(t, err, regions.ErrUnknownDescriber)
	})

	t.Run("HeaderMismatch", func(t *testing.T) {
		in := `{"describer":"SIFT","type_id":"float32","length":128,"count":0}`
		_, _, err := Read(strings.NewReader(in))
		assert.ErrorIs(t, err, regions.ErrTypeMismatch)
	})

	t.Run("CountMismatch", func(t *testing.T) {
		src := sampleAKAZE(t, 2)
		h := HeaderOf(src)
		h.Count = 3

		var buf bytes.Buffer
		enc := NewEncoder(&buf)
		require.NoError(t, enc.Encode(h))
		require.NoError(t, src.Serialize(enc))

		_, _, err := Read(&buf)
		assert.ErrorIs(t, err, regions.ErrCountMismatch)
	})

	t.Run("RaggedDescriptor", func(t *testing.T) {
		in := `{"describer":"AKAZE_FLOAT","type_id":"float32","length":64,"count":1}
[{"x":1,"y":2,"scale":1,"orientation":0}]
[[1,2,3]]`
		_, _, err := Read(strings.NewReader(in))
		assert.ErrorIs(t, err, regions.ErrDescriptorLength)
	})
}
