package features

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFields(t *testing.T) {
	p, err := PointFeature{}.FromFields([]float32{1, 2})
	require.NoError(t, err)
	assert.Equal(t, NewPointFeature(1, 2), p)

	_, err = PointFeature{}.FromFields([]float32{1, 2, 3})
	assert.True(t, errors.Is(err, ErrFieldCount))

	s, err := SIOPointFeature{}.FromFields([]float32{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, NewSIOPointFeature(1, 2, 3, 4), s)
	assert.Equal(t, Vec2f{X: 1, Y: 2}, s.Coords())

	_, err = SIOPointFeature{}.FromFields([]float32{1})
	assert.ErrorIs(t, err, ErrFieldCount)
}

func TestPositions(t *testing.T) {
	feats := []SIOPointFeature{
		NewSIOPointFeature(1, 2, 3, 4),
		NewSIOPointFeature(5, 6, 7, 8),
	}
	assert.Equal(t, []PointFeature{{X: 1, Y: 2}, {X: 5, Y: 6}}, Positions(feats))
	assert.Equal(t, Vec2{X: 5, Y: 6}, feats[1].Coords().Float64())
}

func TestReadWrite(t *testing.T) {
	feats := []SIOPointFeature{
		NewSIOPointFeature(10.5, 20.25, 1.6, 0.785),
		NewSIOPointFeature(-3, 0, 2.5, -1.2),
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, feats))
	assert.Equal(t, 2, strings.Count(buf.String(), "\n"))

	got, err := Read[SIOPointFeature](&buf)
	require.NoError(t, err)
	assert.Equal(t, feats, got)
}

func TestReadErrors(t *testing.T) {
	t.Run("BlankLines", func(t *testing.T) {
		got, err := Read[PointFeature](strings.NewReader("1 2\n\n3 4\n"))
		require.NoError(t, err)
		assert.Equal(t, []PointFeature{{1, 2}, {3, 4}}, got)
	})

	t.Run("WrongFieldCount", func(t *testing.T) {
		_, err := Read[PointFeature](strings.NewReader("1 2\n3\n"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFieldCount)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("BadNumber", func(t *testing.T) {
		_, err := Read[PointFeature](strings.NewReader("1 x\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 1")
	})
}

func TestLoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "view.feat")
	feats := []PointFeature{{1, 1}, {2, 3}}

	require.NoError(t, Save(path, feats))
	got, err := Load[PointFeature](path)
	require.NoError(t, err)
	assert.Equal(t, feats, got)

	_, err = Load[PointFeature](filepath.Join(t.TempDir(), "missing.feat"))
	assert.Error(t, err)
}
