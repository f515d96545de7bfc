package descriptors

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementHelpers(t *testing.T) {
	assert.Equal(t, 1, ElementSize[uint8]())
	assert.Equal(t, 4, ElementSize[float32]())
	assert.Equal(t, 8, ElementSize[float64]())

	assert.Equal(t, "uint8", TypeName[uint8]())
	assert.Equal(t, "float32", TypeName[float32]())

	assert.Nil(t, Bytes[float32](nil))
	raw := Bytes([]uint16{1, 2, 3})
	assert.Len(t, raw, 6)
}

func TestWriteRead(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, data, 3))
	assert.Equal(t, 8+len(data)*4, buf.Len())
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(buf.Bytes()[:8]))

	got, err := Read[float32](&buf, 3)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriteReadEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write[uint8](&buf, nil, 32))

	got, err := Read[uint8](&buf, 32)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteErrors(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Write(&buf, []uint8{1, 2, 3}, 0), ErrInvalidLength)
	assert.ErrorIs(t, Write(&buf, []uint8{1, 2, 3}, 2), ErrRaggedBuffer)
}

func TestReadErrors(t *testing.T) {
	t.Run("Truncated", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, []uint8{1, 2, 3, 4}, 2))
		truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-1])
		_, err := Read[uint8](truncated, 2)
		assert.Error(t, err)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		_, err := Read[uint8](bytes.NewReader([]byte{1, 2}), 2)
		assert.Error(t, err)
	})

	t.Run("TrailingData", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, Write(&buf, []uint8{1, 2, 3, 4}, 4))
		_, err := Read[uint8](&buf, 2)
		assert.ErrorIs(t, err, ErrTrailingData)
	})

	t.Run("TooLarge", func(t *testing.T) {
		header := make([]byte, 8)
		binary.LittleEndian.PutUint64(header, 1<<40)
		_, err := Read[uint8](bytes.NewReader(header), 128)
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestLoadSaveCompression(t *testing.T) {
	data := make([]uint8, 128*10)
	for i := range data {
		data[i] = uint8(i % 7)
	}

	for _, ext := range []string{".desc", ".desc.zst", ".desc.lz4"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "view"+ext)
			require.NoError(t, Save(path, data, 128))

			got, err := Load[uint8](path, 128)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestCompression(t *testing.T) {
	assert.Equal(t, CompressionZstd, CompressionFor("a/b.desc.zst"))
	assert.Equal(t, CompressionLZ4, CompressionFor("a/b.LZ4"))
	assert.Equal(t, CompressionNone, CompressionFor("a/b.desc"))

	for _, c := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		parsed, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
		assert.Equal(t, c, CompressionFor("x"+c.Extension()))
	}

	_, err := ParseCompression("brotli")
	assert.Error(t, err)
	assert.Equal(t, "Unknown(9)", Compression(9).String())
}

func TestLoadMappedErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, raw []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, raw, 0644))
		return path
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []float32{1, 2, 3, 4}, 2))
	full := buf.Bytes()

	_, err := Load[float32](write("short.desc", full[:4]), 2)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = Load[float32](write("truncated.desc", full[:len(full)-1]), 2)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = Load[float32](write("trailing.desc", append(append([]byte{}, full...), 0)), 2)
	assert.ErrorIs(t, err, ErrTrailingData)

	_, err = Load[float32](filepath.Join(dir, "missing.desc"), 2)
	assert.ErrorIs(t, err, os.ErrNotExist)

	got, err := Load[float32](write("ok.desc", full), 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
}

func TestReadShortStreamAllocation(t *testing.T) {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(header, 1<<21)
	stream := append(header, 1, 2, 3)

	allocated := func(read func() error) uint64 {
		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		require.ErrorIs(t, read(), io.ErrUnexpectedEOF)
		runtime.ReadMemStats(&after)
		return after.TotalAlloc - before.TotalAlloc
	}

	// The header announces 256 MiB of descriptors.
	n := allocated(func() error {
		_, err := Read[uint8](bytes.NewReader(stream), 128)
		return err
	})
	assert.Less(t, n, uint64(4<<20))

	path := filepath.Join(t.TempDir(), "view.desc.lz4")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw, err := NewWriter(f, CompressionLZ4)
	require.NoError(t, err)
	_, err = zw.Write(stream)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	n = allocated(func() error {
		_, err := Load[uint8](path, 128)
		return err
	})
	assert.Less(t, n, uint64(16<<20))
}
