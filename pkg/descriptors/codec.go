package descriptors

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/edsrzf/mmap-go"
)

const (
	// maxElements bounds the buffer allocated for a single descriptor file.
	maxElements = 1 << 31
	// headerSize is the size of the little-endian descriptor count.
	headerSize = 8
	// readChunk is the number of elements decoded per read from a stream.
	readChunk = 1 << 16
)

var (
	// ErrInvalidLength is returned for non-positive descriptor lengths.
	ErrInvalidLength = errors.New("descriptor length must be positive")
	// ErrRaggedBuffer is returned when a flat buffer is not a whole number of descriptors.
	ErrRaggedBuffer = errors.New("element buffer is not a multiple of the descriptor length")
	// ErrTooLarge is returned when a header announces more elements than can be held.
	ErrTooLarge = errors.New("descriptor file too large")
	// ErrTrailingData is returned when bytes follow the announced descriptors.
	ErrTrailingData = errors.New("trailing data after descriptors")
)

// Write encodes data, a flat buffer of descriptors of the given length, as a
// little-endian uint64 descriptor count followed by the elements.
func Write[T Element](w io.Writer, data []T, length int) error {
	if length <= 0 {
		return ErrInvalidLength
	}
	if len(data)%length != 0 {
		return fmt.Errorf("%w: %d elements, length %d", ErrRaggedBuffer, len(data), length)
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(data)/length)); err != nil {
		return fmt.Errorf("failed to write descriptor count: %w", err)
	}
	if len(data) > 0 {
		if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
			return fmt.Errorf("failed to write descriptors: %w", err)
		}
	}
	return bw.Flush()
}

// Read decodes a buffer written by Write.
func Read[T Element](r io.Reader, length int) ([]T, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}

	br := bufio.NewReader(r)
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read descriptor count: %w", err)
	}
	if count > maxElements/uint64(length) {
		return nil, fmt.Errorf("%w: %d descriptors of length %d", ErrTooLarge, count, length)
	}

	// The buffer grows with the data actually read so that a short stream
	// announcing a large count cannot force a large allocation.
	total := int(count) * length
	data := make([]T, 0, min(total, readChunk))
	for len(data) < total {
		n := min(total-len(data), readChunk)
		data = slices.Grow(data, n)
		chunk := data[len(data) : len(data)+n]
		if err := binary.Read(br, binary.LittleEndian, chunk); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("failed to read %d descriptors: %w", count, err)
		}
		data = data[:len(data)+n]
	}
	if _, err := br.ReadByte(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: header announces %d descriptors of length %d", ErrTrailingData, count, length)
	}
	return data, nil
}

// Load reads the descriptor file at path. The compression is inferred from
// the file extension; uncompressed files are memory mapped.
func Load[T Element](path string, length int) ([]T, error) {
	if length <= 0 {
		return nil, ErrInvalidLength
	}
	if CompressionFor(path) == CompressionNone {
		return loadMapped[T](path, length)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptor file %s: %w", path, err)
	}
	defer f.Close()

	zr, err := NewReader(f, CompressionFor(path))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	data, err := Read[T](zr, length)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor file %s: %w", path, err)
	}
	return data, nil
}

// loadMapped decodes an uncompressed descriptor file through a read-only
// mapping. The returned buffer does not alias the mapping.
func loadMapped[T Element](path string, length int) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptor file %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < headerSize {
		return nil, fmt.Errorf("failed to read descriptor count from %s: %w", path, io.ErrUnexpectedEOF)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to map descriptor file %s: %w", path, err)
	}
	defer m.Unmap()

	count := binary.LittleEndian.Uint64(m[:headerSize])
	if count > maxElements/uint64(length) {
		return nil, fmt.Errorf("%w: %d descriptors of length %d", ErrTooLarge, count, length)
	}
	want := headerSize + int64(count)*int64(length)*int64(ElementSize[T]())
	switch {
	case info.Size() < want:
		return nil, fmt.Errorf("failed to read %d descriptors from %s: %w", count, path, io.ErrUnexpectedEOF)
	case info.Size() > want:
		return nil, fmt.Errorf("%w: %s announces %d descriptors of length %d", ErrTrailingData, path, count, length)
	}

	data := make([]T, int(count)*length)
	if len(data) > 0 {
		if _, err := binary.Decode(m[headerSize:], binary.LittleEndian, data); err != nil {
			return nil, fmt.Errorf("failed to decode descriptor file %s: %w", path, err)
		}
	}
	return data, nil
}

// Save writes data to path. The compression is inferred from the file extension.
func Save[T Element](path string, data []T, length int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create descriptor file %s: %w", path, err)
	}

	zw, err := NewWriter(f, CompressionFor(path))
	if err != nil {
		f.Close()
		return err
	}
	if err := Write(zw, data, length); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("failed to write descriptor file %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush descriptor file %s: %w", path, err)
	}
	return f.Close()
}
