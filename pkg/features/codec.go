package features

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Read decodes whitespace separated records, one per line.
// Blank lines are skipped.
func Read[F Feature[F]](r io.Reader) ([]F, error) {
	var zero F
	n := zero.FieldCount()

	var feats []F
	scanner := bufio.NewScanner(r)
	line := 0
	fields := make([]float32, 0, n)
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		tokens := strings.Fields(text)
		if len(tokens) != n {
			return nil, fmt.Errorf("line %d: %w: expected %d, got %d", line, ErrFieldCount, n, len(tokens))
		}

		fields = fields[:0]
		for _, tok := range tokens {
			v, err := strconv.ParseFloat(tok, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q: %w", line, tok, err)
			}
			fields = append(fields, float32(v))
		}

		f, err := zero.FromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		feats = append(feats, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed scanning features: %w", err)
	}
	return feats, nil
}

// Write encodes records one per line. Values are written with the shortest
// representation that round-trips a float32.
func Write[F Feature[F]](w io.Writer, feats []F) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 64)
	for _, f := range feats {
		buf = buf[:0]
		for k, v := range f.Fields() {
			if k > 0 {
				buf = append(buf, ' ')
			}
			buf = strconv.AppendFloat(buf, float64(v), 'g', -1, 32)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load reads the feature file at path.
func Load[F Feature[F]](path string) ([]F, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature file %s: %w", path, err)
	}
	defer f.Close()

	feats, err := Read[F](f)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature file %s: %w", path, err)
	}
	return feats, nil
}

// Save writes feats to path, creating parent directories when needed.
func Save[F Feature[F]](path string, feats []F) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create feature file %s: %w", path, err)
	}

	if err := Write(f, feats); err != nil {
		f.Close()
		return fmt.Errorf("failed to write feature file %s: %w", path, err)
	}
	return f.Close()
}
