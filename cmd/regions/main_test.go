package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/regions/pkg/features"
	"github.com/TFMV/regions/pkg/regions"
)

// setupDir writes two SIFT views, a and b, with n regions each and a config
// file pointing at them.
func setupDir(t *testing.T, n int) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	for v, base := range map[string]uint8{"a": 0, "b": 2} {
		s := regions.NewSIFTRegions()
		for i := 0; i < n; i++ {
			desc := bytes.Repeat([]byte{base + uint8(i)}, s.DescriptorLength())
			require.NoError(t, s.Append(features.NewSIOPointFeature(float32(i), 1, 1, 0), desc))
		}
		require.NoError(t, s.Save(filepath.Join(dir, v+".feat"), filepath.Join(dir, v+".desc")))
	}

	cfgPath = filepath.Join(t.TempDir(), "regions.yaml")
	cfg := "features_dir: " + dir + "\ndescriber: SIFT\nlog_level: error\nmetrics_enabled: false\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))
	return dir, cfgPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDescribers(t *testing.T) {
	_, cfg := setupDir(t, 1)
	out, err := run(t, "--config", cfg, "describers")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(regions.Names()))
	assert.Contains(t, out, "AKAZE_MLDB")
	assert.Regexp(t, `SIFT\s+scalar\s+uint8\s+128`, out)
}

func TestInfo(t *testing.T) {
	_, cfg := setupDir(t, 3)
	out, err := run(t, "--config", cfg, "info", "a")
	require.NoError(t, err)
	assert.Regexp(t, `Regions:\s+3`, out)
	assert.Contains(t, out, "uint8[128]")

	_, err = run(t, "--config", cfg, "info", "missing")
	assert.ErrorIs(t, err, regions.ErrIOFailure)
}

func TestDistance(t *testing.T) {
	_, cfg := setupDir(t, 2)
	out, err := run(t, "--config", cfg, "distance", "a", "0", "b", "0")
	require.NoError(t, err)
	assert.Equal(t, "512\n", out)

	_, err = run(t, "--config", cfg, "distance", "a", "9", "b", "0")
	assert.ErrorIs(t, err, regions.ErrIndexOutOfRange)
}

func TestFlagOverridesConfig(t *testing.T) {
	_, cfg := setupDir(t, 1)
	_, err := run(t, "--config", cfg, "--describer", "AKAZE_MLDB", "info", "a")
	assert.Error(t, err)

	_, err = run(t, "--config", cfg, "--describer", "ORB", "describers")
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	_, cfg := setupDir(t, 4)
	pairs := filepath.Join(t.TempDir(), "pairs.txt")
	require.NoError(t, os.WriteFile(pairs, []byte("# feature point\n3 30\n1 10\n\n3 31\n"), 0644))
	outDir := t.TempDir()

	out, err := run(t, "--config", cfg, "filter", "a", pairs, outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Kept 3 regions (2 distinct features)")

	s := regions.NewSIFTRegions()
	require.NoError(t, s.Load(filepath.Join(outDir, "a.feat"), filepath.Join(outDir, "a.desc")))
	require.Equal(t, 3, s.RegionCount())
	desc, err := s.Descriptor(0)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), desc[0])
}

func TestCompress(t *testing.T) {
	dir, cfg := setupDir(t, 2)
	out, err := run(t, "--config", cfg, "compress", "a", "--codec", "lz4")
	require.NoError(t, err)
	assert.Contains(t, out, "a.desc.lz4")

	_, err = os.Stat(filepath.Join(dir, "a.desc"))
	assert.True(t, os.IsNotExist(err))

	out, err = run(t, "--config", cfg, "info", "a")
	require.NoError(t, err)
	assert.Regexp(t, `Regions:\s+2`, out)

	_, err = run(t, "--config", cfg, "compress", "a", "--codec", "brotli")
	assert.Error(t, err)
}

func TestExportImport(t *testing.T) {
	dir, cfg := setupDir(t, 3)
	out, err := run(t, "--config", cfg, "export", "b")
	require.NoError(t, err)
	assert.Contains(t, out, `"describer":"SIFT"`)

	archivePath := filepath.Join(t.TempDir(), "b.json")
	require.NoError(t, os.WriteFile(archivePath, []byte(out), 0644))

	msg, err := run(t, "--config", cfg, "import", archivePath, "c")
	require.NoError(t, err)
	assert.Contains(t, msg, "Imported 3 SIFT regions as c")

	orig := regions.NewSIFTRegions()
	require.NoError(t, orig.Load(filepath.Join(dir, "b.feat"), filepath.Join(dir, "b.desc")))
	copied := regions.NewSIFTRegions()
	require.NoError(t, copied.Load(filepath.Join(dir, "c.feat"), filepath.Join(dir, "c.desc")))
	assert.Equal(t, orig.Features(), copied.Features())
	assert.Equal(t, orig.Descriptors(), copied.Descriptors())
}

func TestReadFeaturesInImage(t *testing.T) {
	got, err := readFeaturesInImage(strings.NewReader("0 5\n2 7\n"))
	require.NoError(t, err)
	assert.Equal(t, []regions.FeatureInImage{
		{FeatureIndex: 0, Point3DID: 5},
		{FeatureIndex: 2, Point3DID: 7},
	}, got)

	_, err = readFeaturesInImage(strings.NewReader("1 2 3\n"))
	assert.Error(t, err)
	_, err = readFeaturesInImage(strings.NewReader("-1 2\n"))
	assert.Error(t, err)
}
