package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panyam/fsl/bounds"
	"github.com/panyam/fsl/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
log_level: debug
params:
  width: 64
inputs:
  inp:
    shape: [64, 48]
    range: [0, 300]
requests:
  - pipeline: hist
    region: [[0, 255]]
max_regions: 16
`

func TestParse(t *testing.T) {
	cfg, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
	assert.Equal(t, int64(64), cfg.Params["width"])
	assert.Equal(t, []int64{64, 48}, cfg.Inputs["inp"].Shape)
	assert.Equal(t, 10, cfg.MaxImportDepth)
	assert.Len(t, cfg.LowerOptions(), 3)
	assert.Len(t, cfg.BoundsOptions(), 1)
	assert.Equal(t, bounds.Requests{{Pipeline: "hist", Region: bounds.Region{ir.Span(0, 255)}}}, cfg.BoundsRequests())
}

func TestParseRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown field": "colour: red\n",
		"bad level":     "log_level: loud\n",
		"short range":   "inputs:\n  inp:\n    range: [1]\n",
		"bad region":    "requests:\n  - pipeline: f\n    region: [[0]]\n",
		"no pipeline":   "requests:\n  - region: [[0, 1]]\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestEmptyDocumentIsDefault(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	t.Run("explicit path", func(t *testing.T) {
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, path, cfg.Path)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("FSL_CONFIG", path)
		t.Setenv("FSL_LOG_LEVEL", "warn")
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, path, cfg.Path)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("missing default file", func(t *testing.T) {
		t.Setenv("FSL_CONFIG", "")
		chdir(t, dir)
		cfg, err := Load("")
		require.NoError(t, err)
		assert.Empty(t, cfg.Path)
		assert.Equal(t, 4096, cfg.MaxRegions)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("blur=0:63, -1:47")
	require.NoError(t, err)
	assert.Equal(t, RequestConfig{Pipeline: "blur", Region: [][]int64{{0, 63}, {-1, 47}}}, req)

	for _, bad := range []string{"blur", "=0:1", "blur=", "blur=0-1", "blur=a:1", "blur=0:b"} {
		_, err := ParseRequest(bad)
		assert.Error(t, err, bad)
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
