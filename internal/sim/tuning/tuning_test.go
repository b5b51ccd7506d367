package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelforge.ai/internal/sim/noise"
	"voxelforge.ai/internal/sim/scene"
	"voxelforge.ai/internal/sim/terrain"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte(`
terrain:
  width: 96
  biome: desert
  noise:
    octaves: 6
    basis: perlin
export:
  padding: 2
`)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	tu, err := Load(path)
	require.NoError(t, err)

	def := Defaults()
	assert.Equal(t, 96, tu.Terrain.Width)
	assert.Equal(t, def.Terrain.Depth, tu.Terrain.Depth)
	assert.Equal(t, terrain.BiomeDesert, tu.Terrain.Biome)
	assert.Equal(t, 6, tu.Terrain.Noise.Octaves)
	assert.Equal(t, noise.BasisPerlin, tu.Terrain.Noise.Basis)
	assert.Equal(t, def.Terrain.Noise.Scale, tu.Terrain.Noise.Scale, "noise scale should keep its default")

	opts := tu.ExportOptions()
	assert.Equal(t, 2, opts.Padding)
	assert.Equal(t, scene.OriginMin, opts.Origin)
	assert.Equal(t, "dirt", tu.Placement.FillBlock)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{"origin", "export: {origin: center}", scene.ErrInvalidOrigin},
		{"padding", "export: {padding: -1}", ErrInvalidTuning},
		{"biome", "terrain: {biome: jungle}", terrain.ErrUnknownBiome},
		{"octaves", "terrain: {noise: {octaves: 0}}", noise.ErrInvalidConfig},
		{"density", "terrain: {tree_density: 2}", terrain.ErrInvalidConfig},
		{"width", "terrain: {width: 0}", ErrInvalidTuning},
	}
	for _, tc := range cases {
		_, err := Parse([]byte(tc.raw))
		assert.True(t, errors.Is(err, tc.want), "%s: expected %v, got %v", tc.name, tc.want, err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)
}
