// Package tuning loads the defaults applied to manifests that leave terrain,
// export or placement settings unset.
package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxelforge.ai/internal/sim/scene"
	"voxelforge.ai/internal/sim/terrain"
)

var ErrInvalidTuning = errors.New("tuning: invalid")

type Tuning struct {
	Terrain   terrain.Config `yaml:"terrain"`
	Export    Export         `yaml:"export"`
	Placement Placement      `yaml:"placement"`
}

type Export struct {
	Origin  string `yaml:"origin"`
	Padding int    `yaml:"padding"`
}

type Placement struct {
	FillBottom bool   `yaml:"fill_bottom"`
	FillBlock  string `yaml:"fill_block"`
}

func Defaults() Tuning {
	return Tuning{
		Terrain:   terrain.DefaultConfig(),
		Export:    Export{Origin: string(scene.OriginMin)},
		Placement: Placement{FillBlock: "dirt"},
	}
}

// Load reads a tuning.yaml. Keys missing from the file keep their defaults.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t, err := Parse(raw)
	if err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, err
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Terrain.Width <= 0 || t.Terrain.Depth <= 0 {
		return fmt.Errorf("%w: terrain width and depth must be > 0", ErrInvalidTuning)
	}
	if _, err := terrain.ParseBiome(string(t.Terrain.Biome)); err != nil {
		return err
	}
	if err := t.Terrain.Noise.Validate(); err != nil {
		return err
	}
	if err := t.Terrain.Validate(); err != nil {
		return err
	}
	if _, err := scene.ParseOrigin(t.Export.Origin); err != nil {
		return err
	}
	if t.Export.Padding < 0 {
		return fmt.Errorf("%w: export padding must be >= 0", ErrInvalidTuning)
	}
	if t.Placement.FillBlock == "" {
		return fmt.Errorf("%w: placement fill_block is empty", ErrInvalidTuning)
	}
	return nil
}

// ExportOptions returns the export defaults as scene options.
func (t Tuning) ExportOptions() scene.ExportOptions {
	return scene.ExportOptions{Origin: scene.Origin(t.Export.Origin), Padding: t.Export.Padding}
}
