package terrain

import (
	"fmt"

	"voxelforge.ai/internal/sim/scene"
)

// Object emits the generated terrain as scene blocks: one 1×n×1 block per
// column layer, one per water column and one per decoration piece. The group
// sits at the origin so terrain (x, z) maps to world (x, z).
func (t *Terrain) Object(cat scene.Catalog) (*scene.Object3D, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	root := scene.Group("terrain", scene.Vector3{})
	for _, c := range t.columns {
		for _, l := range c.Layers {
			b, err := scene.NewBlock(cat, l.Block, scene.Size{W: 1, H: l.To - l.From, D: 1}, scene.At(c.X, l.From, c.Z))
			if err != nil {
				return nil, fmt.Errorf("terrain column (%d,%d): %w", c.X, c.Z, err)
			}
			if err := root.Add(b); err != nil {
				return nil, err
			}
		}
		if c.Submerged() {
			b, err := scene.NewBlock(cat, BlockWater, scene.Size{W: 1, H: c.WaterTop - c.Surface, D: 1}, scene.At(c.X, c.Surface+1, c.Z))
			if err != nil {
				return nil, fmt.Errorf("terrain water (%d,%d): %w", c.X, c.Z, err)
			}
			if err := root.Add(b); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range t.decorations {
		for _, p := range d.Pieces {
			opts := []scene.BlockOption{scene.At(p.X, p.Y, p.Z)}
			if len(p.Properties) > 0 {
				opts = append(opts, scene.WithProperties(p.Properties))
			}
			b, err := scene.NewBlock(cat, p.Block, scene.Size{W: p.W, H: p.H, D: p.D}, opts...)
			if err != nil {
				return nil, fmt.Errorf("terrain %s at (%d,%d): %w", d.Kind, d.X, d.Z, err)
			}
			if err := root.Add(b); err != nil {
				return nil, err
			}
		}
	}
	return root, nil
}
