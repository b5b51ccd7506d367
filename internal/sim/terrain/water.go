package terrain

import (
	"math"

	"voxelforge.ai/internal/sim/heightmap"
	"voxelforge.ai/internal/sim/mathx"
)

// applyFeatures raises WaterTop for feature water and returns the snow mask.
func (t *Terrain) applyFeatures(g *heightmap.Grid, cols []Column) []bool {
	w, d := t.cfg.Width, t.cfg.Depth
	snow := make([]bool, len(cols))

	fill := func(footprint []float64, level int) {
		for i, dist := range footprint {
			if dist < 1 && cols[i].Surface < level {
				cols[i].WaterTop = mathx.MaxInt(cols[i].WaterTop, level)
			}
		}
	}

	for _, f := range t.features {
		switch op := f.op.(type) {
		case heightmap.Crater:
			rim, ok := op.RimMin(g)
			if !ok {
				continue
			}
			fill(op.Footprint(w, d), clampLevel(f.level, rim))
		case heightmap.Lake:
			rim, ok := op.RimMin(g)
			if !ok {
				continue
			}
			fill(op.Footprint(w, d), clampLevel(f.level, rim))
		case heightmap.Ocean:
			fill(op.Footprint(w, d), *f.level)
		case heightmap.River:
			// Water stands one block below the lowest bank of its segment, so
			// a channel later filled in by other features stays dry.
			channel, banks := op.Banks(g)
			for i, weight := range channel {
				if weight <= 0 || math.IsInf(banks[i], 1) {
					continue
				}
				if level := clampLevel(nil, banks[i]); cols[i].Surface < level {
					cols[i].WaterTop = mathx.MaxInt(cols[i].WaterTop, level)
				}
			}
		case heightmap.Mountain:
			if f.kind != featureSnow || f.level == nil {
				continue
			}
			reach := op.Radius * 1.25
			for i := range cols {
				c := cols[i]
				if math.Hypot(float64(c.X)-op.X, float64(c.Z)-op.Z) > reach {
					continue
				}
				if c.Surface >= *f.level {
					snow[i] = true
				}
			}
		}
	}
	for i := range snow {
		if cols[i].Submerged() {
			snow[i] = false
		}
	}
	return snow
}

// beaches marks dry columns within BeachWidth steps (Manhattan, through dry
// land) of water whose surface is at most BeachHeight above that water.
func (t *Terrain) beaches(cols []Column) []bool {
	out := make([]bool, len(cols))
	if t.cfg.BeachWidth <= 0 {
		return out
	}
	w, d := t.cfg.Width, t.cfg.Depth

	type item struct{ idx, dist, level int }
	seen := make([]bool, len(cols))
	queue := make([]item, 0, len(cols)/4)
	for i, c := range cols {
		if c.Submerged() {
			seen[i] = true
			queue = append(queue, item{idx: i, level: c.WaterTop})
		}
	}

	dirs := [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	for head := 0; head < len(queue); head++ {
		it := queue[head]
		if it.dist >= t.cfg.BeachWidth {
			continue
		}
		x, z := it.idx%w, it.idx/w
		for _, dir := range dirs {
			nx, nz := x+dir[0], z+dir[1]
			if nx < 0 || nz < 0 || nx >= w || nz >= d {
				continue
			}
			n := nx + nz*w
			if seen[n] {
				continue
			}
			seen[n] = true
			if cols[n].Surface <= it.level+t.cfg.BeachHeight {
				out[n] = true
			}
			queue = append(queue, item{idx: n, dist: it.dist + 1, level: it.level})
		}
	}
	return out
}
