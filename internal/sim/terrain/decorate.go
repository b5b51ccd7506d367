package terrain

import (
	"fmt"

	"voxelforge.ai/internal/sim/mathx"
)

// Piece is one cuboid of a decoration in terrain coordinates.
type Piece struct {
	Block      string
	Properties map[string]string
	X, Y, Z    int
	W, H, D    int
}

type Decoration struct {
	Kind   string
	X, Z   int
	Pieces []Piece
}

type DecorationOptions struct {
	// Seed 0 derives a seed from the terrain seed and the pass index.
	Seed          int64   `yaml:"seed"`
	TreeDensity   float64 `yaml:"tree_density"`
	FlowerDensity float64 `yaml:"flower_density"`
	GrassDensity  float64 `yaml:"grass_density"`
	// MaxSlope is the largest neighbour height difference a column may have.
	// nil means 2.
	MaxSlope *int `yaml:"max_slope"`
	// TreeSpacing is the minimum Chebyshev distance between decorated columns
	// and a new tree. nil means 3.
	TreeSpacing *int `yaml:"tree_spacing"`
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func (o DecorationOptions) validate() error {
	for name, d := range map[string]float64{"tree_density": o.TreeDensity, "flower_density": o.FlowerDensity, "grass_density": o.GrassDensity} {
		if d < 0 || d > 1 {
			return fmt.Errorf("%w: %s must be in [0,1] (got %v)", ErrInvalidConfig, name, d)
		}
	}
	if intOr(o.MaxSlope, 0) < 0 || intOr(o.TreeSpacing, 0) < 0 {
		return fmt.Errorf("%w: max_slope and tree_spacing must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Decorate runs one decoration pass over the generated columns and returns
// what it placed. Water, beach, steep and already decorated columns are
// skipped. Each pass draws from its own seed.
func (t *Terrain) Decorate(opts DecorationOptions) ([]Decoration, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	maxSlope := intOr(opts.MaxSlope, 2)
	spacing := intOr(opts.TreeSpacing, 3)
	t.decorCalls++
	seed := opts.Seed
	if seed == 0 {
		seed = mathx.DeriveSeed(t.cfg.Seed, 0xdec0+uint64(t.decorCalls))
	}

	w, d := t.cfg.Width, t.cfg.Depth
	occupied := make([]bool, w*d)
	for _, dec := range t.decorations {
		occupied[dec.X+dec.Z*w] = true
	}

	var placed []Decoration
	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			c := t.columns[x+z*w]
			if c.Submerged() || c.Beach || occupied[x+z*w] || t.slope(x, z) > maxSlope {
				continue
			}
			h := mathx.Hash2(seed, x, z)
			roll := mathx.Unit(h)

			var dec *Decoration
			switch {
			case roll < opts.TreeDensity:
				dec = t.tree(c, h, spacing, occupied)
			case roll < opts.TreeDensity+opts.FlowerDensity:
				dec = t.flower(c, h)
			case roll < opts.TreeDensity+opts.FlowerDensity+opts.GrassDensity:
				dec = t.grass(c)
			}
			if dec == nil {
				continue
			}
			occupied[x+z*w] = true
			placed = append(placed, *dec)
		}
	}
	t.decorations = append(t.decorations, placed...)
	return placed, nil
}

func (t *Terrain) slope(x, z int) int {
	w := t.cfg.Width
	s := t.columns[x+z*w].Surface
	worst := 0
	for _, dir := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		nx, nz := x+dir[0], z+dir[1]
		if nx < 0 || nz < 0 || nx >= w || nz >= t.cfg.Depth {
			continue
		}
		worst = mathx.MaxInt(worst, mathx.AbsInt(t.columns[nx+nz*w].Surface-s))
	}
	return worst
}

func soil(block string) bool {
	return block == "grass_block" || block == "dirt" || block == BlockSnow || block == "podzol"
}

func (t *Terrain) tree(c Column, h uint64, spacing int, occupied []bool) *Decoration {
	if t.recipe.arid {
		return t.cactus(c, h)
	}
	if len(t.recipe.trees) == 0 || !soil(c.TopBlock()) {
		return nil
	}
	style := t.recipe.trees[int((h>>8)%uint64(len(t.recipe.trees)))]
	cr := style.canopyRadius
	if c.X-cr < 0 || c.Z-cr < 0 || c.X+cr >= t.cfg.Width || c.Z+cr >= t.cfg.Depth {
		return nil
	}
	w := t.cfg.Width
	for dz := -spacing; dz <= spacing; dz++ {
		for dx := -spacing; dx <= spacing; dx++ {
			x, z := c.X+dx, c.Z+dz
			if x < 0 || z < 0 || x >= w || z >= t.cfg.Depth {
				continue
			}
			if occupied[x+z*w] {
				return nil
			}
		}
	}

	height := style.minHeight + int((h>>16)%uint64(style.spread))
	top := c.Surface + height
	// Leaves first so the trunk wins where they overlap.
	pieces := []Piece{
		{Block: style.leaves, X: c.X - cr, Y: top - 1, Z: c.Z - cr, W: cr*2 + 1, H: 2, D: cr*2 + 1},
		{Block: style.leaves, X: c.X - 1, Y: top + 1, Z: c.Z - 1, W: 3, H: 1, D: 3},
		{Block: style.leaves, X: c.X, Y: top + 2, Z: c.Z, W: 1, H: 1, D: 1},
		{Block: style.log, X: c.X, Y: c.Surface + 1, Z: c.Z, W: 1, H: height, D: 1},
	}
	return &Decoration{Kind: "tree", X: c.X, Z: c.Z, Pieces: pieces}
}

func (t *Terrain) cactus(c Column, h uint64) *Decoration {
	if c.TopBlock() != BlockSand && c.TopBlock() != "red_sand" {
		return nil
	}
	height := 1 + int((h>>16)%3)
	return &Decoration{Kind: "cactus", X: c.X, Z: c.Z, Pieces: []Piece{
		{Block: "cactus", X: c.X, Y: c.Surface + 1, Z: c.Z, W: 1, H: height, D: 1},
	}}
}

func (t *Terrain) flower(c Column, h uint64) *Decoration {
	if t.recipe.arid {
		if c.TopBlock() != BlockSand && c.TopBlock() != "red_sand" && c.TopBlock() != "terracotta" {
			return nil
		}
		return t.plant("dead_bush", c)
	}
	if len(t.recipe.flowers) == 0 || c.TopBlock() != "grass_block" {
		return nil
	}
	return t.plant(t.recipe.flowers[int((h>>24)%uint64(len(t.recipe.flowers)))], c)
}

func (t *Terrain) grass(c Column) *Decoration {
	if t.recipe.grass == "" || c.TopBlock() != "grass_block" {
		return nil
	}
	return t.plant(t.recipe.grass, c)
}

func (t *Terrain) plant(block string, c Column) *Decoration {
	return &Decoration{Kind: block, X: c.X, Z: c.Z, Pieces: []Piece{
		{Block: block, X: c.X, Y: c.Surface + 1, Z: c.Z, W: 1, H: 1, D: 1},
	}}
}
