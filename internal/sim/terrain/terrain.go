// Package terrain turns a HeightMap into per-column material stacks for a
// single biome, with optional global water, feature water (craters, lakes,
// rivers), beaches, snow caps and decoration passes.
//
// Feature shapes live on the HeightMap. Terrain only records which features
// carry water or snow so Generate can assign materials after the elevation
// grid has been replayed.
package terrain

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"voxelforge.ai/internal/sim/heightmap"
	"voxelforge.ai/internal/sim/mathx"
	"voxelforge.ai/internal/sim/noise"
)

var ErrInvalidConfig = errors.New("terrain: invalid config")

const (
	BlockWater  = "water"
	BlockSand   = "sand"
	BlockGravel = "gravel"
	BlockStone  = "stone"
	BlockSnow   = "snow_block"
)

type Config struct {
	Width       int     `yaml:"width"`
	Depth       int     `yaml:"depth"`
	BaseHeight  float64 `yaml:"base_height"`
	HeightRange float64 `yaml:"height_range"`
	Seed        int64   `yaml:"seed"`
	Biome       Biome   `yaml:"biome"`
	// WaterLevel, when set, floods every column whose surface is below it.
	WaterLevel          *int    `yaml:"water_level"`
	GenerateDecorations bool    `yaml:"generate_decorations"`
	TreeDensity         float64 `yaml:"tree_density"`
	FlowerDensity       float64 `yaml:"flower_density"`
	GrassDensity        float64 `yaml:"grass_density"`
	// FloorY is the lowest emitted layer.
	FloorY      int          `yaml:"floor_y"`
	BeachWidth  int          `yaml:"beach_width"`
	BeachHeight int          `yaml:"beach_height"`
	Noise       noise.Config `yaml:"noise"`
}

func DefaultConfig() Config {
	return Config{
		Width:         64,
		Depth:         64,
		BaseHeight:    64,
		HeightRange:   16,
		Seed:          1,
		Biome:         BiomePlains,
		TreeDensity:   0.02,
		FlowerDensity: 0.03,
		GrassDensity:  0.1,
		BeachWidth:    3,
		BeachHeight:   2,
		Noise:         noise.DefaultConfig(),
	}
}

func (c Config) Validate() error {
	if _, err := RecipeFor(c.Biome); err != nil {
		return err
	}
	for name, d := range map[string]float64{"tree_density": c.TreeDensity, "flower_density": c.FlowerDensity, "grass_density": c.GrassDensity} {
		if d < 0 || d > 1 {
			return fmt.Errorf("%w: %s must be in [0,1] (got %v)", ErrInvalidConfig, name, d)
		}
	}
	if c.BeachWidth < 0 || c.BeachHeight < 0 {
		return fmt.Errorf("%w: beach_width and beach_height must be >= 0", ErrInvalidConfig)
	}
	if c.WaterLevel != nil && *c.WaterLevel < c.FloorY {
		return fmt.Errorf("%w: water_level %d below floor_y %d", ErrInvalidConfig, *c.WaterLevel, c.FloorY)
	}
	return nil
}

// Layer is a vertical run of one block over [From, To).
type Layer struct {
	Block string
	From  int
	To    int
}

type Column struct {
	X, Z    int
	Surface int
	Layers  []Layer
	// WaterTop is the highest water cell; water fills (Surface, WaterTop].
	WaterTop int
	Beach    bool
}

func (c Column) Submerged() bool { return c.WaterTop > c.Surface }

// TopBlock is the block at Surface.
func (c Column) TopBlock() string {
	if len(c.Layers) == 0 {
		return ""
	}
	return c.Layers[len(c.Layers)-1].Block
}

type featureKind int

const (
	featureCrater featureKind = iota + 1
	featureLake
	featureRiver
	featureOcean
	featureSnow
)

// feature remembers the seeded operation as stored in the log so water and
// snow footprints match the replayed shape.
type feature struct {
	kind  featureKind
	op    heightmap.Operation
	level *int
}

type Terrain struct {
	cfg    Config
	recipe Recipe
	hm     *heightmap.HeightMap

	features    []feature
	columns     []Column
	decorations []Decoration
	decorCalls  int
	generated   bool
}

func New(cfg Config) (*Terrain, error) {
	b, err := ParseBiome(string(cfg.Biome))
	if err != nil {
		return nil, err
	}
	cfg.Biome = b
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hm, err := heightmap.New(heightmap.Config{
		Width:       cfg.Width,
		Depth:       cfg.Depth,
		BaseHeight:  cfg.BaseHeight,
		HeightRange: cfg.HeightRange,
		Seed:        cfg.Seed,
		Noise:       cfg.Noise,
	})
	if err != nil {
		return nil, fmt.Errorf("terrain: %w", err)
	}
	return &Terrain{cfg: cfg, recipe: recipes[b], hm: hm}, nil
}

func (t *Terrain) Config() Config { return t.cfg }
func (t *Terrain) Recipe() Recipe { return t.recipe }
func (t *Terrain) Width() int     { return t.cfg.Width }
func (t *Terrain) Depth() int     { return t.cfg.Depth }

// HeightMap exposes the underlying map for area mutators. Operations added
// through it invalidate the terrain like the feature wrappers do.
func (t *Terrain) HeightMap() *heightmap.HeightMap { return t.hm }

func (t *Terrain) apply(op heightmap.Operation) (heightmap.Operation, error) {
	if err := t.hm.Apply(op); err != nil {
		return nil, err
	}
	t.generated = false
	ops := t.hm.Operations()
	return ops[len(ops)-1], nil
}

// AddMountain adds a peak; with snow set, columns of the peak at or above
// the snow line get a snow surface. snowLine nil means 60% of the way up.
func (t *Terrain) AddMountain(m heightmap.Mountain, snow bool, snowLine *int) error {
	op, err := t.apply(m)
	if err != nil {
		return err
	}
	if snow {
		line := snowLine
		if line == nil {
			v := mathx.RoundInt(t.cfg.BaseHeight + m.Height*0.6)
			line = &v
		}
		t.features = append(t.features, feature{kind: featureSnow, op: op, level: line})
	}
	return nil
}

func (t *Terrain) AddRidge(r heightmap.Ridge) error {
	_, err := t.apply(r)
	return err
}

func (t *Terrain) AddPlateau(p heightmap.Plateau) error {
	_, err := t.apply(p)
	return err
}

func (t *Terrain) AddValley(v heightmap.Valley) error {
	_, err := t.apply(v)
	return err
}

func (t *Terrain) AddGorge(g heightmap.Gorge) error {
	_, err := t.apply(g)
	return err
}

// AddCrater carves a crater and optionally fills it. level nil means one
// block below the rim; a level above the rim is clamped to it.
func (t *Terrain) AddCrater(c heightmap.Crater, water bool, level *int) error {
	op, err := t.apply(c)
	if err != nil {
		return err
	}
	if water {
		t.features = append(t.features, feature{kind: featureCrater, op: op, level: level})
	}
	return nil
}

// AddLake carves a basin and fills it. level nil means one block below the
// shore; a level above the shore is clamped to it.
func (t *Terrain) AddLake(l heightmap.Lake, level *int) error {
	op, err := t.apply(l)
	if err != nil {
		return err
	}
	t.features = append(t.features, feature{kind: featureLake, op: op, level: level})
	return nil
}

func (t *Terrain) AddRiver(r heightmap.River, water bool) error {
	op, err := t.apply(r)
	if err != nil {
		return err
	}
	if water {
		t.features = append(t.features, feature{kind: featureRiver, op: op})
	}
	return nil
}

// AddOcean lowers the map toward an edge and floods the shelf up to level.
// level nil means one block below the base height.
func (t *Terrain) AddOcean(o heightmap.Ocean, level *int) error {
	op, err := t.apply(o)
	if err != nil {
		return err
	}
	if level == nil {
		v := mathx.RoundInt(t.cfg.BaseHeight) - 1
		level = &v
	}
	t.features = append(t.features, feature{kind: featureOcean, op: op, level: level})
	return nil
}

// Generate replays the HeightMap and assigns materials. Decorations from
// earlier passes are discarded; with GenerateDecorations set a default pass
// runs afterwards.
func (t *Terrain) Generate() error {
	t.hm.Generate()
	g, err := t.hm.Grid()
	if err != nil {
		return err
	}

	w, d := t.cfg.Width, t.cfg.Depth
	cols := make([]Column, w*d)
	for z := 0; z < d; z++ {
		for x := 0; x < w; x++ {
			s := mathx.MaxInt(mathx.RoundInt(g.At(x, z)), t.cfg.FloorY)
			cols[x+z*w] = Column{X: x, Z: z, Surface: s, WaterTop: s}
		}
	}

	if t.cfg.WaterLevel != nil {
		level := *t.cfg.WaterLevel
		for i := range cols {
			if cols[i].Surface < level {
				cols[i].WaterTop = level
			}
		}
	}
	snow := t.applyFeatures(g, cols)
	beach := t.beaches(cols)

	for i := range cols {
		cols[i].Beach = beach[i]
		cols[i].Layers = t.layers(cols[i], snow[i])
	}

	t.columns = cols
	t.decorations = nil
	t.decorCalls = 0
	t.generated = true

	if t.cfg.GenerateDecorations {
		if _, err := t.Decorate(DecorationOptions{
			TreeDensity:   t.cfg.TreeDensity,
			FlowerDensity: t.cfg.FlowerDensity,
			GrassDensity:  t.cfg.GrassDensity,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (t *Terrain) layers(c Column, snow bool) []Layer {
	r := t.recipe
	top, sub, subDepth := r.Surface, r.Subsurface, r.SubsurfaceDepth
	switch {
	case c.Submerged():
		top = underwaterBlock(c.WaterTop - c.Surface)
		if top == BlockStone {
			sub = r.Base
		} else {
			sub = top
		}
	case c.Beach:
		top, sub = BlockSand, BlockSand
	case snow:
		top = BlockSnow
	}

	floor := t.cfg.FloorY
	out := make([]Layer, 0, 3)
	subFrom := mathx.MaxInt(c.Surface-subDepth, floor)
	if subFrom > floor {
		out = append(out, Layer{Block: r.Base, From: floor, To: subFrom})
	}
	if c.Surface > subFrom {
		out = append(out, Layer{Block: sub, From: subFrom, To: c.Surface})
	}
	return append(out, Layer{Block: top, From: c.Surface, To: c.Surface + 1})
}

// underwaterBlock picks the floor material for a water column of depth n.
func underwaterBlock(n int) string {
	switch {
	case n <= 3:
		return BlockSand
	case n <= 8:
		return BlockGravel
	default:
		return BlockStone
	}
}

func (t *Terrain) ready() error {
	if !t.generated || t.hm.State() != heightmap.StateGenerated {
		return fmt.Errorf("terrain: %w", heightmap.ErrNotGenerated)
	}
	return nil
}

// HeightAt returns the surface block height at (x, z).
func (t *Terrain) HeightAt(x, z int) (int, error) {
	if err := t.ready(); err != nil {
		return 0, err
	}
	if x < 0 || z < 0 || x >= t.cfg.Width || z >= t.cfg.Depth {
		return 0, fmt.Errorf("terrain: %w: (%d,%d)", heightmap.ErrOutOfBounds, x, z)
	}
	return t.columns[x+z*t.cfg.Width].Surface, nil
}

func (t *Terrain) Column(x, z int) (Column, error) {
	if _, err := t.HeightAt(x, z); err != nil {
		return Column{}, err
	}
	return t.columns[x+z*t.cfg.Width], nil
}

func (t *Terrain) Columns() ([]Column, error) {
	if err := t.ready(); err != nil {
		return nil, err
	}
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out, nil
}

func (t *Terrain) Decorations() []Decoration {
	out := make([]Decoration, len(t.decorations))
	copy(out, t.decorations)
	return out
}

// Digest hashes columns and decorations in emission order.
func (t *Terrain) Digest() ([32]byte, error) {
	if err := t.ready(); err != nil {
		return [32]byte{}, err
	}
	h := sha256.New()
	var tmp [8]byte
	putInt := func(v int) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
		h.Write(tmp[:])
	}
	putStr := func(s string) {
		putInt(len(s))
		h.Write([]byte(s))
	}
	for _, c := range t.columns {
		putInt(c.Surface)
		putInt(c.WaterTop)
		for _, l := range c.Layers {
			putStr(l.Block)
			putInt(l.From)
			putInt(l.To)
		}
	}
	for _, d := range t.decorations {
		putStr(d.Kind)
		for _, p := range d.Pieces {
			putStr(p.Block)
			putInt(p.X)
			putInt(p.Y)
			putInt(p.Z)
			putInt(p.W)
			putInt(p.H)
			putInt(p.D)
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}

func clampLevel(level *int, rim float64) int {
	limit := int(math.Floor(rim))
	if level == nil {
		return limit - 1
	}
	return mathx.MinInt(*level, limit)
}
