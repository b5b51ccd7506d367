// Package heightmap builds 2D elevation grids from base noise plus an ordered
// log of shape operations.
//
// Operations are never applied eagerly. They are appended to the log and the
// whole log is replayed, in call order, by Generate. Each operation reads the
// grid as left by the operations before it, so a mountain added after a river
// refills the channel. Queries on a map whose log changed since the last
// Generate fail with ErrNotGenerated instead of regenerating implicitly.
package heightmap

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"voxelforge.ai/internal/sim/mathx"
	"voxelforge.ai/internal/sim/noise"
)

var (
	ErrNotGenerated  = errors.New("heightmap: not generated")
	ErrOutOfBounds   = errors.New("heightmap: out of bounds")
	ErrInvalidConfig = errors.New("heightmap: invalid config")
)

type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateGenerated
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateGenerated:
		return "generated"
	default:
		return "unknown"
	}
}

type Config struct {
	Width       int          `yaml:"width"`
	Depth       int          `yaml:"depth"`
	BaseHeight  float64      `yaml:"base_height"`
	HeightRange float64      `yaml:"height_range"`
	Seed        int64        `yaml:"seed"`
	Noise       noise.Config `yaml:"noise"`
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Depth <= 0 {
		return fmt.Errorf("%w: size must be positive (got %dx%d)", ErrInvalidConfig, c.Width, c.Depth)
	}
	if c.HeightRange < 0 {
		return fmt.Errorf("%w: height_range must be >= 0", ErrInvalidConfig)
	}
	if err := c.Noise.Validate(); err != nil {
		return err
	}
	return nil
}

type HeightMap struct {
	cfg   Config
	base  *noise.Field
	ops   []Operation
	grid  *Grid
	state State
}

func New(cfg Config) (*HeightMap, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := noise.New(cfg.Seed, cfg.Noise)
	if err != nil {
		return nil, err
	}
	return &HeightMap{cfg: cfg, base: base, state: StateUnconfigured}, nil
}

func (h *HeightMap) Config() Config { return h.cfg }
func (h *HeightMap) Width() int     { return h.cfg.Width }
func (h *HeightMap) Depth() int     { return h.cfg.Depth }
func (h *HeightMap) State() State   { return h.state }

// Operations returns a copy of the operation log in application order.
func (h *HeightMap) Operations() []Operation {
	out := make([]Operation, len(h.ops))
	copy(out, h.ops)
	return out
}

// Apply validates op, appends it to the log and invalidates any generated
// grid. A zero seed on a seeded operation is replaced by one derived from the
// map seed and the operation's position in the log.
func (h *HeightMap) Apply(op Operation) error {
	if op == nil {
		return fmt.Errorf("%w: nil", ErrInvalidOperation)
	}
	if err := op.validate(); err != nil {
		return err
	}
	if s, ok := op.(seeded); ok && s.opSeed() == 0 {
		op = s.withSeed(mathx.DeriveSeed(h.cfg.Seed, uint64(len(h.ops)+1)))
	}
	h.ops = append(h.ops, op)
	h.state = StateConfigured
	return nil
}

func (h *HeightMap) AddMountain(op Mountain) error { return h.Apply(op) }
func (h *HeightMap) AddRidge(op Ridge) error       { return h.Apply(op) }
func (h *HeightMap) AddPlateau(op Plateau) error   { return h.Apply(op) }
func (h *HeightMap) AddValley(op Valley) error     { return h.Apply(op) }
func (h *HeightMap) AddGorge(op Gorge) error       { return h.Apply(op) }
func (h *HeightMap) AddCrater(op Crater) error     { return h.Apply(op) }
func (h *HeightMap) AddRiver(op River) error       { return h.Apply(op) }
func (h *HeightMap) AddLake(op Lake) error         { return h.Apply(op) }
func (h *HeightMap) AddOcean(op Ocean) error       { return h.Apply(op) }

func (h *HeightMap) FlattenArea(x, z, w, d int, height float64, blend int) error {
	return h.Apply(Flatten{X: x, Z: z, W: w, D: d, Height: height, Blend: blend})
}

// FlattenForStructure levels the footprint to its own rounded mean height,
// measured when the log is replayed.
func (h *HeightMap) FlattenForStructure(x, z, w, d, blend int) error {
	return h.Apply(FlattenForStructure{X: x, Z: z, W: w, D: d, Blend: blend})
}

func (h *HeightMap) Smooth(radius, iterations int) error {
	return h.Apply(Smooth{Radius: radius, Iterations: iterations})
}

func (h *HeightMap) RaiseArea(x, z, w, d int, amount float64, blend int) error {
	return h.Apply(Raise{X: x, Z: z, W: w, D: d, Amount: amount, Blend: blend})
}

func (h *HeightMap) CarveArea(x, z, w, d int, depth float64, blend int) error {
	return h.Apply(Carve{X: x, Z: z, W: w, D: d, Depth: depth, Blend: blend})
}

// Generate materializes the grid: base noise, then every operation in order.
func (h *HeightMap) Generate() {
	g := newGrid(h.cfg.Width, h.cfg.Depth)
	for z := 0; z < g.depth; z++ {
		for x := 0; x < g.width; x++ {
			g.values[g.index(x, z)] = h.cfg.BaseHeight + h.base.Sample(float64(x), float64(z))*h.cfg.HeightRange
		}
	}
	for _, op := range h.ops {
		op.apply(g)
	}
	h.grid = g
	h.state = StateGenerated
}

func (h *HeightMap) ready() error {
	if h.state != StateGenerated {
		return fmt.Errorf("%w (state %s)", ErrNotGenerated, h.state)
	}
	return nil
}

// Get returns the raw elevation at (x, z).
func (h *HeightMap) Get(x, z int) (float64, error) {
	if err := h.ready(); err != nil {
		return 0, err
	}
	if !h.grid.InBounds(x, z) {
		return 0, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, x, z)
	}
	return h.grid.At(x, z), nil
}

// HeightAt returns the elevation rounded to the block grid.
func (h *HeightMap) HeightAt(x, z int) (int, error) {
	v, err := h.Get(x, z)
	if err != nil {
		return 0, err
	}
	return mathx.RoundInt(v), nil
}

// AverageHeight averages the in-bounds cells of the w×d rectangle at (x, z).
func (h *HeightMap) AverageHeight(x, z, w, d int) (float64, error) {
	if err := h.ready(); err != nil {
		return 0, err
	}
	avg, ok := h.grid.Average(x, z, w, d)
	if !ok {
		return 0, fmt.Errorf("%w: area (%d,%d)+(%d,%d)", ErrOutOfBounds, x, z, w, d)
	}
	return avg, nil
}

// Grid returns the generated grid. Callers must not mutate it.
func (h *HeightMap) Grid() (*Grid, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	return h.grid, nil
}

func (h *HeightMap) Values() ([]float64, error) {
	if err := h.ready(); err != nil {
		return nil, err
	}
	out := make([]float64, len(h.grid.values))
	copy(out, h.grid.values)
	return out, nil
}

func (h *HeightMap) Digest() ([32]byte, error) {
	if err := h.ready(); err != nil {
		return [32]byte{}, err
	}
	sum := sha256.New()
	var tmp [8]byte
	for _, v := range h.grid.values {
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
		sum.Write(tmp[:])
	}
	var out [32]byte
	copy(out[:], sum.Sum(nil))
	return out, nil
}

// Grid is a dense row-major elevation grid.
type Grid struct {
	width, depth int
	values       []float64
}

func newGrid(width, depth int) *Grid {
	return &Grid{width: width, depth: depth, values: make([]float64, width*depth)}
}

func (g *Grid) Width() int { return g.width }
func (g *Grid) Depth() int { return g.depth }

func (g *Grid) index(x, z int) int { return x + z*g.width }

func (g *Grid) InBounds(x, z int) bool {
	return x >= 0 && z >= 0 && x < g.width && z < g.depth
}

func (g *Grid) At(x, z int) float64 { return g.values[g.index(x, z)] }

func (g *Grid) set(x, z int, v float64) { g.values[g.index(x, z)] = v }

func (g *Grid) add(x, z int, v float64) { g.values[g.index(x, z)] += v }

func (g *Grid) Average(x, z, w, d int) (float64, bool) {
	sum := 0.0
	n := 0
	for zz := z; zz < z+d; zz++ {
		for xx := x; xx < x+w; xx++ {
			if !g.InBounds(xx, zz) {
				continue
			}
			sum += g.At(xx, zz)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// clip returns the in-bounds half-open range of [lo, hi) along an axis of size n.
func clip(lo, hi, n int) (int, int) {
	return mathx.MaxInt(lo, 0), mathx.MinInt(hi, n)
}
