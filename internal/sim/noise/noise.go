// Package noise samples seeded, multi-octave coherent noise with optional
// domain warping. A Field is a pure function of (x, z, seed, config).
package noise

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"voxelforge.ai/internal/sim/mathx"
)

var ErrInvalidConfig = errors.New("noise: invalid config")

type Basis string

const (
	BasisSimplex Basis = "simplex"
	BasisPerlin  Basis = "perlin"
	BasisValue   Basis = "value"
)

// Config describes the fractal sum. Scale is the base frequency applied to
// world coordinates before the first octave.
type Config struct {
	Octaves      int     `yaml:"octaves" json:"octaves"`
	Persistence  float64 `yaml:"persistence" json:"persistence"`
	Lacunarity   float64 `yaml:"lacunarity" json:"lacunarity"`
	Scale        float64 `yaml:"scale" json:"scale"`
	Basis        Basis   `yaml:"basis,omitempty" json:"basis,omitempty"`
	WarpStrength float64 `yaml:"warp_strength,omitempty" json:"warp_strength,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Octaves:      4,
		Persistence:  0.5,
		Lacunarity:   2.0,
		Scale:        0.02,
		Basis:        BasisSimplex,
		WarpStrength: 0,
	}
}

func (c Config) Validate() error {
	if c.Octaves < 1 {
		return fmt.Errorf("%w: octaves must be >= 1 (got %d)", ErrInvalidConfig, c.Octaves)
	}
	if !(c.Persistence > 0) {
		return fmt.Errorf("%w: persistence must be > 0 (got %v)", ErrInvalidConfig, c.Persistence)
	}
	if !(c.Lacunarity > 0) {
		return fmt.Errorf("%w: lacunarity must be > 0 (got %v)", ErrInvalidConfig, c.Lacunarity)
	}
	if !(c.Scale > 0) {
		return fmt.Errorf("%w: scale must be > 0 (got %v)", ErrInvalidConfig, c.Scale)
	}
	if c.WarpStrength < 0 {
		return fmt.Errorf("%w: warp_strength must be >= 0 (got %v)", ErrInvalidConfig, c.WarpStrength)
	}
	if _, err := ParseBasis(string(c.Basis)); err != nil {
		return err
	}
	return nil
}

// ParseBasis accepts the basis literal case-insensitively; empty means simplex.
func ParseBasis(s string) (Basis, error) {
	switch Basis(strings.ToLower(strings.TrimSpace(s))) {
	case "", BasisSimplex:
		return BasisSimplex, nil
	case BasisPerlin:
		return BasisPerlin, nil
	case BasisValue:
		return BasisValue, nil
	default:
		return "", fmt.Errorf("%w: unknown basis %q", ErrInvalidConfig, s)
	}
}

// sampler is a single-octave 2D source returning values roughly in [-1, 1].
type sampler interface {
	Eval2(x, y float64) float64
}

type perlinSampler struct{ p *perlin.Perlin }

func (s perlinSampler) Eval2(x, y float64) float64 {
	// go-perlin returns zero on the integer lattice; the small offset keeps
	// integer world coordinates from landing exactly on it.
	return s.p.Noise2D(x+0.3183, y+0.6180) * 1.4
}

type valueSampler struct{ seed int64 }

func (s valueSampler) Eval2(x, y float64) float64 {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	sx := mathx.SmoothStep(x - float64(x0))
	sy := mathx.SmoothStep(y - float64(y0))

	n0 := mathx.Signed(mathx.Hash2(s.seed, x0, y0))
	n1 := mathx.Signed(mathx.Hash2(s.seed, x0+1, y0))
	n2 := mathx.Signed(mathx.Hash2(s.seed, x0, y0+1))
	n3 := mathx.Signed(mathx.Hash2(s.seed, x0+1, y0+1))
	return mathx.Lerp(mathx.Lerp(n0, n1, sx), mathx.Lerp(n2, n3, sx), sy)
}

func newSampler(basis Basis, seed int64) sampler {
	switch basis {
	case BasisPerlin:
		return perlinSampler{p: perlin.NewPerlin(2, 2, 1, seed)}
	case BasisValue:
		return valueSampler{seed: seed}
	default:
		return opensimplex.New(seed)
	}
}

// Field is a seeded fractal noise field.
type Field struct {
	cfg   Config
	seed  int64
	src   sampler
	warpX sampler
	warpZ sampler
}

func New(seed int64, cfg Config) (*Field, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	basis, _ := ParseBasis(string(cfg.Basis))
	cfg.Basis = basis
	return &Field{
		cfg:   cfg,
		seed:  seed,
		src:   newSampler(basis, seed),
		warpX: newSampler(basis, mathx.DeriveSeed(seed, 0x5741525058)),
		warpZ: newSampler(basis, mathx.DeriveSeed(seed, 0x574152505a)),
	}, nil
}

func (f *Field) Config() Config { return f.cfg }
func (f *Field) Seed() int64    { return f.seed }

// Sample returns the amplitude-normalized fractal sum at (x, z), in [-1, 1].
// When the config carries a warp strength the input is warped first.
func (f *Field) Sample(x, z float64) float64 {
	if f.cfg.WarpStrength > 0 {
		return f.SampleWarped(x, z, f.cfg.WarpStrength)
	}
	return f.fbm(f.src, x, z)
}

// SampleWarped displaces (x, z) by two independent warp fields scaled by
// strength (in world units) and samples the primary field there.
func (f *Field) SampleWarped(x, z, strength float64) float64 {
	wx, wz := f.Warp(x, z, strength)
	return f.fbm(f.src, wx, wz)
}

// Warp returns the displaced coordinates used by SampleWarped.
func (f *Field) Warp(x, z, strength float64) (float64, float64) {
	if strength == 0 {
		return x, z
	}
	dx := f.fbm(f.warpX, x, z)
	dz := f.fbm(f.warpZ, x+5.2, z+1.3)
	return x + dx*strength, z + dz*strength
}

func (f *Field) fbm(src sampler, x, z float64) float64 {
	frequency := f.cfg.Scale
	amplitude := 1.0
	sum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < f.cfg.Octaves; i++ {
		sum += src.Eval2(x*frequency, z*frequency) * amplitude
		maxAmplitude += amplitude
		amplitude *= f.cfg.Persistence
		frequency *= f.cfg.Lacunarity
	}
	if maxAmplitude == 0 {
		return 0
	}
	return mathx.Clamp(sum/maxAmplitude, -1, 1)
}
