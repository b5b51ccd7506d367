package heightmap

import (
	"math"

	"voxelforge.ai/internal/sim/mathx"
	"voxelforge.ai/internal/sim/noise"
)

// edgeWeight maps a normalized distance to [0, 1]. k=1 is a cone, k=2 a
// dome; large k keeps the top flat and makes the edge a cliff.
func edgeWeight(d, k float64) float64 {
	if d >= 1 {
		return 0
	}
	if d <= 0 {
		return 1
	}
	return mathx.Clamp(1-math.Pow(d, k), 0, 1)
}

// orDefault treats v <= 0 as unset. Used for parameters where zero is not
// a meaningful value, such as falloff exponents.
func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func floatOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// warper displaces sample points per operation so radial and path shapes
// are not perfectly symmetric. extent sets the noise wavelength, strength
// the maximum displacement in cells.
type warper struct {
	field    *noise.Field
	strength float64
}

func newWarper(seed int64, extent, strength float64) warper {
	if extent <= 0 || strength <= 0 {
		return warper{}
	}
	f, err := noise.New(seed, noise.Config{
		Octaves:     2,
		Persistence: 0.5,
		Lacunarity:  2,
		Scale:       1.5 / extent,
		Basis:       noise.BasisSimplex,
	})
	if err != nil {
		return warper{}
	}
	return warper{field: f, strength: strength}
}

func (w warper) at(x, z float64) (float64, float64) {
	if w.field == nil || w.strength == 0 {
		return x, z
	}
	return w.field.Warp(x, z, w.strength)
}

// Point is a horizontal grid coordinate used by path operations.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Z float64 `yaml:"z" json:"z"`
}

// segmentDistance returns the distance from p to segment ab and the
// projection parameter t in [0, 1].
func segmentDistance(p, a, b Point) (float64, float64) {
	dx := b.X - a.X
	dz := b.Z - a.Z
	l2 := dx*dx + dz*dz
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Z-a.Z), 0
	}
	t := mathx.Clamp(((p.X-a.X)*dx+(p.Z-a.Z)*dz)/l2, 0, 1)
	cx := a.X + t*dx
	cz := a.Z + t*dz
	return math.Hypot(p.X-cx, p.Z-cz), t
}

// pathDistance is the distance to the nearest segment of a polyline, with
// t the normalized position along the whole path.
func pathDistance(p Point, path []Point) (float64, float64) {
	if len(path) == 1 {
		return math.Hypot(p.X-path[0].X, p.Z-path[0].Z), 0
	}
	best := math.Inf(1)
	bestT := 0.0
	segs := float64(len(path) - 1)
	for i := 0; i+1 < len(path); i++ {
		d, t := segmentDistance(p, path[i], path[i+1])
		if d < best {
			best = d
			bestT = (float64(i) + t) / segs
		}
	}
	return best, bestT
}

// pathBounds returns the integer bounding rectangle of a polyline padded by pad.
func pathBounds(path []Point, pad float64) (x0, z0, x1, z1 int) {
	minX, minZ := math.Inf(1), math.Inf(1)
	maxX, maxZ := math.Inf(-1), math.Inf(-1)
	for _, p := range path {
		minX = math.Min(minX, p.X)
		minZ = math.Min(minZ, p.Z)
		maxX = math.Max(maxX, p.X)
		maxZ = math.Max(maxZ, p.Z)
	}
	return int(math.Floor(minX - pad)), int(math.Floor(minZ - pad)),
		int(math.Ceil(maxX+pad)) + 1, int(math.Ceil(maxZ+pad)) + 1
}

// forRadius visits every in-bounds cell within reach of (cx, cz).
func forRadius(g *Grid, cx, cz, reach float64, fn func(x, z int)) {
	x0, x1 := clip(int(math.Floor(cx-reach)), int(math.Ceil(cx+reach))+1, g.width)
	z0, z1 := clip(int(math.Floor(cz-reach)), int(math.Ceil(cz+reach))+1, g.depth)
	for z := z0; z < z1; z++ {
		for x := x0; x < x1; x++ {
			fn(x, z)
		}
	}
}

// forRect visits the in-bounds cells of [x, x+w)×[z, z+d) padded by pad.
func forRect(g *Grid, x, z, w, d, pad int, fn func(x, z int)) {
	x0, x1 := clip(x-pad, x+w+pad, g.width)
	z0, z1 := clip(z-pad, z+d+pad, g.depth)
	for zz := z0; zz < z1; zz++ {
		for xx := x0; xx < x1; xx++ {
			fn(xx, zz)
		}
	}
}

// rectDistance is the Chebyshev distance from (x, z) to the rectangle; zero inside.
func rectDistance(x, z, rx, rz, w, d int) int {
	dx := 0
	if x < rx {
		dx = rx - x
	} else if x >= rx+w {
		dx = x - (rx + w - 1)
	}
	dz := 0
	if z < rz {
		dz = rz - z
	} else if z >= rz+d {
		dz = z - (rz + d - 1)
	}
	return mathx.MaxInt(dx, dz)
}
