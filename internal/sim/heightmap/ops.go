package heightmap

import (
	"errors"
	"fmt"
	"math"

	"voxelforge.ai/internal/sim/mathx"
	"voxelforge.ai/internal/sim/noise"
)

var ErrInvalidOperation = errors.New("heightmap: invalid operation")

// Operation is one entry of the ordered log replayed by Generate.
type Operation interface {
	Kind() string
	validate() error
	apply(g *Grid)
}

type seeded interface {
	opSeed() int64
	withSeed(seed int64) Operation
}

func invalid(kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidOperation, kind, fmt.Sprintf(format, args...))
}

func validatePath(kind string, path []Point, width float64) error {
	if len(path) < 2 {
		return invalid(kind, "path needs at least 2 points (got %d)", len(path))
	}
	if !(width > 0) {
		return invalid(kind, "width must be > 0")
	}
	return nil
}

func validateRect(kind string, w, d int) error {
	if w <= 0 || d <= 0 {
		return invalid(kind, "area must be positive (got %dx%d)", w, d)
	}
	return nil
}

// roughness returns a ridged multiplier in [1-amount, 1].
func roughness(seed int64, extent, amount float64) func(x, z float64) float64 {
	if amount <= 0 {
		return func(float64, float64) float64 { return 1 }
	}
	f, err := noise.New(seed, noise.Config{Octaves: 3, Persistence: 0.5, Lacunarity: 2, Scale: 4 / extent})
	if err != nil {
		return func(float64, float64) float64 { return 1 }
	}
	return func(x, z float64) float64 {
		ridged := 1 - math.Abs(f.Sample(x, z))
		return 1 - amount + amount*ridged
	}
}

// Mountain raises a warped radial peak.
type Mountain struct {
	X       float64 `yaml:"x"`
	Z       float64 `yaml:"z"`
	Radius  float64 `yaml:"radius"`
	Height  float64 `yaml:"height"`
	Seed    int64   `yaml:"seed"`
	Falloff float64 `yaml:"falloff"`
	// Roughness in [0, 1] scales the ridged surface noise. nil means 0.15.
	Roughness *float64 `yaml:"roughness"`
}

func (m Mountain) Kind() string                  { return "mountain" }
func (m Mountain) opSeed() int64                 { return m.Seed }
func (m Mountain) withSeed(seed int64) Operation { m.Seed = seed; return m }

func (m Mountain) validate() error {
	if !(m.Radius > 0) {
		return invalid(m.Kind(), "radius must be > 0")
	}
	return validateRoughness(m.Kind(), m.Roughness)
}

func validateRoughness(kind string, r *float64) error {
	if r != nil && (*r < 0 || *r > 1) {
		return invalid(kind, "roughness must be in [0,1]")
	}
	return nil
}

func (m Mountain) apply(g *Grid) {
	k := orDefault(m.Falloff, 1.2)
	wp := newWarper(m.Seed, m.Radius, m.Radius*0.25)
	rough := roughness(m.Seed+1, m.Radius, floatOr(m.Roughness, 0.15))
	forRadius(g, m.X, m.Z, m.Radius*1.25+1, func(x, z int) {
		px, pz := wp.at(float64(x), float64(z))
		w := edgeWeight(math.Hypot(px-m.X, pz-m.Z)/m.Radius, k)
		if w == 0 {
			return
		}
		g.add(x, z, m.Height*w*rough(float64(x), float64(z)))
	})
}

// Ridge raises a crest along a path, tapering toward both ends.
type Ridge struct {
	Path    []Point `yaml:"path"`
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Seed    int64   `yaml:"seed"`
	Falloff float64 `yaml:"falloff"`
	// Roughness nil means 0.2.
	Roughness *float64 `yaml:"roughness"`
}

func (r Ridge) Kind() string                  { return "ridge" }
func (r Ridge) opSeed() int64                 { return r.Seed }
func (r Ridge) withSeed(seed int64) Operation { r.Seed = seed; return r }

func (r Ridge) validate() error {
	if err := validatePath(r.Kind(), r.Path, r.Width); err != nil {
		return err
	}
	return validateRoughness(r.Kind(), r.Roughness)
}

func (r Ridge) apply(g *Grid) {
	k := orDefault(r.Falloff, 1.5)
	half := r.Width / 2
	wp := newWarper(r.Seed, r.Width*2, half*0.25)
	rough := roughness(r.Seed+1, r.Width, floatOr(r.Roughness, 0.2))
	x0, z0, x1, z1 := pathBounds(r.Path, half*1.25+1)
	forRect(g, x0, z0, x1-x0, z1-z0, 0, func(x, z int) {
		px, pz := wp.at(float64(x), float64(z))
		dist, t := pathDistance(Point{X: px, Z: pz}, r.Path)
		w := edgeWeight(dist/half, k)
		if w == 0 {
			return
		}
		taper := 0.55 + 0.45*math.Sin(math.Pi*t)
		g.add(x, z, r.Height*w*taper*rough(float64(x), float64(z)))
	})
}

// Plateau pulls an area toward a flat top Height above its current mean.
type Plateau struct {
	X       float64 `yaml:"x"`
	Z       float64 `yaml:"z"`
	Radius  float64 `yaml:"radius"`
	Height  float64 `yaml:"height"`
	Seed    int64   `yaml:"seed"`
	Falloff float64 `yaml:"falloff"`
}

func (p Plateau) Kind() string                  { return "plateau" }
func (p Plateau) opSeed() int64                 { return p.Seed }
func (p Plateau) withSeed(seed int64) Operation { p.Seed = seed; return p }

func (p Plateau) validate() error {
	if !(p.Radius > 0) {
		return invalid(p.Kind(), "radius must be > 0")
	}
	return nil
}

func (p Plateau) apply(g *Grid) {
	k := orDefault(p.Falloff, 8)
	inner := int(math.Max(1, p.Radius*0.5))
	base, ok := g.Average(int(p.X)-inner, int(p.Z)-inner, inner*2+1, inner*2+1)
	if !ok {
		return
	}
	top := base + p.Height
	wp := newWarper(p.Seed, p.Radius, p.Radius*0.2)
	forRadius(g, p.X, p.Z, p.Radius*1.2+1, func(x, z int) {
		px, pz := wp.at(float64(x), float64(z))
		w := edgeWeight(math.Hypot(px-p.X, pz-p.Z)/p.Radius, k)
		if w == 0 {
			return
		}
		g.set(x, z, mathx.Lerp(g.At(x, z), top, w))
	})
}

// Valley lowers a warped radial basin.
type Valley struct {
	X       float64 `yaml:"x"`
	Z       float64 `yaml:"z"`
	Radius  float64 `yaml:"radius"`
	Depth   float64 `yaml:"depth"`
	Seed    int64   `yaml:"seed"`
	Falloff float64 `yaml:"falloff"`
}

func (v Valley) Kind() string                  { return "valley" }
func (v Valley) opSeed() int64                 { return v.Seed }
func (v Valley) withSeed(seed int64) Operation { v.Seed = seed; return v }

func (v Valley) validate() error {
	if !(v.Radius > 0) {
		return invalid(v.Kind(), "radius must be > 0")
	}
	return nil
}

func (v Valley) apply(g *Grid) {
	k := orDefault(v.Falloff, 2)
	wp := newWarper(v.Seed, v.Radius, v.Radius*0.25)
	forRadius(g, v.X, v.Z, v.Radius*1.25+1, func(x, z int) {
		px, pz := wp.at(float64(x), float64(z))
		w := edgeWeight(math.Hypot(px-v.X, pz-v.Z)/v.Radius, k)
		if w == 0 {
			return
		}
		g.add(x, z, -v.Depth*w)
	})
}

// Gorge cuts a steep-walled trench along a path.
type Gorge struct {
	Path    []Point `yaml:"path"`
	Width   float64 `yaml:"width"`
	Depth   float64 `yaml:"depth"`
	Seed    int64   `yaml:"seed"`
	Falloff float64 `yaml:"falloff"`
}

func (gr Gorge) Kind() string                  { return "gorge" }
func (gr Gorge) opSeed() int64                 { return gr.Seed }
func (gr Gorge) withSeed(seed int64) Operation { gr.Seed = seed; return gr }
func (gr Gorge) validate() error               { return validatePath(gr.Kind(), gr.Path, gr.Width) }

func (gr Gorge) apply(g *Grid) {
	k := orDefault(gr.Falloff, 6)
	half := gr.Width / 2
	wp := newWarper(gr.Seed, gr.Width*3, half*0.5)
	x0, z0, x1, z1 := pathBounds(gr.Path, half*1.5+1)
	forRect(g, x0, z0, x1-x0, z1-z0, 0, func(x, z int) {
		px, pz := wp.at(float64(x), float64(z))
		dist, _ := pathDistance(Point{X: px, Z: pz}, gr.Path)
		w := edgeWeight(dist/half, k)
		if w == 0 {
			return
		}
		g.add(x, z, -gr.Depth*w)
	})
}

// Crater carves a bowl with a raised rim.
type Crater struct {
	X         float64 `yaml:"x"`
	Z         float64 `yaml:"z"`
	Radius    float64 `yaml:"radius"`
	Depth     float64 `yaml:"depth"`
	RimHeight float64 `yaml:"rim_height"`
	Seed      int64   `yaml:"seed"`
	Falloff   float64 `yaml:"falloff"`
}

func (c Crater) Kind() string                  { return "crater" }
func (c Crater) opSeed() int64                 { return c.Seed }
func (c Crater) withSeed(seed int64) Operation { c.Seed = seed; return c }

func (c Crater) validate() error {
	if !(c.Radius > 0) {
		return invalid(c.Kind(), "radius must be > 0")
	}
	if c.RimHeight < 0 {
		return invalid(c.Kind(), "rim_height must be >= 0")
	}
	return nil
}

func (c Crater) warper() warper { return newWarper(c.Seed, c.Radius, c.Radius*0.1) }

func (c Crater) apply(g *Grid) {
	k := orDefault(c.Falloff, 2)
	wp := c.warper()
	forRadius(g, c.X, c.Z, c.Radius*1.7+1, func(x, z int) {
		px, pz := wp.at(float64(x), float64(z))
		d := math.Hypot(px-c.X, pz-c.Z) / c.Radius
		delta := -c.Depth * edgeWeight(d, k)
		if c.RimHeight > 0 && d < 1.6 {
			r := (d - 1) / 0.2
			delta += c.RimHeight * math.Exp(-r*r)
		}
		g.add(x, z, delta)
	})
}

// Footprint returns each cell's warped normalized distance from the crater
// center; cells beyond reach hold +Inf.
func (c Crater) Footprint(width, depth int) []float64 {
	return radialFootprint(width, depth, c.X, c.Z, c.Radius, c.warper())
}

// RimMin is the lowest elevation on the crater rim.
func (c Crater) RimMin(g *Grid) (float64, bool) {
	return ringMin(g, c.Footprint(g.width, g.depth), 0.85, 1.25)
}

// River carves a meandering channel along a path.
type River struct {
	Path    []Point `yaml:"path"`
	Width   float64 `yaml:"width"`
	Depth   float64 `yaml:"depth"`
	Seed    int64   `yaml:"seed"`
	Falloff float64 `yaml:"falloff"`
	Meander float64 `yaml:"meander"`
}

func (r River) Kind() string                  { return "river" }
func (r River) opSeed() int64                 { return r.Seed }
func (r River) withSeed(seed int64) Operation { r.Seed = seed; return r }
func (r River) validate() error {
	if err := validatePath(r.Kind(), r.Path, r.Width); err != nil {
		return err
	}
	if r.Meander < 0 {
		return invalid(r.Kind(), "meander must be >= 0")
	}
	return nil
}

func (r River) warper() warper {
	meander := r.Meander
	if meander == 0 {
		meander = r.Width * 0.5
	}
	return newWarper(r.Seed, math.Max(r.Width*4, 16), meander)
}

func (r River) apply(g *Grid) {
	channel := r.Channel(g.width, g.depth)
	for i, w := range channel {
		if w > 0 {
			g.values[i] -= r.Depth * w
		}
	}
}

// Channel returns the per-cell carve weight in [0, 1] over a width×depth grid.
func (r River) Channel(width, depth int) []float64 {
	out := make([]float64, width*depth)
	k := orDefault(r.Falloff, 2)
	half := r.Width / 2
	wp := r.warper()
	x0, z0, x1, z1 := pathBounds(r.Path, half+wp.strength+1)
	x0, x1 = clip(x0, x1, width)
	z0, z1 = clip(z0, z1, depth)
	for z := z0; z < z1; z++ {
		for x := x0; x < x1; x++ {
			px, pz := wp.at(float64(x), float64(z))
			dist, _ := pathDistance(Point{X: px, Z: pz}, r.Path)
			out[x+z*width] = edgeWeight(dist/half, k)
		}
	}
	return out
}

func (r River) segmentAt(wp warper, x, z int) int {
	px, pz := wp.at(float64(x), float64(z))
	_, t := pathDistance(Point{X: px, Z: pz}, r.Path)
	segs := len(r.Path) - 1
	return mathx.ClampInt(int(t*float64(segs)), 0, segs-1)
}

// Banks returns the channel weights of g and, for every channel cell, the
// lowest elevation of g on the channel edge of the path segment nearest to
// that cell. Edge cells lie outside the channel next to a channel cell.
// Cells outside the channel, or whose segment has no edge, hold +Inf.
func (r River) Banks(g *Grid) (channel, bank []float64) {
	channel = r.Channel(g.width, g.depth)
	wp := r.warper()
	lows := make([]float64, len(r.Path)-1)
	for i := range lows {
		lows[i] = math.Inf(1)
	}
	inChannel := func(x, z int) bool {
		return g.InBounds(x, z) && channel[g.index(x, z)] > 0
	}
	for z := 0; z < g.depth; z++ {
		for x := 0; x < g.width; x++ {
			if inChannel(x, z) {
				continue
			}
			if !inChannel(x+1, z) && !inChannel(x-1, z) && !inChannel(x, z+1) && !inChannel(x, z-1) {
				continue
			}
			s := r.segmentAt(wp, x, z)
			lows[s] = math.Min(lows[s], g.At(x, z))
		}
	}

	bank = make([]float64, len(channel))
	for i, w := range channel {
		bank[i] = math.Inf(1)
		if w > 0 {
			bank[i] = lows[r.segmentAt(wp, i%g.width, i/g.width)]
		}
	}
	return channel, bank
}

// Lake lowers a flat-floored basin meant to hold water.
type Lake struct {
	X       float64 `yaml:"x"`
	Z       float64 `yaml:"z"`
	Radius  float64 `yaml:"radius"`
	Depth   float64 `yaml:"depth"`
	Seed    int64   `yaml:"seed"`
	Falloff float64 `yaml:"falloff"`
}

func (l Lake) Kind() string                  { return "lake" }
func (l Lake) opSeed() int64                 { return l.Seed }
func (l Lake) withSeed(seed int64) Operation { l.Seed = seed; return l }

func (l Lake) validate() error {
	if !(l.Radius > 0) {
		return invalid(l.Kind(), "radius must be > 0")
	}
	return nil
}

func (l Lake) warper() warper { return newWarper(l.Seed, l.Radius, l.Radius*0.15) }

func (l Lake) apply(g *Grid) {
	k := orDefault(l.Falloff, 3)
	for i, d := range l.Footprint(g.width, g.depth) {
		if w := edgeWeight(d, k); w > 0 {
			g.values[i] -= l.Depth * w
		}
	}
}

func (l Lake) Footprint(width, depth int) []float64 {
	return radialFootprint(width, depth, l.X, l.Z, l.Radius, l.warper())
}

// RimMin is the lowest elevation on the shore ring just outside the basin.
func (l Lake) RimMin(g *Grid) (float64, bool) {
	return ringMin(g, l.Footprint(g.width, g.depth), 1.0, 1.35)
}

func radialFootprint(width, depth int, cx, cz, radius float64, wp warper) []float64 {
	out := make([]float64, width*depth)
	for i := range out {
		out[i] = math.Inf(1)
	}
	reach := radius*1.7 + wp.strength + 1
	x0, x1 := clip(int(math.Floor(cx-reach)), int(math.Ceil(cx+reach))+1, width)
	z0, z1 := clip(int(math.Floor(cz-reach)), int(math.Ceil(cz+reach))+1, depth)
	for z := z0; z < z1; z++ {
		for x := x0; x < x1; x++ {
			px, pz := wp.at(float64(x), float64(z))
			out[x+z*width] = math.Hypot(px-cx, pz-cz) / radius
		}
	}
	return out
}

func ringMin(g *Grid, footprint []float64, lo, hi float64) (float64, bool) {
	best := math.Inf(1)
	for i, d := range footprint {
		if d >= lo && d <= hi && g.values[i] < best {
			best = g.values[i]
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best, true
}

// Flatten sets a rectangle to Height, blending Blend cells outward.
type Flatten struct {
	X      int     `yaml:"x"`
	Z      int     `yaml:"z"`
	W      int     `yaml:"w"`
	D      int     `yaml:"d"`
	Height float64 `yaml:"height"`
	Blend  int     `yaml:"blend"`
}

func (f Flatten) Kind() string    { return "flatten" }
func (f Flatten) validate() error { return validateRect(f.Kind(), f.W, f.D) }
func (f Flatten) apply(g *Grid)   { flattenTo(g, f.X, f.Z, f.W, f.D, f.Blend, f.Height) }

// FlattenForStructure levels a rectangle to its own rounded mean at the
// moment the operation is replayed.
type FlattenForStructure struct {
	X     int `yaml:"x"`
	Z     int `yaml:"z"`
	W     int `yaml:"w"`
	D     int `yaml:"d"`
	Blend int `yaml:"blend"`
}

func (f FlattenForStructure) Kind() string    { return "flatten_for_structure" }
func (f FlattenForStructure) validate() error { return validateRect(f.Kind(), f.W, f.D) }

func (f FlattenForStructure) apply(g *Grid) {
	avg, ok := g.Average(f.X, f.Z, f.W, f.D)
	if !ok {
		return
	}
	flattenTo(g, f.X, f.Z, f.W, f.D, f.Blend, math.Round(avg))
}

func flattenTo(g *Grid, x, z, w, d, blend int, height float64) {
	if blend < 0 {
		blend = 0
	}
	forRect(g, x, z, w, d, blend, func(xx, zz int) {
		dist := rectDistance(xx, zz, x, z, w, d)
		if dist == 0 {
			g.set(xx, zz, height)
			return
		}
		t := 1 - float64(dist)/float64(blend+1)
		g.set(xx, zz, mathx.Lerp(g.At(xx, zz), height, t))
	})
}

// Smooth box-blurs the whole grid Iterations times over a (2r+1)² window.
type Smooth struct {
	Radius     int `yaml:"radius"`
	Iterations int `yaml:"iterations"`
}

func (s Smooth) Kind() string { return "smooth" }

func (s Smooth) validate() error {
	if s.Radius < 1 || s.Iterations < 1 {
		return invalid(s.Kind(), "radius and iterations must be >= 1")
	}
	return nil
}

func (s Smooth) apply(g *Grid) {
	next := make([]float64, len(g.values))
	for it := 0; it < s.Iterations; it++ {
		for z := 0; z < g.depth; z++ {
			for x := 0; x < g.width; x++ {
				avg, _ := g.Average(x-s.Radius, z-s.Radius, s.Radius*2+1, s.Radius*2+1)
				next[g.index(x, z)] = avg
			}
		}
		g.values, next = next, g.values
	}
}

// Raise adds Amount over a rectangle, tapering across Blend cells.
type Raise struct {
	X      int     `yaml:"x"`
	Z      int     `yaml:"z"`
	W      int     `yaml:"w"`
	D      int     `yaml:"d"`
	Amount float64 `yaml:"amount"`
	Blend  int     `yaml:"blend"`
}

func (r Raise) Kind() string    { return "raise" }
func (r Raise) validate() error { return validateRect(r.Kind(), r.W, r.D) }
func (r Raise) apply(g *Grid)   { offsetArea(g, r.X, r.Z, r.W, r.D, r.Blend, r.Amount) }

// Carve lowers a rectangle by Depth, tapering across Blend cells.
type Carve struct {
	X     int     `yaml:"x"`
	Z     int     `yaml:"z"`
	W     int     `yaml:"w"`
	D     int     `yaml:"d"`
	Depth float64 `yaml:"depth"`
	Blend int     `yaml:"blend"`
}

func (c Carve) Kind() string    { return "carve" }
func (c Carve) validate() error { return validateRect(c.Kind(), c.W, c.D) }
func (c Carve) apply(g *Grid)   { offsetArea(g, c.X, c.Z, c.W, c.D, c.Blend, -c.Depth) }

func offsetArea(g *Grid, x, z, w, d, blend int, amount float64) {
	if blend < 0 {
		blend = 0
	}
	forRect(g, x, z, w, d, blend, func(xx, zz int) {
		dist := rectDistance(xx, zz, x, z, w, d)
		t := 1 - float64(dist)/float64(blend+1)
		g.add(xx, zz, amount*t)
	})
}

type Edge string

const (
	EdgeNorth Edge = "north"
	EdgeSouth Edge = "south"
	EdgeEast  Edge = "east"
	EdgeWest  Edge = "west"
)

// Ocean lowers the map toward one edge. Width is the shelf width in cells
// measured from that edge; the coastline is warped.
type Ocean struct {
	Edge    Edge    `yaml:"edge"`
	Width   float64 `yaml:"width"`
	Depth   float64 `yaml:"depth"`
	Seed    int64   `yaml:"seed"`
	Falloff float64 `yaml:"falloff"`
}

func (o Ocean) Kind() string                  { return "ocean" }
func (o Ocean) opSeed() int64                 { return o.Seed }
func (o Ocean) withSeed(seed int64) Operation { o.Seed = seed; return o }

func (o Ocean) validate() error {
	switch o.Edge {
	case EdgeNorth, EdgeSouth, EdgeEast, EdgeWest:
	default:
		return invalid(o.Kind(), "unknown edge %q", o.Edge)
	}
	if !(o.Width > 0) {
		return invalid(o.Kind(), "width must be > 0")
	}
	return nil
}

func (o Ocean) apply(g *Grid) {
	k := orDefault(o.Falloff, 1.5)
	for i, d := range o.Footprint(g.width, g.depth) {
		if w := edgeWeight(d, k); w > 0 {
			g.values[i] -= o.Depth * w
		}
	}
}

// Footprint returns each cell's warped distance from the edge divided by
// Width. Cells under 1 are part of the ocean.
func (o Ocean) Footprint(width, depth int) []float64 {
	out := make([]float64, width*depth)
	wp := newWarper(o.Seed, math.Max(o.Width*2, 8), o.Width*0.3)
	for z := 0; z < depth; z++ {
		for x := 0; x < width; x++ {
			px, pz := wp.at(float64(x), float64(z))
			var dist float64
			switch o.Edge {
			case EdgeNorth:
				dist = pz
			case EdgeSouth:
				dist = float64(depth-1) - pz
			case EdgeWest:
				dist = px
			default:
				dist = float64(width-1) - px
			}
			out[x+z*width] = math.Max(dist, 0) / o.Width
		}
	}
	return out
}
