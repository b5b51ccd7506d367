package scene

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidAxis, s)
	}
}

func (a Axis) unit() mgl64.Vec3 {
	switch a {
	case AxisX:
		return mgl64.Vec3{1, 0, 0}
	case AxisZ:
		return mgl64.Vec3{0, 0, 1}
	default:
		return mgl64.Vec3{0, 1, 0}
	}
}

type EraserShape int

const (
	ShapeSphere EraserShape = iota + 1
	ShapeBox
	ShapeCylinder
)

func (s EraserShape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeBox:
		return "box"
	case ShapeCylinder:
		return "cylinder"
	default:
		return "unknown"
	}
}

// Eraser is a negative volume. Its position is the sphere center, the box
// min corner, or the center of the cylinder's base cap.
type Eraser struct {
	node
	shape  EraserShape
	radius float64
	size   Size
	height float64
	axis   Axis
}

func NewSphereEraser(radius float64) (*Eraser, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("%w: sphere radius must be > 0", ErrInvalidSize)
	}
	return &Eraser{shape: ShapeSphere, radius: radius}, nil
}

func NewBoxEraser(size Size) (*Eraser, error) {
	if err := size.Validate(); err != nil {
		return nil, err
	}
	return &Eraser{shape: ShapeBox, size: size}, nil
}

func NewCylinderEraser(radius, height float64, axis Axis) (*Eraser, error) {
	if !(radius > 0) || !(height > 0) {
		return nil, fmt.Errorf("%w: cylinder radius and height must be > 0", ErrInvalidSize)
	}
	if axis < AxisX || axis > AxisZ {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAxis, axis)
	}
	return &Eraser{shape: ShapeCylinder, radius: radius, height: height, axis: axis}, nil
}

func (e *Eraser) Shape() EraserShape { return e.shape }
func (e *Eraser) Radius() float64    { return e.radius }
func (e *Eraser) Height() float64    { return e.height }
func (e *Eraser) Axis() Axis         { return e.axis }
func (e *Eraser) BoxSize() Size      { return e.size }

func vec(v Vector3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

// bounds returns the closed world-space AABB of the eraser placed at origin.
func (e *Eraser) bounds(origin Vector3) (lo, hi mgl64.Vec3) {
	o := vec(origin)
	switch e.shape {
	case ShapeSphere:
		r := mgl64.Vec3{e.radius, e.radius, e.radius}
		return o.Sub(r), o.Add(r)
	case ShapeBox:
		return o, o.Add(vec(e.size.Vector()))
	default:
		ax := e.axis.unit()
		radial := mgl64.Vec3{e.radius, e.radius, e.radius}.Sub(ax.Mul(e.radius))
		return o.Sub(radial), o.Add(radial).Add(ax.Mul(e.height))
	}
}

// overlaps reports whether the eraser's AABB meets the block cuboid
// [lo, hi) with positive volume.
func (e *Eraser) overlaps(origin, lo, hi Vector3) bool {
	elo, ehi := e.bounds(origin)
	blo, bhi := vec(lo), vec(hi)
	for a := 0; a < 3; a++ {
		if elo[a] >= bhi[a] || ehi[a] <= blo[a] {
			return false
		}
	}
	return true
}

// contains is the exact membership test for the integer cell c.
func (e *Eraser) contains(origin, c Vector3) bool {
	d := vec(c).Sub(vec(origin))
	switch e.shape {
	case ShapeSphere:
		return d.Len() < e.radius
	case ShapeBox:
		return d[0] >= 0 && d[1] >= 0 && d[2] >= 0 &&
			d[0] < float64(e.size.W) && d[1] < float64(e.size.H) && d[2] < float64(e.size.D)
	default:
		ax := e.axis.unit()
		along := d.Dot(ax)
		if along < 0 || along >= e.height {
			return false
		}
		return d.Sub(ax.Mul(along)).Len() < e.radius
	}
}
