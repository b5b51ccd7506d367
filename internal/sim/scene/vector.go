package scene

import (
	"fmt"

	"voxelforge.ai/internal/sim/mathx"
)

// Vector3 is an integer block coordinate or offset.
type Vector3 struct {
	X, Y, Z int
}

func V(x, y, z int) Vector3 { return Vector3{X: x, Y: y, Z: z} }

func (v Vector3) Add(o Vector3) Vector3 { return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vector3) Sub(o Vector3) Vector3 { return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vector3) Min(o Vector3) Vector3 {
	return Vector3{mathx.MinInt(v.X, o.X), mathx.MinInt(v.Y, o.Y), mathx.MinInt(v.Z, o.Z)}
}

func (v Vector3) Max(o Vector3) Vector3 {
	return Vector3{mathx.MaxInt(v.X, o.X), mathx.MaxInt(v.Y, o.Y), mathx.MaxInt(v.Z, o.Z)}
}

func (v Vector3) Array() [3]int { return [3]int{v.X, v.Y, v.Z} }

func (v Vector3) String() string { return fmt.Sprintf("(%d,%d,%d)", v.X, v.Y, v.Z) }

// Size is a cuboid extent in blocks.
type Size struct {
	W, H, D int
}

func (s Size) Validate() error {
	if s.W <= 0 || s.H <= 0 || s.D <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidSize, s.W, s.H, s.D)
	}
	return nil
}

func (s Size) Vector() Vector3 { return Vector3{s.W, s.H, s.D} }

func (s Size) Volume() int { return s.W * s.H * s.D }
