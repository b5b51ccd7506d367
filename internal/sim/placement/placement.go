// Package placement seats scene structures on generated terrain.
package placement

import (
	"errors"
	"fmt"

	"voxelforge.ai/internal/sim/heightmap"
	"voxelforge.ai/internal/sim/scene"
	"voxelforge.ai/internal/sim/terrain"
)

var ErrOutsideTerrain = errors.New("placement: footprint outside terrain")

type DropOptions struct {
	// FillBottom adds filler columns between the terrain surface and the
	// structure's lowest cell in every footprint column.
	FillBottom bool
	FillBlock  string
	Catalog    scene.Catalog
}

// Surface is the subset of terrain used for placement.
type Surface interface {
	HeightAt(x, z int) (int, error)
}

var _ Surface = (*terrain.Terrain)(nil)

// MaxSurface returns the highest surface under the w×d footprint whose
// corner is (x, z).
func MaxSurface(s Surface, x, z, w, d int) (int, error) {
	best := 0
	for dz := 0; dz < d; dz++ {
		for dx := 0; dx < w; dx++ {
			h, err := s.HeightAt(x+dx, z+dz)
			if err != nil {
				if errors.Is(err, heightmap.ErrOutOfBounds) {
					return 0, fmt.Errorf("%w: (%d,%d)", ErrOutsideTerrain, x+dx, z+dz)
				}
				return 0, err
			}
			if (dx == 0 && dz == 0) || h > best {
				best = h
			}
		}
	}
	return best, nil
}

// DropToSurface seats obj so that the min x/z corner of its footprint lands
// on terrain column (x, z) and its lowest occupied cell sits one block above
// the highest surface under the footprint. obj must not have a parent; it is
// added to the returned group.
func DropToSurface(obj *scene.Object3D, s Surface, x, z int, opts DropOptions) (*scene.Object3D, error) {
	if obj == nil {
		return nil, fmt.Errorf("placement: nil structure")
	}
	ps := scene.Flatten(obj, scene.Vector3{})
	lo, hi, ok := scene.Bounds(ps)
	if !ok {
		return nil, fmt.Errorf("placement: %w", scene.ErrEmptyScene)
	}
	if opts.FillBottom {
		if opts.Catalog == nil {
			return nil, fmt.Errorf("placement: fill bottom: %w", scene.ErrNoCatalog)
		}
		if opts.FillBlock == "" {
			opts.FillBlock = "dirt"
		}
	}

	w, d := hi.X-lo.X, hi.Z-lo.Z
	top, err := MaxSurface(s, x, z, w, d)
	if err != nil {
		return nil, err
	}
	offsetY := top + 1 - lo.Y

	result := scene.Group("drop_to_surface", scene.Vector3{})
	seat := scene.Group("structure", scene.V(x-lo.X, offsetY, z-lo.Z))
	if err := seat.Add(obj); err != nil {
		return nil, fmt.Errorf("placement: %w", err)
	}
	if err := result.Add(seat); err != nil {
		return nil, err
	}
	if !opts.FillBottom {
		return result, nil
	}

	// Lowest occupied structure-local y per footprint column.
	lowest := make([]int, w*d)
	seen := make([]bool, w*d)
	for _, p := range ps {
		if p.Block == nil {
			continue
		}
		size := p.Block.Size()
		for bz := p.World.Z; bz < p.World.Z+size.D; bz++ {
			for bx := p.World.X; bx < p.World.X+size.W; bx++ {
				i := (bx - lo.X) + (bz-lo.Z)*w
				if !seen[i] || p.World.Y < lowest[i] {
					lowest[i] = p.World.Y
					seen[i] = true
				}
			}
		}
	}

	for i := range lowest {
		if !seen[i] {
			continue
		}
		tx, tz := x+i%w, z+i/w
		surface, err := s.HeightAt(tx, tz)
		if err != nil {
			return nil, err
		}
		bottom := lowest[i] + offsetY
		gap := bottom - (surface + 1)
		if gap <= 0 {
			continue
		}
		b, err := scene.NewBlock(opts.Catalog, opts.FillBlock, scene.Size{W: 1, H: gap, D: 1}, scene.At(tx, surface+1, tz))
		if err != nil {
			return nil, fmt.Errorf("placement: fill block: %w", err)
		}
		if err := result.Add(b); err != nil {
			return nil, err
		}
	}
	return result, nil
}
