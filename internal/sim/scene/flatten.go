package scene

// Placement is a block or eraser with its resolved world position.
type Placement struct {
	World  Vector3
	Block  *Block
	Eraser *Eraser
}

// Flatten walks root depth-first, summing local positions from parentOffset
// down to every block and eraser. Order follows child insertion order.
func Flatten(root Node, parentOffset Vector3) []Placement {
	var out []Placement
	flattenInto(root, parentOffset, &out)
	return out
}

func flattenInto(n Node, offset Vector3, out *[]Placement) {
	world := offset.Add(n.Position())
	switch v := n.(type) {
	case *Block:
		*out = append(*out, Placement{World: world, Block: v})
	case *Eraser:
		*out = append(*out, Placement{World: world, Eraser: v})
	case *Object3D:
		for _, c := range v.children {
			flattenInto(c, world, out)
		}
	case *Scene:
		for _, c := range v.children {
			flattenInto(c, world, out)
		}
	}
}

func (o *Object3D) Flatten(parentOffset Vector3) []Placement {
	return Flatten(o, parentOffset)
}

// Bounds returns the min corner and exclusive max corner over the block
// placements. Erasers do not contribute.
func Bounds(ps []Placement) (lo, hi Vector3, ok bool) {
	for _, p := range ps {
		if p.Block == nil {
			continue
		}
		end := p.World.Add(p.Block.size.Vector())
		if !ok {
			lo, hi, ok = p.World, end, true
			continue
		}
		lo = lo.Min(p.World)
		hi = hi.Max(end)
	}
	return lo, hi, ok
}
