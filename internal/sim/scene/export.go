package scene

import (
	"fmt"
	"strings"

	"voxelforge.ai/internal/protocol"
)

type Origin string

const (
	// OriginMin shifts the minimum corner to (padding, padding, padding).
	OriginMin Origin = "min"
	// OriginWorld keeps world coordinates and only adds padding.
	OriginWorld Origin = "world"
)

func ParseOrigin(s string) (Origin, error) {
	switch o := Origin(strings.ToLower(strings.TrimSpace(s))); o {
	case "", OriginMin:
		return OriginMin, nil
	case OriginWorld:
		return OriginWorld, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOrigin, s)
	}
}

type ExportOptions struct {
	Origin  Origin
	Padding int
	// Dimensions, when set, replaces the computed width/height/depth.
	Dimensions *Size
}

// ExportStats describes one compilation.
type ExportStats struct {
	Placements  int
	Erasers     int
	Voxelized   int
	UnitEntries int
	Dropped     int
}

// Export compiles the scene. It does not modify the graph, so exporting an
// unchanged scene twice yields equal structures.
func (s *Scene) Export(opts ExportOptions) (protocol.Structure, error) {
	out, _, err := s.ExportWithStats(opts)
	return out, err
}

func (s *Scene) ExportWithStats(opts ExportOptions) (protocol.Structure, ExportStats, error) {
	var stats ExportStats
	origin, err := ParseOrigin(string(opts.Origin))
	if err != nil {
		return protocol.Structure{}, stats, err
	}
	if opts.Padding < 0 {
		return protocol.Structure{}, stats, fmt.Errorf("%w: padding must be >= 0", ErrInvalidOptions)
	}
	if opts.Dimensions != nil {
		if err := opts.Dimensions.Validate(); err != nil {
			return protocol.Structure{}, stats, fmt.Errorf("%w: dimensions: %v", ErrInvalidOptions, err)
		}
	}

	placements := Flatten(s, Vector3{})
	lo, hi, ok := Bounds(placements)
	if !ok {
		return protocol.Structure{}, stats, ErrEmptyScene
	}

	pad := Vector3{opts.Padding, opts.Padding, opts.Padding}
	offset := pad
	if origin == OriginMin {
		offset = pad.Sub(lo)
	}

	var erasers []Placement
	for _, p := range placements {
		if p.Eraser != nil {
			erasers = append(erasers, p)
		} else {
			stats.Placements++
		}
	}
	stats.Erasers = len(erasers)

	entries := make([]protocol.Entry, 0, stats.Placements)
	for _, p := range placements {
		if p.Block == nil {
			continue
		}
		b := p.Block
		end := p.World.Add(b.size.Vector())
		var hits []Placement
		for _, e := range erasers {
			if e.Eraser.overlaps(e.World, p.World, end) {
				hits = append(hits, e)
			}
		}
		if len(hits) == 0 {
			entries = append(entries, entry(p.World.Add(offset), end.Add(offset), b, b.fill))
			continue
		}
		stats.Voxelized++
		coarse := entry(p.World, end, b, b.fill)
		coarse.Cells(func(x, y, z int) {
			c := Vector3{x, y, z}
			for _, e := range hits {
				if e.Eraser.contains(e.World, c) {
					return
				}
			}
			w := c.Add(offset)
			entries = append(entries, entry(w, w.Add(Vector3{1, 1, 1}), b, true))
			stats.UnitEntries++
		})
	}

	kept := dedup(entries)
	stats.Dropped = len(entries) - len(kept)

	span := hi.Sub(lo).Add(pad).Add(pad)
	if opts.Dimensions != nil {
		span = opts.Dimensions.Vector()
	}
	return protocol.Structure{
		Width:  span.X,
		Height: span.Y,
		Depth:  span.Z,
		Blocks: kept,
	}, stats, nil
}

func entry(start, end Vector3, b *Block, fill bool) protocol.Entry {
	return protocol.Entry{
		Start:      start.Array(),
		End:        end.Array(),
		Type:       b.id,
		Properties: map[string]string(b.props.Clone()),
		Fill:       fill,
	}
}

// dedup drops entries whose every cell is overwritten by a later entry.
// Scanning from the last entry backwards, each entry claims its cells in an
// occupancy index; an entry with no unclaimed cell is dropped. Survivors keep
// traversal order, so resolving the result with last-write-wins gives the
// same cell map as resolving the input.
func dedup(entries []protocol.Entry) []protocol.Entry {
	claimed := make(map[protocol.Cell]struct{})
	keep := make([]bool, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Unit() {
			c := protocol.Cell(e.Start)
			if _, taken := claimed[c]; !taken {
				claimed[c] = struct{}{}
				keep[i] = true
			}
			continue
		}
		fresh := false
		e.Cells(func(x, y, z int) {
			c := protocol.Cell{x, y, z}
			if _, taken := claimed[c]; !taken {
				claimed[c] = struct{}{}
				fresh = true
			}
		})
		keep[i] = fresh
	}
	out := make([]protocol.Entry, 0, len(entries))
	for i, e := range entries {
		if keep[i] {
			out = append(out, e)
		}
	}
	return out
}
