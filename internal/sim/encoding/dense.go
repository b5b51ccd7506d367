// Package encoding converts exported structures to and from a dense,
// palette-indexed voxel grid stored as run-length encoded indices.
package encoding

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"voxelforge.ai/internal/protocol"
)

var ErrOutOfGrid = errors.New("encoding: cell outside structure dimensions")

// Air is palette index 0.
const Air = "air"

// Dense is a W×H×D grid in y, z, x order (x varies fastest). Palette entries
// are block states: an id optionally followed by sorted [key=value,...]
// properties.
type Dense struct {
	Width   int      `json:"width"`
	Height  int      `json:"height"`
	Depth   int      `json:"depth"`
	Palette []string `json:"palette"`
	Data    string   `json:"data"`
}

func (d Dense) index(x, y, z int) int { return (y*d.Depth+z)*d.Width + x }

// BlockState renders id and props as "id[k=v,...]" with keys sorted.
func BlockState(id string, props map[string]string) string {
	if len(props) == 0 {
		return id
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(id)
	b.WriteByte('[')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(props[k])
	}
	b.WriteByte(']')
	return b.String()
}

func ParseBlockState(s string) (string, map[string]string, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return s, nil, nil
	}
	if !strings.HasSuffix(s, "]") || open == 0 {
		return "", nil, fmt.Errorf("encoding: bad block state %q", s)
	}
	props := map[string]string{}
	for _, kv := range strings.Split(s[open+1:len(s)-1], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return "", nil, fmt.Errorf("encoding: bad block state %q", s)
		}
		props[k] = v
	}
	return s[:open], props, nil
}

// Encode resolves s (last entry wins per cell) into a dense grid. Every
// occupied cell must lie inside [0, Width)×[0, Height)×[0, Depth).
func Encode(s protocol.Structure) (Dense, error) {
	d := Dense{Width: s.Width, Height: s.Height, Depth: s.Depth, Palette: []string{Air}}
	cells := make([]uint16, s.Width*s.Height*s.Depth)
	lookup := map[string]uint16{Air: 0}

	for c, i := range s.Resolve() {
		x, y, z := c[0], c[1], c[2]
		if x < 0 || y < 0 || z < 0 || x >= s.Width || y >= s.Height || z >= s.Depth {
			return Dense{}, fmt.Errorf("%w: (%d,%d,%d) in %dx%dx%d", ErrOutOfGrid, x, y, z, s.Width, s.Height, s.Depth)
		}
		state := BlockState(s.Blocks[i].Type, s.Blocks[i].Properties)
		idx, ok := lookup[state]
		if !ok {
			idx = uint16(len(d.Palette))
			lookup[state] = idx
			d.Palette = append(d.Palette, state)
		}
		cells[d.index(x, y, z)] = idx
	}
	d = d.sortPalette(cells)
	d.Data = EncodeRLE(cells)
	return d, nil
}

// sortPalette orders non-air states by name so equal structures encode
// identically regardless of map iteration order, remapping cells in place.
func (d Dense) sortPalette(cells []uint16) Dense {
	states := append([]string(nil), d.Palette[1:]...)
	sort.Strings(states)
	remap := make([]uint16, len(d.Palette))
	pos := make(map[string]uint16, len(states))
	for i, s := range states {
		pos[s] = uint16(i + 1)
	}
	for old, s := range d.Palette {
		if old == 0 {
			continue
		}
		remap[old] = pos[s]
	}
	for i, c := range cells {
		cells[i] = remap[c]
	}
	d.Palette = append([]string{Air}, states...)
	return d
}

// Cells decodes the grid into palette indices.
func (d Dense) Cells() ([]uint16, error) {
	n := d.Width * d.Height * d.Depth
	cells, err := DecodeRLE(d.Data, n)
	if err != nil {
		return nil, err
	}
	if len(cells) != n {
		return nil, fmt.Errorf("encoding: decoded %d cells, want %d", len(cells), n)
	}
	for i, c := range cells {
		if int(c) >= len(d.Palette) {
			return nil, fmt.Errorf("encoding: cell %d uses palette index %d of %d", i, c, len(d.Palette))
		}
	}
	return cells, nil
}

// Structure expands the grid into one unit entry per non-air cell, in grid
// order.
func (d Dense) Structure() (protocol.Structure, error) {
	cells, err := d.Cells()
	if err != nil {
		return protocol.Structure{}, err
	}
	type state struct {
		id    string
		props map[string]string
	}
	states := make([]state, len(d.Palette))
	for i, p := range d.Palette {
		id, props, err := ParseBlockState(p)
		if err != nil {
			return protocol.Structure{}, err
		}
		states[i] = state{id, props}
	}

	out := protocol.Structure{Width: d.Width, Height: d.Height, Depth: d.Depth, Blocks: []protocol.Entry{}}
	for y := 0; y < d.Height; y++ {
		for z := 0; z < d.Depth; z++ {
			for x := 0; x < d.Width; x++ {
				c := cells[d.index(x, y, z)]
				if c == 0 {
					continue
				}
				st := states[c]
				out.Blocks = append(out.Blocks, protocol.Entry{
					Start:      [3]int{x, y, z},
					End:        [3]int{x + 1, y + 1, z + 1},
					Type:       st.id,
					Properties: st.props,
					Fill:       true,
				})
			}
		}
	}
	return out, nil
}
