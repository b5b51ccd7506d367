package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrInvalidStructure = errors.New("protocol: invalid structure")

//go:embed schemas/structure.schema.json
var structureSchema []byte

const structureSchemaURL = "https://voxelforge.ai/schemas/structure.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func structureValidator() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(structureSchemaURL, bytes.NewReader(structureSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile(structureSchemaURL)
	})
	return schema, schemaErr
}

// Entry is a cuboid [Start, End) of one block type. A hollow entry
// (Fill false) covers only the cells on its boundary.
type Entry struct {
	Start      [3]int            `json:"start"`
	End        [3]int            `json:"end"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
	Fill       bool              `json:"fill"`
}

type Structure struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Depth  int     `json:"depth"`
	Blocks []Entry `json:"blocks"`
}

func (e Entry) Size() [3]int {
	return [3]int{e.End[0] - e.Start[0], e.End[1] - e.Start[1], e.End[2] - e.Start[2]}
}

func (e Entry) Unit() bool {
	s := e.Size()
	return s[0] == 1 && s[1] == 1 && s[2] == 1
}

// OnShell reports whether (x, y, z) lies on a boundary face of the entry.
func (e Entry) OnShell(x, y, z int) bool {
	return x == e.Start[0] || x == e.End[0]-1 ||
		y == e.Start[1] || y == e.End[1]-1 ||
		z == e.Start[2] || z == e.End[2]-1
}

// Cells calls fn for every occupied cell in x, y, z order.
func (e Entry) Cells(fn func(x, y, z int)) {
	for x := e.Start[0]; x < e.End[0]; x++ {
		for y := e.Start[1]; y < e.End[1]; y++ {
			for z := e.Start[2]; z < e.End[2]; z++ {
				if !e.Fill && !e.OnShell(x, y, z) {
					continue
				}
				fn(x, y, z)
			}
		}
	}
}

// CellCount returns the number of occupied cells without iterating them.
func (e Entry) CellCount() int {
	s := e.Size()
	total := s[0] * s[1] * s[2]
	if e.Fill {
		return total
	}
	inner := 1
	for _, n := range s {
		if n <= 2 {
			return total
		}
		inner *= n - 2
	}
	return total - inner
}

func (s Structure) Validate() error {
	if s.Width < 0 || s.Height < 0 || s.Depth < 0 {
		return fmt.Errorf("%w: negative dimensions", ErrInvalidStructure)
	}
	for i, e := range s.Blocks {
		if e.Type == "" {
			return fmt.Errorf("%w: blocks[%d]: empty type", ErrInvalidStructure, i)
		}
		for a := 0; a < 3; a++ {
			if e.End[a] <= e.Start[a] {
				return fmt.Errorf("%w: blocks[%d]: end must exceed start on every axis", ErrInvalidStructure, i)
			}
		}
	}
	return nil
}

// ValidateJSON checks raw against the structure schema.
func ValidateJSON(raw []byte) error {
	sch, err := structureValidator()
	if err != nil {
		return fmt.Errorf("structure schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	return nil
}

func Decode(raw []byte) (Structure, error) {
	if err := ValidateJSON(raw); err != nil {
		return Structure{}, err
	}
	var s Structure
	if err := json.Unmarshal(raw, &s); err != nil {
		return Structure{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	if err := s.Validate(); err != nil {
		return Structure{}, err
	}
	return s, nil
}

func (s Structure) Encode() ([]byte, error) {
	if s.Blocks == nil {
		s.Blocks = []Entry{}
	}
	return json.Marshal(s)
}

type Cell [3]int

// Resolve maps every occupied cell to the index of the last entry covering it.
func (s Structure) Resolve() map[Cell]int {
	out := make(map[Cell]int)
	for i, e := range s.Blocks {
		e.Cells(func(x, y, z int) {
			out[Cell{x, y, z}] = i
		})
	}
	return out
}

// CellCount is the number of distinct occupied cells.
func (s Structure) CellCount() int {
	return len(s.Resolve())
}

// Bounds returns the min corner and exclusive max corner over all entries.
func (s Structure) Bounds() (lo, hi [3]int, ok bool) {
	for i, e := range s.Blocks {
		for a := 0; a < 3; a++ {
			if i == 0 || e.Start[a] < lo[a] {
				lo[a] = e.Start[a]
			}
			if i == 0 || e.End[a] > hi[a] {
				hi[a] = e.End[a]
			}
		}
	}
	return lo, hi, len(s.Blocks) > 0
}
