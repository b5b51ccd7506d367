// Package manifest reads declarative build documents: an optional terrain
// with its features and decoration passes, a tree of scene nodes and export
// options. A Builder compiles a manifest into a protocol.Structure.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"voxelforge.ai/internal/sim/heightmap"
	"voxelforge.ai/internal/sim/terrain"
)

var (
	ErrInvalidManifest = errors.New("manifest: invalid")
	ErrNoTerrain       = errors.New("manifest: place requires terrain")
)

type Manifest struct {
	Name    string       `yaml:"name"`
	Terrain *TerrainSpec `yaml:"terrain"`
	Nodes   []Node       `yaml:"scene"`
	Export  *ExportSpec  `yaml:"export"`
}

type TerrainSpec struct {
	// Config overlays the tuning terrain defaults.
	Config yaml.Node `yaml:"config"`

	Features    []Feature                   `yaml:"features"`
	Decorations []terrain.DecorationOptions `yaml:"decorations"`
	// Emit adds the terrain blocks to the scene. Defaults to true.
	Emit *bool `yaml:"emit"`
}

// Feature is one terrain operation in caller order. Op holds the decoded
// heightmap operation; the remaining fields only apply to some types.
type Feature struct {
	Type     string
	Op       heightmap.Operation
	Snow     bool
	SnowLine *int
	Water    bool
	Level    *int
}

type featureHeader struct {
	Type     string `yaml:"type"`
	Snow     bool   `yaml:"snow"`
	SnowLine *int   `yaml:"snow_line"`
	Water    *bool  `yaml:"water"`
	Level    *int   `yaml:"level"`
}

func (f *Feature) UnmarshalYAML(value *yaml.Node) error {
	var h featureHeader
	if err := value.Decode(&h); err != nil {
		return err
	}
	kind := strings.ToLower(strings.TrimSpace(h.Type))
	op, err := decodeOperation(kind, value)
	if err != nil {
		return err
	}
	*f = Feature{Type: kind, Op: op, Snow: h.Snow, SnowLine: h.SnowLine, Level: h.Level}
	switch kind {
	case "river":
		f.Water = h.Water == nil || *h.Water
	default:
		f.Water = h.Water != nil && *h.Water
	}
	return nil
}

var operationDecoders = map[string]func(*yaml.Node) (heightmap.Operation, error){
	"mountain":              decodeAs[heightmap.Mountain],
	"ridge":                 decodeAs[heightmap.Ridge],
	"plateau":               decodeAs[heightmap.Plateau],
	"valley":                decodeAs[heightmap.Valley],
	"gorge":                 decodeAs[heightmap.Gorge],
	"crater":                decodeAs[heightmap.Crater],
	"river":                 decodeAs[heightmap.River],
	"lake":                  decodeAs[heightmap.Lake],
	"ocean":                 decodeAs[heightmap.Ocean],
	"flatten":               decodeAs[heightmap.Flatten],
	"flatten_for_structure": decodeAs[heightmap.FlattenForStructure],
	"smooth":                decodeAs[heightmap.Smooth],
	"raise":                 decodeAs[heightmap.Raise],
	"carve":                 decodeAs[heightmap.Carve],
}

func decodeAs[T heightmap.Operation](value *yaml.Node) (heightmap.Operation, error) {
	var op T
	if err := value.Decode(&op); err != nil {
		return nil, err
	}
	return op, nil
}

func decodeOperation(kind string, value *yaml.Node) (heightmap.Operation, error) {
	dec, ok := operationDecoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown feature type %q", ErrInvalidManifest, kind)
	}
	op, err := dec(value)
	if err != nil {
		return nil, fmt.Errorf("feature %s: %w", kind, err)
	}
	return op, nil
}

// Node is one scene node. Type selects which fields apply:
//
//	block:  id, size, at, hollow, properties
//	group:  name, at, children
//	eraser: shape (sphere|box|cylinder), at, radius, size, height, axis
//	place:  x, z, fill_bottom, fill_block, children (dropped onto the terrain;
//	        top level only, since x and z are terrain columns)
type Node struct {
	Type       string            `yaml:"type"`
	Name       string            `yaml:"name"`
	At         [3]int            `yaml:"at"`
	ID         string            `yaml:"id"`
	Size       [3]int            `yaml:"size"`
	Hollow     bool              `yaml:"hollow"`
	Properties map[string]string `yaml:"properties"`
	Shape      string            `yaml:"shape"`
	Radius     float64           `yaml:"radius"`
	Height     float64           `yaml:"height"`
	Axis       string            `yaml:"axis"`
	X          int               `yaml:"x"`
	Z          int               `yaml:"z"`
	FillBottom *bool             `yaml:"fill_bottom"`
	FillBlock  string            `yaml:"fill_block"`
	Children   []Node            `yaml:"children"`
}

type ExportSpec struct {
	Origin     string  `yaml:"origin"`
	Padding    *int    `yaml:"padding"`
	Dimensions *[3]int `yaml:"dimensions"`
}

func Load(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	m, err := Parse(raw)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func Parse(raw []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, err
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks node types and the terrain requirement of place nodes.
// Geometry is checked when the nodes are built.
func (m Manifest) Validate() error {
	if m.Terrain == nil && len(m.Nodes) == 0 {
		return fmt.Errorf("%w: no terrain and no scene nodes", ErrInvalidManifest)
	}
	return validateNodes(m.Nodes, m.Terrain != nil, "scene")
}

func validateNodes(nodes []Node, hasTerrain bool, path string) error {
	for i, n := range nodes {
		at := fmt.Sprintf("%s[%d]", path, i)
		switch strings.ToLower(strings.TrimSpace(n.Type)) {
		case "block":
			if n.ID == "" {
				return fmt.Errorf("%w: %s: block needs an id", ErrInvalidManifest, at)
			}
			if len(n.Children) > 0 {
				return fmt.Errorf("%w: %s: block cannot have children", ErrInvalidManifest, at)
			}
		case "eraser":
			if len(n.Children) > 0 {
				return fmt.Errorf("%w: %s: eraser cannot have children", ErrInvalidManifest, at)
			}
		case "group":
		case "place":
			if !hasTerrain {
				return fmt.Errorf("%w: %s", ErrNoTerrain, at)
			}
			if path != "scene" {
				return fmt.Errorf("%w: %s: place must be a top-level node", ErrInvalidManifest, at)
			}
		default:
			return fmt.Errorf("%w: %s: unknown node type %q", ErrInvalidManifest, at, n.Type)
		}
		if err := validateNodes(n.Children, hasTerrain, at+".children"); err != nil {
			return err
		}
	}
	return nil
}
