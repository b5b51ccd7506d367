package manifest

import (
	"fmt"
	"io"
	"log"
	"strings"

	"voxelforge.ai/internal/protocol"
	"voxelforge.ai/internal/sim/heightmap"
	"voxelforge.ai/internal/sim/placement"
	"voxelforge.ai/internal/sim/scene"
	"voxelforge.ai/internal/sim/terrain"
	"voxelforge.ai/internal/sim/tuning"
)

type Builder struct {
	Catalog scene.Catalog
	// Tuning supplies defaults; nil means tuning.Defaults().
	Tuning *tuning.Tuning
	Logger *log.Logger
}

// Result is a compiled manifest. Terrain is nil when the manifest has none.
type Result struct {
	Structure protocol.Structure
	Stats     scene.ExportStats
	Scene     *scene.Scene
	Terrain   *terrain.Terrain
}

func (b Builder) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.New(io.Discard, "", 0)
}

func (b Builder) tuning() tuning.Tuning {
	if b.Tuning != nil {
		return *b.Tuning
	}
	return tuning.Defaults()
}

// Build compiles m and returns the exported structure.
func (b Builder) Build(m Manifest) (protocol.Structure, error) {
	res, err := b.Compile(m)
	if err != nil {
		return protocol.Structure{}, err
	}
	return res.Structure, nil
}

// Compile generates the terrain, assembles the scene and exports it.
func (b Builder) Compile(m Manifest) (Result, error) {
	if b.Catalog == nil {
		return Result{}, fmt.Errorf("manifest: %w", scene.ErrNoCatalog)
	}
	if err := m.Validate(); err != nil {
		return Result{}, err
	}
	logger := b.logger()
	tu := b.tuning()
	name := m.Name
	if name == "" {
		name = "unnamed"
	}

	var res Result
	res.Scene = scene.NewScene()
	if m.Terrain != nil {
		tr, err := b.buildTerrain(*m.Terrain, tu)
		if err != nil {
			return Result{}, fmt.Errorf("manifest %s: %w", name, err)
		}
		res.Terrain = tr
		if m.Terrain.Emit == nil || *m.Terrain.Emit {
			obj, err := tr.Object(b.Catalog)
			if err != nil {
				return Result{}, fmt.Errorf("manifest %s: %w", name, err)
			}
			if err := res.Scene.Add(obj); err != nil {
				return Result{}, err
			}
		}
		logger.Printf("manifest %s: terrain %dx%d biome=%s features=%d decorations=%d",
			name, tr.Width(), tr.Depth(), tr.Config().Biome, len(m.Terrain.Features), len(tr.Decorations()))
	}

	for i, n := range m.Nodes {
		node, err := b.buildNode(n, res.Terrain, tu, fmt.Sprintf("scene[%d]", i))
		if err != nil {
			return Result{}, fmt.Errorf("manifest %s: %w", name, err)
		}
		if err := res.Scene.Add(node); err != nil {
			return Result{}, fmt.Errorf("manifest %s: %w", name, err)
		}
	}

	opts, err := exportOptions(m.Export, tu)
	if err != nil {
		return Result{}, fmt.Errorf("manifest %s: %w", name, err)
	}
	res.Structure, res.Stats, err = res.Scene.ExportWithStats(opts)
	if err != nil {
		return Result{}, fmt.Errorf("manifest %s: %w", name, err)
	}
	logger.Printf("manifest %s: exported %dx%dx%d entries=%d placements=%d erasers=%d dropped=%d",
		name, res.Structure.Width, res.Structure.Height, res.Structure.Depth,
		len(res.Structure.Blocks), res.Stats.Placements, res.Stats.Erasers, res.Stats.Dropped)
	return res, nil
}

func (b Builder) buildTerrain(spec TerrainSpec, tu tuning.Tuning) (*terrain.Terrain, error) {
	cfg := tu.Terrain
	if !spec.Config.IsZero() {
		if err := spec.Config.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("terrain config: %w", err)
		}
	}
	tr, err := terrain.New(cfg)
	if err != nil {
		return nil, err
	}
	for i, f := range spec.Features {
		if err := addFeature(tr, f); err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, f.Type, err)
		}
	}
	if err := tr.Generate(); err != nil {
		return nil, err
	}
	for i, d := range spec.Decorations {
		if _, err := tr.Decorate(d); err != nil {
			return nil, fmt.Errorf("decoration pass %d: %w", i, err)
		}
	}
	return tr, nil
}

func addFeature(tr *terrain.Terrain, f Feature) error {
	switch op := f.Op.(type) {
	case heightmap.Mountain:
		return tr.AddMountain(op, f.Snow, f.SnowLine)
	case heightmap.Ridge:
		return tr.AddRidge(op)
	case heightmap.Plateau:
		return tr.AddPlateau(op)
	case heightmap.Valley:
		return tr.AddValley(op)
	case heightmap.Gorge:
		return tr.AddGorge(op)
	case heightmap.Crater:
		return tr.AddCrater(op, f.Water, f.Level)
	case heightmap.Lake:
		return tr.AddLake(op, f.Level)
	case heightmap.River:
		return tr.AddRiver(op, f.Water)
	case heightmap.Ocean:
		return tr.AddOcean(op, f.Level)
	case nil:
		return fmt.Errorf("%w: feature without operation", ErrInvalidManifest)
	default:
		return tr.HeightMap().Apply(op)
	}
}

func (b Builder) buildNode(n Node, tr *terrain.Terrain, tu tuning.Tuning, path string) (scene.Node, error) {
	at := scene.V(n.At[0], n.At[1], n.At[2])
	switch strings.ToLower(strings.TrimSpace(n.Type)) {
	case "block":
		opts := []scene.BlockOption{scene.At(at.X, at.Y, at.Z)}
		if n.Hollow {
			opts = append(opts, scene.Hollow())
		}
		if len(n.Properties) > 0 {
			opts = append(opts, scene.WithProperties(n.Properties))
		}
		blk, err := scene.NewBlock(b.Catalog, n.ID, sizeOf(n.Size), opts...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return blk, nil

	case "eraser":
		e, err := buildEraser(n)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		e.SetPosition(at)
		return e, nil

	case "group":
		return b.buildGroup(n, at, tr, tu, path)

	case "place":
		g, err := b.buildGroup(n, scene.Vector3{}, tr, tu, path)
		if err != nil {
			return nil, err
		}
		opts := placement.DropOptions{
			FillBottom: tu.Placement.FillBottom,
			FillBlock:  tu.Placement.FillBlock,
			Catalog:    b.Catalog,
		}
		if n.FillBottom != nil {
			opts.FillBottom = *n.FillBottom
		}
		if n.FillBlock != "" {
			opts.FillBlock = n.FillBlock
		}
		out, err := placement.DropToSurface(g, tr, n.X, n.Z, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s: unknown node type %q", ErrInvalidManifest, path, n.Type)
}

func (b Builder) buildGroup(n Node, at scene.Vector3, tr *terrain.Terrain, tu tuning.Tuning, path string) (*scene.Object3D, error) {
	g := scene.Group(n.Name, at)
	for i, c := range n.Children {
		child, err := b.buildNode(c, tr, tu, fmt.Sprintf("%s.children[%d]", path, i))
		if err != nil {
			return nil, err
		}
		if err := g.Add(child); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return g, nil
}

func buildEraser(n Node) (*scene.Eraser, error) {
	switch strings.ToLower(strings.TrimSpace(n.Shape)) {
	case "sphere":
		return scene.NewSphereEraser(n.Radius)
	case "box":
		return scene.NewBoxEraser(sizeOf(n.Size))
	case "cylinder":
		axis := n.Axis
		if axis == "" {
			axis = "y"
		}
		a, err := scene.ParseAxis(axis)
		if err != nil {
			return nil, err
		}
		return scene.NewCylinderEraser(n.Radius, n.Height, a)
	default:
		return nil, fmt.Errorf("%w: unknown eraser shape %q", ErrInvalidManifest, n.Shape)
	}
}

func sizeOf(s [3]int) scene.Size { return scene.Size{W: s[0], H: s[1], D: s[2]} }

func exportOptions(spec *ExportSpec, tu tuning.Tuning) (scene.ExportOptions, error) {
	opts := tu.ExportOptions()
	if spec == nil {
		return opts, nil
	}
	if spec.Origin != "" {
		o, err := scene.ParseOrigin(spec.Origin)
		if err != nil {
			return scene.ExportOptions{}, err
		}
		opts.Origin = o
	}
	if spec.Padding != nil {
		opts.Padding = *spec.Padding
	}
	if spec.Dimensions != nil {
		d := sizeOf(*spec.Dimensions)
		opts.Dimensions = &d
	}
	return opts, nil
}
