package scene

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelforge.ai/internal/protocol"
	"voxelforge.ai/internal/sim/catalogs"
)

type countingCatalog struct {
	inner      Catalog
	normalize  int
	properties int
}

func (c *countingCatalog) NormalizeAndValidate(id string) (string, error) {
	c.normalize++
	return c.inner.NormalizeAndValidate(id)
}

func (c *countingCatalog) ValidateProperties(id string, props map[string]string) error {
	c.properties++
	return c.inner.ValidateProperties(id, props)
}

func testCatalog(t *testing.T) *catalogs.BlockCatalog {
	t.Helper()
	c, err := catalogs.Default()
	require.NoError(t, err)
	return c
}

func mustBlock(t *testing.T, id string, size Size, opts ...BlockOption) *Block {
	t.Helper()
	b, err := NewBlock(testCatalog(t), id, size, opts...)
	require.NoError(t, err)
	return b
}

func cellsOf(s protocol.Structure) map[protocol.Cell]string {
	out := map[protocol.Cell]string{}
	for c, i := range s.Resolve() {
		out[c] = s.Blocks[i].Type
	}
	return out
}

func TestExportEmptySceneFails(t *testing.T) {
	s := NewScene()
	_, err := s.Export(ExportOptions{})
	assert.True(t, errors.Is(err, ErrEmptyScene))

	eraser, err := NewSphereEraser(2)
	require.NoError(t, err)
	require.NoError(t, s.Add(Group("empty", V(0, 0, 0)), eraser))
	_, err = s.Export(ExportOptions{})
	assert.True(t, errors.Is(err, ErrEmptyScene))
}

func TestSphereEraserRemovesCenterCell(t *testing.T) {
	s := NewScene()
	sphere, err := NewSphereEraser(1)
	require.NoError(t, err)
	sphere.SetPosition(V(1, 1, 1))
	require.NoError(t, s.Add(mustBlock(t, "stone", Size{3, 3, 3}), sphere))

	out, stats, err := s.ExportWithStats(ExportOptions{Origin: OriginMin})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Voxelized)
	assert.Len(t, out.Blocks, 26)
	for _, e := range out.Blocks {
		assert.True(t, e.Unit())
		assert.NotEqual(t, [3]int{1, 1, 1}, e.Start)
	}
	assert.Equal(t, 3, out.Width)
}

func TestCylinderAndBoxErasers(t *testing.T) {
	cyl, err := NewCylinderEraser(1, 3, AxisY)
	require.NoError(t, err)
	cyl.SetPosition(V(1, 0, 1))
	s := NewScene()
	require.NoError(t, s.Add(mustBlock(t, "stone", Size{3, 3, 3}), cyl))
	out, err := s.Export(ExportOptions{})
	require.NoError(t, err)
	assert.Len(t, out.Blocks, 24)
	assert.NotContains(t, cellsOf(out), protocol.Cell{1, 2, 1})

	box, err := NewBoxEraser(Size{1, 3, 3})
	require.NoError(t, err)
	s2 := NewScene()
	require.NoError(t, s2.Add(mustBlock(t, "stone", Size{3, 3, 3}), box))
	out, err = s2.Export(ExportOptions{})
	require.NoError(t, err)
	assert.Len(t, out.Blocks, 18)
	for c := range cellsOf(out) {
		assert.NotEqual(t, 0, c[0])
	}

	xcyl, err := NewCylinderEraser(1.2, 3, AxisX)
	require.NoError(t, err)
	xcyl.SetPosition(V(0, 1, 1))
	s3 := NewScene()
	require.NoError(t, s3.Add(mustBlock(t, "stone", Size{3, 3, 3}), xcyl))
	out, err = s3.Export(ExportOptions{})
	require.NoError(t, err)
	// radial distance < 1.2 in the yz plane keeps only the four yz corners per slice
	assert.Len(t, out.Blocks, 12)
}

func TestEraserScopesToOverlappingBlocks(t *testing.T) {
	s := NewScene()
	far := mustBlock(t, "stone", Size{4, 4, 4}, At(20, 0, 0))
	near := mustBlock(t, "dirt", Size{2, 2, 2})
	sphere, err := NewSphereEraser(1.5)
	require.NoError(t, err)
	sphere.SetPosition(V(0, 0, 0))
	require.NoError(t, s.Add(far, near, sphere))

	out, err := s.Export(ExportOptions{Origin: OriginWorld})
	require.NoError(t, err)

	coarse := 0
	units := 0
	for _, e := range out.Blocks {
		if e.Type == "stone" {
			coarse++
			assert.Equal(t, [3]int{20, 0, 0}, e.Start)
			assert.Equal(t, [3]int{24, 4, 4}, e.End)
		} else {
			units++
			assert.True(t, e.Unit())
		}
	}
	assert.Equal(t, 1, coarse)
	// |cell| < 1.5 removes (0,0,0), the three axis neighbours and the three
	// face diagonals; only (1,1,1) survives.
	assert.Equal(t, 1, units)
}

func TestHollowAndSolidCellCounts(t *testing.T) {
	w, h, d := 4, 5, 6
	shell := 2*(w*h+h*d+w*d) - 4*(w+h+d) + 8

	s := NewScene()
	require.NoError(t, s.Add(mustBlock(t, "glass", Size{w, h, d}, Hollow())))
	out, err := s.Export(ExportOptions{})
	require.NoError(t, err)
	require.Len(t, out.Blocks, 1)
	assert.False(t, out.Blocks[0].Fill)
	assert.Equal(t, shell, out.CellCount())

	solid := NewScene()
	require.NoError(t, solid.Add(mustBlock(t, "glass", Size{w, h, d})))
	out, err = solid.Export(ExportOptions{})
	require.NoError(t, err)
	assert.Equal(t, w*h*d, out.CellCount())

	// A voxelized hollow block only emits shell cells.
	tiny, err := NewSphereEraser(0.5)
	require.NoError(t, err)
	tiny.SetPosition(V(0, 0, 0))
	hollow := NewScene()
	require.NoError(t, hollow.Add(mustBlock(t, "glass", Size{w, h, d}, Hollow()), tiny))
	out, err = hollow.Export(ExportOptions{})
	require.NoError(t, err)
	assert.Len(t, out.Blocks, shell-1)
}

func TestExportBoundsAndOriginNormalization(t *testing.T) {
	s := NewScene()
	g := Group("g", V(-10, 0, 0))
	require.NoError(t, g.Add(mustBlock(t, "stone", Size{2, 2, 2}, At(5, 2, 3))))
	require.NoError(t, s.Add(g, mustBlock(t, "dirt", Size{1, 1, 1}, At(4, 0, 0))))

	out, err := s.Export(ExportOptions{Origin: OriginMin, Padding: 2})
	require.NoError(t, err)
	// x: [-5, 5), y: [0, 4), z: [0, 5)
	assert.Equal(t, 10+4, out.Width)
	assert.Equal(t, 4+4, out.Height)
	assert.Equal(t, 5+4, out.Depth)

	lo, _, ok := out.Bounds()
	require.True(t, ok)
	assert.Equal(t, [3]int{2, 2, 2}, lo)

	world, err := s.Export(ExportOptions{Origin: OriginWorld, Padding: 1})
	require.NoError(t, err)
	assert.Equal(t, [3]int{-4, 3, 4}, world.Blocks[0].Start)
	assert.Equal(t, [3]int{5, 1, 1}, world.Blocks[1].Start)

	dims := Size{32, 32, 32}
	fixed, err := s.Export(ExportOptions{Dimensions: &dims})
	require.NoError(t, err)
	assert.Equal(t, 32, fixed.Width)
	assert.Equal(t, 32, fixed.Height)

	_, err = s.Export(ExportOptions{Origin: "center"})
	assert.True(t, errors.Is(err, ErrInvalidOrigin))
	_, err = s.Export(ExportOptions{Padding: -1})
	assert.True(t, errors.Is(err, ErrInvalidOptions))
}

func TestExportIsIdempotent(t *testing.T) {
	s := NewScene()
	sphere, err := NewSphereEraser(2)
	require.NoError(t, err)
	sphere.SetPosition(V(3, 3, 3))
	require.NoError(t, s.Add(
		mustBlock(t, "stone", Size{6, 6, 6}),
		mustBlock(t, "oak_stairs", Size{1, 1, 1}, At(7, 0, 0), WithProperties(map[string]string{"facing": "east", "half": "top"})),
		sphere,
	))
	a, err := s.Export(ExportOptions{Padding: 1})
	require.NoError(t, err)
	b, err := s.Export(ExportOptions{Padding: 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDedupLastWriteWins(t *testing.T) {
	s := NewScene()
	require.NoError(t, s.Add(
		mustBlock(t, "stone", Size{2, 2, 2}),
		mustBlock(t, "dirt", Size{2, 2, 2}),
		mustBlock(t, "sand", Size{1, 1, 1}, At(5, 0, 0)),
		mustBlock(t, "glass", Size{3, 1, 1}, At(4, 0, 0)),
		mustBlock(t, "bricks", Size{4, 1, 1}, At(10, 0, 0)),
		mustBlock(t, "clay", Size{2, 1, 1}, At(11, 0, 0)),
	))
	out, err := s.Export(ExportOptions{Origin: OriginWorld})
	require.NoError(t, err)

	types := make([]string, 0, len(out.Blocks))
	for _, e := range out.Blocks {
		types = append(types, e.Type)
	}
	// stone is an exact duplicate and sand is fully covered; bricks is only
	// partially covered so it stays ahead of clay.
	assert.Equal(t, []string{"dirt", "glass", "bricks", "clay"}, types)

	cells := cellsOf(out)
	assert.Equal(t, "dirt", cells[protocol.Cell{0, 0, 0}])
	assert.Equal(t, "glass", cells[protocol.Cell{5, 0, 0}])
	assert.Equal(t, "clay", cells[protocol.Cell{11, 0, 0}])
	assert.Equal(t, "bricks", cells[protocol.Cell{10, 0, 0}])
}

func TestVoxelizedCellsOccludedByLaterBlock(t *testing.T) {
	s := NewScene()
	sphere, err := NewSphereEraser(1)
	require.NoError(t, err)
	sphere.SetPosition(V(0, 0, 0))
	require.NoError(t, s.Add(
		mustBlock(t, "stone", Size{2, 1, 1}),
		sphere,
		mustBlock(t, "glass", Size{1, 1, 1}, At(1, 0, 0)),
	))
	out, err := s.Export(ExportOptions{Origin: OriginWorld})
	require.NoError(t, err)
	// stone (0,0,0) is erased and stone (1,0,0) is hidden behind glass. The
	// glass block only touches the sphere's AABB on a face, so it stays coarse.
	require.Len(t, out.Blocks, 1)
	assert.Equal(t, "glass", out.Blocks[0].Type)
}

func TestBlockConstructionValidatesOnce(t *testing.T) {
	cat := &countingCatalog{inner: testCatalog(t)}

	_, err := NewBlock(cat, "oak_stairs", Size{1, 1, 1})
	var pe *catalogs.PropertyError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, []string{"facing", "half"}, pe.Missing)

	_, err = NewBlock(cat, "oak_stairs", Size{1, 1, 1}, WithProperties(map[string]string{"facing": "north"}))
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []string{"half"}, pe.Missing)

	cat.normalize, cat.properties = 0, 0
	b, err := NewBlock(cat, "minecraft:Oak_Stairs", Size{1, 1, 1}, WithProperties(map[string]string{"facing": "north", "half": "bottom"}))
	require.NoError(t, err)
	assert.Equal(t, "oak_stairs", b.ID())
	assert.Equal(t, 1, cat.normalize)
	assert.Equal(t, 1, cat.properties)

	cat.normalize, cat.properties = 0, 0
	require.NoError(t, b.MergeProperties(map[string]string{"shape": "inner_left"}))
	assert.Equal(t, 0, cat.normalize)
	assert.Equal(t, 1, cat.properties)
	assert.Equal(t, "inner_left", b.Properties()["shape"])

	err = b.ReplaceProperties(map[string]string{"facing": "up", "half": "bottom"})
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "north", b.Properties()["facing"])

	_, err = NewBlock(cat, "unobtainium", Size{1, 1, 1})
	assert.True(t, errors.Is(err, catalogs.ErrUnknownBlock))
	_, err = NewBlock(cat, "stone", Size{0, 1, 1})
	assert.True(t, errors.Is(err, ErrInvalidSize))
	_, err = NewBlock(nil, "stone", Size{1, 1, 1})
	assert.True(t, errors.Is(err, ErrNoCatalog))
}

func TestFlattenAccumulatesPositions(t *testing.T) {
	root := NewScene()
	root.SetPosition(V(1, 1, 1))
	outer := Group("outer", V(10, 0, 0))
	inner := Group("inner", V(0, 5, 0))
	b := mustBlock(t, "stone", Size{1, 1, 1}, At(1, 2, 3))
	require.NoError(t, inner.Add(b))
	require.NoError(t, outer.Add(inner))
	require.NoError(t, root.Add(outer))

	ps := Flatten(root, V(0, 0, 100))
	require.Len(t, ps, 1)
	assert.Equal(t, V(12, 8, 104), ps[0].World)

	outer.Translate(V(-10, 0, 0))
	ps = root.Flatten(Vector3{})
	assert.Equal(t, V(2, 8, 4), ps[0].World)
}

func TestAddRejectsReparentingAndCycles(t *testing.T) {
	a := Group("a", Vector3{})
	b := Group("b", Vector3{})
	c := Group("c", Vector3{})
	require.NoError(t, a.Add(b))
	require.NoError(t, b.Add(c))

	assert.True(t, errors.Is(c.Add(a), ErrCycle))
	assert.True(t, errors.Is(a.Add(a), ErrCycle))
	assert.True(t, errors.Is(a.Add(c), ErrAlreadyParented))

	d := Group("d", Vector3{})
	assert.True(t, errors.Is(a.Add(d, d), ErrAlreadyParented))
	assert.Nil(t, d.Parent())

	require.True(t, b.Remove(c))
	assert.Nil(t, c.Parent())
	require.NoError(t, a.Add(c))
	assert.Len(t, a.Children(), 2)
}

func TestParseAxis(t *testing.T) {
	for in, want := range map[string]Axis{"x": AxisX, " Y ": AxisY, "z": AxisZ} {
		got, err := ParseAxis(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAxis("w")
	assert.True(t, errors.Is(err, ErrInvalidAxis))
	_, err = NewCylinderEraser(1, 1, Axis(7))
	assert.True(t, errors.Is(err, ErrInvalidAxis))
}
