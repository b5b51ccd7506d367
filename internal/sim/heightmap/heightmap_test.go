package heightmap

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelforge.ai/internal/sim/noise"
)

func testMap(t *testing.T) *HeightMap {
	t.Helper()
	h, err := New(Config{Width: 64, Depth: 64, BaseHeight: 64, HeightRange: 16, Seed: 1, Noise: noise.DefaultConfig()})
	require.NoError(t, err)
	return h
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{Width: 0, Depth: 8, Noise: noise.DefaultConfig()})
	assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)

	bad := noise.DefaultConfig()
	bad.Octaves = 0
	_, err = New(Config{Width: 8, Depth: 8, Noise: bad})
	assert.True(t, errors.Is(err, noise.ErrInvalidConfig), "got %v", err)
}

func TestQueriesFailUntilGenerated(t *testing.T) {
	h := testMap(t)
	assert.Equal(t, StateUnconfigured, h.State())

	_, err := h.Get(1, 1)
	assert.True(t, errors.Is(err, ErrNotGenerated))

	h.Generate()
	assert.Equal(t, StateGenerated, h.State())
	_, err = h.Get(1, 1)
	require.NoError(t, err)

	require.NoError(t, h.RaiseArea(0, 0, 4, 4, 3, 0))
	assert.Equal(t, StateConfigured, h.State())
	for _, q := range []func() error{
		func() error { _, err := h.Get(1, 1); return err },
		func() error { _, err := h.HeightAt(1, 1); return err },
		func() error { _, err := h.AverageHeight(0, 0, 4, 4); return err },
		func() error { _, err := h.Values(); return err },
		func() error { _, err := h.Digest(); return err },
	} {
		assert.True(t, errors.Is(q(), ErrNotGenerated))
	}
}

func TestGetOutOfBounds(t *testing.T) {
	h := testMap(t)
	h.Generate()
	_, err := h.Get(64, 0)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
	_, err = h.AverageHeight(100, 100, 4, 4)
	assert.True(t, errors.Is(err, ErrOutOfBounds))
}

func TestGenerateDeterministic(t *testing.T) {
	build := func() [32]byte {
		h := testMap(t)
		require.NoError(t, h.AddMountain(Mountain{X: 20, Z: 20, Radius: 12, Height: 20}))
		require.NoError(t, h.AddRidge(Ridge{Path: []Point{{X: 5, Z: 50}, {X: 30, Z: 40}, {X: 60, Z: 55}}, Width: 8, Height: 10}))
		require.NoError(t, h.AddRiver(River{Path: []Point{{X: 0, Z: 10}, {X: 63, Z: 30}}, Width: 5, Depth: 4}))
		require.NoError(t, h.AddCrater(Crater{X: 45, Z: 45, Radius: 8, Depth: 6, RimHeight: 2}))
		require.NoError(t, h.Smooth(1, 2))
		h.Generate()
		d, err := h.Digest()
		require.NoError(t, err)
		return d
	}
	assert.Equal(t, build(), build())
}

func TestRegenerateIsStable(t *testing.T) {
	h := testMap(t)
	require.NoError(t, h.AddValley(Valley{X: 10, Z: 10, Radius: 6, Depth: 4}))
	h.Generate()
	a, err := h.Digest()
	require.NoError(t, err)
	h.Generate()
	b, err := h.Digest()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLaterValleyDominatesMountain(t *testing.T) {
	mountainOnly := testMap(t)
	require.NoError(t, mountainOnly.AddMountain(Mountain{X: 32, Z: 32, Radius: 20, Height: 30, Seed: 5}))
	mountainOnly.Generate()
	peak, err := mountainOnly.Get(32, 32)
	require.NoError(t, err)

	both := testMap(t)
	require.NoError(t, both.AddMountain(Mountain{X: 32, Z: 32, Radius: 20, Height: 30, Seed: 5}))
	require.NoError(t, both.AddValley(Valley{X: 32, Z: 32, Radius: 10, Depth: 10, Seed: 5}))
	both.Generate()
	got, err := both.Get(32, 32)
	require.NoError(t, err)

	base := testMap(t)
	base.Generate()
	raw, err := base.Get(32, 32)
	require.NoError(t, err)

	assert.Greater(t, peak, raw)
	assert.Less(t, got, peak)
}

func TestOperationOrderMatters(t *testing.T) {
	flattenLast := testMap(t)
	require.NoError(t, flattenLast.AddMountain(Mountain{X: 32, Z: 32, Radius: 16, Height: 20, Seed: 9}))
	require.NoError(t, flattenLast.FlattenArea(28, 28, 8, 8, 70, 0))
	flattenLast.Generate()

	mountainLast := testMap(t)
	require.NoError(t, mountainLast.FlattenArea(28, 28, 8, 8, 70, 0))
	require.NoError(t, mountainLast.AddMountain(Mountain{X: 32, Z: 32, Radius: 16, Height: 20, Seed: 9}))
	mountainLast.Generate()

	a, err := flattenLast.Get(31, 31)
	require.NoError(t, err)
	b, err := mountainLast.Get(31, 31)
	require.NoError(t, err)
	assert.Equal(t, 70.0, a)
	assert.Greater(t, b, 70.0)
}

func TestFlattenForStructureLevelsToRoundedMean(t *testing.T) {
	h := testMap(t)
	require.NoError(t, h.AddMountain(Mountain{X: 20, Z: 20, Radius: 10, Height: 12, Seed: 3}))
	require.NoError(t, h.FlattenForStructure(15, 15, 6, 5, 2))
	h.Generate()

	first, err := h.Get(15, 15)
	require.NoError(t, err)
	assert.Equal(t, math.Round(first), first)
	for z := 15; z < 20; z++ {
		for x := 15; x < 21; x++ {
			v, err := h.Get(x, z)
			require.NoError(t, err)
			assert.Equal(t, first, v, "(%d,%d)", x, z)
		}
	}
}

func TestSmoothNarrowsRange(t *testing.T) {
	spread := func(h *HeightMap) float64 {
		vals, err := h.Values()
		require.NoError(t, err)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range vals {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		return hi - lo
	}

	rough := testMap(t)
	require.NoError(t, rough.AddCrater(Crater{X: 32, Z: 32, Radius: 10, Depth: 12, RimHeight: 4, Seed: 2}))
	rough.Generate()

	smooth := testMap(t)
	require.NoError(t, smooth.AddCrater(Crater{X: 32, Z: 32, Radius: 10, Depth: 12, RimHeight: 4, Seed: 2}))
	require.NoError(t, smooth.Smooth(2, 3))
	smooth.Generate()

	assert.LessOrEqual(t, spread(smooth), spread(rough))
}

func TestRaiseAndCarveAreas(t *testing.T) {
	ref := testMap(t)
	ref.Generate()
	before, err := ref.Get(10, 10)
	require.NoError(t, err)

	h := testMap(t)
	require.NoError(t, h.RaiseArea(8, 8, 4, 4, 5, 1))
	require.NoError(t, h.CarveArea(40, 40, 4, 4, 3, 0))
	h.Generate()

	raised, err := h.Get(10, 10)
	require.NoError(t, err)
	assert.InDelta(t, before+5, raised, 1e-9)

	refCarved, err := ref.Get(41, 41)
	require.NoError(t, err)
	carved, err := h.Get(41, 41)
	require.NoError(t, err)
	assert.InDelta(t, refCarved-3, carved, 1e-9)
}

func TestApplyValidatesAndDerivesSeeds(t *testing.T) {
	h := testMap(t)
	err := h.AddMountain(Mountain{X: 1, Z: 1, Radius: 0, Height: 5})
	assert.True(t, errors.Is(err, ErrInvalidOperation), "got %v", err)
	err = h.AddRiver(River{Path: []Point{{X: 1, Z: 1}}, Width: 3, Depth: 2})
	assert.True(t, errors.Is(err, ErrInvalidOperation), "got %v", err)
	err = h.Smooth(0, 1)
	assert.True(t, errors.Is(err, ErrInvalidOperation), "got %v", err)
	assert.Equal(t, StateUnconfigured, h.State())

	require.NoError(t, h.AddMountain(Mountain{X: 1, Z: 1, Radius: 4, Height: 5}))
	require.NoError(t, h.AddMountain(Mountain{X: 1, Z: 1, Radius: 4, Height: 5, Seed: 77}))
	ops := h.Operations()
	require.Len(t, ops, 2)
	assert.NotZero(t, ops[0].(Mountain).Seed)
	assert.Equal(t, int64(77), ops[1].(Mountain).Seed)
}

func TestCraterAndLakeRims(t *testing.T) {
	h := testMap(t)
	crater := Crater{X: 32, Z: 32, Radius: 8, Depth: 10, RimHeight: 3, Seed: 4}
	lake := Lake{X: 12, Z: 50, Radius: 6, Depth: 5, Seed: 6}
	require.NoError(t, h.AddCrater(crater))
	require.NoError(t, h.AddLake(lake))
	h.Generate()
	g, err := h.Grid()
	require.NoError(t, err)

	rim, ok := crater.RimMin(g)
	require.True(t, ok)
	floor := g.At(32, 32)
	assert.Less(t, floor, rim)

	shore, ok := lake.RimMin(g)
	require.True(t, ok)
	assert.Less(t, g.At(12, 50), shore)
}

func TestRiverChannelCoversPath(t *testing.T) {
	r := River{Path: []Point{{X: 0, Z: 32}, {X: 63, Z: 32}}, Width: 6, Depth: 3, Seed: 11}
	ch := r.Channel(64, 64)
	require.Len(t, ch, 64*64)
	total := 0.0
	for _, w := range ch {
		assert.GreaterOrEqual(t, w, 0.0)
		assert.LessOrEqual(t, w, 1.0)
		total += w
	}
	assert.Greater(t, total, 0.0)
	assert.Zero(t, ch[5+2*64])
}

func TestZeroRoughnessKeepsMountainSmooth(t *testing.T) {
	flat := func(op Operation) *Grid {
		h, err := New(Config{Width: 32, Depth: 32, BaseHeight: 64, Seed: 1, Noise: noise.DefaultConfig()})
		require.NoError(t, err)
		require.NoError(t, h.Apply(op))
		h.Generate()
		g, err := h.Grid()
		require.NoError(t, err)
		return g
	}
	zero := 0.0
	smooth := flat(Mountain{X: 16, Z: 16, Radius: 10, Height: 12, Seed: 5, Roughness: &zero})
	rough := flat(Mountain{X: 16, Z: 16, Radius: 10, Height: 12, Seed: 5})

	higher := 0
	for z := 0; z < 32; z++ {
		for x := 0; x < 32; x++ {
			assert.GreaterOrEqual(t, smooth.At(x, z), rough.At(x, z)-1e-9, "(%d,%d)", x, z)
			if smooth.At(x, z) > rough.At(x, z)+1e-9 {
				higher++
			}
		}
	}
	assert.Greater(t, higher, 0)

	tooRough := 1.5
	h := testMap(t)
	err := h.AddRidge(Ridge{Path: []Point{{X: 0, Z: 0}, {X: 9, Z: 9}}, Width: 4, Height: 3, Roughness: &tooRough})
	assert.True(t, errors.Is(err, ErrInvalidOperation), "got %v", err)
}
