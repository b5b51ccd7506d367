package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryCellCount(t *testing.T) {
	solid := Entry{Start: [3]int{0, 0, 0}, End: [3]int{4, 5, 6}, Type: "stone", Fill: true}
	assert.Equal(t, 120, solid.CellCount())

	hollow := solid
	hollow.Fill = false
	w, h, d := 4, 5, 6
	want := 2*(w*h+h*d+w*d) - 4*(w+h+d) + 8
	assert.Equal(t, want, hollow.CellCount())
	n := 0
	hollow.Cells(func(x, y, z int) { n++ })
	assert.Equal(t, want, n, "hollow cells iterated")

	thin := Entry{Start: [3]int{0, 0, 0}, End: [3]int{2, 3, 3}, Type: "stone"}
	assert.Equal(t, 18, thin.CellCount())
}

func TestResolveLastWriteWins(t *testing.T) {
	s := Structure{Width: 3, Height: 1, Depth: 1, Blocks: []Entry{
		{Start: [3]int{0, 0, 0}, End: [3]int{3, 1, 1}, Type: "stone", Fill: true},
		{Start: [3]int{1, 0, 0}, End: [3]int{2, 1, 1}, Type: "glass", Fill: true},
	}}
	cells := s.Resolve()
	assert.Len(t, cells, 3)
	assert.Equal(t, 3, s.CellCount())
	assert.Equal(t, 1, cells[Cell{1, 0, 0}])
	assert.Equal(t, 0, cells[Cell{0, 0, 0}])
}

func TestEncodeDecodeValidatesSchema(t *testing.T) {
	s := Structure{Width: 2, Height: 2, Depth: 2, Blocks: []Entry{
		{Start: [3]int{0, 0, 0}, End: [3]int{2, 2, 2}, Type: "oak_stairs", Properties: map[string]string{"facing": "north", "half": "bottom"}, Fill: true},
	}}
	raw, err := s.Encode()
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "north", got.Blocks[0].Properties["facing"])

	empty, err := Structure{}.Encode()
	require.NoError(t, err)
	assert.NoError(t, ValidateJSON(empty), "empty structure should satisfy schema")

	for name, bad := range map[string]string{
		"missing fill": `{"width":1,"height":1,"depth":1,"blocks":[{"start":[0,0,0],"end":[1,1,1],"type":"stone"}]}`,
		"short vec":    `{"width":1,"height":1,"depth":1,"blocks":[{"start":[0,0],"end":[1,1,1],"type":"stone","fill":true}]}`,
		"extra field":  `{"width":1,"height":1,"depth":1,"blocks":[],"origin":"min"}`,
		"not json":     `{`,
	} {
		_, err := Decode([]byte(bad))
		assert.True(t, errors.Is(err, ErrInvalidStructure), "%s: got %v", name, err)
	}
}

func TestDecodeBaseRoutesByType(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"STRUCTURE","protocol_version":"1.0","name":"hut"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeStructure, m.Type)
	assert.Equal(t, Version, m.ProtocolVersion)

	_, err = DecodeBase([]byte(`[`))
	assert.Error(t, err)
}

func TestValidateRejectsInvertedEntry(t *testing.T) {
	s := Structure{Blocks: []Entry{{Start: [3]int{1, 0, 0}, End: [3]int{1, 1, 1}, Type: "stone"}}}
	assert.True(t, errors.Is(s.Validate(), ErrInvalidStructure))
}

func TestBounds(t *testing.T) {
	s := Structure{Blocks: []Entry{
		{Start: [3]int{2, 0, -1}, End: [3]int{4, 1, 0}, Type: "stone"},
		{Start: [3]int{-3, 5, 0}, End: [3]int{0, 6, 2}, Type: "stone"},
	}}
	lo, hi, ok := s.Bounds()
	require.True(t, ok)
	assert.Equal(t, [3]int{-3, 0, -1}, lo)
	assert.Equal(t, [3]int{4, 6, 2}, hi)

	_, _, ok = (Structure{}).Bounds()
	assert.False(t, ok, "empty structure has no bounds")
}
