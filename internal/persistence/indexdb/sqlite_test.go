package indexdb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"voxelforge.ai/internal/protocol"
	"voxelforge.ai/internal/sim/catalogs"
)

func openTemp(t *testing.T) (*SQLiteIndex, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "library.db")
	idx, err := OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}

func cube(size int, block string) protocol.Structure {
	return protocol.Structure{
		Width: size, Height: size, Depth: size,
		Blocks: []protocol.Entry{{End: [3]int{size, size, size}, Type: block, Fill: true}},
	}
}

func TestSQLiteIndex_PutGetList(t *testing.T) {
	idx, _ := openTemp(t)
	var buf bytes.Buffer
	idx.Logger = log.New(&buf, "", 0)
	ctx := context.Background()

	a, err := idx.Put(ctx, "tower", cube(3, "stone"), nil)
	require.NoError(t, err)
	_, err = uuid.Parse(a.ID)
	require.NoError(t, err, "id %q is not a uuid", a.ID)
	assert.Equal(t, 27, a.Cells)
	assert.Equal(t, 1, a.Entries)
	assert.Empty(t, a.PaletteDigest)

	_, err = idx.Put(ctx, "arch", cube(2, "oak_planks"), nil)
	require.NoError(t, err)

	r, st, err := idx.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "tower", r.Name)
	assert.Equal(t, cube(3, "stone"), st)

	byName, _, err := idx.Get(ctx, "tower")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	list, err := idx.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "arch", list[0].Name)
	assert.Equal(t, "tower", list[1].Name)
	assert.Contains(t, buf.String(), "indexdb: put tower id="+a.ID)
}

func TestSQLiteIndex_PutSameNameKeepsID(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	first, err := idx.Put(ctx, "tower", cube(3, "stone"), nil)
	require.NoError(t, err)
	second, err := idx.Put(ctx, "tower", cube(4, "stone"), nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.NotEqual(t, first.Digest, second.Digest)

	_, st, err := idx.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Width)

	dup, err := idx.FindByDigest(ctx, second.Digest)
	require.NoError(t, err)
	require.Len(t, dup, 1)
	assert.Equal(t, first.ID, dup[0].ID)
}

func TestSQLiteIndex_DeleteAndNotFound(t *testing.T) {
	idx, _ := openTemp(t)
	ctx := context.Background()

	r, err := idx.Put(ctx, "tower", cube(1, "stone"), nil)
	require.NoError(t, err)
	require.NoError(t, idx.Delete(ctx, r.ID))
	assert.True(t, errors.Is(idx.Delete(ctx, r.ID), ErrNotFound))
	_, _, err = idx.Get(ctx, "tower")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	bad := cube(1, "stone")
	bad.Blocks[0].Type = ""
	_, err = idx.Put(ctx, "bad", bad, nil)
	assert.True(t, errors.Is(err, protocol.ErrInvalidStructure), "got %v", err)
}

func TestSQLiteIndex_PutRecordsCatalogPalette(t *testing.T) {
	idx, path := openTemp(t)
	var buf bytes.Buffer
	idx.Logger = log.New(&buf, "", 0)
	ctx := context.Background()

	cat, err := catalogs.Default()
	require.NoError(t, err)
	r, err := idx.Put(ctx, "tower", cube(2, "stone"), cat)
	require.NoError(t, err)
	assert.Equal(t, cat.PaletteDigest, r.PaletteDigest)

	got, err := idx.CatalogDigest(ctx, PaletteCatalog)
	require.NoError(t, err)
	assert.Equal(t, cat.PaletteDigest, got)

	_, err = idx.Put(ctx, "legacy", cube(1, "dirt"), nil)
	require.NoError(t, err)
	stale, err := idx.Stale(ctx, cat.PaletteDigest)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "legacy", stale[0].Name)

	smaller, err := catalogs.Parse([]byte(`[{"id":"air"},{"id":"stone"}]`))
	require.NoError(t, err)
	changed, err := idx.RecordCatalog(ctx, smaller)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, buf.String(), "indexdb: block palette changed")

	changed, err = idx.RecordCatalog(ctx, smaller)
	require.NoError(t, err)
	assert.False(t, changed)

	stale, err = idx.Stale(ctx, smaller.PaletteDigest)
	require.NoError(t, err)
	assert.Len(t, stale, 2)

	_, err = idx.CatalogDigest(ctx, "items")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	require.NoError(t, idx.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	var version, palette string
	require.NoError(t, db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&version))
	assert.Equal(t, schemaVersion, version)
	require.NoError(t, db.QueryRow(`SELECT json FROM catalogs WHERE name=?`, PaletteCatalog).Scan(&palette))
	var ids []string
	require.NoError(t, json.Unmarshal([]byte(palette), &ids))
	assert.Equal(t, []string{"air", "stone"}, ids)
}
